package timelapse

import (
	"errors"
	"fmt"
	"math"

	"github.com/teranos/timelapse/metrics"
	"github.com/teranos/timelapse/trip"
	"go.uber.org/zap"
)

// RunState is the mutable state of one run.
type RunState struct {
	// Frame is the next frame number. It is shared by every operation of
	// the run so file names stay contiguous.
	Frame int
	// Rejections counts parameter writes the host refused.
	Rejections int
}

// EventType identifies progress notifications.
type EventType int

const (
	OperationStarted EventType = iota
	FrameEmitted
	OperationFinished
)

// Event is a progress notification from a running session.
type Event struct {
	Type     EventType
	Position int
	Kind     Kind
	Frame    int  // frame number, FrameEmitted only
	Step     int  // zero-based step within the operation
	Budget   int  // frames allotted to the operation
	Saved    bool // FrameEmitted: every artifact was written
}

// Observer receives progress events. It is called synchronously on the
// run's goroutine and must not block for long.
type Observer func(Event)

// InterpolatedValue is the value written for target t at zero-based step s,
// clamped by magnitude to the original value.
func InterpolatedValue(t InterpolationTarget, original float64, s int) float64 {
	return clampMagnitude(t.Step*float64(s+1)+t.Offset, original)
}

// FadeValue is the opacity at zero-based step s of a linear fade-in towards
// original over framesPerOperation steps.
func FadeValue(original float64, s, framesPerOperation int) float64 {
	return clampMagnitude(original*float64(s+1)/float64(framesPerOperation), original)
}

// clampMagnitude never extrapolates past the final value. The comparison is
// on magnitudes, so values that cross zero are not clamped by sign.
func clampMagnitude(v, original float64) float64 {
	if math.Abs(v) > math.Abs(original) {
		return original
	}
	return v
}

// Driver runs the sub-frame loop of one operation at a time.
type Driver struct {
	framesPerOperation int
	orbiter            *Orbiter
	emitter            *Emitter
	state              *RunState
	metrics            *metrics.RunMetrics
	logger             *zap.Logger
	observer           Observer
}

// NewDriver wires a driver to the camera and the emitter.
func NewDriver(framesPerOperation int, orbiter *Orbiter, emitter *Emitter, state *RunState) *Driver {
	return &Driver{
		framesPerOperation: framesPerOperation,
		orbiter:            orbiter,
		emitter:            emitter,
		state:              state,
		metrics:            metrics.NewRunMetrics(""),
		logger:             zap.NewNop(),
	}
}

// WithLogger sets the driver's logger.
func (d *Driver) WithLogger(logger *zap.Logger) *Driver {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// WithMetrics sets the metrics recorder.
func (d *Driver) WithMetrics(m *metrics.RunMetrics) *Driver {
	if m != nil {
		d.metrics = m
	}
	return d
}

// WithObserver sets the progress observer.
func (d *Driver) WithObserver(o Observer) *Driver {
	d.observer = o
	return d
}

type snapshot struct {
	values      []float64
	expressions []string
	opacities   []float64
}

func takeSnapshot(plan Plan) snapshot {
	s := snapshot{
		values:      make([]float64, len(plan.Targets)),
		expressions: make([]string, len(plan.Targets)),
		opacities:   make([]float64, len(plan.Fades)),
	}
	for k, t := range plan.Targets {
		s.values[k] = t.Param.Value()
		s.expressions[k] = t.Param.Expression()
	}
	for k, f := range plan.Fades {
		s.opacities[k] = f.Opacity()
	}
	return s
}

// RunOperation animates one operation over frameBudget frames, then puts
// every touched parameter and opacity back exactly as it found them. The
// restore also runs when the loop fails or the host panics mid-write.
func (d *Driver) RunOperation(plan Plan, frameBudget int) (err error) {
	snap := takeSnapshot(plan)
	defer func() {
		if restoreErr := d.restore(plan, snap); restoreErr != nil {
			if err == nil {
				err = restoreErr
			} else {
				err = errors.Join(err, restoreErr)
			}
		}
	}()

	d.notify(Event{Type: OperationStarted, Position: plan.Position, Kind: plan.Kind, Budget: frameBudget})
	err = d.loop(plan, snap, frameBudget)
	d.notify(Event{Type: OperationFinished, Position: plan.Position, Kind: plan.Kind, Budget: frameBudget})
	return err
}

func (d *Driver) loop(plan Plan, snap snapshot, frameBudget int) error {
	for s := 0; s < frameBudget; s++ {
		for k, t := range plan.Targets {
			if err := d.write(plan, t, InterpolatedValue(t, snap.values[k], s)); err != nil {
				return trip.Wrap(err, trip.TypeParameter, "parameter write failed",
					trip.Context{"position": plan.Position, "parameter": t.Param.Name(), "step": s})
			}
		}
		for k, f := range plan.Fades {
			if err := f.SetOpacity(FadeValue(snap.opacities[k], s, d.framesPerOperation)); err != nil {
				return trip.Wrap(err, trip.TypeParameter, "opacity write failed",
					trip.Context{"position": plan.Position, "step": s})
			}
		}

		if err := d.orbiter.Step(); err != nil {
			return trip.Wrap(err, trip.TypeCamera, "camera step failed",
				trip.Context{"position": plan.Position, "frame": d.state.Frame})
		}

		frame := d.state.Frame
		saved := d.emitter.EmitFrame(frame)
		d.state.Frame++

		d.notify(Event{
			Type:     FrameEmitted,
			Position: plan.Position,
			Kind:     plan.Kind,
			Frame:    frame,
			Step:     s,
			Budget:   frameBudget,
			Saved:    saved,
		})
	}
	return nil
}

// write sets one intermediate value. A value the host refuses is skipped
// for this step only.
func (d *Driver) write(plan Plan, t InterpolationTarget, value float64) error {
	err := t.Param.SetValue(value)
	if err == nil && plan.refresh != nil {
		err = plan.refresh()
	}
	if errors.Is(err, ErrInfeasible) {
		d.state.Rejections++
		d.metrics.RecordRejection(plan.Kind.String())
		d.logger.Debug("Parameter value rejected",
			zap.Int("position", plan.Position),
			zap.String("parameter", t.Param.Name()),
			zap.Float64("value", value),
			zap.Error(err))
		return nil
	}
	return err
}

func (d *Driver) restore(plan Plan, snap snapshot) error {
	var errs []error
	for k, t := range plan.Targets {
		if err := t.Param.SetValue(snap.values[k]); err != nil {
			errs = append(errs, fmt.Errorf("restore value of %s: %w", t.Param.Name(), err))
		}
		if err := t.Param.SetExpression(snap.expressions[k]); err != nil {
			errs = append(errs, fmt.Errorf("restore expression of %s: %w", t.Param.Name(), err))
		}
	}
	for k, f := range plan.Fades {
		if err := f.SetOpacity(snap.opacities[k]); err != nil {
			errs = append(errs, fmt.Errorf("restore opacity: %w", err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return trip.Wrap(errors.Join(errs...), trip.TypeParameter, "restore failed",
		trip.Context{"position": plan.Position})
}

func (d *Driver) notify(e Event) {
	if d.observer != nil {
		d.observer(e)
	}
}
