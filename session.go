// Package timelapse turns a CAD design's feature history into an animation.
//
// A run walks the timeline operation by operation. Each animatable operation
// is rebuilt over a few frames: extrusions grow, revolves sweep, patterns
// multiply and new components fade in, while the camera circles the design.
// Every frame is saved as a numbered PNG (and optionally an OBJ mesh), and
// every parameter touched is put back exactly as it was.
//
// Basic usage:
//
//	cfg := timelapse.DefaultConfig()
//	cfg.OutputPath = "/tmp/renders"
//	cfg.FolderName = "bracket"
//
//	result, err := timelapse.NewSession(host, cfg).
//		WithLogger(logger).
//		Run()
//	if err != nil {
//		var t *trip.Trip
//		if errors.As(err, &t) {
//			fmt.Println(t.DetailedString())
//		}
//	}
//	fmt.Printf("%d frames in %s\n", result.Frames, result.OutputDir)
package timelapse

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/teranos/timelapse/metrics"
	"github.com/teranos/timelapse/trip"
	"go.uber.org/zap"
)

// Warning is shown to the operator before a run starts.
const Warning = "WARNING: This will make changes to your design (e.g. break links to referenced components). " +
	"You may want to run it on a copy of your design."

// LogFileName is the diagnostic log written into the output folder.
const LogFileName = "log.txt"

// OperationRecord summarises what a run did with one timeline position.
type OperationRecord struct {
	Position    int    `json:"position"`
	Kind        string `json:"kind"`
	Disposition string `json:"disposition"`
	FirstFrame  int    `json:"first_frame"`
	Frames      int    `json:"frames"`
	Targets     int    `json:"targets"`
	Fades       int    `json:"fades"`
}

// Result describes a finished (or aborted) run.
type Result struct {
	RunID      string
	Config     Config
	OutputDir  string
	Frames     int
	Rejections int
	LogLines   []string
	Operations []OperationRecord
	Stumbles   []*trip.Trip
	Errors     []*trip.Trip
	TripReport string
	StartedAt  time.Time
	Duration   time.Duration
}

// Session owns one timelapse run: its config, its counters and its output.
type Session struct {
	host     Host
	config   Config
	logger   *zap.Logger
	observer Observer
	trips    *trip.Handler
	state    RunState
}

// NewSession creates a session for host. The config is normalised against
// the timeline when Run starts.
func NewSession(host Host, config Config) *Session {
	return &Session{
		host:   host,
		config: config,
		logger: zap.NewNop(),
	}
}

// RunTimelapse runs a session with default options.
func RunTimelapse(host Host, config Config) (*Result, error) {
	return NewSession(host, config).Run()
}

// WithLogger sets the logger used by the run and all its parts.
func (s *Session) WithLogger(logger *zap.Logger) *Session {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithObserver sets a progress observer.
func (s *Session) WithObserver(o Observer) *Session {
	s.observer = o
	return s
}

// Run walks the configured range and renders it. Recoverable trouble ends
// up in Result.Stumbles; anything else stops the run and is returned as a
// *trip.Trip with Fall severity. The result is returned in both cases, and
// once the walk has started the marker is put back even when the run fails.
func (s *Session) Run() (result *Result, err error) {
	s.state = RunState{}
	s.trips = trip.NewHandler("session", nil)

	timeline := s.host.Timeline()
	originalMarker := timeline.MarkerPosition()
	cfg := s.config.Normalize(originalMarker)

	result = &Result{
		RunID:     uuid.NewString(),
		Config:    cfg,
		OutputDir: cfg.OutputDir(),
		StartedAt: time.Now(),
	}
	m := metrics.NewRunMetrics(cfg.FolderName)
	logger := s.logger.With(zap.String("run", result.RunID))

	position := 0
	walking := false
	defer func() {
		if r := recover(); r != nil {
			err = trip.FromPanic(r, trip.Context{"position": position, "frame": s.state.Frame})
		}
		if walking {
			if markerErr := restoreMarker(timeline, originalMarker); markerErr != nil {
				restoreErr := trip.Wrap(markerErr, trip.TypeSystem, "failed to restore timeline marker",
					trip.Context{"position": originalMarker})
				if err == nil {
					err = restoreErr
				} else {
					err = errors.Join(err, restoreErr)
				}
			}
		}
		result.Frames = s.state.Frame
		result.Rejections = s.state.Rejections
		result.Stumbles = s.trips.GetStumbles()
		result.Errors = s.trips.GetTrips()
		if s.trips.HasTrips() || s.trips.HasStumbles() {
			result.TripReport = s.trips.DetailedReport()
		}
		result.Duration = time.Since(result.StartedAt)

		status := "ok"
		if err != nil {
			status = "failed"
			logger.Error("Timelapse failed", zap.Error(err))
		} else {
			logger.Info("Timelapse finished",
				zap.Int("frames", result.Frames),
				zap.Int("stumbles", len(result.Stumbles)),
				zap.Duration("duration", result.Duration))
		}
		m.RecordRun(status, result.Duration)
	}()

	if err := cfg.Validate(timeline.Count()); err != nil {
		return result, trip.Wrap(err, trip.TypeSystem, "invalid configuration", nil)
	}

	if err := os.MkdirAll(result.OutputDir, 0755); err != nil {
		return result, trip.Wrap(err, trip.TypeSystem, "failed to create output directory",
			trip.Context{"path": result.OutputDir})
	}
	logFile, err := os.Create(filepath.Join(result.OutputDir, LogFileName))
	if err != nil {
		return result, trip.Wrap(err, trip.TypeSystem, "failed to open run log",
			trip.Context{"path": result.OutputDir})
	}
	defer logFile.Close()
	logWriter := bufio.NewWriter(logFile)
	defer logWriter.Flush()

	viewport := s.host.Viewport()
	if cfg.FitToView {
		if err := viewport.Fit(); err != nil {
			return result, trip.Wrap(err, trip.TypeCamera, "failed to fit view", nil)
		}
	}
	orbiter, err := NewOrbiter(viewport, cfg.EffectiveFramesPerRotation(), cfg.FitToView)
	if err != nil {
		return result, trip.Wrap(err, trip.TypeCamera, "failed to set up camera orbit", nil)
	}

	interpreter := NewInterpreter(cfg.FramesPerOperation, logger)
	emitter := NewEmitter(s.host, result.OutputDir, cfg.Width, cfg.Height, cfg.SaveOBJ, s.trips, m, logger)
	driver := NewDriver(cfg.FramesPerOperation, orbiter, emitter, &s.state).
		WithLogger(logger).
		WithMetrics(m).
		WithObserver(s.observer)

	logger.Info("Timelapse started",
		zap.String("output", result.OutputDir),
		zap.Int("start", cfg.Start),
		zap.Int("end", cfg.End),
		zap.Int("frames_per_operation", cfg.FramesPerOperation),
		zap.Int("frames_per_rotation", cfg.EffectiveFramesPerRotation()))

	walking = true
	for position = cfg.Start; position <= cfg.End; position++ {
		op, itemErr := timeline.Item(position)
		if itemErr != nil {
			logger.Debug("Timeline item unreadable", zap.Int("position", position), zap.Error(itemErr))
			m.RecordOperation(KindOther.String(), Skip.String())
			continue
		}

		plan := interpreter.Classify(op)
		if plan.Skip() {
			m.RecordOperation(plan.Kind.String(), Skip.String())
			result.Operations = append(result.Operations, OperationRecord{
				Position: position, Kind: plan.Kind.String(), Disposition: Skip.String(),
			})
			continue
		}

		if err := timeline.SetMarkerPosition(position); err != nil {
			return result, trip.Wrap(err, trip.TypeSystem, "failed to move timeline marker",
				trip.Context{"position": position})
		}

		plan = interpreter.ExtractTargets(op.Entity)
		plan.Position = position
		m.RecordOperation(plan.Kind.String(), plan.Disposition.String())
		record := OperationRecord{
			Position:    position,
			Kind:        plan.Kind.String(),
			Disposition: plan.Disposition.String(),
			FirstFrame:  s.state.Frame,
			Targets:     len(plan.Targets),
			Fades:       len(plan.Fades),
		}

		switch plan.Disposition {
		case Skip:
			result.Operations = append(result.Operations, record)
			continue
		case LogOnly:
			for _, line := range plan.LogLines {
				line = fmt.Sprintf("%d %s", position, line)
				result.LogLines = append(result.LogLines, line)
				if _, werr := fmt.Fprintln(logWriter, line); werr != nil {
					s.trips.Stumble(trip.TypeSystem, "failed writing run log",
						trip.Context{"position": position}, werr)
				}
			}
			result.Operations = append(result.Operations, record)
			continue
		}

		budget := cfg.FramesPerOperation
		if position == cfg.End {
			budget += cfg.FinalFrames
		}
		if err := driver.RunOperation(plan, budget); err != nil {
			return result, trip.Wrap(err, trip.TypeSystem, "operation failed",
				trip.Context{"position": position, "kind": plan.Kind.String()})
		}
		record.Frames = s.state.Frame - record.FirstFrame
		result.Operations = append(result.Operations, record)
	}

	if err := logWriter.Flush(); err != nil {
		s.trips.Stumble(trip.TypeSystem, "failed flushing run log", nil, err)
	}
	return result, nil
}

// restoreMarker puts the marker back where the run found it. A host that
// panics here is reported like any other restore failure.
func restoreMarker(timeline Timeline, position int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return timeline.SetMarkerPosition(position)
}
