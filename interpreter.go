package timelapse

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Disposition says what a run does with a timeline operation.
type Disposition int

const (
	// Animate runs the sub-frame loop, even with zero targets.
	Animate Disposition = iota
	// Skip makes the operation invisible: no marker move, no frames.
	Skip
	// LogOnly writes diagnostic lines and emits no frames.
	LogOnly
)

func (d Disposition) String() string {
	switch d {
	case Animate:
		return "animate"
	case Skip:
		return "skip"
	case LogOnly:
		return "log"
	default:
		return "unknown"
	}
}

// InterpolationTarget is a parameter animated over one operation. The value
// written at step s (zero-based) is Step*(s+1) + Offset.
type InterpolationTarget struct {
	Param  Parameter
	Step   float64
	Offset float64
}

// Plan is everything the driver needs to animate one operation.
type Plan struct {
	Disposition Disposition
	Kind        Kind
	Position    int
	Targets     []InterpolationTarget
	Fades       []OpacityTarget
	// LogLines are diagnostic lines for LogOnly operations, without the
	// position prefix.
	LogLines []string

	// refresh runs after every successful parameter write.
	refresh func() error
}

// Skip reports whether the operation contributes nothing to the animation.
func (p Plan) Skip() bool {
	return p.Disposition == Skip
}

var skippedKinds = map[Kind]bool{
	KindSketch:            true,
	KindConstructionPlane: true,
	KindConstructionAxis:  true,
	KindConstructionPoint: true,
	KindThreadFeature:     true,
	KindCombine:           true,
	KindCanvas:            true,
	KindOccurrence:        true,
}

// Interpreter turns timeline entities into animation plans.
type Interpreter struct {
	framesPerOperation int
	logger             *zap.Logger
}

// NewInterpreter creates an interpreter for the given frames per operation.
func NewInterpreter(framesPerOperation int, logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{
		framesPerOperation: framesPerOperation,
		logger:             logger,
	}
}

// Classify decides, without touching the model, whether an operation is
// skipped. Operations that are not skipped still need ExtractTargets, which
// must run after the marker has been moved onto them.
func (in *Interpreter) Classify(op Operation) Plan {
	if op.Suppressed || op.Group || op.Entity == nil {
		return Plan{Disposition: Skip}
	}
	kind := op.Entity.Kind()
	if skippedKinds[kind] {
		return Plan{Disposition: Skip, Kind: kind}
	}
	return Plan{Disposition: Animate, Kind: kind}
}

// ExtractTargets builds the plan for one entity. It never fails: anything
// that cannot be read is left out of the plan, and an entity that does not
// satisfy the interface its kind promises is skipped.
//
// Joints may break a component link as a side effect.
func (in *Interpreter) ExtractTargets(entity Entity) (plan Plan) {
	if entity == nil {
		return Plan{Disposition: Skip}
	}
	kind := entity.Kind()
	if skippedKinds[kind] {
		return Plan{Disposition: Skip, Kind: kind}
	}

	defer func() {
		if r := recover(); r != nil {
			in.logger.Warn("entity could not be classified",
				zap.Stringer("kind", kind), zap.Any("panic", r))
			plan = Plan{Disposition: Skip, Kind: kind}
		}
	}()

	plan = Plan{Disposition: Animate, Kind: kind}
	switch kind {
	case KindExtrude:
		if f, ok := entity.(ExtrudeFeature); ok {
			in.extrude(f, &plan)
			return plan
		}
	case KindRevolve:
		if f, ok := entity.(RevolveFeature); ok {
			in.revolve(f, &plan)
			return plan
		}
	case KindMove:
		if f, ok := entity.(MoveFeature); ok {
			plan.Disposition = LogOnly
			plan.LogLines = describeMove(f)
			return plan
		}
	case KindMirror:
		if f, ok := entity.(MirrorFeature); ok {
			plan.Disposition = LogOnly
			plan.LogLines = describeMirror(f)
			return plan
		}
	case KindJoint:
		if f, ok := entity.(JointFeature); ok {
			in.joint(f, &plan)
			return plan
		}
	case KindRectangularPattern:
		if f, ok := entity.(RectangularPatternFeature); ok {
			in.pattern(f, &plan)
			return plan
		}
	default:
		return plan
	}

	in.logger.Warn("entity does not expose its kind's attributes",
		zap.Stringer("kind", kind), zap.String("type", fmt.Sprintf("%T", entity)))
	return Plan{Disposition: Skip, Kind: kind}
}

func (in *Interpreter) linearTarget(p Parameter) InterpolationTarget {
	return InterpolationTarget{
		Param: p,
		Step:  p.Value() / float64(in.framesPerOperation),
	}
}

func (in *Interpreter) extrude(f ExtrudeFeature, plan *Plan) {
	extents := []Extent{f.ExtentOne()}
	if f.HasTwoExtents() {
		extents = append(extents, f.ExtentTwo())
	}
	for _, e := range extents {
		if IsNumericExtent(e) && e.Param != nil {
			plan.Targets = append(plan.Targets, in.linearTarget(e.Param))
		}
	}
	if len(plan.Targets) > 0 || !f.Operation().CreatesGeometry() {
		return
	}
	// Nothing to grow, so fade the new bodies in instead.
	for _, b := range f.Bodies() {
		if b != nil {
			plan.Fades = append(plan.Fades, b)
		}
	}
}

func (in *Interpreter) revolve(f RevolveFeature, plan *Plan) {
	e := f.ExtentDefinition()
	if !IsNumericExtent(e) || e.Param == nil {
		return
	}
	plan.Targets = append(plan.Targets, in.linearTarget(e.Param))
	// The host only recomputes symmetric revolves when the flag is touched.
	plan.refresh = func() error {
		return f.SetIsSymmetric(f.IsSymmetric())
	}
}

func (in *Interpreter) joint(f JointFeature, plan *Plan) {
	occ := f.OccurrenceOne()
	if occ == nil {
		return
	}
	// Opacity is shared by every linked instance, so the link goes first.
	if occ.IsReferencedComponent() {
		if err := occ.BreakLink(); err != nil {
			in.logger.Debug("break link failed", zap.Error(err))
		}
	}
	if comp := occ.Component(); comp != nil {
		plan.Fades = append(plan.Fades, comp)
	}
}

func (in *Interpreter) pattern(f RectangularPatternFeature, plan *Plan) {
	in.patternDirection(f.QuantityOne(), f.DistanceOne(), true, plan)
	// Direction two does not raise a zero step to one.
	in.patternDirection(f.QuantityTwo(), f.DistanceTwo(), false, plan)
}

func (in *Interpreter) patternDirection(quantity, distance Parameter, clampStep bool, plan *Plan) {
	if quantity == nil {
		return
	}
	q := quantity.Value()
	if q == 1 {
		return
	}
	step := math.Trunc(q / float64(in.framesPerOperation))
	if clampStep && step < 1 {
		step = 1
	}
	plan.Targets = append(plan.Targets, InterpolationTarget{Param: quantity, Step: step})

	if distance == nil {
		return
	}
	// Grow the spacing with the instance count so the pitch stays constant.
	pitch := distance.Value() / (q - 1)
	plan.Targets = append(plan.Targets, InterpolationTarget{
		Param:  distance,
		Step:   pitch * step,
		Offset: -pitch,
	})
}

func describeMove(f MoveFeature) []string {
	m, err := f.Transform()
	if err != nil {
		return []string{fmt.Sprintf("move: %v", err)}
	}
	return []string{fmt.Sprintf("move: %v", m)}
}

func describeMirror(f MirrorFeature) []string {
	bodies, err := f.BodyCount()
	if err != nil {
		return []string{fmt.Sprintf("mirror: %v", err)}
	}
	lines := []string{fmt.Sprintf("mirror: bodies %d", bodies)}
	inputs, err := f.InputEntityCount()
	if err != nil {
		return append(lines, fmt.Sprintf("mirror: %v", err))
	}
	return append(lines, fmt.Sprintf("mirror: inputEntities %d", inputs))
}
