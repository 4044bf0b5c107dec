package stage

import (
	"errors"
	"math"

	"github.com/teranos/timelapse"
)

type extent struct {
	kind  timelapse.ExtentKind
	param *Parameter
}

func (e extent) export() timelapse.Extent {
	return timelapse.Extent{Kind: e.kind, Param: asParameter(e.param)}
}

// Extrude grows bodies from a profile by one or two extents.
type Extrude struct {
	one, two  extent
	twoSided  bool
	operation timelapse.FeatureOperation
	bodies    []*Body
}

// NewExtrude creates a one-sided extrusion producing bodies. When the extent
// is numeric each body's height follows its parameter.
func NewExtrude(op timelapse.FeatureOperation, kind timelapse.ExtentKind, p *Parameter, bodies ...*Body) *Extrude {
	e := &Extrude{
		one:       extent{kind: kind, param: p},
		operation: op,
		bodies:    bodies,
	}
	if p != nil {
		for _, b := range bodies {
			b.DrivenBy(p)
		}
	}
	return e
}

// WithSideTwo makes the extrusion two-sided.
func (e *Extrude) WithSideTwo(kind timelapse.ExtentKind, p *Parameter) *Extrude {
	e.two = extent{kind: kind, param: p}
	e.twoSided = true
	return e
}

func (e *Extrude) Kind() timelapse.Kind                  { return timelapse.KindExtrude }
func (e *Extrude) ExtentOne() timelapse.Extent           { return e.one.export() }
func (e *Extrude) ExtentTwo() timelapse.Extent           { return e.two.export() }
func (e *Extrude) HasTwoExtents() bool                   { return e.twoSided }
func (e *Extrude) Operation() timelapse.FeatureOperation { return e.operation }

// Bodies returns the bodies the extrusion produced.
func (e *Extrude) Bodies() []timelapse.Body {
	out := make([]timelapse.Body, 0, len(e.bodies))
	for _, b := range e.bodies {
		out = append(out, b)
	}
	return out
}

// Revolve sweeps a profile around an axis.
type Revolve struct {
	extent    extent
	symmetric bool
	refreshes int
	bodies    []*Body
}

// NewRevolve creates a revolve with the given extent.
func NewRevolve(kind timelapse.ExtentKind, p *Parameter, symmetric bool, bodies ...*Body) *Revolve {
	return &Revolve{
		extent:    extent{kind: kind, param: p},
		symmetric: symmetric,
		bodies:    bodies,
	}
}

func (r *Revolve) Kind() timelapse.Kind               { return timelapse.KindRevolve }
func (r *Revolve) ExtentDefinition() timelapse.Extent { return r.extent.export() }
func (r *Revolve) IsSymmetric() bool                  { return r.symmetric }

// SetIsSymmetric stores the flag and recomputes the feature.
func (r *Revolve) SetIsSymmetric(v bool) error {
	r.symmetric = v
	r.refreshes++
	return nil
}

// Refreshes counts SetIsSymmetric calls.
func (r *Revolve) Refreshes() int { return r.refreshes }

// Move transforms bodies by a 4x4 row-major matrix.
type Move struct {
	transform [16]float64
	err       error
}

// NewMove creates a move feature.
func NewMove(transform [16]float64) *Move {
	return &Move{transform: transform}
}

// IdentityTransform is the 4x4 identity.
func IdentityTransform() [16]float64 {
	return [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
}

// FailTransform makes Transform return err.
func (m *Move) FailTransform(err error) *Move {
	m.err = err
	return m
}

func (m *Move) Kind() timelapse.Kind { return timelapse.KindMove }

// Transform returns the move's matrix.
func (m *Move) Transform() ([16]float64, error) {
	if m.err != nil {
		return [16]float64{}, m.err
	}
	return m.transform, nil
}

// Mirror reflects bodies or features across a plane.
type Mirror struct {
	bodies, inputs int
	inputErr       error
}

// NewMirror creates a mirror of the given input counts.
func NewMirror(bodies, inputs int) *Mirror {
	return &Mirror{bodies: bodies, inputs: inputs}
}

// FailInputs makes InputEntityCount return err.
func (m *Mirror) FailInputs(err error) *Mirror {
	m.inputErr = err
	return m
}

func (m *Mirror) Kind() timelapse.Kind    { return timelapse.KindMirror }
func (m *Mirror) BodyCount() (int, error) { return m.bodies, nil }

// InputEntityCount returns the number of mirrored entities.
func (m *Mirror) InputEntityCount() (int, error) {
	if m.inputErr != nil {
		return 0, m.inputErr
	}
	return m.inputs, nil
}

// Joint attaches an occurrence to the rest of the design.
type Joint struct {
	occurrence *Occurrence
}

// NewJoint creates a joint on occ, which may be nil.
func NewJoint(occ *Occurrence) *Joint {
	return &Joint{occurrence: occ}
}

func (j *Joint) Kind() timelapse.Kind { return timelapse.KindJoint }

// OccurrenceOne returns the joined occurrence or nil.
func (j *Joint) OccurrenceOne() timelapse.Occurrence {
	if j.occurrence == nil {
		return nil
	}
	return j.occurrence
}

// Pattern repeats a source body on a grid. Quantities are instance counts
// and distances are the total extent of each direction.
type Pattern struct {
	quantityOne, distanceOne *Parameter
	quantityTwo, distanceTwo *Parameter
	source                   *Body
}

// NewPattern creates a one-directional pattern of source.
func NewPattern(source *Body, quantity, distance *Parameter) *Pattern {
	return &Pattern{source: source, quantityOne: quantity, distanceOne: distance}
}

// WithDirectionTwo adds the second direction.
func (p *Pattern) WithDirectionTwo(quantity, distance *Parameter) *Pattern {
	p.quantityTwo, p.distanceTwo = quantity, distance
	return p
}

func (p *Pattern) Kind() timelapse.Kind             { return timelapse.KindRectangularPattern }
func (p *Pattern) QuantityOne() timelapse.Parameter { return asParameter(p.quantityOne) }
func (p *Pattern) DistanceOne() timelapse.Parameter { return asParameter(p.distanceOne) }
func (p *Pattern) QuantityTwo() timelapse.Parameter { return asParameter(p.quantityTwo) }
func (p *Pattern) DistanceTwo() timelapse.Parameter { return asParameter(p.distanceTwo) }

// Offsets returns the translation of every extra instance, excluding the
// source itself. Direction one runs along X and direction two along Y.
func (p *Pattern) Offsets() []timelapse.Vector3 {
	if p.source == nil {
		return nil
	}
	xs := pitches(p.quantityOne, p.distanceOne)
	ys := pitches(p.quantityTwo, p.distanceTwo)

	var out []timelapse.Vector3
	for j, y := range ys {
		for i, x := range xs {
			if i == 0 && j == 0 {
				continue
			}
			out = append(out, timelapse.Vector3{X: x, Y: y})
		}
	}
	return out
}

func pitches(quantity, distance *Parameter) []float64 {
	if quantity == nil {
		return []float64{0}
	}
	n := int(math.Round(math.Abs(quantity.Value())))
	if n < 1 {
		n = 1
	}
	pitch := 0.0
	if distance != nil && n > 1 {
		pitch = distance.Value() / float64(n-1)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = pitch * float64(i)
	}
	return out
}

// Generic is a timeline entity with no attributes of interest.
type Generic struct {
	kind timelapse.Kind
}

// NewGeneric creates an entity of the given kind.
func NewGeneric(kind timelapse.Kind) *Generic {
	return &Generic{kind: kind}
}

func (g *Generic) Kind() timelapse.Kind { return g.kind }

// ErrLinkLocked is returned by occurrences whose link cannot be broken.
var ErrLinkLocked = errors.New("component link is locked")
