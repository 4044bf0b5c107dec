package timelapse

import "errors"

// ErrInfeasible marks a parameter write the host declined, usually because
// the resulting geometry cannot be built ("No body to cut"). Hosts wrap it so
// the driver can skip that one write and keep rolling.
var ErrInfeasible = errors.New("infeasible parameter value")

// Host is the CAD application as seen by a timelapse run.
//
// The run needs exactly four capabilities from it: the feature timeline, the
// active viewport, the design (for mesh export) and a way to let the host
// settle pending UI events before geometry is read.
type Host interface {
	Timeline() Timeline
	Viewport() Viewport
	Design() Design
	// DoEvents flushes pending host events. Called before every mesh export.
	DoEvents()
}

// Timeline is the ordered construction history of a design.
//
// Positions are 1-based and contiguous. Moving the marker to p rolls the
// model back (or forward) to its state right after operation p.
type Timeline interface {
	Count() int
	MarkerPosition() int
	SetMarkerPosition(position int) error
	Item(position int) (Operation, error)
}

// Operation is one entry of the timeline.
type Operation struct {
	Position   int
	Suppressed bool
	Group      bool
	Entity     Entity // nil when the host cannot resolve the entry
}

// Parameter is a named numeric driver of the model.
type Parameter interface {
	Name() string
	Value() float64
	// SetValue may return an error wrapping ErrInfeasible.
	SetValue(v float64) error
	Expression() string
	SetExpression(expr string) error
}

// OpacityTarget is anything with an opacity in [0,1]: a component or a body.
type OpacityTarget interface {
	Opacity() float64
	SetOpacity(v float64) error
}

// Vector3 is a point or direction in model space.
type Vector3 struct {
	X, Y, Z float64
}

// Camera is a snapshot of the viewport camera. Mutating it has no effect
// until it is committed back with Viewport.SetCamera.
type Camera struct {
	Eye       Vector3
	Target    Vector3
	UpVector  Vector3
	IsFitView bool
}

// Viewport is the host's active view.
type Viewport interface {
	Camera() (Camera, error)
	SetCamera(c Camera) error
	FrontUpDirection() Vector3
	Fit() error
	SaveAsImage(path string, width, height int) error
}

// MeshQuality selects the host's triangulation density.
type MeshQuality int

const (
	MeshQualityLow MeshQuality = iota
	MeshQualityNormal
	MeshQualityHigh
)

// Mesh is a triangulated body. Indices holds zero-based vertex triples.
type Mesh struct {
	Vertices []Vector3
	Normals  []Vector3
	Indices  []int
}

// TriangleCount returns the number of triangles in the mesh.
func (m Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Body is a solid that can be faded and triangulated.
type Body interface {
	OpacityTarget
	Name() string
	Mesh(quality MeshQuality) (Mesh, error)
}

// Component owns bodies. Components fade as a whole.
type Component interface {
	OpacityTarget
	Name() string
	Bodies() []Body
}

// Occurrence is an instance of a component placed in the design.
type Occurrence interface {
	Component() Component
	Bodies() []Body
	IsReferencedComponent() bool
	// BreakLink severs the link to an external component. Irreversible.
	BreakLink() error
}

// RootComponent is the top of the design's assembly tree.
type RootComponent interface {
	Bodies() []Body
	AllOccurrences() []Occurrence
}

// Design exposes the assembly tree for mesh export.
type Design interface {
	RootComponent() RootComponent
}
