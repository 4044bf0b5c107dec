package stage

import (
	"fmt"
	"image/color"
	"math"

	"github.com/teranos/timelapse"
)

func checkOpacity(v float64) error {
	if v < 0 || v > 1 || math.IsNaN(v) {
		return fmt.Errorf("opacity %g outside [0, 1]", v)
	}
	return nil
}

// Body is a box standing on its footprint. When a driver parameter is set,
// the box height follows its magnitude, so an extrusion visibly grows.
type Body struct {
	name      string
	origin    timelapse.Vector3
	size      [2]float64
	height    float64
	driver    *Parameter
	opacity   float64
	color     color.RGBA
	position  int // timeline position that creates the body
	component *Component
}

// NewBody creates an opaque box with the given footprint and fixed height.
func NewBody(name string, origin timelapse.Vector3, width, depth, height float64) *Body {
	return &Body{
		name:    name,
		origin:  origin,
		size:    [2]float64{width, depth},
		height:  height,
		opacity: 1,
		color:   color.RGBA{0x9a, 0xb8, 0xd6, 0xff},
	}
}

// DrivenBy makes the box height follow p.
func (b *Body) DrivenBy(p *Parameter) *Body {
	b.driver = p
	return b
}

// WithColor sets the body's base color.
func (b *Body) WithColor(c color.RGBA) *Body {
	b.color = c
	return b
}

func (b *Body) Name() string      { return b.name }
func (b *Body) Opacity() float64  { return b.opacity }
func (b *Body) Position() int     { return b.position }
func (b *Body) Color() color.RGBA { return b.color }

// SetOpacity sets the body's own opacity.
func (b *Body) SetOpacity(v float64) error {
	if err := checkOpacity(v); err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	b.opacity = v
	return nil
}

// EffectiveOpacity folds in the owning component's opacity.
func (b *Body) EffectiveOpacity() float64 {
	if b.component != nil {
		return b.opacity * b.component.opacity
	}
	return b.opacity
}

// Height is the current box height.
func (b *Body) Height() float64 {
	if b.driver != nil {
		return math.Abs(b.driver.Value())
	}
	return b.height
}

var boxCorners = [8][3]float64{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

var boxTriangles = []int{
	0, 2, 1, 0, 3, 2, // bottom
	4, 5, 6, 4, 6, 7, // top
	0, 1, 5, 0, 5, 4, // front
	1, 2, 6, 1, 6, 5, // right
	2, 3, 7, 2, 7, 6, // back
	3, 0, 4, 3, 4, 7, // left
}

// Mesh triangulates the box. Quality does not change a box.
func (b *Body) Mesh(timelapse.MeshQuality) (timelapse.Mesh, error) {
	h := b.Height()
	mesh := timelapse.Mesh{
		Vertices: make([]timelapse.Vector3, 0, len(boxCorners)),
		Normals:  make([]timelapse.Vector3, 0, len(boxCorners)),
		Indices:  append([]int(nil), boxTriangles...),
	}
	for _, c := range boxCorners {
		mesh.Vertices = append(mesh.Vertices, timelapse.Vector3{
			X: b.origin.X + c[0]*b.size[0],
			Y: b.origin.Y + c[1]*b.size[1],
			Z: b.origin.Z + c[2]*h,
		})
		mesh.Normals = append(mesh.Normals, timelapse.Vector3{
			X: c[0]*2 - 1, Y: c[1]*2 - 1, Z: c[2]*2 - 1,
		}.Normalize())
	}
	return mesh, nil
}

// Component groups bodies and fades them together.
type Component struct {
	name    string
	opacity float64
	bodies  []*Body
}

// NewComponent creates an opaque component owning bodies.
func NewComponent(name string, bodies ...*Body) *Component {
	c := &Component{name: name, opacity: 1}
	for _, b := range bodies {
		b.component = c
		c.bodies = append(c.bodies, b)
	}
	return c
}

func (c *Component) Name() string     { return c.name }
func (c *Component) Opacity() float64 { return c.opacity }

// SetOpacity sets the component's opacity.
func (c *Component) SetOpacity(v float64) error {
	if err := checkOpacity(v); err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	c.opacity = v
	return nil
}

// Bodies returns the component's bodies.
func (c *Component) Bodies() []timelapse.Body {
	out := make([]timelapse.Body, 0, len(c.bodies))
	for _, b := range c.bodies {
		out = append(out, b)
	}
	return out
}

// Occurrence places a component in the design, possibly linked to an
// external file.
type Occurrence struct {
	component  *Component
	referenced bool
	breakErr   error
	position   int
}

// NewOccurrence creates an occurrence of c.
func NewOccurrence(c *Component, referenced bool) *Occurrence {
	return &Occurrence{component: c, referenced: referenced}
}

// FailBreakLink makes BreakLink return err.
func (o *Occurrence) FailBreakLink(err error) *Occurrence {
	o.breakErr = err
	return o
}

func (o *Occurrence) IsReferencedComponent() bool { return o.referenced }

// BreakLink severs the external link.
func (o *Occurrence) BreakLink() error {
	if o.breakErr != nil {
		return o.breakErr
	}
	o.referenced = false
	return nil
}

// Component returns the occurrence's component.
func (o *Occurrence) Component() timelapse.Component {
	if o.component == nil {
		return nil
	}
	return o.component
}

// Bodies returns the component's bodies.
func (o *Occurrence) Bodies() []timelapse.Body {
	if o.component == nil {
		return nil
	}
	return o.component.Bodies()
}
