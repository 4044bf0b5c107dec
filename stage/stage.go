// Package stage is an in-memory CAD host: a timeline of features, a design
// made of boxes and a viewport that renders real PNG frames. It drives
// timelapse runs from scene files and in tests.
package stage

import (
	"image/color"
	"math"

	"github.com/teranos/timelapse"
)

// ItemOption adjusts a timeline entry as it is added.
type ItemOption func(*timelapse.Operation)

// Suppressed marks the entry as suppressed.
func Suppressed() ItemOption {
	return func(op *timelapse.Operation) { op.Suppressed = true }
}

// Grouped marks the entry as a timeline group.
func Grouped() ItemOption {
	return func(op *timelapse.Operation) { op.Group = true }
}

type placedPattern struct {
	pattern  *Pattern
	position int
}

// Stage implements timelapse.Host.
type Stage struct {
	timeline    *Timeline
	viewport    *Viewport
	renderer    *Renderer
	bodies      []*Body
	occurrences []*Occurrence
	patterns    []placedPattern
	events      int
}

// New creates an empty stage looking at the origin from the front right,
// with Z up.
func New() *Stage {
	s := &Stage{timeline: &Timeline{}}
	s.viewport = &Viewport{
		stage: s,
		camera: timelapse.Camera{
			Eye:      timelapse.Vector3{X: 60, Y: -80, Z: 60},
			UpVector: timelapse.Vector3{Z: 1},
		},
		up: timelapse.Vector3{Z: 1},
	}
	s.renderer = newRenderer(s, DefaultRenderConfig())
	return s
}

// WithCamera replaces the initial camera and the front up direction.
func (s *Stage) WithCamera(camera timelapse.Camera, up timelapse.Vector3) *Stage {
	s.viewport.camera = camera
	s.viewport.up = up
	return s
}

// WithRenderConfig replaces the render settings.
func (s *Stage) WithRenderConfig(config RenderConfig) *Stage {
	s.renderer.config = config
	return s
}

// AddBody adds a body that exists before the first timeline entry.
func (s *Stage) AddBody(b *Body) *Stage {
	b.position = 0
	s.bodies = append(s.bodies, b)
	return s
}

// Add appends an entity to the timeline and returns its position. A nil
// entity models an entry the host cannot resolve. Bodies created by
// extrusions and revolves appear from that position on.
func (s *Stage) Add(e timelapse.Entity, opts ...ItemOption) int {
	op := timelapse.Operation{Entity: e}
	for _, opt := range opts {
		opt(&op)
	}
	position := s.timeline.append(op)

	switch f := e.(type) {
	case *Extrude:
		s.place(position, f.bodies)
	case *Revolve:
		s.place(position, f.bodies)
	case *Pattern:
		s.patterns = append(s.patterns, placedPattern{pattern: f, position: position})
	}
	return position
}

// AddOccurrence inserts a component occurrence as its own timeline entry.
func (s *Stage) AddOccurrence(o *Occurrence) int {
	position := s.timeline.append(timelapse.Operation{Entity: NewGeneric(timelapse.KindOccurrence)})
	o.position = position
	s.occurrences = append(s.occurrences, o)
	return position
}

func (s *Stage) place(position int, bodies []*Body) {
	for _, b := range bodies {
		b.position = position
		s.bodies = append(s.bodies, b)
	}
}

// Timeline returns the stage's timeline.
func (s *Stage) Timeline() timelapse.Timeline { return s.timeline }

// Viewport returns the stage's viewport.
func (s *Stage) Viewport() timelapse.Viewport { return s.viewport }

// Design returns the design as of the current marker.
func (s *Stage) Design() timelapse.Design { return design{s} }

// DoEvents counts event flushes.
func (s *Stage) DoEvents() { s.events++ }

// Events returns the number of DoEvents calls.
func (s *Stage) Events() int { return s.events }

// Track exposes the concrete timeline.
func (s *Stage) Track() *Timeline { return s.timeline }

// View exposes the concrete viewport.
func (s *Stage) View() *Viewport { return s.viewport }

// Renderer exposes the frame renderer.
func (s *Stage) Renderer() *Renderer { return s.renderer }

type design struct{ s *Stage }

func (d design) RootComponent() timelapse.RootComponent { return root(d) }

type root struct{ s *Stage }

// Bodies returns the root bodies that exist at the current marker.
func (r root) Bodies() []timelapse.Body {
	var out []timelapse.Body
	for _, b := range r.s.visibleRootBodies() {
		out = append(out, b)
	}
	return out
}

// AllOccurrences returns the occurrences that exist at the current marker.
func (r root) AllOccurrences() []timelapse.Occurrence {
	var out []timelapse.Occurrence
	for _, o := range r.s.occurrences {
		if o.position <= r.s.timeline.marker {
			out = append(out, o)
		}
	}
	return out
}

func (s *Stage) visibleRootBodies() []*Body {
	var out []*Body
	for _, b := range s.bodies {
		if b.position <= s.timeline.marker {
			out = append(out, b)
		}
	}
	return out
}

type solid struct {
	mesh    timelapse.Mesh
	color   color.RGBA
	opacity float64
}

// solids lists everything the renderer draws: visible bodies, the bodies of
// visible occurrences and the extra instances of visible patterns.
func (s *Stage) solids() []solid {
	var bodies []*Body
	bodies = append(bodies, s.visibleRootBodies()...)
	for _, o := range s.occurrences {
		if o.position <= s.timeline.marker && o.component != nil {
			bodies = append(bodies, o.component.bodies...)
		}
	}

	out := make([]solid, 0, len(bodies))
	for _, b := range bodies {
		mesh, _ := b.Mesh(timelapse.MeshQualityLow)
		out = append(out, solid{mesh: mesh, color: b.color, opacity: b.EffectiveOpacity()})
	}

	for _, pp := range s.patterns {
		src := pp.pattern.source
		if pp.position > s.timeline.marker || src == nil || src.position > s.timeline.marker {
			continue
		}
		mesh, _ := src.Mesh(timelapse.MeshQualityLow)
		for _, offset := range pp.pattern.Offsets() {
			out = append(out, solid{
				mesh:    translate(mesh, offset),
				color:   src.color,
				opacity: src.EffectiveOpacity(),
			})
		}
	}
	return out
}

func translate(m timelapse.Mesh, offset timelapse.Vector3) timelapse.Mesh {
	out := timelapse.Mesh{
		Vertices: make([]timelapse.Vector3, len(m.Vertices)),
		Normals:  m.Normals,
		Indices:  m.Indices,
	}
	for i, v := range m.Vertices {
		out.Vertices[i] = v.Add(offset)
	}
	return out
}

// bounds returns the box around every drawn solid.
func (s *Stage) bounds() (lo, hi timelapse.Vector3, ok bool) {
	inf := math.Inf(1)
	lo = timelapse.Vector3{X: inf, Y: inf, Z: inf}
	hi = lo.Scale(-1)
	for _, sol := range s.solids() {
		for _, v := range sol.mesh.Vertices {
			lo = timelapse.Vector3{X: math.Min(lo.X, v.X), Y: math.Min(lo.Y, v.Y), Z: math.Min(lo.Z, v.Z)}
			hi = timelapse.Vector3{X: math.Max(hi.X, v.X), Y: math.Max(hi.Y, v.Y), Z: math.Max(hi.Z, v.Z)}
			ok = true
		}
	}
	return lo, hi, ok
}
