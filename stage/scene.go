package stage

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"

	"github.com/teranos/timelapse"
	"gopkg.in/yaml.v3"
)

// Scene is a design history described in YAML. Build turns it into a stage.
//
//	name: bracket
//	bodies:
//	  - {name: plate, size: [40, 30], height: 4}
//	operations:
//	  - kind: sketch
//	  - kind: extrude
//	    operation: new_body
//	    extent: {type: distance, value: 20, unit: mm}
//	    body: {name: boss, origin: [10, 10, 4], size: [10, 10]}
type Scene struct {
	Name       string          `yaml:"name"`
	Camera     *CameraSpec     `yaml:"camera,omitempty"`
	Marker     int             `yaml:"marker,omitempty"` // 0 leaves the marker at the end
	Bodies     []BodySpec      `yaml:"bodies,omitempty"`
	Operations []OperationSpec `yaml:"operations"`
}

// CameraSpec is the initial camera.
type CameraSpec struct {
	Eye    []float64 `yaml:"eye"`
	Target []float64 `yaml:"target,omitempty"`
	Up     []float64 `yaml:"up,omitempty"`
}

// BodySpec describes a box.
type BodySpec struct {
	Name   string    `yaml:"name"`
	Origin []float64 `yaml:"origin,omitempty"`
	Size   []float64 `yaml:"size"`
	Height float64   `yaml:"height,omitempty"`
	Color  string    `yaml:"color,omitempty"` // #rrggbb
}

// ParamSpec describes a parameter or an extent.
type ParamSpec struct {
	Type       string   `yaml:"type,omitempty"` // extents only
	Name       string   `yaml:"name,omitempty"`
	Value      float64  `yaml:"value"`
	Unit       string   `yaml:"unit,omitempty"`
	Expression string   `yaml:"expression,omitempty"`
	Min        *float64 `yaml:"min,omitempty"`
	Max        *float64 `yaml:"max,omitempty"`
}

// OccurrenceSpec describes a component placed by an occurrence entry.
type OccurrenceSpec struct {
	Name       string     `yaml:"name"`
	Referenced bool       `yaml:"referenced,omitempty"`
	Locked     bool       `yaml:"locked,omitempty"`
	Bodies     []BodySpec `yaml:"bodies"`
}

// OperationSpec is one timeline entry.
type OperationSpec struct {
	Kind       string `yaml:"kind"`
	Suppressed bool   `yaml:"suppressed,omitempty"`
	Group      bool   `yaml:"group,omitempty"`
	Absent     bool   `yaml:"absent,omitempty"`

	// extrude and revolve
	Operation string     `yaml:"operation,omitempty"`
	Extent    *ParamSpec `yaml:"extent,omitempty"`
	ExtentTwo *ParamSpec `yaml:"extentTwo,omitempty"`
	Symmetric bool       `yaml:"symmetric,omitempty"`
	Body      *BodySpec  `yaml:"body,omitempty"`

	// rectangular_pattern
	Source      string     `yaml:"source,omitempty"`
	QuantityOne *ParamSpec `yaml:"quantityOne,omitempty"`
	DistanceOne *ParamSpec `yaml:"distanceOne,omitempty"`
	QuantityTwo *ParamSpec `yaml:"quantityTwo,omitempty"`
	DistanceTwo *ParamSpec `yaml:"distanceTwo,omitempty"`

	// move
	Transform []float64 `yaml:"transform,omitempty"`

	// mirror
	MirrorBodies int `yaml:"mirrorBodies,omitempty"`
	MirrorInputs int `yaml:"mirrorInputs,omitempty"`

	// occurrence and joint
	Occurrence *OccurrenceSpec `yaml:"occurrence,omitempty"`
	Joins      string          `yaml:"joins,omitempty"`
}

// LoadScene reads a scene file.
func LoadScene(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	scene, err := ParseScene(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scene, nil
}

// ParseScene decodes a YAML scene. Unknown fields are rejected.
func ParseScene(data []byte) (*Scene, error) {
	var scene Scene
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&scene); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	if len(scene.Operations) == 0 {
		return nil, errors.New("scene has no operations")
	}
	return &scene, nil
}

var featureOperations = map[string]timelapse.FeatureOperation{
	"":              timelapse.OperationJoin,
	"join":          timelapse.OperationJoin,
	"cut":           timelapse.OperationCut,
	"intersect":     timelapse.OperationIntersect,
	"new_body":      timelapse.OperationNewBody,
	"new_component": timelapse.OperationNewComponent,
}

var extentKinds = map[string]timelapse.ExtentKind{
	"distance":  timelapse.ExtentDistance,
	"symmetric": timelapse.ExtentSymmetric,
	"angle":     timelapse.ExtentAngle,
	"to_object": timelapse.ExtentOther,
	"all":       timelapse.ExtentOther,
}

// Build creates a stage holding the scene's design.
func (sc *Scene) Build() (*Stage, error) {
	s := New()
	if sc.Camera != nil {
		cam := timelapse.Camera{
			Eye:    vec(sc.Camera.Eye),
			Target: vec(sc.Camera.Target),
		}
		cam.UpVector = vec(sc.Camera.Up)
		if cam.UpVector == (timelapse.Vector3{}) {
			cam.UpVector = timelapse.Vector3{Z: 1}
		}
		s.WithCamera(cam, cam.UpVector)
	}

	named := make(map[string]*Body)
	for _, spec := range sc.Bodies {
		b, err := spec.build()
		if err != nil {
			return nil, err
		}
		named[b.name] = b
		s.AddBody(b)
	}
	occurrences := make(map[string]*Occurrence)

	for i, op := range sc.Operations {
		if err := sc.addOperation(s, op, named, occurrences); err != nil {
			return nil, fmt.Errorf("operation %d (%s): %w", i+1, op.Kind, err)
		}
	}

	if sc.Marker != 0 {
		if err := s.timeline.SetMarkerPosition(sc.Marker); err != nil {
			return nil, err
		}
		s.timeline.moves = nil
	}
	return s, nil
}

func (sc *Scene) addOperation(s *Stage, op OperationSpec, named map[string]*Body, occurrences map[string]*Occurrence) error {
	kind, ok := timelapse.LookupKind(op.Kind)
	if !ok {
		return fmt.Errorf("unknown kind %q", op.Kind)
	}

	var opts []ItemOption
	if op.Suppressed {
		opts = append(opts, Suppressed())
	}
	if op.Group {
		opts = append(opts, Grouped())
	}
	if op.Absent {
		s.Add(nil, opts...)
		return nil
	}

	switch kind {
	case timelapse.KindExtrude:
		fop, ok := featureOperations[op.Operation]
		if !ok {
			return fmt.Errorf("unknown operation %q", op.Operation)
		}
		ek, p, err := op.Extent.extent()
		if err != nil {
			return err
		}
		var bodies []*Body
		if op.Body != nil {
			b, err := op.Body.build()
			if err != nil {
				return err
			}
			named[b.name] = b
			bodies = append(bodies, b)
		}
		e := NewExtrude(fop, ek, p, bodies...)
		if op.ExtentTwo != nil {
			ek2, p2, err := op.ExtentTwo.extent()
			if err != nil {
				return err
			}
			e.WithSideTwo(ek2, p2)
		}
		s.Add(e, opts...)

	case timelapse.KindRevolve:
		ek, p, err := op.Extent.extent()
		if err != nil {
			return err
		}
		var bodies []*Body
		if op.Body != nil {
			b, err := op.Body.build()
			if err != nil {
				return err
			}
			named[b.name] = b
			bodies = append(bodies, b)
		}
		s.Add(NewRevolve(ek, p, op.Symmetric, bodies...), opts...)

	case timelapse.KindRectangularPattern:
		src, ok := named[op.Source]
		if op.Source != "" && !ok {
			return fmt.Errorf("unknown source body %q", op.Source)
		}
		s.Add(NewPattern(src, op.QuantityOne.param("quantityOne"), op.DistanceOne.param("distanceOne")).
			WithDirectionTwo(op.QuantityTwo.param("quantityTwo"), op.DistanceTwo.param("distanceTwo")), opts...)

	case timelapse.KindMove:
		m := IdentityTransform()
		if len(op.Transform) != 0 {
			if len(op.Transform) != 16 {
				return fmt.Errorf("transform has %d values, want 16", len(op.Transform))
			}
			copy(m[:], op.Transform)
		}
		s.Add(NewMove(m), opts...)

	case timelapse.KindMirror:
		s.Add(NewMirror(op.MirrorBodies, op.MirrorInputs), opts...)

	case timelapse.KindOccurrence:
		if op.Occurrence == nil {
			return errors.New("occurrence needs a component")
		}
		var bodies []*Body
		for _, spec := range op.Occurrence.Bodies {
			b, err := spec.build()
			if err != nil {
				return err
			}
			bodies = append(bodies, b)
		}
		o := NewOccurrence(NewComponent(op.Occurrence.Name, bodies...), op.Occurrence.Referenced)
		if op.Occurrence.Locked {
			o.FailBreakLink(ErrLinkLocked)
		}
		occurrences[op.Occurrence.Name] = o
		s.AddOccurrence(o)

	case timelapse.KindJoint:
		var occ *Occurrence
		if op.Joins != "" {
			if occ, ok = occurrences[op.Joins]; !ok {
				return fmt.Errorf("unknown occurrence %q", op.Joins)
			}
		}
		s.Add(NewJoint(occ), opts...)

	default:
		s.Add(NewGeneric(kind), opts...)
	}
	return nil
}

func (p *ParamSpec) param(fallback string) *Parameter {
	if p == nil {
		return nil
	}
	name := p.Name
	if name == "" {
		name = fallback
	}
	out := NewParameter(name, p.Value, p.Unit)
	if p.Expression != "" {
		out.WithExpression(p.Expression)
	}
	if p.Min != nil || p.Max != nil {
		lo, hi := math.Inf(-1), math.Inf(1)
		if p.Min != nil {
			lo = *p.Min
		}
		if p.Max != nil {
			hi = *p.Max
		}
		out.WithBounds(lo, hi)
	}
	return out
}

func (p *ParamSpec) extent() (timelapse.ExtentKind, *Parameter, error) {
	if p == nil {
		return timelapse.ExtentOther, nil, nil
	}
	kind, ok := extentKinds[p.Type]
	if !ok {
		return 0, nil, fmt.Errorf("unknown extent type %q", p.Type)
	}
	if kind == timelapse.ExtentOther {
		return kind, nil, nil
	}
	return kind, p.param(p.Type), nil
}

func (b BodySpec) build() (*Body, error) {
	if len(b.Size) != 2 {
		return nil, fmt.Errorf("body %q: size needs width and depth", b.Name)
	}
	body := NewBody(b.Name, vec(b.Origin), b.Size[0], b.Size[1], b.Height)
	if b.Color != "" {
		c, err := parseHexColor(b.Color)
		if err != nil {
			return nil, fmt.Errorf("body %q: %w", b.Name, err)
		}
		body.WithColor(c)
	}
	return body, nil
}

func vec(v []float64) timelapse.Vector3 {
	var out [3]float64
	copy(out[:], v)
	return timelapse.Vector3{X: out[0], Y: out[1], Z: out[2]}
}

func parseHexColor(s string) (color.RGBA, error) {
	c := color.RGBA{A: 0xff}
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("color %q: %w", s, err)
	}
	return c, nil
}
