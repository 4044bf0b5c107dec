package stage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/teranos/timelapse"
)

// Parameter is an in-memory model parameter. Writing a value replaces the
// expression with a literal, as CAD hosts do; writing a literal expression
// updates the value, while formulas leave the value alone.
type Parameter struct {
	name       string
	value      float64
	expression string
	unit       string

	bounded  bool
	min, max float64

	writes []float64
}

// NewParameter creates a parameter holding a literal value.
func NewParameter(name string, value float64, unit string) *Parameter {
	return &Parameter{
		name:       name,
		value:      value,
		expression: literal(value, unit),
		unit:       unit,
	}
}

// WithExpression replaces the expression without evaluating it.
func (p *Parameter) WithExpression(expr string) *Parameter {
	p.expression = expr
	return p
}

// WithBounds makes values outside [min, max] infeasible.
func (p *Parameter) WithBounds(min, max float64) *Parameter {
	p.bounded = true
	p.min, p.max = min, max
	return p
}

func (p *Parameter) Name() string       { return p.name }
func (p *Parameter) Value() float64     { return p.value }
func (p *Parameter) Expression() string { return p.expression }

// SetValue stores v unless it is out of bounds.
func (p *Parameter) SetValue(v float64) error {
	if p.bounded && (v < p.min || v > p.max) {
		return fmt.Errorf("%s = %g outside [%g, %g]: %w", p.name, v, p.min, p.max, timelapse.ErrInfeasible)
	}
	p.value = v
	p.expression = literal(v, p.unit)
	p.writes = append(p.writes, v)
	return nil
}

// SetExpression stores expr, taking its value when it is a plain literal.
func (p *Parameter) SetExpression(expr string) error {
	if expr == "" {
		return fmt.Errorf("%s: empty expression", p.name)
	}
	if v, ok := parseLiteral(expr, p.unit); ok {
		p.value = v
	}
	p.expression = expr
	return nil
}

// Writes returns every value accepted by SetValue, in order.
func (p *Parameter) Writes() []float64 {
	return append([]float64(nil), p.writes...)
}

func literal(v float64, unit string) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if unit == "" {
		return s
	}
	return s + " " + unit
}

func parseLiteral(expr, unit string) (float64, bool) {
	fields := strings.Fields(expr)
	switch {
	case len(fields) == 1:
	case len(fields) == 2 && fields[1] == unit:
	default:
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	return v, err == nil
}

// asParameter keeps nil pointers from turning into non-nil interfaces.
func asParameter(p *Parameter) timelapse.Parameter {
	if p == nil {
		return nil
	}
	return p
}
