package stage

import (
	"fmt"

	"github.com/teranos/timelapse"
)

// Timeline is an in-memory feature history.
type Timeline struct {
	items  []timelapse.Operation
	marker int
	moves  []int
}

func (t *Timeline) Count() int          { return len(t.items) }
func (t *Timeline) MarkerPosition() int { return t.marker }

// SetMarkerPosition rolls the design to the state after position. Zero is
// the empty design.
func (t *Timeline) SetMarkerPosition(position int) error {
	if position < 0 || position > len(t.items) {
		return fmt.Errorf("marker position %d outside 0..%d", position, len(t.items))
	}
	t.marker = position
	t.moves = append(t.moves, position)
	return nil
}

// Item returns the operation at a 1-based position.
func (t *Timeline) Item(position int) (timelapse.Operation, error) {
	if position < 1 || position > len(t.items) {
		return timelapse.Operation{}, fmt.Errorf("timeline position %d outside 1..%d", position, len(t.items))
	}
	return t.items[position-1], nil
}

// Items returns the timeline entries in order.
func (t *Timeline) Items() []timelapse.Operation {
	return append([]timelapse.Operation(nil), t.items...)
}

// Moves returns every marker position set, in order.
func (t *Timeline) Moves() []int {
	return append([]int(nil), t.moves...)
}

func (t *Timeline) append(op timelapse.Operation) int {
	op.Position = len(t.items) + 1
	t.items = append(t.items, op)
	t.marker = op.Position
	return op.Position
}
