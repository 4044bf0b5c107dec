package timelapse_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/timelapse"
	"github.com/teranos/timelapse/stage"
)

var skipKinds = []timelapse.Kind{
	timelapse.KindSketch,
	timelapse.KindConstructionPlane,
	timelapse.KindConstructionAxis,
	timelapse.KindConstructionPoint,
	timelapse.KindThreadFeature,
	timelapse.KindCombine,
	timelapse.KindCanvas,
	timelapse.KindOccurrence,
}

func TestClassify(t *testing.T) {
	in := timelapse.NewInterpreter(5, nil)
	extrude := stage.NewExtrude(timelapse.OperationJoin, timelapse.ExtentDistance, distance("d", 10))

	tests := []struct {
		name string
		op   timelapse.Operation
		want timelapse.Disposition
	}{
		{"extrude", timelapse.Operation{Entity: extrude}, timelapse.Animate},
		{"suppressed", timelapse.Operation{Entity: extrude, Suppressed: true}, timelapse.Skip},
		{"group", timelapse.Operation{Entity: extrude, Group: true}, timelapse.Skip},
		{"unresolved", timelapse.Operation{}, timelapse.Skip},
		{"other", timelapse.Operation{Entity: stage.NewGeneric(timelapse.KindOther)}, timelapse.Animate},
		{"move", timelapse.Operation{Entity: stage.NewMove(stage.IdentityTransform())}, timelapse.Animate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, in.Classify(tt.op).Disposition)
		})
	}

	for _, k := range skipKinds {
		plan := in.Classify(timelapse.Operation{Entity: stage.NewGeneric(k)})
		assert.True(t, plan.Skip(), k.String())
		assert.Equal(t, k, plan.Kind)
	}
}

func TestExtractTargets_SkipKindsHaveNoTargets(t *testing.T) {
	in := timelapse.NewInterpreter(5, nil)
	for _, k := range skipKinds {
		plan := in.ExtractTargets(stage.NewGeneric(k))
		assert.True(t, plan.Skip(), k.String())
		assert.Empty(t, plan.Targets)
		assert.Empty(t, plan.Fades)
	}
	assert.True(t, in.ExtractTargets(nil).Skip())
}

func TestExtractTargets_OtherAnimatesWithoutTargets(t *testing.T) {
	plan := timelapse.NewInterpreter(5, nil).ExtractTargets(stage.NewGeneric(timelapse.KindOther))
	assert.Equal(t, timelapse.Animate, plan.Disposition)
	assert.Empty(t, plan.Targets)
	assert.Empty(t, plan.Fades)
}

func TestExtractTargets_Extrude(t *testing.T) {
	in := timelapse.NewInterpreter(5, nil)

	t.Run("one side", func(t *testing.T) {
		d := distance("d", 10)
		plan := in.ExtractTargets(stage.NewExtrude(timelapse.OperationNewBody, timelapse.ExtentDistance, d, newBody("b")))
		require.Len(t, plan.Targets, 1)
		assert.Same(t, d, plan.Targets[0].Param)
		assert.Equal(t, 2.0, plan.Targets[0].Step)
		assert.Zero(t, plan.Targets[0].Offset)
		assert.Empty(t, plan.Fades)
	})

	t.Run("two sides", func(t *testing.T) {
		plan := in.ExtractTargets(stage.NewExtrude(timelapse.OperationJoin, timelapse.ExtentSymmetric, distance("d1", 10)).
			WithSideTwo(timelapse.ExtentAngle, stage.NewParameter("a", 45, "deg")))
		require.Len(t, plan.Targets, 2)
		assert.Equal(t, 9.0, plan.Targets[1].Step)
	})

	t.Run("second side ignored unless two-sided", func(t *testing.T) {
		e := stage.NewExtrude(timelapse.OperationJoin, timelapse.ExtentDistance, distance("d1", 10))
		plan := in.ExtractTargets(e)
		assert.Len(t, plan.Targets, 1)
	})

	t.Run("new body without numeric extent fades in", func(t *testing.T) {
		a, b := newBody("a"), newBody("b")
		plan := in.ExtractTargets(stage.NewExtrude(timelapse.OperationNewBody, timelapse.ExtentOther, nil, a, b))
		assert.Equal(t, timelapse.Animate, plan.Disposition)
		assert.Empty(t, plan.Targets)
		require.Len(t, plan.Fades, 2)
		assert.Same(t, a, plan.Fades[0])
		assert.Same(t, b, plan.Fades[1])
	})

	t.Run("two non-numeric sides fade once", func(t *testing.T) {
		plan := in.ExtractTargets(stage.NewExtrude(timelapse.OperationNewComponent, timelapse.ExtentOther, nil, newBody("a")).
			WithSideTwo(timelapse.ExtentOther, nil))
		assert.Len(t, plan.Fades, 1)
	})

	t.Run("cut without numeric extent does nothing", func(t *testing.T) {
		plan := in.ExtractTargets(stage.NewExtrude(timelapse.OperationCut, timelapse.ExtentOther, nil, newBody("a")))
		assert.Equal(t, timelapse.Animate, plan.Disposition)
		assert.Empty(t, plan.Targets)
		assert.Empty(t, plan.Fades)
	})
}

func TestExtractTargets_Revolve(t *testing.T) {
	in := timelapse.NewInterpreter(4, nil)
	angle := stage.NewParameter("angle", 360, "deg")

	plan := in.ExtractTargets(stage.NewRevolve(timelapse.ExtentAngle, angle, true))
	require.Len(t, plan.Targets, 1)
	assert.Equal(t, 90.0, plan.Targets[0].Step)

	plan = in.ExtractTargets(stage.NewRevolve(timelapse.ExtentOther, nil, false))
	assert.Equal(t, timelapse.Animate, plan.Disposition)
	assert.Empty(t, plan.Targets)
}

func TestExtractTargets_MoveAndMirrorAreLogged(t *testing.T) {
	in := timelapse.NewInterpreter(5, nil)

	plan := in.ExtractTargets(stage.NewMove(stage.IdentityTransform()))
	assert.Equal(t, timelapse.LogOnly, plan.Disposition)
	assert.Equal(t, []string{"move: [1 0 0 0 0 1 0 0 0 0 1 0 0 0 0 1]"}, plan.LogLines)

	plan = in.ExtractTargets(stage.NewMove(stage.IdentityTransform()).FailTransform(errors.New("no transform")))
	assert.Equal(t, []string{"move: no transform"}, plan.LogLines)

	plan = in.ExtractTargets(stage.NewMirror(2, 3))
	assert.Equal(t, timelapse.LogOnly, plan.Disposition)
	assert.Equal(t, []string{"mirror: bodies 2", "mirror: inputEntities 3"}, plan.LogLines)

	plan = in.ExtractTargets(stage.NewMirror(2, 3).FailInputs(errors.New("stale")))
	assert.Equal(t, []string{"mirror: bodies 2", "mirror: stale"}, plan.LogLines)
}

func TestExtractTargets_Joint(t *testing.T) {
	in := timelapse.NewInterpreter(5, nil)

	comp := stage.NewComponent("bolt", newBody("shank"))
	occ := stage.NewOccurrence(comp, true)
	plan := in.ExtractTargets(stage.NewJoint(occ))
	require.Len(t, plan.Fades, 1)
	assert.Same(t, comp, plan.Fades[0])
	assert.False(t, occ.IsReferencedComponent(), "link is broken before fading")

	locked := stage.NewOccurrence(stage.NewComponent("nut"), true).FailBreakLink(stage.ErrLinkLocked)
	plan = in.ExtractTargets(stage.NewJoint(locked))
	assert.Len(t, plan.Fades, 1, "a failed break still fades")

	plan = in.ExtractTargets(stage.NewJoint(nil))
	assert.Equal(t, timelapse.Animate, plan.Disposition)
	assert.Empty(t, plan.Fades)
}

func TestExtractTargets_Pattern(t *testing.T) {
	in := timelapse.NewInterpreter(5, nil)

	t.Run("step and spacing", func(t *testing.T) {
		q, d := stage.NewParameter("q", 12, ""), distance("d", 22)
		plan := in.ExtractTargets(stage.NewPattern(nil, q, d))
		require.Len(t, plan.Targets, 2)
		assert.Equal(t, 2.0, plan.Targets[0].Step)
		assert.Equal(t, 4.0, plan.Targets[1].Step)
		assert.Equal(t, -2.0, plan.Targets[1].Offset)
	})

	t.Run("direction one step is at least one", func(t *testing.T) {
		plan := in.ExtractTargets(stage.NewPattern(nil, stage.NewParameter("q", 3, ""), nil))
		require.Len(t, plan.Targets, 1)
		assert.Equal(t, 1.0, plan.Targets[0].Step)
	})

	t.Run("direction two step may be zero", func(t *testing.T) {
		plan := in.ExtractTargets(stage.NewPattern(nil, nil, nil).
			WithDirectionTwo(stage.NewParameter("q2", 3, ""), nil))
		require.Len(t, plan.Targets, 1)
		assert.Zero(t, plan.Targets[0].Step)
	})

	t.Run("single instance is left alone", func(t *testing.T) {
		plan := in.ExtractTargets(stage.NewPattern(nil, stage.NewParameter("q", 1, ""), distance("d", 10)))
		assert.Empty(t, plan.Targets)
	})
}

// brokenExtrude claims to be an extrude but cannot be read.
type brokenExtrude struct {
	*stage.Extrude
}

func (brokenExtrude) ExtentOne() timelapse.Extent {
	panic("lost reference")
}

func TestExtractTargets_UnreadableEntityIsSkipped(t *testing.T) {
	in := timelapse.NewInterpreter(5, nil)

	plan := in.ExtractTargets(brokenExtrude{stage.NewExtrude(timelapse.OperationJoin, timelapse.ExtentDistance, distance("d", 1))})
	assert.True(t, plan.Skip())
	assert.Equal(t, timelapse.KindExtrude, plan.Kind)

	plan = in.ExtractTargets(stage.NewGeneric(timelapse.KindRevolve))
	assert.True(t, plan.Skip(), "kind without its attributes")
}
