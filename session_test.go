package timelapse_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/timelapse"
	"github.com/teranos/timelapse/stage"
	"github.com/teranos/timelapse/trip"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRun_SingleExtrude(t *testing.T) {
	s := stage.New()
	d := distance("depth", 10)
	s.Add(sketch())
	s.Add(stage.NewExtrude(timelapse.OperationNewBody, timelapse.ExtentDistance, d, newBody("boss")))
	s.Add(sketch())
	s.Add(sketch())

	cfg := testConfig(t)
	cfg.Start, cfg.End = 1, 3

	result, err := timelapse.RunTimelapse(s, cfg)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Frames)
	assert.Equal(t, expectedFrames(5, ".png"), framesIn(t, result.OutputDir, ".png"))
	assert.Equal(t, []float64{2, 4, 6, 8, 10, 10}, d.Writes())
	assert.Equal(t, 10.0, d.Value())
	assert.Equal(t, "10 mm", d.Expression())
	assert.Empty(t, result.Stumbles)

	assert.FileExists(t, filepath.Join(result.OutputDir, timelapse.LogFileName))
	assert.NotEmpty(t, result.RunID)
	assert.Empty(t, result.TripReport)
}

// buildMixedTimeline lays out, by position: sketch, extrude, move, revolve,
// pattern, occurrence, joint, suppressed combine, other, mirror and an
// unresolved entry.
func buildMixedTimeline() (*stage.Stage, *stage.Revolve, *stage.Occurrence) {
	s := stage.New()
	s.AddBody(stage.NewBody("plate", timelapse.Vector3{X: -10, Y: -10}, 20, 20, 2))

	s.Add(sketch())
	s.Add(stage.NewExtrude(timelapse.OperationNewBody, timelapse.ExtentDistance, distance("d", 6), newBody("boss")))
	s.Add(stage.NewMove(stage.IdentityTransform()))
	r := stage.NewRevolve(timelapse.ExtentAngle, stage.NewParameter("angle", 90, "deg"), false)
	s.Add(r)
	s.Add(stage.NewPattern(newBody("peg"), stage.NewParameter("q", 4, ""), distance("spacing", 12)))
	occ := stage.NewOccurrence(stage.NewComponent("bolt", newBody("shank")), true)
	s.AddOccurrence(occ)
	s.Add(stage.NewJoint(occ))
	s.Add(stage.NewGeneric(timelapse.KindCombine), stage.Suppressed())
	s.Add(stage.NewGeneric(timelapse.KindOther))
	s.Add(stage.NewMirror(1, 1))
	s.Add(nil)
	return s, r, occ
}

func TestRun_FrameCounterCoversAnimatedOperations(t *testing.T) {
	s, r, occ := buildMixedTimeline()

	cfg := testConfig(t)
	cfg.FramesPerOperation = 3
	cfg.FinalFrames = 2
	cfg.End = 9

	result, err := timelapse.RunTimelapse(s, cfg)
	require.NoError(t, err)

	// extrude, revolve, pattern, joint, other; the last one holds 2 more.
	assert.Equal(t, 5*3+2, result.Frames)
	assert.Equal(t, expectedFrames(17, ".png"), framesIn(t, result.OutputDir, ".png"))

	assert.Equal(t, 3, r.Refreshes())
	assert.False(t, occ.IsReferencedComponent())
	assert.Equal(t, 1.0, occ.Component().Opacity())

	byPosition := make(map[int]timelapse.OperationRecord)
	for _, rec := range result.Operations {
		byPosition[rec.Position] = rec
	}
	assert.Equal(t, "skip", byPosition[1].Disposition)
	assert.Equal(t, "log", byPosition[3].Disposition)
	assert.Equal(t, 0, byPosition[3].Frames)
	assert.Equal(t, "animate", byPosition[9].Disposition)
	assert.Equal(t, 5, byPosition[9].Frames)
	assert.Equal(t, 12, byPosition[9].FirstFrame)
	assert.Equal(t, 2, byPosition[5].Targets)
	assert.Equal(t, 1, byPosition[7].Fades)
}

func TestRun_MoveWritesOneLogLine(t *testing.T) {
	s, _, _ := buildMixedTimeline()

	cfg := testConfig(t)
	cfg.Start, cfg.End = 3, 3

	result, err := timelapse.RunTimelapse(s, cfg)
	require.NoError(t, err)

	assert.Zero(t, result.Frames)
	assert.Empty(t, framesIn(t, result.OutputDir, ".png"))
	want := "3 move: [1 0 0 0 0 1 0 0 0 0 1 0 0 0 0 1]"
	assert.Equal(t, []string{want}, result.LogLines)
	assert.Equal(t, want+"\n", readFile(t, filepath.Join(result.OutputDir, timelapse.LogFileName)))
}

func TestRun_MirrorAndUnresolvedEntries(t *testing.T) {
	s, _, _ := buildMixedTimeline()

	cfg := testConfig(t)
	cfg.Start, cfg.End = 10, 11

	result, err := timelapse.RunTimelapse(s, cfg)
	require.NoError(t, err)
	assert.Zero(t, result.Frames)
	assert.Equal(t, []string{"10 mirror: bodies 1", "10 mirror: inputEntities 1"}, result.LogLines)
}

func TestRun_FinalFramesOnlyForLastPosition(t *testing.T) {
	s := stage.New()
	s.Add(stage.NewGeneric(timelapse.KindOther))
	s.Add(sketch())

	cfg := testConfig(t)
	cfg.FinalFrames = 4

	result, err := timelapse.RunTimelapse(s, cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Frames, "the last position is skipped, so nothing is held")

	cfg.End = 1
	cfg.FolderName = "held"
	result, err = timelapse.RunTimelapse(s, cfg)
	require.NoError(t, err)
	assert.Equal(t, 9, result.Frames)
}

func TestRun_NegativeFinalFramesAreIgnored(t *testing.T) {
	s := stage.New()
	s.Add(stage.NewGeneric(timelapse.KindOther))

	cfg := testConfig(t)
	cfg.FinalFrames = -3

	result, err := timelapse.RunTimelapse(s, cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Frames)
	assert.Zero(t, result.Config.FinalFrames)
}

func TestRun_EndDefaultsToMarker(t *testing.T) {
	s := stage.New()
	s.Add(stage.NewGeneric(timelapse.KindOther))
	s.Add(stage.NewGeneric(timelapse.KindOther))
	s.Add(stage.NewGeneric(timelapse.KindOther))
	require.NoError(t, s.Timeline().SetMarkerPosition(2))

	cfg := testConfig(t)
	cfg.End = 0

	result, err := timelapse.RunTimelapse(s, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Config.End)
	assert.Equal(t, 10, result.Frames)
	assert.Equal(t, 2, s.Timeline().MarkerPosition(), "marker is put back")
	assert.Equal(t, []int{2, 1, 2, 2}, s.Track().Moves())
}

func TestRun_RotationDisabledKeepsEye(t *testing.T) {
	s, _, _ := buildMixedTimeline()

	cfg := testConfig(t)
	cfg.Rotate = false
	cfg.End = 9

	_, err := timelapse.RunTimelapse(s, cfg)
	require.NoError(t, err)

	captures := s.View().Captures()
	require.NotEmpty(t, captures)
	for _, c := range captures {
		assert.Equal(t, captures[0].Eye, c.Eye)
	}
	assert.Zero(t, s.View().Commits())
}

func TestRun_RotationOrbitsTheDesign(t *testing.T) {
	s := stage.New()
	s.Add(stage.NewGeneric(timelapse.KindOther))

	cfg := testConfig(t)
	cfg.Rotate = true
	cfg.FramesPerRotation = 4
	cfg.FramesPerOperation = 4

	before, _ := s.Viewport().Camera()
	_, err := timelapse.RunTimelapse(s, cfg)
	require.NoError(t, err)

	captures := s.View().Captures()
	require.Len(t, captures, 4)
	assert.NotEqual(t, captures[0].Eye, captures[1].Eye)
	last := captures[3].Eye
	assert.InDelta(t, before.Eye.X, last.X, 1e-9)
	assert.InDelta(t, before.Eye.Y, last.Y, 1e-9)
	assert.InDelta(t, before.Eye.Z, last.Z, 1e-9)
	assert.Equal(t, 4, s.View().Commits())
}

func TestRun_FitToView(t *testing.T) {
	s := stage.New()
	s.AddBody(newBody("plate"))
	s.Add(stage.NewGeneric(timelapse.KindOther))

	cfg := testConfig(t)
	cfg.FitToView = true

	_, err := timelapse.RunTimelapse(s, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, s.View().Fits())
}

func TestRun_EmissionFailuresDoNotStopTheRun(t *testing.T) {
	s := stage.New()
	d := distance("depth", 10)
	s.Add(stage.NewExtrude(timelapse.OperationJoin, timelapse.ExtentDistance, d))
	s.View().FailCaptures(errors.New("viewport unavailable"))

	result, err := timelapse.RunTimelapse(s, testConfig(t))
	require.NoError(t, err)

	assert.Equal(t, 5, result.Frames)
	assert.Empty(t, framesIn(t, result.OutputDir, ".png"))
	require.Len(t, result.Stumbles, 5)
	for _, st := range result.Stumbles {
		assert.Equal(t, trip.TypeVisual, st.Type)
		assert.Equal(t, trip.Stumble, st.Severity)
	}
	assert.Equal(t, 10.0, d.Value())
	assert.Contains(t, result.TripReport, "[session] 0 trips, 5 stumbles")
	assert.Contains(t, result.TripReport, "viewport unavailable")
}

func TestRun_SaveOBJ(t *testing.T) {
	s := stage.New()
	s.AddBody(newBody("plate"))
	s.Add(stage.NewExtrude(timelapse.OperationJoin, timelapse.ExtentDistance, distance("d", 4), newBody("boss")))

	cfg := testConfig(t)
	cfg.SaveOBJ = true
	cfg.FramesPerOperation = 2

	result, err := timelapse.RunTimelapse(s, cfg)
	require.NoError(t, err)

	assert.Equal(t, expectedFrames(2, ".obj"), framesIn(t, result.OutputDir, ".obj"))
	assert.Equal(t, 2, s.Events())

	obj := readFile(t, filepath.Join(result.OutputDir, timelapse.FrameName(0, ".obj")))
	assert.True(t, strings.HasPrefix(obj, "# WaveFront *.obj file\n# Vertices: 16\n# Triangles : 24\n\n"))
	assert.True(t, strings.HasSuffix(obj, "\n# End of file"))
}

func TestRun_ObserverSeesEveryFrame(t *testing.T) {
	s := stage.New()
	s.Add(stage.NewGeneric(timelapse.KindOther))
	s.Add(stage.NewGeneric(timelapse.KindOther))

	var events []timelapse.Event
	result, err := timelapse.NewSession(s, testConfig(t)).
		WithObserver(func(e timelapse.Event) { events = append(events, e) }).
		Run()
	require.NoError(t, err)

	var frames []int
	started := 0
	for _, e := range events {
		switch e.Type {
		case timelapse.FrameEmitted:
			frames = append(frames, e.Frame)
		case timelapse.OperationStarted:
			started++
		}
	}
	assert.Equal(t, 2, started)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, frames)
	assert.Equal(t, 10, result.Frames)
}

func TestRun_InvalidConfig(t *testing.T) {
	s := stage.New()
	s.Add(sketch())

	cfg := testConfig(t)
	cfg.End = 5

	result, err := timelapse.RunTimelapse(s, cfg)
	require.Error(t, err)

	var tr *trip.Trip
	require.True(t, errors.As(err, &tr))
	assert.True(t, tr.IsFall())
	assert.Equal(t, trip.TypeSystem, tr.Type)
	assert.Zero(t, result.Frames)
	_, statErr := os.Stat(result.OutputDir)
	assert.True(t, os.IsNotExist(statErr), "nothing is written for an invalid config")
}

// explodingParameter panics on write, like a host losing its document.
type explodingParameter struct {
	*stage.Parameter
}

func (explodingParameter) SetValue(float64) error {
	panic("document closed")
}

type explodingExtrude struct {
	*stage.Extrude
	param timelapse.Parameter
}

func (e explodingExtrude) ExtentOne() timelapse.Extent {
	return timelapse.Extent{Kind: timelapse.ExtentDistance, Param: e.param}
}

func TestRun_PanicBecomesFall(t *testing.T) {
	s := stage.New()
	s.Add(explodingExtrude{
		Extrude: stage.NewExtrude(timelapse.OperationJoin, timelapse.ExtentDistance, nil),
		param:   explodingParameter{distance("d", 3)},
	})

	result, err := timelapse.RunTimelapse(s, testConfig(t))
	require.Error(t, err)

	var tr *trip.Trip
	require.True(t, errors.As(err, &tr))
	assert.Equal(t, trip.TypePanic, tr.Type)
	assert.True(t, tr.IsFall())
	assert.Equal(t, 1, tr.Context["position"])
	assert.NotNil(t, result)
}

// faultyParameter fails the write of one intermediate value, either with a
// plain host error or by panicking.
type faultyParameter struct {
	*stage.Parameter
	at     float64
	panics bool
}

func (p faultyParameter) SetValue(v float64) error {
	if v == p.at {
		if p.panics {
			panic("document closed")
		}
		return errors.New("host busy")
	}
	return p.Parameter.SetValue(v)
}

func faultyExtrude(p faultyParameter) timelapse.Entity {
	return explodingExtrude{
		Extrude: stage.NewExtrude(timelapse.OperationJoin, timelapse.ExtentDistance, nil),
		param:   p,
	}
}

func TestRun_FailureRestoresDesignAndMarker(t *testing.T) {
	for name, panics := range map[string]bool{"host error": false, "host panic": true} {
		t.Run(name, func(t *testing.T) {
			s := stage.New()
			d := distance("d", 10)
			s.Add(sketch())
			s.Add(faultyExtrude(faultyParameter{Parameter: d, at: 6, panics: panics}))
			s.Add(sketch())
			s.Add(sketch())
			require.Equal(t, 4, s.Timeline().MarkerPosition())

			cfg := testConfig(t)
			cfg.Start, cfg.End = 1, 3
			result, err := timelapse.RunTimelapse(s, cfg)
			require.Error(t, err)

			var tr *trip.Trip
			require.True(t, errors.As(err, &tr))
			assert.True(t, tr.IsFall())
			assert.Equal(t, 2, result.Frames)

			assert.Equal(t, 4, s.Timeline().MarkerPosition(), "marker is put back")
			assert.Equal(t, 10.0, d.Value())
			assert.Equal(t, "10 mm", d.Expression())
			assert.Equal(t, []float64{2, 4, 10}, d.Writes())
		})
	}
}

func TestRun_InvalidConfigLeavesMarker(t *testing.T) {
	s := stage.New()
	s.Add(sketch())
	s.Add(sketch())
	require.NoError(t, s.Timeline().SetMarkerPosition(1))

	cfg := testConfig(t)
	cfg.Start = 2
	_, err := timelapse.RunTimelapse(s, cfg)
	require.Error(t, err)
	assert.Equal(t, []int{1}, s.Track().Moves())
}

func TestRun_Logging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := stage.New()
	s.Add(stage.NewGeneric(timelapse.KindOther))

	_, err := timelapse.NewSession(s, testConfig(t)).WithLogger(zap.New(core)).Run()
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("Timelapse started").Len())
	finished := logs.FilterMessage("Timelapse finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, int64(5), finished[0].ContextMap()["frames"])
}
