package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/timelapse"
	"github.com/teranos/timelapse/report"
	"github.com/teranos/timelapse/stage"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testScene = `
name: plate
bodies:
  - {name: plate, origin: [-5, -5, 0], size: [10, 10], height: 1}
operations:
  - kind: sketch
  - kind: extrude
    operation: new_body
    extent: {type: distance, value: 6, unit: mm}
    body: {name: boss, origin: [0, 0, 1], size: [3, 3]}
  - kind: move
`

func writeScene(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testScene), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// renderArgs renders the test scene small and without orbit.
func renderArgs(scene, output, folder string) []string {
	return []string{
		"render", "--scene", scene,
		"--output", output, "--folder", folder,
		"--width", "16", "--height", "16",
		"--frames-per-operation", "3",
		"--rotate=false",
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("", nil)
	require.NoError(t, err)
	if diff := cmp.Diff(timelapse.DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_FileThenFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timelapse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
width: 640
height: 480
framesPerOperation: 3
rotate: false
folderName: from-file
`), 0644))

	flags := pflag.NewFlagSet("render", pflag.ContinueOnError)
	addConfigFlags(flags)
	require.NoError(t, flags.Parse([]string{"--width", "320", "--final-frames", "4"}))

	cfg, err := loadConfig(path, flags)
	require.NoError(t, err)

	want := timelapse.DefaultConfig()
	want.Width = 320
	want.Height = 480
	want.FramesPerOperation = 3
	want.Rotate = false
	want.FolderName = "from-file"
	want.FinalFrames = 4
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestRenderCommand(t *testing.T) {
	scene := writeScene(t)
	base := t.TempDir()

	stdout, stderr, err := execute(t, renderArgs(scene, base, "run")...)
	require.NoError(t, err)

	assert.Contains(t, stderr, timelapse.Warning)
	assert.Contains(t, stdout, "3 frames in")
	assert.Contains(t, stdout, "report: ")

	dir := filepath.Join(base, "run")
	for i := 0; i < 3; i++ {
		assert.FileExists(t, filepath.Join(dir, timelapse.FrameName(i, ".png")))
	}
	assert.NoFileExists(t, filepath.Join(dir, timelapse.FrameName(3, ".png")))
	assert.FileExists(t, filepath.Join(dir, timelapse.LogFileName))
	assert.FileExists(t, filepath.Join(dir, report.IndexFileName))

	m, err := report.ReadManifest(dir)
	require.NoError(t, err)
	assert.True(t, m.Success)
	assert.Equal(t, 3, m.Frames)
	assert.Equal(t, 3, m.Config.End)
}

func TestRenderCommand_NoReport(t *testing.T) {
	base := t.TempDir()
	args := append(renderArgs(writeScene(t), base, "run"), "--no-report")

	_, _, err := execute(t, args...)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(base, "run", report.ManifestFileName))
}

func TestRenderCommand_Errors(t *testing.T) {
	_, _, err := execute(t, "render")
	assert.ErrorContains(t, err, `"scene"`)

	_, _, err = execute(t, renderArgs(filepath.Join(t.TempDir(), "missing.yaml"), t.TempDir(), "run")...)
	assert.Error(t, err)

	base := t.TempDir()
	args := append(renderArgs(writeScene(t), base, "run"), "--start", "5")
	_, _, err = execute(t, args...)
	require.Error(t, err)
	assert.NoDirExists(t, filepath.Join(base, "run"))
}

func TestRenderCommand_StumblesAreReported(t *testing.T) {
	base := t.TempDir()
	// A directory in place of the second frame makes that save fail.
	require.NoError(t, os.MkdirAll(filepath.Join(base, "run", timelapse.FrameName(1, ".png")), 0755))

	args := append(renderArgs(writeScene(t), base, "run"), "--no-report")
	stdout, stderr, err := execute(t, args...)
	require.NoError(t, err)

	assert.Contains(t, stdout, "3 frames in")
	assert.Contains(t, stdout, "(1 stumbles)")
	assert.Contains(t, stderr, "[session] 0 trips, 1 stumbles")
	assert.Contains(t, stderr, "failed saving viewport image")
}

func TestReportAndDashboardCommands(t *testing.T) {
	scene := writeScene(t)
	base := t.TempDir()
	for _, folder := range []string{"first", "second"} {
		_, _, err := execute(t, renderArgs(scene, base, folder)...)
		require.NoError(t, err)
	}

	index := filepath.Join(base, "first", report.IndexFileName)
	require.NoError(t, os.Remove(index))
	stdout, _, err := execute(t, "report", filepath.Join(base, "first"))
	require.NoError(t, err)
	assert.Contains(t, stdout, index)
	assert.FileExists(t, index)

	_, _, err = execute(t, "report", t.TempDir())
	assert.Error(t, err)

	stdout, _, err = execute(t, "dashboard", base)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 runs")
	assert.Contains(t, stdout, "second")
	assert.FileExists(t, filepath.Join(base, report.IndexFileName))
}

func TestCompareCommand(t *testing.T) {
	scene := writeScene(t)
	base := t.TempDir()
	for _, folder := range []string{"baseline", "latest"} {
		_, _, err := execute(t, renderArgs(scene, base, folder)...)
		require.NoError(t, err)
	}
	baseline, latest := filepath.Join(base, "baseline"), filepath.Join(base, "latest")

	stdout, _, err := execute(t, "compare", baseline, latest)
	require.NoError(t, err)
	assert.Contains(t, stdout, "0 of 3 frames differ")

	// Overwrite one frame with a blank image.
	blank := image.NewRGBA(image.Rect(0, 0, 16, 16))
	blank.Set(0, 0, color.Black)
	f, err := os.Create(filepath.Join(latest, timelapse.FrameName(1, ".png")))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, blank))
	require.NoError(t, f.Close())

	stdout, _, err = execute(t, "compare", baseline, latest)
	assert.ErrorIs(t, err, report.ErrRegression)
	assert.Contains(t, stdout, "1 of 3 frames differ")

	_, _, err = execute(t, "compare", "--update", baseline, latest)
	require.NoError(t, err)
	stdout, _, err = execute(t, "compare", baseline, latest)
	require.NoError(t, err)
	assert.Contains(t, stdout, "0 of 3 frames differ")
}

func TestProgressModel(t *testing.T) {
	cfg := timelapse.DefaultConfig()
	cfg.FolderName = "bracket"
	cfg.Start, cfg.End = 1, 4

	var m tea.Model = newProgressModel(cfg)
	assert.Contains(t, m.View(), "Timelapse bracket")
	assert.Contains(t, m.View(), "0 frames")

	m, _ = m.Update(eventMsg{Type: timelapse.OperationStarted, Position: 3, Kind: timelapse.KindExtrude, Budget: 5})
	m, _ = m.Update(eventMsg{Type: timelapse.FrameEmitted, Position: 3, Kind: timelapse.KindExtrude, Frame: 6, Step: 1, Budget: 5, Saved: true})
	m, _ = m.Update(eventMsg{Type: timelapse.FrameEmitted, Position: 3, Kind: timelapse.KindExtrude, Frame: 7, Step: 2, Budget: 5})
	view := m.View()
	assert.Contains(t, view, "extrude at 3, frame 3/5")
	assert.Contains(t, view, "8 frames")
	assert.Contains(t, view, "1 not saved")
	assert.Equal(t, 0.5, m.(progressModel).fraction())

	m, _ = m.Update(eventMsg{Type: timelapse.OperationFinished, Position: 3, Kind: timelapse.KindExtrude})
	assert.Contains(t, m.View(), "done: 3 extrude")

	m, cmd := m.Update(doneMsg{result: &timelapse.Result{Duration: 1500 * time.Millisecond}})
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "finished in 1.5s")
	assert.Equal(t, 1.0, m.(progressModel).fraction())

	_, cmd = newProgressModel(cfg).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.NotNil(t, cmd)
}

func TestRunWithProgress(t *testing.T) {
	scene, err := stage.LoadScene(writeScene(t))
	require.NoError(t, err)
	host, err := scene.Build()
	require.NoError(t, err)

	cfg := timelapse.DefaultConfig()
	cfg.OutputPath = t.TempDir()
	cfg.Width, cfg.Height = 16, 16
	cfg.FramesPerOperation = 2
	cfg.Rotate = false

	var out bytes.Buffer
	result, err := runWithProgress(timelapse.NewSession(host, cfg), cfg.Normalize(3), nil, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Frames)
	assert.Contains(t, out.String(), "Timelapse timelapse")
}

func TestWatchFile(t *testing.T) {
	path := writeScene(t)
	ctx, cancel := context.WithCancel(context.Background())

	calls := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, func() error {
			calls <- struct{}{}
			return nil
		})
	}()

	// The watch starts asynchronously, so keep saving until it reacts.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
wait:
	for {
		select {
		case <-calls:
			break wait
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte(testScene), 0644))
		case <-deadline:
			t.Fatal("scene change was not noticed")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
