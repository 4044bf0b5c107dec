package timelapse_test

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/teranos/timelapse"
	"github.com/teranos/timelapse/stage"
)

// testConfig renders tiny frames into a per-test folder with the camera
// standing still.
func testConfig(t *testing.T) timelapse.Config {
	t.Helper()
	cfg := timelapse.DefaultConfig()
	cfg.OutputPath = t.TempDir()
	cfg.FolderName = "run"
	cfg.Width = 16
	cfg.Height = 16
	cfg.Rotate = false
	return cfg
}

func sketch() timelapse.Entity {
	return stage.NewGeneric(timelapse.KindSketch)
}

func distance(name string, v float64) *stage.Parameter {
	return stage.NewParameter(name, v, "mm")
}

func newBody(name string) *stage.Body {
	return stage.NewBody(name, timelapse.Vector3{}, 4, 4, 1)
}

// framesIn lists the frame files with extension ext in dir, sorted.
func framesIn(t *testing.T, dir, ext string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "frame_*"+ext))
	require.NoError(t, err)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	sort.Strings(names)
	return names
}

func expectedFrames(n int, ext string) []string {
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		names = append(names, timelapse.FrameName(i, ext))
	}
	return names
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
