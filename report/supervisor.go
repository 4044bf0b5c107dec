package report

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ErrRegression is returned when a run no longer matches its baseline.
var ErrRegression = errors.New("frames differ from baseline")

// FrameDiff is the comparison of one frame against its baseline.
type FrameDiff struct {
	Name       string
	Difference float64 // share of differing pixels, 1 when sizes differ
	Missing    bool    // no frame with this name in the current run
	DiffImage  string  // written when Difference exceeds the tolerance
}

// Supervisor keeps renders consistent between runs by comparing frames
// pixel by pixel against a baseline folder.
type Supervisor struct {
	baselineDir string
	currentDir  string
	tolerance   float64
	logger      *zap.Logger
}

// NewSupervisor compares currentDir against baselineDir with a 5% tolerance.
func NewSupervisor(baselineDir, currentDir string) *Supervisor {
	return &Supervisor{
		baselineDir: baselineDir,
		currentDir:  currentDir,
		tolerance:   0.05,
		logger:      zap.NewNop(),
	}
}

// WithTolerance sets the share of pixels allowed to differ.
func (s *Supervisor) WithTolerance(tolerance float64) *Supervisor {
	s.tolerance = tolerance
	return s
}

// WithLogger sets the logger.
func (s *Supervisor) WithLogger(logger *zap.Logger) *Supervisor {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// CompareRun compares every baseline frame. The returned error wraps
// ErrRegression when any frame is missing or over tolerance.
func (s *Supervisor) CompareRun() ([]FrameDiff, error) {
	names, err := pngFrames(s.baselineDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list baseline: %w", err)
	}

	var diffs []FrameDiff
	failed := 0
	for _, name := range names {
		d, err := s.CompareFrame(name)
		if err != nil {
			return diffs, err
		}
		if d.Missing || d.Difference > s.tolerance {
			failed++
		}
		diffs = append(diffs, d)
	}

	if failed > 0 {
		return diffs, fmt.Errorf("%d of %d frames: %w", failed, len(names), ErrRegression)
	}
	return diffs, nil
}

// CompareFrame compares one frame file and writes a diff image next to
// the current frame when the difference is over tolerance.
func (s *Supervisor) CompareFrame(name string) (FrameDiff, error) {
	d := FrameDiff{Name: name}

	baseline, err := loadImage(filepath.Join(s.baselineDir, name))
	if err != nil {
		return d, fmt.Errorf("failed to load baseline: %w", err)
	}
	current, err := loadImage(filepath.Join(s.currentDir, name))
	if errors.Is(err, os.ErrNotExist) {
		d.Missing = true
		d.Difference = 1
		return d, nil
	}
	if err != nil {
		return d, fmt.Errorf("failed to load current: %w", err)
	}

	d.Difference = difference(baseline, current)
	if d.Difference > s.tolerance {
		d.DiffImage = filepath.Join(s.currentDir, strings.TrimSuffix(name, ".png")+"_diff.png")
		if err := writeDiffImage(baseline, current, d.DiffImage); err != nil {
			s.logger.Warn("Failed to write diff image", zap.String("frame", name), zap.Error(err))
			d.DiffImage = ""
		}
	}
	return d, nil
}

// SetBaseline copies every frame of the current run into the baseline
// folder.
func (s *Supervisor) SetBaseline() error {
	names, err := pngFrames(s.currentDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.baselineDir, 0755); err != nil {
		return fmt.Errorf("failed to create baseline directory: %w", err)
	}
	for _, name := range names {
		if err := copyFile(filepath.Join(s.currentDir, name), filepath.Join(s.baselineDir, name)); err != nil {
			return err
		}
	}
	s.logger.Info("Baseline updated", zap.String("dir", s.baselineDir), zap.Int("frames", len(names)))
	return nil
}

func pngFrames(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, m := range matches {
		name := filepath.Base(m)
		if strings.HasSuffix(name, "_diff.png") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := png.Decode(file)
	return img, err
}

// difference is the share of pixels that differ between a and b.
func difference(a, b image.Image) float64 {
	bounds := a.Bounds()
	if bounds != b.Bounds() {
		return 1.0
	}
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return 0
	}

	different := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if !sameColor(a.At(x, y), b.At(x, y)) {
				different++
			}
		}
	}
	return float64(different) / float64(total)
}

func sameColor(a, b color.Color) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return ar == br && ag == bg && ab == bb && aa == ba
}

// writeDiffImage paints differing pixels red over a dimmed baseline.
func writeDiffImage(baseline, current image.Image, path string) error {
	bounds := baseline.Bounds()
	diff := image.NewRGBA(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			base := baseline.At(x, y)
			if !sameColor(base, current.At(x, y)) {
				diff.Set(x, y, color.RGBA{255, 0, 0, 255})
				continue
			}
			r, g, b, a := base.RGBA()
			diff.Set(x, y, color.RGBA{uint8(r >> 9), uint8(g >> 9), uint8(b >> 9), uint8(a >> 8)})
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(file, diff); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
