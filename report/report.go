package report

import (
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/teranos/timelapse"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// IndexFileName is the HTML page written into a run folder.
const IndexFileName = "index.html"

// Frame is one emitted frame as listed on the run page.
type Frame struct {
	Number   int
	Image    string // file name relative to the page
	Mesh     string // empty when no OBJ was written
	Position int    // timeline position the frame belongs to
	Kind     string
}

// Page is the data behind a run page.
type Page struct {
	Manifest
	Images []Frame
	// Poster is the last frame inlined as a data URL, so the page shows
	// something even when opened away from its folder.
	Poster template.URL
}

// Generator writes HTML run pages.
type Generator struct {
	templates *template.Template
	logger    *zap.Logger
}

// NewGenerator parses the embedded templates.
func NewGenerator(logger *zap.Logger) (*Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Generator{templates: tmpl, logger: logger}, nil
}

// Generate writes run.json and index.html into the run's folder.
func (g *Generator) Generate(dir string, m Manifest) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := WriteManifest(dir, m); err != nil {
		return err
	}

	page := Page{Manifest: m, Images: listFrames(dir, m)}
	if n := len(page.Images); n > 0 {
		poster, err := imageDataURL(filepath.Join(dir, page.Images[n-1].Image))
		if err != nil {
			g.logger.Debug("Poster frame unavailable", zap.Error(err))
		} else {
			page.Poster = poster
		}
	}

	path := filepath.Join(dir, IndexFileName)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := g.templates.ExecuteTemplate(file, "run.html", page); err != nil {
		return fmt.Errorf("failed to render run page: %w", err)
	}
	g.logger.Info("Run report written", zap.String("path", path), zap.Int("frames", len(page.Images)))
	return nil
}

// listFrames pairs every frame number of the run with its operation and
// keeps only frames whose image exists on disk.
func listFrames(dir string, m Manifest) []Frame {
	var frames []Frame
	for _, op := range m.Operations {
		for n := op.FirstFrame; n < op.FirstFrame+op.Frames; n++ {
			f := Frame{
				Number:   n,
				Image:    timelapse.FrameName(n, ".png"),
				Position: op.Position,
				Kind:     op.Kind,
			}
			if _, err := os.Stat(filepath.Join(dir, f.Image)); err != nil {
				continue
			}
			if m.Config.SaveOBJ {
				if _, err := os.Stat(filepath.Join(dir, timelapse.FrameName(n, ".obj"))); err == nil {
					f.Mesh = timelapse.FrameName(n, ".obj")
				}
			}
			frames = append(frames, f)
		}
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Number < frames[j].Number })
	return frames
}

// imageDataURL reads an image file and encodes it as a base64 data URL.
func imageDataURL(path string) (template.URL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image file: %w", err)
	}

	var mimeType string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mimeType = "image/jpeg"
	case ".gif":
		mimeType = "image/gif"
	default:
		mimeType = "image/png"
	}

	return template.URL(fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))), nil
}
