package stage

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/teranos/timelapse"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// RenderConfig defines how captures look.
type RenderConfig struct {
	Background color.RGBA // Background color
	Caption    color.RGBA // Caption text color
	ShowLabel  bool       // Draw the frame name and marker in the corner
}

// DefaultRenderConfig is a light studio backdrop with a caption.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Background: color.RGBA{0xf4, 0xf4, 0xf0, 0xff},
		Caption:    color.RGBA{0x33, 0x33, 0x33, 0xff},
		ShowLabel:  true,
	}
}

// Renderer draws the visible design with an orthographic projection.
// Triangles are painter-sorted and filled with the body opacity, which is
// enough to see features grow and components fade in.
type Renderer struct {
	stage  *Stage
	config RenderConfig
	font   font.Face
}

func newRenderer(s *Stage, config RenderConfig) *Renderer {
	return &Renderer{
		stage:  s,
		config: config,
		font:   basicfont.Face7x13,
	}
}

type projected struct {
	pts   [3][2]float32
	depth float64
	fill  color.NRGBA
}

// Render writes one PNG of the visible design as seen from camera.
func (r *Renderer) Render(path string, width, height int, camera timelapse.Camera) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("image size %dx%d", width, height)
	}
	img := r.Frame(width, height, camera)
	if r.config.ShowLabel {
		r.label(img, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// Frame rasterises the visible design without a caption.
func (r *Renderer) Frame(width, height int, camera timelapse.Camera) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.config.Background), image.Point{}, draw.Src)

	forward := camera.Target.Sub(camera.Eye).Normalize()
	if forward == (timelapse.Vector3{}) {
		return img
	}
	up := camera.UpVector
	if up == (timelapse.Vector3{}) {
		up = timelapse.Vector3{Z: 1}
	}
	right := forward.Cross(up).Normalize()
	if right == (timelapse.Vector3{}) {
		right = forward.Cross(timelapse.Vector3{X: 1}).Normalize()
	}
	trueUp := right.Cross(forward)

	solids := r.stage.solids()
	radius := 1.0
	for _, s := range solids {
		for _, v := range s.mesh.Vertices {
			radius = math.Max(radius, v.Sub(camera.Target).Length())
		}
	}
	scale := 0.45 * float64(min(width, height)) / radius
	cx, cy := float64(width)/2, float64(height)/2

	var tris []projected
	for _, s := range solids {
		if s.opacity <= 0 {
			continue
		}
		m := s.mesh
		for t := 0; t < m.TriangleCount(); t++ {
			var p projected
			var corners [3]timelapse.Vector3
			for k := 0; k < 3; k++ {
				v := m.Vertices[m.Indices[t*3+k]]
				corners[k] = v
				d := v.Sub(camera.Target)
				x := cx + d.Dot(right)*scale
				y := cy - d.Dot(trueUp)*scale
				p.pts[k] = [2]float32{float32(x), float32(y)}
				p.depth += d.Dot(forward) / 3
			}
			normal := corners[1].Sub(corners[0]).Cross(corners[2].Sub(corners[0])).Normalize()
			p.fill = shade(s.color, math.Abs(normal.Dot(forward)), s.opacity)
			tris = append(tris, p)
		}
	}
	// Farthest first.
	sort.SliceStable(tris, func(i, j int) bool { return tris[i].depth > tris[j].depth })

	z := vector.NewRasterizer(width, height)
	for _, t := range tris {
		z.Reset(width, height)
		z.MoveTo(t.pts[0][0], t.pts[0][1])
		z.LineTo(t.pts[1][0], t.pts[1][1])
		z.LineTo(t.pts[2][0], t.pts[2][1])
		z.ClosePath()
		z.Draw(img, img.Bounds(), image.NewUniform(t.fill), image.Point{})
	}
	return img
}

// shade applies a lambert term and the body opacity.
func shade(c color.RGBA, lambert, opacity float64) color.NRGBA {
	k := 0.35 + 0.65*lambert
	return color.NRGBA{
		R: uint8(math.Min(255, float64(c.R)*k)),
		G: uint8(math.Min(255, float64(c.G)*k)),
		B: uint8(math.Min(255, float64(c.B)*k)),
		A: uint8(math.Round(255 * math.Min(1, math.Max(0, opacity)))),
	}
}

func (r *Renderer) label(img *image.RGBA, name string) {
	text := fmt.Sprintf("%s  marker %d/%d", name, r.stage.timeline.marker, r.stage.timeline.Count())
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(r.config.Caption),
		Face: r.font,
		Dot: fixed.Point26_6{
			X: fixed.I(8),
			Y: fixed.I(8 + r.font.Metrics().Ascent.Ceil()),
		},
	}
	drawer.DrawString(text)
}
