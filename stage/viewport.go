package stage

import (
	"math"

	"github.com/teranos/timelapse"
)

// Capture records one SaveAsImage call.
type Capture struct {
	Path   string
	Width  int
	Height int
	Eye    timelapse.Vector3
	Marker int
}

// Viewport is the stage's camera. Every capture is rendered to a PNG by
// the stage renderer.
type Viewport struct {
	stage      *Stage
	camera     timelapse.Camera
	up         timelapse.Vector3
	fits       int
	commits    int
	captureErr error
	captures   []Capture
}

func (v *Viewport) FrontUpDirection() timelapse.Vector3 { return v.up }
func (v *Viewport) Fits() int                           { return v.fits }
func (v *Viewport) Commits() int                        { return v.commits }

// Camera returns a copy of the current camera.
func (v *Viewport) Camera() (timelapse.Camera, error) {
	return v.camera, nil
}

// SetCamera commits c.
func (v *Viewport) SetCamera(c timelapse.Camera) error {
	v.camera = c
	v.commits++
	return nil
}

// Fit moves the camera target onto the visible design and backs the eye
// off along its current direction until everything is in view.
func (v *Viewport) Fit() error {
	v.fits++
	lo, hi, ok := v.stage.bounds()
	if !ok {
		return nil
	}
	center := lo.Add(hi).Scale(0.5)
	radius := math.Max(hi.Sub(lo).Length()/2, 1)

	dir := v.camera.Eye.Sub(v.camera.Target).Normalize()
	if dir == (timelapse.Vector3{}) {
		dir = timelapse.Vector3{X: 1, Y: -1, Z: 1}.Normalize()
	}
	v.camera.Target = center
	v.camera.Eye = center.Add(dir.Scale(radius * 3))
	v.camera.IsFitView = true
	return nil
}

// FailCaptures makes every SaveAsImage return err. Nil restores captures.
func (v *Viewport) FailCaptures(err error) {
	v.captureErr = err
}

// SaveAsImage renders the visible design to a PNG at path.
func (v *Viewport) SaveAsImage(path string, width, height int) error {
	if v.captureErr != nil {
		return v.captureErr
	}
	if err := v.stage.renderer.Render(path, width, height, v.camera); err != nil {
		return err
	}
	v.captures = append(v.captures, Capture{
		Path:   path,
		Width:  width,
		Height: height,
		Eye:    v.camera.Eye,
		Marker: v.stage.timeline.marker,
	})
	return nil
}

// Captures returns every successful SaveAsImage call.
func (v *Viewport) Captures() []Capture {
	return append([]Capture(nil), v.captures...)
}
