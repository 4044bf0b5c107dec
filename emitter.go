package timelapse

import (
	"fmt"
	"path/filepath"

	"github.com/teranos/timelapse/metrics"
	"github.com/teranos/timelapse/trip"
	"go.uber.org/zap"
)

// FrameName returns the file name of frame n with the given extension,
// e.g. FrameName(7, ".png") == "frame_00007.png".
func FrameName(n int, ext string) string {
	return fmt.Sprintf("frame_%05d%s", n, ext)
}

// Emitter saves one image, and optionally one mesh, per frame number.
type Emitter struct {
	host    Host
	dir     string
	width   int
	height  int
	saveOBJ bool
	quality MeshQuality
	trips   *trip.Handler
	metrics *metrics.RunMetrics
	logger  *zap.Logger
}

// NewEmitter creates an emitter writing into dir.
func NewEmitter(host Host, dir string, width, height int, saveOBJ bool, trips *trip.Handler, m *metrics.RunMetrics, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if trips == nil {
		trips = trip.NewHandler("emitter", nil)
	}
	if m == nil {
		m = metrics.NewRunMetrics("")
	}
	return &Emitter{
		host:    host,
		dir:     dir,
		width:   width,
		height:  height,
		saveOBJ: saveOBJ,
		quality: MeshQualityNormal,
		trips:   trips,
		metrics: m,
		logger:  logger,
	}
}

// FramePath returns the full path of frame n with the given extension.
func (e *Emitter) FramePath(n int, ext string) string {
	return filepath.Join(e.dir, FrameName(n, ext))
}

// EmitFrame captures the viewport as frame n and, when enabled, exports the
// design mesh next to it. Failures are recorded as stumbles and reported by
// the return value; they never stop the run.
func (e *Emitter) EmitFrame(n int) bool {
	ok := true

	imagePath := e.FramePath(n, ".png")
	if err := e.host.Viewport().SaveAsImage(imagePath, e.width, e.height); err != nil {
		ok = false
		e.logger.Warn("Failed saving viewport image", zap.Int("frame", n), zap.Error(err))
		e.trips.Stumble(trip.TypeVisual, "failed saving viewport image",
			trip.Context{"frame": n, "path": imagePath}, err)
		e.metrics.RecordEmissionFailure("image")
	}

	if e.saveOBJ {
		meshPath := e.FramePath(n, ".obj")
		if err := ExportOBJ(e.host, meshPath, e.quality); err != nil {
			ok = false
			e.logger.Warn("Failed saving obj file", zap.Int("frame", n), zap.Error(err))
			e.trips.Stumble(trip.TypeMesh, "failed saving obj file",
				trip.Context{"frame": n, "path": meshPath}, err)
			e.metrics.RecordEmissionFailure("mesh")
		}
	}

	e.metrics.RecordFrame()
	return ok
}
