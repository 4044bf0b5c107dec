// Package metrics provides Prometheus metrics for timelapse runs
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Frame metrics
	FramesEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timelapse_frames_emitted_total",
			Help: "Total number of frame numbers consumed, successful or not",
		},
		[]string{"folder"},
	)

	EmissionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timelapse_emission_failures_total",
			Help: "Total number of failed image or mesh writes",
		},
		[]string{"folder", "artifact"},
	)

	// Operation metrics
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timelapse_operations_total",
			Help: "Timeline operations visited, by kind and disposition",
		},
		[]string{"folder", "kind", "disposition"},
	)

	ParameterRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timelapse_parameter_rejections_total",
			Help: "Intermediate parameter values the host refused",
		},
		[]string{"folder", "kind"},
	)

	// Run metrics
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timelapse_run_duration_seconds",
			Help:    "Wall time of complete runs",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
		},
		[]string{"folder", "status"},
	)
)

// RunMetrics records metrics for one output folder.
type RunMetrics struct {
	folder string
}

// NewRunMetrics creates a recorder labelled with the run's folder name.
func NewRunMetrics(folder string) *RunMetrics {
	return &RunMetrics{folder: folder}
}

// RecordFrame records one consumed frame number.
func (m *RunMetrics) RecordFrame() {
	FramesEmitted.WithLabelValues(m.folder).Inc()
}

// RecordEmissionFailure records a failed write; artifact is "image" or "mesh".
func (m *RunMetrics) RecordEmissionFailure(artifact string) {
	EmissionFailures.WithLabelValues(m.folder, artifact).Inc()
}

// RecordOperation records a visited timeline operation.
func (m *RunMetrics) RecordOperation(kind, disposition string) {
	OperationsTotal.WithLabelValues(m.folder, kind, disposition).Inc()
}

// RecordRejection records a parameter write the host declined.
func (m *RunMetrics) RecordRejection(kind string) {
	ParameterRejections.WithLabelValues(m.folder, kind).Inc()
}

// RecordRun records the duration of a finished run.
func (m *RunMetrics) RecordRun(status string, duration time.Duration) {
	RunDuration.WithLabelValues(m.folder, status).Observe(duration.Seconds())
}
