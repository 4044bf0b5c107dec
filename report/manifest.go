// Package report writes what a timelapse run produced: a machine-readable
// run.json next to the frames, an HTML page per run and a dashboard over
// every run in an output folder.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/teranos/timelapse"
	"github.com/teranos/timelapse/trip"
)

// ManifestFileName is written into every run folder.
const ManifestFileName = "run.json"

// TripSummary is a trip reduced to what a report shows.
type TripSummary struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Cause    string `json:"cause,omitempty"`
	Frame    *int   `json:"frame,omitempty"`
}

// Manifest describes one finished run.
type Manifest struct {
	RunID      string                      `json:"run_id"`
	Folder     string                      `json:"folder"`
	StartedAt  time.Time                   `json:"started_at"`
	Duration   string                      `json:"duration"`
	Success    bool                        `json:"success"`
	Failure    string                      `json:"failure,omitempty"`
	Frames     int                         `json:"frames"`
	Rejections int                         `json:"rejections"`
	Config     timelapse.Config            `json:"config"`
	Operations []timelapse.OperationRecord `json:"operations"`
	LogLines   []string                    `json:"log_lines,omitempty"`
	Stumbles   []TripSummary               `json:"stumbles,omitempty"`
	Errors     []TripSummary               `json:"errors,omitempty"`
}

// NewManifest summarises a run. runErr is the error Run returned, if any.
func NewManifest(result *timelapse.Result, runErr error) Manifest {
	m := Manifest{
		RunID:      result.RunID,
		Folder:     result.Config.FolderName,
		StartedAt:  result.StartedAt,
		Duration:   result.Duration.Round(time.Millisecond).String(),
		Success:    runErr == nil,
		Frames:     result.Frames,
		Rejections: result.Rejections,
		Config:     result.Config,
		Operations: result.Operations,
		LogLines:   result.LogLines,
		Stumbles:   summarise(result.Stumbles),
		Errors:     summarise(result.Errors),
	}
	if runErr != nil {
		m.Failure = runErr.Error()
	}
	return m
}

func summarise(trips []*trip.Trip) []TripSummary {
	out := make([]TripSummary, 0, len(trips))
	for _, t := range trips {
		s := TripSummary{
			Type:     t.Type,
			Severity: t.Severity.String(),
			Message:  t.Message,
		}
		if t.Cause != nil {
			s.Cause = t.Cause.Error()
		}
		if v, ok := t.GetContext("frame"); ok {
			if frame, ok := v.(int); ok {
				s.Frame = &frame
			}
		}
		out = append(out, s)
	}
	return out
}

// WriteManifest stores m as run.json in dir.
func WriteManifest(dir string, m Manifest) error {
	data, err := sonic.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFileName), data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the run.json in dir.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return m, err
	}
	if err := sonic.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode %s: %w", filepath.Join(dir, ManifestFileName), err)
	}
	return m, nil
}
