package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

// DashboardEntry is one run folder as listed on the dashboard.
type DashboardEntry struct {
	Folder       string
	RunID        string
	StartedAt    time.Time
	Success      bool
	Frames       int
	Stumbles     int
	Duration     string
	RelativePath string
}

// Dashboard writes index.html into baseDir listing every run folder below
// it that holds a run.json, newest first.
func (g *Generator) Dashboard(baseDir string) ([]DashboardEntry, error) {
	entries, err := ScanRuns(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan runs: %w", err)
	}

	path := filepath.Join(baseDir, IndexFileName)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard file: %w", err)
	}
	defer file.Close()

	data := struct {
		Runs        []DashboardEntry
		GeneratedAt time.Time
	}{
		Runs:        entries,
		GeneratedAt: time.Now(),
	}
	if err := g.templates.ExecuteTemplate(file, "dashboard.html", data); err != nil {
		return nil, fmt.Errorf("failed to execute dashboard template: %w", err)
	}

	g.logger.Info("Dashboard generated", zap.String("path", path), zap.Int("runs", len(entries)))
	return entries, nil
}

// ScanRuns reads the manifest of every direct subfolder of baseDir.
// Folders without a readable run.json are ignored.
func ScanRuns(baseDir string) ([]DashboardEntry, error) {
	dirs, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, err
	}

	var entries []DashboardEntry
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		m, err := ReadManifest(filepath.Join(baseDir, d.Name()))
		if err != nil {
			continue
		}
		entries = append(entries, DashboardEntry{
			Folder:       d.Name(),
			RunID:        m.RunID,
			StartedAt:    m.StartedAt,
			Success:      m.Success,
			Frames:       m.Frames,
			Stumbles:     len(m.Stumbles),
			Duration:     m.Duration,
			RelativePath: filepath.ToSlash(filepath.Join(d.Name(), IndexFileName)),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartedAt.After(entries[j].StartedAt)
	})
	return entries, nil
}
