// Command timelapse renders the feature history of a scene file into a
// numbered frame sequence, writes an HTML report for every run and compares
// runs against a baseline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configFile string
	logLevel   string
	devLogs    bool

	logger = zap.NewNop()
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "timelapse",
		Short: "Animate a design's feature history",
		Long: `timelapse replays the timeline of a design one operation at a time,
growing extrusions, sweeping revolves and multiplying patterns while the
camera orbits, and saves every frame as a numbered PNG.

Examples:
  timelapse render --scene bracket.yaml                  # Render with defaults from timelapse.yaml
  timelapse render --scene bracket.yaml --watch          # Re-render on every save
  timelapse render --scene bracket.yaml --tui            # Show live progress
  timelapse dashboard ~/Desktop                          # Index every run folder
  timelapse compare ~/Desktop/baseline ~/Desktop/latest  # Pixel-diff two runs`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := buildLogger(logLevel, devLogs)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"Config file (default ./timelapse.yaml when present)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&devLogs, "dev", false,
		"Human-readable development logging")

	root.AddCommand(newRenderCmd(), newReportCmd(), newDashboardCmd(), newCompareCmd())
	return root
}

func buildLogger(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	if dev {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.OutputPaths = []string{"stderr"}
	return config.Build()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
