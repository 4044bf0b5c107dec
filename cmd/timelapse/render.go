package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/teranos/timelapse"
	"github.com/teranos/timelapse/report"
	"github.com/teranos/timelapse/stage"
	"github.com/teranos/timelapse/trip"
	"go.uber.org/zap"
)

type renderOptions struct {
	scene       string
	watch       bool
	tui         bool
	noReport    bool
	metricsAddr string
}

func newRenderCmd() *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a scene's timeline into frames",
		Long: `Render loads a scene file, replays its timeline and writes the frames,
a log of operations that are not animated and an HTML report into
<output>/<folder>.

Settings come from defaults, then timelapse.yaml (or --config), then flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.scene, "scene", "s", "", "Scene file (YAML)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Render again whenever the scene file changes")
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "Show live progress")
	cmd.Flags().BoolVar(&opts.noReport, "no-report", false, "Skip run.json and index.html")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	_ = cmd.MarkFlagRequired("scene")
	addConfigFlags(cmd.Flags())
	return cmd
}

func runRender(cmd *cobra.Command, opts *renderOptions) error {
	cfg, err := loadConfig(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.ErrOrStderr(), timelapse.Warning)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.metricsAddr != "" {
		shutdown := serveMetrics(opts.metricsAddr)
		defer shutdown()
	}

	render := func() error {
		_, err := renderScene(cmd, opts, cfg)
		return err
	}

	if !opts.watch {
		return render()
	}
	if err := render(); err != nil {
		logger.Error("Render failed", zap.Error(err))
	}
	return watchFile(ctx, opts.scene, render)
}

// renderScene runs one session over a freshly built scene and writes its
// report. The session's error is returned after the report is written.
func renderScene(cmd *cobra.Command, opts *renderOptions, cfg timelapse.Config) (*timelapse.Result, error) {
	scene, err := stage.LoadScene(opts.scene)
	if err != nil {
		return nil, err
	}
	host, err := scene.Build()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.scene, err)
	}

	session := timelapse.NewSession(host, cfg).
		WithLogger(logger.With(zap.String("scene", scene.Name)))

	var result *timelapse.Result
	if opts.tui {
		result, err = runWithProgress(session, cfg.Normalize(host.Timeline().MarkerPosition()),
			cmd.InOrStdin(), cmd.OutOrStdout())
	} else {
		result, err = session.Run()
	}

	out := cmd.OutOrStdout()
	if err != nil {
		var t *trip.Trip
		if errors.As(err, &t) {
			fmt.Fprintln(cmd.ErrOrStderr(), t.DetailedString())
		}
	}

	if !opts.noReport && result != nil {
		if _, statErr := os.Stat(result.OutputDir); statErr == nil {
			if repErr := writeReport(result, err); repErr != nil {
				logger.Warn("Failed to write report", zap.Error(repErr))
			} else {
				fmt.Fprintf(out, "report: %s\n", filepath.Join(result.OutputDir, report.IndexFileName))
			}
		}
	}

	if result != nil {
		fmt.Fprintf(out, "%d frames in %s", result.Frames, result.OutputDir)
		if n := len(result.Stumbles); n > 0 {
			fmt.Fprintf(out, " (%d stumbles)", n)
		}
		fmt.Fprintln(out)
		if len(result.Stumbles) > 0 {
			fmt.Fprint(cmd.ErrOrStderr(), result.TripReport)
		}
	}
	return result, err
}

func writeReport(result *timelapse.Result, runErr error) error {
	gen, err := report.NewGenerator(logger)
	if err != nil {
		return err
	}
	return gen.Generate(result.OutputDir, report.NewManifest(result, runErr))
}

// runWithProgress runs the session on its own goroutine and feeds its
// events to a progress view. Quitting the view does not stop the run.
func runWithProgress(session *timelapse.Session, cfg timelapse.Config, in io.Reader, out io.Writer) (*timelapse.Result, error) {
	p := tea.NewProgram(newProgressModel(cfg), tea.WithInput(in), tea.WithOutput(out))

	done := make(chan doneMsg, 1)
	go func() {
		result, err := session.
			WithObserver(func(e timelapse.Event) { p.Send(eventMsg(e)) }).
			Run()
		msg := doneMsg{result: result, err: err}
		done <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		logger.Warn("Progress display failed", zap.Error(err))
	}
	msg := <-done
	return msg.result, msg.err
}

// serveMetrics exposes the default Prometheus registry until the returned
// function is called.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("Serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
