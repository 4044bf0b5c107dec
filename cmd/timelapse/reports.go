package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/teranos/timelapse/report"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <run-folder>...",
		Short: "Rebuild the HTML page of finished runs from their run.json",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := report.NewGenerator(logger)
			if err != nil {
				return err
			}
			for _, dir := range args {
				m, err := report.ReadManifest(dir)
				if err != nil {
					return fmt.Errorf("%s: %w", dir, err)
				}
				if err := gen.Generate(dir, m); err != nil {
					return fmt.Errorf("%s: %w", dir, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(dir, report.IndexFileName))
			}
			return nil
		},
	}
}

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard <output-path>",
		Short: "Index every run folder below an output path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := report.NewGenerator(logger)
			if err != nil {
				return err
			}
			entries, err := gen.Dashboard(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				status := "ok"
				if !e.Success {
					status = "FAILED"
				}
				fmt.Fprintf(out, "%-24s %-6s %5d frames  %s\n",
					e.Folder, status, e.Frames, e.StartedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(out, "%d runs, %s\n", len(entries), filepath.Join(args[0], report.IndexFileName))
			return nil
		},
	}
}
