package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teranos/timelapse/report"
)

func newCompareCmd() *cobra.Command {
	var (
		tolerance float64
		update    bool
	)
	cmd := &cobra.Command{
		Use:   "compare <baseline-folder> <run-folder>",
		Short: "Pixel-diff the frames of a run against a baseline run",
		Long: `Compare checks every frame of the baseline folder against the frame with
the same name in the run folder. Frames that differ by more than the
tolerance get a <frame>_diff.png next to them, and the command fails.

With --update the run's frames replace the baseline instead.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sup := report.NewSupervisor(args[0], args[1]).
				WithTolerance(tolerance).
				WithLogger(logger)
			out := cmd.OutOrStdout()

			if update {
				if err := sup.SetBaseline(); err != nil {
					return err
				}
				fmt.Fprintf(out, "baseline %s updated from %s\n", args[0], args[1])
				return nil
			}

			diffs, err := sup.CompareRun()
			if err != nil && !errors.Is(err, report.ErrRegression) {
				return err
			}

			failed := 0
			for _, d := range diffs {
				switch {
				case d.Missing:
					failed++
					fmt.Fprintf(out, "%s  missing\n", d.Name)
				case d.Difference > tolerance:
					failed++
					fmt.Fprintf(out, "%s  %.2f%% differ  %s\n", d.Name, d.Difference*100, d.DiffImage)
				}
			}
			fmt.Fprintf(out, "%d of %d frames differ\n", failed, len(diffs))
			return err
		},
	}

	cmd.Flags().Float64Var(&tolerance, "tolerance", 0.05, "Share of pixels allowed to differ per frame")
	cmd.Flags().BoolVar(&update, "update", false, "Replace the baseline with the run's frames")
	return cmd
}
