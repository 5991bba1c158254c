package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/unixpickle/dist-gd/history"
)

var historyCmd = &cobra.Command{
	Use:   "history <database> [run-id]",
	Short: "Show the rounds recorded by fit --history",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	rec, err := history.Open(args[0], "")
	if err != nil {
		return err
	}
	defer rec.Close()

	runs := args[1:]
	if len(runs) == 0 {
		runs, err = rec.Runs()
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for i, runID := range runs {
		rounds, err := rec.Rounds(runID)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "Run %s\n\n", runID)
		fmt.Fprintln(out, "| Iteration | Cost | Step | Virtual time | Converged |")
		fmt.Fprintln(out, "|:--|:--|:--|:--|:--|")
		for _, r := range rounds {
			fmt.Fprintf(out, "| %d | %g | %g | %f | %v |\n", r.Iteration, r.Cost, r.Step, r.Time,
				r.Converged)
		}
	}
	return nil
}
