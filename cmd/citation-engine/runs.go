// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citation-engine/internal/registry"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded pipeline runs",
	Long: `Runs lists the pipeline runs recorded in the results directory, newest
first, with their state, the phase a failed run stopped in and the number
of entries cited. Failed runs can be continued with "cite --resume DIR".`,
	RunE: runRuns,
}

func init() {
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to list (0 for all)")
	runsCmd.Flags().Bool("json", false, "output runs as JSON")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	reg, err := registry.Open(cfg.Pipeline.ResultsDir)
	if err != nil {
		return fmt.Errorf("opening registry: %w", err)
	}
	defer reg.Close()

	runs, err := reg.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if asJSON {
		if runs == nil {
			runs = []registry.RunRecord{}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATE\tPHASE\tENTRIES\tUPDATED\tDIR")
	for _, r := range runs {
		phase := r.FailedPhase
		if phase == "" {
			phase = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.State, phase, r.Entries, r.UpdatedAt.Format("2006-01-02 15:04:05"), r.Dir)
	}
	return tw.Flush()
}
