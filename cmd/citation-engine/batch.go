// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citation-engine/internal/pipeline"
	"github.com/pdiddy/citation-engine/internal/texnorm"
)

// separator closes each paragraph's block in the .citations file.
var separator = strings.Repeat("-", 80)

var batchCmd = &cobra.Command{
	Use:   "batch FILE",
	Short: "Suggest citations for every paragraph of a file",
	Long: `Batch runs the citation pipeline on each paragraph of FILE (paragraphs
separated by blank lines, or a numbered JSON map). Each paragraph is an
independent run; a failure is reported and the batch continues.

Completed paragraphs that received citations are appended to FILE.citations
as the cited text, the BibTeX entries and a separator line. The command
exits non-zero when any paragraph failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().Int("parallel", 0, "paragraphs processed concurrently (default pipeline.parallel)")
	batchCmd.Flags().String("output", "", "output file (default FILE with .citations extension)")

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	var paragraphs []string
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		if paragraphs, err = texnorm.ParseNumberedJSON(data); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	} else {
		paragraphs = texnorm.Split(string(data))
	}
	for i, p := range paragraphs {
		paragraphs[i] = strings.Join(strings.Fields(p), " ")
	}
	if len(paragraphs) == 0 {
		return fmt.Errorf("%s contains no paragraphs", path)
	}

	parallel, _ := cmd.Flags().GetInt("parallel")
	if parallel <= 0 {
		parallel = cfg.Pipeline.Parallel
	}
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = strings.TrimSuffix(path, filepath.Ext(path)) + ".citations"
	}

	o, cleanup, err := newOrchestrator(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Fprintf(os.Stderr, "processing %d paragraphs from %s\n", len(paragraphs), path)
	items, sum := o.RunBatch(ctx, paragraphs, parallel)

	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", output, err)
	}
	defer f.Close()

	for _, it := range items {
		if it.Failed() {
			dir := ""
			if it.Outcome != nil {
				dir = it.Outcome.Dir
			}
			fmt.Fprintf(os.Stderr, "failed  paragraph %d in %s: %v %s\n", it.Index+1, phaseOrSetup(it.FailedPhase()), it.Err, dir)
			continue
		}
		res := it.Outcome.Result
		if len(res.Entries) == 0 {
			fmt.Fprintf(os.Stderr, "empty   paragraph %d: no citations\n", it.Index+1)
			continue
		}
		if _, err := fmt.Fprintf(f, "%s\n\n%s\n\n%s\n\n", res.CitedText, strings.Join(res.BibTeX(), "\n"), separator); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
	}

	fmt.Fprintf(os.Stderr, "\nBatch complete: %d done (%d without citations), %d failed, %d total\n",
		sum.Done, sum.Empty, sum.Failed, sum.Total())
	fmt.Fprintf(os.Stderr, "Citations appended to %s\n", output)
	if sum.Failed > 0 {
		return fmt.Errorf("%d paragraph(s) failed", sum.Failed)
	}
	return nil
}

func phaseOrSetup(p pipeline.Phase) string {
	if p == pipeline.PhaseNone {
		return "setup"
	}
	return string(p)
}
