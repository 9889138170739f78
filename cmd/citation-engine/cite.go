// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citation-engine/internal/pipeline"
	"github.com/pdiddy/citation-engine/internal/texnorm"
)

var citeCmd = &cobra.Command{
	Use:   "cite",
	Short: "Suggest citations for one paragraph",
	Long: `Cite runs the citation pipeline on one paragraph and prints the paragraph
with \cite{} markers followed by the BibTeX entries.

The paragraph is read from --text, from paragraph --index of --file (a
.paragraphs file or a numbered JSON map), or from standard input. Progress
goes to stderr. When a phase fails, the failing phase and the preserved run
directory are reported; pass that directory to --resume to continue.`,
	RunE: runCite,
}

func init() {
	citeCmd.Flags().String("text", "", "paragraph to cite")
	citeCmd.Flags().String("file", "", "paragraphs file or numbered JSON map")
	citeCmd.Flags().Int("index", 1, "1-based paragraph number within --file")
	citeCmd.Flags().String("resume", "", "resume the run stored in this directory")
	citeCmd.Flags().Bool("json", false, "print the result as JSON")

	rootCmd.AddCommand(citeCmd)
}

// citeOutput is the --json form of a run outcome.
type citeOutput struct {
	RunID         string   `json:"run_id"`
	Dir           string   `json:"dir"`
	State         string   `json:"state"`
	FailedPhase   string   `json:"failed_phase,omitempty"`
	Error         string   `json:"error,omitempty"`
	CitedText     string   `json:"cited_text,omitempty"`
	BibTeXEntries []string `json:"bibtex_entries,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

func runCite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	resumeDir, _ := cmd.Flags().GetString("resume")
	asJSON, _ := cmd.Flags().GetBool("json")

	var paragraph string
	if resumeDir == "" {
		var err error
		if paragraph, err = readParagraph(cmd); err != nil {
			return err
		}
	}

	o, cleanup, err := newOrchestrator(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer cleanup()

	var out *pipeline.Outcome
	if resumeDir != "" {
		out, err = o.Resume(ctx, resumeDir)
	} else {
		out, err = o.Run(ctx, paragraph)
	}
	if out == nil {
		return err
	}

	for _, w := range out.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	if asJSON {
		if jerr := printOutcomeJSON(os.Stdout, out, err); jerr != nil {
			return jerr
		}
	} else if out.Done() {
		printResult(os.Stdout, out)
	}

	if err != nil {
		var perr *pipeline.PhaseError
		if errors.As(err, &perr) {
			fmt.Fprintf(os.Stderr, "run %s failed in %s; resume with: citation-engine cite --resume %s\n", out.RunID, perr.Phase, out.Dir)
		}
		return err
	}
	return nil
}

// readParagraph resolves the paragraph from --text, --file/--index or stdin.
func readParagraph(cmd *cobra.Command) (string, error) {
	text, _ := cmd.Flags().GetString("text")
	file, _ := cmd.Flags().GetString("file")
	index, _ := cmd.Flags().GetInt("index")

	switch {
	case text != "":
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", file, err)
		}
		if text, err = texnorm.Select(data, index); err != nil {
			return "", fmt.Errorf("%s: %w", file, err)
		}
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}

	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "", errors.New("no paragraph given (use --text, --file or stdin)")
	}
	return text, nil
}

func printResult(w io.Writer, out *pipeline.Outcome) {
	res := out.Result
	fmt.Fprintln(w, res.CitedText)
	if len(res.Entries) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Join(res.BibTeX(), "\n\n"))
}

func printOutcomeJSON(w io.Writer, out *pipeline.Outcome, runErr error) error {
	v := citeOutput{
		RunID:       out.RunID,
		Dir:         out.Dir,
		State:       string(out.State),
		FailedPhase: string(out.FailedPhase),
		Warnings:    out.Warnings,
	}
	if runErr != nil {
		v.Error = runErr.Error()
	}
	if out.Result != nil {
		v.CitedText = out.Result.CitedText
		v.BibTeXEntries = out.Result.BibTeX()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
