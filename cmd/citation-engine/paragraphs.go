// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citation-engine/internal/texnorm"
)

var paragraphsCmd = &cobra.Command{
	Use:   "paragraphs FILE.tex",
	Short: "Split a LaTeX document into plain-prose paragraphs",
	Long: `Paragraphs strips comments, math, non-prose environments and formatting
commands from a LaTeX source and writes the remaining paragraphs, one per
blank-line-separated block, to FILE.paragraphs. Paragraphs with too few
words are dropped. With --json the paragraphs are written to FILE.json as a
map keyed "1", "2", ...

The output feeds "batch" and "cite --file".`,
	Args: cobra.ExactArgs(1),
	RunE: runParagraphs,
}

func init() {
	paragraphsCmd.Flags().Int("min-words", texnorm.DefaultMinWords, "drop paragraphs with this many words or fewer")
	paragraphsCmd.Flags().Bool("json", false, "write a numbered JSON map instead of a .paragraphs file")
	paragraphsCmd.Flags().String("output", "", "output file (default derived from FILE)")

	rootCmd.AddCommand(paragraphsCmd)
}

func runParagraphs(cmd *cobra.Command, args []string) error {
	path := args[0]
	minWords, _ := cmd.Flags().GetInt("min-words")
	asJSON, _ := cmd.Flags().GetBool("json")
	output, _ := cmd.Flags().GetString("output")

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	paragraphs := texnorm.Paragraphs(string(src), minWords)

	base := strings.TrimSuffix(path, filepath.Ext(path))
	if output == "" {
		if asJSON {
			output = base + ".json"
		} else {
			output = base + ".paragraphs"
		}
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	defer f.Close()

	if asJSON {
		data, err := texnorm.NumberedJSON(paragraphs)
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
	} else if err := texnorm.WriteParagraphs(f, paragraphs); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}

	fmt.Fprintf(os.Stderr, "Wrote %d paragraphs to %s\n", len(paragraphs), output)
	return nil
}
