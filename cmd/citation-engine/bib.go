// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citation-engine/internal/registry"
)

var bibCmd = &cobra.Command{
	Use:   "bib",
	Short: "Work with the cumulative bibliography",
}

var bibExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the cumulative bibliography",
	Long: `Export writes every entry of the cumulative bibliography, in the order the
entries were first cited. Formats:

  bib   BibTeX, the same content as references.bib
  yaml  CSL YAML for pandoc --citeproc
  json  the stored entries with their papers`,
	RunE: runBibExport,
}

func init() {
	bibExportCmd.Flags().String("format", "bib", "output format: bib, yaml or json")
	bibExportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")

	bibCmd.AddCommand(bibExportCmd)
	rootCmd.AddCommand(bibCmd)
}

func runBibExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	reg, err := registry.Open(cfg.Pipeline.ResultsDir)
	if err != nil {
		return fmt.Errorf("opening registry: %w", err)
	}
	defer reg.Close()

	var export func(w io.Writer) error
	switch format {
	case "bib", "bibtex":
		export = func(w io.Writer) error { return reg.WriteBibTeX(cmd.Context(), w) }
	case "yaml", "csl":
		export = func(w io.Writer) error { return reg.ExportCSL(cmd.Context(), w) }
	case "json":
		export = func(w io.Writer) error { return reg.ExportJSON(cmd.Context(), w) }
	default:
		return fmt.Errorf("unknown format %q (want bib, yaml or json)", format)
	}

	if output == "" {
		return export(os.Stdout)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	if err := export(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", output)
	return nil
}
