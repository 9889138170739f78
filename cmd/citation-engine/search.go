// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citation-engine/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Query the configured search index directly",
	Long: `Search sends one query to the configured index (arXiv, Semantic Scholar or
OpenAlex) and prints the confirmed papers. It is the same lookup the
pipeline uses to validate ideas and expand authors, and goes through the
Redis cache when one is configured.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("title", "", "search by title")
	searchCmd.Flags().String("author", "", "search by author name")
	searchCmd.Flags().String("query", "", "free-text query")
	searchCmd.Flags().Int("max-results", 0, "maximum number of results (default search.max_results)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	q := search.Query{}
	q.Title, _ = cmd.Flags().GetString("title")
	q.Author, _ = cmd.Flags().GetString("author")
	q.FreeText, _ = cmd.Flags().GetString("query")
	q.MaxResults, _ = cmd.Flags().GetInt("max-results")
	asJSON, _ := cmd.Flags().GetBool("json")

	if q.IsEmpty() {
		return errors.New("at least one of --title, --author or --query is required")
	}

	idx, closeIndex, err := newIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeIndex()

	fmt.Fprintf(os.Stderr, "Searching %s...\n", idx.Name())
	papers, err := idx.Search(ctx, q)
	if err != nil {
		return err
	}

	if asJSON {
		return search.FormatJSON(papers, os.Stdout)
	}
	search.FormatTable(papers, os.Stdout)
	return nil
}
