// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries an academic index (arXiv, Semantic Scholar,
// OpenAlex) and returns confirmed papers. Every failure is returned as an
// apierr classified error; an empty result is not an error.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/citation-engine/internal/textsim"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// Index searches a single academic API. Each backend implements this
// interface per the Strategy pattern.
type Index interface {
	Name() string
	Search(ctx context.Context, query Query) ([]types.Paper, error)
}

// Query holds the search parameters. Title and Author are fielded
// searches; IDs is an identifier lookup (arXiv IDs).
type Query struct {
	Title      string   `json:"title,omitempty"`
	Author     string   `json:"author,omitempty"`
	FreeText   string   `json:"free_text,omitempty"`
	IDs        []string `json:"ids,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
}

// IsEmpty reports whether the query contains no searchable terms.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Title) == "" && strings.TrimSpace(q.Author) == "" &&
		strings.TrimSpace(q.FreeText) == "" && len(q.IDs) == 0
}

func (q Query) limit(def int) int {
	if q.MaxResults > 0 {
		return q.MaxResults
	}
	if def > 0 {
		return def
	}
	return 20
}

// New builds the index selected by cfg.Backend.
func New(cfg types.SearchConfig, client *http.Client) (Index, error) {
	if client == nil {
		client = &http.Client{}
	}
	switch cfg.Backend {
	case "", "arxiv":
		var limiter *rate.Limiter
		if cfg.ArxivInterval > 0 {
			limiter = rate.NewLimiter(rate.Every(cfg.ArxivInterval), 1)
		}
		return &ArxivIndex{Client: client, UserAgent: cfg.UserAgent, MaxResults: cfg.MaxResults, Limiter: limiter}, nil
	case "semantic_scholar":
		return &SemanticScholarIndex{Client: client, UserAgent: cfg.UserAgent, MaxResults: cfg.MaxResults, APIKey: cfg.SemanticScholarAPIKey}, nil
	case "openalex":
		return &OpenAlexIndex{Client: client, UserAgent: cfg.UserAgent, MaxResults: cfg.MaxResults, Email: cfg.OpenAlexEmail}, nil
	default:
		return nil, fmt.Errorf("unknown search backend %q", cfg.Backend)
	}
}

// Deduplicate removes papers that share an ID or normalised title, keeping
// the first occurrence. It returns the kept papers and the number removed.
func Deduplicate(papers []types.Paper) ([]types.Paper, int) {
	seen := make(map[string]bool)
	var out []types.Paper
	removed := 0
	for _, p := range papers {
		idKey := ""
		if p.ID != "" {
			idKey = "id:" + p.ID
		}
		titleKey := ""
		if nt := textsim.Normalize(p.Title); nt != "" {
			titleKey = "title:" + nt
		}
		if (idKey != "" && seen[idKey]) || (titleKey != "" && seen[titleKey]) {
			removed++
			continue
		}
		if idKey != "" {
			seen[idKey] = true
		}
		if titleKey != "" {
			seen[titleKey] = true
		}
		out = append(out, p)
	}
	return out, removed
}

var (
	arxivNewID = regexp.MustCompile(`(\d{4}\.\d{4,5})(v\d+)?`)
	arxivOldID = regexp.MustCompile(`([a-z\-]+(?:\.[A-Z]{2})?/\d{7})(v\d+)?`)
)

// ArxivIDFromURL extracts an arXiv identifier from an abs/pdf URL, an
// "arXiv:" reference, or a bare ID. The version suffix is dropped. It
// returns "" when s holds no recognisable identifier.
func ArxivIDFromURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	if strings.Contains(lower, "://") && !strings.Contains(lower, "arxiv.org") {
		return ""
	}
	if m := arxivNewID.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := arxivOldID.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func yearOf(date string) int {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.Year()
		}
	}
	return 0
}

// FormatTable writes papers as a human-readable table to w.
func FormatTable(papers []types.Paper, w io.Writer) {
	if len(papers) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %-16s  %s\n",
		"Rank", "Title", "Authors", "Year", "ID", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 120))

	for i, p := range papers {
		title := p.Title
		if len(title) > 60 {
			title = title[:57] + "..."
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %-16s  %s\n",
			i+1, title, formatAuthors(p.Authors), p.YearString(), truncate(p.ID, 16), p.Source)
	}
	fmt.Fprintf(w, "\n%d results\n", len(papers))
}

// FormatJSON writes papers as indented JSON to w.
func FormatJSON(papers []types.Paper, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if papers == nil {
		papers = []types.Paper{}
	}
	return enc.Encode(papers)
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 14) + " et al."
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
