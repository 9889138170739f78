// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/citation-engine/internal/apierr"
	"github.com/pdiddy/citation-engine/internal/httputil"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivIndex queries the arXiv API. Limiter, when set, spaces requests
// across all goroutines sharing the index.
type ArxivIndex struct {
	Client     *http.Client
	UserAgent  string
	MaxResults int
	Limiter    *rate.Limiter
}

// Name returns the backend identifier.
func (b *ArxivIndex) Name() string { return "arxiv" }

// Search queries the arXiv API. Title and author become fielded ti:/au:
// phrase searches; IDs become an id_list lookup.
func (b *ArxivIndex) Search(ctx context.Context, query Query) ([]types.Paper, error) {
	if query.IsEmpty() {
		return nil, fmt.Errorf("empty arXiv query")
	}

	params := url.Values{}
	if q := buildArxivQuery(query); q != "" {
		params.Set("search_query", q)
		params.Set("sortBy", "relevance")
		params.Set("sortOrder", "descending")
	}
	if len(query.IDs) > 0 {
		params.Set("id_list", strings.Join(query.IDs, ","))
	}
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(query.limit(b.MaxResults)))

	if b.Limiter != nil {
		if err := b.Limiter.Wait(ctx); err != nil {
			return nil, apierr.FromTransport(b.Name(), "search", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}

	resp, err := httputil.Do(ctx, b.Client, req, b.Name(), "search")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, apierr.New(b.Name(), "search", apierr.ErrUnavailable, fmt.Errorf("%w: %v", apierr.ErrParse, err))
	}

	var results []types.Paper
	for _, entry := range feed.Entries {
		arxivID := extractArxivID(entry.ID)
		if arxivID == "" {
			continue
		}
		results = append(results, entry.toPaper(arxivID))
	}
	return results, nil
}

// buildArxivQuery constructs the search_query parameter from structured
// fields. Phrases are quoted so arXiv matches them as a unit.
func buildArxivQuery(q Query) string {
	var parts []string
	if t := arxivPhrase(q.Title); t != "" {
		parts = append(parts, "ti:"+t)
	}
	if a := arxivPhrase(q.Author); a != "" {
		parts = append(parts, "au:"+a)
	}
	if terms := strings.Fields(q.FreeText); len(terms) > 0 {
		parts = append(parts, "all:"+strings.Join(terms, " "))
	}
	return strings.Join(parts, " AND ")
}

// arxivPhrase quotes s after stripping characters that break arXiv's
// query parser.
func arxivPhrase(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '"', '(', ')', ':':
			return ' '
		}
		return r
	}, s)
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return `"` + strings.Join(fields, " ") + `"`
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID              string        `xml:"id"`
	Title           string        `xml:"title"`
	Summary         string        `xml:"summary"`
	Published       string        `xml:"published"`
	Authors         []arxivAuthor `xml:"author"`
	Links           []arxivLink   `xml:"link"`
	PrimaryCategory arxivCategory `xml:"http://arxiv.org/schemas/atom primary_category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

func (e arxivEntry) toPaper(arxivID string) types.Paper {
	p := types.Paper{
		ID:           arxivID,
		Title:        collapseSpace(e.Title),
		Abstract:     collapseSpace(e.Summary),
		Year:         yearOf(e.Published),
		URL:          "https://arxiv.org/abs/" + arxivID,
		PrimaryClass: e.PrimaryCategory.Term,
		Source:       "arxiv",
	}
	for _, a := range e.Authors {
		if name := collapseSpace(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			p.PDFURL = l.Href
		}
	}
	return p
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
// Error entries (".../api/errors#...") yield "".
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
