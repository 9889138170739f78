// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package validate confirms model-proposed ideas against the academic
// index. Ideas that match no indexed paper closely enough are dropped;
// lookups that fail are recorded per idea and do not stop the others.
package validate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pdiddy/citation-engine/internal/apierr"
	"github.com/pdiddy/citation-engine/internal/cite"
	"github.com/pdiddy/citation-engine/internal/httputil"
	"github.com/pdiddy/citation-engine/internal/search"
	"github.com/pdiddy/citation-engine/internal/textsim"
	"github.com/pdiddy/citation-engine/pkg/types"
)

const (
	// DefaultThreshold is the minimum title similarity for a match.
	DefaultThreshold = 0.8
	// DefaultCandidatesPerIdea is how many index results are compared per idea.
	DefaultCandidatesPerIdea = 5
)

// Validator matches ideas to indexed papers.
type Validator struct {
	Index search.Index
	// Threshold is the minimum title similarity in [0,1].
	Threshold float64
	// CandidatesPerIdea bounds the title-search results compared.
	CandidatesPerIdea int
	// CallTimeout bounds each index lookup.
	CallTimeout time.Duration
	// Progress receives one line per idea. Optional.
	Progress io.Writer
}

// Match pairs an idea with the paper it was confirmed as.
type Match struct {
	Idea       types.Idea  `json:"idea"`
	Paper      types.Paper `json:"paper"`
	Similarity float64     `json:"similarity"`
	// Via is "id" for an arXiv identifier hit, "title" for a title search.
	Via string `json:"via"`
}

// Failure records an idea whose lookup failed.
type Failure struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	Error string `json:"error"`
}

// Output is the result of validating one idea list.
type Output struct {
	Matches  []Match   `json:"matches"`
	Failures []Failure `json:"failures,omitempty"`
	// Rejected counts ideas that matched no paper.
	Rejected int `json:"rejected"`
	// Duplicates counts ideas that matched an already matched paper.
	Duplicates int `json:"duplicates"`
}

// Papers returns the matched papers in match order.
func (o Output) Papers() []types.Paper {
	papers := make([]types.Paper, len(o.Matches))
	for i, m := range o.Matches {
		papers[i] = m.Paper
	}
	return papers
}

// Validate looks up every idea in order. It fails with an external service
// error only when the index rejects the credentials or when every lookup
// failed; otherwise per-idea failures are reported in Output.Failures.
func (v *Validator) Validate(ctx context.Context, ideas []types.Idea) (Output, error) {
	out := Output{Matches: []Match{}}
	if len(ideas) == 0 {
		return out, nil
	}
	w := v.Progress
	if w == nil {
		w = io.Discard
	}

	seen := make(map[string]bool)
	var lastErr error
	for i, idea := range ideas {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		m, ok, err := v.validateOne(ctx, idea)
		if err != nil {
			if apierr.IsAuth(err) {
				return out, fmt.Errorf("validating %q: %w", idea.Title, err)
			}
			if errors.Is(err, context.Canceled) {
				return out, err
			}
			lastErr = err
			out.Failures = append(out.Failures, Failure{Index: i, Title: idea.Title, Error: err.Error()})
			fmt.Fprintf(w, "  failed %q: %v\n", idea.Title, err)
			continue
		}
		if !ok {
			out.Rejected++
			fmt.Fprintf(w, "  rejected %q\n", idea.Title)
			continue
		}
		if seen[m.Paper.ID] {
			out.Duplicates++
			continue
		}
		seen[m.Paper.ID] = true
		out.Matches = append(out.Matches, m)
		fmt.Fprintf(w, "  matched %q -> %s (%.2f)\n", idea.Title, m.Paper.ID, m.Similarity)
	}

	if len(out.Failures) == len(ideas) {
		return out, fmt.Errorf("all %d idea lookups failed: %w", len(ideas), lastErr)
	}
	return out, nil
}

// validateOne tries the idea's arXiv identifier first, then a title search
// narrowed by the first author's surname, then the title alone. A failed
// identifier lookup falls through to the title searches unless the index
// rejected the credentials; the idea fails only when no search succeeded.
func (v *Validator) validateOne(ctx context.Context, idea types.Idea) (Match, bool, error) {
	threshold := v.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var idErr error
	if id := search.ArxivIDFromURL(idea.URL); id != "" {
		papers, err := v.lookup(ctx, search.Query{IDs: []string{id}, MaxResults: 1})
		switch {
		case err == nil:
			if m, ok := bestMatch(idea, papers, threshold); ok {
				m.Via = "id"
				return m, true, nil
			}
		case apierr.IsAuth(err), ctx.Err() != nil:
			return Match{}, false, err
		default:
			idErr = err
		}
	}

	limit := v.CandidatesPerIdea
	if limit <= 0 {
		limit = DefaultCandidatesPerIdea
	}
	queries := []search.Query{{Title: idea.Title, MaxResults: limit}}
	if surname := cite.Surname(idea.FirstAuthor()); surname != "" {
		queries = append([]search.Query{{Title: idea.Title, Author: surname, MaxResults: limit}}, queries...)
	}

	var lastErr error
	searched := false
	for _, q := range queries {
		papers, err := v.lookup(ctx, q)
		if err != nil {
			if apierr.IsAuth(err) || ctx.Err() != nil {
				return Match{}, false, err
			}
			lastErr = err
			continue
		}
		searched = true
		if len(papers) > limit {
			papers = papers[:limit]
		}
		if m, ok := bestMatch(idea, papers, threshold); ok {
			m.Via = "title"
			return m, true, nil
		}
	}
	if !searched {
		if lastErr == nil {
			lastErr = idErr
		}
		return Match{}, false, lastErr
	}
	return Match{}, false, nil
}

func (v *Validator) lookup(ctx context.Context, q search.Query) ([]types.Paper, error) {
	ctx, cancel := httputil.CallContext(ctx, v.CallTimeout)
	defer cancel()
	return v.Index.Search(ctx, q)
}

// bestMatch returns the candidate with the highest title similarity at or
// above threshold. Ties keep the earlier (more relevant) candidate; a
// matching year breaks ties between equal scores.
func bestMatch(idea types.Idea, papers []types.Paper, threshold float64) (Match, bool) {
	var best Match
	found := false
	for _, p := range papers {
		if p.ID == "" || strings.TrimSpace(p.Title) == "" {
			continue
		}
		sim := textsim.TitleSimilarity(idea.Title, p.Title)
		if sim < threshold {
			continue
		}
		better := !found || sim > best.Similarity ||
			(sim == best.Similarity && idea.Year != 0 && p.Year == idea.Year && best.Paper.Year != idea.Year)
		if better {
			p.Provenance = types.ProvenanceDirect
			p.FromAuthor = ""
			best = Match{Idea: idea, Paper: p, Similarity: sim}
			found = true
		}
	}
	return best, found
}
