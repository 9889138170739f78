// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package candidates holds the ordered, duplicate-free set of papers
// considered for citation in one run.
package candidates

import (
	"encoding/json"

	"github.com/pdiddy/citation-engine/internal/textsim"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// Pool is an insertion-ordered set of papers keyed by paper ID. The first
// insertion of a paper wins: later duplicates never change its provenance.
// A Pool is not safe for concurrent use; callers merge from one goroutine.
type Pool struct {
	papers []types.Paper
	index  map[string]int
}

// NewPool returns a pool seeded with papers.
func NewPool(papers ...types.Paper) *Pool {
	p := &Pool{index: make(map[string]int)}
	p.Merge(papers)
	return p
}

// Key returns the deduplication key of a paper: its ID, or its normalised
// title when the index gave no ID.
func Key(paper types.Paper) string {
	if paper.ID != "" {
		return "id:" + paper.ID
	}
	return "title:" + textsim.Normalize(paper.Title)
}

// Add inserts paper unless a paper with the same key is present. It
// reports whether the paper was added.
func (p *Pool) Add(paper types.Paper) bool {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	k := Key(paper)
	if _, ok := p.index[k]; ok {
		return false
	}
	p.index[k] = len(p.papers)
	p.papers = append(p.papers, paper)
	return true
}

// Merge adds papers in order and returns how many were new.
func (p *Pool) Merge(papers []types.Paper) int {
	added := 0
	for _, paper := range papers {
		if p.Add(paper) {
			added++
		}
	}
	return added
}

// Contains reports whether a paper with the same key is present.
func (p *Pool) Contains(paper types.Paper) bool {
	_, ok := p.index[Key(paper)]
	return ok
}

// Len returns the number of papers.
func (p *Pool) Len() int { return len(p.papers) }

// Papers returns a copy of the papers in insertion order.
func (p *Pool) Papers() []types.Paper {
	out := make([]types.Paper, len(p.papers))
	copy(out, p.papers)
	return out
}

// Count returns the number of papers with the given provenance.
func (p *Pool) Count(prov types.Provenance) int {
	n := 0
	for _, paper := range p.papers {
		if paper.Provenance == prov {
			n++
		}
	}
	return n
}

// MarshalJSON encodes the pool as its ordered paper list.
func (p *Pool) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Papers())
}

// UnmarshalJSON rebuilds the pool from an ordered paper list.
func (p *Pool) UnmarshalJSON(data []byte) error {
	var papers []types.Paper
	if err := json.Unmarshal(data, &papers); err != nil {
		return err
	}
	*p = Pool{index: make(map[string]int)}
	p.Merge(papers)
	return nil
}
