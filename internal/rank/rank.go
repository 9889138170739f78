// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank scores candidate papers against the paragraph and selects
// the citation set.
package rank

import (
	"math"
	"sort"
	"strings"

	"github.com/pdiddy/citation-engine/internal/textsim"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// DefaultTopK is the number of papers cited when TopK is unset.
const DefaultTopK = 5

// scoreEpsilon is the score difference below which two papers tie.
const scoreEpsilon = 1e-9

// Ranker orders papers by TF-IDF cosine similarity between the paragraph
// and each paper's title and abstract.
type Ranker struct {
	TopK int
	// MinScore drops papers below it from Top. They stay in Considered.
	MinScore float64
}

// Ranking is the outcome of one ranking pass. Top holds the citation set;
// Considered holds every other candidate, in rank order.
type Ranking struct {
	Top        []types.RankedEntry `json:"top"`
	Considered []types.RankedEntry `json:"considered"`
}

// Rank scores papers (given in pool insertion order). Ordering is score
// descending, then direct provenance before author search, then insertion
// order, so equal inputs always rank identically.
func (r Ranker) Rank(paragraph string, papers []types.Paper) Ranking {
	out := Ranking{Top: []types.RankedEntry{}, Considered: []types.RankedEntry{}}
	if len(papers) == 0 {
		return out
	}

	docs := make([]string, 0, len(papers)+1)
	docs = append(docs, paragraph)
	for _, p := range papers {
		docs = append(docs, Document(p))
	}
	corpus := textsim.NewCorpus(docs)
	pv := corpus.Vector(paragraph)

	entries := make([]types.RankedEntry, len(papers))
	for i, p := range papers {
		entries[i] = types.RankedEntry{Paper: p, Score: textsim.Cosine(pv, corpus.Vector(docs[i+1]))}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if math.Abs(entries[i].Score-entries[j].Score) > scoreEpsilon {
			return entries[i].Score > entries[j].Score
		}
		return provenanceOrder(entries[i].Paper) < provenanceOrder(entries[j].Paper)
	})

	topK := r.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	for i := range entries {
		entries[i].Rank = i + 1
		if len(out.Top) < topK && entries[i].Score >= r.MinScore {
			out.Top = append(out.Top, entries[i])
		} else {
			out.Considered = append(out.Considered, entries[i])
		}
	}
	return out
}

// Document is the text a paper is scored on.
func Document(p types.Paper) string {
	return strings.TrimSpace(p.Title + ". " + p.Abstract)
}

func provenanceOrder(p types.Paper) int {
	if p.Provenance == types.ProvenanceAuthorSearch {
		return 1
	}
	return 0
}
