// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// RankedEntry is a candidate paper with its relevance score for one run.
// Scores are comparable only within the run that produced them.
type RankedEntry struct {
	Paper Paper   `json:"paper" yaml:"paper"`
	Score float64 `json:"score" yaml:"score"`
	// Rank is 1-based.
	Rank int `json:"rank" yaml:"rank"`
}

// BibEntry is one bibliography entry of a citation result.
type BibEntry struct {
	Key    string `json:"key" yaml:"key"`
	Paper  Paper  `json:"paper" yaml:"paper"`
	BibTeX string `json:"bibtex" yaml:"bibtex"`
}

// EndOfParagraph is the MarkerGroup.Sentence value for a group appended
// after the last sentence.
const EndOfParagraph = -1

// MarkerGroup is one inline citation marker holding one or more keys.
type MarkerGroup struct {
	// Sentence is the 0-based sentence index the marker attaches to, or
	// EndOfParagraph.
	Sentence int      `json:"sentence" yaml:"sentence"`
	Keys     []string `json:"keys" yaml:"keys"`
}

// CitationResult is the final output of a run: the paragraph with inline
// markers and the bibliography entries they refer to. Every key used in
// Groups has exactly one entry in Entries.
type CitationResult struct {
	Paragraph string        `json:"paragraph" yaml:"paragraph"`
	CitedText string        `json:"cited_text" yaml:"cited_text"`
	Groups    []MarkerGroup `json:"groups,omitempty" yaml:"groups,omitempty"`
	Entries   []BibEntry    `json:"entries" yaml:"entries"`
}

// Keys returns the bibliography keys in entry order.
func (r CitationResult) Keys() []string {
	keys := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		keys[i] = e.Key
	}
	return keys
}

// BibTeX returns the rendered entries in order.
func (r CitationResult) BibTeX() []string {
	out := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.BibTeX
	}
	return out
}

// MarkerCount returns the number of keys referenced by inline markers.
func (r CitationResult) MarkerCount() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Keys)
	}
	return n
}
