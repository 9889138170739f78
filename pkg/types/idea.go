// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the citation-engine
// pipeline: ideas proposed by the language model, papers confirmed by the
// search index, ranked entries, and the final citation result.
package types

// Idea is an unverified candidate reference proposed by the language model.
// Nothing in an Idea is trusted until the validator confirms it against the
// search index.
type Idea struct {
	// Title is the proposed paper title.
	Title string `json:"title" yaml:"title"`

	// Authors lists the proposed authors in the order the model gave them.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Year is the proposed publication year (0 when unknown).
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// URL is a model-guessed arXiv URL or identifier. Optional.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Topic is a short topic hint.
	Topic string `json:"topic,omitempty" yaml:"topic,omitempty"`

	// Relevance is the model's stated reason for suggesting the paper.
	Relevance string `json:"relevance,omitempty" yaml:"relevance,omitempty"`

	// Confidence is the model's self-reported confidence in [0,1] (0 when absent).
	Confidence float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// FirstAuthor returns the first proposed author, or "" when none.
func (i Idea) FirstAuthor() string {
	if len(i.Authors) == 0 {
		return ""
	}
	return i.Authors[0]
}
