// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// Provenance records how a paper entered the candidate pool.
type Provenance string

const (
	ProvenanceDirect       Provenance = "direct"
	ProvenanceAuthorSearch Provenance = "author_search"
)

// Paper is an academic work confirmed to exist in the search index.
type Paper struct {
	// ID is the index-assigned identifier (arXiv ID, DOI, or index key).
	// It is the deduplication key across the pipeline.
	ID string `json:"id" yaml:"id"`

	// Title is the paper title as returned by the index.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Year is the publication year (0 when unknown).
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Abstract is the paper abstract or summary.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// URL is the landing page of the paper.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// PDFURL is a direct PDF link when the index provides one.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// PrimaryClass is the arXiv primary category (e.g. "cs.CR") when known.
	PrimaryClass string `json:"primary_class,omitempty" yaml:"primary_class,omitempty"`

	// Source identifies the index that returned the paper (e.g. "arxiv").
	Source string `json:"source" yaml:"source"`

	// Provenance records whether the paper was validated directly or
	// surfaced by an author search.
	Provenance Provenance `json:"provenance,omitempty" yaml:"provenance,omitempty"`

	// FromAuthor is the author whose query surfaced the paper.
	FromAuthor string `json:"from_author,omitempty" yaml:"from_author,omitempty"`
}

// YearString returns the year as text, or "" when unknown.
func (p Paper) YearString() string {
	if p.Year <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", p.Year)
}
