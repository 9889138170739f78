// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// CSLItem is a bibliographic entry in CSL (Citation Style Language) form.
// The field names follow the CSL-JSON/CSL-YAML schema so the output is
// consumable by Pandoc and reference managers.
type CSLItem struct {
	ID        string    `yaml:"id"`
	Type      string    `yaml:"type"`
	Title     string    `yaml:"title"`
	Author    []CSLName `yaml:"author,omitempty"`
	Abstract  string    `yaml:"abstract,omitempty"`
	Issued    *CSLDate  `yaml:"issued,omitempty"`
	DOI       string    `yaml:"DOI,omitempty"`
	URL       string    `yaml:"URL,omitempty"`
	Archive   string    `yaml:"archive,omitempty"`
	ArchiveID string    `yaml:"archive_location,omitempty"`
}

// CSLName is a person's name in CSL form.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate is a date in CSL form using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// WriteBibTeX writes the cumulative bibliography as BibTeX to w.
func (r *Registry) WriteBibTeX(ctx context.Context, w io.Writer) error {
	entries, err := r.Entries(ctx)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, joinBibTeX(entries))
	return err
}

// ExportCSL writes the cumulative bibliography as a CSL-YAML list to w.
func (r *Registry) ExportCSL(ctx context.Context, w io.Writer) error {
	entries, err := r.Entries(ctx)
	if err != nil {
		return err
	}
	items := make([]CSLItem, len(entries))
	for i, e := range entries {
		items[i] = toCSLItem(e)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encoding CSL: %w", err)
	}
	return nil
}

// ExportJSON writes the cumulative bibliography as indented JSON to w.
func (r *Registry) ExportJSON(ctx context.Context, w io.Writer) error {
	entries, err := r.Entries(ctx)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []types.BibEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func toCSLItem(e types.BibEntry) CSLItem {
	p := e.Paper
	item := CSLItem{
		ID:       e.Key,
		Type:     "article",
		Title:    p.Title,
		Abstract: p.Abstract,
		URL:      p.URL,
	}
	for _, a := range p.Authors {
		item.Author = append(item.Author, parseAuthorName(a))
	}
	if p.Year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{p.Year}}}
	}
	switch {
	case strings.HasPrefix(p.ID, "10."):
		item.DOI = p.ID
	case p.Source == "arxiv":
		item.Archive = "arXiv"
		item.ArchiveID = p.ID
	}
	return item
}

// parseAuthorName splits a full name into CSL family/given parts on the
// last space. "Family, Given" is honoured; single-token names use the
// literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	if family, given, ok := strings.Cut(name, ","); ok {
		return CSLName{Family: strings.TrimSpace(family), Given: strings.TrimSpace(given)}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}
