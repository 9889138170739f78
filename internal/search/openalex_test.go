// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pdiddy/citation-engine/internal/apierr"
)

const sampleOpenAlexJSON = `{
	"meta": {"count": 2, "per_page": 20, "page": 1},
	"results": [
		{
			"id": "https://openalex.org/W2963403868",
			"title": "Attention Is All You Need",
			"doi": "https://doi.org/10.5555/3295222.3295349",
			"publication_year": 2017,
			"authorships": [
				{"author": {"id": "A1", "display_name": "Ashish Vaswani"}},
				{"author": {"id": "A2", "display_name": "Noam Shazeer"}}
			],
			"abstract_inverted_index": {"We": [0], "propose": [1], "attention": [2]},
			"open_access": {"is_oa": true, "oa_url": "https://example.org/paper.pdf"}
		},
		{
			"id": "https://openalex.org/W3210812345",
			"title": "BERT",
			"doi": null,
			"publication_year": 2018,
			"authorships": [{"author": {"id": "A3", "display_name": "Jacob Devlin"}}],
			"abstract_inverted_index": {},
			"open_access": {"is_oa": false}
		}
	]
}`

func withOpenAlexServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	old := openAlexSearchBase
	openAlexSearchBase = ts.URL
	t.Cleanup(func() {
		openAlexSearchBase = old
		ts.Close()
	})
	return ts
}

func TestBuildOpenAlexParams(t *testing.T) {
	tests := []struct {
		name       string
		query      Query
		wantFilter string
		wantSearch string
	}{
		{"title", Query{Title: "Attention, please"}, "title.search:Attention please", ""},
		{"author", Query{Author: "Geoffrey Hinton"}, "raw_author_name.search:Geoffrey Hinton", ""},
		{"both", Query{Title: "Deep Learning", Author: "LeCun"}, "title.search:Deep Learning,raw_author_name.search:LeCun", ""},
		{"free text", Query{FreeText: "graph neural networks"}, "", "graph neural networks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := buildOpenAlexParams(tt.query)
			if got := p.Get("filter"); got != tt.wantFilter {
				t.Errorf("filter = %q, want %q", got, tt.wantFilter)
			}
			if got := p.Get("search"); got != tt.wantSearch {
				t.Errorf("search = %q, want %q", got, tt.wantSearch)
			}
		})
	}
}

func TestReconstructAbstract(t *testing.T) {
	got := reconstructAbstract(map[string][]int{"the": {0, 3}, "cat": {1}, "saw": {2}, "dog": {4}})
	if got != "the cat saw the dog" {
		t.Errorf("reconstructAbstract = %q", got)
	}
	if reconstructAbstract(nil) != "" {
		t.Error("nil index should give empty abstract")
	}
}

func TestOpenAlexIndexSearch(t *testing.T) {
	var captured *http.Request
	ts := withOpenAlexServer(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r
		fmt.Fprint(w, sampleOpenAlexJSON)
	})

	b := &OpenAlexIndex{Client: ts.Client(), Email: "test@example.com"}
	results, err := b.Search(context.Background(), Query{Title: "attention", MaxResults: 500})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}

	q := captured.URL.Query()
	if q.Get("mailto") != "test@example.com" {
		t.Errorf("mailto = %q", q.Get("mailto"))
	}
	if q.Get("per_page") != "200" {
		t.Errorf("per_page = %q, want capped at 200", q.Get("per_page"))
	}

	r0 := results[0]
	if r0.ID != "10.5555/3295222.3295349" {
		t.Errorf("ID = %q, want DOI without prefix", r0.ID)
	}
	if r0.Year != 2017 || len(r0.Authors) != 2 || r0.Authors[1] != "Noam Shazeer" {
		t.Errorf("r0 = %+v", r0)
	}
	if !strings.Contains(r0.Abstract, "propose attention") {
		t.Errorf("Abstract = %q", r0.Abstract)
	}
	if r0.PDFURL != "https://example.org/paper.pdf" {
		t.Errorf("PDFURL = %q", r0.PDFURL)
	}

	r1 := results[1]
	if r1.ID != "https://openalex.org/W3210812345" {
		t.Errorf("ID = %q, want OpenAlex ID", r1.ID)
	}
	if r1.Abstract != "" || r1.PDFURL != "" {
		t.Errorf("r1 = %+v", r1)
	}
}

func TestOpenAlexIndexIDOnlyQuery(t *testing.T) {
	called := false
	ts := withOpenAlexServer(t, func(w http.ResponseWriter, _ *http.Request) {
		called = true
	})
	b := &OpenAlexIndex{Client: ts.Client()}
	results, err := b.Search(context.Background(), Query{IDs: []string{"1706.03762"}})
	if err != nil || results != nil {
		t.Errorf("results = %v, err = %v; want nil, nil", results, err)
	}
	if called {
		t.Error("no request expected for an ID-only query")
	}
}

func TestOpenAlexIndexErrors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		ts := withOpenAlexServer(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		b := &OpenAlexIndex{Client: ts.Client()}
		_, err := b.Search(context.Background(), Query{Title: "x"})
		if !errors.Is(err, apierr.ErrUnavailable) {
			t.Errorf("err = %v", err)
		}
	})
	t.Run("malformed JSON", func(t *testing.T) {
		ts := withOpenAlexServer(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"results": [`)
		})
		b := &OpenAlexIndex{Client: ts.Client()}
		_, err := b.Search(context.Background(), Query{Title: "x"})
		if !errors.Is(err, apierr.ErrParse) {
			t.Errorf("err = %v", err)
		}
	})
}
