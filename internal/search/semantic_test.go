// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pdiddy/citation-engine/internal/apierr"
)

const sampleSemanticJSON = `{"total":3,"offset":0,"data":[
 {"paperId":"abc","title":"Attention Is All You Need","abstract":"Transformers.","year":2017,"url":"https://www.semanticscholar.org/paper/abc",
  "authors":[{"authorId":"1","name":"Ashish Vaswani"}],"externalIds":{"ArXiv":"1706.03762","DOI":"10.5555/3295222"},"openAccessPdf":{"url":"https://arxiv.org/pdf/1706.03762"}},
 {"paperId":"def","title":"Some Journal Paper","year":2019,"url":"https://www.semanticscholar.org/paper/def",
  "authors":[{"authorId":"2","name":"Jane Roe"}],"externalIds":{"DOI":"10.1000/xyz"}},
 {"paperId":"ghi","title":"Workshop Note","year":0,"authors":[],"externalIds":{}}
]}`

func withSemanticServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	oldSearch, oldPaper := semanticAPIBase, semanticPaperBase
	semanticAPIBase = ts.URL + "/search"
	semanticPaperBase = ts.URL + "/paper/"
	t.Cleanup(func() {
		semanticAPIBase, semanticPaperBase = oldSearch, oldPaper
		ts.Close()
	})
	return ts
}

func TestBuildSemanticQuery(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  string
	}{
		{"title only", Query{Title: "transformer models"}, "transformer models"},
		{"author only", Query{Author: "Vaswani"}, "Vaswani"},
		{"title and author", Query{Title: "attention", Author: "Vaswani"}, "attention Vaswani"},
		{"all fields", Query{Title: "attention", Author: "Vaswani", FreeText: "nlp"}, "attention Vaswani nlp"},
		{"empty query", Query{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildSemanticQuery(tt.query); got != tt.want {
				t.Errorf("buildSemanticQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSemanticScholarIndexSearch(t *testing.T) {
	var captured *http.Request
	ts := withSemanticServer(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, sampleSemanticJSON)
	})

	b := &SemanticScholarIndex{Client: ts.Client(), APIKey: "s2-key", MaxResults: 15}
	results, err := b.Search(context.Background(), Query{Title: "attention"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}

	if got := captured.URL.Query().Get("limit"); got != "15" {
		t.Errorf("limit = %q, want 15", got)
	}
	if got := captured.Header.Get("x-api-key"); got != "s2-key" {
		t.Errorf("x-api-key = %q", got)
	}

	// arXiv ID preferred, URL rewritten to the abs page.
	if results[0].ID != "1706.03762" || results[0].URL != "https://arxiv.org/abs/1706.03762" {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[0].PDFURL != "https://arxiv.org/pdf/1706.03762" {
		t.Errorf("PDFURL = %q", results[0].PDFURL)
	}
	// DOI next.
	if results[1].ID != "10.1000/xyz" {
		t.Errorf("results[1].ID = %q, want DOI", results[1].ID)
	}
	// Paper ID last.
	if results[2].ID != "ghi" {
		t.Errorf("results[2].ID = %q, want paper ID", results[2].ID)
	}
	for _, r := range results {
		if r.Source != "semantic_scholar" {
			t.Errorf("Source = %q", r.Source)
		}
	}
}

func TestSemanticScholarIndexNoAPIKeyHeader(t *testing.T) {
	var captured *http.Request
	ts := withSemanticServer(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r
		fmt.Fprint(w, `{"data":[]}`)
	})
	b := &SemanticScholarIndex{Client: ts.Client()}
	if _, err := b.Search(context.Background(), Query{Author: "Hinton"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := captured.Header["X-Api-Key"]; ok {
		t.Error("x-api-key header should be absent without a key")
	}
}

func TestSemanticScholarIndexIDLookup(t *testing.T) {
	var paths []string
	ts := withSemanticServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.HasSuffix(r.URL.Path, "9999.99999") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"paperId":"abc","title":"Attention Is All You Need","year":2017,"authors":[{"name":"Ashish Vaswani"}],"externalIds":{"ArXiv":"1706.03762"}}`)
	})

	b := &SemanticScholarIndex{Client: ts.Client()}
	results, err := b.Search(context.Background(), Query{IDs: []string{"1706.03762", "9999.99999"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "1706.03762" {
		t.Errorf("results = %+v, want the one found paper", results)
	}
	if len(paths) != 2 || paths[0] != "/paper/arXiv:1706.03762" {
		t.Errorf("paths = %v", paths)
	}
}

func TestSemanticScholarIndexAuthFailure(t *testing.T) {
	ts := withSemanticServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	b := &SemanticScholarIndex{Client: ts.Client(), APIKey: "revoked"}
	_, err := b.Search(context.Background(), Query{Title: "x"})
	if !apierr.IsAuth(err) {
		t.Errorf("err = %v, want auth failure", err)
	}
}
