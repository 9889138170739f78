// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/citation-engine/internal/httputil"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// openAlexSearchBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexSearchBase = "https://api.openalex.org/works"

// OpenAlexIndex queries the OpenAlex API.
type OpenAlexIndex struct {
	Client     *http.Client
	UserAgent  string
	MaxResults int
	// Email is sent as mailto parameter for polite pool access.
	Email string
}

// Name returns the backend identifier.
func (b *OpenAlexIndex) Name() string { return "openalex" }

// Search queries the OpenAlex API. OpenAlex has no arXiv identifier
// lookup, so a query holding only IDs returns no papers.
func (b *OpenAlexIndex) Search(ctx context.Context, query Query) ([]types.Paper, error) {
	if query.IsEmpty() {
		return nil, fmt.Errorf("empty OpenAlex query")
	}
	params := buildOpenAlexParams(query)
	if len(params) == 0 {
		return nil, nil
	}

	maxResults := query.limit(b.MaxResults)
	if maxResults > 200 {
		maxResults = 200
	}
	params.Set("per_page", strconv.Itoa(maxResults))
	params.Set("page", "1")
	if b.Email != "" {
		params.Set("mailto", b.Email)
	}

	var oar openAlexResponse
	reqURL := openAlexSearchBase + "?" + params.Encode()
	if err := httputil.GetJSON(ctx, b.Client, reqURL, map[string]string{"User-Agent": b.UserAgent}, b.Name(), "search", &oar); err != nil {
		return nil, err
	}

	var results []types.Paper
	for _, work := range oar.Results {
		results = append(results, work.toPaper())
	}
	return results, nil
}

// buildOpenAlexParams maps fielded queries to OpenAlex filters and free
// text to the search parameter.
func buildOpenAlexParams(q Query) url.Values {
	params := url.Values{}
	var filters []string
	if t := strings.TrimSpace(q.Title); t != "" {
		filters = append(filters, "title.search:"+stripFilterChars(t))
	}
	if a := strings.TrimSpace(q.Author); a != "" {
		filters = append(filters, "raw_author_name.search:"+stripFilterChars(a))
	}
	if len(filters) > 0 {
		params.Set("filter", strings.Join(filters, ","))
	}
	if ft := strings.TrimSpace(q.FreeText); ft != "" {
		params.Set("search", ft)
	}
	return params
}

// stripFilterChars removes the separators OpenAlex uses inside filter values.
func stripFilterChars(s string) string {
	return strings.Join(strings.Fields(strings.NewReplacer(",", " ", "|", " ", ":", " ").Replace(s)), " ")
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	PublicationYear       int                  `json:"publication_year"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	OpenAccess            openAlexOpenAccess   `json:"open_access"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAlexOpenAccess struct {
	IsOA  bool   `json:"is_oa"`
	OAURL string `json:"oa_url"`
}

// toPaper converts a work. DOI is preferred as identifier since OpenAlex
// is DOI-centric; the https://doi.org/ prefix is stripped.
func (w openAlexWork) toPaper() types.Paper {
	p := types.Paper{
		Title:    w.Title,
		Abstract: reconstructAbstract(w.AbstractInvertedIndex),
		Year:     w.PublicationYear,
		Source:   "openalex",
	}
	for _, authorship := range w.Authorships {
		if authorship.Author.DisplayName != "" {
			p.Authors = append(p.Authors, authorship.Author.DisplayName)
		}
	}
	if w.DOI != "" {
		p.ID = strings.TrimPrefix(w.DOI, "https://doi.org/")
		p.URL = w.DOI
	} else {
		p.ID = w.ID
		p.URL = w.ID
	}
	if w.OpenAccess.IsOA {
		p.PDFURL = w.OpenAccess.OAURL
	}
	return p
}
