// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/citation-engine/internal/apierr"
	"github.com/pdiddy/citation-engine/internal/httputil"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint and
// semanticPaperBase the single-paper lookup. Declared as vars so tests can
// substitute an httptest server.
var (
	semanticAPIBase   = "https://api.semanticscholar.org/graph/v1/paper/search"
	semanticPaperBase = "https://api.semanticscholar.org/graph/v1/paper/"
)

const semanticFields = "title,abstract,authors,externalIds,year,url,openAccessPdf"

// SemanticScholarIndex queries the Semantic Scholar Graph API.
type SemanticScholarIndex struct {
	Client     *http.Client
	UserAgent  string
	MaxResults int
	APIKey     string
}

// Name returns the backend identifier.
func (b *SemanticScholarIndex) Name() string { return "semantic_scholar" }

// Search queries Semantic Scholar. ID queries look up each arXiv ID
// individually; other queries use relevance search.
func (b *SemanticScholarIndex) Search(ctx context.Context, query Query) ([]types.Paper, error) {
	if query.IsEmpty() {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}
	headers := map[string]string{"User-Agent": b.UserAgent, "x-api-key": b.APIKey}

	if len(query.IDs) > 0 {
		var results []types.Paper
		for _, id := range query.IDs {
			reqURL := semanticPaperBase + "arXiv:" + url.PathEscape(id) + "?fields=" + semanticFields
			var sp semanticPaper
			err := httputil.GetJSON(ctx, b.Client, reqURL, headers, b.Name(), "lookup", &sp)
			if err != nil {
				var se *apierr.ServiceError
				if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
					continue
				}
				return nil, err
			}
			results = append(results, sp.toPaper())
		}
		return results, nil
	}

	params := url.Values{
		"query":  {buildSemanticQuery(query)},
		"limit":  {strconv.Itoa(query.limit(b.MaxResults))},
		"fields": {semanticFields},
	}
	var sr semanticResponse
	if err := httputil.GetJSON(ctx, b.Client, semanticAPIBase+"?"+params.Encode(), headers, b.Name(), "search", &sr); err != nil {
		return nil, err
	}

	var results []types.Paper
	for _, paper := range sr.Data {
		results = append(results, paper.toPaper())
	}
	return results, nil
}

// buildSemanticQuery combines query fields into a search string.
func buildSemanticQuery(q Query) string {
	var parts []string
	for _, s := range []string{q.Title, q.Author, q.FreeText} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID       string              `json:"paperId"`
	Title         string              `json:"title"`
	Abstract      string              `json:"abstract"`
	Year          int                 `json:"year"`
	URL           string              `json:"url"`
	Authors       []semanticAuthor    `json:"authors"`
	ExternalIDs   semanticExternalIDs `json:"externalIds"`
	OpenAccessPDF *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

// toPaper converts the API record. The ID prefers arXiv, then DOI, then
// the Semantic Scholar paper ID.
func (sp semanticPaper) toPaper() types.Paper {
	p := types.Paper{
		Title:    sp.Title,
		Abstract: sp.Abstract,
		Year:     sp.Year,
		URL:      sp.URL,
		Source:   "semantic_scholar",
	}
	for _, a := range sp.Authors {
		p.Authors = append(p.Authors, a.Name)
	}
	switch {
	case sp.ExternalIDs.ArXiv != "":
		p.ID = sp.ExternalIDs.ArXiv
		p.URL = "https://arxiv.org/abs/" + sp.ExternalIDs.ArXiv
	case sp.ExternalIDs.DOI != "":
		p.ID = sp.ExternalIDs.DOI
	default:
		p.ID = sp.PaperID
	}
	if sp.OpenAccessPDF != nil {
		p.PDFURL = sp.OpenAccessPDF.URL
	}
	return p
}
