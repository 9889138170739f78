// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citation-engine/internal/apierr"
	"github.com/pdiddy/citation-engine/internal/pipeline"
	"github.com/pdiddy/citation-engine/pkg/types"
)

const token = "s3cret"

type mockRunner struct {
	mu    sync.Mutex
	calls []string
	runFn func(ctx context.Context, paragraph string) (*pipeline.Outcome, error)
}

func (m *mockRunner) Run(ctx context.Context, paragraph string) (*pipeline.Outcome, error) {
	m.mu.Lock()
	m.calls = append(m.calls, paragraph)
	m.mu.Unlock()
	if m.runFn != nil {
		return m.runFn(ctx, paragraph)
	}
	res := types.CitationResult{
		Paragraph: paragraph,
		CitedText: paragraph + ` \cite{Vaswani2017}`,
		Entries:   []types.BibEntry{{Key: "Vaswani2017", BibTeX: "@article{Vaswani2017,\n  title={Attention Is All You Need}\n}"}},
	}
	return &pipeline.Outcome{RunID: "r1", State: pipeline.StatusDone, Result: &res}, nil
}

func testSetup(t *testing.T, runner Runner) *httptest.Server {
	t.Helper()
	s, err := New(types.ServerConfig{APIToken: token, MaxTextLength: 100}, runner, nil, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, auth, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestCitationsSuccess(t *testing.T) {
	runner := &mockRunner{}
	ts := testSetup(t, runner)

	for _, path := range []string{"/citations", "/citations/"} {
		t.Run(path, func(t *testing.T) {
			resp, body := post(t, ts.URL+path, "Bearer "+token, `{"text": "  Transformers changed NLP.  "}`)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			var got CitationResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, `Transformers changed NLP. \cite{Vaswani2017}`, got.CitedText)
			require.Len(t, got.BibTeXEntries, 1)
			assert.True(t, strings.HasPrefix(got.BibTeXEntries[0], "@article{Vaswani2017,"))
		})
	}
	assert.Equal(t, []string{"Transformers changed NLP.", "Transformers changed NLP."}, runner.calls)
}

func TestCitationsEmptyResult(t *testing.T) {
	runner := &mockRunner{runFn: func(_ context.Context, p string) (*pipeline.Outcome, error) {
		res := types.CitationResult{Paragraph: p, CitedText: p}
		return &pipeline.Outcome{State: pipeline.StatusDone, Result: &res}, nil
	}}
	ts := testSetup(t, runner)

	resp, body := post(t, ts.URL+"/citations", "Bearer "+token, `{"text": "Nothing to cite."}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"cited_text": "Nothing to cite.", "bibtex_entries": []}`, string(body))
}

func TestCitationsAuth(t *testing.T) {
	tests := []struct {
		name string
		auth string
	}{
		{"missing header", ""},
		{"wrong token", "Bearer nope"},
		{"wrong scheme", "Basic " + token},
		{"empty bearer", "Bearer "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{}
			ts := testSetup(t, runner)
			resp, body := post(t, ts.URL+"/citations", tt.auth, `{"text": "Paragraph."}`)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
			assert.Contains(t, string(body), `"error"`)
			assert.Empty(t, runner.calls, "pipeline must not run")
		})
	}
}

func TestCitationsValidation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{"malformed json", `{"text": `, "invalid JSON"},
		{"missing text", `{}`, "text is required"},
		{"empty text", `{"text": "   "}`, "cannot be empty"},
		{"line break", `{"text": "one\ntwo"}`, "single paragraph"},
		{"too long", `{"text": "` + strings.Repeat("a", 101) + `"}`, "must not exceed 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{}
			ts := testSetup(t, runner)
			resp, body := post(t, ts.URL+"/citations", "Bearer "+token, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var got ErrorResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Contains(t, got.Error, tt.errMsg)
			assert.Empty(t, runner.calls)
		})
	}
}

func TestCitationsUpstreamFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		phase   string
		service string
	}{
		{
			name:    "external service",
			err:     &pipeline.PhaseError{Phase: pipeline.PhaseValidating, Err: apierr.FromStatus("arxiv", "search", 503, "busy")},
			status:  http.StatusBadGateway,
			phase:   "validating",
			service: "arxiv",
		},
		{
			name:    "timeout",
			err:     &pipeline.PhaseError{Phase: pipeline.PhaseExtracting, Err: apierr.New("claude", "messages", apierr.ErrTimeout, context.DeadlineExceeded)},
			status:  http.StatusGatewayTimeout,
			phase:   "extracting",
			service: "claude",
		},
		{
			name:    "internal",
			err:     &pipeline.PhaseError{Phase: pipeline.PhaseFormatting, Err: errors.New("disk full")},
			status:  http.StatusInternalServerError,
			phase:   "formatting",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{runFn: func(context.Context, string) (*pipeline.Outcome, error) {
				return &pipeline.Outcome{RunID: "r", State: pipeline.StatusFailed}, tt.err
			}}
			ts := testSetup(t, runner)
			resp, body := post(t, ts.URL+"/citations", "Bearer "+token, `{"text": "Paragraph."}`)
			assert.Equal(t, tt.status, resp.StatusCode)
			var got ErrorResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, tt.phase, got.Phase)
			assert.Equal(t, tt.service, got.Service)
			assert.NotEmpty(t, got.Error)
		})
	}
}

func TestDescriptionAndHealth(t *testing.T) {
	ts := testSetup(t, &mockRunner{})

	for path, want := range map[string]string{
		"/":          `{"description": "Academic Citation API", "endpoints": {"/citations": "POST - Get citations for a text paragraph"}}`,
		"/citations": `{"description": "POST - Get citations for a text paragraph"}`,
		"/health":    `{"status": "ok"}`,
	} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.JSONEq(t, want, string(body), path)
	}

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := testSetup(t, &mockRunner{})
	post(t, ts.URL+"/citations", "Bearer "+token, `{"text": "Paragraph."}`)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `citation_engine_http_requests_total{code="200",route="POST /citations"} 1`)
	assert.Contains(t, string(body), `citation_engine_runs_total{state="done"} 1`)
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics()
	m.PhaseStarted("r", pipeline.PhaseRanking)
	m.PhaseFinished("r", pipeline.PhaseRanking, 0, nil)
	m.PhaseFinished("r", pipeline.PhaseRanking, 0, errors.New("x"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `citation_engine_phase_duration_seconds_count{phase="ranking",result="ok"} 1`)
	assert.Contains(t, rec.Body.String(), `citation_engine_phase_duration_seconds_count{phase="ranking",result="error"} 1`)
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(types.ServerConfig{}, &mockRunner{}, nil, nil)
	assert.Error(t, err)
}
