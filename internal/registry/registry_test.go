// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citation-engine/internal/cite"
	"github.com/pdiddy/citation-engine/pkg/types"
)

func testSetup(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func result(paragraph string, papers ...types.Paper) types.CitationResult {
	top := make([]types.RankedEntry, len(papers))
	for i, p := range papers {
		top[i] = types.RankedEntry{Paper: p, Rank: i + 1}
	}
	return cite.Formatter{Placement: cite.PlaceEnd}.Format(paragraph, top)
}

var (
	smith1 = types.Paper{ID: "2001.00001", Title: "Graph networks", Authors: []string{"Jane Smith"}, Year: 2020, Source: "arxiv", URL: "https://arxiv.org/abs/2001.00001"}
	smith2 = types.Paper{ID: "2001.00002", Title: "Graph kernels", Authors: []string{"John Smith"}, Year: 2020, Source: "arxiv"}
	lee    = types.Paper{ID: "10.1000/lee", Title: "Sampling graphs", Authors: []string{"Lee, Ann"}, Year: 2019, Source: "openalex"}
)

func TestReconcileAcrossRuns(t *testing.T) {
	r := testSetup(t)
	ctx := context.Background()

	first, err := r.Reconcile(ctx, "run-1", result("Graphs matter.", smith1))
	require.NoError(t, err)
	assert.Equal(t, []string{"Smith2020"}, first.Keys())

	// A different Smith 2020 paper in a later run must not reuse the key.
	second, err := r.Reconcile(ctx, "run-2", result("Kernels too.", smith2, smith1))
	require.NoError(t, err)
	assert.Equal(t, []string{"Smith2020a", "Smith2020"}, second.Keys())
	assert.Equal(t, `Kernels too. \cite{Smith2020a,Smith2020}`, second.CitedText)
	assert.True(t, strings.HasPrefix(second.Entries[0].BibTeX, "@article{Smith2020a,"))

	entries, err := r.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Smith2020", entries[0].Key)
	assert.Equal(t, "2001.00001", entries[0].Paper.ID)
	assert.Equal(t, "Smith2020a", entries[1].Key)

	data, err := os.ReadFile(r.BibPath())
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "@article{"))
	assert.Contains(t, string(data), "@article{Smith2020a,")
}

func TestReconcileEmpty(t *testing.T) {
	r := testSetup(t)
	res := result("Nothing.")
	out, err := r.Reconcile(context.Background(), "run", res)
	require.NoError(t, err)
	assert.Equal(t, res, out)
	_, err = os.Stat(r.BibPath())
	assert.True(t, os.IsNotExist(err))
}

func TestReconcileConcurrent(t *testing.T) {
	r := testSetup(t)
	ctx := context.Background()

	papers := []types.Paper{smith1, smith2,
		{ID: "2001.00003", Title: "Graph sampling", Authors: []string{"Al Smith"}, Year: 2020},
		{ID: "2001.00004", Title: "Graph pooling", Authors: []string{"Bo Smith"}, Year: 2020},
	}
	var wg sync.WaitGroup
	errs := make([]error, len(papers))
	for i, p := range papers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.Reconcile(ctx, "run", result("Graphs.", p))
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	entries, err := r.Entries(ctx)
	require.NoError(t, err)
	keys := map[string]bool{}
	for _, e := range entries {
		assert.False(t, keys[e.Key], "duplicate key %s", e.Key)
		keys[e.Key] = true
	}
	assert.Len(t, keys, 4)
}

func TestRecordAndListRuns(t *testing.T) {
	r := testSetup(t)
	ctx := context.Background()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, r.RecordRun(ctx, RunRecord{ID: "a", Dir: "/tmp/a", Paragraph: "p", State: "extracting", CreatedAt: created}))
	require.NoError(t, r.RecordRun(ctx, RunRecord{ID: "b", Dir: "/tmp/b", State: "done", Entries: 3, CreatedAt: created.Add(time.Hour)}))
	require.NoError(t, r.RecordRun(ctx, RunRecord{ID: "a", Dir: "/tmp/a", Paragraph: "p", State: "failed", FailedPhase: "validating", Error: "boom", CreatedAt: created}))

	runs, err := r.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, 3, runs[0].Entries)
	assert.Equal(t, "a", runs[1].ID)
	assert.Equal(t, "failed", runs[1].State)
	assert.Equal(t, "validating", runs[1].FailedPhase)
	assert.Equal(t, created, runs[1].CreatedAt)

	limited, err := r.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestExports(t *testing.T) {
	r := testSetup(t)
	ctx := context.Background()
	_, err := r.Reconcile(ctx, "run", result("Graphs.", smith1, lee))
	require.NoError(t, err)

	var bib bytes.Buffer
	require.NoError(t, r.WriteBibTeX(ctx, &bib))
	assert.Contains(t, bib.String(), "@article{Smith2020,")
	assert.Contains(t, bib.String(), "doi={10.1000/lee}")

	var csl bytes.Buffer
	require.NoError(t, r.ExportCSL(ctx, &csl))
	var items []CSLItem
	require.NoError(t, yaml.Unmarshal(csl.Bytes(), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "Smith2020", items[0].ID)
	assert.Equal(t, "arXiv", items[0].Archive)
	assert.Equal(t, CSLName{Given: "Jane", Family: "Smith"}, items[0].Author[0])
	assert.Equal(t, [][]int{{2020}}, items[0].Issued.DateParts)
	assert.Equal(t, "10.1000/lee", items[1].DOI)
	assert.Equal(t, CSLName{Family: "Lee", Given: "Ann"}, items[1].Author[0])

	var js bytes.Buffer
	require.NoError(t, r.ExportJSON(ctx, &js))
	var entries []types.BibEntry
	require.NoError(t, json.Unmarshal(js.Bytes(), &entries))
	assert.Len(t, entries, 2)
}

func TestParseAuthorName(t *testing.T) {
	assert.Equal(t, CSLName{Literal: "Plato"}, parseAuthorName("Plato"))
	assert.Equal(t, CSLName{Given: "Ada", Family: "Lovelace"}, parseAuthorName(" Ada Lovelace "))
	assert.Equal(t, CSLName{}, parseAuthorName(""))
}
