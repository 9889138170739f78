// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citation-engine/pkg/types"
)

const paragraph = "Transformers use self-attention to model dependencies in sequences without recurrence."

func ids(entries []types.RankedEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Paper.ID
	}
	return out
}

func TestRankOrdersByRelevance(t *testing.T) {
	papers := []types.Paper{
		{ID: "bio", Title: "Protein folding with evolutionary couplings", Provenance: types.ProvenanceDirect},
		{ID: "attn", Title: "Attention Is All You Need", Abstract: "A transformer based solely on self-attention for sequences, dispensing with recurrence.", Provenance: types.ProvenanceDirect},
		{ID: "rnn", Title: "Recurrent neural network sequences", Abstract: "Modelling sequences with recurrence.", Provenance: types.ProvenanceAuthorSearch},
	}
	r := Ranker{TopK: 2}.Rank(paragraph, papers)

	assert.Equal(t, []string{"attn", "rnn"}, ids(r.Top))
	assert.Equal(t, []string{"bio"}, ids(r.Considered))
	assert.Equal(t, 1, r.Top[0].Rank)
	assert.Equal(t, 3, r.Considered[0].Rank)
	assert.Greater(t, r.Top[0].Score, r.Top[1].Score)
	for _, e := range append(r.Top, r.Considered...) {
		assert.GreaterOrEqual(t, e.Score, 0.0)
		assert.LessOrEqual(t, e.Score, 1.0)
	}
}

func TestRankTiesAreDeterministic(t *testing.T) {
	papers := []types.Paper{
		{ID: "author-first", Title: "Unrelated topic one", Provenance: types.ProvenanceAuthorSearch},
		{ID: "direct-second", Title: "Unrelated topic two", Provenance: types.ProvenanceDirect},
		{ID: "direct-third", Title: "Unrelated topic three", Provenance: types.ProvenanceDirect},
	}
	for i := 0; i < 5; i++ {
		r := Ranker{TopK: 3}.Rank("completely different words here", papers)
		require.Len(t, r.Top, 3)
		assert.Equal(t, []string{"direct-second", "direct-third", "author-first"}, ids(r.Top))
	}
}

func TestRankTopKLargerThanPool(t *testing.T) {
	papers := []types.Paper{{ID: "a", Title: "Self-attention"}}
	r := Ranker{TopK: 10}.Rank(paragraph, papers)
	assert.Len(t, r.Top, 1)
	assert.Empty(t, r.Considered)
}

func TestRankDefaultTopK(t *testing.T) {
	var papers []types.Paper
	for i := 0; i < 8; i++ {
		papers = append(papers, types.Paper{ID: string(rune('a' + i)), Title: "sequence model"})
	}
	r := Ranker{}.Rank(paragraph, papers)
	assert.Len(t, r.Top, DefaultTopK)
	assert.Len(t, r.Considered, 3)
}

func TestRankMinScore(t *testing.T) {
	papers := []types.Paper{
		{ID: "attn", Title: "Self-attention for sequences"},
		{ID: "bio", Title: "Protein folding"},
	}
	r := Ranker{TopK: 5, MinScore: 0.05}.Rank(paragraph, papers)
	assert.Equal(t, []string{"attn"}, ids(r.Top))
	assert.Equal(t, []string{"bio"}, ids(r.Considered))
}

func TestRankEmptyPool(t *testing.T) {
	r := Ranker{TopK: 3}.Rank(paragraph, nil)
	assert.NotNil(t, r.Top)
	assert.Empty(t, r.Top)
	assert.Empty(t, r.Considered)
}

func TestRankEqualDocumentsPreferDirect(t *testing.T) {
	abstract := "A transformer based solely on self-attention for sequences, dispensing with recurrence and convolutions entirely."
	papers := []types.Paper{
		{ID: "from-author", Title: "Attention Is All You Need", Abstract: abstract, Provenance: types.ProvenanceAuthorSearch},
		{ID: "direct", Title: "Attention Is All You Need", Abstract: abstract, Provenance: types.ProvenanceDirect},
		{ID: "other", Title: "Protein folding", Provenance: types.ProvenanceDirect},
	}
	for i := 0; i < 500; i++ {
		r := Ranker{TopK: 3}.Rank(paragraph, papers)
		require.Len(t, r.Top, 3)
		require.Greater(t, r.Top[0].Score, 0.0)
		require.Equal(t, r.Top[0].Score, r.Top[1].Score)
		require.Equal(t, []string{"direct", "from-author", "other"}, ids(r.Top))
	}
}
