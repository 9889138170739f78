// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package candidates

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citation-engine/pkg/types"
)

func TestPoolFirstProvenanceWins(t *testing.T) {
	p := NewPool(types.Paper{ID: "a", Title: "A", Provenance: types.ProvenanceDirect})

	added := p.Add(types.Paper{ID: "a", Title: "A", Provenance: types.ProvenanceAuthorSearch, FromAuthor: "X"})
	assert.False(t, added)
	require.Equal(t, 1, p.Len())
	assert.Equal(t, types.ProvenanceDirect, p.Papers()[0].Provenance)
	assert.Empty(t, p.Papers()[0].FromAuthor)
}

func TestPoolMergePreservesOrder(t *testing.T) {
	p := NewPool()
	n := p.Merge([]types.Paper{{ID: "c"}, {ID: "a"}, {ID: "c"}, {ID: "b"}})
	assert.Equal(t, 3, n)

	var ids []string
	for _, paper := range p.Papers() {
		ids = append(ids, paper.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestPoolKeyFallsBackToTitle(t *testing.T) {
	p := NewPool(types.Paper{Title: "Deep Learning."})
	assert.False(t, p.Add(types.Paper{Title: "deep learning"}))
	assert.True(t, p.Contains(types.Paper{Title: "Deep  Learning"}))
	assert.True(t, p.Add(types.Paper{ID: "x", Title: "Deep Learning"}))
}

func TestPoolPapersIsCopy(t *testing.T) {
	p := NewPool(types.Paper{ID: "a", Title: "A"})
	papers := p.Papers()
	papers[0].Title = "changed"
	assert.Equal(t, "A", p.Papers()[0].Title)
}

func TestPoolCount(t *testing.T) {
	p := NewPool(
		types.Paper{ID: "a", Provenance: types.ProvenanceDirect},
		types.Paper{ID: "b", Provenance: types.ProvenanceAuthorSearch},
		types.Paper{ID: "c", Provenance: types.ProvenanceAuthorSearch},
	)
	assert.Equal(t, 1, p.Count(types.ProvenanceDirect))
	assert.Equal(t, 2, p.Count(types.ProvenanceAuthorSearch))
}

func TestPoolJSON(t *testing.T) {
	p := NewPool(types.Paper{ID: "b", Title: "B"}, types.Paper{ID: "a", Title: "A"})
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var back Pool
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p.Papers(), back.Papers())
	assert.False(t, back.Add(types.Paper{ID: "a"}))
}

func TestZeroPoolUsable(t *testing.T) {
	var p Pool
	assert.True(t, p.Add(types.Paper{ID: "a"}))
	assert.Equal(t, 1, p.Len())
}
