// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package vectorrepo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store/memory"
	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/vectorrepo"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

func TestCandidatePool(t *testing.T) {
	tests := []struct {
		topK int
		want int
	}{
		{1, 100},
		{5, 100},
		{10, 100},
		{50, 500},
		{100, 1000},
		{101, 1000},
		{200, 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, vectorrepo.CandidatePool(tt.topK), "topK %d", tt.topK)
	}
}

// seedSearch writes two sources with chunks, a chapter summary and meta
// records carrying embeddings.
func seedSearch(t *testing.T, repo *vectorrepo.Repository, lib *store.Library) {
	t.Helper()
	ctx := context.Background()

	summary := chunk("s2", 0, []float32{0, 0, 1})
	summary.Kind = store.KindChapterSummary
	recs := []store.VectorRecord{
		chunk("s1", 0, []float32{1, 0, 0}),
		chunk("s1", 1, []float32{0.9, 0.1, 0}),
		chunk("s2", 0, []float32{0, 1, 0}),
		summary,
	}
	require.NoError(t, repo.UpsertVectors(ctx, lib, recs, testDim))

	for _, m := range []store.VectorRecord{meta("s1", 2020, []string{"a"}, fixedTime), meta("s2", 2021, []string{"b"}, fixedTime)} {
		m.Embedding = []float32{1, 0, 0}
		require.NoError(t, repo.UpsertMeta(ctx, lib, m, testDim))
	}
}

func TestQueryVectors_RanksChunkLikeRecords(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, memory.New())
	lib := testLibrary()
	seedSearch(t, repo, lib)

	results, err := repo.QueryVectors(ctx, lib, []float32{1, 0, 0}, 10, nil, testDim)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "s1-chunk-0", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "s1-chunk-1", results[1].ID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	for _, r := range results {
		assert.NotEqual(t, string(store.KindMeta), r.Metadata[store.FieldKind])
		assert.NotContains(t, r.Metadata, store.FieldEmbedding)
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}

	first := results[0].Metadata
	assert.Equal(t, "s1", first[store.FieldSourceID])
	assert.Equal(t, lib.ID, first[store.FieldLibraryID])
	assert.Equal(t, "s1 chunk 0", first[store.FieldText])
	assert.NotContains(t, first, store.FieldHeadingContext)
	assert.NotContains(t, first, store.FieldTitle)
}

func TestQueryVectors_TopKAndFilter(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, memory.New())
	lib := testLibrary()
	seedSearch(t, repo, lib)

	tests := []struct {
		name    string
		topK    int
		filter  store.Filter
		wantIDs []string
	}{
		{"topK limits", 1, nil, []string{"s1-chunk-0"}},
		{"source filter", 10, store.Filter{store.FieldSourceID: "s2"}, []string{"s2-chunk-0", "s2-chapterSummary-0"}},
		{"explicit kind", 10, store.Filter{store.FieldKind: store.KindChapterSummary}, []string{"s2-chapterSummary-0"}},
		{"source list", 10, store.Filter{store.FieldSourceID: []string{"s1"}}, []string{"s1-chunk-0", "s1-chunk-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := repo.QueryVectors(ctx, lib, []float32{1, 0, 0}, tt.topK, tt.filter, testDim)
			require.NoError(t, err)
			ids := make([]string, len(results))
			for i, r := range results {
				ids[i] = r.ID
			}
			assert.ElementsMatch(t, tt.wantIDs, ids)
		})
	}
}

func TestQueryVectors_InvalidTopK(t *testing.T) {
	repo := newRepo(t, memory.New())

	_, err := repo.QueryVectors(context.Background(), testLibrary(), []float32{1, 0, 0}, 0, nil, testDim)
	require.Error(t, err)
	assert.True(t, scouterr.IsInvalidInput(err))
}

func TestQueryDocuments_OnlyMeta(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, memory.New())
	lib := testLibrary()
	seedSearch(t, repo, lib)

	results, err := repo.QueryDocuments(ctx, lib, []float32{1, 0, 0}, 10, store.Filter{store.FieldKind: store.KindChunk}, testDim)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, string(store.KindMeta), r.Metadata[store.FieldKind])
		assert.Contains(t, r.Metadata, store.FieldTitle)
		assert.NotContains(t, r.Metadata, store.FieldText)
	}

	results, err = repo.QueryDocuments(ctx, lib, []float32{1, 0, 0}, 10, store.Filter{store.FieldTags: "b"}, testDim)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "s2-meta", results[0].ID)
}

func TestQueryDocuments_TokenIndexMissing(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, memory.New())
	lib := testLibrary()
	// tags holds lists but is declared as a scalar facet.
	lib.Facets = []store.FacetDefinition{{MetaKey: store.FieldTags, Type: store.FacetTypeString}}
	seedSearch(t, repo, lib)

	_, err := repo.QueryDocuments(ctx, lib, []float32{1, 0, 0}, 5, store.Filter{store.FieldTags: "a"}, testDim)
	require.Error(t, err)

	var tokenErr *vectorrepo.TokenIndexMissingError
	require.ErrorAs(t, err, &tokenErr)
	assert.Equal(t, store.FieldTags, tokenErr.Field)
	assert.Equal(t, lib.Partition, tokenErr.Partition)
	assert.Equal(t, vectorrepo.DefaultIndexName, tokenErr.Index)
	assert.Equal(t, store.IndexStatusActive, tokenErr.Status)
	assert.Contains(t, tokenErr.Remediation, vectorrepo.DefaultIndexName)
	assert.Contains(t, err.Error(), store.FieldTags)
	assert.Equal(t, scouterr.CodeRepoIndexTokenMissing, scouterr.CodeOf(err))
	assert.Equal(t, store.FieldTags, scouterr.FieldsOf(err)["field"])
}

func TestQueryVectors_IndexDroppedInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	eng := memory.New()
	repo := newRepo(t, eng)
	lib := testLibrary()
	seedSearch(t, repo, lib)

	part := eng.Partition(lib.Partition)
	part.DropSearchIndex(vectorrepo.DefaultIndexName)

	_, err := repo.QueryVectors(ctx, lib, []float32{1, 0, 0}, 3, nil, testDim)
	require.Error(t, err)
	assert.True(t, store.IsIndexNotFound(err))
	assert.Equal(t, scouterr.CodeRepoIndexNotFound, scouterr.CodeOf(err))
	assert.True(t, scouterr.IsNotFound(err))

	results, err := repo.QueryVectors(ctx, lib, []float32{1, 0, 0}, 3, nil, testDim)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, 2, part.CreateCalls())
}

func TestQueryVectors_EngineFailurePassesThrough(t *testing.T) {
	ctx := context.Background()
	eng := memory.New()
	repo := newRepo(t, eng)
	lib := testLibrary()
	seedSearch(t, repo, lib)

	boom := errors.New("connection reset")
	eng.Partition(lib.Partition).FailNext("search", boom)

	_, err := repo.QueryVectors(ctx, lib, []float32{1, 0, 0}, 3, nil, testDim)
	require.ErrorIs(t, err, boom)
}
