// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package sqlite_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
)

func TestPartition_VectorSearchRanksByCosine(t *testing.T) {
	ctx := context.Background()
	part := openPartition(t, "lib-search")

	require.NoError(t, part.CreateSearchIndex(ctx, vectorIndex("idx", 3, map[string]store.IndexFieldType{
		store.FieldKind: store.IndexFieldFilter,
	})))
	require.NoError(t, part.UpsertMany(ctx, []store.Document{
		chunkDoc("a-chunk-0", "lib", []float32{1, 0, 0}, nil),
		chunkDoc("b-chunk-0", "lib", []float32{0, 1, 0}, nil),
		chunkDoc("c-chunk-0", "lib", []float32{0.9, 0.1, 0}, nil),
	}))

	hits, err := part.VectorSearch(ctx, store.VectorSearchRequest{
		Index:         "idx",
		Path:          store.FieldEmbedding,
		Vector:        []float32{1, 0, 0},
		NumCandidates: 10,
		Limit:         2,
		Filter:        store.NativeFilter{store.FieldKind: store.Eq("chunk")},
	})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a-chunk-0", hits[0].Doc.ID())
	assert.Equal(t, "c-chunk-0", hits[1].Doc.ID())
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.NotContains(t, hits[0].Doc, store.FieldEmbedding)
}

func TestPartition_VectorSearchWidensPoolForSelectiveFilter(t *testing.T) {
	ctx := context.Background()
	part := openPartition(t, "lib-widen")

	require.NoError(t, part.CreateSearchIndex(ctx, vectorIndex("idx", 3, map[string]store.IndexFieldType{
		store.FieldKind: store.IndexFieldFilter,
	})))

	docs := make([]store.Document, 0, 203)
	for i := range 200 {
		docs = append(docs, chunkDoc(fmt.Sprintf("c-chunk-%d", i), "lib", []float32{1, float32(i) / 1000, 0}, nil))
	}
	for i := range 3 {
		docs = append(docs, chunkDoc(fmt.Sprintf("m%d-meta", i), "lib", []float32{0.1, 1, float32(i) / 10}, map[string]any{
			store.FieldKind: string(store.KindMeta),
		}))
	}
	require.NoError(t, part.UpsertMany(ctx, docs))

	hits, err := part.VectorSearch(ctx, store.VectorSearchRequest{
		Index:         "idx",
		Path:          store.FieldEmbedding,
		Vector:        []float32{1, 0, 0},
		NumCandidates: 100,
		Limit:         3,
		Filter:        store.NativeFilter{store.FieldKind: store.Eq(string(store.KindMeta))},
	})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	for _, h := range hits {
		assert.Equal(t, string(store.KindMeta), h.Doc[store.FieldKind])
	}
}

func TestPartition_CreateSearchIndexBackfillsExistingEmbeddings(t *testing.T) {
	ctx := context.Background()
	part := openPartition(t, "lib-backfill")

	require.NoError(t, part.UpsertMany(ctx, []store.Document{
		chunkDoc("a-chunk-0", "lib", []float32{0, 0, 1}, nil),
	}))
	require.NoError(t, part.CreateSearchIndex(ctx, vectorIndex("idx", 3, nil)))

	hits, err := part.VectorSearch(ctx, store.VectorSearchRequest{
		Index: "idx", Path: store.FieldEmbedding, Vector: []float32{0, 0, 1}, NumCandidates: 5, Limit: 5,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a-chunk-0", hits[0].Doc.ID())
}

func TestPartition_CreateSearchIndexDuplicate(t *testing.T) {
	ctx := context.Background()
	part := openPartition(t, "lib-dup")

	require.NoError(t, part.CreateSearchIndex(ctx, vectorIndex("idx", 3, nil)))
	err := part.CreateSearchIndex(ctx, vectorIndex("idx", 3, nil))
	require.Error(t, err)
	assert.True(t, store.IsAlreadyExists(err))
}

func TestPartition_ListSearchIndexes(t *testing.T) {
	ctx := context.Background()
	part := openPartition(t, "lib-list")

	infos, err := part.ListSearchIndexes(ctx, "idx")
	require.NoError(t, err)
	assert.Empty(t, infos)

	def := vectorIndex("idx", 4, map[string]store.IndexFieldType{"tags": store.IndexFieldToken})
	require.NoError(t, part.CreateSearchIndex(ctx, def))

	infos, err = part.ListSearchIndexes(ctx, "idx")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, store.IndexStatusActive, infos[0].Status)
	assert.True(t, infos[0].Queryable)
	assert.NotEmpty(t, infos[0].ID)

	vf, ok := infos[0].Definition.VectorField()
	require.True(t, ok)
	assert.Equal(t, 4, vf.NumDimensions)
	tags, ok := infos[0].Definition.Field("tags")
	require.True(t, ok)
	assert.Equal(t, store.IndexFieldToken, tags.Type)
}

func TestPartition_VectorSearchErrors(t *testing.T) {
	ctx := context.Background()
	part := openPartition(t, "lib-errors")

	require.NoError(t, part.UpsertMany(ctx, []store.Document{
		chunkDoc("a-chunk-0", "lib", []float32{1, 0, 0}, map[string]any{"tags": []any{"x", "y"}}),
	}))

	_, err := part.VectorSearch(ctx, store.VectorSearchRequest{Index: "missing", Path: store.FieldEmbedding, Vector: []float32{1, 0, 0}})
	assert.True(t, store.IsIndexNotFound(err))

	require.NoError(t, part.CreateSearchIndex(ctx, vectorIndex("idx", 3, map[string]store.IndexFieldType{
		"tags": store.IndexFieldFilter,
	})))

	tests := []struct {
		name  string
		req   store.VectorSearchRequest
		check func(t *testing.T, err error)
	}{
		{
			name: "array field declared as filter",
			req: store.VectorSearchRequest{
				Index: "idx", Path: store.FieldEmbedding, Vector: []float32{1, 0, 0},
				Filter: store.NativeFilter{"tags": store.In("x")},
			},
			check: func(t *testing.T, err error) {
				field, ok := store.ParseTokenIndexError(err)
				assert.True(t, ok)
				assert.Equal(t, "tags", field)
			},
		},
		{
			name: "undeclared filter field",
			req: store.VectorSearchRequest{
				Index: "idx", Path: store.FieldEmbedding, Vector: []float32{1, 0, 0},
				Filter: store.NativeFilter{"year": store.Eq(2020)},
			},
			check: func(t *testing.T, err error) {
				var ee *store.EngineError
				require.ErrorAs(t, err, &ee)
				assert.Equal(t, store.EngineCodeFilterNotIndexed, ee.Code)
			},
		},
		{
			name: "dimension mismatch",
			req: store.VectorSearchRequest{
				Index: "idx", Path: store.FieldEmbedding, Vector: []float32{1, 0},
			},
			check: func(t *testing.T, err error) {
				var ee *store.EngineError
				require.ErrorAs(t, err, &ee)
				assert.Equal(t, store.EngineCodeDimensionMismatch, ee.Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := part.VectorSearch(ctx, tt.req)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestPartition_VectorSearchTokenFilterMatchesAnyElement(t *testing.T) {
	ctx := context.Background()
	part := openPartition(t, "lib-token")

	require.NoError(t, part.CreateSearchIndex(ctx, vectorIndex("idx", 3, map[string]store.IndexFieldType{
		"tags": store.IndexFieldToken,
	})))
	require.NoError(t, part.UpsertMany(ctx, []store.Document{
		chunkDoc("a-chunk-0", "lib", []float32{1, 0, 0}, map[string]any{"tags": []any{"energy", "water"}}),
		chunkDoc("b-chunk-0", "lib", []float32{1, 0, 0}, map[string]any{"tags": []any{"soil"}}),
	}))

	hits, err := part.VectorSearch(ctx, store.VectorSearchRequest{
		Index: "idx", Path: store.FieldEmbedding, Vector: []float32{1, 0, 0},
		NumCandidates: 10, Limit: 10,
		Filter: store.NativeFilter{"tags": store.In("water")},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a-chunk-0", hits[0].Doc.ID())
}

func TestPartition_UpsertReplacesVector(t *testing.T) {
	ctx := context.Background()
	part := openPartition(t, "lib-upsert")

	require.NoError(t, part.CreateSearchIndex(ctx, vectorIndex("idx", 3, nil)))
	require.NoError(t, part.UpsertMany(ctx, []store.Document{
		chunkDoc("a-chunk-0", "lib", []float32{1, 0, 0}, map[string]any{"text": "v1"}),
	}))
	require.NoError(t, part.UpsertMany(ctx, []store.Document{
		chunkDoc("a-chunk-0", "lib", []float32{0, 1, 0}, map[string]any{"text": "v2"}),
	}))

	hits, err := part.VectorSearch(ctx, store.VectorSearchRequest{
		Index: "idx", Path: store.FieldEmbedding, Vector: []float32{0, 1, 0}, NumCandidates: 5, Limit: 1,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "v2", hits[0].Doc["text"])
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
}

func TestPartition_FindOneWithEmbedding(t *testing.T) {
	ctx := context.Background()
	part := openPartition(t, "lib-sample")

	_, err := part.FindOneWithEmbedding(ctx, store.FieldEmbedding, 3)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, part.UpsertMany(ctx, []store.Document{
		chunkDoc("a-chunk-0", "lib", []float32{0.5, 0.25, 1}, nil),
	}))

	doc, err := part.FindOneWithEmbedding(ctx, store.FieldEmbedding, 3)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, 1}, doc[store.FieldEmbedding])

	_, err = part.FindOneWithEmbedding(ctx, store.FieldEmbedding, 4)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
