// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store/sqlite"
)

func metaDoc(sourceID string, year int, tags []any, at time.Time) store.Document {
	return store.Document{
		store.FieldID:         store.MetaID(sourceID),
		store.FieldKind:       string(store.KindMeta),
		store.FieldLibraryID:  "lib",
		store.FieldSourceID:   sourceID,
		store.FieldUpsertedAt: at,
		"year":                year,
		"tags":                tags,
	}
}

func seedMeta(t *testing.T, part store.Partition) time.Time {
	t.Helper()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, part.UpsertMany(context.Background(), []store.Document{
		metaDoc("s1", 2020, []any{"energy", "water"}, base),
		metaDoc("s2", 2021, []any{"water"}, base.Add(time.Hour)),
		metaDoc("s3", 2021, []any{}, base.Add(2*time.Hour)),
	}))
	return base
}

func TestPartition_FindSortsAndPaginates(t *testing.T) {
	ctx := context.Background()
	part := openPartition(t, "lib-find")
	base := seedMeta(t, part)

	docs, err := part.Find(ctx, store.NativeFilter{store.FieldKind: store.Eq("meta")}, store.FindOptions{
		Sort:  []store.SortField{{Field: store.FieldUpsertedAt, Desc: true}},
		Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "s3-meta", docs[0].ID())
	assert.Equal(t, "s2-meta", docs[1].ID())
	assert.Equal(t, base.Add(2*time.Hour), docs[0][store.FieldUpsertedAt])

	docs, err = part.Find(ctx, nil, store.FindOptions{
		Sort: []store.SortField{{Field: store.FieldUpsertedAt, Desc: true}},
		Skip: 2,
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "s1-meta", docs[0].ID())
}

func TestPartition_FindFilters(t *testing.T) {
	ctx := context.Background()
	part := openPartition(t, "lib-filters")
	seedMeta(t, part)

	tests := []struct {
		name   string
		filter store.NativeFilter
		want   []string
	}{
		{"eq on scalar", store.NativeFilter{"year": store.Eq(2021)}, []string{"s2-meta", "s3-meta"}},
		{"in on array", store.NativeFilter{"tags": store.In("energy")}, []string{"s1-meta"}},
		{"in with several values", store.NativeFilter{"tags": store.In("energy", "water")}, []string{"s1-meta", "s2-meta"}},
		{"gte", store.NativeFilter{"year": {store.OpGte: 2021}}, []string{"s2-meta", "s3-meta"}},
		{"lt", store.NativeFilter{"year": {store.OpLt: 2021}}, []string{"s1-meta"}},
		{"nin", store.NativeFilter{store.FieldSourceID: {store.OpNin: []any{"s1", "s2"}}}, []string{"s3-meta"}},
		{"exists false", store.NativeFilter{"region": {store.OpExists: false}}, []string{"s1-meta", "s2-meta", "s3-meta"}},
		{"in with nil matches missing", store.NativeFilter{"region": store.In(nil)}, []string{"s1-meta", "s2-meta", "s3-meta"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := part.Find(ctx, tt.filter, store.FindOptions{})
			require.NoError(t, err)
			var ids []string
			for _, d := range docs {
				ids = append(ids, d.ID())
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestPartition_FindRejectsUnsafeField(t *testing.T) {
	part := openPartition(t, "lib-unsafe")

	_, err := part.Find(context.Background(), store.NativeFilter{"x') OR 1=1 --": store.Eq(1)}, store.FindOptions{})
	require.Error(t, err)
}

func TestPartition_Count(t *testing.T) {
	ctx := context.Background()
	part := openPartition(t, "lib-count")
	seedMeta(t, part)

	n, err := part.Count(ctx, store.NativeFilter{"year": store.Eq(2021)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = part.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPartition_FacetCounts(t *testing.T) {
	ctx := context.Background()
	part := openPartition(t, "lib-facets")
	seedMeta(t, part)

	buckets, err := part.FacetCounts(ctx, nil, "tags", true)
	require.NoError(t, err)
	assert.Equal(t, []store.FacetBucket{
		{Value: "energy", Count: 1},
		{Value: "water", Count: 2},
	}, buckets)

	buckets, err = part.FacetCounts(ctx, store.NativeFilter{"tags": store.In("water")}, "year", false)
	require.NoError(t, err)
	assert.Equal(t, []store.FacetBucket{
		{Value: int64(2020), Count: 1},
		{Value: int64(2021), Count: 1},
	}, buckets)

	buckets, err = part.FacetCounts(ctx, nil, "region", false)
	require.NoError(t, err)
	assert.Empty(t, buckets)
}

func TestPartition_DeleteMany(t *testing.T) {
	ctx := context.Background()
	part := openPartition(t, "lib-delete")

	require.NoError(t, part.CreateSearchIndex(ctx, vectorIndex("idx", 3, nil)))
	require.NoError(t, part.UpsertMany(ctx, []store.Document{
		chunkDoc("a-chunk-0", "lib", []float32{1, 0, 0}, nil),
		chunkDoc("a-chunk-1", "lib", []float32{0, 1, 0}, nil),
		chunkDoc("b-chunk-0", "lib", []float32{0, 0, 1}, nil),
	}))

	n, err := part.DeleteMany(ctx, store.NativeFilter{store.FieldSourceID: store.Eq("a")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := part.VectorSearch(ctx, store.VectorSearchRequest{
		Index: "idx", Path: store.FieldEmbedding, Vector: []float32{1, 0, 0}, NumCandidates: 10, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b-chunk-0", hits[0].Doc.ID())

	n, err = part.DeleteMany(ctx, store.NativeFilter{store.FieldSourceID: store.Eq("a")})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPartition_PartitionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	eng, err := sqlite.NewEngine(testDBPath(t, "shared"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	one, err := eng.OpenPartition(ctx, "lib-one")
	require.NoError(t, err)
	two, err := eng.OpenPartition(ctx, "lib-two")
	require.NoError(t, err)

	seedMeta(t, one)
	require.NoError(t, two.CreateSearchIndex(ctx, vectorIndex("idx", 3, nil)))

	n, err := two.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	infos, err := one.ListSearchIndexes(ctx, "idx")
	require.NoError(t, err)
	assert.Empty(t, infos)

	deleted, err := two.DeleteMany(ctx, store.NativeFilter{store.FieldSourceID: store.Eq("s1")})
	require.NoError(t, err)
	assert.Zero(t, deleted)

	n, err = one.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestEngine_RegisteredBackend(t *testing.T) {
	eng, err := store.OpenEngine(&store.StorageConfig{Backend: "sqlite", DSN: testDBPath(t, "registered")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	part, err := eng.OpenPartition(context.Background(), "lib")
	require.NoError(t, err)
	assert.Equal(t, "lib", part.Name())
}
