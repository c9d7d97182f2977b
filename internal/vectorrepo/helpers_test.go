// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package vectorrepo_test

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store/memory"
	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/vectorrepo"
)

const testDim = 3

var fixedTime = time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

func testLibrary() *store.Library {
	return &store.Library{
		ID:        "lib-1",
		Owner:     "owner@example.org",
		Partition: "vectors__lib_1",
		Facets: []store.FacetDefinition{
			{MetaKey: store.FieldYear, Type: store.FacetTypeString, Label: "Year"},
			{MetaKey: store.FieldTags, Type: store.FacetTypeStringArray, Label: "Tags"},
			{MetaKey: store.FieldAuthors, Type: store.FacetTypeStringArray, Label: "Authors"},
			{MetaKey: store.FieldRegion, Type: store.FacetTypeString, Label: "Region"},
		},
	}
}

func newRepo(t *testing.T, eng *memory.Engine, opts ...vectorrepo.Option) *vectorrepo.Repository {
	t.Helper()
	base := []vectorrepo.Option{
		vectorrepo.WithVerifyDelay(0),
		vectorrepo.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		vectorrepo.WithRegisterer(prometheus.NewRegistry()),
	}
	repo, err := vectorrepo.New(eng, append(base, opts...)...)
	require.NoError(t, err)
	return repo
}

func chunk(sourceID string, idx int, emb []float32) store.VectorRecord {
	return store.VectorRecord{
		SourceID:   sourceID,
		Kind:       store.KindChunk,
		ChunkIndex: idx,
		Text:       fmt.Sprintf("%s chunk %d", sourceID, idx),
		Embedding:  emb,
	}
}

func meta(sourceID string, year int, tags []string, at time.Time) store.VectorRecord {
	y := year
	return store.VectorRecord{
		SourceID:   sourceID,
		Kind:       store.KindMeta,
		UpsertedAt: at,
		Meta: &store.MetaFields{
			Title: "Title " + sourceID,
			Year:  &y,
			Tags:  tags,
		},
	}
}

// fakeClock is a settable time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
