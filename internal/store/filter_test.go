// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	_ "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store/memory"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

func TestParseOperator(t *testing.T) {
	op, ok := store.ParseOperator("gte")
	assert.True(t, ok)
	assert.Equal(t, store.OpGte, op)

	op, ok = store.ParseOperator("$in")
	assert.True(t, ok)
	assert.Equal(t, store.OpIn, op)

	_, ok = store.ParseOperator("$regex")
	assert.False(t, ok)
}

func TestNativeFilter_WithCopies(t *testing.T) {
	base := store.NativeFilter{"year": store.Eq(2020)}
	next := base.With("kind", store.In("chunk", "chapterSummary"))

	assert.Len(t, base, 1)
	assert.Equal(t, []string{"kind", "year"}, next.Fields())
	assert.Equal(t, store.Predicate{store.OpIn: []any{"chunk", "chapterSummary"}}, next["kind"])
}

func TestAsSlice(t *testing.T) {
	got, ok := store.AsSlice([]string{"a"})
	require.True(t, ok)
	assert.Equal(t, []any{"a"}, got)

	_, ok = store.AsSlice("a")
	assert.False(t, ok)
}

func TestOpenEngine(t *testing.T) {
	assert.Contains(t, store.Backends(), "memory")

	eng, err := store.OpenEngine(nil)
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	_, err = store.OpenEngine(&store.StorageConfig{Backend: "cassandra"})
	require.Error(t, err)
	assert.True(t, scouterr.HasCode(err, scouterr.CodeStoreBackendUnsupported))
}
