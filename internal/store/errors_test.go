// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package store_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
)

func TestParseTokenIndexError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantField string
		wantOK    bool
	}{
		{"nil", nil, "", false},
		{"typed", store.NewTokenIndexError("tags"), "tags", true},
		{"typed wrapped", fmt.Errorf("query: %w", store.NewTokenIndexError("authors")), "authors", true},
		{"typed other code", store.NewFilterNotIndexedError("tags"), "", false},
		{"atlas text", errors.New("PlanExecutor error :: caused by :: Path 'topics' needs to be indexed as token"), "topics", true},
		{"double quoted", errors.New(`Path "speakers" needs to be indexed as token`), "speakers", true},
		{"unnamed", errors.New("array path needs to be indexed as token"), "", true},
		{"unrelated", errors.New("connection refused"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, ok := store.ParseTokenIndexError(tt.err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantField, field)
		})
	}
}

func TestIsIndexNotFound(t *testing.T) {
	assert.True(t, store.IsIndexNotFound(store.NewIndexNotFoundError("idx")))
	assert.True(t, store.IsIndexNotFound(fmt.Errorf("search: %w", store.ErrIndexNotFound)))
	assert.True(t, store.IsIndexNotFound(errors.New("Index vector_search_idx does not exist")))
	assert.False(t, store.IsIndexNotFound(store.NewTokenIndexError("tags")))
	assert.False(t, store.IsIndexNotFound(errors.New("timeout")))
	assert.False(t, store.IsIndexNotFound(nil))
}

func TestIsAlreadyExists(t *testing.T) {
	assert.True(t, store.IsAlreadyExists(store.NewAlreadyExistsError("idx")))
	assert.True(t, errors.Is(store.NewAlreadyExistsError("idx"), store.ErrAlreadyExists))
	assert.True(t, store.IsAlreadyExists(errors.New("Duplicate Index")))
	assert.False(t, store.IsAlreadyExists(store.NewIndexNotFoundError("idx")))
	assert.False(t, store.IsAlreadyExists(nil))
}
