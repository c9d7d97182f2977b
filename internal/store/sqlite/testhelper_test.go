// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store/sqlite"
)

// testDir creates a temp directory for a test and returns cleanup func.
func testDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "scout-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(testDir(t), name+".db")
}

// openPartition opens a fresh engine and returns the named partition.
func openPartition(t *testing.T, name string) store.Partition {
	t.Helper()
	eng, err := sqlite.NewEngine(testDBPath(t, name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	part, err := eng.OpenPartition(context.Background(), name)
	require.NoError(t, err)
	return part
}

func chunkDoc(id, libraryID string, emb []float32, extra map[string]any) store.Document {
	doc := store.Document{
		store.FieldID:        id,
		store.FieldKind:      string(store.KindChunk),
		store.FieldLibraryID: libraryID,
		store.FieldSourceID:  id[:1],
		store.FieldEmbedding: emb,
	}
	for k, v := range extra {
		doc[k] = v
	}
	return doc
}

func vectorIndex(name string, dim int, filters map[string]store.IndexFieldType) store.IndexDefinition {
	def := store.IndexDefinition{
		Name: name,
		Fields: []store.IndexField{{
			Type:          store.IndexFieldVector,
			Path:          store.FieldEmbedding,
			NumDimensions: dim,
			Similarity:    store.SimilarityCosine,
		}},
	}
	for path, typ := range filters {
		def.Fields = append(def.Fields, store.IndexField{Type: typ, Path: path})
	}
	return def
}
