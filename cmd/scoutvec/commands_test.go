// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store/sqlite"
	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/vectorrepo"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

const testCatalog = `
libraries:
  - id: climate
    owner: editor@example.org
    partition: vectors__climate
    facets:
      - metaKey: year
        type: string
      - metaKey: tags
        type: string[]
`

// testEnv points the CLI at a temp SQLite database and catalog and returns
// the catalog's library.
func testEnv(t *testing.T) (dsn string, lib *store.Library) {
	t.Helper()
	dir := t.TempDir()
	dsn = filepath.Join(dir, "scout.db")
	catalog := filepath.Join(dir, "libraries.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte(testCatalog), 0o600))

	t.Setenv("SCOUT_STORAGE_BACKEND", "sqlite")
	t.Setenv("SCOUT_STORAGE_DSN", dsn)
	t.Setenv("SCOUT_INDEX_VERIFY_DELAY", "0s")
	t.Setenv("SCOUT_LIBRARIES_FILE", catalog)

	return dsn, &store.Library{
		ID:        "climate",
		Owner:     "editor@example.org",
		Partition: "vectors__climate",
		Facets: []store.FacetDefinition{
			{MetaKey: "year", Type: store.FacetTypeString},
			{MetaKey: "tags", Type: store.FacetTypeStringArray},
		},
	}
}

func seed(t *testing.T, dsn string, lib *store.Library) {
	t.Helper()
	ctx := context.Background()
	eng, err := sqlite.NewEngine(dsn)
	require.NoError(t, err)
	repo, err := vectorrepo.New(eng, vectorrepo.WithVerifyDelay(0))
	require.NoError(t, err)
	defer func() { require.NoError(t, repo.Close()) }()

	chunks := []store.VectorRecord{
		{SourceID: "s1", Kind: store.KindChunk, ChunkIndex: 0, Text: "solar", Embedding: []float32{1, 0, 0}},
		{SourceID: "s1", Kind: store.KindChunk, ChunkIndex: 1, Text: "wind", Embedding: []float32{0, 1, 0}},
		{SourceID: "s2", Kind: store.KindChunk, ChunkIndex: 0, Text: "water", Embedding: []float32{0, 0, 1}},
	}
	require.NoError(t, repo.UpsertVectors(ctx, lib, chunks, 3))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, m := range []struct {
		source string
		year   int
		tags   []string
	}{
		{"s1", 2020, []string{"energy", "water"}},
		{"s2", 2021, []string{"water"}},
	} {
		year := m.year
		require.NoError(t, repo.UpsertMeta(ctx, lib, store.VectorRecord{
			SourceID:   m.source,
			UpsertedAt: base.Add(time.Duration(i) * time.Hour),
			Meta:       &store.MetaFields{Title: "Doc " + m.source, Year: &year, Tags: m.tags},
		}, 3))
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"scoutvec", "index", "facets", "docs", "search", "delete-source", "libraries", "config"} {
		assert.Contains(t, out, name)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "scoutvec dev")
	assert.Contains(t, out, "backends: memory, mongo, sqlite")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoutvec.yaml")

	out, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote default config")
	assert.FileExists(t, path)

	out, err = run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
}

func TestLibrariesCommand(t *testing.T) {
	testEnv(t)

	out, err := run(t, "libraries")
	require.NoError(t, err)
	assert.Contains(t, out, "climate")
	assert.Contains(t, out, "vectors__climate")
	assert.Contains(t, out, "tags:string[]")
}

func TestIndexCommands(t *testing.T) {
	testEnv(t)

	out, err := run(t, "index", "status", "-l", "climate", "-d", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "not ready")

	out, err = run(t, "index", "definition", "-l", "climate", "-d", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "does not exist")

	out, err = run(t, "index", "ensure", "-l", "climate", "-d", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "vector_search_idx in vectors__climate: ready (status: active)")

	out, err = run(t, "index", "definition", "-l", "climate", "-d", "3")
	require.NoError(t, err)
	var info store.IndexInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "vector_search_idx", info.Name)
	tags, ok := info.Definition.Field("tags")
	require.True(t, ok)
	assert.Equal(t, store.IndexFieldToken, tags.Type)
	vf, ok := info.Definition.VectorField()
	require.True(t, ok)
	assert.Equal(t, 3, vf.NumDimensions)
}

func TestDocsCommands(t *testing.T) {
	dsn, lib := testEnv(t)
	seed(t, dsn, lib)

	out, err := run(t, "docs", "list", "-l", "climate")
	require.NoError(t, err)
	var page vectorrepo.DocPage
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "s2-meta", page.Items[0].ID)

	out, err = run(t, "docs", "list", "-l", "climate", "--sort", "year", "--limit", "1", "--filter", `{"tags": "water"}`)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "s1-meta", page.Items[0].ID)

	out, err = run(t, "docs", "get", "-l", "climate", "--source", "s1")
	require.NoError(t, err)
	var doc vectorrepo.DocSummary
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "Doc s1", doc.Title)
	assert.Equal(t, []string{"energy", "water"}, doc.Tags)

	_, err = run(t, "docs", "get", "-l", "climate", "--source", "nope")
	require.Error(t, err)
	assert.True(t, scouterr.IsNotFound(err))
}

func TestFacetsCommand(t *testing.T) {
	dsn, lib := testEnv(t)
	seed(t, dsn, lib)

	out, err := run(t, "facets", "-l", "climate")
	require.NoError(t, err)

	var facets map[string][]struct {
		Value any `json:"value"`
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &facets))
	require.Len(t, facets["tags"], 2)
	assert.Equal(t, "energy", facets["tags"][0].Value)
	assert.Equal(t, 1, facets["tags"][0].Count)
	assert.Equal(t, "water", facets["tags"][1].Value)
	assert.Equal(t, 2, facets["tags"][1].Count)
	assert.Len(t, facets["year"], 2)
}

func TestSearchCommand(t *testing.T) {
	dsn, lib := testEnv(t)
	seed(t, dsn, lib)

	out, err := run(t, "search", "-l", "climate", "-d", "3", "--vector", "[1, 0, 0]", "-k", "2")
	require.NoError(t, err)
	var results []vectorrepo.QueryResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "s1-chunk-0", results[0].ID)
	assert.Equal(t, "solar", results[0].Metadata["text"])

	_, err = run(t, "search", "-l", "climate", "-d", "3", "--vector", "one,two")
	require.Error(t, err)
	assert.True(t, scouterr.HasCode(err, scouterr.CodeCLIInputInvalid))

	_, err = run(t, "search", "-l", "climate", "-d", "3", "--vector", "[1, 0]")
	require.Error(t, err)
	assert.True(t, scouterr.IsConfiguration(err))
}

func TestDeleteSourceCommand(t *testing.T) {
	dsn, lib := testEnv(t)
	seed(t, dsn, lib)

	out, err := run(t, "delete-source", "-l", "climate", "--source", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 3 records of source s1")

	out, err = run(t, "docs", "list", "-l", "climate")
	require.NoError(t, err)
	var page vectorrepo.DocPage
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, 1, page.Total)
}

func TestCommands_Errors(t *testing.T) {
	testEnv(t)

	tests := []struct {
		name  string
		args  []string
		check func(error) bool
	}{
		{"unknown library", []string{"facets", "-l", "nope"}, scouterr.IsNotFound},
		{"bad filter", []string{"facets", "-l", "climate", "--filter", "[1]"}, func(err error) bool {
			return scouterr.HasCode(err, scouterr.CodeCLIInputInvalid)
		}},
		{"missing config file", []string{"facets", "-l", "climate", "-c", "/nonexistent/scoutvec.yaml"}, func(err error) bool {
			return scouterr.HasCode(err, scouterr.CodeConfigLoadReadFailure)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}

	_, err := run(t, "docs", "get", "-l", "climate")
	assert.Error(t, err, "--source is required")
}
