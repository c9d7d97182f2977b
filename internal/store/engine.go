// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package store

import "context"

// Engine is a search-capable storage engine holding one partition per library.
type Engine interface {
	// OpenPartition returns a handle to the named partition, creating the
	// underlying collection lazily where the engine needs that.
	OpenPartition(ctx context.Context, name string) (Partition, error)
	Close() error
}

// Partition is the record collection of one library.
//
// Implementations must be safe for concurrent use. Writes are last-write-wins
// per document id; there is no cross-operation isolation.
type Partition interface {
	Name() string

	// Similarity index lifecycle. ListSearchIndexes returns
	// ErrIntrospectionUnsupported when the engine cannot list indexes.
	ListSearchIndexes(ctx context.Context, name string) ([]IndexInfo, error)
	CreateSearchIndex(ctx context.Context, def IndexDefinition) error
	EnsureFieldIndexes(ctx context.Context, indexes []FieldIndex) error

	// Reads.
	VectorSearch(ctx context.Context, req VectorSearchRequest) ([]SearchHit, error)
	FindOneWithEmbedding(ctx context.Context, path string, dimension int) (Document, error)
	Find(ctx context.Context, filter NativeFilter, opts FindOptions) ([]Document, error)
	Count(ctx context.Context, filter NativeFilter) (int, error)
	FacetCounts(ctx context.Context, filter NativeFilter, field string, unwind bool) ([]FacetBucket, error)

	// Writes. UpsertMany replaces documents by id.
	UpsertMany(ctx context.Context, docs []Document) error
	DeleteMany(ctx context.Context, filter NativeFilter) (int, error)
}

// VectorSearchRequest is an approximate nearest neighbour query against a
// named similarity index.
type VectorSearchRequest struct {
	Index string
	Path  string
	// Vector is the query embedding.
	Vector []float32
	// NumCandidates is the ANN candidate pool, Limit the number of results.
	NumCandidates int
	Limit         int
	Filter        NativeFilter
	// Project lists the document fields to return. Empty means all fields
	// except the embedding.
	Project []string
}

// SearchHit is one similarity search result. Score is in [0,1], higher is
// more similar.
type SearchHit struct {
	Score float64
	Doc   Document
}

// SortField orders a listing.
type SortField struct {
	Field string
	Desc  bool
}

// FindOptions controls paginated listings.
type FindOptions struct {
	Limit   int
	Skip    int
	Sort    []SortField
	Project []string
}
