// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package vectorrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

var (
	commonFields = []string{
		store.FieldKind, store.FieldLibraryID, store.FieldOwner,
		store.FieldSourceID, store.FieldSourceDisplayName, store.FieldUpsertedAt,
	}
	chunkFields = []string{
		store.FieldChunkIndex, store.FieldText, store.FieldHeadingContext,
		store.FieldStartOffset, store.FieldEndOffset,
	}
	metaSummaryFields = []string{
		store.FieldTitle, store.FieldShortTitle, store.FieldSlug, store.FieldSummary,
		store.FieldTeaser, store.FieldChapterCount, store.FieldChunkCount,
	}
)

// searchProjection is every field a search result may carry.
var searchProjection = func() []string {
	out := []string{store.FieldID}
	out = append(out, commonFields...)
	out = append(out, chunkFields...)
	return append(out, metaSummaryFields...)
}()

// QueryResult is one similarity hit. Metadata holds the common fields and the
// fields of the record's kind; absent optional fields are left out.
type QueryResult struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// TokenIndexMissingError reports a query that filtered on a list field the
// similarity index does not declare as token.
type TokenIndexMissingError struct {
	Partition   string
	Index       string
	Field       string
	Status      store.IndexStatus
	Remediation string
	Err         error
}

func (e *TokenIndexMissingError) Error() string {
	field := e.Field
	if field == "" {
		field = "(unknown field)"
	}
	return fmt.Sprintf("filter field %s is not token indexed in index %s of partition %s (status %s): %s",
		field, e.Index, e.Partition, e.Status, e.Remediation)
}

func (e *TokenIndexMissingError) Unwrap() error { return e.Err }

func tokenRemediation(index, partition, field string) string {
	return fmt.Sprintf("drop index %s in partition %s and let the next write recreate it "+
		"so that list facet %s is declared as token; then re-run the query", index, partition, field)
}

// CandidatePool is the number of ANN candidates requested for topK results.
func CandidatePool(topK int) int {
	if topK > 100 {
		return min(topK*10, 1000)
	}
	return max(topK*10, 100)
}

// QueryVectors runs a similarity search over the library. Without a kind in
// the filter only chunk and chapter summary records are searched.
func (r *Repository) QueryVectors(ctx context.Context, lib *store.Library, vector []float32, topK int, filter store.Filter, dimension int) ([]QueryResult, error) {
	start := time.Now()
	results, err := r.queryVectors(ctx, lib, vector, topK, filter, dimension, false)
	r.metrics.observe("query_vectors", start, err)
	return results, err
}

// QueryDocuments is QueryVectors restricted to meta records.
func (r *Repository) QueryDocuments(ctx context.Context, lib *store.Library, vector []float32, topK int, filter store.Filter, dimension int) ([]QueryResult, error) {
	start := time.Now()
	results, err := r.queryVectors(ctx, lib, vector, topK, filter, dimension, true)
	r.metrics.observe("query_documents", start, err)
	return results, err
}

func (r *Repository) queryVectors(ctx context.Context, lib *store.Library, vector []float32, topK int, filter store.Filter, dimension int, metaOnly bool) ([]QueryResult, error) {
	if err := validateDimension(dimension); err != nil {
		return nil, err
	}
	if len(vector) != dimension {
		return nil, scouterr.Errorf(scouterr.CodeRepoConfigInvalid,
			"query vector has %d dimensions, expected %d", len(vector), dimension)
	}
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, scouterr.Errorf(scouterr.CodeRepoQueryInvalidInput, "topK must be positive, got %d", topK)
	}

	native, err := TranslateFilter(filter)
	if err != nil {
		return nil, err
	}
	if metaOnly {
		native = native.With(store.FieldKind, store.Eq(string(store.KindMeta)))
	} else {
		native = withKind(native)
	}

	part, err := r.ResolvePartitionWithIndexes(ctx, lib, dimension)
	if err != nil {
		return nil, err
	}

	hits, err := part.VectorSearch(ctx, store.VectorSearchRequest{
		Index:         r.indexName,
		Path:          store.FieldEmbedding,
		Vector:        vector,
		NumCandidates: CandidatePool(topK),
		Limit:         topK,
		Filter:        native,
		Project:       searchProjection,
	})
	if err != nil {
		return nil, r.translateSearchError(ctx, part, err)
	}

	results := make([]QueryResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, normalizeHit(h))
	}
	return results, nil
}

// translateSearchError turns token-index rejections into
// TokenIndexMissingError and drops the ensured flag when the index is gone.
// Both carry a repository code; other errors are returned unchanged.
func (r *Repository) translateSearchError(ctx context.Context, part store.Partition, err error) error {
	if field, ok := store.ParseTokenIndexError(err); ok {
		return &TokenIndexMissingError{
			Partition:   part.Name(),
			Index:       r.indexName,
			Field:       field,
			Status:      r.currentStatus(ctx, part),
			Remediation: tokenRemediation(r.indexName, part.Name(), field),
			Err: scouterr.Wrap(err, scouterr.CodeRepoIndexTokenMissing, "filter field not token indexed",
				scouterr.FieldPartition(part.Name()), scouterr.FieldIndex(r.indexName), scouterr.Field("field", field)),
		}
	}
	if store.IsIndexNotFound(err) {
		r.invalidateSimilarity(part.Name())
		return scouterr.Wrap(err, scouterr.CodeRepoIndexNotFound, "similarity index missing",
			scouterr.FieldPartition(part.Name()), scouterr.FieldIndex(r.indexName))
	}
	return err
}

func normalizeHit(h store.SearchHit) QueryResult {
	meta := make(map[string]any, len(searchProjection))
	copyPresent(meta, h.Doc, commonFields)

	kind, _ := h.Doc[store.FieldKind].(string)
	if store.Kind(kind) == store.KindMeta {
		copyPresent(meta, h.Doc, metaSummaryFields)
	} else {
		copyPresent(meta, h.Doc, chunkFields)
	}
	return QueryResult{ID: h.Doc.ID(), Score: h.Score, Metadata: meta}
}

func copyPresent(dst map[string]any, src store.Document, fields []string) {
	for _, f := range fields {
		if v, ok := src[f]; ok && v != nil {
			dst[f] = v
		}
	}
}

func toFloat32s(v any) ([]float32, bool) {
	switch e := v.(type) {
	case []float32:
		return e, true
	case []float64:
		out := make([]float32, len(e))
		for i, x := range e {
			out[i] = float32(x)
		}
		return out, true
	case []any:
		out := make([]float32, len(e))
		for i, x := range e {
			switch n := x.(type) {
			case float64:
				out[i] = float32(n)
			case float32:
				out[i] = n
			case int:
				out[i] = float32(n)
			default:
				return nil, false
			}
		}
		return out, true
	default:
		return nil, false
	}
}
