// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package vectorrepo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

// BatchError reports the write batch that failed. Earlier batches are
// committed; retrying from Offset is safe because writes are idempotent.
type BatchError struct {
	Partition string
	Offset    int
	Size      int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("upserting records [%d, %d) in partition %s: %v", e.Offset, e.Offset+e.Size, e.Partition, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// UpsertVectors inserts or replaces records by deterministic id. Missing ids,
// library ids, owners and timestamps are filled in. The partition's indexes
// are ensured first; writes go out in batches of the configured size.
func (r *Repository) UpsertVectors(ctx context.Context, lib *store.Library, records []store.VectorRecord, dimension int) error {
	start := time.Now()
	err := r.upsert(ctx, lib, records, dimension)
	r.metrics.observe("upsert_vectors", start, err)
	return err
}

// UpsertMeta writes the single meta record of a source under {sourceId}-meta.
func (r *Repository) UpsertMeta(ctx context.Context, lib *store.Library, meta store.VectorRecord, dimension int) error {
	start := time.Now()
	meta.Kind = store.KindMeta
	meta.ID = store.MetaID(meta.SourceID)
	err := r.upsert(ctx, lib, []store.VectorRecord{meta}, dimension)
	r.metrics.observe("upsert_meta", start, err)
	return err
}

func (r *Repository) upsert(ctx context.Context, lib *store.Library, records []store.VectorRecord, dimension int) error {
	if err := validateDimension(dimension); err != nil {
		return err
	}
	if err := lib.Validate(); err != nil {
		return err
	}

	now := r.now().UTC()
	docs := make([]store.Document, len(records))
	kinds := make([]store.Kind, len(records))
	for i := range records {
		rec := records[i]
		if err := validateRecord(rec, dimension); err != nil {
			return scouterr.With(err, scouterr.Field("record", i))
		}
		if rec.ID == "" {
			rec.ID = rec.DeterministicID()
		}
		if rec.LibraryID == "" {
			rec.LibraryID = lib.ID
		}
		if rec.Owner == "" {
			rec.Owner = lib.Owner
		}
		if rec.UpsertedAt.IsZero() {
			rec.UpsertedAt = now
		}
		docs[i] = rec.Document()
		kinds[i] = rec.Kind
	}
	if len(docs) == 0 {
		return nil
	}

	part, err := r.ResolvePartitionWithIndexes(ctx, lib, dimension)
	if err != nil {
		return err
	}

	for offset := 0; offset < len(docs); offset += r.batchSize {
		end := min(offset+r.batchSize, len(docs))
		if err := part.UpsertMany(ctx, docs[offset:end]); err != nil {
			if store.IsIndexNotFound(err) {
				r.invalidateSimilarity(part.Name())
			}
			return &BatchError{
				Partition: part.Name(),
				Offset:    offset,
				Size:      end - offset,
				Err:       scouterr.Wrap(err, scouterr.CodeRepoWriteFailure, "writing batch", scouterr.FieldPartition(part.Name())),
			}
		}
		r.metrics.countWritten(kinds[offset:end])
		r.logger.Debug("record batch written",
			slog.String("partition", part.Name()),
			slog.Int("offset", offset),
			slog.Int("size", end-offset),
			slog.Int("total", len(docs)))
	}

	return nil
}

func validateRecord(rec store.VectorRecord, dimension int) error {
	if !rec.Kind.Valid() {
		return scouterr.Errorf(scouterr.CodeRepoWriteInvalidInput, "invalid record kind %q", rec.Kind)
	}
	if rec.SourceID == "" {
		return scouterr.New(scouterr.CodeRepoWriteInvalidInput, "record sourceId is required")
	}
	if rec.Kind.IsChunkLike() && len(rec.Embedding) != dimension {
		return scouterr.Errorf(scouterr.CodeRepoWriteInvalidInput,
			"%s record %s has %d embedding dimensions, expected %d",
			rec.Kind, rec.DeterministicID(), len(rec.Embedding), dimension)
	}
	if rec.Kind == store.KindMeta && len(rec.Embedding) > 0 && len(rec.Embedding) != dimension {
		return scouterr.Errorf(scouterr.CodeRepoWriteInvalidInput,
			"meta record %s has %d embedding dimensions, expected %d",
			rec.DeterministicID(), len(rec.Embedding), dimension)
	}
	return nil
}

// DeleteBySourceID removes every record of the source, of any kind, in one
// delete-many. No index setup is involved.
func (r *Repository) DeleteBySourceID(ctx context.Context, lib *store.Library, sourceID string) (int, error) {
	start := time.Now()
	n, err := r.deleteBySourceID(ctx, lib, sourceID)
	r.metrics.observe("delete_by_source", start, err)
	return n, err
}

func (r *Repository) deleteBySourceID(ctx context.Context, lib *store.Library, sourceID string) (int, error) {
	if sourceID == "" {
		return 0, scouterr.New(scouterr.CodeRepoWriteInvalidInput, "sourceId is required")
	}
	part, err := r.ResolvePartition(ctx, lib)
	if err != nil {
		return 0, err
	}
	n, err := part.DeleteMany(ctx, store.NativeFilter{store.FieldSourceID: store.Eq(sourceID)})
	if err != nil {
		return 0, scouterr.Wrap(err, scouterr.CodeRepoWriteFailure, "deleting source records",
			scouterr.FieldPartition(part.Name()), scouterr.FieldSourceID(sourceID))
	}
	r.logger.Info("source records deleted",
		slog.String("partition", part.Name()), slog.String("source_id", sourceID), slog.Int("deleted", n))
	return n, nil
}
