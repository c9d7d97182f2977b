// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package vectorrepo

import (
	"context"
	"log/slog"
	"time"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

// baseFieldIndexes back the delete-by-source and kind-scoped query paths.
var baseFieldIndexes = []store.FieldIndex{
	{Name: "base_source", Fields: []string{store.FieldSourceID}},
	{Name: "base_kind_library", Fields: []string{store.FieldKind, store.FieldLibraryID}},
}

// galleryFieldIndexes back the meta listing and facet queries.
var galleryFieldIndexes = []store.FieldIndex{
	{Name: "gallery_kind_library_upserted", Fields: []string{store.FieldKind, store.FieldLibraryID, store.FieldUpsertedAt}},
	{Name: "gallery_year", Fields: []string{store.FieldYear}},
}

// ResolvePartition returns the cached partition handle of lib. A library
// without a partition name is a configuration error; there is no fallback.
// The engine is opened outside the cache lock; when two callers race the
// first stored handle wins.
func (r *Repository) ResolvePartition(ctx context.Context, lib *store.Library) (store.Partition, error) {
	if err := lib.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	part, ok := r.partitions[lib.Partition]
	r.mu.Unlock()
	if ok {
		return part, nil
	}

	part, err := r.engine.OpenPartition(ctx, lib.Partition)
	if err != nil {
		return nil, scouterr.Wrap(err, scouterr.CodeRepoPartitionOpenFailed, "opening partition",
			scouterr.FieldPartition(lib.Partition))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.partitions[lib.Partition]; ok {
		return cached, nil
	}
	r.partitions[lib.Partition] = part
	return part, nil
}

// ResolvePartitionWithIndexes resolves the partition and guarantees that its
// base field indexes and its similarity index exist. Configuration is
// validated before any engine call.
func (r *Repository) ResolvePartitionWithIndexes(ctx context.Context, lib *store.Library, dimension int) (store.Partition, error) {
	if err := validateDimension(dimension); err != nil {
		return nil, err
	}
	part, err := r.ResolvePartition(ctx, lib)
	if err != nil {
		return nil, err
	}
	if err := r.ensureBaseIndexes(ctx, part); err != nil {
		return nil, err
	}
	if err := r.ensureSimilarityIndex(ctx, part, lib, dimension); err != nil {
		return nil, err
	}
	return part, nil
}

func validateDimension(dimension int) error {
	if dimension <= 0 {
		return scouterr.Errorf(scouterr.CodeRepoConfigInvalid, "embedding dimension must be positive, got %d", dimension)
	}
	return nil
}

func (r *Repository) ensureBaseIndexes(ctx context.Context, part store.Partition) error {
	return r.ensureFieldIndexes(ctx, part, r.baseEnsured, baseFieldIndexes, "base")
}

// ensureGalleryIndexes is independent of the similarity index so listings
// work while similarity setup is pending or was never run.
func (r *Repository) ensureGalleryIndexes(ctx context.Context, part store.Partition) error {
	return r.ensureFieldIndexes(ctx, part, r.galleryEnsured, galleryFieldIndexes, "gallery")
}

func (r *Repository) ensureFieldIndexes(ctx context.Context, part store.Partition, cache map[string]time.Time, indexes []store.FieldIndex, label string) error {
	name := part.Name()

	r.mu.Lock()
	at, ok := cache[name]
	r.mu.Unlock()
	if ok && r.fresh(at) {
		return nil
	}

	if err := part.EnsureFieldIndexes(ctx, indexes); err != nil {
		return scouterr.Wrap(err, scouterr.CodeRepoIndexCreateFailure, "ensuring "+label+" field indexes",
			scouterr.FieldPartition(name))
	}
	r.logger.Debug("field indexes ensured", slog.String("partition", name), slog.String("set", label))

	r.mu.Lock()
	cache[name] = r.now()
	r.mu.Unlock()
	return nil
}
