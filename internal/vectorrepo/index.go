// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package vectorrepo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

// Strategies used to decide whether the similarity index exists.
const (
	strategyList  = "list"
	strategyProbe = "probe"
)

// baseFilterFields are declared filterable in every similarity index.
var baseFilterFields = []string{store.FieldKind, store.FieldLibraryID, store.FieldOwner, store.FieldSourceID}

// IndexReadiness is the live build state of a similarity index.
type IndexReadiness struct {
	Ready   bool              `json:"ready"`
	Status  store.IndexStatus `json:"status"`
	Message string            `json:"message,omitempty"`
}

// BuildIndexDefinition derives the similarity index schema from the library
// facets: scalar facets are filter fields, list facets are token fields, and
// the embedding is a cosine vector field of the given dimension.
func (r *Repository) BuildIndexDefinition(lib *store.Library, dimension int) store.IndexDefinition {
	def := store.IndexDefinition{
		Name: r.indexName,
		Fields: []store.IndexField{{
			Type:          store.IndexFieldVector,
			Path:          store.FieldEmbedding,
			NumDimensions: dimension,
			Similarity:    store.SimilarityCosine,
		}},
	}
	seen := make(map[string]bool, len(baseFilterFields)+len(lib.Facets))
	for _, f := range baseFilterFields {
		def.Fields = append(def.Fields, store.IndexField{Type: store.IndexFieldFilter, Path: f})
		seen[f] = true
	}
	for _, facet := range lib.Facets {
		if seen[facet.MetaKey] {
			continue
		}
		seen[facet.MetaKey] = true
		typ := store.IndexFieldFilter
		if facet.Type.IsArray() {
			typ = store.IndexFieldToken
		}
		def.Fields = append(def.Fields, store.IndexField{Type: typ, Path: facet.MetaKey})
	}
	return def
}

// ensureSimilarityIndex makes sure the partition's similarity index exists.
// Concurrent first calls may both try to create it; the engine's duplicate
// response counts as success.
func (r *Repository) ensureSimilarityIndex(ctx context.Context, part store.Partition, lib *store.Library, dimension int) error {
	key := cacheKey{partition: part.Name(), index: r.indexName}

	r.mu.Lock()
	at, ok := r.similarityEnsured[key]
	r.mu.Unlock()
	if ok && r.fresh(at) {
		return nil
	}

	log := r.logger.With(slog.String("partition", key.partition), slog.String("index", key.index))

	exists, strategy, err := r.indexExists(ctx, part, dimension)
	if err != nil {
		return err
	}
	log.Debug("similarity index existence checked", slog.String("strategy", strategy), slog.Bool("exists", exists))

	if !exists {
		if err := r.createIndex(ctx, part, lib, dimension, log); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.similarityEnsured[key] = r.now()
	r.mu.Unlock()
	return nil
}

func (r *Repository) createIndex(ctx context.Context, part store.Partition, lib *store.Library, dimension int, log *slog.Logger) error {
	def := r.BuildIndexDefinition(lib, dimension)

	err := part.CreateSearchIndex(ctx, def)
	switch {
	case store.IsAlreadyExists(err):
		r.metrics.indexCreations.WithLabelValues("duplicate").Inc()
		log.Info("similarity index already exists")
		return nil
	case err != nil:
		r.metrics.indexCreations.WithLabelValues("error").Inc()
		return scouterr.Wrap(err, scouterr.CodeRepoIndexCreateFailure, "creating similarity index",
			scouterr.FieldPartition(part.Name()), scouterr.FieldIndex(r.indexName))
	}
	r.metrics.indexCreations.WithLabelValues("created").Inc()
	log.Info("similarity index creation requested",
		slog.Int("dimension", dimension), slog.Int("fields", len(def.Fields)))

	if err := sleep(ctx, r.verifyDelay); err != nil {
		return err
	}
	exists, strategy, verr := r.indexExists(ctx, part, dimension)
	switch {
	case verr != nil:
		log.Warn("similarity index verification failed", slog.String("strategy", strategy), slog.Any("error", verr))
	case !exists:
		log.Warn("similarity index not visible yet after creation", slog.String("strategy", strategy))
	default:
		log.Info("similarity index verified", slog.String("strategy", strategy))
	}
	return nil
}

// indexExists answers through introspection when the engine supports it and
// falls back to the probe query otherwise. It reports the strategy used.
func (r *Repository) indexExists(ctx context.Context, part store.Partition, dimension int) (bool, string, error) {
	info, err := r.lookupIndex(ctx, part)
	if err == nil {
		return info != nil, strategyList, nil
	}
	if !errors.Is(err, store.ErrIntrospectionUnsupported) {
		return false, strategyList, err
	}
	exists, err := r.probeIndex(ctx, part, dimension)
	return exists, strategyProbe, err
}

// lookupIndex returns the index info, nil when absent, or
// store.ErrIntrospectionUnsupported.
func (r *Repository) lookupIndex(ctx context.Context, part store.Partition) (*store.IndexInfo, error) {
	infos, err := part.ListSearchIndexes(ctx, r.indexName)
	if errors.Is(err, store.ErrIntrospectionUnsupported) {
		return nil, err
	}
	if err != nil {
		return nil, scouterr.Wrap(err, scouterr.CodeRepoQueryFailure, "listing search indexes",
			scouterr.FieldPartition(part.Name()), scouterr.FieldIndex(r.indexName))
	}
	for i := range infos {
		if infos[i].Name == r.indexName {
			return &infos[i], nil
		}
	}
	return nil, nil
}

// probeIndex samples one record with an embedding of the expected dimension
// and runs a one-result query against the index name. With nothing to sample
// it reports the index as absent so that creation is attempted.
func (r *Repository) probeIndex(ctx context.Context, part store.Partition, dimension int) (bool, error) {
	sample, err := part.FindOneWithEmbedding(ctx, store.FieldEmbedding, dimension)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, scouterr.Wrap(err, scouterr.CodeRepoQueryFailure, "sampling record for index probe",
			scouterr.FieldPartition(part.Name()))
	}
	vector, ok := toFloat32s(sample[store.FieldEmbedding])
	if !ok || len(vector) != dimension {
		return false, nil
	}

	_, err = part.VectorSearch(ctx, store.VectorSearchRequest{
		Index:         r.indexName,
		Path:          store.FieldEmbedding,
		Vector:        vector,
		NumCandidates: 1,
		Limit:         1,
		Project:       []string{store.FieldID},
	})
	switch {
	case err == nil:
		return true, nil
	case store.IsIndexNotFound(err):
		return false, nil
	default:
		return false, scouterr.Wrap(err, scouterr.CodeRepoQueryFailure, "probing similarity index",
			scouterr.FieldPartition(part.Name()), scouterr.FieldIndex(r.indexName))
	}
}

// GetIndexDefinition returns the similarity index as the engine reports it,
// or nil when it does not exist. Without introspection the definition is the
// one the current facet schema would produce.
func (r *Repository) GetIndexDefinition(ctx context.Context, lib *store.Library, dimension int) (*store.IndexInfo, error) {
	if err := validateDimension(dimension); err != nil {
		return nil, err
	}
	part, err := r.ResolvePartition(ctx, lib)
	if err != nil {
		return nil, err
	}

	info, err := r.lookupIndex(ctx, part)
	if !errors.Is(err, store.ErrIntrospectionUnsupported) {
		return info, err
	}

	exists, err := r.probeIndex(ctx, part, dimension)
	if err != nil || !exists {
		return nil, err
	}
	return &store.IndexInfo{
		Name:       r.indexName,
		Definition: r.BuildIndexDefinition(lib, dimension),
		Status:     store.IndexStatusUnknown,
		Message:    "engine does not report index definitions; showing the expected schema",
	}, nil
}

// IsIndexReady reads the build status live on every call.
func (r *Repository) IsIndexReady(ctx context.Context, lib *store.Library, dimension int) (IndexReadiness, error) {
	start := time.Now()
	readiness, err := r.isIndexReady(ctx, lib, dimension)
	r.metrics.observe("is_index_ready", start, err)
	return readiness, err
}

func (r *Repository) isIndexReady(ctx context.Context, lib *store.Library, dimension int) (IndexReadiness, error) {
	if err := validateDimension(dimension); err != nil {
		return IndexReadiness{}, err
	}
	part, err := r.ResolvePartition(ctx, lib)
	if err != nil {
		return IndexReadiness{}, err
	}

	info, err := r.lookupIndex(ctx, part)
	if errors.Is(err, store.ErrIntrospectionUnsupported) {
		exists, perr := r.probeIndex(ctx, part, dimension)
		if perr != nil {
			return IndexReadiness{}, perr
		}
		if !exists {
			return IndexReadiness{Status: store.IndexStatusUnknown, Message: fmt.Sprintf("index %s was not found by probe query", r.indexName)}, nil
		}
		return IndexReadiness{Ready: true, Status: store.IndexStatusUnknown, Message: "index answered a probe query; build status is not reported by the engine"}, nil
	}
	if err != nil {
		return IndexReadiness{}, err
	}
	if info == nil {
		return IndexReadiness{Status: store.IndexStatusUnknown, Message: fmt.Sprintf("index %s does not exist", r.indexName)}, nil
	}
	return readinessOf(info), nil
}

func readinessOf(info *store.IndexInfo) IndexReadiness {
	switch info.Status {
	case store.IndexStatusActive, store.IndexStatusReady:
		return IndexReadiness{Ready: true, Status: info.Status}
	case store.IndexStatusInitialSync, store.IndexStatusSyncing, store.IndexStatusBuilding, store.IndexStatusPending:
		return IndexReadiness{
			Status:  info.Status,
			Message: fmt.Sprintf("index %s is still building (%s); results may be incomplete until it is active", info.Name, info.Status),
		}
	case store.IndexStatusFailed:
		msg := info.Message
		if msg == "" {
			msg = "index build failed"
		}
		return IndexReadiness{Status: info.Status, Message: msg}
	default:
		return IndexReadiness{Status: info.Status, Message: fmt.Sprintf("index %s has unrecognised status %q", info.Name, info.Status)}
	}
}

// currentStatus is the best-effort live status for diagnostics.
func (r *Repository) currentStatus(ctx context.Context, part store.Partition) store.IndexStatus {
	info, err := r.lookupIndex(ctx, part)
	if err != nil || info == nil {
		return store.IndexStatusUnknown
	}
	return info.Status
}

// ClearIndexCache forgets every ensured flag of the partition so the next
// write or query re-verifies its indexes.
func (r *Repository) ClearIndexCache(partition string) {
	r.mu.Lock()
	delete(r.baseEnsured, partition)
	delete(r.galleryEnsured, partition)
	for key := range r.similarityEnsured {
		if key.partition == partition {
			delete(r.similarityEnsured, key)
		}
	}
	r.mu.Unlock()
	r.logger.Info("index cache cleared", slog.String("partition", partition))
}

// invalidateSimilarity drops the similarity flag after the engine reported
// the index missing.
func (r *Repository) invalidateSimilarity(partition string) {
	r.mu.Lock()
	delete(r.similarityEnsured, cacheKey{partition: partition, index: r.indexName})
	r.mu.Unlock()
	r.logger.Warn("similarity index reported missing; cache invalidated",
		slog.String("partition", partition), slog.String("index", r.indexName))
}
