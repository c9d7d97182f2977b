// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

// Package vectorrepo is the vector-and-metadata repository of a library: it
// keeps one similarity index per partition in step with the library's facet
// schema, translates abstract filters, runs similarity and faceted listing
// queries and writes records in bounded batches.
package vectorrepo

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

const (
	DefaultIndexName   = "vector_search_idx"
	DefaultVerifyDelay = 2 * time.Second
	DefaultEnsureTTL   = 15 * time.Minute
	MaxBatchSize       = 1000
)

// Repository owns the partition handles and the "ensured" caches of one
// process. Construct it once and share it.
type Repository struct {
	engine      store.Engine
	logger      *slog.Logger
	metrics     *metrics
	indexName   string
	verifyDelay time.Duration
	ensureTTL   time.Duration
	batchSize   int
	now         func() time.Time

	mu                sync.Mutex
	partitions        map[string]store.Partition
	baseEnsured       map[string]time.Time
	similarityEnsured map[cacheKey]time.Time
	galleryEnsured    map[string]time.Time
}

type cacheKey struct {
	partition string
	index     string
}

// Option configures a Repository.
type Option func(*Repository)

// WithIndexName sets the similarity index name used in every partition.
func WithIndexName(name string) Option {
	return func(r *Repository) { r.indexName = name }
}

// WithVerifyDelay sets the pause between index creation and re-verification.
func WithVerifyDelay(d time.Duration) Option {
	return func(r *Repository) { r.verifyDelay = d }
}

// WithEnsureTTL sets how long an "index ensured" flag is trusted. Zero keeps
// flags until ClearIndexCache.
func WithEnsureTTL(d time.Duration) Option {
	return func(r *Repository) { r.ensureTTL = d }
}

// WithBatchSize sets the number of records per write batch.
func WithBatchSize(n int) Option {
	return func(r *Repository) { r.batchSize = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// WithRegisterer registers the repository metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Repository) { r.metrics = newMetrics(reg) }
}

// WithClock overrides the time source used for upsertedAt and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// New creates a repository over engine.
func New(engine store.Engine, opts ...Option) (*Repository, error) {
	if engine == nil {
		return nil, scouterr.New(scouterr.CodeRepoConfigInvalid, "storage engine is required")
	}
	r := &Repository{
		engine:            engine,
		indexName:         DefaultIndexName,
		verifyDelay:       DefaultVerifyDelay,
		ensureTTL:         DefaultEnsureTTL,
		batchSize:         MaxBatchSize,
		now:               time.Now,
		partitions:        make(map[string]store.Partition),
		baseEnsured:       make(map[string]time.Time),
		similarityEnsured: make(map[cacheKey]time.Time),
		galleryEnsured:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.metrics == nil {
		r.metrics = newMetrics(nil)
	}

	if r.indexName == "" {
		return nil, scouterr.New(scouterr.CodeRepoConfigInvalid, "index name is required")
	}
	if r.batchSize <= 0 || r.batchSize > MaxBatchSize {
		return nil, scouterr.Errorf(scouterr.CodeRepoConfigInvalid,
			"batch size must be between 1 and %d, got %d", MaxBatchSize, r.batchSize)
	}
	if r.verifyDelay < 0 || r.ensureTTL < 0 {
		return nil, scouterr.New(scouterr.CodeRepoConfigInvalid, "durations must not be negative")
	}
	return r, nil
}

// IndexName returns the similarity index name.
func (r *Repository) IndexName() string { return r.indexName }

// Close releases the engine.
func (r *Repository) Close() error {
	r.mu.Lock()
	r.partitions = make(map[string]store.Partition)
	r.mu.Unlock()
	return r.engine.Close()
}

// fresh reports whether a flag set at t is still trusted.
func (r *Repository) fresh(t time.Time) bool {
	if r.ensureTTL == 0 {
		return true
	}
	return r.now().Sub(t) < r.ensureTTL
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
