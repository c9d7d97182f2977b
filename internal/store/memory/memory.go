// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

// Package memory is an in-process engine for development and tests. Similarity
// search is brute-force cosine over every stored embedding; index
// definitions are kept in a catalog so the lifecycle and filter rules of a
// real search engine can be exercised without one.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
)

func init() {
	store.RegisterBackend("memory", func(store.StorageConfig) (store.Engine, error) {
		return New(), nil
	})
}

// Compile-time interface checks.
var (
	_ store.Engine    = (*Engine)(nil)
	_ store.Partition = (*Partition)(nil)
)

// Option configures an Engine.
type Option func(*Engine)

// WithoutIntrospection makes ListSearchIndexes return
// store.ErrIntrospectionUnsupported, like deployments without search index
// management commands.
func WithoutIntrospection() Option {
	return func(e *Engine) { e.introspection = false }
}

// WithInitialIndexStatus sets the status new similarity indexes start in.
// The default is store.IndexStatusActive.
func WithInitialIndexStatus(status store.IndexStatus) Option {
	return func(e *Engine) { e.initialStatus = status }
}

// Engine holds partitions in memory.
type Engine struct {
	mu            sync.Mutex
	partitions    map[string]*Partition
	introspection bool
	initialStatus store.IndexStatus
}

// New creates an empty in-memory engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		partitions:    make(map[string]*Partition),
		introspection: true,
		initialStatus: store.IndexStatusActive,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OpenPartition returns the named partition, creating it on first use.
func (e *Engine) OpenPartition(_ context.Context, name string) (store.Partition, error) {
	return e.Partition(name), nil
}

// Partition returns the concrete partition so tests can reach the
// inspection helpers.
func (e *Engine) Partition(name string) *Partition {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.partitions[name]
	if !ok {
		p = &Partition{
			name:          name,
			docs:          make(map[string]store.Document),
			indexes:       make(map[string]*store.IndexInfo),
			fieldIndexes:  make(map[string]store.FieldIndex),
			introspection: e.introspection,
			initialStatus: e.initialStatus,
			failures:      make(map[string]*failure),
		}
		e.partitions[name] = p
	}
	return p
}

// Close is a no-op for the in-memory engine.
func (e *Engine) Close() error {
	return nil
}

// Partition is an in-memory record collection.
type Partition struct {
	name string

	mu            sync.RWMutex
	docs          map[string]store.Document
	indexes       map[string]*store.IndexInfo
	fieldIndexes  map[string]store.FieldIndex
	introspection bool
	initialStatus store.IndexStatus

	// Inspection state for tests.
	batchSizes  []int
	createCalls int
	listCalls   int
	failures    map[string]*failure
}

type failure struct {
	skip int
	err  error
}

// Name returns the partition name.
func (p *Partition) Name() string { return p.name }

// ListSearchIndexes returns the similarity indexes called name.
func (p *Partition) ListSearchIndexes(_ context.Context, name string) ([]store.IndexInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++

	if err := p.takeFailure("list"); err != nil {
		return nil, err
	}
	if !p.introspection {
		return nil, store.ErrIntrospectionUnsupported
	}
	info, ok := p.indexes[name]
	if !ok {
		return nil, nil
	}
	return []store.IndexInfo{*info}, nil
}

// CreateSearchIndex registers def. Creating an existing name fails with a
// duplicate error.
func (p *Partition) CreateSearchIndex(_ context.Context, def store.IndexDefinition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createCalls++

	if err := p.takeFailure("create"); err != nil {
		return err
	}
	if _, ok := p.indexes[def.Name]; ok {
		return store.NewAlreadyExistsError(def.Name)
	}
	p.indexes[def.Name] = &store.IndexInfo{
		ID:         uuid.NewString(),
		Name:       def.Name,
		Definition: def,
		Status:     p.initialStatus,
		Queryable:  p.initialStatus == store.IndexStatusActive || p.initialStatus == store.IndexStatusReady,
	}
	return nil
}

// EnsureFieldIndexes records plain field indexes; they have no effect on
// query results.
func (p *Partition) EnsureFieldIndexes(_ context.Context, indexes []store.FieldIndex) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.takeFailure("ensure"); err != nil {
		return err
	}
	for _, idx := range indexes {
		p.fieldIndexes[idx.Name] = idx
	}
	return nil
}

// VectorSearch scores every document carrying an embedding at req.Path,
// keeps the NumCandidates best, then applies the filter and Limit. The
// candidate pool doubles while fewer than Limit candidates match.
func (p *Partition) VectorSearch(_ context.Context, req store.VectorSearchRequest) ([]store.SearchHit, error) {
	p.mu.Lock()
	if err := p.takeFailure("search"); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Unlock()

	p.mu.RLock()
	defer p.mu.RUnlock()

	info, ok := p.indexes[req.Index]
	if !ok {
		return nil, store.NewIndexNotFoundError(req.Index)
	}
	if err := p.checkFilterDeclared(info.Definition, req.Filter); err != nil {
		return nil, err
	}
	if vf, ok := info.Definition.VectorField(); ok && vf.NumDimensions != len(req.Vector) {
		return nil, &store.EngineError{
			Code:    store.EngineCodeDimensionMismatch,
			Path:    vf.Path,
			Message: "query vector dimension does not match index",
		}
	}

	hits := make([]store.SearchHit, 0, len(p.docs))
	for _, doc := range p.docs {
		emb, ok := toFloat32s(doc[req.Path])
		if !ok || len(emb) != len(req.Vector) {
			continue
		}
		hits = append(hits, store.SearchHit{Score: similarityScore(req.Vector, emb), Doc: doc})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].Doc.ID() < hits[j].Doc.ID()
		}
		return hits[i].Score > hits[j].Score
	})
	pool := req.NumCandidates
	if pool <= 0 {
		pool = len(hits)
	}
	for {
		out := filterHits(hits[:min(pool, len(hits))], req)
		if req.Limit <= 0 || len(out) >= req.Limit || pool >= len(hits) {
			return out, nil
		}
		pool *= 2
	}
}

// filterHits keeps the candidates matching req.Filter, up to req.Limit.
func filterHits(candidates []store.SearchHit, req store.VectorSearchRequest) []store.SearchHit {
	out := make([]store.SearchHit, 0, req.Limit)
	for _, h := range candidates {
		if !matches(h.Doc, req.Filter) {
			continue
		}
		out = append(out, store.SearchHit{Score: h.Score, Doc: project(h.Doc, req.Project)})
		if req.Limit > 0 && len(out) == req.Limit {
			break
		}
	}
	return out
}

// checkFilterDeclared enforces the search engine rule that every filtered
// path is declared in the index, and that array-valued paths are declared as
// token fields.
func (p *Partition) checkFilterDeclared(def store.IndexDefinition, filter store.NativeFilter) error {
	for _, field := range filter.Fields() {
		decl, declared := def.Field(field)
		if declared && decl.Type == store.IndexFieldToken {
			continue
		}
		if p.hasArrayAt(field) {
			return store.NewTokenIndexError(field)
		}
		if !declared {
			return store.NewFilterNotIndexedError(field)
		}
	}
	return nil
}

func (p *Partition) hasArrayAt(field string) bool {
	for _, doc := range p.docs {
		v, ok := lookup(doc, field)
		if !ok {
			continue
		}
		if _, isList := store.AsSlice(v); isList {
			return true
		}
	}
	return false
}

// FindOneWithEmbedding returns any document whose embedding at path has the
// given dimension.
func (p *Partition) FindOneWithEmbedding(_ context.Context, path string, dimension int) (store.Document, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := p.sortedIDs()
	for _, id := range ids {
		doc := p.docs[id]
		if emb, ok := toFloat32s(doc[path]); ok && len(emb) == dimension {
			return cloneDoc(doc), nil
		}
	}
	return nil, store.ErrNotFound
}

// Find lists matching documents.
func (p *Partition) Find(_ context.Context, filter store.NativeFilter, opts store.FindOptions) ([]store.Document, error) {
	p.mu.Lock()
	if err := p.takeFailure("find"); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Unlock()

	p.mu.RLock()
	defer p.mu.RUnlock()

	var found []store.Document
	for _, id := range p.sortedIDs() {
		if doc := p.docs[id]; matches(doc, filter) {
			found = append(found, doc)
		}
	}

	if len(opts.Sort) > 0 {
		sort.SliceStable(found, func(i, j int) bool {
			for _, s := range opts.Sort {
				a, _ := lookup(found[i], s.Field)
				b, _ := lookup(found[j], s.Field)
				c := orderValues(a, b)
				if c == 0 {
					continue
				}
				if s.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if opts.Skip > 0 {
		if opts.Skip >= len(found) {
			return nil, nil
		}
		found = found[opts.Skip:]
	}
	if opts.Limit > 0 && len(found) > opts.Limit {
		found = found[:opts.Limit]
	}

	out := make([]store.Document, len(found))
	for i, doc := range found {
		out[i] = project(doc, opts.Project)
	}
	return out, nil
}

// Count returns the number of matching documents.
func (p *Partition) Count(_ context.Context, filter store.NativeFilter) (int, error) {
	p.mu.Lock()
	if err := p.takeFailure("count"); err != nil {
		p.mu.Unlock()
		return 0, err
	}
	p.mu.Unlock()

	p.mu.RLock()
	defer p.mu.RUnlock()

	n := 0
	for _, doc := range p.docs {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

// FacetCounts groups the values at field over the matching documents. Null
// and missing values are skipped; with unwind, list values count per element.
func (p *Partition) FacetCounts(_ context.Context, filter store.NativeFilter, field string, unwind bool) ([]store.FacetBucket, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	type bucket struct {
		value any
		count int
	}
	buckets := map[string]*bucket{}
	add := func(v any) {
		if v == nil {
			return
		}
		key := facetKey(v)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{value: v}
			buckets[key] = b
		}
		b.count++
	}

	for _, doc := range p.docs {
		if !matches(doc, filter) {
			continue
		}
		v, ok := lookup(doc, field)
		if !ok || v == nil {
			continue
		}
		if list, isList := store.AsSlice(v); isList && unwind {
			for _, x := range list {
				add(x)
			}
			continue
		}
		add(v)
	}

	out := make([]store.FacetBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, store.FacetBucket{Value: b.value, Count: b.count})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return orderValues(out[i].Value, out[j].Value) < 0
	})
	return out, nil
}

// UpsertMany replaces documents by id.
func (p *Partition) UpsertMany(_ context.Context, docs []store.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.takeFailure("upsert"); err != nil {
		return err
	}
	p.batchSizes = append(p.batchSizes, len(docs))
	for _, doc := range docs {
		p.docs[doc.ID()] = cloneDoc(doc)
	}
	return nil
}

// DeleteMany removes every matching document.
func (p *Partition) DeleteMany(_ context.Context, filter store.NativeFilter) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.takeFailure("delete"); err != nil {
		return 0, err
	}
	n := 0
	for id, doc := range p.docs {
		if matches(doc, filter) {
			delete(p.docs, id)
			n++
		}
	}
	return n, nil
}

func (p *Partition) sortedIDs() []string {
	ids := make([]string, 0, len(p.docs))
	for id := range p.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// takeFailure pops an injected failure for op. Callers hold p.mu.
func (p *Partition) takeFailure(op string) error {
	f, ok := p.failures[op]
	if !ok {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		return nil
	}
	delete(p.failures, op)
	return f.err
}

func project(doc store.Document, fields []string) store.Document {
	if len(fields) == 0 {
		out := cloneDoc(doc)
		delete(out, store.FieldEmbedding)
		return out
	}
	out := store.Document{store.FieldID: doc[store.FieldID]}
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

func cloneDoc(doc store.Document) store.Document {
	out := make(store.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
