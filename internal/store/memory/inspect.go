// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package memory

import "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"

// BatchSizes returns the size of every UpsertMany call, in order.
func (p *Partition) BatchSizes() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]int(nil), p.batchSizes...)
}

// CreateCalls returns how many times CreateSearchIndex was called.
func (p *Partition) CreateCalls() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.createCalls
}

// ListCalls returns how many times ListSearchIndexes was called.
func (p *Partition) ListCalls() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.listCalls
}

// Len returns the number of stored documents.
func (p *Partition) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.docs)
}

// Get returns a copy of the stored document.
func (p *Partition) Get(id string) (store.Document, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	doc, ok := p.docs[id]
	if !ok {
		return nil, false
	}
	return cloneDoc(doc), true
}

// FieldIndexes returns the names of the ensured plain field indexes.
func (p *Partition) FieldIndexes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.fieldIndexes))
	for name := range p.fieldIndexes {
		names = append(names, name)
	}
	return names
}

// SetIndexStatus simulates a build status transition.
func (p *Partition) SetIndexStatus(name string, status store.IndexStatus, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if info, ok := p.indexes[name]; ok {
		info.Status = status
		info.Message = message
		info.Queryable = status == store.IndexStatusActive || status == store.IndexStatusReady
	}
}

// DropSearchIndex removes a similarity index out-of-band.
func (p *Partition) DropSearchIndex(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.indexes, name)
}

// PutDocument stores doc directly, bypassing batch accounting. Tests use it
// to seed legacy-shaped records.
func (p *Partition) PutDocument(doc store.Document) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[doc.ID()] = cloneDoc(doc)
}

// FailNext makes the next call of op fail with err. Ops: list, create,
// ensure, search, find, count, upsert, delete.
func (p *Partition) FailNext(op string, err error) {
	p.FailAfter(op, 0, err)
}

// FailAfter lets n calls of op succeed and fails the one after with err.
func (p *Partition) FailAfter(op string, n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = &failure{skip: n, err: err}
}
