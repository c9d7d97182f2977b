// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package store

import "strings"

// IndexFieldType is how a field is declared in a similarity index.
type IndexFieldType string

const (
	IndexFieldVector IndexFieldType = "vector"
	IndexFieldFilter IndexFieldType = "filter"
	// IndexFieldToken marks string-array fields. Inclusion filters on array
	// fields are rejected by the engine unless the field is token indexed.
	IndexFieldToken IndexFieldType = "token"
)

// Similarity metrics supported for the vector field.
const (
	SimilarityCosine = "cosine"
)

// IndexField is a single field of an index definition.
type IndexField struct {
	Type          IndexFieldType `json:"type"`
	Path          string         `json:"path"`
	NumDimensions int            `json:"numDimensions,omitempty"`
	Similarity    string         `json:"similarity,omitempty"`
}

// IndexDefinition describes the named similarity index of a partition.
type IndexDefinition struct {
	Name   string       `json:"name"`
	Fields []IndexField `json:"fields"`
}

// Field returns the declaration for path.
func (d IndexDefinition) Field(path string) (IndexField, bool) {
	for _, f := range d.Fields {
		if f.Path == path {
			return f, true
		}
	}
	return IndexField{}, false
}

// VectorField returns the vector declaration.
func (d IndexDefinition) VectorField() (IndexField, bool) {
	for _, f := range d.Fields {
		if f.Type == IndexFieldVector {
			return f, true
		}
	}
	return IndexField{}, false
}

// IndexStatus is the build status reported by the engine, lower-cased.
type IndexStatus string

const (
	IndexStatusActive      IndexStatus = "active"
	IndexStatusReady       IndexStatus = "ready"
	IndexStatusInitialSync IndexStatus = "initial_sync"
	IndexStatusSyncing     IndexStatus = "syncing"
	IndexStatusBuilding    IndexStatus = "building"
	IndexStatusPending     IndexStatus = "pending"
	IndexStatusFailed      IndexStatus = "failed"
	IndexStatusUnknown     IndexStatus = "unknown"
)

// NormalizeIndexStatus maps engine spellings ("READY", "Initial Sync") onto
// IndexStatus values.
func NormalizeIndexStatus(raw string) IndexStatus {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	switch IndexStatus(s) {
	case IndexStatusActive, IndexStatusReady, IndexStatusInitialSync, IndexStatusSyncing,
		IndexStatusBuilding, IndexStatusPending, IndexStatusFailed:
		return IndexStatus(s)
	case "":
		return IndexStatusUnknown
	default:
		return IndexStatus(s)
	}
}

// IndexInfo is what introspection returns for a named index.
type IndexInfo struct {
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name"`
	Definition IndexDefinition `json:"definition"`
	Status     IndexStatus     `json:"status"`
	// Message carries the engine's explanation for failed builds.
	Message   string `json:"message,omitempty"`
	Queryable bool   `json:"queryable"`
}

// FieldIndex is a plain (non-similarity) index on one or more fields.
type FieldIndex struct {
	Name   string
	Fields []string
}
