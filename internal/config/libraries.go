// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

// catalogFile is the on-disk shape of the library catalog.
type catalogFile struct {
	Libraries []libraryEntry `yaml:"libraries"`
}

type libraryEntry struct {
	ID        string       `yaml:"id"`
	Owner     string       `yaml:"owner"`
	Partition string       `yaml:"partition"`
	Facets    []facetEntry `yaml:"facets"`
}

type facetEntry struct {
	MetaKey string          `yaml:"metaKey"`
	Type    store.FacetType `yaml:"type"`
	Label   string          `yaml:"label"`
}

// Catalog holds the configured libraries keyed by id.
type Catalog struct {
	libs map[string]*store.Library
}

// LoadLibraries reads and validates the library catalog at path.
func LoadLibraries(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, scouterr.Errorf(scouterr.CodeConfigLoadReadFailure, "reading library catalog %s: %w", path, err)
	}
	return ParseLibraries(data)
}

// ParseLibraries decodes a catalog document. Unknown keys and unknown facet
// types are rejected.
func ParseLibraries(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file catalogFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		if scouterr.CodeOf(err) != "" {
			return nil, err
		}
		return nil, scouterr.Errorf(scouterr.CodeConfigParseInvalidFormat, "parsing library catalog: %w", err)
	}

	cat := &Catalog{libs: make(map[string]*store.Library, len(file.Libraries))}
	var errs []error
	for i, entry := range file.Libraries {
		lib := entry.library()
		if err := lib.Validate(); err != nil {
			errs = append(errs, invalid("libraries[%d]: %v", i, err))
			continue
		}
		if _, dup := cat.libs[lib.ID]; dup {
			errs = append(errs, invalid("libraries[%d]: duplicate library id %q", i, lib.ID))
			continue
		}
		if err := validateFacets(lib); err != nil {
			errs = append(errs, invalid("libraries[%d] (%s): %v", i, lib.ID, err))
			continue
		}
		cat.libs[lib.ID] = lib
	}
	if len(errs) > 0 {
		return nil, scouterr.Join(scouterr.CodeConfigValidateInvalidValue, "validating library catalog", errs...)
	}
	return cat, nil
}

func (e libraryEntry) library() *store.Library {
	lib := &store.Library{ID: e.ID, Owner: e.Owner, Partition: e.Partition}
	for _, f := range e.Facets {
		lib.Facets = append(lib.Facets, store.FacetDefinition{MetaKey: f.MetaKey, Type: f.Type, Label: f.Label})
	}
	return lib
}

func validateFacets(lib *store.Library) error {
	seen := make(map[string]bool, len(lib.Facets))
	for _, f := range lib.Facets {
		if err := f.Validate(); err != nil {
			return err
		}
		if seen[f.MetaKey] {
			return scouterr.Errorf(scouterr.CodeConfigValidateInvalidValue, "duplicate facet %q", f.MetaKey)
		}
		seen[f.MetaKey] = true
	}
	return nil
}

// Library returns the library with the given id.
func (c *Catalog) Library(id string) (*store.Library, error) {
	lib, ok := c.libs[id]
	if !ok {
		return nil, scouterr.New(scouterr.CodeConfigLibraryNotFound, "unknown library "+id, scouterr.FieldLibraryID(id))
	}
	return lib, nil
}

// IDs returns the configured library ids in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.libs))
	for id := range c.libs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
