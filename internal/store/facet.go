// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package store

import (
	"strings"

	"gopkg.in/yaml.v3"

	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

// FacetType is the closed set of facet value shapes.
type FacetType string

const (
	FacetTypeString      FacetType = "string"
	FacetTypeStringArray FacetType = "string[]"
)

// ParseFacetType accepts the canonical names plus the aliases found in
// older library configs ("text", "array", "string-array").
func ParseFacetType(raw string) (FacetType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "string", "text", "scalar", "":
		return FacetTypeString, nil
	case "string[]", "array", "string-array", "array-of-string", "list":
		return FacetTypeStringArray, nil
	default:
		return "", scouterr.Errorf(scouterr.CodeConfigParseInvalidFormat, "unknown facet type %q", raw)
	}
}

// Valid reports whether t is one of the declared facet types.
func (t FacetType) Valid() bool {
	return t == FacetTypeString || t == FacetTypeStringArray
}

// IsArray reports whether facet values are lists of strings.
func (t FacetType) IsArray() bool {
	return t == FacetTypeStringArray
}

// UnmarshalYAML validates the facet type when the library catalog is loaded,
// so no query path ever has to guess a facet's shape.
func (t *FacetType) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseFacetType(raw)
	if err != nil {
		return scouterr.Errorf(scouterr.CodeConfigParseInvalidFormat, "line %d: %w", node.Line, err)
	}
	*t = parsed
	return nil
}

// Validate checks the facet definition.
func (f FacetDefinition) Validate() error {
	if strings.TrimSpace(f.MetaKey) == "" {
		return scouterr.New(scouterr.CodeConfigValidateInvalidValue, "facet: metaKey is required")
	}
	if !f.Type.Valid() {
		return scouterr.Errorf(scouterr.CodeConfigValidateInvalidValue, "facet %q: invalid type %q", f.MetaKey, f.Type)
	}
	return nil
}

// Validate checks the library descriptor. A missing partition is a
// configuration error; there is no fallback partition.
func (l *Library) Validate() error {
	if l == nil {
		return scouterr.New(scouterr.CodeRepoConfigInvalid, "library descriptor is required")
	}
	if strings.TrimSpace(l.ID) == "" {
		return scouterr.New(scouterr.CodeRepoConfigInvalid, "library: id is required")
	}
	if strings.TrimSpace(l.Partition) == "" {
		return scouterr.New(scouterr.CodeRepoConfigInvalid,
			"library: no partition configured",
			scouterr.FieldLibraryID(l.ID),
		)
	}
	seen := make(map[string]bool, len(l.Facets))
	for _, f := range l.Facets {
		if err := f.Validate(); err != nil {
			return scouterr.Wrap(err, scouterr.CodeRepoConfigInvalid, "library facets", scouterr.FieldLibraryID(l.ID))
		}
		if seen[f.MetaKey] {
			return scouterr.New(scouterr.CodeRepoConfigInvalid,
				"library: duplicate facet "+f.MetaKey,
				scouterr.FieldLibraryID(l.ID),
			)
		}
		seen[f.MetaKey] = true
	}
	return nil
}

// Facet returns the facet definition for key.
func (l *Library) Facet(key string) (FacetDefinition, bool) {
	for _, f := range l.Facets {
		if f.MetaKey == key {
			return f, true
		}
	}
	return FacetDefinition{}, false
}
