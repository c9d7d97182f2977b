// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package vectorrepo

import (
	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

// TranslateFilter converts an abstract filter into the native predicate form:
// structured predicates pass through with bare operator keys ("gt")
// normalized to their prefixed form ("$gt"), slices become inclusion and
// scalars equality. Nil values are skipped.
func TranslateFilter(filter store.Filter) (store.NativeFilter, error) {
	native := make(store.NativeFilter, len(filter))
	for field, value := range filter {
		if value == nil {
			continue
		}
		pred, err := translateValue(field, value)
		if err != nil {
			return nil, err
		}
		native[field] = pred
	}
	return native, nil
}

func translateValue(field string, value any) (store.Predicate, error) {
	switch v := value.(type) {
	case store.Predicate:
		out := make(store.Predicate, len(v))
		for op, arg := range v {
			out[op] = arg
		}
		return out, nil
	case map[string]any:
		out := make(store.Predicate, len(v))
		for key, arg := range v {
			op, ok := store.ParseOperator(key)
			if !ok {
				return nil, scouterr.New(scouterr.CodeRepoQueryInvalidInput,
					"unknown filter operator "+key, scouterr.Field("field", field))
			}
			out[op] = arg
		}
		return out, nil
	case store.Kind:
		return store.Eq(string(v)), nil
	}
	if list, ok := store.AsSlice(value); ok {
		return store.Predicate{store.OpIn: list}, nil
	}
	return store.Eq(value), nil
}

// withKind applies the kind default for retrieval: a caller-provided kind
// predicate wins, otherwise chunk-like kinds only.
func withKind(filter store.NativeFilter) store.NativeFilter {
	if _, ok := filter[store.FieldKind]; ok {
		return filter
	}
	return filter.With(store.FieldKind, store.In(string(store.KindChunk), string(store.KindChapterSummary)))
}
