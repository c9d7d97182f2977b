// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package store

import (
	"sort"
	"strings"
)

// Filter is the abstract filter callers pass in: field name to a bare scalar
// (equality), a bare slice (inclusion) or a structured predicate.
type Filter map[string]any

// Operator is a comparison operator of the native predicate form.
type Operator string

const (
	OpEq     Operator = "$eq"
	OpNe     Operator = "$ne"
	OpIn     Operator = "$in"
	OpNin    Operator = "$nin"
	OpGt     Operator = "$gt"
	OpGte    Operator = "$gte"
	OpLt     Operator = "$lt"
	OpLte    Operator = "$lte"
	OpExists Operator = "$exists"
)

var operators = map[Operator]bool{
	OpEq: true, OpNe: true, OpIn: true, OpNin: true,
	OpGt: true, OpGte: true, OpLt: true, OpLte: true, OpExists: true,
}

// ParseOperator accepts both "$gt" and "gt".
func ParseOperator(key string) (Operator, bool) {
	if !strings.HasPrefix(key, "$") {
		key = "$" + key
	}
	op := Operator(key)
	return op, operators[op]
}

// Predicate is a conjunction of operator clauses on a single field.
type Predicate map[Operator]any

// Eq builds an equality predicate.
func Eq(v any) Predicate { return Predicate{OpEq: v} }

// In builds an inclusion predicate.
func In(values ...any) Predicate { return Predicate{OpIn: values} }

// Operators returns the predicate's operators in a stable order.
func (p Predicate) Operators() []Operator {
	ops := make([]Operator, 0, len(p))
	for op := range p {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// NativeFilter is the translated, engine-native filter: field to predicate,
// all fields combined with AND.
type NativeFilter map[string]Predicate

// Fields returns the filtered field names in a stable order.
func (f NativeFilter) Fields() []string {
	fields := make([]string, 0, len(f))
	for k := range f {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// With returns a copy of f with field set to p.
func (f NativeFilter) With(field string, p Predicate) NativeFilter {
	out := make(NativeFilter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out[field] = p
	return out
}

// AsSlice converts the common slice shapes to []any. ok is false when v is
// not a slice.
func AsSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	case []int:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	case []int64:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	case []float64:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out, true
	case []Kind:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = string(x)
		}
		return out, true
	default:
		return nil, false
	}
}
