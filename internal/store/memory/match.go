// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package memory

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
)

// lookup resolves a dotted path ("docMetaJson.region") in doc.
func lookup(doc store.Document, path string) (any, bool) {
	if v, ok := doc[path]; ok {
		return v, true
	}
	parts := strings.Split(path, ".")
	if len(parts) == 1 {
		return nil, false
	}
	var cur any = map[string]any(doc)
	for _, p := range parts {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case store.Document:
		return map[string]any(m), true
	default:
		return nil, false
	}
}

func matches(doc store.Document, filter store.NativeFilter) bool {
	for field, pred := range filter {
		v, present := lookup(doc, field)
		for op, arg := range pred {
			if !matchOp(op, v, present, arg) {
				return false
			}
		}
	}
	return true
}

func matchOp(op store.Operator, v any, present bool, arg any) bool {
	switch op {
	case store.OpEq:
		return present && anyElement(v, func(x any) bool { return valuesEqual(x, arg) })
	case store.OpNe:
		return !matchOp(store.OpEq, v, present, arg)
	case store.OpIn:
		list, ok := store.AsSlice(arg)
		if !ok {
			return false
		}
		if !present || v == nil {
			return containsValue(list, nil)
		}
		return anyElement(v, func(x any) bool { return containsValue(list, x) })
	case store.OpNin:
		return !matchOp(store.OpIn, v, present, arg)
	case store.OpGt, store.OpGte, store.OpLt, store.OpLte:
		if !present {
			return false
		}
		return anyElement(v, func(x any) bool {
			c, ok := compareValues(x, arg)
			if !ok {
				return false
			}
			switch op {
			case store.OpGt:
				return c > 0
			case store.OpGte:
				return c >= 0
			case store.OpLt:
				return c < 0
			default:
				return c <= 0
			}
		})
	case store.OpExists:
		want, _ := arg.(bool)
		return (present && v != nil) == want
	default:
		return false
	}
}

// anyElement applies fn to v, or to each element when v is a list, matching
// array fields by any element the way document stores do.
func anyElement(v any, fn func(any) bool) bool {
	if list, ok := store.AsSlice(v); ok {
		for _, x := range list {
			if fn(x) {
				return true
			}
		}
		return false
	}
	return fn(v)
}

func containsValue(list []any, v any) bool {
	for _, x := range list {
		if valuesEqual(x, v) {
			return true
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// compareValues orders two scalars of the same family (numbers, strings,
// times, bools). ok is false for mixed families.
func compareValues(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

// sortRank orders values of different families the way document stores do:
// missing, numbers, strings, bools, times.
func sortRank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := toFloat(v); ok {
		return 1
	}
	switch v.(type) {
	case string:
		return 2
	case bool:
		return 3
	case time.Time:
		return 4
	}
	return 5
}

func orderValues(a, b any) int {
	ra, rb := sortRank(a), sortRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	if c, ok := compareValues(a, b); ok {
		return c
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// facetKey groups numerically equal values of different Go types together.
func facetKey(v any) string {
	if f, ok := toFloat(v); ok {
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprintf("%T:%v", v, v)
}
