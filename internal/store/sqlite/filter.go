// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package sqlite

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

var validPath = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// jsonPath converts a dotted field name into a JSON path. Field names are
// restricted to identifiers because they are inlined into SQL.
func jsonPath(field string) (string, error) {
	if !validPath.MatchString(field) {
		return "", scouterr.Errorf(scouterr.CodeStoreInvalidInput, "invalid field name %q", field)
	}
	return "$." + field, nil
}

// whereClause renders filter as SQL over records.doc. Every field is matched
// through json_each, which yields the elements of an array and the value
// itself for scalars, so list fields match on any element.
func whereClause(filter store.NativeFilter) (string, []any, error) {
	var (
		parts []string
		args  []any
	)
	for _, field := range filter.Fields() {
		path, err := jsonPath(field)
		if err != nil {
			return "", nil, err
		}
		for _, op := range filter[field].Operators() {
			clause, clauseArgs, err := opClause(path, op, filter[field][op])
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, clause)
			args = append(args, clauseArgs...)
		}
	}
	if len(parts) == 0 {
		return "1=1", nil, nil
	}
	return strings.Join(parts, " AND "), args, nil
}

func opClause(path string, op store.Operator, arg any) (string, []any, error) {
	missing := fmt.Sprintf("COALESCE(json_type(records.doc, '%s'), 'null') = 'null'", path)
	each := fmt.Sprintf("SELECT 1 FROM json_each(records.doc, '%s') AS je WHERE ", path)

	switch op {
	case store.OpEq, store.OpNe:
		var clause string
		var args []any
		if arg == nil {
			clause = missing
		} else {
			clause = "EXISTS (" + each + "je.value = ?)"
			args = []any{bindValue(arg)}
		}
		if op == store.OpNe {
			clause = "NOT (" + clause + ")"
		}
		return clause, args, nil

	case store.OpIn, store.OpNin:
		list, ok := store.AsSlice(arg)
		if !ok {
			return "", nil, scouterr.Errorf(scouterr.CodeStoreInvalidInput, "%s expects a list, got %T", op, arg)
		}
		var (
			holders []string
			args    []any
			hasNil  bool
		)
		for _, v := range list {
			if v == nil {
				hasNil = true
				continue
			}
			holders = append(holders, "?")
			args = append(args, bindValue(v))
		}
		var alts []string
		if len(holders) > 0 {
			alts = append(alts, "EXISTS ("+each+"je.value IN ("+strings.Join(holders, ",")+"))")
		}
		if hasNil {
			alts = append(alts, missing)
		}
		clause := "0"
		if len(alts) > 0 {
			clause = "(" + strings.Join(alts, " OR ") + ")"
		}
		if op == store.OpNin {
			clause = "NOT " + clause
		}
		return clause, args, nil

	case store.OpGt, store.OpGte, store.OpLt, store.OpLte:
		cmp := map[store.Operator]string{store.OpGt: ">", store.OpGte: ">=", store.OpLt: "<", store.OpLte: "<="}[op]
		guard := "je.type IN ('integer', 'real')"
		switch arg.(type) {
		case string, time.Time:
			guard = "je.type = 'text'"
		}
		return "EXISTS (" + each + guard + " AND je.value " + cmp + " ?)", []any{bindValue(arg)}, nil

	case store.OpExists:
		want, _ := arg.(bool)
		if want {
			return "NOT (" + missing + ")", nil, nil
		}
		return missing, nil, nil

	default:
		return "", nil, scouterr.Errorf(scouterr.CodeStoreInvalidInput, "unsupported operator %q", op)
	}
}

func bindValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return formatTime(x)
	case store.Kind:
		return string(x)
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return v
	}
}

func orderClause(sorts []store.SortField) (string, error) {
	if len(sorts) == 0 {
		return "ORDER BY records.id", nil
	}
	parts := make([]string, 0, len(sorts)+1)
	for _, s := range sorts {
		path, err := jsonPath(s.Field)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("json_extract(records.doc, '%s') %s", path, dir))
	}
	parts = append(parts, "records.id ASC")
	return "ORDER BY " + strings.Join(parts, ", "), nil
}
