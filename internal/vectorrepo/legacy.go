// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package vectorrepo

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var quotedItem = regexp.MustCompile(`'([^']*)'|"([^"]*)"`)

// NormalizeStringList reads a list-shaped field that older writers stored as
// a list, a single string or a stringified list. It returns nil when nothing
// usable is found.
func NormalizeStringList(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case []string:
		return cleanStrings(x)
	case []any:
		items := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				items = append(items, s)
			}
		}
		return cleanStrings(items)
	case string:
		return parseStringList(x)
	default:
		return nil
	}
}

func parseStringList(raw string) []string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, "[") {
		return []string{s}
	}

	var parsed []any
	if err := json.Unmarshal([]byte(s), &parsed); err == nil {
		return NormalizeStringList(parsed)
	}

	// Not JSON, e.g. a Python-style repr with single quotes.
	if matches := quotedItem.FindAllStringSubmatch(s, -1); len(matches) > 0 {
		items := make([]string, 0, len(matches))
		for _, m := range matches {
			items = append(items, m[1]+m[2])
		}
		return cleanStrings(items)
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	return cleanStrings(strings.Split(inner, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.Trim(strings.TrimSpace(s), `'"`)
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// pickString prefers the top-level value over the extended metadata.
func pickString(doc, docMeta map[string]any, key string) string {
	if s, ok := doc[key].(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	if s, ok := docMeta[key].(string); ok {
		return s
	}
	return ""
}

// pickStrings prefers the top-level list over the extended metadata.
func pickStrings(doc, docMeta map[string]any, key string) []string {
	if items := NormalizeStringList(doc[key]); items != nil {
		return items
	}
	return NormalizeStringList(docMeta[key])
}

// pickInt prefers the top-level number over the extended metadata. Numbers
// may arrive as any numeric type or as a numeric string.
func pickInt(doc, docMeta map[string]any, key string) *int {
	if n, ok := asInt(doc[key]); ok {
		return &n
	}
	if n, ok := asInt(docMeta[key]); ok {
		return &n
	}
	return nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}
