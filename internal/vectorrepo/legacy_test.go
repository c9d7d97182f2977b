// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package vectorrepo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/vectorrepo"
)

func TestNormalizeStringList(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"nil", nil, nil},
		{"string slice", []string{"a.png", " b.png "}, []string{"a.png", "b.png"}},
		{"any slice", []any{"a.png", 3, "b.png"}, []string{"a.png", "b.png"}},
		{"single string", "a.png", []string{"a.png"}},
		{"blank string", "   ", nil},
		{"json list", `["a.png","b.png"]`, []string{"a.png", "b.png"}},
		{"single quoted list", `['a.png', 'b.png']`, []string{"a.png", "b.png"}},
		{"bare list", `[a.png, b.png]`, []string{"a.png", "b.png"}},
		{"empty list", `[]`, nil},
		{"empty entries dropped", []any{"", "  ", "x"}, []string{"x"}},
		{"unsupported type", 42, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, vectorrepo.NormalizeStringList(tt.in))
		})
	}
}
