// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package memory

import "math"

// cosineSimilarity returns the cosine similarity of a and b in [-1, 1].
// Mismatched or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// similarityScore maps cosine similarity onto [0, 1] the way Atlas reports
// vectorSearchScore.
func similarityScore(a, b []float32) float64 {
	return (1 + cosineSimilarity(a, b)) / 2
}

func toFloat32s(v any) ([]float32, bool) {
	switch e := v.(type) {
	case []float32:
		return e, true
	case []float64:
		out := make([]float32, len(e))
		for i, x := range e {
			out[i] = float32(x)
		}
		return out, true
	case []any:
		out := make([]float32, len(e))
		for i, x := range e {
			f, ok := toFloat(x)
			if !ok {
				return nil, false
			}
			out[i] = float32(f)
		}
		return out, true
	default:
		return nil, false
	}
}
