// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
)

// timeLayout is fixed width so that JSON-extracted timestamps sort correctly
// as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type encodedDoc struct {
	id        string
	sourceID  string
	kind      string
	json      string
	embedding []float32
}

func encodeDoc(doc store.Document) (encodedDoc, error) {
	enc := encodedDoc{id: doc.ID()}
	if enc.id == "" {
		return enc, fmt.Errorf("document without %s", store.FieldID)
	}
	enc.sourceID, _ = doc[store.FieldSourceID].(string)
	enc.kind, _ = doc[store.FieldKind].(string)

	body := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == store.FieldEmbedding {
			emb, ok := asFloat32s(v)
			if !ok {
				return enc, fmt.Errorf("document %s: embedding is not a float vector", enc.id)
			}
			enc.embedding = emb
			continue
		}
		body[k] = encodeValue(v)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return enc, fmt.Errorf("marshalling document %s: %w", enc.id, err)
	}
	enc.json = string(raw)
	return enc, nil
}

func encodeValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return formatTime(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = encodeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = encodeValue(e)
		}
		return out
	default:
		return v
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeDoc(raw string) (store.Document, error) {
	var doc store.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("unmarshalling document: %w", err)
	}
	if s, ok := doc[store.FieldUpsertedAt].(string); ok {
		if t, err := time.Parse(timeLayout, s); err == nil {
			doc[store.FieldUpsertedAt] = t
		}
	}
	return doc, nil
}

func asFloat32s(v any) ([]float32, bool) {
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
			switch n := x.(type) {
			case float64:
				out[i] = float32(n)
			case float32:
				out[i] = n
			case int:
				out[i] = float32(n)
			default:
				return nil, false
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func project(doc store.Document, fields []string) store.Document {
	if len(fields) == 0 {
		return doc
	}
	out := store.Document{store.FieldID: doc[store.FieldID]}
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}
