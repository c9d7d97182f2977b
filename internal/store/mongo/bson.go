// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package mongo

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
)

// FilterDocument renders a native filter as a query document. Fields and
// operators are emitted in sorted order so equal filters render equally.
func FilterDocument(filter store.NativeFilter) bson.D {
	doc := bson.D{}
	for _, field := range filter.Fields() {
		pred := bson.D{}
		for _, op := range filter[field].Operators() {
			pred = append(pred, bson.E{Key: string(op), Value: bsonValue(op, filter[field][op])})
		}
		doc = append(doc, bson.E{Key: field, Value: pred})
	}
	return doc
}

func bsonValue(op store.Operator, v any) any {
	if op == store.OpIn || op == store.OpNin {
		if list, ok := store.AsSlice(v); ok {
			out := make(bson.A, len(list))
			for i, e := range list {
				out[i] = scalarValue(e)
			}
			return out
		}
	}
	return scalarValue(v)
}

func scalarValue(v any) any {
	if k, ok := v.(store.Kind); ok {
		return string(k)
	}
	return v
}

// IndexDefinitionDocument renders a similarity index definition for the
// Atlas vectorSearch index type. Atlas filter fields match any element of an
// array, so token fields are declared as filter fields.
func IndexDefinitionDocument(def store.IndexDefinition) bson.D {
	fields := make(bson.A, 0, len(def.Fields))
	for _, f := range def.Fields {
		switch f.Type {
		case store.IndexFieldVector:
			fields = append(fields, bson.D{
				{Key: "type", Value: "vector"},
				{Key: "path", Value: f.Path},
				{Key: "numDimensions", Value: f.NumDimensions},
				{Key: "similarity", Value: f.Similarity},
			})
		default:
			fields = append(fields, bson.D{
				{Key: "type", Value: "filter"},
				{Key: "path", Value: f.Path},
			})
		}
	}
	return bson.D{{Key: "fields", Value: fields}}
}

// VectorSearchPipeline builds the $vectorSearch aggregation for req. The
// similarity score is added as store.FieldScore.
func VectorSearchPipeline(req store.VectorSearchRequest) mongo.Pipeline {
	limit := max(req.Limit, 1)
	candidates := max(req.NumCandidates, limit)

	stage := bson.D{
		{Key: "index", Value: req.Index},
		{Key: "path", Value: req.Path},
		{Key: "queryVector", Value: req.Vector},
		{Key: "numCandidates", Value: candidates},
		{Key: "limit", Value: limit},
	}
	if len(req.Filter) > 0 {
		stage = append(stage, bson.E{Key: "filter", Value: FilterDocument(req.Filter)})
	}

	return mongo.Pipeline{
		{{Key: "$vectorSearch", Value: stage}},
		{{Key: "$addFields", Value: bson.D{{Key: store.FieldScore, Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}}}}},
		{{Key: "$project", Value: projectionDocument(req.Project, store.FieldScore)}},
	}
}

// FacetPipeline groups the values at field over documents matching filter,
// skipping null and missing values, sorted by value ascending.
func FacetPipeline(filter store.NativeFilter, field string, unwind bool) mongo.Pipeline {
	pipe := mongo.Pipeline{
		{{Key: "$match", Value: FilterDocument(filter)}},
	}
	if unwind {
		pipe = append(pipe, bson.D{{Key: "$unwind", Value: "$" + field}})
	}
	pipe = append(pipe,
		bson.D{{Key: "$match", Value: bson.D{{Key: field, Value: bson.D{{Key: "$ne", Value: nil}}}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + field},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	)
	return pipe
}

// SortDocument renders sort fields, falling back to _id for stable paging.
func SortDocument(sorts []store.SortField) bson.D {
	doc := bson.D{}
	for _, s := range sorts {
		dir := 1
		if s.Desc {
			dir = -1
		}
		doc = append(doc, bson.E{Key: s.Field, Value: dir})
	}
	return append(doc, bson.E{Key: store.FieldID, Value: 1})
}

// projectionDocument includes fields (plus extra) or, when fields is empty,
// excludes only the embedding.
func projectionDocument(fields []string, extra ...string) bson.D {
	if len(fields) == 0 {
		return bson.D{{Key: store.FieldEmbedding, Value: 0}}
	}
	doc := bson.D{}
	for _, f := range append(append([]string(nil), fields...), extra...) {
		doc = append(doc, bson.E{Key: f, Value: 1})
	}
	return doc
}

// NormalizeDocument converts decoded BSON into plain Go values: dates become
// UTC time.Time, arrays []any, embedded documents map[string]any.
func NormalizeDocument(raw bson.M) store.Document {
	doc := make(store.Document, len(raw))
	for k, v := range raw {
		doc[k] = normalizeValue(v)
	}
	return doc
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case primitive.DateTime:
		return x.Time().UTC()
	case time.Time:
		return x.UTC()
	case primitive.ObjectID:
		return x.Hex()
	case int32:
		return int(x)
	case primitive.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	case bson.M:
		return map[string]any(NormalizeDocument(x))
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	default:
		return v
	}
}

func embeddingOf(v any) []float32 {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(list))
	for _, e := range list {
		switch n := e.(type) {
		case float64:
			out = append(out, float32(n))
		case float32:
			out = append(out, n)
		case int:
			out = append(out, float32(n))
		case int64:
			out = append(out, float32(n))
		default:
			return nil
		}
	}
	return out
}

type searchIndexDoc struct {
	ID               string `bson:"id"`
	Name             string `bson:"name"`
	Status           string `bson:"status"`
	Queryable        bool   `bson:"queryable"`
	LatestDefinition struct {
		Fields []struct {
			Type          string `bson:"type"`
			Path          string `bson:"path"`
			NumDimensions int    `bson:"numDimensions"`
			Similarity    string `bson:"similarity"`
		} `bson:"fields"`
	} `bson:"latestDefinition"`
	StatusDetail []struct {
		Status  string `bson:"status"`
		Message string `bson:"message"`
	} `bson:"statusDetail"`
}

func (d searchIndexDoc) info() store.IndexInfo {
	info := store.IndexInfo{
		ID:         d.ID,
		Name:       d.Name,
		Status:     store.NormalizeIndexStatus(d.Status),
		Queryable:  d.Queryable,
		Definition: store.IndexDefinition{Name: d.Name},
	}
	for _, f := range d.LatestDefinition.Fields {
		info.Definition.Fields = append(info.Definition.Fields, store.IndexField{
			Type:          store.IndexFieldType(f.Type),
			Path:          f.Path,
			NumDimensions: f.NumDimensions,
			Similarity:    f.Similarity,
		})
	}
	for _, sd := range d.StatusDetail {
		if sd.Message != "" {
			info.Message = sd.Message
			break
		}
	}
	return info
}

// Server error codes the engine classifies.
const (
	codeIndexNotFound       = 27
	codeIndexAlreadyExists  = 68
	codeCommandNotFound     = 59
	codeCommandNotSupported = 115
	codeSearchNotEnabled    = 31082
	codeUnknownStage        = 40324
)

// mapError converts server errors into classified engine errors.
func mapError(err error, name string) error {
	var ce mongo.CommandError
	if !errors.As(err, &ce) {
		return err
	}
	switch ce.Code {
	case codeIndexAlreadyExists:
		return &store.EngineError{Code: store.EngineCodeAlreadyExists, Message: "duplicate index: " + name, Err: err}
	case codeIndexNotFound:
		return &store.EngineError{Code: store.EngineCodeIndexNotFound, Message: "index not found: " + name, Err: err}
	}
	if field, ok := store.ParseTokenIndexError(err); ok {
		return &store.EngineError{Code: store.EngineCodeTokenIndexMissing, Path: field, Message: ce.Message, Err: err}
	}
	return err
}

// introspectionUnsupported reports whether a listSearchIndexes failure means
// the deployment has no search support (self-managed or local servers).
func introspectionUnsupported(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case codeCommandNotFound, codeCommandNotSupported, codeSearchNotEnabled, codeUnknownStage:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "$listsearchindexes") || strings.Contains(msg, "search index commands")
}
