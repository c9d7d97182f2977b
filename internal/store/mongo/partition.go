// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package mongo

import (
	"context"
	"errors"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

// ListSearchIndexes lists vectorSearch indexes of the collection. Deployments
// without Atlas Search report store.ErrIntrospectionUnsupported.
func (p *Partition) ListSearchIndexes(ctx context.Context, name string) ([]store.IndexInfo, error) {
	var searchOpts *options.SearchIndexesOptions
	if name != "" {
		searchOpts = options.SearchIndexes().SetName(name)
	}
	cur, err := p.coll.SearchIndexes().List(ctx, searchOpts)
	if err != nil {
		if introspectionUnsupported(err) {
			return nil, store.ErrIntrospectionUnsupported
		}
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "listing search indexes: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []store.IndexInfo
	for cur.Next(ctx) {
		var raw searchIndexDoc
		if err := cur.Decode(&raw); err != nil {
			return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "decoding search index: %w", err)
		}
		out = append(out, raw.info())
	}
	if err := cur.Err(); err != nil {
		if introspectionUnsupported(err) {
			return nil, store.ErrIntrospectionUnsupported
		}
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "iterating search indexes: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateSearchIndex requests an Atlas vectorSearch index. Atlas builds it
// asynchronously; callers poll ListSearchIndexes for readiness.
func (p *Partition) CreateSearchIndex(ctx context.Context, def store.IndexDefinition) error {
	model := mongo.SearchIndexModel{
		Definition: IndexDefinitionDocument(def),
		Options:    options.SearchIndexes().SetName(def.Name).SetType("vectorSearch"),
	}
	if _, err := p.coll.SearchIndexes().CreateOne(ctx, model); err != nil {
		return mapError(err, def.Name)
	}
	return nil
}

// EnsureFieldIndexes creates regular B-tree indexes. Existing indexes with the
// same keys are left untouched by the server.
func (p *Partition) EnsureFieldIndexes(ctx context.Context, indexes []store.FieldIndex) error {
	if len(indexes) == 0 {
		return nil
	}
	models := make([]mongo.IndexModel, 0, len(indexes))
	for _, idx := range indexes {
		keys := bson.D{}
		for _, f := range idx.Fields {
			keys = append(keys, bson.E{Key: f, Value: 1})
		}
		models = append(models, mongo.IndexModel{Keys: keys, Options: options.Index().SetName(idx.Name)})
	}
	if _, err := p.coll.Indexes().CreateMany(ctx, models); err != nil {
		return scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "creating field indexes: %w", err)
	}
	return nil
}

// VectorSearch runs a $vectorSearch aggregation.
func (p *Partition) VectorSearch(ctx context.Context, req store.VectorSearchRequest) ([]store.SearchHit, error) {
	cur, err := p.coll.Aggregate(ctx, VectorSearchPipeline(req))
	if err != nil {
		return nil, mapError(err, req.Index)
	}
	defer func() { _ = cur.Close(ctx) }()

	var hits []store.SearchHit
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "decoding search hit: %w", err)
		}
		doc := NormalizeDocument(raw)
		score, _ := doc[store.FieldScore].(float64)
		delete(doc, store.FieldScore)
		hits = append(hits, store.SearchHit{Score: score, Doc: doc})
	}
	if err := cur.Err(); err != nil {
		return nil, mapError(err, req.Index)
	}
	return hits, nil
}

// FindOneWithEmbedding samples a document whose vector at path has the given
// number of dimensions.
func (p *Partition) FindOneWithEmbedding(ctx context.Context, path string, dimension int) (store.Document, error) {
	filter := bson.D{
		{Key: path, Value: bson.D{{Key: "$exists", Value: true}}},
		{Key: "$expr", Value: bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "$isArray", Value: "$" + path}},
			bson.D{{Key: "$eq", Value: bson.A{bson.D{{Key: "$size", Value: "$" + path}}, dimension}}},
		}}}},
	}
	var raw bson.M
	err := p.coll.FindOne(ctx, filter).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "sampling embedding: %w", err)
	}
	doc := NormalizeDocument(raw)
	doc[path] = embeddingOf(doc[path])
	return doc, nil
}

// Find lists matching documents.
func (p *Partition) Find(ctx context.Context, filter store.NativeFilter, opts store.FindOptions) ([]store.Document, error) {
	findOpts := options.Find().
		SetSort(SortDocument(opts.Sort)).
		SetProjection(projectionDocument(opts.Project))
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(int64(opts.Skip))
	}

	cur, err := p.coll.Find(ctx, FilterDocument(filter), findOpts)
	if err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "finding documents: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var docs []store.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "decoding document: %w", err)
		}
		docs = append(docs, NormalizeDocument(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "iterating documents: %w", err)
	}
	return docs, nil
}

// Count returns the number of matching documents.
func (p *Partition) Count(ctx context.Context, filter store.NativeFilter) (int, error) {
	n, err := p.coll.CountDocuments(ctx, FilterDocument(filter))
	if err != nil {
		return 0, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "counting documents: %w", err)
	}
	return int(n), nil
}

// FacetCounts aggregates value counts at field.
func (p *Partition) FacetCounts(ctx context.Context, filter store.NativeFilter, field string, unwind bool) ([]store.FacetBucket, error) {
	cur, err := p.coll.Aggregate(ctx, FacetPipeline(filter, field, unwind))
	if err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "aggregating facet %s: %w", field, err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var buckets []store.FacetBucket
	for cur.Next(ctx) {
		var raw struct {
			Value any `bson:"_id"`
			Count int `bson:"count"`
		}
		if err := cur.Decode(&raw); err != nil {
			return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "decoding facet bucket: %w", err)
		}
		buckets = append(buckets, store.FacetBucket{Value: normalizeValue(raw.Value), Count: raw.Count})
	}
	if err := cur.Err(); err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "iterating facet buckets: %w", err)
	}
	return buckets, nil
}

// UpsertMany replaces documents by _id in one unordered bulk write.
func (p *Partition) UpsertMany(ctx context.Context, docs []store.Document) error {
	if len(docs) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		id := doc.ID()
		if id == "" {
			return scouterr.Errorf(scouterr.CodeStoreInvalidInput, "document without %s", store.FieldID)
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: store.FieldID, Value: id}}).
			SetReplacement(bson.M(doc)).
			SetUpsert(true))
	}
	if _, err := p.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "bulk upserting %d documents: %w", len(docs), mapError(err, ""))
	}
	return nil
}

// DeleteMany removes every matching document.
func (p *Partition) DeleteMany(ctx context.Context, filter store.NativeFilter) (int, error) {
	res, err := p.coll.DeleteMany(ctx, FilterDocument(filter))
	if err != nil {
		return 0, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "deleting documents: %w", err)
	}
	return int(res.DeletedCount), nil
}
