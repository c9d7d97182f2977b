// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

// Package mongo implements the storage engine on MongoDB Atlas. Each library
// partition is one collection; similarity indexes are Atlas vectorSearch
// indexes managed through the search index API.
package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

const (
	defaultDatabase = "knowledge"
	connectTimeout  = 10 * time.Second
)

func init() {
	store.RegisterBackend("mongo", func(cfg store.StorageConfig) (store.Engine, error) {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		return Connect(ctx, cfg.DSN, cfg.Database)
	})
}

// Compile-time interface checks.
var (
	_ store.Engine    = (*Engine)(nil)
	_ store.Partition = (*Partition)(nil)
)

// Engine holds one client and database for all partitions.
type Engine struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials the deployment at uri and pings it.
func Connect(ctx context.Context, uri, database string) (*Engine, error) {
	if uri == "" {
		return nil, scouterr.New(scouterr.CodeStoreInvalidInput, "mongo backend requires storage.dsn")
	}
	if database == "" {
		database = defaultDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, scouterr.Errorf(scouterr.CodeStoreDatabaseFailure, "pinging mongo: %w", err)
	}
	return &Engine{client: client, db: client.Database(database)}, nil
}

// OpenPartition returns the collection for the partition. Collections are
// created by the server on first write.
func (e *Engine) OpenPartition(_ context.Context, name string) (store.Partition, error) {
	if name == "" {
		return nil, scouterr.New(scouterr.CodeStoreInvalidInput, "partition name is required")
	}
	return &Partition{name: name, coll: e.db.Collection(name)}, nil
}

// Close disconnects the client.
func (e *Engine) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return e.client.Disconnect(ctx)
}

// Partition is one library collection.
type Partition struct {
	name string
	coll *mongo.Collection
}

// Name returns the collection name.
func (p *Partition) Name() string { return p.name }
