// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package store

// StorageConfig controls which engine the factory opens.
type StorageConfig struct {
	Backend  string // "memory", "sqlite" or "mongo"; empty means "memory".
	DSN      string // File path for sqlite, connection URI for mongo.
	Database string // Database name; only used by mongo.
}
