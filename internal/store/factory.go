// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package store

import (
	"sort"
	"sync"

	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

// EngineFactory opens an engine from the storage configuration.
type EngineFactory func(cfg StorageConfig) (Engine, error)

var (
	engineFactories = map[string]EngineFactory{}
	factoriesMu     sync.RWMutex
)

// RegisterBackend registers the factory for a named engine backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, factory EngineFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	engineFactories[name] = factory
}

// Backends lists the registered backend names.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(engineFactories))
	for name := range engineFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveBackend returns the effective backend name, defaulting to "memory".
func resolveBackend(cfg *StorageConfig) string {
	if cfg.Backend == "" {
		return "memory"
	}
	return cfg.Backend
}

// OpenEngine opens the engine selected by cfg.
func OpenEngine(cfg *StorageConfig) (Engine, error) {
	if cfg == nil {
		cfg = &StorageConfig{}
	}
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := engineFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, scouterr.Errorf(scouterr.CodeStoreBackendUnsupported, "unsupported storage backend: %q", backend)
	}

	return factory(*cfg)
}
