// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package config

import (
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

// Config is the process configuration of the vector repository tooling.
type Config struct {
	Storage       StorageConfig `mapstructure:"storage"`
	Index         IndexConfig   `mapstructure:"index"`
	Write         WriteConfig   `mapstructure:"write"`
	Log           LogConfig     `mapstructure:"log"`
	LibrariesFile string        `mapstructure:"libraries_file"`
}

// StorageConfig selects the storage backend and how to reach it.
type StorageConfig struct {
	Backend  string `mapstructure:"backend"`
	DSN      string `mapstructure:"dsn"`
	Database string `mapstructure:"database"`
}

// IndexConfig controls similarity index management.
type IndexConfig struct {
	Name        string        `mapstructure:"name"`
	VerifyDelay time.Duration `mapstructure:"verify_delay"`
	EnsureTTL   time.Duration `mapstructure:"ensure_ttl"`
}

// WriteConfig controls record writes.
type WriteConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// maxBatchSize mirrors the repository's write batch ceiling.
const maxBatchSize = 1000

var (
	validBackends   = []string{"memory", "sqlite", "mongo"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix SCOUT_).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.dsn", "scout.db")
	v.SetDefault("storage.database", "knowledge")
	v.SetDefault("index.name", "vector_search_idx")
	v.SetDefault("index.verify_delay", 2*time.Second)
	v.SetDefault("index.ensure_ttl", 15*time.Minute)
	v.SetDefault("write.batch_size", maxBatchSize)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("libraries_file", "libraries.yaml")

	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, scouterr.Errorf(scouterr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, scouterr.Errorf(scouterr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, scouterr.Join(scouterr.CodeConfigValidateInvalidValue, "validating config", errs...)
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors and returns all of
// them rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateIndex()...)
	errs = append(errs, c.validateWrite()...)
	errs = append(errs, c.validateLog()...)

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	if !slices.Contains(validBackends, c.Storage.Backend) {
		errs = append(errs, invalid("storage.backend must be one of [%s], got %q",
			strings.Join(validBackends, ", "), c.Storage.Backend))
	}
	if c.Storage.Backend != "memory" && strings.TrimSpace(c.Storage.DSN) == "" {
		errs = append(errs, invalid("storage.dsn must not be empty for backend %q", c.Storage.Backend))
	}
	if c.Storage.Backend == "mongo" && strings.TrimSpace(c.Storage.Database) == "" {
		errs = append(errs, invalid("storage.database must not be empty for backend \"mongo\""))
	}

	return errs
}

func (c *Config) validateIndex() []error {
	var errs []error

	if strings.TrimSpace(c.Index.Name) == "" {
		errs = append(errs, invalid("index.name must not be empty"))
	}
	if c.Index.VerifyDelay < 0 {
		errs = append(errs, invalid("index.verify_delay must not be negative, got %s", c.Index.VerifyDelay))
	}
	if c.Index.EnsureTTL < 0 {
		errs = append(errs, invalid("index.ensure_ttl must not be negative, got %s", c.Index.EnsureTTL))
	}

	return errs
}

func (c *Config) validateWrite() []error {
	if c.Write.BatchSize < 1 || c.Write.BatchSize > maxBatchSize {
		return []error{invalid("write.batch_size must be between 1 and %d, got %d", maxBatchSize, c.Write.BatchSize)}
	}
	return nil
}

func (c *Config) validateLog() []error {
	var errs []error

	if !slices.Contains(validLogLevels, c.Log.Level) {
		errs = append(errs, invalid("log.level must be one of [%s], got %q",
			strings.Join(validLogLevels, ", "), c.Log.Level))
	}
	if !slices.Contains(validLogFormats, c.Log.Format) {
		errs = append(errs, invalid("log.format must be one of [%s], got %q",
			strings.Join(validLogFormats, ", "), c.Log.Format))
	}

	return errs
}

func invalid(format string, args ...any) error {
	return scouterr.Errorf(scouterr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}
