// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

//go:embed scoutvec.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/scoutvec/scoutvec.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", scouterr.Errorf(scouterr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "scoutvec", "scoutvec.yaml"), nil
}

// WriteDefaultConfig writes the commented default config to path unless a
// file already exists there. It reports whether a file was written.
func WriteDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return false, scouterr.Errorf(scouterr.CodeConfigLoadReadFailure, "creating config directory %s: %w", dir, err)
	}
	// The DSN may carry credentials.
	if err := os.WriteFile(path, DefaultConfigYAML, 0o600); err != nil {
		return false, scouterr.Errorf(scouterr.CodeConfigLoadReadFailure, "writing config %s: %w", path, err)
	}

	slog.Info("created default config", slog.String("path", path))
	return true, nil
}
