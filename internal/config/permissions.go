// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// WarnInsecurePermissions logs a warning when the config file, which may hold
// a DSN with credentials, is group- or world-readable. It never fails.
func WarnInsecurePermissions(logger *slog.Logger, path string) {
	if path == "" {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Debug("could not stat config file for permission check", slog.String("path", path), slog.Any("error", err))
		return
	}

	const (
		groupRead fs.FileMode = 0o040
		otherRead fs.FileMode = 0o004
	)
	if mode := info.Mode(); mode.Perm()&(groupRead|otherRead) != 0 {
		logger.Warn("config file has insecure permissions; storage credentials may be exposed to other users",
			slog.String("path", path),
			slog.String("mode", mode.String()),
			slog.String("recommended", "0600"))
	}
}
