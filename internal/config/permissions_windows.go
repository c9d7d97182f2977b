// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

//go:build windows

package config

import "log/slog"

// WarnInsecurePermissions is a no-op on Windows, which uses ACLs rather than
// mode bits.
func WarnInsecurePermissions(logger *slog.Logger, path string) {
	if path != "" {
		logger.Debug("config permission check not implemented on Windows", slog.String("path", path))
	}
}
