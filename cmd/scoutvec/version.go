// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
)

// Build-time variables set via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print scoutvec version and the compiled-in storage backends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "scoutvec %s (commit: %s, built: %s, %s)\n", version, commit, date, runtime.Version()); err != nil {
				return err
			}
			_, err := fmt.Fprintf(out, "backends: %s\n", strings.Join(store.Backends(), ", "))
			return err
		},
	}
}
