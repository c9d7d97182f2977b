// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root scoutvec command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scoutvec",
		Short:         "Operate the knowledge vector repository",
		Long:          "scoutvec inspects and maintains the per-library vector partitions: similarity index state, facets, document listings and source deletion.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("libraries", "", "path to the library catalog (overrides libraries_file)")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newVersionCmd(),
		newConfigCmd(),
		newLibrariesCmd(),
		newIndexCmd(),
		newFacetsCmd(),
		newDocsCmd(),
		newSearchCmd(),
		newDeleteSourceCmd(),
	)

	return root
}
