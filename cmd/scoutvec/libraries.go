// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/config"
)

func newLibrariesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "libraries",
		Short: "List the libraries of the catalog",
		RunE:  runLibraries,
	}
}

func runLibraries(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("libraries")
	if path == "" {
		path = cfg.LibrariesFile
	}
	catalog, err := config.LoadLibraries(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, id := range catalog.IDs() {
		lib, err := catalog.Library(id)
		if err != nil {
			return err
		}
		facets := make([]string, 0, len(lib.Facets))
		for _, f := range lib.Facets {
			facets = append(facets, fmt.Sprintf("%s:%s", f.MetaKey, f.Type))
		}
		if _, err := fmt.Fprintf(out, "%-20s %-30s %s\n", lib.ID, lib.Partition, strings.Join(facets, ",")); err != nil {
			return err
		}
	}
	return nil
}
