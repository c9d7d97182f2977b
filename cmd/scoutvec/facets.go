// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
)

func newFacetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facets",
		Short: "Count facet values over the documents of a library",
		RunE:  runFacets,
	}
	addLibraryFlag(cmd)
	cmd.Flags().String("filter", "", `JSON filter, e.g. {"year": 2021}`)
	return cmd
}

func runFacets(cmd *cobra.Command, _ []string) error {
	filter, err := parseFilter(cmd)
	if err != nil {
		return err
	}
	return withLibrary(cmd, func(ctx context.Context, app *App, lib *store.Library) error {
		facets, err := app.Repo.AggregateFacets(ctx, lib, filter, nil)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), facets)
	})
}
