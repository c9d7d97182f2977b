// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/vectorrepo"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect and maintain the similarity index of a library",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the live build status of the similarity index",
		RunE:  runIndexStatus,
	}
	ensure := &cobra.Command{
		Use:   "ensure",
		Short: "Create the field and similarity indexes if they are missing",
		RunE:  runIndexEnsure,
	}
	definition := &cobra.Command{
		Use:   "definition",
		Short: "Print the similarity index definition as JSON",
		RunE:  runIndexDefinition,
	}
	for _, c := range []*cobra.Command{status, ensure, definition} {
		addLibraryFlag(c)
		addDimensionFlag(c)
	}

	cmd.AddCommand(status, ensure, definition)
	return cmd
}

func runIndexStatus(cmd *cobra.Command, _ []string) error {
	dim, _ := cmd.Flags().GetInt("dimension")
	return withLibrary(cmd, func(ctx context.Context, app *App, lib *store.Library) error {
		r, err := app.Repo.IsIndexReady(ctx, lib, dim)
		if err != nil {
			return err
		}
		return printReadiness(cmd, app, lib, r)
	})
}

func runIndexEnsure(cmd *cobra.Command, _ []string) error {
	dim, _ := cmd.Flags().GetInt("dimension")
	return withLibrary(cmd, func(ctx context.Context, app *App, lib *store.Library) error {
		if _, err := app.Repo.ResolvePartitionWithIndexes(ctx, lib, dim); err != nil {
			return err
		}
		r, err := app.Repo.IsIndexReady(ctx, lib, dim)
		if err != nil {
			return err
		}
		return printReadiness(cmd, app, lib, r)
	})
}

func printReadiness(cmd *cobra.Command, app *App, lib *store.Library, r vectorrepo.IndexReadiness) error {
	state := "not ready"
	if r.Ready {
		state = "ready"
	}
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "Index %s in %s: %s (status: %s)\n", app.Repo.IndexName(), lib.Partition, state, r.Status); err != nil {
		return err
	}
	if r.Message != "" {
		_, err := fmt.Fprintln(out, r.Message)
		return err
	}
	return nil
}

func runIndexDefinition(cmd *cobra.Command, _ []string) error {
	dim, _ := cmd.Flags().GetInt("dimension")
	return withLibrary(cmd, func(ctx context.Context, app *App, lib *store.Library) error {
		info, err := app.Repo.GetIndexDefinition(ctx, lib, dim)
		if err != nil {
			return err
		}
		if info == nil {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Index %s does not exist in %s\n", app.Repo.IndexName(), lib.Partition)
			return err
		}
		return printJSON(cmd.OutOrStdout(), info)
	})
}
