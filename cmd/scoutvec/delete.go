// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
)

func newDeleteSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-source",
		Short: "Delete every record of a source: chunks, chapter summaries and the document record",
		RunE:  runDeleteSource,
	}
	addLibraryFlag(cmd)
	cmd.Flags().String("source", "", "source id")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func runDeleteSource(cmd *cobra.Command, _ []string) error {
	sourceID, _ := cmd.Flags().GetString("source")
	return withLibrary(cmd, func(ctx context.Context, app *App, lib *store.Library) error {
		n, err := app.Repo.DeleteBySourceID(ctx, lib, sourceID)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d records of source %s from %s\n", n, sourceID, lib.Partition)
		return err
	})
}
