// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/vectorrepo"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a similarity search with a precomputed query vector",
		Long:  "Run a similarity search over chunk records, or over document records with --docs. The query vector is passed as a JSON array.",
		RunE:  runSearch,
	}
	addLibraryFlag(cmd)
	addDimensionFlag(cmd)
	cmd.Flags().String("vector", "", "query vector as a JSON array of numbers")
	_ = cmd.MarkFlagRequired("vector")
	cmd.Flags().IntP("top-k", "k", 10, "number of results")
	cmd.Flags().String("filter", "", `JSON filter, e.g. {"sourceId": "doc-42"}`)
	cmd.Flags().Bool("docs", false, "search document records instead of chunks")
	return cmd
}

func runSearch(cmd *cobra.Command, _ []string) error {
	dim, _ := cmd.Flags().GetInt("dimension")
	topK, _ := cmd.Flags().GetInt("top-k")
	docs, _ := cmd.Flags().GetBool("docs")
	raw, _ := cmd.Flags().GetString("vector")

	var vector []float32
	if err := json.Unmarshal([]byte(raw), &vector); err != nil {
		return scouterr.Errorf(scouterr.CodeCLIInputInvalid, "--vector must be a JSON array of numbers: %w", err)
	}
	filter, err := parseFilter(cmd)
	if err != nil {
		return err
	}

	return withLibrary(cmd, func(ctx context.Context, app *App, lib *store.Library) error {
		var (
			results []vectorrepo.QueryResult
			err     error
		)
		if docs {
			results, err = app.Repo.QueryDocuments(ctx, lib, vector, topK, filter, dim)
		} else {
			results, err = app.Repo.QueryVectors(ctx, lib, vector, topK, filter, dim)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), results)
	})
}
