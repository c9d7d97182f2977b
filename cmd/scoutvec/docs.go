// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/vectorrepo"
)

func newDocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "List and read the documents of a library",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List documents page by page, newest first",
		RunE:  runDocsList,
	}
	addLibraryFlag(list)
	list.Flags().String("filter", "", `JSON filter, e.g. {"tags": ["energy"]}`)
	list.Flags().Int("limit", vectorrepo.DefaultPageSize, "page size")
	list.Flags().Int("skip", 0, "number of documents to skip")
	list.Flags().String("sort", "", "sort field; prefix with - for descending, e.g. -year")

	get := &cobra.Command{
		Use:   "get",
		Short: "Show one document by source id",
		RunE:  runDocsGet,
	}
	addLibraryFlag(get)
	get.Flags().String("source", "", "source id")
	_ = get.MarkFlagRequired("source")

	cmd.AddCommand(list, get)
	return cmd
}

func runDocsList(cmd *cobra.Command, _ []string) error {
	filter, err := parseFilter(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	skip, _ := cmd.Flags().GetInt("skip")
	sortFlag, _ := cmd.Flags().GetString("sort")

	opts := vectorrepo.FindOptions{Limit: limit, Skip: skip}
	if field := strings.TrimSpace(sortFlag); field != "" {
		desc := strings.HasPrefix(field, "-")
		opts.Sort = []store.SortField{{Field: strings.TrimPrefix(field, "-"), Desc: desc}}
	}

	return withLibrary(cmd, func(ctx context.Context, app *App, lib *store.Library) error {
		page, err := app.Repo.FindDocs(ctx, lib, filter, opts)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), page)
	})
}

func runDocsGet(cmd *cobra.Command, _ []string) error {
	sourceID, _ := cmd.Flags().GetString("source")
	return withLibrary(cmd, func(ctx context.Context, app *App, lib *store.Library) error {
		doc, err := app.Repo.GetDocBySourceID(ctx, lib, sourceID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), doc)
	})
}
