// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/config"
	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store"
	_ "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store/memory" // register memory backend
	_ "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store/mongo"  // register mongo backend
	_ "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/store/sqlite" // register sqlite backend
	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/vectorrepo"
	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

// App holds the wired subsystems of one command invocation.
type App struct {
	Config  *config.Config
	Catalog *config.Catalog
	Repo    *vectorrepo.Repository
	Logger  *slog.Logger
}

// WireApp loads configuration and the library catalog, opens the storage
// engine and builds the repository.
func WireApp(cmd *cobra.Command) (*App, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(cmd.ErrOrStderr(), cfg.Log, verbose)
	config.WarnInsecurePermissions(logger, cfgPath)

	libPath, _ := cmd.Flags().GetString("libraries")
	if libPath == "" {
		libPath = cfg.LibrariesFile
	}
	catalog, err := config.LoadLibraries(libPath)
	if err != nil {
		return nil, err
	}

	engine, err := store.OpenEngine(&store.StorageConfig{
		Backend:  cfg.Storage.Backend,
		DSN:      cfg.Storage.DSN,
		Database: cfg.Storage.Database,
	})
	if err != nil {
		return nil, scouterr.Wrapf(err, scouterr.CodeCLISetupFailure, "opening %s storage", cfg.Storage.Backend)
	}

	repo, err := vectorrepo.New(engine,
		vectorrepo.WithIndexName(cfg.Index.Name),
		vectorrepo.WithVerifyDelay(cfg.Index.VerifyDelay),
		vectorrepo.WithEnsureTTL(cfg.Index.EnsureTTL),
		vectorrepo.WithBatchSize(cfg.Write.BatchSize),
		vectorrepo.WithLogger(logger),
	)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	logger.Debug("repository wired",
		slog.String("backend", cfg.Storage.Backend),
		slog.String("index", cfg.Index.Name),
		slog.Int("libraries", len(catalog.IDs())))

	return &App{Config: cfg, Catalog: catalog, Repo: repo, Logger: logger}, nil
}

// Close releases the storage engine.
func (a *App) Close() error {
	return a.Repo.Close()
}

// withLibrary wires the app, resolves the --library flag and runs fn.
func withLibrary(cmd *cobra.Command, fn func(ctx context.Context, app *App, lib *store.Library) error) error {
	app, err := WireApp(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	id, _ := cmd.Flags().GetString("library")
	lib, err := app.Catalog.Library(id)
	if err != nil {
		return err
	}
	return fn(cmd.Context(), app, lib)
}

func newLogger(w io.Writer, cfg config.LogConfig, verbose bool) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// parseFilter decodes the --filter flag, a JSON object of field to value or
// operator object.
func parseFilter(cmd *cobra.Command) (store.Filter, error) {
	raw, _ := cmd.Flags().GetString("filter")
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var filter store.Filter
	if err := json.Unmarshal([]byte(raw), &filter); err != nil {
		return nil, scouterr.Errorf(scouterr.CodeCLIInputInvalid, "--filter must be a JSON object: %w", err)
	}
	return filter, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func addLibraryFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("library", "l", "", "library id from the catalog")
	_ = cmd.MarkFlagRequired("library")
}

func addDimensionFlag(cmd *cobra.Command) {
	cmd.Flags().IntP("dimension", "d", 0, "embedding dimension of the library")
	_ = cmd.MarkFlagRequired("dimension")
}
