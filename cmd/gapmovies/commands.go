package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gapmovies/gapmovies/internal/config"
	"github.com/gapmovies/gapmovies/internal/importer"
	"github.com/gapmovies/gapmovies/internal/logging"
	"github.com/gapmovies/gapmovies/internal/repository"
	"github.com/gapmovies/gapmovies/internal/store"
	"github.com/gapmovies/gapmovies/internal/tmdb"
)

// env bundles what every subcommand needs once configuration is loaded.
type env struct {
	cfg    config.Config
	logCfg logging.Config
	logger zerolog.Logger
	store  *store.Store
}

func openEnv(ctx context.Context, cmd *cobra.Command, component string) (*env, error) {
	cfg, err := config.LoadCLI()
	if err != nil {
		return nil, err
	}
	logCfg := logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cmd.ErrOrStderr()}

	dbCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.DBConnTimeoutSecs)*time.Second)
	defer cancel()
	st, err := store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logging.New(logCfg, "store"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &env{cfg: cfg, logCfg: logCfg, logger: logging.New(logCfg, component), store: st}, nil
}

func (e *env) newImporter() (*importer.Importer, error) {
	if err := e.cfg.RequireTMDB(); err != nil {
		return nil, err
	}
	client, err := tmdb.NewFromConfig(e.cfg, logging.New(e.logCfg, "tmdb"))
	if err != nil {
		return nil, err
	}
	repo := repository.New(e.store)
	return importer.New(client, repo.Movies, e.cfg.TMDBRegion, e.logger), nil
}

func newMigrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context(), cmd, "migrate")
			if err != nil {
				return err
			}
			defer e.store.Close()

			applied, err := e.store.Migrate(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "db/migrations", "directory holding *.up.sql files")
	return cmd
}

func newImportCmd() *cobra.Command {
	var (
		category string
		pages    int
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import movies from a TMDb category listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := tmdb.ParseCategory(category)
			if err != nil {
				return err
			}
			if pages < 1 {
				return fmt.Errorf("--pages must be at least 1")
			}

			e, err := openEnv(cmd.Context(), cmd, "import")
			if err != nil {
				return err
			}
			defer e.store.Close()
			im, err := e.newImporter()
			if err != nil {
				return err
			}

			stats, err := im.ImportPages(cmd.Context(), cat, pages)
			if encErr := writeJSON(cmd, stats); encErr != nil && err == nil {
				err = encErr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&category, "category", string(tmdb.CategoryPopular), "popular, top_rated, now_playing or upcoming")
	cmd.Flags().IntVar(&pages, "pages", 10, "number of listing pages to walk (20 movies per page)")
	return cmd
}

func newImportMovieCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-movie <tmdb-id>",
		Short: "Import or refresh a single movie by TMDb id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmdbID, err := strconv.Atoi(args[0])
			if err != nil || tmdbID <= 0 {
				return fmt.Errorf("invalid tmdb id %q", args[0])
			}

			e, err := openEnv(cmd.Context(), cmd, "import")
			if err != nil {
				return err
			}
			defer e.store.Close()
			im, err := e.newImporter()
			if err != nil {
				return err
			}

			movie, created, err := im.ImportOne(cmd.Context(), tmdbID)
			if err != nil {
				return err
			}
			return writeJSON(cmd, map[string]interface{}{
				"created": created,
				"id":      movie.ID,
				"title":   movie.Title,
			})
		},
	}
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
