package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gapmovies/gapmovies/internal/config"
	httpserver "github.com/gapmovies/gapmovies/internal/http"
	"github.com/gapmovies/gapmovies/internal/importer"
	"github.com/gapmovies/gapmovies/internal/logging"
	"github.com/gapmovies/gapmovies/internal/repository"
	"github.com/gapmovies/gapmovies/internal/store"
	"github.com/gapmovies/gapmovies/internal/tmdb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}
	logger := logging.New(logCfg, "server")

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logging.New(logCfg, "store"),
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer st.Close()
	if err := st.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		logger.Fatal().Err(err).Msg("register metrics")
	}

	repo := repository.New(st)

	var imp httpserver.MovieImporter
	if cfg.RequireTMDB() == nil {
		client, err := tmdb.NewFromConfig(cfg, logging.New(logCfg, "tmdb"))
		if err != nil {
			logger.Fatal().Err(err).Msg("init tmdb client")
		}
		imp = importer.New(client, repo.Movies, cfg.TMDBRegion, logging.New(logCfg, "importer"))
	} else {
		logger.Warn().Msg("TMDB_API_KEY not set, movie import endpoint disabled")
	}

	server := httpserver.New(cfg, st, repo, imp, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("server error")
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
}
