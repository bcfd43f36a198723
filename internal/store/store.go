package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/gapmovies/gapmovies/internal/metrics"
)

// ErrClosed is returned by operations on a store without a live pool.
var ErrClosed = errors.New("store: not initialized")

// Options controls connection-pool behaviour. Zero values keep pgx defaults.
type Options struct {
	MaxConns               int32
	MinConns               int32
	MaxConnIdleTime        time.Duration
	MaxConnLifetime        time.Duration
	ConnTimeout            time.Duration
	StatementCacheCapacity int
	Logger                 zerolog.Logger
}

// Store owns the Postgres pool shared by the repositories, migrations and
// health checks.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
	opts   Options
}

// New opens a pool for dbURL and pings it before returning.
func New(ctx context.Context, dbURL string, opts Options) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}
	opts.apply(cfg)

	opts.Logger.Info().
		Str("host", cfg.ConnConfig.Host).
		Str("database", cfg.ConnConfig.Database).
		Int32("max_conns", cfg.MaxConns).
		Int32("min_conns", cfg.MinConns).
		Int("stmt_cache", opts.StatementCacheCapacity).
		Msg("store: opening connection pool")

	connCtx, cancel := opts.withConnTimeout(ctx)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	opts.Logger.Info().Msg("store: database connection established")
	return &Store{pool: pool, logger: opts.Logger, opts: opts}, nil
}

func (o Options) apply(cfg *pgxpool.Config) {
	if o.MaxConns > 0 {
		cfg.MaxConns = o.MaxConns
	}
	if o.MinConns > 0 {
		cfg.MinConns = o.MinConns
	}
	if o.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = o.MaxConnIdleTime
	}
	if o.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = o.MaxConnLifetime
	}
	if o.StatementCacheCapacity >= 0 {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
		cfg.ConnConfig.StatementCacheCapacity = o.StatementCacheCapacity
	}
}

func (o Options) withConnTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.ConnTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.ConnTimeout)
}

// Close releases database resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.logger.Info().Msg("store: closing connection pool")
	s.pool.Close()
}

// HealthCheck pings the database within the configured connect timeout.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return ErrClosed
	}
	checkCtx, cancel := s.opts.withConnTimeout(ctx)
	defer cancel()
	return s.pool.Ping(checkCtx)
}

// Pool exposes the underlying pgx pool for repositories.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// PoolStats snapshots the connection pool. It reports false without a pool.
func (s *Store) PoolStats() (metrics.DBPoolStats, bool) {
	if s == nil || s.pool == nil {
		return metrics.DBPoolStats{}, false
	}
	st := s.pool.Stat()
	return metrics.DBPoolStats{
		TotalConns:      st.TotalConns(),
		IdleConns:       st.IdleConns(),
		AcquiredConns:   st.AcquiredConns(),
		MaxConns:        st.MaxConns(),
		AcquireCount:    st.AcquireCount(),
		AcquireDuration: st.AcquireDuration(),
	}, true
}

// RegisterMetrics exports the pool statistics through reg.
func (s *Store) RegisterMetrics(reg prometheus.Registerer) error {
	if err := reg.Register(metrics.NewDBPoolCollector(s.PoolStats)); err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}
	return nil
}
