package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gapmovies/gapmovies/internal/config"
	"github.com/gapmovies/gapmovies/internal/domain"
	"github.com/gapmovies/gapmovies/internal/repository"
	"github.com/gapmovies/gapmovies/internal/store"
)

// MovieImporter imports a single TMDb movie on demand.
type MovieImporter interface {
	ImportOne(ctx context.Context, tmdbID int) (domain.Movie, bool, error)
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg      config.Config
	store    *store.Store
	repo     *repository.Repository
	importer MovieImporter
	logger   zerolog.Logger
	router   chi.Router
	httpSrv  *http.Server
	now      func() time.Time
}

// New constructs the HTTP server with base middleware and routes. importer may
// be nil, in which case the import endpoint answers 503.
func New(cfg config.Config, st *store.Store, repo *repository.Repository, importer MovieImporter, logger zerolog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:      cfg,
		store:    st,
		repo:     repo,
		importer: importer,
		logger:   logger,
		router:   r,
		now:      time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	limit := s.writeLimiter()

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/users", func(r chi.Router) {
		r.With(limit).Post("/", s.handleCreateUser)
		r.With(limit).Patch("/{id}", s.handleUpdateUser)
		r.Get("/{id}/reviews", s.handleUserReviews)
	})
	s.router.Get("/people/{id}/movies", s.handlePersonMovies)
	s.router.Route("/movies", func(r chi.Router) {
		r.Get("/", s.handleListMovies)
		r.Get("/recommended", s.handleRecommendedMovies)
		r.With(limit).Post("/", s.handleCreateMovie)
		r.With(limit).Post("/import/{tmdbId}", s.handleImportMovie)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetMovie)
			r.Get("/reviews", s.handleListReviews)
			r.With(limit).Put("/reviews", s.handlePutReview)
			r.With(limit).Delete("/reviews", s.handleDeleteReview)
		})
	})
}

// writeLimiter throttles mutating routes per client IP and acting user.
func (s *Server) writeLimiter() func(http.Handler) http.Handler {
	if s.cfg.RateLimitRequests <= 0 || s.cfg.RateLimitWindowS <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		s.cfg.RateLimitRequests,
		time.Duration(s.cfg.RateLimitWindowS)*time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP, keyByUser),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			s.respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
		}),
	)
}

func keyByUser(r *http.Request) (string, error) {
	return r.Header.Get(userHeader), nil
}

// Start boots the HTTP server and blocks until ctx ends or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpSrv.Addr).Msg("http: listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.store == nil {
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Database not configured")
		return
	}
	if err := s.store.HealthCheck(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("http: health check failed")
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Database unreachable")
		return
	}
	resp := map[string]interface{}{"status": "ok"}
	if stat, ok := s.store.PoolStats(); ok {
		resp["db"] = map[string]int32{
			"totalConns":    stat.TotalConns,
			"idleConns":     stat.IdleConns,
			"acquiredConns": stat.AcquiredConns,
			"maxConns":      stat.MaxConns,
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}
