package tmdb

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/gapmovies/gapmovies/internal/config"
)

// NewFromConfig builds an HTTPClient from the service configuration.
func NewFromConfig(cfg config.Config, logger zerolog.Logger) (*HTTPClient, error) {
	return NewHTTPClient(cfg.TMDBURL, Options{
		APIKey:         cfg.TMDBAPIKey,
		Language:       cfg.TMDBLanguage,
		Region:         cfg.TMDBRegion,
		Timeout:        time.Duration(cfg.TMDBTimeoutSecs) * time.Second,
		RequestsPerSec: cfg.TMDBRequestsPerS,
		Logger:         logger,
	})
}
