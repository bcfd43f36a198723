// Package importer copies movie metadata from TMDb into the catalogue.
package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gapmovies/gapmovies/internal/domain"
	"github.com/gapmovies/gapmovies/internal/metrics"
	"github.com/gapmovies/gapmovies/internal/repository"
	"github.com/gapmovies/gapmovies/internal/tmdb"
)

// MovieStore is the subset of the movies repository the importer writes to.
type MovieStore interface {
	ExistsByTMDBID(ctx context.Context, tmdbID int) (bool, error)
	UpsertFromTMDB(ctx context.Context, params repository.MovieImportParams) (domain.Movie, bool, error)
}

// Stats summarises one ImportPages run.
type Stats struct {
	Imported        int `json:"imported"`
	Skipped         int `json:"skipped"`
	Failed          int `json:"failed"`
	RegionalRelease int `json:"regionalRelease"`
}

// Importer pulls listings and details from TMDb.
type Importer struct {
	client tmdb.Client
	movies MovieStore
	region string
	logger zerolog.Logger
}

// New constructs an Importer. region selects which country's release date is
// stored as the regional release.
func New(client tmdb.Client, movies MovieStore, region string, logger zerolog.Logger) *Importer {
	return &Importer{client: client, movies: movies, region: region, logger: logger}
}

// ImportPages walks the first pages of a category listing and imports every
// movie not yet in the catalogue. Movies that fail are counted and skipped; the
// run only stops early when the context ends or TMDb is unavailable.
func (im *Importer) ImportPages(ctx context.Context, category tmdb.Category, pages int) (Stats, error) {
	var stats Stats
	log := im.logger.With().Str("category", string(category)).Logger()

	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		list, err := im.client.List(ctx, category, page)
		if err != nil {
			if fatal(err) {
				return stats, fmt.Errorf("list %s page %d: %w", category, page, err)
			}
			log.Error().Err(err).Int("page", page).Msg("importer: list page failed")
			continue
		}
		log.Info().Int("page", page).Int("pages", pages).Int("movies", len(list.Results)).Msg("importer: processing page")

		for _, listed := range list.Results {
			exists, err := im.movies.ExistsByTMDBID(ctx, listed.ID)
			if err != nil {
				return stats, err
			}
			if exists {
				stats.Skipped++
				metrics.ImportedMovies.WithLabelValues("skipped").Inc()
				continue
			}

			_, _, regional, err := im.importMovie(ctx, listed.ID)
			if err != nil {
				if fatal(err) {
					return stats, err
				}
				stats.Failed++
				metrics.ImportedMovies.WithLabelValues("failed").Inc()
				log.Warn().Err(err).Int("tmdb_id", listed.ID).Msg("importer: movie failed")
				continue
			}
			stats.Imported++
			if regional {
				stats.RegionalRelease++
			}
			metrics.ImportedMovies.WithLabelValues("imported").Inc()
		}

		if list.TotalPages > 0 && page >= list.TotalPages {
			break
		}
	}

	log.Info().
		Int("imported", stats.Imported).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Int("regional_release", stats.RegionalRelease).
		Msg("importer: finished")
	return stats, nil
}

// ImportOne fetches a single movie and creates or refreshes it.
func (im *Importer) ImportOne(ctx context.Context, tmdbID int) (domain.Movie, bool, error) {
	movie, created, _, err := im.importMovie(ctx, tmdbID)
	if err != nil {
		metrics.ImportedMovies.WithLabelValues("failed").Inc()
		return domain.Movie{}, false, err
	}
	if created {
		metrics.ImportedMovies.WithLabelValues("imported").Inc()
	} else {
		metrics.ImportedMovies.WithLabelValues("updated").Inc()
	}
	im.logger.Info().Int("tmdb_id", tmdbID).Bool("created", created).Str("movie_id", movie.ID).Msg("importer: movie imported")
	return movie, created, nil
}

func (im *Importer) importMovie(ctx context.Context, tmdbID int) (domain.Movie, bool, bool, error) {
	details, err := im.client.Movie(ctx, tmdbID)
	if err != nil {
		return domain.Movie{}, false, false, fmt.Errorf("fetch tmdb movie %d: %w", tmdbID, err)
	}
	params, regional := Params(details, im.region)
	movie, created, err := im.movies.UpsertFromTMDB(ctx, params)
	if err != nil {
		return domain.Movie{}, false, false, fmt.Errorf("store tmdb movie %d: %w", tmdbID, err)
	}
	return movie, created, regional, nil
}

// Params maps TMDb details onto repository import parameters and reports
// whether a regional release date was found.
func Params(details *tmdb.MovieDetails, region string) (repository.MovieImportParams, bool) {
	regional := details.RegionalRelease(region)
	release := details.Release()
	found := regional != nil
	if regional == nil {
		regional = release
	}
	return repository.MovieImportParams{
		TMDBID:              details.ID,
		Title:               details.Title,
		OriginalTitle:       details.OriginalTitle,
		Overview:            details.Overview,
		ReleaseDate:         release,
		RegionalReleaseDate: regional,
		Runtime:             details.Runtime,
		PosterPath:          details.Poster(),
		BackdropPath:        details.Backdrop(),
		TrailerURL:          details.TrailerURL(),
		VoteAverage:         details.VoteAverage,
		VoteCount:           details.VoteCount,
		Popularity:          details.Popularity,
		Director:            details.Director(),
		Cast:                details.TopCast(repository.MaxCastMembers),
	}, found
}

func fatal(err error) bool {
	return errors.Is(err, tmdb.ErrUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
