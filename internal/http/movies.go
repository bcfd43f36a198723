package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gapmovies/gapmovies/internal/domain"
	"github.com/gapmovies/gapmovies/internal/repository"
	"github.com/gapmovies/gapmovies/internal/score"
	"github.com/gapmovies/gapmovies/internal/tmdb"
	"github.com/gapmovies/gapmovies/internal/validation"
)

const dateLayout = "2006-01-02"

type movieCreateRequest struct {
	Title         string  `json:"title" validate:"required,max=255"`
	OriginalTitle *string `json:"originalTitle" validate:"omitempty,max=255"`
	Overview      string  `json:"overview" validate:"max=10000"`
	ReleaseDate   string  `json:"releaseDate" validate:"omitempty,datetime=2006-01-02"`
	Runtime       *int    `json:"runtime" validate:"omitempty,min=1,max=1000"`
}

type movieListResponse struct {
	Items      []movieResponse `json:"items"`
	NextCursor *string         `json:"nextCursor,omitempty"`
}

type movieResponse struct {
	ID                  string   `json:"id"`
	TMDBID              *int     `json:"tmdbId,omitempty"`
	Title               string   `json:"title"`
	OriginalTitle       string   `json:"originalTitle,omitempty"`
	Overview            string   `json:"overview,omitempty"`
	ReleaseDate         *string  `json:"releaseDate"`
	RegionalReleaseDate *string  `json:"regionalReleaseDate"`
	Runtime             *int     `json:"runtime"`
	PosterPath          string   `json:"posterPath,omitempty"`
	BackdropPath        string   `json:"backdropPath,omitempty"`
	TrailerURL          string   `json:"trailerUrl,omitempty"`
	VoteAverage         float64  `json:"voteAverage"`
	VoteCount           int      `json:"voteCount"`
	Popularity          float64  `json:"popularity"`
	Director            *string  `json:"director"`
	DirectorID          *int64   `json:"directorId"`
	Cast                []string `json:"cast"`
}

type movieDetailResponse struct {
	movieResponse
	Scores scoresResponse `json:"scores"`
}

// scoresResponse mirrors score.Summary; nil aggregates render as null.
type scoresResponse struct {
	Average         *float64 `json:"average"`
	Enthusiast      *float64 `json:"enthusiast"`
	Casual          *float64 `json:"casual"`
	Golden          *float64 `json:"golden"`
	Narrative       *string  `json:"narrative"`
	ReviewCount     int      `json:"reviewCount"`
	EnthusiastCount int      `json:"enthusiastCount"`
	CasualCount     int      `json:"casualCount"`
}

type recommendedMovieResponse struct {
	movieResponse
	ReviewCount int `json:"reviewCount"`
}

type recommendedResponse struct {
	Items        []recommendedMovieResponse `json:"items"`
	Personalized bool                       `json:"personalized"`
}

type importResponse struct {
	Created bool          `json:"created"`
	Movie   movieResponse `json:"movie"`
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	filters, err := buildMovieFilters(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		s.listShowing(w, r, status, filters)
		return
	}

	result, err := s.repo.Movies.List(r.Context(), filters)
	if err != nil {
		s.logger.Error().Err(err).Msg("http: list movies failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list movies")
		return
	}

	s.respondJSON(w, http.StatusOK, movieListResponse{Items: toMovieResponses(result.Items), NextCursor: result.NextCursor})
}

// listShowing answers GET /movies?status=now_playing|coming_soon. The listing
// is a single page, so it cannot be combined with a search or a cursor.
func (s *Server) listShowing(w http.ResponseWriter, r *http.Request, rawStatus string, filters repository.MovieListFilters) {
	status, err := repository.ParseMovieStatus(rawStatus)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid status value")
		return
	}
	if filters.Query != nil || filters.Cursor != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "status cannot be combined with q or cursor")
		return
	}

	movies, err := s.repo.Movies.Showing(r.Context(), status, s.now(), filters.Limit)
	if err != nil {
		s.logger.Error().Err(err).Str("status", rawStatus).Msg("http: list showing movies failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list movies")
		return
	}
	s.respondJSON(w, http.StatusOK, movieListResponse{Items: toMovieResponses(movies)})
}

func (s *Server) handleRecommendedMovies(w http.ResponseWriter, r *http.Request) {
	user, ok := s.actingUser(w, r)
	if !ok {
		return
	}

	recs, err := s.repo.Movies.Recommend(r.Context(), user.ID, 0)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("http: recommend movies failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to recommend movies")
		return
	}

	items := make([]recommendedMovieResponse, 0, len(recs.Items))
	for _, rec := range recs.Items {
		items = append(items, recommendedMovieResponse{
			movieResponse: toMovieResponse(rec.Movie),
			ReviewCount:   rec.ReviewCount,
		})
	}
	s.respondJSON(w, http.StatusOK, recommendedResponse{Items: items, Personalized: recs.Personalized})
}

func buildMovieFilters(query url.Values) (repository.MovieListFilters, error) {
	var filters repository.MovieListFilters

	if q := strings.TrimSpace(query.Get("q")); q != "" {
		filters.Query = &q
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil || limit < 0 {
			return filters, fmt.Errorf("invalid limit value")
		}
		filters.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("cursor")); val != "" {
		cursor, err := repository.DecodeCursor(val)
		if err != nil {
			return filters, fmt.Errorf("invalid cursor")
		}
		filters.Cursor = cursor
	}
	return filters, nil
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	var req movieCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := validation.Struct(req); err != nil {
		s.respondValidation(w, err)
		return
	}

	params := repository.MovieCreateParams{
		Title:    req.Title,
		Overview: strings.TrimSpace(req.Overview),
		Runtime:  req.Runtime,
	}
	if original := normalizeStringPtr(req.OriginalTitle); original != nil {
		params.OriginalTitle = *original
	}
	if req.ReleaseDate != "" {
		// already checked by the datetime rule
		release, _ := time.Parse(dateLayout, req.ReleaseDate)
		params.ReleaseDate = &release
	}

	movie, err := s.repo.Movies.Create(r.Context(), params)
	if err != nil {
		s.logger.Error().Err(err).Msg("http: create movie failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create movie")
		return
	}

	w.Header().Set("Location", "/movies/"+movie.ID)
	s.respondJSON(w, http.StatusCreated, toMovieResponse(movie))
}

func (s *Server) handleImportMovie(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	tmdbID, err := strconv.Atoi(chi.URLParam(r, "tmdbId"))
	if err != nil || tmdbID <= 0 {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid tmdbId parameter")
		return
	}
	if s.importer == nil {
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "TMDb import is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.cfg.TMDBTimeoutSecs)*time.Second)
	defer cancel()

	movie, created, err := s.importer.ImportOne(ctx, tmdbID)
	switch {
	case err == nil:
	case errors.Is(err, tmdb.ErrNotFound):
		s.respondNotFound(w)
		return
	case errors.Is(err, tmdb.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn().Err(err).Int("tmdb_id", tmdbID).Msg("http: tmdb unavailable")
		s.respondError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "TMDb is unavailable")
		return
	default:
		s.logger.Error().Err(err).Int("tmdb_id", tmdbID).Msg("http: import movie failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to import movie")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	w.Header().Set("Location", "/movies/"+movie.ID)
	s.respondJSON(w, status, importResponse{Created: created, Movie: toMovieResponse(movie)})
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "id")
	movie, err := s.repo.Movies.GetByID(r.Context(), movieID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return
		}
		s.logger.Error().Err(err).Str("movie_id", movieID).Msg("http: get movie failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch movie")
		return
	}

	reviews, err := s.repo.Reviews.ListScored(r.Context(), movie.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("movie_id", movieID).Msg("http: load scores failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch movie")
		return
	}

	s.respondJSON(w, http.StatusOK, movieDetailResponse{
		movieResponse: toMovieResponse(movie),
		Scores:        toScoresResponse(score.Summarize(reviews)),
	})
}

func toMovieResponse(movie domain.Movie) movieResponse {
	resp := movieResponse{
		ID:                  movie.ID,
		TMDBID:              movie.TMDBID,
		Title:               movie.Title,
		OriginalTitle:       movie.OriginalTitle,
		Overview:            movie.Overview,
		ReleaseDate:         formatDate(movie.ReleaseDate),
		RegionalReleaseDate: formatDate(movie.RegionalReleaseDate),
		Runtime:             movie.Runtime,
		PosterPath:          movie.PosterPath,
		BackdropPath:        movie.BackdropPath,
		TrailerURL:          movie.TrailerURL,
		VoteAverage:         movie.VoteAverage,
		VoteCount:           movie.VoteCount,
		Popularity:          movie.Popularity,
		Cast:                make([]string, 0, len(movie.Cast)),
	}
	if movie.Director != nil {
		name, id := movie.Director.Name, movie.Director.ID
		resp.Director = &name
		resp.DirectorID = &id
	}
	for _, p := range movie.Cast {
		resp.Cast = append(resp.Cast, p.Name)
	}
	return resp
}

func toMovieResponses(movies []domain.Movie) []movieResponse {
	items := make([]movieResponse, 0, len(movies))
	for _, movie := range movies {
		items = append(items, toMovieResponse(movie))
	}
	return items
}

func toScoresResponse(sum score.Summary) scoresResponse {
	return scoresResponse{
		Average:         sum.Average,
		Enthusiast:      sum.Enthusiast,
		Casual:          sum.Casual,
		Golden:          sum.Golden,
		Narrative:       sum.Narrative,
		ReviewCount:     sum.ReviewCount,
		EnthusiastCount: sum.EnthusiastCount,
		CasualCount:     sum.CasualCount,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}
