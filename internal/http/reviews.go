package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gapmovies/gapmovies/internal/domain"
	"github.com/gapmovies/gapmovies/internal/metrics"
	"github.com/gapmovies/gapmovies/internal/repository"
	"github.com/gapmovies/gapmovies/internal/score"
	"github.com/gapmovies/gapmovies/internal/validation"
)

type reviewRequest struct {
	Expectation  *int   `json:"expectation" validate:"omitempty,min=0,max=100"`
	Satisfaction *int   `json:"satisfaction" validate:"omitempty,min=0,max=100"`
	Text         string `json:"text" validate:"required,max=5000"`
}

type reviewResponse struct {
	MovieID      string    `json:"movieId"`
	MovieTitle   string    `json:"movieTitle,omitempty"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Enthusiast   bool      `json:"enthusiast"`
	Expectation  int       `json:"expectation"`
	Satisfaction *int      `json:"satisfaction"`
	Text         string    `json:"text"`
	Gap          *int      `json:"gap"`
	Reflected    float64   `json:"reflected"`
	Golden       *float64  `json:"golden"`
	Badge        *string   `json:"badge"`
	Tone         string    `json:"tone"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type reviewListResponse struct {
	Items []reviewResponse `json:"items"`
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "id")
	if !s.movieExists(w, r, movieID) {
		return
	}

	reviews, err := s.repo.Reviews.ListByMovie(r.Context(), movieID)
	if err != nil {
		s.logger.Error().Err(err).Str("movie_id", movieID).Msg("http: list reviews failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list reviews")
		return
	}

	items := make([]reviewResponse, 0, len(reviews))
	for _, review := range reviews {
		items = append(items, toReviewResponse(review))
	}
	s.respondJSON(w, http.StatusOK, reviewListResponse{Items: items})
}

func (s *Server) handlePutReview(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "id")
	user, ok := s.actingUser(w, r)
	if !ok {
		return
	}
	if !s.movieExists(w, r, movieID) {
		return
	}

	var req reviewRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if err := validation.Struct(req); err != nil {
		s.respondValidation(w, err)
		return
	}

	expectation := score.DefaultExpectation
	if req.Expectation != nil {
		expectation = *req.Expectation
	}

	review, inserted, err := s.repo.Reviews.Upsert(r.Context(), repository.ReviewUpsertParams{
		MovieID:      movieID,
		UserID:       user.ID,
		Expectation:  expectation,
		Satisfaction: req.Satisfaction,
		Text:         req.Text,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return
		}
		s.logger.Error().Err(err).Str("movie_id", movieID).Str("user_id", user.ID).Msg("http: upsert review failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save review")
		return
	}

	status := http.StatusOK
	result := "updated"
	if inserted {
		status = http.StatusCreated
		result = "created"
	}
	metrics.ReviewsWritten.WithLabelValues(result).Inc()
	s.respondJSON(w, status, toReviewResponse(review))
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "id")
	user, ok := s.actingUser(w, r)
	if !ok {
		return
	}

	if err := s.repo.Reviews.Delete(r.Context(), movieID, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return
		}
		s.logger.Error().Err(err).Str("movie_id", movieID).Str("user_id", user.ID).Msg("http: delete review failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete review")
		return
	}
	metrics.ReviewsWritten.WithLabelValues("deleted").Inc()
	w.WriteHeader(http.StatusNoContent)
}

// actingUser resolves the X-User-Id header. A missing header is 401 and an
// id with no user behind it is 403.
func (s *Server) actingUser(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	userID := strings.TrimSpace(r.Header.Get(userHeader))
	if userID == "" {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return domain.User{}, false
	}
	user, err := s.repo.Users.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusForbidden, "FORBIDDEN", "Unknown user")
			return domain.User{}, false
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("http: resolve user failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve user")
		return domain.User{}, false
	}
	return user, true
}

func (s *Server) movieExists(w http.ResponseWriter, r *http.Request, movieID string) bool {
	if _, err := s.repo.Movies.GetByID(r.Context(), movieID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return false
		}
		s.logger.Error().Err(err).Str("movie_id", movieID).Msg("http: get movie failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch movie")
		return false
	}
	return true
}

func toReviewResponse(review domain.Review) reviewResponse {
	sr := review.Scoring()
	resp := reviewResponse{
		MovieID:      review.MovieID,
		MovieTitle:   review.MovieTitle,
		UserID:       review.UserID,
		Username:     review.Username,
		Enthusiast:   review.Enthusiast,
		Expectation:  review.Expectation,
		Satisfaction: review.Satisfaction,
		Text:         review.Text,
		Reflected:    score.Reflected(sr),
		Tone:         score.ToneNone,
		CreatedAt:    review.CreatedAt,
		UpdatedAt:    review.UpdatedAt,
	}
	if gap, ok := score.Gap(sr); ok {
		resp.Gap = &gap
	}
	if golden, ok := score.Golden(sr); ok {
		resp.Golden = &golden
	}
	if badge, ok := score.BadgeFor(sr); ok {
		label := string(badge)
		resp.Badge = &label
		resp.Tone = badge.Tone()
	}
	return resp
}
