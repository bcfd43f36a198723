package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gapmovies/gapmovies/internal/domain"
	"github.com/gapmovies/gapmovies/internal/repository"
	"github.com/gapmovies/gapmovies/internal/validation"
)

type userCreateRequest struct {
	ID         string `json:"id" validate:"required,max=64"`
	Username   string `json:"username" validate:"required,max=150"`
	Enthusiast bool   `json:"enthusiast"`
}

type userUpdateRequest struct {
	Enthusiast *bool `json:"enthusiast" validate:"required"`
}

type userResponse struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Enthusiast bool      `json:"enthusiast"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	var req userCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	req.Username = strings.TrimSpace(req.Username)
	if err := validation.Struct(req); err != nil {
		s.respondValidation(w, err)
		return
	}

	user, err := s.repo.Users.Create(r.Context(), repository.UserCreateParams{
		ID:         req.ID,
		Username:   req.Username,
		Enthusiast: req.Enthusiast,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.respondError(w, http.StatusConflict, "CONFLICT", "User id or username already taken")
			return
		}
		s.logger.Error().Err(err).Msg("http: create user failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user")
		return
	}
	s.respondJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	var req userUpdateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		s.respondValidation(w, err)
		return
	}

	userID := chi.URLParam(r, "id")
	user, err := s.repo.Users.SetEnthusiast(r.Context(), userID, *req.Enthusiast)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("http: update user failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update user")
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

type userReviewsResponse struct {
	User  userResponse     `json:"user"`
	Items []reviewResponse `json:"items"`
}

func (s *Server) handleUserReviews(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	user, err := s.repo.Users.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return
		}
		s.logger.Error().Err(err).Str("user_id", userID).Msg("http: get user failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch user")
		return
	}

	reviews, err := s.repo.Reviews.ListByUser(r.Context(), user.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("http: list user reviews failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list reviews")
		return
	}

	items := make([]reviewResponse, 0, len(reviews))
	for _, review := range reviews {
		items = append(items, toReviewResponse(review))
	}
	s.respondJSON(w, http.StatusOK, userReviewsResponse{User: toUserResponse(user), Items: items})
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Username:   u.Username,
		Enthusiast: u.Enthusiast,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}
