package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gapmovies/gapmovies/internal/repository"
)

type personResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type personMoviesResponse struct {
	Person personResponse  `json:"person"`
	Items  []movieResponse `json:"items"`
}

// handlePersonMovies lists the movies a person directed.
func (s *Server) handlePersonMovies(w http.ResponseWriter, r *http.Request) {
	personID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || personID <= 0 {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid id parameter")
		return
	}

	person, err := s.repo.People.Get(r.Context(), personID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondNotFound(w)
			return
		}
		s.logger.Error().Err(err).Int64("person_id", personID).Msg("http: get person failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch person")
		return
	}

	movies, err := s.repo.Movies.ListByDirector(r.Context(), person.ID)
	if err != nil {
		s.logger.Error().Err(err).Int64("person_id", personID).Msg("http: list person movies failed")
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list movies")
		return
	}
	s.respondJSON(w, http.StatusOK, personMoviesResponse{
		Person: personResponse{ID: person.ID, Name: person.Name},
		Items:  toMovieResponses(movies),
	})
}
