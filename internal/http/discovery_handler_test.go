package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/gapmovies/gapmovies/internal/domain"
	"github.com/gapmovies/gapmovies/internal/repository"
)

func mustImportMovie(tb testing.TB, srv *Server, tmdbID int, title, director string, regional *time.Time, popularity float64) domain.Movie {
	tb.Helper()
	movie, _, err := srv.repo.Movies.UpsertFromTMDB(context.Background(), repository.MovieImportParams{
		TMDBID:              tmdbID,
		Title:               title,
		RegionalReleaseDate: regional,
		Popularity:          popularity,
		Director:            director,
	})
	if err != nil {
		tb.Fatalf("import movie %s: %v", title, err)
	}
	return movie
}

func dayOffset(day time.Time, n int) *time.Time {
	d := day.AddDate(0, 0, n)
	return &d
}

func decodeMovieList(t *testing.T, body []byte) []string {
	t.Helper()
	var resp movieListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.NextCursor != nil {
		t.Fatalf("status listings are a single page, got cursor %q", *resp.NextCursor)
	}
	titles := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		titles = append(titles, item.Title)
	}
	return titles
}

func TestHandleListMovies_Status(t *testing.T) {
	srv := buildTestServer(t)
	today := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return today.Add(9 * time.Hour) }

	mustImportMovie(t, srv, 1, "Showing", "", dayOffset(today, -10), 20)
	mustImportMovie(t, srv, 2, "Expired", "", dayOffset(today, -90), 90)
	mustImportMovie(t, srv, 3, "Soon", "", dayOffset(today, 3), 1)
	mustImportMovie(t, srv, 4, "Later", "", dayOffset(today, 30), 80)

	rec := do(t, srv, http.MethodGet, "/movies?status=now_playing", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("now_playing status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeMovieList(t, rec.Body.Bytes()); len(got) != 1 || got[0] != "Showing" {
		t.Fatalf("now playing = %v", got)
	}

	rec = do(t, srv, http.MethodGet, "/movies?status=coming_soon", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("coming_soon status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeMovieList(t, rec.Body.Bytes()); len(got) != 2 || got[0] != "Soon" || got[1] != "Later" {
		t.Fatalf("coming soon = %v, want soonest first", got)
	}

	badRequests := []string{
		"/movies?status=archived",
		"/movies?status=now_playing&q=show",
		"/movies?status=now_playing&limit=-1",
	}
	for _, target := range badRequests {
		if rec := do(t, srv, http.MethodGet, target, "", nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s status = %d, want 400", target, rec.Code)
		}
	}
}

func TestHandleRecommendedMovies(t *testing.T) {
	srv := buildTestServer(t)

	loved := mustImportMovie(t, srv, 10, "Memento", "Christopher Nolan", nil, 1)
	next := mustImportMovie(t, srv, 11, "Inception", "Christopher Nolan", nil, 2)
	mustImportMovie(t, srv, 12, "Cats", "Tom Hooper", nil, 3)
	mustCreateUser(t, srv, "fan", false)
	mustCreateUser(t, srv, "newcomer", false)

	if rec := do(t, srv, http.MethodGet, "/movies/recommended", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/movies/recommended", "", asUser("ghost")); rec.Code != http.StatusForbidden {
		t.Fatalf("unknown user status = %d, want 403", rec.Code)
	}

	if rec := do(t, srv, http.MethodPut, "/movies/"+loved.ID+"/reviews", `{"expectation":40,"satisfaction":90,"text":"brilliant"}`, asUser("fan")); rec.Code != http.StatusCreated {
		t.Fatalf("put review status = %d: %s", rec.Code, rec.Body.String())
	}

	rec := do(t, srv, http.MethodGet, "/movies/recommended", "", asUser("fan"))
	if rec.Code != http.StatusOK {
		t.Fatalf("recommended status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp recommendedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Personalized || len(resp.Items) != 1 || resp.Items[0].ID != next.ID {
		t.Fatalf("recommendations = %+v, want only Inception", resp)
	}
	if resp.Items[0].Director == nil || *resp.Items[0].Director != "Christopher Nolan" {
		t.Fatalf("director = %v", resp.Items[0].Director)
	}

	rec = do(t, srv, http.MethodGet, "/movies/recommended", "", asUser("newcomer"))
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Personalized || len(resp.Items) != 1 || resp.Items[0].ID != loved.ID || resp.Items[0].ReviewCount != 1 {
		t.Fatalf("fallback = %+v, want the one reviewed movie", resp)
	}
}

func TestHandlePersonMovies(t *testing.T) {
	srv := buildTestServer(t)

	memento := mustImportMovie(t, srv, 20, "Memento", "Christopher Nolan", nil, 1)
	mustImportMovie(t, srv, 21, "Cats", "Tom Hooper", nil, 2)

	rec := do(t, srv, http.MethodGet, "/movies/"+memento.ID, "", nil)
	var detail movieDetailResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.DirectorID == nil {
		t.Fatalf("movie detail should carry the director id")
	}

	rec = do(t, srv, http.MethodGet, "/people/"+strconv.FormatInt(*detail.DirectorID, 10)+"/movies", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("person movies status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp personMoviesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Person.Name != "Christopher Nolan" || len(resp.Items) != 1 || resp.Items[0].ID != memento.ID {
		t.Fatalf("person movies = %+v", resp)
	}

	if rec := do(t, srv, http.MethodGet, "/people/abc/movies", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed id status = %d, want 400", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/people/999999/movies", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown person status = %d, want 404", rec.Code)
	}
}

func TestHandleUserReviews(t *testing.T) {
	srv := buildTestServer(t)
	movie := mustCreateMovie(t, srv, "Profile Movie")
	mustCreateUser(t, srv, "writer", true)

	if rec := do(t, srv, http.MethodPut, "/movies/"+movie.ID+"/reviews", `{"expectation":50,"satisfaction":80,"text":"great"}`, asUser("writer")); rec.Code != http.StatusCreated {
		t.Fatalf("put review status = %d", rec.Code)
	}

	rec := do(t, srv, http.MethodGet, "/users/writer/reviews", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("user reviews status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp userReviewsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.ID != "writer" || !resp.User.Enthusiast {
		t.Fatalf("user = %+v", resp.User)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(resp.Items))
	}
	item := resp.Items[0]
	if item.MovieTitle != "Profile Movie" || item.Gap == nil || *item.Gap != 30 {
		t.Fatalf("review = %+v", item)
	}
	if item.Badge == nil {
		t.Fatalf("rated review should carry a badge")
	}

	if rec := do(t, srv, http.MethodGet, "/users/missing/reviews", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown user status = %d, want 404", rec.Code)
	}
}
