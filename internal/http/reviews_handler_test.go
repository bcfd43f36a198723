package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReviewLifecycleAndScores(t *testing.T) {
	srv := buildTestServer(t)
	movie := mustCreateMovie(t, srv, "Godzilla Minus One")
	mustCreateUser(t, srv, "alice", true)
	mustCreateUser(t, srv, "bob", false)
	mustCreateUser(t, srv, "carol", false)
	mustCreateUser(t, srv, "dave", false)

	reviewsURL := "/movies/" + movie.ID + "/reviews"
	writes := []struct {
		user string
		body string
	}{
		{"alice", `{"expectation":60,"satisfaction":90,"text":"astonishing"}`},
		{"bob", `{"expectation":50,"satisfaction":40,"text":"fine"}`},
		{"carol", `{"expectation":70,"text":"cannot wait"}`},
		{"dave", `{"expectation":40,"satisfaction":80,"text":"surprised"}`},
	}
	for _, wr := range writes {
		rec := do(t, srv, http.MethodPut, reviewsURL, wr.body, asUser(wr.user))
		if rec.Code != http.StatusCreated {
			t.Fatalf("PUT review as %s status = %d: %s", wr.user, rec.Code, rec.Body.String())
		}
	}

	rec := do(t, srv, http.MethodGet, "/movies/"+movie.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var detail movieDetailResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	sc := detail.Scores
	assertScore(t, "average", sc.Average, 78.3)
	assertScore(t, "enthusiast", sc.Enthusiast, 100)
	assertScore(t, "casual", sc.Casual, 67.5)
	assertScore(t, "golden", sc.Golden, 60)
	if sc.Narrative == nil || *sc.Narrative != "exceeded expectations for most viewers (67%)" {
		t.Fatalf("narrative = %v", sc.Narrative)
	}
	if sc.ReviewCount != 3 || sc.EnthusiastCount != 1 || sc.CasualCount != 2 {
		t.Fatalf("unexpected counts: %+v", sc)
	}

	rec = do(t, srv, http.MethodGet, reviewsURL, "", nil)
	var list reviewListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Items) != 4 {
		t.Fatalf("expected 4 reviews, got %d", len(list.Items))
	}
	byUser := map[string]reviewResponse{}
	for _, item := range list.Items {
		byUser[item.UserID] = item
	}

	alice := byUser["alice"]
	if alice.Gap == nil || *alice.Gap != 30 || alice.Reflected != 100 || alice.Badge == nil ||
		*alice.Badge != "far exceeded expectations" || alice.Tone != "success" || !alice.Enthusiast {
		t.Fatalf("unexpected alice review: %+v", alice)
	}
	bob := byUser["bob"]
	if bob.Gap == nil || *bob.Gap != -10 || bob.Reflected != 35 || bob.Golden == nil || *bob.Golden != 45 ||
		bob.Badge == nil || *bob.Badge != "somewhat disappointing" || bob.Tone != "danger" {
		t.Fatalf("unexpected bob review: %+v", bob)
	}
	carol := byUser["carol"]
	if carol.Gap != nil || carol.Badge != nil || carol.Golden != nil || carol.Reflected != 70 || carol.Tone != "secondary" {
		t.Fatalf("unexpected carol review: %+v", carol)
	}

	// carol rates after watching; the same PUT now updates.
	rec = do(t, srv, http.MethodPut, reviewsURL, `{"expectation":70,"satisfaction":20,"text":"not for me"}`, asUser("carol"))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200", rec.Code)
	}
	var updated reviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Badge == nil || *updated.Badge != "very disappointing" || updated.Tone != "dark" {
		t.Fatalf("unexpected updated review: %+v", updated)
	}

	rec = do(t, srv, http.MethodDelete, reviewsURL, "", asUser("alice"))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	rec = do(t, srv, http.MethodDelete, reviewsURL, "", asUser("alice"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, "/movies/"+movie.ID, "", nil)
	detail = movieDetailResponse{}
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.Scores.Enthusiast != nil {
		t.Fatalf("enthusiast average should be null once the only enthusiast review is gone")
	}
	if detail.Scores.ReviewCount != 3 {
		t.Fatalf("reviewCount = %d, want 3", detail.Scores.ReviewCount)
	}
}

func TestHandlePutReview_Validation(t *testing.T) {
	srv := buildTestServer(t)
	movie := mustCreateMovie(t, srv, "Test")
	mustCreateUser(t, srv, "user1", false)
	target := "/movies/" + movie.ID + "/reviews"

	cases := []struct {
		name string
		body string
	}{
		{"expectation too high", `{"expectation":101,"text":"x"}`},
		{"satisfaction negative", `{"expectation":50,"satisfaction":-1,"text":"x"}`},
		{"missing text", `{"expectation":50,"satisfaction":50}`},
		{"blank text", `{"expectation":50,"text":"   "}`},
		{"fractional", `{"expectation":50.5,"text":"x"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPut, target, tc.body, asUser("user1"))
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandlePutReview_DefaultExpectation(t *testing.T) {
	srv := buildTestServer(t)
	movie := mustCreateMovie(t, srv, "Test")
	mustCreateUser(t, srv, "user1", false)

	rec := do(t, srv, http.MethodPut, "/movies/"+movie.ID+"/reviews", `{"satisfaction":0,"text":"x"}`, asUser("user1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp reviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Expectation != 50 || resp.Satisfaction == nil || *resp.Satisfaction != 0 {
		t.Fatalf("unexpected review: %+v", resp)
	}
	if resp.Reflected != 0 || resp.Badge == nil || *resp.Badge != "very disappointing" {
		t.Fatalf("unexpected scores: %+v", resp)
	}
}

func TestHandlePutReview_Identity(t *testing.T) {
	srv := buildTestServer(t)
	movie := mustCreateMovie(t, srv, "Test")
	mustCreateUser(t, srv, "user1", false)
	body := `{"expectation":50,"text":"x"}`

	cases := []struct {
		name    string
		target  string
		headers map[string]string
		want    int
	}{
		{"no user header", "/movies/" + movie.ID + "/reviews", nil, http.StatusUnauthorized},
		{"unknown user", "/movies/" + movie.ID + "/reviews", asUser("ghost"), http.StatusForbidden},
		{"unknown movie", "/movies/00000000-0000-0000-0000-000000000000/reviews", asUser("user1"), http.StatusNotFound},
		{"malformed movie id", "/movies/nope/reviews", asUser("user1"), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPut, tc.target, body, tc.headers)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestHandleDeleteReview_OnlyOwnReview(t *testing.T) {
	srv := buildTestServer(t)
	movie := mustCreateMovie(t, srv, "Test")
	mustCreateUser(t, srv, "owner", false)
	mustCreateUser(t, srv, "other", false)
	target := "/movies/" + movie.ID + "/reviews"

	if rec := do(t, srv, http.MethodPut, target, `{"expectation":50,"text":"mine"}`, asUser("owner")); rec.Code != http.StatusCreated {
		t.Fatalf("put status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodDelete, target, "", asUser("other")); rec.Code != http.StatusNotFound {
		t.Fatalf("delete by other status = %d, want 404", rec.Code)
	}
	if _, err := srv.repo.Reviews.Get(context.Background(), movie.ID, "owner"); err != nil {
		t.Fatalf("owner review should survive: %v", err)
	}
}

func TestHandleListReviews_NotFound(t *testing.T) {
	srv := buildTestServer(t)
	req := attachParam(httptest.NewRequest(http.MethodGet, "/movies/nope/reviews", nil), "id", "nope")
	rec := httptest.NewRecorder()

	srv.handleListReviews(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func assertScore(t *testing.T, name string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s = null, want %v", name, want)
	}
	if math.Abs(*got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, *got, want)
	}
}

func BenchmarkHandlePutReview(b *testing.B) {
	srv := buildTestServer(b)
	movie := mustCreateMovie(b, srv, "Benchmark Movie")
	for i := 0; i < 64; i++ {
		mustCreateUser(b, srv, fmt.Sprintf("bench-%d", i), i%4 == 0)
	}
	target := "/movies/" + movie.ID + "/reviews"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		body := fmt.Sprintf(`{"expectation":%d,"satisfaction":%d,"text":"bench"}`, i%101, (i*7)%101)
		rec := do(b, srv, http.MethodPut, target, body, asUser(fmt.Sprintf("bench-%d", i%64)))
		if rec.Code != http.StatusCreated && rec.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}
