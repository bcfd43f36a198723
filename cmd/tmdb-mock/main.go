// Command tmdb-mock serves a small, fixture-backed subset of the TMDb v3 API
// for local development and smoke tests.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gapmovies/gapmovies/internal/logging"
	"github.com/gapmovies/gapmovies/internal/tmdb"
)

const pageSize = 20

// fixtures maps TMDb ids to raw detail payloads and categories to id lists.
type fixtures struct {
	Movies map[string]json.RawMessage `json:"movies"`
	Lists  map[string][]int           `json:"lists"`
}

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		data    = flag.String("data", "cmd/tmdb-mock/testdata/fixtures.json", "path to fixture file")
		apiKey  = flag.String("api-key", "", "require this api_key on every request")
		verbose = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := logging.New(logging.Config{Level: level, Format: "console"}, "tmdb-mock")

	fx, err := loadFixtures(*data)
	if err != nil {
		logger.Fatal().Err(err).Msg("load fixtures")
	}

	addr := ":" + *port
	logger.Warn().Str("addr", addr).Int("movies", len(fx.Movies)).Msg("mock tmdb listening")
	if err := http.ListenAndServe(addr, newHandler(fx, *apiKey, logger)); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func loadFixtures(path string) (*fixtures, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var fx fixtures
	if err := json.Unmarshal(file, &fx); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &fx, nil
}

// newHandler answers /movie/{id} and /movie/{category}, with or without a
// leading /3 version segment.
func newHandler(fx *fixtures, apiKey string, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug().Str("path", r.URL.Path).Str("query", r.URL.RawQuery).Msg("request")
		if r.Method != http.MethodGet {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		if apiKey != "" && r.URL.Query().Get("api_key") != apiKey {
			writeStatus(w, http.StatusUnauthorized, "Invalid API key: You must be granted a valid key.")
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/3")
		key, ok := strings.CutPrefix(path, "/movie/")
		if !ok || key == "" || strings.Contains(key, "/") {
			writeStatus(w, http.StatusNotFound, "The resource you requested could not be found.")
			return
		}

		if _, err := tmdb.ParseCategory(key); err == nil {
			serveList(w, r, fx, key)
			return
		}
		payload, found := fx.Movies[key]
		if !found {
			writeStatus(w, http.StatusNotFound, "The resource you requested could not be found.")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
	})
}

func serveList(w http.ResponseWriter, r *http.Request, fx *fixtures, category string) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page = n
		}
	}

	ids := fx.Lists[category]
	totalPages := (len(ids) + pageSize - 1) / pageSize
	results := make([]tmdb.ListedMovie, 0, pageSize)
	for i := (page - 1) * pageSize; i < len(ids) && i < page*pageSize; i++ {
		listed := tmdb.ListedMovie{ID: ids[i]}
		if raw, ok := fx.Movies[strconv.Itoa(ids[i])]; ok {
			_ = json.Unmarshal(raw, &listed)
		}
		results = append(results, listed)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tmdb.ListPage{Page: page, TotalPages: totalPages, Results: results})
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success":        false,
		"status_code":    status,
		"status_message": message,
	})
}
