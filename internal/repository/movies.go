package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gapmovies/gapmovies/internal/domain"
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	pool *pgxpool.Pool
}

const movieColumns = `
    m.id::text,
    m.tmdb_id,
    m.title,
    m.original_title,
    m.overview,
    m.release_date,
    m.regional_release_date,
    m.runtime,
    m.poster_path,
    m.backdrop_path,
    m.trailer_url,
    m.vote_average,
    m.vote_count,
    m.popularity,
    p.id,
    p.name,
    m.created_at,
    m.updated_at
`

const movieFrom = ` FROM movies m LEFT JOIN people p ON p.id = m.director_id`

// likeEscaper makes user input match literally inside an ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// MaxCastMembers is how many billed cast members are kept per movie.
const MaxCastMembers = 5

// MovieCreateParams bundles the fields required to create a movie by hand.
type MovieCreateParams struct {
	Title         string
	OriginalTitle string
	Overview      string
	ReleaseDate   *time.Time
	Runtime       *int
}

// MovieImportParams carries everything the TMDb importer knows about a movie.
type MovieImportParams struct {
	TMDBID              int
	Title               string
	OriginalTitle       string
	Overview            string
	ReleaseDate         *time.Time
	RegionalReleaseDate *time.Time
	Runtime             *int
	PosterPath          string
	BackdropPath        string
	TrailerURL          string
	VoteAverage         float64
	VoteCount           int
	Popularity          float64
	Director            string
	Cast                []string
}

// MovieListFilters encapsulates search and pagination options.
type MovieListFilters struct {
	Query  *string
	Limit  int
	Cursor *MovieCursor
}

// MovieCursor allows stable pagination by popularity/id.
type MovieCursor struct {
	Popularity float64 `json:"popularity"`
	ID         string  `json:"id"`
}

// MovieListResult returns the paginated payload.
type MovieListResult struct {
	Items      []domain.Movie
	NextCursor *string
}

// Create inserts a new movie row and returns the stored entity.
func (r *MoviesRepository) Create(ctx context.Context, params MovieCreateParams) (domain.Movie, error) {
	const query = `
        INSERT INTO movies (title, original_title, overview, release_date, runtime)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id::text
    `
	var id string
	err := r.pool.QueryRow(ctx, query, params.Title, params.OriginalTitle, params.Overview, params.ReleaseDate, params.Runtime).Scan(&id)
	if err != nil {
		return domain.Movie{}, translate(err)
	}
	return r.GetByID(ctx, id)
}

// GetByID fetches a movie, its director and its billed cast.
func (r *MoviesRepository) GetByID(ctx context.Context, id string) (domain.Movie, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Movie{}, ErrNotFound
	}
	query := `SELECT ` + movieColumns + movieFrom + ` WHERE m.id = $1`
	movie, err := scanMovie(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Movie{}, translate(err)
	}

	cast, err := r.cast(ctx, id)
	if err != nil {
		return domain.Movie{}, err
	}
	movie.Cast = cast
	return movie, nil
}

// GetByTMDBID fetches a movie by its TMDb identifier.
func (r *MoviesRepository) GetByTMDBID(ctx context.Context, tmdbID int) (domain.Movie, error) {
	query := `SELECT ` + movieColumns + movieFrom + ` WHERE m.tmdb_id = $1`
	movie, err := scanMovie(r.pool.QueryRow(ctx, query, tmdbID))
	if err != nil {
		return domain.Movie{}, translate(err)
	}
	cast, err := r.cast(ctx, movie.ID)
	if err != nil {
		return domain.Movie{}, err
	}
	movie.Cast = cast
	return movie, nil
}

// ExistsByTMDBID reports whether a movie with the TMDb id was already imported.
func (r *MoviesRepository) ExistsByTMDBID(ctx context.Context, tmdbID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM movies WHERE tmdb_id = $1)`, tmdbID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check movie %d: %w", tmdbID, err)
	}
	return exists, nil
}

// UpsertFromTMDB creates or refreshes an imported movie together with its
// director and cast, and indicates whether the movie was newly created.
func (r *MoviesRepository) UpsertFromTMDB(ctx context.Context, params MovieImportParams) (domain.Movie, bool, error) {
	var (
		movieID  string
		inserted bool
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var directorID *int64
		if name := strings.TrimSpace(params.Director); name != "" {
			id, err := upsertPerson(ctx, tx, name)
			if err != nil {
				return err
			}
			directorID = &id
		}

		const query = `
            INSERT INTO movies (
                tmdb_id, title, original_title, overview, release_date, regional_release_date,
                runtime, poster_path, backdrop_path, trailer_url, vote_average, vote_count,
                popularity, director_id
            )
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
            ON CONFLICT (tmdb_id) DO UPDATE SET
                title = EXCLUDED.title,
                original_title = EXCLUDED.original_title,
                overview = EXCLUDED.overview,
                release_date = EXCLUDED.release_date,
                regional_release_date = EXCLUDED.regional_release_date,
                runtime = EXCLUDED.runtime,
                poster_path = EXCLUDED.poster_path,
                backdrop_path = EXCLUDED.backdrop_path,
                trailer_url = COALESCE(NULLIF(EXCLUDED.trailer_url, ''), movies.trailer_url),
                vote_average = EXCLUDED.vote_average,
                vote_count = EXCLUDED.vote_count,
                popularity = EXCLUDED.popularity,
                director_id = COALESCE(EXCLUDED.director_id, movies.director_id),
                updated_at = now()
            RETURNING id::text, (xmax = 0) AS inserted
        `
		err := tx.QueryRow(ctx, query,
			params.TMDBID, params.Title, params.OriginalTitle, params.Overview,
			params.ReleaseDate, params.RegionalReleaseDate, params.Runtime,
			params.PosterPath, params.BackdropPath, params.TrailerURL,
			params.VoteAverage, params.VoteCount, params.Popularity, directorID,
		).Scan(&movieID, &inserted)
		if err != nil {
			return fmt.Errorf("upsert movie %d: %w", params.TMDBID, err)
		}

		if len(params.Cast) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM movie_cast WHERE movie_id = $1`, movieID); err != nil {
			return fmt.Errorf("reset cast: %w", err)
		}
		cast := params.Cast
		if len(cast) > MaxCastMembers {
			cast = cast[:MaxCastMembers]
		}
		for i, name := range cast {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			personID, err := upsertPerson(ctx, tx, name)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `
                INSERT INTO movie_cast (movie_id, person_id, position)
                VALUES ($1,$2,$3)
                ON CONFLICT (movie_id, person_id) DO NOTHING
            `, movieID, personID, i)
			if err != nil {
				return fmt.Errorf("insert cast member: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Movie{}, false, err
	}

	movie, err := r.GetByID(ctx, movieID)
	if err != nil {
		return domain.Movie{}, false, err
	}
	return movie, inserted, nil
}

// List returns movies ordered by popularity that match the provided filters.
func (r *MoviesRepository) List(ctx context.Context, filters MovieListFilters) (MovieListResult, error) {
	if filters.Limit <= 0 {
		filters.Limit = 30
	} else if filters.Limit > 100 {
		filters.Limit = 100
	}

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Query != nil && strings.TrimSpace(*filters.Query) != "" {
		q := "%" + likeEscaper.Replace(strings.TrimSpace(*filters.Query)) + "%"
		p1 := arg(q)
		p2 := arg(q)
		where = append(where, fmt.Sprintf(`(m.title ILIKE %s ESCAPE '\' OR m.original_title ILIKE %s ESCAPE '\')`, p1, p2))
	}
	if filters.Cursor != nil {
		cursorPopularity := arg(filters.Cursor.Popularity)
		cursorID := arg(filters.Cursor.ID)
		where = append(where, fmt.Sprintf("(m.popularity, m.id) < (%s, %s::uuid)", cursorPopularity, cursorID))
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(movieColumns)
	queryBuilder.WriteString(movieFrom)

	if len(where) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(where, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY m.popularity DESC, m.id DESC")
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", filters.Limit))

	rows, err := r.pool.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return MovieListResult{}, err
	}
	defer rows.Close()

	items := make([]domain.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return MovieListResult{}, err
		}
		items = append(items, movie)
	}
	if err := rows.Err(); err != nil {
		return MovieListResult{}, err
	}

	var nextCursor *string
	if len(items) == filters.Limit {
		last := items[len(items)-1]
		token, err := encodeCursor(MovieCursor{Popularity: last.Popularity, ID: last.ID})
		if err != nil {
			return MovieListResult{}, err
		}
		nextCursor = &token
	}

	return MovieListResult{Items: items, NextCursor: nextCursor}, nil
}

// MovieStatus selects movies by their regional release window.
type MovieStatus string

const (
	// StatusNowPlaying covers regional releases from the last NowPlayingDays days up to today.
	StatusNowPlaying MovieStatus = "now_playing"
	// StatusComingSoon covers regional releases after today.
	StatusComingSoon MovieStatus = "coming_soon"
)

// NowPlayingDays is how long a movie counts as showing after its regional release.
const NowPlayingDays = 60

// ParseMovieStatus validates a status name.
func ParseMovieStatus(s string) (MovieStatus, error) {
	switch MovieStatus(s) {
	case StatusNowPlaying, StatusComingSoon:
		return MovieStatus(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Showing lists movies by regional release relative to today. Now playing
// movies are ordered by popularity, upcoming ones by release date.
func (r *MoviesRepository) Showing(ctx context.Context, status MovieStatus, today time.Time, limit int) ([]domain.Movie, error) {
	if limit <= 0 {
		limit = 40
	} else if limit > 100 {
		limit = 100
	}
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	var (
		query string
		args  []interface{}
	)
	switch status {
	case StatusNowPlaying:
		query = `SELECT ` + movieColumns + movieFrom + `
            WHERE m.regional_release_date BETWEEN $1 AND $2
            ORDER BY m.popularity DESC, m.id DESC
            LIMIT $3`
		args = []interface{}{day.AddDate(0, 0, -NowPlayingDays), day, limit}
	case StatusComingSoon:
		query = `SELECT ` + movieColumns + movieFrom + `
            WHERE m.regional_release_date > $1
            ORDER BY m.regional_release_date, m.popularity DESC, m.id
            LIMIT $2`
		args = []interface{}{day, limit}
	default:
		return nil, fmt.Errorf("unknown status %q", status)
	}
	return r.collect(ctx, query, args...)
}

// ListByDirector returns the movies a person directed, newest release first.
func (r *MoviesRepository) ListByDirector(ctx context.Context, personID int64) ([]domain.Movie, error) {
	query := `SELECT ` + movieColumns + movieFrom + `
        WHERE m.director_id = $1
        ORDER BY m.release_date DESC NULLS LAST, m.title`
	return r.collect(ctx, query, personID)
}

// RecommendSatisfaction is the satisfaction from which a review marks its
// director as a favourite.
const RecommendSatisfaction = 70

// RecommendedMovie is a recommendation together with how often it was reviewed.
type RecommendedMovie struct {
	Movie       domain.Movie
	ReviewCount int
}

// Recommendations is the result of Recommend. Personalized is false when the
// user has not reviewed anything yet and the most reviewed movies are returned.
type Recommendations struct {
	Items        []RecommendedMovie
	Personalized bool
}

// Recommend suggests movies by directors of the user's well-received reviews,
// skipping movies the user already reviewed, most reviewed first.
func (r *MoviesRepository) Recommend(ctx context.Context, userID string, limit int) (Recommendations, error) {
	if limit <= 0 {
		limit = 20
	}

	var reviewed int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM reviews WHERE user_id = $1`, userID).Scan(&reviewed); err != nil {
		return Recommendations{}, fmt.Errorf("count user reviews: %w", err)
	}

	const grouped = `
        GROUP BY m.id, p.id
        ORDER BY review_count DESC, m.popularity DESC, m.id
    `
	if reviewed == 0 {
		query := `SELECT ` + movieColumns + `, count(r.movie_id) AS review_count` + movieFrom + `
            JOIN reviews r ON r.movie_id = m.id` + grouped + `LIMIT $1`
		items, err := r.collectRecommended(ctx, query, limit)
		return Recommendations{Items: items}, err
	}

	query := `SELECT ` + movieColumns + `, count(r.movie_id) AS review_count` + movieFrom + `
        LEFT JOIN reviews r ON r.movie_id = m.id
        WHERE m.director_id IN (
            SELECT fm.director_id
            FROM reviews fr JOIN movies fm ON fm.id = fr.movie_id
            WHERE fr.user_id = $1 AND fr.satisfaction >= $2 AND fm.director_id IS NOT NULL
        )
        AND m.id NOT IN (SELECT movie_id FROM reviews WHERE user_id = $1)` + grouped + `LIMIT $3`
	items, err := r.collectRecommended(ctx, query, userID, RecommendSatisfaction, limit)
	return Recommendations{Items: items, Personalized: true}, err
}

func (r *MoviesRepository) collect(ctx context.Context, query string, args ...interface{}) ([]domain.Movie, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query movies: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, movie)
	}
	return items, rows.Err()
}

func (r *MoviesRepository) collectRecommended(ctx context.Context, query string, args ...interface{}) ([]RecommendedMovie, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recommendations: %w", err)
	}
	defer rows.Close()

	items := make([]RecommendedMovie, 0)
	for rows.Next() {
		var count int
		movie, err := scanMovie(rows, &count)
		if err != nil {
			return nil, err
		}
		items = append(items, RecommendedMovie{Movie: movie, ReviewCount: count})
	}
	return items, rows.Err()
}

func (r *MoviesRepository) cast(ctx context.Context, movieID string) ([]domain.Person, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT p.id, p.name
        FROM movie_cast c JOIN people p ON p.id = c.person_id
        WHERE c.movie_id = $1
        ORDER BY c.position
    `, movieID)
	if err != nil {
		return nil, fmt.Errorf("load cast: %w", err)
	}
	defer rows.Close()

	cast := make([]domain.Person, 0)
	for rows.Next() {
		var p domain.Person
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		cast = append(cast, p)
	}
	return cast, rows.Err()
}

func upsertPerson(ctx context.Context, tx pgx.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
        INSERT INTO people (name) VALUES ($1)
        ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
        RETURNING id
    `, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert person %q: %w", name, err)
	}
	return id, nil
}

// scanMovie reads movieColumns followed by any extra selected columns.
func scanMovie(row pgx.Row, extra ...interface{}) (domain.Movie, error) {
	var (
		movie        domain.Movie
		directorID   *int64
		directorName *string
	)

	dest := []interface{}{
		&movie.ID,
		&movie.TMDBID,
		&movie.Title,
		&movie.OriginalTitle,
		&movie.Overview,
		&movie.ReleaseDate,
		&movie.RegionalReleaseDate,
		&movie.Runtime,
		&movie.PosterPath,
		&movie.BackdropPath,
		&movie.TrailerURL,
		&movie.VoteAverage,
		&movie.VoteCount,
		&movie.Popularity,
		&directorID,
		&directorName,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return domain.Movie{}, err
	}

	if directorID != nil && directorName != nil {
		movie.Director = &domain.Person{ID: *directorID, Name: *directorName}
	}
	return movie, nil
}

func encodeCursor(c MovieCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// DecodeCursor parses a cursor token into a MovieCursor.
func DecodeCursor(token string) (*MovieCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor MovieCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	if _, err := uuid.Parse(cursor.ID); err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &cursor, nil
}
