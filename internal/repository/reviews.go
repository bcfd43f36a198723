package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gapmovies/gapmovies/internal/domain"
	"github.com/gapmovies/gapmovies/internal/score"
)

// ReviewsRepository provides helpers for expectation/satisfaction reviews.
type ReviewsRepository struct {
	pool *pgxpool.Pool
}

// ReviewUpsertParams captures the payload required to upsert a review.
type ReviewUpsertParams struct {
	MovieID      string
	UserID       string
	Expectation  int
	Satisfaction *int
	Text         string
}

const reviewColumns = `
    r.movie_id::text,
    r.user_id,
    u.username,
    u.is_enthusiast,
    r.expectation,
    r.satisfaction,
    r.review_text,
    r.created_at,
    r.updated_at
`

// Upsert writes the caller's review of a movie, replacing any earlier one by
// the same user, and indicates whether it was newly created.
func (r *ReviewsRepository) Upsert(ctx context.Context, params ReviewUpsertParams) (domain.Review, bool, error) {
	if _, err := uuid.Parse(params.MovieID); err != nil {
		return domain.Review{}, false, ErrNotFound
	}
	const query = `
        WITH r AS (
            INSERT INTO reviews (movie_id, user_id, expectation, satisfaction, review_text)
            VALUES ($1,$2,$3,$4,$5)
            ON CONFLICT (movie_id, user_id)
            DO UPDATE SET expectation = EXCLUDED.expectation,
                          satisfaction = EXCLUDED.satisfaction,
                          review_text = EXCLUDED.review_text,
                          updated_at = now()
            RETURNING movie_id, user_id, expectation, satisfaction, review_text, created_at, updated_at,
                      (xmax = 0) AS inserted
        )
        SELECT ` + reviewColumns + `, r.inserted
        FROM r JOIN users u ON u.id = r.user_id
    `

	var (
		review   domain.Review
		inserted bool
	)
	err := r.pool.QueryRow(ctx, query, params.MovieID, params.UserID, params.Expectation, params.Satisfaction, params.Text).Scan(
		&review.MovieID,
		&review.UserID,
		&review.Username,
		&review.Enthusiast,
		&review.Expectation,
		&review.Satisfaction,
		&review.Text,
		&review.CreatedAt,
		&review.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return domain.Review{}, false, translate(err)
	}
	return review, inserted, nil
}

// Get retrieves the review a user wrote for a movie.
func (r *ReviewsRepository) Get(ctx context.Context, movieID, userID string) (domain.Review, error) {
	if _, err := uuid.Parse(movieID); err != nil {
		return domain.Review{}, ErrNotFound
	}
	query := `SELECT ` + reviewColumns + `
        FROM reviews r JOIN users u ON u.id = r.user_id
        WHERE r.movie_id = $1 AND r.user_id = $2`
	review, err := scanReview(r.pool.QueryRow(ctx, query, movieID, userID))
	if err != nil {
		return domain.Review{}, translate(err)
	}
	return review, nil
}

// ListByMovie returns every review of a movie, newest first.
func (r *ReviewsRepository) ListByMovie(ctx context.Context, movieID string) ([]domain.Review, error) {
	if _, err := uuid.Parse(movieID); err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT ` + reviewColumns + `
        FROM reviews r JOIN users u ON u.id = r.user_id
        WHERE r.movie_id = $1
        ORDER BY r.created_at DESC, r.user_id`
	rows, err := r.pool.Query(ctx, query, movieID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reviews, nil
}

// ListByUser returns every review a user wrote, newest first, with the
// reviewed movie's title.
func (r *ReviewsRepository) ListByUser(ctx context.Context, userID string) ([]domain.Review, error) {
	query := `SELECT ` + reviewColumns + `, m.title
        FROM reviews r
        JOIN users u ON u.id = r.user_id
        JOIN movies m ON m.id = r.movie_id
        WHERE r.user_id = $1
        ORDER BY r.created_at DESC, r.movie_id`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list user reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0)
	for rows.Next() {
		var title string
		review, err := scanReview(rows, &title)
		if err != nil {
			return nil, err
		}
		review.MovieTitle = title
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reviews, nil
}

// ListScored returns the rated reviews of a movie as score engine input. The
// rows come from a single statement, so the snapshot is consistent.
func (r *ReviewsRepository) ListScored(ctx context.Context, movieID string) ([]score.Review, error) {
	if _, err := uuid.Parse(movieID); err != nil {
		return nil, ErrNotFound
	}
	const query = `
        SELECT r.expectation, r.satisfaction, u.is_enthusiast
        FROM reviews r JOIN users u ON u.id = r.user_id
        WHERE r.movie_id = $1 AND r.satisfaction IS NOT NULL
    `
	rows, err := r.pool.Query(ctx, query, movieID)
	if err != nil {
		return nil, fmt.Errorf("list scored reviews: %w", err)
	}
	defer rows.Close()

	out := make([]score.Review, 0)
	for rows.Next() {
		var (
			rv         score.Review
			enthusiast bool
		)
		if err := rows.Scan(&rv.Expectation, &rv.Satisfaction, &enthusiast); err != nil {
			return nil, err
		}
		rv.Class = score.ClassOf(enthusiast)
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a review. Only the owner's own row can match, so a review
// written by someone else is reported as ErrNotFound.
func (r *ReviewsRepository) Delete(ctx context.Context, movieID, userID string) error {
	if _, err := uuid.Parse(movieID); err != nil {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE movie_id = $1 AND user_id = $2`, movieID, userID)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanReview(row pgx.Row, extra ...interface{}) (domain.Review, error) {
	var review domain.Review
	dest := []interface{}{
		&review.MovieID,
		&review.UserID,
		&review.Username,
		&review.Enthusiast,
		&review.Expectation,
		&review.Satisfaction,
		&review.Text,
		&review.CreatedAt,
		&review.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return review, err
}
