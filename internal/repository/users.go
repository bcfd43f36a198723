package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gapmovies/gapmovies/internal/domain"
)

// UsersRepository persists community members and their reviewer class.
type UsersRepository struct {
	pool *pgxpool.Pool
}

// UserCreateParams bundles the fields required to create a user.
type UserCreateParams struct {
	ID         string
	Username   string
	Enthusiast bool
}

// Create inserts a new user. Duplicate ids or usernames return ErrConflict.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	const query = `
        INSERT INTO users (id, username, is_enthusiast)
        VALUES ($1,$2,$3)
        RETURNING id, username, is_enthusiast, created_at, updated_at
    `
	user, err := scanUser(r.pool.QueryRow(ctx, query, params.ID, params.Username, params.Enthusiast))
	if err != nil {
		return domain.User{}, translate(err)
	}
	return user, nil
}

// Get fetches a user by id.
func (r *UsersRepository) Get(ctx context.Context, id string) (domain.User, error) {
	const query = `
        SELECT id, username, is_enthusiast, created_at, updated_at
        FROM users
        WHERE id = $1
    `
	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.User{}, translate(err)
	}
	return user, nil
}

// SetEnthusiast moves a user between the enthusiast and casual cohorts.
func (r *UsersRepository) SetEnthusiast(ctx context.Context, id string, enthusiast bool) (domain.User, error) {
	const query = `
        UPDATE users
        SET is_enthusiast = $2, updated_at = now()
        WHERE id = $1
        RETURNING id, username, is_enthusiast, created_at, updated_at
    `
	user, err := scanUser(r.pool.QueryRow(ctx, query, id, enthusiast))
	if err != nil {
		return domain.User{}, translate(err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Enthusiast, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
