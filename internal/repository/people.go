package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gapmovies/gapmovies/internal/domain"
)

// PeopleRepository reads directors and cast members.
type PeopleRepository struct {
	pool *pgxpool.Pool
}

// Get fetches a person by id.
func (r *PeopleRepository) Get(ctx context.Context, id int64) (domain.Person, error) {
	var p domain.Person
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM people WHERE id = $1`, id).Scan(&p.ID, &p.Name)
	if err != nil {
		return domain.Person{}, translate(err)
	}
	return p, nil
}
