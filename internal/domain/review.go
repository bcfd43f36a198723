package domain

import (
	"time"

	"github.com/gapmovies/gapmovies/internal/score"
)

// User is a community member. Enthusiast users are scored as their own cohort.
type User struct {
	ID         string
	Username   string
	Enthusiast bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Review is one user's rating of one movie.
type Review struct {
	MovieID string
	// MovieTitle is only filled when listing a user's reviews.
	MovieTitle   string
	UserID       string
	Username     string
	Enthusiast   bool
	Expectation  int
	Satisfaction *int
	Text         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Scoring returns the view of the review the score engine works on.
func (r Review) Scoring() score.Review {
	return score.Review{
		Expectation:  r.Expectation,
		Satisfaction: r.Satisfaction,
		Class:        score.ClassOf(r.Enthusiast),
	}
}
