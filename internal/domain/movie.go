package domain

import "time"

// Person is a director or cast member credited on a movie.
type Person struct {
	ID   int64
	Name string
}

// Movie represents the canonical movie entity in the database/service.
type Movie struct {
	ID            string
	TMDBID        *int
	Title         string
	OriginalTitle string
	Overview      string
	ReleaseDate   *time.Time
	// RegionalReleaseDate is the release in the configured TMDb region, when known.
	RegionalReleaseDate *time.Time
	Runtime             *int
	PosterPath          string
	BackdropPath        string
	TrailerURL          string
	VoteAverage         float64
	VoteCount           int
	Popularity          float64
	Director            *Person
	Cast                []Person
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
