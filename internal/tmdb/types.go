package tmdb

import (
	"fmt"
	"strings"
	"time"
)

// Category selects one of TMDb's curated movie lists.
type Category string

const (
	CategoryPopular    Category = "popular"
	CategoryTopRated   Category = "top_rated"
	CategoryNowPlaying Category = "now_playing"
	CategoryUpcoming   Category = "upcoming"
)

// Categories lists every supported category.
var Categories = []Category{CategoryPopular, CategoryTopRated, CategoryNowPlaying, CategoryUpcoming}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("tmdb: unknown category %q", s)
}

// releaseTypeTheatrical is TMDb's release type for a theatrical run.
const releaseTypeTheatrical = 3

// ListPage is one page of a category listing.
type ListPage struct {
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
	Results    []ListedMovie `json:"results"`
}

// ListedMovie is the summary TMDb returns in list endpoints.
type ListedMovie struct {
	ID         int     `json:"id"`
	Title      string  `json:"title"`
	Popularity float64 `json:"popularity"`
}

// MovieDetails is the detail payload requested with credits, videos and
// release dates appended.
type MovieDetails struct {
	ID            int     `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	Overview      string  `json:"overview"`
	ReleaseDate   string  `json:"release_date"`
	Runtime       *int    `json:"runtime"`
	PosterPath    *string `json:"poster_path"`
	BackdropPath  *string `json:"backdrop_path"`
	Popularity    float64 `json:"popularity"`
	VoteAverage   float64 `json:"vote_average"`
	VoteCount     int     `json:"vote_count"`
	Credits       struct {
		Cast []struct {
			Name  string `json:"name"`
			Order int    `json:"order"`
		} `json:"cast"`
		Crew []struct {
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
	Videos struct {
		Results []struct {
			Key  string `json:"key"`
			Site string `json:"site"`
			Type string `json:"type"`
		} `json:"results"`
	} `json:"videos"`
	ReleaseDates struct {
		Results []struct {
			Country      string `json:"iso_3166_1"`
			ReleaseDates []struct {
				ReleaseDate string `json:"release_date"`
				Type        int    `json:"type"`
			} `json:"release_dates"`
		} `json:"results"`
	} `json:"release_dates"`
}

// Release parses the global release date.
func (m MovieDetails) Release() *time.Time {
	return parseDate(m.ReleaseDate)
}

// RegionalRelease returns the release date in the given country, preferring
// the theatrical release over the first listed one.
func (m MovieDetails) RegionalRelease(region string) *time.Time {
	for _, country := range m.ReleaseDates.Results {
		if !strings.EqualFold(country.Country, region) {
			continue
		}
		if len(country.ReleaseDates) == 0 {
			return nil
		}
		for _, rd := range country.ReleaseDates {
			if rd.Type == releaseTypeTheatrical {
				if t := parseDate(rd.ReleaseDate); t != nil {
					return t
				}
			}
		}
		return parseDate(country.ReleaseDates[0].ReleaseDate)
	}
	return nil
}

// TrailerURL returns the embed URL of the first YouTube trailer.
func (m MovieDetails) TrailerURL() string {
	for _, v := range m.Videos.Results {
		if v.Type == "Trailer" && v.Site == "YouTube" && v.Key != "" {
			return "https://www.youtube.com/embed/" + v.Key
		}
	}
	return ""
}

// Director returns the first crew member credited as director.
func (m MovieDetails) Director() string {
	for _, c := range m.Credits.Crew {
		if c.Job == "Director" {
			return c.Name
		}
	}
	return ""
}

// TopCast returns up to n cast names in billing order.
func (m MovieDetails) TopCast(n int) []string {
	if n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	for _, c := range m.Credits.Cast {
		if len(out) == n {
			break
		}
		out = append(out, c.Name)
	}
	return out
}

// parseDate accepts "2006-01-02" as well as full RFC 3339 timestamps.
func parseDate(s string) *time.Time {
	if len(s) < len(time.DateOnly) {
		return nil
	}
	t, err := time.Parse(time.DateOnly, s[:len(time.DateOnly)])
	if err != nil {
		return nil
	}
	return &t
}

// Poster returns the poster path or "".
func (m MovieDetails) Poster() string { return deref(m.PosterPath) }

// Backdrop returns the backdrop path or "".
func (m MovieDetails) Backdrop() string { return deref(m.BackdropPath) }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
