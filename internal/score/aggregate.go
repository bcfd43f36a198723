package score

import (
	"fmt"
	"math"
)

// Narrative thresholds: a review counts as positive or negative once its gap
// moves more than this many points away from the expectation.
const narrativeGap = 10

// Qualifying returns the reviews that carry a satisfaction score.
func Qualifying(reviews []Review) []Review {
	out := make([]Review, 0, len(reviews))
	for _, r := range reviews {
		if r.Rated() {
			out = append(out, r)
		}
	}
	return out
}

// ByClass returns the qualifying reviews written by the given cohort.
func ByClass(reviews []Review, class ReviewerClass) []Review {
	out := make([]Review, 0, len(reviews))
	for _, r := range reviews {
		if r.Rated() && r.Class == class {
			out = append(out, r)
		}
	}
	return out
}

// Average is the mean reflected score over all qualifying reviews.
func Average(reviews []Review) (float64, bool) {
	return meanReflected(Qualifying(reviews))
}

// EnthusiastAverage is Average restricted to enthusiast reviewers.
func EnthusiastAverage(reviews []Review) (float64, bool) {
	return meanReflected(ByClass(reviews, ClassEnthusiast))
}

// CasualAverage is Average restricted to casual reviewers.
func CasualAverage(reviews []Review) (float64, bool) {
	return meanReflected(ByClass(reviews, ClassCasual))
}

// GoldenAverage is the mean golden score over all qualifying reviews.
func GoldenAverage(reviews []Review) (float64, bool) {
	rated := Qualifying(reviews)
	if len(rated) == 0 {
		return 0, false
	}
	var total float64
	for _, r := range rated {
		g, _ := Golden(r)
		total += g
	}
	return round1(total / float64(len(rated))), true
}

// Narrative describes how the movie fared against its viewers' expectations.
// The positive and negative shares are rounded independently, so the three
// shares need not add up to 100; the neutral share is the complement.
func Narrative(reviews []Review) (string, bool) {
	rated := Qualifying(reviews)
	if len(rated) == 0 {
		return "", false
	}

	var positive, negative int
	for _, r := range rated {
		gap, _ := Gap(r)
		switch {
		case gap > narrativeGap:
			positive++
		case gap < -narrativeGap:
			negative++
		}
	}

	total := float64(len(rated))
	positivePct := int(math.RoundToEven(float64(positive) / total * 100))
	negativePct := int(math.RoundToEven(float64(negative) / total * 100))

	switch {
	case positivePct > 50:
		return fmt.Sprintf("exceeded expectations for most viewers (%d%%)", positivePct), true
	case negativePct > 50:
		return fmt.Sprintf("fell short of expectations for most viewers (%d%%)", negativePct), true
	default:
		return fmt.Sprintf("met expectations for most viewers (%d%%)", 100-positivePct-negativePct), true
	}
}

// Summary bundles every aggregate for one movie. Nil fields mean no data.
type Summary struct {
	Average         *float64
	Enthusiast      *float64
	Casual          *float64
	Golden          *float64
	Narrative       *string
	ReviewCount     int
	EnthusiastCount int
	CasualCount     int
}

// Summarize computes all aggregates over one snapshot of a movie's reviews.
func Summarize(reviews []Review) Summary {
	s := Summary{
		Average:    optional(Average(reviews)),
		Enthusiast: optional(EnthusiastAverage(reviews)),
		Casual:     optional(CasualAverage(reviews)),
		Golden:     optional(GoldenAverage(reviews)),
	}
	if text, ok := Narrative(reviews); ok {
		s.Narrative = &text
	}
	for _, r := range reviews {
		if !r.Rated() {
			continue
		}
		s.ReviewCount++
		switch r.Class {
		case ClassEnthusiast:
			s.EnthusiastCount++
		case ClassCasual:
			s.CasualCount++
		}
	}
	return s
}

func meanReflected(rated []Review) (float64, bool) {
	if len(rated) == 0 {
		return 0, false
	}
	var total float64
	for _, r := range rated {
		total += Reflected(r)
	}
	return round1(total / float64(len(rated))), true
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
