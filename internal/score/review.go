// Package score computes the expectation/satisfaction "gap" scores of Gap Movies.
//
// Every function is pure: callers hand in an already-filtered snapshot of a
// movie's reviews and get plain numbers back. A false ok result means "no
// data" and must never be rendered as zero, since zero is a valid score.
package score

import "strconv"

// DefaultExpectation is the expectation a review starts with when the
// reviewer leaves the slider untouched.
const DefaultExpectation = 50

const (
	minScore = 0
	maxScore = 100
)

// ReviewerClass segments reviewers into the two aggregate cohorts.
type ReviewerClass string

const (
	ClassEnthusiast ReviewerClass = "enthusiast"
	ClassCasual     ReviewerClass = "casual"
)

// Valid reports whether c is a known reviewer class.
func (c ReviewerClass) Valid() bool {
	switch c {
	case ClassEnthusiast, ClassCasual:
		return true
	}
	return false
}

// ClassOf maps the stored enthusiast flag of a user to its cohort.
func ClassOf(enthusiast bool) ReviewerClass {
	if enthusiast {
		return ClassEnthusiast
	}
	return ClassCasual
}

// Review is the scoring view of one user's review of one movie.
type Review struct {
	Expectation  int
	Satisfaction *int // nil until the reviewer rates the movie after watching it
	Class        ReviewerClass
}

// Rated reports whether the review carries a post-viewing satisfaction.
func (r Review) Rated() bool {
	return r.Satisfaction != nil
}

// Gap returns satisfaction minus expectation. Positive values mean the movie
// exceeded expectations.
func Gap(r Review) (int, bool) {
	if r.Satisfaction == nil {
		return 0, false
	}
	return *r.Satisfaction - r.Expectation, true
}

// Reflected returns the value this review contributes to the movie's
// aggregate. Positive gaps amplify satisfaction by half the gap and negative
// gaps dampen it by the same rule. Unrated reviews contribute their
// expectation. The result always lies in [0,100].
func Reflected(r Review) float64 {
	gap, ok := Gap(r)
	if !ok {
		return clamp(float64(r.Expectation))
	}
	s := float64(*r.Satisfaction)
	if gap == 0 {
		return clamp(s)
	}
	return clamp(round1(s + float64(gap)*0.5))
}

// Golden returns the plain average of expectation and satisfaction.
func Golden(r Review) (float64, bool) {
	if r.Satisfaction == nil {
		return 0, false
	}
	return round1(float64(r.Expectation+*r.Satisfaction) / 2), true
}

func clamp(v float64) float64 {
	if v > maxScore {
		return maxScore
	}
	if v < minScore {
		return minScore
	}
	return v
}

// round1 rounds to one decimal place, breaking exact binary ties to even.
func round1(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	return r
}
