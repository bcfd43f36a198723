package score

// Badge classifies a review's gap into one of five bands.
type Badge string

const (
	BadgeFarExceeded           Badge = "far exceeded expectations"
	BadgeExceeded              Badge = "exceeded expectations"
	BadgeMet                   Badge = "met expectations"
	BadgeSomewhatDisappointing Badge = "somewhat disappointing"
	BadgeVeryDisappointing     Badge = "very disappointing"
)

// Band pairs the inclusive lower gap bound of a badge with the badge itself.
type Band struct {
	MinGap int
	Badge  Badge
}

// Bands is evaluated top-down; the first band whose MinGap the gap reaches
// wins. Anything below the last bound is BadgeVeryDisappointing.
var Bands = []Band{
	{MinGap: 30, Badge: BadgeFarExceeded},
	{MinGap: 10, Badge: BadgeExceeded},
	{MinGap: -9, Badge: BadgeMet},
	{MinGap: -29, Badge: BadgeSomewhatDisappointing},
}

// Classify maps a gap to its badge.
func Classify(gap int) Badge {
	for _, b := range Bands {
		if gap >= b.MinGap {
			return b.Badge
		}
	}
	return BadgeVeryDisappointing
}

// BadgeFor returns the badge of a rated review.
func BadgeFor(r Review) (Badge, bool) {
	gap, ok := Gap(r)
	if !ok {
		return "", false
	}
	return Classify(gap), true
}

// ToneNone is the tone shown next to a review that has no badge yet.
const ToneNone = "secondary"

// Tone returns the visual severity the web front end pairs with the badge.
func (b Badge) Tone() string {
	switch b {
	case BadgeFarExceeded:
		return "success"
	case BadgeExceeded:
		return "info"
	case BadgeMet:
		return "warning"
	case BadgeSomewhatDisappointing:
		return "danger"
	case BadgeVeryDisappointing:
		return "dark"
	}
	return ToneNone
}
