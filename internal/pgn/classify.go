package pgn

import (
	"strconv"
	"strings"

	"chess-archiver/internal/domain"
)

// Base-seconds thresholds for the standard categories.
const (
	bulletMax = 180
	blitzMax  = 600
	rapidMax  = 1800
)

// ClassifyTimeControl maps an explicit TimeControl tag value to a category.
// ok is false when the value is unparseable and the caller should fall back
// to the event label.
func ClassifyTimeControl(tc string) (domain.TimeControl, bool) {
	tc = strings.TrimSpace(tc)
	if tc == "" || tc == "?" {
		return "", false
	}

	// No fixed clock, or "N/seconds" daily notation.
	if tc == "-" || strings.Contains(tc, "/") {
		return domain.TimeControlCorrespondence, true
	}

	base := tc
	if i := strings.IndexByte(tc, '+'); i >= 0 {
		base = tc[:i]
	}
	seconds, err := strconv.Atoi(base)
	if err != nil {
		return "", false
	}

	switch {
	case seconds < bulletMax:
		return domain.TimeControlBullet, true
	case seconds < blitzMax:
		return domain.TimeControlBlitz, true
	case seconds < rapidMax:
		return domain.TimeControlRapid, true
	default:
		return domain.TimeControlClassical, true
	}
}

// ClassifyEvent keyword-matches a free-text event label.
func ClassifyEvent(event string) domain.TimeControl {
	event = strings.ToLower(event)
	switch {
	case strings.Contains(event, "bullet"):
		return domain.TimeControlBullet
	case strings.Contains(event, "blitz"):
		return domain.TimeControlBlitz
	case strings.Contains(event, "rapid"):
		return domain.TimeControlRapid
	case strings.Contains(event, "classical"), strings.Contains(event, "standard"):
		return domain.TimeControlClassical
	case strings.Contains(event, "correspondence"), strings.Contains(event, "daily"):
		return domain.TimeControlCorrespondence
	default:
		return domain.TimeControlOther
	}
}

// Classify assigns exactly one category to a game: explicit TimeControl tag
// first, then the event label, then "other".
func Classify(g *Game) domain.TimeControl {
	if tc, ok := g.Tag("TimeControl"); ok {
		if cat, parsed := ClassifyTimeControl(tc); parsed {
			return cat
		}
	}
	if event, ok := g.Tag("Event"); ok {
		return ClassifyEvent(event)
	}
	return domain.TimeControlOther
}

// IsVariant reports whether the game is a non-standard rule variant. Variant
// games are always excluded before classification.
func IsVariant(g *Game) bool {
	v, ok := g.Tag("Variant")
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "standard":
		return false
	}
	return true
}

// MatchesFilter reports whether a category passes the requested time-control
// filter. An empty filter accepts all categories.
func MatchesFilter(cat domain.TimeControl, filter []domain.TimeControl) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if cat == f {
			return true
		}
	}
	return false
}
