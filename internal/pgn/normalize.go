package pgn

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chess-archiver/internal/domain"
)

// Derived headers stamped on every archived game.
const (
	TagSource      = "ArchiverSource"
	TagTimestamp   = "ArchiverTimestamp"
	TagWhiteFideID = "WhiteFideId"
	TagBlackFideID = "BlackFideId"
)

const TimestampLayout = "2006-01-02 15:04:05"

type Normalizer struct {
	logger zerolog.Logger
	now    func() time.Time
}

func NewNormalizer(logger zerolog.Logger) *Normalizer {
	return &Normalizer{logger: logger, now: time.Now}
}

// Normalize parses one raw game, stamps the derived headers, and
// re-serializes it. The FIDE ID is attached to whichever side's name matches
// the roster player name or the account username (platform exports usually
// carry the username); when neither matches it is omitted. Re-normalizing
// already-normalized text is a fixed point aside from the timestamp header.
func (n *Normalizer) Normalize(raw string, platform domain.Platform, playerName, username, fideID string) (string, error) {
	g, err := Parse(raw)
	if err != nil {
		return "", err
	}

	g.SetTag(TagSource, string(platform))
	g.SetTag(TagTimestamp, n.now().Format(TimestampLayout))

	if side, ok := matchSide(g, playerName, username); ok {
		g.SetTag(side, fideID)
	}

	return g.String(), nil
}

// NormalizeBatch normalizes a sequence of raw games, dropping and counting
// malformed entries without aborting the batch.
func (n *Normalizer) NormalizeBatch(raws []string, platform domain.Platform, playerName, username, fideID string) ([]string, int) {
	out := make([]string, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		normalized, err := n.Normalize(raw, platform, playerName, username, fideID)
		if err != nil {
			dropped++
			n.logger.Debug().
				Str("platform", string(platform)).
				Str("fide_id", fideID).
				Err(err).
				Msg("dropping malformed game")
			continue
		}
		out = append(out, normalized)
	}
	return out, dropped
}

func matchSide(g *Game, candidates ...string) (string, bool) {
	matches := func(v string) bool {
		v = strings.TrimSpace(v)
		for _, c := range candidates {
			if c != "" && strings.EqualFold(v, c) {
				return true
			}
		}
		return false
	}
	if white, ok := g.Tag("White"); ok && matches(white) {
		return TagWhiteFideID, true
	}
	if black, ok := g.Tag("Black"); ok && matches(black) {
		return TagBlackFideID, true
	}
	return "", false
}
