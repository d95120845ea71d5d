// Package pgn handles header-level parsing and canonical re-serialization of
// PGN game text. Move legality is never validated; the movetext is carried
// through opaquely.
package pgn

import (
	"errors"
	"regexp"
	"strings"
)

var ErrMalformed = errors.New("pgn: malformed game")

var tagLine = regexp.MustCompile(`^\[([A-Za-z0-9_]+)\s+"(.*)"\]\s*$`)

type Tag struct {
	Name  string
	Value string
}

// Game is one parsed chess game: ordered header tags plus opaque movetext.
// Transient only; its persisted form is the archive bucket content.
type Game struct {
	Tags     []Tag
	Movetext string
}

// Parse splits raw PGN text into header tags and movetext. A game with no
// tags or no movetext is malformed.
func Parse(raw string) (*Game, error) {
	g := &Game{}
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			if len(g.Tags) > 0 {
				break
			}
			continue
		}
		m := tagLine.FindStringSubmatch(line)
		if m == nil {
			break
		}
		g.Tags = append(g.Tags, Tag{Name: m[1], Value: m[2]})
	}

	var moves []string
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if tagLine.MatchString(line) {
			return nil, ErrMalformed
		}
		moves = append(moves, line)
	}
	g.Movetext = strings.Join(moves, " ")

	if len(g.Tags) == 0 || g.Movetext == "" {
		return nil, ErrMalformed
	}
	return g, nil
}

// Tag returns the value of the named header tag.
func (g *Game) Tag(name string) (string, bool) {
	for _, t := range g.Tags {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// SetTag overwrites the named tag in place, or appends it. In-place
// overwrite keeps re-serialization a fixed point under re-normalization.
func (g *Game) SetTag(name, value string) {
	for i, t := range g.Tags {
		if t.Name == name {
			g.Tags[i].Value = value
			return
		}
	}
	g.Tags = append(g.Tags, Tag{Name: name, Value: value})
}

// String re-serializes the game deterministically: tags in order, one per
// line, a blank line, then the movetext.
func (g *Game) String() string {
	var b strings.Builder
	for _, t := range g.Tags {
		b.WriteString("[")
		b.WriteString(t.Name)
		b.WriteString(" \"")
		b.WriteString(t.Value)
		b.WriteString("\"]\n")
	}
	b.WriteString("\n")
	b.WriteString(g.Movetext)
	b.WriteString("\n")
	return b.String()
}

// Split cuts a stream of concatenated PGN games into individual game texts.
// A new game starts at a tag line once the previous game has entered its
// movetext section.
func Split(stream string) []string {
	var games []string
	var current []string
	inMoves := false

	flush := func() {
		text := strings.TrimSpace(strings.Join(current, "\n"))
		if text != "" {
			games = append(games, text)
		}
		current = current[:0]
		inMoves = false
	}

	for _, line := range strings.Split(strings.ReplaceAll(stream, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		isTag := tagLine.MatchString(trimmed)
		if isTag && inMoves {
			flush()
		}
		if trimmed != "" && !isTag {
			inMoves = true
		}
		current = append(current, line)
	}
	flush()
	return games
}
