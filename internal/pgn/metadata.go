package pgn

import "strconv"

type Outcome string

const (
	OutcomeWhiteWin Outcome = "white_win"
	OutcomeBlackWin Outcome = "black_win"
	OutcomeDraw     Outcome = "draw"
	OutcomeUnknown  Outcome = "unknown"
)

// Metadata is the flat attribute set derived from one normalized game, used
// by archive and statistics consumers. Extraction is pure.
type Metadata struct {
	White       string
	Black       string
	WhiteElo    int
	BlackElo    int
	Result      string
	TimeControl string
	Termination string
	Outcome     Outcome
}

func ExtractMetadata(normalized string) (*Metadata, error) {
	g, err := Parse(normalized)
	if err != nil {
		return nil, err
	}

	m := &Metadata{Outcome: OutcomeUnknown}
	m.White, _ = g.Tag("White")
	m.Black, _ = g.Tag("Black")
	m.Result, _ = g.Tag("Result")
	m.TimeControl, _ = g.Tag("TimeControl")
	m.Termination, _ = g.Tag("Termination")

	if v, ok := g.Tag("WhiteElo"); ok {
		m.WhiteElo, _ = strconv.Atoi(v)
	}
	if v, ok := g.Tag("BlackElo"); ok {
		m.BlackElo, _ = strconv.Atoi(v)
	}

	switch m.Result {
	case "1-0":
		m.Outcome = OutcomeWhiteWin
	case "0-1":
		m.Outcome = OutcomeBlackWin
	case "1/2-1/2":
		m.Outcome = OutcomeDraw
	}
	return m, nil
}
