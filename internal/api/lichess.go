package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chess-archiver/internal/config"
	"chess-archiver/internal/domain"
	"chess-archiver/internal/pgn"
)

// LichessClient fetches games from the lichess export API, which streams
// concatenated PGN blocks for the whole requested window in one response.
type LichessClient struct {
	client  *apiClient
	baseURL string
	logger  zerolog.Logger
	now     func() time.Time
}

func NewLichessClient(cfg *config.Config, logger zerolog.Logger) *LichessClient {
	return &LichessClient{
		client:  newAPIClient(cfg, logger),
		baseURL: cfg.LichessBaseURL,
		logger:  logger.With().Str("source", string(domain.PlatformLichess)).Logger(),
		now:     time.Now,
	}
}

func (c *LichessClient) Platform() domain.Platform {
	return domain.PlatformLichess
}

func (c *LichessClient) FetchGames(ctx context.Context, username string, window domain.TimeWindow, maxGames int, timeControls []domain.TimeControl) ([]string, error) {
	params := url.Values{}
	params.Set("clocks", "false")
	params.Set("evals", "false")
	params.Set("opening", "true")

	if start, ok := window.Start(c.now()); ok {
		params.Set("since", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if maxGames > 0 {
		params.Set("max", strconv.Itoa(maxGames))
	}
	if perfs := perfTypes(timeControls); perfs != "" {
		params.Set("perfType", perfs)
	}

	// The export is the entire fetch; a transport failure here is the
	// attempt failing, not a missing account.
	endpoint := fmt.Sprintf("%s/games/user/%s?%s", c.baseURL, username, params.Encode())
	body, _, err := c.client.get(ctx, endpoint, "application/x-chess-pgn")
	if err != nil {
		c.logger.Error().Err(err).Str("username", username).Msg("game export request failed")
		return nil, fmt.Errorf("lichess game export for %s: %w", username, err)
	}

	var games []string
	for _, raw := range pgn.Split(string(body)) {
		g, perr := pgn.Parse(raw)
		if perr != nil {
			// Unparseable blocks pass through; the normalizer counts drops.
			games = append(games, raw)
		} else {
			if pgn.IsVariant(g) {
				continue
			}
			// perfType already filters server-side; this is the backstop for
			// games the export tags differently.
			if !pgn.MatchesFilter(pgn.Classify(g), timeControls) {
				continue
			}
			games = append(games, raw)
		}
		if maxGames > 0 && len(games) >= maxGames {
			break
		}
	}
	return games, nil
}

// perfTypes maps the standard categories onto lichess perf names. "other"
// has no single perf and is left to the client-side filter.
func perfTypes(timeControls []domain.TimeControl) string {
	var perfs []string
	for _, tc := range timeControls {
		switch tc {
		case domain.TimeControlBullet, domain.TimeControlBlitz, domain.TimeControlRapid,
			domain.TimeControlClassical, domain.TimeControlCorrespondence:
			perfs = append(perfs, string(tc))
		}
	}
	return strings.Join(perfs, ",")
}
