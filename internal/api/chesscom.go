package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chess-archiver/internal/config"
	"chess-archiver/internal/domain"
	"chess-archiver/internal/pgn"
)

// ChessComClient fetches games from the chess.com public API, which exposes
// them as monthly archive buckets of JSON-wrapped PGN.
type ChessComClient struct {
	client  *apiClient
	baseURL string
	logger  zerolog.Logger
	now     func() time.Time
}

func NewChessComClient(cfg *config.Config, logger zerolog.Logger) *ChessComClient {
	return &ChessComClient{
		client:  newAPIClient(cfg, logger),
		baseURL: cfg.ChessComBaseURL,
		logger:  logger.With().Str("source", string(domain.PlatformChessCom)).Logger(),
		now:     time.Now,
	}
}

func (c *ChessComClient) Platform() domain.Platform {
	return domain.PlatformChessCom
}

type chessComProfile struct {
	Joined int64 `json:"joined"`
}

type chessComArchives struct {
	Archives []string `json:"archives"`
}

type chessComGame struct {
	PGN         string `json:"pgn"`
	Rules       string `json:"rules"`
	TimeControl string `json:"time_control"`
}

type chessComMonth struct {
	Games []chessComGame `json:"games"`
}

type yearMonth struct {
	year  int
	month time.Month
}

// FetchGames enumerates every monthly bucket overlapping the window in
// chronological order and stops issuing requests once maxGames is reached.
// Missing or blocked accounts yield an empty result, not an error.
func (c *ChessComClient) FetchGames(ctx context.Context, username string, window domain.TimeWindow, maxGames int, timeControls []domain.TimeControl) ([]string, error) {
	now := c.now()

	// The profile lookup gates the whole fetch; failing it is the attempt
	// failing, not evidence the account is gone. Only 404/403 mean that.
	body, _, err := c.client.get(ctx, fmt.Sprintf("%s/player/%s", c.baseURL, username), "application/json")
	if err != nil {
		c.logger.Error().Err(err).Str("username", username).Msg("profile request failed")
		return nil, fmt.Errorf("chess.com profile for %s: %w", username, err)
	}
	if len(body) == 0 {
		c.logger.Info().Str("username", username).Msg("user not found or access forbidden")
		return nil, nil
	}

	var profile chessComProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		c.logger.Warn().Err(err).Str("username", username).Msg("unreadable profile response")
		return nil, nil
	}

	var months []yearMonth
	if start, ok := window.Start(now); ok {
		months = monthsBetween(start, now)
	} else {
		months = c.archiveMonths(ctx, username)
		if len(months) == 0 {
			joined := time.Unix(profile.Joined, 0)
			months = monthsBetween(joined, now)
		}
	}

	var games []string
	for _, ym := range months {
		monthGames, err := c.fetchMonth(ctx, username, ym, timeControls)
		if err != nil {
			return games, err
		}
		games = append(games, monthGames...)
		if maxGames > 0 && len(games) >= maxGames {
			return games[:maxGames], nil
		}
	}
	return games, nil
}

// archiveMonths resolves the account's full archive index for the
// all-available window.
func (c *ChessComClient) archiveMonths(ctx context.Context, username string) []yearMonth {
	body, _, err := c.client.get(ctx, fmt.Sprintf("%s/player/%s/games/archives", c.baseURL, username), "application/json")
	if err != nil || len(body) == 0 {
		return nil
	}

	var index chessComArchives
	if err := json.Unmarshal(body, &index); err != nil {
		return nil
	}

	var months []yearMonth
	for _, u := range index.Archives {
		// Archive locators end in .../games/{yyyy}/{mm}.
		parts := strings.Split(strings.TrimRight(u, "/"), "/")
		if len(parts) < 2 {
			continue
		}
		year, err1 := strconv.Atoi(parts[len(parts)-2])
		month, err2 := strconv.Atoi(parts[len(parts)-1])
		if err1 != nil || err2 != nil || month < 1 || month > 12 {
			continue
		}
		months = append(months, yearMonth{year: year, month: time.Month(month)})
	}

	sort.Slice(months, func(i, j int) bool {
		if months[i].year != months[j].year {
			return months[i].year < months[j].year
		}
		return months[i].month < months[j].month
	})
	return months
}

func (c *ChessComClient) fetchMonth(ctx context.Context, username string, ym yearMonth, timeControls []domain.TimeControl) ([]string, error) {
	url := fmt.Sprintf("%s/player/%s/games/%d/%02d", c.baseURL, username, ym.year, int(ym.month))

	body, _, err := c.client.get(ctx, url, "application/json")
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn().Err(err).Str("url", url).Msg("monthly bucket request failed, skipping month")
		return nil, nil
	}
	if len(body) == 0 {
		return nil, nil
	}

	var bucket chessComMonth
	if err := json.Unmarshal(body, &bucket); err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("unreadable monthly bucket, skipping month")
		return nil, nil
	}

	var games []string
	for _, g := range bucket.Games {
		if g.PGN == "" {
			continue
		}
		if g.Rules != "" && g.Rules != "chess" {
			continue
		}

		parsed, perr := pgn.Parse(g.PGN)
		if perr == nil && pgn.IsVariant(parsed) {
			continue
		}
		if perr != nil && strings.Contains(g.PGN, `[Variant "`) {
			continue
		}

		if len(timeControls) > 0 {
			cat, ok := pgn.ClassifyTimeControl(g.TimeControl)
			if !ok && parsed != nil && perr == nil {
				cat = pgn.Classify(parsed)
				ok = true
			}
			if !ok || !pgn.MatchesFilter(cat, timeControls) {
				continue
			}
		}

		games = append(games, g.PGN)
	}
	return games, nil
}

// monthsBetween lists every month whose bucket can overlap [start, end],
// inclusive of both endpoints, in chronological order.
func monthsBetween(start, end time.Time) []yearMonth {
	if end.Before(start) {
		return nil
	}
	var months []yearMonth
	year, month := start.Year(), start.Month()
	for year < end.Year() || (year == end.Year() && month <= end.Month()) {
		months = append(months, yearMonth{year: year, month: month})
		month++
		if month > 12 {
			month = 1
			year++
		}
	}
	return months
}
