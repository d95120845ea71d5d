package archive

import (
	"os"
	"path/filepath"
	"strings"

	"chess-archiver/internal/domain"
	"chess-archiver/internal/pgn"
)

type Stats struct {
	TotalPlayers     int                     `json:"total_players"`
	TotalGames       int                     `json:"total_games"`
	GamesByPlatform  map[domain.Platform]int `json:"games_by_platform"`
	GamesByYear      map[string]int          `json:"games_by_year"`
	Outcomes         map[pgn.Outcome]int     `json:"outcomes"`
	ActiveAccounts   map[domain.Platform]int `json:"active_accounts"`
	InactiveAccounts map[domain.Platform]int `json:"inactive_accounts"`
	Players          []PlayerArchiveView     `json:"players"`
}

// PlayerArchiveView is one player's archive summary, with the per-platform
// figures merged into a single last-update (most-recent-wins by string
// comparison of the stored timestamps).
type PlayerArchiveView struct {
	FideID     string                               `json:"fide_id"`
	Name       string                               `json:"name"`
	LastUpdate string                               `json:"last_update"`
	Platforms  map[domain.Platform]*PlatformSummary `json:"platforms"`
}

// CollectStats walks the archive tree and aggregates the summaries. Bucket
// files are re-parsed for the per-year and outcome breakdowns; counters come
// from the summaries.
func (s *Store) CollectStats() (*Stats, error) {
	stats := &Stats{
		GamesByPlatform:  make(map[domain.Platform]int),
		GamesByYear:      make(map[string]int),
		Outcomes:         make(map[pgn.Outcome]int),
		ActiveAccounts:   make(map[domain.Platform]int),
		InactiveAccounts: make(map[domain.Platform]int),
	}

	playersDir := filepath.Join(s.root, "players")
	entries, err := os.ReadDir(playersDir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		fideID := entry.Name()
		summary, err := s.Summary(fideID)
		if err != nil {
			s.logger.Warn().Err(err).Str("fide_id", fideID).Msg("skipping unreadable player summary")
			continue
		}

		stats.TotalPlayers++
		view := PlayerArchiveView{
			FideID:    summary.FideID,
			Name:      summary.Name,
			Platforms: summary.Platforms,
		}

		for platform, ps := range summary.Platforms {
			stats.TotalGames += ps.TotalGames
			stats.GamesByPlatform[platform] += ps.TotalGames
			if ps.IsActive {
				stats.ActiveAccounts[platform]++
			} else {
				stats.InactiveAccounts[platform]++
			}
			if ps.LastUpdate > view.LastUpdate {
				view.LastUpdate = ps.LastUpdate
			}

			s.aggregateBuckets(fideID, platform, stats)
		}

		stats.Players = append(stats.Players, view)
	}
	return stats, nil
}

func (s *Store) aggregateBuckets(fideID string, platform domain.Platform, stats *Stats) {
	platformDir := filepath.Join(s.root, "players", fideID, string(platform))
	years, err := os.ReadDir(platformDir)
	if err != nil {
		return
	}
	for _, year := range years {
		if !year.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(platformDir, year.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if !strings.HasSuffix(f.Name(), ".pgn") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(platformDir, year.Name(), f.Name()))
			if err != nil {
				continue
			}
			for _, game := range pgn.Split(string(data)) {
				stats.GamesByYear[year.Name()]++
				meta, err := pgn.ExtractMetadata(game)
				if err != nil {
					stats.Outcomes[pgn.OutcomeUnknown]++
					continue
				}
				stats.Outcomes[meta.Outcome]++
			}
		}
	}
}
