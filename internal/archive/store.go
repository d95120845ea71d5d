// Package archive materializes normalized games as time-bucketed PGN files
// on durable storage, one file per (player, platform, year, month), alongside
// a per-player liveness summary.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chess-archiver/internal/config"
	"chess-archiver/internal/domain"
	"chess-archiver/internal/pgn"
)

// LastUpdateLayout matches the summary's timestamp strings. Platform
// summaries are merged most-recent-wins by string comparison of these
// values; that comparison is not timezone-aware (known limitation).
const LastUpdateLayout = "2006-01-02 15:04:05"

type PlatformSummary struct {
	LastUpdate string `json:"last_update"`
	TotalGames int    `json:"total_games"`
	IsActive   bool   `json:"is_active"`
}

type PlayerSummary struct {
	FideID    string                               `json:"fide_id"`
	Name      string                               `json:"name"`
	Platforms map[domain.Platform]*PlatformSummary `json:"platforms"`
}

type Store struct {
	root   string
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(cfg *config.Config, logger zerolog.Logger) *Store {
	return &Store{
		root:   cfg.DataDir,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Root returns the archive root directory.
func (s *Store) Root() string {
	return s.root
}

// keyLock serializes bucket and summary writes per (fide_id, platform) so a
// scheduled firing and a manual run for the same account cannot interleave.
// Different accounts proceed in parallel.
func (s *Store) keyLock(fideID string, platform domain.Platform) *sync.Mutex {
	key := fideID + "|" + string(platform)
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[key] = l
	return l
}

// Persist writes the cycle's games into their (year, month) buckets and
// updates the player summary. Each bucket write replaces the file's entire
// prior content. A cycle with zero games leaves existing buckets untouched:
// inactivity never deletes previously archived games. All bucket writes
// precede the summary update; a failed write leaves the summary unchanged.
func (s *Store) Persist(ctx context.Context, games []string, platform domain.Platform, playerName, fideID string, accountActive bool) (int, error) {
	lock := s.keyLock(fideID, platform)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	saved := 0
	if len(games) > 0 {
		buckets := s.bucketGames(games)
		for ym, bucket := range buckets {
			if err := s.writeBucket(fideID, platform, ym, bucket); err != nil {
				return 0, fmt.Errorf("writing bucket %s: %w", ym, err)
			}
			saved += len(bucket)
		}
	}

	if err := s.updateSummary(fideID, playerName, platform, saved, accountActive); err != nil {
		return 0, fmt.Errorf("updating player summary: %w", err)
	}

	s.logger.Info().
		Str("fide_id", fideID).
		Str("platform", string(platform)).
		Int("saved", saved).
		Bool("active", accountActive).
		Msg("archive updated")
	return saved, nil
}

// bucketGames groups games by the year/month of their Date header, falling
// back to the collection date for missing or partial dates.
func (s *Store) bucketGames(games []string) map[string][]string {
	now := s.now()
	fallback := fmt.Sprintf("%04d-%02d", now.Year(), int(now.Month()))

	buckets := make(map[string][]string)
	for _, game := range games {
		ym := fallback
		if g, err := pgn.Parse(game); err == nil {
			if date, ok := g.Tag("Date"); ok {
				if parsed, ok := yearMonthFromDate(date); ok {
					ym = parsed
				}
			}
		}
		buckets[ym] = append(buckets[ym], game)
	}
	return buckets
}

// yearMonthFromDate extracts "YYYY-MM" from a PGN date tag ("2024.03.15");
// unknown segments ("????.??.??") are rejected.
func yearMonthFromDate(date string) (string, bool) {
	parts := strings.Split(strings.ReplaceAll(date, "-", "."), ".")
	if len(parts) < 2 {
		return "", false
	}
	year, month := parts[0], parts[1]
	if len(year) != 4 || len(month) == 0 || len(month) > 2 {
		return "", false
	}
	for _, r := range year + month {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	if len(month) == 1 {
		month = "0" + month
	}
	if month < "01" || month > "12" {
		return "", false
	}
	return year + "-" + month, true
}

func (s *Store) bucketPath(fideID string, platform domain.Platform, ym string) string {
	year := ym[:4]
	return filepath.Join(s.root, "players", fideID, string(platform), year, ym+".pgn")
}

// writeBucket full-replaces one bucket file atomically via temp file + rename.
func (s *Store) writeBucket(fideID string, platform domain.Platform, ym string, games []string) error {
	path := s.bucketPath(fideID, platform, ym)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var b strings.Builder
	for _, game := range games {
		b.WriteString(strings.TrimRight(game, "\n"))
		b.WriteString("\n\n")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) summaryPath(fideID string) string {
	return filepath.Join(s.root, "players", fideID, "player_info.json")
}

// Summary reads the per-player summary record.
func (s *Store) Summary(fideID string) (*PlayerSummary, error) {
	data, err := os.ReadFile(s.summaryPath(fideID))
	if err != nil {
		return nil, err
	}
	var summary PlayerSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, err
	}
	if summary.Platforms == nil {
		summary.Platforms = make(map[domain.Platform]*PlatformSummary)
	}
	return &summary, nil
}

// updateSummary applies exactly one summary update for the attempt:
// last_update always, total_games incremented by newly saved games (never
// replaced wholesale), is_active from whether this cycle fetched anything.
func (s *Store) updateSummary(fideID, playerName string, platform domain.Platform, saved int, accountActive bool) error {
	summary, err := s.Summary(fideID)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		summary = &PlayerSummary{
			FideID:    fideID,
			Name:      playerName,
			Platforms: make(map[domain.Platform]*PlatformSummary),
		}
	}
	if playerName != "" {
		summary.Name = playerName
	}

	entry, ok := summary.Platforms[platform]
	if !ok {
		entry = &PlatformSummary{}
		summary.Platforms[platform] = entry
	}
	entry.LastUpdate = s.now().Format(LastUpdateLayout)
	entry.TotalGames += saved
	entry.IsActive = accountActive

	path := s.summaryPath(fideID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".player_info.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
