package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"chess-archiver/internal/constants"
	"chess-archiver/internal/domain"
)

type CollectionLogRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewCollectionLogRepository(sqlDB *sql.DB, logger zerolog.Logger) *CollectionLogRepository {
	return &CollectionLogRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// CollectionStats aggregates the audit trail for the dashboard.
type CollectionStats struct {
	TotalCollections  int                             `json:"total_collections"`
	TotalGames        int                             `json:"total_games"`
	ByPlatform        map[domain.Platform]int         `json:"by_platform"`
	ByStatus          map[domain.CollectionStatus]int `json:"by_status"`
	RecentCollections []domain.CollectionLogEntry     `json:"recent_collections"`
}

// Record appends one audit entry and applies the attempt's outcome to the
// account row in the same transaction. A success marks the account active and
// adds the saved games to the running total; an inactive outcome marks it
// inactive; an error leaves the activity flag as it was.
func (r *CollectionLogRepository) Record(ctx context.Context, entry *domain.CollectionLogEntry) error {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to generate log id: %w", err)
	}
	entry.ID = id

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO collection_logs (id, fide_id, platform, time_period, games_count, status, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.FideID, string(entry.Platform), string(entry.TimePeriod),
		entry.GamesCount, string(entry.Status), entry.ErrorMessage)
	if err != nil {
		return fmt.Errorf("failed to insert collection log: %w", err)
	}

	for _, tc := range entry.TimeControls {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO collection_log_time_controls (log_id, time_control) VALUES (?, ?)`,
			entry.ID, string(tc))
		if err != nil {
			return fmt.Errorf("failed to insert log time control: %w", err)
		}
	}

	now := time.Now().UTC()
	switch entry.Status {
	case domain.StatusSuccess:
		_, err = tx.ExecContext(ctx, `
			UPDATE platform_accounts
			SET is_active = 1, total_games = total_games + ?, last_update = ?
			WHERE fide_id = ? AND platform = ?`,
			entry.GamesCount, now, entry.FideID, string(entry.Platform))
	case domain.StatusInactive:
		_, err = tx.ExecContext(ctx, `
			UPDATE platform_accounts
			SET is_active = 0, last_update = ?
			WHERE fide_id = ? AND platform = ?`,
			now, entry.FideID, string(entry.Platform))
	default:
		// Transport errors say nothing about whether the account plays;
		// only last_update moves.
		_, err = tx.ExecContext(ctx, `
			UPDATE platform_accounts
			SET last_update = ?
			WHERE fide_id = ? AND platform = ?`,
			now, entry.FideID, string(entry.Platform))
	}
	if err != nil {
		return fmt.Errorf("failed to apply collection outcome: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit collection log: %w", err)
	}

	r.logger.Debug().
		Str("log_id", entry.ID).
		Str("fide_id", entry.FideID).
		Str("platform", string(entry.Platform)).
		Str("status", string(entry.Status)).
		Int("games", entry.GamesCount).
		Msg("collection recorded")
	return nil
}

// Stats summarizes the audit trail, including the most recent entries.
func (r *CollectionLogRepository) Stats(ctx context.Context) (*CollectionStats, error) {
	stats := &CollectionStats{
		ByPlatform: make(map[domain.Platform]int),
		ByStatus:   make(map[domain.CollectionStatus]int),
	}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(games_count), 0) FROM collection_logs`).
		Scan(&stats.TotalCollections, &stats.TotalGames)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT platform, COUNT(*) FROM collection_logs GROUP BY platform`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var platform string
		var count int
		if err := rows.Scan(&platform, &count); err != nil {
			return nil, err
		}
		stats.ByPlatform[domain.Platform(platform)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	statusRows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM collection_logs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer statusRows.Close()
	for statusRows.Next() {
		var status string
		var count int
		if err := statusRows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[domain.CollectionStatus(status)] = count
	}
	if err := statusRows.Err(); err != nil {
		return nil, err
	}

	recent, err := r.recent(ctx, constants.RecentCollectionsLimit)
	if err != nil {
		return nil, err
	}
	stats.RecentCollections = recent
	return stats, nil
}

func (r *CollectionLogRepository) recent(ctx context.Context, limit int) ([]domain.CollectionLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, fide_id, platform, time_period, games_count, status, error_message, created_at
		FROM collection_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.CollectionLogEntry
	for rows.Next() {
		var e domain.CollectionLogEntry
		var platform, period, status string
		if err := rows.Scan(&e.ID, &e.FideID, &platform, &period, &e.GamesCount,
			&status, &e.ErrorMessage, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Platform = domain.Platform(platform)
		e.TimePeriod = domain.TimeWindow(period)
		e.Status = domain.CollectionStatus(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		tcs, err := r.timeControls(ctx, entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].TimeControls = tcs
	}
	return entries, nil
}

func (r *CollectionLogRepository) timeControls(ctx context.Context, logID string) ([]domain.TimeControl, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT time_control FROM collection_log_time_controls
		WHERE log_id = ? ORDER BY time_control`, logID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tcs []domain.TimeControl
	for rows.Next() {
		var tc string
		if err := rows.Scan(&tc); err != nil {
			return nil, err
		}
		tcs = append(tcs, domain.TimeControl(tc))
	}
	return tcs, rows.Err()
}
