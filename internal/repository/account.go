package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"chess-archiver/internal/domain"
)

type AccountRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewAccountRepository(sqlDB *sql.DB, logger zerolog.Logger) *AccountRepository {
	return &AccountRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Upsert links a username to a (player, platform) slot. New links start
// active with a zero count; only a collection cycle that finds no games may
// mark an account inactive. Re-linking an existing slot changes the username
// only and keeps the accumulated counters.
func (r *AccountRepository) Upsert(ctx context.Context, fideID string, platform domain.Platform, username string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO platform_accounts (fide_id, platform, username, is_active)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (fide_id, platform) DO UPDATE SET
			username = excluded.username`,
		fideID, string(platform), username)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s/%s: %w", fideID, platform, err)
	}
	return nil
}

func (r *AccountRepository) Get(ctx context.Context, fideID string, platform domain.Platform) (*domain.PlatformAccount, error) {
	var a domain.PlatformAccount
	var platformStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT fide_id, platform, username, is_active, last_update, total_games
		FROM platform_accounts WHERE fide_id = ? AND platform = ?`,
		fideID, string(platform)).
		Scan(&a.FideID, &platformStr, &a.Username, &a.IsActive, &a.LastUpdate, &a.TotalGames)
	if err != nil {
		return nil, err
	}
	a.Platform = domain.Platform(platformStr)
	return &a, nil
}

// ListInactive returns every account whose most recent collection found no
// games, across both platforms.
func (r *AccountRepository) ListInactive(ctx context.Context) ([]domain.InactiveAccount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.fide_id, p.name, a.platform, a.username, a.last_update, a.total_games
		FROM platform_accounts a
		JOIN players p ON p.fide_id = a.fide_id
		WHERE a.is_active = 0
		ORDER BY p.name, a.platform`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.InactiveAccount
	for rows.Next() {
		var a domain.InactiveAccount
		var platformStr string
		if err := rows.Scan(&a.FideID, &a.PlayerName, &platformStr, &a.Username,
			&a.LastUpdate, &a.TotalGames); err != nil {
			return nil, err
		}
		a.Platform = domain.Platform(platformStr)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
