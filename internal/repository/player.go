// Package repository holds the SQL access layer. Queries are written against
// SQLite and keep list-valued fields in child tables rather than serialized
// blobs.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"chess-archiver/internal/domain"
)

type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Upsert inserts the player or refreshes its descriptive attributes. Re-import
// is the supported way to correct roster data, so every attribute column is
// overwritten.
func (r *PlayerRepository) Upsert(ctx context.Context, player *domain.Player) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO players (fide_id, name, rating, title, federation, birth_year)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (fide_id) DO UPDATE SET
			name = excluded.name,
			rating = excluded.rating,
			title = excluded.title,
			federation = excluded.federation,
			birth_year = excluded.birth_year,
			updated_at = CURRENT_TIMESTAMP`,
		player.FideID, player.Name, player.Rating, player.Title, player.Federation, player.BirthYear)
	if err != nil {
		return fmt.Errorf("failed to upsert player %s: %w", player.FideID, err)
	}
	return nil
}

func (r *PlayerRepository) Get(ctx context.Context, fideID string) (*domain.Player, error) {
	var p domain.Player
	err := r.db.QueryRowContext(ctx, `
		SELECT fide_id, name, rating, title, federation, birth_year
		FROM players WHERE fide_id = ?`, fideID).
		Scan(&p.FideID, &p.Name, &p.Rating, &p.Title, &p.Federation, &p.BirthYear)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns the full roster with the linked usernames per platform.
func (r *PlayerRepository) List(ctx context.Context) ([]domain.RosterEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.fide_id, p.name, p.rating, p.title, p.federation, p.birth_year,
			COALESCE(cc.username, ''), COALESCE(li.username, '')
		FROM players p
		LEFT JOIN platform_accounts cc ON cc.fide_id = p.fide_id AND cc.platform = ?
		LEFT JOIN platform_accounts li ON li.fide_id = p.fide_id AND li.platform = ?
		ORDER BY p.name`,
		string(domain.PlatformChessCom), string(domain.PlatformLichess))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.RosterEntry
	for rows.Next() {
		var e domain.RosterEntry
		if err := rows.Scan(&e.FideID, &e.Name, &e.Rating, &e.Title, &e.Federation,
			&e.BirthYear, &e.ChessComUsername, &e.LichessUsername); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
