package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"chess-archiver/internal/domain"
	"chess-archiver/internal/repository"
)

type RosterService struct {
	players  *repository.PlayerRepository
	accounts *repository.AccountRepository
	logger   zerolog.Logger
}

func NewRosterService(players *repository.PlayerRepository, accounts *repository.AccountRepository, logger zerolog.Logger) *RosterService {
	return &RosterService{
		players:  players,
		accounts: accounts,
		logger:   logger,
	}
}

// Import validates and applies a roster batch. Validation rejects the whole
// batch before anything is written, so a bad row never leaves a partial
// import behind.
func (s *RosterService) Import(ctx context.Context, rows []domain.RosterRow) (int, error) {
	if len(rows) == 0 {
		return 0, fmt.Errorf("empty roster")
	}

	seen := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		if row.FideID == "" {
			return 0, fmt.Errorf("row %d: fide_id is required", i)
		}
		if row.Name == "" {
			return 0, fmt.Errorf("row %d: name is required", i)
		}
		if _, dup := seen[row.FideID]; dup {
			return 0, fmt.Errorf("row %d: duplicate fide_id %s", i, row.FideID)
		}
		seen[row.FideID] = struct{}{}
	}

	for _, row := range rows {
		player := &domain.Player{
			FideID:     row.FideID,
			Name:       row.Name,
			Rating:     row.Rating,
			Title:      row.Title,
			Federation: row.Federation,
			BirthYear:  row.BirthYear,
		}
		if err := s.players.Upsert(ctx, player); err != nil {
			return 0, err
		}
		if row.ChessComUsername != "" {
			if err := s.accounts.Upsert(ctx, row.FideID, domain.PlatformChessCom, row.ChessComUsername); err != nil {
				return 0, err
			}
		}
		if row.LichessUsername != "" {
			if err := s.accounts.Upsert(ctx, row.FideID, domain.PlatformLichess, row.LichessUsername); err != nil {
				return 0, err
			}
		}
	}

	s.logger.Info().Int("players", len(rows)).Msg("roster imported")
	return len(rows), nil
}

func (s *RosterService) Players(ctx context.Context) ([]domain.RosterEntry, error) {
	return s.players.List(ctx)
}

func (s *RosterService) InactiveAccounts(ctx context.Context) ([]domain.InactiveAccount, error) {
	return s.accounts.ListInactive(ctx)
}
