// Package service implements the collection workflows on top of the platform
// clients, the PGN pipeline, the archive, and the SQL repositories.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"chess-archiver/internal/api"
	"chess-archiver/internal/archive"
	"chess-archiver/internal/constants"
	"chess-archiver/internal/domain"
	"chess-archiver/internal/pgn"
	"chess-archiver/internal/repository"
)

type CollectorService struct {
	sources    map[domain.Platform]api.GameSource
	players    *repository.PlayerRepository
	accounts   *repository.AccountRepository
	logs       *repository.CollectionLogRepository
	normalizer *pgn.Normalizer
	archive    *archive.Store
	logger     zerolog.Logger
}

func NewCollectorService(
	sources map[domain.Platform]api.GameSource,
	players *repository.PlayerRepository,
	accounts *repository.AccountRepository,
	logs *repository.CollectionLogRepository,
	normalizer *pgn.Normalizer,
	store *archive.Store,
	logger zerolog.Logger,
) *CollectorService {
	return &CollectorService{
		sources:    sources,
		players:    players,
		accounts:   accounts,
		logs:       logs,
		normalizer: normalizer,
		archive:    store,
		logger:     logger,
	}
}

// Collect runs one full collection cycle for a (player, platform) pair:
// fetch, normalize, archive, then record the outcome. The returned result is
// the complete account of the attempt; a fetch failure is reported as a
// result with error status, not as a Go error, so batch callers keep going.
func (s *CollectorService) Collect(ctx context.Context, req *domain.CollectionRequest) (*domain.CollectionResult, error) {
	if !req.Platform.Valid() {
		return nil, fmt.Errorf("unknown platform %q", req.Platform)
	}
	if !req.Window.Valid() {
		return nil, fmt.Errorf("unknown time window %q", req.Window)
	}

	player, err := s.players.Get(ctx, req.FideID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("player %s is not in the roster", req.FideID)
		}
		return nil, err
	}

	account, err := s.accounts.Get(ctx, req.FideID, req.Platform)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("player %s has no %s account", req.FideID, req.Platform)
		}
		return nil, err
	}

	result := &domain.CollectionResult{
		FideID:   req.FideID,
		Platform: req.Platform,
	}

	source := s.sources[req.Platform]
	raw, err := source.FetchGames(ctx, account.Username, req.Window, req.MaxGames, req.TimeControls)
	if err != nil {
		result.Status = domain.StatusError
		result.ErrorMessage = err.Error()
		s.logger.Error().
			Err(err).
			Str("fide_id", req.FideID).
			Str("platform", string(req.Platform)).
			Msg("collection failed")
		return result, s.record(ctx, req, result)
	}

	result.GamesFetched = len(raw)
	accountActive := len(raw) > 0

	normalized, dropped := s.normalizer.NormalizeBatch(raw, req.Platform, player.Name, account.Username, req.FideID)
	result.Dropped = dropped

	saved, err := s.archive.Persist(ctx, normalized, req.Platform, player.Name, req.FideID, accountActive)
	if err != nil {
		result.Status = domain.StatusError
		result.ErrorMessage = err.Error()
		return result, s.record(ctx, req, result)
	}
	result.GamesSaved = saved

	if accountActive {
		result.Status = domain.StatusSuccess
	} else {
		result.Status = domain.StatusInactive
	}

	s.logger.Info().
		Str("fide_id", req.FideID).
		Str("platform", string(req.Platform)).
		Str("status", string(result.Status)).
		Int("fetched", result.GamesFetched).
		Int("saved", result.GamesSaved).
		Int("dropped", result.Dropped).
		Msg("collection finished")
	return result, s.record(ctx, req, result)
}

func (s *CollectorService) record(ctx context.Context, req *domain.CollectionRequest, result *domain.CollectionResult) error {
	return s.logs.Record(ctx, &domain.CollectionLogEntry{
		FideID:       req.FideID,
		Platform:     req.Platform,
		TimePeriod:   req.Window,
		GamesCount:   result.GamesSaved,
		TimeControls: req.TimeControls,
		Status:       result.Status,
		ErrorMessage: result.ErrorMessage,
	})
}

// CollectBatch runs the requests with bounded parallelism. One player's
// failure never aborts the others; invalid requests come back as error
// results in the same positions as their inputs.
func (s *CollectorService) CollectBatch(ctx context.Context, reqs []*domain.CollectionRequest) []*domain.CollectionResult {
	results := make([]*domain.CollectionResult, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.BatchParallelism)
	for i, req := range reqs {
		g.Go(func() error {
			result, err := s.Collect(ctx, req)
			if err != nil {
				result = &domain.CollectionResult{
					FideID:       req.FideID,
					Platform:     req.Platform,
					Status:       domain.StatusError,
					ErrorMessage: err.Error(),
				}
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()
	return results
}
