package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chess-archiver/internal/constants"
	"chess-archiver/internal/domain"
	"chess-archiver/internal/repository"
	"chess-archiver/internal/scheduler"
)

type ScheduleService struct {
	tasks     *repository.TaskRepository
	sched     *scheduler.Scheduler
	collector *CollectorService
	logger    zerolog.Logger
	now       func() time.Time
}

func NewScheduleService(tasks *repository.TaskRepository, sched *scheduler.Scheduler, collector *CollectorService, logger zerolog.Logger) *ScheduleService {
	return &ScheduleService{
		tasks:     tasks,
		sched:     sched,
		collector: collector,
		logger:    logger,
		now:       time.Now,
	}
}

// Create validates the definition, stores it, and installs the monthly job.
// The job ID derives from the FIDE ID, so scheduling a player twice replaces
// the earlier schedule on both sides.
func (s *ScheduleService) Create(ctx context.Context, task *domain.ScheduledTask) error {
	if task.FideID == "" {
		return fmt.Errorf("fide_id is required")
	}
	if task.DayOfMonth < 1 || task.DayOfMonth > 28 {
		return fmt.Errorf("day_of_month must be between 1 and 28, got %d", task.DayOfMonth)
	}
	if task.Hour < 0 || task.Hour > 23 {
		return fmt.Errorf("hour must be between 0 and 23, got %d", task.Hour)
	}
	if len(task.Platforms) == 0 {
		return fmt.Errorf("at least one platform is required")
	}
	for _, p := range task.Platforms {
		if !p.Valid() {
			return fmt.Errorf("unknown platform %q", p)
		}
	}

	task.JobID = domain.TaskJobID(task.FideID)
	task.IsActive = true

	if err := s.tasks.Upsert(ctx, task); err != nil {
		return err
	}
	return s.register(task)
}

// Remove deactivates the player's schedule and drops the live job.
func (s *ScheduleService) Remove(ctx context.Context, fideID string) error {
	jobID := domain.TaskJobID(fideID)
	if err := s.tasks.Deactivate(ctx, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no schedule exists for player %s", fideID)
		}
		return err
	}
	s.sched.Remove(jobID)
	return nil
}

// Clear deactivates every schedule. One bad row does not stop the sweep; the
// first error is reported after everything removable is removed.
func (s *ScheduleService) Clear(ctx context.Context) (int, error) {
	active, err := s.tasks.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	var firstErr error
	for _, task := range active {
		if err := s.tasks.Deactivate(ctx, task.JobID); err != nil {
			s.logger.Error().Err(err).Str("job_id", task.JobID).Msg("failed to deactivate task")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed++
	}
	s.sched.RemoveAll()
	return removed, firstErr
}

func (s *ScheduleService) List(ctx context.Context) ([]domain.ScheduledTask, error) {
	return s.tasks.ListActive(ctx)
}

// Restore re-registers every active task after a restart. A firing that was
// due within the misfire grace window while the process was down runs once
// immediately instead of waiting a month; a firing the task already ran
// (last_run at or after the due instant) is not replayed.
func (s *ScheduleService) Restore(ctx context.Context) error {
	active, err := s.tasks.ListActive(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	for _, task := range active {
		if err := s.register(&task); err != nil {
			s.logger.Error().Err(err).Str("job_id", task.JobID).Msg("failed to restore task")
			continue
		}

		due := scheduler.LastScheduledAt(now, task.DayOfMonth, task.Hour)
		missed := now.Sub(due) <= constants.MisfireGraceWindow &&
			(task.LastRun == nil || task.LastRun.Before(due))
		if missed {
			s.logger.Info().
				Str("job_id", task.JobID).
				Time("was_due", due).
				Msg("running missed firing within grace window")
			go s.runTask(task)
		}
	}

	s.logger.Info().Int("tasks", len(active)).Msg("schedules restored")
	return nil
}

func (s *ScheduleService) register(task *domain.ScheduledTask) error {
	t := *task
	return s.sched.Register(t.JobID, t.DayOfMonth, t.Hour, func() {
		s.runTask(t)
	})
}

// runTask is one scheduled firing: a last-month collection per platform.
// The firing is marked before collecting so a crash mid-run is not replayed.
func (s *ScheduleService) runTask(task domain.ScheduledTask) {
	ctx := context.Background()
	if err := s.tasks.MarkRun(ctx, task.JobID, s.now()); err != nil {
		s.logger.Warn().Err(err).Str("job_id", task.JobID).Msg("failed to record firing time")
	}
	for _, platform := range task.Platforms {
		result, err := s.collector.Collect(ctx, &domain.CollectionRequest{
			FideID:       task.FideID,
			Platform:     platform,
			Window:       domain.WindowLastMonth,
			MaxGames:     task.MaxGames,
			TimeControls: task.TimeControls,
		})
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("job_id", task.JobID).
				Str("platform", string(platform)).
				Msg("scheduled collection failed")
			continue
		}
		s.logger.Info().
			Str("job_id", task.JobID).
			Str("platform", string(platform)).
			Str("status", string(result.Status)).
			Int("saved", result.GamesSaved).
			Msg("scheduled collection finished")
	}
}
