// Package scheduler wraps the cron runtime behind the small surface the
// collection services need: monthly jobs keyed by a stable job ID, with
// replace-on-register semantics.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Scheduler struct {
	sched  gocron.Scheduler
	logger zerolog.Logger

	mu   sync.Mutex
	jobs map[string]uuid.UUID
}

func New(logger zerolog.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{
		sched:  sched,
		logger: logger,
		jobs:   make(map[string]uuid.UUID),
	}, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	s.logger.Info().Msg("scheduler started")
}

func (s *Scheduler) Stop() error {
	return s.sched.Shutdown()
}

// Register installs a monthly job firing on dayOfMonth at hour:00. A job
// already registered under the same ID is replaced, never duplicated.
func (s *Scheduler) Register(jobID string, dayOfMonth, hour int, run func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[jobID]; ok {
		if err := s.sched.RemoveJob(existing); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to remove superseded job")
		}
		delete(s.jobs, jobID)
	}

	job, err := s.sched.NewJob(
		gocron.MonthlyJob(
			1,
			gocron.NewDaysOfTheMonth(dayOfMonth),
			gocron.NewAtTimes(gocron.NewAtTime(uint(hour), 0, 0)),
		),
		gocron.NewTask(run),
		gocron.WithName(jobID),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", jobID, err)
	}

	s.jobs[jobID] = job.ID()
	s.logger.Info().
		Str("job_id", jobID).
		Int("day_of_month", dayOfMonth).
		Int("hour", hour).
		Msg("monthly job registered")
	return nil
}

// Remove drops the job if present. Removing an unknown ID is a no-op so
// callers can clear eagerly.
func (s *Scheduler) Remove(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.jobs[jobID]
	if !ok {
		return
	}
	if err := s.sched.RemoveJob(id); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to remove job")
	}
	delete(s.jobs, jobID)
}

func (s *Scheduler) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for jobID, id := range s.jobs {
		if err := s.sched.RemoveJob(id); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to remove job")
		}
		delete(s.jobs, jobID)
	}
}

// Registered reports whether a job is currently installed under the ID.
func (s *Scheduler) Registered(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[jobID]
	return ok
}

// LastScheduledAt returns the most recent instant at or before now when a
// monthly job on dayOfMonth at hour:00 was due. Days are capped at 28 by
// validation, so the day exists in every month.
func LastScheduledAt(now time.Time, dayOfMonth, hour int) time.Time {
	due := time.Date(now.Year(), now.Month(), dayOfMonth, hour, 0, 0, 0, now.Location())
	if due.After(now) {
		due = due.AddDate(0, -1, 0)
	}
	return due
}
