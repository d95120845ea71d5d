package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chess-archiver/internal/domain"
)

type TaskRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewTaskRepository(sqlDB *sql.DB, logger zerolog.Logger) *TaskRepository {
	return &TaskRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Upsert stores the task definition, replacing any previous schedule for the
// same player. Child rows are rewritten wholesale so the stored lists always
// match the latest definition, and a previously removed task comes back
// active.
func (r *TaskRepository) Upsert(ctx context.Context, task *domain.ScheduledTask) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (job_id, fide_id, player_name, day_of_month, hour, max_games, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT (job_id) DO UPDATE SET
			player_name = excluded.player_name,
			day_of_month = excluded.day_of_month,
			hour = excluded.hour,
			max_games = excluded.max_games,
			is_active = 1,
			updated_at = CURRENT_TIMESTAMP`,
		task.JobID, task.FideID, task.PlayerName, task.DayOfMonth, task.Hour, task.MaxGames)
	if err != nil {
		return fmt.Errorf("failed to upsert scheduled task %s: %w", task.JobID, err)
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM scheduled_task_platforms WHERE job_id = ?`, task.JobID); err != nil {
		return fmt.Errorf("failed to clear task platforms: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM scheduled_task_time_controls WHERE job_id = ?`, task.JobID); err != nil {
		return fmt.Errorf("failed to clear task time controls: %w", err)
	}

	for _, platform := range task.Platforms {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO scheduled_task_platforms (job_id, platform) VALUES (?, ?)`,
			task.JobID, string(platform)); err != nil {
			return fmt.Errorf("failed to insert task platform: %w", err)
		}
	}
	for _, tc := range task.TimeControls {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO scheduled_task_time_controls (job_id, time_control) VALUES (?, ?)`,
			task.JobID, string(tc)); err != nil {
			return fmt.Errorf("failed to insert task time control: %w", err)
		}
	}

	return tx.Commit()
}

// ListActive returns every active task with its child lists loaded, ready for
// scheduler registration.
func (r *TaskRepository) ListActive(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT job_id, fide_id, player_name, day_of_month, hour, max_games, is_active, last_run
		FROM scheduled_tasks WHERE is_active = 1
		ORDER BY player_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.ScheduledTask
	for rows.Next() {
		var t domain.ScheduledTask
		if err := rows.Scan(&t.JobID, &t.FideID, &t.PlayerName, &t.DayOfMonth,
			&t.Hour, &t.MaxGames, &t.IsActive, &t.LastRun); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tasks {
		if err := r.loadChildren(ctx, &tasks[i]); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

func (r *TaskRepository) Get(ctx context.Context, jobID string) (*domain.ScheduledTask, error) {
	var t domain.ScheduledTask
	err := r.db.QueryRowContext(ctx, `
		SELECT job_id, fide_id, player_name, day_of_month, hour, max_games, is_active, last_run
		FROM scheduled_tasks WHERE job_id = ?`, jobID).
		Scan(&t.JobID, &t.FideID, &t.PlayerName, &t.DayOfMonth, &t.Hour, &t.MaxGames, &t.IsActive, &t.LastRun)
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkRun records when the task last fired, so a restart shortly after a
// firing does not replay it as a misfire.
func (r *TaskRepository) MarkRun(ctx context.Context, jobID string, ranAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET last_run = ?, updated_at = CURRENT_TIMESTAMP
		WHERE job_id = ?`, ranAt, jobID)
	if err != nil {
		return fmt.Errorf("failed to mark task %s as run: %w", jobID, err)
	}
	return nil
}

// Deactivate marks the task removed. The row and its history stay.
func (r *TaskRepository) Deactivate(ctx context.Context, jobID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_tasks SET is_active = 0, updated_at = CURRENT_TIMESTAMP
		WHERE job_id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to deactivate task %s: %w", jobID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *TaskRepository) loadChildren(ctx context.Context, task *domain.ScheduledTask) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT platform FROM scheduled_task_platforms
		WHERE job_id = ? ORDER BY platform`, task.JobID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var platform string
		if err := rows.Scan(&platform); err != nil {
			return err
		}
		task.Platforms = append(task.Platforms, domain.Platform(platform))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	tcRows, err := r.db.QueryContext(ctx, `
		SELECT time_control FROM scheduled_task_time_controls
		WHERE job_id = ? ORDER BY time_control`, task.JobID)
	if err != nil {
		return err
	}
	defer tcRows.Close()
	for tcRows.Next() {
		var tc string
		if err := tcRows.Scan(&tc); err != nil {
			return err
		}
		task.TimeControls = append(task.TimeControls, domain.TimeControl(tc))
	}
	return tcRows.Err()
}
