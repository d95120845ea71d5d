package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chess-archiver/internal/config"
	"chess-archiver/internal/database"
	"chess-archiver/internal/domain"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{DBPath: filepath.Join(t.TempDir(), "test.db")}
	db, err := database.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func seedPlayer(t *testing.T, db *sql.DB, fideID, name string) {
	t.Helper()
	repo := NewPlayerRepository(db, zerolog.Nop())
	require.NoError(t, repo.Upsert(context.Background(), &domain.Player{FideID: fideID, Name: name}))
}

func TestPlayerRepository_UpsertAndGet(t *testing.T) {
	db := testDB(t)
	repo := NewPlayerRepository(db, zerolog.Nop())
	ctx := context.Background()

	player := &domain.Player{
		FideID:     "1503014",
		Name:       "Magnus Carlsen",
		Rating:     intPtr(2830),
		Title:      strPtr("GM"),
		Federation: strPtr("NOR"),
		BirthYear:  intPtr(1990),
	}
	require.NoError(t, repo.Upsert(ctx, player))

	got, err := repo.Get(ctx, "1503014")
	require.NoError(t, err)
	assert.Equal(t, player, got)

	// Re-import overwrites attributes, including clearing them.
	updated := &domain.Player{FideID: "1503014", Name: "M. Carlsen", Rating: intPtr(2835)}
	require.NoError(t, repo.Upsert(ctx, updated))

	got, err = repo.Get(ctx, "1503014")
	require.NoError(t, err)
	assert.Equal(t, "M. Carlsen", got.Name)
	assert.Equal(t, 2835, *got.Rating)
	assert.Nil(t, got.Title)
}

func TestPlayerRepository_ListJoinsUsernames(t *testing.T) {
	db := testDB(t)
	players := NewPlayerRepository(db, zerolog.Nop())
	accounts := NewAccountRepository(db, zerolog.Nop())
	ctx := context.Background()

	seedPlayer(t, db, "100", "Alice")
	seedPlayer(t, db, "200", "Bob")
	require.NoError(t, accounts.Upsert(ctx, "100", domain.PlatformChessCom, "alice_cc"))
	require.NoError(t, accounts.Upsert(ctx, "100", domain.PlatformLichess, "alice_li"))

	entries, err := players.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "alice_cc", entries[0].ChessComUsername)
	assert.Equal(t, "alice_li", entries[0].LichessUsername)
	assert.Empty(t, entries[1].ChessComUsername)
	assert.Empty(t, entries[1].LichessUsername)
}

func TestAccountRepository_UpsertKeepsCounters(t *testing.T) {
	db := testDB(t)
	accounts := NewAccountRepository(db, zerolog.Nop())
	logs := NewCollectionLogRepository(db, zerolog.Nop())
	ctx := context.Background()

	seedPlayer(t, db, "100", "Alice")
	require.NoError(t, accounts.Upsert(ctx, "100", domain.PlatformChessCom, "alice_cc"))

	got, err := accounts.Get(ctx, "100", domain.PlatformChessCom)
	require.NoError(t, err)
	assert.True(t, got.IsActive, "new accounts start active with a zero count")
	assert.Equal(t, 0, got.TotalGames)

	// Never-collected accounts must not show up as inactive.
	inactive, err := accounts.ListInactive(ctx)
	require.NoError(t, err)
	assert.Empty(t, inactive)

	require.NoError(t, logs.Record(ctx, &domain.CollectionLogEntry{
		FideID:     "100",
		Platform:   domain.PlatformChessCom,
		TimePeriod: domain.WindowLastMonth,
		GamesCount: 12,
		Status:     domain.StatusSuccess,
	}))

	// Renaming the username keeps the accumulated state.
	require.NoError(t, accounts.Upsert(ctx, "100", domain.PlatformChessCom, "alice_new"))
	got, err = accounts.Get(ctx, "100", domain.PlatformChessCom)
	require.NoError(t, err)
	assert.Equal(t, "alice_new", got.Username)
	assert.True(t, got.IsActive)
	assert.Equal(t, 12, got.TotalGames)
}

func TestCollectionLogRepository_OutcomeDrivesActivity(t *testing.T) {
	db := testDB(t)
	accounts := NewAccountRepository(db, zerolog.Nop())
	logs := NewCollectionLogRepository(db, zerolog.Nop())
	ctx := context.Background()

	seedPlayer(t, db, "100", "Alice")
	require.NoError(t, accounts.Upsert(ctx, "100", domain.PlatformLichess, "alice"))

	record := func(status domain.CollectionStatus, games int) {
		t.Helper()
		require.NoError(t, logs.Record(ctx, &domain.CollectionLogEntry{
			FideID:     "100",
			Platform:   domain.PlatformLichess,
			TimePeriod: domain.WindowLastMonth,
			GamesCount: games,
			Status:     status,
		}))
	}

	record(domain.StatusSuccess, 5)
	got, err := accounts.Get(ctx, "100", domain.PlatformLichess)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Equal(t, 5, got.TotalGames)

	// A transport error must not flip an active account to inactive.
	record(domain.StatusError, 0)
	got, err = accounts.Get(ctx, "100", domain.PlatformLichess)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Equal(t, 5, got.TotalGames)

	record(domain.StatusInactive, 0)
	got, err = accounts.Get(ctx, "100", domain.PlatformLichess)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, 5, got.TotalGames)

	// Only now, after a zero-game cycle, does the account list as inactive.
	inactive, err := accounts.ListInactive(ctx)
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, "alice", inactive[0].Username)
}

func TestCollectionLogRepository_Stats(t *testing.T) {
	db := testDB(t)
	accounts := NewAccountRepository(db, zerolog.Nop())
	logs := NewCollectionLogRepository(db, zerolog.Nop())
	ctx := context.Background()

	seedPlayer(t, db, "100", "Alice")
	require.NoError(t, accounts.Upsert(ctx, "100", domain.PlatformChessCom, "alice"))
	require.NoError(t, accounts.Upsert(ctx, "100", domain.PlatformLichess, "alice"))

	require.NoError(t, logs.Record(ctx, &domain.CollectionLogEntry{
		FideID: "100", Platform: domain.PlatformChessCom, TimePeriod: domain.WindowLastMonth,
		GamesCount: 10, Status: domain.StatusSuccess,
		TimeControls: []domain.TimeControl{domain.TimeControlBlitz, domain.TimeControlRapid},
	}))
	require.NoError(t, logs.Record(ctx, &domain.CollectionLogEntry{
		FideID: "100", Platform: domain.PlatformLichess, TimePeriod: domain.WindowLastYear,
		GamesCount: 3, Status: domain.StatusSuccess,
	}))
	require.NoError(t, logs.Record(ctx, &domain.CollectionLogEntry{
		FideID: "100", Platform: domain.PlatformLichess, TimePeriod: domain.WindowLastMonth,
		Status: domain.StatusError, ErrorMessage: "boom",
	}))

	stats, err := logs.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalCollections)
	assert.Equal(t, 13, stats.TotalGames)
	assert.Equal(t, 1, stats.ByPlatform[domain.PlatformChessCom])
	assert.Equal(t, 2, stats.ByPlatform[domain.PlatformLichess])
	assert.Equal(t, 2, stats.ByStatus[domain.StatusSuccess])
	assert.Equal(t, 1, stats.ByStatus[domain.StatusError])
	assert.Len(t, stats.RecentCollections, 3)

	var withFilters *domain.CollectionLogEntry
	for i := range stats.RecentCollections {
		if stats.RecentCollections[i].GamesCount == 10 {
			withFilters = &stats.RecentCollections[i]
		}
	}
	require.NotNil(t, withFilters)
	assert.Equal(t, []domain.TimeControl{domain.TimeControlBlitz, domain.TimeControlRapid}, withFilters.TimeControls)
}

func TestTaskRepository_UpsertReplacesChildren(t *testing.T) {
	db := testDB(t)
	tasks := NewTaskRepository(db, zerolog.Nop())
	ctx := context.Background()

	seedPlayer(t, db, "100", "Alice")
	task := &domain.ScheduledTask{
		JobID:        domain.TaskJobID("100"),
		FideID:       "100",
		PlayerName:   "Alice",
		Platforms:    []domain.Platform{domain.PlatformChessCom, domain.PlatformLichess},
		DayOfMonth:   1,
		Hour:         3,
		TimeControls: []domain.TimeControl{domain.TimeControlBlitz},
		MaxGames:     100,
	}
	require.NoError(t, tasks.Upsert(ctx, task))

	// Rescheduling the same player replaces the definition outright.
	task.Platforms = []domain.Platform{domain.PlatformLichess}
	task.TimeControls = nil
	task.DayOfMonth = 15
	require.NoError(t, tasks.Upsert(ctx, task))

	got, err := tasks.Get(ctx, domain.TaskJobID("100"))
	require.NoError(t, err)
	assert.Equal(t, []domain.Platform{domain.PlatformLichess}, got.Platforms)
	assert.Empty(t, got.TimeControls)
	assert.Equal(t, 15, got.DayOfMonth)
	assert.True(t, got.IsActive)
}

func TestTaskRepository_DeactivateAndReactivate(t *testing.T) {
	db := testDB(t)
	tasks := NewTaskRepository(db, zerolog.Nop())
	ctx := context.Background()

	seedPlayer(t, db, "100", "Alice")
	task := &domain.ScheduledTask{
		JobID:      domain.TaskJobID("100"),
		FideID:     "100",
		PlayerName: "Alice",
		Platforms:  []domain.Platform{domain.PlatformChessCom},
		DayOfMonth: 1,
		Hour:       3,
	}
	require.NoError(t, tasks.Upsert(ctx, task))
	require.NoError(t, tasks.Deactivate(ctx, task.JobID))

	active, err := tasks.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	// Scheduling again brings the task back.
	require.NoError(t, tasks.Upsert(ctx, task))
	active, err = tasks.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].IsActive)

	assert.ErrorIs(t, tasks.Deactivate(ctx, "collection_missing"), sql.ErrNoRows)
}

func TestTaskRepository_MarkRun(t *testing.T) {
	db := testDB(t)
	tasks := NewTaskRepository(db, zerolog.Nop())
	ctx := context.Background()

	seedPlayer(t, db, "100", "Alice")
	task := &domain.ScheduledTask{
		JobID:      domain.TaskJobID("100"),
		FideID:     "100",
		PlayerName: "Alice",
		Platforms:  []domain.Platform{domain.PlatformChessCom},
		DayOfMonth: 1,
		Hour:       3,
	}
	require.NoError(t, tasks.Upsert(ctx, task))

	got, err := tasks.Get(ctx, task.JobID)
	require.NoError(t, err)
	assert.Nil(t, got.LastRun, "a task that never fired has no last run")

	ranAt := time.Date(2024, 4, 1, 3, 0, 0, 0, time.UTC)
	require.NoError(t, tasks.MarkRun(ctx, task.JobID, ranAt))

	got, err = tasks.Get(ctx, task.JobID)
	require.NoError(t, err)
	require.NotNil(t, got.LastRun)
	assert.True(t, got.LastRun.Equal(ranAt))
}
