package archive

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chess-archiver/internal/config"
	"chess-archiver/internal/domain"
	"chess-archiver/internal/pgn"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(&config.Config{DataDir: t.TempDir()}, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC) }
	return s
}

func archivedGame(date, opponent string) string {
	return fmt.Sprintf(`[Event "Live Chess"]
[Date %q]
[White "alice"]
[Black %q]
[Result "1-0"]

1. e4 e5 1-0`, date, opponent)
}

func TestPersist_BucketsByYearMonth(t *testing.T) {
	s := testStore(t)
	games := []string{
		archivedGame("2024.03.05", "b1"),
		archivedGame("2024.03.20", "b2"),
		archivedGame("2024.02.11", "b3"),
	}

	saved, err := s.Persist(context.Background(), games, domain.PlatformChessCom, "alice", "100", true)
	require.NoError(t, err)
	assert.Equal(t, 3, saved)

	march, err := os.ReadFile(s.bucketPath("100", domain.PlatformChessCom, "2024-03"))
	require.NoError(t, err)
	assert.Contains(t, string(march), `[Black "b1"]`)
	assert.Contains(t, string(march), `[Black "b2"]`)

	feb, err := os.ReadFile(s.bucketPath("100", domain.PlatformChessCom, "2024-02"))
	require.NoError(t, err)
	assert.Contains(t, string(feb), `[Black "b3"]`)

	summary, err := s.Summary("100")
	require.NoError(t, err)
	ps := summary.Platforms[domain.PlatformChessCom]
	require.NotNil(t, ps)
	assert.Equal(t, 3, ps.TotalGames)
	assert.True(t, ps.IsActive)
	assert.Equal(t, "2024-04-01 09:00:00", ps.LastUpdate)
}

func TestPersist_PartialDateFallsBackToCollectionMonth(t *testing.T) {
	s := testStore(t)
	games := []string{archivedGame("????.??.??", "b1")}

	saved, err := s.Persist(context.Background(), games, domain.PlatformLichess, "alice", "100", true)
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	_, err = os.Stat(s.bucketPath("100", domain.PlatformLichess, "2024-04"))
	assert.NoError(t, err)
}

func TestPersist_FullReplace(t *testing.T) {
	s := testStore(t)

	_, err := s.Persist(context.Background(), []string{
		archivedGame("2024.03.05", "b1"),
		archivedGame("2024.03.06", "b2"),
	}, domain.PlatformChessCom, "alice", "100", true)
	require.NoError(t, err)

	_, err = s.Persist(context.Background(), []string{
		archivedGame("2024.03.07", "b3"),
	}, domain.PlatformChessCom, "alice", "100", true)
	require.NoError(t, err)

	data, err := os.ReadFile(s.bucketPath("100", domain.PlatformChessCom, "2024-03"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), `[Black "b1"]`)
	assert.Contains(t, string(data), `[Black "b3"]`)

	// The cumulative counter only increments.
	summary, err := s.Summary("100")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Platforms[domain.PlatformChessCom].TotalGames)
}

func TestPersist_InactiveCycleLeavesBucketsUntouched(t *testing.T) {
	s := testStore(t)

	_, err := s.Persist(context.Background(), []string{archivedGame("2024.03.05", "b1")},
		domain.PlatformChessCom, "alice", "100", true)
	require.NoError(t, err)

	path := s.bucketPath("100", domain.PlatformChessCom, "2024-03")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	saved, err := s.Persist(context.Background(), nil, domain.PlatformChessCom, "alice", "100", false)
	require.NoError(t, err)
	assert.Equal(t, 0, saved)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "prior bucket must be byte-identical after an inactive cycle")

	summary, err := s.Summary("100")
	require.NoError(t, err)
	ps := summary.Platforms[domain.PlatformChessCom]
	assert.False(t, ps.IsActive)
	assert.Equal(t, 1, ps.TotalGames, "inactive cycles must not lose the cumulative count")
}

func TestPersist_ConcurrentSameAccountSerialized(t *testing.T) {
	s := testStore(t)
	path := s.bucketPath("100", domain.PlatformChessCom, "2024-03")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			games := []string{archivedGame("2024.03.05", fmt.Sprintf("opp%d", n))}
			_, err := s.Persist(context.Background(), games, domain.PlatformChessCom, "alice", "100", true)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Last writer wins, but the file is exactly one run's content.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), `[Result "`))

	summary, err := s.Summary("100")
	require.NoError(t, err)
	assert.Equal(t, 8, summary.Platforms[domain.PlatformChessCom].TotalGames)
}

func TestPersist_DifferentAccountsIndependent(t *testing.T) {
	s := testStore(t)

	var wg sync.WaitGroup
	for _, fideID := range []string{"100", "200"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := s.Persist(context.Background(), []string{archivedGame("2024.03.05", "x")},
				domain.PlatformLichess, "p"+id, id, true)
			assert.NoError(t, err)
		}(fideID)
	}
	wg.Wait()

	for _, fideID := range []string{"100", "200"} {
		_, err := os.Stat(s.bucketPath(fideID, domain.PlatformLichess, "2024-03"))
		assert.NoError(t, err)
	}
}

func TestCollectStats(t *testing.T) {
	s := testStore(t)

	_, err := s.Persist(context.Background(), []string{
		archivedGame("2024.03.05", "b1"),
		archivedGame("2023.12.01", "b2"),
	}, domain.PlatformChessCom, "alice", "100", true)
	require.NoError(t, err)

	_, err = s.Persist(context.Background(), nil, domain.PlatformLichess, "alice", "100", false)
	require.NoError(t, err)

	_, err = s.Persist(context.Background(), []string{archivedGame("2024.01.10", "b3")},
		domain.PlatformLichess, "bob", "200", true)
	require.NoError(t, err)

	stats, err := s.CollectStats()
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalPlayers)
	assert.Equal(t, 3, stats.TotalGames)
	assert.Equal(t, 2, stats.GamesByPlatform[domain.PlatformChessCom])
	assert.Equal(t, 1, stats.GamesByPlatform[domain.PlatformLichess])
	assert.Equal(t, 1, stats.GamesByYear["2023"])
	assert.Equal(t, 2, stats.GamesByYear["2024"])
	assert.Equal(t, 1, stats.ActiveAccounts[domain.PlatformChessCom])
	assert.Equal(t, 1, stats.ActiveAccounts[domain.PlatformLichess])
	assert.Equal(t, 1, stats.InactiveAccounts[domain.PlatformLichess])
	assert.Equal(t, 3, stats.Outcomes[pgn.OutcomeWhiteWin])
}

func TestCollectStats_EmptyArchive(t *testing.T) {
	s := testStore(t)
	stats, err := s.CollectStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalPlayers)
}
