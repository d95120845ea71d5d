package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chess-archiver/internal/api"
	"chess-archiver/internal/archive"
	"chess-archiver/internal/config"
	"chess-archiver/internal/database"
	"chess-archiver/internal/domain"
	"chess-archiver/internal/pgn"
	"chess-archiver/internal/repository"
	"chess-archiver/internal/scheduler"
	"chess-archiver/internal/service"
)

type stubSource struct {
	platform domain.Platform
	games    []string
}

func (s *stubSource) Platform() domain.Platform { return s.platform }

func (s *stubSource) FetchGames(ctx context.Context, username string, window domain.TimeWindow, maxGames int, timeControls []domain.TimeControl) ([]string, error) {
	return s.games, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *stubSource) {
	t.Helper()
	cfg := &config.Config{
		DataDir: t.TempDir(),
		DBPath:  filepath.Join(t.TempDir(), "test.db"),
	}
	db, err := database.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	source := &stubSource{platform: domain.PlatformChessCom}
	players := repository.NewPlayerRepository(db, zerolog.Nop())
	accounts := repository.NewAccountRepository(db, zerolog.Nop())
	logs := repository.NewCollectionLogRepository(db, zerolog.Nop())
	tasks := repository.NewTaskRepository(db, zerolog.Nop())
	store := archive.NewStore(cfg, zerolog.Nop())

	collector := service.NewCollectorService(
		map[domain.Platform]api.GameSource{domain.PlatformChessCom: source},
		players, accounts, logs,
		pgn.NewNormalizer(zerolog.Nop()),
		store,
		zerolog.Nop(),
	)
	roster := service.NewRosterService(players, accounts, zerolog.Nop())

	sched, err := scheduler.New(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sched.Stop() })
	schedules := service.NewScheduleService(tasks, sched, collector, zerolog.Nop())

	srv := NewServer(roster, collector, schedules, logs, store, zerolog.Nop())
	mux := http.NewServeMux()
	srv.Routes(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, source
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func importAlice(t *testing.T, baseURL string) {
	t.Helper()
	resp := postJSON(t, baseURL+"/api/players/import", map[string]any{
		"players": []map[string]any{
			{"fide_id": "100", "name": "Alice", "chesscom_username": "alice_cc"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestImportAndListPlayers(t *testing.T) {
	ts, _ := newTestServer(t)
	importAlice(t, ts.URL)

	resp, err := http.Get(ts.URL + "/api/players")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Players []struct {
			FideID           string `json:"fide_id"`
			Name             string `json:"name"`
			ChessComUsername string `json:"chesscom_username"`
		} `json:"players"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Players, 1)
	assert.Equal(t, "100", body.Players[0].FideID)
	assert.Equal(t, "alice_cc", body.Players[0].ChessComUsername)
}

func TestImport_RejectsInvalidBatch(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/players/import", map[string]any{
		"players": []map[string]any{{"name": "No ID"}},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCollectEndpoint(t *testing.T) {
	ts, source := newTestServer(t)
	importAlice(t, ts.URL)
	source.games = []string{`[Event "Live Chess"]
[Date "2024.03.10"]
[White "Alice"]
[Black "opp"]
[Result "1-0"]

1. e4 e5 1-0`}

	resp := postJSON(t, ts.URL+"/api/collect", map[string]any{
		"fide_id":     "100",
		"platforms":   []string{"chess.com"},
		"time_period": "last_month",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Results []struct {
			Status     string `json:"status"`
			GamesSaved int    `json:"games_saved"`
		} `json:"results"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "success", body.Results[0].Status)
	assert.Equal(t, 1, body.Results[0].GamesSaved)
}

func TestCollect_ValidationErrors(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/collect", map[string]any{"platforms": []string{"chess.com"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/collect", map[string]any{"fide_id": "100", "time_period": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestScheduleLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)
	importAlice(t, ts.URL)

	resp := postJSON(t, ts.URL+"/api/schedules", map[string]any{
		"fide_id":      "100",
		"player_name":  "Alice",
		"platforms":    []string{"chess.com"},
		"day_of_month": 1,
		"hour":         3,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created map[string]string
	decodeBody(t, resp, &created)
	assert.Equal(t, "collection_100", created["job_id"])

	listResp, err := http.Get(ts.URL + "/api/schedules")
	require.NoError(t, err)
	var list struct {
		Schedules []struct {
			JobID string `json:"job_id"`
		} `json:"schedules"`
	}
	decodeBody(t, listResp, &list)
	require.Len(t, list.Schedules, 1)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/schedules/100", nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, delResp.StatusCode)
	delResp.Body.Close()

	req, err = http.NewRequest(http.MethodDelete, ts.URL+"/api/schedules/100", nil)
	require.NoError(t, err)
	delResp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, delResp.StatusCode)
	delResp.Body.Close()
}

func TestScheduleCreate_InvalidDay(t *testing.T) {
	ts, _ := newTestServer(t)
	importAlice(t, ts.URL)

	resp := postJSON(t, ts.URL+"/api/schedules", map[string]any{
		"fide_id":      "100",
		"platforms":    []string{"chess.com"},
		"day_of_month": 31,
		"hour":         3,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInactiveAccountsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	importAlice(t, ts.URL)

	// Freshly imported accounts are active; the listing is empty.
	resp, err := http.Get(ts.URL + "/api/accounts/inactive")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		InactiveAccounts []struct {
			Username string `json:"username"`
		} `json:"inactive_accounts"`
	}
	decodeBody(t, resp, &body)
	assert.Empty(t, body.InactiveAccounts)

	// A collection cycle that finds no games flips the account inactive.
	collectResp := postJSON(t, ts.URL+"/api/collect", map[string]any{
		"fide_id": "100", "platforms": []string{"chess.com"},
	})
	require.Equal(t, http.StatusOK, collectResp.StatusCode)
	collectResp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/accounts/inactive")
	require.NoError(t, err)
	decodeBody(t, resp, &body)
	require.Len(t, body.InactiveAccounts, 1)
	assert.Equal(t, "alice_cc", body.InactiveAccounts[0].Username)
}

func TestStatsEndpoints(t *testing.T) {
	ts, source := newTestServer(t)
	importAlice(t, ts.URL)
	source.games = []string{`[Event "Live Chess"]
[Date "2024.03.10"]
[White "Alice"]
[Black "opp"]
[Result "1-0"]

1. e4 e5 1-0`}

	resp := postJSON(t, ts.URL+"/api/collect", map[string]any{"fide_id": "100", "platforms": []string{"chess.com"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	collResp, err := http.Get(ts.URL + "/api/stats/collections")
	require.NoError(t, err)
	var coll struct {
		TotalCollections int `json:"total_collections"`
		TotalGames       int `json:"total_games"`
	}
	decodeBody(t, collResp, &coll)
	assert.Equal(t, 1, coll.TotalCollections)
	assert.Equal(t, 1, coll.TotalGames)

	archResp, err := http.Get(ts.URL + "/api/stats/archive")
	require.NoError(t, err)
	var arch struct {
		TotalPlayers int `json:"total_players"`
		TotalGames   int `json:"total_games"`
	}
	decodeBody(t, archResp, &arch)
	assert.Equal(t, 1, arch.TotalPlayers)
	assert.Equal(t, 1, arch.TotalGames)
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
