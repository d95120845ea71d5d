// Package server exposes the collection system as a JSON API for the
// dashboard.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"chess-archiver/internal/archive"
	"chess-archiver/internal/domain"
	"chess-archiver/internal/repository"
	"chess-archiver/internal/service"
)

type Server struct {
	roster    *service.RosterService
	collector *service.CollectorService
	schedules *service.ScheduleService
	logs      *repository.CollectionLogRepository
	archive   *archive.Store
	logger    zerolog.Logger
}

func NewServer(
	roster *service.RosterService,
	collector *service.CollectorService,
	schedules *service.ScheduleService,
	logs *repository.CollectionLogRepository,
	store *archive.Store,
	logger zerolog.Logger,
) *Server {
	return &Server{
		roster:    roster,
		collector: collector,
		schedules: schedules,
		logs:      logs,
		archive:   store,
		logger:    logger,
	}
}

// Routes registers every API endpoint on the mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/players/import", s.handleImportPlayers)
	mux.HandleFunc("GET /api/players", s.handleListPlayers)
	mux.HandleFunc("POST /api/collect", s.handleCollect)
	mux.HandleFunc("POST /api/schedules", s.handleCreateSchedule)
	mux.HandleFunc("GET /api/schedules", s.handleListSchedules)
	mux.HandleFunc("DELETE /api/schedules", s.handleClearSchedules)
	mux.HandleFunc("DELETE /api/schedules/{fide_id}", s.handleRemoveSchedule)
	mux.HandleFunc("GET /api/accounts/inactive", s.handleInactiveAccounts)
	mux.HandleFunc("GET /api/stats/collections", s.handleCollectionStats)
	mux.HandleFunc("GET /api/stats/archive", s.handleArchiveStats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type importRequest struct {
	Players []domain.RosterRow `json:"players"`
}

func (s *Server) handleImportPlayers(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	imported, err := s.roster.Import(r.Context(), req.Players)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"imported": imported})
}

type playerResponse struct {
	FideID           string  `json:"fide_id"`
	Name             string  `json:"name"`
	Rating           *int    `json:"rating"`
	Title            *string `json:"title"`
	Federation       *string `json:"federation"`
	BirthYear        *int    `json:"birth_year"`
	ChessComUsername string  `json:"chesscom_username"`
	LichessUsername  string  `json:"lichess_username"`
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	entries, err := s.roster.Players(r.Context())
	if err != nil {
		s.internalError(w, r, err, "failed to list players")
		return
	}

	players := make([]playerResponse, 0, len(entries))
	for _, e := range entries {
		players = append(players, playerResponse{
			FideID:           e.FideID,
			Name:             e.Name,
			Rating:           e.Rating,
			Title:            e.Title,
			Federation:       e.Federation,
			BirthYear:        e.BirthYear,
			ChessComUsername: e.ChessComUsername,
			LichessUsername:  e.LichessUsername,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"players": players})
}

type collectRequest struct {
	FideID       string               `json:"fide_id"`
	Platforms    []domain.Platform    `json:"platforms"`
	TimePeriod   domain.TimeWindow    `json:"time_period"`
	MaxGames     int                  `json:"max_games"`
	TimeControls []domain.TimeControl `json:"time_controls"`
}

type collectResult struct {
	FideID       string                  `json:"fide_id"`
	Platform     domain.Platform         `json:"platform"`
	Status       domain.CollectionStatus `json:"status"`
	GamesFetched int                     `json:"games_fetched"`
	GamesSaved   int                     `json:"games_saved"`
	Dropped      int                     `json:"dropped"`
	ErrorMessage string                  `json:"error_message,omitempty"`
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.FideID == "" {
		s.writeError(w, http.StatusBadRequest, "fide_id is required")
		return
	}
	if len(req.Platforms) == 0 {
		req.Platforms = []domain.Platform{domain.PlatformChessCom, domain.PlatformLichess}
	}
	if req.TimePeriod == "" {
		req.TimePeriod = domain.WindowLastMonth
	}
	if !req.TimePeriod.Valid() {
		s.writeError(w, http.StatusBadRequest, "unknown time_period")
		return
	}
	for _, p := range req.Platforms {
		if !p.Valid() {
			s.writeError(w, http.StatusBadRequest, "unknown platform "+string(p))
			return
		}
	}

	reqs := make([]*domain.CollectionRequest, 0, len(req.Platforms))
	for _, platform := range req.Platforms {
		reqs = append(reqs, &domain.CollectionRequest{
			FideID:       req.FideID,
			Platform:     platform,
			Window:       req.TimePeriod,
			MaxGames:     req.MaxGames,
			TimeControls: req.TimeControls,
		})
	}

	results := s.collector.CollectBatch(r.Context(), reqs)
	out := make([]collectResult, 0, len(results))
	for _, res := range results {
		out = append(out, collectResult{
			FideID:       res.FideID,
			Platform:     res.Platform,
			Status:       res.Status,
			GamesFetched: res.GamesFetched,
			GamesSaved:   res.GamesSaved,
			Dropped:      res.Dropped,
			ErrorMessage: res.ErrorMessage,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": out})
}

type scheduleRequest struct {
	FideID       string               `json:"fide_id"`
	PlayerName   string               `json:"player_name"`
	Platforms    []domain.Platform    `json:"platforms"`
	DayOfMonth   int                  `json:"day_of_month"`
	Hour         int                  `json:"hour"`
	TimeControls []domain.TimeControl `json:"time_controls"`
	MaxGames     int                  `json:"max_games"`
}

type scheduleResponse struct {
	JobID        string               `json:"job_id"`
	FideID       string               `json:"fide_id"`
	PlayerName   string               `json:"player_name"`
	Platforms    []domain.Platform    `json:"platforms"`
	DayOfMonth   int                  `json:"day_of_month"`
	Hour         int                  `json:"hour"`
	TimeControls []domain.TimeControl `json:"time_controls"`
	MaxGames     int                  `json:"max_games"`
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	task := &domain.ScheduledTask{
		FideID:       req.FideID,
		PlayerName:   req.PlayerName,
		Platforms:    req.Platforms,
		DayOfMonth:   req.DayOfMonth,
		Hour:         req.Hour,
		TimeControls: req.TimeControls,
		MaxGames:     req.MaxGames,
	}
	if err := s.schedules.Create(r.Context(), task); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"job_id": task.JobID})
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.schedules.List(r.Context())
	if err != nil {
		s.internalError(w, r, err, "failed to list schedules")
		return
	}

	out := make([]scheduleResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, scheduleResponse{
			JobID:        t.JobID,
			FideID:       t.FideID,
			PlayerName:   t.PlayerName,
			Platforms:    t.Platforms,
			DayOfMonth:   t.DayOfMonth,
			Hour:         t.Hour,
			TimeControls: t.TimeControls,
			MaxGames:     t.MaxGames,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"schedules": out})
}

func (s *Server) handleRemoveSchedule(w http.ResponseWriter, r *http.Request) {
	fideID := r.PathValue("fide_id")
	if err := s.schedules.Remove(r.Context(), fideID); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"removed": domain.TaskJobID(fideID)})
}

func (s *Server) handleClearSchedules(w http.ResponseWriter, r *http.Request) {
	removed, err := s.schedules.Clear(r.Context())
	if err != nil {
		s.internalError(w, r, err, "failed to clear schedules")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

type inactiveAccountResponse struct {
	FideID     string          `json:"fide_id"`
	PlayerName string          `json:"player_name"`
	Platform   domain.Platform `json:"platform"`
	Username   string          `json:"username"`
	LastUpdate string          `json:"last_update,omitempty"`
	TotalGames int             `json:"total_games"`
}

func (s *Server) handleInactiveAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.roster.InactiveAccounts(r.Context())
	if err != nil {
		s.internalError(w, r, err, "failed to list inactive accounts")
		return
	}

	out := make([]inactiveAccountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp := inactiveAccountResponse{
			FideID:     a.FideID,
			PlayerName: a.PlayerName,
			Platform:   a.Platform,
			Username:   a.Username,
			TotalGames: a.TotalGames,
		}
		if a.LastUpdate != nil {
			resp.LastUpdate = a.LastUpdate.Format(archive.LastUpdateLayout)
		}
		out = append(out, resp)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"inactive_accounts": out})
}

func (s *Server) handleCollectionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.logs.Stats(r.Context())
	if err != nil {
		s.internalError(w, r, err, "failed to collect stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleArchiveStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.archive.CollectStats()
	if err != nil {
		s.internalError(w, r, err, "failed to collect archive stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	logger := zerolog.Ctx(r.Context())
	if logger.GetLevel() == zerolog.Disabled {
		logger = &s.logger
	}
	logger.Error().Err(err).Str("path", r.URL.Path).Msg(msg)
	s.writeError(w, http.StatusInternalServerError, msg)
}
