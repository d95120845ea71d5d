package domain

import "time"

type Platform string

const (
	PlatformChessCom Platform = "chess.com"
	PlatformLichess  Platform = "lichess"
)

func (p Platform) Valid() bool {
	return p == PlatformChessCom || p == PlatformLichess
}

// TimeControl is the category assigned to every collected game.
type TimeControl string

const (
	TimeControlBullet         TimeControl = "bullet"
	TimeControlBlitz          TimeControl = "blitz"
	TimeControlRapid          TimeControl = "rapid"
	TimeControlClassical      TimeControl = "classical"
	TimeControlCorrespondence TimeControl = "correspondence"
	TimeControlOther          TimeControl = "other"
)

type CollectionStatus string

const (
	StatusSuccess  CollectionStatus = "success"
	StatusInactive CollectionStatus = "inactive"
	StatusError    CollectionStatus = "error"
)

// Player is the identity record keyed by FIDE ID. Optional attributes are
// pointers so re-imports can clear or leave them unset, matching the roster
// files the dashboard hands over.
type Player struct {
	FideID     string
	Name       string
	Rating     *int
	Title      *string
	Federation *string
	BirthYear  *int
}

// PlatformAccount binds a player to one username on one platform. Rows are
// never deleted; inactivity only flips IsActive.
type PlatformAccount struct {
	FideID     string
	Platform   Platform
	Username   string
	IsActive   bool
	LastUpdate *time.Time
	TotalGames int
}

// CollectionLogEntry is the append-only audit record of one collection
// attempt. Immutable once written.
type CollectionLogEntry struct {
	ID           string
	FideID       string
	Platform     Platform
	TimePeriod   TimeWindow
	GamesCount   int
	TimeControls []TimeControl // empty means all categories
	Status       CollectionStatus
	ErrorMessage string
	Timestamp    time.Time
}

// ScheduledTask describes one recurring monthly collection job. At most one
// active task exists per player; JobID is derived from the FIDE ID so a
// second registration overwrites the first.
type ScheduledTask struct {
	JobID        string
	FideID       string
	PlayerName   string
	Platforms    []Platform
	DayOfMonth   int           // 1-28
	Hour         int           // 0-23
	TimeControls []TimeControl // empty means all categories
	MaxGames     int           // 0 means unlimited
	IsActive     bool
	LastRun      *time.Time
}

// TaskJobID derives the deterministic scheduler job identifier for a player.
func TaskJobID(fideID string) string {
	return "collection_" + fideID
}

// CollectionRequest is one (player, platform) collection cycle as submitted
// by the dashboard or the scheduler.
type CollectionRequest struct {
	FideID       string
	Platform     Platform
	Window       TimeWindow
	MaxGames     int
	TimeControls []TimeControl
}

// CollectionResult is the explicit per-attempt outcome returned up the call
// chain; nothing polls shared progress state.
type CollectionResult struct {
	FideID       string
	Platform     Platform
	Status       CollectionStatus
	GamesFetched int
	GamesSaved   int
	Dropped      int
	ErrorMessage string
}

// RosterRow is one validated roster record supplied by the dashboard.
type RosterRow struct {
	FideID           string  `json:"fide_id"`
	Name             string  `json:"name"`
	Rating           *int    `json:"rating,omitempty"`
	Title            *string `json:"title,omitempty"`
	Federation       *string `json:"federation,omitempty"`
	BirthYear        *int    `json:"birth_year,omitempty"`
	ChessComUsername string  `json:"chesscom_username,omitempty"`
	LichessUsername  string  `json:"lichess_username,omitempty"`
}

// RosterEntry is the player listing shape: identity fields plus the linked
// usernames per platform.
type RosterEntry struct {
	Player
	ChessComUsername string
	LichessUsername  string
}

// InactiveAccount is one platform account whose most recent collection cycle
// returned zero games.
type InactiveAccount struct {
	FideID     string
	PlayerName string
	Platform   Platform
	Username   string
	LastUpdate *time.Time
	TotalGames int
}
