package constants

import "time"

const (
	// DefaultRequestDelay is the minimum interval between outbound requests
	// to a chess platform, enforced per client instance.
	DefaultRequestDelay = 1 * time.Second

	// DefaultRetryAfter is used when a 429 response carries no Retry-After header.
	DefaultRetryAfter = 60 * time.Second

	ExternalAPITimeout = 30 * time.Second
	DatabaseTimeout    = 5 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	// MisfireGraceWindow bounds how long after its scheduled instant a missed
	// firing is still honored on process recovery. Older misfires are skipped.
	MisfireGraceWindow = 1 * time.Hour

	// BatchParallelism caps concurrent (player, platform) collection cycles in
	// one batch. Months within a single cycle stay strictly sequential.
	BatchParallelism = 4
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	RecentCollectionsLimit = 20
)
