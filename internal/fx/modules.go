package fx

import (
	"chess-archiver/internal/api"
	"chess-archiver/internal/archive"
	"chess-archiver/internal/config"
	"chess-archiver/internal/database"
	"chess-archiver/internal/logger"
	"chess-archiver/internal/pgn"
	"chess-archiver/internal/repository"
	"chess-archiver/internal/scheduler"
	"chess-archiver/internal/server"
	"chess-archiver/internal/service"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewAccountRepository),
	fx.Provide(repository.NewCollectionLogRepository),
	fx.Provide(repository.NewTaskRepository),
	// platform clients
	fx.Provide(api.NewChessComClient),
	fx.Provide(api.NewLichessClient),
	fx.Provide(api.NewSources),
	// pipeline
	fx.Provide(pgn.NewNormalizer),
	fx.Provide(archive.NewStore),
	fx.Provide(scheduler.New),
	// svc
	fx.Provide(service.NewCollectorService),
	fx.Provide(service.NewRosterService),
	fx.Provide(service.NewScheduleService),
	// server
	fx.Provide(server.NewServer),
)
