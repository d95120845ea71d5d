package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	DataDir         string
	DBPath          string
	ServerPort      string
	LogLevel        string
	RequestDelay    time.Duration
	ChessComBaseURL string
	LichessBaseURL  string
	UserAgent       string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	delayMS, err := strconv.Atoi(getEnv("REQUEST_DELAY_MS", "1000"))
	if err != nil || delayMS < 0 {
		return nil, fmt.Errorf("invalid REQUEST_DELAY_MS: %q", os.Getenv("REQUEST_DELAY_MS"))
	}

	cfg := &Config{
		DataDir:         getEnv("DATA_DIR", "data"),
		DBPath:          getEnv("DB_PATH", "data/chess_archive.db"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RequestDelay:    time.Duration(delayMS) * time.Millisecond,
		ChessComBaseURL: getEnv("CHESSCOM_BASE_URL", "https://api.chess.com/pub"),
		LichessBaseURL:  getEnv("LICHESS_BASE_URL", "https://lichess.org/api"),
		UserAgent:       getEnv("USER_AGENT", "chess-archiver/1.0 (game collection; contact admin)"),
	}

	logger.Info().
		Str("data_dir", cfg.DataDir).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Dur("request_delay", cfg.RequestDelay).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
