// Package main is the entry point for the kAmI server.
//
// main stays minimal: read configuration from the environment, build the
// logger, hand everything to internal/server. All actual logic lives in the
// imported packages.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kamiapp/kami/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	dbPath := "data/kami.db"
	if envDB := os.Getenv("DB_PATH"); envDB != "" {
		dbPath = envDB
	}

	cfg := server.Config{
		Port:            port,
		DBPath:          dbPath,
		DemoMode:        os.Getenv("DEMO_MODE") == "1",
		TokenMode:       os.Getenv("TOKEN_MODE"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		DisableFallback: os.Getenv("DISABLE_TOKEN_FALLBACK") == "1",
		DebugRoutes:     os.Getenv("DEBUG_ROUTES") == "1",
		ScheduledAPIKey: os.Getenv("SCHEDULED_API_KEY"),
	}

	// SESSION_TTL takes a Go duration ("168h"). Unset means opaque tokens
	// never expire, which is the historical behavior.
	if ttlStr := os.Getenv("SESSION_TTL"); ttlStr != "" {
		ttl, err := time.ParseDuration(ttlStr)
		if err != nil {
			logger.Error("invalid SESSION_TTL value", slog.String("value", ttlStr))
			os.Exit(1)
		}
		cfg.SessionTTL = ttl
	}

	if !cfg.DemoMode {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", filepath.Dir(dbPath)),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
