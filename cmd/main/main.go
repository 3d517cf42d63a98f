package main

import (
	"log"
	"log/slog"
	"os"
	"sync"
	"time"

	"typerace-realtime/database"
	"typerace-realtime/internal/gateway"
	"typerace-realtime/internal/handlers"
	"typerace-realtime/internal/leaderboard"
	"typerace-realtime/internal/presence"
	"typerace-realtime/internal/rooms"
	"typerace-realtime/internal/store"
	"typerace-realtime/pkg/common/env"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

type Application struct {
	wg       sync.WaitGroup
	cfg      *Config
	logger   *slog.Logger
	registry *rooms.Registry
	hub      *gateway.Hub
	handlers *handlers.HandlerRepo
}

type Config struct {
	Port        int
	RoomConfig  rooms.Config
	DatabaseURL string
}

func loadConfig() *Config {
	return &Config{
		Port:        env.GetInt("PORT", 8080),
		DatabaseURL: env.GetString("DATABASE_URL", ""),
		RoomConfig: rooms.Config{
			CountdownTicks: env.GetInt("COUNTDOWN_SECONDS", 3),
			RaceTimeout:    env.GetDuration("RACE_TIMEOUT", 3*time.Minute),
			ResultsWindow:  env.GetDuration("RESULTS_WINDOW", 15*time.Second),
			GracePeriod:    env.GetDuration("GRACE_PERIOD", 30*time.Second),
		},
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	slogHandler := tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug})
	logger := slog.New(slogHandler)
	slog.SetDefault(logger)

	cfg := loadConfig()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPool(cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		st = store.NewPostgresStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, attempts and xp will not survive restarts")
		st = store.NewMemoryStore()
	}

	hub := gateway.NewHub(logger)
	registry := rooms.NewRegistry(cfg.RoomConfig, hub, st, logger)
	tracker := presence.NewTracker(hub, logger)
	hub.Bind(registry, tracker)

	agg := leaderboard.New(st)
	handlerRepo := handlers.NewHandlerRepo(logger, registry, hub, agg, st)

	app := &Application{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		hub:      hub,
		handlers: handlerRepo,
	}

	if err := app.run(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
