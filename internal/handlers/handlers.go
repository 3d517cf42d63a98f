package handlers

import (
	"log/slog"

	"typerace-realtime/internal/gateway"
	"typerace-realtime/internal/leaderboard"
	"typerace-realtime/internal/rooms"
	"typerace-realtime/internal/store"
)

// HandlerRepo holds all the dependencies required by the HTTP handlers:
// the application logger, the room registry, the websocket hub and the
// leaderboard aggregator over the attempt store.
type HandlerRepo struct {
	logger   *slog.Logger
	registry *rooms.Registry
	hub      *gateway.Hub
	agg      *leaderboard.Aggregator
	store    store.Store
}

func NewHandlerRepo(logger *slog.Logger, registry *rooms.Registry, hub *gateway.Hub, agg *leaderboard.Aggregator, st store.Store) *HandlerRepo {
	return &HandlerRepo{
		logger:   logger,
		registry: registry,
		hub:      hub,
		agg:      agg,
		store:    st,
	}
}
