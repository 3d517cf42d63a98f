package handlers

import (
	"net/http"

	"typerace-realtime/internal/leaderboard"
	"typerace-realtime/internal/scoring"
	"typerace-realtime/pkg/common/response"

	"github.com/go-chi/chi/v5"
)

const defaultLeaderboardLimit = 100

func parseMode(s string) (scoring.Mode, bool) {
	switch s {
	case "", string(scoring.ModePractice):
		return scoring.ModePractice, true
	case string(scoring.ModeMultiplayer):
		return scoring.ModeMultiplayer, true
	}
	return "", false
}

// GetLeaderboardHandler serves the ranked view for a mode and period:
// GET /leaderboard?mode=practice&period=today
func (hr *HandlerRepo) GetLeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	mode, ok := parseMode(r.URL.Query().Get("mode"))
	if !ok {
		response.JSON(w, http.StatusBadRequest, nil, true, "unknown mode")
		return
	}
	period, err := leaderboard.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		response.JSON(w, http.StatusBadRequest, nil, true, err.Error())
		return
	}

	entries, err := hr.agg.Top(r.Context(), mode, period, defaultLeaderboardLimit)
	if err != nil {
		hr.logger.Error("leaderboard query failed", "error", err)
		response.JSON(w, http.StatusInternalServerError, nil, true, "leaderboard unavailable")
		return
	}

	response.JSON(w, http.StatusOK, entries, false, "get leaderboard successfully")
}

// GetStatsHandler serves the per-user "my stats" view:
// GET /stats/{userId}?mode=multiplayer&period=week
func (hr *HandlerRepo) GetStatsHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	mode, ok := parseMode(r.URL.Query().Get("mode"))
	if !ok {
		response.JSON(w, http.StatusBadRequest, nil, true, "unknown mode")
		return
	}
	period, err := leaderboard.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		response.JSON(w, http.StatusBadRequest, nil, true, err.Error())
		return
	}

	stats, err := hr.agg.StatsFor(r.Context(), userID, mode, period)
	if err != nil {
		hr.logger.Error("stats query failed", "error", err, "player_id", userID)
		response.JSON(w, http.StatusInternalServerError, nil, true, "stats unavailable")
		return
	}

	totals, err := hr.store.Totals(r.Context(), userID)
	if err != nil {
		hr.logger.Error("totals query failed", "error", err, "player_id", userID)
		response.JSON(w, http.StatusInternalServerError, nil, true, "stats unavailable")
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"stats":    stats,
		"total_xp": totals.TotalXP,
		"level":    totals.Level,
	}, false, "get stats successfully")
}
