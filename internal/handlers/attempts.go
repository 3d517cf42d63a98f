package handlers

import (
	"net/http"

	"typerace-realtime/internal/scoring"
	"typerace-realtime/pkg/common/request"
	"typerace-realtime/pkg/common/response"
)

type SubmitAttemptRequest struct {
	UserID    string  `json:"user_id"`
	WPM       float64 `json:"wpm"`
	Accuracy  float64 `json:"accuracy"`
	WordCount int     `json:"word_count"`
}

// SubmitAttemptHandler records a completed practice test so solo runs
// feed the same scoring and leaderboard path as races.
func (hr *HandlerRepo) SubmitAttemptHandler(w http.ResponseWriter, r *http.Request) {
	var req SubmitAttemptRequest
	if err := request.DecodeJSON(w, r, &req); err != nil {
		response.JSON(w, http.StatusBadRequest, nil, true, err.Error())
		return
	}
	if req.UserID == "" || req.WordCount <= 0 {
		response.JSON(w, http.StatusBadRequest, nil, true, "user_id and word_count are required")
		return
	}

	attempt := scoring.NewAttempt(req.UserID, scoring.ModePractice, req.WPM, req.Accuracy, req.WordCount, 0)
	if attempt.Flagged {
		hr.logger.Warn("attempt report out of bounds, clamped",
			"player_id", req.UserID, "wpm", req.WPM, "accuracy", req.Accuracy)
	}

	if err := hr.store.AppendAttempt(r.Context(), attempt); err != nil {
		hr.logger.Error("failed to persist attempt", "error", err, "player_id", req.UserID)
		response.JSON(w, http.StatusInternalServerError, nil, true, "could not record attempt")
		return
	}

	breakdown := scoring.Score(attempt)
	entry, err := hr.store.AppendXp(r.Context(), req.UserID, "practice test", breakdown.Total)
	if err != nil {
		hr.logger.Error("failed to append xp", "error", err, "player_id", req.UserID)
		response.JSON(w, http.StatusInternalServerError, nil, true, "could not record xp")
		return
	}

	leveledUp := entry.Level > scoring.LevelAt(entry.TotalXP-entry.Amount)

	response.JSON(w, http.StatusCreated, map[string]any{
		"attempt":    attempt,
		"xp":         breakdown,
		"total_xp":   entry.TotalXP,
		"level":      entry.Level,
		"leveled_up": leveledUp,
	}, false, "attempt recorded successfully")
}
