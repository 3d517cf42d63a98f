package handlers

import (
	"net/http"

	"typerace-realtime/internal/rooms"
	"typerace-realtime/pkg/common/response"
)

// RoomListing is the public directory row: enough to browse and join,
// without chat history or per-player race internals.
type RoomListing struct {
	Code        string       `json:"code"`
	Name        string       `json:"name"`
	Status      rooms.Status `json:"status"`
	Locked      bool         `json:"locked"`
	TeamMode    bool         `json:"team_mode"`
	PlayerCount int          `json:"player_count"`
}

func (hr *HandlerRepo) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	snapshots := hr.registry.List()

	listings := make([]RoomListing, 0, len(snapshots))
	for _, snap := range snapshots {
		listings = append(listings, RoomListing{
			Code:        snap.Code,
			Name:        snap.Name,
			Status:      snap.Status,
			Locked:      snap.Locked,
			TeamMode:    snap.TeamMode,
			PlayerCount: len(snap.Players),
		})
	}

	if err := response.JSON(w, http.StatusOK, listings, false, "get rooms successfully"); err != nil {
		hr.logger.Error("failed to write room list", "error", err)
	}
}
