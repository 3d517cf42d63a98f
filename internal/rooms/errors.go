package rooms

import (
	"errors"

	"typerace-realtime/internal/events"
)

// Sentinel errors for everything a room operation can refuse. They are
// reported synchronously to the acting connection only, never broadcast.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrRoomFull       = errors.New("room is full")
	ErrRoomLocked     = errors.New("room is locked")
	ErrNotHost        = errors.New("only the host may do that")
	ErrCannotKickHost = errors.New("the host cannot be kicked")
	ErrInvalidState   = errors.New("not allowed in the current room state")
	ErrAlreadyInRoom  = errors.New("already in another room")
	ErrSpectator      = errors.New("spectators do not race")
	ErrTeamModeOff    = errors.New("team mode is not enabled")
	ErrValidation     = errors.New("invalid request")
	ErrRoomClosed     = errors.New("room closed")
)

// ErrCodeFor maps a room error onto the protocol error code sent back
// to the originating connection.
func ErrCodeFor(err error) events.ErrCode {
	switch {
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrPlayerNotFound):
		return events.CodeNotFound
	case errors.Is(err, ErrNotHost), errors.Is(err, ErrCannotKickHost),
		errors.Is(err, ErrRoomLocked), errors.Is(err, ErrRoomFull),
		errors.Is(err, ErrSpectator):
		return events.CodeForbidden
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrTeamModeOff),
		errors.Is(err, ErrRoomClosed):
		return events.CodeInvalidState
	case errors.Is(err, ErrAlreadyInRoom):
		return events.CodeConflict
	case errors.Is(err, ErrValidation):
		return events.CodeValidation
	default:
		return events.CodeInternal
	}
}
