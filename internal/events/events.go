package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind tags every frame crossing the websocket. The set is closed:
// anything outside it is rejected at the gateway before it can reach a
// room session.
type Kind string

// Inbound kinds (client -> coordinator).
const (
	RoomCreate       Kind = "room:create"
	RoomJoin         Kind = "room:join"
	RoomLeave        Kind = "room:leave"
	RoomStart        Kind = "room:start"
	RoomLock         Kind = "room:lock"
	RoomKick         Kind = "room:kick"
	RoomPromote      Kind = "room:promote"
	RoomSetTeam      Kind = "room:setTeam"
	RoomSetModifiers Kind = "room:setModifiers"
	RoomSetText      Kind = "room:setText"
	RoomInvite       Kind = "room:invite"
	RaceProgress     Kind = "race:progress"
	ChatSend         Kind = "chat:send"
	ChatTyping       Kind = "chat:typing"
	ChatTypingStop   Kind = "chat:typing:stop"
	FriendStatus     Kind = "friend:status"
)

// Outbound kinds (coordinator -> client).
const (
	RoomState     Kind = "room:state"
	RoomCreated   Kind = "room:created"
	RoomClosed    Kind = "room:closed"
	CountdownTick Kind = "room:countdown:tick"
	RaceStarted   Kind = "race:started"
	RaceFinished  Kind = "race:finished"
	RaceEliminate Kind = "race:eliminated"
	ChatMessage   Kind = "chat:message"
	LevelUp       Kind = "level:up"
	FriendOnline  Kind = "friend:online"
	FriendOffline Kind = "friend:offline"
	ErrorReply    Kind = "error"
)

// Inbound is the wire shape of a client frame. Payload fields are
// validated per kind before dispatch; unused fields must be absent or
// zero for the frame to be accepted.
type Inbound struct {
	Kind     Kind   `json:"kind"`
	RoomCode string `json:"room_code,omitempty"`

	// room:create
	RoomName string `json:"room_name,omitempty"`
	TeamMode bool   `json:"team_mode,omitempty"`

	// room:join
	Spectator bool `json:"spectator,omitempty"`

	// room:kick / room:promote / room:setTeam / room:invite / friend:status
	TargetID string  `json:"target_id,omitempty"`
	Team     *string `json:"team,omitempty"` // nil clears the team

	// room:setModifiers
	Modifiers *Modifiers `json:"modifiers,omitempty"`

	// room:setText
	Text string `json:"text,omitempty"`

	// race:progress
	Typed    int     `json:"typed,omitempty"`
	Total    int     `json:"total,omitempty"`
	WPM      float64 `json:"wpm,omitempty"`
	Accuracy float64 `json:"accuracy,omitempty"`

	// chat:send
	Message string `json:"message,omitempty"`
}

// Modifiers is the race rule set the host controls from the lobby.
type Modifiers struct {
	NoBackspace      bool `json:"no_backspace"`
	Blind            bool `json:"blind"`
	Zen              bool `json:"zen"`
	SuddenDeath      bool `json:"sudden_death"`
	SuddenDeathLimit int  `json:"sudden_death_limit"`
	Sprint           bool `json:"sprint"`
	WordCount        int  `json:"word_count"`
}

// Outbound is a server frame: a kind plus a kind-specific payload.
type Outbound struct {
	Kind    Kind `json:"kind"`
	Payload any  `json:"payload,omitempty"`
}

// ErrCode classifies error replies for the client.
type ErrCode string

const (
	CodeNotFound     ErrCode = "not_found"
	CodeForbidden    ErrCode = "forbidden"
	CodeInvalidState ErrCode = "invalid_state"
	CodeValidation   ErrCode = "validation_error"
	CodeConflict     ErrCode = "conflict"
	CodeInternal     ErrCode = "internal"
)

// ErrorPayload is sent only to the connection that caused the error.
type ErrorPayload struct {
	Code    ErrCode `json:"code"`
	Message string  `json:"message"`
}

func NewError(code ErrCode, msg string) Outbound {
	return Outbound{Kind: ErrorReply, Payload: ErrorPayload{Code: code, Message: msg}}
}

var errUnknownKind = errors.New("unknown message kind")

// Decode parses and validates one client frame.
func Decode(data []byte) (Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return Inbound{}, fmt.Errorf("malformed frame: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return Inbound{}, err
	}
	return msg, nil
}

// Validate enforces the required fields for the frame's kind.
func (m Inbound) Validate() error {
	switch m.Kind {
	case RoomCreate:
		if m.RoomName == "" {
			return errors.New("room:create requires room_name")
		}
	case RoomJoin, RoomLeave, RoomStart, RoomLock, ChatTyping, ChatTypingStop:
		if m.RoomCode == "" {
			return fmt.Errorf("%s requires room_code", m.Kind)
		}
	case RoomKick, RoomPromote, RoomSetTeam:
		if m.RoomCode == "" || m.TargetID == "" {
			return fmt.Errorf("%s requires room_code and target_id", m.Kind)
		}
	case RoomSetModifiers:
		if m.RoomCode == "" || m.Modifiers == nil {
			return errors.New("room:setModifiers requires room_code and modifiers")
		}
		if m.Modifiers.SuddenDeathLimit < 0 {
			return errors.New("sudden_death_limit must not be negative")
		}
	case RoomSetText:
		if m.RoomCode == "" || m.Text == "" {
			return errors.New("room:setText requires room_code and text")
		}
	case RoomInvite:
		if m.RoomCode == "" || m.TargetID == "" {
			return errors.New("room:invite requires room_code and target_id")
		}
	case RaceProgress:
		if m.RoomCode == "" {
			return errors.New("race:progress requires room_code")
		}
		if m.Typed < 0 || m.Total <= 0 || m.Typed > m.Total {
			return errors.New("race:progress typed/total out of range")
		}
	case ChatSend:
		if m.RoomCode == "" || m.Message == "" {
			return errors.New("chat:send requires room_code and message")
		}
		if len(m.Message) > 500 {
			return errors.New("chat message too long")
		}
	case FriendStatus:
		if m.TargetID == "" {
			return errors.New("friend:status requires target_id")
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownKind, m.Kind)
	}
	return nil
}
