package rooms

import (
	"time"

	"typerace-realtime/internal/events"
	"typerace-realtime/internal/texts"
)

// Status is the room state machine position.
//
//	lobby -> countdown -> race -> results -> lobby (loop)
//	lobby -> (destroyed)
type Status string

const (
	StatusLobby     Status = "lobby"
	StatusCountdown Status = "countdown"
	StatusRace      Status = "race"
	StatusResults   Status = "results"
	StatusClosed    Status = "closed"
)

type Role string

const (
	RoleHost      Role = "host"
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// Identity is the already-validated user attached to a connection. The
// coordinator never re-checks credentials.
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// Player is room-scoped state, owned exclusively by the Session.
type Player struct {
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	Team     string    `json:"team,omitempty"`
	JoinedAt time.Time `json:"joined_at"`

	Connected bool `json:"connected"`

	// Transient race fields. Latest progress report wins.
	Typed      int        `json:"typed"`
	Total      int        `json:"total"`
	WPM        float64    `json:"wpm"`
	Accuracy   float64    `json:"accuracy"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	FinishRank int        `json:"finish_rank,omitempty"`
	DNF        bool       `json:"dnf"`
	Eliminated bool       `json:"eliminated"`

	strikes    int
	graceTimer *time.Timer
}

func (p *Player) finished() bool {
	return p.FinishedAt != nil
}

// racing reports whether the player contributes to race results.
func (p *Player) racing() bool {
	return p.Role != RoleSpectator
}

// ProgressPct derives completion percent from the character counts.
func (p *Player) ProgressPct() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Typed) / float64(p.Total) * 100
}

// ChatEntry is one line of the room's bounded, append-only chat log.
// SenderID is "system" for coordinator announcements.
type ChatEntry struct {
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}

const (
	maxPlayers  = 10
	chatLogSize = 200
)

// Snapshot is the full room:state payload. Broadcast after every
// mutation, it carries everything the client needs to render roster,
// chat and progress without polling.
type Snapshot struct {
	Code      string           `json:"code"`
	Name      string           `json:"name"`
	Status    Status           `json:"status"`
	Locked    bool             `json:"locked"`
	TeamMode  bool             `json:"team_mode"`
	Modifiers events.Modifiers `json:"modifiers"`
	HostID    string           `json:"host_id"`
	Players   []Player         `json:"players"`
	Chat      []ChatEntry      `json:"chat"`
	CreatedAt time.Time        `json:"created_at"`
}

// RaceStartedPayload carries the text and the shared start timestamp
// every client uses to compute elapsed time.
type RaceStartedPayload struct {
	Text          texts.Text `json:"text"`
	RaceStartedAt time.Time  `json:"race_started_at"`
}

// RankedResult is one row of the final standings.
type RankedResult struct {
	UserID   string  `json:"user_id"`
	Name     string  `json:"name"`
	Rank     int     `json:"rank"`
	WPM      float64 `json:"wpm"`
	Accuracy float64 `json:"accuracy"`
	DNF      bool    `json:"dnf"`
	XP       int     `json:"xp"`
}

// ProgressPayload is the per-player relay during a race.
type ProgressPayload struct {
	UserID   string  `json:"user_id"`
	Typed    int     `json:"typed"`
	Total    int     `json:"total"`
	Pct      float64 `json:"pct"`
	WPM      float64 `json:"wpm"`
	Accuracy float64 `json:"accuracy"`
	Finished bool    `json:"finished"`
}

// Broadcaster delivers outbound frames. The gateway implements it with
// per-connection send queues so a slow client never stalls a session.
type Broadcaster interface {
	// Broadcast delivers to every member of the room.
	Broadcast(code string, msg events.Outbound)
	// BroadcastExcept delivers to every member but one.
	BroadcastExcept(code, exceptUserID string, msg events.Outbound)
	// Send delivers to a single user if connected.
	Send(userID string, msg events.Outbound)
}
