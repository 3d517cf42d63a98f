package rooms

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"typerace-realtime/internal/events"
	"typerace-realtime/internal/scoring"
	"typerace-realtime/internal/store"
	"typerace-realtime/internal/texts"
)

// Config carries the session tunables. Zero values fall back to the
// production defaults.
type Config struct {
	CountdownTicks int           // seconds counted down before a race
	TickInterval   time.Duration // countdown tick spacing
	RaceTimeout    time.Duration // stragglers are DNF'd after this
	ResultsWindow  time.Duration // results display before lobby reset
	GracePeriod    time.Duration // disconnect tolerance before removal
}

func (c Config) withDefaults() Config {
	if c.CountdownTicks == 0 {
		c.CountdownTicks = 3
	}
	if c.TickInterval == 0 {
		c.TickInterval = time.Second
	}
	if c.RaceTimeout == 0 {
		c.RaceTimeout = 3 * time.Minute
	}
	if c.ResultsWindow == 0 {
		c.ResultsWindow = 15 * time.Second
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = 30 * time.Second
	}
	return c
}

const suddenDeathAccuracy = 80.0

// Session owns one room's mutable state. Every mutation runs under the
// session lock, so transitions, roster edits and progress updates are
// serialized per room while rooms stay independent of each other.
type Session struct {
	code string
	cfg  Config

	logger *slog.Logger
	bc     Broadcaster
	store  store.Store

	mu         sync.Mutex
	name       string
	status     Status
	locked     bool
	teamMode   bool
	modifiers  events.Modifiers
	customText *texts.Text
	raceText   texts.Text

	hostID  string
	players map[string]*Player
	chat    []ChatEntry

	createdAt     time.Time
	raceStartedAt time.Time
	emptySince    time.Time
	closed        bool

	// epoch invalidates pending timers on every transition: a timer
	// scheduled for one phase must never fire into a later one.
	epoch  int
	timers []*time.Timer
}

func NewSession(code, name string, teamMode bool, cfg Config, bc Broadcaster, st store.Store, logger *slog.Logger) *Session {
	now := time.Now()
	return &Session{
		code:       code,
		name:       name,
		teamMode:   teamMode,
		cfg:        cfg.withDefaults(),
		logger:     logger.With("room_code", code),
		bc:         bc,
		store:      st,
		status:     StatusLobby,
		players:    make(map[string]*Player),
		modifiers:  events.Modifiers{WordCount: texts.DefaultWordCount},
		createdAt:  now,
		emptySince: now,
	}
}

func (s *Session) Code() string { return s.code }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Join adds a player, or resumes their record if they reconnect within
// the grace period. The first joiner becomes host.
func (s *Session) Join(id Identity, spectator bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrRoomClosed
	}

	if p, ok := s.players[id.UserID]; ok {
		// Reconnection resumes the same record: role, team and race
		// progress survive a brief drop.
		if p.graceTimer != nil {
			p.graceTimer.Stop()
			p.graceTimer = nil
		}
		p.Connected = true
		s.logger.Info("player reconnected", "player_id", id.UserID)
		s.broadcastState()
		return nil
	}

	if s.locked {
		return ErrRoomLocked
	}
	if s.status != StatusLobby {
		return fmt.Errorf("%w: cannot join during %s", ErrInvalidState, s.status)
	}
	if len(s.players) >= maxPlayers {
		return ErrRoomFull
	}

	role := RolePlayer
	if spectator {
		role = RoleSpectator
	}
	if s.hostID == "" && !spectator {
		// First racer in hosts, even when spectators arrived earlier.
		role = RoleHost
		s.hostID = id.UserID
	}

	s.players[id.UserID] = &Player{
		UserID:    id.UserID,
		Name:      id.Name,
		Role:      role,
		JoinedAt:  time.Now(),
		Connected: true,
	}
	s.emptySince = time.Time{}

	s.systemChat(fmt.Sprintf("%s joined the room", id.Name))
	s.logger.Info("player joined", "player_id", id.UserID, "role", role)
	s.broadcastState()
	return nil
}

// Disconnect marks the player offline and schedules removal after the
// grace period. Reconnection within it cancels the removal.
func (s *Session) Disconnect(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[userID]
	if !ok || s.closed {
		return
	}

	p.Connected = false
	p.graceTimer = time.AfterFunc(s.cfg.GracePeriod, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		if p, ok := s.players[userID]; ok && !p.Connected {
			s.logger.Info("grace period expired", "player_id", userID)
			s.removePlayer(userID, "lost connection")
		}
	})
	s.logger.Info("player disconnected, grace timer started", "player_id", userID)
}

// Leave removes the player immediately.
func (s *Session) Leave(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[userID]
	if !ok {
		return ErrPlayerNotFound
	}
	s.removePlayer(userID, fmt.Sprintf("%s left the room", p.Name))
	return nil
}

// Kick is host-only and never applies to the host themselves.
func (s *Session) Kick(actorID, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireHost(actorID); err != nil {
		return err
	}
	if s.status == StatusCountdown {
		return fmt.Errorf("%w: roster is frozen during the countdown", ErrInvalidState)
	}
	target, ok := s.players[targetID]
	if !ok {
		return ErrPlayerNotFound
	}
	if targetID == s.hostID {
		return ErrCannotKickHost
	}

	s.removePlayer(targetID, fmt.Sprintf("%s was kicked", target.Name))
	return nil
}

// Promote swaps the host role atomically: the old host becomes a
// regular player in the same mutation, so there is never a window with
// two hosts or none.
func (s *Session) Promote(actorID, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireHost(actorID); err != nil {
		return err
	}
	if s.status == StatusCountdown {
		return fmt.Errorf("%w: roster is frozen during the countdown", ErrInvalidState)
	}
	target, ok := s.players[targetID]
	if !ok {
		return ErrPlayerNotFound
	}
	if target.Role == RoleSpectator {
		return fmt.Errorf("%w: spectators cannot host", ErrValidation)
	}
	if targetID == actorID {
		return nil
	}

	s.players[actorID].Role = RolePlayer
	target.Role = RoleHost
	s.hostID = targetID

	if !s.hostInvariantHolds() {
		s.teardown("host invariant violated")
		return nil
	}

	s.systemChat(fmt.Sprintf("%s is now the host", target.Name))
	s.broadcastState()
	return nil
}

// Lock toggles the join lock. Locked rooms refuse new joins but still
// accept reconnections of existing members.
func (s *Session) Lock(actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireHost(actorID); err != nil {
		return err
	}
	s.locked = !s.locked
	s.broadcastState()
	return nil
}

// SetTeam assigns or clears (nil) a player's team. Host-only and only
// meaningful with team mode on.
func (s *Session) SetTeam(actorID, targetID string, team *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireHost(actorID); err != nil {
		return err
	}
	if !s.teamMode {
		return ErrTeamModeOff
	}
	if s.status != StatusLobby {
		return fmt.Errorf("%w: teams are set in the lobby", ErrInvalidState)
	}
	target, ok := s.players[targetID]
	if !ok {
		return ErrPlayerNotFound
	}

	if team == nil {
		target.Team = ""
	} else {
		target.Team = *team
	}
	s.broadcastState()
	return nil
}

func (s *Session) SetModifiers(actorID string, m events.Modifiers) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireHost(actorID); err != nil {
		return err
	}
	if s.status != StatusLobby {
		return fmt.Errorf("%w: modifiers are set in the lobby", ErrInvalidState)
	}
	if m.WordCount == 0 {
		m.WordCount = texts.DefaultWordCount
	}
	s.modifiers = m
	s.broadcastState()
	return nil
}

// SetText installs a custom race text in place of a generated one.
func (s *Session) SetText(actorID, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireHost(actorID); err != nil {
		return err
	}
	if s.status != StatusLobby {
		return fmt.Errorf("%w: the text is set in the lobby", ErrInvalidState)
	}
	t := texts.Custom(body)
	if t.WordCount == 0 {
		return fmt.Errorf("%w: empty text", ErrValidation)
	}
	s.customText = &t
	s.broadcastState()
	return nil
}

// Start begins the countdown. Host-only, lobby-only, and the room needs
// at least one racer.
func (s *Session) Start(actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireHost(actorID); err != nil {
		return err
	}
	if s.status != StatusLobby {
		return fmt.Errorf("%w: start is only valid from the lobby", ErrInvalidState)
	}
	if s.racerCount() == 0 {
		return fmt.Errorf("%w: no racers in the room", ErrValidation)
	}

	s.transition(StatusCountdown)
	s.broadcastState()
	s.countdownTick(s.cfg.CountdownTicks, s.epoch)
	return nil
}

// Progress applies a racer's latest report. Latest value wins; two
// reports from the same player need no ordering between them.
func (s *Session) Progress(userID string, typed, total int, wpm, accuracy float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRace {
		return fmt.Errorf("%w: no race in progress", ErrInvalidState)
	}
	p, ok := s.players[userID]
	if !ok {
		return ErrPlayerNotFound
	}
	if !p.racing() {
		return ErrSpectator
	}
	if p.finished() {
		return nil
	}
	// The session owns the text; a self-declared total cannot shorten
	// the race.
	if total != s.raceText.TotalChars || typed < 0 || typed > total {
		return fmt.Errorf("%w: progress report out of range", ErrValidation)
	}

	p.Typed, p.Total = typed, total
	p.WPM, p.Accuracy = wpm, accuracy

	if s.modifiers.SuddenDeath && accuracy < suddenDeathAccuracy && typed < total {
		p.strikes++
		if p.strikes > s.modifiers.SuddenDeathLimit {
			now := time.Now()
			p.Eliminated = true
			p.FinishedAt = &now
			s.bc.Broadcast(s.code, events.Outbound{
				Kind:    events.RaceEliminate,
				Payload: ProgressPayload{UserID: userID, Typed: typed, Total: total, Pct: p.ProgressPct()},
			})
			s.systemChat(fmt.Sprintf("%s was eliminated", p.Name))
			s.maybeFinishRace()
			return nil
		}
	}

	if typed == total {
		now := time.Now()
		p.FinishedAt = &now
	}

	s.bc.Broadcast(s.code, events.Outbound{
		Kind: events.RaceProgress,
		Payload: ProgressPayload{
			UserID:   userID,
			Typed:    typed,
			Total:    total,
			Pct:      p.ProgressPct(),
			WPM:      wpm,
			Accuracy: accuracy,
			Finished: p.finished(),
		},
	})

	s.maybeFinishRace()
	return nil
}

// Chat appends to the bounded room log and broadcasts the line.
func (s *Session) Chat(userID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[userID]
	if !ok {
		return ErrPlayerNotFound
	}

	entry := ChatEntry{
		SenderID:   userID,
		SenderName: p.Name,
		Text:       text,
		SentAt:     time.Now(),
	}
	s.appendChat(entry)
	s.bc.Broadcast(s.code, events.Outbound{Kind: events.ChatMessage, Payload: entry})
	return nil
}

// Typing relays the indicator to everyone but the sender. Best effort:
// indicators expire client-side, so nothing is stored or retried.
func (s *Session) Typing(userID string, stop bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[userID]
	if !ok {
		return ErrPlayerNotFound
	}

	kind := events.ChatTyping
	if stop {
		kind = events.ChatTypingStop
	}
	s.bc.BroadcastExcept(s.code, userID, events.Outbound{
		Kind:    kind,
		Payload: map[string]string{"user_id": userID, "name": p.Name},
	})
	return nil
}

// Snapshot returns the full room:state view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Has reports whether the user belongs to the room, connected or not.
func (s *Session) Has(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.players[userID]
	return ok
}

// Expired reports whether the registry should destroy the room: closed
// already, or empty for longer than the grace period.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return true
	}
	return len(s.players) == 0 && !s.emptySince.IsZero() &&
		time.Since(s.emptySince) > s.cfg.GracePeriod
}

// Close tears the room down and notifies members. Idempotent.
func (s *Session) Close(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.teardown(reason)
}

// --- internals; every method below expects the lock held ---

func (s *Session) requireHost(actorID string) error {
	if _, ok := s.players[actorID]; !ok {
		return ErrPlayerNotFound
	}
	if actorID != s.hostID {
		return ErrNotHost
	}
	return nil
}

func (s *Session) racerCount() int {
	n := 0
	for _, p := range s.players {
		if p.racing() {
			n++
		}
	}
	return n
}

// transition bumps the epoch so timers from the previous phase cannot
// fire into this one.
func (s *Session) transition(next Status) {
	s.status = next
	s.epoch++
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = s.timers[:0]
}

func (s *Session) after(d time.Duration, epoch int, fn func()) {
	t := time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || s.epoch != epoch {
			return
		}
		fn()
	})
	s.timers = append(s.timers, t)
}

func (s *Session) countdownTick(remaining, epoch int) {
	s.bc.Broadcast(s.code, events.Outbound{
		Kind:    events.CountdownTick,
		Payload: map[string]int{"remaining": remaining},
	})
	if remaining <= 0 {
		s.startRace()
		return
	}
	s.after(s.cfg.TickInterval, epoch, func() {
		s.countdownTick(remaining-1, epoch)
	})
}

func (s *Session) startRace() {
	if s.customText != nil {
		s.raceText = *s.customText
	} else {
		s.raceText = texts.Generate(s.modifiers.WordCount)
	}

	for _, p := range s.players {
		p.Typed, p.Total = 0, s.raceText.TotalChars
		p.WPM, p.Accuracy = 0, 0
		p.FinishedAt, p.FinishRank = nil, 0
		p.DNF, p.Eliminated, p.strikes = false, false, 0
	}

	s.transition(StatusRace)
	s.raceStartedAt = time.Now()

	s.bc.Broadcast(s.code, events.Outbound{
		Kind:    events.RaceStarted,
		Payload: RaceStartedPayload{Text: s.raceText, RaceStartedAt: s.raceStartedAt},
	})
	s.logger.Info("race started", "words", s.raceText.WordCount, "racers", s.racerCount())

	epoch := s.epoch
	s.after(s.cfg.RaceTimeout, epoch, func() {
		for _, p := range s.players {
			if p.racing() && !p.finished() {
				p.DNF = true
			}
		}
		s.finishRace()
	})
}

func (s *Session) maybeFinishRace() {
	for _, p := range s.players {
		if p.racing() && !p.finished() && !p.DNF {
			return
		}
	}
	s.finishRace()
}

// finishRace computes the final ranking exactly once, persists attempts
// for every non-spectator, non-DNF racer and hands out XP.
func (s *Session) finishRace() {
	if s.status != StatusRace {
		return
	}
	s.transition(StatusResults)

	var finishers, eliminated []*Player
	var results []RankedResult

	for _, p := range s.players {
		switch {
		case !p.racing():
		case p.DNF:
			results = append(results, RankedResult{
				UserID: p.UserID, Name: p.Name, WPM: p.WPM, Accuracy: p.Accuracy, DNF: true,
			})
		case p.Eliminated:
			eliminated = append(eliminated, p)
		default:
			finishers = append(finishers, p)
		}
	}

	// WPM descending, ties by accuracy descending, then finish time.
	sort.Slice(finishers, func(i, j int) bool {
		a, b := finishers[i], finishers[j]
		if a.WPM != b.WPM {
			return a.WPM > b.WPM
		}
		if a.Accuracy != b.Accuracy {
			return a.Accuracy > b.Accuracy
		}
		return a.FinishedAt.Before(*b.FinishedAt)
	})
	sort.Slice(eliminated, func(i, j int) bool {
		return eliminated[i].FinishedAt.Before(*eliminated[j].FinishedAt)
	})

	rank := 0
	ranked := append(finishers, eliminated...)
	for _, p := range ranked {
		rank++
		p.FinishRank = rank
	}

	var attempts []scoring.Attempt
	for _, p := range ranked {
		a := scoring.NewAttempt(p.UserID, scoring.ModeMultiplayer, p.WPM, p.Accuracy, s.raceText.WordCount, p.FinishRank)
		breakdown := scoring.Score(a)
		attempts = append(attempts, a)
		results = append(results, RankedResult{
			UserID: p.UserID, Name: p.Name, Rank: p.FinishRank,
			WPM: a.WPM, Accuracy: a.Accuracy, XP: breakdown.Total,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].DNF != results[j].DNF {
			return !results[i].DNF
		}
		return results[i].Rank < results[j].Rank
	})

	s.bc.Broadcast(s.code, events.Outbound{Kind: events.RaceFinished, Payload: results})
	s.broadcastState()
	s.logger.Info("race finished", "finishers", len(finishers), "eliminated", len(eliminated))

	// Persistence and XP awards run off the session lock; the results
	// screen does not wait on the database.
	go s.persistAttempts(attempts)

	epoch := s.epoch
	s.after(s.cfg.ResultsWindow, epoch, func() {
		s.transition(StatusLobby)
		s.broadcastState()
	})
}

func (s *Session) persistAttempts(attempts []scoring.Attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, a := range attempts {
		if err := s.store.AppendAttempt(ctx, a); err != nil {
			s.logger.Error("failed to persist attempt", "error", err, "player_id", a.UserID)
			continue
		}

		breakdown := scoring.Score(a)
		entry, err := s.store.AppendXp(ctx, a.UserID, "multiplayer race", breakdown.Total)
		if err != nil {
			s.logger.Error("failed to append xp", "error", err, "player_id", a.UserID)
			continue
		}

		// Crossing a threshold notifies that player only.
		if entry.Level > scoring.LevelAt(entry.TotalXP-entry.Amount) {
			s.bc.Send(a.UserID, events.Outbound{
				Kind:    events.LevelUp,
				Payload: map[string]any{"level": entry.Level, "total_xp": entry.TotalXP},
			})
		}
	}
}

func (s *Session) removePlayer(userID, announcement string) {
	p, ok := s.players[userID]
	if !ok {
		return
	}
	if p.graceTimer != nil {
		p.graceTimer.Stop()
	}
	delete(s.players, userID)

	if len(s.players) == 0 {
		s.emptySince = time.Now()
		return
	}

	wasHost := userID == s.hostID
	if wasHost {
		s.reassignHost()
	}

	if !s.hostInvariantHolds() {
		s.teardown("host invariant violated")
		return
	}

	s.systemChat(announcement)
	s.broadcastState()

	if s.status == StatusRace {
		s.maybeFinishRace()
	}
}

// reassignHost hands the role to the longest-tenured connected
// non-spectator; with none left the room just waits for cleanup.
func (s *Session) reassignHost() {
	var oldest *Player
	for _, p := range s.players {
		if !p.racing() {
			continue
		}
		if oldest == nil || p.JoinedAt.Before(oldest.JoinedAt) {
			oldest = p
		}
	}
	if oldest == nil {
		s.hostID = ""
		return
	}
	oldest.Role = RoleHost
	s.hostID = oldest.UserID
	s.systemChat(fmt.Sprintf("%s is now the host", oldest.Name))
	s.logger.Info("host reassigned", "player_id", oldest.UserID)
}

func (s *Session) hostInvariantHolds() bool {
	hosts := 0
	racers := 0
	for _, p := range s.players {
		if p.Role == RoleHost {
			hosts++
		}
		if p.racing() {
			racers++
		}
	}
	if racers == 0 {
		return hosts == 0
	}
	return hosts == 1
}

// teardown is the fatal path for this room only: members get a generic
// closed event, timers die, other rooms are unaffected.
func (s *Session) teardown(reason string) {
	s.logger.Error("room torn down", "reason", reason)
	s.transition(StatusClosed)
	s.closed = true
	for _, p := range s.players {
		if p.graceTimer != nil {
			p.graceTimer.Stop()
		}
	}
	s.bc.Broadcast(s.code, events.Outbound{
		Kind:    events.RoomClosed,
		Payload: map[string]string{"reason": "room closed"},
	})
}

func (s *Session) systemChat(text string) {
	s.appendChat(ChatEntry{
		SenderID: "system",
		Text:     text,
		SentAt:   time.Now(),
	})
}

func (s *Session) appendChat(entry ChatEntry) {
	s.chat = append(s.chat, entry)
	if len(s.chat) > chatLogSize {
		s.chat = s.chat[len(s.chat)-chatLogSize:]
	}
}

func (s *Session) snapshotLocked() Snapshot {
	players := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, *p)
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})

	chat := make([]ChatEntry, len(s.chat))
	copy(chat, s.chat)

	return Snapshot{
		Code:      s.code,
		Name:      s.name,
		Status:    s.status,
		Locked:    s.locked,
		TeamMode:  s.teamMode,
		Modifiers: s.modifiers,
		HostID:    s.hostID,
		Players:   players,
		Chat:      chat,
		CreatedAt: s.createdAt,
	}
}

// broadcastState pushes a full snapshot after a mutation. Rooms cap at
// ten players, so snapshots stay cheap and clients need no merge logic.
func (s *Session) broadcastState() {
	s.bc.Broadcast(s.code, events.Outbound{Kind: events.RoomState, Payload: s.snapshotLocked()})
}
