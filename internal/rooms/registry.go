package rooms

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"typerace-realtime/internal/store"
)

const (
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789" // no 0/O/1/I/L
	codeLength   = 6
)

// Registry maps room codes to live sessions. It is the only state
// shared between rooms, so it holds its lock just long enough to
// insert, resolve or remove an entry.
type Registry struct {
	cfg    Config
	logger *slog.Logger
	bc     Broadcaster
	store  store.Store

	mu         sync.RWMutex
	rooms      map[string]*Session
	playerRoom map[string]string // userID -> room code

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewRegistry(cfg Config, bc Broadcaster, st store.Store, logger *slog.Logger) *Registry {
	r := &Registry{
		cfg:        cfg,
		logger:     logger,
		bc:         bc,
		store:      st,
		rooms:      make(map[string]*Session),
		playerRoom: make(map[string]string),
		stopCh:     make(chan struct{}),
	}

	r.wg.Add(1)
	go r.cleanupLoop()

	return r
}

// Create makes a new room and joins the creator as its host. Codes are
// unique even under concurrent creation: generation and insertion
// happen under the same lock.
func (r *Registry) Create(id Identity, name string, teamMode bool) (*Session, error) {
	r.mu.Lock()
	if existing, ok := r.playerRoom[id.UserID]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInRoom, existing)
	}

	code, err := r.uniqueCode()
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	session := NewSession(code, name, teamMode, r.cfg, r.bc, r.store, r.logger)
	r.rooms[code] = session
	r.playerRoom[id.UserID] = code
	r.mu.Unlock()

	if err := session.Join(id, false); err != nil {
		// Joining a freshly created empty room can only fail if the
		// session was closed underneath us; undo the registration.
		r.forget(code, id.UserID)
		return nil, err
	}

	r.logger.Info("room created", "room_code", code, "host_id", id.UserID, "name", name)
	return session, nil
}

// Join resolves the code and adds the player. Joining while already in
// a different room is a conflict; re-joining the same room is the
// reconnect path and always allowed.
func (r *Registry) Join(id Identity, code string, spectator bool) (*Session, error) {
	code = strings.ToUpper(code)

	r.mu.Lock()
	session, ok := r.rooms[code]
	if !ok {
		r.mu.Unlock()
		return nil, ErrRoomNotFound
	}
	if existing, inRoom := r.playerRoom[id.UserID]; inRoom && existing != code {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInRoom, existing)
	}
	r.playerRoom[id.UserID] = code
	r.mu.Unlock()

	if err := session.Join(id, spectator); err != nil {
		r.mu.Lock()
		if !session.Has(id.UserID) {
			delete(r.playerRoom, id.UserID)
		}
		r.mu.Unlock()
		return nil, err
	}
	return session, nil
}

// Get resolves a room by code.
func (r *Registry) Get(code string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.rooms[strings.ToUpper(code)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return session, nil
}

// RoomOf returns the code of the room the user currently belongs to.
func (r *Registry) RoomOf(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.playerRoom[userID]
	return code, ok
}

// Leave removes the player from their room and clears the index entry.
func (r *Registry) Leave(userID string) error {
	r.mu.Lock()
	code, ok := r.playerRoom[userID]
	if !ok {
		r.mu.Unlock()
		return ErrPlayerNotFound
	}
	session := r.rooms[code]
	delete(r.playerRoom, userID)
	r.mu.Unlock()

	if session == nil {
		return ErrRoomNotFound
	}
	return session.Leave(userID)
}

// Forget clears the player index after a kick or grace expiry; the
// session has already removed the player itself.
func (r *Registry) Forget(userID string) {
	r.mu.Lock()
	delete(r.playerRoom, userID)
	r.mu.Unlock()
}

// List snapshots every live room for the directory endpoint.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.rooms))
	for _, s := range r.rooms {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snap := s.Snapshot()
		snap.Chat = nil // the directory does not need chat history
		snapshots = append(snapshots, snap)
	}
	return snapshots
}

// Stop shuts down the cleanup loop and closes every room.
func (r *Registry) Stop() {
	close(r.stopCh)
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	for code, session := range r.rooms {
		session.Close("server shutting down")
		delete(r.rooms, code)
	}
	r.playerRoom = make(map[string]string)
}

// Cleanup destroys expired rooms immediately. Exported for tests; the
// cleanup loop calls it once a minute.
func (r *Registry) Cleanup() {
	r.mu.RLock()
	var expired []*Session
	for _, s := range r.rooms {
		if s.Expired() {
			expired = append(expired, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range expired {
		s.Close("room expired")

		r.mu.Lock()
		delete(r.rooms, s.Code())
		for userID, code := range r.playerRoom {
			if code == s.Code() {
				delete(r.playerRoom, userID)
			}
		}
		r.mu.Unlock()

		r.logger.Info("room destroyed", "room_code", s.Code())
	}

	// Reconcile the player index: kicks and grace expiries remove
	// players inside the session, so drop stale entries here.
	r.mu.Lock()
	for userID, code := range r.playerRoom {
		if session, ok := r.rooms[code]; !ok || !session.Has(userID) {
			delete(r.playerRoom, userID)
		}
	}
	r.mu.Unlock()
}

func (r *Registry) cleanupLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Cleanup()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) forget(code, userID string) {
	r.mu.Lock()
	delete(r.rooms, code)
	delete(r.playerRoom, userID)
	r.mu.Unlock()
}

// uniqueCode generates a short shareable code not already in use.
// Caller holds the write lock.
func (r *Registry) uniqueCode() (string, error) {
	for range 20 {
		b := make([]byte, codeLength)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		for i := range b {
			b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
		}
		code := string(b)
		if _, taken := r.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique room code")
}
