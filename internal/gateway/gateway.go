package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"typerace-realtime/internal/events"
	"typerace-realtime/internal/presence"
	"typerace-realtime/internal/rooms"

	"github.com/gorilla/websocket"
)

// Hub owns every live websocket connection and implements the room
// Broadcaster. Outbound frames go through per-connection buffered
// channels, so a slow reader drops its own connection instead of
// stalling the room that is broadcasting.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	registry *rooms.Registry
	presence *presence.Tracker

	mu        sync.RWMutex
	conns     map[string]*Conn            // userID -> connection
	roomConns map[string]map[string]*Conn // room code -> userID -> connection
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns:     make(map[string]*Conn),
		roomConns: make(map[string]map[string]*Conn),
	}
}

// Bind wires the collaborators that are constructed after the hub.
func (h *Hub) Bind(registry *rooms.Registry, tracker *presence.Tracker) {
	h.registry = registry
	h.presence = tracker
}

// ServeWS upgrades the connection and attaches the already-validated
// identity. Credentials are never re-checked here.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := rooms.Identity{
		UserID: r.URL.Query().Get("user_id"),
		Name:   r.URL.Query().Get("name"),
	}
	if id.UserID == "" || id.Name == "" {
		http.Error(w, "missing identity", http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	conn := newConn(h, ws, id)
	h.register(conn)
	h.presence.Online(id.UserID, id.Name)

	go conn.writePump()
	go conn.readPump()

	h.logger.Info("connection established", "player_id", id.UserID)

	// A reconnecting player is re-attached to their room and brought
	// back up to date with a fresh snapshot. The session confirms the
	// membership before the connection sees any room traffic; the
	// reconnect path resumes the existing record, so the player keeps
	// whatever role they held.
	if code, ok := h.registry.RoomOf(id.UserID); ok {
		session, err := h.registry.Get(code)
		if err == nil && session.Has(id.UserID) {
			if err := session.Join(id, false); err == nil {
				h.addToRoom(code, conn)
				conn.send(events.Outbound{Kind: events.RoomState, Payload: session.Snapshot()})
			}
		} else {
			// The grace period already expired or the room is gone;
			// drop the stale index entry.
			h.registry.Forget(id.UserID)
		}
	}
}

// Broadcast delivers to every member of a room, in the order the room
// session applied its mutations (the session holds its lock across the
// call, so per-room ordering is preserved).
func (h *Hub) Broadcast(code string, msg events.Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast", "error", err, "kind", msg.Kind)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conn := range h.roomConns[code] {
		conn.enqueue(data)
	}
}

func (h *Hub) BroadcastExcept(code, exceptUserID string, msg events.Outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast", "error", err, "kind", msg.Kind)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for userID, conn := range h.roomConns[code] {
		if userID == exceptUserID {
			continue
		}
		conn.enqueue(data)
	}
}

// Send delivers to a single user if connected.
func (h *Hub) Send(userID string, msg events.Outbound) {
	h.mu.RLock()
	conn, ok := h.conns[userID]
	h.mu.RUnlock()
	if ok {
		conn.send(msg)
	}
}

func (h *Hub) register(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// A second connection for the same identity replaces the first.
	if old, ok := h.conns[conn.id.UserID]; ok {
		old.close()
	}
	h.conns[conn.id.UserID] = conn
}

func (h *Hub) unregister(conn *Conn) {
	h.mu.Lock()
	current, ok := h.conns[conn.id.UserID]
	if !ok || current != conn {
		// Already replaced by a newer connection; nothing to tear down.
		h.mu.Unlock()
		return
	}
	delete(h.conns, conn.id.UserID)
	for _, members := range h.roomConns {
		delete(members, conn.id.UserID)
	}
	h.mu.Unlock()

	h.presence.Offline(conn.id.UserID)

	// The session keeps the player's record through the grace period.
	if code, ok := h.registry.RoomOf(conn.id.UserID); ok {
		if session, err := h.registry.Get(code); err == nil {
			session.Disconnect(conn.id.UserID)
		}
	}

	h.logger.Info("connection closed", "player_id", conn.id.UserID)
}

func (h *Hub) addToRoom(code string, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.roomConns[code] == nil {
		h.roomConns[code] = make(map[string]*Conn)
	}
	h.roomConns[code][conn.id.UserID] = conn
}

func (h *Hub) removeFromRoom(code, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.roomConns[code]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(h.roomConns, code)
		}
	}
}
