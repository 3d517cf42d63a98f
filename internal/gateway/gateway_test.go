package gateway_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"typerace-realtime/internal/events"
	"typerace-realtime/internal/gateway"
	"typerace-realtime/internal/presence"
	"typerace-realtime/internal/rooms"
	"typerace-realtime/internal/store"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	registry *rooms.Registry
	url      string
}

func newTestServer(t *testing.T, cfg rooms.Config) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := gateway.NewHub(logger)
	registry := rooms.NewRegistry(cfg, hub, store.NewMemoryStore(), logger)
	tracker := presence.NewTracker(hub, logger)
	hub.Bind(registry, tracker)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		registry.Stop()
	})

	return &testServer{
		registry: registry,
		url:      "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (ts *testServer) dial(t *testing.T, userID, name string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(ts.url+"?user_id="+userID+"&name="+name, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendFrame(t *testing.T, ws *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))
}

type wireFrame struct {
	Kind    events.Kind     `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// awaitKind reads frames until one of the wanted kind arrives.
func awaitKind(t *testing.T, ws *websocket.Conn, kind events.Kind) json.RawMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %s", kind)
		var f wireFrame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Kind == kind {
			return f.Payload
		}
	}
}

// assertSilent fails if any frame arrives within the window. The read
// deadline poisons the connection, so only call this last.
func assertSilent(t *testing.T, ws *websocket.Conn, window time.Duration) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(window)))
	_, data, err := ws.ReadMessage()
	if err == nil {
		t.Fatalf("expected no frame, received %s", data)
	}
}

func createRoom(t *testing.T, host *websocket.Conn) string {
	t.Helper()
	sendFrame(t, host, `{"kind":"room:create","room_name":"race night"}`)
	payload := awaitKind(t, host, events.RoomCreated)
	var snap rooms.Snapshot
	require.NoError(t, json.Unmarshal(payload, &snap))
	require.Len(t, snap.Code, 6)
	return snap.Code
}

func TestRedialWithinGraceIsReattached(t *testing.T) {
	srv := newTestServer(t, rooms.Config{GracePeriod: 2 * time.Second})

	host := srv.dial(t, "h1", "host")
	code := createRoom(t, host)

	bob := srv.dial(t, "b1", "bob")
	sendFrame(t, bob, `{"kind":"room:join","room_code":"`+code+`"}`)
	awaitKind(t, bob, events.RoomState)

	bob.Close()
	bob = srv.dial(t, "b1", "bob")

	// Re-attachment delivers a fresh snapshot and room traffic resumes.
	awaitKind(t, bob, events.RoomState)
	sendFrame(t, host, `{"kind":"chat:send","room_code":"`+code+`","message":"welcome back"}`)
	awaitKind(t, bob, events.ChatMessage)
}

func TestRedialAfterGraceExpiryIsNotReattached(t *testing.T) {
	srv := newTestServer(t, rooms.Config{
		TickInterval: 5 * time.Millisecond,
		GracePeriod:  30 * time.Millisecond,
	})

	host := srv.dial(t, "h1", "host")
	code := createRoom(t, host)

	bob := srv.dial(t, "b1", "bob")
	sendFrame(t, bob, `{"kind":"room:join","room_code":"`+code+`"}`)
	awaitKind(t, bob, events.RoomState)

	bob.Close()
	session, err := srv.registry.Get(code)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return !session.Has("b1")
	}, time.Second, 5*time.Millisecond, "grace expiry never removed the player")

	// Re-dialing after removal clears the stale index entry instead of
	// re-attaching the connection to the room.
	bob = srv.dial(t, "b1", "bob")
	require.Eventually(t, func() bool {
		_, ok := srv.registry.RoomOf("b1")
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.False(t, session.Has("b1"))

	sendFrame(t, host, `{"kind":"chat:send","room_code":"`+code+`","message":"members only"}`)
	awaitKind(t, host, events.ChatMessage)
	assertSilent(t, bob, 150*time.Millisecond)
}

func TestLeaveIgnoresClientSuppliedRoomCode(t *testing.T) {
	srv := newTestServer(t, rooms.Config{GracePeriod: 2 * time.Second})

	host := srv.dial(t, "h1", "host")
	code := createRoom(t, host)

	bob := srv.dial(t, "b1", "bob")
	sendFrame(t, bob, `{"kind":"room:join","room_code":"`+code+`"}`)
	awaitKind(t, bob, events.RoomState)

	// The declared code is wrong; the server resolves the real room.
	sendFrame(t, bob, `{"kind":"room:leave","room_code":"ZZZZZZ"}`)

	session, err := srv.registry.Get(code)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return !session.Has("b1")
	}, time.Second, 5*time.Millisecond)

	sendFrame(t, host, `{"kind":"chat:send","room_code":"`+code+`","message":"anyone there"}`)
	awaitKind(t, host, events.ChatMessage)
	assertSilent(t, bob, 150*time.Millisecond)
}
