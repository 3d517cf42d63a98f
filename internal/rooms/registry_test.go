package rooms_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"typerace-realtime/internal/rooms"
	"typerace-realtime/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *rooms.Registry {
	t.Helper()
	r := rooms.NewRegistry(fastConfig(), newFakeBroadcaster(), store.NewMemoryStore(), testLogger)
	t.Cleanup(r.Stop)
	return r
}

func TestCreateJoinsCreatorAsHost(t *testing.T) {
	r := newTestRegistry(t)

	session, err := r.Create(alice(), "morning race", false)
	require.NoError(t, err)

	snap := session.Snapshot()
	assert.Equal(t, "u1", snap.HostID)
	assert.Len(t, snap.Code, 6)
	assert.Equal(t, "morning race", snap.Name)

	code, ok := r.RoomOf("u1")
	require.True(t, ok)
	assert.Equal(t, snap.Code, code)
}

func TestConcurrentCreatesGetUniqueCodes(t *testing.T) {
	r := newTestRegistry(t)

	const n = 50
	codes := make(chan string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := rooms.Identity{UserID: string(rune('A' + i%26)) + string(rune('a'+i/26)), Name: "p"}
			session, err := r.Create(id, "room", false)
			if err == nil {
				codes <- session.Code()
			}
		}(i)
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]bool)
	count := 0
	for code := range codes {
		assert.False(t, seen[code], "duplicate room code %s", code)
		seen[code] = true
		count++
	}
	assert.Equal(t, n, count)
}

func TestJoinIsCaseInsensitive(t *testing.T) {
	r := newTestRegistry(t)

	session, err := r.Create(alice(), "room", false)
	require.NoError(t, err)

	joined, err := r.Join(bob(), strings.ToLower(session.Code()), false)
	require.NoError(t, err)
	assert.Same(t, session, joined)
}

func TestJoinUnknownCode(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Join(alice(), "NOSUCH", false)
	assert.ErrorIs(t, err, rooms.ErrRoomNotFound)
}

func TestOneRoomPerPlayer(t *testing.T) {
	r := newTestRegistry(t)

	first, err := r.Create(alice(), "first", false)
	require.NoError(t, err)
	second, err := r.Create(bob(), "second", false)
	require.NoError(t, err)

	_, err = r.Create(alice(), "third", false)
	assert.ErrorIs(t, err, rooms.ErrAlreadyInRoom)

	_, err = r.Join(alice(), second.Code(), false)
	assert.ErrorIs(t, err, rooms.ErrAlreadyInRoom)

	// Re-joining the current room is the reconnect path.
	_, err = r.Join(alice(), first.Code(), false)
	assert.NoError(t, err)
}

func TestLeaveClearsIndex(t *testing.T) {
	r := newTestRegistry(t)

	session, err := r.Create(alice(), "room", false)
	require.NoError(t, err)
	_, err = r.Join(bob(), session.Code(), false)
	require.NoError(t, err)

	require.NoError(t, r.Leave("u2"))
	_, ok := r.RoomOf("u2")
	assert.False(t, ok)
	assert.False(t, session.Has("u2"))

	// Free to join elsewhere now.
	_, err = r.Create(bob(), "own room", false)
	assert.NoError(t, err)
}

func TestFailedJoinLeavesNoIndexEntry(t *testing.T) {
	r := newTestRegistry(t)

	session, err := r.Create(alice(), "room", false)
	require.NoError(t, err)
	require.NoError(t, session.Lock("u1"))

	_, err = r.Join(bob(), session.Code(), false)
	require.ErrorIs(t, err, rooms.ErrRoomLocked)

	_, ok := r.RoomOf("u2")
	assert.False(t, ok)
}

func TestCleanupDestroysExpiredRooms(t *testing.T) {
	r := newTestRegistry(t)

	session, err := r.Create(alice(), "room", false)
	require.NoError(t, err)
	code := session.Code()

	require.NoError(t, r.Leave("u1"))

	// Empty rooms outlive the grace period, then cleanup reaps them.
	r.Cleanup()
	_, err = r.Get(code)
	assert.NoError(t, err, "empty room reaped before the grace period")

	time.Sleep(fastConfig().GracePeriod + 20*time.Millisecond)
	r.Cleanup()

	_, err = r.Get(code)
	assert.ErrorIs(t, err, rooms.ErrRoomNotFound)
	assert.Equal(t, rooms.StatusClosed, session.Status())
}

func TestCleanupReconcilesStaleIndexEntries(t *testing.T) {
	r := newTestRegistry(t)

	session, err := r.Create(alice(), "room", false)
	require.NoError(t, err)
	_, err = r.Join(bob(), session.Code(), false)
	require.NoError(t, err)

	// A kick removes the player inside the session only.
	require.NoError(t, session.Kick("u1", "u2"))
	_, ok := r.RoomOf("u2")
	require.True(t, ok, "index still stale before cleanup")

	r.Cleanup()
	_, ok = r.RoomOf("u2")
	assert.False(t, ok)
}

func TestListStripsChat(t *testing.T) {
	r := newTestRegistry(t)

	session, err := r.Create(alice(), "room", false)
	require.NoError(t, err)
	require.NoError(t, session.Chat("u1", "hello"))

	listing := r.List()
	require.Len(t, listing, 1)
	assert.Equal(t, session.Code(), listing[0].Code)
	assert.Nil(t, listing[0].Chat)
	assert.Len(t, listing[0].Players, 1)
}

func TestStopClosesEveryRoom(t *testing.T) {
	r := rooms.NewRegistry(fastConfig(), newFakeBroadcaster(), store.NewMemoryStore(), testLogger)

	a, err := r.Create(alice(), "one", false)
	require.NoError(t, err)
	b, err := r.Create(bob(), "two", false)
	require.NoError(t, err)

	r.Stop()

	assert.Equal(t, rooms.StatusClosed, a.Status())
	assert.Equal(t, rooms.StatusClosed, b.Status())
	_, ok := r.RoomOf("u1")
	assert.False(t, ok)
}
