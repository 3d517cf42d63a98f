package leaderboard

import (
	"context"
	"testing"
	"time"

	"typerace-realtime/internal/scoring"
	"typerace-realtime/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAttempt(t *testing.T, s store.Store, userID string, wpm, acc float64, createdAt time.Time) {
	t.Helper()
	a := scoring.NewAttempt(userID, scoring.ModePractice, wpm, acc, 50, 0)
	a.CreatedAt = createdAt
	require.NoError(t, s.AppendAttempt(context.Background(), a))
}

func TestTopOrdering(t *testing.T) {
	mem := store.NewMemoryStore()
	now := time.Now()

	seedAttempt(t, mem, "alice", 90, 96, now)
	seedAttempt(t, mem, "alice", 70, 99, now) // best WPM wins, not latest
	seedAttempt(t, mem, "bob", 90, 98, now)   // same WPM as alice, higher accuracy
	seedAttempt(t, mem, "carol", 110, 80, now)

	ag := New(mem)
	entries, err := ag.Top(context.Background(), scoring.ModePractice, PeriodAll, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "carol", entries[0].UserID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "bob", entries[1].UserID) // accuracy tie-break
	assert.Equal(t, "alice", entries[2].UserID)
	assert.Equal(t, 2, entries[2].GameCount)
	assert.Equal(t, float64(90), entries[2].BestWPM)
	assert.Equal(t, float64(99), entries[2].BestAccuracy)
}

func TestTodayWindowExcludesYesterday(t *testing.T) {
	mem := store.NewMemoryStore()

	// Queried one second after midnight: yesterday's attempt, even one
	// only two seconds old, must not count.
	queryTime := time.Date(2025, 6, 10, 0, 0, 1, 0, time.UTC)
	seedAttempt(t, mem, "alice", 120, 99, queryTime.Add(-2*time.Second))
	seedAttempt(t, mem, "bob", 60, 90, queryTime.Add(-1*time.Millisecond*500))

	ag := New(mem)
	ag.now = func() time.Time { return queryTime }

	entries, err := ag.Top(context.Background(), scoring.ModePractice, PeriodToday, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].UserID)
}

func TestWindowNotCachedAcrossBoundary(t *testing.T) {
	mem := store.NewMemoryStore()
	day1 := time.Date(2025, 6, 9, 23, 59, 0, 0, time.UTC)
	seedAttempt(t, mem, "alice", 100, 95, day1)

	ag := New(mem)

	ag.now = func() time.Time { return day1.Add(time.Second) }
	entries, err := ag.Top(context.Background(), scoring.ModePractice, PeriodToday, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Same query after midnight sees an empty board.
	ag.now = func() time.Time { return day1.Add(2 * time.Minute) }
	entries, err = ag.Top(context.Background(), scoring.ModePractice, PeriodToday, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDNFExcluded(t *testing.T) {
	mem := store.NewMemoryStore()
	a := scoring.NewAttempt("alice", scoring.ModePractice, 100, 95, 50, 0)
	a.DNF = true
	require.NoError(t, mem.AppendAttempt(context.Background(), a))

	ag := New(mem)
	entries, err := ag.Top(context.Background(), scoring.ModePractice, PeriodAll, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	stats, err := ag.StatsFor(context.Background(), "alice", scoring.ModePractice, PeriodAll)
	require.NoError(t, err)
	assert.Zero(t, stats.GameCount)
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodAll, p)

	_, err = ParsePeriod("fortnight")
	assert.Error(t, err)
}

func TestStatsFor(t *testing.T) {
	mem := store.NewMemoryStore()
	now := time.Now()
	seedAttempt(t, mem, "alice", 80, 92, now)
	seedAttempt(t, mem, "alice", 95, 88, now)
	seedAttempt(t, mem, "bob", 120, 99, now)

	ag := New(mem)
	stats, err := ag.StatsFor(context.Background(), "alice", scoring.ModePractice, PeriodAll)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.GameCount)
	assert.Equal(t, float64(95), stats.BestWPM)
	assert.Equal(t, float64(92), stats.BestAccuracy)
}
