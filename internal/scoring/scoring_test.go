package scoring_test

import (
	"testing"

	"typerace-realtime/internal/scoring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		attempt  scoring.Attempt
		expected scoring.XpBreakdown
	}{
		{
			name: "practice run with accuracy bonus",
			attempt: scoring.Attempt{
				UserID: "u1", Mode: scoring.ModePractice,
				WordCount: 50, Accuracy: 95, WPM: 50,
			},
			expected: scoring.XpBreakdown{
				WordXP: 95, CompletionXP: 1, AccuracyBonus: 5, WPMBonus: 5,
				Total: 106,
			},
		},
		{
			name: "multiplayer winner",
			attempt: scoring.Attempt{
				UserID: "u2", Mode: scoring.ModeMultiplayer,
				WordCount: 60, Accuracy: 98, WPM: 60, Rank: 1,
			},
			expected: scoring.XpBreakdown{
				WordXP: 117, CompletionXP: 1, AccuracyBonus: 5, WPMBonus: 6, RankBonus: 20,
				Total: 149,
			},
		},
		{
			name: "second place gets smaller rank bonus",
			attempt: scoring.Attempt{
				UserID: "u3", Mode: scoring.ModeMultiplayer,
				WordCount: 40, Accuracy: 90, WPM: 42, Rank: 2,
			},
			expected: scoring.XpBreakdown{
				WordXP: 72, CompletionXP: 1, WPMBonus: 4, RankBonus: 10,
				Total: 87,
			},
		},
		{
			name: "rank bonus ignored in practice mode",
			attempt: scoring.Attempt{
				UserID: "u4", Mode: scoring.ModePractice,
				WordCount: 40, Accuracy: 90, WPM: 42, Rank: 1,
			},
			expected: scoring.XpBreakdown{
				WordXP: 72, CompletionXP: 1, WPMBonus: 4,
				Total: 77,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoring.Score(tt.attempt)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNewAttemptClampsAndFlags(t *testing.T) {
	a := scoring.NewAttempt("u1", scoring.ModePractice, 900, 120, 30, 0)
	assert.True(t, a.Flagged)
	assert.Equal(t, float64(scoring.MaxWPM), a.WPM)
	assert.Equal(t, float64(scoring.MaxAccuracy), a.Accuracy)

	b := scoring.NewAttempt("u1", scoring.ModePractice, -5, -1, 30, 0)
	assert.True(t, b.Flagged)
	assert.Zero(t, b.WPM)
	assert.Zero(t, b.Accuracy)

	c := scoring.NewAttempt("u1", scoring.ModePractice, 80, 97.5, 30, 0)
	assert.False(t, c.Flagged)
	require.NotEmpty(t, c.ID)
}

func TestLevelThresholds(t *testing.T) {
	// Cumulative XP to reach each level: L2=100, L3=235, L5=610.
	assert.Equal(t, 1, scoring.LevelAt(0))
	assert.Equal(t, 1, scoring.LevelAt(99))
	assert.Equal(t, 2, scoring.LevelAt(100))
	assert.Equal(t, 2, scoring.LevelAt(234))
	assert.Equal(t, 3, scoring.LevelAt(235))
	assert.Equal(t, 4, scoring.LevelAt(609))
	assert.Equal(t, 5, scoring.LevelAt(610))
}

func TestProgressToNext(t *testing.T) {
	into, needed := scoring.ProgressToNext(150)
	assert.Equal(t, 50, into)
	assert.Equal(t, 135, needed)
}

func TestNewLedgerEntryNeverLowersLevel(t *testing.T) {
	entry := scoring.NewLedgerEntry("u1", "race finished", 120, 90)
	assert.Equal(t, 210, entry.TotalXP)
	assert.Equal(t, 2, entry.Level)
	assert.GreaterOrEqual(t, entry.Level, scoring.LevelAt(90))
}
