package scoring

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Bounds used to reject corrupt client reports. Out-of-range attempts
// are still scored, but with clamped values and the Flagged bit set.
const (
	MaxWPM      = 350
	MaxAccuracy = 100
)

type Mode string

const (
	ModePractice    Mode = "practice"
	ModeMultiplayer Mode = "multiplayer"
)

// Attempt is one completed typing test for one user. Immutable once
// created; it feeds both the XP award and the leaderboards.
type Attempt struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Mode      Mode      `json:"mode"`
	WPM       float64   `json:"wpm"`
	Accuracy  float64   `json:"accuracy"`
	Rank      int       `json:"rank,omitempty"` // multiplayer only, 0 = not ranked
	WordCount int       `json:"word_count"`
	DNF       bool      `json:"dnf"`
	Flagged   bool      `json:"flagged"` // report was out of bounds before clamping
	CreatedAt time.Time `json:"created_at"`
}

// XpLedgerEntry records a single XP award. A user's level and total XP
// are the fold of their entries.
type XpLedgerEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	TotalXP   int       `json:"total_xp"`
	Level     int       `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

// XpBreakdown itemizes an award so the client can render it.
type XpBreakdown struct {
	WordXP        int `json:"word_xp"`
	CompletionXP  int `json:"completion_xp"`
	AccuracyBonus int `json:"accuracy_bonus"`
	WPMBonus      int `json:"wpm_bonus"`
	RankBonus     int `json:"rank_bonus"`
	Total         int `json:"total"`
}

// NewAttempt builds an attempt from client-reported numbers, clamping
// WPM and accuracy to sane bounds. Clamped attempts are flagged for
// audit rather than silently trusted.
func NewAttempt(userID string, mode Mode, wpm, accuracy float64, wordCount, rank int) Attempt {
	a := Attempt{
		ID:        uuid.NewString(),
		UserID:    userID,
		Mode:      mode,
		WPM:       wpm,
		Accuracy:  accuracy,
		Rank:      rank,
		WordCount: wordCount,
		CreatedAt: time.Now().UTC(),
	}

	if a.WPM < 0 {
		a.WPM, a.Flagged = 0, true
	}
	if a.WPM > MaxWPM {
		a.WPM, a.Flagged = MaxWPM, true
	}
	if a.Accuracy < 0 {
		a.Accuracy, a.Flagged = 0, true
	}
	if a.Accuracy > MaxAccuracy {
		a.Accuracy, a.Flagged = MaxAccuracy, true
	}
	if a.WordCount < 0 {
		a.WordCount, a.Flagged = 0, true
	}

	return a
}

// Score computes the XP award for a completed attempt.
func Score(a Attempt) XpBreakdown {
	b := XpBreakdown{
		WordXP:       int(float64(a.WordCount) * a.Accuracy * 2 / 100),
		CompletionXP: 1,
		WPMBonus:     int(math.Floor(a.WPM / 10)),
	}

	if a.Accuracy >= 95 {
		b.AccuracyBonus = 5
	}

	if a.Mode == ModeMultiplayer {
		switch a.Rank {
		case 1:
			b.RankBonus = 20
		case 2:
			b.RankBonus = 10
		}
	}

	b.Total = b.WordXP + b.CompletionXP + b.AccuracyBonus + b.WPMBonus + b.RankBonus
	return b
}

// XPForLevel is the XP required to advance from level l to l+1.
func XPForLevel(l int) int {
	if l < 1 {
		return 0
	}
	return 100 + (l-1)*35
}

// LevelAt returns the level a player holds with the given lifetime XP:
// the largest L whose cumulative threshold for levels 1..L-1 fits.
func LevelAt(totalXP int) int {
	level := 1
	for totalXP >= XPForLevel(level) {
		totalXP -= XPForLevel(level)
		level++
	}
	return level
}

// ProgressToNext reports XP into the current level and the XP needed
// to leave it.
func ProgressToNext(totalXP int) (into, needed int) {
	level := 1
	for totalXP >= XPForLevel(level) {
		totalXP -= XPForLevel(level)
		level++
	}
	return totalXP, XPForLevel(level)
}

// NewLedgerEntry folds an award into a user's running totals.
func NewLedgerEntry(userID, reason string, amount, previousTotal int) XpLedgerEntry {
	total := previousTotal + amount
	return XpLedgerEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		TotalXP:   total,
		Level:     LevelAt(total),
		CreatedAt: time.Now().UTC(),
	}
}
