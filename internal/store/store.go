package store

import (
	"context"
	"time"

	"typerace-realtime/internal/scoring"
)

// UserTotals is the folded state of a user's XP ledger.
type UserTotals struct {
	UserID  string `json:"user_id"`
	TotalXP int    `json:"total_xp"`
	Level   int    `json:"level"`
}

// Store is the durable side of the coordinator: attempts and XP ledger
// entries are append-only, room and roster state never reaches it.
type Store interface {
	// AppendAttempt durably records a completed attempt.
	AppendAttempt(ctx context.Context, a scoring.Attempt) error

	// AppendXp folds an award into the user's ledger and returns the
	// entry with the resulting totals.
	AppendXp(ctx context.Context, userID, reason string, amount int) (scoring.XpLedgerEntry, error)

	// AttemptsSince returns attempts for a mode created at or after
	// since, newest first. A zero since means all time.
	AttemptsSince(ctx context.Context, mode scoring.Mode, since time.Time) ([]scoring.Attempt, error)

	// UserAttemptsSince is AttemptsSince filtered to one user.
	UserAttemptsSince(ctx context.Context, userID string, mode scoring.Mode, since time.Time) ([]scoring.Attempt, error)

	// Totals returns the user's current XP total and level.
	Totals(ctx context.Context, userID string) (UserTotals, error)
}
