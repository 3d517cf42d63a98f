package store

import (
	"context"
	"sync"
	"time"

	"typerace-realtime/internal/scoring"
)

// MemoryStore keeps attempts and the XP ledger in process memory. Used
// by tests and as the fallback when no DATABASE_URL is configured.
type MemoryStore struct {
	attemptsMu sync.RWMutex
	attempts   []scoring.Attempt

	ledgerMu sync.RWMutex
	ledger   []scoring.XpLedgerEntry
	totals   map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		totals: make(map[string]int),
	}
}

func (s *MemoryStore) AppendAttempt(_ context.Context, a scoring.Attempt) error {
	s.attemptsMu.Lock()
	defer s.attemptsMu.Unlock()
	s.attempts = append(s.attempts, a)
	return nil
}

func (s *MemoryStore) AppendXp(_ context.Context, userID, reason string, amount int) (scoring.XpLedgerEntry, error) {
	s.ledgerMu.Lock()
	defer s.ledgerMu.Unlock()

	entry := scoring.NewLedgerEntry(userID, reason, amount, s.totals[userID])
	s.ledger = append(s.ledger, entry)
	s.totals[userID] = entry.TotalXP
	return entry, nil
}

func (s *MemoryStore) AttemptsSince(_ context.Context, mode scoring.Mode, since time.Time) ([]scoring.Attempt, error) {
	s.attemptsMu.RLock()
	defer s.attemptsMu.RUnlock()

	var result []scoring.Attempt
	for i := len(s.attempts) - 1; i >= 0; i-- {
		a := s.attempts[i]
		if a.Mode != mode {
			continue
		}
		if !since.IsZero() && a.CreatedAt.Before(since) {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (s *MemoryStore) UserAttemptsSince(ctx context.Context, userID string, mode scoring.Mode, since time.Time) ([]scoring.Attempt, error) {
	all, err := s.AttemptsSince(ctx, mode, since)
	if err != nil {
		return nil, err
	}

	var result []scoring.Attempt
	for _, a := range all {
		if a.UserID == userID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (s *MemoryStore) Totals(_ context.Context, userID string) (UserTotals, error) {
	s.ledgerMu.RLock()
	defer s.ledgerMu.RUnlock()

	total := s.totals[userID]
	return UserTotals{
		UserID:  userID,
		TotalXP: total,
		Level:   scoring.LevelAt(total),
	}, nil
}
