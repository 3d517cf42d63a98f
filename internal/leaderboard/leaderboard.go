package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"typerace-realtime/internal/scoring"
	"typerace-realtime/internal/store"
)

// Period selects the time window a ranking is computed over. Windows
// are resolved against the query clock, so "today" rolls over at
// midnight instead of serving a stale cache.
type Period string

const (
	PeriodAll   Period = "all"
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodAll, PeriodToday, PeriodWeek, PeriodMonth:
		return Period(s), nil
	case "":
		return PeriodAll, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Entry is one ranked row: a user's best numbers inside the window.
type Entry struct {
	UserID       string  `json:"user_id"`
	BestWPM      float64 `json:"best_wpm"`
	BestAccuracy float64 `json:"best_accuracy"`
	GameCount    int     `json:"game_count"`
	Rank         int     `json:"rank"`
}

// UserStats is the per-user "my stats" view.
type UserStats struct {
	UserID       string  `json:"user_id"`
	BestWPM      float64 `json:"best_wpm"`
	BestAccuracy float64 `json:"best_accuracy"`
	GameCount    int     `json:"game_count"`
}

// Aggregator derives rankings from the attempt log. It owns no state of
// its own; every query recomputes from the store.
type Aggregator struct {
	store store.Store
	now   func() time.Time
}

func New(s store.Store) *Aggregator {
	return &Aggregator{store: s, now: time.Now}
}

// WindowStart resolves a period to its inclusive lower bound relative
// to now. Zero time means unbounded.
func (ag *Aggregator) WindowStart(p Period) time.Time {
	now := ag.now()
	switch p {
	case PeriodToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}

// Top computes the ranking for a mode and window: best WPM descending,
// ties broken by best accuracy descending.
func (ag *Aggregator) Top(ctx context.Context, mode scoring.Mode, p Period, limit int) ([]Entry, error) {
	attempts, err := ag.store.AttemptsSince(ctx, mode, ag.WindowStart(p))
	if err != nil {
		return nil, err
	}

	byUser := make(map[string]*Entry)
	for _, a := range attempts {
		if a.DNF {
			continue
		}
		e, ok := byUser[a.UserID]
		if !ok {
			e = &Entry{UserID: a.UserID}
			byUser[a.UserID] = e
		}
		e.GameCount++
		if a.WPM > e.BestWPM {
			e.BestWPM = a.WPM
		}
		if a.Accuracy > e.BestAccuracy {
			e.BestAccuracy = a.Accuracy
		}
	}

	entries := make([]Entry, 0, len(byUser))
	for _, e := range byUser {
		entries = append(entries, *e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].BestWPM != entries[j].BestWPM {
			return entries[i].BestWPM > entries[j].BestWPM
		}
		return entries[i].BestAccuracy > entries[j].BestAccuracy
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// StatsFor computes one user's best numbers inside the window.
func (ag *Aggregator) StatsFor(ctx context.Context, userID string, mode scoring.Mode, p Period) (UserStats, error) {
	attempts, err := ag.store.UserAttemptsSince(ctx, userID, mode, ag.WindowStart(p))
	if err != nil {
		return UserStats{}, err
	}

	stats := UserStats{UserID: userID}
	for _, a := range attempts {
		if a.DNF {
			continue
		}
		stats.GameCount++
		if a.WPM > stats.BestWPM {
			stats.BestWPM = a.WPM
		}
		if a.Accuracy > stats.BestAccuracy {
			stats.BestAccuracy = a.Accuracy
		}
	}
	return stats, nil
}
