package store

import (
	"context"
	"errors"
	"time"

	"typerace-realtime/internal/scoring"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore appends attempts and ledger entries to Postgres.
//
// Expected schema:
//
//	CREATE TABLE attempts (
//	    id UUID PRIMARY KEY,
//	    user_id TEXT NOT NULL,
//	    mode TEXT NOT NULL,
//	    wpm DOUBLE PRECISION NOT NULL,
//	    accuracy DOUBLE PRECISION NOT NULL,
//	    rank INT NOT NULL DEFAULT 0,
//	    word_count INT NOT NULL,
//	    dnf BOOLEAN NOT NULL DEFAULT FALSE,
//	    flagged BOOLEAN NOT NULL DEFAULT FALSE,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE xp_ledger (
//	    id UUID PRIMARY KEY,
//	    user_id TEXT NOT NULL,
//	    amount INT NOT NULL,
//	    reason TEXT NOT NULL,
//	    total_xp INT NOT NULL,
//	    level INT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) AppendAttempt(ctx context.Context, a scoring.Attempt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attempts (id, user_id, mode, wpm, accuracy, rank, word_count, dnf, flagged, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.UserID, string(a.Mode), a.WPM, a.Accuracy, a.Rank, a.WordCount, a.DNF, a.Flagged, a.CreatedAt)
	return err
}

func (s *PostgresStore) AppendXp(ctx context.Context, userID, reason string, amount int) (scoring.XpLedgerEntry, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return scoring.XpLedgerEntry{}, err
	}
	defer tx.Rollback(ctx)

	// Serialize concurrent awards for the same user on the latest row.
	var previous int
	err = tx.QueryRow(ctx, `
		SELECT total_xp FROM xp_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`, userID).Scan(&previous)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return scoring.XpLedgerEntry{}, err
	}

	entry := scoring.NewLedgerEntry(userID, reason, amount, previous)
	_, err = tx.Exec(ctx, `
		INSERT INTO xp_ledger (id, user_id, amount, reason, total_xp, level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.UserID, entry.Amount, entry.Reason, entry.TotalXP, entry.Level, entry.CreatedAt)
	if err != nil {
		return scoring.XpLedgerEntry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return scoring.XpLedgerEntry{}, err
	}
	return entry, nil
}

func (s *PostgresStore) AttemptsSince(ctx context.Context, mode scoring.Mode, since time.Time) ([]scoring.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, mode, wpm, accuracy, rank, word_count, dnf, flagged, created_at
		FROM attempts
		WHERE mode = $1 AND ($2::timestamptz IS NULL OR created_at >= $2)
		ORDER BY created_at DESC`,
		string(mode), nullableTime(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAttempts(rows)
}

func (s *PostgresStore) UserAttemptsSince(ctx context.Context, userID string, mode scoring.Mode, since time.Time) ([]scoring.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, mode, wpm, accuracy, rank, word_count, dnf, flagged, created_at
		FROM attempts
		WHERE user_id = $1 AND mode = $2 AND ($3::timestamptz IS NULL OR created_at >= $3)
		ORDER BY created_at DESC`,
		userID, string(mode), nullableTime(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAttempts(rows)
}

func (s *PostgresStore) Totals(ctx context.Context, userID string) (UserTotals, error) {
	totals := UserTotals{UserID: userID, Level: 1}

	err := s.pool.QueryRow(ctx, `
		SELECT total_xp, level FROM xp_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, userID).Scan(&totals.TotalXP, &totals.Level)
	if errors.Is(err, pgx.ErrNoRows) {
		return totals, nil
	}
	if err != nil {
		return UserTotals{}, err
	}
	return totals, nil
}

func scanAttempts(rows pgx.Rows) ([]scoring.Attempt, error) {
	var result []scoring.Attempt
	for rows.Next() {
		var a scoring.Attempt
		var mode string
		if err := rows.Scan(&a.ID, &a.UserID, &mode, &a.WPM, &a.Accuracy, &a.Rank,
			&a.WordCount, &a.DNF, &a.Flagged, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Mode = scoring.Mode(mode)
		result = append(result, a)
	}
	return result, rows.Err()
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
