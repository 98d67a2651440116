package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Attempt is one recorded upload attempt.
type Attempt struct {
	ID          int64         `json:"id"`
	Key         string        `json:"key"`
	Path        string        `json:"path"`
	Size        int64         `json:"size"`
	StatusCode  int           `json:"status_code,omitempty"`
	Outcome     string        `json:"outcome"`
	Duration    time.Duration `json:"duration_ns"`
	Error       string        `json:"error,omitempty"`
	AttemptedAt time.Time     `json:"attempted_at"`
}

// Summary aggregates the ledger.
type Summary struct {
	Total         int64            `json:"total"`
	ByOutcome     map[string]int64 `json:"by_outcome"`
	UploadedBytes int64            `json:"uploaded_bytes"`
	LastSuccess   time.Time        `json:"last_success,omitzero"`
}

const attemptColumns = "id, file_key, path, size, status_code, outcome, duration_ms, error_message, attempted_at"

// Record appends an attempt. A zero AttemptedAt is stamped with the current time.
func (s *Store) Record(ctx context.Context, a Attempt) error {
	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = time.Now()
	}
	var errMsg sql.NullString
	if a.Error != "" {
		errMsg = sql.NullString{String: a.Error, Valid: true}
	}
	if err := s.exec(ctx,
		`INSERT INTO uploads (file_key, path, size, status_code, outcome, duration_ms, error_message, attempted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Key, a.Path, a.Size, a.StatusCode, a.Outcome, a.Duration.Milliseconds(), errMsg, formatTime(a.AttemptedAt),
	); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// Recent returns up to limit attempts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+attemptColumns+" FROM uploads ORDER BY attempted_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query recent attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return attempts, nil
}

// History returns every attempt recorded for one file key, oldest first.
func (s *Store) History(ctx context.Context, key string) ([]Attempt, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+attemptColumns+" FROM uploads WHERE file_key = ? ORDER BY attempted_at, id", key)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Summary counts attempts per outcome and totals the bytes of successful uploads.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	ctx = ensureContext(ctx)
	summary := Summary{ByOutcome: map[string]int64{}}

	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(1) FROM uploads GROUP BY outcome")
	if err != nil {
		return summary, fmt.Errorf("query outcome counts: %w", err)
	}
	for rows.Next() {
		var (
			outcome string
			count   int64
		)
		if err := rows.Scan(&outcome, &count); err != nil {
			rows.Close()
			return summary, fmt.Errorf("scan outcome count: %w", err)
		}
		summary.ByOutcome[outcome] = count
		summary.Total += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return summary, fmt.Errorf("iterate outcome counts: %w", err)
	}
	rows.Close()

	var (
		bytes   sql.NullInt64
		lastRaw sql.NullString
	)
	if err := s.db.QueryRowContext(ctx,
		"SELECT SUM(size), MAX(attempted_at) FROM uploads WHERE outcome = ?", OutcomeSuccess,
	).Scan(&bytes, &lastRaw); err != nil {
		return summary, fmt.Errorf("query upload totals: %w", err)
	}
	summary.UploadedBytes = bytes.Int64
	summary.LastSuccess = parseTime(lastRaw.String)
	return summary, nil
}

// Prune deletes attempts older than cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM uploads WHERE attempted_at < ?", formatTime(cutoff))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune attempts: %w", err)
	}
	return removed, nil
}

// OutcomeSuccess is the outcome label written for accepted uploads.
const OutcomeSuccess = "success"

func scanAttempt(scanner interface{ Scan(dest ...any) error }) (Attempt, error) {
	var (
		a          Attempt
		durationMS int64
		errMsg     sql.NullString
		attempted  string
	)
	if err := scanner.Scan(&a.ID, &a.Key, &a.Path, &a.Size, &a.StatusCode, &a.Outcome, &durationMS, &errMsg, &attempted); err != nil {
		return Attempt{}, err
	}
	a.Duration = time.Duration(durationMS) * time.Millisecond
	a.Error = errMsg.String
	a.AttemptedAt = parseTime(attempted)
	return a, nil
}
