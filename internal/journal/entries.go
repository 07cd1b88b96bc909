package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Operation names a journaled remote action.
type Operation string

const (
	OpCreate         Operation = "create"
	OpAdopt          Operation = "adopt"
	OpSearchFailed   Operation = "search_failed"
	OpSetEnvironment Operation = "set_environment"
	OpUpdate         Operation = "update"
	OpComplete       Operation = "complete"
	OpFail           Operation = "fail"
	OpClose          Operation = "close"
)

// Outcome records whether the remote action succeeded.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
)

// Entry is one journal row.
type Entry struct {
	ID            int64
	RunID         string
	CorrelationID string
	WorkflowID    string
	Operation     Operation
	Status        string
	Percent       string
	StepID        string
	Session       string
	Outcome       Outcome
	ErrorKind     string
	ErrorMessage  string
	RecordedAt    time.Time
}

const entryColumns = `id, run_id, correlation_id, workflow_id, operation, status, percent,
    step_id, session, outcome, error_kind, error_message, recorded_at`

// Record appends an entry. A zero RecordedAt is stamped with the current time
// and an empty Outcome defaults to ok.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if s == nil || s.db == nil {
		return errors.New("journal is not open")
	}
	if strings.TrimSpace(entry.RunID) == "" {
		return errors.New("journal entry requires a run id")
	}
	if entry.Operation == "" {
		return errors.New("journal entry requires an operation")
	}
	if entry.Outcome == "" {
		entry.Outcome = OutcomeOK
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}

	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO pushes (
                run_id, correlation_id, workflow_id, operation, status, percent,
                step_id, session, outcome, error_kind, error_message, recorded_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.RunID,
			nullableString(entry.CorrelationID),
			nullableString(entry.WorkflowID),
			string(entry.Operation),
			nullableString(entry.Status),
			nullableString(entry.Percent),
			nullableString(entry.StepID),
			nullableString(entry.Session),
			string(entry.Outcome),
			nullableString(entry.ErrorKind),
			nullableString(entry.ErrorMessage),
			entry.RecordedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert journal entry: %w", err)
		}
		return nil
	})
}

// ListRun returns every entry for a run in insertion order.
func (s *Store) ListRun(ctx context.Context, runID string) ([]Entry, error) {
	return s.query(ctx, `SELECT `+entryColumns+` FROM pushes WHERE run_id = ? ORDER BY id`, runID)
}

// Recent returns the newest entries across all runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.query(ctx, `SELECT `+entryColumns+` FROM pushes ORDER BY id DESC LIMIT ?`, limit)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
