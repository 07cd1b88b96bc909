package journal

import (
	"database/sql"
	"fmt"
	"time"
)

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var entry Entry
	var correlation, workflow, status, percent, step sql.NullString
	var session, errKind, errMessage sql.NullString
	var operation, outcome, recordedAt string
	if err := scanner.Scan(
		&entry.ID,
		&entry.RunID,
		&correlation,
		&workflow,
		&operation,
		&status,
		&percent,
		&step,
		&session,
		&outcome,
		&errKind,
		&errMessage,
		&recordedAt,
	); err != nil {
		return Entry{}, fmt.Errorf("scan journal entry: %w", err)
	}

	entry.CorrelationID = correlation.String
	entry.WorkflowID = workflow.String
	entry.Operation = Operation(operation)
	entry.Status = status.String
	entry.Percent = percent.String
	entry.StepID = step.String
	entry.Session = session.String
	entry.Outcome = Outcome(outcome)
	entry.ErrorKind = errKind.String
	entry.ErrorMessage = errMessage.String

	ts, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse recorded_at %q: %w", recordedAt, err)
	}
	entry.RecordedAt = ts
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
