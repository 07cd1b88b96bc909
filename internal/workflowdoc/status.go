package workflowdoc

import (
	"strings"

	"golang.org/x/text/cases"
)

// Status is the workflow status attribute value.
type Status string

const (
	StatusQueued         Status = "Queued"
	StatusAwaitingAction Status = "Awaiting Action"
	StatusHold           Status = "Hold"
	StatusRunning        Status = "Running"
	StatusComplete       Status = "Complete"
	StatusFailed         Status = "Failed"
)

var knownStatuses = []Status{
	StatusQueued,
	StatusAwaitingAction,
	StatusHold,
	StatusRunning,
	StatusComplete,
	StatusFailed,
}

var fold = cases.Fold()

// ParseStatus maps a remote status value onto a known Status, ignoring case
// and surrounding whitespace. Unknown values are returned trimmed but
// otherwise unchanged.
func ParseStatus(raw string) Status {
	trimmed := strings.TrimSpace(raw)
	key := fold.String(trimmed)
	for _, status := range knownStatuses {
		if fold.String(string(status)) == key {
			return status
		}
	}
	return Status(trimmed)
}

// PreRun reports whether the status marks a record that exists but has not
// started executing.
func (s Status) PreRun() bool {
	switch ParseStatus(string(s)) {
	case StatusQueued, StatusAwaitingAction, StatusHold:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	switch ParseStatus(string(s)) {
	case StatusComplete, StatusFailed:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	return string(s)
}
