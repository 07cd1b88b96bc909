package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAuthentication = errors.New("authentication error")
	ErrRPCTransport   = errors.New("rpc transport error")
	ErrRPCFault       = errors.New("rpc fault")
	ErrSync           = errors.New("workflow sync error")
	ErrNotification   = errors.New("notification error")
	ErrRecordNotFound = errors.New("workflow record not found")
	ErrConfiguration  = errors.New("configuration error")
	ErrValidation     = errors.New("validation error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrRPCTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short, stable label for the marker carried by err. It is used
// for structured log fields and journal rows.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrRPCFault):
		return "fault"
	case errors.Is(err, ErrRPCTransport):
		return "transport"
	case errors.Is(err, ErrNotification):
		return "notification"
	case errors.Is(err, ErrRecordNotFound):
		return "not_found"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrSync):
		return "sync"
	default:
		return "unknown"
	}
}

// Downgradable reports whether err may be treated as "no existing record"
// during the best-effort search phase. Everything a remote search can raise
// qualifies; context cancellation does not.
func Downgradable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrRPCTransport) ||
		errors.Is(err, ErrRPCFault) ||
		errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrValidation)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
