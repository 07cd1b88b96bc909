package notifications

import "strings"

// Kind classifies a message for the push mirror.
type Kind string

const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
	KindTest    Kind = "test"
)

// Message is one outbound notification.
type Message struct {
	Recipients []string
	Subject    string
	Body       string
	Kind       Kind
}

// sanitizeHeader strips line breaks so a value cannot inject extra headers.
func sanitizeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.TrimSpace(value)
}

// cleanRecipients trims entries and drops blanks. Duplicates are kept.
func cleanRecipients(recipients []string) []string {
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r = sanitizeHeader(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
