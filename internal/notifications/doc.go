// Package notifications delivers run outcome messages.
//
// Email through the configured SMTP relay is the authoritative channel: its
// failure is returned to the caller as ErrNotification. When an ntfy topic is
// configured, the same message is mirrored as a push notification; mirror
// failures are logged and never returned. Sending to an empty recipient list
// performs no network I/O at all.
package notifications
