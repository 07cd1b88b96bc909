package notifications

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"xnatflow/internal/services"
)

const (
	defaultSMTPPort    = "25"
	defaultSMTPTimeout = 30 * time.Second
)

// Mailer sends plain-text email through an unauthenticated SMTP relay.
type Mailer struct {
	addr    string
	from    string
	timeout time.Duration
}

// NewMailer builds a mailer for host, which may omit the port.
func NewMailer(host, from string) *Mailer {
	return &Mailer{
		addr:    relayAddress(host),
		from:    sanitizeHeader(from),
		timeout: defaultSMTPTimeout,
	}
}

// WithTimeout returns a copy of m whose whole SMTP exchange is bounded by d.
// Non-positive values keep the current timeout.
func (m *Mailer) WithTimeout(d time.Duration) *Mailer {
	clone := *m
	if d > 0 {
		clone.timeout = d
	}
	return &clone
}

// Addr returns the relay address including port.
func (m *Mailer) Addr() string {
	return m.addr
}

// Send delivers one message with a To header per recipient. An empty
// recipient list is a no-op.
func (m *Mailer) Send(ctx context.Context, recipients []string, subject, body string) error {
	to := cleanRecipients(recipients)
	if len(to) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrNotification, "notifications", "mail", "send cancelled", err)
	}
	msg := composeMessage(m.from, to, subject, body)
	if err := m.deliver(ctx, to, msg); err != nil {
		return services.Wrap(services.ErrNotification, "notifications", "mail",
			fmt.Sprintf("relay %s rejected message", m.addr), err)
	}
	return nil
}

// deliver runs one SMTP transaction. The connection deadline is the earlier of
// the mailer timeout and the ctx deadline, and cancelling ctx closes the
// connection.
func (m *Mailer) deliver(ctx context.Context, to []string, msg []byte) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(m.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	host, _, _ := net.SplitHostPort(m.addr)
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if err := client.Mail(m.from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func composeMessage(from string, to []string, subject, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	for _, addr := range to {
		fmt.Fprintf(&buf, "To: %s\r\n", addr)
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", sanitizeHeader(subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	body = strings.ReplaceAll(body, "\r\n", "\n")
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return buf.Bytes()
}

func relayAddress(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		host = "localhost"
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), defaultSMTPPort)
}
