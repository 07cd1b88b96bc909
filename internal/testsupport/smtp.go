package testsupport

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
)

// MailMessage is one message accepted by SMTPSink.
type MailMessage struct {
	From       string
	Recipients []string
	Data       string
}

// SMTPSink is a minimal SMTP relay that accepts every message.
type SMTPSink struct {
	listener net.Listener

	mu       sync.Mutex
	messages []MailMessage
	conns    int
	wg       sync.WaitGroup
}

// NewSMTPSink starts a sink on a loopback port and registers its shutdown.
func NewSMTPSink(t testing.TB) *SMTPSink {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen smtp sink: %v", err)
	}
	sink := &SMTPSink{listener: ln}
	sink.wg.Add(1)
	go sink.serve()
	t.Cleanup(func() {
		_ = ln.Close()
		sink.wg.Wait()
	})
	return sink
}

// Addr returns the host:port the sink listens on.
func (s *SMTPSink) Addr() string {
	return s.listener.Addr().String()
}

// Messages returns the accepted messages.
func (s *SMTPSink) Messages() []MailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MailMessage(nil), s.messages...)
}

// Connections returns how many clients connected.
func (s *SMTPSink) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *SMTPSink) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns++
		s.mu.Unlock()
		s.handle(conn)
	}
}

func (s *SMTPSink) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }

	reply("220 sink ESMTP")
	var current MailMessage
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(cmd)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250 sink")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			current = MailMessage{From: trimAddress(cmd[len("MAIL FROM:"):])}
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			current.Recipients = append(current.Recipients, trimAddress(cmd[len("RCPT TO:"):]))
			reply("250 OK")
		case upper == "DATA":
			reply("354 end with .")
			var data strings.Builder
			for {
				dl, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if dl == ".\r\n" || dl == ".\n" {
					break
				}
				data.WriteString(strings.TrimPrefix(dl, "."))
			}
			current.Data = data.String()
			s.mu.Lock()
			s.messages = append(s.messages, current)
			s.mu.Unlock()
			reply("250 queued")
		case upper == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func trimAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.IndexByte(raw, ' '); idx >= 0 {
		raw = raw[:idx]
	}
	return strings.Trim(raw, "<>")
}
