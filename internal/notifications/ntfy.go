package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "xnatflow/0.1.0"

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

// ntfyMirror republishes run outcomes to an ntfy topic URL.
type ntfyMirror struct {
	endpoint string
	client   *http.Client
}

func newNtfyMirror(topic string, timeout time.Duration) *ntfyMirror {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyMirror{endpoint: topic, client: &http.Client{Timeout: timeout}}
}

func payloadFor(msg Message) payload {
	data := payload{
		title:   "xnatflow - " + sanitizeHeader(msg.Subject),
		message: strings.TrimSpace(msg.Body),
	}
	switch msg.Kind {
	case KindFailure:
		data.tags = []string{"xnatflow", "pipeline", "failed"}
		data.priority = "high"
	case KindTest:
		data.tags = []string{"xnatflow", "test"}
		data.priority = "low"
	default:
		data.tags = []string{"xnatflow", "pipeline", "completed"}
	}
	return data
}

func (n *ntfyMirror) publish(ctx context.Context, msg Message) error {
	if n == nil || n.client == nil {
		return nil
	}
	data := payloadFor(msg)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
