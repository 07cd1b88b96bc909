package xnat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"xnatflow/internal/logging"
	"xnatflow/internal/services"
)

const sessionCookie = "JSESSIONID"

// Session is a short-lived credential for one remote push. Tokens are never
// cached: a new Session is obtained before every push because the server's
// token lifetime is short relative to a pipeline run.
type Session struct {
	Token      string
	ObtainedAt time.Time
}

// Fingerprint returns a short digest of the token that is safe to log.
func (s Session) Fingerprint() string {
	if s.Token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s.Token))
	return hex.EncodeToString(sum[:6])
}

// Obtain performs a fresh login for the client's identity and returns the new
// session token. It never reuses an earlier token.
func (c *Client) Obtain(ctx context.Context) (Session, error) {
	target := c.baseURL + "/data/JSESSION"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Session{}, services.Wrap(services.ErrAuthentication, component, "login", "build request", err)
	}
	req.SetBasicAuth(c.identity.Username, c.identity.Password)
	req.Header.Set("User-Agent", userAgent)

	hc := &http.Client{Timeout: c.timeout, Transport: c.transport}
	resp, err := hc.Do(req)
	if err != nil {
		return Session{}, services.Wrap(services.ErrAuthentication, component, "login", "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return Session{}, services.Wrap(services.ErrAuthentication, component, "login", "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Session{}, services.Wrap(services.ErrAuthentication, component, "login",
			fmt.Sprintf("server returned %d for user %q", resp.StatusCode, c.identity.Username), nil)
	}

	token := parseSessionToken(string(body))
	if token == "" {
		for _, cookie := range resp.Cookies() {
			if cookie.Name == sessionCookie && strings.TrimSpace(cookie.Value) != "" {
				token = strings.TrimSpace(cookie.Value)
				break
			}
		}
	}
	if token == "" || strings.ContainsAny(token, "<> \t\r\n") {
		return Session{}, services.Wrap(services.ErrAuthentication, component, "login", "server did not return a usable session token", nil)
	}

	c.logger.Debug("obtained session", logging.String("session", Session{Token: token}.Fingerprint()))
	return Session{Token: token, ObtainedAt: time.Now()}, nil
}

// parseSessionToken accepts either a bare token or a "JSESSIONID=<token>"
// pair.
func parseSessionToken(raw string) string {
	token := strings.TrimSpace(raw)
	token = strings.TrimPrefix(token, sessionCookie+"=")
	if idx := strings.IndexByte(token, ';'); idx >= 0 {
		token = token[:idx]
	}
	return strings.TrimSpace(token)
}
