package xnat

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"xnatflow/internal/logging"
	"xnatflow/internal/services"
)

const (
	userAgent        = "xnatflow/0.1.0"
	maxResponseBytes = 16 << 20
	component        = "xnat"
)

// Identity is the account the client logs in as.
type Identity struct {
	BaseURL  string
	Username string
	Password string
}

// Options configures a Client.
type Options struct {
	Identity           Identity
	Timeout            time.Duration
	InsecureSkipVerify bool
	// Transport overrides the HTTP round tripper, mainly for tests.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Client issues session logins, SOAP calls, and document fetches against one
// XNAT server. It holds no session state; callers pass a Session into every
// call.
type Client struct {
	identity  Identity
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
	logger    *slog.Logger
}

// NewClient validates the base URL scheme and builds a client.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.Identity.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, component, "client", "parse base url", err)
	}

	transport := opts.Transport
	switch strings.ToLower(parsed.Scheme) {
	case "https":
		if transport == nil {
			t := http.DefaultTransport.(*http.Transport).Clone()
			if opts.InsecureSkipVerify {
				t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opt-in
			}
			transport = t
		}
	case "http":
		if transport == nil {
			transport = http.DefaultTransport
		}
	default:
		return nil, services.Wrap(services.ErrConfiguration, component, "client", fmt.Sprintf("unsupported scheme %q in %q", parsed.Scheme, base), nil)
	}
	if parsed.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "client", fmt.Sprintf("missing host in %q", base), nil)
	}

	identity := opts.Identity
	identity.BaseURL = base
	return &Client{
		identity:  identity,
		baseURL:   base,
		timeout:   opts.Timeout,
		transport: transport,
		logger:    logging.NewComponentLogger(opts.Logger, component),
	}, nil
}

// BaseURL returns the normalized service base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// endpointURL maps an endpoint name such as "StoreXML" to its JWS URL.
func (c *Client) endpointURL(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.HasSuffix(endpoint, ".jws") {
		endpoint += ".jws"
	}
	return c.baseURL + "/axis/" + endpoint
}

// sessionClient returns an HTTP client that stamps every outbound request
// with the session cookie.
func (c *Client) sessionClient(session Session) *http.Client {
	return &http.Client{
		Timeout:   c.timeout,
		Transport: &sessionTransport{base: c.transport, token: session.Token},
	}
}

type sessionTransport struct {
	base  http.RoundTripper
	token string
}

func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Cookie", "JSESSIONID="+t.token)
	if clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", userAgent)
	}
	return t.base.RoundTrip(clone)
}

// get performs a GET with the session cookie and returns the body of a 2xx
// response.
func (c *Client) get(ctx context.Context, hc *http.Client, target, operation string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrRPCTransport, component, operation, "build request", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrRPCTransport, component, operation, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrRPCTransport, component, operation, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrRPCTransport, component, operation,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, snippet(body)), nil)
	}
	return body, nil
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 256 {
		text = text[:256] + "..."
	}
	return text
}
