package testsupport

import (
	"path/filepath"
	"testing"

	"xnatflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.XNAT.BaseURL = "http://127.0.0.1:1"
	cfgVal.XNAT.Username = "pipeline"
	cfgVal.XNAT.Password = "secret"
	cfgVal.XNAT.RequestTimeout = 5
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Logging.Format = "json"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithXNAT points the test config at a fake server.
func WithXNAT(fake *FakeXNAT) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.XNAT.BaseURL = fake.URL()
		b.cfg.XNAT.Username = fake.Username
		b.cfg.XNAT.Password = fake.Password
	}
}

// WithAdminEmails sets the site admin recipients.
func WithAdminEmails(emails ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Mail.AdminEmails = append([]string(nil), emails...)
	}
}

// WithoutEmail disables email notifications.
func WithoutEmail() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.Email = false
	}
}

// WithNtfyTopic sets the ntfy mirror URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

