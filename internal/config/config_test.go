package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"xnatflow/internal/config"
)

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XNAT_HOST", "https://xnat.example.org/")
	t.Setenv("XNAT_USER", "pipeline")
	t.Setenv("XNAT_PASSWORD", "secret")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "xnatflow")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.LogDir != filepath.Join(wantState, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.XNAT.BaseURL != "https://xnat.example.org" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.XNAT.BaseURL)
	}
	if cfg.XNAT.Username != "pipeline" || cfg.XNAT.Password != "secret" {
		t.Fatalf("expected credentials from env, got %q/%q", cfg.XNAT.Username, cfg.XNAT.Password)
	}
	if cfg.XNAT.RequestTimeout != config.Default().XNAT.RequestTimeout {
		t.Fatalf("unexpected request timeout: %d", cfg.XNAT.RequestTimeout)
	}
	if cfg.Logging.Format != "auto" {
		t.Fatalf("expected auto log format, got %q", cfg.Logging.Format)
	}
	if !cfg.Notifications.Email {
		t.Fatal("expected email notifications enabled by default")
	}
	if cfg.JournalPath() != filepath.Join(wantState, "journal.db") {
		t.Fatalf("unexpected journal path: %q", cfg.JournalPath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XNAT_PASSWORD", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := struct {
		XNAT struct {
			BaseURL  string `toml:"base_url"`
			Username string `toml:"username"`
		} `toml:"xnat"`
		Mail struct {
			Host        string   `toml:"host"`
			From        string   `toml:"from"`
			AdminEmails []string `toml:"admin_emails"`
		} `toml:"mail"`
		Paths struct {
			StateDir string `toml:"state_dir"`
		} `toml:"paths"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}{}
	payload.XNAT.BaseURL = "http://localhost:8080/xnat"
	payload.XNAT.Username = "admin"
	payload.Mail.Host = "smtp.example.org:2525"
	payload.Mail.From = "pipelines@example.org"
	payload.Mail.AdminEmails = []string{" admin@example.org ", ""}
	payload.Paths.StateDir = "~/state"
	payload.Logging.Format = "JSON"

	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q (exists=%v)", resolved, exists)
	}
	if cfg.XNAT.BaseURL != "http://localhost:8080/xnat" {
		t.Fatalf("unexpected base url %q", cfg.XNAT.BaseURL)
	}
	if cfg.Mail.Host != "smtp.example.org:2525" || cfg.Mail.From != "pipelines@example.org" {
		t.Fatalf("unexpected mail config: %+v", cfg.Mail)
	}
	if len(cfg.Mail.AdminEmails) != 1 || cfg.Mail.AdminEmails[0] != "admin@example.org" {
		t.Fatalf("expected admin emails to be trimmed, got %v", cfg.Mail.AdminEmails)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, "state") {
		t.Fatalf("unexpected state dir %q", cfg.Paths.StateDir)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lowercase log format, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsUnsupportedScheme(t *testing.T) {
	cfg := config.Default()
	cfg.XNAT.BaseURL = "ftp://xnat.example.org"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "unsupported scheme") {
		t.Fatalf("expected scheme error, got %v", err)
	}
}

func TestValidateRejectsRelativeNtfyTopic(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = "my-topic"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected ntfy topic validation error")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "chatty"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected log level validation error")
	}
}

func TestRunLogPathSanitizesRunID(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = "/var/log/xnatflow"
	got := cfg.RunLogPath("../42 a")
	if got != filepath.Join("/var/log/xnatflow", "_42_a.log") {
		t.Fatalf("unexpected run log path %q", got)
	}
}

func TestCreateSampleWritesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.XNAT.BaseURL != "https://xnat.example.org" {
		t.Fatalf("unexpected sample base url %q", cfg.XNAT.BaseURL)
	}
}

func TestEnsureDirectoriesCreatesLockDir(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.LockDir(), cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
