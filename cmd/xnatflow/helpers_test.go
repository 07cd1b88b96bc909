package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xnatflow/internal/config"
	"xnatflow/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	fake       *testsupport.FakeXNAT
	sink       *testsupport.SMTPSink
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("XNATFLOW_MAIL_HOST", "")

	fake := testsupport.NewFakeXNAT(t)
	sink := testsupport.NewSMTPSink(t)
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithXNAT(fake)}, opts...)...)
	cfg.Mail.Host = sink.Addr()

	configPath := filepath.Join(homeDir, ".config", "xnatflow", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		fake:       fake,
		sink:       sink,
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[xnat]
base_url = %q
username = %q
password = %q
request_timeout = %d

[mail]
host = %q
from = "pipelines@example.org"
admin_emails = [%s]

[notifications]
email = %t
ntfy_topic = %q

[paths]
state_dir = %q
log_dir = %q

[logging]
format = "json"
level = "info"
`,
		cfg.XNAT.BaseURL,
		cfg.XNAT.Username,
		cfg.XNAT.Password,
		cfg.XNAT.RequestTimeout,
		cfg.Mail.Host,
		quoteList(cfg.Mail.AdminEmails),
		cfg.Notifications.Email,
		cfg.Notifications.NtfyTopic,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
