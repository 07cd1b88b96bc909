package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xnatflow/internal/testsupport"
)

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}

	out, _, err = runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, env.fake.URL())
	requireContains(t, out, "********")
	if strings.Contains(out, env.fake.Password) {
		t.Fatalf("config show leaked the password: %s", out)
	}
}

func TestCheckPassesAgainstFakes(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "XNAT")
	requireContains(t, out, "Mail relay")
	requireContains(t, out, "All checks passed")
}

func TestCheckReportsLoginFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	env.fake.Set(func(f *testsupport.FakeXNAT) { f.FailLogin = true })
	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err == nil {
		t.Fatal("expected check to fail")
	}
	requireContains(t, out, "FAIL")
	requireContains(t, out, "login failed")
}

func TestTestNotifySendsMail(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"test-notify", "--to", "ops@example.org"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	messages := env.sink.Messages()
	if len(messages) != 1 || messages[0].Recipients[0] != "ops@example.org" {
		t.Fatalf("unexpected messages %+v", messages)
	}
}

func TestTestNotifyNeedsRecipients(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"test-notify"}, env.configPath); err == nil {
		t.Fatal("expected error without recipients")
	}
}

func TestHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No journal entries")
}

func TestLogsPrintsRunLog(t *testing.T) {
	env := setupCLITestEnv(t)
	script := testsupport.WriteScript(t, t.TempDir(), "ok.sh", `echo "hello from the pipeline"`)
	if _, _, err := runCLI(t, []string{"run", "--pipeline", "p", "--id", "XNAT_E00050", "--", script}, env.configPath); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "XNAT_E00050", "-n", "500"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "hello from the pipeline")
	requireContains(t, out, "pipeline run complete")
}

func TestLogsMissingRun(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"logs", "nope"}, env.configPath); err == nil {
		t.Fatal("expected error for a run without a log")
	}
}
