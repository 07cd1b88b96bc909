package logging_test

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xnatflow/internal/config"
	"xnatflow/internal/logging"
	"xnatflow/internal/services"
)

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller", logging.String(logging.FieldComponent, "tracker"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if strings.Contains(text, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", text)
	}
	if !strings.Contains(text, "INFO tracker: message without caller") {
		t.Fatalf("expected component prefix, got %q", text)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")

	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "debug",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestAutoFormatFallsBackToJSONForFiles(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "auto.log")
	logger, err := logging.New(logging.Options{Format: "auto", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello", logging.String("key", "value"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(content, &record); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", content, err)
	}
	if record["msg"] != "hello" || record["key"] != "value" || record["level"] != "info" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestNewFromConfigHonoursConfiguredLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}
	if !logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("warn should be enabled at warn level")
	}

	cfg.Logging.Format = "xml"
	if _, err := logging.NewFromConfig(&cfg); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestRunLoggerWritesJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Format = "json"

	run, err := logging.NewRunLogger(&cfg, "42")
	if err != nil {
		t.Fatalf("NewRunLogger: %v", err)
	}
	ctx := services.WithRunID(context.Background(), "42")
	logging.WithContext(ctx, run.Logger).Warn("push slow")
	if err := run.Close(); err != nil {
		t.Fatalf("close run logger: %v", err)
	}

	if run.Path != filepath.Join(cfg.Paths.LogDir, "42.log") {
		t.Fatalf("unexpected run log path %q", run.Path)
	}
	file, err := os.Open(run.Path)
	if err != nil {
		t.Fatalf("open run log: %v", err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		t.Fatal("expected one log line")
	}
	var record map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
		t.Fatalf("decode run log line: %v", err)
	}
	if record["run_id"] != "42" || record["msg"] != "push slow" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "search failed", "search_failed", logging.String(logging.FieldImpact, "new record synthesized"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(content, &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record[logging.FieldEventType] != "search_failed" {
		t.Fatalf("expected event type, got %v", record)
	}
	if record[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error hint, got %v", record)
	}
	if record[logging.FieldImpact] != "new record synthesized" {
		t.Fatalf("expected caller impact preserved, got %v", record)
	}
}

func TestProgressSamplerEmitsOnStepChangeAndBuckets(t *testing.T) {
	sampler := logging.NewProgressSampler(10)
	steps := []struct {
		step    string
		percent float64
		want    bool
	}{
		{"1a", 0, true},
		{"1a", 4, false},
		{"1a", 12, true},
		{"1b", 13, true},
		{"1b", 19, false},
		{"1b", 100, true},
	}
	for i, s := range steps {
		if got := sampler.ShouldLog(s.step, s.percent); got != s.want {
			t.Fatalf("step %d: ShouldLog(%q, %v) = %v, want %v", i, s.step, s.percent, got, s.want)
		}
	}
}
