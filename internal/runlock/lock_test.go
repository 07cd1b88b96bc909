package runlock_test

import (
	"errors"
	"path/filepath"
	"testing"

	"xnatflow/internal/runlock"
)

func TestAcquireIsExclusivePerRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "locks")

	first, err := runlock.Acquire(dir, "WF-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = first.Release() })

	if _, err := runlock.Acquire(dir, "WF-1"); !errors.Is(err, runlock.ErrLocked) {
		t.Fatalf("second Acquire err = %v, want ErrLocked", err)
	}

	other, err := runlock.Acquire(dir, "WF-2")
	if err != nil {
		t.Fatalf("Acquire other run: %v", err)
	}
	if err := other.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	dir := t.TempDir()
	lock, err := runlock.Acquire(dir, "42")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	again, err := runlock.Acquire(dir, "42")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	_ = again.Release()
}

func TestPathForSanitizesRunID(t *testing.T) {
	got := runlock.PathFor("/state/locks", "../evil id")
	if filepath.Dir(got) != "/state/locks" {
		t.Fatalf("PathFor escaped lock dir: %s", got)
	}
	if filepath.Base(got) == "" || filepath.Ext(got) != ".lock" {
		t.Fatalf("unexpected lock path %s", got)
	}
}

func TestAcquireRequiresDirectory(t *testing.T) {
	if _, err := runlock.Acquire("", "1"); err == nil {
		t.Fatal("expected error for empty directory")
	}
}
