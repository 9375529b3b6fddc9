package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLockAcquireRelease(t *testing.T) {
	root := t.TempDir()
	lock := NewLockFile(root, "APP-123")

	if err := lock.Acquire("APP-123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fileExists(filepath.Join(root, ".autospec", "locks", "app-123.lock")) {
		t.Fatal("lock file should exist under the ticket name")
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if fileExists(filepath.Join(root, ".autospec", "locks", "app-123.lock")) {
		t.Error("lock file should be gone after release")
	}
}

func TestLockBlocksSameTicket(t *testing.T) {
	root := t.TempDir()
	first := NewLockFile(root, "APP-123")
	if err := first.Acquire("APP-123"); err != nil {
		t.Fatal(err)
	}
	defer first.Release()

	second := NewLockFile(root, "APP-123")
	if err := second.Acquire("APP-123"); err == nil {
		t.Error("a second acquire for the same ticket must fail")
	}
}

func TestLockAllowsDifferentTickets(t *testing.T) {
	root := t.TempDir()
	first := NewLockFile(root, "APP-1")
	second := NewLockFile(root, "APP-2")

	if err := first.Acquire("APP-1"); err != nil {
		t.Fatal(err)
	}
	defer first.Release()
	if err := second.Acquire("APP-2"); err != nil {
		t.Errorf("different tickets must lock independently: %v", err)
	}
	defer second.Release()
}

func TestLockStaleDeadProcess(t *testing.T) {
	root := t.TempDir()
	lock := NewLockFile(root, "APP-9")

	// Simulate a crashed run: a lock held by a PID that cannot exist.
	stale := LockInfo{PID: 999999999, StartedAt: time.Now(), Ticket: "APP-9"}
	data, _ := json.Marshal(stale)
	if err := os.MkdirAll(filepath.Dir(lock.path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(lock.path, data, 0644); err != nil {
		t.Fatal(err)
	}

	if err := lock.Acquire("APP-9"); err != nil {
		t.Errorf("stale lock should be broken: %v", err)
	}
	lock.Release()
}

func TestLockStaleByAge(t *testing.T) {
	info := &LockInfo{PID: os.Getpid(), StartedAt: time.Now().Add(-2 * time.Hour)}
	if !isLockStale(info) {
		t.Error("a lock older than the age limit is stale even with a live process")
	}

	fresh := &LockInfo{PID: os.Getpid(), StartedAt: time.Now()}
	if isLockStale(fresh) {
		t.Error("a fresh lock held by a live process is not stale")
	}
}

func TestLockCorruptFileRecovered(t *testing.T) {
	root := t.TempDir()
	lock := NewLockFile(root, "APP-11")
	if err := os.MkdirAll(filepath.Dir(lock.path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(lock.path, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := lock.Acquire("APP-11"); err != nil {
		t.Errorf("a corrupt lock file should be replaced: %v", err)
	}
	lock.Release()
}

func TestLockReleaseWithoutAcquire(t *testing.T) {
	lock := NewLockFile(t.TempDir(), "APP-12")
	if err := lock.Release(); err != nil {
		t.Errorf("release without acquire should be a no-op: %v", err)
	}
}

func TestLockNameNormalization(t *testing.T) {
	root := t.TempDir()

	lock := NewLockFile(root, "App 123")
	if !strings.HasSuffix(lock.path, "app-123.lock") {
		t.Errorf("lock path = %s, want the normalized ticket name", lock.path)
	}

	anon := NewLockFile(root, "")
	if !strings.HasSuffix(anon.path, "run.lock") {
		t.Errorf("lock path = %s, want the anonymous run name", anon.path)
	}
}
