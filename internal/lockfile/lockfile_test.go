package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	stateDir := t.TempDir()

	lock, err := AcquireLock(stateDir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	lockPath := filepath.Join(stateDir, LockFileName)
	data, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("lock file not readable: %v", err)
	}
	if !strings.HasPrefix(string(data), "pid=") {
		t.Errorf("expected lock file to record the holder pid, got %q", string(data))
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Errorf("expected lock file removed after release")
	}
}

func TestAcquireCreatesStateDir(t *testing.T) {
	stateDir := filepath.Join(t.TempDir(), "nested", "state")

	lock, err := AcquireLock(stateDir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(stateDir); err != nil {
		t.Errorf("expected state directory to be created: %v", err)
	}
}

func TestSecondAcquireConflicts(t *testing.T) {
	stateDir := t.TempDir()

	first, err := AcquireLock(stateDir)
	if err != nil {
		t.Fatalf("first AcquireLock failed: %v", err)
	}
	defer first.Release()

	_, err = AcquireLock(stateDir)
	if err == nil {
		t.Fatal("expected second acquire on the same state dir to fail")
	}

	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected *LockError, got %T: %v", err, err)
	}
	if !strings.Contains(lockErr.Error(), "Another PostForge instance is already running") {
		t.Errorf("unexpected conflict message: %q", lockErr.Error())
	}
	if !strings.Contains(lockErr.ExistingInfo, "running") {
		t.Errorf("expected holder info to mention the live process, got %q", lockErr.ExistingInfo)
	}
}

func TestReacquireAfterRelease(t *testing.T) {
	stateDir := t.TempDir()

	lock, err := AcquireLock(stateDir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	again, err := AcquireLock(stateDir)
	if err != nil {
		t.Fatalf("expected reacquire after release to succeed: %v", err)
	}
	again.Release()
}

func TestReleaseIdempotent(t *testing.T) {
	lock, err := AcquireLock(t.TempDir())
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("first Release failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release should be a no-op, got %v", err)
	}
}

func TestExtractPIDFromLockInfo(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected int
	}{
		{"plain pid line", "pid=1234\n", 1234},
		{"pid amid other data", "started=now\npid=42\n", 42},
		{"no pid", "hello world", 0},
		{"empty value", "pid=\n", 0},
		{"non-numeric value", "pid=abc\n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPIDFromLockInfo(tt.content); got != tt.expected {
				t.Errorf("extractPIDFromLockInfo(%q) = %d, expected %d", tt.content, got, tt.expected)
			}
		})
	}
}

func TestReadExistingLockInfoStalePID(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, LockFileName)

	// A pid far beyond pid_max cannot belong to a live process.
	if err := os.WriteFile(lockPath, []byte("pid=99999999\n"), 0644); err != nil {
		t.Fatal(err)
	}

	info := readExistingLockInfo(lockPath)
	if !strings.Contains(info, "stale") {
		t.Errorf("expected stale lock description, got %q", info)
	}
}

func TestReadExistingLockInfoEmptyFile(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, LockFileName)
	if err := os.WriteFile(lockPath, nil, 0644); err != nil {
		t.Fatal(err)
	}

	info := readExistingLockInfo(lockPath)
	if !strings.Contains(info, "no process information") {
		t.Errorf("unexpected description for empty lock file: %q", info)
	}
}
