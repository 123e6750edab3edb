package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRetentionSweeper_SweepUploads(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "stale.pdf")
	fresh := filepath.Join(dir, "fresh.pdf")
	for _, path := range []string{stale, fresh} {
		if err := os.WriteFile(path, []byte("recipe"), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}

	old := time.Now().Add(-uploadRetention - time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("age temp file: %v", err)
	}

	sweeper := NewRetentionSweeper(nil, nil, dir)
	sweeper.sweepUploads(time.Now())

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("Expected stale upload to be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("Expected fresh upload to survive, got %v", err)
	}
}

func TestRetentionSweeper_SweepUploads_MissingDir(t *testing.T) {
	sweeper := NewRetentionSweeper(nil, nil, filepath.Join(t.TempDir(), "nope"))
	// Must not panic or create the directory.
	sweeper.sweepUploads(time.Now())
}

func TestRetentionSweeper_StopIsIdempotent(t *testing.T) {
	sweeper := NewRetentionSweeper(nil, nil, "")
	sweeper.Stop()
	sweeper.Stop()
}
