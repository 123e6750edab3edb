package services

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"chefmate-backend/internal/repository"
)

const (
	conversationRetention  = 30 * 24 * time.Hour
	evalRetention          = 14 * 24 * time.Hour
	uploadRetention        = 48 * time.Hour
	retentionSweepInterval = 1 * time.Hour
)

// RetentionSweeper deletes guest-session data that outlived its usefulness:
// idle conversations, finished eval runs, and staged recipe uploads.
// Sessions are anonymous, so data nobody can come back for is just liability.
type RetentionSweeper struct {
	convRepo    *repository.ConversationRepo
	evalRepo    *repository.EvalRepo
	storagePath string
	stopChan    chan struct{}
}

func NewRetentionSweeper(convRepo *repository.ConversationRepo, evalRepo *repository.EvalRepo, storagePath string) *RetentionSweeper {
	return &RetentionSweeper{
		convRepo:    convRepo,
		evalRepo:    evalRepo,
		storagePath: storagePath,
		stopChan:    make(chan struct{}),
	}
}

func (s *RetentionSweeper) Start() {
	if s.convRepo == nil || s.evalRepo == nil {
		return
	}

	go s.loop(func(ctx context.Context, now time.Time) {
		s.sweepDatabase(ctx, now)
	})
	go s.loop(func(ctx context.Context, now time.Time) {
		s.sweepUploads(now)
	})

	log.Printf("Retention sweeper started")
}

func (s *RetentionSweeper) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *RetentionSweeper) loop(runFn func(ctx context.Context, now time.Time)) {
	// Run on startup as well as by interval.
	runFn(context.Background(), time.Now().UTC())

	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			runFn(context.Background(), time.Now().UTC())
		}
	}
}

func (s *RetentionSweeper) sweepDatabase(ctx context.Context, now time.Time) {
	removed, err := s.convRepo.DeleteIdleBefore(ctx, now.Add(-conversationRetention))
	if err != nil {
		log.Printf("retention: failed to delete idle conversations: %v", err)
	} else if removed > 0 {
		log.Printf("retention: removed %d idle conversations", removed)
	}

	removed, err = s.evalRepo.DeleteFinishedBefore(ctx, now.Add(-evalRetention))
	if err != nil {
		log.Printf("retention: failed to delete finished eval jobs: %v", err)
	} else if removed > 0 {
		log.Printf("retention: removed %d finished eval jobs", removed)
	}
}

func (s *RetentionSweeper) sweepUploads(now time.Time) {
	if s.storagePath == "" {
		return
	}

	entries, err := os.ReadDir(s.storagePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("retention: failed to read upload dir: %v", err)
		}
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < uploadRetention {
			continue
		}
		if err := os.Remove(filepath.Join(s.storagePath, entry.Name())); err != nil {
			log.Printf("retention: failed to remove stale upload %s: %v", entry.Name(), err)
		}
	}
}
