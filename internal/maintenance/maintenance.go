// Package maintenance runs the background backup loop: dirty documents are
// backed up periodically so their edits survive a crash, and stale backups
// are pruned.
package maintenance

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/micro-nova/slidered/internal/controller"
)

const (
	backupSuffix = ".backup.json"
	pruneEvery   = 24 * time.Hour
)

// Sessions is the view of the workspace the backup loop needs.
type Sessions interface {
	List() []*controller.Controller
	BackupPath(c *controller.Controller) string
}

// Service manages background maintenance goroutines.
type Service struct {
	sessions  Sessions
	backupDir string
	interval  time.Duration
	maxAge    time.Duration

	// Owned by the loop goroutine, or by the caller of RunOnce in tests.
	handles map[string]*controller.Backup // session id -> live backup
}

// New creates a new maintenance Service.
func New(sessions Sessions, backupDir string, interval, maxAge time.Duration) *Service {
	return &Service{
		sessions:  sessions,
		backupDir: backupDir,
		interval:  interval,
		maxAge:    maxAge,
		handles:   make(map[string]*controller.Backup),
	}
}

// Start runs the backup loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	if s.interval <= 0 {
		slog.Info("maintenance: periodic backups disabled")
		return
	}
	s.Prune()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	lastPrune := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
			if time.Since(lastPrune) >= pruneEvery {
				s.Prune()
				lastPrune = time.Now()
			}
		}
	}
}

// RunOnce backs up every dirty session and deletes the backups of sessions
// that became clean. Backups of closed sessions are left for restore and
// eventually pruned.
func (s *Service) RunOnce(ctx context.Context) {
	open := make(map[string]bool)
	for _, c := range s.sessions.List() {
		open[c.ID()] = true
		dirty, err := c.Dirty(ctx)
		if err != nil {
			slog.Debug("maintenance: skipping session", "id", c.ID(), "err", err)
			continue
		}

		h := s.handles[c.ID()]
		switch {
		case dirty:
			b, err := c.Backup(ctx, s.sessions.BackupPath(c))
			if err != nil {
				slog.Warn("maintenance: backup failed", "id", c.ID(), "err", err)
				continue
			}
			s.handles[c.ID()] = b
		case h != nil:
			if err := h.Delete(ctx); err != nil {
				slog.Warn("maintenance: failed to delete backup", "id", c.ID(), "backup", h.URI, "err", err)
				continue
			}
			delete(s.handles, c.ID())
		}
	}
	for id := range s.handles {
		if !open[id] {
			delete(s.handles, id)
		}
	}
}

// Prune deletes backup files older than maxAge from the backup directory.
func (s *Service) Prune() {
	if s.maxAge <= 0 {
		return
	}
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-s.maxAge)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), backupSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.backupDir, e.Name())
			if err := os.Remove(path); err != nil {
				slog.Warn("maintenance: failed to prune old backup", "file", path, "err", err)
			} else {
				slog.Info("maintenance: pruned old backup", "file", path)
			}
		}
	}
}
