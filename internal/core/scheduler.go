package core

// scheduler.go runs the session janitor.
//
// Sessions live in memory only. The janitor wakes every interval and drops
// sessions that have not been touched for SessionTTL, freeing their tables
// and history snapshots. Audit entries older than AuditRetention are purged
// on the same tick. It stops when its context is cancelled.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultJanitorInterval is used when StartJanitor is given a non-positive interval.
const DefaultJanitorInterval = time.Minute

// StartJanitor evicts idle sessions until ctx is cancelled. It blocks, so
// run it in its own goroutine.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	slog.Info("session janitor started", "ttl", s.cfg.SessionTTL, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session janitor stopped")
			return
		case <-ticker.C:
			s.EvictIdle()
			if s.cfg.AuditRetention > 0 {
				s.audit.PurgeOlderThan(s.cfg.AuditRetention)
			}
		}
	}
}

// EvictIdle drops sessions unused for longer than SessionTTL and returns how
// many were removed. A zero TTL disables eviction.
func (s *Service) EvictIdle() int {
	if s.cfg.SessionTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.cfg.SessionTTL)

	s.mu.Lock()
	evicted := 0
	for id, sess := range s.sessions {
		if sess.LastUsed().Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	remaining := len(s.sessions)
	s.mu.Unlock()

	s.observer.SessionsActive(remaining)
	if evicted > 0 {
		slog.Info("evicted idle sessions", "evicted", evicted, "remaining", remaining)
	}
	return evicted
}
