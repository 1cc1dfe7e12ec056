package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunCleanupJob evicts idle sessions every interval until ctx is done
func (s *Service) RunCleanupJob(ctx context.Context, interval time.Duration) {
	if interval <= 0 || s.cfg.SessionTTL <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.evictIdle(now); n > 0 {
				s.log.Info("evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

// evictIdle drops sessions untouched for longer than the TTL. Sessions busy
// in a command are skipped.
func (s *Service) evictIdle(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for channelID, sess := range s.sessions {
		if !sess.TryLock() {
			continue
		}
		if now.Sub(sess.UpdatedAt()) > s.cfg.SessionTTL {
			delete(s.sessions, channelID)
			evicted++
		}
		sess.Unlock()
	}
	return evicted
}
