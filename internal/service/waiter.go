package service

import (
	"context"
	"sync"
	"time"

	"github.com/Dzavoy/Discord-Chess-Bot/internal/game"
)

// WaitTimeout caps how long a spectator may wait for a board change
const WaitTimeout = 25 * time.Second

// waitRegistry tracks long-polling spectators per channel
type waitRegistry struct {
	mu      sync.Mutex
	waiters map[string][]*waiter // channelID → waiting clients
}

type waiter struct {
	version uint64
	notify  chan struct{}
}

func newWaitRegistry() *waitRegistry {
	return &waitRegistry{waiters: make(map[string][]*waiter)}
}

func (w *waitRegistry) register(channelID string, version uint64) *waiter {
	req := &waiter{version: version, notify: make(chan struct{}, 1)}
	w.mu.Lock()
	w.waiters[channelID] = append(w.waiters[channelID], req)
	w.mu.Unlock()
	return req
}

func (w *waitRegistry) remove(channelID string, req *waiter) {
	w.mu.Lock()
	defer w.mu.Unlock()

	list := w.waiters[channelID]
	for i, r := range list {
		if r == req {
			w.waiters[channelID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(w.waiters[channelID]) == 0 {
		delete(w.waiters, channelID)
	}
}

// notify wakes every waiter on channelID whose known version is stale
func (w *waitRegistry) notify(channelID string, version uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, req := range w.waiters[channelID] {
		if req.version == version {
			continue
		}
		select {
		case req.notify <- struct{}{}:
		default:
		}
	}
}

// WaitForChange blocks until the channel's board differs from version known,
// ctx ends, or WaitTimeout passes, then returns the latest snapshot
func (s *Service) WaitForChange(ctx context.Context, channelID string, known uint64) (*game.Snapshot, error) {
	snap, err := s.Lookup(channelID)
	if err != nil || snap.Version != known {
		return snap, err
	}

	req := s.waiters.register(channelID, known)
	defer s.waiters.remove(channelID, req)

	// a move may have landed before we registered
	if snap, err = s.Lookup(channelID); err != nil || snap.Version != known {
		return snap, err
	}

	timer := time.NewTimer(WaitTimeout)
	defer timer.Stop()

	select {
	case <-req.notify:
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.Lookup(channelID)
}
