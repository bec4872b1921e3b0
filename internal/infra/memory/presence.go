package memory

import (
	"context"
	"sync"
	"time"
)

// PresenceTracker keeps the live-connection set per session in memory.
// A player whose heartbeat deadline passes silently drops out of the count,
// so a dead connection never blocks quorum.
type PresenceTracker struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.Mutex
	sessions map[string]map[string]time.Time
}

func NewPresenceTracker(ttl time.Duration) *PresenceTracker {
	return &PresenceTracker{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]map[string]time.Time),
	}
}

// NewPresenceTrackerWithClock is test-only for deterministic expiry.
func NewPresenceTrackerWithClock(ttl time.Duration, clock func() time.Time) *PresenceTracker {
	tracker := NewPresenceTracker(ttl)
	tracker.clock = clock
	return tracker
}

func (t *PresenceTracker) Join(_ context.Context, sessionID, playerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessions[sessionID] == nil {
		t.sessions[sessionID] = make(map[string]time.Time)
	}
	t.sessions[sessionID][playerID] = t.clock().Add(t.ttl)
	return nil
}

func (t *PresenceTracker) Leave(_ context.Context, sessionID, playerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions[sessionID], playerID)
	if len(t.sessions[sessionID]) == 0 {
		delete(t.sessions, sessionID)
	}
	return nil
}

func (t *PresenceTracker) Heartbeat(ctx context.Context, sessionID, playerID string) error {
	return t.Join(ctx, sessionID, playerID)
}

func (t *PresenceTracker) Count(_ context.Context, sessionID string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	count := 0
	for playerID, deadline := range t.sessions[sessionID] {
		if deadline.Before(now) {
			delete(t.sessions[sessionID], playerID)
			continue
		}
		count++
	}
	return count, nil
}
