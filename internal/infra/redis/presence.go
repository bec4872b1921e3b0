package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceTracker keeps the live-connection set of a session in a Redis
// sorted set, scored by last-heartbeat time. Counting prunes entries older
// than the TTL first, so a dead connection ages out without an explicit
// leave. Keeping presence in Redis lets quorum reads survive a host
// process restart and work across instances.
type PresenceTracker struct {
	client *redis.Client
	ttl    time.Duration
	clock  func() time.Time
}

func NewPresenceTracker(client *redis.Client, ttl time.Duration) *PresenceTracker {
	return &PresenceTracker{
		client: client,
		ttl:    ttl,
		clock:  time.Now,
	}
}

func (t *PresenceTracker) Join(ctx context.Context, sessionID, playerID string) error {
	key := t.key(sessionID)
	pipe := t.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(t.clock().UnixMilli()),
		Member: playerID,
	})
	// The whole set expires with the session going quiet.
	pipe.Expire(ctx, key, 2*t.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (t *PresenceTracker) Leave(ctx context.Context, sessionID, playerID string) error {
	return t.client.ZRem(ctx, t.key(sessionID), playerID).Err()
}

func (t *PresenceTracker) Heartbeat(ctx context.Context, sessionID, playerID string) error {
	return t.Join(ctx, sessionID, playerID)
}

func (t *PresenceTracker) Count(ctx context.Context, sessionID string) (int, error) {
	key := t.key(sessionID)
	cutoff := t.clock().Add(-t.ttl).UnixMilli()
	if err := t.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return 0, err
	}
	n, err := t.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (t *PresenceTracker) key(sessionID string) string {
	return "session:" + sessionID + ":presence"
}
