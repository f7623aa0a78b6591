package membership

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cached wraps a Directory with a redis read-through cache. Rosters change
// outside this subsystem, so entries carry a TTL instead of invalidation.
type Cached struct {
	next Directory
	r    *redis.Client
	ttl  time.Duration
}

func NewCached(next Directory, client *redis.Client, ttl time.Duration) *Cached {
	return &Cached{next: next, r: client, ttl: ttl}
}

func rosterKey(ownerID string) string { return "roster:" + ownerID }
func memberKey(userID string) string  { return "member:" + userID }

func (c *Cached) ListAcceptedMembers(ctx context.Context, ownerID string) ([]Member, error) {
	if b, err := c.r.Get(ctx, rosterKey(ownerID)).Bytes(); err == nil {
		var members []Member
		if err := json.Unmarshal(b, &members); err == nil {
			return members, nil
		}
	}

	members, err := c.next.ListAcceptedMembers(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(members); err == nil {
		_ = c.r.Set(ctx, rosterKey(ownerID), b, c.ttl).Err()
	}
	return members, nil
}

func (c *Cached) Lookup(ctx context.Context, userID string) (*Member, error) {
	if b, err := c.r.Get(ctx, memberKey(userID)).Bytes(); err == nil {
		var m Member
		if err := json.Unmarshal(b, &m); err == nil {
			return &m, nil
		}
	}

	m, err := c.next.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(m); err == nil {
		_ = c.r.Set(ctx, memberKey(userID), b, c.ttl).Err()
	}
	return m, nil
}
