package session

import (
	"context"
	"fmt"
	"time"

	"github.com/JET-SOUZA/Legacy.tv/internal/cache"
)

// RedisStore keeps sessions in Redis so every instance behind a load balancer shares them.
// Redis TTLs handle expiry.
type RedisStore struct {
	cache *cache.Redis
	now   func() time.Time
}

// NewRedisStore returns a Store backed by c.
func NewRedisStore(c *cache.Redis) *RedisStore {
	return &RedisStore{cache: c, now: time.Now}
}

func sessionKey(id string) string {
	return "session:" + id
}

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", s.ID)
	}
	if err := cache.Set(ctx, r.cache, sessionKey(s.ID), s, ttl); err != nil {
		return fmt.Errorf("session create: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	s, err := cache.Get[Session](ctx, r.cache, sessionKey(id))
	if err != nil {
		if cache.IsMiss(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session get: %w", err)
	}
	if s.Expired(r.now()) {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := cache.Del(ctx, r.cache, sessionKey(id)); err != nil && !cache.IsMiss(err) {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}
