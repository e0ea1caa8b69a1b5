package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Allow counts one hit against key in a fixed window and reports whether the
// count is still within limit. The window key is created with its TTL and
// incremented in one MULTI, so a counter never outlives its window.
func Allow(ctx context.Context, r *Redis, key string, limit int, window time.Duration) (bool, error) {
	full := Key("ratelimit:" + key)
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, full, 0, window)
		incr = pipe.Incr(ctx, full)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return incr.Val() <= int64(limit), nil
}
