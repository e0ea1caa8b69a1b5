package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const setIfGenerationScript = `
local cur = redis.call("get", KEYS[1]) or ""
if cur ~= ARGV[1] then
	return 0
end
redis.call("set", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`

// Generation returns the current value of the guard counter, or "" when unset.
// Read it before loading the value that SetIfGeneration will store.
func Generation(ctx context.Context, r *Redis, guard string) (string, error) {
	gen, err := r.client.Get(ctx, Key(guard)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cache generation %s: %w", guard, err)
	}
	return gen, nil
}

// Bump advances the guard counter so that SetIfGeneration calls holding an
// older generation store nothing. The counter expires after keep.
func Bump(ctx context.Context, r *Redis, guard string, keep time.Duration) error {
	full := Key(guard)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, full)
		pipe.Expire(ctx, full, keep)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache bump %s: %w", guard, err)
	}
	return nil
}

// SetIfGeneration stores v under key only while guard still reads gen.
// It reports whether the value was written.
func SetIfGeneration(ctx context.Context, r *Redis, guard, gen, key string, v any, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("cache marshal %s: %w", key, err)
	}
	n, err := r.client.Eval(ctx, setIfGenerationScript, []string{Key(guard), Key(key)}, gen, data, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("cache set %s: %w", key, err)
	}
	return n == 1, nil
}
