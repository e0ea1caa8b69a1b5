package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JET-SOUZA/Legacy.tv/internal/cache"
	"github.com/JET-SOUZA/Legacy.tv/internal/models"
)

// Cache TTLs for user lookups.
const (
	ttlUser  = 5 * time.Minute
	ttlUsers = 1 * time.Minute
)

const keyUsersAll = "users:all"

// cachedUser carries the password hash, which models.User hides from JSON.
type cachedUser struct {
	models.User
	Hash string `json:"password_hash"`
}

// CachedStore wraps a Store with a Redis caching layer.
// GetUserByID and ListUsers are served from cache when possible;
// writes invalidate the affected keys.
type CachedStore struct {
	inner  Store
	cache  *cache.Redis
	logger *slog.Logger
}

// NewCachedStore creates a CachedStore that wraps inner with Redis caching.
func NewCachedStore(inner Store, c *cache.Redis, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{inner: inner, cache: c, logger: logger}
}

func userKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

// userGenKey guards userKey: DeleteUser bumps it so a read that started
// before the delete cannot store the deleted row afterwards.
func userGenKey(id int64) string {
	return fmt.Sprintf("user:%d:gen", id)
}

func (c *CachedStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	key := userKey(id)
	if v, err := cache.Get[cachedUser](ctx, c.cache, key); err == nil {
		u := v.User
		u.PasswordHash = v.Hash
		return &u, nil
	}
	guard := userGenKey(id)
	gen, genErr := cache.Generation(ctx, c.cache, guard)
	u, err := c.inner.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		c.logger.Warn("cache generation failed", "key", guard, "error", genErr)
		return u, nil
	}
	if _, err := cache.SetIfGeneration(ctx, c.cache, guard, gen, key, cachedUser{User: *u, Hash: u.PasswordHash}, ttlUser); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
	return u, nil
}

// ListUsers caches the listing without password hashes; callers only render it.
func (c *CachedStore) ListUsers(ctx context.Context) ([]models.User, error) {
	if v, err := cache.Get[[]models.User](ctx, c.cache, keyUsersAll); err == nil {
		return v, nil
	}
	users, err := c.inner.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if err := cache.Set(ctx, c.cache, keyUsersAll, users, ttlUsers); err != nil {
		c.logger.Warn("cache set failed", "key", keyUsersAll, "error", err)
	}
	return users, nil
}

func (c *CachedStore) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	id, err := c.inner.CreateUser(ctx, u)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx, keyUsersAll)
	return id, nil
}

func (c *CachedStore) CreateUserIfAbsent(ctx context.Context, u *models.User) (bool, error) {
	created, err := c.inner.CreateUserIfAbsent(ctx, u)
	if err != nil {
		return false, err
	}
	if created {
		c.invalidate(ctx, keyUsersAll)
	}
	return created, nil
}

func (c *CachedStore) DeleteUser(ctx context.Context, id int64) error {
	if err := c.inner.DeleteUser(ctx, id); err != nil {
		return err
	}
	if err := cache.Bump(ctx, c.cache, userGenKey(id), 2*ttlUser); err != nil {
		c.logger.Warn("cache bump failed", "id", id, "error", err)
	}
	c.invalidate(ctx, userKey(id), keyUsersAll)
	return nil
}

// --- passthrough (no caching) ---

// GetUserByUsername always hits the database: login must see the current hash.
func (c *CachedStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return c.inner.GetUserByUsername(ctx, username)
}

func (c *CachedStore) Ping(ctx context.Context) error {
	return c.inner.Ping(ctx)
}

func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := cache.Del(ctx, c.cache, keys...); err != nil && !cache.IsMiss(err) {
		c.logger.Warn("cache del failed", "keys", keys, "error", err)
	}
}
