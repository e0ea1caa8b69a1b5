package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"github.com/JET-SOUZA/Legacy.tv/internal/cache"
	"github.com/JET-SOUZA/Legacy.tv/internal/fetcher"
	"github.com/JET-SOUZA/Legacy.tv/internal/metrics"
	"github.com/JET-SOUZA/Legacy.tv/internal/models"
)

// ErrReloadInProgress is returned when another instance holds the reload lock.
var ErrReloadInProgress = errors.New("playlist reload in progress")

const (
	reloadLockKey   = "playlist-reload"
	lastGoodKey     = "playlist:last"
	lastGoodTTL     = 24 * time.Hour
	defaultLockTTL  = 30 * time.Second
	singleflightKey = "reload"
)

// FetchFunc downloads and parses a playlist.
type FetchFunc func(ctx context.Context, url, userAgent string, timeout time.Duration) ([]models.Channel, error)

// PlaylistOptions configures a Playlist.
type PlaylistOptions struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
	LockTTL   time.Duration
	Fetch     FetchFunc // defaults to fetcher.FetchM3U
}

// Snapshot is an immutable view of one successful playlist load.
type Snapshot struct {
	channels []models.Channel
	byKey    map[string]int
	groups   []string
	loadedAt time.Time
	stale    bool
}

func newSnapshot(channels []models.Channel, loadedAt time.Time, stale bool) *Snapshot {
	byKey := make(map[string]int, len(channels))
	for i, ch := range channels {
		if _, dup := byKey[ch.Key]; !dup {
			byKey[ch.Key] = i
		}
	}
	return &Snapshot{
		channels: channels,
		byKey:    byKey,
		groups:   lo.Uniq(lo.Map(channels, func(ch models.Channel, _ int) string { return groupName(ch) })),
		loadedAt: loadedAt,
		stale:    stale,
	}
}

func groupName(ch models.Channel) string {
	if ch.Group == "" {
		return models.DefaultGroup
	}
	return ch.Group
}

// Channels returns the channels in playlist order. Callers must not modify the slice.
func (s *Snapshot) Channels() []models.Channel { return s.channels }

// Len returns the number of channels.
func (s *Snapshot) Len() int { return len(s.channels) }

// Lookup finds a channel by its stable key.
func (s *Snapshot) Lookup(key string) (models.Channel, bool) {
	i, ok := s.byKey[key]
	if !ok {
		return models.Channel{}, false
	}
	return s.channels[i], true
}

// ByID finds a channel by its 1-based position.
func (s *Snapshot) ByID(id int) (models.Channel, bool) {
	if id < 1 || id > len(s.channels) {
		return models.Channel{}, false
	}
	return s.channels[id-1], true
}

// Groups returns the distinct group names in first-seen order.
func (s *Snapshot) Groups() []string { return s.groups }

// Grouped returns the channels bucketed by group, groups in first-seen order.
func (s *Snapshot) Grouped() []models.Group {
	byName := lo.GroupBy(s.channels, groupName)
	return lo.Map(s.groups, func(name string, _ int) models.Group {
		return models.Group{Name: name, Channels: byName[name]}
	})
}

// LoadedAt is when the channels were fetched.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Stale reports whether the snapshot came from the last-good copy after a failed fetch.
func (s *Snapshot) Stale() bool { return s.stale }

// Playlist owns the published channel snapshot and reloads it on demand.
// Readers never block: Current is a single atomic load.
type Playlist struct {
	opts    PlaylistOptions
	cache   *cache.Redis
	logger  *slog.Logger
	current atomic.Pointer[Snapshot]
	group   singleflight.Group
	now     func() time.Time
}

// NewPlaylist returns a Playlist holding an empty snapshot. c may be nil.
func NewPlaylist(opts PlaylistOptions, c *cache.Redis, logger *slog.Logger) *Playlist {
	if opts.Fetch == nil {
		opts.Fetch = fetcher.FetchM3U
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Playlist{opts: opts, cache: c, logger: logger, now: time.Now}
	p.current.Store(newSnapshot(nil, time.Time{}, false))
	return p
}

// Current returns the published snapshot.
func (p *Playlist) Current() *Snapshot {
	return p.current.Load()
}

// Reload fetches the playlist and publishes it. Concurrent calls share one fetch.
// The returned snapshot is never nil: on failure it is the one still published.
func (p *Playlist) Reload(ctx context.Context) (*Snapshot, error) {
	v, err, _ := p.group.Do(singleflightKey, func() (any, error) {
		return p.reload(ctx)
	})
	snap, _ := v.(*Snapshot)
	if snap == nil {
		snap = p.Current()
	}
	return snap, err
}

func (p *Playlist) reload(ctx context.Context) (*Snapshot, error) {
	if p.cache != nil {
		unlock, err := cache.TryLock(ctx, p.cache, reloadLockKey, p.opts.LockTTL)
		switch {
		case errors.Is(err, cache.ErrLocked):
			metrics.PlaylistReloads.WithLabelValues(metrics.ReloadLocked).Inc()
			return p.Current(), ErrReloadInProgress
		case err != nil:
			p.logger.Warn("reload lock unavailable, reloading without it", "error", err)
		default:
			defer unlock()
		}
	}

	start := p.now()
	channels, err := p.opts.Fetch(ctx, p.opts.URL, p.opts.UserAgent, p.opts.Timeout)
	if err != nil {
		metrics.PlaylistReloads.WithLabelValues(metrics.ReloadError).Inc()
		p.logger.Error("playlist reload failed", "url", p.opts.URL, "error", err)
		return p.fallback(ctx), err
	}

	snap := newSnapshot(channels, start, false)
	p.publish(snap)
	metrics.PlaylistReloads.WithLabelValues(metrics.ReloadOK).Inc()
	p.logger.Info("playlist reloaded",
		"channels", snap.Len(),
		"groups", len(snap.Groups()),
		"duration", p.now().Sub(start),
	)

	if p.cache != nil {
		if err := cache.Set(ctx, p.cache, lastGoodKey, channels, lastGoodTTL); err != nil {
			p.logger.Warn("cache set failed", "key", lastGoodKey, "error", err)
		}
	}
	return snap, nil
}

// fallback keeps a non-empty current snapshot; an empty one is replaced by the
// last-good copy from Redis when there is one.
func (p *Playlist) fallback(ctx context.Context) *Snapshot {
	cur := p.Current()
	if cur.Len() > 0 || p.cache == nil {
		return cur
	}
	channels, err := cache.Get[[]models.Channel](ctx, p.cache, lastGoodKey)
	if err != nil {
		if !cache.IsMiss(err) {
			p.logger.Warn("cache get failed", "key", lastGoodKey, "error", err)
		}
		return cur
	}
	if len(channels) == 0 {
		return cur
	}
	snap := newSnapshot(channels, p.now(), true)
	p.publish(snap)
	metrics.PlaylistReloads.WithLabelValues(metrics.ReloadFallback).Inc()
	p.logger.Warn("serving last known playlist", "channels", snap.Len())
	return snap
}

func (p *Playlist) publish(snap *Snapshot) {
	p.current.Store(snap)
	metrics.PlaylistChannels.Set(float64(snap.Len()))
}
