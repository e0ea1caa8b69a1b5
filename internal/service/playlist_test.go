package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JET-SOUZA/Legacy.tv/internal/fetcher"
	"github.com/JET-SOUZA/Legacy.tv/internal/models"
)

func makeChannels(prefix string, n int, group string) []models.Channel {
	out := make([]models.Channel, n)
	for i := range out {
		url := fmt.Sprintf("http://%s.example/%d.m3u8", prefix, i)
		out[i] = models.Channel{
			ID:    i + 1,
			Key:   fetcher.ChannelKey(url),
			Name:  fmt.Sprintf("%s %d", prefix, i),
			URL:   url,
			Group: group,
		}
	}
	return out
}

// scriptedFetch returns the queued results in order, repeating the last one.
type scriptedFetch struct {
	mu      sync.Mutex
	results []fetchResult
	calls   atomic.Int32
}

type fetchResult struct {
	channels []models.Channel
	err      error
}

func (f *scriptedFetch) fetch(context.Context, string, string, time.Duration) ([]models.Channel, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r.channels, r.err
}

func TestPlaylist_StartsEmpty(t *testing.T) {
	p := NewPlaylist(PlaylistOptions{URL: "http://x"}, nil, nil)
	snap := p.Current()
	require.NotNil(t, snap)
	assert.Equal(t, 0, snap.Len())
	assert.Empty(t, snap.Groups())
	_, ok := snap.ByID(1)
	assert.False(t, ok)
}

func TestPlaylist_ReloadPublishes(t *testing.T) {
	f := &scriptedFetch{results: []fetchResult{{channels: makeChannels("a", 3, "News")}}}
	p := NewPlaylist(PlaylistOptions{URL: "http://x", Fetch: f.fetch}, nil, nil)

	snap, err := p.Reload(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, p.Current())
	assert.Equal(t, 3, snap.Len())
	assert.False(t, snap.Stale())
	assert.False(t, snap.LoadedAt().IsZero())
}

func TestPlaylist_FailureKeepsPrevious(t *testing.T) {
	f := &scriptedFetch{results: []fetchResult{
		{channels: makeChannels("a", 2, "")},
		{err: fmt.Errorf("%w: HTTP 503", models.ErrNetwork)},
	}}
	p := NewPlaylist(PlaylistOptions{URL: "http://x", Fetch: f.fetch}, nil, nil)
	ctx := context.Background()

	first, err := p.Reload(ctx)
	require.NoError(t, err)

	second, err := p.Reload(ctx)
	assert.ErrorIs(t, err, models.ErrNetwork)
	assert.Same(t, first, second)
	assert.Same(t, first, p.Current())
	assert.Equal(t, 2, p.Current().Len())
}

func TestPlaylist_FailureOnEmptyStaysEmpty(t *testing.T) {
	f := &scriptedFetch{results: []fetchResult{{err: errors.New("boom")}}}
	p := NewPlaylist(PlaylistOptions{URL: "http://x", Fetch: f.fetch}, nil, nil)

	snap, err := p.Reload(context.Background())
	assert.Error(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 0, snap.Len())
}

func TestPlaylist_ReaderHoldsOldSnapshot(t *testing.T) {
	f := &scriptedFetch{results: []fetchResult{
		{channels: makeChannels("old", 3, "Old")},
		{channels: makeChannels("new", 5, "New")},
	}}
	p := NewPlaylist(PlaylistOptions{URL: "http://x", Fetch: f.fetch}, nil, nil)
	ctx := context.Background()

	_, err := p.Reload(ctx)
	require.NoError(t, err)
	held := p.Current()

	_, err = p.Reload(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, held.Len())
	for _, ch := range held.Channels() {
		assert.Equal(t, "Old", ch.Group)
	}
	assert.Equal(t, 5, p.Current().Len())
	for _, ch := range p.Current().Channels() {
		assert.Equal(t, "New", ch.Group)
	}
}

func TestPlaylist_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	f := &scriptedFetch{results: []fetchResult{
		{channels: makeChannels("a", 4, "A")},
		{channels: makeChannels("b", 7, "B")},
	}}
	p := NewPlaylist(PlaylistOptions{URL: "http://x", Fetch: f.fetch}, nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := p.Current()
				groups := snap.Groups()
				if snap.Len() == 0 {
					continue
				}
				assert.Len(t, groups, 1)
				for _, ch := range snap.Channels() {
					assert.Equal(t, groups[0], ch.Group)
				}
			}
		}()
	}
	for i := 0; i < 20; i++ {
		_, err := p.Reload(ctx)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func TestPlaylist_ConcurrentReloadsShareFetch(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context, string, string, time.Duration) ([]models.Channel, error) {
		calls.Add(1)
		<-release
		return makeChannels("a", 1, ""), nil
	}
	p := NewPlaylist(PlaylistOptions{URL: "http://x", Fetch: fetch}, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Reload(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(5))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	assert.Equal(t, 1, p.Current().Len())
}

func TestSnapshot_Lookup(t *testing.T) {
	chs := makeChannels("a", 3, "")
	snap := newSnapshot(chs, time.Now(), false)

	got, ok := snap.Lookup(chs[1].Key)
	require.True(t, ok)
	assert.Equal(t, chs[1].Name, got.Name)

	_, ok = snap.Lookup("ffffffffffffffff")
	assert.False(t, ok)

	got, ok = snap.ByID(3)
	require.True(t, ok)
	assert.Equal(t, chs[2].URL, got.URL)
	_, ok = snap.ByID(0)
	assert.False(t, ok)
	_, ok = snap.ByID(4)
	assert.False(t, ok)
}

func TestSnapshot_Groups(t *testing.T) {
	chs := append(makeChannels("n", 2, "News"), makeChannels("s", 1, "Sports")...)
	chs = append(chs, makeChannels("u", 1, "")...)
	chs = append(chs, makeChannels("m", 1, "News")...)
	snap := newSnapshot(chs, time.Now(), false)

	assert.Equal(t, []string{"News", "Sports", models.DefaultGroup}, snap.Groups())

	grouped := snap.Grouped()
	require.Len(t, grouped, 3)
	assert.Equal(t, "News", grouped[0].Name)
	assert.Len(t, grouped[0].Channels, 3)
	assert.Len(t, grouped[1].Channels, 1)
	assert.Equal(t, models.DefaultGroup, grouped[2].Name)
	assert.Len(t, grouped[2].Channels, 1)
}
