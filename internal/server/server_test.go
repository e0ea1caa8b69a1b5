package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/JET-SOUZA/Legacy.tv/internal/cache"
	"github.com/JET-SOUZA/Legacy.tv/internal/fetcher"
	"github.com/JET-SOUZA/Legacy.tv/internal/models"
	"github.com/JET-SOUZA/Legacy.tv/internal/service"
	"github.com/JET-SOUZA/Legacy.tv/internal/session"
)

type stubStore struct {
	mu      sync.Mutex
	users   map[int64]models.User
	nextID  int64
	clock   time.Time
	pingErr error
}

func newStubStore() *stubStore {
	return &stubStore{users: map[int64]models.User{}, clock: time.Now().Add(-time.Hour)}
}

func (s *stubStore) CreateUser(_ context.Context, u *models.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return 0, models.ErrDuplicateUser
		}
	}
	s.nextID++
	s.clock = s.clock.Add(time.Second)
	cp := *u
	cp.ID = s.nextID
	cp.CreatedAt = s.clock
	s.users[cp.ID] = cp
	return cp.ID, nil
}

func (s *stubStore) CreateUserIfAbsent(ctx context.Context, u *models.User) (bool, error) {
	_, err := s.CreateUser(ctx, u)
	if err == models.ErrDuplicateUser {
		return false, nil
	}
	return err == nil, err
}

func (s *stubStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

func (s *stubStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *stubStore) ListUsers(context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *stubStore) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *stubStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pingErr
}

func (s *stubStore) setPingErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

func (s *stubStore) idOf(username string) int64 {
	u, err := s.GetUserByUsername(context.Background(), username)
	if err != nil {
		return 0
	}
	return u.ID
}

const (
	adminName = "Legacy.tv"
	adminPass = "admin-pass"
)

var testChannels = []models.Channel{
	{ID: 1, Key: fetcher.ChannelKey("http://cdn.example/news.m3u8"), Name: "Canal News", URL: "http://cdn.example/news.m3u8", Group: "Notícias"},
	{ID: 2, Key: fetcher.ChannelKey("http://cdn.example/film.mp4"), Name: "Filme", URL: "http://cdn.example/film.mp4", MediaType: models.MediaTypeMovie},
}

type testEnv struct {
	srv   *httptest.Server
	store *stubStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil, Options{})
}

// newTestEnvWith builds the server with an optional Redis cache and options.
func newTestEnvWith(t *testing.T, c *cache.Redis, opts Options) *testEnv {
	t.Helper()
	st := newStubStore()
	accounts, err := service.NewAccounts(st, service.AccountsOptions{
		AdminUsername: adminName,
		AdminPassword: adminPass,
		HashCost:      bcrypt.MinCost,
	})
	require.NoError(t, err)
	require.NoError(t, accounts.Init(context.Background()))

	playlist := service.NewPlaylist(service.PlaylistOptions{
		URL: "http://playlist.example/list.m3u",
		Fetch: func(context.Context, string, string, time.Duration) ([]models.Channel, error) {
			return testChannels, nil
		},
	}, nil, nil)
	_, err = playlist.Reload(context.Background())
	require.NoError(t, err)

	srv, err := New(Deps{
		Accounts: accounts,
		Playlist: playlist,
		Sessions: session.NewManager(session.NewMemoryStore(), session.NewCodec("test-secret"), session.Options{TTL: time.Hour}),
		Store:    st,
		Cache:    c,
	}, opts)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: ts, store: st}
}

// browser returns a client with its own cookie jar that does not follow redirects.
func (e *testEnv) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (e *testEnv) get(t *testing.T, c *http.Client, path string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(e.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (e *testEnv) post(t *testing.T, c *http.Client, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := c.PostForm(e.srv.URL+path, form)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp
}

func (e *testEnv) login(t *testing.T, c *http.Client, username, password string) *http.Response {
	t.Helper()
	return e.post(t, c, "/login", url.Values{"username": {username}, "password": {password}})
}

func assertRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, location, resp.Header.Get("Location"))
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.get(t, e.browser(t), "/api/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, float64(2), got["channels"])
}

func TestReady(t *testing.T) {
	e := newTestEnv(t)
	resp, body := e.get(t, e.browser(t), "/api/health/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"postgres":{"status":"ok"}`)

	e.store.setPingErr(assert.AnError)
	resp, body = e.get(t, e.browser(t), "/api/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, `"degraded"`)
}

func TestChannels_RequiresLogin(t *testing.T) {
	e := newTestEnv(t)
	c := e.browser(t)

	resp, _ := e.get(t, c, "/channels")
	assertRedirect(t, resp, "/login")

	_, body := e.get(t, c, "/login")
	assert.Contains(t, body, noticeLoginRequired)
}

func TestIndexRedirects(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.get(t, e.browser(t), "/")
	assertRedirect(t, resp, "/channels")
}

func TestRegisterLoginAndBrowse(t *testing.T) {
	e := newTestEnv(t)
	c := e.browser(t)

	resp := e.post(t, c, "/register", url.Values{"username": {"ana"}, "password": {"pw"}})
	assertRedirect(t, resp, "/login")
	_, body := e.get(t, c, "/login")
	assert.Contains(t, body, noticeAccountCreated)

	resp = e.login(t, c, "ana", "pw")
	assertRedirect(t, resp, "/channels")

	resp, body = e.get(t, c, "/channels")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Canal News")
	assert.Contains(t, body, "Notícias")
	assert.Contains(t, body, models.DefaultGroup)
	assert.Contains(t, body, noticeLoggedIn)
	assert.NotContains(t, body, "/play/")

	// Not premium: the player is refused.
	resp, _ = e.get(t, c, "/play/"+testChannels[0].Key)
	assertRedirect(t, resp, "/channels")
	_, body = e.get(t, c, "/channels")
	assert.Contains(t, body, noticePremiumRequired)
}

func TestRegister_Duplicate(t *testing.T) {
	e := newTestEnv(t)
	c := e.browser(t)

	resp := e.post(t, c, "/register", url.Values{"username": {adminName}, "password": {"x"}})
	assertRedirect(t, resp, "/register")
	_, body := e.get(t, c, "/register")
	assert.Contains(t, body, noticeUserExists)
}

func TestRegister_Blank(t *testing.T) {
	e := newTestEnv(t)
	c := e.browser(t)

	resp := e.post(t, c, "/register", url.Values{"username": {"  "}, "password": {"x"}})
	assertRedirect(t, resp, "/register")
	_, body := e.get(t, c, "/register")
	assert.Contains(t, body, noticeFillAll)
}

func TestLogin_WrongCredentials(t *testing.T) {
	e := newTestEnv(t)
	c := e.browser(t)

	resp := e.login(t, c, adminName, "nope")
	assertRedirect(t, resp, "/login")
	_, body := e.get(t, c, "/login")
	assert.Contains(t, body, noticeBadCredentials)

	resp = e.login(t, c, "ghost", "nope")
	assertRedirect(t, resp, "/login")
	_, body = e.get(t, c, "/login")
	assert.Contains(t, body, noticeBadCredentials)
}

func TestAdmin_CreatePremiumUserWhoCanPlay(t *testing.T) {
	e := newTestEnv(t)
	admin := e.browser(t)

	resp := e.login(t, admin, adminName, adminPass)
	assertRedirect(t, resp, "/admin")

	resp = e.post(t, admin, "/admin/users", url.Values{
		"username": {"vip"}, "password": {"pw"}, "premium": {"1"}, "expires_hours": {"24"},
	})
	assertRedirect(t, resp, "/admin")

	resp, body := e.get(t, admin, "/admin")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, noticeUserCreated)
	assert.Contains(t, body, "vip")
	assert.Less(t, strings.Index(body, "vip"), strings.Index(body, adminName+"</td>"))

	vip := e.browser(t)
	resp = e.login(t, vip, "vip", "pw")
	assertRedirect(t, resp, "/channels")

	resp, body = e.get(t, vip, "/play/"+testChannels[0].Key)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Canal News")

	resp, _ = e.get(t, vip, "/play/0000000000000000")
	assertRedirect(t, resp, "/channels")
}

func TestAdmin_ExpiredAccount(t *testing.T) {
	e := newTestEnv(t)
	admin := e.browser(t)
	e.login(t, admin, adminName, adminPass)

	resp := e.post(t, admin, "/admin/users", url.Values{
		"username": {"late"}, "password": {"pw"}, "expires_hours": {"-1"},
	})
	assertRedirect(t, resp, "/admin")

	c := e.browser(t)
	resp = e.login(t, c, "late", "pw")
	assertRedirect(t, resp, "/login")
	_, body := e.get(t, c, "/login")
	assert.Contains(t, body, noticeExpired)
}

func TestAdmin_UnparsableExpiryIgnored(t *testing.T) {
	e := newTestEnv(t)
	admin := e.browser(t)
	e.login(t, admin, adminName, adminPass)

	e.post(t, admin, "/admin/users", url.Values{
		"username": {"forever"}, "password": {"pw"}, "expires_hours": {"soon"},
	})
	u, err := e.store.GetUserByUsername(context.Background(), "forever")
	require.NoError(t, err)
	assert.Nil(t, u.ExpiresAt)
	assert.False(t, u.Premium)
}

func TestAdmin_ExpiryOutOfRangeRejected(t *testing.T) {
	e := newTestEnv(t)
	admin := e.browser(t)
	e.login(t, admin, adminName, adminPass)

	for _, h := range []string{"3000000", "-3000000"} {
		resp := e.post(t, admin, "/admin/users", url.Values{
			"username": {"longlived"}, "password": {"pw"}, "expires_hours": {h},
		})
		assertRedirect(t, resp, "/admin")
		_, err := e.store.GetUserByUsername(context.Background(), "longlived")
		assert.ErrorIs(t, err, models.ErrNotFound, "expires_hours=%s", h)
	}
}

func TestAdmin_RefusedForRegularUser(t *testing.T) {
	e := newTestEnv(t)
	c := e.browser(t)
	e.post(t, c, "/register", url.Values{"username": {"ana"}, "password": {"pw"}})
	e.login(t, c, "ana", "pw")

	resp, _ := e.get(t, c, "/admin")
	assertRedirect(t, resp, "/channels")

	resp = e.post(t, c, "/admin/users", url.Values{"username": {"x"}, "password": {"y"}})
	assertRedirect(t, resp, "/channels")
	_, err := e.store.GetUserByUsername(context.Background(), "x")
	assert.ErrorIs(t, err, models.ErrNotFound)

	adminID := e.store.idOf(adminName)
	resp = e.post(t, c, "/admin/users/"+itoa(adminID)+"/delete", nil)
	assertRedirect(t, resp, "/channels")
	assert.NotZero(t, e.store.idOf(adminName))
}

func TestAdmin_DeleteEndsAccess(t *testing.T) {
	e := newTestEnv(t)
	user := e.browser(t)
	e.post(t, user, "/register", url.Values{"username": {"ana"}, "password": {"pw"}})
	e.login(t, user, "ana", "pw")
	resp, _ := e.get(t, user, "/channels")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	admin := e.browser(t)
	e.login(t, admin, adminName, adminPass)
	resp = e.post(t, admin, "/admin/users/"+itoa(e.store.idOf("ana"))+"/delete", nil)
	assertRedirect(t, resp, "/admin")
	_, body := e.get(t, admin, "/admin")
	assert.Contains(t, body, noticeUserRemoved)

	resp, _ = e.get(t, user, "/channels")
	assertRedirect(t, resp, "/login")

	// Deleting the same id again is harmless.
	resp = e.post(t, admin, "/admin/users/2/delete", nil)
	assertRedirect(t, resp, "/admin")
}

func TestAdmin_CannotDeleteSelf(t *testing.T) {
	e := newTestEnv(t)
	admin := e.browser(t)
	e.login(t, admin, adminName, adminPass)

	resp := e.post(t, admin, "/admin/users/"+itoa(e.store.idOf(adminName))+"/delete", nil)
	assertRedirect(t, resp, "/admin")
	_, body := e.get(t, admin, "/admin")
	assert.Contains(t, body, noticeSelfDelete)
}

func TestLogin_RateLimited(t *testing.T) {
	redisURL := os.Getenv("REDIS_TEST_URL")
	if redisURL == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	r, err := cache.New(redisURL)
	require.NoError(t, err)
	require.NoError(t, r.Ping(context.Background()))
	t.Cleanup(func() { _ = r.Close() })

	const windowKey = "ratelimit:login:127.0.0.1"
	require.NoError(t, cache.Del(context.Background(), r, windowKey))
	t.Cleanup(func() { _ = cache.Del(context.Background(), r, windowKey) })

	e := newTestEnvWith(t, r, Options{LoginRateLimit: 2})
	c := e.browser(t)
	for i := 0; i < 2; i++ {
		resp := e.login(t, c, "ana", "wrong")
		assertRedirect(t, resp, "/login")
	}

	resp, err := c.PostForm(e.srv.URL+"/login", url.Values{"username": {adminName}, "password": {adminPass}})
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
	assert.Contains(t, string(body), noticeTooManyAttempts)
}

func TestLogout(t *testing.T) {
	e := newTestEnv(t)
	c := e.browser(t)
	e.login(t, c, adminName, adminPass)

	resp, _ := e.get(t, c, "/logout")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	resp, _ = e.get(t, c, "/channels")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.post(t, c, "/logout", nil)
	assertRedirect(t, resp, "/login")
	_, body := e.get(t, c, "/login")
	assert.Contains(t, body, noticeLoggedOut)

	resp, _ = e.get(t, c, "/channels")
	assertRedirect(t, resp, "/login")
}

func TestCORS_OnlyForAPI(t *testing.T) {
	e := newTestEnv(t)
	c := e.browser(t)

	resp, _ := e.get(t, c, "/api/health")
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = e.get(t, c, "/login")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	req, err := http.NewRequest(http.MethodOptions, e.srv.URL+"/login", nil)
	require.NoError(t, err)
	resp, err = c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEqual(t, http.StatusNoContent, resp.StatusCode)
}

func TestReload(t *testing.T) {
	e := newTestEnv(t)
	c := e.browser(t)
	e.login(t, c, adminName, adminPass)

	resp := e.post(t, c, "/channels/reload", nil)
	assertRedirect(t, resp, "/channels")
	_, body := e.get(t, c, "/channels")
	assert.Contains(t, body, "Lista atualizada: 2 canais.")
}

func TestAPIChannels(t *testing.T) {
	e := newTestEnv(t)

	resp, body := e.get(t, e.browser(t), "/api/channels")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var apiErr APIError
	require.NoError(t, json.Unmarshal([]byte(body), &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	admin := e.browser(t)
	e.login(t, admin, adminName, adminPass)
	resp, body = e.get(t, admin, "/api/channels")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got channelsResponse
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, []string{"Notícias", models.DefaultGroup}, got.Groups)
	assert.Equal(t, testChannels[0].URL, got.Channels[0].URL)

	resp, body = e.get(t, admin, "/api/channels?group="+url.QueryEscape(models.DefaultGroup))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.Len(t, got.Channels, 1)
	assert.Equal(t, "Filme", got.Channels[0].Name)

	basic := e.browser(t)
	e.post(t, basic, "/register", url.Values{"username": {"ana"}, "password": {"pw"}})
	e.login(t, basic, "ana", "pw")
	_, body = e.get(t, basic, "/api/channels")
	got = channelsResponse{}
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	for _, ch := range got.Channels {
		assert.Empty(t, ch.URL)
		assert.NotEmpty(t, ch.Key)
	}
}

func TestAPIChannel(t *testing.T) {
	e := newTestEnv(t)
	c := e.browser(t)
	e.login(t, c, adminName, adminPass)

	resp, body := e.get(t, c, "/api/channels/2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ch models.Channel
	require.NoError(t, json.Unmarshal([]byte(body), &ch))
	assert.Equal(t, "Filme", ch.Name)

	resp, _ = e.get(t, c, "/api/channels/3")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = e.get(t, c, "/api/channels/abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDocsAndMetrics(t *testing.T) {
	e := newTestEnv(t)
	c := e.browser(t)

	resp, body := e.get(t, c, "/api/docs/openapi.yaml")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "openapi:")

	resp, body = e.get(t, c, "/api/docs")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "swagger-ui")

	resp, body = e.get(t, c, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "legacytv_playlist_channels")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
