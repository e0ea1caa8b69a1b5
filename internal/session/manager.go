package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JET-SOUZA/Legacy.tv/internal/models"
)

// Cookie names.
const (
	CookieName = "legacytv_session"
	NoticeName = "legacytv_notice"
)

const noticeTTL = time.Minute

// Options configures a Manager.
type Options struct {
	TTL    time.Duration
	Secure bool // set the Secure attribute on cookies
}

// Manager ties the session Store to the signed cookies sent to browsers.
type Manager struct {
	store  Store
	codec  *Codec
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewManager returns a Manager. A zero TTL defaults to 12 hours.
func NewManager(store Store, codec *Codec, opts Options) *Manager {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{store: store, codec: codec, ttl: ttl, secure: opts.Secure, now: time.Now}
}

// Start creates a session for u and sets the session cookie.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, u *models.User) (*Session, error) {
	s := New(u, m.ttl, m.now())
	if err := m.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("Start: %w", err)
	}
	token, err := m.codec.Encode(s.ID, s.ExpiresAt)
	if err != nil {
		_ = m.store.Delete(ctx, s.ID)
		return nil, fmt.Errorf("Start: %w", err)
	}
	http.SetCookie(w, m.cookie(CookieName, token, s.ExpiresAt))
	return s, nil
}

// Load returns the session named by the request cookie. Anonymous requests,
// tampered cookies and expired sessions yield (nil, nil); only store failures are errors.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil, nil
	}
	id, err := m.codec.Decode(c.Value)
	if err != nil {
		return nil, nil
	}
	s, err := m.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("Load: %w", err)
	}
	return s, nil
}

// End deletes the request's session, if any, and clears the cookie.
func (m *Manager) End(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, m.expired(CookieName))
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	id, err := m.codec.Decode(c.Value)
	if err != nil {
		return nil
	}
	if err := m.store.Delete(r.Context(), id); err != nil {
		return fmt.Errorf("End: %w", err)
	}
	return nil
}

// SetNotice stores a one-shot message shown on the next page.
func (m *Manager) SetNotice(w http.ResponseWriter, msg string) {
	exp := m.now().Add(noticeTTL)
	token, err := m.codec.EncodeNotice(msg, exp)
	if err != nil {
		return
	}
	http.SetCookie(w, m.cookie(NoticeName, token, exp))
}

// PopNotice returns and clears the pending message, or "".
func (m *Manager) PopNotice(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(NoticeName)
	if err != nil {
		return ""
	}
	http.SetCookie(w, m.expired(NoticeName))
	msg, err := m.codec.DecodeNotice(c.Value)
	if err != nil {
		return ""
	}
	return msg
}

func (m *Manager) cookie(name, value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *Manager) expired(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
