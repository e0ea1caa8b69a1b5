package server

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/JET-SOUZA/Legacy.tv/internal/cache"
	"github.com/JET-SOUZA/Legacy.tv/internal/metrics"
	"github.com/JET-SOUZA/Legacy.tv/internal/models"
	"github.com/JET-SOUZA/Legacy.tv/internal/session"
)

const loginWindow = time.Minute

// withCORS lets browsers on other origins read the JSON API. Pages and form
// posts stay same-origin; the API is read-only so only GET is allowed.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withSession attaches the caller's session, if any, to the request context.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Load(r)
		if err != nil {
			s.logger.Warn("load session", append(s.logAttrs(r), "error", err)...)
		}
		if sess != nil {
			r = r.WithContext(session.WithSession(r.Context(), sess))
		}
		next.ServeHTTP(w, r)
	})
}

// requireLogin refuses anonymous requests and sessions whose account has
// since been deleted or has expired.
func (s *Server) requireLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil {
			s.redirect(w, r, "/login", noticeLoginRequired)
			return
		}
		if _, err := s.accounts.RequireActive(r.Context(), sess.UserID); err != nil {
			switch {
			case errors.Is(err, models.ErrExpired):
				s.fail(w, r, err, "/login")
			case errors.Is(err, models.ErrUnauthorized):
				if endErr := s.sessions.End(w, r); endErr != nil {
					s.logger.Warn("end session", "error", endErr)
				}
				s.redirect(w, r, "/login", noticeLoginRequired)
			default:
				s.fail(w, r, err, "/login")
			}
			return
		}
		next(w, r)
	}
}

// withLoginRateLimit counts login posts per client address in Redis.
// Without Redis, or when Redis fails, requests pass.
func (s *Server) withLoginRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cache == nil || s.opts.LoginRateLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ok, err := cache.Allow(r.Context(), s.cache, "login:"+clientIP(r), s.opts.LoginRateLimit, loginWindow)
		if err != nil {
			s.logger.Warn("rate limit unavailable", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			metrics.Logins.WithLabelValues(metrics.LoginRateLimited).Inc()
			w.Header().Set("Retry-After", "60")
			s.renderNotice(w, r, http.StatusTooManyRequests, "login", noticeTooManyAttempts, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of the peer address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
