package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sloghttp "github.com/samber/slog-http"

	"github.com/JET-SOUZA/Legacy.tv/internal/cache"
	"github.com/JET-SOUZA/Legacy.tv/internal/service"
	"github.com/JET-SOUZA/Legacy.tv/internal/session"
	"github.com/JET-SOUZA/Legacy.tv/internal/store"
)

// Deps are the collaborators the HTTP layer drives.
type Deps struct {
	Accounts *service.Accounts
	Playlist *service.Playlist
	Sessions *session.Manager
	Store    store.Store  // pinged by the readiness probe
	Cache    *cache.Redis // nil when REDIS_URL is not set
	Logger   *slog.Logger
}

// Options tunes the HTTP layer.
type Options struct {
	Port           string
	LoginRateLimit int // attempts per minute per client; 0 disables
}

// Server holds dependencies for the portal pages and the JSON API.
type Server struct {
	accounts  *service.Accounts
	playlist  *service.Playlist
	sessions  *session.Manager
	store     store.Store
	cache     *cache.Redis
	logger    *slog.Logger
	opts      Options
	validate  *validator.Validate
	templates map[string]*template.Template
	mux       *http.ServeMux
}

// New creates a Server and registers routes.
func New(d Deps, opts Options) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Port == "" {
		opts.Port = "8080"
	}
	srv := &Server{
		accounts:  d.Accounts,
		playlist:  d.Playlist,
		sessions:  d.Sessions,
		store:     d.Store,
		cache:     d.Cache,
		logger:    logger,
		opts:      opts,
		validate:  newValidator(),
		templates: tmpl,
		mux:       http.NewServeMux(),
	}
	srv.routes()
	return srv, nil
}

func (s *Server) routes() {
	// Pages
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /register", s.handleRegisterPage)
	s.mux.HandleFunc("POST /register", s.handleRegister)
	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.Handle("POST /login", s.withLoginRateLimit(http.HandlerFunc(s.handleLogin)))
	s.mux.HandleFunc("POST /logout", s.handleLogout)

	// Channels
	s.mux.HandleFunc("GET /channels", s.requireLogin(s.handleChannels))
	s.mux.HandleFunc("POST /channels/reload", s.requireLogin(s.handleReload))
	s.mux.HandleFunc("GET /play/{key}", s.requireLogin(s.handlePlay))

	// Admin
	s.mux.HandleFunc("GET /admin", s.requireLogin(s.handleAdmin))
	s.mux.HandleFunc("POST /admin/users", s.requireLogin(s.handleAdminCreate))
	s.mux.HandleFunc("POST /admin/users/{id}/delete", s.requireLogin(s.handleAdminDelete))

	// JSON API
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/health/ready", s.handleReady)
	s.mux.HandleFunc("GET /api/channels", s.handleAPIChannels)
	s.mux.HandleFunc("GET /api/channels/{id}", s.handleAPIChannel)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	// Docs
	s.mux.HandleFunc("GET /api/docs", handleSwaggerUI)
	s.mux.HandleFunc("GET /api/docs/openapi.yaml", handleOpenAPISpec)
}

// ServeHTTP implements http.Handler. It does not include the middleware
// chain; use Handler for that.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler returns the mux wrapped with access logging, panic recovery,
// CORS headers for /api/ and session loading.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.withSession(h)
	h = sloghttp.Recovery(h)
	h = withCORS(h)
	h = sloghttp.New(s.logger)(h)
	return h
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server is shut down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.opts.Port
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown", "error", err)
		}
	}()

	s.logger.Info("listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}
