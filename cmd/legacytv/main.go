package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JET-SOUZA/Legacy.tv/internal/cache"
	"github.com/JET-SOUZA/Legacy.tv/internal/config"
	"github.com/JET-SOUZA/Legacy.tv/internal/logging"
	"github.com/JET-SOUZA/Legacy.tv/internal/server"
	"github.com/JET-SOUZA/Legacy.tv/internal/service"
	"github.com/JET-SOUZA/Legacy.tv/internal/session"
	"github.com/JET-SOUZA/Legacy.tv/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); environment variables override it")
	flag.Parse()

	ctx := context.Background()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(ctx, *configPath)
	} else {
		cfg, err = config.Load(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pg.Close()

	// Redis is optional: without it sessions live in memory and there is no
	// user cache, reload lock, playlist fallback copy or login rate limit.
	var rds *cache.Redis
	var appStore store.Store = pg
	var sessionStore session.Store = session.NewMemoryStore()
	if cfg.RedisURL != "" {
		rds, err = cache.New(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rds.Close()

		if err := rds.Ping(ctx); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		appStore = store.NewCachedStore(pg, rds, logger)
		sessionStore = session.NewRedisStore(rds)
		logger.Info("redis connected", "caching", true)
	} else {
		logger.Info("redis disabled (REDIS_URL not set)")
	}

	accounts, err := service.NewAccounts(appStore, service.AccountsOptions{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("accounts: %w", err)
	}
	if err := accounts.Init(ctx); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	playlist := service.NewPlaylist(service.PlaylistOptions{
		URL:       cfg.PlaylistURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
	}, rds, logger)
	// A failed first load leaves an empty or stored list; the portal still starts.
	if _, err := playlist.Reload(ctx); err != nil {
		logger.Warn("initial playlist load failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(server.Deps{
		Accounts: accounts,
		Playlist: playlist,
		Sessions: session.NewManager(sessionStore, session.NewCodec(cfg.SecretKey), session.Options{
			TTL:    cfg.SessionTTL,
			Secure: cfg.CookieSecure,
		}),
		Store:  appStore,
		Cache:  rds,
		Logger: logger,
	}, server.Options{
		Port:           cfg.ServerPort,
		LoginRateLimit: cfg.LoginRateLimit,
	})
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return srv.ListenAndServe(ctx)
}
