package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/JET-SOUZA/Legacy.tv/internal/metrics"
	"github.com/JET-SOUZA/Legacy.tv/internal/models"
	"github.com/JET-SOUZA/Legacy.tv/internal/store"
)

// AccountsOptions configures Accounts.
type AccountsOptions struct {
	AdminUsername string
	AdminPassword string
	HashCost      int // defaults to bcrypt.DefaultCost
	Now           func() time.Time
	Logger        *slog.Logger
}

// NewUser is an administrator's request to create an account.
type NewUser struct {
	Username       string
	Password       string
	Premium        bool
	ExpiresInHours *int // nil means the account never expires
}

// Accounts implements registration, login and user administration.
type Accounts struct {
	store     store.Store
	opts      AccountsOptions
	dummyHash []byte
}

// NewAccounts returns an Accounts service backed by s.
func NewAccounts(s store.Store, opts AccountsOptions) (*Accounts, error) {
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	// Compared against when the username is unknown, so both failures cost one bcrypt check.
	dummy, err := bcrypt.GenerateFromPassword([]byte("legacytv-dummy-password"), opts.HashCost)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	return &Accounts{store: s, opts: opts, dummyHash: dummy}, nil
}

// Init seeds the configured administrator if it does not exist yet.
func (a *Accounts) Init(ctx context.Context) error {
	created, err := a.EnsureAdmin(ctx, a.opts.AdminUsername, a.opts.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		a.opts.Logger.Info("seeded administrator", "username", a.opts.AdminUsername)
	}
	return nil
}

// EnsureAdmin creates a premium administrator named username unless that
// username already exists. It reports whether an account was created.
func (a *Accounts) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, fmt.Errorf("EnsureAdmin: %w", models.ErrInvalidInput)
	}
	hash, err := a.hash(password)
	if err != nil {
		return false, err
	}
	created, err := a.store.CreateUserIfAbsent(ctx, &models.User{
		Username:     username,
		PasswordHash: hash,
		Premium:      true,
		Admin:        true,
	})
	if err != nil {
		return false, fmt.Errorf("EnsureAdmin: %w", err)
	}
	return created, nil
}

// Register creates a regular account: not premium, not admin, no expiry.
func (a *Accounts) Register(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, models.ErrInvalidInput
	}
	u, err := a.create(ctx, &models.User{Username: username}, password)
	if err != nil {
		return nil, err
	}
	metrics.Accounts.WithLabelValues(metrics.OpRegister).Inc()
	return u, nil
}

// Authenticate checks the credentials. Unknown usernames and wrong passwords
// both yield models.ErrAuthFailure; models.ErrExpired is only reported after
// the password matched.
func (a *Accounts) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("Authenticate: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
		metrics.Logins.WithLabelValues(metrics.LoginAuthFailure).Inc()
		return nil, models.ErrAuthFailure
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		metrics.Logins.WithLabelValues(metrics.LoginAuthFailure).Inc()
		return nil, models.ErrAuthFailure
	}
	if u.Expired(a.opts.Now()) {
		metrics.Logins.WithLabelValues(metrics.LoginExpired).Inc()
		return nil, models.ErrExpired
	}
	metrics.Logins.WithLabelValues(metrics.LoginOK).Inc()
	return u, nil
}

// RequireActive loads the user behind a session and refuses deleted or expired accounts.
func (a *Accounts) RequireActive(ctx context.Context, id int64) (*models.User, error) {
	u, err := a.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, fmt.Errorf("RequireActive: %w", err)
	}
	if u.Expired(a.opts.Now()) {
		return nil, models.ErrExpired
	}
	return u, nil
}

// RequireAdmin re-reads the acting user and checks the admin flag.
func (a *Accounts) RequireAdmin(ctx context.Context, id int64) (*models.User, error) {
	u, err := a.RequireActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.Admin {
		return nil, models.ErrUnauthorized
	}
	return u, nil
}

// RequirePremium re-reads the acting user and checks playback entitlement.
func (a *Accounts) RequirePremium(ctx context.Context, id int64) (*models.User, error) {
	u, err := a.RequireActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.CanPlay() {
		return nil, models.ErrUnauthorized
	}
	return u, nil
}

// ListUsers returns every account, newest first. Admin only.
func (a *Accounts) ListUsers(ctx context.Context, actorID int64) ([]models.User, error) {
	if _, err := a.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListUsers: %w", err)
	}
	return users, nil
}

// MaxExpiresInHours bounds a requested expiry in either direction (100 years).
const MaxExpiresInHours = 100 * 365 * 24

// CreateUser creates an account with the requested flags. Admin only.
// ExpiresInHours is relative to now and may be negative; values beyond
// MaxExpiresInHours are rejected with ErrInvalidInput.
func (a *Accounts) CreateUser(ctx context.Context, actorID int64, req NewUser) (*models.User, error) {
	if _, err := a.RequireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if req.Username == "" || req.Password == "" {
		return nil, models.ErrInvalidInput
	}
	if h := req.ExpiresInHours; h != nil && (*h > MaxExpiresInHours || *h < -MaxExpiresInHours) {
		return nil, models.ErrInvalidInput
	}
	u := &models.User{Username: req.Username, Premium: req.Premium}
	if req.ExpiresInHours != nil {
		exp := a.opts.Now().Add(time.Duration(*req.ExpiresInHours) * time.Hour)
		u.ExpiresAt = &exp
	}
	created, err := a.create(ctx, u, req.Password)
	if err != nil {
		return nil, err
	}
	metrics.Accounts.WithLabelValues(metrics.OpCreate).Inc()
	return created, nil
}

// DeleteUser removes an account. Admin only; deleting an absent id succeeds.
// An administrator cannot delete their own account.
func (a *Accounts) DeleteUser(ctx context.Context, actorID, id int64) error {
	if _, err := a.RequireAdmin(ctx, actorID); err != nil {
		return err
	}
	if id == actorID {
		return models.ErrInvalidInput
	}
	if err := a.store.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("DeleteUser: %w", err)
	}
	metrics.Accounts.WithLabelValues(metrics.OpDelete).Inc()
	return nil
}

func (a *Accounts) create(ctx context.Context, u *models.User, password string) (*models.User, error) {
	hash, err := a.hash(password)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	id, err := a.store.CreateUser(ctx, u)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateUser) {
			return nil, models.ErrDuplicateUser
		}
		return nil, fmt.Errorf("CreateUser: %w", err)
	}
	u.ID = id
	return u, nil
}

func (a *Accounts) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), a.opts.HashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", models.ErrInvalidInput
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}
