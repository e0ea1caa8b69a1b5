package store

import (
	"context"

	"github.com/JET-SOUZA/Legacy.tv/internal/models"
)

// Store defines persistence for portal accounts.
type Store interface {
	// CreateUser inserts u and returns its id. models.ErrDuplicateUser on username conflict.
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	// CreateUserIfAbsent inserts u unless the username exists; reports whether a row was written.
	CreateUserIfAbsent(ctx context.Context, u *models.User) (bool, error)
	// GetUserByID returns models.ErrNotFound when the id is absent.
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	// GetUserByUsername returns models.ErrNotFound when the username is absent.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// ListUsers returns all users, most recently created first.
	ListUsers(ctx context.Context) ([]models.User, error)
	// DeleteUser removes the user; absent ids are not an error.
	DeleteUser(ctx context.Context, id int64) error
	// Ping checks the connection to the backing database.
	Ping(ctx context.Context) error
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*CachedStore)(nil)
)
