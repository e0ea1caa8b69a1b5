package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JET-SOUZA/Legacy.tv/internal/models"
)

// testPostgres migrates and connects to DATABASE_TEST_URL, emptying the users table.
func testPostgres(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("DATABASE_TEST_URL")
	if dsn == "" {
		t.Skip("DATABASE_TEST_URL not set")
	}
	require.NoError(t, RunMigrations(dsn))
	require.NoError(t, RunMigrations(dsn), "second run is a no-op")

	ctx := context.Background()
	pg, err := NewPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pg.Close)
	_, err = pg.pool.Exec(ctx, `TRUNCATE users RESTART IDENTITY`)
	require.NoError(t, err)
	return pg
}

func TestPostgres_UserLifecycle(t *testing.T) {
	pg := testPostgres(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)

	id, err := pg.CreateUser(ctx, &models.User{Username: "ana", PasswordHash: "h", Premium: true, ExpiresAt: &exp})
	require.NoError(t, err)

	_, err = pg.CreateUser(ctx, &models.User{Username: "ana", PasswordHash: "x"})
	assert.ErrorIs(t, err, models.ErrDuplicateUser)

	byID, err := pg.GetUserByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ana", byID.Username)
	assert.True(t, byID.Premium)
	require.NotNil(t, byID.ExpiresAt)
	assert.True(t, exp.Equal(*byID.ExpiresAt))

	_, err = pg.GetUserByUsername(ctx, "ANA")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, pg.DeleteUser(ctx, id))
	require.NoError(t, pg.DeleteUser(ctx, id))
	_, err = pg.GetUserByID(ctx, id)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPostgres_CreateUserIfAbsent(t *testing.T) {
	pg := testPostgres(t)
	ctx := context.Background()
	admin := &models.User{Username: "root", PasswordHash: "h", Premium: true, Admin: true}

	created, err := pg.CreateUserIfAbsent(ctx, admin)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = pg.CreateUserIfAbsent(ctx, admin)
	require.NoError(t, err)
	assert.False(t, created)

	users, err := pg.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestPostgres_ListUsersNewestFirst(t *testing.T) {
	pg := testPostgres(t)
	ctx := context.Background()
	for _, name := range []string{"u1", "u2", "u3"} {
		_, err := pg.CreateUser(ctx, &models.User{Username: name, PasswordHash: "h"})
		require.NoError(t, err)
	}

	users, err := pg.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, []string{"u3", "u2", "u1"}, []string{users[0].Username, users[1].Username, users[2].Username})
}
