//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NordCoder/Reelpass/internal/domain/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRefreshTokenRepo_Lifecycle(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	u := seedUser(t, NewUserRepo(testDB), "alice01", "a@x.com")
	repo := NewRefreshTokenRepo(testDB, zap.NewNop())

	rec, err := repo.Create(ctx, u.ID, "refresh-token-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, auth.HashToken("refresh-token-1"), rec.TokenHash)
	assert.False(t, rec.Revoked)

	var stored string
	require.NoError(t, rawSQL.QueryRow(`SELECT token FROM refresh_tokens WHERE id = $1`, rec.ID).Scan(&stored))
	assert.NotEqual(t, "refresh-token-1", stored)

	_, err = repo.Create(ctx, u.ID, "refresh-token-1", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, auth.ErrDuplicateToken)

	_, err = repo.Create(ctx, u.ID, "short", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, auth.ErrMalformedToken)

	found, err := repo.FindByToken(ctx, "refresh-token-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)

	_, err = repo.FindByToken(ctx, "missing-token")
	assert.ErrorIs(t, err, auth.ErrTokenNotFound)

	assert.True(t, repo.IsValid(ctx, "refresh-token-1"))

	ok, err := repo.Revoke(ctx, "refresh-token-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, repo.IsValid(ctx, "refresh-token-1"))

	ok, err = repo.Revoke(ctx, "refresh-token-1")
	require.NoError(t, err)
	assert.True(t, ok, "revoking twice stays true")

	ok, err = repo.Revoke(ctx, "missing-token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefreshTokenRepo_Expired(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	u := seedUser(t, NewUserRepo(testDB), "alice01", "a@x.com")
	repo := NewRefreshTokenRepo(testDB, zap.NewNop())

	_, err := repo.Create(ctx, u.ID, "expired-token-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = repo.Create(ctx, u.ID, "live-token-0001", time.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.False(t, repo.IsValid(ctx, "expired-token-1"))
	_, err = repo.Consume(ctx, "expired-token-1")
	assert.ErrorIs(t, err, auth.ErrTokenInactive)

	n, err := repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, repo.IsValid(ctx, "live-token-0001"))
}

func TestRefreshTokenRepo_EndSession(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	u := seedUser(t, NewUserRepo(testDB), "alice01", "a@x.com")
	repo := NewRefreshTokenRepo(testDB, zap.NewNop())

	_, err := repo.Create(ctx, u.ID, "live-token-0001", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = repo.Create(ctx, u.ID, "expired-token-1", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = repo.Create(ctx, u.ID, "consumed-token1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = repo.Consume(ctx, "consumed-token1")
	require.NoError(t, err)

	active, err := repo.EndSession(ctx, "live-token-0001")
	require.NoError(t, err)
	assert.True(t, active)
	assert.False(t, repo.IsValid(ctx, "live-token-0001"))

	active, err = repo.EndSession(ctx, "live-token-0001")
	require.NoError(t, err)
	assert.False(t, active, "second close reports the revoked state")

	for _, tok := range []string{"expired-token-1", "consumed-token1", "missing-token"} {
		active, err = repo.EndSession(ctx, tok)
		require.NoError(t, err)
		assert.False(t, active, tok)
	}

	_, err = repo.EndSession(ctx, "short")
	assert.ErrorIs(t, err, auth.ErrMalformedToken)
	_, err = repo.Revoke(ctx, "short")
	assert.ErrorIs(t, err, auth.ErrMalformedToken)
	_, err = repo.FindByToken(ctx, "short")
	assert.ErrorIs(t, err, auth.ErrMalformedToken)
}

func TestRefreshTokenRepo_RevokeAllForUser(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	users := NewUserRepo(testDB)
	alice := seedUser(t, users, "alice01", "a@x.com")
	bob := seedUser(t, users, "bob", "b@x.com")
	repo := NewRefreshTokenRepo(testDB, zap.NewNop())

	for _, tok := range []string{"alice-token-1", "alice-token-2"} {
		_, err := repo.Create(ctx, alice.ID, tok, time.Now().Add(time.Hour))
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, bob.ID, "bob-token-001", time.Now().Add(time.Hour))
	require.NoError(t, err)

	n, err := repo.RevokeAllForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.False(t, repo.IsValid(ctx, "alice-token-1"))
	assert.False(t, repo.IsValid(ctx, "alice-token-2"))
	assert.True(t, repo.IsValid(ctx, "bob-token-001"))

	n, err = repo.RevokeAllForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRefreshTokenRepo_ConcurrentConsume(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	u := seedUser(t, NewUserRepo(testDB), "alice01", "a@x.com")
	repo := NewRefreshTokenRepo(testDB, zap.NewNop())

	_, err := repo.Create(ctx, u.ID, "contended-token", time.Now().Add(time.Hour))
	require.NoError(t, err)

	var wins, losses atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			owner, err := repo.Consume(ctx, "contended-token")
			switch {
			case err == nil:
				assert.Equal(t, u.ID, owner)
				wins.Add(1)
			case errors.Is(err, auth.ErrTokenInactive):
				losses.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(7), losses.Load())
}

func TestRefreshTokenRepo_CascadeOnUserDelete(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	users := NewUserRepo(testDB)
	u := seedUser(t, users, "alice01", "a@x.com")
	repo := NewRefreshTokenRepo(testDB, zap.NewNop())

	_, err := repo.Create(ctx, u.ID, "cascade-token", time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = users.Delete(ctx, u.ID)
	require.NoError(t, err)

	_, err = repo.FindByToken(ctx, "cascade-token")
	assert.ErrorIs(t, err, auth.ErrTokenNotFound)
}
