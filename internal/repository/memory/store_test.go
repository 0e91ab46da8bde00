package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/Reelpass/internal/domain/auth"
	"github.com/NordCoder/Reelpass/internal/domain/outbox"
	"github.com/NordCoder/Reelpass/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newStore() (*Store, *clock) {
	c := &clock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	return New(c.Now), c
}

func TestUserRepo(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	repo := NewUserRepo(s)

	u := &user.User{Username: "alice01", Email: "a@x.com", PasswordHash: []byte("h")}
	require.NoError(t, repo.Create(ctx, u))
	assert.Equal(t, int64(1), u.ID)
	assert.True(t, u.IsActive)

	assert.ErrorIs(t, repo.Create(ctx, &user.User{Username: "bob", Email: "a@x.com"}), user.ErrDuplicateEmail)
	assert.ErrorIs(t, repo.Create(ctx, &user.User{Username: "alice01", Email: "b@x.com"}), user.ErrDuplicateUsername)

	got, err := repo.GetByUsername(ctx, "alice01")
	require.NoError(t, err)
	got.PasswordHash[0] = 'X'
	again, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("h"), again.PasswordHash, "callers get copies")

	_, err = repo.GetByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestRefreshTokenRepo(t *testing.T) {
	s, clk := newStore()
	ctx := context.Background()
	repo := NewRefreshTokenRepo(s)

	_, err := repo.Create(ctx, 1, "token-aaaaaa", clk.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = repo.Create(ctx, 1, "token-aaaaaa", clk.Now().Add(time.Hour))
	assert.ErrorIs(t, err, auth.ErrDuplicateToken)
	_, err = repo.Create(ctx, 1, "short", clk.Now().Add(time.Hour))
	assert.ErrorIs(t, err, auth.ErrMalformedToken)

	assert.True(t, repo.IsValid(ctx, "token-aaaaaa"))

	owner, err := repo.Consume(ctx, "token-aaaaaa")
	require.NoError(t, err)
	assert.Equal(t, int64(1), owner)
	_, err = repo.Consume(ctx, "token-aaaaaa")
	assert.ErrorIs(t, err, auth.ErrTokenInactive)

	ok, err := repo.Revoke(ctx, "token-aaaaaa")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Revoke(ctx, "token-missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Create(ctx, 1, "token-bbbbbb", clk.Now().Add(time.Minute))
	require.NoError(t, err)
	clk.Advance(time.Minute)
	assert.False(t, repo.IsValid(ctx, "token-bbbbbb"), "expiry at now is inactive")

	n, err := repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStoreWithTxRollsBack(t *testing.T) {
	s, clk := newStore()
	ctx := context.Background()
	users := NewUserRepo(s)
	tokens := NewRefreshTokenRepo(s)
	events := NewOutboxRepo(s)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context) error {
		u := &user.User{Username: "alice01", Email: "a@x.com"}
		if err := users.Create(ctx, u); err != nil {
			return err
		}
		if _, err := tokens.Create(ctx, u.ID, "token-aaaaaa", clk.Now().Add(time.Hour)); err != nil {
			return err
		}
		if err := events.Enqueue(ctx, "k1", outbox.KindUserRegistered, nil); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = users.GetByUsername(ctx, "alice01")
	assert.ErrorIs(t, err, user.ErrNotFound)
	assert.False(t, tokens.IsValid(ctx, "token-aaaaaa"))
	assert.Empty(t, events.Messages())

	// ids are not burnt by the rollback
	u := &user.User{Username: "alice01", Email: "a@x.com"}
	require.NoError(t, users.Create(ctx, u))
	assert.Equal(t, int64(1), u.ID)
}

func TestOutboxRepo(t *testing.T) {
	s, clk := newStore()
	ctx := context.Background()
	repo := NewOutboxRepo(s)

	require.NoError(t, repo.Enqueue(ctx, "k1", outbox.KindUserRegistered, []byte("a")))
	require.NoError(t, repo.Enqueue(ctx, "k1", outbox.KindUserRegistered, []byte("a")))
	require.NoError(t, repo.Enqueue(ctx, "k2", outbox.KindPasswordChanged, []byte("b")))

	batch, err := repo.PickBatch(ctx, 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "k1", batch[0].IdempotencyKey)

	batch, err = repo.PickBatch(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "k2", batch[0].IdempotencyKey)

	clk.Advance(2 * time.Minute)
	require.NoError(t, repo.MarkSuccess(ctx, []string{"k2"}))
	batch, err = repo.PickBatch(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, batch, 1, "stale in-progress message is picked again")
	assert.Equal(t, "k1", batch[0].IdempotencyKey)
}

func TestStoreNestedWithTxJoinsOuter(t *testing.T) {
	s, _ := newStore()
	ctx := context.Background()
	users := NewUserRepo(s)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context) error {
		inner := s.WithTx(ctx, func(ctx context.Context) error {
			return users.Create(ctx, &user.User{Username: "bob0001", Email: "b@x.com"})
		})
		require.NoError(t, inner)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = users.GetByUsername(ctx, "bob0001")
	assert.ErrorIs(t, err, user.ErrNotFound, "outer rollback undoes the inner write")
}

func TestStoreRollbackKeepsWritesFromOutsideTheTx(t *testing.T) {
	s, clk := newStore()
	ctx := context.Background()
	tokens := NewRefreshTokenRepo(s)

	_, err := tokens.Create(ctx, 1, "victim-token", clk.Now().Add(time.Hour))
	require.NoError(t, err)

	revoked := make(chan bool, 1)
	boom := errors.New("replay lost")
	err = s.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := tokens.Create(txCtx, 2, "tx-only-token", clk.Now().Add(time.Hour)); err != nil {
			return err
		}
		go func() {
			ok, _ := tokens.Revoke(ctx, "victim-token")
			_, _ = tokens.Create(ctx, 3, "other-session", clk.Now().Add(time.Hour))
			revoked <- ok
		}()
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, <-revoked)

	assert.False(t, tokens.IsValid(ctx, "victim-token"), "logout survives the rollback")
	assert.True(t, tokens.IsValid(ctx, "other-session"))
	assert.False(t, tokens.IsValid(ctx, "tx-only-token"))
}

func TestRefreshTokenRepo_EndSession(t *testing.T) {
	s, clk := newStore()
	ctx := context.Background()
	repo := NewRefreshTokenRepo(s)

	_, err := repo.Create(ctx, 1, "token-aaaaaa", clk.Now().Add(time.Hour))
	require.NoError(t, err)

	active, err := repo.EndSession(ctx, "token-aaaaaa")
	require.NoError(t, err)
	assert.True(t, active)
	assert.False(t, repo.IsValid(ctx, "token-aaaaaa"))

	active, err = repo.EndSession(ctx, "token-aaaaaa")
	require.NoError(t, err)
	assert.False(t, active)

	active, err = repo.EndSession(ctx, "token-missing")
	require.NoError(t, err)
	assert.False(t, active)

	_, err = repo.EndSession(ctx, "short")
	assert.ErrorIs(t, err, auth.ErrMalformedToken)
	_, err = repo.Revoke(ctx, "short")
	assert.ErrorIs(t, err, auth.ErrMalformedToken)
	_, err = repo.FindByToken(ctx, "short")
	assert.ErrorIs(t, err, auth.ErrMalformedToken)
}
