//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NordCoder/Reelpass/internal/domain/auth"
	"github.com/NordCoder/Reelpass/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTransactor_RollbackUndoesEveryRepo(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	u := seedUser(t, NewUserRepo(testDB), "alice01", "a@x.com")
	rt := NewRefreshTokenRepo(testDB, zap.NewNop())
	ob := NewOutboxRepo(testDB)
	tx := NewTransactor(testDB, zap.NewNop())

	_, err := rt.Create(ctx, u.ID, "old-refresh-token", time.Now().Add(time.Hour))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := rt.Consume(ctx, "old-refresh-token"); err != nil {
			return err
		}
		if _, err := rt.Create(ctx, u.ID, "new-refresh-token", time.Now().Add(time.Hour)); err != nil {
			return err
		}
		if err := ob.Enqueue(ctx, "k1", outbox.KindSessionsRevoked, []byte(`{}`)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.True(t, rt.IsValid(ctx, "old-refresh-token"))
	_, err = rt.FindByToken(ctx, "new-refresh-token")
	assert.ErrorIs(t, err, auth.ErrTokenNotFound)

	var n int
	require.NoError(t, rawSQL.QueryRow(`SELECT count(*) FROM outbox`).Scan(&n))
	assert.Zero(t, n)
}

func TestTransactor_Commit(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	u := seedUser(t, NewUserRepo(testDB), "alice01", "a@x.com")
	rt := NewRefreshTokenRepo(testDB, zap.NewNop())
	tx := NewTransactor(testDB, zap.NewNop())

	_, err := rt.Create(ctx, u.ID, "old-refresh-token", time.Now().Add(time.Hour))
	require.NoError(t, err)

	err = tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := rt.Consume(ctx, "old-refresh-token"); err != nil {
			return err
		}
		_, err := rt.Create(ctx, u.ID, "new-refresh-token", time.Now().Add(time.Hour))
		return err
	})
	require.NoError(t, err)

	assert.False(t, rt.IsValid(ctx, "old-refresh-token"))
	assert.True(t, rt.IsValid(ctx, "new-refresh-token"))
}
