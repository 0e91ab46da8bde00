package token_sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	config "github.com/NordCoder/Reelpass/internal/config/token-sweeper"
	"github.com/NordCoder/Reelpass/internal/repository/memory"
)

type purgerFunc func(ctx context.Context) (int64, error)

func (f purgerFunc) PurgeExpired(ctx context.Context) (int64, error) { return f(ctx) }

func TestUsecase_TickWrapsError(t *testing.T) {
	boom := errors.New("boom")
	uc := NewUC(purgerFunc(func(context.Context) (int64, error) { return 0, boom }))

	_, err := uc.Tick(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestUsecase_TickPurgesMemoryStore(t *testing.T) {
	now := time.Now()
	store := memory.New(func() time.Time { return now })
	ctx := context.Background()

	tokens := memory.NewRefreshTokenRepo(store)
	_, err := tokens.Create(ctx, 1, "expired-token-1", now.Add(-time.Minute))
	require.NoError(t, err)
	_, err = tokens.Create(ctx, 1, "live-token-001", now.Add(time.Hour))
	require.NoError(t, err)

	n, err := NewUC(tokens).Tick(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.True(t, tokens.IsValid(ctx, "live-token-001"))
}

func TestRunner_RunTicksUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	uc := NewUC(purgerFunc(func(context.Context) (int64, error) {
		calls.Add(1)
		return 1, nil
	}))
	r := New(zaptest.NewLogger(t), uc, &config.SweeperCfg{Tick: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
