package token_sweeper_config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("SWEEPER_TICK", "30s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Sweeper.Tick)
	assert.Equal(t, ":8082", cfg.Sweeper.MetricsAddr)
	assert.Equal(t, "reelpass/token-sweeper", cfg.Log.App)
	assert.NotEmpty(t, cfg.DB.DSN)
}

func TestLoad_RejectsZeroTick(t *testing.T) {
	t.Setenv("SWEEPER_TICK", "0s")

	_, err := Load("")
	assert.Error(t, err)
}
