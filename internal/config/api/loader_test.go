package api_config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_SECRET_KEY", "test-secret")
	t.Setenv("AUTH_PEPPER_SECRET", "test-pepper")
}

func TestLoad_Defaults(t *testing.T) {
	setSecrets(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, StoragePostgres, cfg.App.Storage)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "HS256", cfg.Auth.Algorithm)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 720*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, "/", cfg.Auth.CookiePath)
	assert.False(t, cfg.Redis.Enable)
	assert.False(t, cfg.Kafka.Enable)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.Equal(t, "test-secret", cfg.Auth.SecretKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setSecrets(t)
	t.Setenv("APP_STORAGE", "memory")
	t.Setenv("AUTH_ACCESS_TTL", "5m")
	t.Setenv("AUTH_ALGORITHM", "HS512")
	t.Setenv("REDIS_ENABLE", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.App.Storage)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, "HS512", cfg.Auth.Algorithm)
	assert.True(t, cfg.Redis.Enable)
}

func TestLoad_File(t *testing.T) {
	setSecrets(t)
	path := filepath.Join(t.TempDir(), "api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_addr: ":9000"
auth:
  refresh_ttl: 48h
  cookie_secure: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.HTTPAddr)
	assert.Equal(t, 48*time.Hour, cfg.Auth.RefreshTTL)
	assert.True(t, cfg.Auth.CookieSecure)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want error
	}{
		{"no secret", map[string]string{"AUTH_SECRET_KEY": "", "AUTH_PEPPER_SECRET": "p"}, ErrNoSecretKey},
		{"no pepper", map[string]string{"AUTH_SECRET_KEY": "s", "AUTH_PEPPER_SECRET": ""}, ErrNoPepperSecret},
		{"rsa algorithm", map[string]string{"AUTH_SECRET_KEY": "s", "AUTH_PEPPER_SECRET": "p", "AUTH_ALGORITHM": "RS256"}, ErrBadAlgorithm},
		{"unknown storage", map[string]string{"AUTH_SECRET_KEY": "s", "AUTH_PEPPER_SECRET": "p", "APP_STORAGE": "sqlite"}, ErrBadStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	setSecrets(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
