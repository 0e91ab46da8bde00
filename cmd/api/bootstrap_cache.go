package main

import (
	"context"

	"go.uber.org/zap"

	config "github.com/NordCoder/Reelpass/internal/config/api"
	"github.com/NordCoder/Reelpass/internal/domain/user"
	redisrepo "github.com/NordCoder/Reelpass/internal/repository/redis"
)

// initCache returns a nil cache when redis is disabled or unreachable.
func initCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (user.Cache, func()) {
	if !cfg.Redis.Enable {
		return nil, func() {}
	}
	client, err := redisrepo.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, profile cache disabled", zap.Error(err))
		return nil, func() {}
	}
	logger.Info("profile cache enabled", zap.String("addr", cfg.Redis.Addr))
	return redisrepo.NewProfileCache(client, cfg.Redis.ProfileTTL), func() { _ = client.Close() }
}
