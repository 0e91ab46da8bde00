package main

import (
	"context"

	config "github.com/NordCoder/Reelpass/internal/config/api"
	"github.com/NordCoder/Reelpass/internal/obs"
)

func initOTel(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	return obs.SetupTracing(ctx, cfg.OTEL.AsOTELConfig(cfg.App))
}
