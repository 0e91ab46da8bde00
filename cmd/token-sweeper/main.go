package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Reelpass/internal/config/token-sweeper"
	"github.com/NordCoder/Reelpass/internal/obs"
	pg "github.com/NordCoder/Reelpass/internal/repository/postgres"
	sweeper "github.com/NordCoder/Reelpass/internal/services/token-sweeper"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to yaml config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting token sweeper",
		zap.Duration("tick", cfg.Sweeper.Tick),
		zap.String("metrics_addr", cfg.Sweeper.MetricsAddr),
	)

	otelShutdown, err := obs.SetupTracing(ctx, cfg.OTEL)
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	ms := obs.BootstrapMetricsServer(cfg.Sweeper.MetricsAddr, db.Ping, l)

	uc := sweeper.NewUC(pg.NewRefreshTokenRepo(db, l))
	runner := sweeper.New(l, uc, &cfg.Sweeper)

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	l.Info("token sweeper started")

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
