package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	sec "github.com/NordCoder/Reelpass/internal/auth"
	config "github.com/NordCoder/Reelpass/internal/config/api"
	"github.com/NordCoder/Reelpass/internal/obs"
	"github.com/NordCoder/Reelpass/internal/services/api/auth"
	"github.com/NordCoder/Reelpass/internal/services/api/users"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to yaml config")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting api",
		zap.String("env", cfg.App.Env),
		zap.String("ver", cfg.App.Version),
		zap.String("storage", cfg.App.Storage),
		zap.String("jwt_alg", cfg.Auth.Algorithm),
		obs.Redacted("jwt_secret", cfg.Auth.SecretKey),
		obs.Redacted("pepper", cfg.Auth.PepperSecret),
	)

	otelShutdown, err := initOTel(rootCtx, cfg)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	st, err := initStorage(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("storage init", zap.Error(err))
	}
	defer st.close()

	cache, closeCache := initCache(rootCtx, cfg, logger)
	defer closeCache()

	hasher, err := sec.NewHasher([]byte(cfg.Auth.PepperSecret), cfg.Auth.BcryptCost)
	if err != nil {
		logger.Fatal("password hasher", zap.Error(err))
	}
	codec, err := sec.NewCodec(cfg.Auth.CodecConfig())
	if err != nil {
		logger.Fatal("token codec", zap.Error(err))
	}

	dir := users.NewDirectory(logger, st.users, hasher, st.tx, st.outbox, cache)
	uc := auth.NewUsecase(logger, dir, st.tokens, codec, st.tx, st.outbox)
	authSrv := auth.NewServer(uc, dir, auth.Opts{
		Logger:       logger,
		CookieDomain: cfg.Auth.CookieDomain,
		CookiePath:   cfg.Auth.CookiePath,
		CookieSecure: cfg.Auth.CookieSecure,
	})

	stopOutbox := startOutbox(rootCtx, cfg, st, logger)

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		metricsSrv = obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, st.ping, logger)
	}

	httpSrv := buildHTTPServer(cfg, st, authSrv)
	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, logger) }()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case err := <-httpErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(err))
		}
		stop()
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	_ = httpSrv.Shutdown(shCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shCtx)
	}
	stopOutbox()
	logger.Info("bye")
}
