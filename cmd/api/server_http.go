package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Reelpass/internal/config/api"
	"github.com/NordCoder/Reelpass/internal/obs"
	"github.com/NordCoder/Reelpass/internal/services/api/auth"
)

func buildHTTPServer(cfg *config.Config, st *storage, srv *auth.Server) *http.Server {
	mux := http.NewServeMux()
	srv.Routes(mux)
	mux.Handle("GET /healthz", obs.HealthHandler(st.ping))
	if cfg.Server.MetricsAddr == "" {
		mux.Handle("GET /metrics", obs.MetricsHandler())
	}

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           obs.HTTPHandler(mux, "reelpass-api"),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func serveHTTP(srv *http.Server, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", srv.Addr))
	return srv.ListenAndServe()
}
