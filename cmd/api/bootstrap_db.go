package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Reelpass/internal/config/api"
	domainauth "github.com/NordCoder/Reelpass/internal/domain/auth"
	"github.com/NordCoder/Reelpass/internal/domain/outbox"
	"github.com/NordCoder/Reelpass/internal/domain/user"
	"github.com/NordCoder/Reelpass/internal/repository/memory"
	pg "github.com/NordCoder/Reelpass/internal/repository/postgres"
)

type transactor interface {
	WithTx(ctx context.Context, function func(ctx context.Context) error) error
}

// storage bundles the repositories of one backend.
type storage struct {
	users  user.Repo
	tokens domainauth.RefreshTokenRepo
	outbox outbox.Repository
	tx     transactor
	ping   func(ctx context.Context) error
	close  func()
}

func initStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	switch cfg.App.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, state is lost on restart")
		s := memory.New(func() time.Time { return time.Now().UTC() })
		return &storage{
			users:  memory.NewUserRepo(s),
			tokens: memory.NewRefreshTokenRepo(s),
			outbox: memory.NewOutboxRepo(s),
			tx:     s,
			ping:   s.Ping,
			close:  func() {},
		}, nil
	case config.StoragePostgres:
		db, err := pg.NewDB(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		return &storage{
			users:  pg.NewUserRepo(db),
			tokens: pg.NewRefreshTokenRepo(db, logger),
			outbox: pg.NewOutboxRepo(db),
			tx:     pg.NewTransactor(db, logger),
			ping:   db.Ping,
			close:  db.Close,
		}, nil
	default:
		return nil, config.ErrBadStorage
	}
}
