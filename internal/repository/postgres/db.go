package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pingTimeout = 5 * time.Second

type Config struct {
	DSN               string        `mapstructure:"dsn"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
}

// poolConfig parses the DSN and applies every positive override on top of
// pgxpool's defaults.
func (c Config) poolConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	setPos(&pc.MaxConns, c.MaxConns)
	setPos(&pc.MinConns, c.MinConns)
	setPos(&pc.MaxConnLifetime, c.MaxConnLifetime)
	setPos(&pc.MaxConnIdleTime, c.MaxConnIdleTime)
	setPos(&pc.HealthCheckPeriod, c.HealthCheckPeriod)
	return pc, nil
}

func setPos[T int32 | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// DB is the pgx pool every repository in this package shares.
type DB struct {
	Pool         *pgxpool.Pool
	QueryTimeout time.Duration
}

func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	pc, err := cfg.poolConfig()
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	db := &DB{Pool: pool, QueryTimeout: cfg.QueryTimeout}
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

func (db *DB) Close() { db.Pool.Close() }

func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

// withTimeout bounds a single statement by QueryTimeout when one is set.
func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.QueryTimeout)
}
