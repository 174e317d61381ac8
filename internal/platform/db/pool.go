package db

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig sizes the pool and fixes per-session settings applied to every
// connection it opens.
type PoolConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
	// Timezone is sent as the session TimeZone so date_trunc and DATE columns
	// agree with the hospital's local calendar. Empty keeps the server default.
	Timezone string
	// StatementTimeout caps a single statement. Zero leaves it unset.
	StatementTimeout time.Duration
	AppName          string
}

// NewPool opens a pgx pool for cfg and verifies it with a ping.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	pc, err := parsePoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func parsePoolConfig(cfg PoolConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > pc.MaxConns {
		return nil, fmt.Errorf("min conns %d exceeds max conns %d", cfg.MinConns, pc.MaxConns)
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnIdleTime = 5 * time.Minute
	pc.HealthCheckPeriod = time.Minute

	params := pc.ConnConfig.RuntimeParams
	if cfg.Timezone != "" && cfg.Timezone != "Local" {
		params["timezone"] = cfg.Timezone
	}
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}
	if cfg.AppName != "" {
		params["application_name"] = cfg.AppName
	}
	return pc, nil
}
