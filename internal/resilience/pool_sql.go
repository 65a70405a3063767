package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// SQLPoolConfig exposes the database/sql pool knobs
// (MaxOpenConns/MaxIdleConns/ConnMaxLifetime/ConnMaxIdleTime). There is
// no health-ping interval; HealthCheck pings once each time it is called.
type SQLPoolConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func DefaultSQLPoolConfig(dsn string) SQLPoolConfig {
	return SQLPoolConfig{
		DSN:             dsn,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
	}
}

// SQLPool wraps a *sqlx.DB with the pool limits applied up front, so
// callers never reach for database/sql defaults (unbounded open conns).
type SQLPool struct {
	DB *sqlx.DB
}

func OpenSQLPool(cfg SQLPoolConfig) (*SQLPool, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sql pool: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return &SQLPool{DB: db}, nil
}

func (p *SQLPool) HealthCheck(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}

func (p *SQLPool) Close() error {
	return p.DB.Close()
}
