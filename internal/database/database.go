// Package database owns the PostgreSQL connection pool and schema bootstrap.
package database

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"redas-backend/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Service is the handle handlers and repositories depend on.
type Service interface {
	GetPool() *pgxpool.Pool
	Health() map[string]string
	Migrate(ctx context.Context) error
	Close()
}

type service struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New opens a pgx pool and verifies connectivity.
func New(ctx context.Context, cfg *config.DBConfig, log *zap.Logger) (Service, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("database connected",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns))

	return &service{pool: pool, log: log}, nil
}

func (s *service) GetPool() *pgxpool.Pool {
	return s.pool
}

// Health reports pool status for the /api/health endpoint.
func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stats := map[string]string{}
	if err := s.pool.Ping(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = err.Error()
		return stats
	}

	st := s.pool.Stat()
	stats["status"] = "up"
	stats["total_conns"] = fmt.Sprintf("%d", st.TotalConns())
	stats["idle_conns"] = fmt.Sprintf("%d", st.IdleConns())
	stats["acquired_conns"] = fmt.Sprintf("%d", st.AcquiredConns())
	return stats
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *service) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.log.Info("database schema applied")
	return nil
}

func (s *service) Close() {
	s.pool.Close()
}
