// Package db provides a pgxpool-based connection pool with prepared statement
// registration, schema bootstrap, and health checking.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/birthday-notifier/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Migrate applies the embedded schema. Idempotent: every statement uses
// IF NOT EXISTS, so running it at each startup is safe.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers the statements the API and scheduler
// use on every request path. Statements whose column set depends on the
// configured event type are built from the event registry at call sites
// instead.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	const userColumns = `id, first_name, last_name, email, birthday, anniversary, city, status,
		birthday_sent_status, birthday_sent, anniversary_sent_status, anniversary_sent, created_at`

	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// User CRUD
		"create_user": `INSERT INTO users (first_name, last_name, email, birthday, anniversary, city, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at`,
		"list_users":  "SELECT " + userColumns + " FROM users ORDER BY id",
		"delete_user": "DELETE FROM users WHERE id = $1",

		// Scheduler
		"fetch_active_users": "SELECT " + userColumns + " FROM users WHERE status = 'active' ORDER BY id",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
