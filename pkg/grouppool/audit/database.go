// Package audit records completed task outcomes to PostgreSQL for
// historical inspection. It is grounded on NoiseFS's compliance
// storage layer (pgx/v5 pool + golang-migrate schema migrations) but
// narrowed to a single append-only table of finished tasks.
//
// This is an observability sink, not a persistence layer for the pool
// itself: grouppool never reads from it to resume admission state, so
// it does not reintroduce the durable-queue behavior the package
// explicitly declines to provide.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"

	"github.com/shadowmoose/grouppool/pkg/grouppool"
)

// Config holds the connection parameters for a Database.
type Config struct {
	ConnectionString string
	MaxConnections   int32
	ConnectTimeout   time.Duration
	MigrationsPath   string
}

// Database is a pgx-backed sink for completed grouppool.Outcomes.
type Database struct {
	pool *pgxpool.Pool
	cfg  Config
}

// New opens a connection pool and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Database, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("audit: connection string is required")
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 10
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.MigrationsPath == "" {
		cfg.MigrationsPath = "file://migrations"
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("audit: parse connection string: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConnections
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	timeoutCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(timeoutCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("audit: create connection pool: %w", err)
	}
	if err := pool.Ping(timeoutCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit: ping database: %w", err)
	}

	return &Database{pool: pool, cfg: cfg}, nil
}

// Close releases the connection pool.
func (db *Database) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// MigrateToLatest applies every pending migration under cfg.MigrationsPath.
func (db *Database) MigrateToLatest() error {
	migrationDB, err := sql.Open("postgres", db.cfg.ConnectionString)
	if err != nil {
		return fmt.Errorf("audit: open migration connection: %w", err)
	}
	defer migrationDB.Close()

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("audit: create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(db.cfg.MigrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("audit: create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("audit: apply migrations: %w", err)
	}
	return nil
}

// Record inserts one completed task's outcome: its tag, whether it
// succeeded, the error text if any, and the completion time; value is
// not stored. Its signature is not that of grouppool.OnData/OnError, so
// it is called from inside such a callback (pool default or per-task).
func (db *Database) Record(ctx context.Context, tag grouppool.Tag, outcomeErr error, value interface{}) error {
	var errText *string
	if outcomeErr != nil {
		s := outcomeErr.Error()
		errText = &s
	}

	_, err := db.pool.Exec(ctx, `
		INSERT INTO task_outcomes (tag, succeeded, error, completed_at)
		VALUES ($1, $2, $3, $4)
	`, tag.String(), outcomeErr == nil, errText, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("audit: insert task outcome: %w", err)
	}
	return nil
}

// CountByTag returns how many recorded outcomes exist for tag, split
// by success/failure, for simple reporting without a full query layer.
func (db *Database) CountByTag(ctx context.Context, tag grouppool.Tag) (succeeded, failed int64, err error) {
	row := db.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE succeeded),
			COUNT(*) FILTER (WHERE NOT succeeded)
		FROM task_outcomes
		WHERE tag = $1
	`, tag.String())
	if err := row.Scan(&succeeded, &failed); err != nil {
		return 0, 0, fmt.Errorf("audit: count by tag: %w", err)
	}
	return succeeded, failed, nil
}
