// This file implements a PostgreSQL-backed order log.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/OrderPipe/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 10
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	slog.Debug("Postgres ping successful")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AppendOrder(ctx context.Context, rec models.OrderRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, requester, phone, name, model, memory, colors, created_at, order_time, utc_offset) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.Requester, rec.Phone, rec.Name, rec.Model, rec.Memory, rec.Colors, rec.CreatedAt, rec.Timestamp(), utcOffset(rec.CreatedAt),
	)
	if err != nil {
		slog.Error("PostgresStore AppendOrder failed", "error", err, "order_id", rec.ID)
		return fmt.Errorf("failed to insert order %s: %w", rec.ID, err)
	}
	slog.Debug("PostgresStore AppendOrder succeeded", "order_id", rec.ID, "requester", rec.Requester)
	return nil
}

func (s *PostgresStore) ListOrders(ctx context.Context, limit int) ([]models.OrderRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, requester, phone, name, model, memory, colors, created_at, utc_offset FROM orders ORDER BY created_at DESC, id DESC LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		slog.Error("PostgresStore ListOrders query failed", "error", err)
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()
	orders, err := scanOrders(rows)
	if err != nil {
		slog.Error("PostgresStore ListOrders scan failed", "error", err)
		return nil, err
	}
	slog.Debug("PostgresStore ListOrders succeeded", "count", len(orders))
	return orders, nil
}

func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
