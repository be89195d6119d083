// This file implements an SQLite-backed order log.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/BTreeMap/OrderPipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(strings.TrimPrefix(strings.SplitN(dsn, "?", 2)[0], "file:"))
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// One writer avoids SQLITE_BUSY between concurrent order appends.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AppendOrder(ctx context.Context, rec models.OrderRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, requester, phone, name, model, memory, colors, created_at, order_time, utc_offset) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Requester, rec.Phone, rec.Name, rec.Model, rec.Memory, rec.Colors, rec.CreatedAt.UTC(), rec.Timestamp(), utcOffset(rec.CreatedAt),
	)
	if err != nil {
		slog.Error("SQLiteStore AppendOrder failed", "error", err, "order_id", rec.ID)
		return fmt.Errorf("failed to insert order %s: %w", rec.ID, err)
	}
	slog.Debug("SQLiteStore AppendOrder succeeded", "order_id", rec.ID, "requester", rec.Requester)
	return nil
}

func (s *SQLiteStore) ListOrders(ctx context.Context, limit int) ([]models.OrderRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, requester, phone, name, model, memory, colors, created_at, utc_offset FROM orders ORDER BY created_at DESC, id DESC LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		slog.Error("SQLiteStore ListOrders query failed", "error", err)
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()
	orders, err := scanOrders(rows)
	if err != nil {
		slog.Error("SQLiteStore ListOrders scan failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLiteStore ListOrders succeeded", "count", len(orders))
	return orders, nil
}

func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// utcOffset returns the zone offset of t in seconds. Rows keep it so that
// listed orders show the same wall-clock time the operator was notified with.
func utcOffset(t time.Time) int {
	_, offset := t.Zone()
	return offset
}

// scanOrders reads every row of an orders query.
func scanOrders(rows *sql.Rows) ([]models.OrderRecord, error) {
	var orders []models.OrderRecord
	for rows.Next() {
		var (
			o      models.OrderRecord
			offset int
		)
		if err := rows.Scan(&o.ID, &o.Requester, &o.Phone, &o.Name, &o.Model, &o.Memory, &o.Colors, &o.CreatedAt, &offset); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		o.CreatedAt = o.CreatedAt.In(time.FixedZone("", offset))
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order rows: %w", err)
	}
	return orders, nil
}
