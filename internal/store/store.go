// Package store provides storage backends for the OrderPipe order log.
//
// Completed orders are appended as one row each; the inbound_dedup table lets
// the event router drop updates the transport redelivers.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/OrderPipe/internal/models"
)

// Driver names returned by DetectDSNType.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DefaultListLimit caps ListOrders when limit is not positive.
const DefaultListLimit = 100

// ErrNotConfigured is returned by New when no backend was selected.
var ErrNotConfigured = errors.New("store backend not configured")

// Store is the order log plus inbound deduplication.
type Store interface {
	DedupRepo

	// AppendOrder appends one order row.
	AppendOrder(ctx context.Context, rec models.OrderRecord) error
	// ListOrders returns up to limit orders, newest first.
	ListOrders(ctx context.Context, limit int) ([]models.OrderRecord, error)
	Close() error
}

// Opts holds store configuration.
type Opts struct {
	DSN    string
	Driver string
}

// Option configures a store.
type Option func(*Opts)

// WithSQLiteDSN selects the SQLite backend with the given database file.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = DriverSQLite
	}
}

// WithPostgresDSN selects the Postgres backend.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = DriverPostgres
	}
}

// WithDSN selects the backend from the shape of dsn.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = DetectDSNType(dsn)
	}
}

// DetectDSNType returns DriverPostgres for postgres URLs and libpq
// key=value connection strings, DriverSQLite otherwise.
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") {
		return DriverPostgres
	}
	if strings.Contains(d, "=") && !strings.Contains(d, "?") {
		for _, field := range strings.Fields(d) {
			key, _, ok := strings.Cut(field, "=")
			if !ok {
				continue
			}
			switch key {
			case "host", "hostaddr", "user", "dbname", "password", "port", "sslmode":
				return DriverPostgres
			}
		}
	}
	return DriverSQLite
}

// New opens the backend selected by opts. Without a DSN it returns an
// in-memory store.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Warn("store.New: no DSN configured, orders will be kept in memory only")
		return NewInMemoryStore(), nil
	}
	switch cfg.Driver {
	case DriverPostgres:
		return NewPostgresStore(opts...)
	case DriverSQLite:
		return NewSQLiteStore(opts...)
	default:
		return nil, fmt.Errorf("%w: unknown driver %q", ErrNotConfigured, cfg.Driver)
	}
}

func listLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
