// Package api provides the optional HTTP status surface of OrderPipe.
//
// It exposes the number of conversations in progress and the most recent
// rows of the order log.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BTreeMap/OrderPipe/internal/models"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 5 * time.Second

// SessionCounter reports conversation activity.
type SessionCounter interface {
	ActiveCount() int
	CountByStage() map[models.Stage]int
}

// OrderLister reads recent orders.
type OrderLister interface {
	ListOrders(ctx context.Context, limit int) ([]models.OrderRecord, error)
}

// Opts holds server configuration.
type Opts struct {
	Addr string
}

// Option configures a Server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// Server serves the status endpoints.
type Server struct {
	addr     string
	sessions SessionCounter
	orders   OrderLister
	started  time.Time
}

// NewServer creates a server. orders may be nil, in which case /orders
// reports that no order log is configured.
func NewServer(sessions SessionCounter, orders OrderLister, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("api.NewServer: server created", "addr", cfg.Addr, "orders", orders != nil)
	return &Server{
		addr:     cfg.Addr,
		sessions: sessions,
		orders:   orders,
		started:  time.Now(),
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/orders", s.ordersHandler)
	return mux
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve handles requests on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Serve: API listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Server.Serve: shutting down API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Serve: graceful shutdown failed", "error", err)
			return err
		}
		<-errCh
		return nil
	}
}
