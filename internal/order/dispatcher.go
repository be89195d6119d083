package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/OrderPipe/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultSinkTimeout bounds each sink call.
const DefaultSinkTimeout = 15 * time.Second

// LogSink appends order records to a durable order log.
type LogSink interface {
	AppendOrder(ctx context.Context, rec models.OrderRecord) error
}

// Notifier sends a plain text message to a destination.
type Notifier interface {
	SendText(ctx context.Context, to, body string) error
}

// Target is one operator notification destination.
type Target struct {
	Name        string
	Notifier    Notifier
	Destination string
}

// Report describes the outcome of one dispatch. Failures never propagate
// to the user conversation.
type Report struct {
	Logged   bool
	Notified []string
	Errors   map[string]error
}

// Err joins all sink errors, or returns nil.
func (r Report) Err() error {
	errs := make([]error, 0, len(r.Errors))
	for name, err := range r.Errors {
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return errors.Join(errs...)
}

// Opts holds dispatcher configuration.
type Opts struct {
	Timeout time.Duration
}

// Option configures a Dispatcher.
type Option func(*Opts)

// WithSinkTimeout sets the per-sink timeout.
func WithSinkTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// Dispatcher delivers a record to the order log and every notification
// target. Each sink is attempted exactly once.
type Dispatcher struct {
	log     LogSink
	targets []Target
	timeout time.Duration
}

// NewDispatcher creates a dispatcher. log may be nil; targets with a nil
// Notifier or empty Destination are skipped.
func NewDispatcher(log LogSink, targets []Target, opts ...Option) *Dispatcher {
	cfg := Opts{Timeout: DefaultSinkTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	var usable []Target
	for _, t := range targets {
		if t.Notifier == nil || t.Destination == "" {
			slog.Warn("Dispatcher.New: skipping unusable notification target", "target", t.Name)
			continue
		}
		usable = append(usable, t)
	}
	return &Dispatcher{log: log, targets: usable, timeout: cfg.Timeout}
}

// Dispatch attempts every sink once, concurrently. Sink failures are logged
// and reported, never retried.
func (d *Dispatcher) Dispatch(ctx context.Context, rec models.OrderRecord) Report {
	report := Report{Errors: make(map[string]error)}
	var mu sync.Mutex
	fail := func(name string, err error) {
		mu.Lock()
		report.Errors[name] = err
		mu.Unlock()
	}

	// Sinks are independent; the group is used only to wait.
	var g errgroup.Group
	if d.log != nil {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			if err := d.log.AppendOrder(sctx, rec); err != nil {
				slog.Error("Dispatcher.Dispatch: order log append failed", "order_id", rec.ID, "requester", rec.Requester, "error", err)
				fail("order_log", err)
				return nil
			}
			mu.Lock()
			report.Logged = true
			mu.Unlock()
			slog.Debug("Dispatcher.Dispatch: order logged", "order_id", rec.ID)
			return nil
		})
	}

	body := FormatNotification(rec)
	for _, t := range d.targets {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			if err := t.Notifier.SendText(sctx, t.Destination, body); err != nil {
				slog.Error("Dispatcher.Dispatch: operator notification failed", "order_id", rec.ID, "target", t.Name, "error", err)
				fail(t.Name, err)
				return nil
			}
			mu.Lock()
			report.Notified = append(report.Notified, t.Name)
			mu.Unlock()
			slog.Debug("Dispatcher.Dispatch: operator notified", "order_id", rec.ID, "target", t.Name)
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("Dispatcher.Dispatch: order dispatched", "order_id", rec.ID, "logged", report.Logged, "notified", len(report.Notified), "failures", len(report.Errors))
	return report
}
