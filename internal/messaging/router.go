package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/BTreeMap/OrderPipe/internal/models"
	"github.com/BTreeMap/OrderPipe/internal/store"
)

// Handler processes one event and reports whether it was routed.
type Handler interface {
	Handle(ctx context.Context, ev models.Event) (bool, error)
}

// RouterOpts holds EventRouter configuration.
type RouterOpts struct {
	Dedup            store.DedupRepo
	StrictInvariants bool
}

// RouterOption configures an EventRouter.
type RouterOption func(*RouterOpts)

// WithDedup drops events whose MessageID was already recorded in repo.
func WithDedup(repo store.DedupRepo) RouterOption {
	return func(o *RouterOpts) {
		o.Dedup = repo
	}
}

// WithStrictInvariants makes invariant violations panic instead of being logged.
func WithStrictInvariants(strict bool) RouterOption {
	return func(o *RouterOpts) {
		o.StrictInvariants = strict
	}
}

// EventRouter delivers events to a Handler. Events of one session are
// handled strictly in arrival order and never concurrently; different
// sessions proceed in parallel.
type EventRouter struct {
	handler Handler
	dedup   store.DedupRepo
	strict  bool

	mu     sync.Mutex
	queues map[string]*sessionQueue
	wg     sync.WaitGroup
}

type sessionQueue struct {
	pending []models.Event
	running bool
}

// NewEventRouter creates a router for handler.
func NewEventRouter(handler Handler, opts ...RouterOption) *EventRouter {
	var cfg RouterOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("EventRouter created", "dedup", cfg.Dedup != nil, "strictInvariants", cfg.StrictInvariants)
	return &EventRouter{
		handler: handler,
		dedup:   cfg.Dedup,
		strict:  cfg.StrictInvariants,
		queues:  make(map[string]*sessionQueue),
	}
}

// Run consumes events until the channel closes or ctx is done, then waits
// for in-flight sessions to drain.
func (r *EventRouter) Run(ctx context.Context, events <-chan models.Event) {
	slog.Info("EventRouter starting event processing")
	defer slog.Info("EventRouter stopped event processing")
	defer r.Wait()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				slog.Debug("EventRouter events channel closed")
				return
			}
			r.Submit(ctx, ev)
		case <-ctx.Done():
			slog.Debug("EventRouter stopping due to context cancellation")
			return
		}
	}
}

// Submit queues ev behind earlier events of the same session.
func (r *EventRouter) Submit(ctx context.Context, ev models.Event) {
	if err := ev.Validate(); err != nil {
		slog.Error("EventRouter.Submit: dropping invalid event", "error", err, "kind", ev.Kind)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[ev.SessionKey]
	if !ok {
		q = &sessionQueue{}
		r.queues[ev.SessionKey] = q
	}
	q.pending = append(q.pending, ev)
	if !q.running {
		q.running = true
		r.wg.Add(1)
		go r.drain(ctx, ev.SessionKey, q)
	}
}

// Wait blocks until every queued event has been handled.
func (r *EventRouter) Wait() {
	r.wg.Wait()
}

// drain handles queued events of one session until the queue is empty.
func (r *EventRouter) drain(ctx context.Context, key string, q *sessionQueue) {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			delete(r.queues, key)
			r.mu.Unlock()
			return
		}
		ev := q.pending[0]
		q.pending = q.pending[1:]
		r.mu.Unlock()

		r.process(ctx, ev)
	}
}

func (r *EventRouter) process(ctx context.Context, ev models.Event) {
	if r.dedup != nil && ev.MessageID != "" {
		fresh, err := r.dedup.RecordInbound(ev.MessageID, ev.SessionKey)
		if err != nil {
			slog.Warn("EventRouter.process: dedup check failed, processing anyway", "sessionKey", ev.SessionKey, "message_id", ev.MessageID, "error", err)
		} else if !fresh {
			slog.Info("EventRouter.process: duplicate event dropped", "sessionKey", ev.SessionKey, "message_id", ev.MessageID)
			return
		}
	}

	handled, err := r.handler.Handle(ctx, ev)
	switch {
	case err != nil && errors.Is(err, models.ErrInvariant):
		slog.Error("EventRouter.process: invariant violated", "sessionKey", ev.SessionKey, "kind", ev.Kind, "token", ev.Token, "error", err)
		if r.strict {
			panic(err)
		}
	case err != nil:
		slog.Error("EventRouter.process: handler failed", "sessionKey", ev.SessionKey, "kind", ev.Kind, "error", err)
	case !handled:
		slog.Debug("EventRouter.process: event not accepted in current stage", "sessionKey", ev.SessionKey, "kind", ev.Kind, "token", ev.Token)
	}

	if r.dedup != nil && ev.MessageID != "" {
		if err := r.dedup.MarkProcessed(ev.MessageID); err != nil {
			slog.Warn("EventRouter.process: mark processed failed", "message_id", ev.MessageID, "error", err)
		}
	}
}

// PendingSessions returns the number of sessions with queued or running events.
func (r *EventRouter) PendingSessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues)
}
