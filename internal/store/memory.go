package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/OrderPipe/internal/models"
)

// InMemoryStore keeps orders and dedup records in process memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	orders []models.OrderRecord
	dedup  map[string]*DedupRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{dedup: make(map[string]*DedupRecord)}
}

var _ Store = (*InMemoryStore)(nil)

func (s *InMemoryStore) AppendOrder(_ context.Context, rec models.OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, rec)
	slog.Debug("InMemoryStore.AppendOrder succeeded", "order_id", rec.ID, "count", len(s.orders))
	return nil
}

func (s *InMemoryStore) ListOrders(_ context.Context, limit int) ([]models.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit = listLimit(limit)
	out := make([]models.OrderRecord, 0, min(limit, len(s.orders)))
	for i := len(s.orders) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.orders[i])
	}
	return out, nil
}

func (s *InMemoryStore) IsDuplicate(messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dedup[messageID]
	return ok, nil
}

func (s *InMemoryStore) RecordInbound(messageID, sessionKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dedup[messageID]; ok {
		return false, nil
	}
	s.dedup[messageID] = &DedupRecord{MessageID: messageID, SessionKey: sessionKey, ReceivedAt: time.Now()}
	return true, nil
}

func (s *InMemoryStore) MarkProcessed(messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.dedup[messageID]; ok {
		now := time.Now()
		rec.ProcessedAt = &now
	}
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
