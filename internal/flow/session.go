package flow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/OrderPipe/internal/models"
	"github.com/BTreeMap/OrderPipe/internal/selection"
)

// Session is the mutable state of one conversation. It is owned by the
// SessionManager and only touched while its key is being processed.
type Session struct {
	Key   string
	Stage models.Stage

	Model string
	// Option lists snapshotted from the catalog when the model is chosen.
	MemoryOptions []string
	ColorOptions  []string

	Memory selection.Set
	Colors selection.Set

	// ImageHandle refers to the color image shown during ColorSelect.
	ImageHandle string

	UpdatedAt time.Time
}

func newSession(key string) *Session {
	return &Session{
		Key:    key,
		Stage:  models.StageIdle,
		Memory: selection.NewSet(),
		Colors: selection.NewSet(),
	}
}

// Reset clears every field and returns the session to Idle.
func (s *Session) Reset() {
	s.Stage = models.StageIdle
	s.clearSelection()
}

func (s *Session) clearSelection() {
	s.Model = ""
	s.MemoryOptions = nil
	s.ColorOptions = nil
	s.Memory = selection.NewSet()
	s.Colors = selection.NewSet()
	s.ImageHandle = ""
}

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	Key         string
	Stage       models.Stage
	Model       string
	Memory      selection.Set
	Colors      selection.Set
	ImageHandle string
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		Key:         s.Key,
		Stage:       s.Stage,
		Model:       s.Model,
		Memory:      s.Memory.Clone(),
		Colors:      s.Colors.Clone(),
		ImageHandle: s.ImageHandle,
	}
}

// SessionManager owns the sessions of all conversations, keyed by the
// transport's opaque session key. Idle sessions carry no data and are not
// retained.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionManager creates an empty manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// checkout returns a working copy of the session for key, or a fresh Idle
// session. Stored sessions are never mutated in place.
func (m *SessionManager) checkout(key string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[key]
	m.mu.RUnlock()
	if !ok {
		return newSession(key)
	}
	c := *s
	c.Memory = s.Memory.Clone()
	c.Colors = s.Colors.Clone()
	return &c
}

// commit stores s, or drops it once it is back in Idle.
func (m *SessionManager) commit(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Stage == models.StageIdle {
		if _, ok := m.sessions[s.Key]; ok {
			delete(m.sessions, s.Key)
			slog.Debug("SessionManager.commit: session released", "sessionKey", s.Key)
		}
		return
	}
	s.UpdatedAt = m.now()
	m.sessions[s.Key] = s
}

// Stage returns the current stage for key; unknown keys are Idle.
func (m *SessionManager) Stage(key string) models.Stage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[key]; ok {
		return s.Stage
	}
	return models.StageIdle
}

// Snapshot returns a copy of the session for key.
func (m *SessionManager) Snapshot(key string) Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[key]; ok {
		return s.snapshot()
	}
	return newSession(key).snapshot()
}

// ActiveCount returns the number of sessions outside Idle.
func (m *SessionManager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CountByStage returns the number of active sessions per stage.
func (m *SessionManager) CountByStage() map[models.Stage]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[models.Stage]int)
	for _, s := range m.sessions {
		counts[s.Stage]++
	}
	return counts
}
