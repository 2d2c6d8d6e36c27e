// Package session implements the session state machine: per-client
// request/threat tracking with NEW -> ACTIVE -> SUSPICIOUS -> BLOCKED
// transitions, and LRU eviction of inactive sessions.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/shielderr"
)

// Manager is the in-process default domain.SessionStore implementation.
// The Postgres-backed repositories.SessionRepository satisfies the same
// interface; there is no Redis-backed alternative.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	capacity int
}

func NewManager(capacity int) *Manager {
	return &Manager{sessions: make(map[string]*domain.Session), capacity: capacity}
}

var _ domain.SessionStore = (*Manager)(nil)

func (m *Manager) Get(ctx context.Context, id string) (*domain.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false, nil
	}
	clone := *s
	return &clone, true, nil
}

func (m *Manager) Put(ctx context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.ID]; !exists && m.capacity > 0 && len(m.sessions) >= m.capacity {
		m.evictOldestLocked()
	}
	clone := *s
	m.sessions[s.ID] = &clone
	return nil
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *Manager) Sweep(ctx context.Context, olderThanUnixNano int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, s := range m.sessions {
		if s.LastActivityAt.UnixNano() < olderThanUnixNano {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted, nil
}

func (m *Manager) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions), nil
}

func (m *Manager) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	first := true
	for id, s := range m.sessions {
		if first || s.LastActivityAt.Before(oldestAt) {
			oldestID = id
			oldestAt = s.LastActivityAt
			first = false
		}
	}
	if oldestID != "" {
		delete(m.sessions, oldestID)
	}
}

// GetOrCreate returns the session for sourceIP, creating a fresh NEW
// session if none exists yet.
func (m *Manager) GetOrCreate(ctx context.Context, sourceIP string) (*domain.Session, error) {
	m.mu.Lock()
	for _, s := range m.sessions {
		if s.SourceIP == sourceIP {
			clone := *s
			m.mu.Unlock()
			return &clone, nil
		}
	}
	m.mu.Unlock()

	s := &domain.Session{
		ID:            uuid.NewString(),
		SourceIP:      sourceIP,
		CreatedAt:     time.Now(),
		LastActivityAt: time.Now(),
		State:         domain.SessionNew,
	}
	if err := m.Put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordRequest applies one request's outcome to a session: bumps
// RequestCount and the action-specific counters, adds to ThreatScore
// (monotonically — ThreatScore never decreases), recomputes State via
// Session.NextState, and persists the result.
func (m *Manager) RecordRequest(ctx context.Context, id string, action domain.Action, threatDelta float64, description string) (*domain.Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, shielderr.New(shielderr.KindNotFound, "session.RecordRequest")
	}

	s.RequestCount++
	s.LastActivityAt = time.Now()
	if threatDelta > 0 {
		s.ThreatScore += threatDelta
		s.LastThreatDescription = description
	}
	switch action {
	case domain.ActionBlock:
		s.BlockedCount++
	case domain.ActionQuarantine:
		s.QuarantinedCount++
	}
	s.State = s.NextState()
	clone := *s
	m.mu.Unlock()

	return &clone, nil
}
