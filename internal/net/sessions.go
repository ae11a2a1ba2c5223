package net

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"LocalInk/internal/worker"
)

func newSessionID() string {
	return uuid.NewString()
}

// SessionManager tracks the open worker connections of a host.
type SessionManager struct {
	sessions map[string]*session
	mu       sync.RWMutex
	metrics  *worker.Metrics
	logger   *zap.Logger
}

// NewSessionManager creates an empty manager. metrics may be nil.
func NewSessionManager(metrics *worker.Metrics, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*session),
		metrics:  metrics,
		logger:   logger,
	}
}

// Add registers a new session.
func (m *SessionManager) Add(s *session) {
	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.Sessions.Inc()
	}
	s.logger.Info("[HOST] session opened")
}

// Remove forgets a session.
func (m *SessionManager) Remove(s *session) {
	m.mu.Lock()
	_, ok := m.sessions[s.id]
	delete(m.sessions, s.id)
	m.mu.Unlock()

	if !ok {
		return
	}
	if m.metrics != nil {
		m.metrics.Sessions.Dec()
	}
	s.logger.Info("[HOST] session closed")
}

// Count returns the number of open sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every connection. The sessions remove themselves once
// their read loops notice.
func (m *SessionManager) CloseAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		s.close()
	}
}
