package memory

import (
	"context"
	"sync"

	"serpukhov-quiz-bot/internal/domain"
)

// SessionRegistry is the in-memory implementation of app.SessionRegistry.
// Entries live for the process lifetime; a restart loses in-flight attempts,
// which surface to users as expired sessions.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[int64]domain.AttemptSession
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[int64]domain.AttemptSession),
	}
}

func (r *SessionRegistry) Start(_ context.Context, session domain.AttemptSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.AttemptID] = session
	return nil
}

func (r *SessionRegistry) Get(_ context.Context, attemptID int64) (domain.AttemptSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[attemptID]
	if !ok {
		return domain.AttemptSession{}, domain.ErrSessionExpired
	}
	return session, nil
}

func (r *SessionRegistry) Advance(_ context.Context, attemptID int64) (domain.AttemptSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[attemptID]
	if !ok {
		return domain.AttemptSession{}, domain.ErrSessionExpired
	}
	session.Cursor++
	r.sessions[attemptID] = session
	return session, nil
}

func (r *SessionRegistry) End(_ context.Context, attemptID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, attemptID)
	return nil
}
