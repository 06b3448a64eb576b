package store

import (
	"context"
	"sync"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/sentinel"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/requestcontext"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/session/models"
)

// InMemoryStore keeps sessions in memory. Used in tests and when Redis is
// not configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	byUser   map[id.UserID]string
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*models.Session),
		byUser:   make(map[id.UserID]string),
	}
}

func (s *InMemoryStore) FindByID(_ context.Context, sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *InMemoryStore) FindActiveByUser(ctx context.Context, userID id.UserID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.byUser[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	session, ok := s.sessions[sessionID]
	if !ok || session.Status != models.StatusActive || session.IsExpired(requestcontext.Now(ctx)) {
		return nil, sentinel.ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *InMemoryStore) Save(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[cp.ID] = &cp
	if cp.Status == models.StatusActive {
		s.byUser[cp.UserID] = cp.ID
	}
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok {
		if s.byUser[session.UserID] == sessionID {
			delete(s.byUser, session.UserID)
		}
		delete(s.sessions, sessionID)
	}
	return nil
}
