package store

import (
	"context"
	"sort"
	"sync"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/sentinel"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/models"
)

type refKey struct {
	provider    string
	referenceID string
}

// InMemoryStore keeps verification records in memory. Used in tests and when
// no database is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.UserID]*models.VerificationRecord
	byRef   map[refKey]id.UserID
}

// NewInMemoryStore creates an empty in-memory verification store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[id.UserID]*models.VerificationRecord),
		byRef:   make(map[refKey]id.UserID),
	}
}

func (s *InMemoryStore) FindByUser(_ context.Context, userID id.UserID) (*models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *InMemoryStore) FindByReference(_ context.Context, provider, referenceID string) (*models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byRef[refKey{provider: provider, referenceID: referenceID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	record, ok := s.records[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *InMemoryStore) Save(_ context.Context, record *models.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := record.Clone()
	s.records[cp.UserID] = cp
	if cp.Provider != "" && cp.ReferenceID != "" {
		s.byRef[refKey{provider: cp.Provider, referenceID: cp.ReferenceID}] = cp.UserID
	}
	return nil
}

func (s *InMemoryStore) ListPendingReview(_ context.Context, limit, offset int) ([]*models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*models.VerificationRecord
	for _, record := range s.records {
		if record.Status == models.StatusNeedsReview {
			pending = append(pending, record.Clone())
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].UpdatedAt.After(pending[j].UpdatedAt)
	})

	if offset >= len(pending) {
		return nil, nil
	}
	pending = pending[offset:]
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// Clear removes all records. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[id.UserID]*models.VerificationRecord)
	s.byRef = make(map[refKey]id.UserID)
}
