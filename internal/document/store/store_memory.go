package store

import (
	"context"
	"sort"
	"sync"
	"time"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/sentinel"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/models"
)

// InMemoryStore keeps document metadata in memory. Used in tests and when
// no database is configured.
type InMemoryStore struct {
	mu        sync.RWMutex
	documents map[id.DocumentID]*models.Document
	captures  map[id.CaptureID]*models.LiveCapture
}

// NewInMemoryStore creates an empty in-memory metadata store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		documents: make(map[id.DocumentID]*models.Document),
		captures:  make(map[id.CaptureID]*models.LiveCapture),
	}
}

func (s *InMemoryStore) SaveDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.documents[cp.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindDocument(_ context.Context, documentID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[documentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *InMemoryStore) ListDocumentsByUser(_ context.Context, userID id.UserID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []*models.Document
	for _, doc := range s.documents {
		if doc.UserID == userID {
			cp := *doc
			docs = append(docs, &cp)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})
	return docs, nil
}

func (s *InMemoryStore) ListDeletedBefore(_ context.Context, cutoff time.Time) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []*models.Document
	for _, doc := range s.documents {
		if doc.Status == models.StatusDeleted && doc.DeletedAt != nil && doc.DeletedAt.Before(cutoff) {
			cp := *doc
			docs = append(docs, &cp)
		}
	}
	return docs, nil
}

func (s *InMemoryStore) SaveCapture(_ context.Context, capture *models.LiveCapture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *capture
	s.captures[cp.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindCapture(_ context.Context, captureID id.CaptureID) (*models.LiveCapture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	capture, ok := s.captures[captureID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *capture
	return &cp, nil
}
