// Package store persists document and live capture metadata.
package store

import (
	"context"
	"time"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/models"
)

// Store is the persistence contract for document custodian metadata.
type Store interface {
	// SaveDocument upserts document metadata.
	SaveDocument(ctx context.Context, doc *models.Document) error

	// FindDocument returns the document, or sentinel.ErrNotFound.
	FindDocument(ctx context.Context, documentID id.DocumentID) (*models.Document, error)

	// ListDocumentsByUser returns the user's documents, newest first,
	// including soft-deleted ones.
	ListDocumentsByUser(ctx context.Context, userID id.UserID) ([]*models.Document, error)

	// ListDeletedBefore returns soft-deleted documents whose deletion
	// predates the cutoff, for retention purging. Purged documents are not
	// returned again.
	ListDeletedBefore(ctx context.Context, cutoff time.Time) ([]*models.Document, error)

	// SaveCapture upserts live capture metadata.
	SaveCapture(ctx context.Context, capture *models.LiveCapture) error

	// FindCapture returns the capture, or sentinel.ErrNotFound.
	FindCapture(ctx context.Context, captureID id.CaptureID) (*models.LiveCapture, error)
}
