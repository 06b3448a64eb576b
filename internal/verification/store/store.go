// Package store persists verification records. Implementations must treat
// Save as a full-record upsert; the orchestrator owns all invariants.
package store

import (
	"context"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/models"
)

// Store is the persistence contract for verification records.
type Store interface {
	// FindByUser returns the user's record, or sentinel.ErrNotFound.
	FindByUser(ctx context.Context, userID id.UserID) (*models.VerificationRecord, error)

	// FindByReference resolves a vendor correlation key to the owning
	// record, or sentinel.ErrNotFound.
	FindByReference(ctx context.Context, provider, referenceID string) (*models.VerificationRecord, error)

	// Save upserts the full record, last write wins.
	Save(ctx context.Context, record *models.VerificationRecord) error

	// ListPendingReview pages records awaiting manual review, most recently
	// updated first.
	ListPendingReview(ctx context.Context, limit, offset int) ([]*models.VerificationRecord, error)
}
