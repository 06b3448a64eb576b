// Package store persists verification sessions.
package store

import (
	"context"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/session/models"
)

// Store is the persistence contract for sessions. Implementations may evict
// sessions after their deadline; callers must still check expiry themselves.
type Store interface {
	// FindByID returns the session, or sentinel.ErrNotFound.
	FindByID(ctx context.Context, sessionID string) (*models.Session, error)

	// FindActiveByUser returns the user's most recent active session, or
	// sentinel.ErrNotFound. The single-active-session rule is best effort;
	// see the service for the race it tolerates.
	FindActiveByUser(ctx context.Context, userID id.UserID) (*models.Session, error)

	// Save upserts the session.
	Save(ctx context.Context, session *models.Session) error

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error
}
