package audit

import (
	"context"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
)

// Store persists audit events. Append-only by contract: implementations must
// not expose update or delete operations.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
