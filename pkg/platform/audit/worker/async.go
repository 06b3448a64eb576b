package worker

import (
	"context"
	"log/slog"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	audit "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit"
)

// AsyncStore decouples audit appends from persistence latency. Append
// enqueues onto a bounded inbox that a Worker drains into the inner store;
// reads go straight to the inner store. When the inbox is full the event is
// dropped and logged rather than stalling the request path.
type AsyncStore struct {
	inner  audit.Store
	inbox  chan audit.Event
	logger *slog.Logger
}

// NewAsync wraps inner with a bounded inbox and returns the store together
// with the worker that drains it. The caller runs the worker.
func NewAsync(inner audit.Store, buffer int, logger *slog.Logger) (*AsyncStore, *Worker) {
	s := &AsyncStore{
		inner:  inner,
		inbox:  make(chan audit.Event, buffer),
		logger: logger,
	}
	return s, New(inner, s.inbox, logger)
}

func (s *AsyncStore) Append(ctx context.Context, event audit.Event) error {
	select {
	case s.inbox <- event:
	default:
		s.logger.WarnContext(ctx, "audit inbox full, dropping event",
			"action", event.Action,
		)
	}
	return nil
}

func (s *AsyncStore) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	return s.inner.ListByUser(ctx, userID)
}

func (s *AsyncStore) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	return s.inner.ListRecent(ctx, limit)
}
