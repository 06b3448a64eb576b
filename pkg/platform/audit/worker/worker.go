package worker

import (
	"context"
	"log/slog"

	audit "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit"
)

// Worker drains audit events from a channel and persists them, decoupling
// hot request paths from audit persistence latency. A failed append is logged
// and the event dropped rather than stalling the inbox; the Kafka mirror
// provides the durable copy for consumers that cannot tolerate loss.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func New(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "append audit event",
					"error", err,
					"action", event.Action,
				)
			}
		}
	}
}
