package audit

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/requestcontext"
)

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit fills actor context (timestamp, client metadata, correlation IDs) from
// the request context before appending. Caller-provided values win.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.IPAddress == "" {
		event.IPAddress = requestcontext.ClientIP(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = requestcontext.UserAgent(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.TraceID == "" {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			event.TraceID = sc.TraceID().String()
		}
	}
	return p.store.Append(ctx, event)
}

func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]Event, error) {
	return p.store.ListByUser(ctx, userID)
}
