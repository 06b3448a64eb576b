package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit/store/memory"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/requestcontext"
)

func TestEmitFillsActorContext(t *testing.T) {
	store := memory.NewInMemoryStore()
	publisher := audit.NewPublisher(store)
	userID := id.NewUserID()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.9", "test-agent/1.0")
	ctx = requestcontext.WithRequestID(ctx, "req-42")

	require.NoError(t, publisher.Emit(ctx, audit.Event{
		UserID: userID,
		Action: audit.ActionVerificationStarted,
	}))

	events, err := publisher.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, now, events[0].Timestamp)
	assert.Equal(t, "203.0.113.9", events[0].IPAddress)
	assert.Equal(t, "test-agent/1.0", events[0].UserAgent)
	assert.Equal(t, "req-42", events[0].RequestID)
}

func TestEmitKeepsCallerValues(t *testing.T) {
	store := memory.NewInMemoryStore()
	publisher := audit.NewPublisher(store)
	userID := id.NewUserID()
	explicit := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ctx := requestcontext.WithTime(context.Background(), explicit.Add(time.Hour))
	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.1", "ctx-agent")

	require.NoError(t, publisher.Emit(ctx, audit.Event{
		UserID:    userID,
		Action:    audit.ActionSessionCreated,
		Timestamp: explicit,
		IPAddress: "198.51.100.7",
	}))

	events, err := publisher.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, explicit, events[0].Timestamp)
	assert.Equal(t, "198.51.100.7", events[0].IPAddress)
	assert.Equal(t, "ctx-agent", events[0].UserAgent)
}

func TestListRecentOrdersAcrossUsers(t *testing.T) {
	store := memory.NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, audit.Event{
			UserID:    id.NewUserID(),
			Action:    audit.ActionDocumentUploaded,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recent, err := store.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, base.Add(4*time.Minute), recent[0].Timestamp)
	assert.True(t, recent[0].Timestamp.After(recent[2].Timestamp))
}
