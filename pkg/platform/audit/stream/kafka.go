// Package stream mirrors audit events onto a Kafka topic so downstream
// compliance and SIEM consumers receive them without querying the store.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	audit "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit"
)

// Store decorates an audit.Store: every append also publishes the event to a
// Kafka topic. The store remains the source of truth; publish failures are
// logged and do not fail the append, so audit writes never block on the broker.
type Store struct {
	inner  audit.Store
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// message is the wire form published to Kafka, keyed by user ID.
type message struct {
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id,omitempty"`
	Action    string `json:"action"`
	Details   string `json:"details,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// NewClient connects a franz-go producer to the given brokers.
func NewClient(brokers []string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// New wraps inner so appended events are also produced to topic.
func New(inner audit.Store, client *kgo.Client, topic string, logger *slog.Logger) *Store {
	return &Store{inner: inner, client: client, topic: topic, logger: logger}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if err := s.inner.Append(ctx, event); err != nil {
		return err
	}

	payload, err := json.Marshal(message{
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		UserID:    userKey(event),
		Action:    event.Action,
		Details:   event.Details,
		IPAddress: event.IPAddress,
		UserAgent: event.UserAgent,
		RequestID: event.RequestID,
		TraceID:   event.TraceID,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "marshal audit stream message", "error", err)
		return nil
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(userKey(event)),
		Value: payload,
	}
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.logger.Error("publish audit event to kafka",
				"error", err,
				"action", event.Action,
			)
		}
	})
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	return s.inner.ListByUser(ctx, userID)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	return s.inner.ListRecent(ctx, limit)
}

// Close flushes buffered records before shutting the producer down.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	s.client.Close()
	return nil
}

func userKey(event audit.Event) string {
	if event.UserID.IsNil() {
		return ""
	}
	return event.UserID.String()
}
