// Package notification delivers user-facing verification outcome messages.
// Delivery is best effort: the orchestrator never fails a state transition
// because a notification could not be sent.
package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
)

// Message is one outbound user notification.
type Message struct {
	UserID  id.UserID `json:"userId"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
}

// Sink delivers notifications to users.
type Sink interface {
	Notify(ctx context.Context, msg Message) error
}

// SNSSink publishes notifications to an SNS topic; downstream consumers fan
// out to email/SMS/push.
type SNSSink struct {
	client   *sns.Client
	topicARN string
	logger   *slog.Logger
}

// NewSNSSink wires an SNS-backed notification sink.
func NewSNSSink(client *sns.Client, topicARN string, logger *slog.Logger) *SNSSink {
	return &SNSSink{client: client, topicARN: topicARN, logger: logger}
}

func (s *SNSSink) Notify(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(string(payload)),
		Subject:  aws.String(msg.Subject),
	})
	if err != nil {
		s.logger.Error("notification publish failed",
			"user_id", msg.UserID.String(),
			"subject", msg.Subject,
			"error", err)
		return err
	}
	return nil
}

// LogSink writes notifications to the process log. Development fallback when
// no SNS topic is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "user notification",
		"user_id", msg.UserID.String(),
		"subject", msg.Subject,
		"body", msg.Body)
	return nil
}

// InMemorySink records notifications for tests and for running without SNS.
type InMemorySink struct {
	mu       sync.Mutex
	messages []Message
}

// NewInMemorySink creates an empty in-memory sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

func (s *InMemorySink) Notify(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

// Messages returns a copy of everything delivered so far.
func (s *InMemorySink) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}
