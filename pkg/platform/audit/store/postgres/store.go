package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	audit "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit"
)

// Store persists audit events in PostgreSQL. The audit_events table has no
// UPDATE or DELETE path; inserts are idempotent per event ID.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL-backed audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts one audit event.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, timestamp, user_id, action, details,
			ip_address, user_agent, request_id, trace_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	var userID *uuid.UUID
	if !event.UserID.IsNil() {
		uid := uuid.UUID(event.UserID)
		userID = &uid
	}

	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		event.Timestamp,
		userID,
		event.Action,
		event.Details,
		event.IPAddress,
		event.UserAgent,
		event.RequestID,
		event.TraceID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByUser returns events for a specific user, newest first.
func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	query := `
		SELECT timestamp, user_id, action, details,
			   ip_address, user_agent, request_id, trace_id
		FROM audit_events
		WHERE user_id = $1
		ORDER BY timestamp DESC
	`

	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT timestamp, user_id, action, details,
			   ip_address, user_agent, request_id, trace_id
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			event          audit.Event
			userIDNullable *uuid.UUID
		)

		err := rows.Scan(
			&event.Timestamp,
			&userIDNullable,
			&event.Action,
			&event.Details,
			&event.IPAddress,
			&event.UserAgent,
			&event.RequestID,
			&event.TraceID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		if userIDNullable != nil {
			event.UserID = id.UserID(*userIDNullable)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}
