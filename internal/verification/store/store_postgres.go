package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/sentinel"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/models"
)

// PostgresStore persists verification records in PostgreSQL. History, applied
// events and security flags are stored as JSONB.
//
// Expected schema:
//
//	CREATE TABLE verification_records (
//	    user_id UUID PRIMARY KEY,
//	    status TEXT NOT NULL,
//	    level TEXT NOT NULL,
//	    provider TEXT NOT NULL DEFAULT '',
//	    reference_id TEXT NOT NULL DEFAULT '',
//	    encrypted_personal_data BYTEA,
//	    history JSONB NOT NULL DEFAULT '[]',
//	    applied_events JSONB NOT NULL DEFAULT '[]',
//	    security_flags JSONB NOT NULL DEFAULT '{}',
//	    aml_status TEXT NOT NULL DEFAULT '',
//	    risk_score DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    verified_at TIMESTAMPTZ,
//	    expires_at TIMESTAMPTZ,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX idx_verification_reference ON verification_records (provider, reference_id)
//	    WHERE reference_id <> '';
//	CREATE INDEX idx_verification_status ON verification_records (status, updated_at DESC);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed verification store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `user_id, status, level, provider, reference_id, encrypted_personal_data,
	history, applied_events, security_flags, aml_status, risk_score,
	verified_at, expires_at, created_at, updated_at`

func (s *PostgresStore) FindByUser(ctx context.Context, userID id.UserID) (*models.VerificationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM verification_records WHERE user_id = $1`,
		userID.String())
	return scanRecord(row)
}

func (s *PostgresStore) FindByReference(ctx context.Context, provider, referenceID string) (*models.VerificationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM verification_records WHERE provider = $1 AND reference_id = $2`,
		provider, referenceID)
	return scanRecord(row)
}

func (s *PostgresStore) Save(ctx context.Context, record *models.VerificationRecord) error {
	history, err := json.Marshal(record.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	appliedEvents, err := json.Marshal(record.AppliedEvents)
	if err != nil {
		return fmt.Errorf("marshal applied events: %w", err)
	}
	flags, err := json.Marshal(record.SecurityFlags)
	if err != nil {
		return fmt.Errorf("marshal security flags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verification_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id) DO UPDATE SET
			status = EXCLUDED.status,
			level = EXCLUDED.level,
			provider = EXCLUDED.provider,
			reference_id = EXCLUDED.reference_id,
			encrypted_personal_data = EXCLUDED.encrypted_personal_data,
			history = EXCLUDED.history,
			applied_events = EXCLUDED.applied_events,
			security_flags = EXCLUDED.security_flags,
			aml_status = EXCLUDED.aml_status,
			risk_score = EXCLUDED.risk_score,
			verified_at = EXCLUDED.verified_at,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`,
		record.UserID.String(), string(record.Status), string(record.Level),
		record.Provider, record.ReferenceID, record.EncryptedPersonalData,
		history, appliedEvents, flags, string(record.AMLStatus), record.RiskScore,
		record.VerifiedAt, record.ExpiresAt, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save verification record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPendingReview(ctx context.Context, limit, offset int) ([]*models.VerificationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+` FROM verification_records
		WHERE status = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`,
		string(models.StatusNeedsReview), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list pending review: %w", err)
	}
	defer rows.Close()

	var records []*models.VerificationRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.VerificationRecord, error) {
	var (
		record        models.VerificationRecord
		rawUserID     string
		status, level string
		amlStatus     string
		history       []byte
		appliedEvents []byte
		flags         []byte
		verifiedAt    sql.NullTime
		expiresAt     sql.NullTime
	)
	err := row.Scan(&rawUserID, &status, &level, &record.Provider, &record.ReferenceID,
		&record.EncryptedPersonalData, &history, &appliedEvents, &flags,
		&amlStatus, &record.RiskScore, &verifiedAt, &expiresAt,
		&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan verification record: %w", err)
	}

	userID, err := id.ParseUserID(rawUserID)
	if err != nil {
		return nil, fmt.Errorf("scan verification record: %w", err)
	}
	record.UserID = userID
	record.Status = models.Status(status)
	record.Level = models.Level(level)
	record.AMLStatus = models.AMLStatus(amlStatus)
	if err := json.Unmarshal(history, &record.History); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	if err := json.Unmarshal(appliedEvents, &record.AppliedEvents); err != nil {
		return nil, fmt.Errorf("unmarshal applied events: %w", err)
	}
	if err := json.Unmarshal(flags, &record.SecurityFlags); err != nil {
		return nil, fmt.Errorf("unmarshal security flags: %w", err)
	}
	record.VerifiedAt = timePtr(verifiedAt)
	record.ExpiresAt = timePtr(expiresAt)
	return &record, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
