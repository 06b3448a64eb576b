package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/sentinel"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/models"
)

// PostgresStore persists document custodian metadata in PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE documents (
//	    id UUID PRIMARY KEY,
//	    user_id UUID NOT NULL,
//	    session_id TEXT NOT NULL,
//	    doc_type TEXT NOT NULL,
//	    secure_file_name TEXT NOT NULL,
//	    original_file_name TEXT NOT NULL,
//	    content_type TEXT NOT NULL,
//	    size_bytes BIGINT NOT NULL,
//	    content_hash TEXT NOT NULL,
//	    status TEXT NOT NULL,
//	    uploaded_at TIMESTAMPTZ NOT NULL,
//	    deleted_at TIMESTAMPTZ
//	);
//	CREATE INDEX idx_documents_user ON documents (user_id, uploaded_at DESC);
//	CREATE INDEX idx_documents_retention ON documents (deleted_at) WHERE status = 'DELETED';
//
//	CREATE TABLE live_captures (
//	    id UUID PRIMARY KEY,
//	    user_id UUID NOT NULL,
//	    session_id TEXT NOT NULL,
//	    capture_type TEXT NOT NULL,
//	    secure_file_name TEXT NOT NULL,
//	    size_bytes BIGINT NOT NULL,
//	    content_hash TEXT NOT NULL,
//	    back_secure_file_name TEXT NOT NULL DEFAULT '',
//	    back_size_bytes BIGINT NOT NULL DEFAULT 0,
//	    back_content_hash TEXT NOT NULL DEFAULT '',
//	    liveness_score DOUBLE PRECISION NOT NULL,
//	    device_fingerprint TEXT NOT NULL,
//	    captured_at TIMESTAMPTZ NOT NULL,
//	    stored_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed metadata store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const documentColumns = `id, user_id, session_id, doc_type, secure_file_name, original_file_name,
	content_type, size_bytes, content_hash, status, uploaded_at, deleted_at`

func (s *PostgresStore) SaveDocument(ctx context.Context, doc *models.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			deleted_at = EXCLUDED.deleted_at`,
		doc.ID.String(), doc.UserID.String(), doc.SessionID, string(doc.Type),
		doc.SecureFileName, doc.OriginalFileName, doc.ContentType,
		doc.SizeBytes, doc.ContentHash, string(doc.Status),
		doc.UploadedAt, doc.DeletedAt)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindDocument(ctx context.Context, documentID id.DocumentID) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`,
		documentID.String())
	return scanDocument(row)
}

func (s *PostgresStore) ListDocumentsByUser(ctx context.Context, userID id.UserID) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE user_id = $1 ORDER BY uploaded_at DESC`,
		userID.String())
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return collectDocuments(rows)
}

func (s *PostgresStore) ListDeletedBefore(ctx context.Context, cutoff time.Time) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE status = $1 AND deleted_at < $2`,
		string(models.StatusDeleted), cutoff)
	if err != nil {
		return nil, fmt.Errorf("list documents for purge: %w", err)
	}
	return collectDocuments(rows)
}

const captureColumns = `id, user_id, session_id, capture_type, secure_file_name, size_bytes,
	content_hash, back_secure_file_name, back_size_bytes, back_content_hash,
	liveness_score, device_fingerprint, captured_at, stored_at`

func (s *PostgresStore) SaveCapture(ctx context.Context, capture *models.LiveCapture) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO live_captures (`+captureColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING`,
		capture.ID.String(), capture.UserID.String(), capture.SessionID,
		string(capture.Type), capture.SecureFileName, capture.SizeBytes,
		capture.ContentHash, capture.BackSecureFileName, capture.BackSizeBytes,
		capture.BackContentHash, capture.LivenessScore, capture.DeviceFingerprint,
		capture.CapturedAt, capture.StoredAt)
	if err != nil {
		return fmt.Errorf("save live capture: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindCapture(ctx context.Context, captureID id.CaptureID) (*models.LiveCapture, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+captureColumns+` FROM live_captures WHERE id = $1`,
		captureID.String())

	var (
		capture        models.LiveCapture
		rawID, rawUser string
		captureType    string
	)
	err := row.Scan(&rawID, &rawUser, &capture.SessionID, &captureType,
		&capture.SecureFileName, &capture.SizeBytes, &capture.ContentHash,
		&capture.BackSecureFileName, &capture.BackSizeBytes, &capture.BackContentHash,
		&capture.LivenessScore, &capture.DeviceFingerprint,
		&capture.CapturedAt, &capture.StoredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan live capture: %w", err)
	}
	if capture.ID, err = id.ParseCaptureID(rawID); err != nil {
		return nil, fmt.Errorf("scan live capture: %w", err)
	}
	if capture.UserID, err = id.ParseUserID(rawUser); err != nil {
		return nil, fmt.Errorf("scan live capture: %w", err)
	}
	capture.Type = models.CaptureType(captureType)
	return &capture, nil
}

func collectDocuments(rows *sql.Rows) ([]*models.Document, error) {
	defer rows.Close()
	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc            models.Document
		rawID, rawUser string
		docType        string
		status         string
		deletedAt      sql.NullTime
	)
	err := row.Scan(&rawID, &rawUser, &doc.SessionID, &docType, &doc.SecureFileName,
		&doc.OriginalFileName, &doc.ContentType, &doc.SizeBytes,
		&doc.ContentHash, &status, &doc.UploadedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if doc.ID, err = id.ParseDocumentID(rawID); err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if doc.UserID, err = id.ParseUserID(rawUser); err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.Type = models.DocumentType(docType)
	doc.Status = models.Status(status)
	if deletedAt.Valid {
		t := deletedAt.Time
		doc.DeletedAt = &t
	}
	return &doc, nil
}
