// Package service implements the document custodian: validated uploads,
// envelope encryption at rest, integrity-checked downloads, live capture
// intake, and retention purging.
package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	domainerrors "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain-errors"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/sentinel"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/requestcontext"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/blobstore"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/envelope"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/metrics"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/models"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/store"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/platform/config"
)

// minLivenessScore is the lowest anti-spoofing confidence accepted for live
// captures.
const minLivenessScore = 0.85

// purgeConcurrency bounds parallel blob deletions during a retention sweep.
const purgeConcurrency = 8

// scriptMarkers are byte patterns that must never appear in an identity
// document upload. A match means the file is something executable dressed up
// with an image extension.
var scriptMarkers = [][]byte{
	[]byte("<script"),
	[]byte("<?php"),
	[]byte("#!/"),
	[]byte("javascript:"),
}

// Service is the document custodian.
type Service struct {
	store     store.Store
	blobs     blobstore.BlobStore
	protector envelope.Protector
	auditor   *audit.Publisher
	metrics   *metrics.Metrics
	cfg       config.DocumentConfig
	logger    *slog.Logger
}

// NewService wires the custodian. m may be nil.
func NewService(
	st store.Store,
	blobs blobstore.BlobStore,
	protector envelope.Protector,
	auditor *audit.Publisher,
	m *metrics.Metrics,
	cfg config.DocumentConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:     st,
		blobs:     blobs,
		protector: protector,
		auditor:   auditor,
		metrics:   m,
		cfg:       cfg,
		logger:    logger,
	}
}

// UploadRequest carries one document upload.
type UploadRequest struct {
	UserID    id.UserID
	SessionID string
	Type      models.DocumentType
	FileName  string
	// ContentType is the client-declared MIME type; stored for serving, not
	// trusted for validation.
	ContentType string
	Data        []byte
}

// Upload validates, encrypts and stores one identity document. The blob is
// written before metadata; a failed metadata save deletes the blob again so
// no orphan ciphertext accumulates.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*models.Document, error) {
	if err := s.validateUpload(req); err != nil {
		s.metrics.IncrementUpload("rejected")
		return nil, err
	}
	now := requestcontext.Now(ctx)

	hash := sha256.Sum256(req.Data)
	sealed, err := s.protector.Protect(envelope.PurposeDocuments, req.Data)
	if err != nil {
		return nil, err
	}

	documentID := id.NewDocumentID()
	doc := &models.Document{
		ID:               documentID,
		UserID:           req.UserID,
		SessionID:        req.SessionID,
		Type:             req.Type,
		SecureFileName:   models.SecureFileName(documentID, req.FileName),
		OriginalFileName: filepath.Base(req.FileName),
		ContentType:      req.ContentType,
		SizeBytes:        int64(len(req.Data)),
		ContentHash:      hex.EncodeToString(hash[:]),
		Status:           models.StatusUploaded,
		UploadedAt:       now,
	}

	if err := s.blobs.Put(ctx, doc.SecureFileName, sealed); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "store document blob")
	}
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		if delErr := s.blobs.Delete(ctx, doc.SecureFileName); delErr != nil {
			s.logger.Error("orphan blob left after failed metadata save",
				"secure_file_name", doc.SecureFileName,
				"error", delErr)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeDatabase, "save document metadata")
	}

	s.emit(ctx, req.UserID, audit.ActionDocumentUploaded,
		fmt.Sprintf("document=%s type=%s size=%d", doc.ID, doc.Type, doc.SizeBytes))
	s.metrics.IncrementUpload("stored")
	s.metrics.AddUploadBytes(string(doc.Type), doc.SizeBytes)
	return doc, nil
}

func (s *Service) validateUpload(req UploadRequest) error {
	if !models.ValidDocumentType(req.Type) {
		return domainerrors.Newf(domainerrors.CodeValidation, "unknown document type %q", req.Type)
	}
	if req.SessionID == "" {
		return domainerrors.New(domainerrors.CodeValidation, "session id is required")
	}
	if len(req.Data) == 0 {
		return domainerrors.New(domainerrors.CodeValidation, "document is empty")
	}
	if int64(len(req.Data)) > s.cfg.MaxUploadBytes {
		return domainerrors.Newf(domainerrors.CodeValidation, "document exceeds %d bytes", s.cfg.MaxUploadBytes)
	}
	ext := strings.ToLower(filepath.Ext(req.FileName))
	allowed := false
	for _, e := range s.cfg.AllowedExtensions {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed {
		return domainerrors.Newf(domainerrors.CodeValidation, "file extension %q is not allowed", ext)
	}
	lower := bytes.ToLower(req.Data)
	for _, marker := range scriptMarkers {
		if bytes.Contains(lower, marker) {
			return domainerrors.New(domainerrors.CodeSecurity, "file content rejected")
		}
	}
	return nil
}

// Download returns the document metadata and decrypted content. Only the
// owner or an admin may download. A content hash mismatch is logged and
// audited but the data is still returned; withholding it would hide the
// evidence an investigation needs.
func (s *Service) Download(ctx context.Context, documentID id.DocumentID) (*models.Document, []byte, error) {
	doc, err := s.authorizeDocument(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	if doc.Status == models.StatusDeleted || doc.Status == models.StatusPurged {
		return nil, nil, domainerrors.New(domainerrors.CodeNotFound, "document not found")
	}

	sealed, err := s.blobs.Get(ctx, doc.SecureFileName)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, domainerrors.New(domainerrors.CodeNotFound, "document content missing")
		}
		return nil, nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "load document blob")
	}
	data, err := s.protector.Unprotect(envelope.PurposeDocuments, sealed)
	if err != nil {
		return nil, nil, err
	}

	hash := sha256.Sum256(data)
	if hex.EncodeToString(hash[:]) != doc.ContentHash {
		s.logger.Warn("document content hash mismatch",
			"document_id", doc.ID.String(),
			"user_id", doc.UserID.String())
		s.emit(ctx, doc.UserID, audit.ActionIntegrityMismatch, "document="+doc.ID.String())
		s.metrics.IncrementIntegrityMismatch()
	}

	s.emit(ctx, doc.UserID, audit.ActionDocumentDownloaded, "document="+doc.ID.String())
	return doc, data, nil
}

// List returns the caller's documents (or any user's, for admins).
func (s *Service) List(ctx context.Context, userID id.UserID) ([]*models.Document, error) {
	caller := requestcontext.UserID(ctx)
	if caller != userID && !requestcontext.IsAdmin(ctx) {
		return nil, domainerrors.New(domainerrors.CodeSecurity, "not authorized")
	}
	docs, err := s.store.ListDocumentsByUser(ctx, userID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeDatabase, "list documents")
	}
	return docs, nil
}

// SoftDelete marks the metadata DELETED. The ciphertext stays in the blob
// store until the retention sweep destroys it, so a deletion can be
// investigated before the evidence is gone.
func (s *Service) SoftDelete(ctx context.Context, documentID id.DocumentID, reason string) error {
	doc, err := s.authorizeDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status == models.StatusDeleted || doc.Status == models.StatusPurged {
		return nil
	}

	now := requestcontext.Now(ctx)
	doc.Status = models.StatusDeleted
	doc.DeletedAt = &now
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeDatabase, "mark document deleted")
	}

	s.emit(ctx, doc.UserID, audit.ActionDocumentDeleted,
		fmt.Sprintf("document=%s reason=%s", doc.ID, reason))
	return nil
}

// CaptureRequest carries one live capture. Data is the primary frame;
// BackData, when present, is the reverse side of a duplex document capture.
type CaptureRequest struct {
	UserID            id.UserID
	SessionID         string
	Type              models.CaptureType
	Data              []byte
	BackData          []byte
	LivenessScore     float64
	DeviceFingerprint string
	CapturedAt        time.Time
}

// ProcessLiveCapture validates and stores a live capture from the
// verification flow. A duplex capture produces two independently hashed and
// encrypted blobs behind a single record.
func (s *Service) ProcessLiveCapture(ctx context.Context, req CaptureRequest) (*models.LiveCapture, error) {
	now := requestcontext.Now(ctx)
	if err := s.validateCapture(req, now); err != nil {
		s.metrics.IncrementCapture("rejected")
		return nil, err
	}

	hash := sha256.Sum256(req.Data)
	sealed, err := s.protector.Protect(envelope.PurposeDocuments, req.Data)
	if err != nil {
		return nil, err
	}

	captureID := id.NewCaptureID()
	capture := &models.LiveCapture{
		ID:                captureID,
		UserID:            req.UserID,
		SessionID:         req.SessionID,
		Type:              req.Type,
		SecureFileName:    captureID.String() + ".bin",
		SizeBytes:         int64(len(req.Data)),
		ContentHash:       hex.EncodeToString(hash[:]),
		LivenessScore:     req.LivenessScore,
		DeviceFingerprint: req.DeviceFingerprint,
		CapturedAt:        req.CapturedAt,
		StoredAt:          now,
	}

	var sealedBack []byte
	if len(req.BackData) > 0 {
		backHash := sha256.Sum256(req.BackData)
		sealedBack, err = s.protector.Protect(envelope.PurposeDocuments, req.BackData)
		if err != nil {
			return nil, err
		}
		capture.BackSecureFileName = captureID.String() + "-back.bin"
		capture.BackSizeBytes = int64(len(req.BackData))
		capture.BackContentHash = hex.EncodeToString(backHash[:])
	}

	if err := s.blobs.Put(ctx, capture.SecureFileName, sealed); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "store capture blob")
	}
	if sealedBack != nil {
		if err := s.blobs.Put(ctx, capture.BackSecureFileName, sealedBack); err != nil {
			s.dropCaptureBlobs(ctx, capture)
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "store capture back blob")
		}
	}
	if err := s.store.SaveCapture(ctx, capture); err != nil {
		s.dropCaptureBlobs(ctx, capture)
		return nil, domainerrors.Wrap(err, domainerrors.CodeDatabase, "save capture metadata")
	}

	s.emit(ctx, req.UserID, audit.ActionLiveCaptureStored,
		fmt.Sprintf("capture=%s type=%s liveness=%.2f", capture.ID, capture.Type, capture.LivenessScore))
	s.metrics.IncrementCapture("stored")
	return capture, nil
}

// dropCaptureBlobs removes whatever blobs a failed capture left behind.
func (s *Service) dropCaptureBlobs(ctx context.Context, capture *models.LiveCapture) {
	names := []string{capture.SecureFileName}
	if capture.BackSecureFileName != "" {
		names = append(names, capture.BackSecureFileName)
	}
	for _, name := range names {
		if err := s.blobs.Delete(ctx, name); err != nil {
			s.logger.Error("orphan blob left after failed capture save",
				"secure_file_name", name,
				"error", err)
		}
	}
}

func (s *Service) validateCapture(req CaptureRequest, now time.Time) error {
	if !models.ValidCaptureType(req.Type) {
		return domainerrors.Newf(domainerrors.CodeValidation, "unknown capture type %q", req.Type)
	}
	if req.SessionID == "" {
		return domainerrors.New(domainerrors.CodeValidation, "session id is required")
	}
	if int64(len(req.Data)) < s.cfg.CaptureMinBytes {
		return domainerrors.New(domainerrors.CodeValidation, "capture too small to be a real frame")
	}
	if len(req.BackData) > 0 {
		if req.Type == models.CaptureSelfie {
			return domainerrors.New(domainerrors.CodeValidation, "selfie capture cannot carry a back frame")
		}
		if int64(len(req.BackData)) < s.cfg.CaptureMinBytes {
			return domainerrors.New(domainerrors.CodeValidation, "back frame too small to be a real frame")
		}
	}
	if req.LivenessScore < minLivenessScore {
		return domainerrors.New(domainerrors.CodeSecurity, "liveness check failed")
	}
	if req.DeviceFingerprint == "" {
		return domainerrors.New(domainerrors.CodeValidation, "device fingerprint is required")
	}
	if req.CapturedAt.IsZero() || now.Sub(req.CapturedAt) > s.cfg.CaptureMaxAge {
		return domainerrors.New(domainerrors.CodeValidation, "capture is too old")
	}
	if req.CapturedAt.After(now.Add(time.Minute)) {
		return domainerrors.New(domainerrors.CodeValidation, "capture timestamp is in the future")
	}
	return nil
}

// PurgeExpired destroys the ciphertext of documents soft-deleted more than
// the retention window ago and marks their metadata PURGED. Active documents
// are never touched. Each document is independent: one failure is logged and
// skipped, the sweep continues. Returns how many documents were purged.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-s.cfg.RetentionWindow)
	docs, err := s.store.ListDeletedBefore(ctx, cutoff)
	if err != nil {
		return 0, domainerrors.Wrap(err, domainerrors.CodeDatabase, "list documents for purge")
	}
	if len(docs) == 0 {
		return 0, nil
	}

	var purged atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(purgeConcurrency)
	for _, doc := range docs {
		g.Go(func() error {
			if err := s.purgeOne(gctx, doc); err != nil {
				s.logger.Error("document purge failed",
					"document_id", doc.ID.String(),
					"error", err)
				return nil // best effort, keep sweeping
			}
			purged.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(purged.Load()), err
	}

	if n := purged.Load(); n > 0 {
		s.logger.Info("retention purge completed", "purged", n, "candidates", len(docs))
		s.metrics.IncrementPurged(int(n))
	}
	return int(purged.Load()), nil
}

func (s *Service) purgeOne(ctx context.Context, doc *models.Document) error {
	if err := s.blobs.Delete(ctx, doc.SecureFileName); err != nil {
		return err
	}
	doc.Status = models.StatusPurged
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return err
	}
	s.emit(ctx, doc.UserID, audit.ActionDocumentPurged, "document="+doc.ID.String())
	return nil
}

// authorizeDocument loads the document and checks the caller owns it or is
// an admin. Unauthorized access looks like a missing document.
func (s *Service) authorizeDocument(ctx context.Context, documentID id.DocumentID) (*models.Document, error) {
	doc, err := s.store.FindDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "document not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeDatabase, "load document")
	}
	if doc.UserID != requestcontext.UserID(ctx) && !requestcontext.IsAdmin(ctx) {
		return nil, domainerrors.New(domainerrors.CodeNotFound, "document not found")
	}
	return doc, nil
}

func (s *Service) emit(ctx context.Context, userID id.UserID, action, details string) {
	if err := s.auditor.Emit(ctx, audit.Event{
		UserID:  userID,
		Action:  action,
		Details: details,
	}); err != nil {
		s.logger.Warn("audit emit failed", "action", action, "error", err)
	}
}
