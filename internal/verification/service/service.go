// Package service implements the verification orchestrator: it owns the
// workflow state machine, routes attempts to vendor adapters, applies vendor
// callbacks, and derives privilege checks from the resulting record.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	domainerrors "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain-errors"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/sentinel"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/requestcontext"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/envelope"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/notification"
	sessionmodels "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/session/models"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/metrics"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/models"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/providers"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/store"
)

// approvalValidity is how long an approval stays good before it expires and
// the user must re-verify.
const approvalValidity = 365 * 24 * time.Hour

// SessionValidator is the session manager capability the orchestrator needs:
// proving that the caller holds an active verification session before a
// vendor attempt is started.
type SessionValidator interface {
	ValidateSession(ctx context.Context, userID id.UserID, sessionID string) (*sessionmodels.Session, error)
}

// Service orchestrates the verification workflow.
type Service struct {
	store     store.Store
	router    *providers.Router
	sessions  SessionValidator
	protector envelope.Protector
	auditor   *audit.Publisher
	notifier  notification.Sink
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewService wires the orchestrator. metrics may be nil.
func NewService(
	st store.Store,
	router *providers.Router,
	sessions SessionValidator,
	protector envelope.Protector,
	auditor *audit.Publisher,
	notifier notification.Sink,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:     st,
		router:    router,
		sessions:  sessions,
		protector: protector,
		auditor:   auditor,
		notifier:  notifier,
		metrics:   m,
		logger:    logger,
	}
}

// GetStatus returns the user's record, synthesizing a NotStarted one for
// users who never initiated. The synthesized record is not persisted.
func (s *Service) GetStatus(ctx context.Context, userID id.UserID) (*models.VerificationRecord, error) {
	record, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.NewRecord(userID, requestcontext.Now(ctx)), nil
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeDatabase, "load verification record")
	}
	return record, nil
}

// InitiateVerification starts (or restarts) a verification attempt. The
// caller must hold an active verification session. It rejects duplicates
// while an attempt is in flight, re-verification at or below an already
// approved level, and restarts below the level previously attempted.
func (s *Service) InitiateVerification(ctx context.Context, req models.InitiationRequest) (*models.SessionHandle, error) {
	now := requestcontext.Now(ctx)

	if _, err := s.sessions.ValidateSession(ctx, req.UserID, req.SessionID); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidation, "no active verification session")
	}

	record, err := s.store.FindByUser(ctx, req.UserID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.Wrap(err, domainerrors.CodeDatabase, "load verification record")
		}
		record = models.NewRecord(req.UserID, now)
	}

	if record.Status.InFlight() {
		return nil, domainerrors.New(domainerrors.CodeValidation, "verification already in progress")
	}
	if record.Status == models.StatusApproved && !record.IsExpired(now) && record.Level.AtLeast(req.Level) {
		return nil, domainerrors.Newf(domainerrors.CodeValidation, "already verified at level %s", record.Level)
	}
	if record.Level != models.LevelNone && !req.Level.AtLeast(record.Level) {
		return nil, domainerrors.Newf(domainerrors.CodeValidation, "cannot restart verification below level %s", record.Level)
	}

	adapter, err := s.router.Select(req.UserID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeConfiguration, "select verification provider")
	}

	start := time.Now()
	handle, err := adapter.InitiateVerification(ctx, req, record)
	s.metrics.ObserveAdapterLatency(adapter.Name(), "initiate", time.Since(start))
	if err != nil {
		s.logger.Error("vendor initiation failed",
			"adapter", adapter.Name(),
			"user_id", req.UserID.String(),
			"error", err)
		return nil, domainerrors.Wrap(err, domainerrors.CodeThirdParty, "verification provider unavailable")
	}

	if len(req.PersonalData) > 0 {
		sealed, err := s.protector.Protect(envelope.PurposePersonalData, req.PersonalData)
		if err != nil {
			return nil, err
		}
		record.EncryptedPersonalData = sealed
	}

	from := record.Status
	record.Status = models.StatusInProgress
	record.Level = req.Level
	record.Provider = handle.Provider
	record.ReferenceID = handle.ReferenceID
	record.AppendHistory(models.StatusInProgress, "Verification Started", now)

	if err := s.store.Save(ctx, record); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeDatabase, "save verification record")
	}
	s.metrics.IncrementTransition(string(from), string(models.StatusInProgress))

	if err := s.auditor.Emit(ctx, audit.Event{
		UserID:  req.UserID,
		Action:  audit.ActionVerificationStarted,
		Details: fmt.Sprintf("level=%s provider=%s", req.Level, handle.Provider),
	}); err != nil {
		s.logger.Warn("audit emit failed", "action", audit.ActionVerificationStarted, "error", err)
	}

	return handle, nil
}

// ProcessCallback applies a vendor webhook to the owning record. The raw
// signature must already be validated by the transport layer against the
// adapter; this method still re-checks as defense against misuse.
func (s *Service) ProcessCallback(ctx context.Context, cb models.Callback) error {
	adapter, err := s.router.SelectNamed(cb.Provider)
	if err != nil {
		return domainerrors.New(domainerrors.CodeNotFound, "unknown verification provider")
	}

	if !adapter.ValidateCallbackSignature(cb.Signature, cb.Payload) {
		s.metrics.IncrementCallback(adapter.Name(), "rejected_signature")
		return domainerrors.New(domainerrors.CodeSecurity, "callback signature invalid")
	}

	result, err := adapter.ProcessCallback(ctx, cb)
	if err != nil {
		s.metrics.IncrementCallback(adapter.Name(), "bad_payload")
		return domainerrors.Wrap(err, domainerrors.CodeValidation, "callback payload invalid")
	}

	record, err := s.store.FindByReference(ctx, cb.Provider, result.ReferenceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementCallback(adapter.Name(), "unknown_reference")
			return domainerrors.New(domainerrors.CodeNotFound, "no verification for callback reference")
		}
		return domainerrors.Wrap(err, domainerrors.CodeDatabase, "load verification record")
	}

	now := requestcontext.Now(ctx)

	if record.HasAppliedEvent(result.EventID) {
		s.metrics.IncrementCallback(adapter.Name(), "duplicate")
		if err := s.auditor.Emit(ctx, audit.Event{
			UserID:  record.UserID,
			Action:  audit.ActionCallbackDuplicate,
			Details: fmt.Sprintf("provider=%s event=%s", cb.Provider, result.EventID),
		}); err != nil {
			s.logger.Warn("audit emit failed", "action", audit.ActionCallbackDuplicate, "error", err)
		}
		return nil
	}

	if !record.Status.CanTransitionTo(result.Status) {
		s.metrics.IncrementCallback(adapter.Name(), "illegal_transition")
		return domainerrors.Newf(domainerrors.CodeConflict, "cannot move verification from %s to %s", record.Status, result.Status)
	}

	from := record.Status
	record.Status = result.Status
	record.MarkEventApplied(result.EventID)
	record.AppendHistory(result.Status, result.Note, now)

	if result.Status == models.StatusApproved {
		verifiedAt := now
		expiresAt := now.Add(approvalValidity)
		record.VerifiedAt = &verifiedAt
		record.ExpiresAt = &expiresAt
	}

	if result.Status == models.StatusApproved || result.Status == models.StatusNeedsReview {
		s.runAMLCheck(ctx, adapter, record, now)
	}

	if err := s.store.Save(ctx, record); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeDatabase, "save verification record")
	}
	s.metrics.IncrementTransition(string(from), string(record.Status))
	s.metrics.IncrementCallback(adapter.Name(), "applied")

	s.emitTransitionAudit(ctx, record, cb.Provider, result)
	s.notifyOutcome(ctx, record)

	return nil
}

// runAMLCheck screens the user and folds the result into the record. A
// screening failure leaves the record intact but flags it for review rather
// than letting an unscreened approval stand.
func (s *Service) runAMLCheck(ctx context.Context, adapter providers.Adapter, record *models.VerificationRecord, now time.Time) {
	start := time.Now()
	result, err := adapter.PerformAMLCheck(ctx, record.UserID, record)
	s.metrics.ObserveAdapterLatency(adapter.Name(), "aml_check", time.Since(start))
	if err != nil {
		s.logger.Error("aml check failed",
			"adapter", adapter.Name(),
			"user_id", record.UserID.String(),
			"error", err)
		record.SecurityFlags.RequiresReview = true
		if record.Status == models.StatusApproved {
			record.Status = models.StatusNeedsReview
			record.AppendHistory(models.StatusNeedsReview, "AML screening unavailable", now)
		}
		return
	}

	record.AMLStatus = result.Status
	record.RiskScore = result.RiskScore
	record.SecurityFlags.PoliticallyExposed = result.PoliticallyExposed
	record.SecurityFlags.HighRisk = result.HighRisk
	if result.Status != models.AMLStatusClear || result.HighRisk {
		record.SecurityFlags.RequiresReview = true
		if record.Status == models.StatusApproved {
			record.Status = models.StatusNeedsReview
			record.AppendHistory(models.StatusNeedsReview, "AML screening flagged for review", now)
		}
	}
	s.metrics.IncrementAML(adapter.Name(), string(result.Status))

	if err := s.auditor.Emit(ctx, audit.Event{
		UserID:  record.UserID,
		Action:  audit.ActionAMLCheckCompleted,
		Details: fmt.Sprintf("status=%s risk_band=%s", result.Status, result.RiskBand),
	}); err != nil {
		s.logger.Warn("audit emit failed", "action", audit.ActionAMLCheckCompleted, "error", err)
	}
}

func (s *Service) emitTransitionAudit(ctx context.Context, record *models.VerificationRecord, provider string, result *providers.CallbackResult) {
	action := audit.ActionCallbackReceived
	switch record.Status {
	case models.StatusApproved:
		action = audit.ActionVerificationApproved
	case models.StatusRejected:
		action = audit.ActionVerificationRejected
	case models.StatusNeedsReview:
		action = audit.ActionVerificationReview
	case models.StatusPending:
		action = audit.ActionVerificationPending
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		UserID:  record.UserID,
		Action:  action,
		Details: fmt.Sprintf("provider=%s vendor_status=%s event=%s", provider, result.VendorStatus, result.EventID),
	}); err != nil {
		s.logger.Warn("audit emit failed", "action", action, "error", err)
	}
}

// notifyOutcome tells the user about terminal outcomes. Best effort.
func (s *Service) notifyOutcome(ctx context.Context, record *models.VerificationRecord) {
	var subject, body string
	switch record.Status {
	case models.StatusApproved:
		subject = "Identity verification approved"
		body = fmt.Sprintf("Your identity was verified at level %s.", record.Level)
	case models.StatusRejected:
		subject = "Identity verification rejected"
		body = "Your identity verification was not successful. You may try again."
	case models.StatusNeedsReview:
		subject = "Identity verification under review"
		body = "Your verification needs a manual review. We will notify you once it completes."
	default:
		return
	}
	if err := s.notifier.Notify(ctx, notification.Message{
		UserID:  record.UserID,
		Subject: subject,
		Body:    body,
	}); err != nil {
		s.logger.Warn("outcome notification failed",
			"user_id", record.UserID.String(),
			"status", record.Status,
			"error", err)
	}
}

// IsVerified reports whether the user holds a live approval at or above
// level.
func (s *Service) IsVerified(ctx context.Context, userID id.UserID, level models.Level) (bool, error) {
	record, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, domainerrors.Wrap(err, domainerrors.CodeDatabase, "load verification record")
	}
	now := requestcontext.Now(ctx)
	return record.Status == models.StatusApproved &&
		!record.IsExpired(now) &&
		record.Level.AtLeast(level), nil
}

// IsEligibleForTrading reports whether the user may trade: a live Standard
// (or higher) approval, no review flag, and AML not blocked.
func (s *Service) IsEligibleForTrading(ctx context.Context, userID id.UserID) (bool, error) {
	record, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, domainerrors.Wrap(err, domainerrors.CodeDatabase, "load verification record")
	}
	now := requestcontext.Now(ctx)
	return record.Status == models.StatusApproved &&
		!record.IsExpired(now) &&
		record.Level.AtLeast(models.LevelStandard) &&
		!record.SecurityFlags.RequiresReview &&
		record.AMLStatus != models.AMLStatusBlocked, nil
}

// ListPendingReview pages records waiting on manual review for the admin
// console.
func (s *Service) ListPendingReview(ctx context.Context, limit, offset int) ([]*models.VerificationRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	records, err := s.store.ListPendingReview(ctx, limit, offset)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeDatabase, "list pending review")
	}
	return records, nil
}

// PersonalData decrypts the applicant's submitted identity payload for
// admin review.
func (s *Service) PersonalData(ctx context.Context, userID id.UserID) ([]byte, error) {
	record, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "verification record not found")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeDatabase, "load verification record")
	}
	if len(record.EncryptedPersonalData) == 0 {
		return nil, domainerrors.New(domainerrors.CodeNotFound, "no personal data on record")
	}
	return s.protector.Unprotect(envelope.PurposePersonalData, record.EncryptedPersonalData)
}
