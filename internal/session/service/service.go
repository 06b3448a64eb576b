// Package service manages verification session lifecycle: one active session
// per user, sliding extension while the user works, hard expiry after the
// configured timeout.
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

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/session/metrics"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/session/models"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/session/store"
)

// verificationFlowSteps is how many steps the hosted flow presents.
const verificationFlowSteps = 4

// Service owns session lifecycle.
type Service struct {
	store   store.Store
	auditor *audit.Publisher
	metrics *metrics.Metrics
	timeout time.Duration
	logger  *slog.Logger
}

// NewService wires the session service. m may be nil.
func NewService(st store.Store, auditor *audit.Publisher, m *metrics.Metrics, timeout time.Duration, logger *slog.Logger) *Service {
	return &Service{
		store:   st,
		auditor: auditor,
		metrics: m,
		timeout: timeout,
		logger:  logger,
	}
}

// GetOrCreateSession returns the user's active session with its deadline
// extended, or creates a fresh one. An expired session found on the way is
// marked EXPIRED and replaced.
//
// The one-active-session rule is best effort: two concurrent calls can both
// create sessions, and the later Save wins the user pointer. The loser's
// session simply ages out.
func (s *Service) GetOrCreateSession(ctx context.Context, userID id.UserID) (*models.Session, error) {
	now := requestcontext.Now(ctx)

	existing, err := s.store.FindActiveByUser(ctx, userID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.Warn("active session lookup failed, creating new session",
			"user_id", userID.String(),
			"error", err)
	}
	if existing != nil {
		if !existing.IsExpired(now) {
			existing.ExpiresAt = now.Add(s.timeout)
			existing.Touch(requestcontext.ClientIP(ctx), requestcontext.UserAgent(ctx), now)
			if err := s.store.Save(ctx, existing); err != nil {
				return nil, domainerrors.Wrap(err, domainerrors.CodeDatabase, "extend session")
			}
			s.emit(ctx, userID, audit.ActionSessionExtended, existing.ID)
			s.metrics.IncrementLifecycle("extended")
			return existing, nil
		}
		s.expire(ctx, existing)
	}

	return s.createSession(ctx, userID, now)
}

func (s *Service) createSession(ctx context.Context, userID id.UserID, now time.Time) (*models.Session, error) {
	sessionID, err := models.NewSessionID()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "create session")
	}
	ua := requestcontext.UserAgent(ctx)
	session := &models.Session{
		ID:     sessionID,
		UserID: userID,
		Status: models.StatusActive,
		Security: models.SecurityContext{
			IPAddress:      requestcontext.ClientIP(ctx),
			UserAgent:      ua,
			DeviceSummary:  models.SummarizeDevice(ua),
			CreatedAt:      now,
			LastAccessedAt: now,
		},
		Progress:  models.Progress{CurrentStep: 1, TotalSteps: verificationFlowSteps},
		CreatedAt: now,
		ExpiresAt: now.Add(s.timeout),
	}
	if err := s.store.Save(ctx, session); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeDatabase, "save session")
	}
	s.emit(ctx, userID, audit.ActionSessionCreated, session.ID)
	s.metrics.IncrementLifecycle("created")
	return session, nil
}

// ValidateSession checks that the session exists, belongs to userID, is
// active and unexpired, then refreshes its access metadata. All failure
// modes look identical to the caller so session IDs cannot be probed.
func (s *Service) ValidateSession(ctx context.Context, userID id.UserID, sessionID string) (*models.Session, error) {
	notFound := domainerrors.New(domainerrors.CodeNotFound, "session not found")

	session, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementValidation("not_found")
			return nil, notFound
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeDatabase, "load session")
	}
	if session.UserID != userID || session.Status != models.StatusActive {
		s.metrics.IncrementValidation("rejected")
		return nil, notFound
	}
	now := requestcontext.Now(ctx)
	if session.IsExpired(now) {
		s.expire(ctx, session)
		s.metrics.IncrementValidation("expired")
		return nil, notFound
	}

	session.Touch(requestcontext.ClientIP(ctx), requestcontext.UserAgent(ctx), now)
	if err := s.store.Save(ctx, session); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeDatabase, "refresh session")
	}
	s.metrics.IncrementValidation("ok")
	return session, nil
}

// AdvanceProgress moves the session's flow step forward. Steps never move
// backwards.
func (s *Service) AdvanceProgress(ctx context.Context, userID id.UserID, sessionID string, step int) (*models.Session, error) {
	session, err := s.ValidateSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if step < 1 || step > session.Progress.TotalSteps {
		return nil, domainerrors.Newf(domainerrors.CodeValidation, "step must be between 1 and %d", session.Progress.TotalSteps)
	}
	if step > session.Progress.CurrentStep {
		session.Progress.CurrentStep = step
		if err := s.store.Save(ctx, session); err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeDatabase, "save session progress")
		}
	}
	return session, nil
}

// InvalidateSession force-expires a session, recording why. The session must
// belong to userID; a mismatch is indistinguishable from a missing session.
func (s *Service) InvalidateSession(ctx context.Context, userID id.UserID, sessionID, reason string) error {
	session, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return domainerrors.Wrap(err, domainerrors.CodeDatabase, "load session")
	}
	if session.UserID != userID {
		return domainerrors.New(domainerrors.CodeNotFound, "session not found")
	}
	session.Status = models.StatusExpired
	if err := s.store.Save(ctx, session); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeDatabase, "invalidate session")
	}
	s.emitDetails(ctx, session.UserID, audit.ActionSessionInvalidated,
		fmt.Sprintf("session=%s reason=%s", session.ID, reason))
	s.metrics.IncrementLifecycle("invalidated")
	return nil
}

// expire marks a session EXPIRED in place. Best effort.
func (s *Service) expire(ctx context.Context, session *models.Session) {
	session.Status = models.StatusExpired
	if err := s.store.Save(ctx, session); err != nil {
		s.logger.Warn("failed to persist session expiry",
			"session_id", session.ID,
			"error", err)
		return
	}
	s.emit(ctx, session.UserID, audit.ActionSessionExpired, session.ID)
	s.metrics.IncrementLifecycle("expired")
}

func (s *Service) emit(ctx context.Context, userID id.UserID, action, sessionID string) {
	s.emitDetails(ctx, userID, action, "session="+sessionID)
}

func (s *Service) emitDetails(ctx context.Context, userID id.UserID, action, details string) {
	if err := s.auditor.Emit(ctx, audit.Event{
		UserID:  userID,
		Action:  action,
		Details: details,
	}); err != nil {
		s.logger.Warn("audit emit failed", "action", action, "error", err)
	}
}
