package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	domainerrors "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain-errors"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit"
	auditmemory "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit/store/memory"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/requestcontext"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/session/models"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/session/store"
)

const sessionTimeout = 30 * time.Minute

type SessionServiceSuite struct {
	suite.Suite
	store      *store.InMemoryStore
	auditStore *auditmemory.InMemoryStore
	service    *Service
	now        time.Time
	ctx        context.Context
}

func TestSessionServiceSuite(t *testing.T) {
	suite.Run(t, new(SessionServiceSuite))
}

func (s *SessionServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.auditStore = auditmemory.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = NewService(s.store, audit.NewPublisher(s.auditStore), nil, sessionTimeout, logger)

	s.now = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = s.at(s.now)
}

func (s *SessionServiceSuite) at(t time.Time) context.Context {
	ctx := requestcontext.WithTime(context.Background(), t)
	return requestcontext.WithClientMetadata(ctx, "203.0.113.7",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
}

func (s *SessionServiceSuite) TestGetOrCreateSession() {
	s.Run("creates a fresh session with security context", func() {
		userID := id.NewUserID()
		session, err := s.service.GetOrCreateSession(s.ctx, userID)
		s.Require().NoError(err)

		s.NotEmpty(session.ID)
		s.Equal(userID, session.UserID)
		s.Equal(models.StatusActive, session.Status)
		s.Equal(s.now.Add(sessionTimeout), session.ExpiresAt)
		s.Equal("203.0.113.7", session.Security.IPAddress)
		s.Contains(session.Security.DeviceSummary, "Chrome")
		s.Equal(1, session.Progress.CurrentStep)
		s.Equal(verificationFlowSteps, session.Progress.TotalSteps)
	})

	s.Run("session ids are unguessable and unique", func() {
		a, err := s.service.GetOrCreateSession(s.ctx, id.NewUserID())
		s.Require().NoError(err)
		b, err := s.service.GetOrCreateSession(s.ctx, id.NewUserID())
		s.Require().NoError(err)
		s.NotEqual(a.ID, b.ID)
		s.GreaterOrEqual(len(a.ID), 40)
	})

	s.Run("returns existing session with extended deadline", func() {
		userID := id.NewUserID()
		first, err := s.service.GetOrCreateSession(s.ctx, userID)
		s.Require().NoError(err)

		later := s.at(s.now.Add(10 * time.Minute))
		second, err := s.service.GetOrCreateSession(later, userID)
		s.Require().NoError(err)

		s.Equal(first.ID, second.ID)
		s.Equal(s.now.Add(10*time.Minute+sessionTimeout), second.ExpiresAt)
	})

	s.Run("expired session is replaced", func() {
		userID := id.NewUserID()
		first, err := s.service.GetOrCreateSession(s.ctx, userID)
		s.Require().NoError(err)

		later := s.at(s.now.Add(sessionTimeout + time.Minute))
		second, err := s.service.GetOrCreateSession(later, userID)
		s.Require().NoError(err)

		s.NotEqual(first.ID, second.ID)
		s.Equal(models.StatusActive, second.Status)

		// the old session is flagged, not deleted
		old, err := s.store.FindByID(s.ctx, first.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusExpired, old.Status)
	})
}

func (s *SessionServiceSuite) TestValidateSession() {
	s.Run("valid session refreshes access metadata", func() {
		userID := id.NewUserID()
		session, err := s.service.GetOrCreateSession(s.ctx, userID)
		s.Require().NoError(err)

		later := s.at(s.now.Add(5 * time.Minute))
		validated, err := s.service.ValidateSession(later, userID, session.ID)
		s.Require().NoError(err)
		s.Equal(s.now.Add(5*time.Minute), validated.Security.LastAccessedAt)
	})

	s.Run("unknown session id is not found", func() {
		_, err := s.service.ValidateSession(s.ctx, id.NewUserID(), "no-such-session")
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
	})

	s.Run("other user's session is indistinguishable from missing", func() {
		owner := id.NewUserID()
		session, err := s.service.GetOrCreateSession(s.ctx, owner)
		s.Require().NoError(err)

		_, err = s.service.ValidateSession(s.ctx, id.NewUserID(), session.ID)
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
	})

	s.Run("expired session is rejected and flagged", func() {
		userID := id.NewUserID()
		session, err := s.service.GetOrCreateSession(s.ctx, userID)
		s.Require().NoError(err)

		later := s.at(s.now.Add(sessionTimeout + time.Second))
		_, err = s.service.ValidateSession(later, userID, session.ID)
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))

		stored, err := s.store.FindByID(s.ctx, session.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusExpired, stored.Status)
	})

	s.Run("invalidated session no longer validates", func() {
		userID := id.NewUserID()
		session, err := s.service.GetOrCreateSession(s.ctx, userID)
		s.Require().NoError(err)

		s.Require().NoError(s.service.InvalidateSession(s.ctx, userID, session.ID, "admin request"))

		_, err = s.service.ValidateSession(s.ctx, userID, session.ID)
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
	})
}

func (s *SessionServiceSuite) TestInvalidateSession() {
	s.Run("non-owner cannot invalidate", func() {
		owner := id.NewUserID()
		session, err := s.service.GetOrCreateSession(s.ctx, owner)
		s.Require().NoError(err)

		err = s.service.InvalidateSession(s.ctx, id.NewUserID(), session.ID, "takeover attempt")
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))

		// the session is untouched
		_, err = s.service.ValidateSession(s.ctx, owner, session.ID)
		s.NoError(err)
	})

	s.Run("unknown session is a no-op", func() {
		s.NoError(s.service.InvalidateSession(s.ctx, id.NewUserID(), "no-such-session", "cleanup"))
	})
}

func (s *SessionServiceSuite) TestAdvanceProgress() {
	s.Run("moves forward but never backwards", func() {
		userID := id.NewUserID()
		session, err := s.service.GetOrCreateSession(s.ctx, userID)
		s.Require().NoError(err)

		advanced, err := s.service.AdvanceProgress(s.ctx, userID, session.ID, 3)
		s.Require().NoError(err)
		s.Equal(3, advanced.Progress.CurrentStep)

		same, err := s.service.AdvanceProgress(s.ctx, userID, session.ID, 2)
		s.Require().NoError(err)
		s.Equal(3, same.Progress.CurrentStep)
	})

	s.Run("rejects out of range steps", func() {
		userID := id.NewUserID()
		session, err := s.service.GetOrCreateSession(s.ctx, userID)
		s.Require().NoError(err)

		_, err = s.service.AdvanceProgress(s.ctx, userID, session.ID, 99)
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeValidation))
	})
}

func (s *SessionServiceSuite) TestAuditTrail() {
	userID := id.NewUserID()
	session, err := s.service.GetOrCreateSession(s.ctx, userID)
	s.Require().NoError(err)
	_, err = s.service.GetOrCreateSession(s.at(s.now.Add(time.Minute)), userID)
	s.Require().NoError(err)
	s.Require().NoError(s.service.InvalidateSession(s.ctx, userID, session.ID, "test"))

	events, err := s.auditStore.ListByUser(s.ctx, userID)
	s.Require().NoError(err)

	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	s.Contains(actions, audit.ActionSessionCreated)
	s.Contains(actions, audit.ActionSessionExtended)
	s.Contains(actions, audit.ActionSessionInvalidated)
}
