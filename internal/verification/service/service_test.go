package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	domainerrors "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain-errors"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit"
	auditmemory "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit/store/memory"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/requestcontext"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/envelope"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/notification"
	sessionmodels "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/session/models"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/models"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/providers"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/providers/mocks"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/store"
)

const adapterName = "mockvendor"

// fakeSessions validates against a fixed set of open sessions, one per user.
type fakeSessions struct {
	active map[id.UserID]string
}

func (f *fakeSessions) ValidateSession(_ context.Context, userID id.UserID, sessionID string) (*sessionmodels.Session, error) {
	if sid, ok := f.active[userID]; ok && sid == sessionID {
		return &sessionmodels.Session{ID: sessionID, UserID: userID, Status: sessionmodels.StatusActive}, nil
	}
	return nil, domainerrors.New(domainerrors.CodeNotFound, "session not found")
}

type OrchestratorSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	mockAdapter *mocks.MockAdapter
	store       *store.InMemoryStore
	auditStore  *auditmemory.InMemoryStore
	notifier    *notification.InMemorySink
	sessions    *fakeSessions
	service     *Service
	now         time.Time
	ctx         context.Context
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockAdapter = mocks.NewMockAdapter(s.ctrl)
	s.mockAdapter.EXPECT().Name().Return(adapterName).AnyTimes()

	registry := providers.NewRegistry()
	s.Require().NoError(registry.Register(s.mockAdapter))
	router := providers.NewRouter(registry, adapterName, false)

	protector, err := envelope.NewAESProtector(bytes.Repeat([]byte{0x11}, 32))
	s.Require().NoError(err)

	s.store = store.NewInMemoryStore()
	s.auditStore = auditmemory.NewInMemoryStore()
	s.notifier = notification.NewInMemorySink()
	s.sessions = &fakeSessions{active: make(map[id.UserID]string)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.service = NewService(s.store, router, s.sessions, protector, audit.NewPublisher(s.auditStore), s.notifier, nil, logger)

	s.now = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *OrchestratorSuite) TearDownTest() {
	s.ctrl.Finish()
}

// openSession registers an active session for userID with the session fake
// and returns its ID.
func (s *OrchestratorSuite) openSession(userID id.UserID) string {
	sessionID := "sess-" + userID.String()
	s.sessions.active[userID] = sessionID
	return sessionID
}

func (s *OrchestratorSuite) initiate(userID id.UserID, level models.Level) *models.SessionHandle {
	s.T().Helper()
	s.mockAdapter.EXPECT().
		InitiateVerification(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&models.SessionHandle{
			Provider:        adapterName,
			ReferenceID:     "ref-" + userID.String(),
			VerificationURL: "https://verify.example/flow",
			Token:           "tok",
			ExpiresAt:       s.now.Add(time.Hour),
		}, nil)

	handle, err := s.service.InitiateVerification(s.ctx, models.InitiationRequest{
		UserID:       userID,
		Level:        level,
		SessionID:    s.openSession(userID),
		PersonalData: json.RawMessage(`{"firstName":"Ada"}`),
	})
	s.Require().NoError(err)
	return handle
}

func (s *OrchestratorSuite) callback(userID id.UserID, eventID, vendorStatus string, status models.Status, aml *providers.AMLResult) error {
	s.T().Helper()
	payload := json.RawMessage(`{"result":"` + vendorStatus + `"}`)

	s.mockAdapter.EXPECT().ValidateCallbackSignature("sig", []byte(payload)).Return(true)
	s.mockAdapter.EXPECT().
		ProcessCallback(gomock.Any(), gomock.Any()).
		Return(&providers.CallbackResult{
			ReferenceID:  "ref-" + userID.String(),
			EventID:      eventID,
			Status:       status,
			VendorStatus: vendorStatus,
			Note:         "vendor result: " + vendorStatus,
		}, nil)
	if aml != nil {
		s.mockAdapter.EXPECT().
			PerformAMLCheck(gomock.Any(), userID, gomock.Any()).
			Return(aml, nil)
	}

	return s.service.ProcessCallback(s.ctx, models.Callback{
		Provider:  adapterName,
		Payload:   payload,
		Signature: "sig",
	})
}

func (s *OrchestratorSuite) TestGetStatus() {
	s.Run("unknown user gets transient not started record", func() {
		userID := id.NewUserID()
		record, err := s.service.GetStatus(s.ctx, userID)
		s.NoError(err)
		s.Equal(models.StatusNotStarted, record.Status)
		s.Equal(models.LevelNone, record.Level)

		_, err = s.store.FindByUser(s.ctx, userID)
		s.Error(err) // never persisted
	})
}

func (s *OrchestratorSuite) TestInitiateVerification() {
	s.Run("starts attempt and persists encrypted personal data", func() {
		userID := id.NewUserID()
		handle := s.initiate(userID, models.LevelStandard)

		s.Equal(adapterName, handle.Provider)
		s.NotEmpty(handle.VerificationURL)

		record, err := s.store.FindByUser(s.ctx, userID)
		s.Require().NoError(err)
		s.Equal(models.StatusInProgress, record.Status)
		s.Equal(models.LevelStandard, record.Level)
		s.Equal(handle.ReferenceID, record.ReferenceID)
		s.NotEmpty(record.EncryptedPersonalData)
		s.NotContains(string(record.EncryptedPersonalData), "Ada")
		s.Require().Len(record.History, 1)
		s.Equal("Verification Started", record.History[0].Note)
	})

	s.Run("rejects initiation without an active session", func() {
		userID := id.NewUserID()
		_, err := s.service.InitiateVerification(s.ctx, models.InitiationRequest{
			UserID:    userID,
			Level:     models.LevelStandard,
			SessionID: "sess-never-opened",
		})
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeValidation))

		_, err = s.store.FindByUser(s.ctx, userID)
		s.Error(err) // nothing persisted without a session
	})

	s.Run("rejects duplicate while in flight", func() {
		userID := id.NewUserID()
		s.initiate(userID, models.LevelStandard)

		_, err := s.service.InitiateVerification(s.ctx, models.InitiationRequest{
			UserID:    userID,
			Level:     models.LevelStandard,
			SessionID: s.openSession(userID),
		})
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeValidation))
	})

	s.Run("rejects re-verification at or below approved level", func() {
		userID := id.NewUserID()
		s.initiate(userID, models.LevelStandard)
		s.Require().NoError(s.callback(userID, "evt-1", "clear", models.StatusApproved,
			&providers.AMLResult{Status: models.AMLStatusClear}))

		_, err := s.service.InitiateVerification(s.ctx, models.InitiationRequest{
			UserID:    userID,
			Level:     models.LevelBasic,
			SessionID: s.openSession(userID),
		})
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeValidation))
	})

	s.Run("rejects restart below the level previously attempted", func() {
		userID := id.NewUserID()
		s.initiate(userID, models.LevelStandard)
		s.Require().NoError(s.callback(userID, "evt-1", "rejected", models.StatusRejected, nil))

		_, err := s.service.InitiateVerification(s.ctx, models.InitiationRequest{
			UserID:    userID,
			Level:     models.LevelBasic,
			SessionID: s.openSession(userID),
		})
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeValidation))

		// restarting at the same level is allowed
		s.initiate(userID, models.LevelStandard)
		record, err := s.store.FindByUser(s.ctx, userID)
		s.Require().NoError(err)
		s.Equal(models.StatusInProgress, record.Status)
	})

	s.Run("allows upgrade above approved level", func() {
		userID := id.NewUserID()
		s.initiate(userID, models.LevelBasic)
		s.Require().NoError(s.callback(userID, "evt-1", "clear", models.StatusApproved,
			&providers.AMLResult{Status: models.AMLStatusClear}))

		s.initiate(userID, models.LevelAdvanced)
		record, err := s.store.FindByUser(s.ctx, userID)
		s.Require().NoError(err)
		s.Equal(models.StatusInProgress, record.Status)
		s.Equal(models.LevelAdvanced, record.Level)
	})

	s.Run("vendor failure surfaces as third party error", func() {
		userID := id.NewUserID()
		s.mockAdapter.EXPECT().
			InitiateVerification(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, providers.NewAdapterError(providers.ErrorVendorOutage, adapterName, "down", errors.New("503")))

		_, err := s.service.InitiateVerification(s.ctx, models.InitiationRequest{
			UserID: userID,
			Level:  models.LevelStandard,
		})
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeThirdParty))

		_, err = s.store.FindByUser(s.ctx, userID)
		s.Error(err) // nothing persisted on vendor failure
	})
}

func (s *OrchestratorSuite) TestProcessCallback() {
	s.Run("clear outcome approves with validity window", func() {
		userID := id.NewUserID()
		s.initiate(userID, models.LevelStandard)
		s.Require().NoError(s.callback(userID, "evt-1", "clear", models.StatusApproved,
			&providers.AMLResult{Status: models.AMLStatusClear, RiskScore: 0.1, RiskBand: "low"}))

		record, err := s.store.FindByUser(s.ctx, userID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, record.Status)
		s.Require().NotNil(record.VerifiedAt)
		s.Equal(s.now, *record.VerifiedAt)
		s.Require().NotNil(record.ExpiresAt)
		s.Equal(s.now.Add(approvalValidity), *record.ExpiresAt)
		s.Equal(models.AMLStatusClear, record.AMLStatus)
		s.False(record.SecurityFlags.RequiresReview)

		messages := s.notifier.Messages()
		s.Require().Len(messages, 1)
		s.Equal(userID, messages[0].UserID)
		s.Contains(messages[0].Subject, "approved")
	})

	s.Run("duplicate event id is a no-op", func() {
		userID := id.NewUserID()
		s.initiate(userID, models.LevelStandard)
		s.Require().NoError(s.callback(userID, "evt-1", "clear", models.StatusApproved,
			&providers.AMLResult{Status: models.AMLStatusClear}))

		before, err := s.store.FindByUser(s.ctx, userID)
		s.Require().NoError(err)

		// redelivery: same event id, no AML expectation this time
		s.Require().NoError(s.callback(userID, "evt-1", "clear", models.StatusApproved, nil))

		after, err := s.store.FindByUser(s.ctx, userID)
		s.Require().NoError(err)
		s.Equal(before.History, after.History)
		s.Equal(before.AppliedEvents, after.AppliedEvents)

		events, err := s.auditStore.ListByUser(s.ctx, userID)
		s.Require().NoError(err)
		var duplicates int
		for _, e := range events {
			if e.Action == audit.ActionCallbackDuplicate {
				duplicates++
			}
		}
		s.Equal(1, duplicates)
	})

	s.Run("aml hit forces review on approval", func() {
		userID := id.NewUserID()
		s.initiate(userID, models.LevelStandard)
		s.Require().NoError(s.callback(userID, "evt-1", "clear", models.StatusApproved,
			&providers.AMLResult{Status: models.AMLStatusReview, HighRisk: true, RiskScore: 0.8, RiskBand: "high"}))

		record, err := s.store.FindByUser(s.ctx, userID)
		s.Require().NoError(err)
		s.Equal(models.StatusNeedsReview, record.Status)
		s.True(record.SecurityFlags.RequiresReview)
		s.True(record.SecurityFlags.HighRisk)
	})

	s.Run("aml failure downgrades approval to review", func() {
		userID := id.NewUserID()
		s.initiate(userID, models.LevelStandard)

		payload := json.RawMessage(`{"result":"clear"}`)
		s.mockAdapter.EXPECT().ValidateCallbackSignature("sig", []byte(payload)).Return(true)
		s.mockAdapter.EXPECT().
			ProcessCallback(gomock.Any(), gomock.Any()).
			Return(&providers.CallbackResult{
				ReferenceID: "ref-" + userID.String(),
				EventID:     "evt-1",
				Status:      models.StatusApproved,
			}, nil)
		s.mockAdapter.EXPECT().
			PerformAMLCheck(gomock.Any(), userID, gomock.Any()).
			Return(nil, providers.NewAdapterError(providers.ErrorVendorOutage, adapterName, "down", nil))

		s.Require().NoError(s.service.ProcessCallback(s.ctx, models.Callback{
			Provider: adapterName, Payload: payload, Signature: "sig",
		}))

		record, err := s.store.FindByUser(s.ctx, userID)
		s.Require().NoError(err)
		s.Equal(models.StatusNeedsReview, record.Status)
		s.True(record.SecurityFlags.RequiresReview)
	})

	s.Run("invalid signature is rejected before parsing", func() {
		s.mockAdapter.EXPECT().ValidateCallbackSignature("bad", gomock.Any()).Return(false)

		err := s.service.ProcessCallback(s.ctx, models.Callback{
			Provider:  adapterName,
			Payload:   json.RawMessage(`{}`),
			Signature: "bad",
		})
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeSecurity))
	})

	s.Run("unknown provider is rejected", func() {
		err := s.service.ProcessCallback(s.ctx, models.Callback{Provider: "nosuch"})
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
	})

	s.Run("unknown reference is rejected", func() {
		payload := json.RawMessage(`{}`)
		s.mockAdapter.EXPECT().ValidateCallbackSignature("sig", []byte(payload)).Return(true)
		s.mockAdapter.EXPECT().
			ProcessCallback(gomock.Any(), gomock.Any()).
			Return(&providers.CallbackResult{ReferenceID: "ref-unknown", EventID: "e"}, nil)

		err := s.service.ProcessCallback(s.ctx, models.Callback{
			Provider: adapterName, Payload: payload, Signature: "sig",
		})
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
	})

	s.Run("illegal transition is a conflict", func() {
		userID := id.NewUserID()
		s.initiate(userID, models.LevelStandard)
		s.Require().NoError(s.callback(userID, "evt-1", "rejected", models.StatusRejected, nil))

		// vendor now claims approved after a rejection
		payload := json.RawMessage(`{"result":"clear"}`)
		s.mockAdapter.EXPECT().ValidateCallbackSignature("sig", []byte(payload)).Return(true)
		s.mockAdapter.EXPECT().
			ProcessCallback(gomock.Any(), gomock.Any()).
			Return(&providers.CallbackResult{
				ReferenceID: "ref-" + userID.String(),
				EventID:     "evt-2",
				Status:      models.StatusApproved,
			}, nil)

		err := s.service.ProcessCallback(s.ctx, models.Callback{
			Provider: adapterName, Payload: payload, Signature: "sig",
		})
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeConflict))
	})
}

func (s *OrchestratorSuite) TestIsVerified() {
	s.Run("level ordering is honoured", func() {
		userID := id.NewUserID()
		s.initiate(userID, models.LevelAdvanced)
		s.Require().NoError(s.callback(userID, "evt-1", "clear", models.StatusApproved,
			&providers.AMLResult{Status: models.AMLStatusClear}))

		for _, level := range []models.Level{models.LevelBasic, models.LevelStandard, models.LevelAdvanced} {
			ok, err := s.service.IsVerified(s.ctx, userID, level)
			s.NoError(err)
			s.True(ok, "should satisfy level %s", level)
		}
		ok, err := s.service.IsVerified(s.ctx, userID, models.LevelEnhanced)
		s.NoError(err)
		s.False(ok)
	})

	s.Run("expired approval does not verify", func() {
		userID := id.NewUserID()
		s.initiate(userID, models.LevelStandard)
		s.Require().NoError(s.callback(userID, "evt-1", "clear", models.StatusApproved,
			&providers.AMLResult{Status: models.AMLStatusClear}))

		later := requestcontext.WithTime(context.Background(), s.now.Add(approvalValidity+time.Hour))
		ok, err := s.service.IsVerified(later, userID, models.LevelStandard)
		s.NoError(err)
		s.False(ok)
	})

	s.Run("unknown user is not verified", func() {
		ok, err := s.service.IsVerified(s.ctx, id.NewUserID(), models.LevelBasic)
		s.NoError(err)
		s.False(ok)
	})
}

func (s *OrchestratorSuite) TestIsEligibleForTrading() {
	s.Run("clean standard approval is eligible", func() {
		userID := id.NewUserID()
		s.initiate(userID, models.LevelStandard)
		s.Require().NoError(s.callback(userID, "evt-1", "clear", models.StatusApproved,
			&providers.AMLResult{Status: models.AMLStatusClear}))

		ok, err := s.service.IsEligibleForTrading(s.ctx, userID)
		s.NoError(err)
		s.True(ok)
	})

	s.Run("basic level is not enough", func() {
		userID := id.NewUserID()
		s.initiate(userID, models.LevelBasic)
		s.Require().NoError(s.callback(userID, "evt-1", "clear", models.StatusApproved,
			&providers.AMLResult{Status: models.AMLStatusClear}))

		ok, err := s.service.IsEligibleForTrading(s.ctx, userID)
		s.NoError(err)
		s.False(ok)
	})

	s.Run("review flag blocks trading", func() {
		userID := id.NewUserID()
		s.initiate(userID, models.LevelStandard)
		s.Require().NoError(s.callback(userID, "evt-1", "clear", models.StatusApproved,
			&providers.AMLResult{Status: models.AMLStatusReview, HighRisk: true}))

		ok, err := s.service.IsEligibleForTrading(s.ctx, userID)
		s.NoError(err)
		s.False(ok)
	})
}

func (s *OrchestratorSuite) TestListPendingReview() {
	s.Run("pages flagged records newest first", func() {
		var flagged []id.UserID
		for i := 0; i < 3; i++ {
			userID := id.NewUserID()
			s.ctx = requestcontext.WithTime(context.Background(), s.now.Add(time.Duration(i)*time.Minute))
			s.initiate(userID, models.LevelStandard)
			s.Require().NoError(s.callback(userID, "evt-1", "consider", models.StatusNeedsReview,
				&providers.AMLResult{Status: models.AMLStatusClear}))
			flagged = append(flagged, userID)
		}

		page, err := s.service.ListPendingReview(s.ctx, 2, 0)
		s.Require().NoError(err)
		s.Require().Len(page, 2)
		s.Equal(flagged[2], page[0].UserID)
		s.Equal(flagged[1], page[1].UserID)

		rest, err := s.service.ListPendingReview(s.ctx, 2, 2)
		s.Require().NoError(err)
		s.Require().Len(rest, 1)
		s.Equal(flagged[0], rest[0].UserID)
	})
}

func (s *OrchestratorSuite) TestPersonalData() {
	s.Run("round trips through encryption", func() {
		userID := id.NewUserID()
		s.initiate(userID, models.LevelStandard)

		data, err := s.service.PersonalData(s.ctx, userID)
		s.Require().NoError(err)
		s.JSONEq(`{"firstName":"Ada"}`, string(data))
	})

	s.Run("missing record is not found", func() {
		_, err := s.service.PersonalData(s.ctx, id.NewUserID())
		s.Require().Error(err)
		s.True(domainerrors.HasCode(err, domainerrors.CodeNotFound))
	})
}
