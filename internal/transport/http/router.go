// Package httptransport is the thin HTTP layer. Handlers decode, validate
// and delegate to domain services; business rules live behind the service
// interfaces.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/middleware/auth"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/middleware/metadata"

	documentmodels "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/models"
	documentservice "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/service"
	sessionmodels "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/session/models"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/models"
)

// VerificationService is the orchestrator surface the transport consumes.
type VerificationService interface {
	GetStatus(ctx context.Context, userID id.UserID) (*models.VerificationRecord, error)
	InitiateVerification(ctx context.Context, req models.InitiationRequest) (*models.SessionHandle, error)
	ProcessCallback(ctx context.Context, cb models.Callback) error
	IsEligibleForTrading(ctx context.Context, userID id.UserID) (bool, error)
	ListPendingReview(ctx context.Context, limit, offset int) ([]*models.VerificationRecord, error)
	PersonalData(ctx context.Context, userID id.UserID) ([]byte, error)
}

// SessionService is the session lifecycle surface the transport consumes.
type SessionService interface {
	GetOrCreateSession(ctx context.Context, userID id.UserID) (*sessionmodels.Session, error)
	AdvanceProgress(ctx context.Context, userID id.UserID, sessionID string, step int) (*sessionmodels.Session, error)
	InvalidateSession(ctx context.Context, userID id.UserID, sessionID, reason string) error
}

// DocumentService is the custodian surface the transport consumes.
type DocumentService interface {
	Upload(ctx context.Context, req documentservice.UploadRequest) (*documentmodels.Document, error)
	Download(ctx context.Context, documentID id.DocumentID) (*documentmodels.Document, []byte, error)
	List(ctx context.Context, userID id.UserID) ([]*documentmodels.Document, error)
	SoftDelete(ctx context.Context, documentID id.DocumentID, reason string) error
	ProcessLiveCapture(ctx context.Context, req documentservice.CaptureRequest) (*documentmodels.LiveCapture, error)
}

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	verification VerificationService
	sessions     SessionService
	documents    DocumentService
	validate     *validator.Validate
	logger       *slog.Logger
}

// NewHandler wires the transport handler.
func NewHandler(verification VerificationService, sessions SessionService, documents DocumentService, logger *slog.Logger) *Handler {
	return &Handler{
		verification: verification,
		sessions:     sessions,
		documents:    documents,
		validate:     validator.New(),
		logger:       logger,
	}
}

// NewRouter wires all endpoints. Vendor callbacks and operational endpoints
// are public; everything else requires a bearer token, and the admin group
// additionally requires the admin role.
func NewRouter(h *Handler, tokenValidator *auth.Validator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// webhook endpoint authenticates by signature, not bearer token
	r.Post("/kyc/callback/{provider}", h.handleCallback)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokenValidator, logger))

		r.Get("/kyc/status", h.handleStatus)
		r.Post("/kyc/initiate", h.handleInitiate)
		r.Get("/kyc/eligibility/trading", h.handleTradingEligibility)

		r.Post("/kyc/session", h.handleSession)
		r.Post("/kyc/session/progress", h.handleSessionProgress)

		r.Post("/kyc/documents", h.handleDocumentUpload)
		r.Get("/kyc/documents", h.handleDocumentList)
		r.Get("/kyc/documents/{documentID}", h.handleDocumentDownload)
		r.Delete("/kyc/documents/{documentID}", h.handleDocumentDelete)
		r.Post("/kyc/live-capture", h.handleLiveCapture)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin(logger))

			r.Get("/admin/kyc/pending-review", h.handlePendingReview)
			r.Get("/admin/kyc/users/{userID}/personal-data", h.handlePersonalData)
			r.Delete("/admin/kyc/users/{userID}/sessions/{sessionID}", h.handleSessionInvalidate)
		})
	})

	return r
}

// statusResponse is the caller-facing view of a verification record. The
// encrypted payload and vendor internals stay server-side.
type statusResponse struct {
	Status     models.Status         `json:"status"`
	Level      models.Level          `json:"level"`
	AMLStatus  models.AMLStatus      `json:"amlStatus,omitempty"`
	History    []models.HistoryEntry `json:"history,omitempty"`
	Flags      models.SecurityFlags  `json:"flags"`
	VerifiedAt *time.Time            `json:"verifiedAt,omitempty"`
	ExpiresAt  *time.Time            `json:"expiresAt,omitempty"`
}

func toStatusResponse(record *models.VerificationRecord) statusResponse {
	return statusResponse{
		Status:     record.Status,
		Level:      record.Level,
		AMLStatus:  record.AMLStatus,
		History:    record.History,
		Flags:      record.SecurityFlags,
		VerifiedAt: record.VerifiedAt,
		ExpiresAt:  record.ExpiresAt,
	}
}
