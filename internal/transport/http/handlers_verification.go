package httptransport

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	domainerrors "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain-errors"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/requestcontext"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/models"
)

// maxCallbackBytes caps the webhook body read. Vendor payloads are small;
// anything larger is not a legitimate callback.
const maxCallbackBytes = 1 << 20

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	record, err := h.verification.GetStatus(ctx, requestcontext.UserID(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(record))
}

type initiateRequest struct {
	Level        string          `json:"level" validate:"required"`
	SessionID    string          `json:"sessionId" validate:"required"`
	PersonalData json.RawMessage `json:"personalData" validate:"required"`
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid initiation request"))
		return
	}

	level := models.ParseLevel(req.Level)
	if level == models.LevelNone {
		writeError(w, domainerrors.Newf(domainerrors.CodeValidation, "unknown verification level %q", req.Level))
		return
	}

	handle, err := h.verification.InitiateVerification(ctx, models.InitiationRequest{
		UserID:       requestcontext.UserID(ctx),
		Level:        level,
		SessionID:    req.SessionID,
		PersonalData: req.PersonalData,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "verification initiation rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, handle)
}

// handleCallback receives a vendor webhook. The raw body and the signature
// header travel to the adapter untouched so signature verification covers
// exactly the bytes the vendor signed.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "unreadable callback body"))
		return
	}

	err = h.verification.ProcessCallback(ctx, models.Callback{
		Provider:  provider,
		Payload:   payload,
		Signature: r.Header.Get("X-Signature"),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "vendor callback rejected",
			"provider", provider,
			"request_id", requestcontext.RequestID(ctx),
			"error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

func (h *Handler) handleTradingEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	eligible, err := h.verification.IsEligibleForTrading(ctx, requestcontext.UserID(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"eligible": eligible})
}

// pendingReviewItem is the admin review-queue view of one record.
type pendingReviewItem struct {
	UserID    string               `json:"userId"`
	Status    models.Status        `json:"status"`
	Level     models.Level         `json:"level"`
	AMLStatus models.AMLStatus     `json:"amlStatus,omitempty"`
	Flags     models.SecurityFlags `json:"flags"`
	RiskScore float64              `json:"riskScore"`
}

func (h *Handler) handlePendingReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, err := h.verification.ListPendingReview(ctx, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]pendingReviewItem, 0, len(records))
	for _, record := range records {
		items = append(items, pendingReviewItem{
			UserID:    record.UserID.String(),
			Status:    record.Status,
			Level:     record.Level,
			AMLStatus: record.AMLStatus,
			Flags:     record.SecurityFlags,
			RiskScore: record.RiskScore,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handlePersonalData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid user id"))
		return
	}

	data, err := h.verification.PersonalData(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
