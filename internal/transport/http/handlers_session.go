package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	domainerrors "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain-errors"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/requestcontext"
)

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, err := h.sessions.GetOrCreateSession(ctx, requestcontext.UserID(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type progressRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	Step      int    `json:"step" validate:"required"`
}

func (h *Handler) handleSessionProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, domainerrors.Wrap(err, domainerrors.CodeValidation, "invalid progress request"))
		return
	}

	session, err := h.sessions.AdvanceProgress(ctx, requestcontext.UserID(ctx), req.SessionID, req.Step)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleSessionInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid user id"))
		return
	}

	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "administrative action"
	}

	if err := h.sessions.InvalidateSession(ctx, userID, chi.URLParam(r, "sessionID"), reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
