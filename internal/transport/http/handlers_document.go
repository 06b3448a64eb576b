package httptransport

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	domainerrors "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain-errors"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/requestcontext"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/models"
	documentservice "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/service"
)

// maxMultipartBytes caps multipart request bodies at the transport edge. The
// custodian applies its own, stricter per-type size limits on the payload.
const maxMultipartBytes = 32 << 20

func (h *Handler) handleDocumentUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBytes)
	if err := r.ParseMultipartForm(maxMultipartBytes); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid multipart body"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "missing file part"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "unreadable file part"))
		return
	}

	doc, err := h.documents.Upload(ctx, documentservice.UploadRequest{
		UserID:      requestcontext.UserID(ctx),
		SessionID:   r.FormValue("sessionId"),
		Type:        models.DocumentType(r.FormValue("type")),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "document upload rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleDocumentList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.documents.List(ctx, requestcontext.UserID(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) handleDocumentDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	documentID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid document id"))
		return
	}

	doc, data, err := h.documents.Download(ctx, documentID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.OriginalFileName+`"`)
	w.Header().Set("Content-Length", strconv.FormatInt(int64(len(data)), 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleDocumentDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	documentID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid document id"))
		return
	}

	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "user request"
	}
	if err := h.documents.SoftDelete(ctx, documentID, reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLiveCapture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBytes)
	if err := r.ParseMultipartForm(maxMultipartBytes); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid multipart body"))
		return
	}

	file, _, err := r.FormFile("frame")
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "missing frame part"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "unreadable frame part"))
		return
	}

	// duplex document captures carry the reverse side as a second part
	var backData []byte
	if backFile, _, err := r.FormFile("backFrame"); err == nil {
		defer backFile.Close()
		backData, err = io.ReadAll(backFile)
		if err != nil {
			writeError(w, domainerrors.New(domainerrors.CodeValidation, "unreadable back frame part"))
			return
		}
	} else if !errors.Is(err, http.ErrMissingFile) {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid back frame part"))
		return
	}

	livenessScore, err := strconv.ParseFloat(r.FormValue("livenessScore"), 64)
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid liveness score"))
		return
	}
	capturedAt, err := time.Parse(time.RFC3339, r.FormValue("capturedAt"))
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid capture timestamp"))
		return
	}

	capture, err := h.documents.ProcessLiveCapture(ctx, documentservice.CaptureRequest{
		UserID:            requestcontext.UserID(ctx),
		SessionID:         r.FormValue("sessionId"),
		Type:              models.CaptureType(r.FormValue("type")),
		Data:              data,
		BackData:          backData,
		LivenessScore:     livenessScore,
		DeviceFingerprint: r.FormValue("deviceFingerprint"),
		CapturedAt:        capturedAt,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "live capture rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, capture)
}
