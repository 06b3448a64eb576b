package audit

import (
	"time"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
)

// Event is one immutable entry in the verification audit trail. Events are
// append-only: no component updates or deletes them. Keep the type
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	UserID    id.UserID
	Action    string
	Details   string
	IPAddress string
	UserAgent string
	// RequestID correlates the event with the HTTP request chain.
	RequestID string
	// TraceID carries the OpenTelemetry trace for cross-service correlation.
	TraceID string
}

// Action names recorded by the verification components.
const (
	ActionVerificationStarted  = "verification_started"
	ActionVerificationApproved = "verification_approved"
	ActionVerificationRejected = "verification_rejected"
	ActionVerificationReview   = "verification_needs_review"
	ActionVerificationPending  = "verification_pending"
	ActionVerificationExpired  = "verification_expired"
	ActionCallbackReceived     = "callback_received"
	ActionCallbackDuplicate    = "callback_duplicate_ignored"
	ActionAMLCheckCompleted    = "aml_check_completed"

	ActionSessionCreated     = "session_created"
	ActionSessionExtended    = "session_extended"
	ActionSessionExpired     = "session_expired"
	ActionSessionInvalidated = "session_invalidated"

	ActionDocumentUploaded   = "document_uploaded"
	ActionDocumentDownloaded = "document_downloaded"
	ActionDocumentDeleted    = "document_deleted"
	ActionDocumentPurged     = "document_purged"
	ActionLiveCaptureStored  = "live_capture_stored"
	ActionIntegrityMismatch  = "document_integrity_mismatch"
)
