package models

import (
	"time"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
)

// AMLStatus is the outcome of the most recent watchlist screening.
type AMLStatus string

const (
	AMLStatusUnknown AMLStatus = ""
	AMLStatusClear   AMLStatus = "CLEAR"
	AMLStatusReview  AMLStatus = "REVIEW"
	AMLStatusBlocked AMLStatus = "BLOCKED"
)

// SecurityFlags are risk indicators extracted from AML screening and manual
// review decisions.
type SecurityFlags struct {
	RequiresReview     bool `json:"requiresReview"`
	HighRisk           bool `json:"highRisk"`
	RestrictedRegion   bool `json:"restrictedRegion"`
	PoliticallyExposed bool `json:"politicallyExposed"`
}

// HistoryEntry is one transition in a record's append-only history.
type HistoryEntry struct {
	Status     Status    `json:"status"`
	Note       string    `json:"note"`
	OccurredAt time.Time `json:"occurredAt"`
}

// VerificationRecord is the single logical verification record per user.
// History never shrinks; Status moves only along the workflow graph.
type VerificationRecord struct {
	UserID id.UserID
	Status Status
	Level  Level
	// Provider names the adapter that owns the in-flight attempt.
	Provider string
	// ReferenceID is the vendor-side correlation key.
	ReferenceID string
	// EncryptedPersonalData is opaque ciphertext produced by the envelope
	// protector under the "personal-data" purpose.
	EncryptedPersonalData []byte
	History               []HistoryEntry
	// AppliedEvents records vendor callback event IDs already applied, so
	// redelivered webhooks are no-ops.
	AppliedEvents []string
	SecurityFlags SecurityFlags
	AMLStatus     AMLStatus
	RiskScore     float64
	VerifiedAt    *time.Time
	ExpiresAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewRecord returns a fresh record in the NotStarted state.
func NewRecord(userID id.UserID, now time.Time) *VerificationRecord {
	return &VerificationRecord{
		UserID:    userID,
		Status:    StatusNotStarted,
		Level:     LevelNone,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendHistory adds one transition entry and bumps UpdatedAt.
func (r *VerificationRecord) AppendHistory(status Status, note string, at time.Time) {
	r.History = append(r.History, HistoryEntry{Status: status, Note: note, OccurredAt: at})
	r.UpdatedAt = at
}

// HasAppliedEvent reports whether a vendor event ID was already processed.
func (r *VerificationRecord) HasAppliedEvent(eventID string) bool {
	if eventID == "" {
		return false
	}
	for _, applied := range r.AppliedEvents {
		if applied == eventID {
			return true
		}
	}
	return false
}

// MarkEventApplied records a vendor event ID as processed.
func (r *VerificationRecord) MarkEventApplied(eventID string) {
	if eventID == "" {
		return
	}
	r.AppliedEvents = append(r.AppliedEvents, eventID)
}

// IsExpired reports whether an approval has passed its validity window.
func (r *VerificationRecord) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Clone returns a deep copy so in-memory stores never leak shared slices.
func (r *VerificationRecord) Clone() *VerificationRecord {
	cp := *r
	cp.History = append([]HistoryEntry(nil), r.History...)
	cp.AppliedEvents = append([]string(nil), r.AppliedEvents...)
	cp.EncryptedPersonalData = append([]byte(nil), r.EncryptedPersonalData...)
	if r.VerifiedAt != nil {
		t := *r.VerifiedAt
		cp.VerifiedAt = &t
	}
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}
