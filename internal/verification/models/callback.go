package models

import (
	"encoding/json"
	"time"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
)

// InitiationRequest asks for a new verification attempt at a given level.
// PersonalData is the applicant's submitted identity payload; the
// orchestrator encrypts it before anything touches persistence.
type InitiationRequest struct {
	UserID       id.UserID
	Level        Level
	SessionID    string
	PersonalData json.RawMessage
}

// SessionHandle is the short-lived vendor session returned to the caller so
// the client can hand the user to the hosted verification flow.
type SessionHandle struct {
	Provider        string    `json:"provider"`
	ReferenceID     string    `json:"referenceId"`
	VerificationURL string    `json:"verificationUrl"`
	Token           string    `json:"token"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// Callback is an inbound vendor webhook. The adapter validates Signature over
// the raw Payload before anything in it is trusted; EventID deduplicates
// redelivered webhooks.
type Callback struct {
	Provider     string
	ReferenceID  string
	EventID      string
	VendorStatus string
	Payload      json.RawMessage
	Signature    string
}
