// Package domain holds the typed identifiers shared by every component.
// Distinct ID types prevent cross-entity assignment at compile time; parsing
// enforces the "valid, non-empty, non-nil UUID" invariant at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain-errors"
)

type (
	// UserID identifies the person undergoing verification.
	UserID uuid.UUID

	// DocumentID identifies a custodied identity document.
	DocumentID uuid.UUID

	// CaptureID identifies a live biometric capture.
	CaptureID uuid.UUID
)

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id UserID) String() string  { return uuid.UUID(id).String() }
func (id UserID) Bytes() []byte   { u := uuid.UUID(id); return u[:] }
func (id DocumentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) String() string {
	return uuid.UUID(id).String()
}
func (id CaptureID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CaptureID) String() string { return uuid.UUID(id).String() }

// MarshalText renders the ID as its canonical UUID string so JSON bodies
// carry strings, not raw byte arrays.
func (id UserID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id DocumentID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id CaptureID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(text []byte) error {
	parsed, err := ParseUserID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *DocumentID) UnmarshalText(text []byte) error {
	parsed, err := ParseDocumentID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *CaptureID) UnmarshalText(text []byte) error {
	parsed, err := ParseCaptureID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewUserID returns a fresh random user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewDocumentID returns a fresh random document ID.
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }

// NewCaptureID returns a fresh random capture ID.
func NewCaptureID() CaptureID { return CaptureID(uuid.New()) }

// ParseUserID parses and validates a user ID string.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseDocumentID parses and validates a document ID string.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s, "document id")
	return DocumentID(u), err
}

// ParseCaptureID parses and validates a capture ID string.
func ParseCaptureID(s string) (CaptureID, error) {
	u, err := parseUUID(s, "capture id")
	return CaptureID(u), err
}

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s is required", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s is not a valid UUID", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s must not be the nil UUID", kind)
	}
	return u, nil
}
