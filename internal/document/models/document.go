// Package models defines the identity document and live capture records
// managed by the document custodian. Metadata lives in the store; ciphertext
// lives in the blob store under the secure file name.
package models

import (
	"path/filepath"
	"time"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
)

// Status is the document lifecycle state.
type Status string

const (
	StatusUploaded Status = "UPLOADED"
	StatusCaptured Status = "CAPTURED"
	StatusDeleted  Status = "DELETED"
	// StatusPurged means the retention sweep destroyed the ciphertext; only
	// this metadata record remains for the audit trail.
	StatusPurged Status = "PURGED"
)

// DocumentType classifies what the upload shows.
type DocumentType string

const (
	TypePassport       DocumentType = "passport"
	TypeDrivingLicense DocumentType = "driving_license"
	TypeNationalID     DocumentType = "national_id"
	TypeProofOfAddress DocumentType = "proof_of_address"
)

// ValidDocumentType reports whether t is a recognised document type.
func ValidDocumentType(t DocumentType) bool {
	switch t {
	case TypePassport, TypeDrivingLicense, TypeNationalID, TypeProofOfAddress:
		return true
	}
	return false
}

// Document is the metadata record for one encrypted identity document.
type Document struct {
	ID     id.DocumentID `json:"id"`
	UserID id.UserID     `json:"userId"`
	// SessionID is the verification session the document was submitted under.
	SessionID string       `json:"sessionId"`
	Type      DocumentType `json:"type"`
	// SecureFileName is the blob key: a random name that leaks nothing about
	// the user or the original file.
	SecureFileName   string `json:"secureFileName"`
	OriginalFileName string `json:"originalFileName"`
	ContentType      string `json:"contentType"`
	SizeBytes        int64  `json:"sizeBytes"`
	// ContentHash is the hex SHA-256 of the plaintext, checked on download.
	ContentHash string     `json:"contentHash"`
	Status      Status     `json:"status"`
	UploadedAt  time.Time  `json:"uploadedAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// SecureFileName builds a blob key from a fresh document ID, keeping only
// the original extension.
func SecureFileName(documentID id.DocumentID, originalName string) string {
	return documentID.String() + filepath.Ext(originalName)
}

// CaptureType classifies a live capture frame.
type CaptureType string

const (
	CaptureSelfie        CaptureType = "selfie"
	CaptureDocumentFront CaptureType = "document_front"
	CaptureDocumentBack  CaptureType = "document_back"
)

// ValidCaptureType reports whether t is a recognised capture type.
func ValidCaptureType(t CaptureType) bool {
	switch t {
	case CaptureSelfie, CaptureDocumentFront, CaptureDocumentBack:
		return true
	}
	return false
}

// LiveCapture is the metadata record for one encrypted live capture frame
// taken during the verification flow.
type LiveCapture struct {
	ID     id.CaptureID `json:"id"`
	UserID id.UserID    `json:"userId"`
	// SessionID is the verification session the frame was captured in.
	SessionID      string      `json:"sessionId"`
	Type           CaptureType `json:"type"`
	SecureFileName string      `json:"secureFileName"`
	SizeBytes      int64       `json:"sizeBytes"`
	ContentHash    string      `json:"contentHash"`
	// Back* describe the optional second frame of a duplex document capture.
	// Both frames are hashed and encrypted independently but belong to this
	// one record.
	BackSecureFileName string `json:"backSecureFileName,omitempty"`
	BackSizeBytes      int64  `json:"backSizeBytes,omitempty"`
	BackContentHash    string `json:"backContentHash,omitempty"`
	// LivenessScore is the client SDK's anti-spoofing confidence, 0..1.
	LivenessScore float64 `json:"livenessScore"`
	// DeviceFingerprint ties the frame to the capturing device.
	DeviceFingerprint string    `json:"deviceFingerprint"`
	CapturedAt        time.Time `json:"capturedAt"`
	StoredAt          time.Time `json:"storedAt"`
}
