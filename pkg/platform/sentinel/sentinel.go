package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and blob backends return
// these (optionally wrapped) so services can translate them into coded domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: record, session, or document does not exist in the store
// - ErrExpired: session or vendor handle has passed its expiry
// - ErrConflict: write lost against a concurrent update
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: backing service temporarily unavailable
//
// For bad input, use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
