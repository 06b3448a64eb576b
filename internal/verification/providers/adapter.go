// Package providers defines the capability contract every verification
// vendor adapter implements, plus the registry and router that select the
// active adapter. Vendors differ only in wire protocol and signing scheme;
// the orchestrator never sees past this interface.
package providers

//go:generate mockgen -source=adapter.go -destination=mocks/mocks.go -package=mocks Adapter

import (
	"context"
	"fmt"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/models"
)

// CallbackResult is the adapter's interpretation of a vendor webhook after
// signature validation: the vendor vocabulary mapped onto internal status.
type CallbackResult struct {
	ReferenceID  string
	EventID      string
	Status       models.Status
	VendorStatus string
	Note         string
}

// AMLResult carries the risk indicators extracted from a vendor watchlist
// screening.
type AMLResult struct {
	Status             models.AMLStatus
	PoliticallyExposed bool
	HighRisk           bool
	RiskScore          float64
	RiskBand           string
}

// Adapter is the capability set one external verification vendor exposes.
type Adapter interface {
	// Name returns the adapter's routing key (e.g. "vendora").
	Name() string

	// InitiateVerification creates a vendor-side applicant/session and
	// returns a short-lived handle for the hosted verification flow.
	InitiateVerification(ctx context.Context, req models.InitiationRequest, existing *models.VerificationRecord) (*models.SessionHandle, error)

	// ProcessCallback interprets an inbound webhook payload. Callers must
	// have validated the signature first.
	ProcessCallback(ctx context.Context, cb models.Callback) (*CallbackResult, error)

	// PerformAMLCheck screens the user against the vendor's watchlists.
	PerformAMLCheck(ctx context.Context, userID id.UserID, record *models.VerificationRecord) (*AMLResult, error)

	// ValidateCallbackSignature reports whether signature authenticates the
	// raw webhook payload. Implementations must compare in constant time.
	ValidateCallbackSignature(signature string, payload []byte) bool
}

// MapVendorStatus translates the vendor status vocabulary into the internal
// enum. Unrecognized values stay Pending so an unknown outcome never grants
// or removes privileges.
func MapVendorStatus(vendorStatus string) models.Status {
	switch vendorStatus {
	case "clear", "approved", "passed":
		return models.StatusApproved
	case "consider", "onhold", "review":
		return models.StatusNeedsReview
	case "rejected", "declined":
		return models.StatusRejected
	default:
		return models.StatusPending
	}
}

// Registry maintains the closed set of configured adapters.
type Registry struct {
	adapters map[string]Adapter
	// names preserves registration order for deterministic distribution.
	names []string
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its name.
func (r *Registry) Register(a Adapter) error {
	name := a.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter %s already registered", name)
	}
	r.adapters[name] = a
	r.names = append(r.names, name)
	return nil
}

// Get retrieves an adapter by name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns adapter names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int { return len(r.adapters) }
