// Package vendora implements the adapter for the "vendora" verification
// vendor: bearer-token REST API, applicant-then-session flow, hosted
// verification URL, hex HMAC-SHA256 webhook signatures.
package vendora

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/requestcontext"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/platform/config"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/models"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/providers"
)

const (
	// Name is the routing key this adapter registers under.
	Name = "vendora"

	sessionValidity = time.Hour
	requestTimeout  = 15 * time.Second
)

// Adapter talks to the vendora REST API.
type Adapter struct {
	baseURL       string
	apiToken      string
	webhookSecret string
	httpClient    *http.Client
	logger        *slog.Logger
}

// New builds a vendora adapter from vendor config.
func New(cfg config.VendorConfig, logger *slog.Logger) *Adapter {
	return &Adapter{
		baseURL:       cfg.BaseURL,
		apiToken:      cfg.APIToken,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    &http.Client{Timeout: requestTimeout},
		logger:        logger,
	}
}

func (a *Adapter) Name() string { return Name }

type applicantRequest struct {
	ExternalID string          `json:"external_id"`
	Level      string          `json:"level"`
	Profile    json.RawMessage `json:"profile,omitempty"`
}

type applicantResponse struct {
	ID string `json:"id"`
}

type sessionRequest struct {
	ApplicantID string `json:"applicant_id"`
	FlowLevel   string `json:"flow_level"`
}

type sessionResponse struct {
	Token   string `json:"token"`
	FlowURL string `json:"flow_url"`
}

// InitiateVerification creates (or reuses) a vendora applicant and opens a
// hosted verification session for it.
func (a *Adapter) InitiateVerification(ctx context.Context, req models.InitiationRequest, existing *models.VerificationRecord) (*models.SessionHandle, error) {
	applicantID := ""
	if existing != nil && existing.Provider == Name {
		applicantID = existing.ReferenceID
	}
	if applicantID == "" {
		created, err := a.createApplicant(ctx, req)
		if err != nil {
			return nil, err
		}
		applicantID = created
	}

	var sess sessionResponse
	body := sessionRequest{ApplicantID: applicantID, FlowLevel: string(req.Level)}
	if err := a.doJSON(ctx, http.MethodPost, "/v1/sessions", body, &sess); err != nil {
		return nil, err
	}

	return &models.SessionHandle{
		Provider:        Name,
		ReferenceID:     applicantID,
		VerificationURL: sess.FlowURL,
		Token:           sess.Token,
		ExpiresAt:       requestcontext.Now(ctx).Add(sessionValidity),
	}, nil
}

func (a *Adapter) createApplicant(ctx context.Context, req models.InitiationRequest) (string, error) {
	body := applicantRequest{
		ExternalID: req.UserID.String(),
		Level:      string(req.Level),
		Profile:    req.PersonalData,
	}
	var resp applicantResponse
	if err := a.doJSON(ctx, http.MethodPost, "/v1/applicants", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", providers.NewAdapterError(providers.ErrorBadData, Name, "applicant response missing id", nil)
	}
	return resp.ID, nil
}

type webhookPayload struct {
	EventID     string `json:"event_id"`
	ApplicantID string `json:"applicant_id"`
	Result      string `json:"result"`
	Reason      string `json:"reason"`
}

// ProcessCallback interprets a vendora webhook body.
func (a *Adapter) ProcessCallback(_ context.Context, cb models.Callback) (*providers.CallbackResult, error) {
	var payload webhookPayload
	if err := json.Unmarshal(cb.Payload, &payload); err != nil {
		return nil, providers.NewAdapterError(providers.ErrorBadData, Name, "malformed webhook payload", err)
	}
	if payload.ApplicantID == "" {
		return nil, providers.NewAdapterError(providers.ErrorBadData, Name, "webhook missing applicant_id", nil)
	}
	note := payload.Reason
	if note == "" {
		note = fmt.Sprintf("vendor result: %s", payload.Result)
	}
	return &providers.CallbackResult{
		ReferenceID:  payload.ApplicantID,
		EventID:      payload.EventID,
		Status:       providers.MapVendorStatus(payload.Result),
		VendorStatus: payload.Result,
		Note:         note,
	}, nil
}

type watchlistRequest struct {
	ApplicantID string `json:"applicant_id"`
}

type watchlistResponse struct {
	Result    string  `json:"result"`
	PEP       bool    `json:"pep"`
	HighRisk  bool    `json:"high_risk"`
	RiskScore float64 `json:"risk_score"`
	RiskBand  string  `json:"risk_band"`
}

// PerformAMLCheck runs a vendora watchlist screening against the applicant
// tied to the record.
func (a *Adapter) PerformAMLCheck(ctx context.Context, userID id.UserID, record *models.VerificationRecord) (*providers.AMLResult, error) {
	applicantID := ""
	if record != nil {
		applicantID = record.ReferenceID
	}
	if applicantID == "" {
		return nil, providers.NewAdapterError(providers.ErrorBadData, Name, "no applicant reference for AML check", nil)
	}

	var resp watchlistResponse
	if err := a.doJSON(ctx, http.MethodPost, "/v1/watchlist/checks", watchlistRequest{ApplicantID: applicantID}, &resp); err != nil {
		return nil, err
	}

	status := models.AMLStatusClear
	switch resp.Result {
	case "hit":
		status = models.AMLStatusBlocked
	case "potential_match":
		status = models.AMLStatusReview
	}
	a.logger.Info("aml screening completed",
		"adapter", Name,
		"user_id", userID.String(),
		"result", resp.Result,
		"risk_band", resp.RiskBand)

	return &providers.AMLResult{
		Status:             status,
		PoliticallyExposed: resp.PEP,
		HighRisk:           resp.HighRisk,
		RiskScore:          resp.RiskScore,
		RiskBand:           resp.RiskBand,
	}, nil
}

// ValidateCallbackSignature checks the hex HMAC-SHA256 of the raw payload.
func (a *Adapter) ValidateCallbackSignature(signature string, payload []byte) bool {
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (a *Adapter) doJSON(ctx context.Context, method, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return providers.NewAdapterError(providers.ErrorInternal, Name, "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return providers.NewAdapterError(providers.ErrorInternal, Name, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiToken)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return providers.NewAdapterError(providers.ErrorTimeout, Name, "request cancelled", err)
		}
		return providers.NewAdapterError(providers.ErrorVendorOutage, Name, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return providers.NewAdapterError(providers.ErrorBadData, Name, "read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return providers.NewAdapterError(providers.ErrorAuthentication, Name, "authentication rejected", nil)
	case resp.StatusCode == http.StatusNotFound:
		return providers.NewAdapterError(providers.ErrorNotFound, Name, "resource not found", nil)
	case resp.StatusCode >= 500:
		return providers.NewAdapterError(providers.ErrorVendorOutage, Name, fmt.Sprintf("vendor returned %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return providers.NewAdapterError(providers.ErrorBadData, Name, fmt.Sprintf("vendor rejected request: %s", string(respBody)), nil)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return providers.NewAdapterError(providers.ErrorBadData, Name, "decode response", err)
	}
	return nil
}
