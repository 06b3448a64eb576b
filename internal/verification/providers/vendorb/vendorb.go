// Package vendorb implements the adapter for the "vendorb" verification
// vendor: HMAC-signed requests over method+path+timestamp, single-call
// verification creation, base64 HMAC-SHA256 webhook signatures.
package vendorb

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/requestcontext"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/platform/config"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/models"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/providers"
)

const (
	// Name is the routing key this adapter registers under.
	Name = "vendorb"

	sessionValidity = 45 * time.Minute
	requestTimeout  = 15 * time.Second
)

// Adapter talks to the vendorb REST API.
type Adapter struct {
	baseURL       string
	signingSecret string
	webhookSecret string
	httpClient    *http.Client
	logger        *slog.Logger
}

// New builds a vendorb adapter from vendor config.
func New(cfg config.VendorConfig, logger *slog.Logger) *Adapter {
	return &Adapter{
		baseURL:       cfg.BaseURL,
		signingSecret: cfg.SigningSecret,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    &http.Client{Timeout: requestTimeout},
		logger:        logger,
	}
}

func (a *Adapter) Name() string { return Name }

type verificationRequest struct {
	SubjectRef string          `json:"subject_ref"`
	Tier       string          `json:"tier"`
	Identity   json.RawMessage `json:"identity,omitempty"`
}

type verificationResponse struct {
	VerificationID string `json:"verification_id"`
	AccessToken    string `json:"access_token"`
	RedirectURL    string `json:"redirect_url"`
}

// InitiateVerification opens a vendorb verification in one call. vendorb has
// no separate applicant object, so each attempt gets a fresh reference.
func (a *Adapter) InitiateVerification(ctx context.Context, req models.InitiationRequest, _ *models.VerificationRecord) (*models.SessionHandle, error) {
	body := verificationRequest{
		SubjectRef: req.UserID.String(),
		Tier:       string(req.Level),
		Identity:   req.PersonalData,
	}
	var resp verificationResponse
	if err := a.doJSON(ctx, http.MethodPost, "/api/verifications", body, &resp); err != nil {
		return nil, err
	}
	if resp.VerificationID == "" {
		return nil, providers.NewAdapterError(providers.ErrorBadData, Name, "response missing verification_id", nil)
	}

	return &models.SessionHandle{
		Provider:        Name,
		ReferenceID:     resp.VerificationID,
		VerificationURL: resp.RedirectURL,
		Token:           resp.AccessToken,
		ExpiresAt:       requestcontext.Now(ctx).Add(sessionValidity),
	}, nil
}

type webhookPayload struct {
	NotificationID string `json:"notification_id"`
	VerificationID string `json:"verification_id"`
	State          string `json:"state"`
	Detail         string `json:"detail"`
}

// ProcessCallback interprets a vendorb webhook body.
func (a *Adapter) ProcessCallback(_ context.Context, cb models.Callback) (*providers.CallbackResult, error) {
	var payload webhookPayload
	if err := json.Unmarshal(cb.Payload, &payload); err != nil {
		return nil, providers.NewAdapterError(providers.ErrorBadData, Name, "malformed webhook payload", err)
	}
	if payload.VerificationID == "" {
		return nil, providers.NewAdapterError(providers.ErrorBadData, Name, "webhook missing verification_id", nil)
	}
	note := payload.Detail
	if note == "" {
		note = fmt.Sprintf("vendor state: %s", payload.State)
	}
	return &providers.CallbackResult{
		ReferenceID:  payload.VerificationID,
		EventID:      payload.NotificationID,
		Status:       providers.MapVendorStatus(payload.State),
		VendorStatus: payload.State,
		Note:         note,
	}, nil
}

type screeningResponse struct {
	Outcome   string  `json:"outcome"`
	PEPMatch  bool    `json:"pep_match"`
	RiskScore float64 `json:"risk_score"`
	RiskBand  string  `json:"risk_band"`
}

// PerformAMLCheck runs a vendorb sanctions/PEP screening for the
// verification tied to the record.
func (a *Adapter) PerformAMLCheck(ctx context.Context, userID id.UserID, record *models.VerificationRecord) (*providers.AMLResult, error) {
	verificationID := ""
	if record != nil {
		verificationID = record.ReferenceID
	}
	if verificationID == "" {
		return nil, providers.NewAdapterError(providers.ErrorBadData, Name, "no verification reference for screening", nil)
	}

	var resp screeningResponse
	path := "/api/verifications/" + verificationID + "/screening"
	if err := a.doJSON(ctx, http.MethodPost, path, struct{}{}, &resp); err != nil {
		return nil, err
	}

	status := models.AMLStatusClear
	switch resp.Outcome {
	case "blocked":
		status = models.AMLStatusBlocked
	case "review":
		status = models.AMLStatusReview
	}
	a.logger.Info("aml screening completed",
		"adapter", Name,
		"user_id", userID.String(),
		"outcome", resp.Outcome,
		"risk_band", resp.RiskBand)

	return &providers.AMLResult{
		Status:             status,
		PoliticallyExposed: resp.PEPMatch,
		HighRisk:           resp.RiskBand == "high",
		RiskScore:          resp.RiskScore,
		RiskBand:           resp.RiskBand,
	}, nil
}

// ValidateCallbackSignature checks the base64 HMAC-SHA256 of the raw payload.
func (a *Adapter) ValidateCallbackSignature(signature string, payload []byte) bool {
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// signRequest computes the vendorb request signature over method, path and
// unix timestamp, each on its own line.
func (a *Adapter) signRequest(method, path string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(a.signingSecret))
	fmt.Fprintf(mac, "%s\n%s\n%d", method, path, ts)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
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
	ts := requestcontext.Now(ctx).Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Sig", a.signRequest(method, path, ts))
	req.Header.Set("X-Sig-Ts", strconv.FormatInt(ts, 10))

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
		return providers.NewAdapterError(providers.ErrorAuthentication, Name, "signature rejected", nil)
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
