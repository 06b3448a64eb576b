package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit"
	auditmemory "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/audit/store/memory"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/platform/middleware/auth"

	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/blobstore"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/envelope"
	documentservice "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/service"
	documentstore "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/document/store"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/notification"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/platform/config"
	sessionservice "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/session/service"
	sessionstore "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/session/store"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/models"
	"github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/providers"
	verificationservice "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/service"
	verificationstore "github.com/ResolveEnterteinment/crypto-stack-sub008/internal/verification/store"
)

const testSigningKey = "transport-test-signing-key"

// stubVendor is a deterministic in-process adapter so router tests exercise
// the full stack without HTTP calls to a vendor.
type stubVendor struct {
	initiations int
}

func (v *stubVendor) Name() string { return "stubvendor" }

func (v *stubVendor) InitiateVerification(_ context.Context, req models.InitiationRequest, _ *models.VerificationRecord) (*models.SessionHandle, error) {
	v.initiations++
	return &models.SessionHandle{
		Provider:        v.Name(),
		ReferenceID:     fmt.Sprintf("stub-ref-%d", v.initiations),
		VerificationURL: "https://verify.stub.example/flow",
		Token:           "stub-token",
		ExpiresAt:       time.Now().Add(time.Hour),
	}, nil
}

type stubWebhook struct {
	EventID     string `json:"event_id"`
	ReferenceID string `json:"reference_id"`
	Result      string `json:"result"`
}

func (v *stubVendor) ProcessCallback(_ context.Context, cb models.Callback) (*providers.CallbackResult, error) {
	var hook stubWebhook
	if err := json.Unmarshal(cb.Payload, &hook); err != nil {
		return nil, providers.NewAdapterError(providers.ErrorBadData, v.Name(), "malformed webhook", err)
	}
	return &providers.CallbackResult{
		ReferenceID:  hook.ReferenceID,
		EventID:      hook.EventID,
		Status:       providers.MapVendorStatus(hook.Result),
		VendorStatus: hook.Result,
	}, nil
}

func (v *stubVendor) PerformAMLCheck(context.Context, id.UserID, *models.VerificationRecord) (*providers.AMLResult, error) {
	return &providers.AMLResult{Status: models.AMLStatusClear, RiskScore: 0.05, RiskBand: "low"}, nil
}

func (v *stubVendor) ValidateCallbackSignature(signature string, _ []byte) bool {
	return signature == "valid-signature"
}

type RouterSuite struct {
	suite.Suite
	server *httptest.Server
	vendor *stubVendor
	userID id.UserID
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	protector, err := envelope.NewAESProtector(bytes.Repeat([]byte{7}, 32))
	s.Require().NoError(err)
	auditor := audit.NewPublisher(auditmemory.NewInMemoryStore())

	registry := providers.NewRegistry()
	s.vendor = &stubVendor{}
	s.Require().NoError(registry.Register(s.vendor))

	sessions := sessionservice.NewService(
		sessionstore.NewInMemoryStore(), auditor, nil, 30*time.Minute, logger)
	verification := verificationservice.NewService(
		verificationstore.NewInMemoryStore(),
		providers.NewRouter(registry, s.vendor.Name(), false),
		sessions, protector, auditor, notification.NewInMemorySink(), nil, logger)
	documents := documentservice.NewService(
		documentstore.NewInMemoryStore(), blobstore.NewInMemoryStore(),
		protector, auditor, nil, config.DocumentConfig{
			MaxUploadBytes:    1 << 20,
			AllowedExtensions: []string{".jpg", ".png", ".pdf"},
			RetentionWindow:   30 * 24 * time.Hour,
			CaptureMaxAge:     5 * time.Minute,
			CaptureMinBytes:   16,
		}, logger)

	handler := NewHandler(verification, sessions, documents, logger)
	s.server = httptest.NewServer(NewRouter(handler, auth.NewValidator(testSigningKey), logger))
	s.userID = id.NewUserID()
}

func (s *RouterSuite) TearDownTest() {
	s.server.Close()
}

func (s *RouterSuite) token(userID id.UserID, admin bool) string {
	claims := auth.Claims{
		Admin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSigningKey))
	s.Require().NoError(err)
	return signed
}

func (s *RouterSuite) do(method, path, token string, body io.Reader, contentType string) *http.Response {
	req, err := http.NewRequest(method, s.server.URL+path, body)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *RouterSuite) decode(resp *http.Response, out any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
}

// createSession opens a verification session for the token's user and
// returns its ID.
func (s *RouterSuite) createSession(token string) string {
	resp := s.do(http.MethodPost, "/kyc/session", token, nil, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var session struct {
		ID string `json:"id"`
	}
	s.decode(resp, &session)
	return session.ID
}

// initiate opens a session and starts a verification for the suite user,
// returning the vendor reference ID.
func (s *RouterSuite) initiate() string {
	token := s.token(s.userID, false)
	sessionID := s.createSession(token)

	body := fmt.Sprintf(`{"level":"STANDARD","sessionId":%q,"personalData":{"firstName":"Grace","lastName":"Hopper"}}`, sessionID)
	resp := s.do(http.MethodPost, "/kyc/initiate", token, strings.NewReader(body), "application/json")
	s.Require().Equal(http.StatusAccepted, resp.StatusCode)

	var handle models.SessionHandle
	s.decode(resp, &handle)
	return handle.ReferenceID
}

// callback delivers a signed stub webhook for the reference.
func (s *RouterSuite) callback(referenceID, result, eventID, signature string) *http.Response {
	payload, err := json.Marshal(stubWebhook{EventID: eventID, ReferenceID: referenceID, Result: result})
	s.Require().NoError(err)

	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/kyc/callback/stubvendor", bytes.NewReader(payload))
	s.Require().NoError(err)
	req.Header.Set("X-Signature", signature)
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *RouterSuite) TestHealthz() {
	resp := s.do(http.MethodGet, "/healthz", "", nil, "")
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func (s *RouterSuite) TestAuthRequired() {
	resp := s.do(http.MethodGet, "/kyc/status", "", nil, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = s.do(http.MethodGet, "/kyc/status", "not-a-token", nil, "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func (s *RouterSuite) TestStatusLifecycle() {
	s.Run("fresh user is not started", func() {
		resp := s.do(http.MethodGet, "/kyc/status", s.token(s.userID, false), nil, "")
		s.Equal(http.StatusOK, resp.StatusCode)

		var status statusResponse
		s.decode(resp, &status)
		s.Equal(models.StatusNotStarted, status.Status)
	})

	s.Run("initiation rejects unknown level", func() {
		resp := s.do(http.MethodPost, "/kyc/initiate", s.token(s.userID, false),
			strings.NewReader(`{"level":"PLATINUM","sessionId":"sess-1","personalData":{}}`), "application/json")
		s.Equal(http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	s.Run("initiation rejects a session the user does not hold", func() {
		resp := s.do(http.MethodPost, "/kyc/initiate", s.token(s.userID, false),
			strings.NewReader(`{"level":"STANDARD","sessionId":"sess-nobody-opened","personalData":{}}`), "application/json")
		s.Equal(http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	s.Run("approved callback flows through to status", func() {
		referenceID := s.initiate()

		resp := s.callback(referenceID, "approved", "evt-1", "valid-signature")
		s.Equal(http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = s.do(http.MethodGet, "/kyc/status", s.token(s.userID, false), nil, "")
		var status statusResponse
		s.decode(resp, &status)
		s.Equal(models.StatusApproved, status.Status)
		s.Equal(models.AMLStatusClear, status.AMLStatus)
		s.NotNil(status.VerifiedAt)
	})
}

func (s *RouterSuite) TestCallbackRejections() {
	referenceID := s.initiate()

	s.Run("bad signature", func() {
		resp := s.callback(referenceID, "approved", "evt-1", "wrong")
		s.Equal(http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})

	s.Run("unknown provider", func() {
		resp := s.do(http.MethodPost, "/kyc/callback/nosuchvendor", "",
			strings.NewReader(`{}`), "application/json")
		s.Equal(http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	s.Run("unknown reference", func() {
		resp := s.callback("no-such-ref", "approved", "evt-2", "valid-signature")
		s.Equal(http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})
}

func (s *RouterSuite) TestTradingEligibility() {
	referenceID := s.initiate()
	resp := s.callback(referenceID, "approved", "evt-1", "valid-signature")
	resp.Body.Close()

	resp = s.do(http.MethodGet, "/kyc/eligibility/trading", s.token(s.userID, false), nil, "")
	s.Equal(http.StatusOK, resp.StatusCode)

	var result map[string]bool
	s.decode(resp, &result)
	s.True(result["eligible"])
}

func (s *RouterSuite) TestSessionEndpoints() {
	token := s.token(s.userID, false)

	resp := s.do(http.MethodPost, "/kyc/session", token, nil, "")
	s.Equal(http.StatusOK, resp.StatusCode)

	var session struct {
		ID       string `json:"id"`
		Progress struct {
			CurrentStep int `json:"currentStep"`
		} `json:"progress"`
	}
	s.decode(resp, &session)
	s.NotEmpty(session.ID)
	s.Equal(1, session.Progress.CurrentStep)

	body, err := json.Marshal(map[string]any{"sessionId": session.ID, "step": 2})
	s.Require().NoError(err)
	resp = s.do(http.MethodPost, "/kyc/session/progress", token, bytes.NewReader(body), "application/json")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.decode(resp, &session)
	s.Equal(2, session.Progress.CurrentStep)

	s.Run("admin cannot invalidate under the wrong owner", func() {
		path := "/admin/kyc/users/" + id.NewUserID().String() + "/sessions/" + session.ID
		resp := s.do(http.MethodDelete, path, s.token(id.NewUserID(), true), nil, "")
		s.Equal(http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	s.Run("admin can invalidate", func() {
		path := "/admin/kyc/users/" + s.userID.String() + "/sessions/" + session.ID
		resp := s.do(http.MethodDelete, path, s.token(id.NewUserID(), true), nil, "")
		s.Equal(http.StatusNoContent, resp.StatusCode)
		resp.Body.Close()
	})
}

func (s *RouterSuite) uploadDocument(token string) string {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	s.Require().NoError(form.WriteField("type", "passport"))
	s.Require().NoError(form.WriteField("sessionId", s.createSession(token)))
	part, err := form.CreateFormFile("file", "passport.jpg")
	s.Require().NoError(err)
	_, err = part.Write([]byte("jpeg-bytes-of-a-passport-photo"))
	s.Require().NoError(err)
	s.Require().NoError(form.Close())

	resp := s.do(http.MethodPost, "/kyc/documents", token, &buf, form.FormDataContentType())
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var doc struct {
		ID string `json:"id"`
	}
	s.decode(resp, &doc)
	return doc.ID
}

func (s *RouterSuite) TestDocumentEndpoints() {
	token := s.token(s.userID, false)
	docID := s.uploadDocument(token)

	s.Run("list shows the upload", func() {
		resp := s.do(http.MethodGet, "/kyc/documents", token, nil, "")
		s.Equal(http.StatusOK, resp.StatusCode)

		var docs []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		}
		s.decode(resp, &docs)
		s.Require().Len(docs, 1)
		s.Equal(docID, docs[0].ID)
		s.Equal("passport", docs[0].Type)
	})

	s.Run("download returns the original bytes", func() {
		resp := s.do(http.MethodGet, "/kyc/documents/"+docID, token, nil, "")
		s.Equal(http.StatusOK, resp.StatusCode)
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		s.Require().NoError(err)
		s.Equal([]byte("jpeg-bytes-of-a-passport-photo"), data)
		s.Contains(resp.Header.Get("Content-Disposition"), "passport.jpg")
	})

	s.Run("another user cannot download", func() {
		resp := s.do(http.MethodGet, "/kyc/documents/"+docID, s.token(id.NewUserID(), false), nil, "")
		s.Equal(http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	s.Run("delete then download is gone", func() {
		resp := s.do(http.MethodDelete, "/kyc/documents/"+docID, token, nil, "")
		s.Equal(http.StatusNoContent, resp.StatusCode)
		resp.Body.Close()

		resp = s.do(http.MethodGet, "/kyc/documents/"+docID, token, nil, "")
		s.Equal(http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	s.Run("rejects executable disguised as image", func() {
		var buf bytes.Buffer
		form := multipart.NewWriter(&buf)
		s.Require().NoError(form.WriteField("type", "passport"))
		s.Require().NoError(form.WriteField("sessionId", s.createSession(token)))
		part, err := form.CreateFormFile("file", "sneaky.jpg")
		s.Require().NoError(err)
		_, err = part.Write([]byte("<script>alert(1)</script>"))
		s.Require().NoError(err)
		s.Require().NoError(form.Close())

		resp := s.do(http.MethodPost, "/kyc/documents", token, &buf, form.FormDataContentType())
		s.Equal(http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})
}

func (s *RouterSuite) TestLiveCapture() {
	token := s.token(s.userID, false)
	sessionID := s.createSession(token)

	s.Run("selfie frame", func() {
		var buf bytes.Buffer
		form := multipart.NewWriter(&buf)
		s.Require().NoError(form.WriteField("type", "selfie"))
		s.Require().NoError(form.WriteField("sessionId", sessionID))
		s.Require().NoError(form.WriteField("livenessScore", "0.97"))
		s.Require().NoError(form.WriteField("deviceFingerprint", "device-abc"))
		s.Require().NoError(form.WriteField("capturedAt", time.Now().UTC().Format(time.RFC3339)))
		part, err := form.CreateFormFile("frame", "frame.jpg")
		s.Require().NoError(err)
		_, err = part.Write(bytes.Repeat([]byte("f"), 64))
		s.Require().NoError(err)
		s.Require().NoError(form.Close())

		resp := s.do(http.MethodPost, "/kyc/live-capture", token, &buf, form.FormDataContentType())
		s.Equal(http.StatusCreated, resp.StatusCode)

		var capture struct {
			ID            string  `json:"id"`
			SessionID     string  `json:"sessionId"`
			LivenessScore float64 `json:"livenessScore"`
		}
		s.decode(resp, &capture)
		s.NotEmpty(capture.ID)
		s.Equal(sessionID, capture.SessionID)
		s.InDelta(0.97, capture.LivenessScore, 1e-9)
	})

	s.Run("duplex document capture", func() {
		var buf bytes.Buffer
		form := multipart.NewWriter(&buf)
		s.Require().NoError(form.WriteField("type", "document_front"))
		s.Require().NoError(form.WriteField("sessionId", sessionID))
		s.Require().NoError(form.WriteField("livenessScore", "0.95"))
		s.Require().NoError(form.WriteField("deviceFingerprint", "device-abc"))
		s.Require().NoError(form.WriteField("capturedAt", time.Now().UTC().Format(time.RFC3339)))
		front, err := form.CreateFormFile("frame", "front.jpg")
		s.Require().NoError(err)
		_, err = front.Write(bytes.Repeat([]byte("f"), 64))
		s.Require().NoError(err)
		back, err := form.CreateFormFile("backFrame", "back.jpg")
		s.Require().NoError(err)
		_, err = back.Write(bytes.Repeat([]byte("b"), 64))
		s.Require().NoError(err)
		s.Require().NoError(form.Close())

		resp := s.do(http.MethodPost, "/kyc/live-capture", token, &buf, form.FormDataContentType())
		s.Equal(http.StatusCreated, resp.StatusCode)

		var capture struct {
			ContentHash     string `json:"contentHash"`
			BackContentHash string `json:"backContentHash"`
		}
		s.decode(resp, &capture)
		s.NotEmpty(capture.BackContentHash)
		s.NotEqual(capture.ContentHash, capture.BackContentHash)
	})
}

func (s *RouterSuite) TestAdminEndpoints() {
	referenceID := s.initiate()
	resp := s.callback(referenceID, "consider", "evt-1", "valid-signature")
	resp.Body.Close()

	s.Run("non-admin is forbidden", func() {
		resp := s.do(http.MethodGet, "/admin/kyc/pending-review", s.token(s.userID, false), nil, "")
		s.Equal(http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})

	s.Run("admin sees review queue", func() {
		resp := s.do(http.MethodGet, "/admin/kyc/pending-review", s.token(id.NewUserID(), true), nil, "")
		s.Equal(http.StatusOK, resp.StatusCode)

		var items []pendingReviewItem
		s.decode(resp, &items)
		s.Require().Len(items, 1)
		s.Equal(s.userID.String(), items[0].UserID)
		s.Equal(models.StatusNeedsReview, items[0].Status)
	})

	s.Run("admin reads decrypted personal data", func() {
		resp := s.do(http.MethodGet, "/admin/kyc/users/"+s.userID.String()+"/personal-data",
			s.token(id.NewUserID(), true), nil, "")
		s.Equal(http.StatusOK, resp.StatusCode)

		var data map[string]string
		s.decode(resp, &data)
		s.Equal("Grace", data["firstName"])
	})
}
