// Package models defines the verification session: a short-lived, opaque
// token that tracks one user's progress through the verification flow.
package models

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/mssola/useragent"

	id "github.com/ResolveEnterteinment/crypto-stack-sub008/pkg/domain"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusExpired Status = "EXPIRED"
)

// SecurityContext captures where and on what device the session runs. Used
// for audit trails and anomaly review, never for authorization.
type SecurityContext struct {
	IPAddress      string    `json:"ipAddress"`
	UserAgent      string    `json:"userAgent"`
	DeviceSummary  string    `json:"deviceSummary"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
}

// Progress tracks how far through the verification flow the user is.
type Progress struct {
	CurrentStep int `json:"currentStep"`
	TotalSteps  int `json:"totalSteps"`
}

// Session is one verification flow session. The ID is an opaque bearer
// token; treat it as a secret.
type Session struct {
	ID        string          `json:"id"`
	UserID    id.UserID       `json:"userId"`
	Status    Status          `json:"status"`
	Security  SecurityContext `json:"security"`
	Progress  Progress        `json:"progress"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

const tokenBytes = 32

// NewSessionID generates an unguessable session token.
func NewSessionID() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// IsExpired reports whether the session has passed its deadline.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Touch refreshes access metadata on a validated session.
func (s *Session) Touch(ip, ua string, now time.Time) {
	if ip != "" {
		s.Security.IPAddress = ip
	}
	if ua != "" {
		s.Security.UserAgent = ua
		s.Security.DeviceSummary = SummarizeDevice(ua)
	}
	s.Security.LastAccessedAt = now
}

// SummarizeDevice condenses a raw User-Agent into a short human-readable
// label for review screens ("Chrome 120 on Linux", "Mobile Safari on iOS").
func SummarizeDevice(rawUA string) string {
	if rawUA == "" {
		return "unknown device"
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	if v := majorVersion(version); v != "" {
		name = name + " " + v
	}
	os := ua.OS()
	switch {
	case name == "" && os == "":
		return "unknown device"
	case name == "":
		return os
	case os == "":
		return name
	}
	return name + " on " + os
}

func majorVersion(v string) string {
	for i := 0; i < len(v); i++ {
		if v[i] == '.' {
			return v[:i]
		}
	}
	return v
}
