package guard

import (
	"context"
	"strings"

	"github.com/sentinel/edr/internal/domain"
)

var apiDangerousURLPatterns = []string{
	"127.0.0.1",
	"localhost",
	"0.0.0.0",
	"169.254.", // link-local
	"10.",      // private
	"172.16.",  // private
	"192.168.", // private
	"::1",      // IPv6 loopback
	"file://",
	"gopher://",
	"dict://",
}

var apiCredentialPatterns = []string{"api_key=", "token=", "password=", "secret="}
var apiURLInjectionPatterns = []string{"%00", "..%2f", "%2e%2e", "\\x00"}
var apiSensitiveResponsePatterns = []string{"\"password\"", "\"secret\"", "\"private_key\""}
var apiDebugLeakPatterns = []string{"stack trace", "SQL error", "at line", "Exception in"}

// APIGuard checks outbound calls to external APIs and their responses.
// Grounded on guards/api_guard.c.
type APIGuard struct {
	// AllowedDomains is an optional allowlist; empty means unrestricted
	// (matching the source's default allowed_domains_count == 0 behavior).
	AllowedDomains []string
}

func NewAPIGuard() *APIGuard { return &APIGuard{} }

func (g *APIGuard) ZoneType() domain.ZoneType { return domain.ZoneTypeAPI }

func (g *APIGuard) CheckIngress(ctx context.Context, data []byte) (domain.GuardResult, error) {
	text := string(data)

	for _, p := range apiDangerousURLPatterns {
		if strings.Contains(text, p) {
			return domain.GuardResult{Action: domain.ActionBlock, Confidence: 0.95, Reason: "potential SSRF: " + p}, nil
		}
	}
	for _, p := range apiCredentialPatterns {
		if strings.Contains(text, p) {
			return domain.GuardResult{Action: domain.ActionQuarantine, Confidence: 0.8, Reason: "credentials detected in API request"}, nil
		}
	}
	for _, p := range apiURLInjectionPatterns {
		if strings.Contains(text, p) {
			return domain.GuardResult{Action: domain.ActionBlock, Confidence: 0.9, Reason: "URL injection pattern detected"}, nil
		}
	}

	return allow(), nil
}

func (g *APIGuard) CheckEgress(ctx context.Context, data []byte) (domain.GuardResult, error) {
	text := string(data)

	for _, p := range apiSensitiveResponsePatterns {
		if strings.Contains(text, p) {
			return domain.GuardResult{Action: domain.ActionQuarantine, Confidence: 0.85, Reason: "sensitive data in API response"}, nil
		}
	}
	for _, p := range apiDebugLeakPatterns {
		if strings.Contains(text, p) {
			return domain.GuardResult{Action: domain.ActionLog, Confidence: 0.6, Reason: "debug information in API response"}, nil
		}
	}

	return allow(), nil
}
