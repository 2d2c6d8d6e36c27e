package domain

import "time"

// AlertType classifies where an alert originated.
type AlertType string

const (
	AlertTypeCanary    AlertType = "canary"
	AlertTypeBlocklist AlertType = "blocklist"
	AlertTypeInnate    AlertType = "innate_scan"
	AlertTypeCognitive AlertType = "cognitive_scan"
	AlertTypeACL       AlertType = "acl"
	AlertTypeGuard     AlertType = "guard"
	AlertTypeRateLimit AlertType = "rate_limit"
)

// Alert is a side-effect emission produced whenever the Shield pipeline (or
// an Agent's innate scanner) takes an action more restrictive than ALLOW.
// Alerts feed the SIEM exporter, the live websocket stream, and Hive
// telemetry.
type Alert struct {
	ID          string         `json:"id"`
	Type        AlertType      `json:"type"`
	Severity    Severity       `json:"severity"`
	Action      Action         `json:"action"`
	Zone        string         `json:"zone"`
	SessionID   string         `json:"session_id,omitempty"`
	Reason      string         `json:"reason"`
	RuleNumber  uint32         `json:"rule_number,omitempty"`
	QuarantineID string        `json:"quarantine_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
