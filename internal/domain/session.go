package domain

import "time"

// SessionState is the lifecycle stage of a client session, driven entirely
// by ThreatScore. Transitions only move forward until eviction; ThreatScore
// itself never decreases.
type SessionState string

const (
	SessionNew        SessionState = "new"
	SessionActive     SessionState = "active"
	SessionSuspicious SessionState = "suspicious"
	SessionBlocked    SessionState = "blocked"
)

const (
	// SuspiciousThreshold is the ThreatScore at which a session moves to
	// SessionSuspicious.
	SuspiciousThreshold = 5.0
	// BlockedThreshold is the ThreatScore at which a session moves to
	// SessionBlocked.
	BlockedThreshold = 10.0
)

// Session tracks per-client counters and threat accumulation across
// requests. Owned exclusively by the session manager (internal/session);
// callers only ever hold a copy, never the live record.
type Session struct {
	ID                  string       `json:"id"`
	SourceIP            string       `json:"source_ip"`
	CreatedAt           time.Time    `json:"created_at"`
	LastActivityAt       time.Time    `json:"last_activity_at"`
	State               SessionState `json:"state"`
	RequestCount        uint64       `json:"request_count"`
	BlockedCount        uint64       `json:"blocked_count"`
	QuarantinedCount     uint64       `json:"quarantined_count"`
	ThreatScore         float64      `json:"threat_score"`
	LastThreatDescription string     `json:"last_threat_description,omitempty"`
}

// NextState computes the state transition implied by the current ThreatScore
// and request count, without mutating s. Rules:
//   - NEW -> ACTIVE on the second request.
//   - any -> SUSPICIOUS once ThreatScore >= SuspiciousThreshold.
//   - any -> BLOCKED once ThreatScore >= BlockedThreshold.
// BLOCKED never reverts within a session's lifetime (only eviction clears
// it).
func (s Session) NextState() SessionState {
	if s.State == SessionBlocked {
		return SessionBlocked
	}
	if s.ThreatScore >= BlockedThreshold {
		return SessionBlocked
	}
	if s.ThreatScore >= SuspiciousThreshold {
		return SessionSuspicious
	}
	if s.RequestCount >= 2 {
		return SessionActive
	}
	return SessionNew
}
