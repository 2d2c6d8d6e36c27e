package domain

import (
	"context"
	"time"
)

// SessionStore persists Session records. The in-memory implementation
// (internal/session) is the default; the Postgres-backed
// repositories.SessionRepository (internal/db/repositories) satisfies the
// same interface. There is no Redis-backed implementation.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, bool, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// Sweep removes sessions whose LastActivityAt is older than olderThan
	// and returns how many were evicted.
	Sweep(ctx context.Context, olderThan int64) (int, error)
	Count(ctx context.Context) (int, error)
}

// QuarantineRecord indexes one quarantined payload.
type QuarantineRecord struct {
	ID        string
	Zone      string
	SessionID string
	Reason    string
	Path      string
	CreatedAt int64
}

// QuarantineStore persists quarantined payloads and their metadata.
type QuarantineStore interface {
	Put(ctx context.Context, payload []byte, rec QuarantineRecord) error
	Get(ctx context.Context, id string) (*QuarantineRecord, []byte, error)
}

// AlertSink receives Alert emissions from the pipeline for export to SIEM,
// websocket streams, or Hive telemetry. Implementations must not block the
// caller for long; slow sinks should buffer internally.
type AlertSink interface {
	Emit(ctx context.Context, a Alert) error
}

// APIKeyTier bounds the rate budget a bearer token is issued under.
type APIKeyTier string

const (
	APIKeyTierOperator  APIKeyTier = "operator"
	APIKeyTierReadOnly  APIKeyTier = "readonly"
	APIKeyTierIntegration APIKeyTier = "integration"
)

// APIKey is an operator or service-account credential for the Shield/Hive
// admin HTTP surface's bearer/API-key auth. Only the SHA-256 hash of the
// key is ever persisted.
type APIKey struct {
	ID        string
	KeyHash   []byte
	Name      string
	Tier      APIKeyTier
	RateLimit float64
	CreatedAt time.Time
	LastUsed  *time.Time
	ExpiresAt *time.Time
	Revoked   bool
}

// APIKeyStore persists and looks up operator API keys for bearer auth.
type APIKeyStore interface {
	Create(ctx context.Context, key *APIKey) error
	GetByHash(ctx context.Context, keyHash []byte) (*APIKey, error)
	Revoke(ctx context.Context, id string) error
	Touch(ctx context.Context, id string) error
}
