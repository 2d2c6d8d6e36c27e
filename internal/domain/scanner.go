package domain

import "context"

// Scanner is the common trait innate, cognitive, and adaptive-memory
// detection all implement, enabling pluggable detection. The Shield
// pipeline (internal/shield) folds over a slice of Scanners, combining
// their ScanResults by severity.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, payload []byte) (ScanResult, error)
}

// GuardResult is what a zone-type Guard returns from an ingress or egress
// check.
type GuardResult struct {
	Action     Action
	Confidence float64
	Reason     string
	Details    string
}

// Guard is the per-zone-type domain-specific check. The set of
// zone-types is closed and small, so guards are dispatched via a map keyed
// by ZoneType rather than open-ended polymorphism.
type Guard interface {
	ZoneType() ZoneType
	CheckIngress(ctx context.Context, payload []byte) (GuardResult, error)
	CheckEgress(ctx context.Context, payload []byte) (GuardResult, error)
}
