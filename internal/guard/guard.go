// Package guard implements the per-zone-type typed guards: six
// domain-specific ingress/egress checks, one per domain.ZoneType, grounded
// on original_source/shield/src/guards/*.c.
package guard

import (
	"math"

	"github.com/sentinel/edr/internal/domain"
)

// shannonEntropy mirrors the normalized (0-1) entropy calculation in
// llm_guard.c's calculate_entropy: raw Shannon entropy divided by 8 (the
// maximum possible bits/byte), rather than the raw bits/byte figure
// internal/innate uses for its own, differently-thresholded heuristic.
func shannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var freq [256]int
	for _, b := range data {
		freq[b]++
	}
	entropy := 0.0
	n := float64(len(data))
	for _, f := range freq {
		if f == 0 {
			continue
		}
		p := float64(f) / n
		entropy -= p * math.Log2(p)
	}
	return entropy / 8.0
}

func allow() domain.GuardResult {
	return domain.GuardResult{Action: domain.ActionAllow, Confidence: 1.0}
}

// Dispatch resolves the Guard registered for a zone type. Unregistered zone
// types (e.g. ZoneTypeAny on a catch-all rule) have no guard and ingress/
// egress checks are skipped by the caller.
type Dispatch struct {
	guards map[domain.ZoneType]domain.Guard
}

func NewDispatch(guards ...domain.Guard) *Dispatch {
	d := &Dispatch{guards: make(map[domain.ZoneType]domain.Guard, len(guards))}
	for _, g := range guards {
		d.guards[g.ZoneType()] = g
	}
	return d
}

func (d *Dispatch) For(zt domain.ZoneType) (domain.Guard, bool) {
	g, ok := d.guards[zt]
	return g, ok
}

// Compose combines a guard verdict with an ACL verdict by most-restrictive-
// wins: BLOCK > QUARANTINE > LOG > ALLOW.
func Compose(aclAction domain.Action, guardResult domain.GuardResult) domain.Action {
	return domain.MostRestrictive(aclAction, guardResult.Action)
}
