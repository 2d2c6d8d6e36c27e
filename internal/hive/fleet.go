package hive

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sentinel/edr/internal/shielderr"
)

// AgentRecord is what the Hive knows about one registered Agent: identity,
// liveness, the counters it last reported in a STATS message, and its
// Sybil-defense standing (trust score, vouch counts, report count, status).
type AgentRecord struct {
	AgentID          uint64
	Hostname         string
	PubKey           [32]byte
	RegisteredAt     time.Time
	LastHeartbeatAt  time.Time
	LastSeqNumber    uint32
	ThreatsReported  uint64
	SignatureVersion uint64

	Status          AgentStatus
	Trust           float64
	VouchesReceived int
	VouchesGiven    int
	ReportsAgainst  int
}

// Fleet tracks every Agent that has registered with this Hive, keyed by the
// AgentID the wire protocol's Header.AgentID field carries on every message
// after registration.
type Fleet struct {
	mu     sync.RWMutex
	agents map[uint64]*AgentRecord
	nextID uint64
	logger *slog.Logger
}

// NewFleet creates an empty Fleet.
func NewFleet(logger *slog.Logger) *Fleet {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fleet{agents: make(map[uint64]*AgentRecord), nextID: 1, logger: logger}
}

// Register assigns a fresh AgentID and records the agent's registration.
// Callers (internal/hive's Listener) are expected to have already verified
// the agent's proof-of-work solution; Register itself only seeds the
// Sybil-defense state every new agent starts in: AgentPending status at
// TrustInitial, awaiting VouchesRequired vouches before it is Active.
func (f *Fleet) Register(hostname string, pubKey [32]byte) *AgentRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	rec := &AgentRecord{
		AgentID:      id,
		Hostname:     hostname,
		PubKey:       pubKey,
		RegisteredAt: time.Now(),
		Status:       AgentPending,
		Trust:        TrustInitial,
	}
	f.agents[id] = rec
	return rec
}

// Heartbeat records a HEARTBEAT message's arrival for agentID.
func (f *Fleet) Heartbeat(agentID uint64, seq uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.agents[agentID]; ok {
		rec.LastHeartbeatAt = time.Now()
		rec.LastSeqNumber = seq
	}
}

// RecordThreat increments agentID's threat counter.
func (f *Fleet) RecordThreat(agentID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.agents[agentID]; ok {
		rec.ThreatsReported++
	}
}

// RecordSync notes the signature version agentID last synced to.
func (f *Fleet) RecordSync(agentID uint64, version uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.agents[agentID]; ok {
		rec.SignatureVersion = version
	}
}

// Get returns a copy of agentID's record.
func (f *Fleet) Get(agentID uint64) (AgentRecord, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, ok := f.agents[agentID]
	if !ok {
		return AgentRecord{}, false
	}
	return *rec, true
}

// List returns a snapshot of every registered agent.
func (f *Fleet) List() []AgentRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]AgentRecord, 0, len(f.agents))
	for _, rec := range f.agents {
		out = append(out, *rec)
	}
	return out
}

// Stale returns agents whose last heartbeat is older than olderThan (or
// that never heartbeat at all, past their registration time).
func (f *Fleet) Stale(olderThan time.Duration) []AgentRecord {
	cutoff := time.Now().Add(-olderThan)
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []AgentRecord
	for _, rec := range f.agents {
		last := rec.LastHeartbeatAt
		if last.IsZero() {
			last = rec.RegisteredAt
		}
		if last.Before(cutoff) {
			out = append(out, *rec)
		}
	}
	return out
}

// GrantVouch records voucherID vouching for targetID, transferring some of
// the voucher's trust and, once VouchesRequired is met, promoting targetID
// from AgentPending to AgentActive. The voucher must itself be Active and
// carry at least ConsensusThreshold trust, or the vouch is rejected.
func (f *Fleet) GrantVouch(voucherID, targetID uint64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	voucher, ok := f.agents[voucherID]
	if !ok {
		return 0, shielderr.New(shielderr.KindNotFound, "hive: voucher not found")
	}
	target, ok := f.agents[targetID]
	if !ok {
		return 0, shielderr.New(shielderr.KindNotFound, "hive: vouch target not found")
	}
	if voucher.Status != AgentActive || voucher.Trust < ConsensusThreshold {
		return 0, shielderr.New(shielderr.KindInvalidInput, "hive: voucher not trusted enough to vouch")
	}

	target.VouchesReceived++
	target.Trust = clampTrust(target.Trust + VouchWeight*voucher.Trust)
	voucher.VouchesGiven++

	if target.VouchesReceived >= VouchesRequired && target.Status == AgentPending {
		target.Status = AgentActive
		f.logger.Info("agent promoted to active", "agent_id", targetID, "vouches", target.VouchesReceived)
	}

	return target.VouchesReceived, nil
}

// RevokeVouch undoes a vouch, lowering targetID's received-vouch count and
// proportionally reversing the trust it transferred.
func (f *Fleet) RevokeVouch(voucherID, targetID uint64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	voucher, ok := f.agents[voucherID]
	if !ok {
		return 0, shielderr.New(shielderr.KindNotFound, "hive: voucher not found")
	}
	target, ok := f.agents[targetID]
	if !ok {
		return 0, shielderr.New(shielderr.KindNotFound, "hive: vouch target not found")
	}

	if target.VouchesReceived > 0 {
		target.VouchesReceived--
		target.Trust = clampTrust(target.Trust - VouchWeight*voucher.Trust)
	}
	return target.VouchesReceived, nil
}

// ReportAgent records reporterID reporting targetID, docking targetID's
// trust proportionally to the reporter's own trust. An agent whose trust
// falls below 0.2, or who accumulates 5 or more reports, moves to
// AgentSuspect pending operator review (see Blacklist).
func (f *Fleet) ReportAgent(reporterID, targetID uint64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	reporter, ok := f.agents[reporterID]
	if !ok {
		return shielderr.New(shielderr.KindNotFound, "hive: reporter not found")
	}
	target, ok := f.agents[targetID]
	if !ok {
		return shielderr.New(shielderr.KindNotFound, "hive: report target not found")
	}

	target.ReportsAgainst++
	target.Trust = clampTrust(target.Trust - 0.1*reporter.Trust)

	if target.Trust < 0.2 || target.ReportsAgainst >= 5 {
		target.Status = AgentSuspect
		f.logger.Warn("agent marked suspect", "agent_id", targetID, "reports", target.ReportsAgainst, "trust", target.Trust)
	}
	return nil
}

// Blacklist permanently revokes targetID's standing. A blacklisted agent's
// messages are rejected by the Listener regardless of protocol validity.
func (f *Fleet) Blacklist(agentID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.agents[agentID]; ok {
		rec.Status = AgentBlacklisted
		rec.Trust = 0
		f.logger.Warn("agent blacklisted", "agent_id", agentID)
	}
}

// IsBlacklisted reports whether agentID has been blacklisted.
func (f *Fleet) IsBlacklisted(agentID uint64) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, ok := f.agents[agentID]
	return ok && rec.Status == AgentBlacklisted
}

// CanVote reports whether agentID is Active and carries at least
// ConsensusThreshold trust.
func (f *Fleet) CanVote(agentID uint64) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, ok := f.agents[agentID]
	if !ok {
		return false
	}
	return rec.Status == AgentActive && rec.Trust >= ConsensusThreshold
}

// ApplyDecay pulls every Active agent's trust back toward TrustInitial in
// proportion to its age, the same decay curve sybil_defense.c's
// sybil_apply_decay applies once per day. Callers are expected to invoke
// this on a daily ticker.
func (f *Fleet) ApplyDecay() {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	for _, rec := range f.agents {
		if rec.Status != AgentActive {
			continue
		}
		days := now.Sub(rec.RegisteredAt).Hours() / 24
		decay := days * TrustDecayRate
		rec.Trust = TrustInitial + (rec.Trust-TrustInitial)*(1.0-decay)
		if rec.Trust < 0.1 {
			rec.Trust = 0.1
		}
	}
}

func clampTrust(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > TrustMax {
		return TrustMax
	}
	return t
}
