// Package memory implements an adaptive, hash-indexed learned-threat set.
package memory

import (
	"bytes"
	"crypto/sha256"
	"sort"
	"sync"
	"time"

	"github.com/sentinel/edr/internal/domain"
)

// Entry is one learned threat signature.
type Entry struct {
	Hash       [32]byte
	Severity   domain.Severity
	ThreatType domain.ThreatType
	FirstSeen  int64
	LastSeen   int64
	HitCount   uint32
	Active     bool
}

// Memory is a capacity-capped set of SHA-256-hash-indexed learned threats
// with least-recently-seen eviction. Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	capacity int
	entries  map[[32]byte]*Entry
	now      func() time.Time
}

// New creates a Memory capped at capacity entries; capacity <= 0 means no
// cap.
func New(capacity int) *Memory {
	return &Memory{
		capacity: capacity,
		entries:  make(map[[32]byte]*Entry, capacity),
		now:      time.Now,
	}
}

// Hash computes the SHA-256 digest used as the memory key. Exposed so
// callers (e.g. the Shield pipeline) can compute it once and reuse it for
// both Learn and Recall without re-hashing.
func Hash(payload []byte) [32]byte {
	return sha256.Sum256(payload)
}

// Learn records payload as a known threat, bumping LastSeen/HitCount if it's
// already present, or inserting a fresh entry and evicting the
// least-recently-seen one if at capacity.
func (m *Memory) Learn(payload []byte, severity domain.Severity, tt domain.ThreatType) {
	h := Hash(payload)
	now := m.now().Unix()

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[h]; ok {
		e.LastSeen = now
		e.HitCount++
		if severity > e.Severity {
			e.Severity = severity
			e.ThreatType = tt
		}
		return
	}

	if m.capacity > 0 && len(m.entries) >= m.capacity {
		m.evictOldestLocked()
	}

	m.entries[h] = &Entry{
		Hash:       h,
		Severity:   severity,
		ThreatType: tt,
		FirstSeen:  now,
		LastSeen:   now,
		HitCount:   1,
		Active:     true,
	}
}

// Recall reports whether payload's hash is a known threat, updating its
// LastSeen/HitCount on hit. Lookup is O(1) via the hash map rather than a
// linear scan, since only observable behavior matters here, not the
// underlying algorithm.
func (m *Memory) Recall(payload []byte) (Entry, bool) {
	h := Hash(payload)

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[h]
	if !ok || !e.Active {
		return Entry{}, false
	}
	e.LastSeen = m.now().Unix()
	e.HitCount++
	return *e, true
}

// evictOldestLocked removes the entry with the minimum LastSeen. Caller must
// hold m.mu.
func (m *Memory) evictOldestLocked() {
	var oldestKey [32]byte
	var oldestTS int64
	first := true
	for k, e := range m.entries {
		if first || e.LastSeen < oldestTS {
			oldestKey = k
			oldestTS = e.LastSeen
			first = false
		}
	}
	if !first {
		delete(m.entries, oldestKey)
	}
}

// Len returns the current entry count.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Snapshot returns a stable-ordered copy of all entries, used by Save.
func (m *Memory) Snapshot() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Hash[:], out[j].Hash[:]) < 0 })
	return out
}

// Restore replaces the set's contents wholesale, used by Load.
func (m *Memory) Restore(entries []Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[[32]byte]*Entry, len(entries))
	for i := range entries {
		e := entries[i]
		m.entries[e.Hash] = &e
	}
}
