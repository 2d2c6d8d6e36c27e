// Package hive implements the Hive-side state a cmd/hive process owns: the
// authoritative signature catalog Agents pull from,
// and the fleet registry of Agents that have registered over the wire
// protocol.
package hive

import (
	"context"
	"sync"

	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/syncsig"
)

// Catalog is the Hive's authoritative pattern set: the write side of the
// signature-sync protocol, versioned so CheckUpdate can answer with a
// single integer comparison.
// Distinct from syncsig.Store, which is the Agent-side read side of the
// same protocol.
type Catalog struct {
	mu       sync.RWMutex
	patterns []domain.Pattern
	version  uint64
}

// NewCatalog creates a Catalog seeded with an initial pattern set at
// version 1.
func NewCatalog(initial []domain.Pattern) *Catalog {
	cp := make([]domain.Pattern, len(initial))
	copy(cp, initial)
	return &Catalog{patterns: cp, version: 1}
}

// Publish replaces the catalog's pattern set and increments its version,
// the Hive-side analogue of an RCU swap: readers (CheckUpdate/Download)
// always see either the whole old set or the whole new one, never a mix.
func (c *Catalog) Publish(patterns []domain.Pattern) uint64 {
	cp := make([]domain.Pattern, len(patterns))
	copy(cp, patterns)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = cp
	c.version++
	return c.version
}

// CheckUpdate implements syncsig.Source's server-side counterpart: it
// reports whether currentVersion is behind the catalog.
func (c *Catalog) CheckUpdate(ctx context.Context, currentVersion uint64) (syncsig.UpdateInfo, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if currentVersion >= c.version {
		return syncsig.UpdateInfo{}, false, nil
	}

	data, checksum, err := syncsig.EncodeUpdate(c.patterns)
	if err != nil {
		return syncsig.UpdateInfo{}, false, err
	}
	return syncsig.UpdateInfo{
		Version:      c.version,
		ChecksumHex:  checksum,
		SizeBytes:    len(data),
		PatternCount: len(c.patterns),
	}, true, nil
}

// Download encodes the catalog's pattern set as of the current version.
// version is accepted for interface symmetry with syncsig.Source; this
// implementation always serves the current set since the catalog keeps no
// history of prior versions.
func (c *Catalog) Download(ctx context.Context, version uint64) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, _, err := syncsig.EncodeUpdate(c.patterns)
	return data, err
}

// Version returns the catalog's current version.
func (c *Catalog) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Count returns the number of published patterns.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.patterns)
}
