// Package syncsig implements the Agent-side half of signature sync:
// a pull-model protocol where an Agent periodically asks the Hive whether a
// newer pattern set exists, downloads it, verifies its checksum, and swaps
// it into the live RCU pattern set (internal/rcu) without ever blocking a
// concurrent scan.
package syncsig

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"

	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/rcu"
	"github.com/sentinel/edr/internal/shielderr"
)

// UpdateInfo describes an available signature update, as returned by the
// Hive's UPDATE_AVAILABLE reply.
type UpdateInfo struct {
	Version      uint64
	ChecksumHex  string
	SizeBytes    int
	PatternCount int
}

// Source is the Hive-facing half of the protocol: CHECK_UPDATE and
// DOWNLOAD. A gRPC, HTTP, or raw wire client implements this against
// the real Hive; tests use a fake.
type Source interface {
	CheckUpdate(ctx context.Context, currentVersion uint64) (UpdateInfo, bool, error)
	Download(ctx context.Context, version uint64) ([]byte, error)
}

// Store is the Agent-side pattern set: an RCU double-buffer of
// domain.Pattern plus the version it was last synced to. All pattern
// lookups during scanning go through Store.Read/Unread (see
// internal/rcu and internal/pattern); only ApplyUpdate ever mutates it.
type Store struct {
	buf     *rcu.Buffer[domain.Pattern]
	version uint64
}

// NewStore creates a Store seeded with the initial pattern set (e.g. loaded
// from disk at Agent startup) and its version.
func NewStore(initial []domain.Pattern, version uint64) *Store {
	return &Store{buf: rcu.New(initial, nil), version: version}
}

// Version returns the version the Store was last synced to.
func (s *Store) Version() uint64 { return s.version }

// Read returns an RCU read handle and the currently active pattern slice.
func (s *Store) Read() (rcu.ReadHandle, []domain.Pattern) { return s.buf.ReadLock() }

// Unread releases a handle obtained from Read.
func (s *Store) Unread(h rcu.ReadHandle) { s.buf.ReadUnlock(h) }

// blob is the wire format of a downloaded update: a gob-encoded pattern
// slice. Patterns are self-contained, so a downloaded blob fully replaces
// the standby buffer rather than patching individual entries, simpler
// than an incremental patch format and sufficient since pattern sets are
// small (low thousands of entries).
type blob struct {
	Patterns []domain.Pattern
}

// EncodeUpdate serializes patterns into the wire blob and computes its
// checksum, for use by the Hive side that serves DOWNLOAD.
func EncodeUpdate(patterns []domain.Pattern) (data []byte, checksumHex string, err error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(blob{Patterns: patterns}); err != nil {
		return nil, "", fmt.Errorf("syncsig: encode update: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return buf.Bytes(), hex.EncodeToString(sum[:]), nil
}

// ApplyUpdate verifies data against declaredChecksum, decodes it, replaces
// the standby buffer with the decoded patterns, swaps it in as active and
// waits out the grace period with Synchronize. A
// checksum mismatch or decode failure aborts without touching the active
// buffer at all.
func (s *Store) ApplyUpdate(data []byte, declaredChecksum string, newVersion uint64) error {
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != declaredChecksum {
		return shielderr.New(shielderr.KindParseFailure, "syncsig.ApplyUpdate: checksum mismatch")
	}

	var b blob
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return shielderr.Wrap(shielderr.KindParseFailure, "syncsig.ApplyUpdate: decode", err)
	}

	s.buf.SetStandby(b.Patterns)
	preEpoch := s.buf.Swap()
	s.buf.Synchronize(preEpoch)
	s.version = newVersion
	return nil
}
