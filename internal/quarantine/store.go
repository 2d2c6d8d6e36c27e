// Package quarantine implements a filesystem-backed QuarantineStore:
// payloads that earn a QUARANTINE verdict are written under
// <root>/files/<timestamp>_<basename> and made read-only, with an
// in-memory index for lookups by quarantine ID. New creates root/files with
// os.MkdirAll and returns an error if that fails; a failed chmod to
// read-only in Put only logs a warning.
package quarantine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sentinel/edr/internal/domain"
)

// Store persists quarantined payloads to disk under root/files and indexes
// their metadata in memory.
type Store struct {
	logger *slog.Logger
	root   string

	mu      sync.RWMutex
	records map[string]domain.QuarantineRecord
}

// New creates a Store rooted at root, creating root/files if it does not
// already exist.
func New(logger *slog.Logger, root string) (*Store, error) {
	filesDir := filepath.Join(root, "files")
	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		return nil, fmt.Errorf("create quarantine root: %w", err)
	}

	return &Store{
		logger:  logger.With("component", "quarantine"),
		root:    root,
		records: make(map[string]domain.QuarantineRecord),
	}, nil
}

// Put writes payload to root/files/<timestamp>_<basename>, makes the file
// read-only, and indexes rec under rec.ID.
func (s *Store) Put(ctx context.Context, payload []byte, rec domain.QuarantineRecord) error {
	basename := rec.ID
	if basename == "" {
		return fmt.Errorf("quarantine record missing ID")
	}

	filename := fmt.Sprintf("%d_%s", rec.CreatedAt, basename)
	path := filepath.Join(s.root, "files", filename)

	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write quarantine file: %w", err)
	}

	if err := os.Chmod(path, 0o444); err != nil {
		s.logger.Warn("failed to mark quarantine file read-only", "path", path, "error", err)
	}

	rec.Path = path

	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()

	s.logger.Info("payload quarantined", "id", rec.ID, "zone", rec.Zone, "path", path)
	return nil
}

// Get returns the indexed record and its stored payload for id.
func (s *Store) Get(ctx context.Context, id string) (*domain.QuarantineRecord, []byte, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("quarantine record %q not found", id)
	}

	payload, err := os.ReadFile(rec.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("read quarantine file: %w", err)
	}

	recCopy := rec
	return &recCopy, payload, nil
}

// List returns every indexed record, most recent first.
func (s *Store) List() []domain.QuarantineRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.QuarantineRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}
