// Package blocklist implements the operator-managed blocklist:
// case-insensitive substring matching against a set of named patterns.
package blocklist

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sentinel/edr/internal/shielderr"
)

// Entry is one blocklisted pattern.
type Entry struct {
	Pattern string
	Reason  string
	AddedAt time.Time
	Hits    *atomic.Uint64
}

// Blocklist holds the pattern set. The source buckets patterns into a
// fixed hash table of linked lists purely to bound per-bucket chain
// length for its C string-matching loop; a Go map keyed by the
// lowercased pattern gives the same O(1) add/remove with far less code,
// and Check still has to walk every entry for substring matching exactly
// as the source's blocklist_check does (a hash index only helps exact-key
// lookups, not "is this pattern contained in this text").
type Blocklist struct {
	mu      sync.RWMutex
	name    string
	entries map[string]*Entry
}

func New(name string) *Blocklist {
	return &Blocklist{name: name, entries: make(map[string]*Entry)}
}

// Add inserts a pattern. Re-adding an existing pattern (case-insensitive)
// returns shielderr.ErrAlreadyExists, matching SHIELD_ERR_EXISTS.
func (b *Blocklist) Add(pattern, reason string) error {
	if pattern == "" {
		return shielderr.New(shielderr.KindInvalidInput, "blocklist.Add")
	}
	key := strings.ToLower(pattern)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.entries[key]; exists {
		return shielderr.New(shielderr.KindAlreadyExists, "blocklist.Add")
	}
	b.entries[key] = &Entry{
		Pattern: pattern,
		Reason:  reason,
		AddedAt: time.Now(),
		Hits:    new(atomic.Uint64),
	}
	return nil
}

// Remove deletes a pattern (case-insensitive).
func (b *Blocklist) Remove(pattern string) error {
	key := strings.ToLower(pattern)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[key]; !ok {
		return shielderr.New(shielderr.KindNotFound, "blocklist.Remove")
	}
	delete(b.entries, key)
	return nil
}

// Check returns the first entry whose pattern is a case-insensitive
// substring of text, incrementing that entry's hit counter, or nil if
// nothing matches.
func (b *Blocklist) Check(text string) *Entry {
	lowered := strings.ToLower(text)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for key, entry := range b.entries {
		if strings.Contains(lowered, key) {
			entry.Hits.Add(1)
			return entry
		}
	}
	return nil
}

// Contains is a boolean convenience wrapper over Check.
func (b *Blocklist) Contains(text string) bool {
	return b.Check(text) != nil
}

// Clear drops every entry.
func (b *Blocklist) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string]*Entry)
}

// Count returns the number of patterns loaded.
func (b *Blocklist) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Load reads "pattern | reason" lines from a file, skipping blank lines
// and lines starting with # or !, matching blocklist_load's format.
func (b *Blocklist) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return shielderr.Wrap(shielderr.KindIoFailure, "blocklist.Load", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		pattern := line
		reason := ""
		if idx := strings.IndexByte(line, '|'); idx >= 0 {
			pattern = strings.TrimSpace(line[:idx])
			reason = strings.TrimSpace(line[idx+1:])
		}
		if pattern == "" {
			continue
		}
		// blocklist_load ignores blocklist_add's return value; a
		// duplicate pattern on reload is expected, not an error.
		_ = b.Add(pattern, reason)
	}
	if err := scanner.Err(); err != nil {
		return shielderr.Wrap(shielderr.KindIoFailure, "blocklist.Load", err)
	}
	return nil
}

// Save writes the current pattern set in the same "pattern | reason"
// format blocklist_save produces.
func (b *Blocklist) Save(path string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return shielderr.Wrap(shielderr.KindIoFailure, "blocklist.Save", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# SENTINEL Shield Blocklist: %s\n", b.name)
	fmt.Fprintf(w, "# Format: pattern | reason\n\n")
	for _, entry := range b.entries {
		if entry.Reason != "" {
			fmt.Fprintf(w, "%s | %s\n", entry.Pattern, entry.Reason)
		} else {
			fmt.Fprintf(w, "%s\n", entry.Pattern)
		}
	}
	if err := w.Flush(); err != nil {
		return shielderr.Wrap(shielderr.KindIoFailure, "blocklist.Save", err)
	}
	return nil
}
