// Package canary implements canary-token tracking: planted markers
// that should never legitimately appear in traffic, so any match is an
// always-critical exfiltration signal. Grounded on
// original_source/shield/include/shield_canary.h (header-only in the
// source tree; the detection and bookkeeping semantics below are this
// implementation's realization of that interface).
package canary

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sentinel/edr/internal/shielderr"
)

// TokenType classifies the shape of a canary value.
type TokenType int

const (
	TokenTypeString TokenType = iota
	TokenTypeUUID
	TokenTypeEmail
	TokenTypeURL
	TokenTypeHash
	TokenTypeCustom
)

// Token is one planted canary.
type Token struct {
	ID               string
	Type             TokenType
	Value            string
	Description      string
	CreatedAt        time.Time
	TriggeredCount   uint64
	LastTriggeredBy  string
	LastTriggeredAt  time.Time
}

// Result is the outcome of scanning a payload for any known canary.
type Result struct {
	Detected bool
	Token    *Token
	Position int
	Context  string
}

const contextWindow = 256

// AlertFunc is invoked whenever a canary fires, mirroring the source's
// alert_callback field.
type AlertFunc func(token Token, context string)

// Manager holds the set of planted canaries.
type Manager struct {
	mu       sync.Mutex
	tokens   map[string]*Token
	alertFn  AlertFunc
}

func NewManager() *Manager {
	return &Manager{tokens: make(map[string]*Token)}
}

// SetAlertCallback registers the function invoked on every detection.
func (m *Manager) SetAlertCallback(fn AlertFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertFn = fn
}

// Create plants a canary with an operator-supplied value.
func (m *Manager) Create(t TokenType, value, description string) (Token, error) {
	if value == "" {
		return Token{}, shielderr.New(shielderr.KindInvalidInput, "canary.Create")
	}
	id, err := randomID()
	if err != nil {
		return Token{}, shielderr.Wrap(shielderr.KindIoFailure, "canary.Create", err)
	}
	tok := &Token{ID: id, Type: t, Value: value, Description: description, CreatedAt: time.Now()}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[id] = tok
	return *tok, nil
}

// Generate plants a random canary of the given type, producing its own
// unguessable value rather than taking an operator-supplied one.
func (m *Manager) Generate(t TokenType) (Token, error) {
	raw, err := randomID()
	if err != nil {
		return Token{}, shielderr.Wrap(shielderr.KindIoFailure, "canary.Generate", err)
	}
	value := raw
	switch t {
	case TokenTypeUUID:
		value = formatAsUUID(raw)
	case TokenTypeEmail:
		value = fmt.Sprintf("%s@canary.internal", raw[:16])
	case TokenTypeURL:
		value = fmt.Sprintf("https://canary.internal/t/%s", raw)
	}
	return m.Create(t, value, "auto-generated canary")
}

// Delete removes a canary by ID.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[id]; !ok {
		return shielderr.New(shielderr.KindNotFound, "canary.Delete")
	}
	delete(m.tokens, id)
	return nil
}

// Find looks up a canary by ID.
func (m *Manager) Find(id string) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[id]
	if !ok {
		return Token{}, shielderr.New(shielderr.KindNotFound, "canary.Find")
	}
	return *tok, nil
}

// Scan checks text for any planted canary value (exact substring, not
// case-folded — a canary is a precise, unique marker, unlike blocklist or
// innate patterns). The first match wins; its trigger bookkeeping is
// updated and, if registered, the alert callback fires synchronously.
func (m *Manager) Scan(text string, triggeredBy string) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tok := range m.tokens {
		idx := strings.Index(text, tok.Value)
		if idx < 0 {
			continue
		}
		tok.TriggeredCount++
		tok.LastTriggeredBy = triggeredBy
		tok.LastTriggeredAt = time.Now()

		ctx := extractContext(text, idx, len(tok.Value))
		if m.alertFn != nil {
			m.alertFn(*tok, ctx)
		}
		return Result{Detected: true, Token: tok, Position: idx, Context: ctx}
	}
	return Result{}
}

// ContainsAny is a boolean convenience wrapper over Scan.
func (m *Manager) ContainsAny(text string) bool {
	return m.Scan(text, "").Detected
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

func extractContext(text string, offset, matchLen int) string {
	start := offset - contextWindow/2
	if start < 0 {
		start = 0
	}
	end := offset + matchLen + contextWindow/2
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}

func randomID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func formatAsUUID(hexStr string) string {
	if len(hexStr) < 32 {
		return hexStr
	}
	return fmt.Sprintf("%s-%s-%s-%s-%s", hexStr[0:8], hexStr[8:12], hexStr[12:16], hexStr[16:20], hexStr[20:32])
}
