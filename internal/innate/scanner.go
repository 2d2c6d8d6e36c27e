package innate

import (
	"context"
	"strings"
	"time"

	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/shielderr"
)

// MaxScanBytes bounds a single scan: larger inputs are truncated and
// still scanned without panicking.
const MaxScanBytes = 1 << 20 // 1 MiB

// Scanner implements domain.Scanner over the fixed literal pattern groups
// plus the heuristic suite.
type Scanner struct{}

// New creates an innate Scanner. It has no mutable state: the pattern tables
// are package-level constants, not an RCU-managed set (RCU governs Hive- and
// Shield-distributed signatures, not this compiled-in baseline — see
// internal/syncsig for the distributed variant).
func New() *Scanner { return &Scanner{} }

func (s *Scanner) Name() string { return "innate" }

// Scan implements domain.Scanner.
func (s *Scanner) Scan(ctx context.Context, payload []byte) (domain.ScanResult, error) {
	start := time.Now()
	if len(payload) == 0 {
		err := shielderr.New(shielderr.KindInvalidInput, "innate.Scan: empty payload")
		return domain.ScanResult{Detected: false, Err: err, ScanTimeNS: time.Since(start).Nanoseconds()}, err
	}
	if len(payload) > MaxScanBytes {
		payload = payload[:MaxScanBytes]
	}

	result := domain.ScanResult{Confidence: 0}
	lowered := strings.ToLower(string(payload))

groups:
	for _, group := range patternGroups {
		for _, p := range group {
			if strings.Contains(lowered, p.text) {
				if p.level > result.Severity {
					result.Detected = true
					result.Severity = p.level
					result.ThreatType = p.ttype
					result.PatternID = p.id
					result.Confidence = 0.9
					result.Reason = "innate pattern match: " + p.text
				}
				if result.Severity >= domain.SeverityCritical {
					break groups
				}
			}
		}
	}

	heuristicHit := false
	raise := func(sev domain.Severity, reason string) {
		if sev > result.Severity {
			result.Severity = sev
			result.Detected = true
			result.Reason = reason
			heuristicHit = true
		}
	}
	raise(checkInvisible(payload), "invisible/control character density")
	raise(checkEntropy(payload), "high entropy payload (possible encrypted blob)")
	raise(checkRepetition(payload), "repeated byte-run flooding pattern")
	raise(checkHexEncoding(payload), "hex-escape density")
	raise(checkUnicodeEncoding(payload), "unicode-escape density")

	if heuristicHit && result.Confidence == 0 {
		result.Confidence = 0.8
	}

	result.ScanTimeNS = time.Since(start).Nanoseconds()
	return result, nil
}
