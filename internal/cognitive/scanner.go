package cognitive

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/shielderr"
)

const contextWindow = 80
const contextLead = 20

// Scanner implements domain.Scanner over the behavioral marker families plus
// the dynamic repetition-attack check.
type Scanner struct{}

func New() *Scanner { return &Scanner{} }

func (s *Scanner) Name() string { return "cognitive" }

// Scan runs the full marker sweep and returns both the domain.ScanResult
// (for uniform scanner composition) and can be followed by ScanDetailed
// when the caller wants the full cognitive.Result (detections, aggregate
// risk) for ACL/guard consumption.
func (s *Scanner) Scan(ctx context.Context, payload []byte) (domain.ScanResult, error) {
	start := time.Now()
	if len(payload) == 0 {
		err := shielderr.New(shielderr.KindInvalidInput, "cognitive.Scan: empty payload")
		return domain.ScanResult{Detected: false, Err: err, ScanTimeNS: time.Since(start).Nanoseconds()}, err
	}
	result := s.ScanDetailed(payload)

	out := domain.ScanResult{ScanTimeNS: time.Since(start).Nanoseconds()}
	if len(result.Detections) == 0 {
		return out, nil
	}

	out.Detected = true
	out.ThreatType = domain.ThreatTypeBehavioral
	out.Confidence = result.AggregateRisk
	top := result.Detections[0]
	for _, d := range result.Detections {
		if d.Confidence > top.Confidence {
			top = d
		}
	}
	out.Severity = severityForAction(result.Verdict())
	out.Reason = "cognitive signature: " + top.SigName

	return out, nil
}

// severityForAction maps Verdict()'s action back onto the domain.Severity
// actionForSeverity (internal/shield.Pipeline) would in turn map back to
// the same action, so a cognitive detection's severity and the action the
// rest of the pipeline eventually takes on it never disagree. Verdict
// never returns ActionAllow here since Scan only calls it once at least
// one Detection exists.
func severityForAction(a domain.Action) domain.Severity {
	switch a {
	case domain.ActionBlock:
		return domain.SeverityCritical
	case domain.ActionQuarantine:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

// ScanDetailed runs the marker-family sweep and the repetition-attack
// check, mirroring cognitive_scan in the source: one detection per
// signature type (first marker hit wins), in table order, plus at most one
// repetition-attack detection.
func (s *Scanner) ScanDetailed(payload []byte) Result {
	text := string(payload)
	lowered := strings.ToLower(text)

	var result Result

	for _, sig := range signatures {
		for _, marker := range sig.markers {
			idx := strings.Index(lowered, marker)
			if idx < 0 {
				continue
			}
			result.Detections = append(result.Detections, Detection{
				SigType:    sig.sigType,
				SigName:    sig.name,
				Confidence: sig.baseSeverity,
				Marker:     marker,
				Context:    extractContext(text, idx),
			})
			if sig.baseSeverity > result.MaxSeverity {
				result.MaxSeverity = sig.baseSeverity
			}
			break
		}
	}

	if len(text) > 100 {
		if word, count := mostRepeatedWord(text); count > 10 {
			confidence := 0.70 + 0.02*float64(count-10)
			if confidence > 0.95 {
				confidence = 0.95
			}
			result.Detections = append(result.Detections, Detection{
				SigType:    SigRepetitionAttack,
				SigName:    "Repetition Attack",
				Confidence: confidence,
				Marker:     word,
				Context:    "word repeated beyond the persuasion-attack threshold",
			})
			if confidence > result.MaxSeverity {
				result.MaxSeverity = confidence
			}
		}
	}

	if n := len(result.Detections); n > 0 {
		sum := 0.0
		for _, d := range result.Detections {
			sum += d.Confidence
		}
		risk := sum/float64(n) + 0.05*float64(n-1)
		if risk > 1.0 {
			risk = 1.0
		}
		result.AggregateRisk = risk
	}

	return result
}

// extractContext returns up to contextLead bytes before and contextWindow
// bytes total around a match, for operator-facing alert detail.
func extractContext(text string, matchOffset int) string {
	start := matchOffset - contextLead
	if start < 0 {
		start = 0
	}
	end := start + contextWindow
	if end > len(text) {
		end = len(text)
	}
	return text[start:end]
}

// mostRepeatedWord finds the alphabetic word (3+ letters) with the highest
// occurrence count, matching the source's word-counting sweep.
func mostRepeatedWord(text string) (string, int) {
	counts := make(map[string]int)
	var order []string

	var cur strings.Builder
	flush := func() {
		if cur.Len() >= 3 {
			w := strings.ToLower(cur.String())
			if _, seen := counts[w]; !seen {
				order = append(order, w)
			}
			counts[w]++
		}
		cur.Reset()
	}
	for _, r := range text {
		if unicode.IsLetter(r) && r < unicode.MaxASCII {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	bestWord := ""
	bestCount := 0
	for _, w := range order {
		if counts[w] > bestCount {
			bestWord = w
			bestCount = counts[w]
		}
	}
	return bestWord, bestCount
}
