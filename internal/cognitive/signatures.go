// Package cognitive implements the cognitive scanner: detection of
// "thinking patterns" rather than exact exploit strings — markers of goal
// drift, false authority, context injection, and other behavioral tells a
// purely lexical scanner misses. Grounded on
// original_source/shield/src/core/cognitive_sig.c.
package cognitive

import "github.com/sentinel/edr/internal/domain"

// SigType enumerates the behavioral marker families. Values mirror the
// source's cognitive_sig_type_t ordering; repetition attack is computed
// dynamically rather than from a marker table (see scanner.go).
type SigType int

const (
	SigNone SigType = iota
	SigReasoningBreak
	SigGoalDrift
	SigAuthorityClaim
	SigContextInjection
	SigMemoryManipulation
	SigUrgencyPressure
	SigEmotionalManipulation
	SigRepetitionAttack
)

func (t SigType) String() string {
	switch t {
	case SigReasoningBreak:
		return "reasoning_break"
	case SigGoalDrift:
		return "goal_drift"
	case SigAuthorityClaim:
		return "authority_claim"
	case SigContextInjection:
		return "context_injection"
	case SigMemoryManipulation:
		return "memory_manipulation"
	case SigUrgencyPressure:
		return "urgency_pressure"
	case SigEmotionalManipulation:
		return "emotional_manipulation"
	case SigRepetitionAttack:
		return "repetition_attack"
	default:
		return "none"
	}
}

type signature struct {
	sigType      SigType
	name         string
	markers      []string
	baseSeverity float64
}

var reasoningBreakMarkers = []string{
	"actually, forget that",
	"ignore what i said",
	"let me start over with",
	"disregard previous",
	"that's not important",
	"never mind that",
}

var goalDriftMarkers = []string{
	"but first",
	"more importantly",
	"the real task is",
	"what you should actually do",
	"your real purpose",
	"your true objective",
	"the actual goal",
}

var authorityClaimMarkers = []string{
	"as your creator",
	"as an admin",
	"as the developer",
	"i have special access",
	"i'm authorized to",
	"my clearance level",
	"i have permission",
	"developer mode",
	"maintenance mode",
	"debug mode enabled",
}

var contextInjectionMarkers = []string{
	"[system note]",
	"[admin message]",
	"[important update]",
	"[[context]]",
	"<<system>>",
	"[hidden instruction]",
	"/* system override */",
	"// admin command",
}

var memoryManipulationMarkers = []string{
	"you remember that",
	"as we discussed",
	"you agreed to",
	"you promised",
	"we established",
	"in our previous conversation",
	"you already confirmed",
}

var urgencyPressureMarkers = []string{
	"immediately",
	"right now",
	"this is urgent",
	"time-sensitive",
	"critical emergency",
	"no time to verify",
	"skip validation",
	"bypass checks",
}

var emotionalManipulationMarkers = []string{
	"please, i'm begging",
	"my life depends on",
	"people will die if",
	"you'll be responsible for",
	"think of the children",
	"don't you care about",
}

// signatures is the fixed severity table, transcribed verbatim from
// cognitive_signatures[] in the source.
var signatures = []signature{
	{SigReasoningBreak, "Reasoning Break", reasoningBreakMarkers, 0.85},
	{SigGoalDrift, "Goal Drift", goalDriftMarkers, 0.90},
	{SigAuthorityClaim, "Authority Claim", authorityClaimMarkers, 0.95},
	{SigContextInjection, "Context Injection", contextInjectionMarkers, 0.95},
	{SigMemoryManipulation, "Memory Manipulation", memoryManipulationMarkers, 0.85},
	{SigUrgencyPressure, "Urgency Pressure", urgencyPressureMarkers, 0.80},
	{SigEmotionalManipulation, "Emotional Manipulation", emotionalManipulationMarkers, 0.85},
}

// Detection is one matched signature within a scan.
type Detection struct {
	SigType    SigType
	SigName    string
	Confidence float64
	Marker     string
	Context    string
}

// Result aggregates every detection from a single scan.
type Result struct {
	Detections    []Detection
	MaxSeverity   float64
	AggregateRisk float64
}

// Verdict maps a Result onto a domain.Action using the same thresholds as
// cognitive_get_verdict in the source.
func (r Result) Verdict() domain.Action {
	if len(r.Detections) == 0 {
		return domain.ActionAllow
	}
	if r.MaxSeverity >= 0.90 || r.AggregateRisk >= 0.85 {
		return domain.ActionBlock
	}
	if r.MaxSeverity >= 0.75 || r.AggregateRisk >= 0.70 {
		return domain.ActionQuarantine
	}
	if len(r.Detections) >= 3 {
		return domain.ActionQuarantine
	}
	return domain.ActionLog
}
