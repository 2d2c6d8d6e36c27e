package domain

// PatternKind selects the matching strategy a Pattern compiles to.
type PatternKind int

const (
	PatternExact PatternKind = iota
	PatternContains
	PatternPrefix
	PatternSuffix
	PatternRegex
	// PatternGlob degrades to PatternContains in this implementation. This
	// mirrors a simplification already present in the source this system is
	// modeled on; it is not a TODO, it is the documented behavior.
	PatternGlob
)

// Pattern is an immutable literal or regex needle with an attached severity
// and threat classification. Patterns are published in bulk through the RCU
// pattern set (internal/rcu) and never mutated after that.
type Pattern struct {
	ID              uint32      `json:"id" yaml:"id"`
	Bytes           []byte      `json:"bytes" yaml:"bytes"`
	Kind            PatternKind `json:"kind" yaml:"kind"`
	CaseInsensitive bool        `json:"case_insensitive" yaml:"case_insensitive"`
	Category        string      `json:"category" yaml:"category"`
	Severity        Severity    `json:"severity" yaml:"severity"`
	ThreatType      ThreatType  `json:"threat_type,omitempty" yaml:"threat_type,omitempty"`
}

// ScanResult is what a Scanner produces for one payload.
type ScanResult struct {
	Detected    bool
	Severity    Severity
	ThreatType  ThreatType
	PatternID   uint32
	Offset      int
	Length      int
	Confidence  float64
	Reason      string
	ScanTimeNS  int64
	Err         error
}

// Merge folds other into r, keeping the higher severity and its associated
// fields. Confidence and ScanTimeNS are additive/overwritten per the
// "heuristics never lower severity" rule: a later, lower-severity result
// never erases an earlier higher one.
func (r *ScanResult) Merge(other ScanResult) {
	r.ScanTimeNS += other.ScanTimeNS
	if other.Severity > r.Severity {
		r.Detected = other.Detected || r.Detected
		r.Severity = other.Severity
		r.ThreatType = other.ThreatType
		r.PatternID = other.PatternID
		r.Offset = other.Offset
		r.Length = other.Length
		r.Confidence = other.Confidence
		r.Reason = other.Reason
	} else if other.Detected && !r.Detected {
		r.Detected = true
	}
}
