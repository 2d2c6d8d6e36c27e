// Package acl implements the rule/ACL engine: numbered, ordered rule
// lists with first-match evaluation over (direction, zone-type, payload).
package acl

import (
	"sync"

	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/pattern"
	"github.com/sentinel/edr/internal/shielderr"
)

// Verdict is the outcome of evaluating an ACL against a request.
type Verdict struct {
	Action   domain.Action
	RuleSeq  uint32 // 0 when the default action applied
	Reason   string
}

// Engine holds the set of configured ACLs, keyed by number, plus a shared
// pattern cache so identical rule patterns across ACLs compile once.
type Engine struct {
	mu    sync.RWMutex
	acls  map[uint32]domain.ACL
	cache *pattern.Cache
}

func NewEngine(patternCacheCapacity int) *Engine {
	return &Engine{
		acls:  make(map[uint32]domain.ACL),
		cache: pattern.NewCache(patternCacheCapacity),
	}
}

// Put installs a new ACL. Rules must carry unique Sequence numbers (in any
// order; Evaluate walks them sorted); a duplicate sequence is rejected, and
// so is an ACL number that is already installed.
func (e *Engine) Put(a domain.ACL) error {
	seen := make(map[uint32]struct{}, len(a.Rules))
	for _, r := range a.Rules {
		if _, dup := seen[r.Sequence]; dup {
			return shielderr.New(shielderr.KindInvalidInput, "acl.Put: duplicate rule sequence")
		}
		seen[r.Sequence] = struct{}{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.acls[a.Number]; exists {
		return shielderr.New(shielderr.KindAlreadyExists, "acl.Put: duplicate ACL number")
	}
	e.acls[a.Number] = a
	return nil
}

// Replace installs an ACL regardless of whether one with that number
// already exists, for update-in-place callers (the HTTP PUT surface).
func (e *Engine) Replace(a domain.ACL) error {
	seen := make(map[uint32]struct{}, len(a.Rules))
	for _, r := range a.Rules {
		if _, dup := seen[r.Sequence]; dup {
			return shielderr.New(shielderr.KindInvalidInput, "acl.Replace: duplicate rule sequence")
		}
		seen[r.Sequence] = struct{}{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.acls[a.Number] = a
	return nil
}

func (e *Engine) Get(number uint32) (domain.ACL, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.acls[number]
	if !ok {
		return domain.ACL{}, shielderr.New(shielderr.KindNotFound, "acl.Get")
	}
	return a, nil
}

// Evaluate walks an ACL's rules in ascending sequence order (domain.ACL
// guarantees no duplicate sequence at Put time, but does not itself
// guarantee sort order, so Evaluate sorts defensively) and returns the
// first rule whose direction/zone-type/pattern all match. Pattern
// evaluation is skipped entirely for rules with no pattern (a direction/
// zone-type-only rule always matches once the filters pass).
func (e *Engine) Evaluate(number uint32, dir domain.Direction, zt domain.ZoneType, payload []byte) (Verdict, error) {
	acl, err := e.Get(number)
	if err != nil {
		return Verdict{}, err
	}

	rules := sortedRules(acl.Rules)
	for _, r := range rules {
		if !r.Matches(dir, zt) {
			continue
		}
		if r.Pattern != nil {
			compiled, cerr := e.cache.GetOrCompile(*r.Pattern)
			if cerr != nil {
				return Verdict{}, shielderr.Wrap(shielderr.KindInvalidInput, "acl.Evaluate: pattern compile", cerr)
			}
			if !compiled.Match(payload) {
				continue
			}
		}
		return Verdict{Action: r.Action, RuleSeq: r.Sequence, Reason: r.Reason}, nil
	}

	return Verdict{Action: acl.DefaultAction, RuleSeq: 0, Reason: "default action"}, nil
}

func sortedRules(rules []domain.Rule) []domain.Rule {
	out := make([]domain.Rule, len(rules))
	copy(out, rules)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Sequence < out[j-1].Sequence; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
