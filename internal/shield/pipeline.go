// Package shield implements the Shield request pipeline: the
// synchronous fold of rate-limit, blocklist, canary, innate/cognitive
// scanning, adaptive memory recall, ACL evaluation, and guard dispatch that
// every zone-bound payload passes through.
package shield

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sentinel/edr/internal/acl"
	"github.com/sentinel/edr/internal/blocklist"
	"github.com/sentinel/edr/internal/canary"
	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/guard"
	"github.com/sentinel/edr/internal/memory"
	"github.com/sentinel/edr/internal/ratelimit"
	"github.com/sentinel/edr/internal/session"
	"github.com/sentinel/edr/internal/shielderr"
	"github.com/sentinel/edr/internal/zone"
)

// Metrics receives per-request counters. A no-op implementation is used
// when the caller does not wire a real one (internal/metrics's Prometheus
// collector implements this interface in the Shield daemon).
type Metrics interface {
	ObserveRequest(zoneName string, action domain.Action, elapsed time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRequest(string, domain.Action, time.Duration) {}

// Request is one payload submitted for policy evaluation.
type Request struct {
	Zone      string
	Direction domain.Direction
	SessionID string
	SourceIP  string
	Payload   []byte
}

// Verdict is the pipeline's final decision for one Request, carrying enough
// provenance to build an Alert and an API response envelope.
type Verdict struct {
	Action       domain.Action
	Severity     domain.Severity
	ThreatType   domain.ThreatType
	RuleNumber   uint32
	Reason       string
	Confidence   float64
	QuarantineID string
	ElapsedNS    int64
}

// Pipeline wires together every detection and policy component behind a
// single-entry Evaluate call.
type Pipeline struct {
	Zones       *zone.Registry
	RateLimiter *ratelimit.Limiter
	Blocklist   *blocklist.Blocklist
	Canary      *canary.Manager
	Innate      domain.Scanner
	Cognitive   domain.Scanner
	Memory      *memory.Memory
	ACL         *acl.Engine
	Guards      *guard.Dispatch
	Sessions    *session.Manager
	Quarantine  domain.QuarantineStore
	Alerts      domain.AlertSink
	Metrics     Metrics
}

// New builds a Pipeline from its component parts. Quarantine, Alerts, and
// Metrics may be nil; Evaluate degrades gracefully (quarantine persistence
// and alert emission are skipped, metrics go to a no-op sink).
func New(zones *zone.Registry, rl *ratelimit.Limiter, bl *blocklist.Blocklist, cn *canary.Manager, innate, cognitive domain.Scanner, mem *memory.Memory, aclEngine *acl.Engine, guards *guard.Dispatch, sessions *session.Manager, quarantine domain.QuarantineStore, alerts domain.AlertSink, metrics Metrics) *Pipeline {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Pipeline{
		Zones:       zones,
		RateLimiter: rl,
		Blocklist:   bl,
		Canary:      cn,
		Innate:      innate,
		Cognitive:   cognitive,
		Memory:      mem,
		ACL:         aclEngine,
		Guards:      guards,
		Sessions:    sessions,
		Quarantine:  quarantine,
		Alerts:      alerts,
		Metrics:     metrics,
	}
}

// Evaluate runs the full pipeline in a fixed order:
// rate-limit, blocklist, canary, innate+cognitive scan (concurrent), adaptive
// memory recall, ACL, guard, then side effects. It never suspends on the
// hot path; ctx only bounds the scan stage via errgroup.
func (p *Pipeline) Evaluate(ctx context.Context, req Request) (Verdict, error) {
	start := time.Now()

	z, err := p.Zones.Get(req.Zone)
	if err != nil {
		return Verdict{}, shielderr.New(shielderr.KindNotFound, "shield.Evaluate: zone")
	}

	rlKey := req.SessionID
	if rlKey == "" {
		rlKey = req.SourceIP
	}
	if p.RateLimiter != nil && rlKey != "" && !p.RateLimiter.Acquire(rlKey) {
		v := Verdict{Action: domain.ActionBlock, ThreatType: domain.ThreatTypeRateAbuse, Reason: "Rate limit exceeded"}
		return p.finish(ctx, req, z, v, start)
	}

	if p.Blocklist != nil {
		if entry := p.Blocklist.Check(string(req.Payload)); entry != nil {
			v := Verdict{Action: domain.ActionBlock, Severity: domain.SeverityHigh, ThreatType: domain.ThreatTypeBlocklisted, Reason: entry.Reason}
			return p.finish(ctx, req, z, v, start)
		}
	}

	if p.Canary != nil {
		if result := p.Canary.Scan(string(req.Payload), req.SessionID); result.Detected {
			v := Verdict{
				Action:     domain.ActionBlock,
				Severity:   domain.SeverityCritical,
				ThreatType: domain.ThreatTypeExfil,
				Reason:     "canary token triggered: " + result.Token.Description,
				Confidence: 1.0,
			}
			return p.finish(ctx, req, z, v, start)
		}
	}

	scanResult, err := p.scan(ctx, req.Payload)
	if err != nil {
		return Verdict{}, err
	}

	if p.Memory != nil {
		if entry, hit := p.Memory.Recall(req.Payload); hit {
			recalled := domain.ScanResult{Detected: true, Severity: domain.SeverityHigh, ThreatType: entry.ThreatType, Confidence: 1.0, Reason: "adaptive memory hit"}
			scanResult.Merge(recalled)
		}
	}

	aclNumber := z.InboundACL
	if req.Direction == domain.DirectionOutput {
		aclNumber = z.OutboundACL
	}
	aclVerdict, err := p.ACL.Evaluate(aclNumber, req.Direction, z.Type, req.Payload)
	if err != nil {
		return Verdict{}, err
	}

	finalAction := aclVerdict.Action
	reason := aclVerdict.Reason
	confidence := scanResult.Confidence
	var ruleNumber uint32 = aclVerdict.RuleSeq

	if scanResult.Detected {
		scanAction := actionForSeverity(scanResult.Severity)
		if scanAction > finalAction {
			finalAction = scanAction
			reason = scanResult.Reason
			confidence = scanResult.Confidence
		}
	}

	if p.Guards != nil {
		if g, ok := p.Guards.For(z.Type); ok {
			var gr domain.GuardResult
			var gerr error
			if req.Direction == domain.DirectionOutput {
				gr, gerr = g.CheckEgress(ctx, req.Payload)
			} else {
				gr, gerr = g.CheckIngress(ctx, req.Payload)
			}
			if gerr != nil {
				return Verdict{}, gerr
			}
			composed := guard.Compose(finalAction, gr)
			if composed > finalAction {
				reason = gr.Reason
				confidence = gr.Confidence
			}
			finalAction = composed
		}
	}

	v := Verdict{
		Action:     finalAction,
		Severity:   scanResult.Severity,
		ThreatType: scanResult.ThreatType,
		RuleNumber: ruleNumber,
		Reason:     reason,
		Confidence: confidence,
	}
	return p.finish(ctx, req, z, v, start)
}

// scan runs the innate and cognitive scanners concurrently via an errgroup
// fan-out and folds their results by severity via domain.ScanResult.Merge.
func (p *Pipeline) scan(ctx context.Context, payload []byte) (domain.ScanResult, error) {
	var innateResult, cognitiveResult domain.ScanResult
	g, gctx := errgroup.WithContext(ctx)

	if p.Innate != nil {
		g.Go(func() error {
			r, err := p.Innate.Scan(gctx, payload)
			if err != nil {
				return err
			}
			innateResult = r
			return nil
		})
	}
	if p.Cognitive != nil {
		g.Go(func() error {
			r, err := p.Cognitive.Scan(gctx, payload)
			if err != nil {
				return err
			}
			cognitiveResult = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.ScanResult{}, err
	}

	merged := innateResult
	merged.Merge(cognitiveResult)
	return merged, nil
}

// finish persists quarantine, emits alerts, updates session state and
// metrics, and returns v with ElapsedNS filled in. It is always the single
// exit path from Evaluate so side effects happen exactly once per request.
func (p *Pipeline) finish(ctx context.Context, req Request, z domain.Zone, v Verdict, start time.Time) (Verdict, error) {
	if v.Action == domain.ActionQuarantine && p.Quarantine != nil {
		id := quarantineID(req)
		rec := domain.QuarantineRecord{ID: id, Zone: z.Name, SessionID: req.SessionID, Reason: v.Reason, CreatedAt: time.Now().Unix()}
		if err := p.Quarantine.Put(ctx, req.Payload, rec); err == nil {
			v.QuarantineID = id
		}
	}

	if v.Action > domain.ActionAllow && p.Alerts != nil {
		_ = p.Alerts.Emit(ctx, domain.Alert{
			ID:           quarantineID(req),
			Type:         alertTypeFor(v.ThreatType),
			Severity:     v.Severity,
			Action:       v.Action,
			Zone:         z.Name,
			SessionID:    req.SessionID,
			Reason:       v.Reason,
			RuleNumber:   v.RuleNumber,
			QuarantineID: v.QuarantineID,
			CreatedAt:    time.Now(),
		})
	}

	if p.Sessions != nil && req.SessionID != "" {
		delta := threatDelta(v.Severity)
		_, _ = p.Sessions.RecordRequest(ctx, req.SessionID, v.Action, delta, v.Reason)
	}

	v.ElapsedNS = time.Since(start).Nanoseconds()
	p.Metrics.ObserveRequest(z.Name, v.Action, time.Since(start))
	return v, nil
}

func actionForSeverity(s domain.Severity) domain.Action {
	switch {
	case s >= domain.SeverityCritical:
		return domain.ActionBlock
	case s >= domain.SeverityHigh:
		return domain.ActionQuarantine
	case s >= domain.SeverityMedium:
		return domain.ActionLog
	default:
		return domain.ActionAllow
	}
}

func threatDelta(s domain.Severity) float64 {
	switch s {
	case domain.SeverityCritical:
		return 10.0
	case domain.SeverityHigh:
		return 6.0
	case domain.SeverityMedium:
		return 3.0
	case domain.SeverityLow:
		return 1.0
	default:
		return 0.0
	}
}

func alertTypeFor(tt domain.ThreatType) domain.AlertType {
	switch tt {
	case domain.ThreatTypeExfil:
		return domain.AlertTypeCanary
	case domain.ThreatTypeBlocklisted:
		return domain.AlertTypeBlocklist
	case domain.ThreatTypeBehavioral:
		return domain.AlertTypeCognitive
	case domain.ThreatTypeRateAbuse:
		return domain.AlertTypeRateLimit
	default:
		return domain.AlertTypeInnate
	}
}

func quarantineID(req Request) string {
	return req.Zone + "-" + req.SessionID + "-" + time.Now().Format("20060102T150405.000000000")
}
