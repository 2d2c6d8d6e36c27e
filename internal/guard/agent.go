package guard

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/sentinel/edr/internal/domain"
)

const agentMaxChainDepth = 10
const agentMaxActionsPerTurn = 50

var agentPrivEscPatterns = []string{
	"sudo",
	"admin",
	"root",
	"superuser",
	"elevate",
	"grant all",
	"bypass security",
	"disable check",
	"override",
}

var agentCollusionMarkers = []string{"AGENT:", "[INSTRUCT]", "<<SYSTEM>>", "[[OVERRIDE]]"}
var agentForcefulMarkers = []string{"You must", "Execute immediately", "Priority: CRITICAL", "FORCE:"}
var agentExfilMarkers = []string{"FORWARD_TO:", "SEND_EXTERNAL:", "EXFIL:"}

// AgentGuard tracks per-session chain depth and per-turn action counts for
// multi-agent/chained-agent traffic, in addition to its stateless pattern
// checks. Grounded on guards/agent_guard.c.
type AgentGuard struct {
	chainDepth     atomic.Uint32
	actionsInTurn  atomic.Uint32
}

func NewAgentGuard() *AgentGuard { return &AgentGuard{} }

func (g *AgentGuard) ZoneType() domain.ZoneType { return domain.ZoneTypeAgent }

// ResetTurn clears the per-turn action counter; callers invoke this at the
// start of a new conversational turn.
func (g *AgentGuard) ResetTurn() { g.actionsInTurn.Store(0) }

// SetChainDepth records the current agent-chain depth for the next ingress
// check (the session/pipeline layer tracks chain membership; the guard
// only enforces the cap).
func (g *AgentGuard) SetChainDepth(depth uint32) { g.chainDepth.Store(depth) }

func (g *AgentGuard) CheckIngress(ctx context.Context, data []byte) (domain.GuardResult, error) {
	actions := g.actionsInTurn.Add(1)
	if actions > agentMaxActionsPerTurn {
		return domain.GuardResult{Action: domain.ActionBlock, Confidence: 0.95, Reason: "agent exceeded maximum actions per turn (possible infinite loop)"}, nil
	}

	if g.chainDepth.Load() > agentMaxChainDepth {
		return domain.GuardResult{Action: domain.ActionQuarantine, Confidence: 0.8, Reason: "agent chain depth exceeded"}, nil
	}

	text := string(data)
	for _, p := range agentPrivEscPatterns {
		if strings.Contains(text, p) {
			return domain.GuardResult{Action: domain.ActionBlock, Confidence: 0.9, Reason: "potential privilege escalation: " + p}, nil
		}
	}
	for _, m := range agentCollusionMarkers {
		if strings.Contains(text, m) {
			return domain.GuardResult{Action: domain.ActionQuarantine, Confidence: 0.85, Reason: "potential agent collusion/injection detected"}, nil
		}
	}

	return allow(), nil
}

func (g *AgentGuard) CheckEgress(ctx context.Context, data []byte) (domain.GuardResult, error) {
	text := string(data)

	for _, m := range agentForcefulMarkers {
		if strings.Contains(text, m) {
			return domain.GuardResult{Action: domain.ActionLog, Confidence: 0.6, Reason: "agent passing forceful instructions"}, nil
		}
	}
	for _, m := range agentExfilMarkers {
		if strings.Contains(text, m) {
			return domain.GuardResult{Action: domain.ActionBlock, Confidence: 0.95, Reason: "potential data exfiltration via agent"}, nil
		}
	}

	return allow(), nil
}
