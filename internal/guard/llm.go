package guard

import (
	"context"
	"strings"

	"github.com/sentinel/edr/internal/domain"
)

const llmMaxPromptSize = 100 * 1024 // 100KB
const llmEntropyThreshold = 0.95

var llmInjectionPatterns = []string{
	"ignore",
	"disregard",
	"forget",
	"override",
	"bypass",
	"skip",
	"ignore all previous",
	"forget everything",
	"new instructions",
	"system prompt",
	"reveal your",
	"show me your",
	"what are your instructions",
}

var llmSensitiveResponsePatterns = []string{
	"password",
	"api_key",
	"secret",
	"private_key",
	"BEGIN RSA",
	"access_token",
}

// LLMGuard checks prompts entering an LLM zone and the model's responses
// leaving it. Grounded on guards/llm_guard.c.
type LLMGuard struct{}

func NewLLMGuard() *LLMGuard { return &LLMGuard{} }

func (g *LLMGuard) ZoneType() domain.ZoneType { return domain.ZoneTypeLLM }

func (g *LLMGuard) CheckIngress(ctx context.Context, data []byte) (domain.GuardResult, error) {
	if len(data) > llmMaxPromptSize {
		return domain.GuardResult{Action: domain.ActionBlock, Confidence: 0.99, Reason: "prompt size exceeds limit"}, nil
	}

	if entropy := shannonEntropy(data); entropy > llmEntropyThreshold {
		return domain.GuardResult{Action: domain.ActionQuarantine, Confidence: entropy, Reason: "high entropy detected (possible encoded payload)"}, nil
	}

	lowered := strings.ToLower(string(data))
	for _, p := range llmInjectionPatterns {
		if strings.Contains(lowered, p) {
			return domain.GuardResult{Action: domain.ActionBlock, Confidence: 0.85, Reason: "prompt injection pattern detected"}, nil
		}
	}

	return allow(), nil
}

func (g *LLMGuard) CheckEgress(ctx context.Context, data []byte) (domain.GuardResult, error) {
	text := string(data)
	for _, p := range llmSensitiveResponsePatterns {
		if strings.Contains(text, p) {
			return domain.GuardResult{Action: domain.ActionQuarantine, Confidence: 0.8, Reason: "potential sensitive data in response: " + p}, nil
		}
	}
	return allow(), nil
}
