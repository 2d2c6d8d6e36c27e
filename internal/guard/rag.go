package guard

import (
	"context"
	"strings"

	"github.com/sentinel/edr/internal/domain"
)

var ragPoisoningPatterns = []string{"DROP", "DELETE", "TRUNCATE", "UPDATE"}
var ragMetadataPatterns = []string{"__metadata__", "_source", "embedding:"}
var ragProvenancePatterns = []string{"IGNORE PREVIOUS", "NEW INSTRUCTIONS", "[SYSTEM]", "[[INJECT]]"}

// RAGGuard checks vector-store queries and retrieved results. Grounded on
// guards/rag_guard.c.
type RAGGuard struct{}

func NewRAGGuard() *RAGGuard { return &RAGGuard{} }

func (g *RAGGuard) ZoneType() domain.ZoneType { return domain.ZoneTypeRAG }

func (g *RAGGuard) CheckIngress(ctx context.Context, data []byte) (domain.GuardResult, error) {
	text := string(data)

	for _, p := range ragPoisoningPatterns {
		if strings.Contains(text, p) {
			return domain.GuardResult{Action: domain.ActionBlock, Confidence: 0.9, Reason: "potential RAG poisoning (SQL-like pattern)"}, nil
		}
	}
	for _, p := range ragMetadataPatterns {
		if strings.Contains(text, p) {
			return domain.GuardResult{Action: domain.ActionQuarantine, Confidence: 0.75, Reason: "suspicious metadata access pattern"}, nil
		}
	}

	return allow(), nil
}

func (g *RAGGuard) CheckEgress(ctx context.Context, data []byte) (domain.GuardResult, error) {
	text := string(data)
	for _, p := range ragProvenancePatterns {
		if strings.Contains(text, p) {
			return domain.GuardResult{Action: domain.ActionBlock, Confidence: 0.95, Reason: "RAG response contains injected instructions"}, nil
		}
	}
	return allow(), nil
}
