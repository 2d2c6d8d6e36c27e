// Package handlers implements the Shield HTTP surface's request handlers,
// wired onto internal/shield's Pipeline.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/shield"
	"github.com/sentinel/edr/internal/shielderr"
)

// EvaluateHandler serves POST /v1/evaluate, the single entry point every
// zone-bound payload passes through.
type EvaluateHandler struct {
	pipeline *shield.Pipeline
	logger   *slog.Logger
}

// NewEvaluateHandler creates an EvaluateHandler.
func NewEvaluateHandler(pipeline *shield.Pipeline, logger *slog.Logger) *EvaluateHandler {
	return &EvaluateHandler{pipeline: pipeline, logger: logger}
}

// EvaluateRequest is the JSON body of POST /v1/evaluate.
type EvaluateRequest struct {
	Zone      string `json:"zone" binding:"required"`
	Direction string `json:"direction"`
	SessionID string `json:"session_id"`
	Payload   string `json:"payload" binding:"required"`
}

// EvaluateResponse is the JSON body returned for a successful evaluation.
type EvaluateResponse struct {
	Action       string  `json:"action"`
	Severity     string  `json:"severity"`
	ThreatType   string  `json:"threat_type,omitempty"`
	RuleNumber   uint32  `json:"rule_number,omitempty"`
	Reason       string  `json:"reason,omitempty"`
	Confidence   float64 `json:"confidence"`
	QuarantineID string  `json:"quarantine_id,omitempty"`
	ElapsedNS    int64   `json:"elapsed_ns"`
}

func parseDirection(s string) domain.Direction {
	switch s {
	case "input":
		return domain.DirectionInput
	case "output":
		return domain.DirectionOutput
	default:
		return domain.DirectionAny
	}
}

// Evaluate handles POST /v1/evaluate.
func (h *EvaluateHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	verdict, err := h.pipeline.Evaluate(c.Request.Context(), shield.Request{
		Zone:      req.Zone,
		Direction: parseDirection(req.Direction),
		SessionID: req.SessionID,
		SourceIP:  c.ClientIP(),
		Payload:   []byte(req.Payload),
	})
	if err != nil {
		if errors.Is(err, shielderr.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown_zone", "message": err.Error()})
			return
		}
		h.logger.Error("evaluate failed", "error", err, "zone", req.Zone)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, EvaluateResponse{
		Action:       verdict.Action.String(),
		Severity:     verdict.Severity.String(),
		ThreatType:   string(verdict.ThreatType),
		RuleNumber:   verdict.RuleNumber,
		Reason:       verdict.Reason,
		Confidence:   verdict.Confidence,
		QuarantineID: verdict.QuarantineID,
		ElapsedNS:    verdict.ElapsedNS,
	})
}
