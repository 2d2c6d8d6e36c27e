package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentinel/edr/internal/blocklist"
	"github.com/sentinel/edr/internal/canary"
)

// CanaryHandler serves canary-token management under /v1/canary.
type CanaryHandler struct {
	canary *canary.Manager
	logger *slog.Logger
}

// NewCanaryHandler creates a CanaryHandler.
func NewCanaryHandler(c *canary.Manager, logger *slog.Logger) *CanaryHandler {
	return &CanaryHandler{canary: c, logger: logger}
}

type createCanaryRequest struct {
	Type        string `json:"type" binding:"required"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

func parseTokenType(s string) canary.TokenType {
	switch s {
	case "uuid":
		return canary.TokenTypeUUID
	case "email":
		return canary.TokenTypeEmail
	case "url":
		return canary.TokenTypeURL
	case "hash":
		return canary.TokenTypeHash
	case "custom":
		return canary.TokenTypeCustom
	default:
		return canary.TokenTypeString
	}
}

// Create handles POST /v1/canary.
func (h *CanaryHandler) Create(c *gin.Context) {
	var req createCanaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	tt := parseTokenType(req.Type)
	var tok canary.Token
	var err error
	if req.Value != "" {
		tok, err = h.canary.Create(tt, req.Value, req.Description)
	} else {
		tok, err = h.canary.Generate(tt)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_canary", "message": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, tok)
}

// Delete handles DELETE /v1/canary/:id.
func (h *CanaryHandler) Delete(c *gin.Context) {
	if err := h.canary.Delete(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "canary_not_found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Count handles GET /v1/canary.
func (h *CanaryHandler) Count(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"count": h.canary.Count()})
}

// BlocklistHandler serves blocklist management under /v1/blocklist.
type BlocklistHandler struct {
	blocklist *blocklist.Blocklist
	logger    *slog.Logger
}

// NewBlocklistHandler creates a BlocklistHandler.
func NewBlocklistHandler(b *blocklist.Blocklist, logger *slog.Logger) *BlocklistHandler {
	return &BlocklistHandler{blocklist: b, logger: logger}
}

type blocklistEntryRequest struct {
	Pattern string `json:"pattern" binding:"required"`
	Reason  string `json:"reason"`
}

// Add handles POST /v1/blocklist.
func (h *BlocklistHandler) Add(c *gin.Context) {
	var req blocklistEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if err := h.blocklist.Add(req.Pattern, req.Reason); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_pattern", "message": err.Error()})
		return
	}
	c.Status(http.StatusCreated)
}

// Remove handles DELETE /v1/blocklist.
func (h *BlocklistHandler) Remove(c *gin.Context) {
	pattern := c.Query("pattern")
	if err := h.blocklist.Remove(pattern); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "pattern_not_found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Count handles GET /v1/blocklist.
func (h *BlocklistHandler) Count(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"count": h.blocklist.Count()})
}
