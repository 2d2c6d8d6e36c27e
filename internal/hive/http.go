package hive

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentinel/edr/internal/db/repositories"
	"github.com/sentinel/edr/internal/domain"
)

// APIHandlers serves the Hive's admin HTTP surface: fleet inspection and
// signature catalog status for operators. sentinelctl does not call these
// routes.
type APIHandlers struct {
	fleet   *Fleet
	catalog *Catalog
	alerts  *repositories.AlertRepository
	logger  *slog.Logger
}

// NewAPIHandlers creates APIHandlers. alerts may be nil when Hive runs
// without a database, in which case GET /v1/alerts/critical answers 503.
func NewAPIHandlers(fleet *Fleet, catalog *Catalog, alerts *repositories.AlertRepository, logger *slog.Logger) *APIHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandlers{fleet: fleet, catalog: catalog, alerts: alerts, logger: logger}
}

// Register mounts every Hive admin route onto router.
func (h *APIHandlers) Register(router *gin.Engine) {
	router.GET("/healthz", h.healthz)

	v1 := router.Group("/v1")
	{
		v1.GET("/agents", h.listAgents)
		v1.GET("/agents/:id", h.getAgent)
		v1.POST("/agents/:id/vouch", h.vouchAgent)
		v1.DELETE("/agents/:id/vouch", h.revokeVouch)
		v1.POST("/agents/:id/report", h.reportAgent)
		v1.POST("/agents/:id/blacklist", h.blacklistAgent)
		v1.GET("/signatures", h.signatureStatus)
		v1.GET("/alerts/critical", h.listCriticalAlerts)
	}
}

func (h *APIHandlers) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *APIHandlers) listAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": h.fleet.List()})
}

func (h *APIHandlers) getAgent(c *gin.Context) {
	id, err := parseAgentID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_agent_id"})
		return
	}
	rec, ok := h.fleet.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent_not_found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

type vouchRequest struct {
	VoucherID uint64 `json:"voucher_id" binding:"required"`
}

func (h *APIHandlers) vouchAgent(c *gin.Context) {
	targetID, err := parseAgentID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_agent_id"})
		return
	}
	var req vouchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	count, err := h.fleet.GrantVouch(req.VoucherID, targetID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vouch_rejected", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vouches_received": count})
}

func (h *APIHandlers) revokeVouch(c *gin.Context) {
	targetID, err := parseAgentID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_agent_id"})
		return
	}
	var req vouchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	count, err := h.fleet.RevokeVouch(req.VoucherID, targetID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "revoke_rejected", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vouches_received": count})
}

type reportRequest struct {
	ReporterID uint64 `json:"reporter_id" binding:"required"`
	Reason     string `json:"reason"`
}

func (h *APIHandlers) reportAgent(c *gin.Context) {
	targetID, err := parseAgentID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_agent_id"})
		return
	}
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if err := h.fleet.ReportAgent(req.ReporterID, targetID, req.Reason); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "report_rejected", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (h *APIHandlers) blacklistAgent(c *gin.Context) {
	id, err := parseAgentID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_agent_id"})
		return
	}
	h.fleet.Blacklist(id)
	c.JSON(http.StatusOK, gin.H{"status": "blacklisted"})
}

func (h *APIHandlers) signatureStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": h.catalog.Version(),
		"count":   h.catalog.Count(),
	})
}

func (h *APIHandlers) listCriticalAlerts(c *gin.Context) {
	if h.alerts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no_database_configured"})
		return
	}
	alerts, err := h.alerts.GetCritical(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func parseAgentID(s string) (uint64, error) {
	var n uint64
	if s == "" {
		return 0, domain.ErrInvalid
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, domain.ErrInvalid
		}
		n = n*10 + uint64(r-'0')
	}
	return n, nil
}
