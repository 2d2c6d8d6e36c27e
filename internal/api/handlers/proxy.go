package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/sentinel/edr/internal/gateway"
)

// ProxyHandler serves the zone-backend passthrough routes, forwarding
// whatever the evaluate pipeline has already allowed to the zone's
// configured backend (internal/gateway).
type ProxyHandler struct {
	gw     *gateway.Gateway
	logger *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(gw *gateway.Gateway, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{gw: gw, logger: logger}
}

// Serve handles any method under /v1/proxy/:zone/*path, proxying to the
// backend registered for :zone. Callers are expected to have already run
// the payload through POST /v1/evaluate; this handler only forwards.
func (h *ProxyHandler) Serve(c *gin.Context) {
	zoneName := c.Param("zone")
	h.gw.ServeZone(zoneName, c.Writer, c.Request)
}
