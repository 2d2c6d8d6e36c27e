package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sentinel/edr/internal/broadcast"
)

var alertStreamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Operator dashboards are served from a different origin than the
	// Shield API in most deployments; bearer-token auth on the upgrade
	// request is the actual access control here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const alertStreamPingInterval = 30 * time.Second

// AlertStreamHandler serves GET /v1/stream/alerts, a live websocket feed of
// every Alert the pipeline emits.
type AlertStreamHandler struct {
	hub    *broadcast.Hub
	logger *slog.Logger
}

// NewAlertStreamHandler creates an AlertStreamHandler.
func NewAlertStreamHandler(hub *broadcast.Hub, logger *slog.Logger) *AlertStreamHandler {
	return &AlertStreamHandler{hub: hub, logger: logger}
}

// Stream upgrades the connection and relays alerts until the client
// disconnects.
func (h *AlertStreamHandler) Stream(c *gin.Context) {
	conn, err := alertStreamUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("alert stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	alerts, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(alertStreamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case a, ok := <-alerts:
			if !ok {
				return
			}
			if err := conn.WriteJSON(a); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}
