package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentinel/edr/internal/acl"
	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/shielderr"
	"github.com/sentinel/edr/internal/zone"
)

// ZoneHandler serves the zone and ACL CRUD surface under /v1/zones and
// /v1/acls.
type ZoneHandler struct {
	zones  *zone.Registry
	acls   *acl.Engine
	logger *slog.Logger
}

// NewZoneHandler creates a ZoneHandler.
func NewZoneHandler(zones *zone.Registry, acls *acl.Engine, logger *slog.Logger) *ZoneHandler {
	return &ZoneHandler{zones: zones, acls: acls, logger: logger}
}

// ListZones handles GET /v1/zones.
func (h *ZoneHandler) ListZones(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"zones": h.zones.List()})
}

// PutZone handles PUT /v1/zones, upserting a zone record.
func (h *ZoneHandler) PutZone(c *gin.Context) {
	var z domain.Zone
	if err := c.ShouldBindJSON(&z); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	h.zones.Put(z)
	c.JSON(http.StatusOK, z)
}

// GetZone handles GET /v1/zones/:name.
func (h *ZoneHandler) GetZone(c *gin.Context) {
	z, err := h.zones.Get(c.Param("name"))
	if err != nil {
		if errors.Is(err, shielderr.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "zone_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, z)
}

// DeleteZone handles DELETE /v1/zones/:name.
func (h *ZoneHandler) DeleteZone(c *gin.Context) {
	h.zones.Delete(c.Param("name"))
	c.Status(http.StatusNoContent)
}

// PutACL handles PUT /v1/acls, upserting an ACL's full rule set.
func (h *ZoneHandler) PutACL(c *gin.Context) {
	var a domain.ACL
	if err := c.ShouldBindJSON(&a); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	if err := h.acls.Replace(a); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_acl", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, a)
}

// GetACL handles GET /v1/acls/:number.
func (h *ZoneHandler) GetACL(c *gin.Context) {
	number, err := parseUint32(c.Param("number"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_number"})
		return
	}
	a, err := h.acls.Get(number)
	if err != nil {
		if errors.Is(err, shielderr.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "acl_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, a)
}

func parseUint32(s string) (uint32, error) {
	if s == "" {
		return 0, domain.ErrInvalid
	}
	var n uint64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, domain.ErrInvalid
		}
		n = n*10 + uint64(r-'0')
	}
	return uint32(n), nil
}
