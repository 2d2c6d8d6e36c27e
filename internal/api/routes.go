// Package api wires the Shield HTTP surface: request routing, gin
// middleware, and the handlers in internal/api/handlers.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentinel/edr/internal/api/handlers"
	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/middleware"
)

// Server wraps the Gin router and every Shield HTTP handler.
type Server struct {
	router *gin.Engine
	http   *http.Server
	logger *slog.Logger
}

// Handlers bundles every handler Server wires into the router. Built by the
// cmd/shieldd entrypoint once it has constructed the shield.Pipeline and its
// components.
type Handlers struct {
	Evaluate    *handlers.EvaluateHandler
	Zones       *handlers.ZoneHandler
	Sessions    *handlers.SessionHandler
	Canary      *handlers.CanaryHandler
	Blocklist   *handlers.BlocklistHandler
	Health      *handlers.HealthHandler
	AlertStream *handlers.AlertStreamHandler
	Proxy       *handlers.ProxyHandler
}

// AuthConfig configures the bearer/API-key auth and rate-limit middleware.
// APIKeyStore may be nil, in which case authentication is skipped entirely
// (suitable for local development or a Shield instance sitting behind an
// already-authenticating reverse proxy).
type AuthConfig struct {
	APIKeyStore domain.APIKeyStore
	RateLimit   middleware.RateLimitConfig
	RequireAuth bool
}

// NewServer builds the Shield HTTP server and registers every route.
func NewServer(h Handlers, auth AuthConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggingMiddleware(logger))
	router.Use(CORSMiddleware())

	rlConfig := auth.RateLimit
	if rlConfig == (middleware.RateLimitConfig{}) {
		rlConfig = middleware.DefaultRateLimitConfig()
	}
	rateLimiter := middleware.NewRateLimiter(rlConfig, logger)

	var validator middleware.APIKeyValidator
	if auth.APIKeyStore != nil {
		validator = middleware.NewAPIKeyValidator(auth.APIKeyStore)
	}

	router.GET("/healthz", h.Health.Healthz)
	router.GET("/readyz", h.Health.Readyz)

	v1 := router.Group("/v1")
	v1.Use(AuthenticationMiddleware(validator, auth.RequireAuth, logger))
	v1.Use(RateLimitingMiddleware(rateLimiter))
	{
		v1.POST("/evaluate", h.Evaluate.Evaluate)

		v1.GET("/zones", h.Zones.ListZones)
		v1.PUT("/zones", h.Zones.PutZone)
		v1.GET("/zones/:name", h.Zones.GetZone)
		v1.DELETE("/zones/:name", h.Zones.DeleteZone)

		v1.PUT("/acls", h.Zones.PutACL)
		v1.GET("/acls/:number", h.Zones.GetACL)

		v1.GET("/sessions/:id", h.Sessions.GetSession)

		v1.POST("/canary", h.Canary.Create)
		v1.DELETE("/canary/:id", h.Canary.Delete)
		v1.GET("/canary", h.Canary.Count)

		v1.POST("/blocklist", h.Blocklist.Add)
		v1.DELETE("/blocklist", h.Blocklist.Remove)
		v1.GET("/blocklist", h.Blocklist.Count)

		v1.GET("/stream/alerts", h.AlertStream.Stream)

		if h.Proxy != nil {
			v1.Any("/proxy/:zone/*path", h.Proxy.Serve)
		}
	}

	return &Server{router: router, logger: logger}
}

// Router returns the underlying Gin router, primarily for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server on addr, blocking until it exits or Shutdown
// is called from another goroutine.
func (s *Server) Run(addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.router}
	s.logger.Info("shield HTTP server listening", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server, waiting for in-flight requests
// to complete or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// LoggingMiddleware logs each request's method, path, status, and latency.
func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", c.ClientIP(),
		)
	}
}

// CORSMiddleware allows cross-origin requests from operator dashboards.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}

const ctxKeyTier = "shield.tier"

// RateLimitingMiddleware enforces per-key request budgets using limiter.
// The caller's tier is derived from whatever AuthenticationMiddleware placed
// on the context; unauthenticated callers are limited by source IP.
func RateLimitingMiddleware(limiter *middleware.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := middleware.GetAPIKey(c.Request.Context())
		tier := middleware.TierAnonymous
		if key != "" {
			tier = tierFromContext(c)
			key = "key:" + key
		} else {
			key = "ip:" + c.ClientIP()
		}

		allowed, remaining, resetAt := limiter.Allow(key, tier)
		c.Writer.Header().Set("X-RateLimit-Remaining", itoa(remaining))
		if !allowed {
			c.Writer.Header().Set("Retry-After", itoa(int(time.Until(resetAt).Seconds())))
			c.JSON(429, gin.H{"error": "rate_limited", "message": "request rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func tierFromContext(c *gin.Context) middleware.RateLimitTier {
	if t, ok := c.Get(ctxKeyTier); ok {
		if tier, ok := t.(middleware.RateLimitTier); ok {
			return tier
		}
	}
	return middleware.TierReadOnly
}

// AuthenticationMiddleware validates bearer/API-key auth on /v1 routes. When
// validator is nil, authentication is skipped and every caller is treated as
// an operator-tier caller, suitable for local development.
func AuthenticationMiddleware(validator middleware.APIKeyValidator, requireAuth bool, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if validator == nil {
			c.Set(ctxKeyTier, middleware.TierOperator)
			c.Next()
			return
		}

		key := bearerToken(c)
		if key == "" {
			if requireAuth {
				c.JSON(401, gin.H{"error": "unauthorized", "message": "API key required"})
				c.Abort()
				return
			}
			c.Next()
			return
		}

		info, err := validator(c.Request.Context(), key)
		if err != nil || !info.Active {
			c.JSON(401, gin.H{"error": "unauthorized", "message": "invalid or revoked API key"})
			c.Abort()
			return
		}
		if info.ExpiresAt != nil && time.Now().After(*info.ExpiresAt) {
			c.JSON(401, gin.H{"error": "unauthorized", "message": "API key expired"})
			c.Abort()
			return
		}

		c.Set(ctxKeyTier, info.Tier)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), middleware.ContextKeyAPIKey, key))
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if len(auth) > 7 && auth[:7] == "Bearer " {
		return auth[7:]
	}
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	return ""
}

func itoa(n int) string {
	if n < 0 {
		n = 0
	}
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
