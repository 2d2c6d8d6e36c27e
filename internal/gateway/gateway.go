// Package gateway implements the Shield zone gateway: once the request
// pipeline allows a request, the gateway reverse-proxies it to the zone's configured
// backend (the actual LLM/RAG/tool/MCP/API endpoint behind that zone),
// guarded by an x/time/rate limiter at the HTTP-ingress layer and an
// internal/circuit breaker per backend.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/sentinel/edr/internal/circuit"
)

// ZoneRoute binds a zone name to its backend service.
type ZoneRoute struct {
	ZoneName       string
	TargetURL      string
	Timeout        time.Duration
	RateLimit      int // requests per second
	CircuitBreaker bool
}

// Gateway reverse-proxies allowed requests to each zone's backend.
type Gateway struct {
	logger *slog.Logger
	routes map[string]*routeHandler
	mu     sync.RWMutex
}

// routeHandler handles a single zone's backend.
type routeHandler struct {
	proxy     *httputil.ReverseProxy
	config    ZoneRoute
	limiter   *rate.Limiter
	breaker   *circuit.Breaker
	statsLock sync.RWMutex
	stats     RouteStats
}

// RouteStats tracks metrics for a zone's backend.
type RouteStats struct {
	Requests      int64
	Success       int64
	Failures      int64
	Timeouts      int64
	TotalLatency  time.Duration
	LastError     string
	LastErrorTime time.Time
}

// NewGateway creates a Gateway.
func NewGateway(logger *slog.Logger) *Gateway {
	return &Gateway{
		logger: logger.With("service", "gateway"),
		routes: make(map[string]*routeHandler),
	}
}

// RegisterZone binds a zone to its backend service.
func (gw *Gateway) RegisterZone(config ZoneRoute) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	target, err := url.Parse(config.TargetURL)
	if err != nil {
		return fmt.Errorf("invalid target URL: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	proxy := httputil.NewSingleHostReverseProxy(target)

	limiter := rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimit*10)

	var breaker *circuit.Breaker
	if config.CircuitBreaker {
		breaker = circuit.New(config.ZoneName, 5, 3, 30*time.Second)
		breaker.OnOpen(func(name string) {
			gw.logger.Warn("circuit breaker opened", "zone", name)
		})
		breaker.OnClose(func(name string) {
			gw.logger.Info("circuit breaker closed", "zone", name)
		})
	}

	handler := &routeHandler{
		proxy:   proxy,
		config:  config,
		limiter: limiter,
		breaker: breaker,
	}

	gw.routes[config.ZoneName] = handler

	gw.logger.Info("zone route registered",
		"zone", config.ZoneName,
		"target", config.TargetURL,
		"rate_limit", config.RateLimit,
		"circuit_breaker", config.CircuitBreaker,
	)

	return nil
}

// ServeZone proxies an already-allowed request to the named zone's backend.
// Callers are expected to have run the request through the shield pipeline
// first; the gateway only handles transport concerns (rate limiting, circuit
// breaking, timeouts, stats).
func (gw *Gateway) ServeZone(zoneName string, w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	gw.mu.RLock()
	handler, exists := gw.routes[zoneName]
	gw.mu.RUnlock()

	if !exists {
		http.Error(w, "zone not routed", http.StatusNotFound)
		return
	}

	// Check circuit breaker
	if handler.breaker != nil {
		if !handler.breaker.Allow() {
			gw.logger.Warn("circuit breaker open", "zone", zoneName)
			http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	// Check rate limit
	if !handler.limiter.Allow() {
		gw.logger.Warn("rate limit exceeded",
			"zone", zoneName,
			"client", r.RemoteAddr,
		)
		w.Header().Set("Retry-After", "1")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	// Create response writer wrapper to track status
	wrapped := &responseWriterWrapper{ResponseWriter: w}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), handler.config.Timeout)
	defer cancel()

	// Add trace headers
	r.Header.Set("X-Request-ID", generateRequestID())
	r.Header.Set("X-Forwarded-For", r.RemoteAddr)

	// Proxy request
	done := make(chan struct{})
	go func() {
		handler.proxy.ServeHTTP(wrapped, r.WithContext(ctx))
		close(done)
	}()

	// Wait for completion or timeout
	select {
	case <-done:
		// Request completed
	case <-ctx.Done():
		http.Error(w, "request timeout", http.StatusGatewayTimeout)
		handler.recordFailure(time.Since(start), "timeout")
		return
	}

	// Update statistics
	latency := time.Since(start)
	handler.statsLock.Lock()
	handler.stats.Requests++
	handler.stats.TotalLatency += latency

	if wrapped.statusCode >= 200 && wrapped.statusCode < 300 {
		handler.stats.Success++
		if handler.breaker != nil {
			handler.breaker.Success()
		}
	} else if wrapped.statusCode >= 500 {
		handler.stats.Failures++
		handler.stats.LastError = fmt.Sprintf("HTTP %d", wrapped.statusCode)
		handler.stats.LastErrorTime = time.Now()
		if handler.breaker != nil {
			handler.breaker.Failure()
		}
	}
	handler.statsLock.Unlock()

	gw.logger.Info("request processed",
		"zone", zoneName,
		"method", r.Method,
		"status", wrapped.statusCode,
		"latency_ms", latency.Milliseconds(),
	)
}

// Stats returns statistics for every routed zone.
func (gw *Gateway) Stats() map[string]RouteStats {
	gw.mu.RLock()
	defer gw.mu.RUnlock()

	stats := make(map[string]RouteStats)
	for zoneName, handler := range gw.routes {
		handler.statsLock.RLock()
		stats[zoneName] = handler.stats
		handler.statsLock.RUnlock()
	}

	return stats
}

// Helper types and methods

type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
		w.ResponseWriter.WriteHeader(statusCode)
	}
}

func (w *responseWriterWrapper) Write(b []byte) (int, error) {
	if !w.written {
		w.statusCode = http.StatusOK
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

func (h *routeHandler) recordFailure(latency time.Duration, reason string) {
	h.statsLock.Lock()
	defer h.statsLock.Unlock()

	h.stats.Requests++
	h.stats.Failures++
	h.stats.LastError = reason
	h.stats.LastErrorTime = time.Now()
	h.stats.TotalLatency += latency

	if h.breaker != nil {
		h.breaker.Failure()
	}
}

func generateRequestID() string {
	return uuid.NewString()
}
