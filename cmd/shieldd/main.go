// Command shieldd runs the Shield gateway: the zone/ACL policy-enforcement
// point every LLM/RAG/Agent/Tool/MCP/API request passes through before it
// reaches its backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentinel/edr/internal/acl"
	"github.com/sentinel/edr/internal/api"
	"github.com/sentinel/edr/internal/api/handlers"
	"github.com/sentinel/edr/internal/blocklist"
	"github.com/sentinel/edr/internal/broadcast"
	"github.com/sentinel/edr/internal/canary"
	"github.com/sentinel/edr/internal/cognitive"
	"github.com/sentinel/edr/internal/config"
	"github.com/sentinel/edr/internal/db"
	"github.com/sentinel/edr/internal/db/repositories"
	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/gateway"
	"github.com/sentinel/edr/internal/guard"
	"github.com/sentinel/edr/internal/innate"
	"github.com/sentinel/edr/internal/memory"
	"github.com/sentinel/edr/internal/metrics"
	"github.com/sentinel/edr/internal/middleware"
	"github.com/sentinel/edr/internal/quarantine"
	"github.com/sentinel/edr/internal/ratelimit"
	"github.com/sentinel/edr/internal/session"
	"github.com/sentinel/edr/internal/shield"
	"github.com/sentinel/edr/internal/siem"
	"github.com/sentinel/edr/internal/zone"
)

const version = "0.1.0"

// patternCacheCapacity bounds the ACL engine's shared compiled-pattern
// cache; ACLs referencing more distinct patterns than this evict the
// least-recently-used entry.
const patternCacheCapacity = 4096

// sessionCapacity bounds the in-memory session table before the oldest
// session is evicted.
const sessionCapacity = 100_000

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("SHIELD_ENV") == "development" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting shieldd", "version", version, "env", cfg.Env, "hostname", cfg.Shield.Hostname)

	zonesFile, err := config.LoadZonesFile(cfg.Shield.ZonesPath)
	if err != nil {
		logger.Error("failed to load zones file", "error", err)
		os.Exit(1)
	}

	zones := zone.NewRegistry()
	aclEngine := acl.NewEngine(patternCacheCapacity)
	for _, a := range zonesFile.ACLs {
		if err := aclEngine.Put(a); err != nil {
			logger.Error("failed to load ACL from zones file", "acl", a.Number, "error", err)
			os.Exit(1)
		}
	}
	for _, z := range zonesFile.Zones {
		zones.Put(z)
	}
	if zones.Len() == 0 {
		bootstrapDefaultZone(zones, aclEngine, logger)
	}

	gw := gateway.NewGateway(logger)
	for _, z := range zones.List() {
		if z.Backend == nil {
			continue
		}
		if err := gw.RegisterZone(gateway.ZoneRoute{
			ZoneName:       z.Name,
			TargetURL:      z.Backend.TargetURL,
			Timeout:        z.Backend.Timeout,
			RateLimit:      z.Backend.RateLimit,
			CircuitBreaker: z.Backend.CircuitBreaker,
		}); err != nil {
			logger.Error("failed to register zone backend", "zone", z.Name, "error", err)
			os.Exit(1)
		}
	}

	rateLimiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.Shield.RateLimit.RPS,
		BurstSize:         float64(cfg.Shield.RateLimit.Burst),
	})
	bl := blocklist.New("shield-blocklist")
	canaryMgr := canary.NewManager()
	mem := memory.New(sessionCapacity)
	sessions := session.NewManager(sessionCapacity)

	guards := guard.NewDispatch(
		guard.NewLLMGuard(),
		guard.NewRAGGuard(),
		guard.NewAgentGuard(),
		guard.NewToolGuard(),
		guard.NewMCPGuard(),
		guard.NewAPIGuard(),
	)

	quarantineStore, err := quarantine.New(logger, cfg.Shield.Quarantine.Root)
	if err != nil {
		logger.Error("failed to initialize quarantine store", "error", err)
		os.Exit(1)
	}

	siemExporter, err := siem.New(logger, siem.Config{
		Enabled: cfg.Shield.SIEM.Enabled,
		Host:    cfg.Shield.SIEM.Host,
		Port:    cfg.Shield.SIEM.Port,
		Format:  siem.Format(cfg.Shield.SIEM.Format),
	})
	if err != nil {
		logger.Error("failed to initialize SIEM exporter", "error", err)
		os.Exit(1)
	}
	defer siemExporter.Close()

	alertHub := broadcast.NewHub(siemExporter)

	reg := prometheus.NewRegistry()
	metricsCollector := metrics.New(reg)

	pipeline := shield.New(
		zones, rateLimiter, bl, canaryMgr,
		innate.New(), cognitive.New(), mem, aclEngine, guards,
		sessions, quarantineStore, alertHub, metricsCollector,
	)

	var apiKeyStore domain.APIKeyStore
	var database *db.DB
	if cfg.Shield.DatabaseURL != "" {
		database, err = db.New(cfg.Shield.DatabaseURL, db.DefaultPoolConfig(), logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer database.Close()
		apiKeyStore = repositories.NewAPIKeyRepository(database.DB)
	}

	var pinger handlers.Pinger
	if database != nil {
		pinger = database
	}

	srv := api.NewServer(api.Handlers{
		Evaluate:    handlers.NewEvaluateHandler(pipeline, logger),
		Zones:       handlers.NewZoneHandler(zones, aclEngine, logger),
		Sessions:    handlers.NewSessionHandler(sessions, logger),
		Canary:      handlers.NewCanaryHandler(canaryMgr, logger),
		Blocklist:   handlers.NewBlocklistHandler(bl, logger),
		Health:      handlers.NewHealthHandler(pinger, version),
		AlertStream: handlers.NewAlertStreamHandler(alertHub, logger),
		Proxy:       handlers.NewProxyHandler(gw, logger),
	}, api.AuthConfig{
		APIKeyStore: apiKeyStore,
		RequireAuth: apiKeyStore != nil,
	}, logger)

	srv.Router().GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	addr := fmt.Sprintf(":%d", cfg.Shield.HTTPPort)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("shield HTTP server exited", "error", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shield HTTP server shutdown error", "error", err)
		}
		logger.Info("shieldd shutdown complete")
	}
}

// bootstrapDefaultZone registers a permissive catch-all zone so a freshly
// started shieldd with no configured zones still answers /v1/evaluate,
// rather than rejecting every request as unknown_zone.
func bootstrapDefaultZone(zones *zone.Registry, aclEngine *acl.Engine, logger *slog.Logger) {
	const defaultACLNumber = 1

	if err := aclEngine.Put(domain.ACL{Number: defaultACLNumber, DefaultAction: domain.ActionAllow}); err != nil {
		logger.Error("failed to install default ACL", "error", err)
		os.Exit(1)
	}
	zones.Put(domain.Zone{
		Name:        "default",
		Type:        domain.ZoneTypeAny,
		InboundACL:  defaultACLNumber,
		OutboundACL: defaultACLNumber,
	})
	logger.Warn("no zones configured, bootstrapped a permissive default zone", "zone", "default")
}
