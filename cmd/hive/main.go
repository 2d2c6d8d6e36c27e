// Command hive runs the Hive aggregator: the Agent fleet's registration
// point, authoritative signature catalog, and telemetry sink.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentinel/edr/internal/config"
	"github.com/sentinel/edr/internal/db"
	"github.com/sentinel/edr/internal/db/repositories"
	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/hive"
	"github.com/sentinel/edr/internal/queue"
	"github.com/sentinel/edr/internal/siem"
	"github.com/sentinel/edr/internal/temporal"
)

const version = "0.1.0"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting hive", "version", version, "env", cfg.Env)

	fleet := hive.NewFleet(logger)
	catalog := hive.NewCatalog(nil)

	var sink domain.AlertSink
	var alertRepo *repositories.AlertRepository
	var database *db.DB
	if cfg.Hive.DatabaseURL != "" {
		database, err = db.New(cfg.Hive.DatabaseURL, db.DefaultPoolConfig(), logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer database.Close()
		alertRepo = repositories.NewAlertRepository(database.DB)
		sink = alertRepo
	}

	reviewQueue := queue.New[domain.QuarantineRecord](256)

	siemExporter, err := siem.New(logger, siem.Config{
		Enabled: cfg.Shield.SIEM.Enabled,
		Host:    cfg.Shield.SIEM.Host,
		Port:    cfg.Shield.SIEM.Port,
		Format:  siem.Format(cfg.Shield.SIEM.Format),
	})
	if err != nil {
		logger.Warn("siem exporter unavailable, escalation export disabled", "error", err)
	} else {
		defer siemExporter.Close()
	}

	if cfg.Hive.TemporalHost != "" {
		temporalClient, err := temporal.NewClient(logger, temporal.ClientConfig{
			HostPort:  fmt.Sprintf("%s:%d", cfg.Hive.TemporalHost, cfg.Hive.TemporalPort),
			Namespace: cfg.Hive.Namespace,
			TaskQueue: cfg.Hive.TaskQueue,
			Timeout:   30 * time.Second,
		})
		if err != nil {
			logger.Warn("temporal unavailable, escalation workflows disabled", "error", err)
		} else {
			defer temporalClient.Close()
			activities := &temporal.Activities{
				Sink:              sink,
				SIEM:              siemExporter,
				ReviewQueue:       reviewQueue,
				Logger:            logger,
				OnCallWebhookURL:  cfg.Hive.Webhooks.OnCallURL,
				AnalystWebhookURL: cfg.Hive.Webhooks.AnalystURL,
			}
			if _, err := temporal.StartWorker(logger, temporalClient, temporal.WorkerConfig{TaskQueue: cfg.Hive.TaskQueue}, activities); err != nil {
				logger.Warn("failed to start temporal worker", "error", err)
			}
		}
	}

	wireListener := hive.NewListener(fleet, catalog, sink, reviewQueue, logger)
	wireLn, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Hive.WirePort))
	if err != nil {
		logger.Error("failed to bind wire listener", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fleet.ApplyDecay()
			}
		}
	}()

	wireErrCh := make(chan error, 1)
	go func() {
		logger.Info("hive wire listener ready", "port", cfg.Hive.WirePort)
		wireErrCh <- wireListener.Serve(ctx, wireLn)
	}()

	router := gin.New()
	router.Use(gin.Recovery())
	hive.NewAPIHandlers(fleet, catalog, alertRepo, logger).Register(router)

	httpSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Hive.HTTPPort), Handler: router}
	httpErrCh := make(chan error, 1)
	go func() {
		logger.Info("hive HTTP API listening", "port", cfg.Hive.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			httpErrCh <- err
			return
		}
		httpErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-wireErrCh:
		if err != nil {
			logger.Error("wire listener exited", "error", err)
			os.Exit(1)
		}
	case err := <-httpErrCh:
		if err != nil {
			logger.Error("hive HTTP server exited", "error", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("hive HTTP shutdown error", "error", err)
		}
		logger.Info("hive shutdown complete")
	}
}
