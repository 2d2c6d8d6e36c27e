// Command agent runs the endpoint component: innate/cognitive scanning of
// local events, periodic heartbeat and threat reporting to Hive, and
// periodic signature pull.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentinel/edr/internal/agent"
	"github.com/sentinel/edr/internal/cognitive"
	"github.com/sentinel/edr/internal/config"
	"github.com/sentinel/edr/internal/innate"
	"github.com/sentinel/edr/internal/syncsig"
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
	logger.Info("starting agent", "version", version, "env", cfg.Env, "hive", cfg.Agent.HiveHost)

	hostname, _ := os.Hostname()
	client := agent.New(fmt.Sprintf("%s:%d", cfg.Agent.HiveHost, cfg.Agent.HiveWirePort), hostname)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	err = client.Connect(connectCtx)
	connectCancel()
	if err != nil {
		logger.Warn("failed to connect to hive at startup, degrading to local-only enforcement until reconnect succeeds", "error", err)
		go func() {
			if err := client.Reconnect(ctx); err != nil {
				logger.Warn("hive reconnect loop stopped", "error", err)
				return
			}
			logger.Info("reconnected to hive", "agent_id", client.AgentID())
		}()
	} else {
		logger.Info("registered with hive", "agent_id", client.AgentID())
		defer client.Close()
	}

	store := syncsig.NewStore(nil, 0)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go heartbeatLoop(ctx, client, logger, cfg.Agent.HeartbeatInterval)
	go signatureSyncLoop(ctx, client, store, logger, cfg.Agent.HeartbeatInterval)

	scanLoop := agent.NewScanLoop(client, logger, innate.New(), cognitive.New())
	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- scanLoop.Run(ctx, os.Stdin)
	}()

	select {
	case err := <-runErrCh:
		if err != nil {
			logger.Error("scan loop exited", "error", err)
			os.Exit(1)
		}
		logger.Info("scan input exhausted, agent exiting")
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}
}

func heartbeatLoop(ctx context.Context, client *agent.Client, logger *slog.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(ctx); err != nil {
				logger.Warn("heartbeat failed", "error", err)
			}
		}
	}
}

// signatureSyncLoop polls Hive for a newer pattern set every interval,
// applying updates via the same check → download → verify → RCU-swap
// sequence the Temporal-orchestrated SignatureSyncWorkflow describes,
// called directly here rather than through a workflow engine since a
// single endpoint agent has no need for Temporal's durability guarantees
// around this simple polling loop.
func signatureSyncLoop(ctx context.Context, client *agent.Client, store *syncsig.Store, logger *slog.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, available, err := client.CheckUpdate(ctx, store.Version())
			if err != nil {
				logger.Warn("signature check_update failed", "error", err)
				continue
			}
			if !available {
				continue
			}
			data, err := client.Download(ctx, info.Version)
			if err != nil {
				logger.Warn("signature download failed", "error", err, "version", info.Version)
				continue
			}
			if err := store.ApplyUpdate(data, info.ChecksumHex, info.Version); err != nil {
				logger.Warn("signature apply failed", "error", err, "version", info.Version)
				continue
			}
			logger.Info("applied signature update", "version", info.Version, "patterns", info.PatternCount)
		}
	}
}
