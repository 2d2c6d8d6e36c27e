package syncsig

import (
	"context"
	"time"

	"go.temporal.io/sdk/workflow"
)

// PollInput parameterizes SignatureSyncWorkflow: how often to ask the Hive
// for an update and which version the Agent is currently running.
type PollInput struct {
	AgentID         string
	CurrentVersion  uint64
	PollInterval    time.Duration
	DownloadTimeout time.Duration
}

// PollOutput reports the outcome of one SignatureSyncWorkflow run.
type PollOutput struct {
	FinalVersion uint64
	Applied      bool
}

// CheckUpdateResult is CheckUpdateActivity's return value.
type CheckUpdateResult struct {
	Info      UpdateInfo
	Available bool
}

// ApplyUpdateInput bundles ApplyUpdateActivity's parameters, matching the
// teacher's convention of a single input struct per activity (ScanInput,
// ScanContractInput).
type ApplyUpdateInput struct {
	Data        []byte
	ChecksumHex string
	Version     uint64
}

// Activities binds the Hive Source and the local pattern Store so Temporal
// can register its methods as activities. A worker process constructs one
// Activities value at startup and calls w.RegisterActivity(act.CheckUpdate)
// etc; the workflow itself only ever references the activity functions by
// name, never the bound receiver, per Temporal's replay-determinism rules.
type Activities struct {
	Source Source
	Store  *Store
}

// CheckUpdate asks the Hive whether a newer pattern set exists than
// currentVersion.
func (a *Activities) CheckUpdate(ctx context.Context, currentVersion uint64) (CheckUpdateResult, error) {
	info, available, err := a.Source.CheckUpdate(ctx, currentVersion)
	if err != nil {
		return CheckUpdateResult{}, err
	}
	return CheckUpdateResult{Info: info, Available: available}, nil
}

// Download fetches the full blob for version from the Hive.
func (a *Activities) Download(ctx context.Context, version uint64) ([]byte, error) {
	return a.Source.Download(ctx, version)
}

// ApplyUpdate verifies and swaps a downloaded blob into the local Store.
func (a *Activities) ApplyUpdate(ctx context.Context, input ApplyUpdateInput) error {
	return a.Store.ApplyUpdate(input.Data, input.ChecksumHex, input.Version)
}

// SignatureSyncWorkflow is the long-running Temporal workflow an Agent
// starts at boot. It loops: CHECK_UPDATE, and on UPDATE_AVAILABLE,
// DOWNLOAD + verify + apply, then sleeps PollInterval before checking
// again. A failed verify or decode aborts the apply for that round without
// touching the live pattern set (Store.ApplyUpdate's own guarantee); the
// loop continues on the next tick rather than terminating the workflow.
// History length is capped via ContinueAsNew so the workflow can run
// indefinitely without an unbounded event history.
func SignatureSyncWorkflow(ctx workflow.Context, input PollInput) (PollOutput, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: input.DownloadTimeout,
	})

	var activities *Activities
	version := input.CurrentVersion
	applied := false

	for {
		var check CheckUpdateResult
		err := workflow.ExecuteActivity(ctx, activities.CheckUpdate, version).Get(ctx, &check)
		if err != nil {
			workflow.GetLogger(ctx).Warn("check_update failed", "error", err)
		} else if check.Available {
			var data []byte
			if err := workflow.ExecuteActivity(ctx, activities.Download, check.Info.Version).Get(ctx, &data); err != nil {
				workflow.GetLogger(ctx).Warn("download failed", "error", err, "version", check.Info.Version)
			} else {
				applyInput := ApplyUpdateInput{Data: data, ChecksumHex: check.Info.ChecksumHex, Version: check.Info.Version}
				if err := workflow.ExecuteActivity(ctx, activities.ApplyUpdate, applyInput).Get(ctx, nil); err != nil {
					workflow.GetLogger(ctx).Warn("apply failed", "error", err, "version", check.Info.Version)
				} else {
					version = check.Info.Version
					applied = true
				}
			}
		}

		if workflow.GetInfo(ctx).GetCurrentHistoryLength() > 5000 {
			return PollOutput{FinalVersion: version, Applied: applied}, workflow.NewContinueAsNewError(ctx, SignatureSyncWorkflow, PollInput{
				AgentID:         input.AgentID,
				CurrentVersion:  version,
				PollInterval:    input.PollInterval,
				DownloadTimeout: input.DownloadTimeout,
			})
		}

		if err := workflow.Sleep(ctx, input.PollInterval); err != nil {
			return PollOutput{FinalVersion: version, Applied: applied}, err
		}
	}
}
