// Package temporal implements worker registration for Temporal workflows.
package temporal

import (
	"log/slog"

	"go.temporal.io/sdk/worker"
)

// WorkerConfig contains worker configuration.
type WorkerConfig struct {
	TaskQueue string
}

// RegisterWorkflows registers all Hive-side workflow definitions.
func RegisterWorkflows(w worker.Worker) {
	w.RegisterWorkflow(EscalationWorkflow)
	w.RegisterWorkflow(BatchEscalationWorkflow)
	w.RegisterWorkflow(QuarantineReviewQueueWorkflow)
}

// RegisterActivities registers all Hive-side activity definitions, bound
// to the real dependencies in act.
func RegisterActivities(w worker.Worker, act *Activities) {
	w.RegisterActivity(act.PersistAlert)
	w.RegisterActivity(act.ExportToSIEM)
	w.RegisterActivity(act.NotifyOnCall)
	w.RegisterActivity(act.DequeueQuarantine)
	w.RegisterActivity(act.NotifyAnalyst)
}

// StartWorker starts the Temporal worker.
func StartWorker(logger *slog.Logger, client *Client, config WorkerConfig, act *Activities) (worker.Worker, error) {
	logger.Info("starting Temporal worker", "task_queue", config.TaskQueue)

	w := worker.New(client.client, config.TaskQueue, worker.Options{})

	RegisterWorkflows(w)
	RegisterActivities(w, act)

	err := w.Start()
	if err != nil {
		logger.Error("failed to start worker", "error", err)
		return nil, err
	}

	logger.Info("worker started successfully")
	return w, nil
}
