package temporal

import (
	"fmt"
	"time"

	"github.com/sentinel/edr/internal/domain"
	"go.temporal.io/sdk/workflow"
)

// EscalationInput carries the alert that triggered an escalation workflow.
type EscalationInput struct {
	Alert domain.Alert
}

// EscalationOutput reports what the escalation workflow did.
type EscalationOutput struct {
	SIEMExported bool
	Notified     bool
	CompletedAt  time.Time
}

// EscalationWorkflow runs the side-effect chain for one high-severity
// alert: persist it durably, export to SIEM, and notify on-call, with each
// step isolated in its own activity so a notification failure never loses
// the underlying alert record.
func EscalationWorkflow(ctx workflow.Context, input EscalationInput) (*EscalationOutput, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
	})
	var activities *Activities

	var storeID string
	if err := workflow.ExecuteActivity(ctx, activities.PersistAlert, input.Alert).Get(ctx, &storeID); err != nil {
		return nil, fmt.Errorf("persist alert failed: %w", err)
	}

	out := &EscalationOutput{}

	if err := workflow.ExecuteActivity(ctx, activities.ExportToSIEM, input.Alert).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("siem export failed", "error", err)
	} else {
		out.SIEMExported = true
	}

	if err := workflow.ExecuteActivity(ctx, activities.NotifyOnCall, input.Alert).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("on-call notification failed", "error", err)
	} else {
		out.Notified = true
	}

	out.CompletedAt = time.Now()
	return out, nil
}

// BatchEscalationWorkflow runs EscalationWorkflow for a batch of alerts as
// child workflows, five at a time.
func BatchEscalationWorkflow(ctx workflow.Context, alerts []domain.Alert) ([]EscalationOutput, error) {
	results := make([]EscalationOutput, 0, len(alerts))

	const batchSize = 5
	for i := 0; i < len(alerts); i += batchSize {
		end := i + batchSize
		if end > len(alerts) {
			end = len(alerts)
		}
		batch := alerts[i:end]

		futures := make([]workflow.ChildWorkflowFuture, 0, len(batch))
		for _, alert := range batch {
			futures = append(futures, workflow.ExecuteChildWorkflow(ctx, EscalationWorkflow, EscalationInput{Alert: alert}))
		}

		for _, future := range futures {
			var result EscalationOutput
			if err := future.Get(ctx, &result); err != nil {
				workflow.GetLogger(ctx).Error("escalation child workflow failed", "error", err)
				continue
			}
			results = append(results, result)
		}
	}

	return results, nil
}

// QuarantineReviewQueueWorkflow continuously pulls quarantined payloads off
// a review queue and runs an analyst-notification activity for each,
// backing off and retrying on an empty queue rather than exiting.
func QuarantineReviewQueueWorkflow(ctx workflow.Context) error {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
	})
	var activities *Activities

	for {
		var rec domain.QuarantineRecord
		if err := workflow.ExecuteActivity(ctx, activities.DequeueQuarantine).Get(ctx, &rec); err != nil {
			workflow.Sleep(ctx, 10*time.Second)
			continue
		}

		if err := workflow.ExecuteActivity(ctx, activities.NotifyAnalyst, rec).Get(ctx, nil); err != nil {
			workflow.GetLogger(ctx).Error("analyst notification failed", "error", err)
		}
	}
}
