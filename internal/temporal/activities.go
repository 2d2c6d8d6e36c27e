package temporal

import (
	"context"
	"log/slog"

	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/queue"
	"github.com/sentinel/edr/internal/shielderr"
	"github.com/sentinel/edr/internal/siem"
)

// Activities binds Hive's real side-effect dependencies so Temporal can
// register its methods as activities, the same shape as
// syncsig.Activities: a worker process constructs one Activities value at
// startup and calls w.RegisterActivity(act.PersistAlert) etc; workflow
// code only ever references the activity functions by name, never the
// bound receiver, per Temporal's replay-determinism rules.
type Activities struct {
	Sink        domain.AlertSink
	SIEM        *siem.Exporter
	ReviewQueue *queue.Queue[domain.QuarantineRecord]
	Logger      *slog.Logger

	// OnCallWebhookURL/AnalystWebhookURL, when set, are POSTed a JSON
	// webhookEvent by NotifyOnCall/NotifyAnalyst. Either left empty falls
	// back to a log line, since not every deployment runs a paging
	// integration.
	OnCallWebhookURL  string
	AnalystWebhookURL string
}

// PersistAlert durably records an alert via whatever domain.AlertSink the
// Hive process was configured with (the Postgres-backed AlertRepository
// when a database is configured, or a no-op sink otherwise).
func (a *Activities) PersistAlert(ctx context.Context, alert domain.Alert) (string, error) {
	if a.Sink != nil {
		if err := a.Sink.Emit(ctx, alert); err != nil {
			return "", err
		}
	}
	return alert.ID, nil
}

// ExportToSIEM hands the alert to the configured SIEM exporter. A no-op if
// SIEM export isn't configured (Exporter.Emit itself degrades to a no-op
// when cfg.Enabled is false).
func (a *Activities) ExportToSIEM(ctx context.Context, alert domain.Alert) error {
	if a.SIEM == nil {
		return nil
	}
	return a.SIEM.Emit(ctx, alert)
}

// NotifyOnCall pages whoever is on call for the alert it is given, by
// POSTing to OnCallWebhookURL when one is configured; it applies no
// severity filter of its own. Always
// logs at Warn regardless, so the page is never the only record of the
// escalation.
func (a *Activities) NotifyOnCall(ctx context.Context, alert domain.Alert) error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("on-call page", "alert_id", alert.ID, "severity", alert.Severity, "zone", alert.Zone, "reason", alert.Reason)

	if a.OnCallWebhookURL == "" {
		return nil
	}
	err := newWebhookNotifier(a.OnCallWebhookURL).deliver(ctx, webhookEvent{
		Kind:      "on_call_page",
		ID:        alert.ID,
		Severity:  string(alert.Severity),
		Zone:      string(alert.Zone),
		Reason:    alert.Reason,
		Timestamp: alert.CreatedAt.Unix(),
	})
	if err != nil {
		logger.Warn("on-call webhook delivery failed", "alert_id", alert.ID, "error", err)
	}
	return nil
}

// DequeueQuarantine pulls the next record off the Hive's quarantine review
// queue, returning an error when empty so QuarantineReviewQueueWorkflow
// backs off and retries rather than busy-polling.
func (a *Activities) DequeueQuarantine(ctx context.Context) (domain.QuarantineRecord, error) {
	if a.ReviewQueue == nil {
		return domain.QuarantineRecord{}, shielderr.New(shielderr.KindUnsupported, "temporal: no review queue configured")
	}
	if a.ReviewQueue.Len() == 0 {
		return domain.QuarantineRecord{}, shielderr.New(shielderr.KindNotFound, "temporal: quarantine queue empty")
	}
	rec, ok, err := a.ReviewQueue.Pop()
	if err != nil {
		// The queue was shut down and has now fully drained (queue.ErrQueueClosed);
		// from this activity's perspective that is the same "nothing to review"
		// outcome as an empty-but-open queue, so it's reported the same way.
		return domain.QuarantineRecord{}, shielderr.New(shielderr.KindNotFound, "temporal: quarantine queue empty")
	}
	if !ok {
		return domain.QuarantineRecord{}, shielderr.New(shielderr.KindNotFound, "temporal: quarantine queue empty")
	}
	return rec, nil
}

// NotifyAnalyst notifies whoever is reviewing quarantined payloads that a
// new record needs a decision, by POSTing to AnalystWebhookURL when one is
// configured. Always logs at Info regardless.
func (a *Activities) NotifyAnalyst(ctx context.Context, rec domain.QuarantineRecord) error {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("quarantine record awaiting review", "id", rec.ID, "zone", rec.Zone, "reason", rec.Reason)

	if a.AnalystWebhookURL == "" {
		return nil
	}
	err := newWebhookNotifier(a.AnalystWebhookURL).deliver(ctx, webhookEvent{
		Kind:      "quarantine_review",
		ID:        rec.ID,
		Zone:      rec.Zone,
		Reason:    rec.Reason,
		Timestamp: rec.CreatedAt,
	})
	if err != nil {
		logger.Warn("analyst webhook delivery failed", "quarantine_id", rec.ID, "error", err)
	}
	return nil
}
