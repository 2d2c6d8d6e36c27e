// Package repositories implements PostgreSQL-backed persistence for Hive's
// threat-event history and session snapshots.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/shielderr"
)

// AlertRepository persists domain.Alert emissions for long-term query.
// GetByZone orders by severity, then recency; GetBySession and GetCritical
// order by recency only.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository creates an AlertRepository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts a new alert.
func (r *AlertRepository) Create(ctx context.Context, a *domain.Alert) error {
	metadataJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `
		INSERT INTO alerts (id, type, severity, action, zone, session_id, reason, rule_number, quarantine_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.Type, a.Severity, a.Action, a.Zone, a.SessionID, a.Reason, a.RuleNumber, a.QuarantineID, metadataJSON, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create alert: %w", err)
	}
	return nil
}

// Emit implements domain.AlertSink, letting the Hive wire this repository
// directly into the same side-effect hook Shield uses for the websocket
// stream and SIEM export.
func (r *AlertRepository) Emit(ctx context.Context, a domain.Alert) error {
	return r.Create(ctx, &a)
}

// GetByID retrieves an alert by ID.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*domain.Alert, error) {
	a := &domain.Alert{}
	var metadataJSON []byte

	query := `
		SELECT id, type, severity, action, zone, session_id, reason, rule_number, quarantine_id, metadata, created_at
		FROM alerts
		WHERE id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&a.ID, &a.Type, &a.Severity, &a.Action, &a.Zone, &a.SessionID, &a.Reason, &a.RuleNumber, &a.QuarantineID, &metadataJSON, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, shielderr.Wrap(shielderr.KindNotFound, "AlertRepository.GetByID", shielderr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert by id: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &a.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return a, nil
}

// GetByZone retrieves alerts for a zone, most severe and most recent first.
func (r *AlertRepository) GetByZone(ctx context.Context, zone string, limit int) ([]*domain.Alert, error) {
	query := `
		SELECT id, type, severity, action, zone, session_id, reason, rule_number, quarantine_id, metadata, created_at
		FROM alerts
		WHERE zone = $1
		ORDER BY severity DESC, created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, zone, limit)
	if err != nil {
		return nil, fmt.Errorf("get by zone: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// GetBySession retrieves every alert tied to a session.
func (r *AlertRepository) GetBySession(ctx context.Context, sessionID string, limit int) ([]*domain.Alert, error) {
	query := `
		SELECT id, type, severity, action, zone, session_id, reason, rule_number, quarantine_id, metadata, created_at
		FROM alerts
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("get by session: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// GetCritical returns the most recent critical-severity alerts fleet-wide.
func (r *AlertRepository) GetCritical(ctx context.Context, limit int) ([]*domain.Alert, error) {
	query := `
		SELECT id, type, severity, action, zone, session_id, reason, rule_number, quarantine_id, metadata, created_at
		FROM alerts
		WHERE severity = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, domain.SeverityCritical, limit)
	if err != nil {
		return nil, fmt.Errorf("get critical: %w", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

// Count returns the total number of alerts stored.
func (r *AlertRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return count, nil
}

func scanAlerts(rows *sql.Rows) ([]*domain.Alert, error) {
	var alerts []*domain.Alert
	for rows.Next() {
		a := &domain.Alert{}
		var metadataJSON []byte
		if err := rows.Scan(&a.ID, &a.Type, &a.Severity, &a.Action, &a.Zone, &a.SessionID, &a.Reason, &a.RuleNumber, &a.QuarantineID, &metadataJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &a.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
