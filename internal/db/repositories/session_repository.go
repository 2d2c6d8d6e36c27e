// Package repositories implements PostgreSQL-backed persistence for
// domain.Session, used by multi-replica Hive deployments that want
// durable session snapshots beyond the in-process session.Manager,
// satisfying domain.SessionStore's interface with standard CRUD.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sentinel/edr/internal/domain"
	"github.com/sentinel/edr/internal/shielderr"
)

// SessionRepository implements domain.SessionStore using PostgreSQL.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a SessionRepository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Get retrieves a session snapshot by ID.
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, bool, error) {
	s := &domain.Session{}
	query := `
		SELECT id, source_ip, created_at, last_activity_at, state, request_count, blocked_count, quarantined_count, threat_score, last_threat_description
		FROM sessions
		WHERE id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.SourceIP, &s.CreatedAt, &s.LastActivityAt, &s.State,
		&s.RequestCount, &s.BlockedCount, &s.QuarantinedCount, &s.ThreatScore, &s.LastThreatDescription,
	)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get session: %w", err)
	}
	return s, true, nil
}

// Put upserts a session snapshot.
func (r *SessionRepository) Put(ctx context.Context, s *domain.Session) error {
	query := `
		INSERT INTO sessions (id, source_ip, created_at, last_activity_at, state, request_count, blocked_count, quarantined_count, threat_score, last_threat_description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			last_activity_at = EXCLUDED.last_activity_at,
			state = EXCLUDED.state,
			request_count = EXCLUDED.request_count,
			blocked_count = EXCLUDED.blocked_count,
			quarantined_count = EXCLUDED.quarantined_count,
			threat_score = EXCLUDED.threat_score,
			last_threat_description = EXCLUDED.last_threat_description
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.SourceIP, s.CreatedAt, s.LastActivityAt, s.State,
		s.RequestCount, s.BlockedCount, s.QuarantinedCount, s.ThreatScore, s.LastThreatDescription,
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// Delete removes a session snapshot.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return shielderr.Wrap(shielderr.KindNotFound, "SessionRepository.Delete", shielderr.ErrNotFound)
	}
	return nil
}

// Sweep removes sessions whose last_activity_at predates olderThan (a Unix
// timestamp) and reports how many rows were evicted.
func (r *SessionRepository) Sweep(ctx context.Context, olderThan int64) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE EXTRACT(EPOCH FROM last_activity_at) < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep sessions rows affected: %w", err)
	}
	return int(rows), nil
}

// Count returns the total number of stored sessions.
func (r *SessionRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}
