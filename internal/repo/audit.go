package repo

import (
	"context"
	"database/sql"

	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/google/uuid"
)

// AuditRepo persists audit log entries.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Log records an audit entry. action is create|update|pause|resume|cancel; resourceType is schedule.
func (r *AuditRepo) Log(ctx context.Context, actorID uuid.UUID, action, resourceType string, resourceID uuid.UUID, details string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (actor_id, action, resource_type, resource_id, details) VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
		actorID, action, resourceType, resourceID, details,
	)
	return err
}

// ListByActor returns recent audit entries recorded for actorID, newest first.
func (r *AuditRepo) ListByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]models.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, actor_id, action, resource_type, resource_id, COALESCE(details,''), created_at
		 FROM audit_log WHERE actor_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		actorID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.ResourceType, &e.ResourceID, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
