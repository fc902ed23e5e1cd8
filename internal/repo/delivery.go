package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/google/uuid"
)

// DeliveryRepo is the delivery ledger. The unique index on
// (schedule_id, recipient_id, window_key) is what guarantees a recipient
// receives a schedule at most once per due window, across processes.
type DeliveryRepo struct {
	db *sql.DB
}

// NewDeliveryRepo returns a new DeliveryRepo.
func NewDeliveryRepo(db *sql.DB) *DeliveryRepo {
	return &DeliveryRepo{db: db}
}

// Claim atomically reserves the ledger row for key in the pending state and
// reports whether this caller owns the send. A row that already exists is
// never claimed again, except that a failed row is re-opened when
// reopenFailed is set.
func (r *DeliveryRepo) Claim(ctx context.Context, key models.DeliveryKey, reopenFailed bool) (bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO deliveries (schedule_id, recipient_id, window_key, status, attempts)
		VALUES ($1, $2, $3, 'pending', 1)
		ON CONFLICT (schedule_id, recipient_id, window_key) DO UPDATE
			SET status = 'pending', error = NULL, attempts = deliveries.attempts + 1, updated_at = now()
			WHERE deliveries.status = 'failed' AND $4
		RETURNING id
	`, key.ScheduleID, key.RecipientID, key.Window, reopenFailed).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkSent records a confirmed send for a claimed row.
func (r *DeliveryRepo) MarkSent(ctx context.Context, key models.DeliveryKey, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE deliveries SET status = 'sent', sent_at = $4, error = NULL, updated_at = now()
		WHERE schedule_id = $1 AND recipient_id = $2 AND window_key = $3 AND status = 'pending'
	`, key.ScheduleID, key.RecipientID, key.Window, sentAt)
	return err
}

// MarkFailed records a failed send for a claimed row.
func (r *DeliveryRepo) MarkFailed(ctx context.Context, key models.DeliveryKey, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE deliveries SET status = 'failed', error = $4, updated_at = now()
		WHERE schedule_id = $1 AND recipient_id = $2 AND window_key = $3 AND status = 'pending'
	`, key.ScheduleID, key.RecipientID, key.Window, reason)
	return err
}

// Status returns the ledger status for key, or "" when no row exists.
func (r *DeliveryRepo) Status(ctx context.Context, key models.DeliveryKey) (models.DeliveryStatus, error) {
	var st models.DeliveryStatus
	err := r.db.QueryRowContext(ctx, `
		SELECT status FROM deliveries
		WHERE schedule_id = $1 AND recipient_id = $2 AND window_key = $3
	`, key.ScheduleID, key.RecipientID, key.Window).Scan(&st)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return st, err
}

// ListBySchedule returns the ledger rows of one schedule, newest first.
func (r *DeliveryRepo) ListBySchedule(ctx context.Context, scheduleID uuid.UUID, limit, offset int) ([]models.Delivery, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, schedule_id, recipient_id, window_key, status, COALESCE(error, ''), attempts, sent_at, created_at
		FROM deliveries
		WHERE schedule_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, scheduleID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Delivery
	for rows.Next() {
		var d models.Delivery
		if err := rows.Scan(&d.ID, &d.ScheduleID, &d.RecipientID, &d.Window, &d.Status, &d.Error, &d.Attempts, &d.SentAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}
