package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const scheduleColumns = `id, owner_id, content, cadence, start_date, start_time, timezone,
	tz_offset_minutes, cron_expr, start_at, end_date, target_type, target_ids, status,
	is_active, last_sent_at, next_send_at, trigger_handle, created_at, updated_at`

// ScheduleRepo persists message schedules.
type ScheduleRepo struct {
	DB *sql.DB
}

// NewScheduleRepo returns a new ScheduleRepo.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo {
	return &ScheduleRepo{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*models.Schedule, error) {
	s := &models.Schedule{}
	var (
		targets pq.StringArray
		handle  sql.NullString
		cronStr sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.OwnerID, &s.Content, &s.Cadence, &s.StartDate, &s.StartTime, &s.Timezone,
		&s.TZOffsetMinutes, &cronStr, &s.StartAt, &s.EndDate, &s.TargetType, &targets, &s.Status,
		&s.Active, &s.LastSentAt, &s.NextSendAt, &handle, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.CronExpr = cronStr.String
	s.TriggerHandle = handle.String
	s.TargetIDs, err = parseUUIDs(targets)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *ScheduleRepo) query(ctx context.Context, query string, args ...any) ([]models.Schedule, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Create inserts s. A zero ID is replaced with a new random one; the
// timestamps are set from the database.
func (r *ScheduleRepo) Create(ctx context.Context, s *models.Schedule) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	query := `
		INSERT INTO message_schedules (id, owner_id, content, cadence, start_date, start_time, timezone,
			tz_offset_minutes, cron_expr, start_at, end_date, target_type, target_ids, status,
			is_active, last_sent_at, next_send_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at
	`
	return r.DB.QueryRowContext(ctx, query,
		s.ID, s.OwnerID, s.Content, s.Cadence, s.StartDate, s.StartTime, s.Timezone,
		s.TZOffsetMinutes, s.CronExpr, s.StartAt, s.EndDate, s.TargetType, uuidStrings(s.TargetIDs), s.Status,
		s.Active, s.LastSentAt, s.NextSendAt,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns one schedule by id, or nil when it does not exist.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM message_schedules WHERE id = $1`, id)
	s, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByOwner returns a coach's schedules, newest first.
func (r *ScheduleRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Schedule, error) {
	return r.query(ctx, `
		SELECT `+scheduleColumns+`
		FROM message_schedules
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
}

// CountByOwner returns the number of schedules owned by ownerID.
func (r *ScheduleRepo) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM message_schedules WHERE owner_id = $1`, ownerID).Scan(&n)
	return n, err
}

// ListDispatchable returns every active schedule (for the fallback sweep).
func (r *ScheduleRepo) ListDispatchable(ctx context.Context) ([]models.Schedule, error) {
	return r.query(ctx, `
		SELECT `+scheduleColumns+`
		FROM message_schedules
		WHERE status = 'active' AND is_active = true
		ORDER BY start_at
	`)
}

// SetTriggerHandle stores the external trigger handle; an empty handle clears it.
func (r *ScheduleRepo) SetTriggerHandle(ctx context.Context, id uuid.UUID, handle string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE message_schedules SET trigger_handle = NULLIF($2, ''), updated_at = now() WHERE id = $1`,
		id, handle,
	)
	return err
}

// Transition moves the schedule to status `to` if its current status is one
// of from. It reports whether the row changed. Terminal statuses also clear
// the active flag.
func (r *ScheduleRepo) Transition(ctx context.Context, id uuid.UUID, to models.ScheduleStatus, from ...models.ScheduleStatus) (bool, error) {
	fromStrs := make([]string, len(from))
	for i, f := range from {
		fromStrs[i] = string(f)
	}
	res, err := r.DB.ExecContext(ctx, `
		UPDATE message_schedules
		SET status = $2,
			is_active = CASE WHEN $2 IN ('completed', 'cancelled') THEN false ELSE is_active END,
			updated_at = now()
		WHERE id = $1 AND status = ANY($3)
	`, id, to, pq.StringArray(fromStrs))
	if err != nil {
		return false, err
	}
	return affected(res)
}

// AdvanceLastSent sets last_sent_at to sentAt only if it still equals prev
// (nil meaning never sent) and sentAt is later, so concurrent firings advance
// it at most once and it never moves backwards.
func (r *ScheduleRepo) AdvanceLastSent(ctx context.Context, id uuid.UUID, prev *time.Time, sentAt time.Time, next *time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE message_schedules
		SET last_sent_at = $3, next_send_at = $4, updated_at = now()
		WHERE id = $1
			AND last_sent_at IS NOT DISTINCT FROM $2
			AND (last_sent_at IS NULL OR last_sent_at < $3)
	`, id, prev, sentAt, next)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// Deactivate clears the active flag of a schedule whose end date has passed.
func (r *ScheduleRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE message_schedules SET is_active = false, next_send_at = NULL, updated_at = now() WHERE id = $1`,
		id,
	)
	return err
}

// UpdateContent replaces the message text of a schedule that is not in a
// terminal status.
func (r *ScheduleRepo) UpdateContent(ctx context.Context, id uuid.UUID, content string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE message_schedules SET content = $2, updated_at = now()
		WHERE id = $1 AND status IN ('active', 'paused')
	`, id, content)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// Delete removes a schedule by id.
func (r *ScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM message_schedules WHERE id = $1`, id)
	return err
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func uuidStrings(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseUUIDs(strs []string) ([]uuid.UUID, error) {
	if len(strs) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, len(strs))
	for i, s := range strs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}
