package repo

import (
	"context"
	"database/sql"

	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/google/uuid"
)

// RecipientRepo reads the users a coach can message.
type RecipientRepo struct {
	DB *sql.DB
}

// NewRecipientRepo returns a new RecipientRepo.
func NewRecipientRepo(db *sql.DB) *RecipientRepo {
	return &RecipientRepo{DB: db}
}

func (r *RecipientRepo) list(ctx context.Context, query string, args ...any) ([]models.Recipient, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Recipient
	for rows.Next() {
		var rc models.Recipient
		if err := rows.Scan(&rc.ID, &rc.OwnerID, &rc.DisplayName, &rc.ChatID, &rc.Active); err != nil {
			return nil, err
		}
		list = append(list, rc)
	}
	return list, rows.Err()
}

// ListActiveByOwner returns every active recipient coached by ownerID.
func (r *RecipientRepo) ListActiveByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Recipient, error) {
	return r.list(ctx, `
		SELECT id, owner_id, display_name, chat_id, is_active
		FROM recipients
		WHERE owner_id = $1 AND is_active = true
		ORDER BY id
	`, ownerID)
}

// ListActiveByIDs returns the active recipients among ids that belong to
// ownerID. Ids owned by another coach are silently dropped.
func (r *RecipientRepo) ListActiveByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]models.Recipient, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, `
		SELECT id, owner_id, display_name, chat_id, is_active
		FROM recipients
		WHERE owner_id = $1 AND is_active = true AND id = ANY($2::uuid[])
		ORDER BY id
	`, ownerID, uuidStrings(ids))
}
