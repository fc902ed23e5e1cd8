package handlers

import (
	"context"
	"net/http"

	"github.com/crucial707/coach-scheduler/internal/middleware"
	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/google/uuid"
)

// AuditLister reads audit entries for one actor.
type AuditLister interface {
	ListByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]models.AuditEntry, error)
}

// AuditHandler serves audit log endpoints.
type AuditHandler struct {
	Repo AuditLister
}

// ListAudit returns the coach's recent audit log entries. Query: limit (default 50), offset (default 0).
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.OwnerID(r.Context())
	if !ok {
		JSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	limit, offset := pagination(r, 50, 200)

	entries, err := h.Repo.ListByActor(r.Context(), owner, limit, offset)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
