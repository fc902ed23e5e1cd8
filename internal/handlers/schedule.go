package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/crucial707/coach-scheduler/internal/middleware"
	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/crucial707/coach-scheduler/internal/scheduling"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ScheduleHandler serves the coach-facing schedule API.
type ScheduleHandler struct {
	Service *scheduling.Service
}

// scheduleList is the paginated list response.
type scheduleList struct {
	Items  []models.Schedule `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

func ownerAndID(w http.ResponseWriter, r *http.Request) (owner, id uuid.UUID, ok bool) {
	owner, ok = middleware.OwnerID(r.Context())
	if !ok {
		JSONError(w, "unauthorized", http.StatusUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	idStr := chi.URLParam(r, "id")
	if idStr == "" {
		return owner, uuid.Nil, true
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		JSONError(w, "invalid schedule id", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}
	return owner, id, true
}

// CreateSchedule creates a schedule and registers its trigger.
// Body: {"content","cadence","startDate","startTime","timezone","endDate?","targetType","targetIds?"}.
func (h *ScheduleHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	owner, _, ok := ownerAndID(w, r)
	if !ok {
		return
	}
	var input scheduling.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	s, err := h.Service.Create(r.Context(), owner, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// ListSchedules returns the coach's schedules (query: limit, offset).
func (h *ScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	owner, _, ok := ownerAndID(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r, 50, 100)

	list, total, err := h.Service.List(r.Context(), owner, limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Schedule{}
	}
	writeJSON(w, http.StatusOK, scheduleList{Items: list, Total: total, Limit: limit, Offset: offset})
}

// GetSchedule returns one schedule by id.
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := ownerAndID(w, r)
	if !ok {
		return
	}
	s, err := h.Service.Get(r.Context(), owner, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateSchedule replaces the message content. Body: {"content": "..."}.
func (h *ScheduleHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := ownerAndID(w, r)
	if !ok {
		return
	}
	var input struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	s, err := h.Service.UpdateContent(r.Context(), owner, id, input.Content)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// PauseSchedule moves an active schedule to paused.
func (h *ScheduleHandler) PauseSchedule(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Pause)
}

// ResumeSchedule moves a paused schedule back to active.
func (h *ScheduleHandler) ResumeSchedule(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Resume)
}

// CancelSchedule cancels a schedule permanently.
func (h *ScheduleHandler) CancelSchedule(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Cancel)
}

func (h *ScheduleHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, owner, id uuid.UUID) (*models.Schedule, error)) {
	owner, id, ok := ownerAndID(w, r)
	if !ok {
		return
	}
	s, err := fn(r.Context(), owner, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ListDeliveries returns the delivery ledger of one schedule (query: limit, offset).
func (h *ScheduleHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := ownerAndID(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r, 50, 200)

	rows, err := h.Service.History(r.Context(), owner, id, limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.Delivery{}
	}
	writeJSON(w, http.StatusOK, rows)
}
