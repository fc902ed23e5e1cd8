package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/crucial707/coach-scheduler/internal/dispatch"
	"github.com/crucial707/coach-scheduler/internal/scheduler"
	"github.com/crucial707/coach-scheduler/internal/scheduling"
	"github.com/crucial707/coach-scheduler/internal/trigger"
	"github.com/google/uuid"
)

// Processor handles one firing.
type Processor interface {
	Process(ctx context.Context, f scheduling.Firing) (dispatch.Result, scheduling.Outcome, error)
}

// Sweeper runs one fallback sweep pass.
type Sweeper interface {
	RunOnce(ctx context.Context) (scheduler.Summary, error)
}

// ProcessHandler serves the internal endpoints called by the trigger service
// and operators. Both sit behind the process secret middleware.
type ProcessHandler struct {
	Processor Processor
	Sweeper   Sweeper
}

// Process handles one firing. Body: {"scheduleId","ownerId","isFirstFiring?"}.
// Response: {"processed","total","skipped","errors":[{"recipientId","error"}]}.
func (h *ProcessHandler) Process(w http.ResponseWriter, r *http.Request) {
	var p trigger.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	fields := make(map[string]string)
	if p.ScheduleID == uuid.Nil {
		fields["scheduleId"] = "required"
	}
	if p.OwnerID == uuid.Nil {
		fields["ownerId"] = "required"
	}
	if len(fields) > 0 {
		JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
		return
	}

	res, _, err := h.Processor.Process(r.Context(), scheduling.Firing{Payload: p, Source: scheduling.SourceTrigger})
	if err != nil {
		var rerr *scheduling.RegistrationError
		if errors.As(err, &rerr) && res.Total > 0 {
			// The first delivery went out; answer with an error so the
			// activation is retried and the recurring job registered.
			writeJSON(w, http.StatusBadGateway, res)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Sweep runs one fallback sweep pass and returns its summary.
func (h *ProcessHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Sweeper.RunOnce(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
