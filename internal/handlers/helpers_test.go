package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/crucial707/coach-scheduler/internal/dispatch"
	"github.com/crucial707/coach-scheduler/internal/memstore"
	"github.com/crucial707/coach-scheduler/internal/messaging"
	"github.com/crucial707/coach-scheduler/internal/middleware"
	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/crucial707/coach-scheduler/internal/scheduling"
	"github.com/crucial707/coach-scheduler/internal/trigger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// requestWithChiURLParams returns a request with chi route context and URL params set.
func requestWithChiURLParams(method, path string, body []byte, params map[string]string) *http.Request {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	return r
}

// asCoach attaches an authenticated coach id to r.
func asCoach(r *http.Request, owner uuid.UUID) *http.Request {
	return r.WithContext(middleware.WithOwnerID(r.Context(), owner))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

type stubTriggers struct {
	mu   sync.Mutex
	seq  int
	fail bool
}

func (s *stubTriggers) RegisterOnce(_ context.Context, _ trigger.Payload, _ time.Time) (trigger.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", errors.New("trigger service unavailable")
	}
	s.seq++
	return trigger.NewHandle(trigger.KindMessage, fmt.Sprintf("m%d", s.seq)), nil
}

func (s *stubTriggers) RegisterRecurring(_ context.Context, _ trigger.Payload, _ string) (trigger.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", errors.New("trigger service unavailable")
	}
	s.seq++
	return trigger.NewHandle(trigger.KindSchedule, fmt.Sprintf("s%d", s.seq)), nil
}

func (s *stubTriggers) Cancel(context.Context, trigger.Handle) error { return nil }

type countingSender struct {
	mu   sync.Mutex
	sent int
}

func (c *countingSender) Send(context.Context, messaging.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent++
	return nil
}

type env struct {
	store    *memstore.Store
	svc      *scheduling.Service
	triggers *stubTriggers
	sender   *countingSender
	owner    uuid.UUID
	now      time.Time
}

func newEnv(t *testing.T, recipients int) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := &env{
		store:    memstore.New(),
		triggers: &stubTriggers{},
		sender:   &countingSender{},
		owner:    uuid.New(),
		now:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	for i := 0; i < recipients; i++ {
		e.store.AddRecipient(models.Recipient{ID: uuid.New(), OwnerID: e.owner, ChatID: fmt.Sprintf("chat-%d", i), Active: true})
	}
	clock := func() time.Time { return e.now }
	e.svc = &scheduling.Service{
		Store:      e.store,
		Deliveries: e.store,
		Audit:      e.store,
		Triggers:   e.triggers,
		Dispatcher: &dispatch.Dispatcher{
			Recipients: e.store,
			Ledger:     e.store,
			Cursor:     e.store,
			Sender:     e.sender,
			Logger:     logger,
			Now:        clock,
		},
		Logger: logger,
		Now:    clock,
	}
	return e
}

// create stores a schedule through the service and fails the test on error.
func (e *env) create(t *testing.T, in scheduling.CreateInput) *models.Schedule {
	t.Helper()
	s, err := e.svc.Create(context.Background(), e.owner, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return s
}

func onceInput() scheduling.CreateInput {
	return scheduling.CreateInput{
		Content:    "Drink water",
		Cadence:    "once",
		StartDate:  "2025-03-01",
		StartTime:  "14:00",
		Timezone:   "UTC",
		TargetType: "all",
	}
}
