package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Local is an in-process coordinator for single-node runs. One-shot
// triggers use time.AfterFunc and recurring ones a robfig cron runner in
// UTC; every firing POSTs the payload to Endpoint, the same way the hosted
// trigger service does. Registrations do not survive a restart.
type Local struct {
	Endpoint string
	Secret   string
	HTTP     *http.Client
	Logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	timers  map[string]*time.Timer
	entries map[string]cron.EntryID
}

// NewLocal returns a started Local coordinator. Call Stop when done.
func NewLocal(endpoint, secret string, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New(cron.WithLocation(time.UTC))
	c.Start()
	return &Local{
		Endpoint: endpoint,
		Secret:   secret,
		HTTP:     &http.Client{Timeout: 60 * time.Second},
		Logger:   logger,
		cron:     c,
		timers:   make(map[string]*time.Timer),
		entries:  make(map[string]cron.EntryID),
	}
}

// RegisterOnce arms a timer for fireAt.
func (l *Local) RegisterOnce(_ context.Context, p Payload, fireAt time.Time) (Handle, error) {
	id := uuid.NewString()
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.timers[id] = time.AfterFunc(delay, func() {
		l.mu.Lock()
		delete(l.timers, id)
		l.mu.Unlock()
		l.fire(p)
	})
	return NewHandle(KindMessage, id), nil
}

// RegisterRecurring adds a cron entry.
func (l *Local) RegisterRecurring(_ context.Context, p Payload, cronExpr string) (Handle, error) {
	id := uuid.NewString()

	l.mu.Lock()
	defer l.mu.Unlock()
	entryID, err := l.cron.AddFunc(cronExpr, func() { l.fire(p) })
	if err != nil {
		return "", fmt.Errorf("local trigger: invalid cron %q: %w", cronExpr, err)
	}
	l.entries[id] = entryID
	return NewHandle(KindSchedule, id), nil
}

// Cancel stops the timer or removes the cron entry behind h.
func (l *Local) Cancel(_ context.Context, h Handle) error {
	if h == "" {
		return nil
	}
	kind, id, err := h.Parse()
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	switch kind {
	case KindMessage:
		if t, ok := l.timers[id]; ok {
			t.Stop()
			delete(l.timers, id)
		}
	case KindSchedule:
		if entryID, ok := l.entries[id]; ok {
			l.cron.Remove(entryID)
			delete(l.entries, id)
		}
	}
	return nil
}

// Pending returns the number of armed one-shot timers and cron entries.
func (l *Local) Pending() (timers, recurring int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers), len(l.entries)
}

// Stop halts the cron runner and every armed timer, waiting for running
// firings to finish.
func (l *Local) Stop() {
	l.mu.Lock()
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
	l.mu.Unlock()
	<-l.cron.Stop().Done()
}

func (l *Local) fire(p Payload) {
	log := l.Logger.With("schedule_id", p.ScheduleID, "first_firing", p.IsFirstFiring)

	body, err := json.Marshal(p)
	if err != nil {
		log.Error("local trigger: encode payload", "error", err)
		return
	}
	req, err := http.NewRequest(http.MethodPost, l.Endpoint, bytes.NewReader(body))
	if err != nil {
		log.Error("local trigger: build request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if l.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+l.Secret)
	}

	resp, err := l.HTTP.Do(req)
	if err != nil {
		log.Error("local trigger: deliver firing", "error", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("local trigger: processing endpoint rejected firing", "status", resp.StatusCode)
		return
	}
	log.Debug("local trigger: firing delivered", "status", resp.StatusCode)
}
