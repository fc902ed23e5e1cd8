// Package memstore is an in-process implementation of the schedule store,
// delivery ledger, recipient directory and audit log, for local runs and
// tests. It is only safe within a single process.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/crucial707/coach-scheduler/internal/models"
	"github.com/google/uuid"
)

// Store holds all state in memory behind one mutex.
type Store struct {
	mu         sync.Mutex
	schedules  map[uuid.UUID]*models.Schedule
	deliveries map[models.DeliveryKey]*models.Delivery
	recipients map[uuid.UUID]models.Recipient
	audit      []models.AuditEntry
	nextID     int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		schedules:  make(map[uuid.UUID]*models.Schedule),
		deliveries: make(map[models.DeliveryKey]*models.Delivery),
		recipients: make(map[uuid.UUID]models.Recipient),
	}
}

func cloneSchedule(s *models.Schedule) *models.Schedule {
	c := *s
	c.TargetIDs = slices.Clone(s.TargetIDs)
	if s.LastSentAt != nil {
		t := *s.LastSentAt
		c.LastSentAt = &t
	}
	if s.NextSendAt != nil {
		t := *s.NextSendAt
		c.NextSendAt = &t
	}
	if s.EndDate != nil {
		t := *s.EndDate
		c.EndDate = &t
	}
	return &c
}

// AddRecipient registers a recipient.
func (m *Store) AddRecipient(rc models.Recipient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recipients[rc.ID] = rc
}

// Create implements the schedule store.
func (m *Store) Create(_ context.Context, s *models.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now()
	s.CreatedAt, s.UpdatedAt = now, now
	m.schedules[s.ID] = cloneSchedule(s)
	return nil
}

// GetByID returns a copy of the schedule, or nil when it does not exist.
func (m *Store) GetByID(_ context.Context, id uuid.UUID) (*models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, nil
	}
	return cloneSchedule(s), nil
}

// ListByOwner returns a coach's schedules, newest first.
func (m *Store) ListByOwner(_ context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Schedule
	for _, s := range m.schedules {
		if s.OwnerID == ownerID {
			list = append(list, *cloneSchedule(s))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return page(list, limit, offset), nil
}

// CountByOwner returns the number of schedules owned by ownerID.
func (m *Store) CountByOwner(_ context.Context, ownerID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.schedules {
		if s.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

// ListDispatchable returns every active schedule.
func (m *Store) ListDispatchable(_ context.Context) ([]models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Schedule
	for _, s := range m.schedules {
		if s.Dispatchable() {
			list = append(list, *cloneSchedule(s))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].StartAt.Before(list[j].StartAt) })
	return list, nil
}

// SetTriggerHandle stores the external trigger handle.
func (m *Store) SetTriggerHandle(_ context.Context, id uuid.UUID, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.schedules[id]; ok {
		s.TriggerHandle = handle
		s.UpdatedAt = time.Now()
	}
	return nil
}

// Transition moves the schedule to `to` when its status is one of from.
func (m *Store) Transition(_ context.Context, id uuid.UUID, to models.ScheduleStatus, from ...models.ScheduleStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok || !slices.Contains(from, s.Status) {
		return false, nil
	}
	s.Status = to
	if to.Terminal() {
		s.Active = false
	}
	s.UpdatedAt = time.Now()
	return true, nil
}

// AdvanceLastSent sets last_sent_at when it still equals prev.
func (m *Store) AdvanceLastSent(_ context.Context, id uuid.UUID, prev *time.Time, sentAt time.Time, next *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return false, nil
	}
	switch {
	case s.LastSentAt == nil && prev != nil,
		s.LastSentAt != nil && (prev == nil || !s.LastSentAt.Equal(*prev)),
		s.LastSentAt != nil && !sentAt.After(*s.LastSentAt):
		return false, nil
	}
	t := sentAt
	s.LastSentAt = &t
	if next != nil {
		n := *next
		s.NextSendAt = &n
	} else {
		s.NextSendAt = nil
	}
	s.UpdatedAt = time.Now()
	return true, nil
}

// Deactivate clears the active flag.
func (m *Store) Deactivate(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.schedules[id]; ok {
		s.Active = false
		s.NextSendAt = nil
	}
	return nil
}

// UpdateContent replaces the content of a non-terminal schedule.
func (m *Store) UpdateContent(_ context.Context, id uuid.UUID, content string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok || s.Status.Terminal() {
		return false, nil
	}
	s.Content = content
	return true, nil
}

// Delete removes a schedule.
func (m *Store) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.schedules, id)
	return nil
}

// Claim reserves the ledger row for key.
func (m *Store) Claim(_ context.Context, key models.DeliveryKey, reopenFailed bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.deliveries[key]; ok {
		if reopenFailed && d.Status == models.DeliveryFailed {
			d.Status = models.DeliveryPending
			d.Error = ""
			d.Attempts++
			return true, nil
		}
		return false, nil
	}
	m.nextID++
	m.deliveries[key] = &models.Delivery{
		ID:          m.nextID,
		ScheduleID:  key.ScheduleID,
		RecipientID: key.RecipientID,
		Window:      key.Window,
		Status:      models.DeliveryPending,
		Attempts:    1,
		CreatedAt:   time.Now(),
	}
	return true, nil
}

// MarkSent records a confirmed send.
func (m *Store) MarkSent(_ context.Context, key models.DeliveryKey, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.deliveries[key]; ok && d.Status == models.DeliveryPending {
		t := sentAt
		d.Status = models.DeliverySent
		d.SentAt = &t
		d.Error = ""
	}
	return nil
}

// MarkFailed records a failed send.
func (m *Store) MarkFailed(_ context.Context, key models.DeliveryKey, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.deliveries[key]; ok && d.Status == models.DeliveryPending {
		d.Status = models.DeliveryFailed
		d.Error = reason
	}
	return nil
}

// Status returns the ledger status for key, or "" when absent.
func (m *Store) Status(_ context.Context, key models.DeliveryKey) (models.DeliveryStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.deliveries[key]; ok {
		return d.Status, nil
	}
	return "", nil
}

// ListBySchedule returns the ledger rows of one schedule, newest first.
func (m *Store) ListBySchedule(_ context.Context, scheduleID uuid.UUID, limit, offset int) ([]models.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Delivery
	for _, d := range m.deliveries {
		if d.ScheduleID == scheduleID {
			list = append(list, *d)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return page(list, limit, offset), nil
}

// ListActiveByOwner returns every active recipient of ownerID.
func (m *Store) ListActiveByOwner(_ context.Context, ownerID uuid.UUID) ([]models.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Recipient
	for _, rc := range m.recipients {
		if rc.OwnerID == ownerID && rc.Active {
			list = append(list, rc)
		}
	}
	sortRecipients(list)
	return list, nil
}

// ListActiveByIDs returns the active recipients among ids owned by ownerID.
func (m *Store) ListActiveByIDs(_ context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]models.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.Recipient
	for _, id := range ids {
		if rc, ok := m.recipients[id]; ok && rc.OwnerID == ownerID && rc.Active {
			list = append(list, rc)
		}
	}
	sortRecipients(list)
	return list, nil
}

// Log appends an audit entry.
func (m *Store) Log(_ context.Context, actorID uuid.UUID, action, resourceType string, resourceID uuid.UUID, details string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, models.AuditEntry{
		ID:           len(m.audit) + 1,
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		CreatedAt:    time.Now(),
	})
	return nil
}

// ListByActor returns audit entries of actorID, newest first.
func (m *Store) ListByActor(_ context.Context, actorID uuid.UUID, limit, offset int) ([]models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []models.AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		if m.audit[i].ActorID == actorID {
			list = append(list, m.audit[i])
		}
	}
	return page(list, limit, offset), nil
}

func sortRecipients(list []models.Recipient) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID.String() < list[j].ID.String() })
}

func page[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
