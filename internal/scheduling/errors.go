package scheduling

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a schedule does not exist or belongs to another coach.
	ErrNotFound = errors.New("schedule not found")
	// ErrInvalidTransition is returned when the schedule's status does not allow the action.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError lists invalid input fields with a message for each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// RegistrationError means the trigger coordinator rejected a registration.
type RegistrationError struct {
	ScheduleID uuid.UUID
	Kind       string
	Err        error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register %s trigger for schedule %s: %v", e.Kind, e.ScheduleID, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// CancellationError means an external trigger could not be torn down. It is
// logged, never returned to the caller.
type CancellationError struct {
	ScheduleID uuid.UUID
	Handle     string
	Err        error
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancel trigger %s of schedule %s: %v", e.Handle, e.ScheduleID, e.Err)
}

func (e *CancellationError) Unwrap() error { return e.Err }
