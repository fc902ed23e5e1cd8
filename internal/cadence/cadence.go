// Package cadence defines the recurrence rules a schedule can use and decides
// whether a schedule is due for its next firing.
package cadence

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownCadence is returned when a cadence name is not one of the supported values.
var ErrUnknownCadence = errors.New("unknown cadence")

// Cadence is a closed set of recurrence rules. The zero value is Unknown.
type Cadence uint8

const (
	Unknown Cadence = iota
	Once
	FiveMinutes
	Daily
	Weekly
	Monthly
)

// Monthly uses a fixed 30-day window rather than calendar months.
const monthWindow = 30 * 24 * time.Hour

var names = map[Cadence]string{
	Once:        "once",
	FiveMinutes: "5min",
	Daily:       "daily",
	Weekly:      "weekly",
	Monthly:     "monthly",
}

// All returns every supported cadence in declaration order.
func All() []Cadence {
	return []Cadence{Once, FiveMinutes, Daily, Weekly, Monthly}
}

// Parse maps a cadence name ("once", "5min", "daily", "weekly", "monthly") to a Cadence.
func Parse(s string) (Cadence, error) {
	for c, name := range names {
		if name == s {
			return c, nil
		}
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnknownCadence, s)
}

func (c Cadence) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(c))
}

// Valid reports whether c is one of the supported cadences.
func (c Cadence) Valid() bool {
	_, ok := names[c]
	return ok
}

// Recurring reports whether the cadence fires more than once.
func (c Cadence) Recurring() bool {
	switch c {
	case FiveMinutes, Daily, Weekly, Monthly:
		return true
	default:
		return false
	}
}

// Interval returns the minimum elapsed time between two firings.
// ok is false for Once and for unknown cadences.
func (c Cadence) Interval() (d time.Duration, ok bool) {
	switch c {
	case FiveMinutes:
		return 5 * time.Minute, true
	case Daily:
		return 24 * time.Hour, true
	case Weekly:
		return 7 * 24 * time.Hour, true
	case Monthly:
		return monthWindow, true
	case Once, Unknown:
		return 0, false
	}
	return 0, false
}

// IsDue reports whether a schedule with cadence c, last sent at lastSentAt
// (nil when never sent), may fire at now. Windows are half-open and measured
// from lastSentAt; a now before lastSentAt is never due.
//
// For Once the elapsed time is irrelevant: the schedule status decides, so
// IsDue only rejects a clock that is behind lastSentAt. Unknown cadences are
// never due.
func IsDue(c Cadence, lastSentAt *time.Time, now time.Time) bool {
	if !c.Valid() {
		return false
	}
	if lastSentAt == nil {
		return true
	}
	if now.Before(*lastSentAt) {
		return false
	}
	switch c {
	case Once:
		return true
	case FiveMinutes, Daily, Weekly, Monthly:
		interval, _ := c.Interval()
		return now.Sub(*lastSentAt) >= interval
	}
	return false
}

// WindowKey identifies the due window a firing consumes. Firings that observe
// the same lastSentAt produce the same key, which is what makes the delivery
// ledger deduplicate concurrent firings.
func WindowKey(c Cadence, lastSentAt *time.Time) string {
	if c == Once {
		return "once"
	}
	if lastSentAt == nil {
		return "first"
	}
	return "since:" + lastSentAt.UTC().Format(time.RFC3339Nano)
}

// MarshalText implements encoding.TextMarshaler.
func (c Cadence) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCadence, uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Cadence) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value stores the cadence by name.
func (c Cadence) Value() (driver.Value, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCadence, uint8(c))
	}
	return c.String(), nil
}

// Scan reads a cadence name from the database. Unrecognised names scan to
// Unknown instead of failing so that a bad row does not break listings; such
// schedules are simply never due.
func (c *Cadence) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*c = Unknown
		return nil
	default:
		return fmt.Errorf("cadence: cannot scan %T", src)
	}
	parsed, err := Parse(s)
	if err != nil {
		*c = Unknown
		return nil
	}
	*c = parsed
	return nil
}
