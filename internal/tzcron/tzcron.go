// Package tzcron converts a coach's local wall-clock start time into the UTC
// cron expression registered with the trigger service, and back.
package tzcron

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/crucial707/coach-scheduler/internal/cadence"
	"github.com/robfig/cron/v3"
)

const minutesPerDay = 24 * 60

// ErrNoCron is returned for cadences that are not driven by a cron job.
var ErrNoCron = errors.New("cadence has no cron expression")

var (
	reLocalTime = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	reOffset    = regexp.MustCompile(`^(?:UTC|GMT)?\s*([+-])(\d{1,2})(?::?(\d{2}))?$`)
)

// ParseLocalTime parses "HH:MM" into minutes after midnight.
func ParseLocalTime(s string) (int, error) {
	m := reLocalTime.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	if h > 23 || min > 59 {
		return 0, fmt.Errorf("invalid time %q: out of range", s)
	}
	return h*60 + min, nil
}

// toUTCMinutes shifts local minutes-after-midnight by an offset east of UTC,
// wrapping into [0, 1440).
func toUTCMinutes(local, offsetMinutes int) int {
	return ((local-offsetMinutes)%minutesPerDay + minutesPerDay) % minutesPerDay
}

// ToUTCCron turns a local "HH:MM" at offsetMinutes east of UTC (UTC-5 is -300)
// into a daily 5-field cron expression in UTC: "MM HH * * *".
func ToUTCCron(localTime string, offsetMinutes int) (string, error) {
	local, err := ParseLocalTime(localTime)
	if err != nil {
		return "", err
	}
	utc := toUTCMinutes(local, offsetMinutes)
	expr := fmt.Sprintf("%02d %02d * * *", utc%60, utc/60)
	if _, err := cron.ParseStandard(expr); err != nil {
		return "", fmt.Errorf("derived cron %q: %w", expr, err)
	}
	return expr, nil
}

// CronFor derives the UTC cron expression for cadence c from the coach's
// local start time and offset. The minute and hour come from ToUTCCron;
// weekly and monthly cadences pin the day-of-week and day-of-month of
// startUTC, the first occurrence, so a local evening start that rolls into
// the next UTC day fires on that UTC day.
func CronFor(c cadence.Cadence, localTime string, offsetMinutes int, startUTC time.Time) (string, error) {
	switch c {
	case cadence.FiveMinutes:
		return "*/5 * * * *", nil
	case cadence.Once:
		return "", ErrNoCron
	case cadence.Daily, cadence.Weekly, cadence.Monthly:
	default:
		return "", fmt.Errorf("%w: %s", cadence.ErrUnknownCadence, c)
	}

	daily, err := ToUTCCron(localTime, offsetMinutes)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(daily)
	hm := fields[0] + " " + fields[1]
	startUTC = startUTC.UTC()
	if want := fmt.Sprintf("%02d %02d", startUTC.Minute(), startUTC.Hour()); hm != want {
		return "", fmt.Errorf("start %s does not match local time %s at offset %d", startUTC.Format(time.RFC3339), localTime, offsetMinutes)
	}

	expr := daily
	switch c {
	case cadence.Weekly:
		expr = fmt.Sprintf("%s * * %d", hm, int(startUTC.Weekday()))
	case cadence.Monthly:
		expr = fmt.Sprintf("%s %d * *", hm, startUTC.Day())
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return "", fmt.Errorf("derived cron %q: %w", expr, err)
	}
	return expr, nil
}

// ToLocalTime re-derives the local "HH:MM" from a cron expression produced by
// ToUTCCron or CronFor.
func ToLocalTime(cronExpr string, offsetMinutes int) (string, error) {
	fields := strings.Fields(cronExpr)
	if len(fields) != 5 {
		return "", fmt.Errorf("cron %q: want 5 fields", cronExpr)
	}
	min, err := strconv.Atoi(fields[0])
	if err != nil {
		return "", fmt.Errorf("cron %q: minute is not fixed", cronExpr)
	}
	hour, err := strconv.Atoi(fields[1])
	if err != nil {
		return "", fmt.Errorf("cron %q: hour is not fixed", cronExpr)
	}
	local := ((hour*60+min+offsetMinutes)%minutesPerDay + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", local/60, local%60), nil
}

// Location resolves timezone to a *time.Location. timezone may be an IANA
// name ("America/New_York"), "UTC", or a fixed offset such as "UTC-05:00",
// "+02:00" or "-0530".
func Location(timezone string) (*time.Location, error) {
	tz := strings.TrimSpace(timezone)
	switch strings.ToUpper(tz) {
	case "", "UTC", "GMT", "Z":
		return time.UTC, nil
	}
	if m := reOffset.FindStringSubmatch(strings.ToUpper(tz)); m != nil {
		h, _ := strconv.Atoi(m[2])
		min := 0
		if m[3] != "" {
			min, _ = strconv.Atoi(m[3])
		}
		if h > 14 || min > 59 {
			return nil, fmt.Errorf("invalid timezone offset %q", timezone)
		}
		off := h*60 + min
		if m[1] == "-" {
			off = -off
		}
		return time.FixedZone(tz, off*60), nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return loc, nil
}

// ResolveOffset returns the offset east of UTC, in minutes, of timezone at the
// given instant.
func ResolveOffset(timezone string, at time.Time) (int, error) {
	loc, err := Location(timezone)
	if err != nil {
		return 0, err
	}
	_, secs := at.In(loc).Zone()
	return secs / 60, nil
}

// StartInstant resolves a local start date ("2006-01-02") and time ("15:04")
// in timezone to the UTC instant of the first occurrence, along with the
// offset in effect on that date.
func StartInstant(date, localTime, timezone string) (time.Time, int, error) {
	day, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
	}
	local, err := ParseLocalTime(localTime)
	if err != nil {
		return time.Time{}, 0, err
	}
	loc, err := Location(timezone)
	if err != nil {
		return time.Time{}, 0, err
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), local/60, local%60, 0, 0, loc)
	_, secs := start.Zone()
	return start.UTC(), secs / 60, nil
}

// NextAfter returns the next activation of cronExpr strictly after t, in UTC.
func NextAfter(cronExpr string, t time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron %q: %w", cronExpr, err)
	}
	return sched.Next(t.UTC()), nil
}

// lookbacks bound the search in LastAtOrBefore: one covers a 5-minute job,
// one a daily, one a weekly, and the last a monthly job pinned to a day that
// some months lack.
var lookbacks = []time.Duration{10 * time.Minute, 2 * 24 * time.Hour, 8 * 24 * time.Hour, 93 * 24 * time.Hour}

// LastAtOrBefore returns the latest activation of cronExpr at or before t, in
// UTC. It walks forward with the robfig schedule from a widening lookback,
// since cron schedules only compute the next activation.
func LastAtOrBefore(cronExpr string, t time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron %q: %w", cronExpr, err)
	}
	t = t.UTC()
	for _, back := range lookbacks {
		n := sched.Next(t.Add(-back - time.Second))
		if n.IsZero() || n.After(t) {
			continue
		}
		for {
			next := sched.Next(n)
			if next.After(t) {
				return n, nil
			}
			n = next
		}
	}
	return time.Time{}, fmt.Errorf("cron %q: no activation in the %s before %s", cronExpr, lookbacks[len(lookbacks)-1], t.Format(time.RFC3339))
}
