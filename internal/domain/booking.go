package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	dateKeyLayout    = "2006-01-02"
	isoInstantLayout = "2006-01-02T15:04:05.000Z"
	listSeparator    = ";"
)

var ErrMissingDateKey = errors.New("date key is required")

func DateKey(t time.Time) string {
	return t.Format(dateKeyLayout)
}

func ISOInstant(t time.Time) string {
	return t.UTC().Format(isoInstantLayout)
}

// ParseDate returns local midnight in loc of the calendar date s names. An
// RFC 3339 instant with a zone offset or Z is first moved into loc, so
// "2026-01-04T22:30:00Z" is 2026-01-05 in UTC+3. Otherwise only the leading
// YYYY-MM-DD is read and any time of day after it is ignored.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < len(dateKeyLayout) {
		return time.Time{}, false
	}
	if len(s) > len(dateKeyLayout) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			t = t.In(loc)
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true
		}
	}
	d, err := time.ParseInLocation(dateKeyLayout, s[:len(dateKeyLayout)], loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// LocalDateKey is the YYYY-MM-DD key of s in loc. It reports false when s
// does not name a date.
func LocalDateKey(s string, loc *time.Location) (string, bool) {
	d, ok := ParseDate(s, loc)
	if !ok {
		return "", false
	}
	return DateKey(d), true
}

// NormalizeDateKey reduces a date or date-time string to YYYY-MM-DD, reading
// instants in UTC. Values that do not start with a date are returned trimmed.
func NormalizeDateKey(s string) string {
	if key, ok := LocalDateKey(s, time.UTC); ok {
		return key
	}
	return strings.TrimSpace(s)
}

// ParseClock reads "HH:MM" or "HH". The hour must be 0-23 and the minute 0-59.
func ParseClock(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 3)
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		minute, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || minute < 0 || minute > 59 {
			return 0, 0, false
		}
	}
	return hour, minute, true
}

func FormatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// ParseWeekday reads 0 (Sunday) through 6 (Saturday).
func ParseWeekday(s string) (time.Weekday, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 || n > 6 {
		return 0, false
	}
	return time.Weekday(n), true
}

// ParseDaysOfMonth returns the distinct days in 1-31 listed in s, in the
// order they first appear. Anything else in the list is dropped.
func ParseDaysOfMonth(s string) []int {
	var out []int
	seen := make(map[int]struct{})
	for _, part := range strings.Split(s, listSeparator) {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 || n > 31 {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func FormatDaysOfMonth(days []int) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, listSeparator)
}

func splitExclusions(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(s, listSeparator) {
		key := NormalizeDateKey(part)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func exclusionSet(s string) map[string]struct{} {
	keys := splitExclusions(s)
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func (b Booking) ExclusionKeys() []string {
	return splitExclusions(b.Exclusions)
}

func (b Booking) IsExcluded(dateKey string) bool {
	_, ok := exclusionSet(b.Exclusions)[NormalizeDateKey(dateKey)]
	return ok
}

// Exclude adds dateKey to the exclusion set. It reports false when the key
// is empty or already present.
func (b *Booking) Exclude(dateKey string) bool {
	key := NormalizeDateKey(dateKey)
	if key == "" {
		return false
	}
	keys := splitExclusions(b.Exclusions)
	for _, k := range keys {
		if k == key {
			b.Exclusions = strings.Join(keys, listSeparator)
			return false
		}
	}
	b.Exclusions = strings.Join(append(keys, key), listSeparator)
	return true
}

// Recurrence is the schedulable part of a booking.
type Recurrence struct {
	Method      Method
	Time        string
	Date        string
	DayOfWeek   string
	DaysOfMonth string
}

// Reschedule replaces the booking's rule. Only the field that belongs to the
// new method is kept, and moving to a one-off booking drops its exclusions.
func (b *Booking) Reschedule(r Recurrence) {
	b.Method = r.Method
	b.Time = r.Time
	b.Date, b.DayOfWeek, b.DaysOfMonth = "", "", ""
	switch r.Method {
	case MethodWeekly:
		b.DayOfWeek = r.DayOfWeek
	case MethodMonthly:
		b.DaysOfMonth = r.DaysOfMonth
	case MethodOnce:
		b.Date = r.Date
		b.Exclusions = ""
	}
}

func (b Booking) Recurrence() Recurrence {
	return Recurrence{
		Method:      b.Method,
		Time:        b.Time,
		Date:        b.Date,
		DayOfWeek:   b.DayOfWeek,
		DaysOfMonth: b.DaysOfMonth,
	}
}

// DetachOccurrence excludes occurrenceDate from original and returns the
// one-off booking that replaces it. The replacement falls on overrideDate
// when given, otherwise on occurrenceDate. The original keeps its method.
func DetachOccurrence(original *Booking, occurrenceDate, clock, overrideDate, newID string) (Booking, error) {
	key := NormalizeDateKey(occurrenceDate)
	if key == "" {
		return Booking{}, ErrMissingDateKey
	}
	date := key
	if strings.TrimSpace(overrideDate) != "" {
		date = NormalizeDateKey(overrideDate)
	}

	original.Exclude(key)

	return Booking{
		ID:           newID,
		InstructorID: original.InstructorID,
		ClientID:     original.ClientID,
		Method:       MethodOnce,
		Time:         clock,
		Date:         date,
	}, nil
}
