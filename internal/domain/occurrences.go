package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	DefaultWindowDays = 30
	MaxWindowDays     = 366
)

// Occurrence is one dated instance of a booking. Names are copied from the
// client and instructor when the occurrence is generated.
type Occurrence struct {
	ID             string    `json:"id"`
	BookingID      string    `json:"bookingId"`
	InstructorID   string    `json:"instructorId"`
	ClientID       string    `json:"clientId"`
	InstructorName string    `json:"instructorName"`
	ClientName     string    `json:"clientName"`
	DateTime       time.Time `json:"dateTime"`
	Method         Method    `json:"method"`
}

func (o Occurrence) MarshalJSON() ([]byte, error) {
	type occurrence Occurrence
	return json.Marshal(struct {
		occurrence
		DateTime string `json:"dateTime"`
	}{occurrence: occurrence(o), DateTime: ISOInstant(o.DateTime)})
}

func ClampWindowDays(days int) int {
	if days < 0 {
		return 0
	}
	if days > MaxWindowDays {
		return MaxWindowDays
	}
	return days
}

// Expand materializes the bookings into occurrences between local midnight
// of now's day and midnight windowDays later, both ends inclusive. Bookings
// with a missing client or instructor, an unreadable time or an empty rule
// contribute nothing. The result is ordered by instant; the order of equal
// instants follows the input order.
func Expand(bookings []Booking, clients []Client, instructors []Instructor, windowDays int, now time.Time) []Occurrence {
	windowDays = ClampWindowDays(windowDays)
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	windowEnd := today.AddDate(0, 0, windowDays)

	clientByID := make(map[string]Client, len(clients))
	for _, c := range clients {
		clientByID[c.ID] = c
	}
	instructorByID := make(map[string]Instructor, len(instructors))
	for _, in := range instructors {
		instructorByID[in.ID] = in
	}

	out := make([]Occurrence, 0)
	for _, b := range bookings {
		client, ok := clientByID[b.ClientID]
		if !ok {
			continue
		}
		instructor, ok := instructorByID[b.InstructorID]
		if !ok {
			continue
		}
		hour, minute, ok := ParseClock(b.Time)
		if !ok {
			continue
		}

		excluded := exclusionSet(b.Exclusions)
		for _, day := range candidateDays(b, today, windowDays) {
			if _, skip := excluded[DateKey(day)]; skip {
				continue
			}
			at := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
			if at.Before(today) || at.After(windowEnd) {
				continue
			}
			out = append(out, Occurrence{
				ID:             b.ID + "-" + ISOInstant(at),
				BookingID:      b.ID,
				InstructorID:   b.InstructorID,
				ClientID:       b.ClientID,
				InstructorName: instructor.DisplayName(),
				ClientName:     client.DisplayName(),
				DateTime:       at,
				Method:         b.Method,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DateTime.Before(out[j].DateTime)
	})
	return out
}

func candidateDays(b Booking, today time.Time, windowDays int) []time.Time {
	switch b.Method {
	case MethodWeekly:
		weekday, ok := ParseWeekday(b.DayOfWeek)
		if !ok {
			return nil
		}
		return scanDays(today, windowDays, func(d time.Time) bool {
			return d.Weekday() == weekday
		})
	case MethodMonthly:
		days := ParseDaysOfMonth(b.DaysOfMonth)
		if len(days) == 0 {
			return nil
		}
		set := make(map[int]struct{}, len(days))
		for _, d := range days {
			set[d] = struct{}{}
		}
		return scanDays(today, windowDays, func(d time.Time) bool {
			_, ok := set[d.Day()]
			return ok
		})
	case MethodOnce:
		day, ok := ParseDate(b.Date, today.Location())
		if !ok {
			return nil
		}
		return []time.Time{day}
	}
	return nil
}

func scanDays(today time.Time, windowDays int, match func(time.Time) bool) []time.Time {
	var out []time.Time
	for i := 0; i <= windowDays; i++ {
		d := today.AddDate(0, 0, i)
		if match(d) {
			out = append(out, d)
		}
	}
	return out
}
