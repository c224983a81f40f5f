package calendar

import (
	"errors"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"studiobook/backend/internal/domain"
)

const (
	productID        = "-//studiobook//studio schedule//EN"
	floatingLayout   = "20060102T150405"
	defaultEventSpan = time.Hour
)

var errNoOccurrence = errors.New("rule has no upcoming occurrence")

var rruleWeekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

type FeedOptions struct {
	Name          string
	EventDuration time.Duration
	// Now anchors the first instance of recurring bookings. Its location is
	// the studio's wall clock.
	Now time.Time
}

// BuildFeed renders the bookings as an iCalendar document. Times are written
// as floating local times. Recurring bookings become one event with an RRULE
// and an EXDATE per exclusion; bookings the expander would skip are left out.
func BuildFeed(snap domain.Snapshot, opts FeedOptions) string {
	if opts.EventDuration <= 0 {
		opts.EventDuration = defaultEventSpan
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	if opts.Name != "" {
		cal.SetName(opts.Name)
	}

	clientByID := make(map[string]domain.Client, len(snap.Clients))
	for _, c := range snap.Clients {
		clientByID[c.ID] = c
	}
	instructorByID := make(map[string]domain.Instructor, len(snap.Instructors))
	for _, in := range snap.Instructors {
		instructorByID[in.ID] = in
	}

	stamp := opts.Now.UTC()
	for _, b := range snap.Bookings {
		client, ok := clientByID[b.ClientID]
		if !ok {
			continue
		}
		instructor, ok := instructorByID[b.InstructorID]
		if !ok {
			continue
		}
		start, rule, err := firstInstance(b, opts.Now)
		if err != nil {
			continue
		}

		ev := cal.AddEvent(b.ID + "@studiobook")
		ev.SetDtStampTime(stamp)
		ev.SetSummary(client.DisplayName() + " / " + instructor.DisplayName())
		ev.SetDescription(string(b.Method) + " booking " + b.ID)
		ev.SetProperty(ical.ComponentPropertyDtStart, start.Format(floatingLayout))
		ev.SetProperty(ical.ComponentPropertyDtEnd, start.Add(opts.EventDuration).Format(floatingLayout))
		if rule == nil {
			continue
		}
		ev.AddProperty(ical.ComponentPropertyRrule, rule.OrigOptions.RRuleString())
		for _, key := range b.ExclusionKeys() {
			day, ok := domain.ParseDate(key, start.Location())
			if !ok {
				continue
			}
			ex := time.Date(day.Year(), day.Month(), day.Day(), start.Hour(), start.Minute(), 0, 0, start.Location())
			ev.AddProperty(ical.ComponentPropertyExdate, ex.Format(floatingLayout))
		}
	}

	return cal.Serialize()
}

// Rule returns the recurrence of a weekly or monthly booking anchored at
// dtstart, or nil for one-off bookings.
func Rule(b domain.Booking, dtstart time.Time) (*rrule.RRule, error) {
	opt := rrule.ROption{Dtstart: dtstart}
	switch b.Method {
	case domain.MethodWeekly:
		weekday, ok := domain.ParseWeekday(b.DayOfWeek)
		if !ok {
			return nil, errors.New("invalid day of week")
		}
		opt.Freq = rrule.WEEKLY
		opt.Byweekday = []rrule.Weekday{rruleWeekdays[weekday]}
	case domain.MethodMonthly:
		days := domain.ParseDaysOfMonth(b.DaysOfMonth)
		if len(days) == 0 {
			return nil, errors.New("no valid days of month")
		}
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = days
	case domain.MethodOnce:
		return nil, nil
	default:
		return nil, errors.New("unsupported method")
	}
	return rrule.NewRRule(opt)
}

// firstInstance finds the booking's start: its date for one-off bookings,
// otherwise the first instance on or after local midnight of now.
func firstInstance(b domain.Booking, now time.Time) (time.Time, *rrule.RRule, error) {
	hour, minute, ok := domain.ParseClock(b.Time)
	if !ok {
		return time.Time{}, nil, errors.New("invalid time")
	}
	loc := now.Location()

	if b.Method == domain.MethodOnce {
		day, ok := domain.ParseDate(b.Date, loc)
		if !ok {
			return time.Time{}, nil, errors.New("invalid date")
		}
		return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil, nil
	}

	anchor := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
	rule, err := Rule(b, anchor)
	if err != nil {
		return time.Time{}, nil, err
	}
	first := rule.After(anchor, true)
	if first.IsZero() {
		return time.Time{}, nil, errNoOccurrence
	}
	rule.DTStart(first)
	return first, rule, nil
}
