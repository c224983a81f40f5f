package studio

import (
	"context"
	"strconv"
	"strings"
	"time"

	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/store"
)

type Scope string

const (
	ScopeAll    Scope = "all"
	ScopeSingle Scope = "single"
)

func (s Scope) single() bool {
	return Scope(strings.ToLower(strings.TrimSpace(string(s)))) == ScopeSingle
}

type RecurrenceInput struct {
	Method      string
	Time        string
	Date        string
	DayOfWeek   string
	DaysOfMonth string
}

type CreateBookingInput struct {
	InstructorID string
	ClientID     string
	RecurrenceInput
}

func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (domain.Booking, error) {
	instructorID := strings.TrimSpace(in.InstructorID)
	clientID := strings.TrimSpace(in.ClientID)
	if instructorID == "" || clientID == "" || strings.TrimSpace(in.Method) == "" || strings.TrimSpace(in.Time) == "" {
		return domain.Booking{}, validationError("missing required fields")
	}

	var out domain.Booking
	err := s.repo.InTransaction(ctx, func(ctx context.Context, tx store.StudioTx) error {
		if _, err := tx.GetInstructor(ctx, instructorID); err != nil {
			return lookup(err, "instructor or client")
		}
		client, err := tx.GetClient(ctx, clientID)
		if err != nil {
			return lookup(err, "instructor or client")
		}
		if client.InstructorID != instructorID {
			return notFound("instructor or client")
		}

		rule, err := normalizeRecurrence(in.RecurrenceInput, s.loc)
		if err != nil {
			return err
		}
		b := domain.Booking{ID: s.newID(), InstructorID: instructorID, ClientID: clientID}
		b.Reschedule(rule)

		created, err := tx.CreateBooking(ctx, b)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

type UpdateBookingInput struct {
	ID    string
	Scope Scope
	// OccurrenceDate names the occurrence to detach when Scope is single.
	OccurrenceDate string
	RecurrenceInput
}

type UpdateBookingResult struct {
	Updated domain.Booking
	// Single is the detached one-off booking, set only for single-scope
	// updates of a recurring booking.
	Single *domain.Booking
}

func (s *Service) UpdateBooking(ctx context.Context, in UpdateBookingInput) (UpdateBookingResult, error) {
	var out UpdateBookingResult
	err := s.repo.InTransaction(ctx, func(ctx context.Context, tx store.StudioTx) error {
		b, err := tx.GetBooking(ctx, strings.TrimSpace(in.ID))
		if err != nil {
			return lookup(err, "booking")
		}
		if strings.TrimSpace(in.Time) == "" {
			return validationError("missing required fields")
		}

		if in.Scope.single() && b.Method != domain.MethodOnce {
			target, err := s.targetDate(in.OccurrenceDate)
			if err != nil {
				return err
			}
			clock, err := normalizeClock(in.Time)
			if err != nil {
				return err
			}
			override := ""
			if d := strings.TrimSpace(in.Date); d != "" {
				key, ok := domain.LocalDateKey(d, s.loc)
				if !ok {
					return validationError("date must be YYYY-MM-DD")
				}
				override = key
			}
			single, err := domain.DetachOccurrence(&b, target, clock, override, s.newID())
			if err != nil {
				return validationError("target date is required")
			}
			if err := tx.UpdateBooking(ctx, b); err != nil {
				return lookup(err, "booking")
			}
			created, err := tx.CreateBooking(ctx, single)
			if err != nil {
				return err
			}
			out = UpdateBookingResult{Updated: b, Single: &created}
			return nil
		}

		if strings.TrimSpace(in.Method) == "" {
			return validationError("missing required fields")
		}
		rule, err := normalizeRecurrence(in.RecurrenceInput, s.loc)
		if err != nil {
			return err
		}
		b.Reschedule(rule)
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return lookup(err, "booking")
		}
		out = UpdateBookingResult{Updated: b}
		return nil
	})
	if err != nil {
		return UpdateBookingResult{}, err
	}
	return out, nil
}

type DeleteBookingInput struct {
	ID             string
	Scope          Scope
	OccurrenceDate string
}

// DeleteBooking removes the booking, or for a single-scope delete of a
// recurring booking only excludes the given occurrence date.
func (s *Service) DeleteBooking(ctx context.Context, in DeleteBookingInput) error {
	return s.repo.InTransaction(ctx, func(ctx context.Context, tx store.StudioTx) error {
		id := strings.TrimSpace(in.ID)
		b, err := tx.GetBooking(ctx, id)
		if err != nil {
			return lookup(err, "booking")
		}

		if in.Scope.single() && b.Method != domain.MethodOnce {
			target, err := s.targetDate(in.OccurrenceDate)
			if err != nil {
				return err
			}
			if !b.Exclude(target) {
				return nil
			}
			return lookup(tx.UpdateBooking(ctx, b), "booking")
		}

		return lookup(tx.DeleteBooking(ctx, id), "booking")
	})
}

// targetDate resolves the occurrence a single-scope request names to its
// date-key in the studio's time zone.
func (s *Service) targetDate(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", validationError("target date is required")
	}
	key, ok := domain.LocalDateKey(raw, s.loc)
	if !ok {
		return "", validationError("target date must be YYYY-MM-DD")
	}
	return key, nil
}

func normalizeClock(raw string) (string, error) {
	hour, minute, ok := domain.ParseClock(raw)
	if !ok {
		return "", validationError("time must be HH:MM")
	}
	return domain.FormatClock(hour, minute), nil
}

// normalizeRecurrence checks the field the method needs and rewrites every
// value into its stored form.
func normalizeRecurrence(in RecurrenceInput, loc *time.Location) (domain.Recurrence, error) {
	method := domain.Method(strings.ToLower(strings.TrimSpace(in.Method)))
	if !method.Valid() {
		return domain.Recurrence{}, validationError("unsupported method")
	}
	clock, err := normalizeClock(in.Time)
	if err != nil {
		return domain.Recurrence{}, err
	}
	rule := domain.Recurrence{Method: method, Time: clock}

	switch method {
	case domain.MethodWeekly:
		raw := strings.TrimSpace(in.DayOfWeek)
		if raw == "" {
			return domain.Recurrence{}, validationError("day of week is required")
		}
		weekday, ok := domain.ParseWeekday(raw)
		if !ok {
			return domain.Recurrence{}, validationError("day of week must be between 0 and 6")
		}
		rule.DayOfWeek = strconv.Itoa(int(weekday))
	case domain.MethodMonthly:
		raw := strings.TrimSpace(in.DaysOfMonth)
		if raw == "" {
			return domain.Recurrence{}, validationError("days of month are required")
		}
		days := domain.ParseDaysOfMonth(strings.ReplaceAll(raw, ",", ";"))
		if len(days) == 0 {
			return domain.Recurrence{}, validationError("days of month must be between 1 and 31")
		}
		rule.DaysOfMonth = domain.FormatDaysOfMonth(days)
	case domain.MethodOnce:
		raw := strings.TrimSpace(in.Date)
		if raw == "" {
			return domain.Recurrence{}, validationError("date is required")
		}
		key, ok := domain.LocalDateKey(raw, loc)
		if !ok {
			return domain.Recurrence{}, validationError("date must be YYYY-MM-DD")
		}
		rule.Date = key
	}
	return rule, nil
}
