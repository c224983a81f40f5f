// Package seed bootstraps a studio from a YAML file. Records reference each
// other through file-local keys; the stored ids are assigned on import.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/service/studio"
)

type File struct {
	Instructors []Instructor `yaml:"instructors"`
	Clients     []Client     `yaml:"clients"`
	Bookings    []Booking    `yaml:"bookings"`
}

type Instructor struct {
	Key       string `yaml:"key"`
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
}

type Client struct {
	Key        string `yaml:"key"`
	Instructor string `yaml:"instructor"`
	FirstName  string `yaml:"firstName"`
	LastName   string `yaml:"lastName"`
}

// Booking belongs to the instructor of its client.
type Booking struct {
	Client      string   `yaml:"client"`
	Method      string   `yaml:"method"`
	Time        string   `yaml:"time"`
	Date        string   `yaml:"date"`
	DayOfWeek   string   `yaml:"dayOfWeek"`
	DaysOfMonth string   `yaml:"daysOfMonth"`
	Exclusions  []string `yaml:"exclusions"`
}

func Load(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	f, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a seed file. Unknown fields are rejected.
func Parse(r io.Reader) (File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("decode seed: %w", err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks the key graph. Field rules are left to the studio service.
func (f File) Validate() error {
	instructors := make(map[string]bool, len(f.Instructors))
	for i, in := range f.Instructors {
		key := strings.TrimSpace(in.Key)
		if key == "" {
			return fmt.Errorf("instructors[%d]: key is required", i)
		}
		if instructors[key] {
			return fmt.Errorf("instructors[%d]: duplicate key %q", i, key)
		}
		instructors[key] = true
	}

	clients := make(map[string]bool, len(f.Clients))
	for i, c := range f.Clients {
		key := strings.TrimSpace(c.Key)
		if key == "" {
			return fmt.Errorf("clients[%d]: key is required", i)
		}
		if clients[key] {
			return fmt.Errorf("clients[%d]: duplicate key %q", i, key)
		}
		if !instructors[strings.TrimSpace(c.Instructor)] {
			return fmt.Errorf("clients[%d]: unknown instructor %q", i, c.Instructor)
		}
		clients[key] = true
	}

	for i, b := range f.Bookings {
		if !clients[strings.TrimSpace(b.Client)] {
			return fmt.Errorf("bookings[%d]: unknown client %q", i, b.Client)
		}
		if len(b.Exclusions) > 0 && domain.Method(strings.ToLower(strings.TrimSpace(b.Method))) == domain.MethodOnce {
			return fmt.Errorf("bookings[%d]: exclusions need a recurring method", i)
		}
	}
	return nil
}

type studioService interface {
	CreateInstructor(ctx context.Context, in studio.CreateInstructorInput) (domain.Instructor, error)
	CreateClient(ctx context.Context, in studio.CreateClientInput) (domain.Client, error)
	CreateBooking(ctx context.Context, in studio.CreateBookingInput) (domain.Booking, error)
	DeleteBooking(ctx context.Context, in studio.DeleteBookingInput) error
	Location() *time.Location
}

// Result counts the records Apply stored. Exclusions counts distinct dates
// per booking.
type Result struct {
	Instructors int
	Clients     int
	Bookings    int
	Exclusions  int
}

// Apply creates every record through the service so the usual validation
// holds. It stops at the first failure; records created before it remain.
func Apply(ctx context.Context, svc studioService, f File, log *slog.Logger) (Result, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "seed"))

	if err := f.Validate(); err != nil {
		return Result{}, err
	}

	var res Result
	instructorIDs := make(map[string]string, len(f.Instructors))
	for i, in := range f.Instructors {
		created, err := svc.CreateInstructor(ctx, studio.CreateInstructorInput{FirstName: in.FirstName, LastName: in.LastName})
		if err != nil {
			return res, fmt.Errorf("instructors[%d] %q: %w", i, in.Key, err)
		}
		instructorIDs[strings.TrimSpace(in.Key)] = created.ID
		res.Instructors++
	}

	type clientRef struct{ id, instructorID string }
	clientRefs := make(map[string]clientRef, len(f.Clients))
	for i, c := range f.Clients {
		created, err := svc.CreateClient(ctx, studio.CreateClientInput{
			InstructorID: instructorIDs[strings.TrimSpace(c.Instructor)],
			FirstName:    c.FirstName,
			LastName:     c.LastName,
		})
		if err != nil {
			return res, fmt.Errorf("clients[%d] %q: %w", i, c.Key, err)
		}
		clientRefs[strings.TrimSpace(c.Key)] = clientRef{id: created.ID, instructorID: created.InstructorID}
		res.Clients++
	}

	for i, b := range f.Bookings {
		ref := clientRefs[strings.TrimSpace(b.Client)]
		created, err := svc.CreateBooking(ctx, studio.CreateBookingInput{
			InstructorID: ref.instructorID,
			ClientID:     ref.id,
			RecurrenceInput: studio.RecurrenceInput{
				Method:      b.Method,
				Time:        b.Time,
				Date:        b.Date,
				DayOfWeek:   b.DayOfWeek,
				DaysOfMonth: b.DaysOfMonth,
			},
		})
		if err != nil {
			return res, fmt.Errorf("bookings[%d]: %w", i, err)
		}
		res.Bookings++

		excluded := make(map[string]struct{}, len(b.Exclusions))
		for _, day := range b.Exclusions {
			err := svc.DeleteBooking(ctx, studio.DeleteBookingInput{
				ID:             created.ID,
				Scope:          studio.ScopeSingle,
				OccurrenceDate: day,
			})
			if err != nil {
				return res, fmt.Errorf("bookings[%d] exclusion %q: %w", i, day, err)
			}
			key, _ := domain.LocalDateKey(day, svc.Location())
			excluded[key] = struct{}{}
		}
		res.Exclusions += len(excluded)
	}

	log.Info(
		"seed applied",
		slog.Int("instructors", res.Instructors),
		slog.Int("clients", res.Clients),
		slog.Int("bookings", res.Bookings),
		slog.Int("exclusions", res.Exclusions),
	)
	return res, nil
}
