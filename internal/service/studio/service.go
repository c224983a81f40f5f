package studio

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type notFoundError struct {
	what string
}

func (e *notFoundError) Error() string {
	return e.what + " not found"
}

func (e *notFoundError) Unwrap() error {
	return store.ErrNotFound
}

func notFound(what string) error {
	return &notFoundError{what: what}
}

// lookup turns a bare store.ErrNotFound into one naming the entity.
func lookup(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(what)
	}
	return err
}

type Service struct {
	repo       store.Repository
	now        func() time.Time
	newID      func() string
	loc        *time.Location
	windowDays int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithLocation sets the studio's wall-clock time zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithWindowDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.windowDays = domain.ClampWindowDays(days)
		}
	}
}

func NewService(repo store.Repository, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		now:        time.Now,
		newID:      uuid.NewString,
		loc:        time.Local,
		windowDays: domain.DefaultWindowDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) localNow() time.Time {
	return s.now().In(s.loc)
}

type Overview struct {
	domain.Snapshot
	Occurrences []domain.Occurrence `json:"occurrences"`
}

func (s *Service) Overview(ctx context.Context) (Overview, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return Overview{}, err
	}
	occs := domain.Expand(snap.Bookings, snap.Clients, snap.Instructors, s.windowDays, s.localNow())
	return Overview{Snapshot: snap, Occurrences: occs}, nil
}

// Occurrences expands every booking over windowDays, or over the configured
// window when windowDays is not positive.
func (s *Service) Occurrences(ctx context.Context, windowDays int) ([]domain.Occurrence, error) {
	if windowDays <= 0 {
		windowDays = s.windowDays
	}
	snap, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return domain.Expand(snap.Bookings, snap.Clients, snap.Instructors, windowDays, s.localNow()), nil
}

func (s *Service) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	snap, err := s.repo.Snapshot(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Instructors == nil {
		snap.Instructors = []domain.Instructor{}
	}
	if snap.Clients == nil {
		snap.Clients = []domain.Client{}
	}
	if snap.Bookings == nil {
		snap.Bookings = []domain.Booking{}
	}
	return snap, nil
}

type CreateInstructorInput struct {
	FirstName string
	LastName  string
}

func (s *Service) CreateInstructor(ctx context.Context, in CreateInstructorInput) (domain.Instructor, error) {
	first := domain.NormalizeName(in.FirstName)
	last := domain.NormalizeName(in.LastName)
	if first == "" || last == "" {
		return domain.Instructor{}, validationError("first and last name are required")
	}

	var out domain.Instructor
	err := s.repo.InTransaction(ctx, func(ctx context.Context, tx store.StudioTx) error {
		created, err := tx.CreateInstructor(ctx, domain.Instructor{ID: s.newID(), FirstName: first, LastName: last})
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Instructor{}, err
	}
	return out, nil
}

// DeleteInstructor removes the instructor with every client and booking
// that belongs to it. Deleting an unknown instructor is not an error.
func (s *Service) DeleteInstructor(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return validationError("instructor is required")
	}

	return s.repo.InTransaction(ctx, func(ctx context.Context, tx store.StudioTx) error {
		clients, err := tx.ListClients(ctx)
		if err != nil {
			return err
		}
		for _, c := range clients {
			if c.InstructorID != id {
				continue
			}
			if _, err := tx.DeleteBookings(ctx, store.BookingFilter{ClientID: c.ID}); err != nil {
				return err
			}
		}
		if _, err := tx.DeleteBookings(ctx, store.BookingFilter{InstructorID: id}); err != nil {
			return err
		}
		if _, err := tx.DeleteClientsByInstructor(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteInstructor(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return nil
	})
}

type CreateClientInput struct {
	InstructorID string
	FirstName    string
	LastName     string
}

func (s *Service) CreateClient(ctx context.Context, in CreateClientInput) (domain.Client, error) {
	instructorID := strings.TrimSpace(in.InstructorID)
	first := domain.NormalizeName(in.FirstName)
	last := domain.NormalizeName(in.LastName)
	if instructorID == "" || first == "" || last == "" {
		return domain.Client{}, validationError("instructor and first and last name are required")
	}

	var out domain.Client
	err := s.repo.InTransaction(ctx, func(ctx context.Context, tx store.StudioTx) error {
		if _, err := tx.GetInstructor(ctx, instructorID); err != nil {
			return lookup(err, "instructor")
		}
		created, err := tx.CreateClient(ctx, domain.Client{
			ID:           s.newID(),
			InstructorID: instructorID,
			FirstName:    first,
			LastName:     last,
		})
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Client{}, err
	}
	return out, nil
}

// ReassignClient moves a client, and every booking it owns, to another
// instructor.
func (s *Service) ReassignClient(ctx context.Context, clientID, instructorID string) (domain.Client, error) {
	clientID = strings.TrimSpace(clientID)
	instructorID = strings.TrimSpace(instructorID)
	if instructorID == "" {
		return domain.Client{}, validationError("new instructor is required")
	}

	var out domain.Client
	err := s.repo.InTransaction(ctx, func(ctx context.Context, tx store.StudioTx) error {
		client, err := tx.GetClient(ctx, clientID)
		if err != nil {
			return lookup(err, "client")
		}
		if _, err := tx.GetInstructor(ctx, instructorID); err != nil {
			return lookup(err, "instructor")
		}
		client.InstructorID = instructorID
		if err := tx.UpdateClient(ctx, client); err != nil {
			return lookup(err, "client")
		}
		if _, err := tx.ReassignBookings(ctx, clientID, instructorID); err != nil {
			return err
		}
		out = client
		return nil
	})
	if err != nil {
		return domain.Client{}, err
	}
	return out, nil
}

func (s *Service) DeleteClient(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	return s.repo.InTransaction(ctx, func(ctx context.Context, tx store.StudioTx) error {
		if _, err := tx.GetClient(ctx, id); err != nil {
			return lookup(err, "client")
		}
		if _, err := tx.DeleteBookings(ctx, store.BookingFilter{ClientID: id}); err != nil {
			return err
		}
		return lookup(tx.DeleteClient(ctx, id), "client")
	})
}
