package store

import (
	"context"

	"studiobook/backend/internal/domain"
)

type Repository interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx StudioTx) error) error
	Snapshot(ctx context.Context) (domain.Snapshot, error)
}

// BookingFilter selects bookings by owner. Set fields must all match; the
// zero filter matches nothing.
type BookingFilter struct {
	InstructorID string
	ClientID     string
}

func (f BookingFilter) IsZero() bool {
	return f.InstructorID == "" && f.ClientID == ""
}

func (f BookingFilter) Match(b domain.Booking) bool {
	if f.IsZero() {
		return false
	}
	if f.InstructorID != "" && b.InstructorID != f.InstructorID {
		return false
	}
	if f.ClientID != "" && b.ClientID != f.ClientID {
		return false
	}
	return true
}

// StudioTx is the set of reads and writes available inside one transaction.
// Get, Update and Delete return ErrNotFound for unknown ids.
type StudioTx interface {
	ListInstructors(ctx context.Context) ([]domain.Instructor, error)
	GetInstructor(ctx context.Context, id string) (domain.Instructor, error)
	CreateInstructor(ctx context.Context, in domain.Instructor) (domain.Instructor, error)
	DeleteInstructor(ctx context.Context, id string) error

	ListClients(ctx context.Context) ([]domain.Client, error)
	GetClient(ctx context.Context, id string) (domain.Client, error)
	CreateClient(ctx context.Context, c domain.Client) (domain.Client, error)
	UpdateClient(ctx context.Context, c domain.Client) error
	DeleteClient(ctx context.Context, id string) error
	DeleteClientsByInstructor(ctx context.Context, instructorID string) (int, error)

	ListBookings(ctx context.Context) ([]domain.Booking, error)
	GetBooking(ctx context.Context, id string) (domain.Booking, error)
	CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)
	UpdateBooking(ctx context.Context, b domain.Booking) error
	DeleteBooking(ctx context.Context, id string) error
	DeleteBookings(ctx context.Context, filter BookingFilter) (int, error)
	ReassignBookings(ctx context.Context, clientID, instructorID string) (int, error)
}
