package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/store"
)

// Tx runs store.StudioTx operations against a snapshot held in memory.
// It is not safe for concurrent use; callers serialize access.
type Tx struct {
	snap *domain.Snapshot
}

func NewTx(snap *domain.Snapshot) *Tx {
	return &Tx{snap: snap}
}

// Apply runs fn against a copy of snap and returns the copy. snap itself is
// never modified, so a failed fn leaves nothing behind.
func Apply(ctx context.Context, snap domain.Snapshot, fn func(ctx context.Context, tx store.StudioTx) error) (domain.Snapshot, error) {
	work := snap.Clone()
	if err := fn(ctx, NewTx(&work)); err != nil {
		return snap, err
	}
	return work, nil
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func (t *Tx) ListInstructors(ctx context.Context) ([]domain.Instructor, error) {
	return append([]domain.Instructor(nil), t.snap.Instructors...), nil
}

func (t *Tx) GetInstructor(ctx context.Context, id string) (domain.Instructor, error) {
	for _, in := range t.snap.Instructors {
		if in.ID == id {
			return in, nil
		}
	}
	return domain.Instructor{}, store.ErrNotFound
}

func (t *Tx) CreateInstructor(ctx context.Context, in domain.Instructor) (domain.Instructor, error) {
	in.ID = newID(in.ID)
	if _, err := t.GetInstructor(ctx, in.ID); err == nil {
		return domain.Instructor{}, store.ErrConflict
	}
	in.CreatedAt = createdAt(in.CreatedAt)
	t.snap.Instructors = append(t.snap.Instructors, in)
	return in, nil
}

func (t *Tx) DeleteInstructor(ctx context.Context, id string) error {
	kept := t.snap.Instructors[:0:0]
	for _, in := range t.snap.Instructors {
		if in.ID != id {
			kept = append(kept, in)
		}
	}
	if len(kept) == len(t.snap.Instructors) {
		return store.ErrNotFound
	}
	t.snap.Instructors = kept
	return nil
}

func (t *Tx) ListClients(ctx context.Context) ([]domain.Client, error) {
	return append([]domain.Client(nil), t.snap.Clients...), nil
}

func (t *Tx) GetClient(ctx context.Context, id string) (domain.Client, error) {
	for _, c := range t.snap.Clients {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Client{}, store.ErrNotFound
}

func (t *Tx) CreateClient(ctx context.Context, c domain.Client) (domain.Client, error) {
	c.ID = newID(c.ID)
	if _, err := t.GetClient(ctx, c.ID); err == nil {
		return domain.Client{}, store.ErrConflict
	}
	c.CreatedAt = createdAt(c.CreatedAt)
	t.snap.Clients = append(t.snap.Clients, c)
	return c, nil
}

func (t *Tx) UpdateClient(ctx context.Context, c domain.Client) error {
	for i := range t.snap.Clients {
		if t.snap.Clients[i].ID == c.ID {
			c.CreatedAt = t.snap.Clients[i].CreatedAt
			t.snap.Clients[i] = c
			return nil
		}
	}
	return store.ErrNotFound
}

func (t *Tx) DeleteClient(ctx context.Context, id string) error {
	n := t.deleteClients(func(c domain.Client) bool { return c.ID == id })
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *Tx) DeleteClientsByInstructor(ctx context.Context, instructorID string) (int, error) {
	return t.deleteClients(func(c domain.Client) bool { return c.InstructorID == instructorID }), nil
}

func (t *Tx) deleteClients(match func(domain.Client) bool) int {
	kept := t.snap.Clients[:0:0]
	for _, c := range t.snap.Clients {
		if !match(c) {
			kept = append(kept, c)
		}
	}
	n := len(t.snap.Clients) - len(kept)
	t.snap.Clients = kept
	return n
}

func (t *Tx) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	return append([]domain.Booking(nil), t.snap.Bookings...), nil
}

func (t *Tx) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	for _, b := range t.snap.Bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return domain.Booking{}, store.ErrNotFound
}

func (t *Tx) CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	b.ID = newID(b.ID)
	if _, err := t.GetBooking(ctx, b.ID); err == nil {
		return domain.Booking{}, store.ErrConflict
	}
	b.CreatedAt = createdAt(b.CreatedAt)
	t.snap.Bookings = append(t.snap.Bookings, b)
	return b, nil
}

func (t *Tx) UpdateBooking(ctx context.Context, b domain.Booking) error {
	for i := range t.snap.Bookings {
		if t.snap.Bookings[i].ID == b.ID {
			b.CreatedAt = t.snap.Bookings[i].CreatedAt
			t.snap.Bookings[i] = b
			return nil
		}
	}
	return store.ErrNotFound
}

func (t *Tx) DeleteBooking(ctx context.Context, id string) error {
	n := t.deleteBookings(func(b domain.Booking) bool { return b.ID == id })
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *Tx) DeleteBookings(ctx context.Context, filter store.BookingFilter) (int, error) {
	return t.deleteBookings(filter.Match), nil
}

func (t *Tx) deleteBookings(match func(domain.Booking) bool) int {
	kept := t.snap.Bookings[:0:0]
	for _, b := range t.snap.Bookings {
		if !match(b) {
			kept = append(kept, b)
		}
	}
	n := len(t.snap.Bookings) - len(kept)
	t.snap.Bookings = kept
	return n
}

func (t *Tx) ReassignBookings(ctx context.Context, clientID, instructorID string) (int, error) {
	n := 0
	for i := range t.snap.Bookings {
		if t.snap.Bookings[i].ClientID == clientID {
			t.snap.Bookings[i].InstructorID = instructorID
			n++
		}
	}
	return n, nil
}
