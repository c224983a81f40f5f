// Package storetest holds behavior checks shared by every store.Repository
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/store"
)

var errRollback = errors.New("rollback")

// Run exercises repo, which must start empty.
func Run(t *testing.T, repo store.Repository) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mustTx := func(fn func(ctx context.Context, tx store.StudioTx) error) {
		t.Helper()
		if err := repo.InTransaction(ctx, fn); err != nil {
			t.Fatalf("InTransaction error: %v", err)
		}
	}

	mustTx(func(ctx context.Context, tx store.StudioTx) error {
		for _, in := range []domain.Instructor{
			{ID: "i1", FirstName: "Ada", LastName: "Lovelace"},
			{ID: "i2", FirstName: "Alan", LastName: "Turing"},
		} {
			if _, err := tx.CreateInstructor(ctx, in); err != nil {
				return err
			}
		}
		for _, c := range []domain.Client{
			{ID: "c1", InstructorID: "i1", FirstName: "Grace", LastName: "Hopper"},
			{ID: "c2", InstructorID: "i1", FirstName: "Edsger", LastName: "Dijkstra"},
			{ID: "c3", InstructorID: "i2", FirstName: "Barbara", LastName: "Liskov"},
		} {
			if _, err := tx.CreateClient(ctx, c); err != nil {
				return err
			}
		}
		for _, b := range []domain.Booking{
			{ID: "b1", InstructorID: "i1", ClientID: "c1", Method: domain.MethodWeekly, Time: "09:00", DayOfWeek: "1"},
			{ID: "b2", InstructorID: "i1", ClientID: "c1", Method: domain.MethodMonthly, Time: "10:00", DaysOfMonth: "1;15"},
			{ID: "b3", InstructorID: "i1", ClientID: "c2", Method: domain.MethodOnce, Time: "11:00", Date: "2026-02-01"},
			{ID: "b4", InstructorID: "i2", ClientID: "c3", Method: domain.MethodWeekly, Time: "12:00", DayOfWeek: "5"},
		} {
			if _, err := tx.CreateBooking(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})

	snap, err := repo.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	if len(snap.Instructors) != 2 || len(snap.Clients) != 3 || len(snap.Bookings) != 4 {
		t.Fatalf("snapshot sizes = %d/%d/%d, want 2/3/4", len(snap.Instructors), len(snap.Clients), len(snap.Bookings))
	}
	if snap.Bookings[0].ID != "b1" || snap.Bookings[3].ID != "b4" {
		t.Fatalf("bookings out of insertion order: %s..%s", snap.Bookings[0].ID, snap.Bookings[3].ID)
	}
	if b := snap.Bookings[1]; b.DaysOfMonth != "1;15" || b.Date != "" || b.DayOfWeek != "" || b.Exclusions != "" {
		t.Fatalf("monthly booking = %+v, fields not preserved", b)
	}

	mustTx(func(ctx context.Context, tx store.StudioTx) error {
		if _, err := tx.GetBooking(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("GetBooking(missing) err = %v, want ErrNotFound", err)
		}
		if _, err := tx.GetClient(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("GetClient(missing) err = %v, want ErrNotFound", err)
		}
		if _, err := tx.GetInstructor(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("GetInstructor(missing) err = %v, want ErrNotFound", err)
		}
		if err := tx.DeleteBooking(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("DeleteBooking(missing) err = %v, want ErrNotFound", err)
		}
		if err := tx.UpdateBooking(ctx, domain.Booking{ID: "missing"}); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("UpdateBooking(missing) err = %v, want ErrNotFound", err)
		}
		return nil
	})

	mustTx(func(ctx context.Context, tx store.StudioTx) error {
		b, err := tx.GetBooking(ctx, "b1")
		if err != nil {
			return err
		}
		b.Exclude("2026-01-05")
		b.Time = "09:30"
		return tx.UpdateBooking(ctx, b)
	})

	err = repo.InTransaction(ctx, func(ctx context.Context, tx store.StudioTx) error {
		if err := tx.DeleteBooking(ctx, "b2"); err != nil {
			return err
		}
		return errRollback
	})
	if !errors.Is(err, errRollback) {
		t.Fatalf("InTransaction err = %v, want errRollback", err)
	}

	mustTx(func(ctx context.Context, tx store.StudioTx) error {
		b, err := tx.GetBooking(ctx, "b1")
		if err != nil {
			return err
		}
		if b.Exclusions != "2026-01-05" || b.Time != "09:30" {
			t.Fatalf("b1 = %+v, update not persisted", b)
		}
		if _, err := tx.GetBooking(ctx, "b2"); err != nil {
			t.Fatalf("b2 missing after rolled back delete: %v", err)
		}
		return nil
	})

	mustTx(func(ctx context.Context, tx store.StudioTx) error {
		c, err := tx.GetClient(ctx, "c2")
		if err != nil {
			return err
		}
		c.InstructorID = "i2"
		if err := tx.UpdateClient(ctx, c); err != nil {
			return err
		}
		n, err := tx.ReassignBookings(ctx, "c2", "i2")
		if err != nil {
			return err
		}
		if n != 1 {
			t.Fatalf("ReassignBookings = %d, want 1", n)
		}
		return nil
	})

	mustTx(func(ctx context.Context, tx store.StudioTx) error {
		n, err := tx.DeleteBookings(ctx, store.BookingFilter{InstructorID: "i1"})
		if err != nil {
			return err
		}
		if n != 2 {
			t.Fatalf("DeleteBookings(i1) = %d, want 2", n)
		}
		n, err = tx.DeleteClientsByInstructor(ctx, "i1")
		if err != nil {
			return err
		}
		if n != 1 {
			t.Fatalf("DeleteClientsByInstructor(i1) = %d, want 1", n)
		}
		return tx.DeleteInstructor(ctx, "i1")
	})

	snap, err = repo.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	if len(snap.Instructors) != 1 || snap.Instructors[0].ID != "i2" {
		t.Fatalf("instructors = %+v, want only i2", snap.Instructors)
	}
	if len(snap.Clients) != 2 {
		t.Fatalf("len(clients) = %d, want 2", len(snap.Clients))
	}
	if len(snap.Bookings) != 2 {
		t.Fatalf("len(bookings) = %d, want 2", len(snap.Bookings))
	}
	for _, b := range snap.Bookings {
		if b.InstructorID != "i2" {
			t.Fatalf("booking %s instructor = %s, want i2", b.ID, b.InstructorID)
		}
	}
}
