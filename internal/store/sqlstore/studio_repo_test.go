package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/store"
	"studiobook/backend/internal/store/storetest"
)

func openSQLite(t *testing.T) *bun.DB {
	t.Helper()

	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "studio.db"), PoolConfig{})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	return db
}

func TestSQLite_Conformance(t *testing.T) {
	storetest.Run(t, NewStudioRepo(openSQLite(t)))
}

func TestSQLite_MigrateIsRepeatable(t *testing.T) {
	db := openSQLite(t)
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("second Migrate error: %v", err)
	}
}

func TestSQLite_DuplicateIDIsConflict(t *testing.T) {
	repo := NewStudioRepo(openSQLite(t))
	ctx := context.Background()

	create := func(ctx context.Context, tx store.StudioTx) error {
		_, err := tx.CreateInstructor(ctx, domain.Instructor{ID: "i1", FirstName: "Ada", LastName: "Lovelace"})
		return err
	}
	if err := repo.InTransaction(ctx, create); err != nil {
		t.Fatalf("first create error: %v", err)
	}
	if err := repo.InTransaction(ctx, create); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("second create err = %v, want ErrConflict", err)
	}
}

func TestSQLite_ZeroFilterDeletesNothing(t *testing.T) {
	repo := NewStudioRepo(openSQLite(t))
	ctx := context.Background()

	err := repo.InTransaction(ctx, func(ctx context.Context, tx store.StudioTx) error {
		if _, err := tx.CreateBooking(ctx, domain.Booking{ID: "b1", InstructorID: "i1", ClientID: "c1", Method: domain.MethodOnce, Time: "09:00", Date: "2026-01-01"}); err != nil {
			return err
		}
		n, err := tx.DeleteBookings(ctx, store.BookingFilter{})
		if err != nil {
			return err
		}
		if n != 0 {
			t.Fatalf("DeleteBookings = %d, want 0", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTransaction error: %v", err)
	}
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "x", PoolConfig{}); err == nil {
		t.Fatalf("expected error")
	}
}
