package csvstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/store"
	"studiobook/backend/internal/store/storetest"
)

func TestRepo_Conformance(t *testing.T) {
	repo, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	storetest.Run(t, repo)
}

func TestOpen_WritesHeaders(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir); err != nil {
		t.Fatalf("Open error: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, bookingsFile))
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	want := "id,instructorId,clientId,method,time,date,dayOfWeek,daysOfMonth,exclusions\n"
	if string(raw) != want {
		t.Fatalf("bookings.csv = %q, want %q", raw, want)
	}
}

func TestOpen_KeepsExistingData(t *testing.T) {
	dir := t.TempDir()
	content := "id,firstName,lastName\ni1,Ada,Lovelace\n\n"
	if err := os.WriteFile(filepath.Join(dir, instructorsFile), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	snap, err := repo.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	if len(snap.Instructors) != 1 || snap.Instructors[0].LastName != "Lovelace" {
		t.Fatalf("instructors = %+v, want Ada Lovelace", snap.Instructors)
	}
}

func TestRepo_ReplacesCommasOnWrite(t *testing.T) {
	dir := t.TempDir()
	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}

	err = repo.InTransaction(context.Background(), func(ctx context.Context, tx store.StudioTx) error {
		_, err := tx.CreateInstructor(ctx, domain.Instructor{ID: "i1", FirstName: "Smith,", LastName: "Jr"})
		return err
	})
	if err != nil {
		t.Fatalf("InTransaction error: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, instructorsFile))
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if !strings.Contains(string(raw), "i1,Smith ,Jr") {
		t.Fatalf("instructors.csv = %q, want comma replaced", raw)
	}
}
