package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/service/studio"
	"studiobook/backend/internal/store/memstore"
)

const studioYAML = `
instructors:
  - key: ada
    firstName: Ada
    lastName: Lovelace
  - key: alan
    firstName: Alan
    lastName: Turing
clients:
  - key: grace
    instructor: ada
    firstName: Grace
    lastName: Hopper
  - key: edsger
    instructor: alan
    firstName: Edsger
    lastName: Dijkstra
bookings:
  - client: grace
    method: weekly
    time: "09:00"
    dayOfWeek: "1"
    exclusions: ["2026-01-12"]
  - client: edsger
    method: monthly
    time: "18:30"
    daysOfMonth: "1;15"
  - client: edsger
    method: once
    time: "07:00"
    date: "2026-01-09"
`

func TestParse_ReadsKeyedRecords(t *testing.T) {
	f, err := Parse(strings.NewReader(studioYAML))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(f.Instructors) != 2 || len(f.Clients) != 2 || len(f.Bookings) != 3 {
		t.Fatalf("file = %+v", f)
	}
	if f.Bookings[0].DayOfWeek != "1" || len(f.Bookings[0].Exclusions) != 1 {
		t.Fatalf("bookings[0] = %+v", f.Bookings[0])
	}
}

func TestParse_RejectsBrokenFiles(t *testing.T) {
	tests := map[string]string{
		"unknown field":      "instructors:\n  - key: a\n    nickname: x\n",
		"duplicate key":      "instructors:\n  - key: a\n  - key: a\n",
		"unknown instructor": "clients:\n  - key: c\n    instructor: nobody\n",
		"unknown client":     "bookings:\n  - client: nobody\n",
		"exclusions on once": "instructors:\n  - key: a\nclients:\n  - key: c\n    instructor: a\nbookings:\n  - client: c\n    method: once\n    exclusions: [\"2026-01-01\"]\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	f, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(f.Instructors)+len(f.Clients)+len(f.Bookings) != 0 {
		t.Fatalf("file = %+v", f)
	}
}

func TestApply_CreatesStudioThroughService(t *testing.T) {
	f, err := Parse(strings.NewReader(studioYAML))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	repo := memstore.New(domain.Snapshot{})
	svc := studio.NewService(repo, studio.WithLocation(time.UTC))

	res, err := Apply(context.Background(), svc, f, nil)
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if res != (Result{Instructors: 2, Clients: 2, Bookings: 3, Exclusions: 1}) {
		t.Fatalf("result = %+v", res)
	}

	snap, err := repo.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	clientByID := make(map[string]domain.Client)
	for _, c := range snap.Clients {
		clientByID[c.ID] = c
	}
	for _, b := range snap.Bookings {
		if clientByID[b.ClientID].InstructorID != b.InstructorID {
			t.Fatalf("booking %s instructor = %q, client's is %q", b.ID, b.InstructorID, clientByID[b.ClientID].InstructorID)
		}
	}
	if snap.Bookings[0].Exclusions != "2026-01-12" {
		t.Fatalf("exclusions = %q, want 2026-01-12", snap.Bookings[0].Exclusions)
	}
}

func TestApply_CountsDistinctExclusions(t *testing.T) {
	f := File{
		Instructors: []Instructor{{Key: "a", FirstName: "Ada", LastName: "Lovelace"}},
		Clients:     []Client{{Key: "c", Instructor: "a", FirstName: "Grace", LastName: "Hopper"}},
		Bookings: []Booking{{
			Client:     "c",
			Method:     "weekly",
			Time:       "09:00",
			DayOfWeek:  "1",
			Exclusions: []string{"2026-01-12", "2026-01-12", "2026-01-12T09:00:00.000Z", "2026-01-19"},
		}},
	}
	repo := memstore.New(domain.Snapshot{})
	svc := studio.NewService(repo, studio.WithLocation(time.UTC))

	res, err := Apply(context.Background(), svc, f, nil)
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if res.Exclusions != 2 {
		t.Fatalf("Exclusions = %d, want 2", res.Exclusions)
	}
	snap, _ := repo.Snapshot(context.Background())
	if snap.Bookings[0].Exclusions != "2026-01-12;2026-01-19" {
		t.Fatalf("exclusions = %q", snap.Bookings[0].Exclusions)
	}
}

func TestApply_StopsAtInvalidBooking(t *testing.T) {
	f := File{
		Instructors: []Instructor{{Key: "a", FirstName: "Ada", LastName: "Lovelace"}},
		Clients:     []Client{{Key: "c", Instructor: "a", FirstName: "Grace", LastName: "Hopper"}},
		Bookings:    []Booking{{Client: "c", Method: "weekly", Time: "09:00", DayOfWeek: "9"}},
	}
	svc := studio.NewService(memstore.New(domain.Snapshot{}))

	res, err := Apply(context.Background(), svc, f, nil)
	var vErr *studio.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if res.Instructors != 1 || res.Clients != 1 || res.Bookings != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestLoad_NamesFileInErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.yaml")
	if err := os.WriteFile(path, []byte("bookings:\n  - client: ghost\n"), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Fatalf("err = %v, want it to name %s", err, path)
	}
}
