package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/store"
	"studiobook/backend/internal/store/memstore"
)

const (
	instructorsFile = "instructors.csv"
	clientsFile     = "clients.csv"
	bookingsFile    = "bookings.csv"
)

var (
	instructorHeader = []string{"id", "firstName", "lastName"}
	clientHeader     = []string{"id", "instructorId", "firstName", "lastName"}
	bookingHeader    = []string{"id", "instructorId", "clientId", "method", "time", "date", "dayOfWeek", "daysOfMonth", "exclusions"}
)

// Repo keeps each collection in its own CSV file under dir. Every
// transaction reads all three files, applies its changes in memory and
// rewrites them.
type Repo struct {
	dir string
	mu  sync.Mutex
}

// Open creates dir and any missing file with its header row.
func Open(dir string) (*Repo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	files := map[string][]string{
		instructorsFile: instructorHeader,
		clientsFile:     clientHeader,
		bookingsFile:    bookingHeader,
	}
	for name, header := range files {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		if err := writeFile(path, header, nil); err != nil {
			return nil, err
		}
	}
	return &Repo{dir: dir}, nil
}

func (r *Repo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.StudioTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.load()
	if err != nil {
		return err
	}
	next, err := memstore.Apply(ctx, snap, fn)
	if err != nil {
		return err
	}
	return r.persist(next)
}

func (r *Repo) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *Repo) load() (domain.Snapshot, error) {
	var snap domain.Snapshot

	rows, err := readFile(filepath.Join(r.dir, instructorsFile))
	if err != nil {
		return domain.Snapshot{}, err
	}
	for _, row := range rows {
		snap.Instructors = append(snap.Instructors, domain.Instructor{
			ID:        row["id"],
			FirstName: row["firstName"],
			LastName:  row["lastName"],
		})
	}

	rows, err = readFile(filepath.Join(r.dir, clientsFile))
	if err != nil {
		return domain.Snapshot{}, err
	}
	for _, row := range rows {
		snap.Clients = append(snap.Clients, domain.Client{
			ID:           row["id"],
			InstructorID: row["instructorId"],
			FirstName:    row["firstName"],
			LastName:     row["lastName"],
		})
	}

	rows, err = readFile(filepath.Join(r.dir, bookingsFile))
	if err != nil {
		return domain.Snapshot{}, err
	}
	for _, row := range rows {
		snap.Bookings = append(snap.Bookings, domain.Booking{
			ID:           row["id"],
			InstructorID: row["instructorId"],
			ClientID:     row["clientId"],
			Method:       domain.Method(row["method"]),
			Time:         row["time"],
			Date:         row["date"],
			DayOfWeek:    row["dayOfWeek"],
			DaysOfMonth:  row["daysOfMonth"],
			Exclusions:   row["exclusions"],
		})
	}

	return snap, nil
}

func (r *Repo) persist(snap domain.Snapshot) error {
	instructors := make([][]string, 0, len(snap.Instructors))
	for _, in := range snap.Instructors {
		instructors = append(instructors, []string{in.ID, in.FirstName, in.LastName})
	}
	clients := make([][]string, 0, len(snap.Clients))
	for _, c := range snap.Clients {
		clients = append(clients, []string{c.ID, c.InstructorID, c.FirstName, c.LastName})
	}
	bookings := make([][]string, 0, len(snap.Bookings))
	for _, b := range snap.Bookings {
		bookings = append(bookings, []string{
			b.ID, b.InstructorID, b.ClientID, string(b.Method), b.Time, b.Date, b.DayOfWeek, b.DaysOfMonth, b.Exclusions,
		})
	}

	if err := writeFile(filepath.Join(r.dir, instructorsFile), instructorHeader, instructors); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(r.dir, clientsFile), clientHeader, clients); err != nil {
		return err
	}
	return writeFile(filepath.Join(r.dir, bookingsFile), bookingHeader, bookings)
}

func readFile(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	out := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		row := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(rec) {
				row[strings.TrimSpace(key)] = rec[i]
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// writeFile replaces path atomically. Commas inside values become spaces so
// rows stay one field per column for plain split-on-comma readers.
func writeFile(path string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", filepath.Base(path), err)
	}
	defer os.Remove(tmp.Name())

	cw := csv.NewWriter(tmp)
	if err := cw.Write(header); err != nil {
		_ = tmp.Close()
		return err
	}
	for _, row := range rows {
		clean := make([]string, len(row))
		for i, v := range row {
			clean[i] = strings.ReplaceAll(v, ",", " ")
		}
		if err := cw.Write(clean); err != nil {
			_ = tmp.Close()
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
