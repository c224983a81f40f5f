package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"studiobook/backend/internal/domain"
	"studiobook/backend/internal/store"
)

const studioLockKey = "studiobook:studio"

type StudioRepo struct {
	db *bun.DB
}

func NewStudioRepo(db *bun.DB) *StudioRepo {
	return &StudioRepo{db: db}
}

type studioTx struct {
	tx bun.Tx
}

func (r *StudioRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.StudioTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockStudio(ctx, tx); err != nil {
			return err
		}
		return fn(ctx, studioTx{tx: tx})
	})
}

func (r *StudioRepo) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		s := studioTx{tx: tx}
		var err error
		if snap.Instructors, err = s.ListInstructors(ctx); err != nil {
			return err
		}
		if snap.Clients, err = s.ListClients(ctx); err != nil {
			return err
		}
		snap.Bookings, err = s.ListBookings(ctx)
		return err
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// lockStudio serializes writers on postgres. SQLite runs on one connection
// and needs no extra lock.
func lockStudio(ctx context.Context, tx bun.Tx) error {
	if tx.Dialect().Name() != dialect.PG {
		return nil
	}
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", studioLockKey).Exec(ctx)
	return err
}

func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return store.ErrConflict
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return store.ErrConflict
		case sqlite3.SQLITE_CONSTRAINT:
			if strings.Contains(liteErr.Error(), "UNIQUE") {
				return store.ErrConflict
			}
		}
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func affectedOrNotFound(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func affected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

const listOrder = "created_at ASC, id ASC"

func (r studioTx) ListInstructors(ctx context.Context) ([]domain.Instructor, error) {
	rows := make([]domain.Instructor, 0)
	if err := r.tx.NewSelect().Model(&rows).OrderExpr(listOrder).Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r studioTx) GetInstructor(ctx context.Context, id string) (domain.Instructor, error) {
	var m domain.Instructor
	err := r.tx.NewSelect().Model(&m).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Instructor{}, notFound(err)
	}
	return m, nil
}

func (r studioTx) CreateInstructor(ctx context.Context, in domain.Instructor) (domain.Instructor, error) {
	m := in
	if _, err := r.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Instructor{}, mapInsertError(err)
	}
	return m, nil
}

func (r studioTx) DeleteInstructor(ctx context.Context, id string) error {
	res, err := r.tx.NewDelete().
		Model((*domain.Instructor)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r studioTx) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows := make([]domain.Client, 0)
	if err := r.tx.NewSelect().Model(&rows).OrderExpr(listOrder).Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r studioTx) GetClient(ctx context.Context, id string) (domain.Client, error) {
	var m domain.Client
	err := r.tx.NewSelect().Model(&m).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Client{}, notFound(err)
	}
	return m, nil
}

func (r studioTx) CreateClient(ctx context.Context, c domain.Client) (domain.Client, error) {
	m := c
	if _, err := r.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Client{}, mapInsertError(err)
	}
	return m, nil
}

func (r studioTx) UpdateClient(ctx context.Context, c domain.Client) error {
	res, err := r.tx.NewUpdate().
		Model(&c).
		ExcludeColumn("created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r studioTx) DeleteClient(ctx context.Context, id string) error {
	res, err := r.tx.NewDelete().
		Model((*domain.Client)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r studioTx) DeleteClientsByInstructor(ctx context.Context, instructorID string) (int, error) {
	res, err := r.tx.NewDelete().
		Model((*domain.Client)(nil)).
		Where("instructor_id = ?", instructorID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return affected(res)
}

func (r studioTx) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	rows := make([]domain.Booking, 0)
	if err := r.tx.NewSelect().Model(&rows).OrderExpr(listOrder).Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r studioTx) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	var m domain.Booking
	err := r.tx.NewSelect().Model(&m).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Booking{}, notFound(err)
	}
	return m, nil
}

func (r studioTx) CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := b
	if _, err := r.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Booking{}, mapInsertError(err)
	}
	return m, nil
}

func (r studioTx) UpdateBooking(ctx context.Context, b domain.Booking) error {
	res, err := r.tx.NewUpdate().
		Model(&b).
		ExcludeColumn("created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r studioTx) DeleteBooking(ctx context.Context, id string) error {
	res, err := r.tx.NewDelete().
		Model((*domain.Booking)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r studioTx) DeleteBookings(ctx context.Context, filter store.BookingFilter) (int, error) {
	if filter.IsZero() {
		return 0, nil
	}
	q := r.tx.NewDelete().Model((*domain.Booking)(nil))
	if filter.InstructorID != "" {
		q = q.Where("instructor_id = ?", filter.InstructorID)
	}
	if filter.ClientID != "" {
		q = q.Where("client_id = ?", filter.ClientID)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return affected(res)
}

func (r studioTx) ReassignBookings(ctx context.Context, clientID, instructorID string) (int, error) {
	res, err := r.tx.NewUpdate().
		Model((*domain.Booking)(nil)).
		Set("instructor_id = ?", instructorID).
		Where("client_id = ?", clientID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return affected(res)
}
