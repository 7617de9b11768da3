package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/class-booking/internal/database"
	"github.com/iliyamo/class-booking/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx so each statement is
// written once and shared by the plain and the Tx variants.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const sessionCols = `id, class_id, product_id, session_date, start_time, end_time,
	capacity, remaining_capacity, status, created_at, updated_at`

// SessionRepo manages persistence for class sessions and owns the capacity
// ledger statements.
type SessionRepo struct {
	db      *sql.DB
	dialect database.Dialect
	now     func() time.Time
}

// NewSessionRepo constructs a SessionRepo with the given DB handle.
func NewSessionRepo(db *sql.DB, d database.Dialect) *SessionRepo {
	return &SessionRepo{db: db, dialect: d, now: func() time.Time { return time.Now().UTC() }}
}

// DB exposes the underlying sql.DB so callers can run several statements in
// one transaction.
func (r *SessionRepo) DB() *sql.DB {
	return r.db
}

// Create inserts a session and fills in ID and timestamps.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	return r.create(ctx, r.db, s)
}

// CreateTx is like Create but runs inside the caller's transaction.
func (r *SessionRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Session) error {
	return r.create(ctx, tx, s)
}

func (r *SessionRepo) create(ctx context.Context, q querier, s *model.Session) error {
	const ins = `INSERT INTO class_sessions
		(class_id, product_id, session_date, start_time, end_time, capacity, remaining_capacity, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := r.now()
	res, err := q.ExecContext(ctx, ins, s.ClassID, nullableID(s.ProductID), s.Date, s.StartTime, s.EndTime,
		s.Capacity, s.RemainingCapacity, string(s.Status), now, now)
	if err != nil {
		if r.dialect.IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.CreatedAt, s.UpdatedAt = now, now
	return nil
}

// GetByID retrieves a session by id, ErrSessionNotFound when absent.
func (r *SessionRepo) GetByID(ctx context.Context, id uint64) (*model.Session, error) {
	return r.getByID(ctx, r.db, id)
}

// GetByIDTx reads the session through the caller's transaction.
func (r *SessionRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Session, error) {
	return r.getByID(ctx, tx, id)
}

// GetByIDForUpdateTx reads the latest committed row and locks it until the
// transaction ends.
func (r *SessionRepo) GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Session, error) {
	return r.getByIDSuffix(ctx, tx, id, r.dialect.LockingRead())
}

func (r *SessionRepo) getByID(ctx context.Context, q querier, id uint64) (*model.Session, error) {
	return r.getByIDSuffix(ctx, q, id, "")
}

func (r *SessionRepo) getByIDSuffix(ctx context.Context, q querier, id uint64, suffix string) (*model.Session, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM class_sessions WHERE id = ?`+suffix, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

// FindByProductID looks a session up by its catalog product.
func (r *SessionRepo) FindByProductID(ctx context.Context, productID uint64) (*model.Session, error) {
	return r.findByProductID(ctx, r.db, productID)
}

func (r *SessionRepo) findByProductID(ctx context.Context, q querier, productID uint64) (*model.Session, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM class_sessions WHERE product_id = ?`, productID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

// UpdateTx writes the schedule fields and status of s and moves capacity by
// the difference between s.Capacity and the stored capacity, so the booked
// count is preserved even if a decrement landed since s was read.  It
// returns ErrConflict when the new capacity is below the booked count.
//
// remaining_capacity is assigned before capacity: MySQL evaluates SET
// left to right and must still see the old capacity.
func (r *SessionRepo) UpdateTx(ctx context.Context, tx *sql.Tx, s *model.Session) error {
	const q = `UPDATE class_sessions
		SET remaining_capacity = remaining_capacity + ? - capacity,
		    capacity = ?,
		    session_date = ?, start_time = ?, end_time = ?, status = ?, updated_at = ?
		WHERE id = ? AND remaining_capacity + ? - capacity >= 0`
	now := r.now()
	res, err := tx.ExecContext(ctx, q, s.Capacity, s.Capacity, s.Date, s.StartTime, s.EndTime,
		string(s.Status), now, s.ID, s.Capacity)
	if err != nil {
		if r.dialect.IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.getByID(ctx, tx, s.ID); err != nil {
			return err
		}
		return ErrConflict
	}
	fresh, err := r.getByID(ctx, tx, s.ID)
	if err != nil {
		return err
	}
	*s = *fresh
	return nil
}

// SetStatusTx changes only the status column.
func (r *SessionRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.Status) error {
	res, err := tx.ExecContext(ctx, `UPDATE class_sessions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), r.now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteUnbooked removes a session only while nobody holds a seat in it.
// The check and the delete are one statement; ErrConflict is returned when
// the session has bookings.
func (r *SessionRepo) DeleteUnbooked(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM class_sessions WHERE id = ? AND remaining_capacity = capacity`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// LockScheduleTx serialises schedule writes for one (class, date) pair.
// The lock row is held until tx ends.
func (r *SessionRepo) LockScheduleTx(ctx context.Context, tx *sql.Tx, classID uint64, date model.Date) error {
	if _, err := tx.ExecContext(ctx, r.dialect.LockScheduleSQL(), classID, date); err != nil {
		return fmt.Errorf("lock schedule %d/%s: %w", classID, date, err)
	}
	return nil
}

// FindOverlappingTx returns the active sessions of classID on date whose
// [start, end) intersects the given interval.  excludeID (0 for none) skips
// the session being edited.  It is a locking read, so it also sees sessions
// committed after the transaction's first read.
func (r *SessionRepo) FindOverlappingTx(ctx context.Context, tx *sql.Tx, classID uint64, date model.Date,
	start, end model.TimeOfDay, excludeID uint64) ([]model.Session, error) {
	return querySessions(ctx, tx, overlapQuery(r.dialect), classID, date, end, start, excludeID)
}

func overlapQuery(d database.Dialect) string {
	return `SELECT ` + sessionCols + ` FROM class_sessions
		WHERE class_id = ? AND session_date = ? AND status = 'active'
		  AND start_time < ? AND ? < end_time AND id <> ?
		ORDER BY start_time` + d.LockingRead()
}

// FindUpcomingByClass lists active sessions from today on, ordered by date
// then start time.
func (r *SessionRepo) FindUpcomingByClass(ctx context.Context, classID uint64, today model.Date) ([]model.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM class_sessions
		WHERE class_id = ? AND status = 'active' AND session_date >= ?
		ORDER BY session_date, start_time`
	return querySessions(ctx, r.db, q, classID, today)
}

// FindByDate lists active sessions of a class on one date ordered by start.
// A date before today yields nothing.
func (r *SessionRepo) FindByDate(ctx context.Context, classID uint64, date, today model.Date) ([]model.Session, error) {
	const q = `SELECT ` + sessionCols + ` FROM class_sessions
		WHERE class_id = ? AND session_date = ? AND status = 'active' AND session_date >= ?
		ORDER BY start_time`
	return querySessions(ctx, r.db, q, classID, date, today)
}

// FindAvailableDates groups the bookable sessions (active, seats left,
// not in the past) of a class by date.
func (r *SessionRepo) FindAvailableDates(ctx context.Context, classID uint64, today model.Date) ([]model.DateAvailability, error) {
	const q = `SELECT session_date, COUNT(*), SUM(remaining_capacity)
		FROM class_sessions
		WHERE class_id = ? AND status = 'active' AND remaining_capacity > 0 AND session_date >= ?
		GROUP BY session_date
		ORDER BY session_date`
	rows, err := r.db.QueryContext(ctx, q, classID, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.DateAvailability{}
	for rows.Next() {
		var a model.DateAvailability
		var total sql.NullInt64
		if err := rows.Scan(&a.Date, &a.SessionCount, &total); err != nil {
			return nil, err
		}
		a.TotalRemaining = int(total.Int64)
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetProductID links a session to a catalog product.  ErrDuplicate means
// another session already owns the product.
func (r *SessionRepo) SetProductID(ctx context.Context, id, productID uint64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE class_sessions SET product_id = ?, updated_at = ? WHERE id = ?`,
		productID, r.now(), id)
	if err != nil {
		if r.dialect.IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func querySessions(ctx context.Context, q querier, query string, args ...any) ([]model.Session, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		s         model.Session
		productID sql.NullInt64
		status    string
		created   timestamp
		updated   timestamp
	)
	if err := row.Scan(&s.ID, &s.ClassID, &productID, &s.Date, &s.StartTime, &s.EndTime,
		&s.Capacity, &s.RemainingCapacity, &status, &created, &updated); err != nil {
		return nil, err
	}
	if productID.Valid {
		v := uint64(productID.Int64)
		s.ProductID = &v
	}
	s.Status = model.Status(status)
	s.CreatedAt, s.UpdatedAt = created.Time, updated.Time
	return &s, nil
}

func nullableID(id *uint64) any {
	if id == nil {
		return nil
	}
	return *id
}

// FindByProductIDTx reads the product's session through the caller's transaction.
func (r *SessionRepo) FindByProductIDTx(ctx context.Context, tx *sql.Tx, productID uint64) (*model.Session, error) {
	return r.findByProductID(ctx, tx, productID)
}
