package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/class-booking/internal/database"
	"github.com/iliyamo/class-booking/internal/model"
)

// Completion records the ledger outcome of one order line.  The
// (OrderID, LineNo) key makes order completion safe to replay.
type Completion struct {
	OrderID     string
	LineNo      int
	SessionID   uint64
	Quantity    int
	Status      model.LineStatus
	Reason      string
	CompletedAt time.Time
}

// CompletionRepo persists order_line_completions.
type CompletionRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewCompletionRepo constructs a CompletionRepo.
func NewCompletionRepo(db *sql.DB, d database.Dialect) *CompletionRepo {
	return &CompletionRepo{db: db, dialect: d}
}

// InsertTx claims the (order, line) key.  ErrDuplicate means an earlier
// delivery of the same order already processed this line.
func (r *CompletionRepo) InsertTx(ctx context.Context, tx *sql.Tx, c *Completion) error {
	const q = `INSERT INTO order_line_completions
		(order_id, line_no, session_id, quantity, status, reason, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if c.CompletedAt.IsZero() {
		c.CompletedAt = time.Now().UTC()
	}
	var sessionID any
	if c.SessionID != 0 {
		sessionID = c.SessionID
	}
	_, err := tx.ExecContext(ctx, q, c.OrderID, c.LineNo, sessionID, c.Quantity, string(c.Status), c.Reason, c.CompletedAt)
	if err != nil && r.dialect.IsDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// UpdateOutcomeTx sets the final status of a claimed line.
func (r *CompletionRepo) UpdateOutcomeTx(ctx context.Context, tx *sql.Tx, c *Completion) error {
	var sessionID any
	if c.SessionID != 0 {
		sessionID = c.SessionID
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE order_line_completions SET session_id = ?, status = ?, reason = ? WHERE order_id = ? AND line_no = ?`,
		sessionID, string(c.Status), c.Reason, c.OrderID, c.LineNo)
	return err
}

// ListByOrder returns the recorded lines of an order in line order.
func (r *CompletionRepo) ListByOrder(ctx context.Context, orderID string) ([]Completion, error) {
	const q = `SELECT order_id, line_no, session_id, quantity, status, reason, completed_at
		FROM order_line_completions WHERE order_id = ? ORDER BY line_no`
	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Completion
	for rows.Next() {
		var (
			c       Completion
			session sql.NullInt64
			status  string
			at      timestamp
		)
		if err := rows.Scan(&c.OrderID, &c.LineNo, &session, &c.Quantity, &status, &c.Reason, &at); err != nil {
			return nil, err
		}
		c.SessionID = uint64(session.Int64)
		c.Status = model.LineStatus(status)
		c.CompletedAt = at.Time
		out = append(out, c)
	}
	return out, rows.Err()
}
