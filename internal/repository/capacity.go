package repository

import (
	"context"
	"database/sql"
)

// Capacity statements.  Each one is a single conditional UPDATE so the
// database decides atomically whether enough seats are left; callers only
// read RowsAffected.

// DecreaseCapacity consumes qty seats from a session.  It returns false
// when the session is missing or has fewer than qty seats left.
func (r *SessionRepo) DecreaseCapacity(ctx context.Context, id uint64, qty int) (bool, error) {
	return r.decrease(ctx, r.db, "id", id, qty)
}

// DecreaseCapacityTx is DecreaseCapacity inside the caller's transaction.
func (r *SessionRepo) DecreaseCapacityTx(ctx context.Context, tx *sql.Tx, id uint64, qty int) (bool, error) {
	return r.decrease(ctx, tx, "id", id, qty)
}

// DecreaseCapacityByProductTx consumes seats from the session linked to a
// catalog product.
func (r *SessionRepo) DecreaseCapacityByProductTx(ctx context.Context, tx *sql.Tx, productID uint64, qty int) (bool, error) {
	return r.decrease(ctx, tx, "product_id", productID, qty)
}

// column is one of two fixed identifiers, never user input.
func (r *SessionRepo) decrease(ctx context.Context, q querier, column string, key uint64, qty int) (bool, error) {
	query := `UPDATE class_sessions
		SET remaining_capacity = remaining_capacity - ?, updated_at = ?
		WHERE ` + column + ` = ? AND remaining_capacity >= ?`
	res, err := q.ExecContext(ctx, query, qty, r.now(), key, qty)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IncreaseCapacity gives qty seats back to a session.  It returns false
// when that would push remaining above capacity or the session is missing.
func (r *SessionRepo) IncreaseCapacity(ctx context.Context, id uint64, qty int) (bool, error) {
	const q = `UPDATE class_sessions
		SET remaining_capacity = remaining_capacity + ?, updated_at = ?
		WHERE id = ? AND remaining_capacity + ? <= capacity`
	res, err := r.db.ExecContext(ctx, q, qty, r.now(), id, qty)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DecreaseCapacityByProduct is DecreaseCapacityByProductTx outside a transaction.
func (r *SessionRepo) DecreaseCapacityByProduct(ctx context.Context, productID uint64, qty int) (bool, error) {
	return r.decrease(ctx, r.db, "product_id", productID, qty)
}
