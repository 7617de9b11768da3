package booking

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/repository"
)

// Ledger moves seats in and out of remaining capacity for bookings and
// refunds.  Every change is one conditional statement, so concurrent
// callers can never push remaining below zero or above capacity.  Operator
// capacity edits go through SessionService.Update, which shifts remaining
// by the same delta.
type Ledger struct {
	sessions *repository.SessionRepo
	log      *zap.Logger
}

// NewLedger constructs a Ledger.
func NewLedger(sessions *repository.SessionRepo, log *zap.Logger) *Ledger {
	return &Ledger{sessions: sessions, log: log}
}

// Decrease consumes qty seats.  It returns false when fewer than qty seats
// are left (or the session does not exist) and leaves the session as is.
func (l *Ledger) Decrease(ctx context.Context, sessionID uint64, qty int) (bool, error) {
	if qty < 1 {
		return false, ErrValidation.Msg("quantity must be at least 1")
	}
	return l.sessions.DecreaseCapacity(ctx, sessionID, qty)
}

// DecreaseTx is Decrease inside the caller's transaction, so the seats are
// only consumed if the transaction commits.
func (l *Ledger) DecreaseTx(ctx context.Context, tx *sql.Tx, sessionID uint64, qty int) (bool, error) {
	if qty < 1 {
		return false, ErrValidation.Msg("quantity must be at least 1")
	}
	return l.sessions.DecreaseCapacityTx(ctx, tx, sessionID, qty)
}

// DecreaseByProduct is Decrease keyed by the linked catalog product.
func (l *Ledger) DecreaseByProduct(ctx context.Context, productID uint64, qty int) (bool, error) {
	if qty < 1 {
		return false, ErrValidation.Msg("quantity must be at least 1")
	}
	return l.sessions.DecreaseCapacityByProduct(ctx, productID, qty)
}

// Refund gives qty seats back, e.g. after an order is cancelled.  Refunding
// more than was booked is refused.
func (l *Ledger) Refund(ctx context.Context, sessionID uint64, qty int) error {
	if qty < 1 {
		return ErrValidation.Msg("quantity must be at least 1")
	}
	ok, err := l.sessions.IncreaseCapacity(ctx, sessionID, qty)
	if err != nil {
		return err
	}
	if ok {
		l.log.Info("seats refunded", zap.Uint64("session_id", sessionID), zap.Int("quantity", qty))
		return nil
	}
	sess, err := l.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrNotFound.Msg("session %d not found", sessionID)
		}
		return err
	}
	return ErrCapacityConflict.Msg("cannot refund %d seats, only %d booked", qty, sess.Booked()).
		With("booked", sess.Booked())
}
