package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/cart"
	"github.com/iliyamo/class-booking/internal/model"
	"github.com/iliyamo/class-booking/internal/queue"
	"github.com/iliyamo/class-booking/internal/repository"
)

// EventPublisher delivers booking events to downstream consumers.
type EventPublisher interface {
	PublishBookingCompleted(ctx context.Context, ev queue.BookingCompletedEvent) error
}

// Workflow drives a reservation from cart selection to order completion.
// Cart lines are advisory and re-validated against remaining capacity at
// every step; seats are only consumed when the order completes.
type Workflow struct {
	sessions    *repository.SessionRepo
	completions *repository.CompletionRepo
	ledger      *Ledger
	carts       cart.Store
	events      EventPublisher
	log         *zap.Logger
	clock       Clock
	loc         *time.Location
}

// NewWorkflow wires the reservation workflow.  events may be nil; a nil
// clock or loc means time.Now in UTC.
func NewWorkflow(sessions *repository.SessionRepo, completions *repository.CompletionRepo, ledger *Ledger,
	carts cart.Store, events EventPublisher, log *zap.Logger, clock Clock, loc *time.Location) *Workflow {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Workflow{
		sessions:    sessions,
		completions: completions,
		ledger:      ledger,
		carts:       carts,
		events:      events,
		log:         log,
		clock:       clock,
		loc:         loc,
	}
}

// Cart returns the current cart.
func (w *Workflow) Cart(ctx context.Context, cartID string) (*model.Cart, error) {
	return w.carts.Get(ctx, cartID)
}

// AddLine holds persons seats of a session in the cart.
func (w *Workflow) AddLine(ctx context.Context, cartID string, cmd AddLineCmd) (*model.Cart, error) {
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	return w.carts.Update(ctx, cartID, func(c *model.Cart) error {
		sess, err := w.checkLine(ctx, c, cmd.SessionID, cmd.Persons, "")
		if err != nil {
			return err
		}
		c.Lines = append(c.Lines, model.CartLine{
			LineID:    uuid.NewString(),
			SessionID: sess.ID,
			ProductID: sess.ProductID,
			Persons:   cmd.Persons,
		})
		return nil
	})
}

// UpdateLine changes the persons on an existing line.
func (w *Workflow) UpdateLine(ctx context.Context, cartID, lineID string, persons int) (*model.Cart, error) {
	return w.carts.Update(ctx, cartID, func(c *model.Cart) error {
		line, ok := c.Line(lineID)
		if !ok {
			return ErrNotFound.Msg("cart line %s not found", lineID)
		}
		if _, err := w.checkLine(ctx, c, line.SessionID, persons, lineID); err != nil {
			return err
		}
		line.Persons = persons
		return nil
	})
}

// RemoveLine drops a line from the cart.
func (w *Workflow) RemoveLine(ctx context.Context, cartID, lineID string) (*model.Cart, error) {
	return w.carts.Update(ctx, cartID, func(c *model.Cart) error {
		for i, l := range c.Lines {
			if l.LineID == lineID {
				c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
				return nil
			}
		}
		return ErrNotFound.Msg("cart line %s not found", lineID)
	})
}

// Abandon discards the cart.  Nothing else holds state for it.
func (w *Workflow) Abandon(ctx context.Context, cartID string) error {
	return w.carts.Delete(ctx, cartID)
}

// Reserve is the single-session booking form: the cart is replaced by one
// line for the chosen session.
func (w *Workflow) Reserve(ctx context.Context, cartID string, cmd AddLineCmd) (*model.Cart, error) {
	if cmd.Persons < 1 {
		return nil, ErrValidation.Msg("Invalid number of persons.")
	}
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	return w.carts.Update(ctx, cartID, func(c *model.Cart) error {
		sess, err := w.checkLine(ctx, &model.Cart{ID: c.ID}, cmd.SessionID, cmd.Persons, "")
		if err != nil {
			return err
		}
		c.Lines = []model.CartLine{{
			LineID:    uuid.NewString(),
			SessionID: sess.ID,
			ProductID: sess.ProductID,
			Persons:   cmd.Persons,
		}}
		return nil
	})
}

// Checkout re-validates every line against current capacity and returns the
// order-line metadata the order platform must carry into the order.
func (w *Workflow) Checkout(ctx context.Context, cartID string) ([]model.OrderLine, error) {
	c, err := w.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(c.Lines) == 0 {
		return nil, ErrValidation.Msg("cart is empty")
	}
	lines := make([]model.OrderLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		sess, err := w.checkLine(ctx, c, l.SessionID, l.Persons, l.LineID)
		if err != nil {
			if de := AsError(err); de.Code != ErrInternal.Code {
				return nil, de.With("lineId", l.LineID)
			}
			return nil, err
		}
		lines = append(lines, model.OrderLine{SessionID: sess.ID, ProductID: sess.ProductID, Quantity: l.Persons})
	}
	return lines, nil
}

// checkLine validates persons seats of sessionID on top of what cart c
// already holds for that session (ignoring excludeLineID).
func (w *Workflow) checkLine(ctx context.Context, c *model.Cart, sessionID uint64, persons int, excludeLineID string) (*model.Session, error) {
	if persons < 1 {
		return nil, ErrValidation.Msg("Invalid number of persons.")
	}
	sess, err := w.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, notFound(err, sessionID)
	}
	if sess.Status != model.StatusActive || sess.Date < w.clock.today(w.loc) {
		return nil, ErrSessionUnavailable.Msg("This session is no longer available.")
	}
	held := c.HeldFor(sessionID, excludeLineID)
	if persons+held > sess.RemainingCapacity {
		available := sess.RemainingCapacity - held
		if available < 0 {
			available = 0
		}
		return nil, ErrCapacityExceeded.Msg("Only %d spots are available for this class.", available).
			With("available", available)
	}
	return sess, nil
}

// CompleteOrder applies the capacity decrement for every line of a paid
// order.  Each line is claimed in order_line_completions inside the same
// transaction as its decrement, so a redelivered order is skipped line by
// line.  A refused decrement is recorded and reported; it is not retried.
func (w *Workflow) CompleteOrder(ctx context.Context, cmd CompleteOrderCmd) ([]model.LineOutcome, error) {
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	outcomes := make([]model.LineOutcome, 0, len(cmd.Lines))
	for i, line := range cmd.Lines {
		out, ev, err := w.completeLine(ctx, cmd.OrderID, i+1, line)
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out)

		switch out.Status {
		case model.LineRejected:
			w.log.Warn("order line rejected by capacity ledger",
				zap.String("order_id", cmd.OrderID), zap.Int("line_no", out.LineNo),
				zap.Uint64("session_id", out.SessionID), zap.Int("quantity", out.Quantity),
				zap.String("reason", out.Reason))
		case model.LineApplied:
			w.publish(ctx, ev)
		}
	}
	return outcomes, nil
}

func (w *Workflow) completeLine(ctx context.Context, orderID string, lineNo int, line model.OrderLine) (model.LineOutcome, *queue.BookingCompletedEvent, error) {
	out := model.LineOutcome{LineNo: lineNo, SessionID: line.SessionID, Quantity: line.Quantity}
	var ev *queue.BookingCompletedEvent

	err := withTx(ctx, w.sessions.DB(), func(tx *sql.Tx) error {
		rec := &repository.Completion{
			OrderID:   orderID,
			LineNo:    lineNo,
			SessionID: line.SessionID,
			Quantity:  line.Quantity,
			Status:    model.LineApplied,
		}
		if err := w.completions.InsertTx(ctx, tx, rec); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				out.Status = model.LineDuplicate
				return nil
			}
			return err
		}

		sess, reason, err := w.resolveTx(ctx, tx, line)
		if err != nil {
			return err
		}
		if sess != nil {
			out.SessionID = sess.ID
			rec.SessionID = sess.ID
			ok, err := w.ledger.DecreaseTx(ctx, tx, sess.ID, line.Quantity)
			if err != nil {
				return err
			}
			if ok {
				out.Status = model.LineApplied
				after, err := w.sessions.GetByIDTx(ctx, tx, sess.ID)
				if err != nil {
					return err
				}
				ev = &queue.BookingCompletedEvent{
					OrderID:           orderID,
					LineNo:            lineNo,
					SessionID:         after.ID,
					ClassID:           after.ClassID,
					Date:              after.Date.String(),
					StartTime:         after.StartTime.String(),
					EndTime:           after.EndTime.String(),
					Persons:           line.Quantity,
					RemainingCapacity: after.RemainingCapacity,
					CompletedAt:       rec.CompletedAt.Format(time.RFC3339),
				}
				return w.completions.UpdateOutcomeTx(ctx, tx, rec)
			}
			reason = "insufficient remaining capacity"
		}

		out.Status = model.LineRejected
		out.Reason = reason
		rec.Status, rec.Reason = model.LineRejected, reason
		return w.completions.UpdateOutcomeTx(ctx, tx, rec)
	})
	if err != nil {
		return out, nil, err
	}
	return out, ev, nil
}

// resolveTx finds the session of an order line: by session id first, then
// by catalog product.  A nil session comes with the reason it is missing.
func (w *Workflow) resolveTx(ctx context.Context, tx *sql.Tx, line model.OrderLine) (*model.Session, string, error) {
	if line.Quantity < 1 {
		return nil, "quantity must be at least 1", nil
	}
	if line.SessionID != 0 {
		sess, err := w.sessions.GetByIDTx(ctx, tx, line.SessionID)
		if err == nil {
			return sess, "", nil
		}
		if !errors.Is(err, repository.ErrSessionNotFound) {
			return nil, "", err
		}
	}
	if line.ProductID != nil {
		sess, err := w.sessions.FindByProductIDTx(ctx, tx, *line.ProductID)
		if err == nil {
			return sess, "", nil
		}
		if !errors.Is(err, repository.ErrSessionNotFound) {
			return nil, "", err
		}
	}
	if line.SessionID == 0 && line.ProductID == nil {
		return nil, "line carries no session or product", nil
	}
	return nil, "session not found", nil
}

func (w *Workflow) publish(ctx context.Context, ev *queue.BookingCompletedEvent) {
	if w.events == nil || ev == nil {
		return
	}
	if err := w.events.PublishBookingCompleted(ctx, *ev); err != nil {
		w.log.Warn("publish booking.completed failed", zap.String("order_id", ev.OrderID),
			zap.Int("line_no", ev.LineNo), zap.Error(err))
	}
}

// HandleOrderCompleted adapts a broker message to CompleteOrder.
func (w *Workflow) HandleOrderCompleted(ctx context.Context, ev queue.OrderCompletedEvent) ([]model.LineOutcome, error) {
	return w.CompleteOrder(ctx, CompleteOrderCmd{OrderID: ev.OrderID, Lines: ev.Lines})
}
