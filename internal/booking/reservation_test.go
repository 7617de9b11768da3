package booking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/class-booking/internal/model"
	"github.com/iliyamo/class-booking/internal/queue"
)

func TestCart_AddCountsWhatIsAlreadyHeld(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	s := e.create(t, 1, "2025-06-01", "10:00", "11:00", 5)

	c, err := e.workflow.AddLine(ctx, "cart-1", AddLineCmd{SessionID: s.ID, Persons: 3})
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)

	_, err = e.workflow.AddLine(ctx, "cart-1", AddLineCmd{SessionID: s.ID, Persons: 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, "Only 2 spots are available for this class.", AsError(err).Message)
	assert.Equal(t, 2, AsError(err).Details["available"])

	c, err = e.workflow.AddLine(ctx, "cart-1", AddLineCmd{SessionID: s.ID, Persons: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, c.HeldFor(s.ID, ""))

	// a different cart is not affected by cart-1's lines
	_, err = e.workflow.AddLine(ctx, "cart-2", AddLineCmd{SessionID: s.ID, Persons: 5})
	assert.NoError(t, err)
}

func TestCart_Validation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	s := e.create(t, 1, "2025-06-01", "10:00", "11:00", 5)

	_, err := e.workflow.AddLine(ctx, "c", AddLineCmd{SessionID: s.ID, Persons: 0})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Invalid number of persons.", AsError(err).Message)

	_, err = e.workflow.AddLine(ctx, "c", AddLineCmd{SessionID: 999, Persons: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.svc.SetStatus(ctx, s.ID, model.StatusInactive)
	require.NoError(t, err)
	_, err = e.workflow.AddLine(ctx, "c", AddLineCmd{SessionID: s.ID, Persons: 1})
	assert.ErrorIs(t, err, ErrSessionUnavailable)
	assert.Equal(t, "This session is no longer available.", AsError(err).Message)

	got, err := e.workflow.Cart(ctx, "c")
	require.NoError(t, err)
	assert.Empty(t, got.Lines, "rejected lines are never stored")
}

func TestCart_UpdateAndRemoveLine(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	s := e.create(t, 1, "2025-06-01", "10:00", "11:00", 4)

	c, err := e.workflow.AddLine(ctx, "c", AddLineCmd{SessionID: s.ID, Persons: 2})
	require.NoError(t, err)
	lineID := c.Lines[0].LineID

	c, err = e.workflow.UpdateLine(ctx, "c", lineID, 4)
	require.NoError(t, err, "the line's own persons are not counted twice")
	assert.Equal(t, 4, c.Lines[0].Persons)

	_, err = e.workflow.UpdateLine(ctx, "c", lineID, 5)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	_, err = e.workflow.UpdateLine(ctx, "c", "nope", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	c, err = e.workflow.RemoveLine(ctx, "c", lineID)
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
	_, err = e.workflow.RemoveLine(ctx, "c", lineID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReserve_ReplacesCart(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.create(t, 1, "2025-06-01", "10:00", "11:00", 3)
	b := e.create(t, 1, "2025-06-01", "12:00", "13:00", 3)

	_, err := e.workflow.AddLine(ctx, "c", AddLineCmd{SessionID: a.ID, Persons: 3})
	require.NoError(t, err)

	c, err := e.workflow.Reserve(ctx, "c", AddLineCmd{SessionID: a.ID, Persons: 3})
	require.NoError(t, err, "the previous contents do not count against the new line")
	require.Len(t, c.Lines, 1)

	c, err = e.workflow.Reserve(ctx, "c", AddLineCmd{SessionID: b.ID, Persons: 1})
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, b.ID, c.Lines[0].SessionID)

	_, err = e.workflow.Reserve(ctx, "c", AddLineCmd{SessionID: b.ID, Persons: -2})
	assert.Equal(t, "Invalid number of persons.", AsError(err).Message)
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	s := e.create(t, 1, "2025-06-01", "10:00", "11:00", 3)

	_, err := e.workflow.Checkout(ctx, "c")
	assert.ErrorIs(t, err, ErrValidation, "empty cart")

	c, err := e.workflow.AddLine(ctx, "c", AddLineCmd{SessionID: s.ID, Persons: 2})
	require.NoError(t, err)

	lines, err := e.workflow.Checkout(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, []model.OrderLine{{SessionID: s.ID, Quantity: 2}}, lines)

	got, _ := e.svc.Get(ctx, s.ID)
	assert.Equal(t, 3, got.RemainingCapacity, "checkout does not consume capacity")

	// somebody else's order takes two seats before this cart checks out
	_, err = e.ledger.Decrease(ctx, s.ID, 2)
	require.NoError(t, err)
	_, err = e.workflow.Checkout(ctx, "c")
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, c.Lines[0].LineID, AsError(err).Details["lineId"])

	require.NoError(t, e.workflow.Abandon(ctx, "c"))
	empty, err := e.workflow.Cart(ctx, "c")
	require.NoError(t, err)
	assert.Empty(t, empty.Lines)
}

func TestCompleteOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.create(t, 1, "2025-06-01", "10:00", "11:00", 4)
	b := e.create(t, 1, "2025-06-01", "12:00", "13:00", 1)

	cmd := CompleteOrderCmd{OrderID: "order-17", Lines: []model.OrderLine{
		{SessionID: a.ID, Quantity: 3},
		{SessionID: b.ID, Quantity: 2},
		{SessionID: 9999, Quantity: 1},
	}}
	out, err := e.workflow.CompleteOrder(ctx, cmd)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, model.LineApplied, out[0].Status)
	assert.Equal(t, model.LineRejected, out[1].Status)
	assert.Equal(t, "insufficient remaining capacity", out[1].Reason)
	assert.Equal(t, model.LineRejected, out[2].Status)
	assert.Equal(t, "session not found", out[2].Reason)

	got, _ := e.svc.Get(ctx, a.ID)
	assert.Equal(t, 1, got.RemainingCapacity)
	got, _ = e.svc.Get(ctx, b.ID)
	assert.Equal(t, 1, got.RemainingCapacity, "rejected lines leave the session alone")
	require.Equal(t, 1, e.events.count())
	assert.Equal(t, queue.BookingCompletedEvent{
		OrderID: "order-17", LineNo: 1, SessionID: a.ID, ClassID: 1, Date: "2025-06-01",
		StartTime: "10:00:00", EndTime: "11:00:00", Persons: 3, RemainingCapacity: 1,
		CompletedAt: e.events.events[0].CompletedAt,
	}, e.events.events[0])

	// replaying the order changes nothing
	replay, err := e.workflow.CompleteOrder(ctx, cmd)
	require.NoError(t, err)
	for _, o := range replay {
		assert.Equal(t, model.LineDuplicate, o.Status)
	}
	got, _ = e.svc.Get(ctx, a.ID)
	assert.Equal(t, 1, got.RemainingCapacity)
	assert.Equal(t, 1, e.events.count())

	recorded, err := e.completions.ListByOrder(ctx, "order-17")
	require.NoError(t, err)
	require.Len(t, recorded, 3)
	assert.Equal(t, model.LineRejected, recorded[1].Status)
}

func TestCompleteOrder_ProductFallback(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	s := e.create(t, 1, "2025-06-01", "10:00", "11:00", 4)
	linked, err := e.svc.LinkProduct(ctx, s.ID)
	require.NoError(t, err)

	out, err := e.workflow.HandleOrderCompleted(ctx, queue.OrderCompletedEvent{OrderID: "o-p", Lines: []model.OrderLine{
		{ProductID: linked.ProductID, Quantity: 2},
		{Quantity: 1},
	}})
	require.NoError(t, err)
	assert.Equal(t, model.LineApplied, out[0].Status)
	assert.Equal(t, s.ID, out[0].SessionID)
	assert.Equal(t, model.LineRejected, out[1].Status)
	assert.Equal(t, "line carries no session or product", out[1].Reason)

	got, _ := e.svc.Get(ctx, s.ID)
	assert.Equal(t, 2, got.RemainingCapacity)
}

func TestCompleteOrder_Validation(t *testing.T) {
	e := newEnv(t)
	_, err := e.workflow.CompleteOrder(context.Background(), CompleteOrderCmd{OrderID: "", Lines: nil})
	assert.ErrorIs(t, err, ErrValidation)
	assert.True(t, AsError(err).Permanent())
}

func TestPastSessionsCannotBeReserved(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	past := e.create(t, 1, "2025-05-01", "10:00", "11:00", 5)
	today := e.create(t, 1, "2025-05-30", "18:00", "19:00", 5)

	_, err := e.workflow.AddLine(ctx, "c", AddLineCmd{SessionID: past.ID, Persons: 2})
	assert.ErrorIs(t, err, ErrSessionUnavailable)

	_, err = e.workflow.Reserve(ctx, "c", AddLineCmd{SessionID: past.ID, Persons: 2})
	assert.ErrorIs(t, err, ErrSessionUnavailable)
	assert.Equal(t, "This session is no longer available.", AsError(err).Message)

	_, err = e.workflow.AddLine(ctx, "c", AddLineCmd{SessionID: today.ID, Persons: 2})
	require.NoError(t, err, "sessions later today are still open")

	// a line held before its session went by fails at checkout
	_, err = e.carts.Update(ctx, "c", func(c *model.Cart) error {
		c.Lines = append(c.Lines, model.CartLine{LineID: "stale", SessionID: past.ID, Persons: 1})
		return nil
	})
	require.NoError(t, err)
	_, err = e.workflow.Checkout(ctx, "c")
	require.ErrorIs(t, err, ErrSessionUnavailable)
	assert.Equal(t, "stale", AsError(err).Details["lineId"])
}
