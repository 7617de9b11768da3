package booking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/class-booking/internal/model"
)

func TestScenarioE_AvailableDates(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	e.create(t, 1, "2025-05-20", "10:00", "11:00", 5) // past
	e.create(t, 1, "2025-06-01", "10:00", "11:00", 5)
	e.create(t, 1, "2025-06-01", "14:00", "15:00", 3)
	full := e.create(t, 1, "2025-06-02", "10:00", "11:00", 2)
	_, err := e.ledger.Decrease(ctx, full.ID, 2)
	require.NoError(t, err)
	off := e.create(t, 1, "2025-06-03", "10:00", "11:00", 4)
	_, err = e.svc.SetStatus(ctx, off.ID, model.StatusInactive)
	require.NoError(t, err)
	e.create(t, 1, "2025-06-05", "08:00", "09:00", 1)
	e.create(t, 2, "2025-06-04", "10:00", "11:00", 9) // other class

	dates, err := e.availability.AvailableDates(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []model.DateAvailability{
		{Date: "2025-06-01", SessionCount: 2, TotalRemaining: 8},
		{Date: "2025-06-05", SessionCount: 1, TotalRemaining: 1},
	}, dates)

	none, err := e.availability.AvailableDates(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = e.availability.AvailableDates(ctx, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSessionsByDate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	late := e.create(t, 1, "2025-06-01", "14:00", "15:00", 1)
	e.create(t, 1, "2025-06-01", "09:00", "10:00", 4)
	_, err := e.ledger.Decrease(ctx, late.ID, 1)
	require.NoError(t, err)

	slots, err := e.availability.SessionsByDate(ctx, 1, "2025-06-01")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, model.TimeOfDay("09:00:00"), slots[0].StartTime)
	assert.True(t, slots[0].Bookable)
	assert.Equal(t, late.ID, slots[1].ID)
	assert.False(t, slots[1].Bookable, "full sessions are listed but not bookable")

	_, err = e.availability.SessionsByDate(ctx, 1, "June 1st")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Invalid date.", AsError(err).Message)
}

func TestSessionsByDate_PastDate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.create(t, 1, "2025-05-01", "10:00", "11:00", 5)
	e.create(t, 1, "2025-05-30", "18:00", "19:00", 5) // today

	slots, err := e.availability.SessionsByDate(ctx, 1, "2025-05-01")
	require.NoError(t, err)
	assert.Empty(t, slots, "past dates list nothing")

	slots, err = e.availability.SessionsByDate(ctx, 1, "2025-05-30")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].Bookable)
}
