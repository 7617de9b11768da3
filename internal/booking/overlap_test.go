package booking

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/class-booking/internal/model"
)

func tod(minutes int) model.TimeOfDay {
	return model.TimeOfDay(fmt.Sprintf("%02d:%02d:00", minutes/60, minutes%60))
}

func TestOverlaps(t *testing.T) {
	iv := func(a, b string) Interval { return Interval{model.TimeOfDay(a), model.TimeOfDay(b)} }
	base := iv("10:00:00", "11:00:00")

	assert.True(t, Overlaps(base, iv("10:30:00", "11:30:00")))
	assert.True(t, Overlaps(base, iv("09:00:00", "12:00:00")))
	assert.True(t, Overlaps(base, iv("10:15:00", "10:45:00")))
	assert.True(t, Overlaps(base, base))
	assert.False(t, Overlaps(base, iv("11:00:00", "12:00:00")), "touching end")
	assert.False(t, Overlaps(base, iv("09:00:00", "10:00:00")), "touching start")
	assert.False(t, Overlaps(base, iv("12:00:00", "13:00:00")))
}

// Overlaps must agree with a minute-by-minute comparison and be symmetric.
func TestOverlaps_Property(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	randIv := func() (Interval, int, int) {
		s := rng.Intn(24*60 - 1)
		e := s + 1 + rng.Intn(24*60-s-1)
		return Interval{tod(s), tod(e)}, s, e
	}
	for i := 0; i < 2000; i++ {
		a, as, ae := randIv()
		b, bs, be := randIv()
		shared := false
		for m := as; m < ae; m++ {
			if m >= bs && m < be {
				shared = true
				break
			}
		}
		require.Equal(t, shared, Overlaps(a, b), "%v %v", a, b)
		require.Equal(t, Overlaps(a, b), Overlaps(b, a))
	}
}

func TestOverlapChecker_HasOverlap(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	s := e.create(t, 1, "2025-06-01", "10:00", "11:00", 5)
	oc := NewOverlapChecker(e.sessions)

	got, err := oc.HasOverlap(ctx, 1, "2025-06-01", "10:30:00", "11:30:00", 0)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = oc.HasOverlap(ctx, 1, "2025-06-01", "11:00:00", "12:00:00", 0)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = oc.HasOverlap(ctx, 1, "2025-06-01", "10:30:00", "11:30:00", s.ID)
	require.NoError(t, err)
	assert.False(t, got, "the edited session does not collide with itself")

	got, err = oc.HasOverlap(ctx, 2, "2025-06-01", "10:30:00", "11:30:00", 0)
	require.NoError(t, err)
	assert.False(t, got, "other classes are independent")

	_, err = e.svc.SetStatus(ctx, s.ID, model.StatusInactive)
	require.NoError(t, err)
	got, err = oc.HasOverlap(ctx, 1, "2025-06-01", "10:30:00", "11:30:00", 0)
	require.NoError(t, err)
	assert.False(t, got, "inactive sessions are ignored")
}
