package booking

import (
	"context"
	"time"

	"github.com/iliyamo/class-booking/internal/model"
	"github.com/iliyamo/class-booking/internal/repository"
)

// Slot is the customer-facing projection of a session.
type Slot struct {
	ID                uint64          `json:"id"`
	Date              model.Date      `json:"date"`
	StartTime         model.TimeOfDay `json:"startTime"`
	EndTime           model.TimeOfDay `json:"endTime"`
	Capacity          int             `json:"capacity"`
	RemainingCapacity int             `json:"remainingCapacity"`
	Bookable          bool            `json:"bookable"`
}

// AvailabilityService answers the read-only customer queries.
type AvailabilityService struct {
	sessions *repository.SessionRepo
	clock    Clock
	loc      *time.Location
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(sessions *repository.SessionRepo, clock Clock, loc *time.Location) *AvailabilityService {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityService{sessions: sessions, clock: clock, loc: loc}
}

// AvailableDates lists the future dates of a class that still have at
// least one bookable session.
func (a *AvailabilityService) AvailableDates(ctx context.Context, classID uint64) ([]model.DateAvailability, error) {
	if classID == 0 {
		return nil, ErrValidation.Msg("classId is required").With("fields", []string{"classId"})
	}
	return a.sessions.FindAvailableDates(ctx, classID, a.clock.today(a.loc))
}

// SessionsByDate lists the active sessions of a class on one date; only
// those with seats left are marked bookable.
func (a *AvailabilityService) SessionsByDate(ctx context.Context, classID uint64, date string) ([]Slot, error) {
	if classID == 0 {
		return nil, ErrValidation.Msg("classId is required").With("fields", []string{"classId"})
	}
	d, err := model.ParseDate(date)
	if err != nil {
		return nil, ErrValidation.Msg("Invalid date.").With("fields", []string{"date"})
	}
	today := a.clock.today(a.loc)
	sessions, err := a.sessions.FindByDate(ctx, classID, d, today)
	if err != nil {
		return nil, err
	}
	out := make([]Slot, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		out = append(out, Slot{
			ID:                s.ID,
			Date:              s.Date,
			StartTime:         s.StartTime,
			EndTime:           s.EndTime,
			Capacity:          s.Capacity,
			RemainingCapacity: s.RemainingCapacity,
			Bookable:          s.Bookable(today),
		})
	}
	return out, nil
}
