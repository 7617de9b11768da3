package booking

import (
	"context"
	"database/sql"

	"github.com/iliyamo/class-booking/internal/model"
	"github.com/iliyamo/class-booking/internal/repository"
)

// Interval is a half-open time range [Start, End) within one day.
type Interval struct {
	Start model.TimeOfDay
	End   model.TimeOfDay
}

// Overlaps reports whether two intervals share any instant.  Intervals that
// merely touch (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

// OverlapChecker finds active sessions of the same class that would
// collide with a proposed schedule.
type OverlapChecker struct {
	sessions *repository.SessionRepo
}

// NewOverlapChecker constructs an OverlapChecker.
func NewOverlapChecker(sessions *repository.SessionRepo) *OverlapChecker {
	return &OverlapChecker{sessions: sessions}
}

// HasOverlap reports whether an active session of classID on date overlaps
// [start, end), ignoring excludeID.  It runs on its own read transaction.
func (o *OverlapChecker) HasOverlap(ctx context.Context, classID uint64, date model.Date,
	start, end model.TimeOfDay, excludeID uint64) (bool, error) {
	tx, err := o.sessions.DB().BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	found, err := o.ConflictsTx(ctx, tx, classID, date, Interval{start, end}, excludeID)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// ConflictsTx lists the colliding sessions inside the caller's transaction.
// Callers that write afterwards must hold the schedule lock for
// (classID, date) first.
func (o *OverlapChecker) ConflictsTx(ctx context.Context, tx *sql.Tx, classID uint64, date model.Date,
	iv Interval, excludeID uint64) ([]model.Session, error) {
	return o.sessions.FindOverlappingTx(ctx, tx, classID, date, iv.Start, iv.End, excludeID)
}

// overlapError describes the first colliding session.
func overlapError(conflicts []model.Session) *Error {
	c := conflicts[0]
	return ErrOverlap.Msg("session overlaps session %d (%s %s-%s)", c.ID, c.Date, c.StartTime, c.EndTime).
		With("conflicts", conflicts)
}
