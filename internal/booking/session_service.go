package booking

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/model"
	"github.com/iliyamo/class-booking/internal/repository"
)

// CatalogLinker creates (or finds) the catalog product that represents a
// session in the platform's cart subsystem.
type CatalogLinker interface {
	FindOrCreateCatalogEntry(ctx context.Context, s *model.Session) (uint64, error)
}

// Clock returns the current time; tests pin it.
type Clock func() time.Time

// today returns the calendar date in loc.
func (c Clock) today(loc *time.Location) model.Date {
	return model.DateOf(c().In(loc))
}

// SessionService owns every mutation of the session schedule.  Writes that
// can affect the no-overlap rule take the (class, date) schedule lock,
// check for overlaps and write within one transaction.
type SessionService struct {
	sessions *repository.SessionRepo
	overlap  *OverlapChecker
	catalog  CatalogLinker
	log      *zap.Logger
	clock    Clock
	loc      *time.Location
}

// NewSessionService wires the session service.  catalog may be nil when no
// catalog subsystem is configured.
func NewSessionService(sessions *repository.SessionRepo, catalog CatalogLinker, log *zap.Logger, clock Clock, loc *time.Location) *SessionService {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SessionService{
		sessions: sessions,
		overlap:  NewOverlapChecker(sessions),
		catalog:  catalog,
		log:      log,
		clock:    clock,
		loc:      loc,
	}
}

// Create validates and stores a new session with remaining = capacity.
func (s *SessionService) Create(ctx context.Context, cmd CreateSessionCmd) (*model.Session, error) {
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	date, _ := model.ParseDate(cmd.Date)
	start, _ := model.ParseTimeOfDay(cmd.StartTime)
	end, _ := model.ParseTimeOfDay(cmd.EndTime)
	if start >= end {
		return nil, ErrValidation.Msg("startTime must be before endTime").With("fields", []string{"startTime", "endTime"})
	}
	status := cmd.Status
	if status == "" {
		status = model.StatusActive
	}

	sess := &model.Session{
		ClassID:           cmd.ClassID,
		Date:              date,
		StartTime:         start,
		EndTime:           end,
		Capacity:          cmd.Capacity,
		RemainingCapacity: cmd.Capacity,
		Status:            status,
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.sessions.LockScheduleTx(ctx, tx, sess.ClassID, sess.Date); err != nil {
			return err
		}
		if sess.Status == model.StatusActive {
			conflicts, err := s.overlap.ConflictsTx(ctx, tx, sess.ClassID, sess.Date, Interval{start, end}, 0)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return overlapError(conflicts)
			}
		}
		if err := s.sessions.CreateTx(ctx, tx, sess); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrOverlap.Msg("an identical session already exists for this class")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("session created",
		zap.Uint64("session_id", sess.ID),
		zap.Uint64("class_id", sess.ClassID),
		zap.String("date", sess.Date.String()),
		zap.String("start", sess.StartTime.String()),
		zap.String("end", sess.EndTime.String()),
		zap.Int("capacity", sess.Capacity))
	return sess, nil
}

// Get returns one session.
func (s *SessionService) Get(ctx context.Context, id uint64) (*model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, id)
	}
	return sess, nil
}

// Update applies a partial edit.  A capacity change moves remaining by the
// same delta, so the booked count never changes; a capacity below the
// booked count is refused.
func (s *SessionService) Update(ctx context.Context, id uint64, cmd UpdateSessionCmd) (*model.Session, error) {
	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	if cmd.Capacity != nil && *cmd.Capacity < 1 {
		return nil, ErrValidation.Msg("capacity must be at least 1").With("fields", []string{"capacity"})
	}

	var out *model.Session
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		cur, err := s.sessions.GetByIDTx(ctx, tx, id)
		if err != nil {
			return notFound(err, id)
		}
		next, err := applyPatch(*cur, cmd)
		if err != nil {
			return err
		}

		// Lock both the old and the new day.  The first read above may be
		// stale by now and fixed the snapshot, so the row and the overlap
		// query below are locking reads of the latest committed data.
		if err := s.lockDates(ctx, tx, cur.ClassID, cur.Date, next.Date); err != nil {
			return err
		}
		locked := cur.Date
		if cur, err = s.sessions.GetByIDForUpdateTx(ctx, tx, id); err != nil {
			return notFound(err, id)
		}
		if next, err = applyPatch(*cur, cmd); err != nil {
			return err
		}
		if cur.Date != locked {
			// moved by another operator while we waited
			if err := s.sessions.LockScheduleTx(ctx, tx, cur.ClassID, cur.Date); err != nil {
				return err
			}
		}

		if next.Capacity < cur.Booked() {
			return ErrCapacityConflict.Msg("capacity %d is below the %d seats already booked", next.Capacity, cur.Booked()).
				With("booked", cur.Booked())
		}
		if next.Status == model.StatusActive {
			conflicts, err := s.overlap.ConflictsTx(ctx, tx, next.ClassID, next.Date, Interval{next.StartTime, next.EndTime}, id)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return overlapError(conflicts)
			}
		}

		if err := s.sessions.UpdateTx(ctx, tx, &next); err != nil {
			switch {
			case errors.Is(err, repository.ErrDuplicate):
				return ErrOverlap.Msg("an identical session already exists for this class")
			case errors.Is(err, repository.ErrConflict):
				return ErrCapacityConflict.Msg("capacity is below the seats already booked")
			case errors.Is(err, repository.ErrSessionNotFound):
				return notFound(err, id)
			}
			return err
		}
		out = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("session updated", zap.Uint64("session_id", id), zap.Int("capacity", out.Capacity),
		zap.Int("remaining", out.RemainingCapacity), zap.String("status", string(out.Status)))
	return out, nil
}

// applyPatch merges cmd into cur and checks the merged interval.
func applyPatch(cur model.Session, cmd UpdateSessionCmd) (model.Session, error) {
	next := cur
	if cmd.Date != nil {
		next.Date, _ = model.ParseDate(*cmd.Date)
	}
	if cmd.StartTime != nil {
		next.StartTime, _ = model.ParseTimeOfDay(*cmd.StartTime)
	}
	if cmd.EndTime != nil {
		next.EndTime, _ = model.ParseTimeOfDay(*cmd.EndTime)
	}
	if cmd.Capacity != nil {
		next.Capacity = *cmd.Capacity
		next.RemainingCapacity = cur.RemainingCapacity + (next.Capacity - cur.Capacity)
	}
	if cmd.Status != nil {
		next.Status = *cmd.Status
	}
	if next.StartTime >= next.EndTime {
		return next, ErrValidation.Msg("startTime must be before endTime").With("fields", []string{"startTime", "endTime"})
	}
	return next, nil
}

// Delete removes a session that has no bookings.
func (s *SessionService) Delete(ctx context.Context, id uint64) error {
	err := s.sessions.DeleteUnbooked(ctx, id)
	switch {
	case err == nil:
		s.log.Info("session deleted", zap.Uint64("session_id", id))
		return nil
	case errors.Is(err, repository.ErrConflict):
		return ErrHasBookings.Msg("session %d has bookings and cannot be deleted", id)
	default:
		return notFound(err, id)
	}
}

// SetStatus activates or deactivates a session.  Setting the current status
// again is a no-op.  Activation re-checks overlaps because inactive sessions
// are allowed to collide.
func (s *SessionService) SetStatus(ctx context.Context, id uint64, status model.Status) (*model.Session, error) {
	if !status.Valid() {
		return nil, ErrValidation.Msg("status must be one of: active inactive").With("fields", []string{"status"})
	}
	var out *model.Session
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		cur, err := s.sessions.GetByIDTx(ctx, tx, id)
		if err != nil {
			return notFound(err, id)
		}
		if cur.Status == status {
			out = cur
			return nil
		}
		if status == model.StatusActive {
			if err := s.sessions.LockScheduleTx(ctx, tx, cur.ClassID, cur.Date); err != nil {
				return err
			}
			// re-read past the snapshot fixed by the first read
			locked := cur.Date
			if cur, err = s.sessions.GetByIDForUpdateTx(ctx, tx, id); err != nil {
				return notFound(err, id)
			}
			if cur.Date != locked {
				if err := s.sessions.LockScheduleTx(ctx, tx, cur.ClassID, cur.Date); err != nil {
					return err
				}
			}
			conflicts, err := s.overlap.ConflictsTx(ctx, tx, cur.ClassID, cur.Date, Interval{cur.StartTime, cur.EndTime}, id)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return overlapError(conflicts)
			}
		}
		if err := s.sessions.SetStatusTx(ctx, tx, id, status); err != nil {
			return notFound(err, id)
		}
		if out, err = s.sessions.GetByIDTx(ctx, tx, id); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindUpcomingByClass lists active sessions from today onwards.
func (s *SessionService) FindUpcomingByClass(ctx context.Context, classID uint64) ([]model.Session, error) {
	if classID == 0 {
		return nil, ErrValidation.Msg("classId is required").With("fields", []string{"classId"})
	}
	return s.sessions.FindUpcomingByClass(ctx, classID, s.clock.today(s.loc))
}

// FindByExternalProductID resolves the session linked to a catalog product.
func (s *SessionService) FindByExternalProductID(ctx context.Context, productID uint64) (*model.Session, error) {
	sess, err := s.sessions.FindByProductID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrNotFound.Msg("no session for product %d", productID)
		}
		return nil, err
	}
	return sess, nil
}

// LinkProduct makes sure the session is represented in the catalog and
// stores the product id.  An already linked session is returned unchanged.
func (s *SessionService) LinkProduct(ctx context.Context, id uint64) (*model.Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.ProductID != nil {
		return sess, nil
	}
	if s.catalog == nil {
		return nil, ErrUnavailable.Msg("catalog subsystem is not configured")
	}
	productID, err := s.catalog.FindOrCreateCatalogEntry(ctx, sess)
	if err != nil {
		return nil, ErrUnavailable.Msg("catalog subsystem failed").Wrap(err)
	}
	if err := s.sessions.SetProductID(ctx, id, productID); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrConflict.Msg("product %d is already linked to another session", productID)
		}
		return nil, notFound(err, id)
	}
	sess.ProductID = &productID
	s.log.Info("session linked to catalog", zap.Uint64("session_id", id), zap.Uint64("product_id", productID))
	return sess, nil
}

// lockDates takes the schedule locks in a fixed order so two edits moving
// sessions between the same days cannot deadlock.
func (s *SessionService) lockDates(ctx context.Context, tx *sql.Tx, classID uint64, dates ...model.Date) error {
	uniq := map[model.Date]bool{}
	keys := make([]string, 0, len(dates))
	for _, d := range dates {
		if !uniq[d] {
			uniq[d] = true
			keys = append(keys, string(d))
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.sessions.LockScheduleTx(ctx, tx, classID, model.Date(k)); err != nil {
			return err
		}
	}
	return nil
}

func (s *SessionService) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return withTx(ctx, s.sessions.DB(), fn)
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// notFound maps repository misses to ErrNotFound and passes other errors on.
func notFound(err error, id uint64) error {
	if errors.Is(err, repository.ErrSessionNotFound) {
		return ErrNotFound.Msg("session %d not found", id)
	}
	return err
}
