package booking

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/class-booking/internal/cart"
	"github.com/iliyamo/class-booking/internal/database"
	"github.com/iliyamo/class-booking/internal/model"
	"github.com/iliyamo/class-booking/internal/queue"
	"github.com/iliyamo/class-booking/internal/repository"
)

// today for every test: 2025-05-30.
var fixedNow = time.Date(2025, 5, 30, 12, 0, 0, 0, time.UTC)

type env struct {
	sessions     *repository.SessionRepo
	completions  *repository.CompletionRepo
	svc          *SessionService
	ledger       *Ledger
	availability *AvailabilityService
	workflow     *Workflow
	events       *recordingPublisher
	carts        *cart.MemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "booking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = database.Migrate(context.Background(), db, database.SQLite{})
	require.NoError(t, err)

	log := zap.NewNop()
	clock := func() time.Time { return fixedNow }
	sessions := repository.NewSessionRepo(db, database.SQLite{})
	completions := repository.NewCompletionRepo(db, database.SQLite{})
	events := &recordingPublisher{}
	carts := cart.NewMemoryStore(time.Hour)
	ledger := NewLedger(sessions, log)
	return &env{
		sessions:     sessions,
		completions:  completions,
		svc:          NewSessionService(sessions, &fakeCatalog{next: 900}, log, clock, time.UTC),
		ledger:       ledger,
		availability: NewAvailabilityService(sessions, clock, time.UTC),
		workflow:     NewWorkflow(sessions, completions, ledger, carts, events, log, clock, time.UTC),
		events:       events,
		carts:        carts,
	}
}

func (e *env) create(t *testing.T, classID uint64, date, start, end string, capacity int) *model.Session {
	t.Helper()
	s, err := e.svc.Create(context.Background(), CreateSessionCmd{
		ClassID: classID, Date: date, StartTime: start, EndTime: end, Capacity: capacity,
	})
	require.NoError(t, err)
	return s
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingCompletedEvent
}

func (p *recordingPublisher) PublishBookingCompleted(_ context.Context, ev queue.BookingCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fakeCatalog struct {
	next  uint64
	calls int
	err   error
}

func (f *fakeCatalog) FindOrCreateCatalogEntry(_ context.Context, _ *model.Session) (uint64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	f.next++
	return f.next, nil
}

func ptr[T any](v T) *T { return &v }
