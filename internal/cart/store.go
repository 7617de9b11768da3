// Package cart keeps customer carts between requests.  Carts are advisory
// holds: they expire on their own and never touch session capacity.
package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/class-booking/internal/model"
)

// ErrContention is returned when a cart kept changing underneath an update
// and the retries ran out.
var ErrContention = errors.New("cart is being modified concurrently")

// Store persists carts by id.
type Store interface {
	// Get returns the cart, or an empty cart with the given id.
	Get(ctx context.Context, id string) (*model.Cart, error)
	// Update applies fn to the current cart and saves it atomically.  When
	// fn returns an error nothing is saved.
	Update(ctx context.Context, id string, fn func(c *model.Cart) error) (*model.Cart, error)
	// Delete drops the cart.
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	cart    model.Cart
	expires time.Time
}

// MemoryStore is a process-local Store used when Redis is not configured.
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	carts map[string]memoryEntry
	now   func() time.Time
}

// NewMemoryStore returns an empty MemoryStore whose carts live for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, carts: map[string]memoryEntry{}, now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*model.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.load(id)
	return &c, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, fn func(c *model.Cart) error) (*model.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.load(id)
	if err := fn(&c); err != nil {
		return nil, err
	}
	c.UpdatedAt = m.now().UTC()
	m.carts[id] = memoryEntry{cart: c, expires: m.now().Add(m.ttl)}
	out := cloneCart(c)
	return &out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, id)
	return nil
}

// load returns a copy so callers cannot mutate stored state; caller holds mu.
func (m *MemoryStore) load(id string) model.Cart {
	e, ok := m.carts[id]
	if !ok || (m.ttl > 0 && m.now().After(e.expires)) {
		delete(m.carts, id)
		return model.Cart{ID: id, Lines: []model.CartLine{}}
	}
	return cloneCart(e.cart)
}

func cloneCart(c model.Cart) model.Cart {
	lines := make([]model.CartLine, len(c.Lines))
	copy(lines, c.Lines)
	c.Lines = lines
	return c
}
