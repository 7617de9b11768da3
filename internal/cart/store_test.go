package cart

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/class-booking/internal/model"
)

func addLine(sessionID uint64, persons int) func(c *model.Cart) error {
	return func(c *model.Cart) error {
		c.Lines = append(c.Lines, model.CartLine{LineID: time.Now().String(), SessionID: sessionID, Persons: persons})
		return nil
	}
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	empty, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", empty.ID)
	assert.Empty(t, empty.Lines)

	c, err := s.Update(ctx, "c1", addLine(7, 2))
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)

	_, err = s.Update(ctx, "c1", func(c *model.Cart) error { return errors.New("nope") })
	require.Error(t, err)

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got.Lines, 1, "failed update must not be saved")
	assert.Equal(t, 2, got.HeldFor(7, ""))

	require.NoError(t, s.Delete(ctx, "c1"))
	got, err = s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, got.Lines)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Minute))
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, err := s.Update(context.Background(), "c", addLine(1, 1))
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	c, err := s.Get(context.Background(), "c")
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
}

func TestMemoryStore_ConcurrentUpdatesKeepAllLines(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(context.Background(), "c", addLine(1, 1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	c, err := s.Get(context.Background(), "c")
	require.NoError(t, err)
	assert.Len(t, c.Lines, 20)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())

	exerciseStore(t, NewRedisStore(rdb, "test-cart-"+time.Now().Format("150405.000"), time.Minute))
}
