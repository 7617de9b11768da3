package cart

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/class-booking/internal/model"
)

const maxUpdateRetries = 5

// RedisStore keeps carts as JSON strings with a sliding TTL.  Updates use
// WATCH/MULTI so two requests editing the same cart cannot lose a line.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore constructs a RedisStore; keys are "<prefix>:<cart id>".
func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "cart"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string { return s.prefix + ":" + id }

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Cart, error) {
	return s.read(ctx, s.rdb, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) read(ctx context.Context, g getter, id string) (*model.Cart, error) {
	bs, err := g.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &model.Cart{ID: id, Lines: []model.CartLine{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var c model.Cart
	if err := json.Unmarshal(bs, &c); err != nil {
		return nil, err
	}
	c.ID = id
	if c.Lines == nil {
		c.Lines = []model.CartLine{}
	}
	return &c, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(c *model.Cart) error) (*model.Cart, error) {
	key := s.key(id)
	var out *model.Cart
	txf := func(tx *redis.Tx) error {
		c, err := s.read(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		c.UpdatedAt = time.Now().UTC()
		payload, err := json.Marshal(c)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		if err == nil {
			out = c
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, ErrContention
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.key(id)).Err()
}
