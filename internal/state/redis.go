package state

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisStore keeps state as a plain string key.
type RedisStore struct {
	client *redis.Client
	key    string
}

// OpenRedis connects to addr. An empty addr returns nil.
func OpenRedis(addr, pass string) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: pass})
}

// NewRedisStore stores state under prefix+Key.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, key: prefix + Key}
}

func (s *RedisStore) Load(ctx context.Context) (Snapshot, bool, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, eris.Wrap(err, "state: redis get")
	}
	snap, err := decode(data)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	return eris.Wrap(s.client.Set(ctx, s.key, data, 0).Err(), "state: redis set")
}

func (s *RedisStore) Close() error { return s.client.Close() }
