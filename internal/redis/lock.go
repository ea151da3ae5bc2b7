package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock held elsewhere")

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis. It satisfies gocron.Locker
// so scheduled jobs run on one instance at a time.
type LockStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLockStore creates a new LockStore whose locks expire after ttl.
func NewLockStore(client *redis.Client, ttl time.Duration) *LockStore {
	return &LockStore{client: client, ttl: ttl}
}

// Lock acquires the lock for key or returns ErrLockHeld.
func (s *LockStore) Lock(ctx context.Context, key string) (gocron.Lock, error) {
	lockKey := fmt.Sprintf("lock:job:%s", key)
	token := uuid.New().String()

	ok, err := s.client.SetNX(ctx, lockKey, token, s.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}

	return &lock{client: s.client, key: lockKey, token: token}, nil
}

type lock struct {
	client *redis.Client
	key    string
	token  string
}

// Unlock releases the lock if it has not expired and been taken by someone else.
func (l *lock) Unlock(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
