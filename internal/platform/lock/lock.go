// Package lock provides short-lived mutual exclusion for ledger lineages.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tinoosan/fundledger/internal/errs"
)

// Locker acquires a named lock. Release must be called once the protected
// work has finished; it never fails from the caller's point of view.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Noop never blocks. It is used when no Redis is configured; correctness then
// rests on the storage layer's optimistic close.
type Noop struct{}

// Acquire implements Locker.
func (Noop) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

// LineageKey builds the lock key for one logical entity.
func LineageKey(kind string, orgID, id uuid.UUID) string {
	return fmt.Sprintf("fundledger:org:%s:%s:%s:lock", orgID, kind, id)
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a single-instance Redis lock (SET NX PX with a random token).
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis builds a Redis locker. Locks expire after ttl even if never released.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{client: client, ttl: ttl}
}

// Acquire implements Locker. A lock already held by another writer is
// reported as errs.ErrConcurrentModification so callers can retry.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("platform/lock: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("platform/lock: %s held: %w", key, errs.ErrConcurrentModification)
	}
	return func() {
		// Release with a fresh context: the caller's may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.client, []string{key}, token).Err()
	}, nil
}

func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
