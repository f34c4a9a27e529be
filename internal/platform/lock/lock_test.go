package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/fundledger/internal/errs"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedis(client, 5*time.Second)
}

func TestRedisLockExcludes(t *testing.T) {
	mr, l := newRedis(t)
	ctx := context.Background()
	key := LineageKey("transaction", uuid.New(), uuid.New())

	release, err := l.Acquire(ctx, key)
	require.NoError(t, err)
	require.True(t, mr.Exists(key))

	_, err = l.Acquire(ctx, key)
	require.ErrorIs(t, err, errs.ErrConcurrentModification)
	require.True(t, errs.IsRetryable(err))

	release()
	require.False(t, mr.Exists(key))

	release2, err := l.Acquire(ctx, key)
	require.NoError(t, err)
	release2()
}

func TestRedisLockExpires(t *testing.T) {
	mr, l := newRedis(t)
	ctx := context.Background()
	key := LineageKey("bill", uuid.New(), uuid.New())

	stale, err := l.Acquire(ctx, key)
	require.NoError(t, err)
	mr.FastForward(6 * time.Second)

	fresh, err := l.Acquire(ctx, key)
	require.NoError(t, err)
	// releasing the expired holder must not drop the new holder's lock
	stale()
	require.True(t, mr.Exists(key))
	fresh()
	require.False(t, mr.Exists(key))
}

func TestNoop(t *testing.T) {
	release, err := Noop{}.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()
}

func TestLineageKey(t *testing.T) {
	org := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	id := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	require.Equal(t, "fundledger:org:00000000-0000-0000-0000-000000000001:transaction:00000000-0000-0000-0000-000000000002:lock", LineageKey("transaction", org, id))
}
