package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/beamline/pkg/adapters/redis"
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunDocumentStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Second), redis.WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "run-ttl", domain.RunStart{UID: "run-ttl"}))
	assert.True(t, mr.Exists("test:run-ttl"))

	runs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, runs, "run-ttl")

	mr.FastForward(2 * time.Second)
	_, err = store.Load(ctx, "run-ttl")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "beamline", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:beamline"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:beamline"))
}

func TestRedisLocker_Contention(t *testing.T) {
	_, client := newClient(t)
	first := redis.NewLocker(client, "test:").WithRetryInterval(5 * time.Millisecond)
	second := redis.NewLocker(client, "test:").WithRetryInterval(5 * time.Millisecond)
	ctx := context.Background()

	unlock, err := first.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = second.Lock(short, "shared", 5*time.Second)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)

	require.NoError(t, unlock(ctx))
	unlock2, err := second.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestRedisLocker_StaleUnlockKeepsNewOwner(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	unlock2, err := locker.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)

	// The first owner's lease expired; releasing it must not free the new owner's lock.
	require.NoError(t, unlock(ctx))
	assert.True(t, mr.Exists("test:lock:k"))
	require.NoError(t, unlock2(ctx))
}
