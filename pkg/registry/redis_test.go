package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The TTL is far longer than any test so the background renewal ticker
// never fires; expiry is driven with miniredis FastForward instead.
const testLeaseTTL = time.Minute

func setupRedisRegistry(t *testing.T) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRegistry(client, testLeaseTTL), mr
}

func TestRedisRegistry_BindAndRelease(t *testing.T) {
	r, mr := setupRedisRegistry(t)
	ctx := context.Background()

	lease, err := r.Bind(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", lease.SessionID())
	assert.True(t, mr.Exists(leaseKey("s1")))

	lease.Release()
	assert.False(t, mr.Exists(leaseKey("s1")))

	// Rebind after release succeeds.
	lease2, err := r.Bind(ctx, "s1")
	require.NoError(t, err)
	lease2.Release()
}

func TestRedisRegistry_RejectsSecondBind(t *testing.T) {
	r, _ := setupRedisRegistry(t)
	ctx := context.Background()

	lease, err := r.Bind(ctx, "s1")
	require.NoError(t, err)

	_, err = r.Bind(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionBusy)

	lease.Release()
}

func TestRedisRegistry_IndependentSessions(t *testing.T) {
	r, mr := setupRedisRegistry(t)
	ctx := context.Background()

	l1, err := r.Bind(ctx, "s1")
	require.NoError(t, err)
	l2, err := r.Bind(ctx, "s2")
	require.NoError(t, err)

	l1.Release()
	assert.False(t, mr.Exists(leaseKey("s1")))
	assert.True(t, mr.Exists(leaseKey("s2")))
	l2.Release()
}

func TestRedisRegistry_LeaseHasTTL(t *testing.T) {
	r, mr := setupRedisRegistry(t)

	lease, err := r.Bind(context.Background(), "s1")
	require.NoError(t, err)
	defer lease.Release()

	// A worker that dies without releasing must not hold the session
	// forever.
	assert.Equal(t, testLeaseTTL, mr.TTL(leaseKey("s1")))
}

func TestRedisRegistry_ExpiredLeaseBecomesBindable(t *testing.T) {
	r, mr := setupRedisRegistry(t)
	ctx := context.Background()

	_, err := r.Bind(ctx, "s1")
	require.NoError(t, err)

	mr.FastForward(testLeaseTTL + time.Second)

	lease2, err := r.Bind(ctx, "s1")
	require.NoError(t, err)
	lease2.Release()
}

func TestRedisRegistry_StaleReleaseDoesNotFreeNewHolder(t *testing.T) {
	r, mr := setupRedisRegistry(t)
	ctx := context.Background()

	stale, err := r.Bind(ctx, "s1")
	require.NoError(t, err)

	// The holder's lease expires and another replica acquires the
	// session.
	mr.FastForward(testLeaseTTL + time.Second)
	current, err := r.Bind(ctx, "s1")
	require.NoError(t, err)

	// The stale holder's release is token-checked and must not delete
	// the new binding.
	stale.Release()
	_, err = r.Bind(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionBusy)

	current.Release()
	assert.False(t, mr.Exists(leaseKey("s1")))
}

func TestRedisRegistry_ReleaseIdempotent(t *testing.T) {
	r, _ := setupRedisRegistry(t)
	ctx := context.Background()

	lease, err := r.Bind(ctx, "s1")
	require.NoError(t, err)
	lease.Release()

	lease2, err := r.Bind(ctx, "s1")
	require.NoError(t, err)

	// A duplicate release of the old lease must not free the new one.
	lease.Release()
	_, err = r.Bind(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionBusy)
	lease2.Release()
}
