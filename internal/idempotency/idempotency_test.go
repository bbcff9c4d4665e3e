package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/safar/order-management-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, lease, ttl time.Duration) *RedisStore {
	t.Helper()

	s, err := NewRedisStore(context.Background(), testutil.SetupRedis(t), lease, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStoreKeyLifecycle(t *testing.T) {
	s := newTestStore(t, time.Minute, time.Hour)
	ctx := context.Background()

	orderID, err := s.Begin(ctx, "abc", "fp-1")
	require.NoError(t, err)
	assert.Zero(t, orderID)

	_, err = s.Begin(ctx, "abc", "fp-1")
	assert.ErrorIs(t, err, ErrInFlight)

	require.NoError(t, s.Complete(ctx, "abc", "fp-1", 42))

	orderID, err = s.Begin(ctx, "abc", "fp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), orderID)

	orderID, err = s.Begin(ctx, "other", "fp-1")
	require.NoError(t, err)
	assert.Zero(t, orderID)
}

func TestRedisStoreRejectsKeyReuseWithDifferentBody(t *testing.T) {
	s := newTestStore(t, time.Minute, time.Hour)
	ctx := context.Background()

	_, err := s.Begin(ctx, "abc", "fp-1")
	require.NoError(t, err)

	_, err = s.Begin(ctx, "abc", "fp-2")
	assert.ErrorIs(t, err, ErrKeyReused)

	require.NoError(t, s.Complete(ctx, "abc", "fp-1", 7))

	_, err = s.Begin(ctx, "abc", "fp-2")
	assert.ErrorIs(t, err, ErrKeyReused)
}

func TestRedisStoreReleaseAllowsRetry(t *testing.T) {
	s := newTestStore(t, time.Minute, time.Hour)
	ctx := context.Background()

	_, err := s.Begin(ctx, "retry-me", "fp")
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "retry-me"))

	orderID, err := s.Begin(ctx, "retry-me", "fp")
	require.NoError(t, err)
	assert.Zero(t, orderID)
}

func TestRedisStoreAbandonedClaimExpiresAfterLease(t *testing.T) {
	s := newTestStore(t, time.Second, time.Hour)
	ctx := context.Background()

	_, err := s.Begin(ctx, "abandoned", "fp")
	require.NoError(t, err)

	ttl, err := s.rdb.TTL(ctx, "idem:order:create:abandoned").Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Second)

	assert.Eventually(t, func() bool {
		orderID, err := s.Begin(ctx, "abandoned", "fp")
		return err == nil && orderID == 0
	}, 5*time.Second, 200*time.Millisecond)
}

func TestRedisStoreCompleteKeepsKeyForFullTTL(t *testing.T) {
	s := newTestStore(t, time.Second, time.Hour)
	ctx := context.Background()

	_, err := s.Begin(ctx, "done", "fp")
	require.NoError(t, err)
	require.NoError(t, s.Complete(ctx, "done", "fp", 9))

	ttl, err := s.rdb.TTL(ctx, "idem:order:create:done").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Minute)

	time.Sleep(1500 * time.Millisecond)

	orderID, err := s.Begin(ctx, "done", "fp")
	require.NoError(t, err)
	assert.Equal(t, int64(9), orderID)
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "://nope", time.Second, time.Minute)
	assert.Error(t, err)
}
