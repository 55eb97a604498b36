package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newBucket(t *testing.T, capacity int, refillPerSecond float64) (*TokenBucket, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTokenBucket(client, capacity, refillPerSecond, time.Hour), mr
}

func TestAllowConsumesTokens(t *testing.T) {
	bucket, _ := newBucket(t, 3, 0.0001)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, _, err := bucket.Allow(ctx, "rl:acme")
		require.NoError(t, err)
		require.True(t, allowed, "request %d should pass", i)
	}

	allowed, remaining, err := bucket.Allow(ctx, "rl:acme")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Less(t, remaining, 1.0)
}

func TestKeysAreIndependent(t *testing.T) {
	bucket, _ := newBucket(t, 1, 0.0001)
	ctx := context.Background()

	allowed, _, err := bucket.Allow(ctx, "rl:acme")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, _, err = bucket.Allow(ctx, "rl:acme")
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, _, err = bucket.Allow(ctx, "rl:globex")
	require.NoError(t, err)
	require.True(t, allowed, "other vendors keep their own bucket")
}

func TestBucketRefills(t *testing.T) {
	bucket, _ := newBucket(t, 1, 1000) // a token per millisecond
	ctx := context.Background()

	allowed, _, err := bucket.Allow(ctx, "rl:acme")
	require.NoError(t, err)
	require.True(t, allowed)

	require.Eventually(t, func() bool {
		allowed, _, err := bucket.Allow(ctx, "rl:acme")
		return err == nil && allowed
	}, time.Second, 5*time.Millisecond)
}
