package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketReportsRemaining(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bucket := NewTokenBucket(client)
	ctx := context.Background()

	res, err := bucket.Allow(ctx, "coins:test", 0.5, 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 3, res.Limit)
	assert.Equal(t, 2, res.Remaining)
	assert.Zero(t, res.RetryAfter)
}

func TestTokenBucketRejectsBadInput(t *testing.T) {
	var missing *TokenBucket
	_, err := missing.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, errBucketNotConfigured)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	_, err = NewTokenBucket(client).Allow(context.Background(), "", 1, 1)
	assert.Error(t, err)
}

func TestRetryAfterCoversFractionalTokens(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryAfter(0, 0.5))
	assert.Equal(t, 500*time.Millisecond, retryAfter(0.75, 0.5))
	assert.Equal(t, time.Millisecond, retryAfter(1, 5))
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 8*time.Second, bucketTTL(5, 20))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}
