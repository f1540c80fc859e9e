package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBucketRefills(t *testing.T) {
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	lim := NewMemory(2, time.Minute)
	lim.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := lim.Allow(ctx, "send:u1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := lim.Allow(ctx, "send:u1")
	assert.False(t, ok)

	ok, _ = lim.Allow(ctx, "send:u2")
	assert.True(t, ok, "buckets are per key")

	clock = clock.Add(30 * time.Second)
	ok, _ = lim.Allow(ctx, "send:u1")
	assert.True(t, ok)
	ok, _ = lim.Allow(ctx, "send:u1")
	assert.False(t, ok)
}

func TestMemoryZeroLimitDisables(t *testing.T) {
	lim := NewMemory(0, time.Minute)
	for i := 0; i < 100; i++ {
		ok, err := lim.Allow(context.Background(), "k")
		require.NoError(t, err)
		require.True(t, ok)
	}
}
