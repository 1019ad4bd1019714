package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_AllowsBurstUpToCapacity(t *testing.T) {
	tb := NewTokenBucket(3, 1)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		assert.NoError(t, tb.Wait(ctx))
	}
}

func TestTokenBucket_BlocksUntilRefill(t *testing.T) {
	tb := NewTokenBucket(1, 100) // refills fast enough to finish quickly
	ctx := context.Background()

	require := func(err error) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require(tb.Wait(ctx))

	start := time.Now()
	require(tb.Wait(ctx))
	assert.Less(t, time.Since(start), time.Second)
}

func TestTokenBucket_RespectsContextCancellation(t *testing.T) {
	tb := NewTokenBucket(1, 0.001) // effectively never refills within test timeout
	ctx, cancel := context.WithCancel(context.Background())

	assert := assert.New(t)
	assert.NoError(tb.Wait(context.Background()))

	cancel()
	err := tb.Wait(ctx)
	assert.Error(err)
}
