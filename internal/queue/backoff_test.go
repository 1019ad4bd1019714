package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nftindexer/indexer/internal/config"
)

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		InitialBackoff: 10 * time.Second,
		BackoffFactor:  2,
		MaxAttempts:    5,
		JobTimeout:     60 * time.Second,
	}
}

func TestFailureTracker_NotEnoughSamples(t *testing.T) {
	ft := NewFailureTracker(time.Minute, 0.5, 10)
	for i := 0; i < 5; i++ {
		ft.Record(true)
	}
	assert.False(t, ft.IsSpiking(), "must not trip before minSample attempts are seen")
}

func TestFailureTracker_TripsAboveThreshold(t *testing.T) {
	ft := NewFailureTracker(time.Minute, 0.5, 10)
	for i := 0; i < 8; i++ {
		ft.Record(true)
	}
	for i := 0; i < 2; i++ {
		ft.Record(false)
	}
	assert.True(t, ft.IsSpiking())
}

func TestFailureTracker_StaysQuietUnderThreshold(t *testing.T) {
	ft := NewFailureTracker(time.Minute, 0.5, 10)
	for i := 0; i < 2; i++ {
		ft.Record(true)
	}
	for i := 0; i < 8; i++ {
		ft.Record(false)
	}
	assert.False(t, ft.IsSpiking())
}

func TestRetryDelay_DoublesPerAttempt(t *testing.T) {
	cfg := testQueueConfig()
	fn := RetryDelay(cfg)

	d0 := fn(0, nil, nil)
	d1 := fn(1, nil, nil)
	d2 := fn(2, nil, nil)

	assert.Equal(t, cfg.InitialBackoff, d0)
	assert.Equal(t, cfg.InitialBackoff*2, d1)
	assert.Equal(t, cfg.InitialBackoff*4, d2)
}
