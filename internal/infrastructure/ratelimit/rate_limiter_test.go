package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"shopdesk/internal/livesync/livesynctest"
)

func TestBucketRefills(t *testing.T) {
	clock := livesynctest.NewClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(clock, map[string]Limit{"send": {Burst: 2, Every: time.Second}})

	ok, _ := rl.Allow("ana", "send")
	assert.True(t, ok)
	ok, _ = rl.Allow("ana", "send")
	assert.True(t, ok)
	ok, wait := rl.Allow("ana", "send")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	ok, _ = rl.Allow("ben", "send")
	assert.True(t, ok, "subjects have separate buckets")

	clock.Advance(1500 * time.Millisecond)
	ok, _ = rl.Allow("ana", "send")
	assert.True(t, ok)
	ok, wait = rl.Allow("ana", "send")
	assert.False(t, ok)
	assert.Equal(t, 500*time.Millisecond, wait)
}

func TestCleanupDropsIdleBuckets(t *testing.T) {
	clock := livesynctest.NewClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	rl := NewRateLimiter(clock, nil)
	rl.Allow("ana", ActionTyping)

	clock.Advance(2 * time.Hour)
	rl.Cleanup()
	assert.Empty(t, rl.buckets)
}
