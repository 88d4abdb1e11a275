package ratelimit

import (
	"sync"
	"time"

	"shopdesk/internal/livesync"
)

// Actions with their own budgets.
const (
	ActionSendMessage        = "send_message"
	ActionTyping             = "typing"
	ActionCreateConversation = "create_conversation"
	ActionUpload             = "upload"
	ActionSignIn             = "sign_in"
)

// Limit is a bucket shape: Burst tokens, one token back every Every.
type Limit struct {
	Burst int
	Every time.Duration
}

// DefaultLimits are per user (per IP for sign in).
var DefaultLimits = map[string]Limit{
	ActionSendMessage:        {Burst: 20, Every: 3 * time.Second},
	ActionTyping:             {Burst: 60, Every: time.Second},
	ActionCreateConversation: {Burst: 10, Every: 6 * time.Minute},
	ActionUpload:             {Burst: 10, Every: 30 * time.Second},
	ActionSignIn:             {Burst: 5, Every: 12 * time.Second},
}

var fallbackLimit = Limit{Burst: 30, Every: 2 * time.Second}

type TokenBucket struct {
	tokens     int
	limit      Limit
	lastRefill time.Time
	mutex      sync.Mutex
}

func NewTokenBucket(limit Limit, now time.Time) *TokenBucket {
	return &TokenBucket{tokens: limit.Burst, limit: limit, lastRefill: now}
}

// Allow consumes a token if one is available, otherwise it reports how long until the next refill.
func (tb *TokenBucket) Allow(now time.Time) (bool, time.Duration) {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	refills := int(now.Sub(tb.lastRefill) / tb.limit.Every)
	if refills > 0 {
		tb.tokens += refills
		if tb.tokens > tb.limit.Burst {
			tb.tokens = tb.limit.Burst
		}
		tb.lastRefill = tb.lastRefill.Add(time.Duration(refills) * tb.limit.Every)
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true, 0
	}
	return false, tb.lastRefill.Add(tb.limit.Every).Sub(now)
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	return tb.lastRefill
}

// RateLimiter keeps one bucket per subject and action.
type RateLimiter struct {
	clock   livesync.Clock
	limits  map[string]Limit
	buckets map[string]*TokenBucket
	mutex   sync.RWMutex
}

func NewRateLimiter(clock livesync.Clock, limits map[string]Limit) *RateLimiter {
	if clock == nil {
		clock = livesync.SystemClock()
	}
	if limits == nil {
		limits = DefaultLimits
	}
	return &RateLimiter{clock: clock, limits: limits, buckets: make(map[string]*TokenBucket)}
}

func (rl *RateLimiter) Allow(subject, action string) (bool, time.Duration) {
	key := subject + ":" + action
	now := rl.clock.Now()

	rl.mutex.RLock()
	bucket, exists := rl.buckets[key]
	rl.mutex.RUnlock()

	if !exists {
		rl.mutex.Lock()
		if bucket, exists = rl.buckets[key]; !exists {
			limit, ok := rl.limits[action]
			if !ok {
				limit = fallbackLimit
			}
			bucket = NewTokenBucket(limit, now)
			rl.buckets[key] = bucket
		}
		rl.mutex.Unlock()
	}

	return bucket.Allow(now)
}

// Cleanup drops buckets that have been full for an hour.
func (rl *RateLimiter) Cleanup() {
	now := rl.clock.Now()
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	for key, bucket := range rl.buckets {
		if now.Sub(bucket.idleSince()) > time.Hour {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine runs Cleanup every 30 minutes until stop is closed.
func (rl *RateLimiter) StartCleanupRoutine(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}
