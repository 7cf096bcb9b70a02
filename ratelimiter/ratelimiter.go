// Package ratelimiter paces calls to generation services and throttles
// clients of the HTTP front end. Budgets are given per minute and kept per
// key, so every endpoint or client address drains its own bucket.
package ratelimiter

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	DefaultBurst    = 10
	DefaultInterval = time.Second

	// pruneAbove is the number of keys after which idle buckets are dropped
	// before a new one is added.
	pruneAbove = 1024
)

// ErrRateLimiterStopped is returned by Wait once the limiter has been stopped.
var ErrRateLimiterStopped = errors.New("rate limiter stopped")

// TokenBucket starts with burst tokens and gets one back every interval,
// never holding more than burst.
type TokenBucket struct {
	burst    int
	interval time.Duration
	tokens   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewTokenBucket returns a full bucket. Non-positive arguments fall back to
// DefaultBurst and DefaultInterval.
func NewTokenBucket(burst int, interval time.Duration) *TokenBucket {
	if burst <= 0 {
		burst = DefaultBurst
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	b := &TokenBucket{
		burst:    burst,
		interval: interval,
		tokens:   make(chan struct{}, burst),
		done:     make(chan struct{}),
	}
	for range burst {
		b.tokens <- struct{}{}
	}
	go b.refill(time.NewTicker(interval))
	return b
}

// NewPerMinute returns a bucket allowing a burst of perMinute calls, refilled
// evenly over a minute.
func NewPerMinute(perMinute int) *TokenBucket {
	if perMinute <= 0 {
		return NewTokenBucket(0, 0)
	}
	return NewTokenBucket(perMinute, time.Minute/time.Duration(perMinute))
}

func (b *TokenBucket) refill(ticker *time.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			select {
			case b.tokens <- struct{}{}:
			default:
			}
		}
	}
}

func (b *TokenBucket) stopped() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Allow takes a token when one is ready and reports whether it did.
func (b *TokenBucket) Allow() bool {
	if b.stopped() {
		return false
	}
	select {
	case <-b.tokens:
		return true
	default:
		return false
	}
}

// Wait takes a token, blocking until one is ready, ctx is done or the bucket
// is stopped.
func (b *TokenBucket) Wait(ctx context.Context) error {
	if b.stopped() {
		return ErrRateLimiterStopped
	}
	select {
	case <-b.tokens:
		return nil
	case <-b.done:
		return ErrRateLimiterStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends refilling and fails later calls. Calling it again is a no-op.
func (b *TokenBucket) Stop() {
	b.stopOnce.Do(func() { close(b.done) })
}

func (b *TokenBucket) Available() int          { return len(b.tokens) }
func (b *TokenBucket) Burst() int              { return b.burst }
func (b *TokenBucket) Interval() time.Duration { return b.interval }

// idle reports whether the bucket has refilled completely.
func (b *TokenBucket) idle() bool {
	return len(b.tokens) == b.burst
}

// Keyed holds one TokenBucket per key, each created on first use with the
// same per-minute budget.
type Keyed struct {
	perMinute int

	mu      sync.Mutex
	buckets map[string]*TokenBucket
	closed  bool
}

func NewKeyed(perMinute int) *Keyed {
	return &Keyed{perMinute: perMinute, buckets: make(map[string]*TokenBucket)}
}

func (k *Keyed) bucket(key string) (*TokenBucket, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, false
	}
	if b, ok := k.buckets[key]; ok {
		return b, true
	}
	if len(k.buckets) >= pruneAbove {
		k.pruneLocked()
	}
	b := NewPerMinute(k.perMinute)
	k.buckets[key] = b
	return b, true
}

// Allow takes a token from key's bucket.
func (k *Keyed) Allow(key string) bool {
	b, ok := k.bucket(key)
	return ok && b.Allow()
}

// Wait takes a token from key's bucket, blocking like TokenBucket.Wait.
func (k *Keyed) Wait(ctx context.Context, key string) error {
	b, ok := k.bucket(key)
	if !ok {
		return ErrRateLimiterStopped
	}
	return b.Wait(ctx)
}

// Available reports the tokens ready for key. A key never seen has a full
// budget.
func (k *Keyed) Available(key string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	if b, ok := k.buckets[key]; ok {
		return b.Available()
	}
	if k.closed {
		return 0
	}
	if k.perMinute <= 0 {
		return DefaultBurst
	}
	return k.perMinute
}

// Len reports how many keys hold a bucket.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// Prune stops and drops every bucket that has refilled completely and
// returns how many were dropped.
func (k *Keyed) Prune() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.pruneLocked()
}

func (k *Keyed) pruneLocked() int {
	n := 0
	for key, b := range k.buckets {
		if b.idle() {
			b.Stop()
			delete(k.buckets, key)
			n++
		}
	}
	return n
}

// Stop stops every bucket. Later calls fail as a stopped bucket would.
func (k *Keyed) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closed = true
	for key, b := range k.buckets {
		b.Stop()
		delete(k.buckets, key)
	}
}
