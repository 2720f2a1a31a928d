package exchange

import (
	"sync"
	"time"
)

// tokenBucket is a simple token-bucket rate limiter shared by every
// caller of the client (§5: "a single token bucket (10 req/s) across all
// callers"). No third-party rate-limiting library appears anywhere in
// the example pack, so this mirrors the original bot's hand-rolled
// token bucket rather than reaching for an unrelated dependency.
type tokenBucket struct {
	mu     sync.Mutex
	rate   float64
	tokens float64
	last   time.Time
}

func newTokenBucket(rate float64) *tokenBucket {
	return &tokenBucket{rate: rate, tokens: rate, last: time.Now()}
}

// acquire blocks the caller's goroutine until a token is available.
func (b *tokenBucket) acquire() {
	b.mu.Lock()
	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.tokens = min(b.rate, b.tokens+elapsed*b.rate)
	b.last = now

	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
		b.tokens = 0
		b.mu.Unlock()
		RateLimitWaitSeconds.Observe(wait.Seconds())
		time.Sleep(wait)
		return
	}

	RateLimitWaitSeconds.Observe(0)
	b.tokens--
	b.mu.Unlock()
}
