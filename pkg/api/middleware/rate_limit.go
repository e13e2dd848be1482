package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// DefaultIdleEviction is how long a client bucket survives without a
// request before the eviction loop drops it
const DefaultIdleEviction = 10 * time.Minute

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps a token bucket per client, evicting buckets whose
// client has gone idle so the map stays bounded by recent traffic
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket

	requestsPerSecond rate.Limit
	burst             int
	idleAfter         time.Duration

	ticker *time.Ticker
	done   chan struct{}
}

// NewRateLimiter creates a rate limiter with the given per-client budget
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients:           make(map[string]*clientBucket),
		requestsPerSecond: rate.Limit(requestsPerSecond),
		burst:             burst,
		idleAfter:         DefaultIdleEviction,
		ticker:            time.NewTicker(time.Minute),
		done:              make(chan struct{}),
	}

	go rl.evictIdle()

	return rl
}

// evictIdle drops buckets not used since the idle cutoff. A returning
// client simply gets a fresh bucket, so eviction is never visible beyond
// a reset burst allowance.
func (rl *RateLimiter) evictIdle() {
	for {
		select {
		case <-rl.ticker.C:
			rl.sweep(time.Now().Add(-rl.idleAfter))
		case <-rl.done:
			return
		}
	}
}

func (rl *RateLimiter) sweep(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for id, bucket := range rl.clients {
		if bucket.lastSeen.Before(cutoff) {
			delete(rl.clients, id)
		}
	}
}

// Stop stops the eviction goroutine
func (rl *RateLimiter) Stop() {
	rl.ticker.Stop()
	close(rl.done)
}

func (rl *RateLimiter) take(clientID string) bool {
	rl.mu.Lock()
	bucket, ok := rl.clients[clientID]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(rl.requestsPerSecond, rl.burst)}
		rl.clients[clientID] = bucket
	}
	bucket.lastSeen = time.Now()
	rl.mu.Unlock()

	return bucket.limiter.Allow()
}

// TrackedClients returns the number of client buckets currently held
func (rl *RateLimiter) TrackedClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// RateLimit returns a middleware that rate limits requests per client IP
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.take(c.ClientIP()) {
			AbortWithError(c, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				"Too many requests. Please try again later.")
			return
		}

		c.Next()
	}
}
