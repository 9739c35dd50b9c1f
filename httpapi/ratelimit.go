package httpapi

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gatiride/gati-platform/engine/errors"
	"github.com/gatiride/gati-platform/engine/logging"
)

// tokenBucket is a per-client token bucket refilled continuously at a
// fixed rate. Calls must hold mu.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

func newTokenBucket(capacity float64, refillRate float64) *tokenBucket {
	return &tokenBucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// allow consumes one token if available and reports the remaining
// balance alongside the verdict.
func (b *tokenBucket) allow() (bool, float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now

	if b.tokens < 1 {
		return false, b.tokens
	}
	b.tokens--
	return true, b.tokens
}

func (b *tokenBucket) full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := time.Since(b.lastRefill).Seconds()
	return b.tokens+elapsed*b.refillRate >= b.capacity
}

// RateLimiterConfig tunes the per-client request budget.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained refill rate per client.
	RequestsPerSecond float64
	// Burst is the bucket capacity, the number of requests a client
	// may issue back to back before the sustained rate applies.
	Burst int
	// CleanupInterval bounds how often idle client buckets are
	// reclaimed. Zero disables the cleanup loop.
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig allows a generous burst suitable for a
// dispatch gateway fronting many riders behind shared NATs.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 50,
		Burst:             100,
		CleanupInterval:   5 * time.Minute,
	}
}

// RateLimiter applies a token-bucket budget per client IP. Health
// endpoints are exempt so orchestrator probes never starve.
type RateLimiter struct {
	cfg     RateLimiterConfig
	logger  *logging.Logger
	buckets sync.Map // client IP -> *tokenBucket
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop
// when configured. Call Close on shutdown.
func NewRateLimiter(cfg RateLimiterConfig, logger *logging.Logger) *RateLimiter {
	rl := &RateLimiter{
		cfg:    cfg,
		logger: logger,
		stop:   make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go rl.cleanupLoop()
	}
	return rl
}

// Close stops the cleanup loop.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.buckets.Range(func(key, value any) bool {
				if value.(*tokenBucket).full() {
					rl.buckets.Delete(key)
				}
				return true
			})
		}
	}
}

func (rl *RateLimiter) bucketFor(clientIP string) *tokenBucket {
	if b, ok := rl.buckets.Load(clientIP); ok {
		return b.(*tokenBucket)
	}
	b, _ := rl.buckets.LoadOrStore(clientIP,
		newTokenBucket(float64(rl.cfg.Burst), rl.cfg.RequestsPerSecond))
	return b.(*tokenBucket)
}

// Middleware enforces the budget and annotates responses with
// X-RateLimit headers.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := clientAddr(r)
		ok, remaining := rl.bucketFor(clientIP).allow()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(remaining)))

		if !ok {
			retryAfter := int(math.Ceil(1 / rl.cfg.RequestsPerSecond))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			rl.logger.Warn("rate limit exceeded",
				"client_ip", clientIP,
				"path", r.URL.Path,
			)
			errors.WriteError(w, errors.RateLimited(), RequestIDFromContext(r.Context()))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientAddr returns the client IP without the port. RealIP runs
// earlier in the chain, so RemoteAddr already reflects forwarding
// headers when present.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
