package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/caselaw-rag/internal/logging"
)

// defaultRateLimit is the number of turns per second allowed per client on
// POST /rag-chat when no explicit limit is configured.
const defaultRateLimit = 10

// defaultRateBurst is the maximum burst per client when no explicit burst is
// configured.
const defaultRateBurst = 20

// defaultIdleTTL is how long an unused client bucket is kept before eviction.
const defaultIdleTTL = 5 * time.Minute

// limiterConfig tunes the per-client token buckets.
type limiterConfig struct {
	// rps is the sustained rate per client in requests per second.
	rps float64
	// burst is the bucket size per client.
	burst int
	// idleTTL evicts buckets not used for this long. Defaults to defaultIdleTTL.
	idleTTL time.Duration
	// onReject, when set, is called once per rejected request.
	onReject func()
}

// bucket is the token bucket of one client and the last time it was used.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter enforces a per-client token bucket in front of the answer
// pipeline, so one caller cannot monopolise the embedding and completion
// backends. Clients are keyed by remote IP.
type rateLimiter struct {
	cfg limiterConfig

	// mu guards buckets.
	mu      sync.Mutex
	buckets map[string]*bucket
}

// newRateLimiter constructs a rateLimiter and starts its eviction goroutine.
// The goroutine exits when the returned stop function is called.
func newRateLimiter(cfg limiterConfig) (*rateLimiter, func()) {
	if cfg.idleTTL <= 0 {
		cfg.idleTTL = defaultIdleTTL
	}
	rl := &rateLimiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
	}

	stopCh := make(chan struct{})
	go rl.evictLoop(stopCh)

	return rl, func() { close(stopCh) }
}

// reserve takes one token from the bucket of key. When none is available it
// returns false and how long the client should wait.
func (rl *rateLimiter) reserve(key string, now time.Time) (time.Duration, bool) {
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(rl.cfg.rps), rl.cfg.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return time.Second, false
	}
	delay := res.DelayFrom(now)
	if delay == 0 {
		return 0, true
	}
	res.CancelAt(now)
	return delay, false
}

func (rl *rateLimiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(min(time.Minute, rl.cfg.idleTTL))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			rl.evict(now)
		}
	}
}

// evict drops buckets idle for longer than idleTTL.
func (rl *rateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.cfg.idleTTL)
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// size reports the number of tracked clients.
func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

// middleware rejects requests over the limit with 429, a Retry-After header
// in whole seconds and a JSON message body.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		wait, ok := rl.reserve(ip, time.Now())
		if !ok {
			retryAfter := max(1, int(math.Ceil(wait.Seconds())))
			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.Int("retry_after_s", retryAfter),
			)
			if rl.cfg.onReject != nil {
				rl.cfg.onReject()
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeMessage(w, http.StatusTooManyRequests, "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is not
// trusted; deployments behind a proxy are limited per proxy address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
