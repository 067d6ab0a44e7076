package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// idleAfter is how long a caller may stay quiet before its allowance is
// forgotten. A forgotten caller starts again with a full burst.
const idleAfter = 10 * time.Minute

// RateLimiter meters POST /uploads and POST /chatbot/messages. Signed-in
// callers are metered by token subject so they keep their allowance across
// networks. Anonymous callers are metered by client IP.
type RateLimiter struct {
	perSecond float64
	burst     float64
	now       func() time.Time

	mu        sync.Mutex
	callers   map[string]*allowance
	lastSweep time.Time
}

type allowance struct {
	left float64
	seen time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		perSecond: perSecond,
		burst:     float64(burst),
		now:       time.Now,
		callers:   map[string]*allowance{},
	}
}

// Take spends one request from key's allowance. When none is left it
// reports how long until the next one accrues.
func (rl *RateLimiter) Take(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	a, ok := rl.callers[key]
	if !ok {
		a = &allowance{left: rl.burst, seen: now}
		rl.callers[key] = a
	}
	a.left = math.Min(rl.burst, a.left+now.Sub(a.seen).Seconds()*rl.perSecond)
	a.seen = now

	if a.left >= 1 {
		a.left--
		return true, 0
	}
	if rl.perSecond <= 0 {
		return false, idleAfter
	}
	wait := time.Duration((1 - a.left) / rl.perSecond * float64(time.Second))
	return false, wait
}

// sweep drops idle callers at most once per idleAfter. Callers hold mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < idleAfter {
		return
	}
	rl.lastSweep = now
	for key, a := range rl.callers {
		if now.Sub(a.seen) > idleAfter {
			delete(rl.callers, key)
		}
	}
}

func (rl *RateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.callers)
}

// Middleware answers 429 with a Retry-After header once a caller has spent
// its allowance. It must run after OptionalJWT or RequireJWT to see the
// token subject.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, wait := rl.Take(callerKey(r))
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests, slow down"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit is shorthand for a fresh limiter's Middleware.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	return NewRateLimiter(perSecond, burst).Middleware
}

func callerKey(r *http.Request) string {
	if sub := UserID(r.Context()); sub != "" {
		return "user:" + sub
	}
	// chi's RealIP has already copied X-Real-Ip or X-Forwarded-For here
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
