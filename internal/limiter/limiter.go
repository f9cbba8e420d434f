package limiter

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rejection reasons passed to the OnReject hook.
const (
	ReasonGlobal      = "global"
	ReasonClient      = "client"
	ReasonConcurrency = "concurrency"
)

// Config sets the limits. A zero rate disables that bucket and a zero
// MaxConcurrent disables the in-flight cap.
type Config struct {
	GlobalRPS     float64
	ClientRPS     float64
	ClientBurst   int
	MaxConcurrent int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter combines a global token bucket, one bucket per client address
// and a cap on requests in flight.
type RateLimiter struct {
	global      *rate.Limiter
	clientRate  rate.Limit
	clientBurst int
	slots       chan struct{}

	mu      sync.Mutex
	clients map[string]*clientLimiter

	// OnReject is called for every rejected request.
	OnReject func(reason string)
}

func New(cfg Config) *RateLimiter {
	globalBurst := max(int(cfg.GlobalRPS)*2, 1)
	rl := &RateLimiter{
		global:      rate.NewLimiter(limit(cfg.GlobalRPS), globalBurst),
		clientRate:  limit(cfg.ClientRPS),
		clientBurst: max(cfg.ClientBurst, 1),
		clients:     make(map[string]*clientLimiter),
	}
	if cfg.MaxConcurrent > 0 {
		rl.slots = make(chan struct{}, cfg.MaxConcurrent)
	}
	return rl
}

func limit(rps float64) rate.Limit {
	if rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(rps)
}

func (rl *RateLimiter) clientLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.clientRate, rl.clientBurst)}
		rl.clients[key] = c
	}
	c.lastSeen = time.Now()
	return c.limiter
}

// Acquire admits one request from client. On success the caller must call
// the returned release func when the request is done.
func (rl *RateLimiter) Acquire(client string) (release func(), ok bool) {
	if !rl.global.Allow() {
		rl.reject(ReasonGlobal)
		return nil, false
	}
	if !rl.clientLimiter(client).Allow() {
		rl.reject(ReasonClient)
		return nil, false
	}
	if rl.slots == nil {
		return func() {}, true
	}

	select {
	case rl.slots <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-rl.slots }) }, true
	default:
		rl.reject(ReasonConcurrency)
		return nil, false
	}
}

func (rl *RateLimiter) reject(reason string) {
	if rl.OnReject != nil {
		rl.OnReject(reason)
	}
}

// Middleware rejects requests over the limits with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		release, ok := rl.Acquire(ClientKey(r))
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"too many requests"}` + "\n"))
			return
		}
		defer release()

		next.ServeHTTP(w, r)
	})
}

// StartCleanup drops client buckets idle for longer than ttl until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval, ttl time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rl.evict(now.Add(-ttl))
			}
		}
	}()
}

func (rl *RateLimiter) evict(before time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, c := range rl.clients {
		if c.lastSeen.Before(before) {
			delete(rl.clients, key)
		}
	}
}

// ClientKey is the host part of RemoteAddr. Put middleware.RealIP in front
// when running behind a proxy.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
