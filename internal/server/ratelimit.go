package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rate limiter defaults.
const (
	// DefaultClientTTL is how long an idle per-client limiter is kept
	// before cleanup.
	DefaultClientTTL = 10 * time.Minute

	// DefaultCleanupInterval is the interval between cleanup sweeps.
	DefaultCleanupInterval = time.Minute
)

// clientEntry holds a per-client limiter and its last access time.
type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter provides token-bucket rate limiting for the admin API,
// either globally or per client IP.
type RateLimiter struct {
	limiter   *rate.Limiter
	perClient bool
	clients   map[string]*clientEntry
	mu        sync.Mutex
	rps       int
	burst     int
	clientTTL time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewRateLimiter creates a new rate limiter and starts its cleanup
// loop. Callers must Stop it when done.
func NewRateLimiter(rps, burst int, perClient bool) *RateLimiter {
	rl := &RateLimiter{
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		perClient: perClient,
		clients:   make(map[string]*clientEntry),
		rps:       rps,
		burst:     burst,
		clientTTL: DefaultClientTTL,
		stopCh:    make(chan struct{}),
	}

	if perClient {
		go rl.cleanupLoop()
	}

	return rl
}

// Allow reports whether a request from clientIP is allowed.
func (rl *RateLimiter) Allow(clientIP string) bool {
	if !rl.perClient {
		return rl.limiter.Allow()
	}

	rl.mu.Lock()
	entry, ok := rl.clients[clientIP]
	if !ok {
		entry = &clientEntry{
			limiter: rate.NewLimiter(rate.Limit(rl.rps), rl.burst),
		}
		rl.clients[clientIP] = entry
	}
	entry.lastAccess = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

// Stop stops the cleanup loop.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}

// cleanupLoop periodically removes idle per-client limiters.
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(DefaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup removes entries not seen within the client TTL.
func (rl *RateLimiter) cleanup() {
	cutoff := time.Now().Add(-rl.clientTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, entry := range rl.clients {
		if entry.lastAccess.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}
