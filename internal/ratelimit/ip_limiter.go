package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPLimiter limits connections per IP address: a cap on concurrent
// connections plus a token bucket on new connections per second.
type IPLimiter struct {
	mu            sync.Mutex
	maxConnsPerIP int
	rateLimit     int // connections per second per IP
	entries       map[string]*ipEntry
	lastCleanup   time.Time
	now           func() time.Time
}

type ipEntry struct {
	conns    int
	limiter  *rate.Limiter
	lastSeen time.Time
}

// idleEntryTTL is how long an IP without connections keeps its bucket
const idleEntryTTL = 5 * time.Minute

// NewIPLimiter creates a new IP-based rate limiter. A zero limit disables
// that check.
func NewIPLimiter(maxConnsPerIP, rateLimit int) *IPLimiter {
	return &IPLimiter{
		maxConnsPerIP: maxConnsPerIP,
		rateLimit:     rateLimit,
		entries:       make(map[string]*ipEntry),
		lastCleanup:   time.Now(),
		now:           time.Now,
	}
}

// Allow checks if a connection from ip is allowed and, if so, counts it
func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastCleanup) > idleEntryTTL {
		l.cleanup(now)
		l.lastCleanup = now
	}

	e, ok := l.entries[ip]
	if !ok {
		e = &ipEntry{limiter: l.newBucket()}
		l.entries[ip] = e
	}
	e.lastSeen = now

	if l.maxConnsPerIP > 0 && e.conns >= l.maxConnsPerIP {
		return false
	}
	if !e.limiter.AllowN(now, 1) {
		return false
	}
	e.conns++
	return true
}

// Release releases a connection slot for an IP
func (l *IPLimiter) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[ip]; ok && e.conns > 0 {
		e.conns--
		e.lastSeen = l.now()
	}
}

// SetLimits applies new limits; existing buckets are retuned in place
func (l *IPLimiter) SetLimits(maxConnsPerIP, rateLimit int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.maxConnsPerIP = maxConnsPerIP
	l.rateLimit = rateLimit
	for _, e := range l.entries {
		e.limiter.SetLimit(l.limit())
		e.limiter.SetBurst(l.burst())
	}
}

// GetStats returns the current connection count and remaining burst tokens for an IP
func (l *IPLimiter) GetStats(ip string) (connCount int, tokens float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[ip]; ok {
		return e.conns, e.limiter.TokensAt(l.now())
	}
	return 0, float64(l.burst())
}

func (l *IPLimiter) newBucket() *rate.Limiter {
	return rate.NewLimiter(l.limit(), l.burst())
}

func (l *IPLimiter) limit() rate.Limit {
	if l.rateLimit <= 0 {
		return rate.Inf
	}
	return rate.Limit(l.rateLimit)
}

func (l *IPLimiter) burst() int {
	if l.rateLimit <= 0 {
		return 1
	}
	return l.rateLimit
}

// cleanup drops IPs with no connections that have been quiet for a while
func (l *IPLimiter) cleanup(now time.Time) {
	for ip, e := range l.entries {
		if e.conns == 0 && now.Sub(e.lastSeen) > idleEntryTTL {
			delete(l.entries, ip)
		}
	}
}
