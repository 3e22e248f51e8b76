package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a per-key token bucket. Each key may spend limit tokens per
// window, refilled continuously.
type Limiter struct {
	mu        sync.Mutex
	limit     int
	every     rate.Limit
	idleTTL   time.Duration
	clients   map[string]*client
	lastSweep time.Time
	now       func() time.Time
}

func New(limit int, window time.Duration) *Limiter {
	l := &Limiter{
		limit:   limit,
		idleTTL: 10 * window,
		clients: map[string]*client{},
		now:     time.Now,
	}
	if limit > 0 && window > 0 {
		l.every = rate.Every(window / time.Duration(limit))
	}
	if l.idleTTL < time.Minute {
		l.idleTTL = time.Minute
	}
	return l
}

// Allow spends one token for key. A non-positive limit disables limiting.
func (l *Limiter) Allow(key string) Decision {
	if l == nil || l.limit <= 0 {
		return Decision{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.every, l.limit)}
		l.clients[key] = c
	}
	c.lastSeen = now

	reservation := c.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return Decision{Allowed: false, Limit: l.limit, Remaining: 0, RetryAfter: delay}
	}
	remaining := int(c.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Limit: l.limit, Remaining: remaining}
}

// Len reports how many keys are currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.idleTTL {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}
