package touradmin

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LoginLimiter rate-limits sign-in attempts per key. Keys are client IPs and,
// for submitted forms, "email:" plus the address, so one account cannot be
// brute-forced from many addresses.
type LoginLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*limiterEntry
	idle    time.Duration
	stopCh  chan struct{}
	once    sync.Once
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLoginLimiter creates a LoginLimiter that allows attempts per window for
// each key, refilling evenly over the window.
func NewLoginLimiter(attempts int, window time.Duration) *LoginLimiter {
	if attempts <= 0 {
		attempts = 5
	}
	l := &LoginLimiter{
		limit:   rate.Every(window / time.Duration(attempts)),
		burst:   attempts,
		clients: make(map[string]*limiterEntry),
		idle:    2 * window,
		stopCh:  make(chan struct{}),
	}
	go l.cleanup(window)
	return l
}

func (l *LoginLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-l.idle)
			l.mu.Lock()
			for k, e := range l.clients {
				if e.lastSeen.Before(cutoff) {
					delete(l.clients, k)
				}
			}
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// Stop ends the cleanup goroutine.
func (l *LoginLimiter) Stop() {
	l.once.Do(func() { close(l.stopCh) })
}

func (l *LoginLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.clients[key]; ok {
		e.lastSeen = time.Now()
		return e.limiter
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.clients[key] = &limiterEntry{limiter: lim, lastSeen: time.Now()}
	return lim
}

// Allow reports whether every key may attempt a sign-in now, and consumes
// one attempt from each when it may.
func (l *LoginLimiter) Allow(keys ...string) bool {
	now := time.Now()
	reservations := make([]*rate.Reservation, 0, len(keys))
	for _, k := range keys {
		r := l.get(k).ReserveN(now, 1)
		if !r.OK() || r.DelayFrom(now) > 0 {
			r.CancelAt(now)
			for _, prev := range reservations {
				prev.CancelAt(now)
			}
			return false
		}
		reservations = append(reservations, r)
	}
	return true
}
