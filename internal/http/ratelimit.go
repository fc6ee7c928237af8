package http

import (
	"sync"
	"time"
)

const (
	rateWindow    = time.Minute
	sweepInterval = 5 * time.Minute
	// Clients silent for this many windows are forgotten by the sweeper.
	idleWindows = 10
)

// rateLimiter counts mutating requests per client IP in fixed one-minute
// windows.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	now     func() time.Time
	windows map[string]window

	done     chan struct{}
	stopOnce sync.Once
}

type window struct {
	start time.Time
	count int
}

func newRateLimiter(perMinute int) *rateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	rl := &rateLimiter{
		limit:   perMinute,
		now:     time.Now,
		windows: make(map[string]window),
		done:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

func (rl *rateLimiter) sweepLoop() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-t.C:
			rl.sweep()
		}
	}
}

func (rl *rateLimiter) sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idleWindows * rateWindow)
	n := 0
	for ip, w := range rl.windows {
		if w.start.Before(cutoff) {
			delete(rl.windows, ip)
			n++
		}
	}
	return n
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// take records one request for ip. When the window is exhausted it returns
// false and how long until the window resets.
func (rl *rateLimiter) take(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[ip]
	if !ok || now.Sub(w.start) >= rateWindow {
		rl.windows[ip] = window{start: now, count: 1}
		return true, 0
	}
	if w.count >= rl.limit {
		return false, w.start.Add(rateWindow).Sub(now)
	}
	w.count++
	rl.windows[ip] = w
	return true, 0
}
