package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const cooldownSweepInterval = time.Minute

type cooldownEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	pending  bool
}

// postingCooldown admits one successful post per caller key per window.
// Begin checks without charging; Finish charges only when the post was stored.
type postingCooldown struct {
	mu        sync.Mutex
	window    time.Duration
	clock     func() time.Time
	callers   map[string]*cooldownEntry
	lastSweep time.Time
}

func newPostingCooldown(window time.Duration, clock func() time.Time) *postingCooldown {
	if clock == nil {
		clock = time.Now
	}
	return &postingCooldown{
		window:    window,
		clock:     clock,
		callers:   make(map[string]*cooldownEntry),
		lastSweep: clock(),
	}
}

func (p *postingCooldown) disabled() bool {
	return p == nil || p.window <= 0
}

// Begin reports whether the caller may post now and marks a post in flight.
// A caller with a post already in flight is rejected.
func (p *postingCooldown) Begin(key string) bool {
	if p.disabled() {
		return true
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	p.sweepLocked(now)

	entry, exists := p.callers[key]
	if !exists {
		entry = &cooldownEntry{limiter: rate.NewLimiter(rate.Every(p.window), 1)}
		p.callers[key] = entry
	}
	entry.lastSeen = now
	if entry.pending || entry.limiter.TokensAt(now) < 1 {
		return false
	}
	entry.pending = true
	return true
}

// Finish clears the in-flight mark and starts the window when posted is true.
func (p *postingCooldown) Finish(key string, posted bool) {
	if p.disabled() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, exists := p.callers[key]
	if !exists {
		return
	}
	now := p.clock()
	entry.pending = false
	entry.lastSeen = now
	if posted {
		entry.limiter.AllowN(now, 1)
	}
}

// sweepLocked drops idle callers whose bucket has fully refilled.
func (p *postingCooldown) sweepLocked(now time.Time) {
	if now.Sub(p.lastSweep) < cooldownSweepInterval {
		return
	}
	for key, entry := range p.callers {
		if !entry.pending && now.Sub(entry.lastSeen) >= p.window {
			delete(p.callers, key)
		}
	}
	p.lastSweep = now
}

func (p *postingCooldown) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.callers)
}
