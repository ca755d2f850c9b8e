package commands

import (
	"fmt"
	"sync"
	"time"

	"macroBot/internal/domain"
)

// RateLimitConfig bounds mutations to Limit attempts per Window. A zero
// Limit or Window disables throttling.
type RateLimitConfig struct {
	Limit      int
	Window     time.Duration
	PerInvoker bool
}

// fixedWindow counts acquisitions since start. The window starts with the
// first acquisition after the previous one expired.
type fixedWindow struct {
	start    time.Time
	count    int
	lastSeen time.Time
}

// RateLimiter keeps one fixed window per community (or per community and
// invoker). At most Limit acquisitions succeed inside one Window.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*fixedWindow
}

func NewRateLimiter(cfg RateLimitConfig, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		cfg:     cfg,
		now:     now,
		windows: make(map[string]*fixedWindow),
	}
}

func (l *RateLimiter) enabled() bool {
	return l != nil && l.cfg.Limit > 0 && l.cfg.Window > 0
}

func (l *RateLimiter) key(community domain.CommunityID, invokerID string) string {
	if l.cfg.PerInvoker {
		return string(community) + "|" + invokerID
	}
	return string(community)
}

// TryAcquire consumes one attempt or fails with ErrRateLimitExceeded.
func (l *RateLimiter) TryAcquire(community domain.CommunityID, invokerID string) error {
	if !l.enabled() {
		return nil
	}

	now := l.now()
	key := l.key(community, invokerID)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &fixedWindow{start: now}
		l.windows[key] = w
	}
	w.lastSeen = now

	if !now.Before(w.start.Add(l.cfg.Window)) {
		w.start = now
		w.count = 0
	}
	if w.count >= l.cfg.Limit {
		return fmt.Errorf("%w: %s", domain.ErrRateLimitExceeded, community)
	}
	w.count++
	return nil
}

// Prune drops windows not used for longer than idle and reports how many
// were removed. idle is raised to one window so only expired windows go.
func (l *RateLimiter) Prune(idle time.Duration) int {
	if !l.enabled() {
		return 0
	}
	if idle < l.cfg.Window {
		idle = l.cfg.Window
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.lastSeen) > idle {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

func (l *RateLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
