// Package ratelimit admits requests against per-operation and combined
// sliding-window budgets.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/jibsandbox/jib-gateway/internal/clock"
)

// CombinedScope names the cross-operation budget in results.
const CombinedScope = "combined"

// CheckResult is the outcome of one admission attempt.
type CheckResult struct {
	Allowed bool
	// Scope is the exceeded limit: the operation name or CombinedScope.
	Scope      string
	Current    int
	Limit      int
	RetryAfter time.Duration
	Reason     string
}

// Limiter is safe for concurrent use. Check and record happen under one
// lock so concurrent requests cannot overshoot a budget.
type Limiter struct {
	mu       sync.Mutex
	cfg      Config
	clock    clock.Clock
	ops      map[string]*window
	combined window
}

// New creates a Limiter. A nil clock uses the wall clock.
func New(cfg Config, c clock.Clock) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if c == nil {
		c = clock.Real()
	}
	return &Limiter{cfg: cfg, clock: c, ops: make(map[string]*window)}
}

// Allow admits op iff both its own count and the combined count are under
// budget, recording the request in both windows when admitted.
func (l *Limiter) Allow(op string) CheckResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	w := l.ops[op]
	if w == nil {
		w = &window{}
		l.ops[op] = w
	}

	if limit := l.cfg.Budget(op); limit > 0 {
		if n := w.prune(now, l.cfg.Window); n >= limit {
			return l.exceeded(op, n, limit, w, now)
		}
	}
	if limit := l.cfg.Combined; limit > 0 {
		if n := l.combined.prune(now, l.cfg.Window); n >= limit {
			return l.exceeded(CombinedScope, n, limit, &l.combined, now)
		}
	}

	w.record(now)
	l.combined.record(now)
	return CheckResult{Allowed: true}
}

// Counts returns current in-window counts for op and for the combined budget.
func (l *Limiter) Counts(op string) (opCount, combined int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	if w := l.ops[op]; w != nil {
		opCount = w.prune(now, l.cfg.Window)
	}
	return opCount, l.combined.prune(now, l.cfg.Window)
}

// SetConfig replaces budgets without dropping recorded history.
func (l *Limiter) SetConfig(cfg Config) {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
}

func (l *Limiter) exceeded(scope string, n, limit int, w *window, now time.Time) CheckResult {
	var retry time.Duration
	if first, ok := w.oldest(); ok {
		retry = first.Add(l.cfg.Window).Sub(now)
	}
	what := scope + " operations"
	if scope == CombinedScope {
		what = "all operations combined"
	}
	return CheckResult{
		Scope:      scope,
		Current:    n,
		Limit:      limit,
		RetryAfter: retry,
		Reason:     fmt.Sprintf("rate limit exceeded for %s: %d/%d in the last %s", what, n, limit, l.cfg.Window),
	}
}
