// Package ratelimit throttles the MCP tools with token buckets so a client
// cannot queue unbounded simulation work.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLimited is wrapped by Check when a tool is over its rate.
var ErrLimited = errors.New("rate limit exceeded")

// Limiter is a token bucket. It is safe for concurrent use.
type Limiter struct {
	mu        sync.Mutex
	rate      float64 // tokens per second
	burst     int     // bucket capacity and initial fill
	tokens    float64
	lastCheck time.Time
	nowFunc   func() time.Time
}

// NewLimiter returns a full bucket refilled at rate tokens per second.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		rate:    rate,
		burst:   burst,
		tokens:  float64(burst),
		nowFunc: time.Now,
	}
}

// Allow takes one token if available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	if l.lastCheck.IsZero() {
		l.lastCheck = now
	}
	if elapsed := now.Sub(l.lastCheck).Seconds(); elapsed > 0 {
		l.tokens = min(l.tokens+l.rate*elapsed, float64(l.burst))
		l.lastCheck = now
	}
	if l.tokens < 1.0 {
		return false
	}
	l.tokens--
	return true
}

// ToolLimiters maps tool names to their limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters returns the default per-tool limits. Simulation is the
// expensive call and gets the tightest bucket.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"epinet_grow":      NewLimiter(20.0/60.0, 5), // 20/minute, burst 5
		"epinet_simulate":  NewLimiter(10.0/60.0, 3), // 10/minute, burst 3
		"epinet_meanfield": NewLimiter(1.0, 10),      // 60/minute, burst 10
		"epinet_runs":      NewLimiter(1.0, 10),      // 60/minute, burst 10
	}
}

// Check takes a token for tool. Tools without a limiter are never limited.
func (t ToolLimiters) Check(tool string) error {
	l, ok := t[tool]
	if !ok || l.Allow() {
		return nil
	}
	return fmt.Errorf("%s: %w, please try again shortly", tool, ErrLimited)
}
