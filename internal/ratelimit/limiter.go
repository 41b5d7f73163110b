// Package ratelimit provides token bucket rate limiting for MCP tool calls,
// one bucket per (tool, learner) pair.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited is matched by every *LimitError.
var ErrRateLimited = errors.New("rate limit exceeded")

// LimitError reports a rejected call.
type LimitError struct {
	Tool string
	Key  string
}

func (e *LimitError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("rate limit exceeded for %s, please try again shortly", e.Tool)
	}
	return fmt.Sprintf("rate limit exceeded for %s (%s), please try again shortly", e.Tool, e.Key)
}

// Is matches ErrRateLimited.
func (e *LimitError) Is(target error) bool { return target == ErrRateLimited }

// Limiter is a per-key token bucket. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int     // capacity and initial tokens
	nowFunc func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewLimiter creates a limiter refilling rate tokens per second up to burst.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow takes one token from key's bucket if one is available.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), last: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(float64(l.burst), b.tokens+l.rate*elapsed)
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Rate is a per-minute allowance with a burst.
type Rate struct {
	PerMinute float64
	Burst     int
}

// DefaultRates returns the limits for the competence MCP tools. Reads are
// generous; writes and resets are tighter.
func DefaultRates() map[string]Rate {
	return map[string]Rate{
		"competence_evidence":    {PerMinute: 60, Burst: 10},
		"competence_unit_result": {PerMinute: 30, Burst: 5},
		"competence_mastery":     {PerMinute: 120, Burst: 20},
		"competence_next":        {PerMinute: 30, Burst: 5},
		"competence_reset":       {PerMinute: 2, Burst: 1},
		"competence_graph":       {PerMinute: 30, Burst: 5},
	}
}

// ToolLimiters maps tool names to their limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters builds one limiter per entry of rates.
func NewToolLimiters(rates map[string]Rate) ToolLimiters {
	tl := make(ToolLimiters, len(rates))
	for tool, r := range rates {
		tl[tool] = NewLimiter(r.PerMinute/60, r.Burst)
	}
	return tl
}

// Check takes a token for tool on behalf of key (usually the learner id).
// Tools without a limiter, and a nil ToolLimiters, are never limited.
func (tl ToolLimiters) Check(tool, key string) error {
	l, ok := tl[tool]
	if !ok {
		return nil
	}
	if !l.Allow(key) {
		return &LimitError{Tool: tool, Key: key}
	}
	return nil
}
