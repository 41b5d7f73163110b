package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAllow_Burst(t *testing.T) {
	l := NewLimiter(1.0, 3)
	for i := 0; i < 3; i++ {
		if !l.Allow("ana") {
			t.Errorf("request %d should be allowed (within burst)", i+1)
		}
	}
	if l.Allow("ana") {
		t.Error("request after burst exhaustion should be rejected")
	}
}

func TestAllow_Refill(t *testing.T) {
	now := time.Now()
	l := NewLimiter(10.0, 2)
	l.nowFunc = func() time.Time { return now }

	l.Allow("ana")
	l.Allow("ana")
	if l.Allow("ana") {
		t.Fatal("expected rejection after burst")
	}

	// 150ms at 10/s refills 1.5 tokens.
	now = now.Add(150 * time.Millisecond)
	if !l.Allow("ana") {
		t.Error("expected one token after refill")
	}
	if l.Allow("ana") {
		t.Error("half a token should not be enough")
	}

	// A long pause never exceeds the burst.
	now = now.Add(time.Hour)
	allowed := 0
	for i := 0; i < 5; i++ {
		if l.Allow("ana") {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed %d after long pause, want burst 2", allowed)
	}
}

func TestAllow_IndependentKeys(t *testing.T) {
	l := NewLimiter(0, 1)
	if !l.Allow("ana") || !l.Allow("ben") {
		t.Error("each key gets its own burst")
	}
	if l.Allow("ana") {
		t.Error("ana should be exhausted with zero rate")
	}
}

func TestAllow_ConcurrentAccess(t *testing.T) {
	l := NewLimiter(0, 50)

	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("ana") {
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count != 50 {
		t.Errorf("allowed %d requests, want exactly the burst of 50", count)
	}
}

func TestDefaultRates(t *testing.T) {
	rates := DefaultRates()
	tools := []string{
		"competence_evidence",
		"competence_unit_result",
		"competence_mastery",
		"competence_next",
		"competence_reset",
		"competence_graph",
	}
	for _, tool := range tools {
		r, ok := rates[tool]
		if !ok {
			t.Errorf("missing rate for %s", tool)
			continue
		}
		if r.Burst < 1 || r.PerMinute <= 0 {
			t.Errorf("%s: unusable rate %+v", tool, r)
		}
	}
}

func TestToolLimiters_Check(t *testing.T) {
	tl := NewToolLimiters(map[string]Rate{"competence_reset": {PerMinute: 1, Burst: 1}})

	if err := tl.Check("competence_reset", "ana"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	err := tl.Check("competence_reset", "ana")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	var le *LimitError
	if !errors.As(err, &le) || le.Tool != "competence_reset" || le.Key != "ana" {
		t.Errorf("error = %#v", err)
	}

	if err := tl.Check("competence_reset", "ben"); err != nil {
		t.Errorf("another learner should not be limited: %v", err)
	}
	if err := tl.Check("unknown_tool", "ana"); err != nil {
		t.Errorf("unknown tool should pass: %v", err)
	}

	var none ToolLimiters
	if err := none.Check("competence_reset", "ana"); err != nil {
		t.Errorf("nil limiters should pass: %v", err)
	}
}
