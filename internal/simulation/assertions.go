package simulation

import (
	"context"
	"testing"

	"github.com/nvandessel/competence/internal/constants"
	"github.com/nvandessel/competence/internal/mastery"
)

// AssertConsistent asserts that every strict prerequisite stays above its
// successors after every step.
func AssertConsistent(t *testing.T, result Result) {
	t.Helper()
	for _, s := range result.Steps {
		if ok, p, succ := s.After.Consistent(constants.Epsilon); !ok {
			t.Errorf("AssertConsistent: step %d (%s): %s=%.6f not above %s=%.6f",
				s.Index, s.Unit, p, get(s.After, p), succ, get(s.After, succ))
		}
	}
}

// AssertMonotone asserts that successes never lower a probability and
// failures never raise one.
func AssertMonotone(t *testing.T, result Result) {
	t.Helper()
	for _, s := range result.Steps {
		g := s.Before.Graph()
		for i := 0; i < s.Before.Len(); i++ {
			b, a := s.Before.At(i), s.After.At(i)
			if s.Success && a < b {
				t.Errorf("AssertMonotone: step %d: success on %s lowered %s from %.6f to %.6f", s.Index, s.Unit, g.ID(i), b, a)
			}
			if !s.Success && a > b {
				t.Errorf("AssertMonotone: step %d: failure on %s raised %s from %.6f to %.6f", s.Index, s.Unit, g.ID(i), b, a)
			}
		}
	}
}

// AssertGated asserts that no selected unit needed a competence the
// learner could not yet acquire: every unmastered requirement had all its
// direct prerequisites mastered when the unit was picked.
func AssertGated(t *testing.T, result Result) {
	t.Helper()
	content := result.Session.Domain().Content
	for _, s := range result.Steps {
		u, ok := content.Unit(s.Unit)
		if !ok {
			t.Errorf("AssertGated: step %d: unknown unit %s", s.Index, s.Unit)
			continue
		}
		g := s.Before.Graph()
		for _, req := range u.Requires {
			if s.Before.Mastered(req) {
				continue
			}
			for _, p := range g.Prerequisites(req) {
				if !s.Before.Mastered(p) {
					t.Errorf("AssertGated: step %d: %s requires %s whose prerequisite %s is unmastered", s.Index, s.Unit, req, p)
				}
			}
		}
	}
}

// AssertMasteredBy asserts that id is mastered after the given step.
func AssertMasteredBy(t *testing.T, result Result, id string, step int) {
	t.Helper()
	if step >= len(result.Steps) {
		t.Fatalf("AssertMasteredBy: only %d steps ran, need %d", len(result.Steps), step+1)
	}
	if !result.Steps[step].After.Mastered(id) {
		t.Errorf("AssertMasteredBy: %s not mastered after step %d (p=%.4f)", id, step, get(result.Steps[step].After, id))
	}
}

// AssertNeverMastered asserts that no competence is mastered at any step.
func AssertNeverMastered(t *testing.T, result Result) {
	t.Helper()
	for _, s := range result.Steps {
		if m := s.After.MasteredSet(); len(m) > 0 {
			t.Errorf("AssertNeverMastered: step %d: mastered %v", s.Index, keys(m))
		}
	}
}

// AssertCrossedAtMost asserts that each step changed the mastered status
// of at most max competences.
func AssertCrossedAtMost(t *testing.T, result Result, max int) {
	t.Helper()
	for _, s := range result.Steps {
		if len(s.Crossed) > max {
			t.Errorf("AssertCrossedAtMost: step %d (%s): crossed %v, want at most %d", s.Index, s.Unit, s.Crossed, max)
		}
	}
}

// AssertPersisted asserts that reopening the learner from the store
// yields the final vector and play counts bit for bit.
func AssertPersisted(t *testing.T, r *Runner, sc Scenario, result Result) {
	t.Helper()
	if err := result.Session.Save(context.Background()); err != nil {
		t.Fatalf("AssertPersisted: save: %v", err)
	}
	reopened := r.Open(sc)
	if reopened.Fresh() {
		t.Fatal("AssertPersisted: reopened session has no persisted state")
	}

	want := result.Final().Map()
	got := reopened.CurrentMastery()
	for id, p := range want {
		if got[id] != p {
			t.Errorf("AssertPersisted: %s = %v after reload, want %v", id, got[id], p)
		}
	}

	wantPlays := result.Plays()
	gotPlays, _ := reopened.History()
	for unit, n := range wantPlays {
		if gotPlays[unit] != n {
			t.Errorf("AssertPersisted: %s played %d times after reload, want %d", unit, gotPlays[unit], n)
		}
	}
}

func get(v *mastery.Vector, id string) float64 {
	p, _ := v.Get(id)
	return p
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
