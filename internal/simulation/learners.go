package simulation

import "github.com/nvandessel/competence/internal/mastery"

// AlwaysSucceeds passes every unit.
func AlwaysSucceeds(int, string, *mastery.Vector) bool { return true }

// AlwaysFails fails every unit.
func AlwaysFails(int, string, *mastery.Vector) bool { return false }

// Alternating succeeds on even steps and fails on odd ones.
func Alternating(step int, _ string, _ *mastery.Vector) bool { return step%2 == 0 }

// SucceedsOn passes only the listed units.
func SucceedsOn(units ...string) Learner {
	set := make(map[string]bool, len(units))
	for _, u := range units {
		set[u] = true
	}
	return func(_ int, unit string, _ *mastery.Vector) bool { return set[unit] }
}

// Script replays fixed outcomes, then repeats the last one.
func Script(outcomes ...bool) Learner {
	return func(step int, _ string, _ *mastery.Vector) bool {
		if len(outcomes) == 0 {
			return false
		}
		if step >= len(outcomes) {
			return outcomes[len(outcomes)-1]
		}
		return outcomes[step]
	}
}
