// Package simulation drives simulated learners through a domain for
// property tests of the update engine and the content selector.
//
// A Runner opens a real session over an isolated SQLite store and repeats
// the loop an application would run: pick the next unit, ask the simulated
// learner whether it succeeded, apply the result. Every step is captured
// with the vector before and after the update so assertions can check
// invariants across the whole run, not only at the end.
//
// Each test gets its own project root via t.TempDir() and a sandboxed
// HOME so nothing touches user data.
//
// Usage:
//
//	func TestPerfectLearner(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:    "perfect",
//	        Steps:   30,
//	        Learner: simulation.AlwaysSucceeds,
//	    })
//	    simulation.AssertConsistent(t, result)
//	    simulation.AssertMasteredBy(t, result, "C1", 0)
//	}
package simulation
