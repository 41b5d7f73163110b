package simulation

import (
	"github.com/nvandessel/competence/internal/mastery"
	"github.com/nvandessel/competence/internal/models"
	"github.com/nvandessel/competence/internal/session"
)

// Learner decides the outcome of playing unit at step, given the mastery
// vector the selector saw.
type Learner func(step int, unit string, before *mastery.Vector) bool

// Scenario defines one simulated run.
type Scenario struct {
	Name string

	// Domain is the domain description; nil uses the arithmetic sample.
	Domain *models.DomainDescription

	// LearnerID defaults to "sim".
	LearnerID string

	// Threshold and UnitStrength are passed to the session; zero values
	// take the session defaults.
	Threshold    float64
	UnitStrength models.Strength

	// Steps bounds the number of units played. A run stops early when the
	// selector is exhausted.
	Steps int

	// Learner decides each outcome. Required.
	Learner Learner

	// BeforeStep, when non-nil, runs before each selection. Use it to
	// inject extra evidence between units.
	BeforeStep func(step int, s *session.Session)
}

// StepResult captures one pass through the loop.
type StepResult struct {
	Index   int
	Unit    string
	Success bool
	Applied int
	Crossed []string

	Before *mastery.Vector
	After  *mastery.Vector
}

// Result captures every step and the session that produced them.
type Result struct {
	Name      string
	Steps     []StepResult
	Exhausted bool // the selector found no reachable unit before Steps ran out
	Session   *session.Session
	Root      string // project root of the isolated store
}

// Final returns the vector after the last step, or the session's current
// vector when no step ran.
func (r Result) Final() *mastery.Vector {
	if len(r.Steps) == 0 {
		return r.Session.Vector()
	}
	return r.Steps[len(r.Steps)-1].After
}

// Plays counts how often each unit was selected.
func (r Result) Plays() map[string]int {
	out := make(map[string]int)
	for _, s := range r.Steps {
		out[s.Unit]++
	}
	return out
}
