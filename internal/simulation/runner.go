package simulation

import (
	"context"
	"testing"

	"github.com/nvandessel/competence/internal/domain"
	"github.com/nvandessel/competence/internal/mastery"
	"github.com/nvandessel/competence/internal/session"
	"github.com/nvandessel/competence/internal/store"
)

// Runner runs scenarios against a real session backed by SQLite.
type Runner struct {
	t     *testing.T
	root  string
	store store.StateStore
}

// NewRunner creates a runner with an isolated SQLite store and a sandboxed
// HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", root)

	if _, err := store.EnsureLocalDir(root); err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	st, err := store.Open(context.Background(), store.Options{Backend: store.BackendSQLite, Root: root})
	if err != nil {
		t.Fatalf("NewRunner: failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return &Runner{t: t, root: root, store: st}
}

// Store returns the runner's store, for reopening sessions after a run.
func (r *Runner) Store() store.StateStore { return r.store }

// Run plays the scenario and returns every step.
func (r *Runner) Run(sc Scenario) Result {
	r.t.Helper()
	ctx := context.Background()

	if sc.Learner == nil {
		r.t.Fatalf("scenario %s: no learner", sc.Name)
	}
	sess := r.Open(sc)
	if sess.Fresh() {
		if err := sess.Save(ctx); err != nil {
			r.t.Fatalf("scenario %s: initial save: %v", sc.Name, err)
		}
	}

	res := Result{Name: sc.Name, Session: sess, Root: r.root}
	for i := 0; i < sc.Steps; i++ {
		if sc.BeforeStep != nil {
			sc.BeforeStep(i, sess)
		}

		before := sess.Vector()
		unit, ok, err := sess.NextUnit(ctx)
		if err != nil {
			r.t.Fatalf("scenario %s step %d: NextUnit: %v", sc.Name, i, err)
		}
		if !ok {
			res.Exhausted = true
			break
		}

		success := sc.Learner(i, unit, before)
		batch, err := sess.ApplyEvidenceForUnit(ctx, unit, success)
		if err != nil {
			r.t.Fatalf("scenario %s step %d: apply %s: %v", sc.Name, i, unit, err)
		}
		after := sess.Vector()

		res.Steps = append(res.Steps, StepResult{
			Index:   i,
			Unit:    unit,
			Success: success,
			Applied: batch.Applied(),
			Crossed: crossed(before, after),
			Before:  before,
			After:   after,
		})
	}
	return res
}

// Open opens the scenario's session on the runner's store. Opening twice
// with the same learner resumes the persisted state.
func (r *Runner) Open(sc Scenario) *session.Session {
	r.t.Helper()
	desc := sc.Domain
	if desc == nil {
		desc = domain.Sample()
	}
	dom, err := domain.Compile(desc)
	if err != nil {
		r.t.Fatalf("scenario %s: compile domain: %v", sc.Name, err)
	}
	learner := sc.LearnerID
	if learner == "" {
		learner = "sim"
	}
	sess, err := session.Open(context.Background(), session.Options{
		Domain:       dom,
		LearnerID:    learner,
		Store:        r.store,
		Threshold:    sc.Threshold,
		UnitStrength: sc.UnitStrength,
	})
	if err != nil {
		r.t.Fatalf("scenario %s: open session: %v", sc.Name, err)
	}
	return sess
}

func crossed(a, b *mastery.Vector) []string {
	var out []string
	for i := 0; i < a.Len(); i++ {
		if a.MasteredAt(i) != b.MasteredAt(i) {
			out = append(out, a.Graph().ID(i))
		}
	}
	return out
}
