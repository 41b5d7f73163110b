// Package update revises a mastery vector from evidence. A single evidence
// item scales the odds of the target competence by xi and propagates the
// change along the prerequisite order; optional qualitative constraints
// adjust xi so that at least one frontier competence crosses the mastery
// threshold, or so that nothing outside the frontier does. A consistency pass then restores the
// invariant that every prerequisite sits strictly above its successors.
//
// The engine is pure computation: it never mutates its input vector and
// performs no I/O. It is not safe to apply concurrent updates to the same
// vector; callers serialize per learner.
package update

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/nvandessel/competence/internal/constants"
	"github.com/nvandessel/competence/internal/mastery"
	"github.com/nvandessel/competence/internal/metrics"
	"github.com/nvandessel/competence/internal/models"
)

// Trace records how one evidence item was applied.
type Trace struct {
	Evidence  models.Evidence `json:"evidence"`
	BaseXi    float64         `json:"base_xi"`
	Xi        float64         `json:"xi"`
	Frontier  []string        `json:"frontier,omitempty"`
	Secondary []string        `json:"secondary,omitempty"`
	Raised    bool            `json:"raised,omitempty"`
	Capped    bool            `json:"capped,omitempty"`
	Passes    int             `json:"passes"`
	Crossed   []string        `json:"crossed,omitempty"`
}

// Engine applies evidence using an update-level table.
type Engine struct {
	levels *LevelTable
	logger *slog.Logger
}

// NewEngine creates an engine. A nil logger discards output.
func NewEngine(levels *LevelTable, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{levels: levels, logger: logger}
}

// Levels returns the engine's update-level table.
func (e *Engine) Levels() *LevelTable { return e.levels }

// Apply returns a new vector with one evidence item applied to v.
func (e *Engine) Apply(v *mastery.Vector, ev models.Evidence) (*mastery.Vector, *Trace, error) {
	g := v.Graph()
	com, ok := g.Index(ev.CompetenceID)
	if !ok {
		return nil, nil, &models.UnknownIDError{Kind: "competence", ID: ev.CompetenceID}
	}
	level, err := e.levels.Lookup(ev.Direction, ev.Strength)
	if err != nil {
		return nil, nil, err
	}

	upgrade := ev.Direction.Upgrade()
	trace := &Trace{Evidence: ev, BaseXi: level.Xi}

	xi, err := e.adjustXi(v, com, upgrade, level, ev, trace)
	if err != nil {
		return nil, trace, err
	}
	trace.Xi = xi

	next, err := propagate(v, com, upgrade, xi, ev)
	if err != nil {
		return nil, trace, err
	}

	passes, err := restoreConsistency(next, upgrade)
	if err != nil {
		return nil, trace, err
	}
	trace.Passes = passes
	metrics.ConsistencyPasses.Observe(float64(passes))

	for i := 0; i < v.Len(); i++ {
		if v.MasteredAt(i) != next.MasteredAt(i) {
			trace.Crossed = append(trace.Crossed, g.ID(i))
		}
	}
	metrics.EvidenceApplied.WithLabelValues(string(ev.Direction), string(ev.Strength)).Inc()

	e.logger.Debug("evidence applied",
		"evidence", ev.String(),
		"xi", xi,
		"base_xi", level.Xi,
		"frontier", trace.Frontier,
		"crossed", trace.Crossed,
		"passes", passes)

	return next, trace, nil
}

// adjustXi applies the qualitative modifiers of level to its base xi.
func (e *Engine) adjustXi(v *mastery.Vector, com int, upgrade bool, level models.UpdateLevel, ev models.Evidence, trace *Trace) (float64, error) {
	xi := level.Xi
	if !level.AtLeastOneShift && !level.AtMostOneShift {
		return xi, nil
	}

	g := v.Graph()
	threshold := v.Threshold()
	front := frontier(v, com, upgrade)
	trace.Frontier = idsOf(v, front)

	if level.AtLeastOneShift && len(front) > 0 {
		limit := threshold + constants.Epsilon
		if !upgrade {
			limit = threshold - constants.Epsilon
		}
		required := math.Inf(1)
		for _, f := range front {
			r, err := RequiredXi(v, com, f, upgrade, limit)
			if err != nil {
				return 0, withEvidence(err, ev)
			}
			if reachable(r) && r < required {
				required = r
			}
		}
		switch {
		case math.IsInf(required, 1):
			metrics.XiAdjustments.WithLabelValues("unreachable").Inc()
			e.logger.Warn("no frontier competence can reach the threshold",
				"evidence", ev.String(), "frontier", trace.Frontier)
		case required > xi:
			xi = required
			trace.Raised = true
			metrics.XiAdjustments.WithLabelValues("raised").Inc()
		}
	}

	if level.AtMostOneShift {
		second := secondaryFrontier(v, com, upgrade, front)
		trace.Secondary = idsOf(v, second)

		limit := threshold - constants.Epsilon
		if !upgrade {
			limit = threshold + constants.Epsilon
		}
		bound := math.Inf(1)
		for _, s := range second {
			b, err := RequiredXi(v, com, s, upgrade, limit)
			if err != nil {
				return 0, withEvidence(err, ev)
			}
			if b > 1 && b < bound {
				bound = b
			}
		}
		if bound < xi {
			xi = bound
			trace.Capped = true
			metrics.XiAdjustments.WithLabelValues("capped").Inc()
		}

		held, err := containShift(v, com, upgrade, xi, front, ev)
		if err != nil {
			return 0, err
		}
		if held < xi {
			xi = held
			trace.Capped = true
			metrics.XiAdjustments.WithLabelValues("held").Inc()
		}
	}

	if xi < 1 {
		return 0, &models.PreconditionError{
			Competence: g.ID(com),
			Evidence:   &ev,
			Reason:     fmt.Sprintf("adjusted xi %g is below 1", xi),
		}
	}
	return xi, nil
}

// propagate applies the odds update for evidence on com with factor xi.
//
// Upgrade, with c = v[com] and D = xi*c + (1-c):
//
//	com strict prerequisite of x:  x' = xi*x / D
//	x prerequisite of com:         x' = (xi*c + x - c) / D
//
// Downgrade, with D = c + xi*(1-c):
//
//	com strict prerequisite of x:  x' = x / D
//	x prerequisite of com:         x' = (c + xi*(x - c)) / D
//
// Unrelated competences keep their value, and a factor of 1 changes nothing.
func propagate(v *mastery.Vector, com int, upgrade bool, xi float64, ev models.Evidence) (*mastery.Vector, error) {
	g := v.Graph()
	c := v.At(com)

	den := c + xi*(1-c)
	if upgrade {
		den = xi*c + (1 - c)
	}
	if math.Abs(den) < constants.DenominatorTolerance {
		return nil, &models.PreconditionError{
			Competence: g.ID(com),
			Evidence:   &ev,
			Reason:     fmt.Sprintf("near-zero propagation denominator %g", den),
		}
	}

	next := v.Clone()
	if xi == 1 {
		return next, nil
	}
	for i := 0; i < v.Len(); i++ {
		x := v.At(i)
		var p float64
		switch {
		case g.IsStrictPrerequisiteAt(com, i):
			if upgrade {
				p = xi * x / den
			} else {
				p = x / den
			}
		case g.IsPrerequisiteAt(i, com):
			if upgrade {
				p = (xi*c + x - c) / den
			} else {
				p = (c + xi*(x-c)) / den
			}
		default:
			continue
		}
		next.SetAt(i, towards(x, clampOpen(p), upgrade))
	}
	return next, nil
}

// containShift returns the largest factor, at most xi, for which the whole
// update, consistency restoration included, moves no competence outside
// front across the threshold. A factor of 1 leaves the vector unchanged,
// so the search always has a valid lower end.
func containShift(v *mastery.Vector, com int, upgrade bool, xi float64, front []int, ev models.Evidence) (float64, error) {
	if xi <= 1 {
		return xi, nil
	}
	inFront := make(map[int]bool, len(front))
	for _, f := range front {
		inFront[f] = true
	}
	holds := func(x float64) (bool, error) {
		next, err := propagate(v, com, upgrade, x, ev)
		if err != nil {
			return false, err
		}
		if _, err := restoreConsistency(next, upgrade); err != nil {
			return false, err
		}
		for i := 0; i < v.Len(); i++ {
			if !inFront[i] && v.MasteredAt(i) != next.MasteredAt(i) {
				return false, nil
			}
		}
		return true, nil
	}

	ok, err := holds(xi)
	if err != nil || ok {
		return xi, err
	}
	lo, hi := 1.0, xi
	for range constants.MaxShiftSearchSteps {
		mid := lo + (hi-lo)/2
		if mid <= lo || mid >= hi {
			break
		}
		ok, err := holds(mid)
		if err != nil {
			return 0, err
		}
		if ok {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// restoreConsistency enforces v[p] > v[s] for every strict prerequisite
// pair, iterating to a fixed point. An upgrade pass lifts prerequisites
// above their successors; a downgrade pass pushes successors below their
// prerequisites. It returns the number of passes run.
func restoreConsistency(v *mastery.Vector, upgrade bool) (int, error) {
	g := v.Graph()
	for pass := 1; pass <= constants.MaxConsistencyPasses; pass++ {
		changed := false
		g.EachStrictPair(func(p, s int) {
			vp, vs := v.At(p), v.At(s)
			if vp > vs {
				return
			}
			if upgrade {
				nv := math.Min(1-constants.Epsilon, vs+constants.Epsilon)
				if nv != vp {
					v.SetAt(p, nv)
					changed = true
				}
			} else {
				nv := math.Max(constants.Epsilon, vp-constants.Epsilon)
				if nv != vs {
					v.SetAt(s, nv)
					changed = true
				}
			}
		})
		if !changed {
			return pass, nil
		}
	}
	return constants.MaxConsistencyPasses, &models.PreconditionError{
		Reason: fmt.Sprintf("consistency restoration did not converge in %d passes", constants.MaxConsistencyPasses),
	}
}

// towards keeps rounding from moving x against the evidence.
func towards(x, p float64, upgrade bool) float64 {
	if upgrade {
		return math.Max(x, p)
	}
	return math.Min(x, p)
}

// clampOpen keeps a propagated value inside [Epsilon, 1-Epsilon].
func clampOpen(p float64) float64 {
	return math.Min(1-constants.Epsilon, math.Max(constants.Epsilon, p))
}

func idsOf(v *mastery.Vector, idx []int) []string {
	if len(idx) == 0 {
		return nil
	}
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = v.Graph().ID(j)
	}
	return out
}

// withEvidence attaches the evidence to a precondition error that lacks it.
func withEvidence(err error, ev models.Evidence) error {
	if pe, ok := err.(*models.PreconditionError); ok && pe.Evidence == nil {
		cp := *pe
		cp.Evidence = &ev
		return &cp
	}
	return err
}
