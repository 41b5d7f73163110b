package selection

import (
	"io"
	"log/slog"

	"github.com/nvandessel/competence/internal/mastery"
	"github.com/nvandessel/competence/internal/metrics"
)

// Candidate is a unit considered for selection.
type Candidate struct {
	Unit  Unit   `json:"unit"`
	Gap   int    `json:"gap"`
	Plays int    `json:"plays"`
	Gated string `json:"gated,omitempty"` // blocking competence, if discarded
}

// Selector chooses the next unit.
type Selector struct {
	logger *slog.Logger
}

// NewSelector creates a selector. A nil logger discards output.
func NewSelector(logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Selector{logger: logger}
}

// Next picks the successor of current with the fewest unmastered required
// competences, skipping any unit that needs a competence the learner cannot
// acquire yet (unmastered, with an unmastered prerequisite). Ties go to the
// least played unit, then to the first one declared.
//
// On success the unit is recorded in h. ok is false when every candidate was
// gated; h is left untouched.
func (s *Selector) Next(current string, v *mastery.Vector, cg *ContentGraph, h *History) (id string, ok bool) {
	cands := s.Evaluate(current, v, cg, h)

	best := -1
	for i, c := range cands {
		if c.Gated != "" {
			continue
		}
		if best < 0 || c.Gap < cands[best].Gap || (c.Gap == cands[best].Gap && c.Plays < cands[best].Plays) {
			best = i
		}
	}
	if best < 0 {
		metrics.Selections.WithLabelValues("exhausted").Inc()
		s.logger.Warn("no content unit is reachable", "current", current, "candidates", len(cands))
		return "", false
	}

	id = cands[best].Unit.ID
	h.Record(id)
	metrics.Selections.WithLabelValues("selected").Inc()
	s.logger.Debug("unit selected", "unit", id, "gap", cands[best].Gap, "plays", h.Count(id))
	return id, true
}

// Evaluate scores every successor of current without selecting one.
func (s *Selector) Evaluate(current string, v *mastery.Vector, cg *ContentGraph, h *History) []Candidate {
	g := v.Graph()
	succ := cg.Successors(current)
	out := make([]Candidate, 0, len(succ))
	for _, u := range succ {
		c := Candidate{Unit: u, Plays: h.Count(u.ID)}
		for _, req := range u.Requires {
			if v.Mastered(req) {
				continue
			}
			c.Gap++
			if c.Gated == "" && !prerequisitesMastered(v, g.Prerequisites(req)) {
				c.Gated = req
			}
		}
		out = append(out, c)
	}
	return out
}

func prerequisitesMastered(v *mastery.Vector, ids []string) bool {
	for _, id := range ids {
		if !v.Mastered(id) {
			return false
		}
	}
	return true
}
