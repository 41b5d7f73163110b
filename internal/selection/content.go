// Package selection picks the next content unit for a learner from the
// competences each unit requires and the learner's current mastery.
package selection

import (
	"fmt"

	"github.com/nvandessel/competence/internal/competence"
	"github.com/nvandessel/competence/internal/models"
)

// Unit is a piece of content and the competences it exercises.
type Unit struct {
	ID       string   `json:"id"`
	Title    string   `json:"title,omitempty"`
	Requires []string `json:"requires"`
}

// ContentGraph holds the content units of a domain. Every unit is a
// successor of every unit, itself included, so selection always considers
// the whole catalogue in declaration order.
type ContentGraph struct {
	units []Unit
	index map[string]int
}

// NewContentGraph builds a content graph over g. A unit with an empty id, a
// duplicate id or a required competence unknown to g is a configuration
// error.
func NewContentGraph(defs []models.UnitDef, g *competence.Graph) (*ContentGraph, error) {
	cg := &ContentGraph{
		units: make([]Unit, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, &models.ConfigError{Field: "units", Reason: "unit with empty id"}
		}
		if _, dup := cg.index[d.ID]; dup {
			return nil, &models.ConfigError{Field: "units", Reason: fmt.Sprintf("duplicate unit %q", d.ID)}
		}
		req := make([]string, 0, len(d.Requires))
		seen := make(map[string]bool, len(d.Requires))
		for _, c := range d.Requires {
			if !g.Has(c) {
				return nil, &models.ConfigError{Field: "units", Reason: fmt.Sprintf("unit %q requires unknown competence %q", d.ID, c)}
			}
			if seen[c] {
				continue
			}
			seen[c] = true
			req = append(req, c)
		}
		cg.index[d.ID] = len(cg.units)
		cg.units = append(cg.units, Unit{ID: d.ID, Title: d.Title, Requires: req})
	}
	return cg, nil
}

// Len returns the number of units.
func (cg *ContentGraph) Len() int { return len(cg.units) }

// Unit looks up a unit by id.
func (cg *ContentGraph) Unit(id string) (Unit, bool) {
	i, ok := cg.index[id]
	if !ok {
		return Unit{}, false
	}
	return cg.units[i], true
}

// Units returns every unit in declaration order.
func (cg *ContentGraph) Units() []Unit {
	out := make([]Unit, len(cg.units))
	copy(out, cg.units)
	return out
}

// Successors returns the candidate units that may follow current. The
// content graph is complete: every unit, current included, succeeds every
// unit, so current never narrows the result. An empty current means no unit
// has been played yet.
func (cg *ContentGraph) Successors(current string) []Unit {
	return cg.Units()
}
