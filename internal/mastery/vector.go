// Package mastery holds a learner's mastery estimate: one probability in
// (0, 1) per competence of a graph, and the threshold above which a
// competence counts as mastered.
package mastery

import (
	"fmt"
	"sort"

	"github.com/nvandessel/competence/internal/competence"
	"github.com/nvandessel/competence/internal/constants"
	"github.com/nvandessel/competence/internal/models"
)

// Vector maps every competence of a graph to a mastery probability.
// It is not safe for concurrent mutation.
type Vector struct {
	graph     *competence.Graph
	values    []float64
	threshold float64
}

// Option configures a Vector.
type Option func(*Vector)

// WithThreshold sets the transition probability used by Mastered.
func WithThreshold(t float64) Option {
	return func(v *Vector) { v.threshold = t }
}

// Initial computes the starting vector for g. With N competences, up(c) the
// number of competences c is a strict prerequisite of and down(c) the number
// of strict prerequisites of c:
//
//	value(c) = (N + up(c) - down(c) + 1) / (2N + 2)
//
// Foundational competences start above 0.5, advanced ones below.
func Initial(g *competence.Graph, opts ...Option) *Vector {
	v := &Vector{
		graph:     g,
		values:    make([]float64, g.Len()),
		threshold: constants.DefaultTransitionProbability,
	}
	for _, opt := range opts {
		opt(v)
	}

	n := float64(g.Len())
	for i := range v.values {
		up := float64(g.CountDescendants(i))
		down := float64(g.CountAncestors(i))
		v.values[i] = (n + up - down + 1) / (2*n + 2)
	}
	return v
}

// FromMap restores a vector from persisted values. Competences missing from
// m keep their initial value; ids unknown to g are rejected. Values are
// clamped into [Epsilon, 1-Epsilon].
func FromMap(g *competence.Graph, m map[string]float64, opts ...Option) (*Vector, error) {
	v := Initial(g, opts...)
	for id, val := range m {
		i, ok := g.Index(id)
		if !ok {
			return nil, &models.UnknownIDError{Kind: "competence", ID: id}
		}
		if val != val {
			return nil, &models.ConfigError{Field: "mastery", Reason: fmt.Sprintf("%s is NaN", id)}
		}
		v.values[i] = clamp(val)
	}
	return v, nil
}

// Graph returns the graph the vector is defined over.
func (v *Vector) Graph() *competence.Graph { return v.graph }

// Threshold returns the transition probability.
func (v *Vector) Threshold() float64 { return v.threshold }

// Len returns the number of entries, equal to the graph size.
func (v *Vector) Len() int { return len(v.values) }

// Get returns the probability for id.
func (v *Vector) Get(id string) (float64, bool) {
	i, ok := v.graph.Index(id)
	if !ok {
		return 0, false
	}
	return v.values[i], true
}

// Set assigns the probability for id, clamped into the open interval.
func (v *Vector) Set(id string, p float64) error {
	i, ok := v.graph.Index(id)
	if !ok {
		return &models.UnknownIDError{Kind: "competence", ID: id}
	}
	v.values[i] = clamp(p)
	return nil
}

// At returns the value at graph index i.
func (v *Vector) At(i int) float64 { return v.values[i] }

// SetAt assigns the value at graph index i without clamping.
func (v *Vector) SetAt(i int, p float64) { v.values[i] = p }

// Mastered reports whether id is at or above the threshold.
func (v *Vector) Mastered(id string) bool {
	i, ok := v.graph.Index(id)
	return ok && v.MasteredAt(i)
}

// MasteredAt is the index form of Mastered.
func (v *Vector) MasteredAt(i int) bool { return v.values[i] >= v.threshold }

// MasteredSet returns the ids of all mastered competences in graph order.
func (v *Vector) MasteredSet() map[string]bool {
	out := make(map[string]bool)
	for i, p := range v.values {
		if p >= v.threshold {
			out[v.graph.ID(i)] = true
		}
	}
	return out
}

// Clone returns an independent copy.
func (v *Vector) Clone() *Vector {
	vals := make([]float64, len(v.values))
	copy(vals, v.values)
	return &Vector{graph: v.graph, values: vals, threshold: v.threshold}
}

// Map returns a fresh id -> probability map.
func (v *Vector) Map() map[string]float64 {
	out := make(map[string]float64, len(v.values))
	for i, p := range v.values {
		out[v.graph.ID(i)] = p
	}
	return out
}

// Equal reports whether both vectors hold bit-identical values over the
// same graph.
func (v *Vector) Equal(o *Vector) bool {
	if v.graph != o.graph || len(v.values) != len(o.values) {
		return false
	}
	for i := range v.values {
		if v.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

// Entry is one competence with its probability, for display.
type Entry struct {
	ID          string  `json:"id"`
	Title       string  `json:"title,omitempty"`
	Probability float64 `json:"probability"`
	Mastered    bool    `json:"mastered"`
}

// Ranked returns every competence sorted by probability descending, ties in
// graph order.
func (v *Vector) Ranked() []Entry {
	out := make([]Entry, len(v.values))
	for i, p := range v.values {
		id := v.graph.ID(i)
		out[i] = Entry{ID: id, Title: v.graph.Title(id), Probability: p, Mastered: p >= v.threshold}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probability > out[j].Probability
	})
	return out
}

// Consistent reports whether every strict prerequisite holds a strictly
// higher probability than its successors, allowing tol of slack. It returns
// the first violating pair when not.
func (v *Vector) Consistent(tol float64) (ok bool, prereq, succ string) {
	ok = true
	v.graph.EachStrictPair(func(p, s int) {
		if !ok {
			return
		}
		if v.values[p]+tol <= v.values[s] {
			ok = false
			prereq, succ = v.graph.ID(p), v.graph.ID(s)
		}
	})
	return ok, prereq, succ
}

func clamp(p float64) float64 {
	if p < constants.Epsilon {
		return constants.Epsilon
	}
	if p > 1-constants.Epsilon {
		return 1 - constants.Epsilon
	}
	return p
}
