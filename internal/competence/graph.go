// Package competence provides the immutable prerequisite graph of a learning
// domain. The transitive closure is computed once at construction, so
// reachability queries are constant time.
package competence

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nvandessel/competence/internal/models"
)

// Competence is a read-only view of one node in the graph.
type Competence struct {
	ID            string   `json:"id"`
	Title         string   `json:"title,omitempty"`
	Prerequisites []string `json:"prerequisites,omitempty"`
	Successors    []string `json:"successors,omitempty"`
}

type node struct {
	id      string
	title   string
	prereqs []int
	succs   []int
}

// Graph is a directed acyclic graph of competences linked by prerequisite
// edges. It is safe for concurrent reads; it never changes after NewGraph.
type Graph struct {
	nodes []node
	index map[string]int

	// ancestors[i] holds the strict transitive prerequisites of i;
	// descendants[i] holds every competence i is a strict prerequisite of.
	ancestors   []bitset
	descendants []bitset

	domainID string
}

// NewGraph builds a graph from competence definitions and prerequisite edges.
// Competence order is preserved. A dangling or duplicate id is a
// configuration error; a prerequisite cycle is a precondition violation.
func NewGraph(defs []models.CompetenceDef, edges []models.PrerequisiteEdge) (*Graph, error) {
	g := &Graph{
		nodes: make([]node, 0, len(defs)),
		index: make(map[string]int, len(defs)),
	}

	for _, d := range defs {
		if strings.TrimSpace(d.ID) == "" {
			return nil, &models.ConfigError{Field: "competences", Reason: "competence id is required"}
		}
		if _, dup := g.index[d.ID]; dup {
			return nil, &models.ConfigError{Field: "competences", Reason: fmt.Sprintf("duplicate competence id %q", d.ID)}
		}
		g.index[d.ID] = len(g.nodes)
		g.nodes = append(g.nodes, node{id: d.ID, title: d.Title})
	}

	for _, e := range edges {
		ci, ok := g.index[e.CompetenceID]
		if !ok {
			return nil, &models.ConfigError{Field: "prerequisites", Reason: fmt.Sprintf("edge for unknown competence %q", e.CompetenceID)}
		}
		for _, p := range e.Requires {
			pi, ok := g.index[p]
			if !ok {
				return nil, &models.ConfigError{Field: "prerequisites", Reason: fmt.Sprintf("%s requires unknown competence %q", e.CompetenceID, p)}
			}
			g.addPrerequisite(ci, pi)
		}
	}

	if err := g.buildClosure(); err != nil {
		return nil, err
	}

	ids := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.id
	}
	sort.Strings(ids)
	g.domainID = strings.Join(ids, "")

	return g, nil
}

// addPrerequisite records p as a direct prerequisite of c and c as a direct
// successor of p. Repeated edges are ignored.
func (g *Graph) addPrerequisite(c, p int) {
	for _, existing := range g.nodes[c].prereqs {
		if existing == p {
			return
		}
	}
	g.nodes[c].prereqs = append(g.nodes[c].prereqs, p)
	g.nodes[p].succs = append(g.nodes[p].succs, c)
}

// buildClosure computes ancestor and descendant bitsets in topological order.
func (g *Graph) buildClosure() error {
	n := len(g.nodes)
	g.ancestors = make([]bitset, n)
	g.descendants = make([]bitset, n)
	for i := 0; i < n; i++ {
		g.ancestors[i] = newBitset(n)
		g.descendants[i] = newBitset(n)
	}

	// Kahn's algorithm over prerequisite edges.
	indegree := make([]int, n)
	for i := range g.nodes {
		indegree[i] = len(g.nodes[i].prereqs)
	}
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]int, 0, n)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, s := range g.nodes[cur].succs {
			indegree[s]--
			if indegree[s] == 0 {
				queue = append(queue, s)
			}
		}
	}
	if len(order) != n {
		var cyclic []string
		for i := 0; i < n; i++ {
			if indegree[i] > 0 {
				cyclic = append(cyclic, g.nodes[i].id)
			}
		}
		return &models.PreconditionError{
			Competence: cyclic[0],
			Reason:     fmt.Sprintf("prerequisite cycle through %s", strings.Join(cyclic, ", ")),
		}
	}

	for _, c := range order {
		for _, p := range g.nodes[c].prereqs {
			g.ancestors[c].set(p)
			g.ancestors[c].union(g.ancestors[p])
		}
	}
	for c := 0; c < n; c++ {
		g.ancestors[c].each(func(a int) {
			g.descendants[a].set(c)
		})
	}
	return nil
}

// Len returns the number of competences.
func (g *Graph) Len() int { return len(g.nodes) }

// DomainID returns the canonical domain identifier: every competence id,
// sorted lexicographically and concatenated. It keys persisted state.
func (g *Graph) DomainID() string { return g.domainID }

// IDs returns competence ids in construction order.
func (g *Graph) IDs() []string {
	ids := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		ids[i] = n.id
	}
	return ids
}

// Has reports whether id names a competence in the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Index returns the position of id in construction order.
func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// ID returns the competence id at position i.
func (g *Graph) ID(i int) string { return g.nodes[i].id }

// Title returns the human title of a competence, or "" if unknown.
func (g *Graph) Title(id string) string {
	if i, ok := g.index[id]; ok {
		return g.nodes[i].title
	}
	return ""
}

// Competence returns a copy of the node for id.
func (g *Graph) Competence(id string) (Competence, bool) {
	i, ok := g.index[id]
	if !ok {
		return Competence{}, false
	}
	return Competence{
		ID:            g.nodes[i].id,
		Title:         g.nodes[i].title,
		Prerequisites: g.idsOf(g.nodes[i].prereqs),
		Successors:    g.idsOf(g.nodes[i].succs),
	}, true
}

// Prerequisites returns the direct prerequisites of id.
func (g *Graph) Prerequisites(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.idsOf(g.nodes[i].prereqs)
}

// Successors returns the competences that list id as a direct prerequisite.
func (g *Graph) Successors(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.idsOf(g.nodes[i].succs)
}

// IsPrerequisiteOf reports whether a is a direct or indirect prerequisite
// of b. The relation is reflexive: every competence is its own prerequisite.
func (g *Graph) IsPrerequisiteOf(a, b string) bool {
	ai, ok := g.index[a]
	if !ok {
		return false
	}
	bi, ok := g.index[b]
	if !ok {
		return false
	}
	return g.IsPrerequisiteAt(ai, bi)
}

// IsStrictPrerequisiteOf is IsPrerequisiteOf without reflexivity.
func (g *Graph) IsStrictPrerequisiteOf(a, b string) bool {
	ai, ok := g.index[a]
	if !ok {
		return false
	}
	bi, ok := g.index[b]
	if !ok {
		return false
	}
	return g.IsStrictPrerequisiteAt(ai, bi)
}

// IsPrerequisiteAt is the index form of IsPrerequisiteOf.
func (g *Graph) IsPrerequisiteAt(a, b int) bool {
	return a == b || g.ancestors[b].has(a)
}

// IsStrictPrerequisiteAt is the index form of IsStrictPrerequisiteOf.
func (g *Graph) IsStrictPrerequisiteAt(a, b int) bool {
	return a != b && g.ancestors[b].has(a)
}

// Comparable reports whether a and b are ordered by the prerequisite
// relation in either direction.
func (g *Graph) Comparable(a, b int) bool {
	return g.IsPrerequisiteAt(a, b) || g.IsPrerequisiteAt(b, a)
}

// PrerequisitesAt returns the direct prerequisite indices of i.
// The returned slice must not be modified.
func (g *Graph) PrerequisitesAt(i int) []int { return g.nodes[i].prereqs }

// SuccessorsAt returns the direct successor indices of i.
// The returned slice must not be modified.
func (g *Graph) SuccessorsAt(i int) []int { return g.nodes[i].succs }

// CountAncestors returns how many competences are strict prerequisites of i.
func (g *Graph) CountAncestors(i int) int { return g.ancestors[i].count() }

// CountDescendants returns how many competences i is a strict prerequisite of.
func (g *Graph) CountDescendants(i int) int { return g.descendants[i].count() }

// EachStrictPair calls fn for every (p, s) with p a strict prerequisite of s.
func (g *Graph) EachStrictPair(fn func(p, s int)) {
	for s := range g.nodes {
		g.ancestors[s].each(func(p int) {
			fn(p, s)
		})
	}
}

func (g *Graph) idsOf(idx []int) []string {
	if len(idx) == 0 {
		return nil
	}
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = g.nodes[j].id
	}
	return out
}
