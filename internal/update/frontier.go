package update

import (
	"github.com/nvandessel/competence/internal/mastery"
)

// frontier returns the competences that would be the first to cross the
// mastery threshold if evidence on com moved the vector in the given
// direction.
//
// Upgrade, com not mastered: the unmastered prerequisites of com (com
// included) whose own prerequisites are all mastered.
// Upgrade, com mastered: the unmastered descendants of com, reached through
// mastered ones, whose prerequisites are all mastered.
// Downgrades mirror both cases with prerequisites and successors swapped.
func frontier(v *mastery.Vector, com int, upgrade bool) []int {
	g := v.Graph()
	mastered := v.MasteredAt

	visited := map[int]bool{com: true}
	queue := []int{com}
	var out []int

	switch {
	case upgrade && !mastered(com):
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			open := false
			for _, p := range g.PrerequisitesAt(cur) {
				if mastered(p) {
					continue
				}
				open = true
				if !visited[p] {
					visited[p] = true
					queue = append(queue, p)
				}
			}
			if !open {
				out = append(out, cur)
			}
		}

	case upgrade:
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, s := range g.SuccessorsAt(cur) {
				if visited[s] {
					continue
				}
				visited[s] = true
				if mastered(s) {
					queue = append(queue, s)
				} else if allMastered(v, g.PrerequisitesAt(s)) {
					out = append(out, s)
				}
			}
		}

	case mastered(com):
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			open := false
			for _, s := range g.SuccessorsAt(cur) {
				if !mastered(s) {
					continue
				}
				open = true
				if !visited[s] {
					visited[s] = true
					queue = append(queue, s)
				}
			}
			if !open {
				out = append(out, cur)
			}
		}

	default:
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, p := range g.PrerequisitesAt(cur) {
				if visited[p] {
					continue
				}
				visited[p] = true
				if !mastered(p) {
					queue = append(queue, p)
				} else if noneMastered(v, g.SuccessorsAt(p)) {
					out = append(out, p)
				}
			}
		}
	}
	return out
}

// secondaryFrontier returns the competences an at-most-one update must hold
// back: every competence ordered with respect to com, com included, that is
// outside the frontier and still on the near side of the threshold
// (unmastered for an upgrade, mastered for a downgrade).
func secondaryFrontier(v *mastery.Vector, com int, upgrade bool, front []int) []int {
	g := v.Graph()
	inFront := make(map[int]bool, len(front))
	for _, f := range front {
		inFront[f] = true
	}

	var out []int
	for i := 0; i < v.Len(); i++ {
		if inFront[i] || v.MasteredAt(i) == upgrade || !g.Comparable(i, com) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func allMastered(v *mastery.Vector, idx []int) bool {
	for _, i := range idx {
		if !v.MasteredAt(i) {
			return false
		}
	}
	return true
}

func noneMastered(v *mastery.Vector, idx []int) bool {
	for _, i := range idx {
		if v.MasteredAt(i) {
			return false
		}
	}
	return true
}
