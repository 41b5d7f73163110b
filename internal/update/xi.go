package update

import (
	"fmt"
	"math"

	"github.com/nvandessel/competence/internal/constants"
	"github.com/nvandessel/competence/internal/mastery"
	"github.com/nvandessel/competence/internal/models"
)

// RequiredXi returns the xi that moves the observer competence to exactly
// limit when evidence is applied to com. It inverts the propagation
// formulas of Apply:
//
//	observer is a prerequisite of com (or com itself):
//	  up:   xi = (limit(1-c) - x + c) / (c(1-limit))
//	  down: xi = c(1-limit) / (limit(1-c) - x + c)
//	com is a strict prerequisite of observer:
//	  up:   xi = limit(1-c) / (x - limit*c)
//	  down: xi = (x - limit*c) / (limit(1-c))
//
// with c = v[com] and x = v[observer]. A non-positive result means the limit
// is unreachable for any xi. A near-zero denominator is a precondition
// violation, as is an observer unrelated to com.
func RequiredXi(v *mastery.Vector, com, observer int, upgrade bool, limit float64) (float64, error) {
	g := v.Graph()
	c := v.At(com)
	x := v.At(observer)

	var num, den float64
	switch {
	case g.IsPrerequisiteAt(observer, com):
		if upgrade {
			num = limit*(1-c) - x + c
			den = c * (1 - limit)
		} else {
			num = c * (1 - limit)
			den = limit*(1-c) - x + c
		}
	case g.IsStrictPrerequisiteAt(com, observer):
		if upgrade {
			num = limit * (1 - c)
			den = x - limit*c
		} else {
			num = x - limit*c
			den = limit * (1 - c)
		}
	default:
		return 0, &models.PreconditionError{
			Competence: g.ID(observer),
			Reason:     fmt.Sprintf("not ordered with respect to %s", g.ID(com)),
		}
	}

	if math.Abs(den) < constants.DenominatorTolerance {
		return 0, &models.PreconditionError{
			Competence: g.ID(observer),
			Reason:     fmt.Sprintf("near-zero denominator %g inverting xi toward %g", den, limit),
		}
	}
	return num / den, nil
}

// reachable reports whether xi is a usable inverse result.
func reachable(xi float64) bool {
	return xi > 0 && !math.IsInf(xi, 0) && !math.IsNaN(xi)
}
