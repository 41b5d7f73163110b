package update

import (
	"fmt"
	"math"

	"github.com/nvandessel/competence/internal/models"
)

type levelKey struct {
	dir      models.Direction
	strength models.Strength
}

// LevelTable maps every (direction, strength) pair to its update level.
// It is immutable once built.
type LevelTable struct {
	levels map[levelKey]models.UpdateLevel
}

// NewLevelTable validates rows and builds a table. All six
// (direction, strength) combinations must be present exactly once.
func NewLevelTable(rows []models.UpdateLevel) (*LevelTable, error) {
	if len(rows) == 0 {
		return nil, &models.ConfigError{Field: "update_levels", Reason: "update-level table is missing"}
	}

	t := &LevelTable{levels: make(map[levelKey]models.UpdateLevel, len(rows))}
	for _, r := range rows {
		if !r.Direction.Valid() {
			return nil, &models.ConfigError{Field: "update_levels", Reason: fmt.Sprintf("invalid direction %q", r.Direction)}
		}
		if !r.Strength.Valid() {
			return nil, &models.ConfigError{Field: "update_levels", Reason: fmt.Sprintf("invalid strength %q", r.Strength)}
		}
		if math.IsNaN(r.Xi) || math.IsInf(r.Xi, 0) || r.Xi <= 1 {
			return nil, &models.ConfigError{Field: "update_levels", Reason: fmt.Sprintf("xi for %s/%s must be a finite number above 1, got %v", r.Direction, r.Strength, r.Xi)}
		}
		k := levelKey{r.Direction, r.Strength}
		if _, dup := t.levels[k]; dup {
			return nil, &models.ConfigError{Field: "update_levels", Reason: fmt.Sprintf("duplicate row for %s/%s", r.Direction, r.Strength)}
		}
		t.levels[k] = r
	}

	for _, d := range models.AllDirections {
		for _, s := range models.AllStrengths {
			if _, ok := t.levels[levelKey{d, s}]; !ok {
				return nil, &models.ConfigError{Field: "update_levels", Reason: fmt.Sprintf("missing row for %s/%s", d, s)}
			}
		}
	}
	return t, nil
}

// Lookup returns the level for a direction and strength.
func (t *LevelTable) Lookup(d models.Direction, s models.Strength) (models.UpdateLevel, error) {
	l, ok := t.levels[levelKey{d, s}]
	if !ok {
		return models.UpdateLevel{}, &models.ConfigError{Field: "update_levels", Reason: fmt.Sprintf("no level for %s/%s", d, s)}
	}
	return l, nil
}

// Rows returns the table in canonical order (up before down, low to high).
func (t *LevelTable) Rows() []models.UpdateLevel {
	out := make([]models.UpdateLevel, 0, len(t.levels))
	for _, d := range models.AllDirections {
		for _, s := range models.AllStrengths {
			out = append(out, t.levels[levelKey{d, s}])
		}
	}
	return out
}

// UniformLevels returns six rows sharing one xi and no qualitative
// modifiers.
func UniformLevels(xi float64) []models.UpdateLevel {
	rows := make([]models.UpdateLevel, 0, 6)
	for _, d := range models.AllDirections {
		for _, s := range models.AllStrengths {
			rows = append(rows, models.UpdateLevel{Direction: d, Strength: s, Xi: xi})
		}
	}
	return rows
}
