package domain

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/competence/internal/constants"
	"github.com/nvandessel/competence/internal/models"
)

// Sample returns a small arithmetic domain with ten competences and
// branching prerequisites. `competence init` writes it as a starting point.
func Sample() *models.DomainDescription {
	return &models.DomainDescription{
		Name: "arithmetic",
		Competences: []models.CompetenceDef{
			{ID: "C1", Title: "Count to twenty"},
			{ID: "C2", Title: "Compare quantities"},
			{ID: "C3", Title: "Recognise digits"},
			{ID: "C4", Title: "Place value"},
			{ID: "C5", Title: "Add small numbers"},
			{ID: "C6", Title: "Read two-digit numbers"},
			{ID: "C7", Title: "Decompose into tens and units"},
			{ID: "C8", Title: "Written addition"},
			{ID: "C9", Title: "Addition with carry"},
			{ID: "C10", Title: "Subtraction with borrow"},
		},
		Prerequisites: []models.PrerequisiteEdge{
			{CompetenceID: "C5", Requires: []string{"C1", "C2"}},
			{CompetenceID: "C6", Requires: []string{"C3"}},
			{CompetenceID: "C7", Requires: []string{"C4"}},
			{CompetenceID: "C8", Requires: []string{"C6", "C7"}},
			{CompetenceID: "C9", Requires: []string{"C5", "C8"}},
			{CompetenceID: "C10", Requires: []string{"C9"}},
		},
		Units: []models.UnitDef{
			{ID: "counting-game", Title: "Count the apples", Requires: []string{"C1"}},
			{ID: "bigger-pile", Title: "Which pile is bigger?", Requires: []string{"C1", "C2"}},
			{ID: "digit-match", Title: "Match the digits", Requires: []string{"C3"}},
			{ID: "tens-bundles", Title: "Bundle the sticks", Requires: []string{"C4", "C7"}},
			{ID: "first-sums", Title: "First sums", Requires: []string{"C5"}},
			{ID: "column-sums", Title: "Column sums", Requires: []string{"C6", "C8"}},
			{ID: "carry-race", Title: "Carry race", Requires: []string{"C9"}},
			{ID: "borrow-quest", Title: "Borrow quest", Requires: []string{"C10"}},
		},
		UpdateLevels: DefaultLevels(),
	}
}

// DefaultLevels is the update-level table used by Sample: the default xi per
// strength, with the at-least-one guarantee on high-strength evidence.
func DefaultLevels() []models.UpdateLevel {
	xi := map[models.Strength]float64{
		models.StrengthLow:    constants.DefaultXiLow,
		models.StrengthMedium: constants.DefaultXiMedium,
		models.StrengthHigh:   constants.DefaultXiHigh,
	}
	rows := make([]models.UpdateLevel, 0, 6)
	for _, d := range models.AllDirections {
		for _, s := range models.AllStrengths {
			rows = append(rows, models.UpdateLevel{
				Direction:       d,
				Strength:        s,
				Xi:              xi[s],
				AtLeastOneShift: s == models.StrengthHigh,
				AtMostOneShift:  s != models.StrengthHigh,
			})
		}
	}
	return rows
}

// WriteSample writes the sample domain to path unless a file already exists
// there. It reports whether a file was written.
func WriteSample(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	format, err := FormatFor(path)
	if err != nil {
		return false, err
	}
	data, err := Marshal(Sample(), format)
	if err != nil {
		return false, fmt.Errorf("encoding sample domain: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return false, fmt.Errorf("creating domain directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return false, fmt.Errorf("writing sample domain: %w", err)
	}
	return true, nil
}
