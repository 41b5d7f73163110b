package models

import (
	"fmt"
	"strings"
)

// Direction says whether a piece of evidence supports or contradicts mastery.
type Direction string

const (
	DirectionUp   Direction = "up"   // Evidence supports mastery
	DirectionDown Direction = "down" // Evidence contradicts mastery
)

// Upgrade reports whether d raises mastery estimates.
func (d Direction) Upgrade() bool { return d == DirectionUp }

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// DirectionFor maps a boolean success signal to a Direction.
func DirectionFor(success bool) Direction {
	if success {
		return DirectionUp
	}
	return DirectionDown
}

// Strength is how strongly a piece of evidence should move the estimate.
type Strength string

const (
	StrengthLow    Strength = "low"
	StrengthMedium Strength = "medium"
	StrengthHigh   Strength = "high"
)

// Valid reports whether s is a known strength.
func (s Strength) Valid() bool {
	switch s {
	case StrengthLow, StrengthMedium, StrengthHigh:
		return true
	default:
		return false
	}
}

// AllDirections lists every direction in table order.
var AllDirections = []Direction{DirectionUp, DirectionDown}

// AllStrengths lists every strength in ascending order.
var AllStrengths = []Strength{StrengthLow, StrengthMedium, StrengthHigh}

// ParseDirection parses "up"/"down" and the aliases used by the CLI
// ("success"/"failure", "+"/"-").
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "success", "pass", "+":
		return DirectionUp, nil
	case "down", "failure", "fail", "-":
		return DirectionDown, nil
	default:
		return "", &ConfigError{Field: "direction", Reason: fmt.Sprintf("unknown direction %q", s)}
	}
}

// ParseStrength parses a case-insensitive strength name.
func ParseStrength(s string) (Strength, error) {
	st := Strength(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", &ConfigError{Field: "strength", Reason: fmt.Sprintf("unknown strength %q", s)}
	}
	return st, nil
}

// Evidence is a single observation about one competence.
type Evidence struct {
	CompetenceID string    `json:"competence_id" yaml:"competence_id"`
	Direction    Direction `json:"direction" yaml:"direction"`
	Strength     Strength  `json:"strength" yaml:"strength"`
}

// String renders evidence as "C4:down:medium".
func (e Evidence) String() string {
	return fmt.Sprintf("%s:%s:%s", e.CompetenceID, e.Direction, e.Strength)
}

// ParseEvidence parses the "id:direction[:strength]" form used on the
// command line. Strength defaults to def when omitted.
func ParseEvidence(s string, def Strength) (Evidence, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" {
		return Evidence{}, &ConfigError{Field: "evidence", Reason: fmt.Sprintf("expected id:direction[:strength], got %q", s)}
	}
	dir, err := ParseDirection(parts[1])
	if err != nil {
		return Evidence{}, err
	}
	strength := def
	if len(parts) == 3 {
		strength, err = ParseStrength(parts[2])
		if err != nil {
			return Evidence{}, err
		}
	}
	return Evidence{CompetenceID: parts[0], Direction: dir, Strength: strength}, nil
}

// UpdateLevel configures how one (direction, strength) pair moves the
// mastery vector.
type UpdateLevel struct {
	Direction Direction `json:"direction" yaml:"direction" toml:"direction" validate:"required,oneof=up down"`
	Strength  Strength  `json:"strength" yaml:"strength" toml:"strength" validate:"required,oneof=low medium high"`

	// Xi is the multiplicative update factor. Must exceed 1.
	Xi float64 `json:"xi" yaml:"xi" toml:"xi" validate:"gt=1"`

	// AtLeastOneShift raises Xi so that at least one frontier competence
	// crosses the mastery threshold.
	AtLeastOneShift bool `json:"at_least_one_shift" yaml:"at_least_one_shift" toml:"at_least_one_shift"`

	// AtMostOneShift caps Xi so that no competence beyond the frontier
	// crosses the mastery threshold.
	AtMostOneShift bool `json:"at_most_one_shift" yaml:"at_most_one_shift" toml:"at_most_one_shift"`
}
