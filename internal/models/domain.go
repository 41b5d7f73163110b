package models

import "time"

// CompetenceDef is one competence as read from a domain description.
type CompetenceDef struct {
	ID    string `json:"id" yaml:"id" toml:"id" validate:"required"`
	Title string `json:"title,omitempty" yaml:"title,omitempty" toml:"title"`
}

// PrerequisiteEdge lists the direct prerequisites of one competence.
type PrerequisiteEdge struct {
	CompetenceID string   `json:"competence" yaml:"competence" toml:"competence" validate:"required"`
	Requires     []string `json:"requires" yaml:"requires" toml:"requires" validate:"dive,required"`
}

// UnitDef is one content unit (game situation) and the competences it needs.
type UnitDef struct {
	ID       string   `json:"id" yaml:"id" toml:"id" validate:"required"`
	Title    string   `json:"title,omitempty" yaml:"title,omitempty" toml:"title"`
	Requires []string `json:"requires" yaml:"requires" toml:"requires" validate:"dive,required"`
}

// DomainDescription is the already-parsed description of one learning domain.
// The engine never reads it from storage itself; providers in
// internal/domain hand it over.
type DomainDescription struct {
	Name          string             `json:"name,omitempty" yaml:"name,omitempty" toml:"name"`
	Competences   []CompetenceDef    `json:"competences" yaml:"competences" toml:"competences" validate:"required,min=1,dive"`
	Prerequisites []PrerequisiteEdge `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty" toml:"prerequisites" validate:"dive"`
	Units         []UnitDef          `json:"units,omitempty" yaml:"units,omitempty" toml:"units" validate:"dive"`
	UpdateLevels  []UpdateLevel      `json:"update_levels" yaml:"update_levels" toml:"update_levels" validate:"required,dive"`
}

// LearnerState is the persisted form of one learner's progress in one domain.
type LearnerState struct {
	DomainID    string             `json:"domain_id"`
	LearnerID   string             `json:"learner_id"`
	Mastery     map[string]float64 `json:"mastery"`
	PlayCounts  map[string]int     `json:"play_counts,omitempty"`
	CurrentUnit string             `json:"current_unit,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// StateKey builds the store key for a learner in a domain.
func StateKey(domainID, learnerID string) string {
	return domainID + "/" + learnerID
}
