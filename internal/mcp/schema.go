package mcp

import (
	"github.com/nvandessel/competence/internal/mastery"
	"github.com/nvandessel/competence/internal/selection"
)

// EvidenceItem is one observation about one competence.
type EvidenceItem struct {
	CompetenceID string `json:"competence_id" jsonschema:"Competence the evidence is about"`
	Direction    string `json:"direction" jsonschema:"up (supports mastery) or down (contradicts it)"`
	Strength     string `json:"strength,omitempty" jsonschema:"low, medium or high (default: medium)"`
}

// EvidenceInput defines the input for the competence_evidence tool.
type EvidenceInput struct {
	Items []EvidenceItem `json:"items" jsonschema:"Evidence items applied together as one batch"`
}

// RejectedItem is an evidence item that could not be applied.
type RejectedItem struct {
	Evidence string `json:"evidence"`
	Reason   string `json:"reason"`
}

// UpdateOutput is returned by the tools that change the mastery vector.
type UpdateOutput struct {
	Applied  int             `json:"applied" jsonschema:"Number of evidence items applied"`
	Rejected []RejectedItem  `json:"rejected,omitempty" jsonschema:"Items skipped because they name unknown competences or levels"`
	Crossed  []string        `json:"crossed,omitempty" jsonschema:"Competences whose mastered status changed"`
	Mastery  []mastery.Entry `json:"mastery" jsonschema:"Updated mastery, highest first"`
}

// UnitResultInput defines the input for the competence_unit_result tool.
type UnitResultInput struct {
	UnitID  string `json:"unit_id" jsonschema:"Content unit that was played"`
	Success bool   `json:"success" jsonschema:"Whether the learner succeeded"`
}

// MasteryInput defines the input for the competence_mastery tool.
type MasteryInput struct {
	MasteredOnly bool `json:"mastered_only,omitempty" jsonschema:"Only list mastered competences (default: false)"`
}

// MasteryOutput defines the output for the competence_mastery tool.
type MasteryOutput struct {
	Learner       string          `json:"learner"`
	Threshold     float64         `json:"threshold" jsonschema:"Probability at or above which a competence is mastered"`
	MasteredCount int             `json:"mastered_count"`
	Total         int             `json:"total"`
	Competences   []mastery.Entry `json:"competences" jsonschema:"Competences, highest probability first"`
}

// NextInput defines the input for the competence_next tool.
type NextInput struct {
	Explain bool `json:"explain,omitempty" jsonschema:"Include every candidate with its gap and gating (default: false)"`
}

// NextOutput defines the output for the competence_next tool.
type NextOutput struct {
	Unit       *selection.Unit       `json:"unit,omitempty" jsonschema:"Selected unit; absent when no unit is reachable"`
	Exhausted  bool                  `json:"exhausted" jsonschema:"True when every candidate was gated"`
	Plays      int                   `json:"plays,omitempty" jsonschema:"Times the selected unit has now been played"`
	Candidates []selection.Candidate `json:"candidates,omitempty"`
}

// ResetInput defines the input for the competence_reset tool.
type ResetInput struct {
	Confirm bool `json:"confirm" jsonschema:"Must be true; resetting discards the learner's progress"`
}

// ResetOutput defines the output for the competence_reset tool.
type ResetOutput struct {
	Message string `json:"message"`
}

// GraphInput defines the input for the competence_graph tool.
type GraphInput struct {
	Format string `json:"format,omitempty" jsonschema:"dot, json or html (default: json)"`
}

// GraphOutput defines the output for the competence_graph tool.
type GraphOutput struct {
	Format    string `json:"format"`
	Graph     any    `json:"graph" jsonschema:"Rendered graph: a string for dot and html, an object for json"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
}
