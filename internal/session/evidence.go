package session

import (
	"context"

	"github.com/nvandessel/competence/internal/models"
	"github.com/nvandessel/competence/internal/update"
)

// ApplyEvidence applies a batch of evidence and persists the new vector.
// Items naming unknown competences are rejected and reported in the result;
// they do not fail the call. When the engine or the store fails the session
// is unchanged.
func (s *Session) ApplyEvidence(ctx context.Context, items []models.Evidence) (*update.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(ctx, items)
}

// ApplyEvidenceForUnit turns the outcome of a content unit into one evidence
// item per required competence (up on success, down on failure) and applies
// them as a batch.
func (s *Session) ApplyEvidenceForUnit(ctx context.Context, unitID string, success bool) (*update.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.unitEvidence(unitID, success)
	if err != nil {
		return nil, err
	}
	return s.applyLocked(ctx, items)
}

// UnitEvidence returns the evidence ApplyEvidenceForUnit would apply.
func (s *Session) UnitEvidence(unitID string, success bool) ([]models.Evidence, error) {
	return s.unitEvidence(unitID, success)
}

func (s *Session) unitEvidence(unitID string, success bool) ([]models.Evidence, error) {
	unit, ok := s.dom.Content.Unit(unitID)
	if !ok {
		return nil, &models.UnknownIDError{Kind: "unit", ID: unitID}
	}
	dir := models.DirectionFor(success)
	items := make([]models.Evidence, len(unit.Requires))
	for i, c := range unit.Requires {
		items[i] = models.Evidence{CompetenceID: c, Direction: dir, Strength: s.unitStrength}
	}
	return items, nil
}

func (s *Session) applyLocked(ctx context.Context, items []models.Evidence) (*update.BatchResult, error) {
	res, err := s.engine.ApplyBatch(s.vec, items)
	if err != nil {
		s.logger.Error("evidence update failed", "error", err)
		return nil, err
	}

	for _, r := range res.Rejected {
		s.decisions.Log("evidence_rejected", map[string]any{
			"learner":  s.learnerID,
			"evidence": r.Evidence.String(),
			"reason":   r.Reason,
		})
	}
	for _, tr := range res.Traces {
		s.decisions.Log("evidence_applied", map[string]any{
			"learner":   s.learnerID,
			"evidence":  tr.Evidence.String(),
			"base_xi":   tr.BaseXi,
			"xi":        tr.Xi,
			"frontier":  tr.Frontier,
			"secondary": tr.Secondary,
			"crossed":   tr.Crossed,
			"passes":    tr.Passes,
		})
	}
	if res.Applied() == 0 {
		return res, nil
	}

	if err := s.commitLocked(ctx, res.Vector, s.history); err != nil {
		return res, err
	}
	s.logger.Debug("mastery updated", "applied", res.Applied(), "rejected", len(res.Rejected))
	return res, nil
}
