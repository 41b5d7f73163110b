package session

import (
	"context"
	"fmt"
	"time"

	"github.com/nvandessel/competence/internal/mastery"
	"github.com/nvandessel/competence/internal/models"
	"github.com/nvandessel/competence/internal/selection"
)

// State returns the persisted form of the session.
func (s *Session) State() *models.LearnerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateOf(s.vec, s.history)
}

func (s *Session) stateOf(vec *mastery.Vector, h *selection.History) *models.LearnerState {
	return &models.LearnerState{
		DomainID:    s.dom.Graph.DomainID(),
		LearnerID:   s.learnerID,
		Mastery:     vec.Map(),
		PlayCounts:  h.Snapshot(),
		CurrentUnit: h.Current,
		UpdatedAt:   time.Now().UTC(),
	}
}

func (s *Session) saveLocked(ctx context.Context) error {
	return s.commitLocked(ctx, s.vec, s.history)
}

// commitLocked persists vec and h, and adopts them only once the store has
// accepted them.
func (s *Session) commitLocked(ctx context.Context, vec *mastery.Vector, h *selection.History) error {
	if err := s.store.Save(ctx, s.key, s.stateOf(vec, h)); err != nil {
		return fmt.Errorf("saving state %s: %w", s.key, err)
	}
	s.vec, s.history, s.fresh = vec, h, false
	return nil
}

// restore rebuilds the vector and history from persisted state. Mastery for
// a competence the domain no longer has is an error; play counts for
// unknown units are dropped.
func (s *Session) restore(state *models.LearnerState) error {
	vec, err := mastery.FromMap(s.dom.Graph, state.Mastery, mastery.WithThreshold(s.threshold))
	if err != nil {
		return err
	}

	counts := make(map[string]int, len(state.PlayCounts))
	for id, n := range state.PlayCounts {
		if _, ok := s.dom.Content.Unit(id); !ok {
			s.logger.Warn("dropping play count for unknown unit", "unit", id)
			continue
		}
		counts[id] = n
	}
	current := state.CurrentUnit
	if _, ok := s.dom.Content.Unit(current); current != "" && !ok {
		s.logger.Warn("dropping unknown current unit", "unit", current)
		current = ""
	}

	if ok, p, c := vec.Consistent(0); !ok {
		s.logger.Warn("persisted mastery violates prerequisite order", "prerequisite", p, "successor", c)
	}

	s.vec = vec
	s.history = selection.RestoreHistory(counts, current)
	return nil
}
