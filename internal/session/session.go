// Package session owns one learner's progress in one domain: the compiled
// domain, the current mastery vector and the content history. It applies
// evidence through the update engine, picks the next unit through the
// selector, and persists the result to a StateStore after each change.
//
// All public methods are safe for concurrent use.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nvandessel/competence/internal/competence"
	"github.com/nvandessel/competence/internal/constants"
	"github.com/nvandessel/competence/internal/domain"
	"github.com/nvandessel/competence/internal/logging"
	"github.com/nvandessel/competence/internal/mastery"
	"github.com/nvandessel/competence/internal/models"
	"github.com/nvandessel/competence/internal/selection"
	"github.com/nvandessel/competence/internal/store"
	"github.com/nvandessel/competence/internal/update"
)

// Options configures Open.
type Options struct {
	// Domain is the compiled domain description. Required.
	Domain *domain.Compiled

	// LearnerID identifies the learner. Required.
	LearnerID string

	// Store persists learner state. Nil uses an in-memory store.
	Store store.StateStore

	// Threshold is the mastery transition probability. Zero means
	// constants.DefaultTransitionProbability.
	Threshold float64

	// UnitStrength is the strength of evidence derived from a unit result.
	// Empty means medium.
	UnitStrength models.Strength

	Logger    *slog.Logger
	Decisions *logging.DecisionLogger
}

// Session is one learner working through one domain.
type Session struct {
	mu sync.Mutex

	dom          *domain.Compiled
	learnerID    string
	key          string
	threshold    float64
	unitStrength models.Strength

	engine   *update.Engine
	selector *selection.Selector
	store    store.StateStore

	vec     *mastery.Vector
	history *selection.History
	fresh   bool

	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// Open builds a session for opts.LearnerID. Persisted state is loaded by
// key; when none exists the initial vector is computed and the session
// reports Fresh until the first Save.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Domain == nil {
		return nil, &models.ConfigError{Field: "domain", Reason: "no domain description given"}
	}
	if opts.LearnerID == "" {
		return nil, &models.ConfigError{Field: "learner", Reason: "learner id is empty"}
	}

	threshold := opts.Threshold
	if threshold == 0 {
		threshold = constants.DefaultTransitionProbability
	}
	if !(threshold > 0 && threshold < 1) {
		return nil, &models.ConfigError{Field: "threshold", Reason: fmt.Sprintf("%g is outside (0, 1)", threshold)}
	}

	strength := opts.UnitStrength
	if strength == "" {
		strength = models.StrengthMedium
	}
	if !strength.Valid() {
		return nil, &models.ConfigError{Field: "session.unit_strength", Reason: fmt.Sprintf("unknown strength %q", strength)}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	st := opts.Store
	if st == nil {
		st = store.NewMemoryStateStore()
	}

	g := opts.Domain.Graph
	s := &Session{
		dom:          opts.Domain,
		learnerID:    opts.LearnerID,
		key:          models.StateKey(g.DomainID(), opts.LearnerID),
		threshold:    threshold,
		unitStrength: strength,
		engine:       update.NewEngine(opts.Domain.Levels, logger),
		selector:     selection.NewSelector(logger),
		store:        st,
		logger:       logger.With("learner", opts.LearnerID),
		decisions:    opts.Decisions,
	}

	state, err := st.Load(ctx, s.key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.vec = mastery.Initial(g, mastery.WithThreshold(threshold))
		s.history = selection.NewHistory()
		s.fresh = true
		s.logger.Debug("no persisted state, starting from initial vector", "key", s.key)
	case err != nil:
		return nil, fmt.Errorf("loading state %s: %w", s.key, err)
	default:
		if err := s.restore(state); err != nil {
			return nil, fmt.Errorf("restoring state %s: %w", s.key, err)
		}
	}
	return s, nil
}

// Key returns the store key of this session.
func (s *Session) Key() string { return s.key }

// LearnerID returns the learner the session belongs to.
func (s *Session) LearnerID() string { return s.learnerID }

// Domain returns the compiled domain.
func (s *Session) Domain() *domain.Compiled { return s.dom }

// Graph returns the competence graph of the session's domain.
func (s *Session) Graph() *competence.Graph { return s.dom.Graph }

// Threshold returns the mastery transition probability.
func (s *Session) Threshold() float64 { return s.threshold }

// Fresh reports whether the session started without persisted state and
// has not been saved since.
func (s *Session) Fresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fresh
}

// CurrentMastery returns a copy of the mastery vector keyed by competence id.
func (s *Session) CurrentMastery() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vec.Map()
}

// Vector returns a copy of the current mastery vector.
func (s *Session) Vector() *mastery.Vector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vec.Clone()
}

// History returns a copy of the play counts and the current unit.
func (s *Session) History() (counts map[string]int, current string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Snapshot(), s.history.Current
}

// NextUnit selects the next content unit, records it in the history and
// persists. ok is false when no unit is reachable; nothing changes then,
// nor when the store rejects the new history.
func (s *Session) NextUnit(ctx context.Context) (id string, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.history.Current
	next := s.history.Clone()
	id, ok = s.selector.Next(current, s.vec, s.dom.Content, next)
	if !ok {
		s.decisions.Log("selection_exhausted", map[string]any{"learner": s.learnerID, "current": current})
		return "", false, nil
	}
	if err := s.commitLocked(ctx, s.vec, next); err != nil {
		return "", false, err
	}
	s.decisions.Log("unit_selected", map[string]any{
		"learner": s.learnerID,
		"unit":    id,
		"plays":   next.Count(id),
	})
	return id, true, nil
}

// Candidates scores every unit the selector would consider next, without
// selecting one.
func (s *Session) Candidates() []selection.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selector.Evaluate(s.history.Current, s.vec, s.dom.Content, s.history)
}

// ResetToInitial recomputes the initial vector, clears the content history
// and persists. Calling it twice leaves the same state as calling it once.
func (s *Session) ResetToInitial(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vec := mastery.Initial(s.dom.Graph, mastery.WithThreshold(s.threshold))
	if err := s.commitLocked(ctx, vec, selection.NewHistory()); err != nil {
		return err
	}
	s.decisions.Log("reset", map[string]any{"learner": s.learnerID})
	s.logger.Info("learner state reset", "key", s.key)
	return nil
}

// Save persists the current state.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}
