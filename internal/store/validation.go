package store

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/nvandessel/competence/internal/models"
)

// ValidationError describes one problem with a learner state.
type ValidationError struct {
	Key   string `json:"key"`
	Field string `json:"field"` // "key", "domain_id", "learner_id", "mastery", "play_counts"
	RefID string `json:"ref_id,omitempty"`
	Issue string `json:"issue"` // "empty", "mismatch", "out-of-range", "negative"
}

// String returns a human-readable description of the validation error.
func (e ValidationError) String() string {
	if e.RefID == "" {
		return fmt.Sprintf("%s: %s %s", e.Key, e.Field, e.Issue)
	}
	return fmt.Sprintf("%s: %s %s for %s", e.Key, e.Field, e.Issue, e.RefID)
}

// CheckState returns every problem found in state. It checks that the
// domain and learner ids are set and match the key, that every probability lies in (0, 1)
// and that play counts are non-negative.
func CheckState(key string, state *models.LearnerState) []ValidationError {
	if state == nil {
		return []ValidationError{{Key: key, Field: "state", Issue: "empty"}}
	}

	var errs []ValidationError
	if key == "" {
		errs = append(errs, ValidationError{Key: key, Field: "key", Issue: "empty"})
	}
	if state.DomainID == "" {
		errs = append(errs, ValidationError{Key: key, Field: "domain_id", Issue: "empty"})
	}
	if state.LearnerID == "" {
		errs = append(errs, ValidationError{Key: key, Field: "learner_id", Issue: "empty"})
	}
	if state.DomainID != "" && state.LearnerID != "" && models.StateKey(state.DomainID, state.LearnerID) != key {
		errs = append(errs, ValidationError{Key: key, Field: "key", RefID: models.StateKey(state.DomainID, state.LearnerID), Issue: "mismatch"})
	}
	if len(state.Mastery) == 0 {
		errs = append(errs, ValidationError{Key: key, Field: "mastery", Issue: "empty"})
	}

	ids := make([]string, 0, len(state.Mastery))
	for id := range state.Mastery {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := state.Mastery[id]
		if math.IsNaN(p) || p <= 0 || p >= 1 {
			errs = append(errs, ValidationError{Key: key, Field: "mastery", RefID: id, Issue: "out-of-range"})
		}
	}

	units := make([]string, 0, len(state.PlayCounts))
	for id := range state.PlayCounts {
		units = append(units, id)
	}
	sort.Strings(units)
	for _, id := range units {
		if state.PlayCounts[id] < 0 {
			errs = append(errs, ValidationError{Key: key, Field: "play_counts", RefID: id, Issue: "negative"})
		}
	}
	return errs
}

// ValidateState wraps CheckState as a configuration error, or returns nil.
func ValidateState(key string, state *models.LearnerState) error {
	errs := CheckState(key, state)
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.String()
	}
	return &models.ConfigError{Field: "state", Reason: strings.Join(msgs, "; ")}
}
