package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes of the mastery engine.
// Typed errors below match these with errors.Is.
var (
	// ErrConfiguration marks an unusable domain description: a missing
	// update-level table, a dangling prerequisite, a malformed number.
	ErrConfiguration = errors.New("configuration error")

	// ErrPreconditionViolation marks an internal defect: xi below 1, a
	// near-zero denominator, a cyclic prerequisite graph.
	ErrPreconditionViolation = errors.New("precondition violation")

	// ErrUnknownIdentifier marks evidence or a unit that references an id
	// absent from the domain.
	ErrUnknownIdentifier = errors.New("unknown identifier")
)

// ConfigError describes a configuration problem in the domain description.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Is matches ErrConfiguration.
func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// PreconditionError carries diagnostic context for an internal defect.
type PreconditionError struct {
	Competence string
	Evidence   *Evidence
	Reason     string
}

func (e *PreconditionError) Error() string {
	msg := "precondition violation"
	if e.Competence != "" {
		msg += fmt.Sprintf(" at %s", e.Competence)
	}
	if e.Evidence != nil {
		msg += fmt.Sprintf(" (evidence %s)", e.Evidence)
	}
	return msg + ": " + e.Reason
}

// Is matches ErrPreconditionViolation.
func (e *PreconditionError) Is(target error) bool { return target == ErrPreconditionViolation }

// UnknownIDError reports an id that does not exist in the domain.
type UnknownIDError struct {
	Kind string // "competence" or "unit"
	ID   string
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("unknown %s: %q", e.Kind, e.ID)
}

// Is matches ErrUnknownIdentifier.
func (e *UnknownIDError) Is(target error) bool { return target == ErrUnknownIdentifier }
