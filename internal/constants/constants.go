// Package constants provides named constants used throughout the competence codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Mastery model constants
const (
	// DefaultTransitionProbability is the mastery threshold. A competence whose
	// probability is at or above this value counts as mastered.
	DefaultTransitionProbability = 0.7

	// Epsilon is the margin used when pushing a value just across (or just
	// short of) the threshold, and the minimum gap kept between a
	// prerequisite and its successors.
	Epsilon = 1e-9

	// DenominatorTolerance is the magnitude below which a denominator in the
	// xi inverse is treated as zero.
	DenominatorTolerance = 1e-12
)

// Default update-level table constants, used by `competence init` when
// writing a sample domain.
const (
	// DefaultXiLow is the update factor for low-strength evidence.
	DefaultXiLow = 1.5

	// DefaultXiMedium is the update factor for medium-strength evidence.
	DefaultXiMedium = 2.0

	// DefaultXiHigh is the update factor for high-strength evidence.
	DefaultXiHigh = 3.0
)

// MaxConsistencyPasses bounds the consistency restoration loop. A valid DAG
// converges in at most N passes; hitting this bound means the input violated
// the acyclicity precondition.
const MaxConsistencyPasses = 10000

// MaxShiftSearchSteps bounds the bisection that holds an at-most-one update
// back when consistency restoration would carry a competence outside the
// frontier across the threshold.
const MaxShiftSearchSteps = 64

// Directory and file names for local state.
const (
	// DirName is the per-project state directory.
	DirName = ".competence"

	// StateSubdir holds JSON learner state files for the file store.
	StateSubdir = "state"

	// DecisionsFile is the JSONL decision log written at debug level.
	DecisionsFile = "decisions.jsonl"

	// DomainFile is the default domain description filename.
	DomainFile = "domain.yaml"
)

// MaxBackupRotation is the default maximum number of state backup files to keep.
const MaxBackupRotation = 10
