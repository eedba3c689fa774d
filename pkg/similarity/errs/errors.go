// Package errs defines the behavioral error kinds of the similarity engine
// (spec.md §7). Per-file failures degrade into warnings collected on the
// pipeline run; only the errors in this package can abort a whole analysis.
package errs

import "errors"

// Sentinel errors for whole-analysis failures.
var (
	// ErrInsufficientFiles is returned when fewer than min_latest_submissions
	// files survive download and tokenization.
	ErrInsufficientFiles = errors.New("similarity: insufficient files for analysis")

	// ErrUnsupportedLanguage is returned when no tokenizer grammar matches
	// the requested language.
	ErrUnsupportedLanguage = errors.New("similarity: unsupported language")

	// ErrTimeout is returned when the analysis exceeds its wall-clock budget.
	// No state is persisted.
	ErrTimeout = errors.New("similarity: analysis timed out")

	// ErrCancelled is returned when the analysis context is cancelled.
	// Benign: callers treat this as "do nothing".
	ErrCancelled = errors.New("similarity: analysis cancelled")

	// ErrPersistenceConflict is a retryable persistence failure.
	ErrPersistenceConflict = errors.New("similarity: persistence conflict")

	// ErrPersistenceFailed is a non-retryable persistence failure. No
	// partial rows are left behind; the caller's transaction rolled back.
	ErrPersistenceFailed = errors.New("similarity: persistence failed")

	// ErrReportNotFound is returned when a report ID does not exist.
	ErrReportNotFound = errors.New("similarity: report not found")

	// ErrPairNotFound is returned when a pair ID does not exist within a report.
	ErrPairNotFound = errors.New("similarity: pair not found")
)

// FileOutcome records what happened to one input file during a pipeline run.
// The pipeline aggregates these into Report.Warnings rather than unwinding
// on a per-file failure (spec.md §9's conversion of exception-based control
// flow on per-file failures into a result-carrying aggregate).
type FileOutcome struct {
	Path    string
	Warning string
}
