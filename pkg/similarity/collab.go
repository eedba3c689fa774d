package similarity

import (
	"context"
	"time"
)

// FileStore retrieves file content by a caller-defined reference (spec.md
// §6.5). The similarity engine never knows how content is stored; it only
// asks for bytes.
type FileStore interface {
	ReadFile(ctx context.Context, ref FileRef) ([]byte, error)
}

// Submission is one student's latest file for an assignment, together with
// the time it was submitted — needed by the coordinator's staleness check
// (spec.md §4.7's should_analyze compares a report's generated_at against
// the latest submitted_at).
type Submission struct {
	Ref         FileRef
	SubmittedAt time.Time
}

// AssignmentSnapshot is a cheap summary of one assignment's submission
// state, used by the coordinator's reconciliation sweep to find
// assignments with a missing or stale report without downloading any
// file content (spec.md §6.5's latest_snapshots).
type AssignmentSnapshot struct {
	AssignmentID      string
	LatestCount       int
	LatestSubmittedAt time.Time
}

// SubmissionCatalog resolves an assignment's latest submissions. It is the
// similarity engine's only source of "what should be compared right now."
type SubmissionCatalog interface {
	LatestSubmissions(ctx context.Context, assignmentID string) ([]Submission, error)
	LatestSnapshots(ctx context.Context, minCount int) ([]AssignmentSnapshot, error)
	AssignmentActive(ctx context.Context, assignmentID string) (bool, error)
}

// ReportStore persists and rehydrates reports (spec.md §4.6). Implementations
// must serialize concurrent persists against the same assignment ID.
// teacherID is the optional requesting teacher recorded on the report row
// (spec.md §4.6's `persist(assignment_id, teacher_id?, report)`); nil when
// the caller has none (e.g. the auto-analysis coordinator).
type ReportStore interface {
	Persist(ctx context.Context, assignmentID string, teacherID *string, report Report) (reportID string, err error)
	Load(ctx context.Context, reportID string) (Report, error)
	LatestForAssignment(ctx context.Context, assignmentID string) (Report, bool, error)
	Delete(ctx context.Context, reportID string) error
}

// Clock abstracts wall-clock time so report timestamps (Report.GeneratedAt)
// and run durations can be fixed in tests. The coordinator's debounce and
// reconciliation timers run on real time and do not read it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }
