// Package coordinator implements the auto-analysis coordinator of
// spec.md §4.7: debounced per-assignment re-runs on submission events plus
// periodic reconciliation, without a persistent job queue.
//
// Grounded on the teacher's pkg/framework/watchdog.go concurrency shape —
// a small struct holding a sync.Mutex that guards only bookkeeping fields,
// never held across blocking work, with a *slog.Logger for swallowed
// failures — since the teacher has no debounce/reconcile timer of its own
// to adapt directly (spec.md §9 calls this "a per-coordinator task
// runtime" with no prior art in the source system).
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/classifi/simguard/pkg/similarity"
)

// Default cadences (spec.md §6.1's auto.* knobs).
const (
	DefaultDebounceInterval       = 30 * time.Second
	DefaultReconcileInterval      = 60 * time.Second
	DefaultMinLatestSubmissions   = 2
)

// AnalyzeFunc runs the pipeline end-to-end for an assignment's current
// latest submissions and persists the result. It is supplied by whatever
// wires FileStore + pipeline.Run + ReportStore together (internal/service
// in production); the coordinator never touches those directly.
type AnalyzeFunc func(ctx context.Context, assignmentID string) (similarity.Report, error)

// Config controls the coordinator's cadence.
type Config struct {
	Enabled              bool
	DebounceInterval     time.Duration
	ReconcileInterval    time.Duration
	MinLatestSubmissions int
}

// Defaults fills zero-valued fields with package defaults.
func (c Config) Defaults() Config {
	if c.DebounceInterval <= 0 {
		c.DebounceInterval = DefaultDebounceInterval
	}

	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = DefaultReconcileInterval
	}

	if c.MinLatestSubmissions <= 0 {
		c.MinLatestSubmissions = DefaultMinLatestSubmissions
	}

	return c
}

type trigger string

const (
	triggerSubmission     trigger = "submission"
	triggerRerun          trigger = "rerun"
	triggerReconciliation trigger = "reconciliation"
)

// Coordinator owns the in-process debounce/reconciliation state machine of
// spec.md §4.7. The zero value is not usable; construct with New.
type Coordinator struct {
	cfg     Config
	catalog similarity.SubmissionCatalog
	reports similarity.ReportStore
	clock   similarity.Clock
	analyze AnalyzeFunc
	logger  *slog.Logger

	mu           sync.Mutex
	scheduled    map[string]*time.Timer
	inProgress   map[string]struct{}
	pendingRerun map[string]struct{}

	reconcileGroup singleflight.Group

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New constructs a Coordinator. analyze is invoked once should_analyze(A)
// decides a run is warranted; it is responsible for fetching submissions,
// running the pipeline, and persisting the report.
func New(
	cfg Config,
	catalog similarity.SubmissionCatalog,
	reports similarity.ReportStore,
	clock similarity.Clock,
	analyze AnalyzeFunc,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		cfg:          cfg.Defaults(),
		catalog:      catalog,
		reports:      reports,
		clock:        clock,
		analyze:      analyze,
		logger:       logger,
		scheduled:    make(map[string]*time.Timer),
		inProgress:   make(map[string]struct{}),
		pendingRerun: make(map[string]struct{}),
		stopCh:       make(chan struct{}),
	}
}

// Start launches the reconciliation ticker. It returns immediately; the
// ticker loop runs until ctx is cancelled or Stop is called.
func (c *Coordinator) Start(ctx context.Context) {
	if !c.cfg.Enabled {
		return
	}

	go c.reconcileLoop(ctx)
}

// Stop cancels all pending debounce timers and the reconciliation loop.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, timer := range c.scheduled {
		timer.Stop()
	}

	c.scheduled = make(map[string]*time.Timer)
}

// OnSubmission is the event-handler entry point: a new submission for
// assignmentID arrived. It (re)arms a debounce timer; repeated calls for
// the same assignment before the timer fires collapse into one run.
func (c *Coordinator) OnSubmission(ctx context.Context, assignmentID string) {
	if !c.cfg.Enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.scheduled[assignmentID]; ok {
		existing.Stop()
	}

	var fired *time.Timer

	fired = time.AfterFunc(c.cfg.DebounceInterval, func() {
		c.mu.Lock()
		if c.scheduled[assignmentID] == fired {
			delete(c.scheduled, assignmentID)
		}
		c.mu.Unlock()

		c.process(ctx, assignmentID, triggerSubmission)
	})

	c.scheduled[assignmentID] = fired
}

// process implements spec.md §4.7's process(A, trigger) state machine.
func (c *Coordinator) process(ctx context.Context, assignmentID string, trig trigger) {
	c.mu.Lock()

	if _, running := c.inProgress[assignmentID]; running {
		c.pendingRerun[assignmentID] = struct{}{}
		c.mu.Unlock()

		return
	}

	c.inProgress[assignmentID] = struct{}{}
	c.mu.Unlock()

	c.runOnce(ctx, assignmentID, trig)

	c.mu.Lock()
	delete(c.inProgress, assignmentID)

	_, rerun := c.pendingRerun[assignmentID]
	if rerun {
		delete(c.pendingRerun, assignmentID)
	}

	c.mu.Unlock()

	if rerun {
		go c.process(ctx, assignmentID, triggerRerun)
	}
}

// runOnce evaluates should_analyze and, if warranted, runs analyze.
// Failures are logged and swallowed per spec.md §4.7 — a later event or
// reconciliation tick retries.
func (c *Coordinator) runOnce(ctx context.Context, assignmentID string, trig trigger) {
	shouldRun, err := c.shouldAnalyze(ctx, assignmentID)
	if err != nil {
		c.logger.Error("coordinator: should_analyze failed",
			"assignment_id", assignmentID, "trigger", string(trig), "error", err)

		return
	}

	if !shouldRun {
		return
	}

	if _, err := c.analyze(ctx, assignmentID); err != nil {
		c.logger.Error("coordinator: analysis failed",
			"assignment_id", assignmentID, "trigger", string(trig), "error", err)

		return
	}

	c.logger.Info("coordinator: analysis completed",
		"assignment_id", assignmentID, "trigger", string(trig))
}

// shouldAnalyze implements spec.md §4.7's should_analyze(A): the assignment
// must exist and be active, have at least MinLatestSubmissions latest
// submissions, and have no current report covering them.
func (c *Coordinator) shouldAnalyze(ctx context.Context, assignmentID string) (bool, error) {
	active, err := c.catalog.AssignmentActive(ctx, assignmentID)
	if err != nil {
		return false, fmt.Errorf("coordinator: assignment active check: %w", err)
	}

	if !active {
		return false, nil
	}

	submissions, err := c.catalog.LatestSubmissions(ctx, assignmentID)
	if err != nil {
		return false, fmt.Errorf("coordinator: latest submissions: %w", err)
	}

	if len(submissions) < c.cfg.MinLatestSubmissions {
		return false, nil
	}

	report, ok, err := c.reports.LatestForAssignment(ctx, assignmentID)
	if err != nil {
		return false, fmt.Errorf("coordinator: latest report: %w", err)
	}

	if !ok {
		return true, nil
	}

	return !reportIsCurrent(report, submissions), nil
}

func reportIsCurrent(report similarity.Report, submissions []similarity.Submission) bool {
	if len(report.FileRefs) != len(submissions) {
		return false
	}

	var maxSubmittedAt time.Time

	for _, sub := range submissions {
		if sub.SubmittedAt.After(maxSubmittedAt) {
			maxSubmittedAt = sub.SubmittedAt
		}
	}

	return !report.GeneratedAt.Before(maxSubmittedAt)
}

// reconcileLoop runs the periodic reconciliation sweep until ctx is
// cancelled or Stop is called. Each tick is dispatched through a
// singleflight.Group so a tick that arrives while the previous sweep is
// still running attaches to it instead of starting a second, concurrent
// sweep — spec.md §4.7's "non-reentrant; the next tick is skipped."
func (c *Coordinator) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.reconcileGroup.DoChan("reconcile", func() (interface{}, error) {
				c.reconcileOnce(ctx)

				return nil, nil
			})
		}
	}
}

// reconcileOnce queries the catalog for assignments whose report is
// missing or stale and schedules an immediate process() for each.
func (c *Coordinator) reconcileOnce(ctx context.Context) {
	snapshots, err := c.catalog.LatestSnapshots(ctx, c.cfg.MinLatestSubmissions)
	if err != nil {
		c.logger.Error("coordinator: reconciliation snapshot query failed", "error", err)

		return
	}

	for _, snap := range snapshots {
		stale, err := c.snapshotIsStale(ctx, snap)
		if err != nil {
			c.logger.Error("coordinator: reconciliation staleness check failed",
				"assignment_id", snap.AssignmentID, "error", err)

			continue
		}

		if stale {
			go c.process(ctx, snap.AssignmentID, triggerReconciliation)
		}
	}
}

func (c *Coordinator) snapshotIsStale(ctx context.Context, snap similarity.AssignmentSnapshot) (bool, error) {
	report, ok, err := c.reports.LatestForAssignment(ctx, snap.AssignmentID)
	if err != nil {
		return false, err
	}

	if !ok {
		return true, nil
	}

	if len(report.FileRefs) != snap.LatestCount {
		return true, nil
	}

	return report.GeneratedAt.Before(snap.LatestSubmittedAt), nil
}
