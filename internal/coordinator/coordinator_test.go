package coordinator_test

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classifi/simguard/internal/coordinator"
	"github.com/classifi/simguard/pkg/similarity"
)

type fakeCatalog struct {
	mu          sync.Mutex
	active      map[string]bool
	submissions map[string][]similarity.Submission
	snapshots   []similarity.AssignmentSnapshot
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		active:      make(map[string]bool),
		submissions: make(map[string][]similarity.Submission),
	}
}

func (f *fakeCatalog) AssignmentActive(_ context.Context, assignmentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.active[assignmentID], nil
}

func (f *fakeCatalog) LatestSubmissions(_ context.Context, assignmentID string) ([]similarity.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.submissions[assignmentID], nil
}

func (f *fakeCatalog) LatestSnapshots(_ context.Context, minCount int) ([]similarity.AssignmentSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]similarity.AssignmentSnapshot, 0, len(f.snapshots))

	for _, s := range f.snapshots {
		if s.LatestCount >= minCount {
			out = append(out, s)
		}
	}

	return out, nil
}

type fakeReportStore struct {
	mu      sync.Mutex
	byID    map[string]similarity.Report
	latest  map[string]string
	nextID  int
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{byID: make(map[string]similarity.Report), latest: make(map[string]string)}
}

func (f *fakeReportStore) Persist(
	_ context.Context, assignmentID string, _ *string, report similarity.Report,
) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := strconv.Itoa(f.nextID)
	f.byID[id] = report
	f.latest[assignmentID] = id

	return id, nil
}

func (f *fakeReportStore) Load(_ context.Context, reportID string) (similarity.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.byID[reportID], nil
}

func (f *fakeReportStore) LatestForAssignment(_ context.Context, assignmentID string) (similarity.Report, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id, ok := f.latest[assignmentID]
	if !ok {
		return similarity.Report{}, false, nil
	}

	return f.byID[id], true, nil
}

func (f *fakeReportStore) Delete(_ context.Context, reportID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.byID, reportID)

	return nil
}

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

func testConfig() coordinator.Config {
	return coordinator.Config{
		Enabled:              true,
		DebounceInterval:     20 * time.Millisecond,
		ReconcileInterval:    time.Hour,
		MinLatestSubmissions: 2,
	}
}

func TestOnSubmission_DebounceCollapsesMultipleEvents(t *testing.T) {
	t.Parallel()

	catalog := newFakeCatalog()
	catalog.active["A"] = true
	catalog.submissions["A"] = []similarity.Submission{
		{Ref: similarity.FileRef{FileID: 0}, SubmittedAt: time.Unix(100, 0)},
		{Ref: similarity.FileRef{FileID: 1}, SubmittedAt: time.Unix(100, 0)},
	}

	store := newFakeReportStore()

	var calls int32

	analyze := func(_ context.Context, assignmentID string) (similarity.Report, error) {
		atomic.AddInt32(&calls, 1)

		report := similarity.Report{
			GeneratedAt: time.Unix(200, 0),
			FileRefs:    []similarity.FileRef{{FileID: 0}, {FileID: 1}},
		}
		store.Persist(context.Background(), assignmentID, nil, report)

		return report, nil
	}

	c := coordinator.New(testConfig(), catalog, store, fakeClock{}, analyze, nil)

	ctx := context.Background()
	c.OnSubmission(ctx, "A")
	c.OnSubmission(ctx, "A")
	c.OnSubmission(ctx, "A")

	time.Sleep(100 * time.Millisecond)

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestProcess_SkipsInactiveAssignment(t *testing.T) {
	t.Parallel()

	catalog := newFakeCatalog()
	catalog.active["B"] = false

	store := newFakeReportStore()

	var calls int32

	analyze := func(_ context.Context, _ string) (similarity.Report, error) {
		atomic.AddInt32(&calls, 1)
		return similarity.Report{}, nil
	}

	cfg := testConfig()
	cfg.DebounceInterval = 10 * time.Millisecond
	c := coordinator.New(cfg, catalog, store, fakeClock{}, analyze, nil)

	c.OnSubmission(context.Background(), "B")
	time.Sleep(50 * time.Millisecond)

	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestProcess_SkipsWhenReportAlreadyCurrent(t *testing.T) {
	t.Parallel()

	catalog := newFakeCatalog()
	catalog.active["C"] = true
	submittedAt := time.Unix(100, 0)
	catalog.submissions["C"] = []similarity.Submission{
		{Ref: similarity.FileRef{FileID: 0}, SubmittedAt: submittedAt},
		{Ref: similarity.FileRef{FileID: 1}, SubmittedAt: submittedAt},
	}

	store := newFakeReportStore()
	store.Persist(context.Background(), "C", nil, similarity.Report{
		GeneratedAt: submittedAt.Add(time.Minute),
		FileRefs:    []similarity.FileRef{{FileID: 0}, {FileID: 1}},
	})

	var calls int32

	analyze := func(_ context.Context, _ string) (similarity.Report, error) {
		atomic.AddInt32(&calls, 1)
		return similarity.Report{}, nil
	}

	cfg := testConfig()
	cfg.DebounceInterval = 10 * time.Millisecond
	c := coordinator.New(cfg, catalog, store, fakeClock{}, analyze, nil)

	c.OnSubmission(context.Background(), "C")
	time.Sleep(50 * time.Millisecond)

	assert.Zero(t, atomic.LoadInt32(&calls), "report already covers the latest submissions")
}

func TestOnSubmission_DisabledCoordinatorNeverRuns(t *testing.T) {
	t.Parallel()

	catalog := newFakeCatalog()
	catalog.active["D"] = true
	catalog.submissions["D"] = []similarity.Submission{
		{Ref: similarity.FileRef{FileID: 0}, SubmittedAt: time.Unix(1, 0)},
		{Ref: similarity.FileRef{FileID: 1}, SubmittedAt: time.Unix(1, 0)},
	}

	store := newFakeReportStore()

	var calls int32

	analyze := func(_ context.Context, _ string) (similarity.Report, error) {
		atomic.AddInt32(&calls, 1)
		return similarity.Report{}, nil
	}

	cfg := testConfig()
	cfg.Enabled = false
	c := coordinator.New(cfg, catalog, store, fakeClock{}, analyze, nil)

	c.OnSubmission(context.Background(), "D")
	time.Sleep(50 * time.Millisecond)

	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestStop_CancelsPendingDebounce(t *testing.T) {
	t.Parallel()

	catalog := newFakeCatalog()
	catalog.active["E"] = true
	catalog.submissions["E"] = []similarity.Submission{
		{Ref: similarity.FileRef{FileID: 0}, SubmittedAt: time.Unix(1, 0)},
		{Ref: similarity.FileRef{FileID: 1}, SubmittedAt: time.Unix(1, 0)},
	}

	store := newFakeReportStore()

	var calls int32

	analyze := func(_ context.Context, _ string) (similarity.Report, error) {
		atomic.AddInt32(&calls, 1)
		return similarity.Report{}, nil
	}

	cfg := testConfig()
	cfg.DebounceInterval = 30 * time.Millisecond
	c := coordinator.New(cfg, catalog, store, fakeClock{}, analyze, nil)

	c.OnSubmission(context.Background(), "E")
	c.Stop()

	time.Sleep(60 * time.Millisecond)

	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestStart_ReconciliationSchedulesStaleAssignment(t *testing.T) {
	t.Parallel()

	catalog := newFakeCatalog()
	catalog.active["F"] = true
	catalog.submissions["F"] = []similarity.Submission{
		{Ref: similarity.FileRef{FileID: 0}, SubmittedAt: time.Unix(500, 0)},
		{Ref: similarity.FileRef{FileID: 1}, SubmittedAt: time.Unix(500, 0)},
	}
	catalog.snapshots = []similarity.AssignmentSnapshot{
		{AssignmentID: "F", LatestCount: 2, LatestSubmittedAt: time.Unix(500, 0)},
	}

	store := newFakeReportStore()

	var calls int32

	analyze := func(_ context.Context, assignmentID string) (similarity.Report, error) {
		atomic.AddInt32(&calls, 1)
		report := similarity.Report{
			GeneratedAt: time.Unix(600, 0),
			FileRefs:    []similarity.FileRef{{FileID: 0}, {FileID: 1}},
		}
		store.Persist(context.Background(), assignmentID, nil, report)

		return report, nil
	}

	cfg := coordinator.Config{
		Enabled:              true,
		DebounceInterval:     time.Hour,
		ReconcileInterval:    10 * time.Millisecond,
		MinLatestSubmissions: 2,
	}
	c := coordinator.New(cfg, catalog, store, fakeClock{}, analyze, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Start(ctx)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 1 }, time.Second, 5*time.Millisecond)
}
