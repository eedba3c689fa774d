// Package service wires the collaborator interfaces declared in
// pkg/similarity (FileStore, SubmissionCatalog, ReportStore, Clock)
// together with internal/pipeline.Run (internal/persist.Store is one
// ReportStore implementation, passed in by the caller) into the
// request/response surface of spec.md §6.3: Analyze, AnalyzeInline,
// GetReport, GetPairDetails, DeleteReport, TriggerAuto.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/classifi/simguard/internal/observability"
	"github.com/classifi/simguard/internal/pipeline"
	"github.com/classifi/simguard/pkg/similarity"
	"github.com/classifi/simguard/pkg/similarity/errs"
	"github.com/classifi/simguard/pkg/similarity/report"
)

// AutoNotifier is the subset of *coordinator.Coordinator the service needs
// for TriggerAuto. Declared here rather than importing internal/coordinator
// directly so the service package has no compile-time dependency on the
// coordinator's own dependency (golang.org/x/sync/singleflight) when the
// caller doesn't wire auto-analysis at all.
type AutoNotifier interface {
	OnSubmission(ctx context.Context, assignmentID string)
}

// Service is the core orchestration surface. Construct with New; the zero
// value is not usable.
type Service struct {
	catalog        similarity.SubmissionCatalog
	files          similarity.FileStore
	reports        similarity.ReportStore
	clock          similarity.Clock
	defaultOptions similarity.Options
	logger         *slog.Logger
	metrics        *observability.PipelineMetrics
	auto           AutoNotifier
}

// New constructs a Service. metrics and auto may be nil; a nil auto makes
// TriggerAuto a no-op, useful for offline/CLI callers that never run the
// coordinator.
func New(
	catalog similarity.SubmissionCatalog,
	files similarity.FileStore,
	reports similarity.ReportStore,
	clock similarity.Clock,
	defaultOptions similarity.Options,
	logger *slog.Logger,
	metrics *observability.PipelineMetrics,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		catalog:        catalog,
		files:          files,
		reports:        reports,
		clock:          clock,
		defaultOptions: defaultOptions,
		logger:         logger,
		metrics:        metrics,
	}
}

// SetAutoNotifier wires the auto-analysis coordinator in after construction,
// since the coordinator's own AnalyzeFunc is typically s.autoAnalyze —
// a dependency cycle the two-step wiring avoids.
func (s *Service) SetAutoNotifier(auto AutoNotifier) {
	s.auto = auto
}

// AnalyzeResponse is the result of a completed analysis run (spec.md §6.3).
type AnalyzeResponse struct {
	ReportID string
	Summary  similarity.ReportSummary
	Pairs    []similarity.Pair
}

// ReportView is a rehydrated report plus its computed summary, the shape
// GetReport hands back to callers.
type ReportView struct {
	Report  similarity.Report
	Summary similarity.ReportSummary
}

// PairDetails is one pair's full detail: its metrics, matching fragments,
// and both files' raw content for a side-by-side viewer (spec.md §6.3).
type PairDetails struct {
	Pair         similarity.Pair
	Fragments    []similarity.Fragment
	LeftContent  []byte
	RightContent []byte
}

// Analyze fetches an assignment's latest submissions, downloads their
// content, runs the pipeline, persists the report, and returns a summary
// view (spec.md §6.3).
func (s *Service) Analyze(ctx context.Context, assignmentID string, requestingTeacherID *string) (AnalyzeResponse, error) {
	reportOut, reportID, err := s.runAndPersist(ctx, assignmentID, requestingTeacherID)
	if err != nil {
		return AnalyzeResponse{}, err
	}

	summary := report.Summary(&reportOut, reportOut.Options.SimilarityThreshold)

	return AnalyzeResponse{ReportID: reportID, Summary: summary, Pairs: reportOut.Pairs}, nil
}

// AnalyzeInline runs the pipeline over caller-supplied files without any
// persistence — the stateless variant of Analyze for offline reproduction
// (spec.md §6.3, §6.4). templates are boilerplate files excluded from
// matching, per the same --template flag pipeline.Run already honors.
func (s *Service) AnalyzeInline(
	ctx context.Context, files, templates []pipeline.Input, language similarity.LangTag, opts similarity.Options,
) (AnalyzeResponse, error) {
	opts.Language = language

	reportOut, err := s.runPipeline(ctx, files, templates, opts)
	if err != nil {
		return AnalyzeResponse{}, err
	}

	summary := report.Summary(&reportOut, reportOut.Options.SimilarityThreshold)

	return AnalyzeResponse{Summary: summary, Pairs: reportOut.Pairs}, nil
}

// GetReport rehydrates a persisted report by ID.
func (s *Service) GetReport(ctx context.Context, reportID string) (ReportView, error) {
	reportOut, err := s.reports.Load(ctx, reportID)
	if err != nil {
		return ReportView{}, fmt.Errorf("service: get report: %w", err)
	}

	threshold := reportOut.Options.SimilarityThreshold
	if threshold <= 0 {
		threshold = s.defaultOptions.Defaults(0).SimilarityThreshold
	}

	return ReportView{Report: reportOut, Summary: report.Summary(&reportOut, threshold)}, nil
}

// GetPairDetails rehydrates a report, locates the requested pair, and
// fetches both files' raw content so a caller can render a side-by-side
// diff view (spec.md §6.3).
func (s *Service) GetPairDetails(ctx context.Context, reportID string, pairID int) (PairDetails, error) {
	reportOut, err := s.reports.Load(ctx, reportID)
	if err != nil {
		return PairDetails{}, fmt.Errorf("service: get pair details: %w", err)
	}

	var pair *similarity.Pair

	for i := range reportOut.Pairs {
		if reportOut.Pairs[i].PairID == pairID {
			pair = &reportOut.Pairs[i]

			break
		}
	}

	if pair == nil {
		return PairDetails{}, fmt.Errorf("service: get pair details: %w", errs.ErrPairNotFound)
	}

	leftContent, err := s.files.ReadFile(ctx, pair.Left)
	if err != nil {
		return PairDetails{}, fmt.Errorf("service: read left file: %w", err)
	}

	rightContent, err := s.files.ReadFile(ctx, pair.Right)
	if err != nil {
		return PairDetails{}, fmt.Errorf("service: read right file: %w", err)
	}

	return PairDetails{
		Pair:         *pair,
		Fragments:    pair.BuildFragments(),
		LeftContent:  leftContent,
		RightContent: rightContent,
	}, nil
}

// DeleteReport removes a persisted report and its cascaded results and
// fragments.
func (s *Service) DeleteReport(ctx context.Context, reportID string) error {
	if err := s.reports.Delete(ctx, reportID); err != nil {
		return fmt.Errorf("service: delete report: %w", err)
	}

	return nil
}

// TriggerAuto is the internal call from the submission-created event
// (spec.md §6.3): it notifies the auto-analysis coordinator, which
// debounces and decides for itself whether a run is warranted. A Service
// with no coordinator wired in is a no-op.
func (s *Service) TriggerAuto(ctx context.Context, assignmentID string) {
	if s.auto == nil {
		return
	}

	s.auto.OnSubmission(ctx, assignmentID)
}

// autoAnalyze adapts Analyze to coordinator.AnalyzeFunc's signature. It is
// the function callers pass to coordinator.New. Auto-triggered runs have no
// requesting teacher, so they persist with a nil teacher_id.
func (s *Service) autoAnalyze(ctx context.Context, assignmentID string) (similarity.Report, error) {
	reportOut, _, err := s.runAndPersist(ctx, assignmentID, nil)

	return reportOut, err
}

// AutoAnalyzeFunc exposes autoAnalyze under the name callers wire into
// coordinator.New, keeping the coordinator's AnalyzeFunc type unexported
// from this package's public surface.
func (s *Service) AutoAnalyzeFunc() func(ctx context.Context, assignmentID string) (similarity.Report, error) {
	return s.autoAnalyze
}

func (s *Service) runAndPersist(
	ctx context.Context, assignmentID string, teacherID *string,
) (similarity.Report, string, error) {
	submissions, err := s.catalog.LatestSubmissions(ctx, assignmentID)
	if err != nil {
		return similarity.Report{}, "", fmt.Errorf("service: latest submissions: %w", err)
	}

	files := make([]pipeline.Input, 0, len(submissions))

	var downloadWarnings []errs.FileOutcome

	for _, sub := range submissions {
		content, err := s.files.ReadFile(ctx, sub.Ref)
		if err != nil {
			downloadWarnings = append(downloadWarnings, errs.FileOutcome{
				Path: sub.Ref.Path, Warning: fmt.Sprintf("service: read file: %v", err),
			})

			continue
		}

		files = append(files, pipeline.Input{Ref: sub.Ref, Content: content})
	}

	reportOut, err := s.runPipeline(ctx, files, nil, s.defaultOptions)
	if err != nil {
		return similarity.Report{}, "", err
	}

	reportOut.Warnings = append(downloadWarnings, reportOut.Warnings...)

	reportID, err := s.reports.Persist(ctx, assignmentID, teacherID, reportOut)
	if err != nil {
		return similarity.Report{}, "", fmt.Errorf("service: persist report: %w", err)
	}

	reportOut.ReportID = reportID

	return reportOut, reportID, nil
}

func (s *Service) runPipeline(
	ctx context.Context, files, templates []pipeline.Input, opts similarity.Options,
) (similarity.Report, error) {
	start := s.clock.Now()

	reportOut, err := pipeline.Run(ctx, files, templates, opts, s.clock)

	if s.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}

		s.metrics.RecordRun(outcome, s.clock.Now().Sub(start), len(reportOut.Pairs))

		for range reportOut.Warnings {
			s.metrics.RecordTokenizeFailure(string(opts.Language))
		}
	}

	if err != nil {
		s.logger.Error("service: pipeline run failed", "error", err)

		return similarity.Report{}, fmt.Errorf("service: %w", err)
	}

	return reportOut, nil
}
