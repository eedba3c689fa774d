// Package persist is the SQLite-backed similarity.ReportStore (spec.md
// §4.6/§6.2): a transactional three-table write of {report, results,
// fragments} and on-demand rehydration.
//
// Grounded on the embed.FS migration runner and plain database/sql idiom
// from the example pack's wingthing repo (internal/store/store.go,
// internal/store/tasks.go) — this repo's teacher carries no persistence
// layer of its own, so this package is built the way the pack's other
// SQLite-backed service structures one: sql.Open("sqlite", dsn), a
// schema_migrations bookkeeping table, WAL + foreign_keys pragmas, and
// plain positional-parameter queries rather than an ORM.
package persist

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/classifi/simguard/pkg/similarity"
	"github.com/classifi/simguard/pkg/similarity/errs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeFormat is the textual encoding used for generated_at, matching the
// pack's own avoidance of relying on driver-native time.Time round-tripping.
const timeFormat = time.RFC3339Nano

// Store is the SQLite-backed ReportStore. The zero value is not usable;
// construct with Open.
type Store struct {
	db *sql.DB
}

var _ similarity.ReportStore = (*Store)(nil)

// Open opens (creating if absent) the SQLite database at dsn and applies
// any pending migrations.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("persist: open db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: enable foreign keys: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("persist: migrate: %w", err)
	}

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	files := make([]string, 0, len(entries))

	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}

	sort.Strings(files)

	for _, f := range files {
		if err := s.applyMigration(f); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) applyMigration(name string) error {
	var applied int

	err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", name).Scan(&applied)
	if err != nil {
		return fmt.Errorf("check migration %s: %w", name, err)
	}

	if applied > 0 {
		return nil
	}

	content, err := migrationsFS.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx for %s: %w", name, err)
	}

	if _, err := tx.Exec(string(content)); err != nil {
		tx.Rollback()
		return fmt.Errorf("exec migration %s: %w", name, err)
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", name); err != nil {
		tx.Rollback()
		return fmt.Errorf("record migration %s: %w", name, err)
	}

	return tx.Commit()
}

// Persist writes report, its pairs, and their fragments atomically and
// returns the assigned report ID. Fragments are read from each pair's
// lazily-built slice, which forces BuildFragments for every pair once.
// teacherID is bound into the reports.teacher_id column; database/sql's
// default parameter converter dereferences a non-nil *string and maps a
// nil one to NULL, so no sql.NullString wrapping is needed.
func (s *Store) Persist(
	ctx context.Context, assignmentID string, teacherID *string, report similarity.Report,
) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", classifyWriteErr(err)
	}

	defer tx.Rollback() //nolint:errcheck // no-op once committed.

	summary := reportSummary(report)

	res, err := tx.ExecContext(ctx,
		`INSERT INTO reports (assignment_id, teacher_id, generated_at, total_submissions, total_comparisons,
			flagged_pairs, average_similarity, highest_similarity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		assignmentID, teacherID, report.GeneratedAt.UTC().Format(timeFormat), len(report.FileRefs), len(report.Pairs),
		summary.FlaggedPairs, formatScore(summary.AverageSimilarity), formatScore(summary.MaxSimilarity))
	if err != nil {
		return "", classifyWriteErr(err)
	}

	reportID, err := res.LastInsertId()
	if err != nil {
		return "", classifyWriteErr(err)
	}

	for _, pair := range report.Pairs {
		if err := insertResult(ctx, tx, reportID, pair, report.Options.SimilarityThreshold); err != nil {
			return "", classifyWriteErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", classifyWriteErr(err)
	}

	return strconv.FormatInt(reportID, 10), nil
}

func insertResult(ctx context.Context, tx *sql.Tx, reportID int64, pair similarity.Pair, threshold float64) error {
	sub1, sub2, swapped := canonicalSubmissions(pair.Left, pair.Right)

	res, err := tx.ExecContext(ctx,
		`INSERT INTO results (report_id, sub1_id, sub2_id, structural_score, overlap, longest_fragment,
			left_covered, right_covered, left_total, right_total, is_flagged, swapped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reportID, sub1, sub2, formatScore(pair.Similarity), pair.Overlap, pair.Longest,
		pair.LeftCovered, pair.RightCovered, pair.LeftTotal, pair.RightTotal,
		boolToInt(pair.Similarity >= threshold), boolToInt(swapped))
	if err != nil {
		return err
	}

	resultID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, frag := range pair.BuildFragments() {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO fragments (result_id, left_start_row, left_start_col, left_end_row, left_end_col,
				right_start_row, right_start_col, right_end_row, right_end_col, length)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			resultID,
			frag.LeftSpan.StartRow, frag.LeftSpan.StartCol, frag.LeftSpan.EndRow, frag.LeftSpan.EndCol,
			frag.RightSpan.StartRow, frag.RightSpan.StartCol, frag.RightSpan.EndRow, frag.RightSpan.EndCol,
			frag.KgramCount)
		if err != nil {
			return err
		}
	}

	return nil
}

// Load rehydrates a report sufficient for display: summary fields, pair
// metrics, and file references derived from the submission IDs referenced
// by its results. Fragment lists are not queried until a caller invokes
// BuildFragments on a specific pair.
func (s *Store) Load(ctx context.Context, reportID string) (similarity.Report, error) {
	id, err := strconv.ParseInt(reportID, 10, 64)
	if err != nil {
		return similarity.Report{}, fmt.Errorf("persist: %w", errs.ErrReportNotFound)
	}

	var (
		generatedAtRaw string
		totalSubs      int
	)

	row := s.db.QueryRowContext(ctx,
		`SELECT generated_at, total_submissions FROM reports WHERE id = ?`, id)

	if err := row.Scan(&generatedAtRaw, &totalSubs); err != nil {
		if err == sql.ErrNoRows {
			return similarity.Report{}, fmt.Errorf("persist: %w", errs.ErrReportNotFound)
		}

		return similarity.Report{}, fmt.Errorf("persist: load report %s: %w", reportID, err)
	}

	generatedAt, err := time.Parse(timeFormat, generatedAtRaw)
	if err != nil {
		return similarity.Report{}, fmt.Errorf("persist: parse generated_at for report %s: %w", reportID, err)
	}

	pairs, fileRefs, err := s.loadPairs(ctx, id)
	if err != nil {
		return similarity.Report{}, fmt.Errorf("persist: load pairs for report %s: %w", reportID, err)
	}

	return similarity.Report{
		ReportID:    reportID,
		GeneratedAt: generatedAt,
		FileRefs:    fileRefs,
		Pairs:       pairs,
	}, nil
}

func (s *Store) loadPairs(ctx context.Context, reportID int64) ([]similarity.Pair, []similarity.FileRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sub1_id, sub2_id, structural_score, overlap, longest_fragment,
			left_covered, right_covered, left_total, right_total, swapped
		FROM results WHERE report_id = ? ORDER BY id`, reportID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var pairs []similarity.Pair

	seenFiles := make(map[int64]struct{})

	var fileRefs []similarity.FileRef

	pairID := 0

	for rows.Next() {
		var (
			resultID                   int64
			sub1, sub2                 int64
			score                      string
			overlap, longest           int
			leftCovered, rightCovered  int
			leftTotal, rightTotal      int
			swappedInt                 int
		)

		if err := rows.Scan(&resultID, &sub1, &sub2, &score, &overlap, &longest,
			&leftCovered, &rightCovered, &leftTotal, &rightTotal, &swappedInt); err != nil {
			return nil, nil, err
		}

		for _, sub := range [2]int64{sub1, sub2} {
			if _, ok := seenFiles[sub]; !ok {
				seenFiles[sub] = struct{}{}
				fileRefs = append(fileRefs, submissionFileRef(sub))
			}
		}

		similarityScore, err := strconv.ParseFloat(score, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("parse structural_score: %w", err)
		}

		left := submissionFileRef(sub1)
		right := submissionFileRef(sub2)
		swapped := swappedInt != 0

		if swapped {
			leftCovered, rightCovered = rightCovered, leftCovered
			leftTotal, rightTotal = rightTotal, leftTotal
		}

		store := s
		capturedResultID := resultID

		pair := similarity.NewPair(pairID, left, right, similarityScore, overlap, longest,
			leftCovered, rightCovered, leftTotal, rightTotal,
			func() []similarity.Fragment { return store.loadFragments(context.Background(), capturedResultID, swapped) })

		pairs = append(pairs, pair)
		pairID++
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	return pairs, fileRefs, nil
}

func (s *Store) loadFragments(ctx context.Context, resultID int64, swapped bool) []similarity.Fragment {
	rows, err := s.db.QueryContext(ctx,
		`SELECT left_start_row, left_start_col, left_end_row, left_end_col,
			right_start_row, right_start_col, right_end_row, right_end_col, length
		FROM fragments WHERE result_id = ? ORDER BY id`, resultID)
	if err != nil {
		slog.Error("persist: load fragments failed", "result_id", resultID, "error", err)
		return nil
	}
	defer rows.Close()

	var fragments []similarity.Fragment

	for rows.Next() {
		var left, right similarity.Span

		var length int

		if err := rows.Scan(&left.StartRow, &left.StartCol, &left.EndRow, &left.EndCol,
			&right.StartRow, &right.StartCol, &right.EndRow, &right.EndCol, &length); err != nil {
			slog.Error("persist: scan fragment failed", "result_id", resultID, "error", err)
			return nil
		}

		if swapped {
			left, right = right, left
		}

		fragments = append(fragments, similarity.Fragment{LeftSpan: left, RightSpan: right, KgramCount: length})
	}

	return fragments
}

// LatestForAssignment returns the most recently generated report for an
// assignment, if any.
func (s *Store) LatestForAssignment(ctx context.Context, assignmentID string) (similarity.Report, bool, error) {
	var id int64

	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM reports WHERE assignment_id = ? ORDER BY generated_at DESC LIMIT 1`, assignmentID).Scan(&id)
	if err == sql.ErrNoRows {
		return similarity.Report{}, false, nil
	}

	if err != nil {
		return similarity.Report{}, false, fmt.Errorf("persist: latest for assignment %s: %w", assignmentID, err)
	}

	report, err := s.Load(ctx, strconv.FormatInt(id, 10))
	if err != nil {
		return similarity.Report{}, false, err
	}

	return report, true, nil
}

// Delete removes a report and cascades to its results and fragments.
func (s *Store) Delete(ctx context.Context, reportID string) error {
	id, err := strconv.ParseInt(reportID, 10, 64)
	if err != nil {
		return fmt.Errorf("persist: %w", errs.ErrReportNotFound)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return classifyWriteErr(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return classifyWriteErr(err)
	}

	if n == 0 {
		return fmt.Errorf("persist: %w", errs.ErrReportNotFound)
	}

	return nil
}

func reportSummary(report similarity.Report) similarity.ReportSummary {
	flagged := 0
	total := 0.0
	maxSim := 0.0

	for _, p := range report.Pairs {
		total += p.Similarity

		if p.Similarity > maxSim {
			maxSim = p.Similarity
		}

		if p.Similarity >= report.Options.SimilarityThreshold {
			flagged++
		}
	}

	avg := 0.0
	if len(report.Pairs) > 0 {
		avg = total / float64(len(report.Pairs))
	}

	return similarity.ReportSummary{
		TotalFiles:        len(report.FileRefs),
		TotalPairs:        len(report.Pairs),
		FlaggedPairs:      flagged,
		AverageSimilarity: avg,
		MaxSimilarity:     maxSim,
	}
}

// canonicalSubmissions derives the (sub1 < sub2, swapped) triple spec.md
// §4.6 requires, falling back to FileID when a FileRef carries no
// SubmissionID (e.g. ad hoc files run through a catalog that doesn't
// track submissions).
func canonicalSubmissions(left, right similarity.FileRef) (sub1, sub2 int64, swapped bool) {
	leftID := submissionID(left)
	rightID := submissionID(right)

	if leftID <= rightID {
		return leftID, rightID, false
	}

	return rightID, leftID, true
}

func submissionID(ref similarity.FileRef) int64 {
	if ref.SubmissionID != nil {
		return *ref.SubmissionID
	}

	return int64(ref.FileID)
}

func submissionFileRef(subID int64) similarity.FileRef {
	return similarity.FileRef{FileID: int(subID), SubmissionID: &subID}
}

// formatScore renders a score as a decimal string with 4 fractional
// digits, per spec.md §6.2's stable-comparison requirement.
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

func classifyWriteErr(err error) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	if strings.Contains(msg, "locked") || strings.Contains(msg, "busy") || strings.Contains(msg, "constraint") {
		return fmt.Errorf("persist: %w: %w", errs.ErrPersistenceConflict, err)
	}

	return fmt.Errorf("persist: %w: %w", errs.ErrPersistenceFailed, err)
}
