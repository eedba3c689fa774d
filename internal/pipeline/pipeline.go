// Package pipeline orchestrates one end-to-end analysis run: tokenize and
// fingerprint every input file on a bounded worker pool, build the
// shared-fingerprint index, optionally narrow candidate pairs for large
// cohorts, build pairs, and assemble the final Report (spec.md §4/§5).
//
// Grounded on the teacher's pkg/framework/blob_pipeline.go producer/worker
// channel idiom, generalized from git blob loading to file
// tokenize+fingerprint, and simplified since this domain has no shared
// mutable cache across workers (each worker owns one file end to end).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/classifi/simguard/pkg/similarity"
	"github.com/classifi/simguard/pkg/similarity/errs"
	"github.com/classifi/simguard/pkg/similarity/fingerprint"
	"github.com/classifi/simguard/pkg/similarity/index"
	"github.com/classifi/simguard/pkg/similarity/pairbuilder"
	"github.com/classifi/simguard/pkg/similarity/prefilter"
	"github.com/classifi/simguard/pkg/tokenize"
)

// Input is one file handed to the pipeline: its identity plus raw content.
type Input struct {
	Ref     similarity.FileRef
	Content []byte
}

// fileJob is the unit of work on the tokenize+fingerprint worker pool.
type fileJob struct {
	index int
	input Input
}

// fileResult is one worker's output for a single file.
type fileResult struct {
	index        int
	ref          similarity.FileRef
	fingerprints []similarity.Fingerprint
	tokens       []similarity.Token
	warning      *errs.FileOutcome
}

// Run executes spec.md §4's full pipeline over files, optionally ignoring
// boilerplate shared with templates, and returns the assembled Report.
// clock supplies Report.GeneratedAt so callers can inject a fake for
// deterministic tests.
func Run(
	ctx context.Context,
	files []Input,
	templates []Input,
	opts similarity.Options,
	clock similarity.Clock,
) (similarity.Report, error) {
	opts = opts.Defaults(len(files))

	if !tokenize.IsSupported(opts.Language) {
		return similarity.Report{}, fmt.Errorf("pipeline: %w", errs.ErrUnsupportedLanguage)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.AnalysisTimeout)
	defer cancel()

	fileResults, warnings, err := tokenizeAndFingerprint(ctx, files, opts)
	if err != nil {
		return similarity.Report{}, err
	}

	if len(fileResults) < 2 { //nolint:gomnd // pairwise comparison needs at least two surviving files.
		return similarity.Report{}, fmt.Errorf("pipeline: %w", errs.ErrInsufficientFiles)
	}

	idx, err := index.New(estimateFingerprintCount(fileResults))
	if err != nil {
		return similarity.Report{}, fmt.Errorf("pipeline: %w", err)
	}

	refsByID := make(map[int]similarity.FileRef, len(fileResults))
	tokenizedFiles := make([]similarity.TokenizedFile, 0, len(fileResults))

	for _, fr := range fileResults {
		idx.AddFile(fr.ref, fr.fingerprints)
		refsByID[fr.ref.FileID] = fr.ref
		tokenizedFiles = append(tokenizedFiles, similarity.TokenizedFile{Ref: fr.ref, Tokens: fr.tokens})
	}

	templateResults, templateWarnings, err := tokenizeAndFingerprint(ctx, templates, opts)
	if err != nil {
		return similarity.Report{}, err
	}

	warnings = append(warnings, templateWarnings...)

	for _, tr := range templateResults {
		idx.AddTemplate(tr.fingerprints)
	}

	if err := ctx.Err(); err != nil {
		return similarity.Report{}, classifyContextErr(err)
	}

	var candidates map[similarity.PairKey]struct{}

	if prefilter.ShouldApply(len(fileResults), opts) {
		candidates, err = prefilter.CandidatePairs(tokenizedFiles, opts.KgramLength)
		if err != nil {
			return similarity.Report{}, fmt.Errorf("pipeline: prefilter: %w", err)
		}
	}

	pairs := pairbuilder.BuildPairsWithCandidates(idx, refsByID, opts, candidates)
	pairs = capPairs(pairs, opts.MaxPairsReturned)

	refs := make([]similarity.FileRef, 0, len(fileResults))
	for _, fr := range fileResults {
		refs = append(refs, fr.ref)
	}

	return similarity.Report{
		GeneratedAt: clock.Now(),
		Language:    opts.Language,
		Options:     opts,
		FileRefs:    refs,
		Warnings:    warnings,
		Pairs:       pairs,
	}, nil
}

// tokenizeAndFingerprint runs the tokenize+fingerprint stages over a file
// set on a worker pool bounded by min(N, CPU count), per spec.md §5.
func tokenizeAndFingerprint(
	ctx context.Context,
	inputs []Input,
	opts similarity.Options,
) ([]fileResult, []errs.FileOutcome, error) {
	if len(inputs) == 0 {
		return nil, nil, nil
	}

	workerCount := min(len(inputs), runtime.NumCPU())

	jobs := make(chan fileJob, len(inputs))
	results := make([]fileResult, len(inputs))

	var wg sync.WaitGroup

	for range workerCount {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for job := range jobs {
				results[job.index] = processFile(ctx, job, opts)
			}
		}()
	}

	for i, input := range inputs {
		jobs <- fileJob{index: i, input: input}
	}

	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, classifyContextErr(err)
	}

	ok := make([]fileResult, 0, len(results))
	warnings := make([]errs.FileOutcome, 0)

	for _, r := range results {
		if r.warning != nil {
			warnings = append(warnings, *r.warning)

			continue
		}

		ok = append(ok, r)
	}

	return ok, warnings, nil
}

func processFile(ctx context.Context, job fileJob, opts similarity.Options) fileResult {
	if err := ctx.Err(); err != nil {
		return fileResult{index: job.index, ref: job.input.Ref, warning: &errs.FileOutcome{
			Path: job.input.Ref.Path, Warning: err.Error(),
		}}
	}

	tokens, err := tokenize.Tokenize(ctx, opts.Language, job.input.Content)
	if err != nil {
		return fileResult{index: job.index, ref: job.input.Ref, warning: &errs.FileOutcome{
			Path: job.input.Ref.Path, Warning: err.Error(),
		}}
	}

	fingerprints, err := fingerprint.Fingerprint(tokens, opts.KgramLength, opts.WindowSize)
	if err != nil {
		return fileResult{index: job.index, ref: job.input.Ref, warning: &errs.FileOutcome{
			Path: job.input.Ref.Path, Warning: err.Error(),
		}}
	}

	return fileResult{index: job.index, ref: job.input.Ref, tokens: tokens, fingerprints: fingerprints}
}

func estimateFingerprintCount(results []fileResult) int {
	total := 0
	for _, r := range results {
		total += len(r.fingerprints)
	}

	if total == 0 {
		return 1
	}

	return total
}

// capPairs keeps only the top maxPairs pairs by similarity, unbounded when
// maxPairs <= 0 (spec.md §6.1's max_pairs_returned default: unbounded).
func capPairs(pairs []similarity.Pair, maxPairs int) []similarity.Pair {
	if maxPairs <= 0 || len(pairs) <= maxPairs {
		return pairs
	}

	ranked := make([]similarity.Pair, len(pairs))
	copy(ranked, pairs)

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Similarity > ranked[j].Similarity })

	return ranked[:maxPairs]
}

func classifyContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("pipeline: %w", errs.ErrTimeout)
	}

	return fmt.Errorf("pipeline: %w", errs.ErrCancelled)
}
