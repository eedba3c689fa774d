// Package commands implements simguard's CLI command handlers.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/classifi/simguard/internal/pipeline"
	"github.com/classifi/simguard/internal/service"
	"github.com/classifi/simguard/pkg/similarity"
	"github.com/classifi/simguard/pkg/similarity/errs"
	"github.com/classifi/simguard/pkg/similarity/report"
)

// Exit codes (spec.md §6.4).
const (
	ExitOK              = 0
	ExitBadArgs         = 2
	ExitTokenizeFailure = 3
	ExitTimeout         = 4
)

const (
	analyzeCmdUse   = "analyze FILE..."
	analyzeCmdShort = "Compare source files for structural similarity"

	flagLang      = "lang"
	flagKgram     = "kgram"
	flagWindow    = "window"
	flagTemplate  = "template"
	flagThreshold = "threshold"
)

// NewAnalyzeCommand builds the offline-reproduction CLI entry point of
// spec.md §6.4: `analyze --lang {java|python|c} [-k 25] [-w 40]
// [--template FILE] [--threshold 0.5] FILE...`.
func NewAnalyzeCommand() *cobra.Command {
	var (
		lang      string
		kgram     int
		window    int
		templates []string
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   analyzeCmdUse,
		Short: analyzeCmdShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, lang, kgram, window, templates, threshold)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&lang, flagLang, "", "source language: java, python, or c (required)")
	cmd.Flags().IntVarP(&kgram, flagKgram, "k", similarity.DefaultKgramLength, "k-gram length")
	cmd.Flags().IntVarP(&window, flagWindow, "w", similarity.DefaultWindowSize, "winnowing window size")
	cmd.Flags().StringArrayVar(&templates, flagTemplate, nil, "boilerplate template file (repeatable)")
	cmd.Flags().Float64Var(&threshold, flagThreshold, similarity.DefaultSimilarityThreshold, "similarity flag threshold")

	return cmd
}

func runAnalyze(
	cmd *cobra.Command, args []string, lang string, kgram, window int, templatePaths []string, threshold float64,
) error {
	if len(args) < 2 { //nolint:gomnd // pairwise comparison needs at least two files.
		return exitErr(ExitBadArgs, fmt.Errorf("analyze: at least two FILE arguments are required"))
	}

	langTag := similarity.LangTag(lang)

	switch langTag {
	case similarity.LangJava, similarity.LangPython, similarity.LangC:
	default:
		return exitErr(ExitBadArgs, fmt.Errorf("analyze: --lang must be one of java, python, c, got %q", lang))
	}

	files, err := readInputs(args)
	if err != nil {
		return exitErr(ExitBadArgs, err)
	}

	templateInputs, err := readInputs(templatePaths)
	if err != nil {
		return exitErr(ExitBadArgs, err)
	}

	opts := similarity.Options{
		Language:            langTag,
		KgramLength:         kgram,
		WindowSize:          window,
		SimilarityThreshold: threshold,
		TemplatePaths:       templatePaths,
	}

	svc := service.New(nil, nil, nil, similarity.SystemClock{}, opts, nil, nil)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	resp, runErr := svc.AnalyzeInline(ctx, files, templateInputs, langTag, opts)
	if runErr != nil {
		return classifyAnalyzeErr(runErr)
	}

	printSummary(cmd, resp)

	return nil
}

func readInputs(paths []string) ([]pipeline.Input, error) {
	inputs := make([]pipeline.Input, 0, len(paths))

	for i, path := range paths {
		content, err := os.ReadFile(path) //nolint:gosec // CLI args are trusted local paths by design.
		if err != nil {
			return nil, fmt.Errorf("analyze: read %s: %w", path, err)
		}

		inputs = append(inputs, pipeline.Input{
			Ref: similarity.FileRef{
				FileID:   i,
				Path:     path,
				Filename: filepath.Base(path),
			},
			Content: content,
		})
	}

	return inputs, nil
}

func classifyAnalyzeErr(err error) error {
	switch {
	case errors.Is(err, errs.ErrTimeout):
		return exitErr(ExitTimeout, err)
	case errors.Is(err, errs.ErrUnsupportedLanguage):
		return exitErr(ExitBadArgs, err)
	case errors.Is(err, errs.ErrInsufficientFiles):
		// runAnalyze has already required two inputs, so the pipeline only
		// reports this when tokenization dropped files below two.
		return exitErr(ExitTokenizeFailure, err)
	default:
		return exitErr(ExitTokenizeFailure, err)
	}
}

func printSummary(cmd *cobra.Command, resp service.AnalyzeResponse) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "files: %d  pairs: %d  flagged: %d  avg: %.4f  max: %.4f\n",
		resp.Summary.TotalFiles, resp.Summary.TotalPairs, resp.Summary.FlaggedPairs,
		resp.Summary.AverageSimilarity, resp.Summary.MaxSimilarity)

	for _, p := range report.PairsSortedBy(&similarity.Report{Pairs: resp.Pairs}, report.MetricSimilarity) {
		fmt.Fprintf(out, "  %s <-> %s  similarity=%.4f overlap=%d longest=%d\n",
			p.Left.Path, p.Right.Path, p.Similarity, p.Overlap, p.Longest)
	}
}

// exitStatusErr carries the process exit code a CLI failure should produce.
type exitStatusErr struct {
	code int
	err  error
}

func (e *exitStatusErr) Error() string { return e.err.Error() }
func (e *exitStatusErr) Unwrap() error { return e.err }

func exitErr(code int, err error) error {
	return &exitStatusErr{code: code, err: err}
}

// ExitCode extracts the process exit code from an error returned by a
// command's RunE, defaulting to ExitBadArgs for any other error.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var e *exitStatusErr
	if errors.As(err, &e) {
		return e.code
	}

	return ExitBadArgs
}
