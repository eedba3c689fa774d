// Package similarity defines the core data model and the orchestration
// surface of the source-code similarity engine: tokenized files,
// fingerprints, fragments, pairs, and reports, plus the collaborator
// interfaces (collab.go) that internal/service uses to wire the pipeline
// stages together for callers (the HTTP layer, the CLI, the auto-analysis
// coordinator).
package similarity

import (
	"sync"
	"time"

	"github.com/classifi/simguard/pkg/similarity/errs"
)

// LangTag identifies a supported tokenizer grammar.
type LangTag string

// Supported languages.
const (
	LangJava   LangTag = "java"
	LangPython LangTag = "python"
	LangC      LangTag = "c"
)

// Span is a half-open (on the column) source range, 0-indexed.
// A span [StartRow, StartCol) to [EndRow, EndCol) is non-decreasing by
// (StartRow, StartCol) relative to any span preceding it in source order.
type Span struct {
	StartRow int
	StartCol int
	EndRow   int
	EndCol   int
}

// Union returns the smallest span covering both s and other.
func (s Span) Union(other Span) Span {
	u := s

	if other.before(s) {
		u.StartRow, u.StartCol = other.StartRow, other.StartCol
	}

	if s.endsBefore(other) {
		u.EndRow, u.EndCol = other.EndRow, other.EndCol
	}

	return u
}

func (s Span) before(other Span) bool {
	if s.StartRow != other.StartRow {
		return s.StartRow < other.StartRow
	}

	return s.StartCol < other.StartCol
}

func (s Span) endsBefore(other Span) bool {
	if s.EndRow != other.EndRow {
		return s.EndRow < other.EndRow
	}

	return s.EndCol < other.EndCol
}

// Token is a single normalized structural token: its category tag (or, for
// keywords/operators/delimiters, the literal lexeme) plus its source span.
// Identifiers and literal values are represented solely by their category
// tag string (e.g. "IDENT", "INT_LIT") — the original text is discarded so
// that tokenization is robust to identifier renaming.
type Token struct {
	Lexeme string
	Span   Span
}

// FileRef is the immutable identity of a tokenized file within one analysis
// run. Dense integer FileID values are assigned 0..N-1 in input order.
type FileRef struct {
	FileID       int
	Path         string
	Filename     string
	SubmissionID *int64
	StudentID    *string
	StudentName  *string
}

// TokenizedFile owns a file's identity, its original content (needed for
// viewer slicing), and its derived ordered token sequence.
type TokenizedFile struct {
	Ref     FileRef
	Content []byte
	Tokens  []Token
}

// Fingerprint is a 64-bit hash over a k-gram of tokens, paired with the span
// that is the union of the k tokens' spans. StartTok/EndTok are the dense,
// 0-indexed token positions (within the owning file's token stream) of the
// k-gram's first and last token — the pair builder needs these to test
// token-adjacency between fragments, which the row/col Span alone cannot
// express exactly.
type Fingerprint struct {
	Hash     uint64
	Span     Span
	StartTok int
	EndTok   int
}

// Occurrence records where a fingerprint hash appeared in a specific file.
type Occurrence struct {
	FileID   int
	Span     Span
	StartTok int
	EndTok   int
}

// PairKey is an unordered pair of file IDs in canonical order (A < B).
type PairKey struct {
	A int
	B int
}

// NewPairKey builds a PairKey in canonical order from two file IDs.
func NewPairKey(x, y int) PairKey {
	if x < y {
		return PairKey{A: x, B: y}
	}

	return PairKey{A: y, B: x}
}

// Fragment is a maximal source-order-aligned run of shared fingerprints
// between a specific pair of files.
type Fragment struct {
	LeftSpan   Span
	RightSpan  Span
	KgramCount int
}

// SharedFingerprint is a fingerprint hash together with every occurrence of
// it across the files of one analysis run. A SharedFingerprint is "shared"
// once it has occurrences in ≥2 distinct files. Ignored marks a hash that
// originates from a declared template file. Index.SharedFingerprints omits
// template hashes and hashes outside the min/max files-per-hash bounds
// instead of returning them, so every value it returns has Ignored false.
type SharedFingerprint struct {
	Hash        uint64
	Occurrences []Occurrence
	Ignored     bool
}

// FileCount returns the number of distinct files this fingerprint occurs
// in.
func (s SharedFingerprint) FileCount() int {
	seen := make(map[int]struct{}, len(s.Occurrences))
	for _, occ := range s.Occurrences {
		seen[occ.FileID] = struct{}{}
	}

	return len(seen)
}

// Pair is the computed similarity relationship between two files. All
// scalar metrics are populated eagerly at build time (they are needed for
// ranking), but the Fragment list itself is exposed only through
// BuildFragments: no external observer can see a half-built fragment list,
// and repeated calls return the same cached slice (spec.md §9's "no
// externally-visible half-built caches" redesign note). Pair must be
// referenced through a pointer once constructed (e.g. via a slice index)
// so the fragment cache is shared across callers.
type Pair struct {
	PairID       int
	Left         FileRef
	Right        FileRef
	Similarity   float64
	Overlap      int
	Longest      int
	LeftCovered  int
	RightCovered int
	LeftTotal    int
	RightTotal   int

	fragmentsOnce sync.Once
	fragmentsFn   func() []Fragment
	fragments     []Fragment
}

// NewPair constructs a Pair with its eagerly-computed metrics and a
// fragment-materializing closure. buildFragments may be expensive; it runs
// at most once, on the first BuildFragments call.
func NewPair(
	pairID int,
	left, right FileRef,
	similarityScore float64,
	overlap, longest, leftCovered, rightCovered, leftTotal, rightTotal int,
	buildFragments func() []Fragment,
) Pair {
	return Pair{
		PairID:       pairID,
		Left:         left,
		Right:        right,
		Similarity:   similarityScore,
		Overlap:      overlap,
		Longest:      longest,
		LeftCovered:  leftCovered,
		RightCovered: rightCovered,
		LeftTotal:    leftTotal,
		RightTotal:   rightTotal,
		fragmentsFn:  buildFragments,
	}
}

// BuildFragments materializes and caches this pair's matching fragments.
func (p *Pair) BuildFragments() []Fragment {
	p.fragmentsOnce.Do(func() {
		if p.fragmentsFn != nil {
			p.fragments = p.fragmentsFn()
		}
	})

	return p.fragments
}

// ReportSummary is the aggregate view over one Report's pairs.
// StdDevSimilarity is additive to spec.md §3's summary shape.
type ReportSummary struct {
	TotalFiles        int
	TotalPairs        int
	FlaggedPairs      int
	AverageSimilarity float64
	StdDevSimilarity  float64
	MaxSimilarity     float64
}

// Report is the materialized output of one analysis run. Warnings uses
// errs.FileOutcome to record non-fatal, file-scoped problems (e.g. one
// file's parse failure) that did not abort the run.
type Report struct {
	ReportID    string
	GeneratedAt time.Time
	Language    LangTag
	Options     Options
	FileRefs    []FileRef
	Warnings    []errs.FileOutcome
	Pairs       []Pair
}

// Options configures a single analysis run. Zero values are replaced with
// the package defaults by Defaults().
type Options struct {
	Language           LangTag
	KgramLength        int
	WindowSize         int
	MinFilesPerHash    int
	MaxFilesPerHash    int
	SimilarityThreshold float64
	MaxPairsReturned   int
	TemplatePaths      []string
	AnalysisTimeout    time.Duration
	PrefilterMinFiles  int
}

// Default configuration constants (spec.md §6.1).
const (
	DefaultKgramLength         = 25
	DefaultWindowSize          = 40
	DefaultMinFilesPerHash     = 2
	DefaultSimilarityThreshold = 0.5
	DefaultAnalysisTimeout     = 5 * time.Minute
	DefaultPrefilterMinFiles   = 500
)

// Defaults returns o with zero-valued fields replaced by package defaults.
// numFiles is used to derive MaxFilesPerHash = max(3, ceil(numFiles/2))
// when it was left unset.
func (o Options) Defaults(numFiles int) Options {
	if o.KgramLength <= 0 {
		o.KgramLength = DefaultKgramLength
	}

	if o.WindowSize <= 0 {
		o.WindowSize = DefaultWindowSize
	}

	if o.MinFilesPerHash <= 0 {
		o.MinFilesPerHash = DefaultMinFilesPerHash
	}

	if o.MaxFilesPerHash <= 0 {
		o.MaxFilesPerHash = defaultMaxFilesPerHash(numFiles)
	}

	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = DefaultSimilarityThreshold
	}

	if o.AnalysisTimeout <= 0 {
		o.AnalysisTimeout = DefaultAnalysisTimeout
	}

	if o.PrefilterMinFiles <= 0 {
		o.PrefilterMinFiles = DefaultPrefilterMinFiles
	}

	return o
}

// defaultMaxFilesPerHash implements max(3, ceil(N/2)) from spec.md §6.1.
func defaultMaxFilesPerHash(numFiles int) int {
	half := (numFiles + 1) / 2
	if half < 3 {
		return 3
	}

	return half
}
