// Package prefilter implements SPEC_FULL.md's optional MinHash+LSH
// candidate-pair narrowing for large submission cohorts. It sits in front
// of pkg/similarity/pairbuilder: when enabled, only candidate pairs it
// emits are handed to the exact fragment-merge stage. This is a pure
// performance optimization — it can only narrow the candidate set, never
// grow it, and is off by default (spec.md §4.4's "every pair sharing ≥1
// hash" behavior applies unless a cohort exceeds Options.PrefilterMinFiles).
package prefilter

import (
	"strconv"
	"strings"

	"github.com/classifi/simguard/pkg/alg/lsh"
	"github.com/classifi/simguard/pkg/alg/minhash"
	"github.com/classifi/simguard/pkg/similarity"
)

// Default LSH banding parameters: numHashes = numBands * numRows.
// 16 bands of 4 rows gives an approximate similarity threshold of
// (1/numBands)^(1/numRows) ≈ 0.5, matching the default flag threshold.
const (
	DefaultNumHashes = 64
	DefaultNumBands  = 16
	defaultNumRows   = DefaultNumHashes / DefaultNumBands
)

// ShouldApply reports whether the candidate prefilter should run for a
// cohort of this size, per Options.PrefilterMinFiles.
func ShouldApply(numFiles int, opts similarity.Options) bool {
	return numFiles >= opts.PrefilterMinFiles
}

// BuildSignature builds a MinHash signature over a file's token stream,
// using the same k-gram shingle boundaries the fingerprinter uses, so the
// prefilter's notion of "similar" tracks the exact stage's notion of
// "shares fingerprints."
func BuildSignature(tokens []similarity.Token, k, numHashes int) (*minhash.Signature, error) {
	sig, err := minhash.New(numHashes)
	if err != nil {
		return nil, err
	}

	if len(tokens) < k {
		return sig, nil
	}

	var shingle strings.Builder

	for i := 0; i+k <= len(tokens); i++ {
		shingle.Reset()

		for j := i; j < i+k; j++ {
			shingle.WriteString(tokens[j].Lexeme)
			shingle.WriteByte(0)
		}

		sig.Add([]byte(shingle.String()))
	}

	return sig, nil
}

// CandidatePairs builds a MinHash signature per file, indexes them with
// LSH, and returns the set of file-ID pairs that share at least one LSH
// band — the candidate set the pair builder should restrict itself to.
func CandidatePairs(files []similarity.TokenizedFile, kgramLength int) (map[similarity.PairKey]struct{}, error) {
	idx, err := lsh.New(DefaultNumBands, defaultNumRows)
	if err != nil {
		return nil, err
	}

	sigs := make(map[int]*minhash.Signature, len(files))

	for _, f := range files {
		sig, err := BuildSignature(f.Tokens, kgramLength, DefaultNumHashes)
		if err != nil {
			return nil, err
		}

		sigs[f.Ref.FileID] = sig

		if err := idx.Insert(strconv.Itoa(f.Ref.FileID), sig); err != nil {
			return nil, err
		}
	}

	candidates := make(map[similarity.PairKey]struct{})

	for _, f := range files {
		ids, err := idx.Query(sigs[f.Ref.FileID])
		if err != nil {
			return nil, err
		}

		for _, idStr := range ids {
			other, convErr := strconv.Atoi(idStr)
			if convErr != nil || other == f.Ref.FileID {
				continue
			}

			candidates[similarity.NewPairKey(f.Ref.FileID, other)] = struct{}{}
		}
	}

	return candidates, nil
}
