// Package fingerprint implements winnowing over rolling hashes of token
// k-grams (spec.md §4.2). The k-gram shingle construction is grounded on
// the teacher's internal/analyzers/clones/shingler.go (Shingler.ExtractShingles,
// buildShingle/joinTypes), generalized from UAST node-type pre-order
// sequences to token-tag sequences with span tracking, and combined with a
// polynomial rolling hash in the style of the teacher's
// pkg/alg/minhash FNV-1a-based hashing (a different algorithm family:
// winnowing needs an O(1)-per-shift rolling hash over *ordered* k-grams,
// not MinHash's unordered sketch).
package fingerprint

import (
	"errors"
	"hash/fnv"

	"github.com/classifi/simguard/pkg/similarity"
)

// polyBase is the multiplier for the polynomial rolling hash. Chosen odd so
// every shift touches all bits of the accumulator.
const polyBase uint64 = 0x100000001b3 // FNV-1a 64-bit prime, reused as a rolling-hash base.

// ErrInvalidParams is returned when k or w is not positive.
var ErrInvalidParams = errors.New("fingerprint: k and w must be positive")

// Fingerprint computes the winnowed fingerprint set for a token stream.
// Output is sorted by first-token position; each fingerprint's span covers
// exactly k consecutive tokens. Returns nil (not an error) when there are
// fewer than k tokens — there is no k-gram to hash.
func Fingerprint(tokens []similarity.Token, k, w int) ([]similarity.Fingerprint, error) {
	if k <= 0 || w <= 0 {
		return nil, ErrInvalidParams
	}

	n := len(tokens)
	if n < k {
		return nil, nil
	}

	kgramHashes := rollingHashes(tokens, k)
	selected := winnow(kgramHashes, w)

	out := make([]similarity.Fingerprint, 0, len(selected))

	for _, idx := range selected {
		out = append(out, similarity.Fingerprint{
			Hash:     kgramHashes[idx],
			Span:     kgramSpan(tokens, idx, k),
			StartTok: idx,
			EndTok:   idx + k - 1,
		})
	}

	return out, nil
}

// rollingHashes computes the polynomial rolling hash of every k-gram of
// token lexemes. hashes[i] covers tokens[i:i+k].
func rollingHashes(tokens []similarity.Token, k int) []uint64 {
	n := len(tokens)
	numGrams := n - k + 1

	tokenHashes := make([]uint64, n)
	for i, t := range tokens {
		tokenHashes[i] = lexemeHash(t.Lexeme)
	}

	highOrder := uint64(1)
	for range k - 1 {
		highOrder *= polyBase
	}

	hashes := make([]uint64, numGrams)

	var h uint64
	for i := range k {
		h = h*polyBase + tokenHashes[i]
	}

	hashes[0] = h

	for i := 1; i < numGrams; i++ {
		h = (h-tokenHashes[i-1]*highOrder)*polyBase + tokenHashes[i+k-1]
		hashes[i] = h
	}

	return hashes
}

// lexemeHash hashes a single token lexeme with FNV-1a, the same base hash
// function the teacher's minhash package uses per-token.
func lexemeHash(lexeme string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(lexeme))

	return h.Sum64()
}

// kgramSpan returns the span union of tokens[idx:idx+k].
func kgramSpan(tokens []similarity.Token, idx, k int) similarity.Span {
	span := tokens[idx].Span
	for i := idx + 1; i < idx+k; i++ {
		span = span.Union(tokens[i].Span)
	}

	return span
}

// winnow slides a window of size w over hashes and selects, for each
// window, the position of the minimum value, breaking ties toward the
// rightmost minimum (the density bound 2/(w+1) depends on this choice).
// Consecutive duplicate selections are suppressed.
func winnow(hashes []uint64, w int) []int {
	if len(hashes) == 0 {
		return nil
	}

	if w > len(hashes) {
		w = len(hashes)
	}

	var selected []int

	lastSelected := -1

	for start := 0; start+w <= len(hashes); start++ {
		minIdx := start

		for i := start + 1; i < start+w; i++ {
			if hashes[i] <= hashes[minIdx] {
				minIdx = i
			}
		}

		if minIdx != lastSelected {
			selected = append(selected, minIdx)
			lastSelected = minIdx
		}
	}

	return selected
}
