// Package pairbuilder implements spec.md §4.4: turning a shared-fingerprint
// index into per-file-pair similarity scores and merged matching fragments.
package pairbuilder

import (
	"sort"

	"github.com/classifi/simguard/pkg/alg/interval"
	"github.com/classifi/simguard/pkg/similarity"
)

// FingerprintSource is the subset of index.Index the pair builder consumes.
// Declared here, rather than depending on the index package's concrete
// type, so the builder is testable against a fake without a sibling-package
// import.
type FingerprintSource interface {
	SharedFingerprints(minFiles, maxFiles int) []similarity.SharedFingerprint
	FileFingerprintCount(fileID int) int
}

// contribution is one (pair_key, left_span, right_span) triple produced by
// a single shared fingerprint occurring in both files of a pair.
type contribution struct {
	leftSpan, rightSpan        similarity.Span
	leftStartTok, leftEndTok   int
	rightStartTok, rightEndTok int
}

// candidate is a merged run of contributions (4.4.2) before overlap
// resolution (4.4.3). It carries token endpoints alongside the Fragment so
// resolution can query the interval trees without recomputing endpoints
// from the row/col Span.
type candidate struct {
	frag                       similarity.Fragment
	leftStartTok, leftEndTok   int
	rightStartTok, rightEndTok int
}

// BuildPairs implements the build_pairs(index, files) contract. opts
// supplies the k used during fingerprinting (needed for the adjacency gap
// bound) and the min/max-files-per-hash bounds used to pull shared
// fingerprints from src. files must be keyed by FileID.
func BuildPairs(src FingerprintSource, files map[int]similarity.FileRef, opts similarity.Options) []similarity.Pair {
	return BuildPairsWithCandidates(src, files, opts, nil)
}

// BuildPairsWithCandidates is BuildPairs restricted to a candidate pair
// set (SPEC_FULL.md's optional MinHash+LSH prefilter for large cohorts —
// see pkg/similarity/prefilter). A nil or empty candidates set means no
// restriction: every pair sharing ≥1 non-ignored fingerprint is built,
// matching spec.md §4.4 exactly.
func BuildPairsWithCandidates(
	src FingerprintSource,
	files map[int]similarity.FileRef,
	opts similarity.Options,
	candidates map[similarity.PairKey]struct{},
) []similarity.Pair {
	buckets := collectContributions(src, opts.MinFilesPerHash, opts.MaxFilesPerHash)

	if len(candidates) > 0 {
		for key := range buckets {
			if _, ok := candidates[key]; !ok {
				delete(buckets, key)
			}
		}
	}

	keys := make([]similarity.PairKey, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].A != keys[j].A {
			return keys[i].A < keys[j].A
		}

		return keys[i].B < keys[j].B
	})

	pairs := make([]similarity.Pair, 0, len(keys))

	for pairID, key := range keys {
		fragments := mergeAndResolve(buckets[key], opts.KgramLength)
		pairs = append(pairs, buildPair(pairID, key, fragments, files, src))
	}

	return pairs
}

// IsFlagged reports whether a pair meets the similarity threshold
// (spec.md §4.4: "flagged" at similarity >= threshold, default 0.5).
func IsFlagged(p similarity.Pair, threshold float64) bool {
	return p.Similarity >= threshold
}

func collectContributions(src FingerprintSource, minFiles, maxFiles int) map[similarity.PairKey][]contribution {
	buckets := make(map[similarity.PairKey][]contribution)

	for _, sf := range src.SharedFingerprints(minFiles, maxFiles) {
		occs := sf.Occurrences
		for i := range occs {
			for j := i + 1; j < len(occs); j++ {
				a, b := occs[i], occs[j]
				if a.FileID == b.FileID {
					continue
				}

				key := similarity.NewPairKey(a.FileID, b.FileID)

				left, right := a, b
				if a.FileID != key.A {
					left, right = b, a
				}

				buckets[key] = append(buckets[key], contribution{
					leftSpan:      left.Span,
					rightSpan:     right.Span,
					leftStartTok:  left.StartTok,
					leftEndTok:    left.EndTok,
					rightStartTok: right.StartTok,
					rightEndTok:   right.EndTok,
				})
			}
		}
	}

	return buckets
}

// mergeAndResolve runs the merge (4.4.2) and overlap-resolution (4.4.3)
// steps for one pair's contributions.
func mergeAndResolve(contributions []contribution, k int) []similarity.Fragment {
	if len(contributions) == 0 {
		return nil
	}

	sort.Slice(contributions, func(i, j int) bool {
		if contributions[i].leftStartTok != contributions[j].leftStartTok {
			return contributions[i].leftStartTok < contributions[j].leftStartTok
		}

		return contributions[i].rightStartTok < contributions[j].rightStartTok
	})

	candidates := greedyMerge(contributions, k)

	return resolveOverlaps(candidates)
}

// greedyMerge implements 4.4.2.b/c: adjacent contributions merge when the
// gap on both sides is at most k-1 tokens and the right side stays in
// source order (preventing a merge across a reordering that would make
// "adjacency" meaningless).
func greedyMerge(contributions []contribution, k int) []candidate {
	maxGap := k - 1

	cur := candidate{
		frag: similarity.Fragment{
			LeftSpan:  contributions[0].leftSpan,
			RightSpan: contributions[0].rightSpan,
		},
		leftStartTok:  contributions[0].leftStartTok,
		leftEndTok:    contributions[0].leftEndTok,
		rightStartTok: contributions[0].rightStartTok,
		rightEndTok:   contributions[0].rightEndTok,
	}
	cur.frag.KgramCount = 1

	// lastRightStart is the right-side start of the most recently merged
	// contribution; cur.rightStartTok stays the fragment's own start.
	lastRightStart := cur.rightStartTok

	var out []candidate

	for i := 1; i < len(contributions); i++ {
		c := contributions[i]

		leftGap := c.leftStartTok - cur.leftEndTok - 1
		rightGap := c.rightStartTok - cur.rightEndTok - 1

		adjacent := leftGap <= maxGap && rightGap <= maxGap && c.rightStartTok > lastRightStart

		if adjacent {
			cur.frag.LeftSpan = cur.frag.LeftSpan.Union(c.leftSpan)
			cur.frag.RightSpan = cur.frag.RightSpan.Union(c.rightSpan)
			cur.frag.KgramCount++

			if c.leftEndTok > cur.leftEndTok {
				cur.leftEndTok = c.leftEndTok
			}

			if c.rightEndTok > cur.rightEndTok {
				cur.rightEndTok = c.rightEndTok
			}

			lastRightStart = c.rightStartTok

			continue
		}

		out = append(out, cur)
		lastRightStart = c.rightStartTok
		cur = candidate{
			frag:          similarity.Fragment{LeftSpan: c.leftSpan, RightSpan: c.rightSpan, KgramCount: 1},
			leftStartTok:  c.leftStartTok,
			leftEndTok:    c.leftEndTok,
			rightStartTok: c.rightStartTok,
			rightEndTok:   c.rightEndTok,
		}
	}

	out = append(out, cur)

	return out
}

// resolveOverlaps implements 4.4.3: fragments must end up pairwise
// non-overlapping on both sides. Candidates are accepted in
// (kgramCount desc, leftStartTok asc) order against two insert-only
// interval trees (one per side), so a longer fragment always wins a
// conflict and an earlier fragment wins a tie among equal lengths — "drop
// the shorter overlapping fragment, tie: keep the earlier." The result is
// finally re-sorted by left_span to satisfy the "fragments sorted by
// left_span" invariant.
func resolveOverlaps(candidates []candidate) []similarity.Fragment {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].frag.KgramCount != candidates[j].frag.KgramCount {
			return candidates[i].frag.KgramCount > candidates[j].frag.KgramCount
		}

		return candidates[i].leftStartTok < candidates[j].leftStartTok
	})

	leftTree := interval.New[int, int]()
	rightTree := interval.New[int, int]()

	accepted := make([]similarity.Fragment, 0, len(candidates))

	for idx, c := range candidates {
		if len(leftTree.QueryOverlap(c.leftStartTok, c.leftEndTok)) > 0 {
			continue
		}

		if len(rightTree.QueryOverlap(c.rightStartTok, c.rightEndTok)) > 0 {
			continue
		}

		leftTree.Insert(c.leftStartTok, c.leftEndTok, idx)
		rightTree.Insert(c.rightStartTok, c.rightEndTok, idx)
		accepted = append(accepted, c.frag)
	}

	sort.Slice(accepted, func(i, j int) bool {
		a, b := accepted[i].LeftSpan, accepted[j].LeftSpan
		if a.StartRow != b.StartRow {
			return a.StartRow < b.StartRow
		}

		return a.StartCol < b.StartCol
	})

	return accepted
}

func buildPair(
	pairID int,
	key similarity.PairKey,
	fragments []similarity.Fragment,
	files map[int]similarity.FileRef,
	src FingerprintSource,
) similarity.Pair {
	covered, longest := 0, 0

	for _, f := range fragments {
		covered += f.KgramCount

		if f.KgramCount > longest {
			longest = f.KgramCount
		}
	}

	// Every contribution is, by construction, one k-gram hash shared by
	// both files, so a fragment's kgram_count is the same coverage figure
	// on both sides — left_covered and right_covered coincide here.
	leftCovered, rightCovered := covered, covered

	overlap := leftCovered
	if rightCovered < overlap {
		overlap = rightCovered
	}

	leftTotal := src.FileFingerprintCount(key.A)
	rightTotal := src.FileFingerprintCount(key.B)

	score := 0.0
	if leftTotal+rightTotal > 0 {
		score = clamp01(float64(leftCovered+rightCovered) / float64(leftTotal+rightTotal))
	}

	return similarity.NewPair(
		pairID, files[key.A], files[key.B], score,
		overlap, longest, leftCovered, rightCovered, leftTotal, rightTotal,
		func() []similarity.Fragment { return fragments },
	)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}
