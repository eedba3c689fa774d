// Package index implements the shared-fingerprint inverted index (spec.md
// §4.3): hash -> per-file occurrences, with boilerplate filtering by
// declared template files and by an overly-common-hash ceiling. The index
// is rebuilt from scratch for every analysis run and is mutated only by
// that run (SPEC_FULL.md's "shared resources" note on Index lifetime).
package index

import (
	"sort"

	"github.com/classifi/simguard/pkg/alg/bloom"
	"github.com/classifi/simguard/pkg/similarity"
)

// entry tracks one fingerprint hash's occurrences plus the distinct file
// count needed to test the min/max-files-per-hash bounds without rescanning
// occurrences on every query.
type entry struct {
	occurrences []similarity.Occurrence
	fileSet     map[int]struct{}
	ignored     bool
}

// Index is the in-memory shared-fingerprint index for one analysis run.
// The zero value is not usable; construct with New.
type Index struct {
	entries map[uint64]*entry
	// templateFilter fast-rejects hashes that are definitely not a
	// template hash before the exact templateHashes set is consulted.
	templateFilter *bloom.Filter
	templateHashes map[uint64]struct{}
	numFiles       int
	// fileFingerprintCounts tracks the total fingerprints emitted for each
	// file, regardless of how many other files they're shared with — the
	// pair builder needs this for each file's left_total/right_total.
	fileFingerprintCounts map[int]int
}

// New creates an empty index. expectedFingerprints sizes the template
// Bloom filter; it should be a rough upper bound on the number of distinct
// fingerprints across all declared template files (an undersized estimate
// only costs a higher false-positive rate on the fast path, never
// correctness — add_template always also updates the exact set).
func New(expectedFingerprints int) (*Index, error) {
	if expectedFingerprints <= 0 {
		expectedFingerprints = 1
	}

	filter, err := bloom.NewWithEstimates(uint(expectedFingerprints), 0.01) //nolint:gomnd // 1% false-positive rate is a reasonable default for a membership prefilter.
	if err != nil {
		return nil, err
	}

	return &Index{
		entries:               make(map[uint64]*entry),
		templateFilter:        filter,
		templateHashes:        make(map[uint64]struct{}),
		fileFingerprintCounts: make(map[int]int),
	}, nil
}

// AddFile appends every fingerprint's occurrence for one file. Duplicate
// (hash, file, span) triples — a k-gram hash recurring at the exact same
// span within the same file, which cannot happen from a single
// tokenization pass but can from a caller re-submitting overlapping
// ranges — are rejected silently; everything else is appended.
func (idx *Index) AddFile(ref similarity.FileRef, fingerprints []similarity.Fingerprint) {
	idx.numFiles++
	idx.fileFingerprintCounts[ref.FileID] = len(fingerprints)

	for _, fp := range fingerprints {
		e := idx.entryFor(fp.Hash)

		occ := similarity.Occurrence{FileID: ref.FileID, Span: fp.Span, StartTok: fp.StartTok, EndTok: fp.EndTok}
		if containsOccurrence(e.occurrences, occ) {
			continue
		}

		e.occurrences = append(e.occurrences, occ)
		e.fileSet[ref.FileID] = struct{}{}

		if idx.isTemplateHash(fp.Hash) {
			e.ignored = true
		}
	}
}

// AddTemplate marks every fingerprint of a declared template file as
// ignored, including fingerprints already indexed from other files that
// happen to share a hash with the template (boilerplate detected after the
// fact still gets excluded).
func (idx *Index) AddTemplate(fingerprints []similarity.Fingerprint) {
	for _, fp := range fingerprints {
		idx.templateFilter.Add(hashBytes(fp.Hash))
		idx.templateHashes[fp.Hash] = struct{}{}

		if e, ok := idx.entries[fp.Hash]; ok {
			e.ignored = true
		}
	}
}

// SharedFingerprints returns every hash present in at least minFiles and
// at most maxFiles distinct files, excluding ignored hashes. maxFiles <= 0
// means unbounded. Results are sorted by hash for deterministic downstream
// pair-building order.
func (idx *Index) SharedFingerprints(minFiles, maxFiles int) []similarity.SharedFingerprint {
	if minFiles <= 0 {
		minFiles = 2 //nolint:gomnd // spec.md §4.3 default.
	}

	out := make([]similarity.SharedFingerprint, 0, len(idx.entries))

	for hash, e := range idx.entries {
		if e.ignored {
			continue
		}

		n := len(e.fileSet)
		if n < minFiles {
			continue
		}

		if maxFiles > 0 && n > maxFiles {
			continue
		}

		out = append(out, similarity.SharedFingerprint{
			Hash:        hash,
			Occurrences: append([]similarity.Occurrence(nil), e.occurrences...),
			Ignored:     false,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })

	return out
}

// NumFiles returns how many files have been added via AddFile.
func (idx *Index) NumFiles() int {
	return idx.numFiles
}

// FileFingerprintCount returns the total number of fingerprints emitted
// for a file, i.e. left_total/right_total in spec.md §4.4's pair metrics.
func (idx *Index) FileFingerprintCount(fileID int) int {
	return idx.fileFingerprintCounts[fileID]
}

func (idx *Index) entryFor(hash uint64) *entry {
	e, ok := idx.entries[hash]
	if !ok {
		e = &entry{fileSet: make(map[int]struct{})}
		idx.entries[hash] = e
	}

	return e
}

// isTemplateHash consults the Bloom filter first (cheap, may false-positive)
// and only falls through to the exact set on a possible hit, so the common
// case of a non-template hash costs one filter test.
func (idx *Index) isTemplateHash(hash uint64) bool {
	if !idx.templateFilter.Test(hashBytes(hash)) {
		return false
	}

	_, ok := idx.templateHashes[hash]

	return ok
}

func containsOccurrence(occurrences []similarity.Occurrence, occ similarity.Occurrence) bool {
	for _, existing := range occurrences {
		if existing == occ {
			return true
		}
	}

	return false
}

func hashBytes(h uint64) []byte {
	b := make([]byte, 8) //nolint:gomnd // uint64 width.
	for i := range b {
		b[i] = byte(h >> (8 * i)) //nolint:gomnd // byte width.
	}

	return b
}
