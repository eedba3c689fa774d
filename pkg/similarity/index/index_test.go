package index_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classifi/simguard/pkg/similarity"
	"github.com/classifi/simguard/pkg/similarity/index"
)

func ref(id int) similarity.FileRef {
	return similarity.FileRef{FileID: id, Path: "f.java"}
}

func fp(hash uint64, row int) similarity.Fingerprint {
	return similarity.Fingerprint{Hash: hash, Span: similarity.Span{StartRow: row, EndRow: row}}
}

func TestIndex_SharedFingerprints_RespectsMinMax(t *testing.T) {
	t.Parallel()

	idx, err := index.New(16)
	require.NoError(t, err)

	idx.AddFile(ref(0), []similarity.Fingerprint{fp(1, 0), fp(2, 1)})
	idx.AddFile(ref(1), []similarity.Fingerprint{fp(1, 0)})
	idx.AddFile(ref(2), []similarity.Fingerprint{fp(1, 0)})

	shared := idx.SharedFingerprints(2, 0)
	require.Len(t, shared, 1)
	assert.Equal(t, uint64(1), shared[0].Hash)
	assert.Equal(t, 3, shared[0].FileCount())

	// hash 2 appears in only one file, below min_files=2; hash 1 appears in
	// 3 files, above max_files=1: nothing qualifies.
	none := idx.SharedFingerprints(2, 1)
	assert.Empty(t, none)
}

func TestIndex_SharedFingerprints_MaxFilesExcludesOverCommon(t *testing.T) {
	t.Parallel()

	idx, err := index.New(16)
	require.NoError(t, err)

	idx.AddFile(ref(0), []similarity.Fingerprint{fp(1, 0)})
	idx.AddFile(ref(1), []similarity.Fingerprint{fp(1, 0)})
	idx.AddFile(ref(2), []similarity.Fingerprint{fp(1, 0)})

	shared := idx.SharedFingerprints(2, 2)
	assert.Empty(t, shared, "hash present in 3 files should be excluded when max_files=2")
}

func TestIndex_AddTemplate_MarksExistingAndFutureOccurrencesIgnored(t *testing.T) {
	t.Parallel()

	idx, err := index.New(16)
	require.NoError(t, err)

	idx.AddFile(ref(0), []similarity.Fingerprint{fp(42, 0)})
	idx.AddFile(ref(1), []similarity.Fingerprint{fp(42, 0)})

	idx.AddTemplate([]similarity.Fingerprint{fp(42, 0)})

	shared := idx.SharedFingerprints(2, 0)
	assert.Empty(t, shared, "template hash must be excluded even though it was indexed before AddTemplate")

	// A hash added to a file after AddTemplate should also come in ignored.
	idx.AddFile(ref(2), []similarity.Fingerprint{fp(42, 0)})
	shared = idx.SharedFingerprints(2, 0)
	assert.Empty(t, shared)
}

func TestIndex_AddFile_RejectsDuplicateOccurrence(t *testing.T) {
	t.Parallel()

	idx, err := index.New(16)
	require.NoError(t, err)

	dup := fp(7, 3)
	idx.AddFile(ref(0), []similarity.Fingerprint{dup, dup})
	idx.AddFile(ref(1), []similarity.Fingerprint{dup})

	shared := idx.SharedFingerprints(2, 0)
	require.Len(t, shared, 1)
	assert.Len(t, shared[0].Occurrences, 2, "duplicate (hash, file, span) triple must not be double-counted")
}
