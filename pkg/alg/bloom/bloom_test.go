package bloom_test

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classifi/simguard/pkg/alg/bloom"
)

const (
	standardN  = uint(10_000_000)
	standardFP = 0.01
	smallN     = uint(1000)
	tightN     = uint(100)
	tightFP    = 0.001
	fpTestN    = uint(100_000)
	fpTestFP   = 0.01
	fpMargin   = 1.5 // Allow 50 percent above configured FP.

	expectedM10M1pct   = uint(95_850_584)
	expectedM1K1pct    = uint(9586)
	expectedM100_01pct = uint(1438)
)

func uint64ToBytes(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)

	return buf
}

func TestNewWithEstimates_Parameters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		n     uint
		fp    float64
		wantM uint
	}{
		{name: "standard_10M_1pct", n: standardN, fp: standardFP, wantM: expectedM10M1pct},
		{name: "small_1000_1pct", n: smallN, fp: standardFP, wantM: expectedM1K1pct},
		{name: "tight_100_0_1pct", n: tightN, fp: tightFP, wantM: expectedM100_01pct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := bloom.NewWithEstimates(tt.n, tt.fp)
			require.NoError(t, err)
			assert.Equal(t, tt.wantM, f.BitCount())
		})
	}
}

func TestNewWithEstimates_EdgeCases(t *testing.T) {
	t.Parallel()

	t.Run("zero_n_returns_error", func(t *testing.T) {
		t.Parallel()

		_, err := bloom.NewWithEstimates(0, standardFP)
		assert.Error(t, err)
	})

	t.Run("zero_fp_returns_error", func(t *testing.T) {
		t.Parallel()

		_, err := bloom.NewWithEstimates(smallN, 0)
		assert.Error(t, err)
	})

	t.Run("negative_fp_returns_error", func(t *testing.T) {
		t.Parallel()

		_, err := bloom.NewWithEstimates(smallN, -0.1)
		assert.Error(t, err)
	})

	t.Run("fp_of_one_returns_error", func(t *testing.T) {
		t.Parallel()

		_, err := bloom.NewWithEstimates(smallN, 1.0)
		assert.Error(t, err)
	})
}

func TestAdd_Test_Basic(t *testing.T) {
	t.Parallel()

	f, err := bloom.NewWithEstimates(smallN, standardFP)
	require.NoError(t, err)

	f.Add([]byte("hello"))
	f.Add([]byte("world"))

	assert.True(t, f.Test([]byte("hello")))
	assert.True(t, f.Test([]byte("world")))
	assert.False(t, f.Test([]byte("absent")))
}

func TestTest_EmptyFilter(t *testing.T) {
	t.Parallel()

	f, err := bloom.NewWithEstimates(smallN, standardFP)
	require.NoError(t, err)

	assert.False(t, f.Test([]byte("anything")))
}

func TestEstimatedCount_TracksAdds(t *testing.T) {
	t.Parallel()

	f, err := bloom.NewWithEstimates(smallN, standardFP)
	require.NoError(t, err)

	assert.Zero(t, f.EstimatedCount())

	f.Add([]byte("one"))
	f.Add([]byte("two"))
	f.Add([]byte("three"))

	assert.Equal(t, uint(3), f.EstimatedCount())
}

func TestEstimatedCount_DuplicateAddsStillCount(t *testing.T) {
	t.Parallel()

	f, err := bloom.NewWithEstimates(smallN, standardFP)
	require.NoError(t, err)

	f.Add([]byte("dup"))
	f.Add([]byte("dup"))

	// EstimatedCount tracks Add calls, not distinct members, so two Adds of
	// the same value still increment it twice.
	assert.Equal(t, uint(2), f.EstimatedCount())
}

func TestAdd_Test_NoFalseNegatives(t *testing.T) {
	t.Parallel()

	f, err := bloom.NewWithEstimates(fpTestN, fpTestFP)
	require.NoError(t, err)

	members := make([][]byte, 0, tightN)

	for i := range int(tightN) {
		v := uint64ToBytes(uint64(i))
		members = append(members, v)
		f.Add(v)
	}

	for _, v := range members {
		assert.True(t, f.Test(v), "member must always test positive")
	}
}

func TestAdd_Test_FalsePositiveRateWithinMargin(t *testing.T) {
	t.Parallel()

	f, err := bloom.NewWithEstimates(fpTestN, fpTestFP)
	require.NoError(t, err)

	for i := range int(fpTestN) {
		f.Add(uint64ToBytes(uint64(i)))
	}

	var falsePositives int

	probeCount := int(fpTestN)

	for i := range probeCount {
		// Probe a disjoint key space so every hit is a genuine false positive.
		probe := uint64ToBytes(uint64(i) + uint64(fpTestN)*2)
		if f.Test(probe) {
			falsePositives++
		}
	}

	rate := float64(falsePositives) / float64(probeCount)
	assert.Less(t, rate, fpTestFP*fpMargin, fmt.Sprintf("observed fp rate %.4f", rate))
}

func TestBitCount_MatchesEstimate(t *testing.T) {
	t.Parallel()

	f, err := bloom.NewWithEstimates(smallN, standardFP)
	require.NoError(t, err)

	assert.Equal(t, expectedM1K1pct, f.BitCount())
}
