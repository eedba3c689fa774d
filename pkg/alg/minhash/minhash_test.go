package minhash

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testNumHashes16  = 16
	testNumHashes128 = 128
)

func TestNew_ValidNumHashes(t *testing.T) {
	t.Parallel()

	sig, err := New(testNumHashes16)
	require.NoError(t, err)
	assert.Equal(t, testNumHashes16, sig.Len())
}

func TestNew_SmallNumHashes(t *testing.T) {
	t.Parallel()

	sig, err := New(1)
	require.NoError(t, err)
	assert.Equal(t, 1, sig.Len())
}

func TestNew_ZeroNumHashes(t *testing.T) {
	t.Parallel()

	_, err := New(0)
	assert.ErrorIs(t, err, ErrZeroNumHashes)
}

func TestNew_NegativeNumHashes(t *testing.T) {
	t.Parallel()

	_, err := New(-1)
	assert.ErrorIs(t, err, ErrZeroNumHashes)
}

func TestAdd_SingleToken(t *testing.T) {
	t.Parallel()

	sig, err := New(testNumHashes16)
	require.NoError(t, err)

	before := sig.Bytes()
	sig.Add([]byte("token"))
	after := sig.Bytes()

	assert.NotEqual(t, before, after, "adding a token must move at least one minimum")
}

func TestAdd_Deterministic(t *testing.T) {
	t.Parallel()

	a, err := New(testNumHashes16)
	require.NoError(t, err)

	b, err := New(testNumHashes16)
	require.NoError(t, err)

	for _, tok := range [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")} {
		a.Add(tok)
		b.Add(tok)
	}

	assert.Equal(t, a.Bytes(), b.Bytes(), "same tokens in the same order must produce identical signatures")
}

func TestAdd_OrderIndependent(t *testing.T) {
	t.Parallel()

	a, err := New(testNumHashes16)
	require.NoError(t, err)

	b, err := New(testNumHashes16)
	require.NoError(t, err)

	a.Add([]byte("alpha"))
	a.Add([]byte("beta"))

	b.Add([]byte("beta"))
	b.Add([]byte("alpha"))

	// MinHash takes the minimum over each hash function regardless of
	// insertion order, so the resulting signature must be identical.
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestBytes_HeaderEncodesNumHashes(t *testing.T) {
	t.Parallel()

	sig, err := New(testNumHashes128)
	require.NoError(t, err)

	data := sig.Bytes()
	require.Len(t, data, HeaderSize+testNumHashes128*bytesPerHash)
	assert.Equal(t, uint32(testNumHashes128), binary.BigEndian.Uint32(data[:HeaderSize]))
}

func TestLen_MatchesConstructorArg(t *testing.T) {
	t.Parallel()

	sig, err := New(testNumHashes128)
	require.NoError(t, err)

	assert.Equal(t, testNumHashes128, sig.Len())
}

func TestAdd_MinimumsNeverIncrease(t *testing.T) {
	t.Parallel()

	sig, err := New(testNumHashes128)
	require.NoError(t, err)

	prev := make([]uint64, sig.Len())

	for i := range prev {
		prev[i] = sig.mins[i]
	}

	tokens := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d"), []byte("e")}

	for _, tok := range tokens {
		sig.Add(tok)

		for i, m := range sig.mins {
			assert.LessOrEqual(t, m, prev[i], "MinHash minimums are monotonically non-increasing")
			prev[i] = m
		}
	}
}
