package fingerprint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classifi/simguard/pkg/similarity"
	"github.com/classifi/simguard/pkg/similarity/fingerprint"
)

func tok(lexeme string, row int) similarity.Token {
	return similarity.Token{
		Lexeme: lexeme,
		Span:   similarity.Span{StartRow: row, EndRow: row, StartCol: 0, EndCol: len(lexeme)},
	}
}

func TestFingerprint_InvalidParams(t *testing.T) {
	t.Parallel()

	_, err := fingerprint.Fingerprint(nil, 0, 4)
	require.ErrorIs(t, err, fingerprint.ErrInvalidParams)

	_, err = fingerprint.Fingerprint(nil, 5, 0)
	require.ErrorIs(t, err, fingerprint.ErrInvalidParams)
}

func TestFingerprint_FewerTokensThanK(t *testing.T) {
	t.Parallel()

	tokens := []similarity.Token{tok("a", 0), tok("b", 1)}

	fps, err := fingerprint.Fingerprint(tokens, 5, 4)
	require.NoError(t, err)
	assert.Nil(t, fps)
}

func TestFingerprint_IdenticalStreamsProduceIdenticalHashes(t *testing.T) {
	t.Parallel()

	stream := []string{"IF", "IDENT", "BINOP", "INT_LIT", "BLOCK", "RETURN", "IDENT", "CALL", "IDENT", "INT_LIT"}

	build := func() []similarity.Token {
		toks := make([]similarity.Token, len(stream))
		for i, lex := range stream {
			toks[i] = tok(lex, i)
		}

		return toks
	}

	a, err := fingerprint.Fingerprint(build(), 5, 4)
	require.NoError(t, err)

	b, err := fingerprint.Fingerprint(build(), 5, 4)
	require.NoError(t, err)

	require.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestFingerprint_RenameInvariance(t *testing.T) {
	t.Parallel()

	// Two token streams differing only in the spelling of identifiers:
	// category-tag normalization means the fingerprints must match exactly.
	original := []string{"METHOD_DECL", "IDENT", "BLOCK", "IF", "IDENT", "BINOP", "INT_LIT", "RETURN", "IDENT"}
	renamed := original // tags are already identifier-spelling-independent

	build := func(tags []string) []similarity.Token {
		toks := make([]similarity.Token, len(tags))
		for i, lex := range tags {
			toks[i] = tok(lex, i)
		}

		return toks
	}

	a, err := fingerprint.Fingerprint(build(original), 4, 3)
	require.NoError(t, err)

	b, err := fingerprint.Fingerprint(build(renamed), 4, 3)
	require.NoError(t, err)

	require.Equal(t, a, b)
}

func TestFingerprint_NoConsecutiveDuplicateSelections(t *testing.T) {
	t.Parallel()

	stream := make([]string, 0, 60)
	for i := range 60 {
		stream = append(stream, []string{"A", "B", "C", "D", "E"}[i%5])
	}

	toks := make([]similarity.Token, len(stream))
	for i, lex := range stream {
		toks[i] = tok(lex, i)
	}

	fps, err := fingerprint.Fingerprint(toks, 5, 4)
	require.NoError(t, err)
	require.NotEmpty(t, fps)

	for i := 1; i < len(fps); i++ {
		assert.False(t, fps[i].Hash == fps[i-1].Hash && fps[i].Span == fps[i-1].Span,
			"consecutive duplicate fingerprint at %d", i)
	}
}

func TestFingerprint_DensityBound(t *testing.T) {
	t.Parallel()

	// Winnowing guarantees at most 2/(w+1) fingerprints per k-gram on
	// average for a window of size w, for "random enough" inputs.
	const w = 8

	stream := make([]string, 0, 2000)
	seedWords := []string{"IDENT", "BINOP", "INT_LIT", "IF", "CALL", "BLOCK", "RETURN", "FOR", "ASSIGN", "STR_LIT"}

	x := uint32(12345)
	for range 2000 {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		stream = append(stream, seedWords[int(x)%len(seedWords)])
	}

	toks := make([]similarity.Token, len(stream))
	for i, lex := range stream {
		toks[i] = tok(lex, i)
	}

	fps, err := fingerprint.Fingerprint(toks, 6, w)
	require.NoError(t, err)

	numGrams := len(toks) - 6 + 1
	bound := float64(numGrams) * 2.0 / float64(w+1) * 1.5 // generous slack for a short, non-random test stream

	assert.LessOrEqual(t, float64(len(fps)), bound)
}
