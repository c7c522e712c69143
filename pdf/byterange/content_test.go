package byterange

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentExtraction(t *testing.T) {
	data := []byte("HEADER<CAFE>TRAILER")
	r := New(0, 6, 12, 7)

	signed, err := SignedContent(data, r)
	require.NoError(t, err)
	assert.Equal(t, "HEADERTRAILER", string(signed))

	contents, err := SignatureContents(data, r)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xCA, 0xFE}, contents)

	_, err = SignedContent(data, New(0, 6, 12, 70))
	assert.ErrorIs(t, err, ErrInvalidByteRange)
	assert.True(t, IsKind(err, KindPastEnd))

	_, err = SignatureContents([]byte("HEADERxCAFExTRAILER"), r)
	assert.ErrorIs(t, err, ErrInvalidByteRange)
}

func TestCheckLength(t *testing.T) {
	r := New(0, 6, 12, 7)
	assert.NoError(t, CheckLength(r, 19))
	assert.NoError(t, CheckLength(r, 40))
	assert.True(t, IsKind(CheckLength(r, 18), KindPastEnd))
	assert.True(t, IsKind(CheckLength(New(0, 6, 3, 7), 40), KindOverlappingParts))
}

func TestOverflowingRange(t *testing.T) {
	huge := New(0, 10, 20, math.MaxInt64-8)
	normal := New(0, 100, 200, 50)

	err := Validate(huge)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindOverflow))

	_, err = ValidateInts([]int64{0, 10, 20, 9223372036854775800})
	assert.True(t, IsKind(err, KindOverflow))

	_, err = SignedContent(make([]byte, 64), huge)
	assert.True(t, IsKind(err, KindOverflow))
	_, err = SignatureContents(make([]byte, 64), huge)
	assert.ErrorIs(t, err, ErrInvalidByteRange)

	assert.NoError(t, Validate(New(0, 10, 20, math.MaxInt64-20)))
	assert.NoError(t, Validate(normal))
}
