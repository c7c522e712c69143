package layers

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgepadayatti/pdfltv/pdf/byterange"
	"github.com/georgepadayatti/pdfltv/sign/cms"
	"github.com/georgepadayatti/pdfltv/sign/hashindex"
	"github.com/georgepadayatti/pdfltv/sign/timestamps"
)

var (
	t0 = time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(24 * time.Hour)
	t2 = t1.Add(24 * time.Hour)
)

// tableWith returns a V3 table holding n attribute hashes.
func tableWith(n int) *hashindex.Table {
	var attrs [][]byte
	for i := 0; i < n; i++ {
		attrs = append(attrs, bytes.Repeat([]byte{byte(i)}, 32))
	}
	return hashindex.NewTable(hashindex.V3, nil, nil, nil, attrs)
}

func ids(ls []*Layer) []ID {
	out := make([]ID, len(ls))
	for i, l := range ls {
		out[i] = l.ID()
	}
	return out
}

func TestSortAllPermutations(t *testing.T) {
	l0 := New(0, KindArchiveTimestamp, WithGenerationTime(t0))
	l1 := New(1, KindArchiveTimestamp, WithGenerationTime(t1))
	l2 := New(2, KindArchiveTimestamp, WithGenerationTime(t2))

	perms := [][]*Layer{
		{l0, l1, l2},
		{l0, l2, l1},
		{l1, l0, l2},
		{l1, l2, l0},
		{l2, l0, l1},
		{l2, l1, l0},
	}

	for _, perm := range perms {
		t.Run("", func(t *testing.T) {
			sorted, err := Sort(perm)
			require.NoError(t, err)
			assert.Equal(t, []ID{0, 1, 2}, ids(sorted))
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b *Layer
		want int
	}{
		{
			name: "earlier time first",
			a:    New(0, KindArchiveTimestamp, WithGenerationTime(t0), WithHashIndex(tableWith(9))),
			b:    New(1, KindArchiveTimestamp, WithGenerationTime(t1), WithHashIndex(tableWith(1))),
			want: -1,
		},
		{
			name: "fewer records first on equal time",
			a:    New(0, KindArchiveTimestamp, WithGenerationTime(t0), WithHashIndex(tableWith(5))),
			b:    New(1, KindArchiveTimestamp, WithGenerationTime(t0), WithHashIndex(tableWith(3))),
			want: 1,
		},
		{
			name: "table sorts after no table",
			a:    New(0, KindArchiveTimestamp, WithGenerationTime(t0), WithHashIndex(tableWith(0))),
			b:    New(1, KindSignatureTimestamp, WithGenerationTime(t0)),
			want: 1,
		},
		{
			name: "no table sorts before table",
			a:    New(0, KindSignatureTimestamp),
			b:    New(1, KindArchiveTimestamp, WithHashIndex(tableWith(2))),
			want: -1,
		},
		{
			name: "record count decides without times",
			a:    New(0, KindArchiveTimestamp, WithHashIndex(tableWith(2))),
			b:    New(1, KindArchiveTimestamp, WithGenerationTime(t2), WithHashIndex(tableWith(4))),
			want: -1,
		},
		{
			name: "equal tables are equal",
			a:    New(0, KindArchiveTimestamp, WithGenerationTime(t0), WithHashIndex(tableWith(2))),
			b:    New(1, KindArchiveTimestamp, WithGenerationTime(t0), WithHashIndex(tableWith(2))),
			want: 0,
		},
		{
			name: "no evidence is equal",
			a:    New(0, KindSignatureTimestamp),
			b:    New(1, KindSignatureTimestamp),
			want: 0,
		},
		{
			name: "evidence records ignore tables",
			a:    New(0, KindEvidenceRecord, WithGenerationTime(t0), WithHashIndex(tableWith(5))),
			b:    New(1, KindArchiveTimestamp, WithGenerationTime(t0), WithHashIndex(tableWith(3))),
			want: 0,
		},
		{
			name: "evidence records compare by time",
			a:    New(0, KindEvidenceRecord, WithGenerationTime(t1)),
			b:    New(1, KindEvidenceRecord, WithGenerationTime(t0)),
			want: 1,
		},
		{
			name: "byte ranges decide over time",
			a:    New(0, KindSignatureRevision, WithGenerationTime(t2), WithByteRange(byterange.New(0, 100, 200, 50))),
			b:    New(1, KindDocumentTimestamp, WithGenerationTime(t0), WithByteRange(byterange.New(0, 400, 500, 50))),
			want: -1,
		},
		{
			name: "positions ignore forged times",
			a:    New(0, KindSignatureRevision, WithGenerationTime(t2), WithByteRange(byterange.New(0, 100, 200, 50))),
			b:    New(1, KindValidationDataRevision, WithGenerationTime(t0), WithRevisionEnd(900)),
			want: -1,
		},
		{
			name: "unplaced layer before revisions",
			a:    New(0, KindArchiveTimestamp, WithGenerationTime(t2)),
			b:    New(1, KindDocumentTimestamp, WithGenerationTime(t0), WithByteRange(byterange.New(0, 400, 500, 50))),
			want: -1,
		},
		{
			name: "identical byte ranges fall back to time",
			a:    New(0, KindSignatureRevision, WithGenerationTime(t2), WithByteRange(byterange.New(0, 100, 200, 50))),
			b:    New(1, KindSignatureRevision, WithGenerationTime(t0), WithByteRange(byterange.New(0, 100, 200, 50))),
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.want, Compare(tt.b, tt.a))
		})
	}
}

func permutations(ls []*Layer) [][]*Layer {
	if len(ls) <= 1 {
		return [][]*Layer{ls}
	}
	var out [][]*Layer
	for i := range ls {
		rest := append(append([]*Layer{}, ls[:i]...), ls[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]*Layer{ls[i]}, p...))
		}
	}
	return out
}

func TestSortForgedSigningTime(t *testing.T) {
	// r1 claims to be signed after r2 although its byte range is nested
	// inside r2's.
	r1 := New(0, KindSignatureRevision, WithGenerationTime(t2), WithByteRange(byterange.New(0, 100, 200, 50)))
	r2 := New(1, KindSignatureRevision, WithGenerationTime(t0), WithByteRange(byterange.New(0, 500, 600, 50)))

	t.Run("unplaced timestamp", func(t *testing.T) {
		e := New(2, KindArchiveTimestamp, WithGenerationTime(t1))
		for _, perm := range permutations([]*Layer{r1, r2, e}) {
			sorted, err := Sort(perm)
			require.NoError(t, err)
			assert.Equal(t, []ID{2, 0, 1}, ids(sorted), "input %v", ids(perm))
		}
	})

	t.Run("embedded timestamp", func(t *testing.T) {
		e := New(2, KindSignatureTimestamp, WithGenerationTime(t1), WithEmbeddedIn(0))
		for _, perm := range permutations([]*Layer{r1, r2, e}) {
			sorted, err := Sort(perm)
			require.NoError(t, err)
			assert.Equal(t, []ID{0, 2, 1}, ids(sorted), "input %v", ids(perm))
			assert.Empty(t, AmbiguousPairs(sorted))
		}
	})

	t.Run("unsigned revision", func(t *testing.T) {
		dss := New(2, KindValidationDataRevision, WithRevisionEnd(400))
		for _, perm := range permutations([]*Layer{r2, dss, r1}) {
			sorted, err := Sort(perm)
			require.NoError(t, err)
			assert.Equal(t, []ID{0, 2, 1}, ids(sorted), "input %v", ids(perm))
		}
	})
}

func TestSortEqualLayersByID(t *testing.T) {
	a := New(3, KindSignatureTimestamp)
	b := New(1, KindSignatureTimestamp)
	c := New(2, KindSignatureTimestamp)

	for _, perm := range permutations([]*Layer{a, b, c}) {
		sorted, err := Sort(perm)
		require.NoError(t, err)
		assert.Equal(t, []ID{1, 2, 3}, ids(sorted))
	}
}

func TestTieBreakByHashTableSize(t *testing.T) {
	five := New(0, KindArchiveTimestamp, WithGenerationTime(t1), WithHashIndex(tableWith(5)))
	three := New(1, KindArchiveTimestamp, WithGenerationTime(t1), WithHashIndex(tableWith(3)))

	sorted, err := Sort([]*Layer{five, three})
	require.NoError(t, err)
	assert.Equal(t, []ID{1, 0}, ids(sorted))
}

func TestSortByteRanges(t *testing.T) {
	ranges := []byterange.ByteRange{
		byterange.New(0, 200002, 237892, 637),
		byterange.New(0, 6418, 17102, 332),
		byterange.New(0, 185123, 191125, 343),
	}
	var ls []*Layer
	for i, r := range ranges {
		ls = append(ls, New(ID(i), KindSignatureRevision, WithByteRange(r)))
	}

	sorted, err := Sort(ls)
	require.NoError(t, err)
	assert.Equal(t, []ID{1, 2, 0}, ids(sorted))
	assert.Empty(t, AmbiguousPairs(sorted))
	assert.Equal(t, []ID{0, 1, 2}, ids(ls))
}

func TestSortRejectsCollidingRanges(t *testing.T) {
	a := New(0, KindSignatureRevision, WithByteRange(byterange.New(0, 91747, 124517, 723)))
	b := New(1, KindSignatureRevision, WithByteRange(byterange.New(40000, 120000, 140000, 500)))
	c := New(2, KindArchiveTimestamp, WithGenerationTime(t0))

	_, err := Sort([]*Layer{a, c, b})
	require.Error(t, err)
	assert.ErrorIs(t, err, byterange.ErrStrangeByteRanges)

	var serr *byterange.StrangeByteRangesError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, byterange.New(0, 91747, 124517, 723), serr.A)
	assert.Equal(t, byterange.New(40000, 120000, 140000, 500), serr.B)
}

func TestAmbiguousPairs(t *testing.T) {
	a := New(0, KindSignatureTimestamp)
	b := New(1, KindSignatureTimestamp)
	c := New(2, KindArchiveTimestamp, WithHashIndex(tableWith(1)))

	sorted, err := Sort([]*Layer{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, []ID{0, 1, 2}, ids(sorted))
	assert.Equal(t, []Pair{{Earlier: 0, Later: 1}}, AmbiguousPairs(sorted))
}

func TestLayerImmutability(t *testing.T) {
	binding := []byte{1, 2, 3}
	l := New(4, KindArchiveTimestamp, WithRawBinding(binding), WithEmbeddedIn(2))
	binding[0] = 9

	assert.Equal(t, []byte{1, 2, 3}, l.RawBinding())
	l.RawBinding()[0] = 7
	assert.Equal(t, []byte{1, 2, 3}, l.RawBinding())

	covered := l.WithCoveredLayers([]ID{3, 1, 3})
	assert.Empty(t, l.CoveredLayers())
	assert.Equal(t, []ID{1, 3}, covered.CoveredLayers())

	covered.CoveredLayers()[0] = 42
	assert.Equal(t, []ID{1, 3}, covered.CoveredLayers())

	parent, ok := covered.EmbeddedIn()
	require.True(t, ok)
	assert.Equal(t, ID(2), parent)

	moved := covered.WithID(9)
	assert.Equal(t, ID(9), moved.ID())
	assert.Equal(t, ID(4), covered.ID())
}

func TestLayerOptionality(t *testing.T) {
	l := New(0, KindSignatureTimestamp)

	_, ok := l.GenerationTime()
	assert.False(t, ok)
	_, ok = l.ByteRange()
	assert.False(t, ok)
	_, ok = l.HashIndex()
	assert.False(t, ok)
	_, ok = l.EmbeddedIn()
	assert.False(t, ok)
	_, ok = l.Position()
	assert.False(t, ok)
	assert.Equal(t, OrderingKey{}, l.OrderingKey())

	pos, ok := New(1, KindSignatureRevision, WithByteRange(byterange.New(0, 10, 20, 5))).Position()
	require.True(t, ok)
	assert.Equal(t, int64(25), pos)
	pos, ok = New(2, KindValidationDataRevision, WithRevisionEnd(70)).Position()
	require.True(t, ok)
	assert.Equal(t, int64(70), pos)

	key := New(1, KindArchiveTimestamp, WithGenerationTime(t0), WithHashIndex(tableWith(4))).OrderingKey()
	assert.True(t, key.HasTime)
	assert.True(t, key.HasTable)
	assert.Equal(t, 4, key.RecordCount)
}

func TestKind(t *testing.T) {
	for k := KindSignatureTimestamp; k <= KindValidationDataRevision; k++ {
		parsed, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseKind("signature")
	assert.Error(t, err)

	assert.True(t, KindDocumentTimestamp.IsRevision())
	assert.True(t, KindDocumentTimestamp.IsTimestamp())
	assert.False(t, KindArchiveTimestamp.IsRevision())
	assert.False(t, KindEvidenceRecord.IsTimestamp())
}

func TestFromToken(t *testing.T) {
	issuer, err := timestamps.NewTestIssuer()
	require.NoError(t, err)
	issuer.WithFixedTime(t1)

	t.Run("with hash index", func(t *testing.T) {
		attr, err := tableWith(3).Attribute()
		require.NoError(t, err)
		der, err := issuer.Issue([]byte("signature value"), cms.Attributes{attr})
		require.NoError(t, err)
		tok, err := timestamps.ParseToken(der)
		require.NoError(t, err)

		l, err := FromToken(7, KindArchiveTimestamp, tok, WithEmbeddedIn(1))
		require.NoError(t, err)

		gen, ok := l.GenerationTime()
		require.True(t, ok)
		assert.True(t, t1.Equal(gen))
		table, ok := l.HashIndex()
		require.True(t, ok)
		assert.Equal(t, 3, table.RecordCount())
		assert.Equal(t, hashindex.V3, table.Version())
	})

	t.Run("without hash index", func(t *testing.T) {
		der, err := issuer.Issue([]byte("signature value"), nil)
		require.NoError(t, err)
		tok, err := timestamps.ParseToken(der)
		require.NoError(t, err)

		l, err := FromToken(1, KindSignatureTimestamp, tok)
		require.NoError(t, err)
		_, ok := l.HashIndex()
		assert.False(t, ok)
	})

	t.Run("malformed hash index", func(t *testing.T) {
		bad := cms.NewAttribute(cms.OIDATSHashIndexV3, []byte{0x02, 0x01, 0x01})
		der, err := issuer.Issue([]byte("signature value"), cms.Attributes{bad})
		require.NoError(t, err)
		tok, err := timestamps.ParseToken(der)
		require.NoError(t, err)

		_, err = FromToken(2, KindArchiveTimestamp, tok)
		assert.ErrorIs(t, err, hashindex.ErrMalformedHashIndex)
	})
}

func TestFromEvidenceRecord(t *testing.T) {
	issuer, err := timestamps.NewTestIssuer()
	require.NoError(t, err)
	tok, err := issuer.WithFixedTime(t2).Issue([]byte("data"), nil)
	require.NoError(t, err)

	der, err := timestamps.MarshalEvidenceRecord(cms.OIDSHA256, [][][]byte{{tok}})
	require.NoError(t, err)

	l, err := FromEvidenceRecord(3, der)
	require.NoError(t, err)
	assert.Equal(t, KindEvidenceRecord, l.Kind())
	gen, ok := l.GenerationTime()
	require.True(t, ok)
	assert.True(t, t2.Equal(gen))

	_, err = FromEvidenceRecord(4, []byte{0x01})
	assert.ErrorIs(t, err, timestamps.ErrInvalidEvidenceRecord)
}
