package hashindex

import (
	"encoding/asn1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/georgepadayatti/pdfltv/sign/cms"
	"github.com/georgepadayatti/pdfltv/sign/digest"
)

func der(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := asn1.Marshal(v)
	require.NoError(t, err)
	return b
}

// testState returns material with one multi-valued unsigned attribute.
func testState(t *testing.T) State {
	t.Helper()
	return State{
		Certificates: [][]byte{der(t, "signer-cert"), der(t, "ca-cert")},
		Revocations:  [][]byte{der(t, "crl"), der(t, "ocsp")},
		UnsignedAttributes: cms.Attributes{
			cms.NewAttribute(cms.OIDSignatureTimeStamp, der(t, "tst-1"), der(t, "tst-2")),
			cms.NewAttribute(cms.OIDCompleteCertRefs, der(t, "refs")),
		},
	}
}

func TestVersion(t *testing.T) {
	for _, v := range []Version{V1, V2, V3} {
		got, ok := VersionFromOID(v.OID())
		require.True(t, ok)
		assert.Equal(t, v, got)
		assert.True(t, v.Valid())
	}
	assert.Equal(t, "v3", V3.String())
	assert.False(t, Version(7).Valid())
	assert.Nil(t, Version(7).OID())

	_, ok := VersionFromOID(cms.OIDSignatureTimeStamp)
	assert.False(t, ok)

	v, err := ParseVersion("V2")
	require.NoError(t, err)
	assert.Equal(t, V2, v)
	_, err = ParseVersion("v4")
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestExtractVersion(t *testing.T) {
	other := cms.NewAttribute(cms.OIDSignatureTimeStamp, []byte{0x05, 0x00})
	v1 := cms.NewAttribute(cms.OIDATSHashIndex, []byte{0x05, 0x00})
	v3 := cms.NewAttribute(cms.OIDATSHashIndexV3, []byte{0x05, 0x00})

	t.Run("none", func(t *testing.T) {
		_, ok := ExtractVersion(cms.Attributes{other})
		assert.False(t, ok)
	})

	t.Run("single", func(t *testing.T) {
		v, ok := ExtractVersion(cms.Attributes{other, v3})
		require.True(t, ok)
		assert.Equal(t, V3, v)
	})

	t.Run("several", func(t *testing.T) {
		_, ok := ExtractVersion(cms.Attributes{v1, v3})
		assert.False(t, ok)
	})
}

func TestRoundTrip(t *testing.T) {
	algs := map[string]asn1.ObjectIdentifier{
		"sha256": cms.OIDSHA256,
		"sha512": cms.OIDSHA512,
	}

	for _, v := range []Version{V1, V2, V3} {
		for name, alg := range algs {
			t.Run(v.String()+"/"+name, func(t *testing.T) {
				s := testState(t)
				built, err := Build(s, v, alg, digest.Default)
				require.NoError(t, err)

				attr, err := built.Attribute()
				require.NoError(t, err)
				attrDER, err := attr.Marshal()
				require.NoError(t, err)

				parsed, err := cms.ParseAttributes(attrDER)
				require.NoError(t, err)

				decoded, ok, err := Decode(parsed, v)
				require.NoError(t, err)
				require.True(t, ok)

				assert.True(t, built.SetEqual(decoded))
				assert.True(t, alg.Equal(decoded.Algorithm()))
				assert.Equal(t, built.RecordCount(), decoded.RecordCount())

				res, err := Verify(s, decoded, digest.Default)
				require.NoError(t, err)
				assert.True(t, res.Match)
			})
		}
	}
}

func TestDigestInputs(t *testing.T) {
	attr := cms.NewAttribute(cms.OIDSignatureTimeStamp, der(t, "a"), der(t, "b"))

	t.Run("v3 per value", func(t *testing.T) {
		inputs, err := DigestInputs(attr, V3)
		require.NoError(t, err)
		require.Len(t, inputs, 2)

		typeDER := der(t, cms.OIDSignatureTimeStamp)
		for i, in := range inputs {
			value, err := attr.ValueDER(i)
			require.NoError(t, err)
			assert.Equal(t, append(append([]byte{}, typeDER...), value...), in)
		}
	})

	t.Run("v1 whole attribute", func(t *testing.T) {
		for _, v := range []Version{V1, V2} {
			inputs, err := DigestInputs(attr, v)
			require.NoError(t, err)
			require.Len(t, inputs, 1)

			whole, err := attr.Marshal()
			require.NoError(t, err)
			assert.Equal(t, whole, inputs[0])
		}
	})

	t.Run("unknown version", func(t *testing.T) {
		_, err := DigestInputs(attr, Version(0))
		assert.ErrorIs(t, err, ErrUnknownVersion)
	})
}

func TestVersionsNotInterchangeable(t *testing.T) {
	s := testState(t)
	require.Len(t, s.UnsignedAttributes[0].Values, 2)

	v3, err := Build(s, V3, nil, digest.Default)
	require.NoError(t, err)

	// Same hashes, read by a verifier applying the whole-attribute rule.
	asV1 := NewTable(V1, v3.Algorithm(), v3.CertificateHashes(), v3.RevocationHashes(), v3.AttributeHashes())
	res, err := Verify(s, asV1, digest.Default)
	require.NoError(t, err)
	assert.False(t, res.Match)
	assert.Len(t, res.UnmatchedAttributes, 3)
	assert.Empty(t, res.UnmatchedCertificates)
	assert.Empty(t, res.UnmatchedRevocations)

	v1, err := Build(s, V1, nil, digest.Default)
	require.NoError(t, err)
	assert.False(t, v1.SetEqual(v3))
	assert.Equal(t, 2, len(v1.AttributeHashes()))
	assert.Equal(t, 3, len(v3.AttributeHashes()))
}

func TestVerifyIgnoresOrderAndLaterMaterial(t *testing.T) {
	s := testState(t)
	built, err := Build(s, V3, nil, digest.Default)
	require.NoError(t, err)

	reversed := func(in [][]byte) [][]byte {
		out := make([][]byte, len(in))
		for i := range in {
			out[len(in)-1-i] = in[i]
		}
		return out
	}
	shuffled := NewTable(V3, nil,
		reversed(built.CertificateHashes()),
		reversed(built.RevocationHashes()),
		reversed(built.AttributeHashes()))

	later := s
	later.Certificates = append(append([][]byte{}, s.Certificates...), der(t, "late-cert"))
	later.UnsignedAttributes = append(append(cms.Attributes{}, s.UnsignedAttributes...),
		cms.NewAttribute(cms.OIDArchiveTimestampV3, der(t, "ats")))

	res, err := Verify(later, shuffled, digest.Default)
	require.NoError(t, err)
	assert.True(t, res.Match)
}

func TestVerifyDetectsTampering(t *testing.T) {
	s := testState(t)
	built, err := Build(s, V3, nil, digest.Default)
	require.NoError(t, err)

	tampered := s
	tampered.Certificates = [][]byte{der(t, "signer-cert"), der(t, "rogue-ca")}
	tampered.Revocations = s.Revocations[:1]

	res, err := Verify(tampered, built, digest.Default)
	require.NoError(t, err)
	assert.False(t, res.Match)
	assert.Len(t, res.UnmatchedCertificates, 1)
	assert.Len(t, res.UnmatchedRevocations, 1)
	assert.Empty(t, res.UnmatchedAttributes)
}

func TestBuildExcludesValidationValues(t *testing.T) {
	s := testState(t)
	withValues := s
	withValues.UnsignedAttributes = append(append(cms.Attributes{}, s.UnsignedAttributes...),
		cms.NewAttribute(cms.OIDCertificateValues, der(t, "cv")),
		cms.NewAttribute(cms.OIDRevocationValues, der(t, "rv")))

	a, err := Build(s, V3, nil, digest.Default)
	require.NoError(t, err)
	b, err := Build(withValues, V3, nil, digest.Default)
	require.NoError(t, err)
	assert.True(t, a.SetEqual(b))
}

func TestBuildUnsupportedAlgorithm(t *testing.T) {
	md5 := asn1.ObjectIdentifier{1, 2, 840, 113549, 2, 5}
	_, err := Build(testState(t), V3, md5, digest.Default)
	assert.ErrorIs(t, err, digest.ErrUnsupportedDigestAlgorithm)

	_, err = Build(testState(t), Version(9), nil, digest.Default)
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func octetList(hashes ...[]byte) func(*cryptobyte.Builder) {
	return func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			for _, h := range hashes {
				b.AddASN1OctetString(h)
			}
		})
	}
}

func encodeValue(t *testing.T, parts ...func(*cryptobyte.Builder)) []byte {
	t.Helper()
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, p := range parts {
			p(b)
		}
	})
	out, err := b.Bytes()
	require.NoError(t, err)
	return out
}

func TestDecodeArity(t *testing.T) {
	c, r, a := []byte{0xc1}, []byte{0xd1}, []byte{0xa1}

	t.Run("three elements", func(t *testing.T) {
		value := encodeValue(t, octetList(c), octetList(r), octetList(a, a))
		table, err := DecodeValue(V3, value)
		require.NoError(t, err)

		assert.True(t, DefaultAlgorithm.Equal(table.Algorithm()))
		assert.Equal(t, [][]byte{c}, table.CertificateHashes())
		assert.Equal(t, [][]byte{r}, table.RevocationHashes())
		assert.Equal(t, [][]byte{a, a}, table.AttributeHashes())
		assert.Equal(t, 4, table.RecordCount())
	})

	t.Run("four elements", func(t *testing.T) {
		alg := func(b *cryptobyte.Builder) {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(cms.OIDSHA512)
			})
		}
		value := encodeValue(t, alg, octetList(c), octetList(r), octetList(a))
		table, err := DecodeValue(V2, value)
		require.NoError(t, err)

		assert.True(t, cms.OIDSHA512.Equal(table.Algorithm()))
		assert.Equal(t, [][]byte{c}, table.CertificateHashes())
		assert.Equal(t, [][]byte{r}, table.RevocationHashes())
		assert.Equal(t, [][]byte{a}, table.AttributeHashes())

		again, err := table.Encode()
		require.NoError(t, err)
		assert.Equal(t, value, again)
	})

	t.Run("explicit default algorithm is kept", func(t *testing.T) {
		alg := func(b *cryptobyte.Builder) {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(cms.OIDSHA256)
				b.AddASN1NULL()
			})
		}
		value := encodeValue(t, alg, octetList(), octetList(), octetList())
		table, err := DecodeValue(V1, value)
		require.NoError(t, err)
		assert.True(t, cms.OIDSHA256.Equal(table.Algorithm()))

		again, err := table.Encode()
		require.NoError(t, err)
		decoded, err := DecodeValue(V1, again)
		require.NoError(t, err)
		assert.Equal(t, 0, decoded.RecordCount())
	})

	t.Run("bare algorithm OID", func(t *testing.T) {
		alg := func(b *cryptobyte.Builder) { b.AddASN1ObjectIdentifier(cms.OIDSHA384) }
		value := encodeValue(t, alg, octetList(c), octetList(), octetList())
		table, err := DecodeValue(V1, value)
		require.NoError(t, err)
		assert.True(t, cms.OIDSHA384.Equal(table.Algorithm()))
	})

	t.Run("default algorithm is omitted", func(t *testing.T) {
		three, err := NewTable(V3, nil, [][]byte{c}, nil, nil).Encode()
		require.NoError(t, err)
		four, err := NewTable(V3, cms.OIDSHA384, [][]byte{c}, nil, nil).Encode()
		require.NoError(t, err)

		count := func(value []byte) int {
			s := cryptobyte.String(value)
			var seq cryptobyte.String
			require.True(t, s.ReadASN1(&seq, cbasn1.SEQUENCE))
			n := 0
			for !seq.Empty() {
				var (
					el  cryptobyte.String
					tag cbasn1.Tag
				)
				require.True(t, seq.ReadAnyASN1(&el, &tag))
				n++
			}
			return n
		}
		assert.Equal(t, 3, count(three))
		assert.Equal(t, 4, count(four))
	})
}

func TestDecodeMalformed(t *testing.T) {
	c := []byte{0xc1}
	tests := []struct {
		name  string
		value func(t *testing.T) []byte
	}{
		{"not a sequence", func(t *testing.T) []byte { return der(t, 42) }},
		{"two elements", func(t *testing.T) []byte {
			return encodeValue(t, octetList(c), octetList(c))
		}},
		{"integer in list", func(t *testing.T) []byte {
			return encodeValue(t, octetList(c), octetList(), func(b *cryptobyte.Builder) {
				b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) { b.AddASN1Int64(1) })
			})
		}},
		{"list is not a sequence", func(t *testing.T) []byte {
			return encodeValue(t, octetList(c), octetList(), func(b *cryptobyte.Builder) {
				b.AddASN1OctetString(c)
			})
		}},
		{"bad algorithm", func(t *testing.T) []byte {
			return encodeValue(t, func(b *cryptobyte.Builder) { b.AddASN1Int64(5) },
				octetList(c), octetList(), octetList())
		}},
		{"trailing data", func(t *testing.T) []byte {
			return append(encodeValue(t, octetList(), octetList(), octetList()), 0x00)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := cms.Attributes{cms.NewAttribute(cms.OIDATSHashIndexV3, tt.value(t))}
			_, ok, err := Decode(attrs, V3)
			assert.False(t, ok)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedHashIndex)

			var merr *MalformedError
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, V3, merr.Version)
		})
	}
}

func TestDecodePresence(t *testing.T) {
	value := encodeValue(t, octetList(), octetList(), octetList())

	t.Run("absent", func(t *testing.T) {
		attrs := cms.Attributes{cms.NewAttribute(cms.OIDATSHashIndexV3, value)}
		table, ok, err := Decode(attrs, V1)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, table)
	})

	t.Run("duplicated", func(t *testing.T) {
		attrs := cms.Attributes{
			cms.NewAttribute(cms.OIDATSHashIndexV3, value),
			cms.NewAttribute(cms.OIDATSHashIndexV3, value),
		}
		_, _, err := Decode(attrs, V3)
		assert.ErrorIs(t, err, ErrMalformedHashIndex)
	})

	t.Run("several values", func(t *testing.T) {
		attrs := cms.Attributes{cms.NewAttribute(cms.OIDATSHashIndexV3, value, value)}
		_, _, err := Decode(attrs, V3)
		assert.ErrorIs(t, err, ErrMalformedHashIndex)
	})

	t.Run("unknown version", func(t *testing.T) {
		_, _, err := Decode(nil, Version(0))
		assert.ErrorIs(t, err, ErrUnknownVersion)
	})
}

func TestContainsAttribute(t *testing.T) {
	s := testState(t)
	built, err := Build(s, V3, nil, digest.Default)
	require.NoError(t, err)

	ok, err := built.ContainsAttribute(s.UnsignedAttributes[0], digest.Default)
	require.NoError(t, err)
	assert.True(t, ok)

	attrDER, err := s.UnsignedAttributes[1].Marshal()
	require.NoError(t, err)
	ok, err = built.ContainsAttributeDER(attrDER, digest.Default)
	require.NoError(t, err)
	assert.True(t, ok)

	foreign := cms.NewAttribute(cms.OIDSignatureTimeStamp, der(t, "tst-1"), der(t, "other"))
	ok, err = built.ContainsAttribute(foreign, digest.Default)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = built.ContainsAttributeDER([]byte{0x01}, digest.Default)
	assert.Error(t, err)
}

func TestStateBefore(t *testing.T) {
	s := testState(t)
	assert.Len(t, s.Before(1).UnsignedAttributes, 1)
	assert.Len(t, s.Before(-3).UnsignedAttributes, 0)
	assert.Len(t, s.Before(10).UnsignedAttributes, 2)
	assert.Len(t, s.Before(1).Certificates, 2)
}

func TestStateFromSignedData(t *testing.T) {
	signer := &cms.SignerInfo{UnsignedAttrs: testState(t).UnsignedAttributes}
	sd := &cms.SignedData{
		Certificates:   []asn1.RawValue{{FullBytes: der(t, "c")}},
		RevocationInfo: []asn1.RawValue{{FullBytes: der(t, "r")}},
		SignerInfos:    []*cms.SignerInfo{signer},
	}
	s := StateFromSignedData(sd, signer)
	assert.Equal(t, [][]byte{der(t, "c")}, s.Certificates)
	assert.Equal(t, [][]byte{der(t, "r")}, s.Revocations)
	assert.Len(t, s.UnsignedAttributes, 2)
}
