package cms

import "encoding/asn1"

// OIDs for CMS content types, digest algorithms and the unsigned attributes
// that carry long-term validation material.
var (
	// Content types
	OIDData       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	OIDSignedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	OIDTSTInfo    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 1, 4}

	// Digest algorithms
	OIDSHA1     = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	OIDSHA224   = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 4}
	OIDSHA256   = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	OIDSHA384   = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	OIDSHA512   = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
	OIDSHA3_256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 8}
	OIDSHA3_384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 9}
	OIDSHA3_512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 10}

	// Signature algorithms
	OIDSHA256WithRSA   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	OIDECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}

	// Signed attributes
	OIDContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	OIDMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	OIDSigningTime   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}

	// Unsigned attributes
	OIDSignatureTimeStamp = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14}
	OIDCertificateValues  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 23}
	OIDRevocationValues   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 24}
	OIDArchiveTimestampV2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 48}
	OIDArchiveTimestampV3 = asn1.ObjectIdentifier{0, 4, 0, 1733, 2, 4}
	OIDEvidenceRecordInt  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 49}
	OIDEvidenceRecordExt  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 50}
	OIDATSHashIndex       = asn1.ObjectIdentifier{0, 4, 0, 1733, 2, 5}
	OIDATSHashIndexV2     = asn1.ObjectIdentifier{0, 4, 0, 19122, 1, 4}
	OIDATSHashIndexV3     = asn1.ObjectIdentifier{0, 4, 0, 19122, 1, 5}
	OIDOtherRevInfoOCSP   = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 16, 2}
	OIDOCSPBasicResponse  = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 1}
	OIDContentTimestamp   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 20}
	OIDCompleteCertRefs   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 21}
	OIDCompleteRevocRefs  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 22}
	OIDEscTimeStamp       = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 25}
	OIDCertCRLTimestamp   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 26}
)

// IsArchiveTimestamp reports whether oid identifies one of the two archive
// timestamp attribute variants.
func IsArchiveTimestamp(oid asn1.ObjectIdentifier) bool {
	return oid.Equal(OIDArchiveTimestampV2) || oid.Equal(OIDArchiveTimestampV3)
}

// IsEvidenceRecord reports whether oid identifies an embedded evidence record.
func IsEvidenceRecord(oid asn1.ObjectIdentifier) bool {
	return oid.Equal(OIDEvidenceRecordInt) || oid.Equal(OIDEvidenceRecordExt)
}

// IsTimestamp reports whether oid identifies any timestamp-bearing unsigned
// attribute.
func IsTimestamp(oid asn1.ObjectIdentifier) bool {
	return IsArchiveTimestamp(oid) ||
		oid.Equal(OIDSignatureTimeStamp) ||
		oid.Equal(OIDEscTimeStamp) ||
		oid.Equal(OIDCertCRLTimestamp) ||
		oid.Equal(OIDContentTimestamp)
}
