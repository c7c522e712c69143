// Package hashindex encodes, decodes and verifies ATS-hash-index tables,
// the unsigned attribute by which an archive timestamp commits to the
// certificates, revocation data and unsigned attributes present when it
// was requested.
package hashindex

import (
	"encoding/asn1"
	"fmt"
	"strings"

	"github.com/georgepadayatti/pdfltv/sign/cms"
)

// Version identifies one of the three hash-index attribute variants.
type Version int

const (
	// V1 is the ETSI TS 101 733 ATS-hash-index.
	V1 Version = iota + 1
	// V2 is ATS-hash-index-v2 from EN 319 122-1.
	V2
	// V3 is ATS-hash-index-v3; attribute digests are taken per value.
	V3
)

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	case V3:
		return "v3"
	default:
		return fmt.Sprintf("Version(%d)", int(v))
	}
}

// OID returns the attribute type for the version.
func (v Version) OID() asn1.ObjectIdentifier {
	switch v {
	case V1:
		return cms.OIDATSHashIndex
	case V2:
		return cms.OIDATSHashIndexV2
	case V3:
		return cms.OIDATSHashIndexV3
	default:
		return nil
	}
}

// Valid reports whether v is a known version.
func (v Version) Valid() bool {
	return v >= V1 && v <= V3
}

// ParseVersion parses "v1", "v2" or "v3".
func ParseVersion(s string) (Version, error) {
	for _, v := range []Version{V1, V2, V3} {
		if strings.EqualFold(s, v.String()) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVersion, s)
}

// VersionFromOID maps an attribute type to a version.
func VersionFromOID(oid asn1.ObjectIdentifier) (Version, bool) {
	for _, v := range []Version{V1, V2, V3} {
		if oid.Equal(v.OID()) {
			return v, true
		}
	}
	return 0, false
}

// ExtractVersion scans unsigned attributes for hash-index attributes. A
// version is returned only when exactly one such attribute is present.
func ExtractVersion(attrs cms.Attributes) (Version, bool) {
	var (
		found Version
		count int
	)
	for _, a := range attrs {
		if v, ok := VersionFromOID(a.Type); ok {
			found = v
			count++
		}
	}
	if count != 1 {
		return 0, false
	}
	return found, true
}
