package hashindex

import (
	"bytes"
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/georgepadayatti/pdfltv/sign/cms"
)

// DefaultAlgorithm is the digest algorithm implied when a table omits its
// algorithm identifier.
var DefaultAlgorithm = cms.OIDSHA256

// Table is a decoded or freshly built hash index. It is immutable; the
// accessors return copies.
type Table struct {
	version           Version
	algorithm         asn1.ObjectIdentifier
	explicitAlgorithm bool
	certificates      [][]byte
	revocations       [][]byte
	attributes        [][]byte
}

// NewTable builds a table from digest lists. A nil algorithm means
// DefaultAlgorithm.
func NewTable(v Version, alg asn1.ObjectIdentifier, certs, revs, attrs [][]byte) *Table {
	if alg == nil {
		alg = DefaultAlgorithm
	}
	return &Table{
		version:      v,
		algorithm:    append(asn1.ObjectIdentifier(nil), alg...),
		certificates: cloneAll(certs),
		revocations:  cloneAll(revs),
		attributes:   cloneAll(attrs),
	}
}

func (t *Table) Version() Version { return t.version }

// Algorithm returns the digest algorithm the hashes were computed with.
func (t *Table) Algorithm() asn1.ObjectIdentifier {
	return append(asn1.ObjectIdentifier(nil), t.algorithm...)
}

func (t *Table) CertificateHashes() [][]byte { return cloneAll(t.certificates) }
func (t *Table) RevocationHashes() [][]byte  { return cloneAll(t.revocations) }
func (t *Table) AttributeHashes() [][]byte   { return cloneAll(t.attributes) }

// RecordCount is the total number of hashes in the three lists.
func (t *Table) RecordCount() int {
	return len(t.certificates) + len(t.revocations) + len(t.attributes)
}

// SetEqual reports whether both tables hold the same hashes per list,
// ignoring order.
func (t *Table) SetEqual(other *Table) bool {
	return sameMembers(t.certificates, other.certificates) &&
		sameMembers(t.revocations, other.revocations) &&
		sameMembers(t.attributes, other.attributes)
}

// Encode returns the DER encoding of the table's attribute value. The
// algorithm identifier is omitted when it is the default, unless the table
// was decoded with an explicit one.
func (t *Table) Encode() ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		if t.explicitAlgorithm || !t.algorithm.Equal(DefaultAlgorithm) {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				b.AddASN1ObjectIdentifier(t.algorithm)
			})
		}
		for _, list := range [][][]byte{t.certificates, t.revocations, t.attributes} {
			b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
				for _, h := range list {
					b.AddASN1OctetString(h)
				}
			})
		}
	})
	der, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding %s hash index: %w", t.version, err)
	}
	return der, nil
}

// Attribute wraps the encoded table into an unsigned attribute of the
// table's version.
func (t *Table) Attribute() (cms.Attribute, error) {
	if !t.version.Valid() {
		return cms.Attribute{}, fmt.Errorf("%w: %d", ErrUnknownVersion, int(t.version))
	}
	der, err := t.Encode()
	if err != nil {
		return cms.Attribute{}, err
	}
	return cms.NewAttribute(t.version.OID(), der), nil
}

// Decode locates the hash-index attribute of the given version and decodes
// it. An absent attribute yields (nil, false, nil).
//
// Tables with more than three elements carry the algorithm identifier at
// index 0 and the lists at 1, 2 and 3; otherwise the lists are at 0, 1, 2
// and the algorithm is DefaultAlgorithm.
func Decode(attrs cms.Attributes, v Version) (*Table, bool, error) {
	if !v.Valid() {
		return nil, false, fmt.Errorf("%w: %d", ErrUnknownVersion, int(v))
	}

	found := attrs.ByType(v.OID())
	switch len(found) {
	case 0:
		return nil, false, nil
	case 1:
	default:
		return nil, false, malformed(v, "attribute present %d times", len(found))
	}

	attr := found[0]
	if len(attr.Values) != 1 {
		return nil, false, malformed(v, "attribute has %d values", len(attr.Values))
	}
	der, err := attr.ValueDER(0)
	if err != nil {
		return nil, false, malformed(v, "%v", err)
	}

	t, err := DecodeValue(v, der)
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

// DecodeValue decodes the DER of a hash-index attribute value.
func DecodeValue(v Version, der []byte) (*Table, error) {
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, malformed(v, "value is not a single SEQUENCE")
	}

	var (
		elems []cryptobyte.String
		tags  []cbasn1.Tag
	)
	for !seq.Empty() {
		var (
			el  cryptobyte.String
			tag cbasn1.Tag
		)
		if !seq.ReadAnyASN1Element(&el, &tag) {
			return nil, malformed(v, "truncated element %d", len(elems))
		}
		elems = append(elems, el)
		tags = append(tags, tag)
	}
	if len(elems) < 3 {
		return nil, malformed(v, "sequence has %d elements, want at least 3", len(elems))
	}

	t := &Table{version: v, algorithm: DefaultAlgorithm}
	offset := 0
	if len(elems) > 3 {
		alg, err := decodeAlgorithm(elems[0], tags[0])
		if err != nil {
			return nil, malformed(v, "algorithm: %v", err)
		}
		t.algorithm = alg
		t.explicitAlgorithm = true
		offset = 1
	}

	lists := []*[][]byte{&t.certificates, &t.revocations, &t.attributes}
	names := []string{"certificates", "revocations", "unsigned attributes"}
	for i, dst := range lists {
		hashes, err := decodeList(elems[offset+i])
		if err != nil {
			return nil, malformed(v, "%s: %v", names[i], err)
		}
		*dst = hashes
	}
	return t, nil
}

func decodeAlgorithm(el cryptobyte.String, tag cbasn1.Tag) (asn1.ObjectIdentifier, error) {
	var oid asn1.ObjectIdentifier
	switch tag {
	case cbasn1.SEQUENCE:
		var inner cryptobyte.String
		if !el.ReadASN1(&inner, cbasn1.SEQUENCE) || !inner.ReadASN1ObjectIdentifier(&oid) {
			return nil, fmt.Errorf("invalid AlgorithmIdentifier")
		}
	case cbasn1.OBJECT_IDENTIFIER:
		if !el.ReadASN1ObjectIdentifier(&oid) {
			return nil, fmt.Errorf("invalid OBJECT IDENTIFIER")
		}
	default:
		return nil, fmt.Errorf("unexpected tag %#x", uint8(tag))
	}
	return oid, nil
}

func decodeList(el cryptobyte.String) ([][]byte, error) {
	var body cryptobyte.String
	if !el.ReadASN1(&body, cbasn1.SEQUENCE) || !el.Empty() {
		return nil, fmt.Errorf("not a SEQUENCE OF OCTET STRING")
	}
	hashes := [][]byte{}
	for !body.Empty() {
		var h cryptobyte.String
		if !body.ReadASN1(&h, cbasn1.OCTET_STRING) {
			return nil, fmt.Errorf("element %d is not an OCTET STRING", len(hashes))
		}
		hashes = append(hashes, append([]byte(nil), h...))
	}
	return hashes, nil
}

func cloneAll(in [][]byte) [][]byte {
	out := make([][]byte, len(in))
	for i, b := range in {
		out[i] = append([]byte(nil), b...)
	}
	return out
}

// sameMembers compares two lists as multisets.
func sameMembers(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	rest := cloneAll(b)
	for _, h := range a {
		i := indexOf(rest, h)
		if i < 0 {
			return false
		}
		rest = append(rest[:i], rest[i+1:]...)
	}
	return true
}

func indexOf(list [][]byte, h []byte) int {
	for i, x := range list {
		if bytes.Equal(x, h) {
			return i
		}
	}
	return -1
}
