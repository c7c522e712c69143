package hashindex

import (
	"encoding/asn1"
	"fmt"

	"github.com/georgepadayatti/pdfltv/sign/cms"
	"github.com/georgepadayatti/pdfltv/sign/digest"
)

// excludedFromBuild lists attribute types that never get an entry in a
// freshly built table.
var excludedFromBuild = []asn1.ObjectIdentifier{
	cms.OIDCertificateValues,
	cms.OIDRevocationValues,
}

// State is the signature material as it stood when an archive timestamp
// was requested.
type State struct {
	// Certificates are the encoded CertificateChoices of the SignedData.
	Certificates [][]byte
	// Revocations are the encoded RevocationInfoChoices, CRLs and OCSP
	// responses alike.
	Revocations [][]byte
	// UnsignedAttributes of the signer, in order.
	UnsignedAttributes cms.Attributes
}

// StateFromSignedData captures the current material of a signature.
func StateFromSignedData(sd *cms.SignedData, signer *cms.SignerInfo) State {
	var s State
	for _, c := range sd.Certificates {
		s.Certificates = append(s.Certificates, c.FullBytes)
	}
	for _, r := range sd.RevocationInfo {
		s.Revocations = append(s.Revocations, r.FullBytes)
	}
	if signer != nil {
		s.UnsignedAttributes = append(cms.Attributes(nil), signer.UnsignedAttrs...)
	}
	return s
}

// Before returns the state limited to the first n unsigned attributes,
// i.e. what existed before the attribute at index n was added.
func (s State) Before(n int) State {
	if n < 0 {
		n = 0
	}
	if n > len(s.UnsignedAttributes) {
		n = len(s.UnsignedAttributes)
	}
	s.UnsignedAttributes = s.UnsignedAttributes[:n:n]
	return s
}

// DigestInputs returns the byte strings that are digested for one
// attribute. V3 yields DER(type) || DER(value) for every value; V1 and V2
// yield the DER encoding of the whole attribute.
func DigestInputs(attr cms.Attribute, v Version) ([][]byte, error) {
	switch v {
	case V3:
		typeDER, err := asn1.Marshal(attr.Type)
		if err != nil {
			return nil, fmt.Errorf("encoding attribute type %v: %w", attr.Type, err)
		}
		inputs := make([][]byte, 0, len(attr.Values))
		for i := range attr.Values {
			valueDER, err := attr.ValueDER(i)
			if err != nil {
				return nil, err
			}
			in := make([]byte, 0, len(typeDER)+len(valueDER))
			in = append(in, typeDER...)
			in = append(in, valueDER...)
			inputs = append(inputs, in)
		}
		return inputs, nil
	case V1, V2:
		der, err := attr.Marshal()
		if err != nil {
			return nil, fmt.Errorf("encoding attribute %v: %w", attr.Type, err)
		}
		return [][]byte{der}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, int(v))
	}
}

// Build computes a new table over the state.
func Build(s State, v Version, alg asn1.ObjectIdentifier, p digest.Provider) (*Table, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, int(v))
	}
	if alg == nil {
		alg = DefaultAlgorithm
	}
	if p == nil {
		p = digest.Default
	}

	h := hasher{alg: alg, provider: p}
	certs, err := h.all(s.Certificates)
	if err != nil {
		return nil, err
	}
	revs, err := h.all(s.Revocations)
	if err != nil {
		return nil, err
	}
	attrs, err := h.attributes(s.UnsignedAttributes.Without(excludedFromBuild...), v)
	if err != nil {
		return nil, err
	}

	return NewTable(v, alg, certs, revs, attrs), nil
}

// Result is the outcome of checking a claimed table against a state. A
// mismatch is a normal verification outcome, not an error.
type Result struct {
	Version   Version
	Algorithm asn1.ObjectIdentifier
	Match     bool

	// Claimed hashes with no counterpart in the recomputed state.
	UnmatchedCertificates [][]byte
	UnmatchedRevocations  [][]byte
	UnmatchedAttributes   [][]byte
}

// Verify recomputes every hash from the state with the claimed table's
// version and algorithm and checks that each claimed hash is present.
// Order is not significant and the state may hold material added after
// the table was built.
func Verify(s State, claimed *Table, p digest.Provider) (*Result, error) {
	if claimed == nil {
		return nil, fmt.Errorf("hashindex: nil table")
	}
	if p == nil {
		p = digest.Default
	}

	h := hasher{alg: claimed.algorithm, provider: p}
	certs, err := h.all(s.Certificates)
	if err != nil {
		return nil, err
	}
	revs, err := h.all(s.Revocations)
	if err != nil {
		return nil, err
	}
	attrs, err := h.attributes(s.UnsignedAttributes, claimed.version)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Version:               claimed.version,
		Algorithm:             claimed.Algorithm(),
		UnmatchedCertificates: unmatched(claimed.certificates, certs),
		UnmatchedRevocations:  unmatched(claimed.revocations, revs),
		UnmatchedAttributes:   unmatched(claimed.attributes, attrs),
	}
	res.Match = len(res.UnmatchedCertificates) == 0 &&
		len(res.UnmatchedRevocations) == 0 &&
		len(res.UnmatchedAttributes) == 0
	return res, nil
}

// ContainsAttribute reports whether every digest input of attr appears in
// the table's attribute list.
func (t *Table) ContainsAttribute(attr cms.Attribute, p digest.Provider) (bool, error) {
	if p == nil {
		p = digest.Default
	}
	h := hasher{alg: t.algorithm, provider: p}
	hashes, err := h.attributes(cms.Attributes{attr}, t.version)
	if err != nil {
		return false, err
	}
	if len(hashes) == 0 {
		return false, nil
	}
	return len(unmatched(hashes, t.attributes)) == 0, nil
}

// ContainsAttributeDER is ContainsAttribute for a DER encoded attribute.
func (t *Table) ContainsAttributeDER(der []byte, p digest.Provider) (bool, error) {
	attrs, err := cms.ParseAttributes(der)
	if err != nil {
		return false, err
	}
	if len(attrs) != 1 {
		return false, fmt.Errorf("hashindex: expected one attribute, got %d", len(attrs))
	}
	return t.ContainsAttribute(attrs[0], p)
}

type hasher struct {
	alg      asn1.ObjectIdentifier
	provider digest.Provider
}

func (h hasher) all(inputs [][]byte) ([][]byte, error) {
	out := make([][]byte, 0, len(inputs))
	for _, in := range inputs {
		d, err := h.provider.Digest(h.alg, in)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (h hasher) attributes(attrs cms.Attributes, v Version) ([][]byte, error) {
	var out [][]byte
	for _, a := range attrs {
		inputs, err := DigestInputs(a, v)
		if err != nil {
			return nil, err
		}
		hashes, err := h.all(inputs)
		if err != nil {
			return nil, err
		}
		out = append(out, hashes...)
	}
	return out, nil
}

// unmatched removes one occurrence from the recomputed set for every
// claimed hash and returns the claimed hashes left over.
func unmatched(claimed, recomputed [][]byte) [][]byte {
	pool := cloneAll(recomputed)
	var left [][]byte
	for _, c := range claimed {
		i := indexOf(pool, c)
		if i < 0 {
			left = append(left, append([]byte(nil), c...))
			continue
		}
		pool = append(pool[:i], pool[i+1:]...)
	}
	return left
}
