// Package cms provides the subset of CMS (RFC 5652) needed to reason about
// long-term signatures: parsing SignedData into raw certificate, revocation
// and attribute values so they can be digested exactly as encoded.
package cms

import (
	"encoding/asn1"
	"errors"
	"fmt"
)

// Common errors
var (
	ErrMalformed          = errors.New("malformed CMS structure")
	ErrNotSignedData      = errors.New("content is not SignedData")
	ErrNoSignerInfo       = errors.New("no signer infos")
	ErrAttributeNotFound  = errors.New("attribute not found")
	ErrAmbiguousAttribute = errors.New("attribute present more than once")
)

// AlgorithmIdentifier represents an algorithm identifier.
type AlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

// ContentInfo represents a CMS ContentInfo structure.
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,optional,tag:0"`
}

// EncapsulatedContentInfo represents encapsulated content.
type EncapsulatedContentInfo struct {
	EContentType asn1.ObjectIdentifier
	EContent     asn1.RawValue `asn1:"explicit,optional,tag:0"`
}

// Content returns the encapsulated octets, or nil for detached content.
func (e EncapsulatedContentInfo) Content() ([]byte, error) {
	if len(e.EContent.Bytes) == 0 {
		return nil, nil
	}
	var octets []byte
	if _, err := asn1.Unmarshal(e.EContent.Bytes, &octets); err != nil {
		return nil, fmt.Errorf("%w: eContent: %v", ErrMalformed, err)
	}
	return octets, nil
}

// SignedData is a parsed CMS SignedData. Certificates and revocation values
// are kept as raw encodings since their digests must be computed over the
// exact bytes found in the container.
type SignedData struct {
	Version          int
	DigestAlgorithms []AlgorithmIdentifier
	EncapContentInfo EncapsulatedContentInfo

	// Certificates holds every CertificateChoices element.
	Certificates []asn1.RawValue

	// RevocationInfo holds every RevocationInfoChoice element: CRLs and
	// [1] other-revocation-info entries such as OCSP responses alike.
	RevocationInfo []asn1.RawValue

	SignerInfos []*SignerInfo
}

// SignerInfo represents a signer's information.
// SID is kept raw because SignerIdentifier is a CHOICE.
type SignerInfo struct {
	Raw                []byte
	Version            int
	SID                asn1.RawValue
	DigestAlgorithm    AlgorithmIdentifier
	SignedAttrs        Attributes
	SignatureAlgorithm AlgorithmIdentifier
	Signature          []byte
	UnsignedAttrs      Attributes
}

type signedDataASN1 struct {
	Version          int
	DigestAlgorithms []AlgorithmIdentifier `asn1:"set"`
	EncapContentInfo EncapsulatedContentInfo
	Certificates     asn1.RawValue `asn1:"optional,tag:0"`
	CRLs             asn1.RawValue `asn1:"optional,tag:1"`
	SignerInfos      asn1.RawValue
}

type signerInfoASN1 struct {
	Raw                asn1.RawContent
	Version            int
	SID                asn1.RawValue
	DigestAlgorithm    AlgorithmIdentifier
	SignedAttrs        asn1.RawValue `asn1:"optional,tag:0"`
	SignatureAlgorithm AlgorithmIdentifier
	Signature          []byte
	UnsignedAttrs      asn1.RawValue `asn1:"optional,tag:1"`
}

// ParseContentInfo parses a ContentInfo wrapping a SignedData.
func ParseContentInfo(der []byte) (*SignedData, error) {
	var contentInfo ContentInfo
	rest, err := asn1.Unmarshal(der, &contentInfo)
	if err != nil {
		return nil, fmt.Errorf("%w: ContentInfo: %v", ErrMalformed, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: trailing data after ContentInfo", ErrMalformed)
	}
	if !contentInfo.ContentType.Equal(OIDSignedData) {
		return nil, fmt.Errorf("%w: got %v", ErrNotSignedData, contentInfo.ContentType)
	}
	return ParseSignedData(contentInfo.Content.Bytes)
}

// ParseSignedData parses a bare SignedData structure.
func ParseSignedData(der []byte) (*SignedData, error) {
	var raw signedDataASN1
	if _, err := asn1.Unmarshal(der, &raw); err != nil {
		return nil, fmt.Errorf("%w: SignedData: %v", ErrMalformed, err)
	}

	sd := &SignedData{
		Version:          raw.Version,
		DigestAlgorithms: raw.DigestAlgorithms,
		EncapContentInfo: raw.EncapContentInfo,
	}

	var err error
	if sd.Certificates, err = SplitElements(raw.Certificates.Bytes); err != nil {
		return nil, fmt.Errorf("%w: certificates: %v", ErrMalformed, err)
	}
	if sd.RevocationInfo, err = SplitElements(raw.CRLs.Bytes); err != nil {
		return nil, fmt.Errorf("%w: crls: %v", ErrMalformed, err)
	}

	infos, err := SplitElements(raw.SignerInfos.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: signerInfos: %v", ErrMalformed, err)
	}
	for _, info := range infos {
		si, err := parseSignerInfo(info.FullBytes)
		if err != nil {
			return nil, err
		}
		sd.SignerInfos = append(sd.SignerInfos, si)
	}

	return sd, nil
}

func parseSignerInfo(der []byte) (*SignerInfo, error) {
	var raw signerInfoASN1
	if _, err := asn1.Unmarshal(der, &raw); err != nil {
		return nil, fmt.Errorf("%w: SignerInfo: %v", ErrMalformed, err)
	}

	signed, err := ParseAttributes(raw.SignedAttrs.Bytes)
	if err != nil {
		return nil, fmt.Errorf("signed attributes: %w", err)
	}
	unsigned, err := ParseAttributes(raw.UnsignedAttrs.Bytes)
	if err != nil {
		return nil, fmt.Errorf("unsigned attributes: %w", err)
	}

	return &SignerInfo{
		Raw:                raw.Raw,
		Version:            raw.Version,
		SID:                raw.SID,
		DigestAlgorithm:    raw.DigestAlgorithm,
		SignedAttrs:        signed,
		SignatureAlgorithm: raw.SignatureAlgorithm,
		Signature:          raw.Signature,
		UnsignedAttrs:      unsigned,
	}, nil
}

// FirstSigner returns the first signer info.
func (sd *SignedData) FirstSigner() (*SignerInfo, error) {
	if len(sd.SignerInfos) == 0 {
		return nil, ErrNoSignerInfo
	}
	return sd.SignerInfos[0], nil
}

// SplitElements splits the contents of a constructed value into its
// top-level TLV elements.
func SplitElements(b []byte) ([]asn1.RawValue, error) {
	var out []asn1.RawValue
	for len(b) > 0 {
		var v asn1.RawValue
		rest, err := asn1.Unmarshal(b, &v)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		b = rest
	}
	return out, nil
}
