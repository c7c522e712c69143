package cms

import (
	"encoding/asn1"
	"fmt"
)

// Marshal encodes the signer info from its fields. Signed attributes keep
// their order so that a signature computed over SignedAttrsDigestInput
// stays valid.
func (si *SignerInfo) Marshal() ([]byte, error) {
	var body []byte
	appendDER := func(v interface{}) error {
		der, err := asn1.Marshal(v)
		if err != nil {
			return err
		}
		body = append(body, der...)
		return nil
	}

	if err := appendDER(si.Version); err != nil {
		return nil, err
	}
	body = append(body, si.SID.FullBytes...)
	if err := appendDER(si.DigestAlgorithm); err != nil {
		return nil, err
	}
	if len(si.SignedAttrs) > 0 {
		der, err := si.SignedAttrs.MarshalSet(0)
		if err != nil {
			return nil, fmt.Errorf("signed attributes: %w", err)
		}
		body = append(body, der...)
	}
	if err := appendDER(si.SignatureAlgorithm); err != nil {
		return nil, err
	}
	if err := appendDER(si.Signature); err != nil {
		return nil, err
	}
	if len(si.UnsignedAttrs) > 0 {
		der, err := si.UnsignedAttrs.MarshalSet(1)
		if err != nil {
			return nil, fmt.Errorf("unsigned attributes: %w", err)
		}
		body = append(body, der...)
	}

	return asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassUniversal,
		Tag:        asn1.TagSequence,
		IsCompound: true,
		Bytes:      body,
	})
}

// SignedAttrsDigestInput returns the encoding of the signed attributes
// with a universal SET tag, which is what a signer signs.
func (si *SignerInfo) SignedAttrsDigestInput() ([]byte, error) {
	der, err := si.SignedAttrs.MarshalSet(0)
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), der...)
	out[0] = 0x31
	return out, nil
}

// Marshal encodes the SignedData.
func (sd *SignedData) Marshal() ([]byte, error) {
	var infos []byte
	for _, si := range sd.SignerInfos {
		der, err := si.Marshal()
		if err != nil {
			return nil, err
		}
		infos = append(infos, der...)
	}

	raw := signedDataASN1{
		Version:          sd.Version,
		DigestAlgorithms: sd.DigestAlgorithms,
		EncapContentInfo: sd.EncapContentInfo,
		SignerInfos: asn1.RawValue{
			Class:      asn1.ClassUniversal,
			Tag:        asn1.TagSet,
			IsCompound: true,
			Bytes:      infos,
		},
	}
	if len(sd.Certificates) > 0 {
		raw.Certificates = implicitSet(0, sd.Certificates)
	}
	if len(sd.RevocationInfo) > 0 {
		raw.CRLs = implicitSet(1, sd.RevocationInfo)
	}
	return asn1.Marshal(raw)
}

// MarshalContentInfo wraps the SignedData into a ContentInfo.
func (sd *SignedData) MarshalContentInfo() ([]byte, error) {
	der, err := sd.Marshal()
	if err != nil {
		return nil, err
	}
	return asn1.Marshal(ContentInfo{
		ContentType: OIDSignedData,
		Content: asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			IsCompound: true,
			Bytes:      der,
		},
	})
}

// NewEncapsulatedContent wraps content octets of the given type.
func NewEncapsulatedContent(contentType asn1.ObjectIdentifier, content []byte) (EncapsulatedContentInfo, error) {
	octets, err := asn1.Marshal(content)
	if err != nil {
		return EncapsulatedContentInfo{}, err
	}
	return EncapsulatedContentInfo{
		EContentType: contentType,
		EContent: asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			IsCompound: true,
			Bytes:      octets,
		},
	}, nil
}

func implicitSet(tag int, elems []asn1.RawValue) asn1.RawValue {
	var body []byte
	for _, e := range elems {
		body = append(body, rawBytes(e)...)
	}
	return asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        tag,
		IsCompound: true,
		Bytes:      body,
	}
}

func rawBytes(v asn1.RawValue) []byte {
	if len(v.FullBytes) > 0 {
		return v.FullBytes
	}
	der, err := asn1.Marshal(v)
	if err != nil {
		return nil
	}
	return der
}
