package cms

import (
	"encoding/asn1"
	"fmt"
)

// Attribute represents a CMS attribute. Raw, when set, is the encoding the
// attribute was parsed from and is what Marshal returns.
type Attribute struct {
	Raw    asn1.RawContent
	Type   asn1.ObjectIdentifier
	Values []asn1.RawValue `asn1:"set"`
}

// NewAttribute builds an attribute from already encoded values.
func NewAttribute(oid asn1.ObjectIdentifier, values ...[]byte) Attribute {
	attr := Attribute{Type: oid}
	for _, v := range values {
		attr.Values = append(attr.Values, asn1.RawValue{FullBytes: v})
	}
	return attr
}

// Marshal returns the DER encoding of the attribute.
func (a Attribute) Marshal() ([]byte, error) {
	if len(a.Raw) > 0 {
		return a.Raw, nil
	}
	return asn1.Marshal(a)
}

// ValueDER returns the encoding of the i-th attribute value.
func (a Attribute) ValueDER(i int) ([]byte, error) {
	if i < 0 || i >= len(a.Values) {
		return nil, fmt.Errorf("attribute %v has no value %d", a.Type, i)
	}
	v := a.Values[i]
	if len(v.FullBytes) > 0 {
		return v.FullBytes, nil
	}
	return asn1.Marshal(v)
}

// Attributes is an ordered set of attributes as found in a SignerInfo.
type Attributes []Attribute

// ParseAttributes parses the concatenated contents of a SET OF Attribute.
func ParseAttributes(b []byte) (Attributes, error) {
	var attrs Attributes
	for len(b) > 0 {
		var attr Attribute
		rest, err := asn1.Unmarshal(b, &attr)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute: %v", ErrMalformed, err)
		}
		attrs = append(attrs, attr)
		b = rest
	}
	return attrs, nil
}

// ByType returns every attribute with the given type, in order.
func (as Attributes) ByType(oid asn1.ObjectIdentifier) Attributes {
	var out Attributes
	for _, a := range as {
		if a.Type.Equal(oid) {
			out = append(out, a)
		}
	}
	return out
}

// Single returns the only attribute with the given type.
func (as Attributes) Single(oid asn1.ObjectIdentifier) (Attribute, error) {
	found := as.ByType(oid)
	switch len(found) {
	case 0:
		return Attribute{}, fmt.Errorf("%w: %v", ErrAttributeNotFound, oid)
	case 1:
		return found[0], nil
	default:
		return Attribute{}, fmt.Errorf("%w: %v", ErrAmbiguousAttribute, oid)
	}
}

// Without returns a copy of the set without attributes of the given types.
func (as Attributes) Without(oids ...asn1.ObjectIdentifier) Attributes {
	var out Attributes
outer:
	for _, a := range as {
		for _, oid := range oids {
			if a.Type.Equal(oid) {
				continue outer
			}
		}
		out = append(out, a)
	}
	return out
}

// MarshalSet encodes the attributes as the contents of an implicitly tagged
// SET OF Attribute, keeping the given order.
func (as Attributes) MarshalSet(tag int) ([]byte, error) {
	var body []byte
	for _, a := range as {
		der, err := a.Marshal()
		if err != nil {
			return nil, err
		}
		body = append(body, der...)
	}
	return asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        tag,
		IsCompound: true,
		Bytes:      body,
	})
}
