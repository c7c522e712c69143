// Package timestamps parses RFC 3161 timestamp tokens and RFC 4998
// evidence records, and issues tokens locally for tests and tooling.
package timestamps

import (
	"bytes"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/georgepadayatti/pdfltv/sign/cms"
	"github.com/georgepadayatti/pdfltv/sign/digest"
)

// Common errors
var (
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrTimestampMismatch = errors.New("timestamp message imprint mismatch")
)

// MessageImprint represents the hash of the timestamped data.
type MessageImprint struct {
	HashAlgorithm cms.AlgorithmIdentifier
	HashedMessage []byte
}

// TSTInfo represents the timestamp token info.
type TSTInfo struct {
	Version        int
	Policy         asn1.ObjectIdentifier
	MessageImprint MessageImprint
	SerialNumber   *big.Int
	GenTime        time.Time     `asn1:"generalized"`
	Accuracy       Accuracy      `asn1:"optional"`
	Ordering       bool          `asn1:"optional"`
	Nonce          *big.Int      `asn1:"optional"`
	TSA            asn1.RawValue `asn1:"optional,explicit,tag:0"`
	Extensions     []Extension   `asn1:"optional,implicit,tag:1"`
}

// Accuracy represents timestamp accuracy.
type Accuracy struct {
	Seconds int `asn1:"optional"`
	Millis  int `asn1:"optional,implicit,tag:0"`
	Micros  int `asn1:"optional,implicit,tag:1"`
}

// Extension represents an X.509 extension.
type Extension struct {
	ExtnID    asn1.ObjectIdentifier
	Critical  bool `asn1:"optional,default:false"`
	ExtnValue []byte
}

// Token is a parsed timestamp token.
type Token struct {
	Raw        []byte
	Info       TSTInfo
	SignedData *cms.SignedData
	Signer     *cms.SignerInfo
}

// ParseToken parses a ContentInfo wrapping a SignedData whose
// encapsulated content is a TSTInfo.
func ParseToken(der []byte) (*Token, error) {
	sd, err := cms.ParseContentInfo(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}
	if !sd.EncapContentInfo.EContentType.Equal(cms.OIDTSTInfo) {
		return nil, fmt.Errorf("%w: content type %v", ErrInvalidTimestamp, sd.EncapContentInfo.EContentType)
	}

	content, err := sd.EncapContentInfo.Content()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}
	var info TSTInfo
	if _, err := asn1.Unmarshal(content, &info); err != nil {
		return nil, fmt.Errorf("%w: TSTInfo: %v", ErrInvalidTimestamp, err)
	}

	signer, err := sd.FirstSigner()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}

	return &Token{
		Raw:        append([]byte(nil), der...),
		Info:       info,
		SignedData: sd,
		Signer:     signer,
	}, nil
}

// GenTime returns the generation time of the token.
func (t *Token) GenTime() time.Time {
	return t.Info.GenTime
}

// UnsignedAttributes returns the unsigned attributes of the token's
// signer, where hash-index tables are carried.
func (t *Token) UnsignedAttributes() cms.Attributes {
	return t.Signer.UnsignedAttrs
}

// VerifyImprint checks that the token's message imprint is the digest of
// data.
func (t *Token) VerifyImprint(data []byte, p digest.Provider) error {
	if p == nil {
		p = digest.Default
	}
	want, err := p.Digest(t.Info.MessageImprint.HashAlgorithm.Algorithm, data)
	if err != nil {
		return err
	}
	if !bytes.Equal(want, t.Info.MessageImprint.HashedMessage) {
		return ErrTimestampMismatch
	}
	return nil
}
