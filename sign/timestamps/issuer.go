package timestamps

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/georgepadayatti/pdfltv/sign/cms"
	"github.com/georgepadayatti/pdfltv/sign/digest"
)

// Issuer acts as its own TSA. It signs every request with the given
// certificate and key; it does not talk to the network.
type Issuer struct {
	// Cert is the TSA signing certificate.
	Cert *x509.Certificate

	// Key is the TSA private key.
	Key crypto.Signer

	// CertsToEmbed are additional certificates to include in tokens.
	CertsToEmbed []*x509.Certificate

	// FixedTime is used instead of the current time when set.
	FixedTime *time.Time

	// Policy is the TSA policy OID.
	Policy asn1.ObjectIdentifier

	// Algorithm is the message imprint digest algorithm.
	Algorithm asn1.ObjectIdentifier

	// Provider computes digests; digest.Default when nil.
	Provider digest.Provider
}

// NewIssuer creates a new issuer.
func NewIssuer(cert *x509.Certificate, key crypto.Signer) *Issuer {
	return &Issuer{
		Cert:      cert,
		Key:       key,
		Policy:    asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 4146, 2, 2},
		Algorithm: cms.OIDSHA256,
	}
}

// WithFixedTime sets a fixed generation time.
func (i *Issuer) WithFixedTime(t time.Time) *Issuer {
	i.FixedTime = &t
	return i
}

// WithCertsToEmbed adds certificates to embed in tokens.
func (i *Issuer) WithCertsToEmbed(certs []*x509.Certificate) *Issuer {
	i.CertsToEmbed = certs
	return i
}

// Issue returns a DER encoded token over data. The unsigned attributes are
// attached to the token's signer, which is how archive timestamps carry
// their hash index.
func (i *Issuer) Issue(data []byte, unsigned cms.Attributes) ([]byte, error) {
	if i.Cert == nil || i.Key == nil {
		return nil, errors.New("issuer requires a certificate and a key")
	}
	p := i.Provider
	if p == nil {
		p = digest.Default
	}

	imprint, err := p.Digest(i.Algorithm, data)
	if err != nil {
		return nil, err
	}

	genTime := time.Now().UTC().Truncate(time.Second)
	if i.FixedTime != nil {
		genTime = i.FixedTime.UTC()
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}

	info := TSTInfo{
		Version: 1,
		Policy:  i.Policy,
		MessageImprint: MessageImprint{
			HashAlgorithm: cms.AlgorithmIdentifier{Algorithm: i.Algorithm},
			HashedMessage: imprint,
		},
		SerialNumber: serial,
		GenTime:      genTime,
	}
	infoDER, err := asn1.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to encode TSTInfo: %w", err)
	}

	return i.sign(infoDER, unsigned)
}

func (i *Issuer) sign(infoDER []byte, unsigned cms.Attributes) ([]byte, error) {
	encap, err := cms.NewEncapsulatedContent(cms.OIDTSTInfo, infoDER)
	if err != nil {
		return nil, err
	}

	contentDigest, err := digest.Default.Digest(cms.OIDSHA256, infoDER)
	if err != nil {
		return nil, err
	}
	contentType, err := asn1.Marshal(cms.OIDTSTInfo)
	if err != nil {
		return nil, err
	}
	messageDigest, err := asn1.Marshal(contentDigest)
	if err != nil {
		return nil, err
	}

	sid, err := asn1.Marshal(struct {
		Issuer       asn1.RawValue
		SerialNumber *big.Int
	}{asn1.RawValue{FullBytes: i.Cert.RawIssuer}, i.Cert.SerialNumber})
	if err != nil {
		return nil, err
	}

	sigAlg, err := signatureAlgorithm(i.Key)
	if err != nil {
		return nil, err
	}

	si := &cms.SignerInfo{
		Version:         1,
		SID:             asn1.RawValue{FullBytes: sid},
		DigestAlgorithm: cms.AlgorithmIdentifier{Algorithm: cms.OIDSHA256},
		SignedAttrs: cms.Attributes{
			cms.NewAttribute(cms.OIDContentType, contentType),
			cms.NewAttribute(cms.OIDMessageDigest, messageDigest),
		},
		SignatureAlgorithm: sigAlg,
		UnsignedAttrs:      unsigned,
	}

	toSign, err := si.SignedAttrsDigestInput()
	if err != nil {
		return nil, err
	}
	hashed, err := digest.Default.Digest(cms.OIDSHA256, toSign)
	if err != nil {
		return nil, err
	}
	si.Signature, err = i.Key.Sign(rand.Reader, hashed, crypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("signing TSTInfo: %w", err)
	}

	certs := []asn1.RawValue{{FullBytes: i.Cert.Raw}}
	for _, c := range i.CertsToEmbed {
		certs = append(certs, asn1.RawValue{FullBytes: c.Raw})
	}

	sd := &cms.SignedData{
		Version:          3,
		DigestAlgorithms: []cms.AlgorithmIdentifier{{Algorithm: cms.OIDSHA256}},
		EncapContentInfo: encap,
		Certificates:     certs,
		SignerInfos:      []*cms.SignerInfo{si},
	}
	return sd.MarshalContentInfo()
}

func signatureAlgorithm(key crypto.Signer) (cms.AlgorithmIdentifier, error) {
	switch key.Public().(type) {
	case *rsa.PublicKey:
		return cms.AlgorithmIdentifier{
			Algorithm:  cms.OIDSHA256WithRSA,
			Parameters: asn1.RawValue{Tag: asn1.TagNull},
		}, nil
	case *ecdsa.PublicKey:
		return cms.AlgorithmIdentifier{Algorithm: cms.OIDECDSAWithSHA256}, nil
	default:
		return cms.AlgorithmIdentifier{}, errors.New("unsupported key type")
	}
}

// NewTestIssuer creates an issuer with a fresh self-signed ECDSA
// certificate.
func NewTestIssuer() (*Issuer, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName:   "Test TSA",
			Organization: []string{"Test"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageTimeStamping},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return NewIssuer(cert, key), nil
}
