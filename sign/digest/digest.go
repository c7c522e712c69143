// Package digest maps digest algorithm identifiers to hash functions.
package digest

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/asn1"
	"errors"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/georgepadayatti/pdfltv/sign/cms"
)

// ErrUnsupportedDigestAlgorithm is returned for algorithms no provider knows.
var ErrUnsupportedDigestAlgorithm = errors.New("unsupported digest algorithm")

// UnsupportedAlgorithmError names the offending algorithm.
type UnsupportedAlgorithmError struct {
	OID  asn1.ObjectIdentifier
	Name string
}

func (e *UnsupportedAlgorithmError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%v: %s", ErrUnsupportedDigestAlgorithm, e.Name)
	}
	return fmt.Sprintf("%v: %s", ErrUnsupportedDigestAlgorithm, e.OID)
}

func (e *UnsupportedAlgorithmError) Unwrap() error {
	return ErrUnsupportedDigestAlgorithm
}

// Provider computes digests. Implementations must be safe for concurrent use.
type Provider interface {
	Digest(alg asn1.ObjectIdentifier, data []byte) ([]byte, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(alg asn1.ObjectIdentifier, data []byte) ([]byte, error)

// Digest implements Provider.
func (f ProviderFunc) Digest(alg asn1.ObjectIdentifier, data []byte) ([]byte, error) {
	return f(alg, data)
}

type algorithm struct {
	name string
	oid  asn1.ObjectIdentifier
	new  func() hash.Hash
}

var algorithms = []algorithm{
	{"sha1", cms.OIDSHA1, sha1.New},
	{"sha224", cms.OIDSHA224, sha256.New224},
	{"sha256", cms.OIDSHA256, sha256.New},
	{"sha384", cms.OIDSHA384, sha512.New384},
	{"sha512", cms.OIDSHA512, sha512.New},
	{"sha3-256", cms.OIDSHA3_256, sha3.New256},
	{"sha3-384", cms.OIDSHA3_384, sha3.New384},
	{"sha3-512", cms.OIDSHA3_512, sha3.New512},
}

func lookup(oid asn1.ObjectIdentifier) (algorithm, bool) {
	for _, a := range algorithms {
		if a.oid.Equal(oid) {
			return a, true
		}
	}
	return algorithm{}, false
}

type defaultProvider struct{}

// Default is the built-in provider covering SHA-1, SHA-2 and SHA-3.
var Default Provider = defaultProvider{}

func (defaultProvider) Digest(alg asn1.ObjectIdentifier, data []byte) ([]byte, error) {
	a, ok := lookup(alg)
	if !ok {
		return nil, &UnsupportedAlgorithmError{OID: alg}
	}
	h := a.new()
	h.Write(data)
	return h.Sum(nil), nil
}

// ParseName returns the OID for an algorithm name such as "sha256",
// "SHA-384" or "sha3-256".
func ParseName(name string) (asn1.ObjectIdentifier, error) {
	norm := strings.ToLower(strings.TrimSpace(name))
	if !strings.HasPrefix(norm, "sha3") {
		norm = strings.ReplaceAll(norm, "-", "")
	} else {
		norm = strings.ReplaceAll(norm, "_", "-")
		if !strings.HasPrefix(norm, "sha3-") && len(norm) > 4 {
			norm = "sha3-" + norm[4:]
		}
	}
	for _, a := range algorithms {
		if a.name == norm {
			return a.oid, nil
		}
	}
	return nil, &UnsupportedAlgorithmError{Name: name}
}

// Name returns the canonical name of an algorithm OID.
func Name(oid asn1.ObjectIdentifier) string {
	if a, ok := lookup(oid); ok {
		return a.name
	}
	return oid.String()
}

// Size returns the digest length for an algorithm OID.
func Size(oid asn1.ObjectIdentifier) (int, error) {
	a, ok := lookup(oid)
	if !ok {
		return 0, &UnsupportedAlgorithmError{OID: oid}
	}
	return a.new().Size(), nil
}
