package timestamps

import (
	"encoding/asn1"
	"errors"
	"fmt"
	"time"

	"github.com/georgepadayatti/pdfltv/sign/cms"
)

// ErrInvalidEvidenceRecord is returned for records that do not follow
// RFC 4998.
var ErrInvalidEvidenceRecord = errors.New("invalid evidence record")

type evidenceRecordASN1 struct {
	Version          int
	DigestAlgorithms []cms.AlgorithmIdentifier
	CryptoInfos      asn1.RawValue `asn1:"optional,tag:0"`
	EncryptionInfo   asn1.RawValue `asn1:"optional,tag:1"`
	Sequence         []asn1.RawValue
}

type archiveTimeStampASN1 struct {
	DigestAlgorithm asn1.RawValue `asn1:"optional,tag:0"`
	Attributes      asn1.RawValue `asn1:"optional,tag:1"`
	ReducedHashtree asn1.RawValue `asn1:"optional,tag:2"`
	TimeStamp       asn1.RawValue
}

// EvidenceRecord is a parsed RFC 4998 evidence record: a sequence of
// archive timestamp chains.
type EvidenceRecord struct {
	Version          int
	DigestAlgorithms []cms.AlgorithmIdentifier
	Chains           [][]*Token
}

// ParseEvidenceRecord parses a DER encoded evidence record.
func ParseEvidenceRecord(der []byte) (*EvidenceRecord, error) {
	var raw evidenceRecordASN1
	rest, err := asn1.Unmarshal(der, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvidenceRecord, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidEvidenceRecord)
	}

	er := &EvidenceRecord{
		Version:          raw.Version,
		DigestAlgorithms: raw.DigestAlgorithms,
	}
	for ci, chainRaw := range raw.Sequence {
		var stamps []asn1.RawValue
		if _, err := asn1.Unmarshal(chainRaw.FullBytes, &stamps); err != nil {
			return nil, fmt.Errorf("%w: chain %d: %v", ErrInvalidEvidenceRecord, ci, err)
		}
		var chain []*Token
		for si, stampRaw := range stamps {
			var ats archiveTimeStampASN1
			if _, err := asn1.Unmarshal(stampRaw.FullBytes, &ats); err != nil {
				return nil, fmt.Errorf("%w: chain %d timestamp %d: %v", ErrInvalidEvidenceRecord, ci, si, err)
			}
			tok, err := ParseToken(ats.TimeStamp.FullBytes)
			if err != nil {
				return nil, fmt.Errorf("%w: chain %d timestamp %d: %v", ErrInvalidEvidenceRecord, ci, si, err)
			}
			chain = append(chain, tok)
		}
		er.Chains = append(er.Chains, chain)
	}
	return er, nil
}

// GenerationTime is the generation time of the first archive timestamp of
// the first chain.
func (er *EvidenceRecord) GenerationTime() (time.Time, bool) {
	if len(er.Chains) == 0 || len(er.Chains[0]) == 0 {
		return time.Time{}, false
	}
	return er.Chains[0][0].GenTime(), true
}

// EvidenceRecordGenerationTime parses der and returns its generation time.
func EvidenceRecordGenerationTime(der []byte) (time.Time, bool, error) {
	er, err := ParseEvidenceRecord(der)
	if err != nil {
		return time.Time{}, false, err
	}
	t, ok := er.GenerationTime()
	return t, ok, nil
}

// MarshalEvidenceRecord encodes an evidence record whose chains hold the
// given DER timestamp tokens. Reduced hash trees are not written.
func MarshalEvidenceRecord(alg asn1.ObjectIdentifier, chains [][][]byte) ([]byte, error) {
	raw := evidenceRecordASN1{
		Version:          1,
		DigestAlgorithms: []cms.AlgorithmIdentifier{{Algorithm: alg}},
	}
	for _, chain := range chains {
		var stamps []asn1.RawValue
		for _, tok := range chain {
			der, err := asn1.Marshal(archiveTimeStampASN1{TimeStamp: asn1.RawValue{FullBytes: tok}})
			if err != nil {
				return nil, err
			}
			stamps = append(stamps, asn1.RawValue{FullBytes: der})
		}
		der, err := asn1.Marshal(stamps)
		if err != nil {
			return nil, err
		}
		raw.Sequence = append(raw.Sequence, asn1.RawValue{FullBytes: der})
	}
	return asn1.Marshal(raw)
}
