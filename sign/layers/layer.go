// Package layers models the protective layers of a long-term signed
// document (timestamps, evidence records and PDF revisions) and orders them.
package layers

import (
	"fmt"
	"slices"
	"time"

	"github.com/georgepadayatti/pdfltv/pdf/byterange"
	"github.com/georgepadayatti/pdfltv/sign/hashindex"
)

// ID identifies a layer within one document. Layers refer to each other
// by ID only.
type ID int

// Kind is the type of protective layer.
type Kind int

const (
	KindSignatureTimestamp Kind = iota + 1
	KindArchiveTimestamp
	KindDocumentTimestamp
	KindEvidenceRecord
	KindSignatureRevision
	KindValidationDataRevision
)

func (k Kind) String() string {
	switch k {
	case KindSignatureTimestamp:
		return "signature-timestamp"
	case KindArchiveTimestamp:
		return "archive-timestamp"
	case KindDocumentTimestamp:
		return "document-timestamp"
	case KindEvidenceRecord:
		return "evidence-record"
	case KindSignatureRevision:
		return "signature-revision"
	case KindValidationDataRevision:
		return "validation-data-revision"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := KindSignatureTimestamp; k <= KindValidationDataRevision; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown layer kind %q", s)
}

// IsRevision reports whether the layer is a PDF incremental revision.
func (k Kind) IsRevision() bool {
	return k == KindDocumentTimestamp || k == KindSignatureRevision || k == KindValidationDataRevision
}

// IsTimestamp reports whether the layer is a timestamp token.
func (k Kind) IsTimestamp() bool {
	return k == KindSignatureTimestamp || k == KindArchiveTimestamp || k == KindDocumentTimestamp
}

// Layer is an immutable protective layer. Optional properties are exposed
// through accessors returning an ok flag.
type Layer struct {
	id         ID
	kind       Kind
	genTime    time.Time
	hasGenTime bool
	byteRange  byterange.ByteRange
	hasRange   bool
	revEnd     int64
	hasRevEnd  bool
	hashIndex  *hashindex.Table
	embeddedIn ID
	isEmbedded bool
	covered    []ID
	rawBinding []byte
}

// Option sets an optional property at construction.
type Option func(*Layer)

func WithGenerationTime(t time.Time) Option {
	return func(l *Layer) {
		l.genTime = t
		l.hasGenTime = true
	}
}

func WithByteRange(r byterange.ByteRange) Option {
	return func(l *Layer) {
		l.byteRange = r
		l.hasRange = true
	}
}

// WithRevisionEnd places a layer that has no byte range of its own, such as
// an unsigned incremental update, at the offset where its revision ends.
func WithRevisionEnd(off int64) Option {
	return func(l *Layer) {
		l.revEnd = off
		l.hasRevEnd = true
	}
}

func WithHashIndex(t *hashindex.Table) Option {
	return func(l *Layer) {
		l.hashIndex = t
	}
}

// WithEmbeddedIn records that the layer lives inside the revision or
// signature identified by id.
func WithEmbeddedIn(id ID) Option {
	return func(l *Layer) {
		l.embeddedIn = id
		l.isEmbedded = true
	}
}

// WithRawBinding sets the opaque encoding the layer is bound by, typically
// the DER unsigned attribute that carries it.
func WithRawBinding(b []byte) Option {
	return func(l *Layer) {
		l.rawBinding = append([]byte(nil), b...)
	}
}

// New builds a layer.
func New(id ID, kind Kind, opts ...Option) *Layer {
	l := &Layer{id: id, kind: kind}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Layer) ID() ID     { return l.id }
func (l *Layer) Kind() Kind { return l.kind }

func (l *Layer) GenerationTime() (time.Time, bool) {
	return l.genTime, l.hasGenTime
}

func (l *Layer) ByteRange() (byterange.ByteRange, bool) {
	return l.byteRange, l.hasRange
}

// Position is the container offset the layer is bound to: the end of its
// byte range, or the end of its revision.
func (l *Layer) Position() (int64, bool) {
	switch {
	case l.hasRange:
		return l.byteRange.End(), true
	case l.hasRevEnd:
		return l.revEnd, true
	}
	return 0, false
}

func (l *Layer) HashIndex() (*hashindex.Table, bool) {
	return l.hashIndex, l.hashIndex != nil
}

func (l *Layer) EmbeddedIn() (ID, bool) {
	return l.embeddedIn, l.isEmbedded
}

// CoveredLayers returns the layers this one protects.
func (l *Layer) CoveredLayers() []ID {
	return slices.Clone(l.covered)
}

// RawBinding returns a copy of the layer's binding bytes.
func (l *Layer) RawBinding() []byte {
	return append([]byte(nil), l.rawBinding...)
}

// WithCoveredLayers returns a copy of the layer with the covered set
// replaced.
func (l *Layer) WithCoveredLayers(ids []ID) *Layer {
	c := *l
	c.covered = slices.Clone(ids)
	slices.Sort(c.covered)
	c.covered = slices.Compact(c.covered)
	return &c
}

// WithID returns a copy of the layer under another ID.
func (l *Layer) WithID(id ID) *Layer {
	c := *l
	c.id = id
	c.covered = slices.Clone(l.covered)
	return &c
}

// OrderingKey is the derived key used by Compare.
type OrderingKey struct {
	GenerationTime time.Time
	HasTime        bool
	RecordCount    int
	HasTable       bool
}

func (l *Layer) OrderingKey() OrderingKey {
	k := OrderingKey{GenerationTime: l.genTime, HasTime: l.hasGenTime}
	if l.hashIndex != nil {
		k.HasTable = true
		k.RecordCount = l.hashIndex.RecordCount()
	}
	return k
}

func (l *Layer) String() string {
	s := fmt.Sprintf("#%d %s", l.id, l.kind)
	if l.hasGenTime {
		s += " " + l.genTime.UTC().Format(time.RFC3339)
	}
	if l.hasRange {
		s += " " + l.byteRange.String()
	} else if l.hasRevEnd {
		s += fmt.Sprintf(" @%d", l.revEnd)
	}
	return s
}
