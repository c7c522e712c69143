// Package extension decides how a signed document is extended with a new
// protective layer, appends layers without mutating earlier document
// values and produces the validation report of a document.
package extension

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/georgepadayatti/pdfltv/sign/hashindex"
	"github.com/georgepadayatti/pdfltv/sign/layers"
	"github.com/georgepadayatti/pdfltv/sign/timestamps"
)

var (
	ErrEmptyDocument    = errors.New("document has no protective layers")
	ErrDuplicateLayer   = errors.New("duplicate layer id")
	ErrUnknownFormat    = errors.New("unknown signature format")
	ErrNotCoveringLayer = errors.New("new layer does not cover the latest layer")
)

// Format is the container format of a document.
type Format int

const (
	FormatCAdES Format = iota + 1
	FormatPAdES
)

func (f Format) String() string {
	switch f {
	case FormatCAdES:
		return "CAdES"
	case FormatPAdES:
		return "PAdES"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat parses "cades" or "pades", ignoring case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "cades":
		return FormatCAdES, nil
	case "pades":
		return FormatPAdES, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Document is an immutable view of a signed container and its layers.
// Layers are kept in arena order; their resolved order is computed on
// demand.
type Document struct {
	id       uuid.UUID
	format   Format
	length   int64
	layers   []*layers.Layer
	material map[layers.ID]hashindex.State
	stamped  map[layers.ID]stampedContent
}

// stampedContent is a document timestamp and the bytes its range covers.
type stampedContent struct {
	token   *timestamps.Token
	content []byte
}

// DocumentOption configures a Document.
type DocumentOption func(*Document)

// WithDocumentID sets the document identifier. A random one is used
// otherwise.
func WithDocumentID(id uuid.UUID) DocumentOption {
	return func(d *Document) { d.id = id }
}

// WithLength sets the byte length of the current container.
func WithLength(n int64) DocumentOption {
	return func(d *Document) { d.length = n }
}

// WithMaterial records the signature material a layer's hash index was
// computed over, so that the index can be recomputed during validation.
func WithMaterial(id layers.ID, s hashindex.State) DocumentOption {
	return func(d *Document) { d.material[id] = s }
}

// WithStampedContent records the bytes a document timestamp's byte range
// covers, so that its message imprint can be checked during validation.
func WithStampedContent(id layers.ID, tok *timestamps.Token, content []byte) DocumentOption {
	return func(d *Document) { d.stamped[id] = stampedContent{token: tok, content: content} }
}

// NewDocument creates a document. Layer IDs must be unique.
func NewDocument(format Format, ls []*layers.Layer, opts ...DocumentOption) (*Document, error) {
	if format != FormatCAdES && format != FormatPAdES {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	if err := checkUnique(ls); err != nil {
		return nil, err
	}

	d := &Document{
		id:       uuid.New(),
		format:   format,
		layers:   slices.Clone(ls),
		material: make(map[layers.ID]hashindex.State),
		stamped:  make(map[layers.ID]stampedContent),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func checkUnique(ls []*layers.Layer) error {
	seen := make(map[layers.ID]bool, len(ls))
	for _, l := range ls {
		if seen[l.ID()] {
			return fmt.Errorf("%w: %d", ErrDuplicateLayer, l.ID())
		}
		seen[l.ID()] = true
	}
	return nil
}

func (d *Document) ID() uuid.UUID  { return d.id }
func (d *Document) Format() Format { return d.format }
func (d *Document) Length() int64  { return d.length }

// Layers returns the layers in arena order.
func (d *Document) Layers() []*layers.Layer { return slices.Clone(d.layers) }

// Layer returns the layer with the given ID.
func (d *Document) Layer(id layers.ID) (*layers.Layer, bool) {
	for _, l := range d.layers {
		if l.ID() == id {
			return l, true
		}
	}
	return nil, false
}

// Material returns the recorded hash-index material of a layer.
func (d *Document) Material(id layers.ID) (hashindex.State, bool) {
	s, ok := d.material[id]
	return s, ok
}

// with returns a copy of d with l appended.
func (d *Document) with(l *layers.Layer, opts ...DocumentOption) *Document {
	next := &Document{
		id:       d.id,
		format:   d.format,
		length:   d.length,
		layers:   append(slices.Clone(d.layers), l),
		material: maps.Clone(d.material),
		stamped:  maps.Clone(d.stamped),
	}
	if next.material == nil {
		next.material = make(map[layers.ID]hashindex.State)
	}
	if next.stamped == nil {
		next.stamped = make(map[layers.ID]stampedContent)
	}
	for _, opt := range opts {
		opt(next)
	}
	return next
}
