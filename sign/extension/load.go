package extension

import (
	"bytes"
	"encoding/asn1"
	"errors"
	"fmt"
	"slices"

	"github.com/georgepadayatti/pdfltv/pdf/byterange"
	"github.com/georgepadayatti/pdfltv/pdf/reader"
	"github.com/georgepadayatti/pdfltv/sign/cms"
	"github.com/georgepadayatti/pdfltv/sign/hashindex"
	"github.com/georgepadayatti/pdfltv/sign/layers"
	"github.com/georgepadayatti/pdfltv/sign/timestamps"
)

// loader assigns arena IDs in discovery order and collects the document
// options each layer needs at validation time.
type loader struct {
	next    layers.ID
	layers  []*layers.Layer
	options []DocumentOption
}

func (ld *loader) id() layers.ID {
	id := ld.next
	ld.next++
	return id
}

var errContentsMismatch = errors.New("/Contents does not fill the gap of its byte range")

// LoadPDF builds a PAdES document from a PDF file: one layer per
// signature dictionary plus the timestamps embedded in each signature's
// unsigned attributes. Every later revision that no byte range closes
// becomes a validation-data layer placed at its %%EOF. A malformed
// /ByteRange, or one that runs past the end of the file, is a structural
// error.
func LoadPDF(data []byte, opts ...DocumentOption) (*Document, error) {
	rd, err := reader.NewReader(data)
	if err != nil {
		return nil, err
	}
	fields, err := rd.SignatureFields()
	if err != nil {
		return nil, err
	}

	ld := &loader{}
	for _, f := range fields {
		if f.Err == nil {
			f.Err = byterange.CheckLength(f.ByteRange, int64(len(data)))
		}
		if f.Err != nil {
			return nil, fmt.Errorf("signature dictionary %d at offset %d: %w", f.ObjectNumber, f.Offset, f.Err)
		}
		if err := ld.addField(data, f); err != nil {
			return nil, err
		}
	}
	ld.addRevisions(rd.Revisions(), fields)

	all := append([]DocumentOption{WithLength(int64(len(data)))}, ld.options...)
	return NewDocument(FormatPAdES, ld.layers, append(all, opts...)...)
}

func (ld *loader) addField(data []byte, f *reader.SignatureField) error {
	id := ld.id()
	gap, err := byterange.SignatureContents(data, f.ByteRange)
	if err != nil {
		return fmt.Errorf("signature dictionary %d: %w", f.ObjectNumber, err)
	}
	if !bytes.Equal(gap, f.Contents) {
		return fmt.Errorf("signature dictionary %d: %w", f.ObjectNumber, errContentsMismatch)
	}

	base := []layers.Option{layers.WithByteRange(f.ByteRange)}
	contents, err := firstElement(f.Contents)

	if f.Type == reader.TypeDocumentTimestamp {
		if err != nil {
			return fmt.Errorf("document timestamp %d: %w", id, err)
		}
		tok, err := timestamps.ParseToken(contents)
		if err != nil {
			return fmt.Errorf("document timestamp %d: %w", id, err)
		}
		l, err := layers.FromToken(id, layers.KindDocumentTimestamp, tok, base...)
		if err != nil {
			return err
		}
		signed, err := byterange.SignedContent(data, f.ByteRange)
		if err != nil {
			return err
		}
		ld.layers = append(ld.layers, l)
		ld.options = append(ld.options, WithStampedContent(id, tok, signed))
		return nil
	}

	if f.SigningTime != nil {
		base = append(base, layers.WithGenerationTime(*f.SigningTime))
	}
	ld.layers = append(ld.layers, layers.New(id, layers.KindSignatureRevision, base...))
	if err != nil {
		// A signature without parsable CMS still binds its byte range.
		return nil
	}
	sd, err := cms.ParseContentInfo(contents)
	if err != nil {
		return nil
	}
	return ld.addSignerLayers(sd, &id)
}

// addRevisions adds a validation-data layer for every revision after the
// first signed one whose %%EOF no byte range ends at.
func (ld *loader) addRevisions(revs []reader.Revision, fields []*reader.SignatureField) {
	first := fields[0].ByteRange.End()
	for _, f := range fields[1:] {
		first = min(first, f.ByteRange.End())
	}

	for _, rev := range revs {
		if rev.End <= first {
			continue
		}
		closed := slices.ContainsFunc(fields, func(f *reader.SignatureField) bool {
			return rev.Contains(f.ByteRange.End())
		})
		if !closed {
			ld.layers = append(ld.layers, layers.New(ld.id(), layers.KindValidationDataRevision,
				layers.WithRevisionEnd(rev.End)))
		}
	}
}

// LoadCMS builds a CAdES document from a CMS signature: one layer per
// signature timestamp, archive timestamp and evidence record in the first
// signer's unsigned attributes.
func LoadCMS(der []byte, opts ...DocumentOption) (*Document, error) {
	sd, err := cms.ParseContentInfo(der)
	if err != nil {
		return nil, err
	}
	ld := &loader{}
	if err := ld.addSignerLayers(sd, nil); err != nil {
		return nil, err
	}
	all := append([]DocumentOption{WithLength(int64(len(der)))}, ld.options...)
	return NewDocument(FormatCAdES, ld.layers, append(all, opts...)...)
}

func (ld *loader) addSignerLayers(sd *cms.SignedData, parent *layers.ID) error {
	signer, err := sd.FirstSigner()
	if err != nil {
		return err
	}
	state := hashindex.StateFromSignedData(sd, signer)

	for i, attr := range signer.UnsignedAttrs {
		kind, ok := layerKind(attr.Type)
		if !ok {
			continue
		}
		binding, err := attr.Marshal()
		if err != nil {
			return err
		}
		for j := range attr.Values {
			value, err := attr.ValueDER(j)
			if err != nil {
				return err
			}

			id := ld.id()
			opts := []layers.Option{layers.WithRawBinding(binding)}
			if parent != nil {
				opts = append(opts, layers.WithEmbeddedIn(*parent))
			}

			var l *layers.Layer
			if kind == layers.KindEvidenceRecord {
				l, err = layers.FromEvidenceRecord(id, value, opts...)
			} else {
				var tok *timestamps.Token
				tok, err = timestamps.ParseToken(value)
				if err == nil {
					l, err = layers.FromToken(id, kind, tok, opts...)
				}
			}
			if err != nil {
				return fmt.Errorf("unsigned attribute %d (%v): %w", i, attr.Type, err)
			}

			if _, ok := l.HashIndex(); ok {
				ld.options = append(ld.options, WithMaterial(id, state.Before(i)))
			}
			ld.layers = append(ld.layers, l)
		}
	}
	return nil
}

func layerKind(oid asn1.ObjectIdentifier) (layers.Kind, bool) {
	switch {
	case oid.Equal(cms.OIDSignatureTimeStamp):
		return layers.KindSignatureTimestamp, true
	case cms.IsArchiveTimestamp(oid):
		return layers.KindArchiveTimestamp, true
	case cms.IsEvidenceRecord(oid):
		return layers.KindEvidenceRecord, true
	}
	return 0, false
}

var errNoContents = errors.New("empty /Contents")

// firstElement strips the zero padding that follows the DER value in a
// signature's /Contents.
func firstElement(b []byte) ([]byte, error) {
	if len(b) == 0 || b[0] == 0 {
		return nil, errNoContents
	}
	var v asn1.RawValue
	if _, err := asn1.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", cms.ErrMalformed, err)
	}
	return v.FullBytes, nil
}
