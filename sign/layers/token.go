package layers

import (
	"fmt"

	"github.com/georgepadayatti/pdfltv/sign/hashindex"
	"github.com/georgepadayatti/pdfltv/sign/timestamps"
)

// FromToken builds a timestamp layer from a parsed token. The generation
// time is taken from the token and its hash index, if any, is decoded. A
// present but malformed hash index fails the layer.
func FromToken(id ID, kind Kind, tok *timestamps.Token, opts ...Option) (*Layer, error) {
	all := []Option{WithGenerationTime(tok.GenTime())}

	if v, ok := hashindex.ExtractVersion(tok.UnsignedAttributes()); ok {
		table, found, err := hashindex.Decode(tok.UnsignedAttributes(), v)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", id, err)
		}
		if found {
			all = append(all, WithHashIndex(table))
		}
	}

	return New(id, kind, append(all, opts...)...), nil
}

// FromEvidenceRecord builds an evidence record layer. A record without
// timestamps yields a layer with no generation time.
func FromEvidenceRecord(id ID, der []byte, opts ...Option) (*Layer, error) {
	er, err := timestamps.ParseEvidenceRecord(der)
	if err != nil {
		return nil, fmt.Errorf("layer %d: %w", id, err)
	}
	var all []Option
	if t, ok := er.GenerationTime(); ok {
		all = append(all, WithGenerationTime(t))
	}
	return New(id, KindEvidenceRecord, append(all, opts...)...), nil
}
