package cli

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/georgepadayatti/pdfltv/pdf/byterange"
	"github.com/georgepadayatti/pdfltv/sign/digest"
	"github.com/georgepadayatti/pdfltv/sign/extension"
	"github.com/georgepadayatti/pdfltv/sign/hashindex"
	"github.com/georgepadayatti/pdfltv/sign/layers"
	"github.com/georgepadayatti/pdfltv/sign/timestamps"
)

// Manifest describes a document's layers without the document itself.
type Manifest struct {
	ID     string          `yaml:"id"`
	Format string          `yaml:"format"`
	Length int64           `yaml:"length"`
	Layers []ManifestLayer `yaml:"layers"`
}

// ManifestLayer describes one protective layer. Token, when set, names a
// DER timestamp token or evidence record relative to the manifest; its
// generation time and hash index are then read from the file.
type ManifestLayer struct {
	ID         int                `yaml:"id"`
	Kind       string             `yaml:"kind"`
	Time       *time.Time         `yaml:"time"`
	ByteRange  []int64            `yaml:"byte-range"`
	EmbeddedIn *int               `yaml:"embedded-in"`
	Token      string             `yaml:"token"`
	HashIndex  *ManifestHashIndex `yaml:"hash-index"`
}

// ManifestHashIndex lists hex encoded hashes.
type ManifestHashIndex struct {
	Version      string   `yaml:"version"`
	Algorithm    string   `yaml:"algorithm"`
	Certificates []string `yaml:"certificates"`
	Revocations  []string `yaml:"revocations"`
	Attributes   []string `yaml:"attributes"`
}

// LoadManifest reads a manifest file and builds its document.
func LoadManifest(path string) (*extension.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return m.Document(filepath.Dir(path))
}

// Document builds the document. Token paths are resolved against dir.
func (m *Manifest) Document(dir string) (*extension.Document, error) {
	format, err := extension.ParseFormat(m.Format)
	if err != nil {
		return nil, err
	}

	opts := []extension.DocumentOption{extension.WithLength(m.Length)}
	if m.ID != "" {
		id, err := uuid.Parse(m.ID)
		if err != nil {
			return nil, fmt.Errorf("manifest id: %w", err)
		}
		opts = append(opts, extension.WithDocumentID(id))
	}

	ls := make([]*layers.Layer, 0, len(m.Layers))
	for i := range m.Layers {
		l, err := m.Layers[i].layer(dir)
		if err != nil {
			return nil, fmt.Errorf("manifest layer %d: %w", m.Layers[i].ID, err)
		}
		ls = append(ls, l)
	}
	return extension.NewDocument(format, ls, opts...)
}

func (ml *ManifestLayer) layer(dir string) (*layers.Layer, error) {
	kind, err := layers.ParseKind(ml.Kind)
	if err != nil {
		return nil, err
	}
	id := layers.ID(ml.ID)

	var opts []layers.Option
	if ml.Time != nil {
		opts = append(opts, layers.WithGenerationTime(*ml.Time))
	}
	if len(ml.ByteRange) > 0 {
		r, err := byterange.ValidateInts(ml.ByteRange)
		if err != nil {
			return nil, err
		}
		opts = append(opts, layers.WithByteRange(r))
	}
	if ml.EmbeddedIn != nil {
		opts = append(opts, layers.WithEmbeddedIn(layers.ID(*ml.EmbeddedIn)))
	}
	if ml.HashIndex != nil {
		table, err := ml.HashIndex.table()
		if err != nil {
			return nil, err
		}
		opts = append(opts, layers.WithHashIndex(table))
	}

	if ml.Token == "" {
		return layers.New(id, kind, opts...), nil
	}

	path := ml.Token
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	der, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}
	if kind == layers.KindEvidenceRecord {
		return layers.FromEvidenceRecord(id, der, opts...)
	}
	tok, err := timestamps.ParseToken(der)
	if err != nil {
		return nil, err
	}
	return layers.FromToken(id, kind, tok, opts...)
}

func (h *ManifestHashIndex) table() (*hashindex.Table, error) {
	v := hashindex.V3
	if h.Version != "" {
		var err error
		if v, err = hashindex.ParseVersion(h.Version); err != nil {
			return nil, err
		}
	}
	alg := hashindex.DefaultAlgorithm
	if h.Algorithm != "" {
		var err error
		if alg, err = digest.ParseName(h.Algorithm); err != nil {
			return nil, err
		}
	}

	certs, err := decodeHexList(h.Certificates)
	if err != nil {
		return nil, err
	}
	revs, err := decodeHexList(h.Revocations)
	if err != nil {
		return nil, err
	}
	attrs, err := decodeHexList(h.Attributes)
	if err != nil {
		return nil, err
	}
	return hashindex.NewTable(v, alg, certs, revs, attrs), nil
}

func decodeHexList(in []string) ([][]byte, error) {
	out := make([][]byte, 0, len(in))
	for _, s := range in {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid hash %q: %w", s, err)
		}
		out = append(out, b)
	}
	return out, nil
}
