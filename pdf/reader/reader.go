// Package reader reads the cross-reference structure of a PDF file and
// locates the signature and document timestamp dictionaries of every
// revision, together with the %%EOF boundaries of those revisions.
package reader

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/georgepadayatti/pdfltv/pdf/byterange"
)

// Common errors
var (
	ErrNotPDF         = errors.New("not a PDF file")
	ErrNoXRef         = errors.New("no xref found")
	ErrInvalidXRef    = errors.New("invalid xref")
	ErrObjectNotFound = errors.New("object not found")
	ErrNoSignatures   = errors.New("no signature dictionaries found")
)

var (
	headerRegex = regexp.MustCompile(`%PDF-\d+\.\d+`)
	startXRef   = []byte("startxref")
	eofMarker   = []byte("%%EOF")
)

// Reader gives access to the revisions of an in-memory PDF file.
type Reader struct {
	data []byte

	// sections holds one cross-reference section per revision, oldest
	// first.
	sections []*XRefSection
	streams  map[int64]*objectStream
}

// NewReader parses the header and the cross-reference chain of data.
// Objects are only read when a caller asks for them.
func NewReader(data []byte) (*Reader, error) {
	r := &Reader{data: data, streams: make(map[int64]*objectStream)}
	if err := r.parseHeader(); err != nil {
		return nil, err
	}
	if err := r.parseXRefChain(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) parseHeader() error {
	head := r.data[:min(1024, len(r.data))]
	if !headerRegex.Match(head) {
		return ErrNotPDF
	}
	return nil
}

func (r *Reader) parseXRefChain() error {
	at := bytes.LastIndex(r.data, startXRef)
	if at < 0 {
		return ErrNoXRef
	}
	p := newParser(r.data)
	p.pos = at + len(startXRef)
	offset, err := strconv.ParseInt(p.readToken(), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid startxref offset", ErrInvalidXRef)
	}

	visited := make(map[int64]bool)
	var newestFirst []*XRefSection
	for offset > 0 {
		if visited[offset] {
			break
		}
		visited[offset] = true

		section, err := r.parseSection(offset)
		if err != nil {
			return err
		}
		newestFirst = append(newestFirst, section)

		prev, ok := section.Trailer.GetInt("Prev")
		if !ok {
			break
		}
		offset = prev
	}
	if len(newestFirst) == 0 {
		return fmt.Errorf("%w: startxref points at offset %d", ErrInvalidXRef, offset)
	}

	slices.Reverse(newestFirst)
	r.sections = newestFirst
	return nil
}

// parseSection reads the table or stream at offset. A hybrid table's
// /XRefStm entries fill the object numbers the table leaves out.
func (r *Reader) parseSection(offset int64) (*XRefSection, error) {
	if offset >= int64(len(r.data)) {
		return nil, fmt.Errorf("%w: offset %d out of bounds", ErrInvalidXRef, offset)
	}
	p := newParser(r.data)
	p.pos = int(offset)
	p.skipWhitespace()

	if !bytes.HasPrefix(r.data[p.pos:], []byte("xref")) {
		return parseXRefStream(r.data, int64(p.pos))
	}
	section, err := parseXRefTable(r.data, int64(p.pos))
	if err != nil {
		return nil, err
	}
	if stm, ok := section.Trailer.GetInt("XRefStm"); ok && stm > 0 && stm < int64(len(r.data)) {
		hybrid, err := parseXRefStream(r.data, stm)
		if err != nil {
			return nil, err
		}
		for _, e := range hybrid.Entries {
			section.add(e)
		}
	}
	return section, nil
}

// Revision is one incremental update of the file.
type Revision struct {
	// XRefOffset is where the revision's cross-reference section starts.
	XRefOffset int64
	// EOF is the offset of the %%EOF marker that closes the revision.
	EOF int64
	// End is the offset just past the marker and its end-of-line.
	End int64
}

// Revisions returns the revisions in file order. A section with no
// %%EOF marker after it is closed by the end of the file.
func (r *Reader) Revisions() []Revision {
	var out []Revision
	for _, s := range r.sections {
		rev := Revision{XRefOffset: s.Offset, EOF: int64(len(r.data)), End: int64(len(r.data))}
		if idx := bytes.Index(r.data[s.Offset:], eofMarker); idx >= 0 {
			rev.EOF = s.Offset + int64(idx)
			rev.End = rev.EOF + int64(len(eofMarker))
			if rev.End < int64(len(r.data)) && r.data[rev.End] == '\r' {
				rev.End++
			}
			if rev.End < int64(len(r.data)) && r.data[rev.End] == '\n' {
				rev.End++
			}
		}
		out = append(out, rev)
	}
	slices.SortFunc(out, func(a, b Revision) int { return cmp.Compare(a.End, b.End) })
	return slices.CompactFunc(out, func(a, b Revision) bool { return a.End == b.End })
}

// Contains reports whether a byte range ending at end closes this revision.
func (rev Revision) Contains(end int64) bool {
	return end >= rev.EOF && end <= rev.End
}

// FieldType distinguishes signature dictionaries from document timestamps.
type FieldType string

const (
	TypeSignature         FieldType = "Sig"
	TypeDocumentTimestamp FieldType = "DocTimeStamp"
)

// subFilterRFC3161 marks a document timestamp dictionary.
const subFilterRFC3161 = "ETSI.RFC3161"

// SignatureField is one /ByteRange-bearing signature value dictionary.
type SignatureField struct {
	ObjectNumber int
	// Offset is where the object, or the object stream holding it, is
	// defined in the file.
	Offset int64

	Type      FieldType
	SubFilter string
	ByteRange byterange.ByteRange

	// SigningTime is the /M entry, when present and well formed.
	SigningTime *time.Time

	// Contents is the decoded /Contents value, zero padding included.
	Contents []byte

	// Err is set when the dictionary was found but its /ByteRange or
	// /Contents is malformed; the remaining fields are then best effort.
	Err error
}

// SignatureFields returns every signature and document timestamp
// dictionary defined by any revision, ordered by file offset. A
// dictionary repeated unchanged by a later revision is reported once.
func (r *Reader) SignatureFields() ([]*SignatureField, error) {
	type key struct {
		num int
		br  byterange.ByteRange
	}
	seen := make(map[key]bool)

	var fields []*SignatureField
	for idx, s := range r.sections {
		nums := make([]int, 0, len(s.Entries))
		for num := range s.Entries {
			nums = append(nums, num)
		}
		slices.Sort(nums)

		for _, num := range nums {
			obj, offset, err := r.resolve(s.Entries[num], idx)
			if err != nil {
				continue
			}
			dict, ok := obj.(*DictionaryObject)
			if !ok {
				continue
			}
			f := signatureField(dict)
			if f == nil {
				continue
			}
			f.ObjectNumber, f.Offset = num, offset

			k := key{num: num, br: f.ByteRange}
			if seen[k] {
				continue
			}
			seen[k] = true
			fields = append(fields, f)
		}
	}

	if len(fields) == 0 {
		return nil, ErrNoSignatures
	}
	slices.SortStableFunc(fields, func(a, b *SignatureField) int {
		if c := cmp.Compare(a.Offset, b.Offset); c != 0 {
			return c
		}
		return cmp.Compare(a.ObjectNumber, b.ObjectNumber)
	})
	return fields, nil
}

// signatureField returns nil when dict is not a signature value.
func signatureField(dict *DictionaryObject) *SignatureField {
	if !dict.Has("ByteRange") || !dict.Has("Contents") {
		return nil
	}
	f := &SignatureField{SubFilter: dict.GetName("SubFilter")}
	switch t := dict.GetName("Type"); t {
	case string(TypeSignature), string(TypeDocumentTimestamp):
		f.Type = FieldType(t)
	case "":
		f.Type = TypeSignature
		if f.SubFilter == subFilterRFC3161 {
			f.Type = TypeDocumentTimestamp
		}
	default:
		return nil
	}

	if m := dict.GetString("M"); m != nil {
		if t, ok := parseDate(string(m.Value)); ok {
			f.SigningTime = &t
		}
	}

	f.ByteRange, f.Err = byteRange(dict.Get("ByteRange"))
	if contents := dict.GetString("Contents"); contents != nil {
		f.Contents = contents.Value
	} else if f.Err == nil {
		f.Err = fmt.Errorf("%w: /Contents is not a string", ErrInvalidObject)
	}
	return f
}

func byteRange(obj PdfObject) (byterange.ByteRange, error) {
	arr, ok := obj.(ArrayObject)
	if !ok {
		return byterange.ByteRange{}, fmt.Errorf("%w: /ByteRange is not an array", byterange.ErrInvalidByteRange)
	}
	values := make([]int64, len(arr))
	for i, v := range arr {
		n, ok := v.(IntegerObject)
		if !ok {
			return byterange.ByteRange{}, fmt.Errorf("%w: component %d is not an integer", byterange.ErrInvalidByteRange, i)
		}
		values[i] = int64(n)
	}
	return byterange.ValidateInts(values)
}

// resolve reads the object an entry of section idx points at, and returns
// it with the file offset of its definition.
func (r *Reader) resolve(e XRefEntry, idx int) (PdfObject, int64, error) {
	switch e.Type {
	case XRefTypeStandard:
		ind, err := r.objectAt(e.Offset)
		if err != nil {
			return nil, 0, err
		}
		if ind.ObjectNumber != e.ObjectNumber {
			return nil, 0, fmt.Errorf("%w: object %d is not at offset %d", ErrObjectNotFound, e.ObjectNumber, e.Offset)
		}
		return ind.Object, e.Offset, nil
	case XRefTypeInObjStream:
		holder, ok := r.lookup(e.StreamNumber, idx)
		if !ok || holder.Type != XRefTypeStandard {
			return nil, 0, fmt.Errorf("%w: object stream %d", ErrObjectNotFound, e.StreamNumber)
		}
		stm, err := r.objectStream(holder.Offset)
		if err != nil {
			return nil, 0, err
		}
		obj, err := stm.object(e.ObjectNumber, e.Index)
		return obj, holder.Offset, err
	}
	return nil, 0, fmt.Errorf("%w: object %d is free", ErrObjectNotFound, e.ObjectNumber)
}

// lookup finds the newest entry for num visible to section idx.
func (r *Reader) lookup(num, idx int) (XRefEntry, bool) {
	for i := idx; i >= 0; i-- {
		if e, ok := r.sections[i].Entries[num]; ok {
			return e, true
		}
	}
	return XRefEntry{}, false
}

func (r *Reader) objectAt(offset int64) (*IndirectObject, error) {
	if offset <= 0 || offset >= int64(len(r.data)) {
		return nil, fmt.Errorf("%w: offset %d out of bounds", ErrObjectNotFound, offset)
	}
	p := newParser(r.data)
	p.pos = int(offset)
	return p.parseIndirectObject()
}

// objectStream is a decoded /Type /ObjStm stream.
type objectStream struct {
	data    []byte
	first   int
	numbers []int
	offsets []int
}

func (r *Reader) objectStream(offset int64) (*objectStream, error) {
	if stm, ok := r.streams[offset]; ok {
		return stm, nil
	}
	ind, err := r.objectAt(offset)
	if err != nil {
		return nil, err
	}
	stream, ok := ind.Object.(*StreamObject)
	if !ok || stream.Dictionary.GetName("Type") != "ObjStm" {
		return nil, fmt.Errorf("%w: object %d is not an object stream", ErrObjectNotFound, ind.ObjectNumber)
	}
	data, err := decodeStream(stream)
	if err != nil {
		return nil, err
	}

	n, _ := stream.Dictionary.GetInt("N")
	first, _ := stream.Dictionary.GetInt("First")
	if n < 0 || first < 0 || first > int64(len(data)) {
		return nil, fmt.Errorf("%w: object stream %d has a bad header", ErrInvalidObject, ind.ObjectNumber)
	}

	stm := &objectStream{data: data, first: int(first)}
	p := newParser(data[:first])
	for i := int64(0); i < n; i++ {
		p.skipWhitespace()
		num, err1 := p.parseNumber()
		p.skipWhitespace()
		off, err2 := p.parseNumber()
		numInt, ok1 := num.(IntegerObject)
		offInt, ok2 := off.(IntegerObject)
		if err1 != nil || err2 != nil || !ok1 || !ok2 {
			break
		}
		stm.numbers = append(stm.numbers, int(numInt))
		stm.offsets = append(stm.offsets, int(offInt))
	}
	r.streams[offset] = stm
	return stm, nil
}

func (s *objectStream) object(num, index int) (PdfObject, error) {
	if index < 0 || index >= len(s.offsets) || s.numbers[index] != num {
		return nil, fmt.Errorf("%w: object %d is not at index %d", ErrObjectNotFound, num, index)
	}
	at := s.first + s.offsets[index]
	if at < s.first || at >= len(s.data) {
		return nil, fmt.Errorf("%w: object %d offset out of bounds", ErrObjectNotFound, num)
	}
	p := newParser(s.data)
	p.pos = at
	return p.parseObject()
}
