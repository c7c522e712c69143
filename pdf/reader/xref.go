package reader

import (
	"fmt"
	"strconv"
)

// XRefType represents different types of cross-reference entries.
type XRefType int

const (
	// XRefTypeFree represents a freeing instruction.
	XRefTypeFree XRefType = iota
	// XRefTypeStandard represents a regular top-level object.
	XRefTypeStandard
	// XRefTypeInObjStream represents an object that's part of an object stream.
	XRefTypeInObjStream
)

// XRefEntry locates one object definition.
type XRefEntry struct {
	Type         XRefType
	ObjectNumber int
	Generation   int

	// Offset is the file offset of a standard entry.
	Offset int64

	// StreamNumber and Index locate an entry inside an object stream.
	StreamNumber int
	Index        int
}

// XRefSection is one cross-reference table or stream, that is one
// revision of the file.
type XRefSection struct {
	// Offset is where the xref keyword or the stream object starts.
	Offset  int64
	Stream  bool
	Entries map[int]XRefEntry
	Trailer *DictionaryObject
}

func newSection(offset int64, stream bool) *XRefSection {
	return &XRefSection{Offset: offset, Stream: stream, Entries: make(map[int]XRefEntry)}
}

// add keeps the first entry seen for an object number.
func (s *XRefSection) add(e XRefEntry) {
	if _, ok := s.Entries[e.ObjectNumber]; !ok {
		s.Entries[e.ObjectNumber] = e
	}
}

// maxXRefEntries bounds the entry count of one subsection.
const maxXRefEntries = 8 << 20

// parseXRefTable parses a classic table starting with the xref keyword.
func parseXRefTable(data []byte, offset int64) (*XRefSection, error) {
	p := newParser(data)
	p.pos = int(offset)
	if token := p.readToken(); token != "xref" {
		return nil, fmt.Errorf("%w: expected 'xref' at %d", ErrInvalidXRef, offset)
	}

	section := newSection(offset, false)
	for {
		token := p.readToken()
		if token == "trailer" {
			break
		}
		start, err1 := strconv.Atoi(token)
		count, err2 := strconv.Atoi(p.readToken())
		if err1 != nil || err2 != nil || start < 0 || count < 0 || count > maxXRefEntries {
			return nil, fmt.Errorf("%w: bad subsection header at %d", ErrInvalidXRef, p.pos)
		}

		for i := 0; i < count; i++ {
			off, err1 := strconv.ParseInt(p.readToken(), 10, 64)
			gen, err2 := strconv.Atoi(p.readToken())
			kind := p.readToken()
			if err1 != nil || err2 != nil || (kind != "n" && kind != "f") {
				return nil, fmt.Errorf("%w: bad entry for object %d", ErrInvalidXRef, start+i)
			}
			e := XRefEntry{Type: XRefTypeFree, ObjectNumber: start + i, Generation: gen, Offset: off}
			if kind == "n" {
				e.Type = XRefTypeStandard
			}
			section.add(e)
		}
	}

	p.skipWhitespace()
	if b, ok := p.peek(); !ok || b != '<' {
		return nil, fmt.Errorf("%w: missing trailer dictionary", ErrInvalidXRef)
	}
	obj, err := p.parseObject()
	if err != nil {
		return nil, fmt.Errorf("%w: trailer: %v", ErrInvalidXRef, err)
	}
	trailer, ok := obj.(*DictionaryObject)
	if !ok {
		return nil, fmt.Errorf("%w: trailer is not a dictionary", ErrInvalidXRef)
	}
	section.Trailer = trailer
	return section, nil
}

// parseXRefStream parses a cross-reference stream object.
func parseXRefStream(data []byte, offset int64) (*XRefSection, error) {
	p := newParser(data)
	p.pos = int(offset)
	ind, err := p.parseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidXRef, err)
	}
	stream, ok := ind.Object.(*StreamObject)
	if !ok || stream.Dictionary.GetName("Type") != "XRef" {
		return nil, fmt.Errorf("%w: object at %d is not a cross-reference stream", ErrInvalidXRef, offset)
	}
	dict := stream.Dictionary

	decoded, err := decodeStream(stream)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidXRef, err)
	}

	wArray := dict.GetArray("W")
	if len(wArray) != 3 {
		return nil, fmt.Errorf("%w: invalid /W array", ErrInvalidXRef)
	}
	var w [3]int
	for i, v := range wArray {
		n, ok := v.(IntegerObject)
		if !ok || n < 0 || n > 8 {
			return nil, fmt.Errorf("%w: invalid /W array", ErrInvalidXRef)
		}
		w[i] = int(n)
	}
	entrySize := w[0] + w[1] + w[2]
	if entrySize == 0 {
		return nil, fmt.Errorf("%w: zero entry size", ErrInvalidXRef)
	}

	var index []int
	if arr := dict.GetArray("Index"); arr != nil {
		for _, v := range arr {
			n, ok := v.(IntegerObject)
			if !ok || n < 0 {
				return nil, fmt.Errorf("%w: invalid /Index array", ErrInvalidXRef)
			}
			index = append(index, int(n))
		}
	} else if size, ok := dict.GetInt("Size"); ok {
		index = []int{0, int(size)}
	}
	if len(index)%2 != 0 {
		return nil, fmt.Errorf("%w: odd /Index array", ErrInvalidXRef)
	}

	section := newSection(offset, true)
	section.Trailer = dict
	pos := 0
	for i := 0; i < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := 0; j < count && pos+entrySize <= len(decoded); j++ {
			row := decoded[pos : pos+entrySize]
			pos += entrySize

			typ := int64(1)
			if w[0] > 0 {
				typ = readField(row[:w[0]])
			}
			f2 := readField(row[w[0] : w[0]+w[1]])
			f3 := readField(row[w[0]+w[1]:])

			e := XRefEntry{ObjectNumber: start + j}
			switch typ {
			case 0:
				e.Type, e.Offset, e.Generation = XRefTypeFree, f2, int(f3)
			case 1:
				e.Type, e.Offset, e.Generation = XRefTypeStandard, f2, int(f3)
			case 2:
				e.Type, e.StreamNumber, e.Index = XRefTypeInObjStream, int(f2), int(f3)
			default:
				// Unknown types are references to the null object.
				continue
			}
			section.add(e)
		}
	}
	return section, nil
}

// readField reads a big-endian field of an xref stream row.
func readField(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
