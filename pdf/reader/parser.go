package reader

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// Common errors
var (
	ErrUnexpectedEOF     = errors.New("unexpected end of data")
	ErrInvalidObject     = errors.New("invalid PDF object")
	ErrInvalidString     = errors.New("invalid PDF string")
	ErrInvalidName       = errors.New("invalid PDF name")
	ErrInvalidNumber     = errors.New("invalid PDF number")
	ErrInvalidDictionary = errors.New("invalid PDF dictionary")
	ErrInvalidArray      = errors.New("invalid PDF array")
	ErrTooDeep           = errors.New("PDF object nesting too deep")
)

// maxDepth bounds the nesting of arrays and dictionaries.
const maxDepth = 100

// Parser parses PDF objects from an in-memory buffer.
type Parser struct {
	data  []byte
	pos   int
	depth int
}

// newParser creates a parser positioned at the start of data.
func newParser(data []byte) *Parser {
	return &Parser{data: data}
}

func (p *Parser) eof() bool { return p.pos >= len(p.data) }

func (p *Parser) peek() (byte, bool) {
	if p.eof() {
		return 0, false
	}
	return p.data[p.pos], true
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\x00' || b == '\x0c'
}

func isDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' ||
		b == '[' || b == ']' || b == '{' || b == '}' ||
		b == '/' || b == '%'
}

// skipWhitespace skips whitespace and comments.
func (p *Parser) skipWhitespace() {
	for !p.eof() {
		b := p.data[p.pos]
		switch {
		case isWhitespace(b):
			p.pos++
		case b == '%':
			for !p.eof() && p.data[p.pos] != '\n' && p.data[p.pos] != '\r' {
				p.pos++
			}
		default:
			return
		}
	}
}

// readToken reads a run of regular characters.
func (p *Parser) readToken() string {
	p.skipWhitespace()
	start := p.pos
	for !p.eof() && !isWhitespace(p.data[p.pos]) && !isDelimiter(p.data[p.pos]) {
		p.pos++
	}
	return string(p.data[start:p.pos])
}

// parseObject parses a direct object. Indirect references are recognised
// wherever a number may start one.
func (p *Parser) parseObject() (PdfObject, error) {
	p.skipWhitespace()
	b, ok := p.peek()
	if !ok {
		return nil, ErrUnexpectedEOF
	}

	switch {
	case b == '(':
		return p.parseString()
	case b == '<':
		return p.parseHexOrDict()
	case b == '[':
		return p.parseArray()
	case b == '/':
		return p.parseName()
	case b == 't' || b == 'f':
		return p.parseBoolean()
	case b == 'n':
		if p.readToken() != "null" {
			return nil, fmt.Errorf("%w: expected null", ErrInvalidObject)
		}
		return NullObject{}, nil
	case b >= '0' && b <= '9':
		return p.parseNumberOrReference()
	case b == '-' || b == '+' || b == '.':
		return p.parseNumber()
	}
	return nil, fmt.Errorf("%w: unexpected character %q at %d", ErrInvalidObject, b, p.pos)
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return ErrTooDeep
	}
	return nil
}

func (p *Parser) leave() { p.depth-- }

// parseString parses a literal string.
func (p *Parser) parseString() (*StringObject, error) {
	p.pos++ // (
	var buf bytes.Buffer
	depth := 1

	for {
		if p.eof() {
			return nil, fmt.Errorf("%w: unterminated string", ErrInvalidString)
		}
		b := p.data[p.pos]
		p.pos++

		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth == 0 {
				return &StringObject{Value: buf.Bytes()}, nil
			}
			buf.WriteByte(b)
		case '\\':
			if p.eof() {
				return nil, fmt.Errorf("%w: unterminated escape", ErrInvalidString)
			}
			p.unescape(&buf)
		default:
			buf.WriteByte(b)
		}
	}
}

func (p *Parser) unescape(buf *bytes.Buffer) {
	escaped := p.data[p.pos]
	p.pos++

	switch escaped {
	case 'n':
		buf.WriteByte('\n')
	case 'r':
		buf.WriteByte('\r')
	case 't':
		buf.WriteByte('\t')
	case 'b':
		buf.WriteByte('\b')
	case 'f':
		buf.WriteByte('\f')
	case '\r':
		// Line continuation
		if next, ok := p.peek(); ok && next == '\n' {
			p.pos++
		}
	case '\n':
		// Line continuation
	default:
		if escaped < '0' || escaped > '7' {
			buf.WriteByte(escaped)
			return
		}
		val := int(escaped - '0')
		for i := 0; i < 2; i++ {
			next, ok := p.peek()
			if !ok || next < '0' || next > '7' {
				break
			}
			val = val*8 + int(next-'0')
			p.pos++
		}
		buf.WriteByte(byte(val))
	}
}

// parseHexOrDict parses a hex string or a dictionary.
func (p *Parser) parseHexOrDict() (PdfObject, error) {
	p.pos++ // <
	if next, ok := p.peek(); ok && next == '<' {
		p.pos++
		return p.parseDictionary()
	}
	return p.parseHexString()
}

// parseHexString parses a hexadecimal string after the opening '<'.
func (p *Parser) parseHexString() (*StringObject, error) {
	end := bytes.IndexByte(p.data[p.pos:], '>')
	if end < 0 {
		return nil, fmt.Errorf("%w: unterminated hex string", ErrInvalidString)
	}
	raw := p.data[p.pos : p.pos+end]
	p.pos += end + 1

	digits := make([]byte, 0, len(raw)+1)
	for _, b := range raw {
		if !isWhitespace(b) {
			digits = append(digits, b)
		}
	}
	if len(digits)%2 != 0 {
		digits = append(digits, '0')
	}

	value := make([]byte, len(digits)/2)
	if _, err := hex.Decode(value, digits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidString, err)
	}
	return &StringObject{Value: value, IsHex: true}, nil
}

// parseDictionary parses a dictionary after the opening '<<'.
func (p *Parser) parseDictionary() (*DictionaryObject, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	dict := NewDictionary()
	for {
		p.skipWhitespace()
		b, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated dictionary", ErrInvalidDictionary)
		}
		if b == '>' {
			if p.pos+1 >= len(p.data) || p.data[p.pos+1] != '>' {
				return nil, fmt.Errorf("%w: expected '>>'", ErrInvalidDictionary)
			}
			p.pos += 2
			return dict, nil
		}

		key, err := p.parseName()
		if err != nil {
			return nil, fmt.Errorf("%w: invalid key: %v", ErrInvalidDictionary, err)
		}
		value, err := p.parseObject()
		if err != nil {
			return nil, fmt.Errorf("%w: value of /%s: %w", ErrInvalidDictionary, key, err)
		}
		dict.Set(string(key), value)
	}
}

// parseArray parses an array.
func (p *Parser) parseArray() (ArrayObject, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	p.pos++ // [
	arr := ArrayObject{}
	for {
		p.skipWhitespace()
		b, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("%w: unterminated array", ErrInvalidArray)
		}
		if b == ']' {
			p.pos++
			return arr, nil
		}
		obj, err := p.parseObject()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArray, err)
		}
		arr = append(arr, obj)
	}
}

// parseName parses a name object, resolving #xx escapes.
func (p *Parser) parseName() (NameObject, error) {
	p.skipWhitespace()
	if b, ok := p.peek(); !ok || b != '/' {
		return "", ErrInvalidName
	}
	p.pos++

	var buf bytes.Buffer
	for !p.eof() {
		b := p.data[p.pos]
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		p.pos++
		if b != '#' {
			buf.WriteByte(b)
			continue
		}
		if p.pos+2 > len(p.data) {
			return "", fmt.Errorf("%w: truncated escape", ErrInvalidName)
		}
		val, err := strconv.ParseUint(string(p.data[p.pos:p.pos+2]), 16, 8)
		if err != nil {
			return "", fmt.Errorf("%w: invalid escape", ErrInvalidName)
		}
		buf.WriteByte(byte(val))
		p.pos += 2
	}
	return NameObject(buf.String()), nil
}

func (p *Parser) parseBoolean() (BooleanObject, error) {
	switch token := p.readToken(); token {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: expected boolean, got %q", ErrInvalidObject, token)
	}
}

// parseNumber parses an integer or a real.
func (p *Parser) parseNumber() (PdfObject, error) {
	start := p.pos
	if b, _ := p.peek(); b == '+' || b == '-' {
		p.pos++
	}
	hasDecimal := false
	for !p.eof() {
		b := p.data[p.pos]
		if b == '.' && !hasDecimal {
			hasDecimal = true
		} else if b < '0' || b > '9' {
			break
		}
		p.pos++
	}

	str := string(p.data[start:p.pos])
	if hasDecimal {
		val, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, str)
		}
		return RealObject(val), nil
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, str)
	}
	return IntegerObject(val), nil
}

// parseNumberOrReference parses a number, or "n g R" when the number is
// followed by a generation and the R keyword.
func (p *Parser) parseNumberOrReference() (PdfObject, error) {
	obj, err := p.parseNumber()
	if err != nil {
		return nil, err
	}
	objNum, ok := obj.(IntegerObject)
	if !ok {
		return obj, nil
	}

	save := p.pos
	p.skipWhitespace()
	if b, ok := p.peek(); !ok || b < '0' || b > '9' {
		p.pos = save
		return obj, nil
	}
	gen, err := p.parseNumber()
	if genNum, isInt := gen.(IntegerObject); err == nil && isInt {
		p.skipWhitespace()
		if b, ok := p.peek(); ok && b == 'R' {
			p.pos++
			return Reference{ObjectNumber: int(objNum), GenerationNumber: int(genNum)}, nil
		}
	}
	p.pos = save
	return obj, nil
}

// parseIndirectObject parses "n g obj <object> [stream ... endstream] endobj".
// A stream's /Length is used when it is a direct integer that lands on
// the endstream keyword; otherwise the data runs up to endstream.
func (p *Parser) parseIndirectObject() (*IndirectObject, error) {
	p.skipWhitespace()
	num, err := p.parseNumber()
	if err != nil {
		return nil, fmt.Errorf("%w: object number: %v", ErrInvalidObject, err)
	}
	p.skipWhitespace()
	gen, err := p.parseNumber()
	if err != nil {
		return nil, fmt.Errorf("%w: generation number: %v", ErrInvalidObject, err)
	}
	objNum, ok1 := num.(IntegerObject)
	genNum, ok2 := gen.(IntegerObject)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: object header is not integral", ErrInvalidObject)
	}
	if token := p.readToken(); token != "obj" {
		return nil, fmt.Errorf("%w: expected 'obj', got %q", ErrInvalidObject, token)
	}

	obj, err := p.parseObject()
	if err != nil {
		return nil, err
	}

	if dict, ok := obj.(*DictionaryObject); ok {
		save := p.pos
		if p.readToken() == "stream" {
			data, err := p.streamData(dict)
			if err != nil {
				return nil, err
			}
			obj = &StreamObject{Dictionary: dict, Data: data}
		} else {
			p.pos = save
		}
	}

	// Some writers omit endobj.
	save := p.pos
	if p.readToken() != "endobj" {
		p.pos = save
	}

	return &IndirectObject{
		ObjectNumber:     int(objNum),
		GenerationNumber: int(genNum),
		Object:           obj,
	}, nil
}

var endstream = []byte("endstream")

func (p *Parser) streamData(dict *DictionaryObject) ([]byte, error) {
	// The keyword is followed by CRLF or LF.
	if b, ok := p.peek(); ok && b == '\r' {
		p.pos++
	}
	if b, ok := p.peek(); ok && b == '\n' {
		p.pos++
	}
	start := p.pos

	if length, ok := dict.GetInt("Length"); ok && length >= 0 && length <= int64(len(p.data)-start) {
		end := start + int(length)
		after := newParser(p.data[end:])
		after.skipWhitespace()
		if bytes.HasPrefix(p.data[end+after.pos:], endstream) {
			p.pos = end + after.pos + len(endstream)
			return p.data[start:end], nil
		}
	}

	idx := bytes.Index(p.data[start:], endstream)
	if idx < 0 {
		return nil, fmt.Errorf("%w: missing endstream", ErrInvalidObject)
	}
	end := start + idx
	p.pos = end + len(endstream)
	// Drop the end-of-line marker that precedes endstream.
	if end > start && p.data[end-1] == '\n' {
		end--
	}
	if end > start && p.data[end-1] == '\r' {
		end--
	}
	return p.data[start:end], nil
}
