package reader

import (
	"fmt"
)

// PdfObject is any value that can appear in a PDF file.
type PdfObject interface{}

// Reference is an indirect reference "n g R".
type Reference struct {
	ObjectNumber     int
	GenerationNumber int
}

func (r Reference) String() string {
	return fmt.Sprintf("%d %d R", r.ObjectNumber, r.GenerationNumber)
}

// NullObject is the PDF null.
type NullObject struct{}

// BooleanObject is a PDF boolean.
type BooleanObject bool

// IntegerObject is a PDF integer.
type IntegerObject int64

// RealObject is a PDF real number.
type RealObject float64

// NameObject is a PDF name without the leading slash.
type NameObject string

// StringObject is a literal or hexadecimal string.
type StringObject struct {
	Value []byte
	IsHex bool
}

// ArrayObject is a PDF array.
type ArrayObject []PdfObject

// DictionaryObject is a PDF dictionary. Keys are names without the
// leading slash.
type DictionaryObject struct {
	entries map[string]PdfObject
}

// NewDictionary creates an empty dictionary.
func NewDictionary() *DictionaryObject {
	return &DictionaryObject{entries: make(map[string]PdfObject)}
}

// Set stores a value. Later values for the same key replace earlier ones.
func (d *DictionaryObject) Set(key string, value PdfObject) {
	d.entries[key] = value
}

// Get returns the value stored under key, or nil.
func (d *DictionaryObject) Get(key string) PdfObject {
	return d.entries[key]
}

// Has reports whether key is present.
func (d *DictionaryObject) Has(key string) bool {
	_, ok := d.entries[key]
	return ok
}

// GetName returns the name stored under key, or "".
func (d *DictionaryObject) GetName(key string) string {
	if n, ok := d.entries[key].(NameObject); ok {
		return string(n)
	}
	return ""
}

// GetInt returns the integer stored under key.
func (d *DictionaryObject) GetInt(key string) (int64, bool) {
	i, ok := d.entries[key].(IntegerObject)
	return int64(i), ok
}

// GetArray returns the array stored under key, or nil.
func (d *DictionaryObject) GetArray(key string) ArrayObject {
	a, _ := d.entries[key].(ArrayObject)
	return a
}

// GetString returns the string stored under key, or nil.
func (d *DictionaryObject) GetString(key string) *StringObject {
	s, _ := d.entries[key].(*StringObject)
	return s
}

// StreamObject is a dictionary followed by raw stream bytes.
type StreamObject struct {
	Dictionary *DictionaryObject
	// Data holds the stream bytes as stored, before any filter is
	// applied.
	Data []byte
}

// IndirectObject is a numbered object definition "n g obj ... endobj".
type IndirectObject struct {
	ObjectNumber     int
	GenerationNumber int
	Object           PdfObject
}
