// Package byterange models the PDF /ByteRange construct: the two spans of a
// container that a signature or document timestamp digests, separated by the
// gap that holds the signature's own /Contents.
package byterange

import (
	"errors"
	"fmt"
	"math"
)

// Components is the number of integers in a well-formed /ByteRange array.
const Components = 4

// Common errors
var (
	ErrInvalidByteRange  = errors.New("invalid byte range")
	ErrStrangeByteRanges = errors.New("strange byte ranges")
)

// ErrorKind identifies which structural rule a byte range violates.
type ErrorKind int

const (
	KindWrongArity ErrorKind = iota + 1
	KindStartNotZero
	KindEmptyFirstPart
	KindOverlappingParts
	KindEmptySecondPart
	KindOverflow
	KindPastEnd
)

// String returns a human-readable representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindWrongArity:
		return "wrong number of components"
	case KindStartNotZero:
		return "first part does not start at offset 0"
	case KindEmptyFirstPart:
		return "first part is empty"
	case KindOverlappingParts:
		return "second part starts before the first part ends"
	case KindEmptySecondPart:
		return "second part is empty"
	case KindOverflow:
		return "offsets overflow"
	case KindPastEnd:
		return "range extends past the end of the container"
	default:
		return fmt.Sprintf("unknown byte range error (%d)", int(k))
	}
}

// RangeError reports a structurally invalid byte range.
type RangeError struct {
	Kind ErrorKind
	// Values holds the offending components as they were supplied.
	Values []int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("byte range %v: %s", e.Values, e.Kind)
}

func (e *RangeError) Unwrap() error {
	return ErrInvalidByteRange
}

// StrangeByteRangesError reports two byte ranges that are not strictly nested.
// A document carrying such a pair has a self-contradictory revision history.
type StrangeByteRangesError struct {
	A ByteRange
	B ByteRange
}

func (e *StrangeByteRangesError) Error() string {
	return fmt.Sprintf("byte ranges %s and %s are not strictly nested", e.A, e.B)
}

func (e *StrangeByteRangesError) Unwrap() error {
	return ErrStrangeByteRanges
}

// ByteRange is the four-integer span [Start Len1 Start2 Len2].
type ByteRange struct {
	Start  int64
	Len1   int64
	Start2 int64
	Len2   int64
}

// New creates a byte range from its four components.
func New(start, len1, start2, len2 int64) ByteRange {
	return ByteRange{Start: start, Len1: len1, Start2: start2, Len2: len2}
}

// FromInts converts a decoded /ByteRange array. Only the arity is checked here;
// call Validate for the remaining rules.
func FromInts(values []int64) (ByteRange, error) {
	if len(values) != Components {
		return ByteRange{}, &RangeError{Kind: KindWrongArity, Values: append([]int64(nil), values...)}
	}
	return New(values[0], values[1], values[2], values[3]), nil
}

// Ints returns the byte range as an array [start1, len1, start2, len2].
func (r ByteRange) Ints() []int64 {
	return []int64{r.Start, r.Len1, r.Start2, r.Len2}
}

// FirstPartEnd is the offset just past the first hashed span.
func (r ByteRange) FirstPartEnd() int64 {
	return r.Start + r.Len1
}

// End is the offset just past the second hashed span.
func (r ByteRange) End() int64 {
	return r.Start2 + r.Len2
}

// InnerLen is the length of the unhashed gap reserved for the signature contents.
func (r ByteRange) InnerLen() int64 {
	return r.Start2 - r.FirstPartEnd()
}

// String renders the range the way it appears in a signature dictionary.
func (r ByteRange) String() string {
	return fmt.Sprintf("[%d %d %d %d]", r.Start, r.Len1, r.Start2, r.Len2)
}

// Validate checks the structural invariants of a byte range.
func Validate(r ByteRange) error {
	var kind ErrorKind
	switch {
	case r.Start != 0:
		kind = KindStartNotZero
	case r.Len1 <= 0:
		kind = KindEmptyFirstPart
	case r.Len1 > math.MaxInt64-r.Start:
		kind = KindOverflow
	case r.Start2 < r.FirstPartEnd():
		kind = KindOverlappingParts
	case r.Len2 <= 0:
		kind = KindEmptySecondPart
	case r.Len2 > math.MaxInt64-r.Start2:
		kind = KindOverflow
	default:
		return nil
	}
	return &RangeError{Kind: kind, Values: r.Ints()}
}

// CheckLength validates r and checks that it lies within a container of
// the given length.
func CheckLength(r ByteRange, length int64) error {
	if err := Validate(r); err != nil {
		return err
	}
	if r.End() > length {
		return &RangeError{Kind: KindPastEnd, Values: r.Ints()}
	}
	return nil
}

// ValidateInts converts and validates a raw /ByteRange array in one step.
func ValidateInts(values []int64) (ByteRange, error) {
	r, err := FromInts(values)
	if err != nil {
		return ByteRange{}, err
	}
	if err := Validate(r); err != nil {
		return ByteRange{}, err
	}
	return r, nil
}

// IsKind reports whether err is a RangeError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var rangeErr *RangeError
	return errors.As(err, &rangeErr) && rangeErr.Kind == kind
}
