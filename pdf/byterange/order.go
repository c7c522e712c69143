package byterange

import "slices"

// Collides reports whether b's unhashed gap sits inside a's hashed span without
// proper nesting. The check is asymmetric: "a ends before b ends" must agree
// with "a ends before b's first part ends", otherwise the spans interleave.
func Collides(a, b ByteRange) bool {
	return (a.End() < b.End()) != (a.End() < b.Len1)
}

// CollidingPair reports whether two distinct ranges cannot belong to the same
// strictly nested revision history. Distinct ranges ending at the same offset
// are treated as colliding since no ordering can be established between them.
func CollidingPair(a, b ByteRange) bool {
	if a == b {
		return false
	}
	if a.End() == b.End() {
		return true
	}
	return Collides(a, b) || Collides(b, a)
}

// Compare orders two byte ranges: the range covering less of the file sorts
// first, since earlier revisions are prefixes of later ones.
func Compare(a, b ByteRange) (int, error) {
	if a == b {
		return 0, nil
	}
	if CollidingPair(a, b) {
		return 0, &StrangeByteRangesError{A: a, B: b}
	}
	if a.End() < b.End() {
		return -1, nil
	}
	return 1, nil
}

// Sort returns the ranges ordered from the earliest revision to the latest.
// The input slice is left untouched.
func Sort(ranges []ByteRange) ([]ByteRange, error) {
	for i := range ranges {
		for j := i + 1; j < len(ranges); j++ {
			if _, err := Compare(ranges[i], ranges[j]); err != nil {
				return nil, err
			}
		}
	}
	sorted := slices.Clone(ranges)
	slices.SortStableFunc(sorted, func(a, b ByteRange) int {
		c, _ := Compare(a, b)
		return c
	})
	return sorted, nil
}

// Nested reports whether inner is wholly contained in the first hashed part of
// outer, i.e. the revision protected by inner is a prefix of what outer signs.
func Nested(inner, outer ByteRange) bool {
	return inner.End() <= outer.FirstPartEnd()
}

// CoversWholeFile reports whether the range spans the complete container,
// including the signature gap.
func CoversWholeFile(r ByteRange, fileLen int64) bool {
	return r.Len1+r.InnerLen()+r.Len2 == fileLen
}
