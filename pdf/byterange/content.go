package byterange

import (
	"encoding/hex"
	"fmt"
)

// SignedContent returns the concatenation of both hashed spans.
func SignedContent(data []byte, r ByteRange) ([]byte, error) {
	if err := CheckLength(r, int64(len(data))); err != nil {
		return nil, err
	}
	out := make([]byte, 0, r.Len1+r.Len2)
	out = append(out, data[r.Start:r.FirstPartEnd()]...)
	out = append(out, data[r.Start2:r.End()]...)
	return out, nil
}

// SignatureContents returns the decoded value stored in the gap between the
// two spans. The gap holds a hex string delimited by '<' and '>'; trailing
// zero padding is preserved.
func SignatureContents(data []byte, r ByteRange) ([]byte, error) {
	if err := CheckLength(r, int64(len(data))); err != nil {
		return nil, err
	}
	gap := data[r.FirstPartEnd():r.Start2]
	if len(gap) < 2 || gap[0] != '<' || gap[len(gap)-1] != '>' {
		return nil, fmt.Errorf("%w: gap of %s is not a hex string", ErrInvalidByteRange, r)
	}
	decoded, err := hex.DecodeString(string(gap[1 : len(gap)-1]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidByteRange, err)
	}
	return decoded, nil
}
