package reader

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

// Filter errors
var (
	ErrUnsupportedFilter = errors.New("unsupported stream filter")
	ErrDecodeFailed      = errors.New("stream decode failed")
)

// maxDecodedSize bounds the output of a single stream decode.
const maxDecodedSize = 256 << 20

// decodeStream applies the stream's filters. Only FlateDecode, with or without
// PNG predictors, is supported; it is the filter object and
// cross-reference streams use.
func decodeStream(s *StreamObject) ([]byte, error) {
	names, params := filterChain(s.Dictionary)
	data := s.Data
	for i, name := range names {
		if name != "FlateDecode" && name != "Fl" {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, name)
		}
		var err error
		if data, err = inflate(data); err != nil {
			return nil, err
		}
		if i < len(params) && params[i] != nil {
			if data, err = unpredict(data, params[i]); err != nil {
				return nil, err
			}
		}
	}
	return data, nil
}

func filterChain(dict *DictionaryObject) ([]string, []*DictionaryObject) {
	var names []string
	switch f := dict.Get("Filter").(type) {
	case NameObject:
		names = []string{string(f)}
	case ArrayObject:
		for _, item := range f {
			if n, ok := item.(NameObject); ok {
				names = append(names, string(n))
			}
		}
	}

	var params []*DictionaryObject
	switch dp := dict.Get("DecodeParms").(type) {
	case *DictionaryObject:
		params = []*DictionaryObject{dp}
	case ArrayObject:
		for _, item := range dp {
			d, _ := item.(*DictionaryObject)
			params = append(params, d)
		}
	}
	return names, params
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	defer r.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, maxDecodedSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if n > maxDecodedSize {
		return nil, fmt.Errorf("%w: stream exceeds %d bytes", ErrDecodeFailed, maxDecodedSize)
	}
	return buf.Bytes(), nil
}

// unpredict reverses the PNG predictors (10 to 15). Predictor 1 is the
// identity; TIFF prediction is not used by cross-reference streams.
func unpredict(data []byte, params *DictionaryObject) ([]byte, error) {
	predictor, _ := params.GetInt("Predictor")
	if predictor <= 1 {
		return data, nil
	}
	if predictor < 10 || predictor > 15 {
		return nil, fmt.Errorf("%w: predictor %d", ErrUnsupportedFilter, predictor)
	}

	columns := intParam(params, "Columns", 1)
	colors := intParam(params, "Colors", 1)
	bpc := intParam(params, "BitsPerComponent", 8)
	if columns <= 0 || colors <= 0 || bpc <= 0 || columns > 1<<20 {
		return nil, fmt.Errorf("%w: bad predictor parameters", ErrDecodeFailed)
	}
	bytesPerPixel := (colors*bpc + 7) / 8
	rowLength := (columns*colors*bpc+7)/8 + 1

	out := make([]byte, 0, len(data))
	prev := make([]byte, rowLength-1)
	for i := 0; i+rowLength <= len(data); i += rowLength {
		filterType := data[i]
		row := data[i+1 : i+rowLength]
		cur := make([]byte, len(row))

		for j := range row {
			var left, upLeft byte
			if j >= bytesPerPixel {
				left = cur[j-bytesPerPixel]
				upLeft = prev[j-bytesPerPixel]
			}
			up := prev[j]
			switch filterType {
			case 0:
				cur[j] = row[j]
			case 1:
				cur[j] = row[j] + left
			case 2:
				cur[j] = row[j] + up
			case 3:
				cur[j] = row[j] + byte((int(left)+int(up))/2)
			case 4:
				cur[j] = row[j] + paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("%w: PNG filter type %d", ErrDecodeFailed, filterType)
			}
		}
		out = append(out, cur...)
		prev = cur
	}
	return out, nil
}

func intParam(d *DictionaryObject, key string, def int) int {
	if v, ok := d.GetInt(key); ok {
		return int(v)
	}
	return def
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
