package reader

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"encoding/hex"
	"fmt"
	"io"
)

// Decode returns the decoded data of s. Only the general purpose filters
// are supported; image filters such as DCTDecode are reported as errors.
func Decode(s Stream) ([]byte, error) {
	var filters []Object
	switch f := s.Dict["Filter"].(type) {
	case nil:
		return s.Data, nil
	case Name:
		filters = Array{f}
	case Array:
		filters = f
	default:
		return nil, fmt.Errorf("reader: invalid /Filter %T", f)
	}

	var params []Object
	switch dp := s.Dict["DecodeParms"].(type) {
	case Dict:
		params = Array{dp}
	case Array:
		params = dp
	}

	data := s.Data
	for i, f := range filters {
		name, ok := f.(Name)
		if !ok {
			return nil, fmt.Errorf("reader: filter %d is not a name", i)
		}
		var parms Dict
		if i < len(params) {
			parms, _ = params[i].(Dict)
		}
		var err error
		if data, err = decodeFilter(name, parms, data); err != nil {
			return nil, fmt.Errorf("reader: %s: %w", name, err)
		}
	}
	return data, nil
}

func decodeFilter(name Name, parms Dict, data []byte) ([]byte, error) {
	switch name {
	case "FlateDecode", "Fl":
		out, err := inflate(data)
		if err != nil {
			return nil, err
		}
		return unpredict(out, parms)
	case "ASCIIHexDecode", "AHx":
		return decodeHex(data)
	case "ASCII85Decode", "A85":
		return decode85(data)
	}
	return nil, fmt.Errorf("unsupported filter")
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	// Truncated streams are common; keep what could be inflated.
	if err != nil && len(out) == 0 {
		return nil, err
	}
	return out, nil
}

// unpredict reverses a TIFF or PNG predictor as described by parms.
func unpredict(data []byte, parms Dict) ([]byte, error) {
	predictor, _ := parms.Int("Predictor")
	if predictor <= 1 {
		return data, nil
	}
	colors, ok := parms.Int("Colors")
	if !ok {
		colors = 1
	}
	bpc, ok := parms.Int("BitsPerComponent")
	if !ok {
		bpc = 8
	}
	columns, ok := parms.Int("Columns")
	if !ok {
		columns = 1
	}
	switch {
	case colors < 1 || colors > 32:
		return nil, fmt.Errorf("predictor /Colors %d out of range", colors)
	case bpc != 1 && bpc != 2 && bpc != 4 && bpc != 8 && bpc != 16:
		return nil, fmt.Errorf("predictor /BitsPerComponent %d not supported", bpc)
	case columns < 1 || columns > 1<<24:
		return nil, fmt.Errorf("predictor /Columns %d out of range", columns)
	}
	bpp := max(int(colors*bpc+7)/8, 1)
	rowLen := int(columns*colors*bpc+7) / 8

	if predictor == 2 {
		if bpc != 8 {
			return nil, fmt.Errorf("TIFF predictor with %d bits per component", bpc)
		}
		out := bytes.Clone(data)
		for row := 0; row+rowLen <= len(out); row += rowLen {
			for i := bpp; i < rowLen; i++ {
				out[row+i] += out[row+i-bpp]
			}
		}
		return out, nil
	}
	if predictor < 10 {
		return nil, fmt.Errorf("unsupported predictor %d", predictor)
	}

	// PNG predictors: every row starts with its own filter type byte.
	prev := make([]byte, rowLen)
	out := make([]byte, 0, len(data)/(rowLen+1)*rowLen)
	for pos := 0; pos+rowLen+1 <= len(data); pos += rowLen + 1 {
		kind := data[pos]
		cur := bytes.Clone(data[pos+1 : pos+1+rowLen])
		for i := range cur {
			var left, upLeft byte
			if i >= bpp {
				left, upLeft = cur[i-bpp], prev[i-bpp]
			}
			up := prev[i]
			switch kind {
			case 0:
			case 1:
				cur[i] += left
			case 2:
				cur[i] += up
			case 3:
				cur[i] += byte((int(left) + int(up)) / 2)
			case 4:
				cur[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("bad PNG filter type %d", kind)
			}
		}
		out = append(out, cur...)
		prev = cur
	}
	return out, nil
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

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func decodeHex(data []byte) ([]byte, error) {
	digits := make([]byte, 0, len(data))
	for _, c := range data {
		if c == '>' {
			break
		}
		if !isSpace(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	if _, err := hex.Decode(out, digits); err != nil {
		return nil, err
	}
	return out, nil
}

func decode85(data []byte) ([]byte, error) {
	if i := bytes.Index(data, []byte("~>")); i >= 0 {
		data = data[:i]
	}
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("<~"))
	return io.ReadAll(ascii85.NewDecoder(bytes.NewReader(data)))
}
