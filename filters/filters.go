// Package filters implements the stream encodings the engine reads and
// writes: FlateDecode (with PNG predictors), ASCIIHexDecode, ASCII85Decode
// and RunLengthDecode. Decoders compose into a pipeline driven by a stream
// dictionary's /Filter chain.
package filters

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"

	"github.com/docsuite/pdfengine/ir/raw"
)

// Decoder decodes one stream encoding.
type Decoder interface {
	Name() string
	Decode(data []byte, parms raw.Dictionary) ([]byte, error)
}

// registry maps filter names to decoders. Abbreviated names from inline
// images are accepted alongside the full forms.
var registry = map[string]Decoder{
	"FlateDecode":     flateDecoder{},
	"Fl":              flateDecoder{},
	"ASCIIHexDecode":  asciiHexDecoder{},
	"AHx":             asciiHexDecoder{},
	"ASCII85Decode":   ascii85Decoder{},
	"A85":             ascii85Decoder{},
	"RunLengthDecode": runLengthDecoder{},
	"RL":              runLengthDecoder{},
}

// ErrUnsupportedFilter marks a filter chain the engine cannot decode (DCT,
// JPX, CCITT and JBIG2 payloads are carried through undecoded instead).
var ErrUnsupportedFilter = errors.New("unsupported stream filter")

// ImageFilter reports whether name is a compressed-image encoding whose
// payload is handed to an image codec rather than decoded as bytes.
func ImageFilter(name string) bool {
	switch name {
	case "DCTDecode", "DCT", "JPXDecode", "CCITTFaxDecode", "CCF", "JBIG2Decode":
		return true
	}
	return false
}

// Decode runs data through the named filter chain in order. parms pairs with
// names positionally; nil entries are allowed.
func Decode(data []byte, names []string, parms []raw.Dictionary) ([]byte, error) {
	out := data
	for i, name := range names {
		dec, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, name)
		}
		var p raw.Dictionary
		if i < len(parms) {
			p = parms[i]
		}
		var err error
		out, err = dec.Decode(out, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return out, nil
}

// FilterChain reads the /Filter and /DecodeParms entries of a stream
// dictionary, resolving indirect values through doc.
func FilterChain(doc *raw.Document, dict raw.Dictionary) (names []string, parms []raw.Dictionary) {
	resolve := func(o raw.Object) raw.Object {
		if doc != nil {
			return doc.Resolve(o)
		}
		return o
	}
	if f, ok := dict.Get("Filter"); ok {
		switch v := resolve(f).(type) {
		case raw.Name:
			names = []string{v.Value()}
		case raw.Array:
			for i := 0; i < v.Len(); i++ {
				it, _ := v.Get(i)
				if n, ok := resolve(it).(raw.Name); ok {
					names = append(names, n.Value())
				}
			}
		}
	}
	if dp, ok := dict.Get("DecodeParms"); ok {
		switch v := resolve(dp).(type) {
		case raw.Dictionary:
			parms = []raw.Dictionary{v}
		case raw.Array:
			for i := 0; i < v.Len(); i++ {
				it, _ := v.Get(i)
				d, _ := resolve(it).(raw.Dictionary)
				parms = append(parms, d)
			}
		}
	}
	return names, parms
}

// Flate

type flateDecoder struct{}

func (flateDecoder) Name() string { return "FlateDecode" }

func (flateDecoder) Decode(data []byte, parms raw.Dictionary) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return applyPredictor(out, parms)
}

// FlateEncode compresses data at the given zlib level (1..9; out-of-range
// values fall back to the default level).
func FlateEncode(data []byte, level int) ([]byte, error) {
	if level < zlib.BestSpeed || level > zlib.BestCompression {
		level = zlib.DefaultCompression
	}
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// applyPredictor undoes PNG predictors (10..15). TIFF predictor 2 and
// non-8-bit samples do not occur in the files this engine targets.
func applyPredictor(data []byte, parms raw.Dictionary) ([]byte, error) {
	if parms == nil {
		return data, nil
	}
	pred, _ := raw.DictGetInt(parms, "Predictor")
	if pred < 10 {
		return data, nil
	}
	columns, ok := raw.DictGetInt(parms, "Columns")
	if !ok || columns <= 0 {
		columns = 1
	}
	colors, ok := raw.DictGetInt(parms, "Colors")
	if !ok || colors <= 0 {
		colors = 1
	}
	bpc, ok := raw.DictGetInt(parms, "BitsPerComponent")
	if !ok || bpc <= 0 {
		bpc = 8
	}
	bpp := int(colors * bpc / 8)
	if bpp < 1 {
		bpp = 1
	}
	rowLen := int(columns) * bpp
	if rowLen <= 0 || len(data)%(rowLen+1) != 0 {
		return nil, fmt.Errorf("predictor row length %d does not divide stream of %d bytes", rowLen+1, len(data))
	}
	rows := len(data) / (rowLen + 1)
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)
	cur := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		tag := data[r*(rowLen+1)]
		copy(cur, data[r*(rowLen+1)+1:(r+1)*(rowLen+1)])
		switch tag {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				cur[i] += cur[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				cur[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bpp {
					left = cur[i-bpp]
				}
				cur[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bpp {
					left = cur[i-bpp]
					upLeft = prev[i-bpp]
				}
				cur[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, fmt.Errorf("unknown PNG predictor tag %d", tag)
		}
		out = append(out, cur...)
		prev, cur = cur, prev
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
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

// ASCIIHex

type asciiHexDecoder struct{}

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }

func (asciiHexDecoder) Decode(data []byte, _ raw.Dictionary) ([]byte, error) {
	var out bytes.Buffer
	var hi byte
	have := false
	for _, c := range data {
		switch {
		case c == '>':
			if have {
				out.WriteByte(hexVal(hi) << 4)
			}
			return out.Bytes(), nil
		case isWhitespace(c):
		case isHexDigit(c):
			if !have {
				hi, have = c, true
			} else {
				out.WriteByte(hexVal(hi)<<4 | hexVal(c))
				have = false
			}
		default:
			return nil, fmt.Errorf("invalid hex byte %q", c)
		}
	}
	// Missing the > terminator is tolerated.
	if have {
		out.WriteByte(hexVal(hi) << 4)
	}
	return out.Bytes(), nil
}

// ASCIIHexEncode produces the binary-safe hex form, terminated with '>'.
func ASCIIHexEncode(data []byte) []byte {
	const hexdigits = "0123456789ABCDEF"
	out := make([]byte, 0, len(data)*2+1)
	for i, b := range data {
		out = append(out, hexdigits[b>>4], hexdigits[b&0x0F])
		if i%32 == 31 {
			out = append(out, '\n')
		}
	}
	return append(out, '>')
}

// ASCII85

type ascii85Decoder struct{}

func (ascii85Decoder) Name() string { return "ASCII85Decode" }

func (ascii85Decoder) Decode(data []byte, _ raw.Dictionary) ([]byte, error) {
	data = bytes.TrimPrefix(data, []byte("<~"))
	var out bytes.Buffer
	var group [5]byte
	n := 0
	flush := func(count int) {
		v := uint32(0)
		for i := 0; i < 5; i++ {
			c := byte('u')
			if i < count {
				c = group[i]
			}
			v = v*85 + uint32(c-'!')
		}
		for i := 0; i < count-1; i++ {
			out.WriteByte(byte(v >> (24 - 8*i)))
		}
	}
	for _, c := range data {
		switch {
		case c == '~':
			if n > 0 {
				if n == 1 {
					return nil, errors.New("truncated ascii85 group")
				}
				flush(n)
			}
			return out.Bytes(), nil
		case c == 'z' && n == 0:
			out.Write([]byte{0, 0, 0, 0})
		case isWhitespace(c):
		case c >= '!' && c <= 'u':
			group[n] = c
			n++
			if n == 5 {
				flush(5)
				n = 0
			}
		default:
			return nil, fmt.Errorf("invalid ascii85 byte %q", c)
		}
	}
	if n > 0 {
		if n == 1 {
			return nil, errors.New("truncated ascii85 group")
		}
		flush(n)
	}
	return out.Bytes(), nil
}

// RunLength

type runLengthDecoder struct{}

func (runLengthDecoder) Name() string { return "RunLengthDecode" }

func (runLengthDecoder) Decode(data []byte, _ raw.Dictionary) ([]byte, error) {
	var out bytes.Buffer
	i := 0
	for i < len(data) {
		l := data[i]
		i++
		switch {
		case l == 128:
			return out.Bytes(), nil
		case l < 128:
			n := int(l) + 1
			if i+n > len(data) {
				return nil, errors.New("run length literal overruns data")
			}
			out.Write(data[i : i+n])
			i += n
		default:
			if i >= len(data) {
				return nil, errors.New("run length repeat overruns data")
			}
			n := 257 - int(l)
			for j := 0; j < n; j++ {
				out.WriteByte(data[i])
			}
			i++
		}
	}
	return out.Bytes(), nil
}

func isWhitespace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
