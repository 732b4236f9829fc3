package writer

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/docsuite/pdfengine/ir/raw"
)

// cryptFunc encrypts a string payload for the object being written. The
// identity function is used for plain output.
type cryptFunc func(data []byte) ([]byte, error)

func noCrypt(data []byte) ([]byte, error) { return data, nil }

// serializePrimitive writes any direct object in PDF syntax. Stream objects
// are handled by the caller because their payload needs length bookkeeping
// and encryption.
func serializePrimitive(buf *bytes.Buffer, obj raw.Object, crypt cryptFunc) error {
	switch v := obj.(type) {
	case raw.NameObj:
		writeName(buf, v.Val)
	case raw.NumberObj:
		if v.IsInt {
			buf.WriteString(strconv.FormatInt(v.I, 10))
		} else {
			buf.WriteString(formatFloat(v.F))
		}
	case raw.BoolObj:
		if v.V {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case raw.NullObj:
		buf.WriteString("null")
	case raw.StringObj:
		enc, err := crypt(v.Bytes)
		if err != nil {
			return err
		}
		// Encrypted payloads are binary; always hex-encode those.
		if v.Hex || len(enc) != len(v.Bytes) {
			writeHexString(buf, enc)
		} else {
			writeLiteralString(buf, enc)
		}
	case raw.RefObj:
		fmt.Fprintf(buf, "%d %d R", v.R.Num, v.R.Gen)
	case *raw.ArrayObj:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(' ')
			}
			if err := serializePrimitive(buf, item, crypt); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case *raw.DictObj:
		buf.WriteString("<<")
		for _, key := range v.Keys() {
			val, _ := v.Get(key)
			buf.WriteByte(' ')
			writeName(buf, key)
			buf.WriteByte(' ')
			if err := serializePrimitive(buf, val, crypt); err != nil {
				return err
			}
		}
		buf.WriteString(" >>")
	case *raw.StreamObj:
		return fmt.Errorf("stream object serialized as primitive")
	default:
		return fmt.Errorf("unknown object type %T", obj)
	}
	return nil
}

func writeName(buf *bytes.Buffer, name string) {
	buf.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c <= ' ' || c > '~' || c == '#' || isDelimiterByte(c) {
			fmt.Fprintf(buf, "#%02X", c)
		} else {
			buf.WriteByte(c)
		}
	}
}

func writeLiteralString(buf *bytes.Buffer, data []byte) {
	buf.WriteByte('(')
	for _, b := range data {
		switch b {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			buf.WriteByte(b)
		}
	}
	buf.WriteByte(')')
}

func writeHexString(buf *bytes.Buffer, data []byte) {
	const hexdigits = "0123456789ABCDEF"
	buf.WriteByte('<')
	for _, b := range data {
		buf.WriteByte(hexdigits[b>>4])
		buf.WriteByte(hexdigits[b&0x0F])
	}
	buf.WriteByte('>')
}

// formatFloat trims trailing zeros the way content coordinates are usually
// written.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', 6, 64)
	s = trimRightByte(s, '0')
	s = trimRightByte(s, '.')
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

func trimRightByte(s string, b byte) string {
	for len(s) > 0 && s[len(s)-1] == b {
		s = s[:len(s)-1]
	}
	return s
}

func isDelimiterByte(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// rectArray builds a [llx lly urx ury] array object.
func rectArray(llx, lly, urx, ury float64) *raw.ArrayObj {
	return raw.NewArray(
		raw.NumberFloat(llx), raw.NumberFloat(lly),
		raw.NumberFloat(urx), raw.NumberFloat(ury))
}
