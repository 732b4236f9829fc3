// Package contentstream parses and rebuilds page content streams. It models a
// stream as a flat operation list, which is all the mutation engine needs:
// appending drawing operations, extracting text and stripping text inside a
// redaction region.
package contentstream

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/scanner"
)

// Operation is one content stream operator with its operands.
type Operation struct {
	Operator string
	Operands []raw.Object

	// Inline carries the raw bytes of a BI..EI inline image, operator "BI".
	Inline []byte
}

// Parse tokenizes a decoded content stream into operations. Unknown operators
// are carried through untouched.
func Parse(data []byte) ([]Operation, error) {
	var ops []Operation
	var stack []raw.Object
	s := scanner.NewBytes(data, scanner.Config{})
	for {
		tok, err := s.Next()
		if err != nil {
			break
		}
		switch tok.Type {
		case scanner.TokenNumber:
			if tok.IsInt {
				stack = append(stack, raw.NumberInt(tok.Int))
			} else {
				stack = append(stack, raw.NumberFloat(tok.Float))
			}
		case scanner.TokenName:
			stack = append(stack, raw.NameLiteral(tok.Str))
		case scanner.TokenString:
			if tok.Hex {
				stack = append(stack, raw.HexStr(tok.Bytes))
			} else {
				stack = append(stack, raw.Str(tok.Bytes))
			}
		case scanner.TokenBoolean:
			stack = append(stack, raw.Bool(tok.Bool))
		case scanner.TokenNull:
			stack = append(stack, raw.NullObj{})
		case scanner.TokenArray:
			arr, err := parseArray(s)
			if err != nil {
				return nil, err
			}
			stack = append(stack, arr)
		case scanner.TokenDict:
			d, err := parseDict(s)
			if err != nil {
				return nil, err
			}
			stack = append(stack, d)
		case scanner.TokenKeyword:
			if tok.Str == "BI" {
				// Inline images do not follow object syntax between ID and
				// EI. Capture the whole block from the raw bytes.
				end := bytes.Index(data[tok.Offset:], []byte("EI"))
				if end < 0 {
					return nil, fmt.Errorf("inline image at %d: EI not found", tok.Offset)
				}
				stop := tok.Offset + int64(end) + 2
				ops = append(ops, Operation{Operator: "BI", Inline: data[tok.Offset:stop]})
				stack = stack[:0]
				if err := s.SeekTo(stop); err != nil {
					return nil, err
				}
				continue
			}
			ops = append(ops, Operation{Operator: tok.Str, Operands: stack})
			stack = nil
		default:
			return nil, fmt.Errorf("unexpected token %v in content stream", tok.Type)
		}
	}
	return ops, nil
}

func parseArray(s scanner.Scanner) (raw.Object, error) {
	arr := raw.NewArray()
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("unterminated array: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == "]" {
			return arr, nil
		}
		obj, err := tokenToObject(s, tok)
		if err != nil {
			return nil, err
		}
		arr.Items = append(arr.Items, obj)
	}
}

func parseDict(s scanner.Scanner) (raw.Object, error) {
	d := raw.Dict()
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("unterminated dictionary: %w", err)
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, fmt.Errorf("dictionary key is not a name")
		}
		vtok, err := s.Next()
		if err != nil {
			return nil, err
		}
		val, err := tokenToObject(s, vtok)
		if err != nil {
			return nil, err
		}
		d.Set(tok.Str, val)
	}
}

func tokenToObject(s scanner.Scanner, tok scanner.Token) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case scanner.TokenName:
		return raw.NameLiteral(tok.Str), nil
	case scanner.TokenString:
		if tok.Hex {
			return raw.HexStr(tok.Bytes), nil
		}
		return raw.Str(tok.Bytes), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenArray:
		return parseArray(s)
	case scanner.TokenDict:
		return parseDict(s)
	}
	return nil, fmt.Errorf("unexpected token %v inside composite", tok.Type)
}

// Serialize rebuilds the textual stream from an operation list.
func Serialize(ops []Operation) []byte {
	var buf bytes.Buffer
	for _, op := range ops {
		if op.Operator == "BI" {
			buf.Write(op.Inline)
			buf.WriteByte('\n')
			continue
		}
		for _, o := range op.Operands {
			writeOperand(&buf, o)
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func writeOperand(buf *bytes.Buffer, obj raw.Object) {
	switch v := obj.(type) {
	case raw.NameObj:
		buf.WriteByte('/')
		buf.WriteString(v.Val)
	case raw.NumberObj:
		if v.IsInt {
			buf.WriteString(strconv.FormatInt(v.I, 10))
		} else {
			buf.WriteString(strconv.FormatFloat(v.F, 'f', -1, 64))
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
		writeString(buf, v)
	case *raw.ArrayObj:
		buf.WriteByte('[')
		for i, it := range v.Items {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeOperand(buf, it)
		}
		buf.WriteByte(']')
	case *raw.DictObj:
		buf.WriteString("<<")
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			buf.WriteString(" /")
			buf.WriteString(k)
			buf.WriteByte(' ')
			writeOperand(buf, val)
		}
		buf.WriteString(" >>")
	}
}

func writeString(buf *bytes.Buffer, s raw.StringObj) {
	if s.Hex {
		buf.WriteByte('<')
		const hexdigits = "0123456789ABCDEF"
		for _, b := range s.Bytes {
			buf.WriteByte(hexdigits[b>>4])
			buf.WriteByte(hexdigits[b&0x0F])
		}
		buf.WriteByte('>')
		return
	}
	buf.WriteByte('(')
	for _, b := range s.Bytes {
		switch b {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			buf.WriteByte(b)
		}
	}
	buf.WriteByte(')')
}
