// Package scanner tokenizes PDF syntax: numbers, names, strings, delimiters,
// keywords, indirect references and stream payloads. The loader drives it
// with explicit seeks into the file; it never guesses beyond the token it is
// asked for, except for the fixed lookahead that folds "N G R" into a single
// reference token.
package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// TokenType identifies the lexical class of a token.
type TokenType int

const (
	TokenNumber TokenType = iota
	TokenName
	TokenString
	TokenBoolean
	TokenNull
	TokenKeyword // obj, endobj, ">>", "]", trailer, xref, startxref, ...
	TokenArray   // "["
	TokenDict    // "<<"
	TokenRef     // "N G R" folded
	TokenStream  // payload following the "stream" keyword
)

// Token is a single lexical unit.
type Token struct {
	Type   TokenType
	Str    string  // names and keywords
	Bytes  []byte  // strings and stream payloads
	Int    int64   // integers and reference object numbers
	Gen    int     // reference generation
	Float  float64 // reals
	Bool   bool
	IsInt  bool
	Hex    bool  // string used <...> form
	Offset int64 // byte offset of the token start
}

// Config bounds scanner behavior for hostile inputs.
type Config struct {
	MaxStringLength int
	MaxStreamLength int64
}

// Scanner produces tokens from a PDF byte stream.
type Scanner interface {
	Next() (Token, error)
	SeekTo(offset int64) error
	// SetNextStreamLength hints the byte length of the next stream payload,
	// taken from the stream dictionary's /Length. Negative clears the hint.
	SetNextStreamLength(n int64)
}

// New builds a scanner over r. The reader is consumed once into an owned
// buffer; no cursor state escapes the scanner.
func New(r io.ReaderAt, cfg Config) Scanner {
	return &scannerImpl{data: readAll(r), cfg: cfg, streamHint: -1}
}

// NewBytes builds a scanner directly over an owned buffer.
func NewBytes(data []byte, cfg Config) Scanner {
	return &scannerImpl{data: data, cfg: cfg, streamHint: -1}
}

type scannerImpl struct {
	data       []byte
	pos        int64
	cfg        Config
	streamHint int64
	pending    []Token
}

func (s *scannerImpl) SeekTo(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return fmt.Errorf("seek offset %d out of range", offset)
	}
	s.pos = offset
	s.pending = s.pending[:0]
	return nil
}

func (s *scannerImpl) SetNextStreamLength(n int64) { s.streamHint = n }

func (s *scannerImpl) Next() (Token, error) {
	if len(s.pending) > 0 {
		t := s.pending[0]
		s.pending = s.pending[1:]
		return t, nil
	}
	tok, err := s.lex()
	if err != nil {
		return Token{}, err
	}
	// Fold "N G R" into a reference token. Both lookahead tokens are pushed
	// back verbatim when the pattern does not complete.
	if tok.Type == TokenNumber && tok.IsInt && tok.Int >= 0 {
		save := s.pos
		t2, err2 := s.lex()
		if err2 == nil && t2.Type == TokenNumber && t2.IsInt && t2.Int >= 0 {
			t3, err3 := s.lex()
			if err3 == nil && t3.Type == TokenKeyword && t3.Str == "R" {
				return Token{Type: TokenRef, Int: tok.Int, Gen: int(t2.Int), Offset: tok.Offset}, nil
			}
			if err3 == nil {
				s.pending = append(s.pending, t2, t3)
				return tok, nil
			}
		}
		if err2 == nil {
			s.pending = append(s.pending, t2)
		} else {
			s.pos = save
		}
	}
	return tok, nil
}

func (s *scannerImpl) lex() (Token, error) {
	s.skipWhitespace()
	if s.pos >= int64(len(s.data)) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	switch {
	case c == '%':
		s.skipComment()
		return s.lex()
	case c == '/':
		return s.lexName(start)
	case c == '(':
		return s.lexLiteralString(start)
	case c == '<':
		if s.pos+1 < int64(len(s.data)) && s.data[s.pos+1] == '<' {
			s.pos += 2
			return Token{Type: TokenDict, Offset: start}, nil
		}
		return s.lexHexString(start)
	case c == '>':
		if s.pos+1 < int64(len(s.data)) && s.data[s.pos+1] == '>' {
			s.pos += 2
			return Token{Type: TokenKeyword, Str: ">>", Offset: start}, nil
		}
		return Token{}, fmt.Errorf("stray '>' at offset %d", start)
	case c == '[':
		s.pos++
		return Token{Type: TokenArray, Offset: start}, nil
	case c == ']':
		s.pos++
		return Token{Type: TokenKeyword, Str: "]", Offset: start}, nil
	case c == '{' || c == '}':
		s.pos++
		return Token{Type: TokenKeyword, Str: string(c), Offset: start}, nil
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return s.lexNumber(start)
	default:
		return s.lexKeyword(start)
	}
}

func (s *scannerImpl) skipWhitespace() {
	for s.pos < int64(len(s.data)) && isWhitespace(s.data[s.pos]) {
		s.pos++
	}
}

func (s *scannerImpl) skipComment() {
	for s.pos < int64(len(s.data)) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
		s.pos++
	}
}

func (s *scannerImpl) lexName(start int64) (Token, error) {
	s.pos++ // '/'
	var buf bytes.Buffer
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) {
			if v, err := strconv.ParseUint(string(s.data[s.pos+1:s.pos+3]), 16, 8); err == nil {
				buf.WriteByte(byte(v))
				s.pos += 3
				continue
			}
		}
		buf.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Str: buf.String(), Offset: start}, nil
}

func (s *scannerImpl) lexLiteralString(start int64) (Token, error) {
	s.pos++ // '('
	var buf bytes.Buffer
	depth := 1
	for s.pos < int64(len(s.data)) {
		if s.cfg.MaxStringLength > 0 && buf.Len() > s.cfg.MaxStringLength {
			return Token{}, errors.New("string exceeds length limit")
		}
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= int64(len(s.data)) {
				return Token{}, errors.New("unterminated string escape")
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
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
			case '(', ')', '\\':
				buf.WriteByte(e)
			case '\n':
				// line continuation
			case '\r':
				if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && s.pos < int64(len(s.data)); i++ {
						d := s.data[s.pos]
						if d < '0' || d > '7' {
							break
						}
						v = v*8 + int(d-'0')
						s.pos++
					}
					buf.WriteByte(byte(v))
				} else {
					buf.WriteByte(e)
				}
			}
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Bytes: buf.Bytes(), Offset: start}, nil
			}
			buf.WriteByte(c)
		default:
			buf.WriteByte(c)
		}
	}
	return Token{}, errors.New("unterminated literal string")
}

func (s *scannerImpl) lexHexString(start int64) (Token, error) {
	s.pos++ // '<'
	var buf bytes.Buffer
	var hi byte
	have := false
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			if have {
				buf.WriteByte(hexVal(hi) << 4) // odd count: pad low nibble with 0
			}
			return Token{Type: TokenString, Bytes: buf.Bytes(), Hex: true, Offset: start}, nil
		}
		if isWhitespace(c) {
			continue
		}
		if !isHexDigit(c) {
			return Token{}, fmt.Errorf("bad hex digit %q in string", c)
		}
		if !have {
			hi, have = c, true
		} else {
			buf.WriteByte(hexVal(hi)<<4 | hexVal(c))
			have = false
		}
	}
	return Token{}, errors.New("unterminated hex string")
}

func (s *scannerImpl) lexNumber(start int64) (Token, error) {
	end := s.pos
	for end < int64(len(s.data)) {
		c := s.data[end]
		if (c >= '0' && c <= '9') || c == '+' || c == '-' || c == '.' {
			end++
			continue
		}
		break
	}
	text := string(s.data[s.pos:end])
	s.pos = end
	if !bytes.ContainsAny([]byte(text), ".") {
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Token{}, fmt.Errorf("bad integer %q: %w", text, err)
		}
		return Token{Type: TokenNumber, Int: i, IsInt: true, Offset: start}, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Token{}, fmt.Errorf("bad real %q: %w", text, err)
	}
	return Token{Type: TokenNumber, Float: f, Offset: start}, nil
}

func (s *scannerImpl) lexKeyword(start int64) (Token, error) {
	end := s.pos
	for end < int64(len(s.data)) {
		c := s.data[end]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		end++
	}
	if end == s.pos {
		return Token{}, fmt.Errorf("unexpected byte 0x%02x at offset %d", s.data[s.pos], s.pos)
	}
	word := string(s.data[s.pos:end])
	s.pos = end
	switch word {
	case "true":
		return Token{Type: TokenBoolean, Bool: true, Offset: start}, nil
	case "false":
		return Token{Type: TokenBoolean, Bool: false, Offset: start}, nil
	case "null":
		return Token{Type: TokenNull, Offset: start}, nil
	case "stream":
		return s.lexStream(start)
	}
	return Token{Type: TokenKeyword, Str: word, Offset: start}, nil
}

// lexStream consumes the payload after the "stream" keyword up to the
// matching endstream, honoring the /Length hint when one was set.
func (s *scannerImpl) lexStream(start int64) (Token, error) {
	// EOL after the keyword: CRLF or LF per spec.
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
		s.pos++
	}
	hint := s.streamHint
	s.streamHint = -1
	var payload []byte
	if hint >= 0 && s.pos+hint <= int64(len(s.data)) {
		if s.cfg.MaxStreamLength > 0 && hint > s.cfg.MaxStreamLength {
			return Token{}, errors.New("stream exceeds length limit")
		}
		payload = s.data[s.pos : s.pos+hint]
		s.pos += hint
		// Verify endstream actually follows; fall back to searching if the
		// declared length was wrong.
		probe := s.pos
		for probe < int64(len(s.data)) && isWhitespace(s.data[probe]) {
			probe++
		}
		if !bytes.HasPrefix(s.data[probe:], []byte("endstream")) {
			s.pos -= hint
			payload = nil
		}
	}
	if payload == nil {
		idx := bytes.Index(s.data[s.pos:], []byte("endstream"))
		if idx < 0 {
			return Token{}, errors.New("endstream not found")
		}
		payload = s.data[s.pos : s.pos+int64(idx)]
		// Strip the single EOL separating payload from endstream. Binary
		// payloads may legitimately end in CR or LF bytes of their own.
		if n := len(payload); n > 0 && payload[n-1] == '\n' {
			payload = payload[:n-1]
		}
		if n := len(payload); n > 0 && payload[n-1] == '\r' {
			payload = payload[:n-1]
		}
		s.pos += int64(idx)
	}
	// Consume "endstream".
	s.skipWhitespace()
	if bytes.HasPrefix(s.data[s.pos:], []byte("endstream")) {
		s.pos += int64(len("endstream"))
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return Token{Type: TokenStream, Bytes: out, Offset: start}, nil
}

func isWhitespace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
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

func readAll(r io.ReaderAt) []byte {
	var buf bytes.Buffer
	const chunk = int64(32 * 1024)
	tmp := make([]byte, chunk)
	for off := int64(0); ; off += chunk {
		n, err := r.ReadAt(tmp, off)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err != nil || int64(n) < chunk {
			break
		}
	}
	return buf.Bytes()
}
