package scanner

import (
	"bytes"
	"io"
	"testing"
)

func mustNext(t *testing.T, s Scanner) Token {
	t.Helper()
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	return tok
}

func TestScanPrimitives(t *testing.T) {
	src := []byte("/Name 42 -3.5 true false null (hello) <48690A> [ ] << >>")
	s := NewBytes(src, Config{})

	tok := mustNext(t, s)
	if tok.Type != TokenName || tok.Str != "Name" {
		t.Fatalf("name: %+v", tok)
	}
	tok = mustNext(t, s)
	if tok.Type != TokenNumber || !tok.IsInt || tok.Int != 42 {
		t.Fatalf("int: %+v", tok)
	}
	tok = mustNext(t, s)
	if tok.Type != TokenNumber || tok.IsInt || tok.Float != -3.5 {
		t.Fatalf("real: %+v", tok)
	}
	if tok = mustNext(t, s); tok.Type != TokenBoolean || !tok.Bool {
		t.Fatalf("true: %+v", tok)
	}
	if tok = mustNext(t, s); tok.Type != TokenBoolean || tok.Bool {
		t.Fatalf("false: %+v", tok)
	}
	if tok = mustNext(t, s); tok.Type != TokenNull {
		t.Fatalf("null: %+v", tok)
	}
	tok = mustNext(t, s)
	if tok.Type != TokenString || string(tok.Bytes) != "hello" || tok.Hex {
		t.Fatalf("string: %+v", tok)
	}
	tok = mustNext(t, s)
	if tok.Type != TokenString || !tok.Hex || !bytes.Equal(tok.Bytes, []byte("Hi\n")) {
		t.Fatalf("hex string: %+v", tok)
	}
	if tok = mustNext(t, s); tok.Type != TokenArray {
		t.Fatalf("array open: %+v", tok)
	}
	if tok = mustNext(t, s); tok.Type != TokenKeyword || tok.Str != "]" {
		t.Fatalf("array close: %+v", tok)
	}
	if tok = mustNext(t, s); tok.Type != TokenDict {
		t.Fatalf("dict open: %+v", tok)
	}
	if tok = mustNext(t, s); tok.Type != TokenKeyword || tok.Str != ">>" {
		t.Fatalf("dict close: %+v", tok)
	}
	if _, err := s.Next(); err != io.EOF {
		t.Fatalf("want EOF, got %v", err)
	}
}

func TestScanReferenceFolding(t *testing.T) {
	s := NewBytes([]byte("12 0 R 7 2 obj 3 4"), Config{})

	tok := mustNext(t, s)
	if tok.Type != TokenRef || tok.Int != 12 || tok.Gen != 0 {
		t.Fatalf("ref: %+v", tok)
	}
	// "7 2 obj" must come back as two numbers and a keyword, not a ref.
	if tok = mustNext(t, s); tok.Type != TokenNumber || tok.Int != 7 {
		t.Fatalf("obj num: %+v", tok)
	}
	if tok = mustNext(t, s); tok.Type != TokenNumber || tok.Int != 2 {
		t.Fatalf("obj gen: %+v", tok)
	}
	if tok = mustNext(t, s); tok.Type != TokenKeyword || tok.Str != "obj" {
		t.Fatalf("obj keyword: %+v", tok)
	}
	// Two trailing numbers with no third token.
	if tok = mustNext(t, s); tok.Type != TokenNumber || tok.Int != 3 {
		t.Fatalf("trailing: %+v", tok)
	}
	if tok = mustNext(t, s); tok.Type != TokenNumber || tok.Int != 4 {
		t.Fatalf("trailing: %+v", tok)
	}
}

func TestScanNegativeGenerationNotFolded(t *testing.T) {
	// A generation number can never be negative, so "1 -2 R" is three
	// separate tokens.
	s := NewBytes([]byte("1 -2 R"), Config{})

	tok := mustNext(t, s)
	if tok.Type != TokenNumber || tok.Int != 1 {
		t.Fatalf("first: %+v", tok)
	}
	if tok = mustNext(t, s); tok.Type != TokenNumber || tok.Int != -2 {
		t.Fatalf("second: %+v", tok)
	}
	if tok = mustNext(t, s); tok.Type != TokenKeyword || tok.Str != "R" {
		t.Fatalf("third: %+v", tok)
	}
}

func TestScanStringEscapes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`(a\nb)`, "a\nb"},
		{`(a\(b\))`, "a(b)"},
		{`(nested (parens) kept)`, "nested (parens) kept"},
		{`(\101\102)`, "AB"},
		{`(\0533)`, "+3"},
		{"(line\\\ncontinued)", "linecontinued"},
	}
	for _, tc := range cases {
		s := NewBytes([]byte(tc.in), Config{})
		tok := mustNext(t, s)
		if tok.Type != TokenString || string(tok.Bytes) != tc.want {
			t.Errorf("%s: got %q", tc.in, tok.Bytes)
		}
	}
}

func TestScanNameHexEscape(t *testing.T) {
	s := NewBytes([]byte("/A#20B"), Config{})
	tok := mustNext(t, s)
	if tok.Str != "A B" {
		t.Fatalf("got %q", tok.Str)
	}
}

func TestScanStreamWithLengthHint(t *testing.T) {
	src := []byte("stream\nabcdef\nendstream done")
	s := NewBytes(src, Config{})
	s.SetNextStreamLength(6)
	tok := mustNext(t, s)
	if tok.Type != TokenStream || string(tok.Bytes) != "abcdef" {
		t.Fatalf("stream: %+v", tok)
	}
	if tok = mustNext(t, s); tok.Type != TokenKeyword || tok.Str != "done" {
		t.Fatalf("after stream: %+v", tok)
	}
}

func TestScanStreamWrongHintFallsBack(t *testing.T) {
	src := []byte("stream\nabcdef\nendstream")
	s := NewBytes(src, Config{})
	s.SetNextStreamLength(3) // declared length lies
	tok := mustNext(t, s)
	if tok.Type != TokenStream || string(tok.Bytes) != "abcdef" {
		t.Fatalf("stream: %+v", tok)
	}
}

func TestScanCommentsSkipped(t *testing.T) {
	s := NewBytes([]byte("% header comment\n42"), Config{})
	tok := mustNext(t, s)
	if tok.Type != TokenNumber || tok.Int != 42 {
		t.Fatalf("got %+v", tok)
	}
}

func TestSeekTo(t *testing.T) {
	src := []byte("11 22 33")
	s := NewBytes(src, Config{})
	mustNext(t, s)
	if err := s.SeekTo(0); err != nil {
		t.Fatal(err)
	}
	tok := mustNext(t, s)
	if tok.Int != 11 {
		t.Fatalf("after seek: %+v", tok)
	}
	if err := s.SeekTo(100); err == nil {
		t.Fatal("seek past end accepted")
	}
}

func TestStringLengthLimit(t *testing.T) {
	s := NewBytes([]byte("(aaaaaaaaaa)"), Config{MaxStringLength: 4})
	if _, err := s.Next(); err == nil {
		t.Fatal("want length limit error")
	}
}
