package filters

import (
	"bytes"
	"errors"
	"testing"
)

func TestFlateRoundTrip(t *testing.T) {
	plain := bytes.Repeat([]byte("stream payload "), 100)
	for _, level := range []int{1, 6, 9} {
		enc, err := FlateEncode(plain, level)
		if err != nil {
			t.Fatalf("encode level %d: %v", level, err)
		}
		if len(enc) >= len(plain) {
			t.Errorf("level %d: no compression (%d >= %d)", level, len(enc), len(plain))
		}
		dec, err := Decode(enc, []string{"FlateDecode"}, nil)
		if err != nil {
			t.Fatalf("decode level %d: %v", level, err)
		}
		if !bytes.Equal(dec, plain) {
			t.Fatalf("level %d: round trip mismatch", level)
		}
	}
}

func TestFlateEncodeBadLevelFallsBack(t *testing.T) {
	enc, err := FlateEncode([]byte("data"), 42)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := Decode(enc, []string{"Fl"}, nil)
	if err != nil || string(dec) != "data" {
		t.Fatalf("dec=%q err=%v", dec, err)
	}
}

func TestASCIIHexRoundTrip(t *testing.T) {
	plain := []byte{0x00, 0xDE, 0xAD, 0xBE, 0xEF, 0xFF}
	enc := ASCIIHexEncode(plain)
	if enc[len(enc)-1] != '>' {
		t.Fatal("missing terminator")
	}
	dec, err := Decode(enc, []string{"ASCIIHexDecode"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, plain) {
		t.Fatalf("got % x", dec)
	}
}

func TestASCIIHexOddDigits(t *testing.T) {
	dec, err := Decode([]byte("48656C6C6F2>"), []string{"AHx"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(dec) != "Hello " {
		t.Fatalf("got %q", dec)
	}
}

func TestASCII85(t *testing.T) {
	// "Man " encodes to the classic 9jqo^ example prefix.
	dec, err := Decode([]byte("9jqo^~>"), []string{"ASCII85Decode"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(dec) != "Man " {
		t.Fatalf("got %q", dec)
	}
	// z shorthand for four zero bytes.
	dec, err = Decode([]byte("z~>"), []string{"A85"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, []byte{0, 0, 0, 0}) {
		t.Fatalf("got % x", dec)
	}
}

func TestRunLength(t *testing.T) {
	// 2 literal bytes "ab", then 'c' repeated 4 times, then EOD.
	src := []byte{1, 'a', 'b', 253, 'c', 128}
	dec, err := Decode(src, []string{"RunLengthDecode"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(dec) != "abcccc" {
		t.Fatalf("got %q", dec)
	}
}

func TestChainedFilters(t *testing.T) {
	plain := []byte("chained payload")
	fl, err := FlateEncode(plain, 6)
	if err != nil {
		t.Fatal(err)
	}
	enc := ASCIIHexEncode(fl)
	dec, err := Decode(enc, []string{"ASCIIHexDecode", "FlateDecode"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dec, plain) {
		t.Fatalf("got %q", dec)
	}
}

func TestUnknownFilter(t *testing.T) {
	_, err := Decode([]byte("x"), []string{"LZWDecode"}, nil)
	if !errors.Is(err, ErrUnsupportedFilter) {
		t.Fatalf("got %v", err)
	}
}

func TestImageFilter(t *testing.T) {
	if !ImageFilter("DCTDecode") || ImageFilter("FlateDecode") {
		t.Fatal("image filter classification wrong")
	}
}
