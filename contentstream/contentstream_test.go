package contentstream

import (
	"strings"
	"testing"
)

func TestParseAndSerializeRoundTrip(t *testing.T) {
	src := []byte("q\n1 0 0 1 100 200 cm\n0.5 0.5 0.5 rg\nBT\n/F0 12 Tf\n(Hello) Tj\nET\nQ\n")
	ops, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	wantOps := []string{"q", "cm", "rg", "BT", "Tf", "Tj", "ET", "Q"}
	if len(ops) != len(wantOps) {
		t.Fatalf("got %d ops, want %d", len(ops), len(wantOps))
	}
	for i, w := range wantOps {
		if ops[i].Operator != w {
			t.Errorf("op %d: got %q, want %q", i, ops[i].Operator, w)
		}
	}
	out := Serialize(ops)
	reops, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(reops) != len(ops) {
		t.Fatalf("reparse: got %d ops, want %d", len(reops), len(ops))
	}
}

func TestParseTJArray(t *testing.T) {
	ops, err := Parse([]byte("BT [(He) -20 (llo)] TJ ET"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ops) != 3 || ops[1].Operator != "TJ" {
		t.Fatalf("ops: %+v", ops)
	}
	if got := shownText(ops[1]); got != "Hello" {
		t.Errorf("shown text: got %q", got)
	}
}

func TestParseInlineImage(t *testing.T) {
	src := []byte("q BI /W 1 /H 1 ID \x00\x01\x02 EI Q")
	ops, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("got %d ops", len(ops))
	}
	if ops[1].Operator != "BI" || len(ops[1].Inline) == 0 {
		t.Fatalf("inline image op: %+v", ops[1])
	}
}

func TestExtractText(t *testing.T) {
	src := []byte("BT /F0 12 Tf 72 700 Td (First line) Tj 0 -14 Td (Second line) Tj ET")
	got, err := ExtractText(src)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	want := "First line\nSecond line"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractTextWithTm(t *testing.T) {
	src := []byte("BT /F0 10 Tf 1 0 0 1 50 500 Tm (positioned) Tj ET")
	got, err := ExtractText(src)
	if err != nil {
		t.Fatal(err)
	}
	if got != "positioned" {
		t.Errorf("got %q", got)
	}
}

func TestStripTextInRegion(t *testing.T) {
	src := []byte("BT /F0 12 Tf 72 700 Td (secret) Tj 0 -200 Td (public) Tj ET")

	out, removed, err := StripTextInRegion(src, 0, 650, 612, 750)
	if err != nil {
		t.Fatalf("StripTextInRegion: %v", err)
	}
	if !removed {
		t.Fatal("expected removal")
	}
	text, err := ExtractText(out)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(text, "secret") {
		t.Errorf("redacted text still present: %q", text)
	}
	if !strings.Contains(text, "public") {
		t.Errorf("unrelated text removed: %q", text)
	}
}

func TestStripTextInRegionNoMatch(t *testing.T) {
	src := []byte("BT 72 700 Td (keep) Tj ET")
	out, removed, err := StripTextInRegion(src, 0, 0, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Fatal("nothing should have been removed")
	}
	if string(out) != string(src) {
		t.Error("stream modified without removal")
	}
}

func TestSerializeStringEscaping(t *testing.T) {
	ops, err := Parse([]byte(`(a\(b\)) Tj`))
	if err != nil {
		t.Fatal(err)
	}
	out := Serialize(ops)
	reops, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse escaped string: %v", err)
	}
	if got := shownText(reops[0]); got != "a(b)" {
		t.Errorf("got %q", got)
	}
}
