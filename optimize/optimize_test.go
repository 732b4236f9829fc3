package optimize_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/docsuite/pdfengine/contentstream"
	"github.com/docsuite/pdfengine/fonts"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/optimize"
	"github.com/docsuite/pdfengine/parser"
	"github.com/docsuite/pdfengine/pdferr"
	"github.com/docsuite/pdfengine/writer"
)

// fixture builds an uncompressed document with enough repetitive content
// that flate has something to chew on.
func fixture(t *testing.T, pages int) []byte {
	t.Helper()
	doc := &semantic.Document{Version: "1.7"}
	for i := 0; i < pages; i++ {
		page := &semantic.Page{
			MediaBox:  semantic.Rectangle{URX: 612, URY: 792},
			Resources: semantic.NewResources(),
		}
		page.Resources.Fonts["F0"] = fonts.Helvetica.Dict()
		var content strings.Builder
		for line := 0; line < 40; line++ {
			fmt.Fprintf(&content, "BT /F0 10 Tf 72 %d Td (repeated line of body text %d) Tj ET\n", 760-line*14, i+1)
		}
		page.Contents = []semantic.ContentStream{{Raw: []byte(content.String())}}
		doc.Pages = append(doc.Pages, page)
	}
	out, err := writer.Serialize(context.Background(), doc, writer.Options{Mode: writer.ModeFullRewrite})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestCompressShrinksAndReloads(t *testing.T) {
	data := fixture(t, 3)
	out, stats, err := optimize.Compress(context.Background(), data, optimize.High, optimize.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.OriginalSize != len(data) || stats.CompressedSize != len(out) {
		t.Fatalf("stats %+v", stats)
	}
	if stats.CompressedSize >= stats.OriginalSize {
		t.Fatalf("no size win: %d -> %d", stats.OriginalSize, stats.CompressedSize)
	}
	if stats.RatioPercent <= 0 {
		t.Fatalf("ratio %v", stats.RatioPercent)
	}

	doc, err := parser.Load(context.Background(), out, parser.Options{})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if doc.PageCount() != 3 {
		t.Fatalf("pages %d", doc.PageCount())
	}
	text, err := contentstream.ExtractText(doc.Pages[0].ContentBytes())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "repeated line of body text 1") {
		t.Fatalf("content lost: %q", text)
	}
}

func TestCompressLevels(t *testing.T) {
	data := fixture(t, 2)
	for _, level := range []optimize.Level{optimize.Low, optimize.Medium, optimize.High, optimize.Maximum} {
		t.Run(string(level), func(t *testing.T) {
			out, stats, err := optimize.Compress(context.Background(), data, level, optimize.Options{})
			if err != nil {
				t.Fatal(err)
			}
			if len(out) == 0 {
				t.Fatal("empty output")
			}
			if stats.OriginalSize != len(data) {
				t.Fatalf("stats %+v", stats)
			}
			if _, err := parser.Load(context.Background(), out, parser.Options{}); err != nil {
				t.Fatalf("reload: %v", err)
			}
		})
	}
}

func TestMaximumIsASCIISafe(t *testing.T) {
	data := fixture(t, 1)
	out, _, err := optimize.Compress(context.Background(), data, optimize.Maximum, optimize.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(out, []byte("ASCIIHexDecode")) {
		t.Fatal("maximum profile did not hex-armor streams")
	}
}

func TestNegativeRatioNotClamped(t *testing.T) {
	// A tiny file grows under the maximum profile's hex armor.
	doc := &semantic.Document{Version: "1.7"}
	doc.Pages = []*semantic.Page{{
		MediaBox:  semantic.Rectangle{URX: 612, URY: 792},
		Resources: semantic.NewResources(),
	}}
	doc.Pages[0].Contents = []semantic.ContentStream{{Raw: []byte("q Q\n")}}
	data, err := writer.Serialize(context.Background(), doc, writer.Options{Mode: writer.ModeFullRewrite})
	if err != nil {
		t.Fatal(err)
	}
	_, stats, err := optimize.Compress(context.Background(), data, optimize.Maximum, optimize.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if stats.RatioPercent >= 0 {
		t.Fatalf("expected negative ratio, got %v", stats.RatioPercent)
	}
}

func TestCompressErrors(t *testing.T) {
	if _, _, err := optimize.Compress(context.Background(), nil, optimize.Medium, optimize.Options{}); !errors.Is(err, pdferr.InvalidParameter) {
		t.Fatalf("empty input: %v", err)
	}
	if _, _, err := optimize.Compress(context.Background(), fixture(t, 1), optimize.Level("extreme"), optimize.Options{}); !errors.Is(err, pdferr.InvalidParameter) {
		t.Fatalf("bad level: %v", err)
	}
	if _, _, err := optimize.Compress(context.Background(), []byte("not a pdf"), optimize.Medium, optimize.Options{}); !errors.Is(err, pdferr.CorruptDocument) {
		t.Fatalf("garbage: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"low", "medium", "high", "maximum"} {
		if _, err := optimize.ParseLevel(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	if _, err := optimize.ParseLevel("ultra"); !errors.Is(err, pdferr.InvalidParameter) {
		t.Fatalf("got %v", err)
	}
}
