package writer_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/docsuite/pdfengine/color"
	"github.com/docsuite/pdfengine/contentstream"
	"github.com/docsuite/pdfengine/fonts"
	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/parser"
	"github.com/docsuite/pdfengine/pdferr"
	"github.com/docsuite/pdfengine/security"
	"github.com/docsuite/pdfengine/writer"
)

func testDoc(pages int) *semantic.Document {
	doc := &semantic.Document{
		Info:    semantic.DocumentInfo{Title: "fixture", Producer: "pdfengine"},
		Version: "1.7",
	}
	for i := 0; i < pages; i++ {
		page := &semantic.Page{
			MediaBox:  semantic.Rectangle{URX: 612, URY: 792},
			Resources: semantic.NewResources(),
		}
		page.Resources.Fonts["F0"] = fonts.Helvetica.Dict()
		content := fmt.Sprintf("BT /F0 12 Tf 72 720 Td (Page %d) Tj ET\n", i+1)
		page.Contents = []semantic.ContentStream{{Raw: []byte(content)}}
		doc.Pages = append(doc.Pages, page)
	}
	return doc
}

func pageText(t *testing.T, page *semantic.Page) string {
	t.Helper()
	text, err := contentstream.ExtractText(page.ContentBytes())
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	return text
}

func TestSerializeAndReload(t *testing.T) {
	out, err := writer.Serialize(context.Background(), testDoc(3), writer.Options{Mode: writer.ModeFullRewrite})
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-1.7")) {
		t.Fatal("missing header")
	}
	doc, err := parser.Load(context.Background(), out, parser.Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.PageCount() != 3 {
		t.Fatalf("page count %d", doc.PageCount())
	}
	if doc.Pages[1].MediaBox.Width() != 612 {
		t.Fatalf("media box %+v", doc.Pages[1].MediaBox)
	}
	if got := pageText(t, doc.Pages[1]); got != "Page 2" {
		t.Fatalf("page text %q", got)
	}
	if doc.Info.Title != "fixture" {
		t.Fatalf("info %+v", doc.Info)
	}
}

func TestCompressedOutputReloads(t *testing.T) {
	plain, err := writer.Serialize(context.Background(), testDoc(1), writer.Options{Mode: writer.ModeFullRewrite})
	if err != nil {
		t.Fatal(err)
	}
	compressed, err := writer.Serialize(context.Background(), testDoc(1), writer.Options{
		Mode: writer.ModeFullRewrite, Compress: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(compressed, []byte("FlateDecode")) {
		t.Fatal("no flate filter in compressed output")
	}
	doc, err := parser.Load(context.Background(), compressed, parser.Options{})
	if err != nil {
		t.Fatalf("Load compressed: %v", err)
	}
	if got := pageText(t, doc.Pages[0]); got != "Page 1" {
		t.Fatalf("text %q", got)
	}
	_ = plain
}

func TestDeterministicOutput(t *testing.T) {
	a, err := writer.Serialize(context.Background(), testDoc(2), writer.Options{Mode: writer.ModeFullRewrite})
	if err != nil {
		t.Fatal(err)
	}
	b, err := writer.Serialize(context.Background(), testDoc(2), writer.Options{Mode: writer.ModeFullRewrite})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("identical documents serialized differently")
	}
}

func TestVerbatimWhenUnchanged(t *testing.T) {
	out, err := writer.Serialize(context.Background(), testDoc(2), writer.Options{Mode: writer.ModeFullRewrite})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := parser.Load(context.Background(), out, parser.Options{})
	if err != nil {
		t.Fatal(err)
	}
	again, err := writer.Serialize(context.Background(), doc, writer.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, again) {
		t.Fatal("unchanged document was rewritten")
	}
}

func TestIncrementalUpdateAppends(t *testing.T) {
	out, err := writer.Serialize(context.Background(), testDoc(2), writer.Options{Mode: writer.ModeFullRewrite})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := parser.Load(context.Background(), out, parser.Options{})
	if err != nil {
		t.Fatal(err)
	}
	doc.Pages[0].AppendContent([]byte("BT /F0 12 Tf 72 600 Td (Added) Tj ET\n"))
	doc.Dirty = true

	updated, err := writer.Serialize(context.Background(), doc, writer.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(updated, out) {
		t.Fatal("incremental update does not preserve original bytes")
	}
	re, err := parser.Load(context.Background(), updated, parser.Options{})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := pageText(t, re.Pages[0]); !strings.Contains(got, "Added") {
		t.Fatalf("text %q", got)
	}
	if got := pageText(t, re.Pages[1]); got != "Page 2" {
		t.Fatalf("untouched page text %q", got)
	}
}

func TestIncrementalUpdateReportsResourceWriteFailure(t *testing.T) {
	out, err := writer.Serialize(context.Background(), testDoc(1), writer.Options{Mode: writer.ModeFullRewrite})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := parser.Load(context.Background(), out, parser.Options{})
	if err != nil {
		t.Fatal(err)
	}
	doc.Pages[0].AppendContent([]byte("BT /F0 12 Tf 72 600 Td (Added) Tj ET\n"))
	doc.Pages[0].Resources.Fonts["Broken"] = nil
	doc.Dirty = true

	if _, err := writer.Serialize(context.Background(), doc, writer.Options{}); err == nil {
		t.Fatal("unserializable resource object written without error")
	}
}

func TestStructuralChangeForcesRewrite(t *testing.T) {
	out, err := writer.Serialize(context.Background(), testDoc(3), writer.Options{Mode: writer.ModeFullRewrite})
	if err != nil {
		t.Fatal(err)
	}
	doc, err := parser.Load(context.Background(), out, parser.Options{})
	if err != nil {
		t.Fatal(err)
	}
	// Dropping a page breaks page identity, so auto mode must rewrite.
	doc.Pages = doc.Pages[:2]
	doc.Dirty = true
	updated, err := writer.Serialize(context.Background(), doc, writer.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if bytes.HasPrefix(updated, out) {
		t.Fatal("structural change serialized incrementally")
	}
	re, err := parser.Load(context.Background(), updated, parser.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if re.PageCount() != 2 {
		t.Fatalf("page count %d", re.PageCount())
	}
}

func TestAnnotationsRoundTrip(t *testing.T) {
	doc := testDoc(1)
	doc.Pages[0].Annotations = []semantic.Annotation{
		semantic.Highlight{
			Rect:  semantic.Rectangle{LLX: 70, LLY: 700, URX: 200, URY: 730},
			Color: color.RGB{R: 1, G: 1},
		},
		semantic.Note{At: semantic.Point{X: 50, Y: 500}, Text: "review this", Icon: "Comment"},
		semantic.Square{
			Rect:   semantic.Rectangle{LLX: 100, LLY: 100, URX: 300, URY: 200},
			Stroke: color.RGB{R: 1},
		},
	}
	out, err := writer.Serialize(context.Background(), doc, writer.Options{Mode: writer.ModeFullRewrite})
	if err != nil {
		t.Fatal(err)
	}
	re, err := parser.Load(context.Background(), out, parser.Options{})
	if err != nil {
		t.Fatal(err)
	}
	annots := re.Pages[0].Annotations
	if len(annots) != 3 {
		t.Fatalf("got %d annotations", len(annots))
	}
	hl, ok := annots[0].(semantic.Highlight)
	if !ok {
		t.Fatalf("annotation 0: %T", annots[0])
	}
	if hl.Rect.LLX != 70 || hl.Rect.URY != 730 {
		t.Fatalf("highlight rect %+v", hl.Rect)
	}
	note, ok := annots[1].(semantic.Note)
	if !ok || note.Text != "review this" || note.Icon != "Comment" {
		t.Fatalf("note: %+v", annots[1])
	}
	if _, ok := annots[2].(semantic.Square); !ok {
		t.Fatalf("annotation 2: %T", annots[2])
	}
}

func TestEncryptionRoundTrip(t *testing.T) {
	for _, method := range []semantic.EncryptionMethod{
		semantic.EncryptRC4128, semantic.EncryptAES128, semantic.EncryptAES256,
	} {
		t.Run(string(method), func(t *testing.T) {
			doc := testDoc(1)
			if err := security.Protect(doc, security.ProtectOptions{
				UserPassword: "letmein",
				Method:       method,
				Permissions:  raw.AllPermissions(),
			}); err != nil {
				t.Fatal(err)
			}
			out, err := writer.Serialize(context.Background(), doc, writer.Options{Mode: writer.ModeFullRewrite})
			if err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			if bytes.Contains(out, []byte("Page 1")) {
				t.Fatal("plaintext content leaked into encrypted output")
			}

			if _, err := parser.Load(context.Background(), out, parser.Options{}); !errors.Is(err, pdferr.EncryptedWithoutPassword) {
				t.Fatalf("no password: %v", err)
			}
			if _, err := parser.Load(context.Background(), out, parser.Options{Password: "nope"}); !errors.Is(err, pdferr.IncorrectPassword) {
				t.Fatalf("wrong password: %v", err)
			}
			re, err := parser.Load(context.Background(), out, parser.Options{Password: "letmein"})
			if err != nil {
				t.Fatalf("right password: %v", err)
			}
			if got := pageText(t, re.Pages[0]); got != "Page 1" {
				t.Fatalf("text %q", got)
			}
			if re.Encryption == nil || re.Encryption.Method != method {
				t.Fatalf("encryption state: %+v", re.Encryption)
			}
		})
	}
}

func TestRotationSurvives(t *testing.T) {
	doc := testDoc(1)
	doc.Pages[0].SetRotation(90)
	out, err := writer.Serialize(context.Background(), doc, writer.Options{Mode: writer.ModeFullRewrite})
	if err != nil {
		t.Fatal(err)
	}
	re, err := parser.Load(context.Background(), out, parser.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if re.Pages[0].Rotate != 90 {
		t.Fatalf("rotate %d", re.Pages[0].Rotate)
	}
}
