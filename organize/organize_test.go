package organize_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/docsuite/pdfengine/contentstream"
	"github.com/docsuite/pdfengine/fonts"
	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/organize"
	"github.com/docsuite/pdfengine/pdferr"
)

// makeDoc builds a document whose page n shows "<tag>n", so page identity
// survives restructuring and can be read back via text extraction.
func makeDoc(tag string, pages int) *semantic.Document {
	doc := &semantic.Document{Version: "1.7", Dirty: true}
	for i := 1; i <= pages; i++ {
		page := &semantic.Page{
			MediaBox:  semantic.Rectangle{URX: 612, URY: 792},
			Resources: semantic.NewResources(),
		}
		page.Resources.Fonts["F0"] = fonts.Helvetica.Dict()
		page.Contents = []semantic.ContentStream{{Raw: []byte(
			fmt.Sprintf("BT /F0 12 Tf 72 720 Td (%s%d) Tj ET\n", tag, i))}}
		doc.Pages = append(doc.Pages, page)
	}
	return doc
}

func pageTexts(t *testing.T, doc *semantic.Document) []string {
	t.Helper()
	var out []string
	for _, page := range doc.Pages {
		text, err := contentstream.ExtractText(page.ContentBytes())
		if err != nil {
			t.Fatalf("ExtractText: %v", err)
		}
		out = append(out, text)
	}
	return out
}

func TestMergeConcatenates(t *testing.T) {
	a := makeDoc("A", 2)
	b := makeDoc("B", 3)
	merged, err := organize.Merge([]*semantic.Document{a, b})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"A1", "A2", "B1", "B2", "B3"}
	if diff := cmp.Diff(want, pageTexts(t, merged)); diff != "" {
		t.Fatalf("merged pages (-want +got):\n%s", diff)
	}
	if a.PageCount() != 2 || b.PageCount() != 3 {
		t.Fatal("merge mutated a source document")
	}

	// Imported pages share nothing with their source.
	merged.Pages[0].ReplaceContent([]byte("BT ET\n"))
	if got := pageTexts(t, a)[0]; got != "A1" {
		t.Fatalf("source page changed after mutating merged copy: %q", got)
	}
}

func TestMergeEmptyInput(t *testing.T) {
	if _, err := organize.Merge(nil); !errors.Is(err, pdferr.InvalidParameter) {
		t.Fatalf("got %v", err)
	}
}

func TestMergePreservesResourceNames(t *testing.T) {
	doc := makeDoc("A", 1)
	page := doc.Pages[0]
	page.Resources.Fonts["MyFace"] = fonts.Courier.Dict()
	delete(page.Resources.Fonts, "F0")
	content := []byte("BT /MyFace 12 Tf 72 720 Td (A1) Tj ET\n")
	page.Contents = []semantic.ContentStream{{Raw: content}}

	merged, err := organize.Merge([]*semantic.Document{doc})
	if err != nil {
		t.Fatal(err)
	}
	res := merged.Pages[0].Resources
	if _, ok := res.Fonts["MyFace"]; !ok {
		t.Fatalf("source resource name lost: %v", res.Fonts)
	}
	// No collision means no rewrite: the content stream is byte-identical.
	if got := merged.Pages[0].ContentBytes(); !bytes.Equal(got, content) {
		t.Fatalf("content changed:\n got %q\nwant %q", got, content)
	}
}

func TestMergeRenamesOnlyOnCollision(t *testing.T) {
	doc := makeDoc("A", 1)
	page := doc.Pages[0]
	// A font and an XObject fighting over one name. Names live in a single
	// namespace, so the later category must move.
	page.Resources.Fonts["Logo"] = fonts.Courier.Dict()
	delete(page.Resources.Fonts, "F0")
	logo := raw.Dict()
	logo.KV["Subtype"] = raw.NameLiteral("Image")
	page.Resources.XObjects["Logo"] = logo
	page.Contents = []semantic.ContentStream{{Raw: []byte(
		"BT /Logo 12 Tf 72 720 Td (A1) Tj ET\nq /Logo Do Q\n")}}

	merged, err := organize.Merge([]*semantic.Document{doc})
	if err != nil {
		t.Fatal(err)
	}
	res := merged.Pages[0].Resources
	if _, ok := res.Fonts["Logo"]; !ok {
		t.Fatalf("font kept its name: %v", res.Fonts)
	}
	if _, ok := res.XObjects["Im0"]; !ok {
		t.Fatalf("xobject not renamed: %v", res.XObjects)
	}
	ops, err := contentstream.Parse(merged.Pages[0].ContentBytes())
	if err != nil {
		t.Fatal(err)
	}
	for _, op := range ops {
		switch op.Operator {
		case "Tf":
			if n, ok := op.Operands[0].(raw.NameObj); !ok || n.Val != "Logo" {
				t.Fatalf("Tf operand %v", op.Operands[0])
			}
		case "Do":
			if n, ok := op.Operands[0].(raw.NameObj); !ok || n.Val != "Im0" {
				t.Fatalf("Do operand %v", op.Operands[0])
			}
		}
	}
}

func TestSplitByExplicitPages(t *testing.T) {
	doc := makeDoc("P", 3)
	parts, err := organize.Split(doc, organize.ByExplicitPages{2, 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d documents", len(parts))
	}
	if got := pageTexts(t, parts[0]); got[0] != "P2" || len(got) != 1 {
		t.Fatalf("first part %v", got)
	}
	if got := pageTexts(t, parts[1]); got[0] != "P1" || len(got) != 1 {
		t.Fatalf("second part %v", got)
	}
}

func TestSplitByRanges(t *testing.T) {
	doc := makeDoc("P", 5)
	ranges, err := organize.ParseRangeSpec("1-2,3-5")
	if err != nil {
		t.Fatal(err)
	}
	parts, err := organize.Split(doc, ranges)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d documents", len(parts))
	}
	if parts[0].PageCount() != 2 || parts[1].PageCount() != 3 {
		t.Fatalf("page counts %d and %d", parts[0].PageCount(), parts[1].PageCount())
	}
	if got := pageTexts(t, parts[1]); got[0] != "P3" {
		t.Fatalf("second part starts with %q", got[0])
	}
}

func TestSplitByEqualParts(t *testing.T) {
	doc := makeDoc("P", 5)
	parts, err := organize.Split(doc, organize.ByEqualParts(2))
	if err != nil {
		t.Fatal(err)
	}
	var sizes []int
	for _, part := range parts {
		sizes = append(sizes, part.PageCount())
	}
	if diff := cmp.Diff([]int{2, 2, 1}, sizes); diff != "" {
		t.Fatalf("chunk sizes (-want +got):\n%s", diff)
	}
}

func TestSplitBoundsNeverClamped(t *testing.T) {
	doc := makeDoc("P", 3)
	cases := []struct {
		name     string
		strategy organize.SplitStrategy
		want     error
	}{
		{"page zero", organize.ByExplicitPages{0}, pdferr.PageIndexOutOfRange},
		{"page past end", organize.ByExplicitPages{4}, pdferr.PageIndexOutOfRange},
		{"range past end", organize.ByRanges{{Start: 1, End: 9}}, pdferr.PageIndexOutOfRange},
		{"inverted range", organize.ByRanges{{Start: 3, End: 1}}, pdferr.PageIndexOutOfRange},
		{"zero chunk", organize.ByEqualParts(0), pdferr.InvalidParameter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := organize.Split(doc, tc.strategy); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSplitThenMergeIsIdentity(t *testing.T) {
	doc := makeDoc("P", 5)
	parts, err := organize.Split(doc, organize.ByEqualParts(2))
	if err != nil {
		t.Fatal(err)
	}
	merged, err := organize.Merge(parts)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(pageTexts(t, doc), pageTexts(t, merged)); diff != "" {
		t.Fatalf("split+merge changed page sequence (-want +got):\n%s", diff)
	}
}

func TestSplitThenMergeKeepsContentBytes(t *testing.T) {
	doc := makeDoc("P", 1)
	page := doc.Pages[0]
	page.Resources.Fonts["MyFace"] = fonts.Courier.Dict()
	delete(page.Resources.Fonts, "F0")
	content := []byte("BT /MyFace 12 Tf 72 720 Td (P1) Tj ET\n")
	page.Contents = []semantic.ContentStream{{Raw: content}}

	parts, err := organize.Split(doc, organize.ByEqualParts(1))
	if err != nil {
		t.Fatal(err)
	}
	merged, err := organize.Merge(parts)
	if err != nil {
		t.Fatal(err)
	}
	got := merged.Pages[0].ContentBytes()
	if !bytes.Equal(got, content) {
		t.Fatalf("content changed:\n got %q\nwant %q", got, content)
	}
	if _, ok := merged.Pages[0].Resources.Fonts["MyFace"]; !ok {
		t.Fatalf("font name lost: %v", merged.Pages[0].Resources.Fonts)
	}
}

func TestRearrange(t *testing.T) {
	doc := makeDoc("P", 3)
	if err := organize.Rearrange(doc, []int{3, 1, 2}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"P3", "P1", "P2"}, pageTexts(t, doc)); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
}

func TestRearrangeDuplicates(t *testing.T) {
	doc := makeDoc("P", 2)
	if err := organize.Rearrange(doc, []int{1, 1, 2}); err != nil {
		t.Fatal(err)
	}
	if doc.PageCount() != 3 {
		t.Fatalf("page count %d", doc.PageCount())
	}
	// The duplicate is an independent copy.
	doc.Pages[0].ReplaceContent([]byte("BT ET\n"))
	if got := pageTexts(t, doc)[1]; got != "P1" {
		t.Fatalf("second copy changed with the first: %q", got)
	}
}

func TestRearrangeBadIndex(t *testing.T) {
	doc := makeDoc("P", 3)
	if err := organize.Rearrange(doc, []int{1, 4}); !errors.Is(err, pdferr.PageIndexOutOfRange) {
		t.Fatalf("got %v", err)
	}
	if err := organize.Rearrange(doc, nil); !errors.Is(err, pdferr.InvalidParameter) {
		t.Fatalf("got %v", err)
	}
}

func TestExtract(t *testing.T) {
	doc := makeDoc("P", 5)
	out, err := organize.Extract(doc, []int{5, 1})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"P5", "P1"}, pageTexts(t, out)); diff != "" {
		t.Fatalf("extracted (-want +got):\n%s", diff)
	}
	if doc.PageCount() != 5 {
		t.Fatal("extract mutated the source")
	}
	if _, err := organize.Extract(doc, []int{6}); !errors.Is(err, pdferr.PageIndexOutOfRange) {
		t.Fatalf("got %v", err)
	}
}

func TestRotate(t *testing.T) {
	doc := makeDoc("P", 2)
	if err := organize.Rotate(doc, 90, nil); err != nil {
		t.Fatal(err)
	}
	for i, page := range doc.Pages {
		if page.Rotate != 90 {
			t.Fatalf("page %d rotate %d", i, page.Rotate)
		}
	}
	if err := organize.Rotate(doc, -90, []int{2}); err != nil {
		t.Fatal(err)
	}
	if doc.Pages[0].Rotate != 90 || doc.Pages[1].Rotate != 0 {
		t.Fatalf("rotations %d %d", doc.Pages[0].Rotate, doc.Pages[1].Rotate)
	}
	if err := organize.Rotate(doc, 45, nil); !errors.Is(err, pdferr.InvalidParameter) {
		t.Fatalf("got %v", err)
	}
}

func TestRotateFourTimesIsIdentity(t *testing.T) {
	doc := makeDoc("P", 1)
	for i := 0; i < 4; i++ {
		if err := organize.Rotate(doc, 90, nil); err != nil {
			t.Fatal(err)
		}
	}
	if doc.Pages[0].Rotate != 0 {
		t.Fatalf("rotate %d after four quarter turns", doc.Pages[0].Rotate)
	}
}

func TestRemovePages(t *testing.T) {
	doc := makeDoc("P", 5)
	if err := organize.RemovePages(doc, []int{4, 2}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"P1", "P3", "P5"}, pageTexts(t, doc)); diff != "" {
		t.Fatalf("pages (-want +got):\n%s", diff)
	}
}

func TestRemovePagesErrors(t *testing.T) {
	doc := makeDoc("P", 2)
	if err := organize.RemovePages(doc, []int{1, 2}); !errors.Is(err, pdferr.InvalidParameter) {
		t.Fatalf("remove all: %v", err)
	}
	if err := organize.RemovePages(doc, []int{3}); !errors.Is(err, pdferr.PageIndexOutOfRange) {
		t.Fatalf("out of range: %v", err)
	}
	if err := organize.RemovePages(doc, nil); !errors.Is(err, pdferr.InvalidParameter) {
		t.Fatalf("empty list: %v", err)
	}
}

func TestParseRangeSpec(t *testing.T) {
	cases := []struct {
		spec    string
		want    organize.ByRanges
		wantErr bool
	}{
		{spec: "1-2,3-5", want: organize.ByRanges{{Start: 1, End: 2}, {Start: 3, End: 5}}},
		{spec: "3", want: organize.ByRanges{{Start: 3, End: 3}}},
		{spec: " 1 - 2 , 4 ", want: organize.ByRanges{{Start: 1, End: 2}, {Start: 4, End: 4}}},
		{spec: "2-", wantErr: true},
		{spec: "a-b", wantErr: true},
		{spec: "", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.spec, func(t *testing.T) {
			got, err := organize.ParseRangeSpec(tc.spec)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parsed %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("ranges (-want +got):\n%s", diff)
			}
		})
	}
}
