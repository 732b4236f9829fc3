package convert

import (
	"fmt"
	"strings"

	"github.com/docsuite/pdfengine/color"
	"github.com/docsuite/pdfengine/contentstream"
	"github.com/docsuite/pdfengine/editor"
	"github.com/docsuite/pdfengine/fonts"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/pdferr"
)

// Letter-size pages with one-inch margins for all generated documents.
const (
	pageWidth  = 612.0
	pageHeight = 792.0
	pageMargin = 72.0

	bodyFontSize = 12.0
	lineSpacing  = 1.5
	listIndent   = 15.0
)

// ExtractPages returns the plain text of every page in order. Pages without
// text yield empty strings, so the slice length always equals the page count.
func ExtractPages(doc *semantic.Document) ([]string, error) {
	out := make([]string, len(doc.Pages))
	for i, page := range doc.Pages {
		text, err := contentstream.ExtractText(page.ContentBytes())
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		out[i] = text
	}
	return out, nil
}

// TextToPDF lays a plain-text block out onto as many letter-size pages as it
// needs. Blank lines separate paragraphs; long lines wrap at the margin using
// the face's real advance widths.
func TextToPDF(text string) (*semantic.Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", pdferr.InvalidParameter)
	}
	f := newFlow()
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			f.space(bodyFontSize)
			continue
		}
		if err := f.writeWrapped(line, bodyFontSize, 0); err != nil {
			return nil, err
		}
	}
	return f.doc, nil
}

// flow is a minimal top-down layout cursor over a growing document. It only
// knows how to place left-aligned lines and advance the baseline; anything
// smarter belongs in a caller.
type flow struct {
	doc *semantic.Document
	y   float64
}

func newFlow() *flow {
	f := &flow{doc: &semantic.Document{Version: "1.7"}}
	f.addPage()
	return f
}

func (f *flow) addPage() {
	f.doc.Pages = append(f.doc.Pages, &semantic.Page{
		MediaBox:  semantic.Rectangle{URX: pageWidth, URY: pageHeight},
		Resources: semantic.NewResources(),
	})
	f.y = pageHeight - pageMargin
}

// space advances the cursor without drawing, for paragraph gaps.
func (f *flow) space(size float64) {
	f.y -= size * lineSpacing
}

// writeLine places one already-wrapped line and advances the baseline,
// breaking to a new page when the line would cross the bottom margin.
func (f *flow) writeLine(line string, size, indent float64) error {
	if f.y-size < pageMargin {
		f.addPage()
	}
	err := editor.InsertText(f.doc, len(f.doc.Pages)-1, line,
		pageMargin+indent, f.y-size, size, color.RGB{})
	if err != nil {
		return err
	}
	f.y -= size * lineSpacing
	return nil
}

// writeWrapped splits text into margin-fitting lines and writes each one.
func (f *flow) writeWrapped(text string, size, indent float64) error {
	for _, line := range wrap(text, size, pageWidth-2*pageMargin-indent) {
		if err := f.writeLine(line, size, indent); err != nil {
			return err
		}
	}
	return nil
}

// wrap greedily packs words into lines no wider than maxWidth, measured with
// the default face's metrics. A single over-long word still gets its own line.
func wrap(text string, size, maxWidth float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if fonts.Helvetica.Width(candidate, size) <= maxWidth {
			current = candidate
			continue
		}
		lines = append(lines, current)
		current = word
	}
	return append(lines, current)
}
