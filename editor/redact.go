package editor

import (
	"fmt"

	"github.com/docsuite/pdfengine/contentstream"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/pdferr"
)

// Redact removes the content shown inside each rectangle from the page's
// content stream, then paints an opaque black cover over the area. The text
// is gone from the stream, not hidden under the box, so extraction after
// redaction cannot recover it.
func Redact(doc *semantic.Document, pageIdx int, rects []semantic.Rectangle) error {
	page, err := checkPage(doc, pageIdx)
	if err != nil {
		return err
	}
	if len(rects) == 0 {
		return fmt.Errorf("%w: no redaction rectangles", pdferr.InvalidParameter)
	}
	for _, r := range rects {
		if !r.Valid() {
			return fmt.Errorf("%w: degenerate redaction rectangle %+v", pdferr.InvalidParameter, r)
		}
	}

	content := page.ContentBytes()
	for _, r := range rects {
		stripped, changed, err := contentstream.StripTextInRegion(content, r.LLX, r.LLY, r.URX, r.URY)
		if err != nil {
			return fmt.Errorf("redact page %d: %w", pageIdx, err)
		}
		if changed {
			content = stripped
		}
	}
	page.ReplaceContent(content)

	cover := make([]contentstream.Operation, 0, 2+2*len(rects))
	cover = append(cover, op("q"), op("rg", num(0), num(0), num(0)))
	for _, r := range rects {
		cover = append(cover,
			op("re", num(r.LLX), num(r.LLY), num(r.Width()), num(r.Height())),
			op("f"))
	}
	cover = append(cover, op("Q"))
	appendOps(doc, page, cover)
	return nil
}
