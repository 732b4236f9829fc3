// Package editor applies page-level mutations to a semantic document:
// text and image insertion, watermarks, page numbers, stamps, annotations
// and redaction. Every operation mutates the document in place and marks
// the touched pages dirty; serialization is the writer's job.
//
// Page indices are zero-based. Any index outside [0, PageCount) fails with
// pdferr.PageIndexOutOfRange.
package editor

import (
	"fmt"
	"math"
	"strings"

	"github.com/docsuite/pdfengine/color"
	"github.com/docsuite/pdfengine/contentstream"
	"github.com/docsuite/pdfengine/fonts"
	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/pdferr"
)

// lineHeightFactor is the baseline advance per text line, relative to the
// font size. Multi-line insertions step down by fontSize*1.2.
const lineHeightFactor = 1.2

func checkPage(doc *semantic.Document, pageIdx int) (*semantic.Page, error) {
	if pageIdx < 0 || pageIdx >= doc.PageCount() {
		return nil, fmt.Errorf("%w: page %d of %d", pdferr.PageIndexOutOfRange, pageIdx, doc.PageCount())
	}
	return doc.Pages[pageIdx], nil
}

// ensureFont registers font under the page's resources if no entry for its
// base font exists yet, and returns the resource name to select it with.
func ensureFont(page *semantic.Page, font *fonts.Font) string {
	if page.Resources == nil {
		page.Resources = semantic.NewResources()
	}
	for name, obj := range page.Resources.Fonts {
		if dict, ok := obj.(*raw.DictObj); ok {
			if base, _ := raw.DictGetName(dict, "BaseFont"); base == font.BaseFont {
				return name
			}
		}
	}
	name := page.Resources.FreshName("F")
	page.Resources.Fonts[name] = font.Dict()
	return name
}

func appendOps(doc *semantic.Document, page *semantic.Page, ops []contentstream.Operation) {
	page.AppendContent(contentstream.Serialize(ops))
	doc.Dirty = true
}

func num(v float64) raw.Object { return raw.NumberFloat(v) }
func name(s string) raw.Object { return raw.NameLiteral(s) }
func str(s string) raw.Object  { return raw.Str([]byte(s)) }

func op(operator string, operands ...raw.Object) contentstream.Operation {
	return contentstream.Operation{Operator: operator, Operands: operands}
}

// textOps emits a text block at (x, y), one show per line, stepping the
// baseline down by the line-height policy. renderMode 3 makes the text
// invisible (used for OCR layers); 0 is normal fill.
func textOps(fontName, text string, x, y, fontSize float64, col color.RGB, renderMode int) []contentstream.Operation {
	ops := []contentstream.Operation{
		op("q"),
		op("BT"),
		op("Tf", name(fontName), num(fontSize)),
	}
	if renderMode != 0 {
		ops = append(ops, op("Tr", raw.NumberInt(int64(renderMode))))
	} else {
		ops = append(ops, op("rg", num(col.R), num(col.G), num(col.B)))
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		baseline := y - float64(i)*fontSize*lineHeightFactor
		ops = append(ops, op("Tm", num(1), num(0), num(0), num(1), num(x), num(baseline)))
		ops = append(ops, op("Tj", str(line)))
	}
	ops = append(ops, op("ET"), op("Q"))
	return ops
}

// InsertText draws text at the given baseline position without reflowing
// existing content. Newlines split the text into separate lines advanced by
// fontSize*1.2.
func InsertText(doc *semantic.Document, pageIdx int, text string, x, y, fontSize float64, col color.RGB) error {
	page, err := checkPage(doc, pageIdx)
	if err != nil {
		return err
	}
	if text == "" {
		return fmt.Errorf("%w: empty text", pdferr.InvalidParameter)
	}
	if fontSize <= 0 {
		return fmt.Errorf("%w: font size %g", pdferr.InvalidParameter, fontSize)
	}
	fontName := ensureFont(page, fonts.Helvetica)
	appendOps(doc, page, textOps(fontName, text, x, y, fontSize, col, 0))
	return nil
}

// AddTextLayer draws text in render mode 3 (no fill, no stroke), making it
// selectable and searchable but invisible. OCR results are embedded this way.
func AddTextLayer(doc *semantic.Document, pageIdx int, text string, x, y, fontSize float64) error {
	page, err := checkPage(doc, pageIdx)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	if fontSize <= 0 {
		return fmt.Errorf("%w: font size %g", pdferr.InvalidParameter, fontSize)
	}
	fontName := ensureFont(page, fonts.Helvetica)
	appendOps(doc, page, textOps(fontName, text, x, y, fontSize, color.RGB{}, 3))
	return nil
}

// AddWatermark centers text on the selected pages (all pages when indices is
// empty), rotated about the page center. Opacity is real transparency via an
// ExtGState with /CA and /ca, not a lightened fill color.
func AddWatermark(doc *semantic.Document, pageIndices []int, text string, opacity, fontSize, rotationDegrees float64) error {
	if text == "" {
		return fmt.Errorf("%w: empty watermark text", pdferr.InvalidParameter)
	}
	if opacity <= 0 || opacity > 1 {
		return fmt.Errorf("%w: opacity %g outside (0, 1]", pdferr.InvalidParameter, opacity)
	}
	if fontSize <= 0 {
		return fmt.Errorf("%w: font size %g", pdferr.InvalidParameter, fontSize)
	}
	if len(pageIndices) == 0 {
		pageIndices = make([]int, doc.PageCount())
		for i := range pageIndices {
			pageIndices[i] = i
		}
	}
	for _, idx := range pageIndices {
		page, err := checkPage(doc, idx)
		if err != nil {
			return err
		}
		fontName := ensureFont(page, fonts.HelveticaBold)

		gs := raw.Dict()
		gs.Set("Type", raw.NameLiteral("ExtGState"))
		gs.Set("CA", raw.NumberFloat(opacity))
		gs.Set("ca", raw.NumberFloat(opacity))
		gsName := page.Resources.FreshName("GS")
		page.Resources.ExtGStates[gsName] = gs

		cx := page.MediaBox.LLX + page.MediaBox.Width()/2
		cy := page.MediaBox.LLY + page.MediaBox.Height()/2
		rad := rotationDegrees * math.Pi / 180
		cos, sin := math.Cos(rad), math.Sin(rad)
		halfWidth := fonts.HelveticaBold.Width(text, fontSize) / 2

		ops := []contentstream.Operation{
			op("q"),
			op("gs", name(gsName)),
			op("BT"),
			op("rg", num(0.5), num(0.5), num(0.5)),
			op("Tf", name(fontName), num(fontSize)),
			// Rotate text space about the page center, then back the pen up
			// half the string width so the text is centered on it.
			op("Tm", num(cos), num(sin), num(-sin), num(cos), num(cx), num(cy)),
			op("Td", num(-halfWidth), num(0)),
			op("Tj", str(text)),
			op("ET"),
			op("Q"),
		}
		appendOps(doc, page, ops)
	}
	return nil
}

// Anchor is a page-number position.
type Anchor string

const (
	BottomLeft   Anchor = "bottom-left"
	BottomCenter Anchor = "bottom-center"
	BottomRight  Anchor = "bottom-right"
	TopLeft      Anchor = "top-left"
	TopRight     Anchor = "top-right"
)

// pageNumberMargin keeps numbers clear of the trim edge.
const pageNumberMargin = 36.0

// AddPageNumbers stamps sequential numbers on every page at one of the five
// fixed anchors. The first page gets startNumber.
func AddPageNumbers(doc *semantic.Document, position Anchor, fontSize float64, startNumber int) error {
	switch position {
	case BottomLeft, BottomCenter, BottomRight, TopLeft, TopRight:
	default:
		return fmt.Errorf("%w: unknown page number position %q", pdferr.InvalidParameter, position)
	}
	if fontSize <= 0 {
		return fmt.Errorf("%w: font size %g", pdferr.InvalidParameter, fontSize)
	}
	for i, page := range doc.Pages {
		label := fmt.Sprintf("%d", startNumber+i)
		width := fonts.Helvetica.Width(label, fontSize)
		var x, y float64
		switch position {
		case BottomLeft:
			x, y = page.MediaBox.LLX+pageNumberMargin, page.MediaBox.LLY+pageNumberMargin
		case BottomCenter:
			x, y = page.MediaBox.LLX+(page.MediaBox.Width()-width)/2, page.MediaBox.LLY+pageNumberMargin
		case BottomRight:
			x, y = page.MediaBox.URX-pageNumberMargin-width, page.MediaBox.LLY+pageNumberMargin
		case TopLeft:
			x, y = page.MediaBox.LLX+pageNumberMargin, page.MediaBox.URY-pageNumberMargin-fontSize
		case TopRight:
			x, y = page.MediaBox.URX-pageNumberMargin-width, page.MediaBox.URY-pageNumberMargin-fontSize
		}
		fontName := ensureFont(page, fonts.Helvetica)
		appendOps(doc, page, textOps(fontName, label, x, y, fontSize, color.RGB{}, 0))
	}
	return nil
}

// stampPadding is the gap between stamp text and its border.
const stampPadding = 6.0

// AddStamp draws bordered text directly into the page content. Stamps are
// content, not annotation objects, so they survive annotation flattening and
// print everywhere.
func AddStamp(doc *semantic.Document, pageIdx int, text string, x, y, fontSize float64, col color.RGB) error {
	page, err := checkPage(doc, pageIdx)
	if err != nil {
		return err
	}
	if text == "" {
		return fmt.Errorf("%w: empty stamp text", pdferr.InvalidParameter)
	}
	if fontSize <= 0 {
		return fmt.Errorf("%w: font size %g", pdferr.InvalidParameter, fontSize)
	}
	width := fonts.HelveticaBold.Width(text, fontSize)
	fontName := ensureFont(page, fonts.HelveticaBold)
	ops := []contentstream.Operation{
		op("q"),
		op("RG", num(col.R), num(col.G), num(col.B)),
		op("w", num(1.5)),
		op("re",
			num(x-stampPadding), num(y-stampPadding),
			num(width+2*stampPadding), num(fontSize+2*stampPadding)),
		op("S"),
	}
	ops = append(ops, textOps(fontName, text, x, y, fontSize, col, 0)...)
	ops = append(ops, op("Q"))
	appendOps(doc, page, ops)
	return nil
}
