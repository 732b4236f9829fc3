// Package render rasterizes pages to RGBA previews. Output is a pure
// function of (document, page, scale): the same inputs produce the same
// pixels, which lets before/after comparisons work byte for byte.
//
// Fidelity is preview-grade. Vector paths and rectangles draw exactly;
// text uses a fixed bitmap face at the glyph anchor, not the embedded font;
// images draw as framed placeholders. Nothing here mutates the document, so
// renders may run concurrently with reads.
package render

import (
	"fmt"
	"image"
	imgcolor "image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/docsuite/pdfengine/color"
	"github.com/docsuite/pdfengine/contentstream"
	"github.com/docsuite/pdfengine/coords"
	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/pdferr"
)

// Overlay is a mutation applied to a private copy of the document before a
// preview render. The original document is never touched.
type Overlay func(*semantic.Document) error

// RenderPage rasterizes one page at the given scale (1.0 = 72 dpi).
func RenderPage(doc *semantic.Document, pageIdx int, scale float64) (*image.RGBA, error) {
	if pageIdx < 0 || pageIdx >= doc.PageCount() {
		return nil, fmt.Errorf("%w: page %d of %d", pdferr.PageIndexOutOfRange, pageIdx, doc.PageCount())
	}
	if scale <= 0 {
		return nil, fmt.Errorf("%w: scale %v", pdferr.InvalidParameter, scale)
	}
	return renderPage(doc.Pages[pageIdx], scale)
}

// RenderWithOverlay renders the page as if overlay had been applied. The
// overlay runs against a deep copy; the given document is provably
// unchanged afterwards.
func RenderWithOverlay(doc *semantic.Document, pageIdx int, overlay Overlay, scale float64) (*image.RGBA, error) {
	if pageIdx < 0 || pageIdx >= doc.PageCount() {
		return nil, fmt.Errorf("%w: page %d of %d", pdferr.PageIndexOutOfRange, pageIdx, doc.PageCount())
	}
	preview := doc.Clone()
	if overlay != nil {
		if err := overlay(preview); err != nil {
			return nil, fmt.Errorf("overlay: %w", err)
		}
	}
	return RenderPage(preview, pageIdx, scale)
}

// RenderThumbnails renders the first min(pageCount, maxPages) pages.
func RenderThumbnails(doc *semantic.Document, maxPages int, scale float64) ([]*image.RGBA, error) {
	if maxPages < 1 {
		return nil, fmt.Errorf("%w: maxPages %d", pdferr.InvalidParameter, maxPages)
	}
	n := doc.PageCount()
	if n > maxPages {
		n = maxPages
	}
	out := make([]*image.RGBA, 0, n)
	for i := 0; i < n; i++ {
		img, err := RenderPage(doc, i, scale)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

// gstate is the graphics state the raster interpreter tracks.
type gstate struct {
	fill   color.RGB
	stroke color.RGB
	ctm    coords.Matrix
}

// canvas wraps the target image with the page-to-device transform.
type canvas struct {
	img    *image.RGBA
	device coords.Matrix
}

func renderPage(page *semantic.Page, scale float64) (*image.RGBA, error) {
	pw, ph := page.Width(), page.Height()
	if pw <= 0 || ph <= 0 {
		return nil, fmt.Errorf("%w: page has no area", pdferr.CorruptDocument)
	}
	outW, outH := pw, ph
	if page.Rotate == 90 || page.Rotate == 270 {
		outW, outH = ph, pw
	}
	img := image.NewRGBA(image.Rect(0, 0, pixels(outW*scale), pixels(outH*scale)))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	// Page space to device space: translate to the origin, apply the page
	// rotation about the center, flip y and scale to pixels.
	device := coords.Translate(-page.MediaBox.LLX, -page.MediaBox.LLY)
	if page.Rotate != 0 {
		rad := -float64(page.Rotate) * math.Pi / 180
		device = device.Multiply(coords.RotateAbout(rad, pw/2, ph/2))
		device = device.Multiply(coords.Translate((outW-pw)/2, (outH-ph)/2))
	}
	device = device.Multiply(coords.Matrix{scale, 0, 0, -scale, 0, outH * scale})

	c := &canvas{img: img, device: device}
	if err := c.run(page.ContentBytes()); err != nil {
		return nil, err
	}
	c.drawAnnotations(page.Annotations)
	return img, nil
}

func pixels(v float64) int {
	p := int(math.Ceil(v))
	if p < 1 {
		p = 1
	}
	return p
}

// run interprets the content stream. Unknown operators are skipped: previews
// show what they understand and ignore the rest.
func (c *canvas) run(content []byte) error {
	if len(content) == 0 {
		return nil
	}
	ops, err := contentstream.Parse(content)
	if err != nil {
		return fmt.Errorf("render content: %w", err)
	}

	gs := gstate{ctm: coords.Identity()}
	var stack []gstate

	// Text state.
	var tm, tlm coords.Matrix
	leading := 0.0
	var path []segment

	for _, op := range ops {
		switch op.Operator {
		case "q":
			stack = append(stack, gs)
		case "Q":
			if n := len(stack); n > 0 {
				gs = stack[n-1]
				stack = stack[:n-1]
			}
		case "cm":
			if m, ok := matrixOperands(op); ok {
				gs.ctm = m.Multiply(gs.ctm)
			}
		case "rg":
			gs.fill = rgbOperands(op)
		case "RG":
			gs.stroke = rgbOperands(op)
		case "g":
			v := numOp(op, 0)
			gs.fill = color.RGB{R: v, G: v, B: v}
		case "G":
			v := numOp(op, 0)
			gs.stroke = color.RGB{R: v, G: v, B: v}

		case "re":
			if len(op.Operands) == 4 {
				x, y := numOp(op, 0), numOp(op, 1)
				w, h := numOp(op, 2), numOp(op, 3)
				path = append(path, rectSegments(x, y, w, h)...)
			}
		case "m":
			path = append(path, segment{move: true, to: coords.Point{X: numOp(op, 0), Y: numOp(op, 1)}})
		case "l":
			path = append(path, segment{to: coords.Point{X: numOp(op, 0), Y: numOp(op, 1)}})
		case "f", "F", "f*", "b", "B":
			c.fillPath(path, gs)
			path = nil
		case "S", "s":
			c.strokePath(path, gs)
			path = nil
		case "n":
			path = nil

		case "BT":
			tm = coords.Identity()
			tlm = tm
		case "ET":
		case "TL":
			leading = numOp(op, 0)
		case "Td":
			tlm = coords.Translate(numOp(op, 0), numOp(op, 1)).Multiply(tlm)
			tm = tlm
		case "TD":
			leading = -numOp(op, 1)
			tlm = coords.Translate(numOp(op, 0), numOp(op, 1)).Multiply(tlm)
			tm = tlm
		case "Tm":
			if m, ok := matrixOperands(op); ok {
				tlm = m
				tm = m
			}
		case "T*":
			tlm = coords.Translate(0, -leading).Multiply(tlm)
			tm = tlm
		case "Tj", "TJ", "'", "\"":
			c.drawText(shownString(op), tm, gs)

		case "Do":
			c.drawPlaceholder(gs)
		}
	}
	return nil
}

type segment struct {
	move bool
	to   coords.Point
}

func rectSegments(x, y, w, h float64) []segment {
	return []segment{
		{move: true, to: coords.Point{X: x, Y: y}},
		{to: coords.Point{X: x + w, Y: y}},
		{to: coords.Point{X: x + w, Y: y + h}},
		{to: coords.Point{X: x, Y: y + h}},
		{to: coords.Point{X: x, Y: y}},
	}
}

// toDevice maps a point through the current transform and the page-to-device
// transform.
func (c *canvas) toDevice(gs gstate, p coords.Point) (int, int) {
	q := c.device.Transform(gs.ctm.Transform(p))
	return int(math.Round(q.X)), int(math.Round(q.Y))
}

// fillPath fills the bounding polygon of each closed subpath. Subpaths from
// re operators are axis-aligned, which covers the shapes the editor draws.
func (c *canvas) fillPath(path []segment, gs gstate) {
	col := rgba(gs.fill)
	for _, poly := range subpaths(path) {
		minX, minY := math.MaxInt32, math.MaxInt32
		maxX, maxY := math.MinInt32, math.MinInt32
		for _, p := range poly {
			x, y := c.toDevice(gs, p)
			minX, minY = min(minX, x), min(minY, y)
			maxX, maxY = max(maxX, x), max(maxY, y)
		}
		rect := image.Rect(minX, minY, maxX, maxY).Intersect(c.img.Bounds())
		draw.Draw(c.img, rect, image.NewUniform(col), image.Point{}, draw.Src)
	}
}

func (c *canvas) strokePath(path []segment, gs gstate) {
	col := rgba(gs.stroke)
	for _, poly := range subpaths(path) {
		for i := 1; i < len(poly); i++ {
			x0, y0 := c.toDevice(gs, poly[i-1])
			x1, y1 := c.toDevice(gs, poly[i])
			c.line(x0, y0, x1, y1, col)
		}
	}
}

func subpaths(path []segment) [][]coords.Point {
	var out [][]coords.Point
	var cur []coords.Point
	for _, s := range path {
		if s.move {
			if len(cur) > 1 {
				out = append(out, cur)
			}
			cur = []coords.Point{s.to}
			continue
		}
		cur = append(cur, s.to)
	}
	if len(cur) > 1 {
		out = append(out, cur)
	}
	return out
}

// line is integer Bresenham; good enough for hairline preview strokes.
func (c *canvas) line(x0, y0, x1, y1 int, col imgcolor.RGBA) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		c.img.SetRGBA(x0, y0, col)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// drawText places the string with the fixed preview face at the text
// matrix anchor. Glyph-accurate layout is out of scope for previews.
func (c *canvas) drawText(s string, tm coords.Matrix, gs gstate) {
	if s == "" {
		return
	}
	x, y := c.toDevice(gs, coords.Point{X: tm[4], Y: tm[5]})
	d := font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(rgba(gs.fill)),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawPlaceholder marks an XObject's unit square with a gray frame.
func (c *canvas) drawPlaceholder(gs gstate) {
	frame := imgcolor.RGBA{R: 0xB0, G: 0xB0, B: 0xB0, A: 0xFF}
	corners := []coords.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: 0, Y: 0}}
	for i := 1; i < len(corners); i++ {
		x0, y0 := c.toDevice(gs, corners[i-1])
		x1, y1 := c.toDevice(gs, corners[i])
		c.line(x0, y0, x1, y1, frame)
	}
}

// drawAnnotations outlines each annotation's bounds in its color, enough to
// see placement in a preview.
func (c *canvas) drawAnnotations(annots []semantic.Annotation) {
	gs := gstate{ctm: coords.Identity()}
	for _, a := range annots {
		col := annotationColor(a)
		b := a.Bounds()
		poly := []coords.Point{
			{X: b.LLX, Y: b.LLY}, {X: b.URX, Y: b.LLY},
			{X: b.URX, Y: b.URY}, {X: b.LLX, Y: b.URY},
			{X: b.LLX, Y: b.LLY},
		}
		for i := 1; i < len(poly); i++ {
			x0, y0 := c.toDevice(gs, poly[i-1])
			x1, y1 := c.toDevice(gs, poly[i])
			c.line(x0, y0, x1, y1, col)
		}
	}
}

func annotationColor(a semantic.Annotation) imgcolor.RGBA {
	switch v := a.(type) {
	case semantic.Highlight:
		return rgba(v.Color)
	case semantic.Underline:
		return rgba(v.Color)
	case semantic.StrikeOut:
		return rgba(v.Color)
	case semantic.Squiggly:
		return rgba(v.Color)
	case semantic.FreeText:
		return rgba(v.Color)
	case semantic.Stamp:
		return rgba(v.Color)
	case semantic.Square:
		return rgba(v.Stroke)
	case semantic.Circle:
		return rgba(v.Stroke)
	case semantic.Line:
		return rgba(v.Stroke)
	}
	return imgcolor.RGBA{A: 0xFF}
}

func rgba(c color.RGB) imgcolor.RGBA {
	conv := func(v float64) uint8 {
		if v <= 0 {
			return 0
		}
		if v >= 1 {
			return 0xFF
		}
		return uint8(math.Round(v * 255))
	}
	return imgcolor.RGBA{R: conv(c.R), G: conv(c.G), B: conv(c.B), A: 0xFF}
}

func matrixOperands(op contentstream.Operation) (coords.Matrix, bool) {
	if len(op.Operands) != 6 {
		return coords.Matrix{}, false
	}
	var m coords.Matrix
	for i := 0; i < 6; i++ {
		n, ok := op.Operands[i].(raw.Number)
		if !ok {
			return coords.Matrix{}, false
		}
		m[i] = n.Float()
	}
	return m, true
}

func rgbOperands(op contentstream.Operation) color.RGB {
	return color.RGB{R: numOp(op, 0), G: numOp(op, 1), B: numOp(op, 2)}
}

func numOp(op contentstream.Operation, i int) float64 {
	if i >= len(op.Operands) {
		return 0
	}
	if n, ok := op.Operands[i].(raw.Number); ok {
		return n.Float()
	}
	return 0
}

// shownString collects the text shown by a text-showing operator.
func shownString(op contentstream.Operation) string {
	var out []byte
	collect := func(o raw.Object) {
		if s, ok := o.(raw.StringObj); ok {
			out = append(out, s.Bytes...)
		}
	}
	for _, o := range op.Operands {
		if arr, ok := o.(*raw.ArrayObj); ok {
			for _, item := range arr.Items {
				collect(item)
			}
			continue
		}
		collect(o)
	}
	return string(out)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
