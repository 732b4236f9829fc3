// Package ocr turns scanned pages into searchable ones. Recognition itself is
// delegated to an external Engine; this package rasterizes pages, feeds them
// to the engine and embeds the recognized text as an invisible layer aligned
// with the raster.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/docsuite/pdfengine/editor"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/observability"
	"github.com/docsuite/pdfengine/pdferr"
	"github.com/docsuite/pdfengine/render"
)

const defaultScale = 2.0

// anchoredFontSize sizes the invisible layer when the engine reports no word
// boxes and the whole text is placed at a single anchor.
const anchoredFontSize = 10.0

// Options configures a MakeSearchable run.
type Options struct {
	// Scale is the rasterization factor fed to the renderer; 2.0 when zero.
	// The DPI reported to the engine is 72 * Scale.
	Scale float64
	// Pages selects zero-based page indices; nil means every page.
	Pages []int
	// Languages and Metadata are forwarded to each recognition input.
	Languages []string
	Metadata  map[string]string
	Logger    observability.Logger
}

func (o Options) logger() observability.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return observability.NopLogger{}
}

// MakeSearchable rasterizes the selected pages, runs the engine over each
// raster and writes the recognized text back as an invisible text layer. Word
// boxes, when the engine reports them, position each word over its pixel
// bounds; a box-less result is anchored once per page, so text search hits
// the page but not the exact spot.
//
// The document is mutated in place. Results are returned per processed page
// so callers can surface confidence or plain text.
func MakeSearchable(ctx context.Context, doc *semantic.Document, engine Engine, opts Options) ([]Result, error) {
	if engine == nil {
		engine = DefaultEngine()
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = defaultScale
	}
	pages := opts.Pages
	if pages == nil {
		pages = make([]int, doc.PageCount())
		for i := range pages {
			pages[i] = i
		}
	}
	for _, idx := range pages {
		if err := doc.CheckPageIndex(idx); err != nil {
			return nil, fmt.Errorf("%w: %v", pdferr.PageIndexOutOfRange, err)
		}
	}

	results := make([]Result, 0, len(pages))
	for _, idx := range pages {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		in, err := inputFromPage(doc, idx, scale, opts)
		if err != nil {
			return nil, err
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		res.PageIndex = idx
		if err := embedTextLayer(doc, idx, scale, res); err != nil {
			return nil, err
		}
		results = append(results, res)
		opts.logger().Debug("page made searchable",
			observability.String("engine", engine.Name()),
			observability.Int("page", idx),
			observability.Int("words", len(res.Words())))
	}
	return results, nil
}

// inputFromPage rasterizes one page into a PNG recognition input.
func inputFromPage(doc *semantic.Document, idx int, scale float64, opts Options) (Input, error) {
	img, err := render.RenderPage(doc, idx, scale)
	if err != nil {
		return Input{}, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Input{}, fmt.Errorf("encode page %d raster: %w", idx, err)
	}
	in := Input{
		ID:        fmt.Sprintf("page-%d", idx),
		Image:     buf.Bytes(),
		Format:    ImageFormatPNG,
		PageIndex: idx,
		DPI:       int(72 * scale),
		Languages: opts.Languages,
	}
	if len(opts.Metadata) > 0 {
		WithMetadata(opts.Metadata)(&in)
	}
	return in, nil
}

// embedTextLayer writes the recognized text invisibly onto the page,
// converting the raster's top-left pixel coordinates back to page space.
func embedTextLayer(doc *semantic.Document, idx int, scale float64, res Result) error {
	page := doc.Pages[idx]
	words := res.Words()
	if len(words) == 0 {
		if res.PlainText == "" {
			return nil
		}
		// No positional data: anchor the whole text once near the top left.
		return editor.AddTextLayer(doc, idx, res.PlainText,
			page.MediaBox.LLX+36, page.MediaBox.LLY+page.Height()-36, anchoredFontSize)
	}
	for _, w := range words {
		if w.Text == "" || w.Bounds.Height <= 0 {
			continue
		}
		x := page.MediaBox.LLX + w.Bounds.X/scale
		// Pixel y grows downward; the word's baseline sits at the bottom of
		// its box in page space.
		y := page.MediaBox.LLY + page.Height() - (w.Bounds.Y+w.Bounds.Height)/scale
		size := w.Bounds.Height / scale
		if err := editor.AddTextLayer(doc, idx, w.Text, x, y, size); err != nil {
			return err
		}
	}
	return nil
}
