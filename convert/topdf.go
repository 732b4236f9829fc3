package convert

import (
	"context"
	"fmt"

	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/parser"
	"github.com/docsuite/pdfengine/pdferr"
)

// ToPDF turns an upload into a document, dispatching on the detected format.
// PDF inputs are loaded as-is; text, markdown and HTML go through the flow
// layout; a raster image becomes a single-page document.
func ToPDF(ctx context.Context, data []byte, filename string) (*semantic.Document, error) {
	format, err := DetectFormat(filename, data)
	if err != nil {
		return nil, err
	}
	switch {
	case format == FormatPDF:
		return parser.Load(ctx, data, parser.Options{})
	case format == FormatMarkdown:
		return MarkdownToPDF(string(data))
	case format == FormatHTML:
		return HTMLToPDF(string(data))
	case format == FormatText:
		return TextToPDF(string(data))
	case format.IsImage():
		return FromImages([][]byte{data})
	}
	return nil, fmt.Errorf("%w: no conversion for %s", pdferr.UnsupportedFormat, format)
}
