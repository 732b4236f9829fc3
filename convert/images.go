package convert

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/docsuite/pdfengine/editor"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/pdferr"
	"github.com/docsuite/pdfengine/render"
)

// imageExportScale is the raster factor for page exports; 2x keeps text
// legible without ballooning the archive.
const imageExportScale = 2.0

// ToImages renders every page to PNG at 2x scale and packs them into a zip
// archive, one entry per page named page-001.png onward.
func ToImages(doc *semantic.Document) ([]byte, error) {
	if doc.PageCount() == 0 {
		return nil, fmt.Errorf("%w: document has no pages", pdferr.InvalidParameter)
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i := range doc.Pages {
		img, err := render.RenderPage(doc, i, imageExportScale)
		if err != nil {
			return nil, err
		}
		entry, err := zw.Create(fmt.Sprintf("page-%03d.png", i+1))
		if err != nil {
			return nil, fmt.Errorf("archive page %d: %w", i+1, err)
		}
		if err := png.Encode(entry, img); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromImages builds a document with one page per input image. Each page is
// sized to the image's pixel dimensions taken as points, matching the
// no-DPI-correction rule of image insertion, and the image fills the page.
func FromImages(images [][]byte) (*semantic.Document, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: no images", pdferr.InvalidParameter)
	}
	doc := &semantic.Document{Version: "1.7"}
	for i, data := range images {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: image %d: %v", pdferr.UnsupportedFormat, i+1, err)
		}
		doc.Pages = append(doc.Pages, &semantic.Page{
			MediaBox:  semantic.Rectangle{URX: float64(cfg.Width), URY: float64(cfg.Height)},
			Resources: semantic.NewResources(),
		})
		if err := editor.InsertImage(doc, i, data, 0, 0, float64(cfg.Width), float64(cfg.Height)); err != nil {
			return nil, err
		}
	}
	return doc, nil
}
