package editor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/docsuite/pdfengine/contentstream"
	"github.com/docsuite/pdfengine/filters"
	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/pdferr"
)

// InsertImage decodes imageBytes (jpeg, png, gif, bmp, tiff, webp), registers
// it as an image XObject under a fresh resource name and draws it with its
// lower-left corner at (x, y). Zero width/height fall back to the intrinsic
// pixel dimensions read as points; there is no DPI correction.
func InsertImage(doc *semantic.Document, pageIdx int, imageBytes []byte, x, y, width, height float64) error {
	page, err := checkPage(doc, pageIdx)
	if err != nil {
		return err
	}
	xobj, pxW, pxH, err := buildImageXObject(imageBytes)
	if err != nil {
		return err
	}
	if width <= 0 {
		width = float64(pxW)
	}
	if height <= 0 {
		height = float64(pxH)
	}
	if page.Resources == nil {
		page.Resources = semantic.NewResources()
	}
	resName := page.Resources.FreshName("Im")
	page.Resources.XObjects[resName] = xobj

	ops := []contentstream.Operation{
		op("q"),
		op("cm", num(width), num(0), num(0), num(height), num(x), num(y)),
		op("Do", name(resName)),
		op("Q"),
	}
	appendOps(doc, page, ops)
	return nil
}

// buildImageXObject turns encoded image bytes into an image XObject stream.
// JPEG data passes through under DCTDecode; every other format is decoded,
// flattened to 8-bit RGB and flate-compressed.
func buildImageXObject(data []byte) (*raw.StreamObj, int, int, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", pdferr.UnsupportedFormat, err)
	}

	dict := raw.Dict()
	dict.Set("Type", raw.NameLiteral("XObject"))
	dict.Set("Subtype", raw.NameLiteral("Image"))
	dict.Set("Width", raw.NumberInt(int64(cfg.Width)))
	dict.Set("Height", raw.NumberInt(int64(cfg.Height)))
	dict.Set("ColorSpace", raw.NameLiteral("DeviceRGB"))
	dict.Set("BitsPerComponent", raw.NumberInt(8))

	if format == "jpeg" {
		// Verify the payload decodes before carrying it through verbatim.
		if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
			return nil, 0, 0, fmt.Errorf("%w: jpeg: %v", pdferr.UnsupportedFormat, err)
		}
		dict.Set("Filter", raw.NameLiteral("DCTDecode"))
		return raw.NewStream(dict, data), cfg.Width, cfg.Height, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %s: %v", pdferr.UnsupportedFormat, format, err)
	}
	samples := rgbSamples(img)
	enc, err := filters.FlateEncode(samples, 6)
	if err != nil {
		return nil, 0, 0, err
	}
	dict.Set("Filter", raw.NameLiteral("FlateDecode"))
	return raw.NewStream(dict, enc), cfg.Width, cfg.Height, nil
}

// rgbSamples flattens an image into interleaved 8-bit RGB rows. Alpha is
// composited against white, matching the renderer's page background.
func rgbSamples(img image.Image) []byte {
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0 {
				out = append(out, 0xFF, 0xFF, 0xFF)
				continue
			}
			// RGBA returns premultiplied 16-bit channels.
			out = append(out,
				compositeWhite(r, a), compositeWhite(g, a), compositeWhite(bl, a))
		}
	}
	return out
}

func compositeWhite(channel, alpha uint32) byte {
	v := channel>>8 + (0xFFFF-alpha)>>8
	if v > 0xFF {
		v = 0xFF
	}
	return byte(v)
}
