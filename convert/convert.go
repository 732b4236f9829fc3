// Package convert is the format boundary: plain-text, markdown, HTML and
// image inputs become documents, and documents become per-page text or
// per-page raster archives. Everything here is a lossy text or pixel
// transform with no layout-fidelity contract.
package convert

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/docsuite/pdfengine/pdferr"
)

// Format identifies an input format accepted at the conversion boundary.
type Format string

const (
	FormatPDF      Format = "application/pdf"
	FormatText     Format = "text/plain"
	FormatMarkdown Format = "text/markdown"
	FormatHTML     Format = "text/html"
	FormatPNG      Format = "image/png"
	FormatJPEG     Format = "image/jpeg"
	FormatGIF      Format = "image/gif"
	FormatBMP      Format = "image/bmp"
	FormatTIFF     Format = "image/tiff"
	FormatWEBP     Format = "image/webp"
)

// IsImage reports whether the format is a raster image.
func (f Format) IsImage() bool {
	switch f {
	case FormatPNG, FormatJPEG, FormatGIF, FormatBMP, FormatTIFF, FormatWEBP:
		return true
	}
	return false
}

var magicNumbers = []struct {
	prefix []byte
	format Format
}{
	{[]byte("%PDF-"), FormatPDF},
	{[]byte{0x89, 'P', 'N', 'G'}, FormatPNG},
	{[]byte{0xFF, 0xD8, 0xFF}, FormatJPEG},
	{[]byte("GIF8"), FormatGIF},
	{[]byte("BM"), FormatBMP},
	{[]byte{0x49, 0x49, 0x2A, 0x00}, FormatTIFF},
	{[]byte{0x4D, 0x4D, 0x00, 0x2A}, FormatTIFF},
}

var textExtensions = map[string]Format{
	".txt":      FormatText,
	".text":     FormatText,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".html":     FormatHTML,
	".htm":      FormatHTML,
}

// DetectFormat resolves the format of an upload from its magic bytes, falling
// back to the filename extension for the text family, which has no reliable
// signature. Unknown inputs fail with UnsupportedFormat.
func DetectFormat(filename string, data []byte) (Format, error) {
	for _, m := range magicNumbers {
		if bytes.HasPrefix(data, m.prefix) {
			return m.format, nil
		}
	}
	if len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return FormatWEBP, nil
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if f, ok := textExtensions[ext]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: cannot identify %q", pdferr.UnsupportedFormat, filename)
}
