package ocr

import "context"

// ImageFormat identifies the content type of a recognition input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
	ImageFormatTIFF ImageFormat = "image/tiff"
)

// Region is a rectangular area in pixel coordinates with the origin in the
// upper-left corner of the image.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Input is a single rasterized page submitted for recognition.
type Input struct {
	// ID is an optional caller-provided identifier echoed back in the Result.
	ID string
	// Image is the encoded payload in the format declared by Format.
	Image  []byte
	Format ImageFormat
	// PageIndex links the input back to the zero-based page it was
	// rasterized from.
	PageIndex int
	// DPI is the effective dots-per-inch of the raster; zero means unknown.
	DPI int
	// Languages holds trained-data hints such as "eng" or "deu".
	Languages []string
	// Region restricts recognition to a subsection of the image. Nil means
	// the full image.
	Region *Region
	// Metadata passes provider-specific knobs (e.g. "psm" for Tesseract)
	// without hard-coding them into the API surface.
	Metadata map[string]string
}

// TextWord is a single recognized token with its pixel bounds.
type TextWord struct {
	Text       string
	Bounds     Region
	Confidence float64
}

// TextLine groups words that share a baseline.
type TextLine struct {
	Text       string
	Bounds     Region
	Words      []TextWord
	Confidence float64
}

// TextBlock aggregates lines into a logical block.
type TextBlock struct {
	Text       string
	Bounds     Region
	Lines      []TextLine
	Confidence float64
}

// Result is the recognition output for one input image.
type Result struct {
	InputID   string
	PageIndex int
	// PlainText is the linearized recognized text.
	PlainText string
	// Blocks carries the structured layout with positional metadata, when
	// the provider reports it.
	Blocks []TextBlock
	// Language is the dominant detected language, if known.
	Language string
}

// Words flattens the structured layout into a single word list.
func (r Result) Words() []TextWord {
	var out []TextWord
	for _, b := range r.Blocks {
		for _, l := range b.Lines {
			out = append(out, l.Words...)
		}
	}
	return out
}

// Engine is the external text-extraction oracle: one image in, one result
// out. Recognition itself lives outside this module; implementations adapt a
// concrete provider.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// BatchEngine handles several images in one call, for providers that
// amortize setup costs or remote round-trips.
type BatchEngine interface {
	Engine
	RecognizeBatch(ctx context.Context, inputs []Input) ([]Result, error)
}
