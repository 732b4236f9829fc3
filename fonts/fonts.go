// Package fonts provides metrics for the built-in (non-embedded) Type1 fonts
// the engine writes. Only core-14 faces are used, so the widths are static
// AFM tables; there is no font file embedding or subsetting.
package fonts

import "github.com/docsuite/pdfengine/ir/raw"

// Font is a core-14 face with its per-glyph advance widths in 1/1000 em.
type Font struct {
	// BaseFont is the PostScript name written into the font dictionary.
	BaseFont string
	widths   [95]int // codes 32..126
	fallback int
}

// Width returns the advance width of s at the given size, in points.
// Characters outside the tabulated ASCII range use the fallback width, which
// is good enough for the centering and layout decisions the editor makes.
func (f *Font) Width(s string, size float64) float64 {
	total := 0
	for _, r := range s {
		if r >= 32 && r <= 126 {
			total += f.widths[r-32]
		} else {
			total += f.fallback
		}
	}
	return float64(total) * size / 1000.0
}

// Dict builds the raw font dictionary for this face.
func (f *Font) Dict() *raw.DictObj {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("Font"))
	d.Set("Subtype", raw.NameLiteral("Type1"))
	d.Set("BaseFont", raw.NameLiteral(f.BaseFont))
	d.Set("Encoding", raw.NameLiteral("WinAnsiEncoding"))
	return d
}

// Helvetica is the default text face.
var Helvetica = &Font{
	BaseFont: "Helvetica",
	fallback: 556,
	widths: [95]int{
		278, 278, 355, 556, 556, 889, 667, 191, 333, 333, 389, 584, 278, 333,
		278, 278, 556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 278, 278,
		584, 584, 584, 556, 1015, 667, 667, 722, 722, 667, 611, 778, 722, 278,
		500, 667, 556, 833, 722, 778, 667, 778, 722, 667, 611, 722, 667, 944,
		667, 667, 611, 278, 278, 278, 469, 556, 333, 556, 556, 500, 556, 556,
		278, 556, 556, 222, 222, 500, 222, 833, 556, 556, 556, 556, 333, 500,
		278, 556, 500, 722, 500, 500, 500, 334, 260, 334, 584,
	},
}

// HelveticaBold is used for watermarks and stamps.
var HelveticaBold = &Font{
	BaseFont: "Helvetica-Bold",
	fallback: 611,
	widths: [95]int{
		278, 333, 474, 556, 556, 889, 722, 238, 333, 333, 389, 584, 278, 333,
		278, 278, 556, 556, 556, 556, 556, 556, 556, 556, 556, 556, 333, 333,
		584, 584, 584, 611, 975, 722, 722, 722, 722, 667, 611, 778, 722, 278,
		556, 722, 611, 833, 722, 778, 667, 778, 722, 667, 611, 722, 667, 944,
		667, 667, 611, 333, 278, 333, 584, 556, 333, 556, 611, 556, 611, 556,
		333, 611, 611, 278, 278, 556, 278, 889, 611, 611, 611, 611, 389, 556,
		333, 611, 556, 778, 556, 556, 500, 389, 280, 389, 584,
	},
}

// Courier is monospaced; every glyph advances 600.
var Courier = &Font{
	BaseFont: "Courier",
	fallback: 600,
	widths: func() (w [95]int) {
		for i := range w {
			w[i] = 600
		}
		return
	}(),
}

// ByName resolves a face by its PostScript name, defaulting to Helvetica.
func ByName(name string) *Font {
	switch name {
	case "Helvetica-Bold":
		return HelveticaBold
	case "Courier":
		return Courier
	default:
		return Helvetica
	}
}
