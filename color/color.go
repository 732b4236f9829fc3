// Package color converts hexadecimal color strings to normalized RGB
// triples in [0, 1], the form PDF content-stream operators expect.
package color

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/docsuite/pdfengine/pdferr"
)

// RGB is a device-RGB color with components in [0, 1].
type RGB struct {
	R, G, B float64
}

var (
	Black = RGB{0, 0, 0}
	White = RGB{1, 1, 1}
	Gray  = RGB{0.7, 0.7, 0.7}
)

// ParseHex converts "#RRGGBB" (or "RRGGBB", case-insensitive, with "#RGB"
// shorthand) to an RGB triple. Unparseable input fails with
// pdferr.InvalidParameter.
func ParseHex(s string) (RGB, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return RGB{}, fmt.Errorf("%w: hex color %q", pdferr.InvalidParameter, s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("%w: hex color %q", pdferr.InvalidParameter, s)
	}
	return RGB{
		R: float64(v>>16&0xFF) / 255.0,
		G: float64(v>>8&0xFF) / 255.0,
		B: float64(v&0xFF) / 255.0,
	}, nil
}

// Hex renders the color back as "#rrggbb". Components outside [0, 1] are
// clamped.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", clamp255(c.R), clamp255(c.G), clamp255(c.B))
}

func clamp255(f float64) int {
	v := int(f*255.0 + 0.5)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
