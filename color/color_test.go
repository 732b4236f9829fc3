package color

import (
	"errors"
	"math"
	"testing"

	"github.com/docsuite/pdfengine/pdferr"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  RGB
	}{
		{"Black", "#000000", RGB{0, 0, 0}},
		{"White", "#FFFFFF", RGB{1, 1, 1}},
		{"Red", "#ff0000", RGB{1, 0, 0}},
		{"NoHash", "00ff00", RGB{0, 1, 0}},
		{"Shorthand", "#f0f", RGB{1, 0, 1}},
		{"Yellow", "#FFFF00", RGB{1, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHex(tt.input)
			if err != nil {
				t.Fatalf("ParseHex(%q): %v", tt.input, err)
			}
			if !near(got.R, tt.want.R) || !near(got.G, tt.want.G) || !near(got.B, tt.want.B) {
				t.Errorf("ParseHex(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseHexMidRange(t *testing.T) {
	got, err := ParseHex("#808080")
	if err != nil {
		t.Fatal(err)
	}
	if got.R < 0.5 || got.R > 0.51 {
		t.Errorf("R = %v, want ~0.502", got.R)
	}
}

func TestParseHexInvalid(t *testing.T) {
	for _, s := range []string{"", "#12345", "#gggggg", "not a color", "#1234567"} {
		if _, err := ParseHex(s); !errors.Is(err, pdferr.InvalidParameter) {
			t.Errorf("ParseHex(%q) error = %v, want InvalidParameter", s, err)
		}
	}
}

func TestHexRoundTrip(t *testing.T) {
	for _, s := range []string{"#000000", "#ffffff", "#a1b2c3"} {
		c, err := ParseHex(s)
		if err != nil {
			t.Fatal(err)
		}
		if got := c.Hex(); got != s {
			t.Errorf("round trip %q -> %q", s, got)
		}
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }
