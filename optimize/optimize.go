// Package optimize recompresses documents. A profile picks the flate level
// and output shape; compression is a full rewrite, so the cross-reference
// table is rebuilt and objects nothing references are dropped as a side
// effect of renumbering.
package optimize

import (
	"context"
	"fmt"
	"math"

	"github.com/docsuite/pdfengine/observability"
	"github.com/docsuite/pdfengine/parser"
	"github.com/docsuite/pdfengine/pdferr"
	"github.com/docsuite/pdfengine/writer"
)

// Level is a named compression profile.
type Level string

const (
	Low     Level = "low"
	Medium  Level = "medium"
	High    Level = "high"
	Maximum Level = "maximum"
)

// Profile is the concrete tuple a Level maps to.
type Profile struct {
	// FlateLevel is the zlib compression level for content streams.
	FlateLevel int
	// RebuildXRef forces a fresh cross-reference table. Always true; kept
	// explicit so the mapping is visible.
	RebuildXRef bool
	// StripUnreferenced drops objects unreachable from the page tree.
	StripUnreferenced bool
	// ASCIISafe hex-armors streams so the output is 7-bit clean.
	ASCIISafe bool
}

// ParseLevel validates an external level string.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case Low, Medium, High, Maximum:
		return Level(s), nil
	}
	return "", fmt.Errorf("%w: unknown compression level %q", pdferr.InvalidParameter, s)
}

// Settings returns the profile tuple for the level. The mapping is fixed:
// the same level always produces the same output shape.
func (l Level) Settings() (Profile, error) {
	switch l {
	case Low:
		return Profile{FlateLevel: 1, RebuildXRef: true, StripUnreferenced: true}, nil
	case Medium, "":
		return Profile{FlateLevel: 6, RebuildXRef: true, StripUnreferenced: true}, nil
	case High:
		return Profile{FlateLevel: 9, RebuildXRef: true, StripUnreferenced: true}, nil
	case Maximum:
		return Profile{FlateLevel: 9, RebuildXRef: true, StripUnreferenced: true, ASCIISafe: true}, nil
	}
	return Profile{}, fmt.Errorf("%w: unknown compression level %q", pdferr.InvalidParameter, l)
}

// Stats reports the size effect of one compression run. RatioPercent is
// (1 - compressed/original) * 100, rounded to two decimals; it goes negative
// when compression grows the file, which hex-armored output can.
type Stats struct {
	OriginalSize   int
	CompressedSize int
	RatioPercent   float64
}

// Options carries the ambient dependencies of a compression run.
type Options struct {
	// Password opens an encrypted input; the output keeps the encryption.
	Password string
	Logger   observability.Logger
	Tracer   observability.Tracer
}

func (o Options) logger() observability.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return observability.NopLogger{}
}

// Compress rewrites data with the given profile level and reports the size
// change. The input bytes are never modified.
func Compress(ctx context.Context, data []byte, level Level, opts Options) ([]byte, Stats, error) {
	if len(data) == 0 {
		return nil, Stats{}, fmt.Errorf("%w: empty input", pdferr.InvalidParameter)
	}
	profile, err := level.Settings()
	if err != nil {
		return nil, Stats{}, err
	}
	doc, err := parser.Load(ctx, data, parser.Options{
		Password: opts.Password,
		Logger:   opts.Logger,
		Tracer:   opts.Tracer,
	})
	if err != nil {
		return nil, Stats{}, err
	}
	out, err := writer.Serialize(ctx, doc, writer.Options{
		Mode:             writer.ModeFullRewrite,
		Compress:         true,
		CompressionLevel: profile.FlateLevel,
		ASCIIStreams:     profile.ASCIISafe,
		Logger:           opts.Logger,
		Tracer:           opts.Tracer,
	})
	if err != nil {
		return nil, Stats{}, err
	}
	stats := Stats{
		OriginalSize:   len(data),
		CompressedSize: len(out),
		RatioPercent:   ratioPercent(len(data), len(out)),
	}
	opts.logger().Info("document compressed",
		observability.String("level", string(level)),
		observability.Int("bytes.in", stats.OriginalSize),
		observability.Int("bytes.out", stats.CompressedSize),
		observability.Float64(observability.MetricCompressRatio, stats.RatioPercent))
	return out, stats, nil
}

func ratioPercent(original, compressed int) float64 {
	if original == 0 {
		return 0
	}
	ratio := (1 - float64(compressed)/float64(original)) * 100
	return math.Round(ratio*100) / 100
}
