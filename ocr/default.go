package ocr

import "context"

var defaultEngine Engine = noopEngine{}

// DefaultEngine returns the process-wide recognition engine. It is the
// Tesseract adapter when the ocr/tesseract package is linked in, and a no-op
// engine otherwise.
func DefaultEngine() Engine { return defaultEngine }

// SetDefaultEngine replaces the process-wide recognition engine.
func SetDefaultEngine(engine Engine) { defaultEngine = engine }

type noopEngine struct{}

func (noopEngine) Name() string { return "noop" }

func (noopEngine) Recognize(ctx context.Context, input Input) (Result, error) {
	return Result{InputID: input.ID, PageIndex: input.PageIndex}, nil
}
