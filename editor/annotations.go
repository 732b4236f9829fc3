package editor

import (
	"fmt"

	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/pdferr"
)

// AddAnnotation validates the annotation geometry and appends it to the
// page's annotation list. A rectangle outside the page is accepted (viewers
// clip it); a degenerate rectangle is rejected because no viewer can show it.
func AddAnnotation(doc *semantic.Document, pageIdx int, a semantic.Annotation) error {
	page, err := checkPage(doc, pageIdx)
	if err != nil {
		return err
	}
	if err := validateAnnotation(a); err != nil {
		return err
	}
	page.Annotations = append(page.Annotations, a)
	page.Dirty = true
	doc.Dirty = true
	return nil
}

func validateAnnotation(a semantic.Annotation) error {
	switch v := a.(type) {
	case semantic.Highlight, semantic.Underline, semantic.StrikeOut,
		semantic.Squiggly, semantic.FreeText, semantic.Stamp, semantic.Square:
		if !a.Bounds().Valid() {
			return fmt.Errorf("%w: degenerate annotation rectangle %+v", pdferr.InvalidParameter, a.Bounds())
		}
	case semantic.Circle:
		if v.Radius <= 0 {
			return fmt.Errorf("%w: circle radius %v", pdferr.InvalidParameter, v.Radius)
		}
	case semantic.Line:
		if v.P1 == v.P2 {
			return fmt.Errorf("%w: zero-length line", pdferr.InvalidParameter)
		}
	}
	return nil
}

// AddShape adds a geometric annotation (Square, Circle or Line). It is the
// shape-specific entry point; everything else delegates to AddAnnotation.
func AddShape(doc *semantic.Document, pageIdx int, shape semantic.Annotation) error {
	switch shape.(type) {
	case semantic.Square, semantic.Circle, semantic.Line:
		return AddAnnotation(doc, pageIdx, shape)
	}
	return fmt.Errorf("%w: %T is not a shape annotation", pdferr.InvalidParameter, shape)
}
