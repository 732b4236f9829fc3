package semantic

import (
	"github.com/docsuite/pdfengine/color"
	"github.com/docsuite/pdfengine/ir/raw"
)

// Annotation is a closed variant: every kind the engine can create or carry
// implements the unexported marker, so switches in the writer and renderer
// are exhaustive over a known set. A kind the serializer forgets to handle
// shows up as a compile-time hole in its switch, not a silent drop.
type Annotation interface {
	annotation()
	// Bounds returns the annotation's bounding rectangle in page space.
	Bounds() Rectangle
}

// Markup annotations: a bounding rectangle plus a color. The four text-markup
// kinds share geometry but serialize with distinct subtypes.

type Highlight struct {
	Rect  Rectangle
	Color color.RGB
}

type Underline struct {
	Rect  Rectangle
	Color color.RGB
}

type StrikeOut struct {
	Rect  Rectangle
	Color color.RGB
}

type Squiggly struct {
	Rect  Rectangle
	Color color.RGB
}

// Note is a sticky-note (text) annotation anchored at a point.
type Note struct {
	At   Point
	Text string
	Icon string // Comment, Note, Help, Key, NewParagraph, Paragraph, Insert
}

// FreeText is a text box drawn directly on the page area.
type FreeText struct {
	Rect     Rectangle
	Text     string
	FontSize float64
	Color    color.RGB
}

// Stamp is a rubber-stamp annotation carrying display text.
type Stamp struct {
	Rect  Rectangle
	Text  string
	Color color.RGB
}

// Square is a rectangle shape annotation.
type Square struct {
	Rect   Rectangle
	Stroke color.RGB
	Fill   *color.RGB
}

// Circle is an ellipse shape annotation inscribed about a center point.
type Circle struct {
	Center Point
	Radius float64
	Stroke color.RGB
	Fill   *color.RGB
}

// Line is a straight-line annotation.
type Line struct {
	P1, P2 Point
	Stroke color.RGB
}

// Passthrough carries an annotation kind the engine does not model (links,
// widgets, ...) through load/serialize untouched.
type Passthrough struct {
	Dict raw.Object
	Rect Rectangle
}

func (Highlight) annotation()   {}
func (Underline) annotation()   {}
func (StrikeOut) annotation()   {}
func (Squiggly) annotation()    {}
func (Note) annotation()        {}
func (FreeText) annotation()    {}
func (Stamp) annotation()       {}
func (Square) annotation()      {}
func (Circle) annotation()      {}
func (Line) annotation()        {}
func (Passthrough) annotation() {}

func (a Highlight) Bounds() Rectangle { return a.Rect }
func (a Underline) Bounds() Rectangle { return a.Rect }
func (a StrikeOut) Bounds() Rectangle { return a.Rect }
func (a Squiggly) Bounds() Rectangle  { return a.Rect }
func (a Note) Bounds() Rectangle {
	// Sticky notes render as a fixed-size icon anchored at the point.
	return Rectangle{LLX: a.At.X, LLY: a.At.Y, URX: a.At.X + 20, URY: a.At.Y + 20}
}
func (a FreeText) Bounds() Rectangle { return a.Rect }
func (a Stamp) Bounds() Rectangle    { return a.Rect }
func (a Square) Bounds() Rectangle   { return a.Rect }
func (a Circle) Bounds() Rectangle {
	return Rectangle{
		LLX: a.Center.X - a.Radius, LLY: a.Center.Y - a.Radius,
		URX: a.Center.X + a.Radius, URY: a.Center.Y + a.Radius,
	}
}
func (a Line) Bounds() Rectangle {
	r := Rectangle{LLX: a.P1.X, LLY: a.P1.Y, URX: a.P2.X, URY: a.P2.Y}
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return r
}
func (a Passthrough) Bounds() Rectangle { return a.Rect }
