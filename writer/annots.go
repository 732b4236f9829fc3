package writer

import (
	"fmt"

	"github.com/docsuite/pdfengine/color"
	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/ir/semantic"
)

// annotationDict serializes one annotation variant into its dictionary. The
// switch is exhaustive over the closed Annotation set; adding a variant
// without extending it returns an error instead of silently dropping the
// annotation.
func annotationDict(a semantic.Annotation) (raw.Object, error) {
	switch v := a.(type) {
	case semantic.Highlight:
		return markupDict("Highlight", v.Rect, v.Color), nil
	case semantic.Underline:
		return markupDict("Underline", v.Rect, v.Color), nil
	case semantic.StrikeOut:
		return markupDict("StrikeOut", v.Rect, v.Color), nil
	case semantic.Squiggly:
		return markupDict("Squiggly", v.Rect, v.Color), nil
	case semantic.Note:
		d := baseAnnotDict("Text", v.Bounds())
		d.Set("Contents", raw.Str([]byte(v.Text)))
		icon := v.Icon
		if icon == "" {
			icon = "Note"
		}
		d.Set("Name", raw.NameLiteral(icon))
		d.Set("Open", raw.Bool(false))
		return d, nil
	case semantic.FreeText:
		d := baseAnnotDict("FreeText", v.Rect)
		d.Set("Contents", raw.Str([]byte(v.Text)))
		size := v.FontSize
		if size <= 0 {
			size = 12
		}
		da := fmt.Sprintf("%s %s %s rg /Helv %s Tf",
			formatFloat(v.Color.R), formatFloat(v.Color.G), formatFloat(v.Color.B),
			formatFloat(size))
		d.Set("DA", raw.Str([]byte(da)))
		return d, nil
	case semantic.Stamp:
		d := baseAnnotDict("Stamp", v.Rect)
		d.Set("Contents", raw.Str([]byte(v.Text)))
		d.Set("Name", raw.NameLiteral("Draft"))
		d.Set("C", colorArray(v.Color))
		return d, nil
	case semantic.Square:
		d := baseAnnotDict("Square", v.Rect)
		d.Set("C", colorArray(v.Stroke))
		if v.Fill != nil {
			d.Set("IC", colorArray(*v.Fill))
		}
		return d, nil
	case semantic.Circle:
		d := baseAnnotDict("Circle", v.Bounds())
		d.Set("C", colorArray(v.Stroke))
		if v.Fill != nil {
			d.Set("IC", colorArray(*v.Fill))
		}
		return d, nil
	case semantic.Line:
		d := baseAnnotDict("Line", v.Bounds())
		d.Set("L", raw.NewArray(
			raw.NumberFloat(v.P1.X), raw.NumberFloat(v.P1.Y),
			raw.NumberFloat(v.P2.X), raw.NumberFloat(v.P2.Y)))
		d.Set("C", colorArray(v.Stroke))
		return d, nil
	case semantic.Passthrough:
		return raw.DeepCopy(v.Dict), nil
	}
	return nil, fmt.Errorf("annotation type %T has no serialization", a)
}

func baseAnnotDict(subtype string, rect semantic.Rectangle) *raw.DictObj {
	d := raw.Dict()
	d.Set("Type", raw.NameLiteral("Annot"))
	d.Set("Subtype", raw.NameLiteral(subtype))
	d.Set("Rect", rectArray(rect.LLX, rect.LLY, rect.URX, rect.URY))
	d.Set("F", raw.NumberInt(4)) // print flag
	return d
}

func markupDict(subtype string, rect semantic.Rectangle, c color.RGB) *raw.DictObj {
	d := baseAnnotDict(subtype, rect)
	d.Set("C", colorArray(c))
	// QuadPoints: one quad spanning the rectangle, in the order
	// upper-left, upper-right, lower-left, lower-right.
	d.Set("QuadPoints", raw.NewArray(
		raw.NumberFloat(rect.LLX), raw.NumberFloat(rect.URY),
		raw.NumberFloat(rect.URX), raw.NumberFloat(rect.URY),
		raw.NumberFloat(rect.LLX), raw.NumberFloat(rect.LLY),
		raw.NumberFloat(rect.URX), raw.NumberFloat(rect.LLY)))
	return d
}

func colorArray(c color.RGB) *raw.ArrayObj {
	return raw.NewArray(
		raw.NumberFloat(c.R), raw.NumberFloat(c.G), raw.NumberFloat(c.B))
}
