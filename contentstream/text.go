package contentstream

import (
	"strings"

	"github.com/docsuite/pdfengine/coords"
	"github.com/docsuite/pdfengine/ir/raw"
)

// textWalker tracks the text-positioning state machine across operations so
// extraction and redaction agree on where each shown string sits.
type textWalker struct {
	tm, tlm coords.Matrix
	leading float64
	inText  bool
}

func newTextWalker() *textWalker {
	return &textWalker{tm: coords.Identity(), tlm: coords.Identity()}
}

// anchor is the origin of the current text-space position on the page.
// Transformations applied via cm are not tracked; page text written by this
// engine and by common producers positions text through Tm/Td alone.
func (w *textWalker) anchor() (x, y float64) {
	return w.tm[4], w.tm[5]
}

// step advances the state for op and reports whether op shows text.
func (w *textWalker) step(op Operation) bool {
	switch op.Operator {
	case "BT":
		w.inText = true
		w.tm = coords.Identity()
		w.tlm = coords.Identity()
	case "ET":
		w.inText = false
	case "Tm":
		if len(op.Operands) == 6 {
			var m coords.Matrix
			for i := 0; i < 6; i++ {
				m[i] = numOperand(op.Operands[i])
			}
			w.tm = m
			w.tlm = m
		}
	case "Td":
		if len(op.Operands) == 2 {
			w.nextLine(numOperand(op.Operands[0]), numOperand(op.Operands[1]))
		}
	case "TD":
		if len(op.Operands) == 2 {
			w.leading = -numOperand(op.Operands[1])
			w.nextLine(numOperand(op.Operands[0]), numOperand(op.Operands[1]))
		}
	case "TL":
		if len(op.Operands) == 1 {
			w.leading = numOperand(op.Operands[0])
		}
	case "T*":
		w.nextLine(0, -w.leading)
	case "Tj", "TJ":
		return true
	case "'":
		w.nextLine(0, -w.leading)
		return true
	case "\"":
		w.nextLine(0, -w.leading)
		return true
	}
	return false
}

func (w *textWalker) nextLine(tx, ty float64) {
	w.tlm = coords.Translate(tx, ty).Multiply(w.tlm)
	w.tm = w.tlm
}

func numOperand(o raw.Object) float64 {
	if n, ok := o.(raw.Number); ok {
		return n.Float()
	}
	return 0
}

// shownText collects the string content of a text-showing operation. PDF
// strings here are treated as Latin-1, which covers the WinAnsi text this
// engine writes and plain ASCII from other producers.
func shownText(op Operation) string {
	var sb strings.Builder
	collect := func(o raw.Object) {
		if s, ok := o.(raw.String); ok {
			for _, b := range s.Value() {
				sb.WriteRune(rune(b))
			}
		}
	}
	switch op.Operator {
	case "Tj", "'":
		if len(op.Operands) > 0 {
			collect(op.Operands[len(op.Operands)-1])
		}
	case "\"":
		if len(op.Operands) == 3 {
			collect(op.Operands[2])
		}
	case "TJ":
		if len(op.Operands) == 1 {
			if arr, ok := op.Operands[0].(raw.Array); ok {
				for i := 0; i < arr.Len(); i++ {
					it, _ := arr.Get(i)
					collect(it)
				}
			}
		}
	}
	return sb.String()
}

// ExtractText returns the text shown by a decoded content stream, with line
// breaks at text-line transitions. Layout fidelity is best effort; the output
// is meant for search, export and redaction verification.
func ExtractText(data []byte) (string, error) {
	ops, err := Parse(data)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	w := newTextWalker()
	for _, op := range ops {
		switch op.Operator {
		case "Td", "TD", "T*", "'", "\"":
			if w.inText && sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteByte('\n')
			}
		case "ET":
			if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteByte('\n')
			}
		}
		if w.step(op) {
			sb.WriteString(shownText(op))
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// StripTextInRegion removes every text-showing operation whose anchor point
// falls inside the region, preserving the positioning side effects of the
// combined show operators so surrounding text does not shift. It returns the
// rebuilt stream and whether anything was removed.
func StripTextInRegion(data []byte, llx, lly, urx, ury float64) ([]byte, bool, error) {
	ops, err := Parse(data)
	if err != nil {
		return nil, false, err
	}
	inside := func(x, y float64) bool {
		return x >= llx && x <= urx && y >= lly && y <= ury
	}
	var out []Operation
	removed := false
	w := newTextWalker()
	for _, op := range ops {
		shows := w.step(op)
		if shows {
			x, y := w.anchor()
			if inside(x, y) {
				removed = true
				// ' and " moved to the next line before showing; keep that
				// movement so the following lines stay in place.
				if op.Operator == "'" || op.Operator == "\"" {
					out = append(out, Operation{Operator: "T*"})
				}
				continue
			}
		}
		out = append(out, op)
	}
	if !removed {
		return data, false, nil
	}
	return Serialize(out), true, nil
}
