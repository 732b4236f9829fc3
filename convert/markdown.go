package convert

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/pdferr"
)

// MarkdownToPDF parses markdown with goldmark and lays the block structure
// out onto letter-size pages. Headings scale the body size (2x, 1.5x, 1.25x),
// list items get a bullet and an indent, everything inline collapses to plain
// text. That matches the no-layout-fidelity contract of this boundary.
func MarkdownToPDF(source string) (*semantic.Document, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: empty markdown source", pdferr.InvalidParameter)
	}
	src := []byte(source)
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	f := newFlow()
	if err := walkMarkdown(f, root, src); err != nil {
		return nil, err
	}
	return f.doc, nil
}

func walkMarkdown(f *flow, node ast.Node, source []byte) error {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Heading:
			if err := f.writeWrapped(nodeText(n, source), headingSize(n.Level), 0); err != nil {
				return err
			}
		case *ast.Paragraph:
			if err := f.writeWrapped(nodeText(n, source), bodyFontSize, 0); err != nil {
				return err
			}
			f.space(bodyFontSize / 2)
		case *ast.List:
			if err := walkMarkdown(f, n, source); err != nil {
				return err
			}
			f.space(bodyFontSize / 2)
		case *ast.ListItem:
			if err := writeListItem(f, n, source); err != nil {
				return err
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if err := writeCodeBlock(f, child, source); err != nil {
				return err
			}
		case *ast.ThematicBreak:
			f.space(bodyFontSize)
		}
	}
	return nil
}

func headingSize(level int) float64 {
	switch {
	case level == 1:
		return bodyFontSize * 2.0
	case level == 2:
		return bodyFontSize * 1.5
	default:
		return bodyFontSize * 1.25
	}
}

func writeListItem(f *flow, n *ast.ListItem, source []byte) error {
	item := nodeText(n, source)
	if item == "" {
		return nil
	}
	return f.writeWrapped("- "+item, bodyFontSize, listIndent)
}

// writeCodeBlock preserves the block's own line breaks instead of rewrapping.
func writeCodeBlock(f *flow, node ast.Node, source []byte) error {
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(source)), "\n")
		if err := f.writeLine(line, bodyFontSize, listIndent); err != nil {
			return err
		}
	}
	f.space(bodyFontSize / 2)
	return nil
}

// nodeText flattens a block node's inline children to plain text, joining
// soft line breaks with spaces.
func nodeText(node ast.Node, source []byte) string {
	var sb strings.Builder
	var visit func(ast.Node)
	visit = func(n ast.Node) {
		if t, ok := n.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
			return
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			visit(c)
		}
	}
	visit(node)
	return strings.TrimSpace(sb.String())
}
