package convert

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/pdferr"
)

// HTMLToText parses HTML and extracts the visible text, one line per block
// element. Script and style contents are dropped.
func HTMLToText(source string) (string, error) {
	root, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return "", fmt.Errorf("%w: %v", pdferr.UnsupportedFormat, err)
	}
	var lines []string
	collectHTMLBlocks(root, &lines)
	return strings.Join(lines, "\n"), nil
}

// HTMLToPDF extracts the block text of an HTML fragment and feeds it through
// the same flow layout as markdown. Headings keep their level-based sizing;
// everything else is body text.
func HTMLToPDF(source string) (*semantic.Document, error) {
	root, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pdferr.UnsupportedFormat, err)
	}
	f := newFlow()
	if err := walkHTML(f, root); err != nil {
		return nil, err
	}
	if len(f.doc.Pages) == 1 && len(f.doc.Pages[0].Contents) == 0 {
		return nil, fmt.Errorf("%w: no visible text", pdferr.InvalidParameter)
	}
	return f.doc, nil
}

func walkHTML(f *flow, n *html.Node) error {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style:
			return nil
		case atom.H1:
			return f.writeWrapped(htmlText(n), headingSize(1), 0)
		case atom.H2:
			return f.writeWrapped(htmlText(n), headingSize(2), 0)
		case atom.H3, atom.H4, atom.H5, atom.H6:
			return f.writeWrapped(htmlText(n), headingSize(3), 0)
		case atom.P:
			if text := htmlText(n); text != "" {
				if err := f.writeWrapped(text, bodyFontSize, 0); err != nil {
					return err
				}
				f.space(bodyFontSize / 2)
			}
			return nil
		case atom.Li:
			if text := htmlText(n); text != "" {
				return f.writeWrapped("- "+text, bodyFontSize, listIndent)
			}
			return nil
		case atom.Br:
			f.space(bodyFontSize)
			return nil
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := walkHTML(f, c); err != nil {
			return err
		}
	}
	return nil
}

// collectHTMLBlocks appends one line per block-level element in document
// order.
func collectHTMLBlocks(n *html.Node, lines *[]string) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style:
			return
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.P, atom.Li:
			if text := htmlText(n); text != "" {
				*lines = append(*lines, text)
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectHTMLBlocks(c, lines)
	}
}

// htmlText concatenates the text nodes under n, collapsing whitespace.
func htmlText(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
