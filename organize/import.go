package organize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/docsuite/pdfengine/contentstream"
	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/pdferr"
)

// importPage deep-copies a page for use in another document. Source resource
// names are kept, so an untouched page round-trips with byte-identical
// content; a fresh prefix-numbered name is minted only when a name is already
// claimed by an earlier category, and the content stream is re-serialized
// only when at least one rename happened.
func importPage(src *semantic.Page) (*semantic.Page, error) {
	page := src.Clone()
	if page.Resources == nil {
		return page, nil
	}

	// Resource names share one namespace across categories, the same
	// discipline FreshName enforces.
	used := make(map[string]bool)
	fonts := claimNames(page.Resources.Fonts, used, "F")
	xobjects := claimNames(page.Resources.XObjects, used, "Im")
	gstates := claimNames(page.Resources.ExtGStates, used, "GS")
	if len(fonts)+len(xobjects)+len(gstates) == 0 {
		return page, nil
	}

	res := semantic.NewResources()
	if err := applyRenames(res.Fonts, page.Resources.Fonts, fonts); err != nil {
		return nil, err
	}
	if err := applyRenames(res.XObjects, page.Resources.XObjects, xobjects); err != nil {
		return nil, err
	}
	if err := applyRenames(res.ExtGStates, page.Resources.ExtGStates, gstates); err != nil {
		return nil, err
	}
	page.Resources = res

	if len(page.Contents) > 0 {
		rewritten, err := rewriteResourceNames(page.ContentBytes(), fonts, xobjects, gstates)
		if err != nil {
			return nil, err
		}
		page.Contents = []semantic.ContentStream{{Raw: rewritten}}
	}
	return page, nil
}

// claimNames reserves every entry's name in used, walking sorted source order
// so imports are deterministic. A name that is already claimed gets a fresh
// prefix-numbered replacement; the returned map holds only those renames.
func claimNames(entries map[string]raw.Object, used map[string]bool, prefix string) map[string]string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	var rename map[string]string
	for _, name := range names {
		if !used[name] {
			used[name] = true
			continue
		}
		for i := 0; ; i++ {
			fresh := fmt.Sprintf("%s%d", prefix, i)
			if used[fresh] {
				continue
			}
			used[fresh] = true
			if rename == nil {
				rename = make(map[string]string)
			}
			rename[name] = fresh
			break
		}
	}
	return rename
}

// applyRenames copies src into dst under the renamed names. A duplicate
// target name means the claim logic itself is broken.
func applyRenames(dst, src map[string]raw.Object, rename map[string]string) error {
	for name, obj := range src {
		target := name
		if fresh, ok := rename[name]; ok {
			target = fresh
		}
		if _, taken := dst[target]; taken {
			return fmt.Errorf("%w: name %s assigned twice", pdferr.ResourceCollision, target)
		}
		dst[target] = obj
	}
	return nil
}

// rewriteResourceNames updates the resource-selecting operators to the
// remapped names: Tf for fonts, Do for XObjects, gs for graphics states.
func rewriteResourceNames(content []byte, fonts, xobjects, gstates map[string]string) ([]byte, error) {
	ops, err := contentstream.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("rewrite resources: %w", err)
	}
	rename := func(op *contentstream.Operation, table map[string]string) {
		if len(op.Operands) == 0 || table == nil {
			return
		}
		if n, ok := op.Operands[0].(raw.NameObj); ok {
			if fresh, ok := table[n.Val]; ok {
				op.Operands[0] = raw.NameLiteral(fresh)
			}
		}
	}
	for i := range ops {
		switch ops[i].Operator {
		case "Tf":
			rename(&ops[i], fonts)
		case "Do":
			rename(&ops[i], xobjects)
		case "gs":
			rename(&ops[i], gstates)
		}
	}
	return contentstream.Serialize(ops), nil
}

// ParseRangeSpec parses a page-range expression like "1-2,5,7-9" into a
// ByRanges strategy. Single numbers are one-page ranges. Bounds are
// validated later against the document, not here.
func ParseRangeSpec(spec string) (ByRanges, error) {
	var out ByRanges
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var r PageRange
		if start, end, found := strings.Cut(part, "-"); found {
			a, err1 := strconv.Atoi(strings.TrimSpace(start))
			b, err2 := strconv.Atoi(strings.TrimSpace(end))
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("%w: range %q", pdferr.InvalidParameter, part)
			}
			r = PageRange{Start: a, End: b}
		} else {
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("%w: page %q", pdferr.InvalidParameter, part)
			}
			r = PageRange{Start: n, End: n}
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty range spec %q", pdferr.InvalidParameter, spec)
	}
	return out, nil
}
