package writer

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/docsuite/pdfengine/filters"
	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/observability"
)

// serializeIncremental appends an update section to the original bytes:
// rewritten objects for every dirty page, fresh objects for new content and
// annotations, and an xref section chained to the previous one via /Prev.
// Object identity survives, so untouched objects are never re-emitted.
func serializeIncremental(doc *semantic.Document, opts Options) ([]byte, error) {
	src := doc.Source
	var buf bytes.Buffer
	buf.Write(src.Bytes)
	if n := len(src.Bytes); n > 0 && src.Bytes[n-1] != '\n' {
		buf.WriteByte('\n')
	}

	nextNum := src.MaxObjNum + 1
	offsets := make(map[int]int64)
	alloc := func() int {
		n := nextNum
		nextNum++
		return n
	}
	writeStream := func(num int, dict *raw.DictObj, data []byte) error {
		d := raw.DeepCopy(dict).(*raw.DictObj)
		d.Set("Length", raw.NumberInt(int64(len(data))))
		offsets[num] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n", num)
		if err := serializePrimitive(&buf, d, noCrypt); err != nil {
			return err
		}
		buf.WriteString("\nstream\n")
		buf.Write(data)
		buf.WriteString("\nendstream\nendobj\n")
		return nil
	}
	writeObj := func(num int, obj raw.Object) error {
		if stream, ok := obj.(*raw.StreamObj); ok {
			return writeStream(num, stream.Dict, stream.Data)
		}
		offsets[num] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n", num)
		if err := serializePrimitive(&buf, obj, noCrypt); err != nil {
			return err
		}
		buf.WriteString("\nendobj\n")
		return nil
	}

	updated := 0
	for _, page := range doc.Pages {
		if !page.Dirty {
			continue
		}
		updated++

		contentNum := alloc()
		content := page.ContentBytes()
		streamDict := raw.Dict()
		if opts.Compress {
			enc, err := filters.FlateEncode(content, opts.level())
			if err != nil {
				return nil, err
			}
			content = enc
			streamDict.Set("Filter", raw.NameLiteral("FlateDecode"))
		}
		if err := writeStream(contentNum, streamDict, content); err != nil {
			return nil, err
		}

		// The page object keeps its original number; only its dictionary is
		// replaced. Inherited attributes become explicit, which is valid and
		// sidesteps ancestor rewrites.
		pageDict := raw.Dict()
		pageDict.Set("Type", raw.NameLiteral("Page"))
		if parent := sourcePageParent(src, page.OriginalRef); parent != nil {
			pageDict.Set("Parent", parent)
		}
		pageDict.Set("MediaBox", rectArray(page.MediaBox.LLX, page.MediaBox.LLY, page.MediaBox.URX, page.MediaBox.URY))
		if page.Rotate != 0 {
			pageDict.Set("Rotate", raw.NumberInt(int64(page.Rotate)))
		}
		pageDict.Set("Contents", raw.Ref(contentNum, 0))
		resDict, err := incrementalResources(page.Resources, alloc, writeObj)
		if err != nil {
			return nil, err
		}
		pageDict.Set("Resources", resDict)
		if len(page.Annotations) > 0 {
			annots := raw.NewArray()
			for _, a := range page.Annotations {
				annotObj, err := annotationDict(a)
				if err != nil {
					return nil, err
				}
				num := alloc()
				if err := writeObj(num, annotObj); err != nil {
					return nil, err
				}
				annots.Items = append(annots.Items, raw.Ref(num, 0))
			}
			pageDict.Set("Annots", annots)
		}
		if err := writeObj(page.OriginalRef.Num, pageDict); err != nil {
			return nil, err
		}
	}

	// Metadata changes ride along as a replacement Info object.
	infoNum := alloc()
	if err := writeObj(infoNum, infoDict(doc.Info)); err != nil {
		return nil, err
	}

	// Cross-reference section covering exactly the objects written here.
	nums := make([]int, 0, len(offsets))
	for num := range offsets {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	xrefOffset := int64(buf.Len())
	buf.WriteString("xref\n")
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		fmt.Fprintf(&buf, "%d %d\n", nums[i], j-i+1)
		for k := i; k <= j; k++ {
			fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[nums[k]])
		}
		i = j + 1
	}

	trailer := raw.Dict()
	trailer.Set("Size", raw.NumberInt(int64(nextNum)))
	trailer.Set("Prev", raw.NumberInt(src.XRefOffset))
	trailer.Set("Info", raw.Ref(infoNum, 0))
	if root, ok := src.Trailer.Get("Root"); ok {
		trailer.Set("Root", root)
	}
	if id, ok := src.Trailer.Get("ID"); ok {
		trailer.Set("ID", id)
	}
	buf.WriteString("trailer\n")
	if err := serializePrimitive(&buf, trailer, noCrypt); err != nil {
		return nil, err
	}
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	opts.logger().Debug("incremental update written",
		observability.Int("pages.updated", updated),
		observability.Int64("bytes.appended", int64(buf.Len()-len(src.Bytes))))
	return buf.Bytes(), nil
}

// sourcePageParent recovers the /Parent reference of the original page
// object so the replacement stays attached to the page tree.
func sourcePageParent(src *semantic.SourceInfo, ref raw.ObjectRef) raw.Object {
	obj, ok := src.Objects[ref]
	if !ok {
		return nil
	}
	dict, ok := obj.(*raw.DictObj)
	if !ok {
		return nil
	}
	parent, ok := dict.Get("Parent")
	if !ok {
		return nil
	}
	if _, isRef := parent.(raw.RefObj); !isRef {
		return nil
	}
	return parent
}

// incrementalResources writes the page's resource objects as new objects.
// Resources that originated in the file are re-emitted; refs inside them
// still resolve against the original body, which an incremental update
// leaves intact.
func incrementalResources(res *semantic.Resources, alloc func() int, writeObj func(int, raw.Object) error) (*raw.DictObj, error) {
	out := raw.Dict()
	if res == nil {
		return out, nil
	}
	category := func(key string, entries map[string]raw.Object) error {
		if len(entries) == 0 {
			return nil
		}
		cat := raw.Dict()
		for _, name := range sortedKeys(entries) {
			num := alloc()
			if err := writeObj(num, entries[name]); err != nil {
				return err
			}
			cat.Set(name, raw.Ref(num, 0))
		}
		out.Set(key, cat)
		return nil
	}
	if err := category("Font", res.Fonts); err != nil {
		return nil, err
	}
	if err := category("XObject", res.XObjects); err != nil {
		return nil, err
	}
	if err := category("ExtGState", res.ExtGStates); err != nil {
		return nil, err
	}
	return out, nil
}
