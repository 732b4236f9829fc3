package parser

import (
	"fmt"

	"github.com/docsuite/pdfengine/color"
	"github.com/docsuite/pdfengine/filters"
	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/pdferr"
)

// defaultMediaBox is US Letter, used when a page tree omits the entry.
var defaultMediaBox = semantic.Rectangle{URX: 612, URY: 792}

// inherited carries the page-tree attributes children inherit from their
// ancestors.
type inherited struct {
	mediaBox  *semantic.Rectangle
	rotate    *int
	resources raw.Dictionary
}

// buildSemantic lifts a raw document into the editable model.
func (l *loader) buildSemantic() (*semantic.Document, error) {
	rootDict, err := l.catalog()
	if err != nil {
		return nil, err
	}
	pagesObj, ok := rootDict.Get("Pages")
	if !ok {
		return nil, fmt.Errorf("%w: catalog has no page tree", pdferr.CorruptDocument)
	}
	pagesDict, ok := l.doc.ResolveDict(pagesObj)
	if !ok {
		return nil, fmt.Errorf("%w: page tree root is not a dictionary", pdferr.CorruptDocument)
	}

	var pages []*semantic.Page
	var pageRefs []raw.ObjectRef
	seen := make(map[raw.ObjectRef]bool)
	err = l.walkPageTree(pagesDict, pagesObj, inherited{}, seen, func(dict raw.Dictionary, ref raw.ObjectRef, inh inherited) error {
		page, err := l.buildPage(dict, ref, inh)
		if err != nil {
			return err
		}
		pages = append(pages, page)
		pageRefs = append(pageRefs, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: document has no pages", pdferr.CorruptDocument)
	}

	doc := &semantic.Document{
		Pages:   pages,
		Info:    l.docInfo(),
		Version: l.doc.Version,
		Source: &semantic.SourceInfo{
			Bytes:      l.data,
			Objects:    l.doc.Objects,
			Trailer:    l.doc.Trailer,
			XRefOffset: l.doc.XRefOffset,
			MaxObjNum:  l.table.MaxObjectNumber(),
			PageRefs:   pageRefs,
			Encrypted:  l.handler.IsEncrypted(),
		},
	}
	if l.handler.IsEncrypted() {
		method := semantic.EncryptRC4128
		encDict, _ := l.doc.ResolveDict(mustGet(l.doc.Trailer, "Encrypt"))
		if v, _ := raw.DictGetInt(encDict, "V"); v >= 5 {
			method = semantic.EncryptAES256
		} else if v == 4 {
			method = semantic.EncryptAES128
		}
		uEntry, _ := raw.DictGetString(encDict, "U")
		oEntry, _ := raw.DictGetString(encDict, "O")
		doc.Encryption = &semantic.EncryptionState{
			Method:       method,
			Permissions:  l.handler.Permissions(),
			UserKeyHash:  uEntry,
			OwnerKeyHash: oEntry,
		}
	}
	return doc, nil
}

func mustGet(d raw.Dictionary, key string) raw.Object {
	v, _ := d.Get(key)
	return v
}

func (l *loader) catalog() (raw.Dictionary, error) {
	rootObj, ok := l.doc.Trailer.Get("Root")
	if !ok {
		return nil, fmt.Errorf("%w: trailer has no Root", pdferr.CorruptDocument)
	}
	rootDict, ok := l.doc.ResolveDict(rootObj)
	if !ok {
		return nil, fmt.Errorf("%w: catalog is not a dictionary", pdferr.CorruptDocument)
	}
	return rootDict, nil
}

// walkPageTree recurses through Pages nodes in order, tracking inheritable
// attributes and guarding against reference cycles.
func (l *loader) walkPageTree(node raw.Dictionary, nodeObj raw.Object, inh inherited, seen map[raw.ObjectRef]bool, visit func(raw.Dictionary, raw.ObjectRef, inherited) error) error {
	if ref, ok := nodeObj.(raw.Reference); ok {
		if seen[ref.Ref()] {
			return fmt.Errorf("%w: page tree cycle at %v", pdferr.CorruptDocument, ref.Ref())
		}
		seen[ref.Ref()] = true
	}
	if mb := l.rectFromDict(node, "MediaBox"); mb != nil {
		inh.mediaBox = mb
	}
	if rot, ok := raw.DictGetInt(node, "Rotate"); ok {
		r := int(rot)
		inh.rotate = &r
	}
	if resObj, ok := node.Get("Resources"); ok {
		if resDict, ok := l.doc.ResolveDict(resObj); ok {
			inh.resources = resDict
		}
	}

	nodeType, _ := raw.DictGetName(node, "Type")
	if nodeType == "Page" {
		var ref raw.ObjectRef
		if r, ok := nodeObj.(raw.Reference); ok {
			ref = r.Ref()
		}
		return visit(node, ref, inh)
	}

	kidsObj, ok := node.Get("Kids")
	if !ok {
		return fmt.Errorf("%w: page tree node has neither Kids nor Page type", pdferr.CorruptDocument)
	}
	kids, ok := l.doc.Resolve(kidsObj).(raw.Array)
	if !ok {
		return fmt.Errorf("%w: Kids is not an array", pdferr.CorruptDocument)
	}
	for i := 0; i < kids.Len(); i++ {
		kidObj, _ := kids.Get(i)
		kidDict, ok := l.doc.ResolveDict(kidObj)
		if !ok {
			return fmt.Errorf("%w: page tree kid %d unresolvable", pdferr.CorruptDocument, i)
		}
		if err := l.walkPageTree(kidDict, kidObj, inh, seen, visit); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) buildPage(dict raw.Dictionary, ref raw.ObjectRef, inh inherited) (*semantic.Page, error) {
	page := &semantic.Page{
		MediaBox:    defaultMediaBox,
		Resources:   semantic.NewResources(),
		OriginalRef: ref,
	}
	if inh.mediaBox != nil {
		page.MediaBox = *inh.mediaBox
	}
	if inh.rotate != nil {
		r := ((*inh.rotate % 360) + 360) % 360
		page.Rotate = r - r%90
	}

	if err := l.loadContents(page, dict); err != nil {
		return nil, err
	}
	l.loadResources(page, inh.resources)
	if err := l.loadAnnotations(page, dict); err != nil {
		return nil, err
	}
	return page, nil
}

func (l *loader) loadContents(page *semantic.Page, dict raw.Dictionary) error {
	contentsObj, ok := dict.Get("Contents")
	if !ok {
		return nil
	}
	var streams []raw.Object
	switch v := l.doc.Resolve(contentsObj).(type) {
	case raw.Array:
		for i := 0; i < v.Len(); i++ {
			item, _ := v.Get(i)
			streams = append(streams, item)
		}
	default:
		streams = []raw.Object{contentsObj}
	}
	for _, sObj := range streams {
		stream, ok := l.doc.Resolve(sObj).(*raw.StreamObj)
		if !ok {
			continue
		}
		names, parms := filters.FilterChain(l.doc, stream.Dict)
		decoded, err := filters.Decode(stream.Data, names, parms)
		if err != nil {
			return fmt.Errorf("%w: content stream: %v", pdferr.CorruptDocument, err)
		}
		page.Contents = append(page.Contents, semantic.ContentStream{Raw: decoded})
	}
	return nil
}

// loadResources resolves the page's Font, XObject and ExtGState entries. The
// resolved objects are shared with the raw document, not copied; Clone
// performs the deep copy when a page moves between documents.
func (l *loader) loadResources(page *semantic.Page, res raw.Dictionary) {
	if res == nil {
		return
	}
	copyCategory := func(key string, into map[string]raw.Object) {
		catObj, ok := res.Get(key)
		if !ok {
			return
		}
		cat, ok := l.doc.ResolveDict(catObj)
		if !ok {
			return
		}
		for _, name := range cat.Keys() {
			entry, _ := cat.Get(name)
			if resolved := l.doc.Resolve(entry); resolved != nil {
				into[name] = resolved
			}
		}
	}
	copyCategory("Font", page.Resources.Fonts)
	copyCategory("XObject", page.Resources.XObjects)
	copyCategory("ExtGState", page.Resources.ExtGStates)
}

func (l *loader) loadAnnotations(page *semantic.Page, dict raw.Dictionary) error {
	annotsObj, ok := dict.Get("Annots")
	if !ok {
		return nil
	}
	annots, ok := l.doc.Resolve(annotsObj).(raw.Array)
	if !ok {
		return nil
	}
	for i := 0; i < annots.Len(); i++ {
		item, _ := annots.Get(i)
		annotDict, ok := l.doc.ResolveDict(item)
		if !ok {
			continue
		}
		page.Annotations = append(page.Annotations, l.classifyAnnotation(annotDict))
	}
	return nil
}

// classifyAnnotation maps an annotation dictionary onto the closed variant.
// Kinds outside the model ride through as Passthrough.
func (l *loader) classifyAnnotation(dict raw.Dictionary) semantic.Annotation {
	rect := semantic.Rectangle{}
	if r := l.rectFromDict(dict, "Rect"); r != nil {
		rect = *r
	}
	subtype, _ := raw.DictGetName(dict, "Subtype")
	c := l.colorFromDict(dict, "C")
	switch subtype {
	case "Highlight":
		return semantic.Highlight{Rect: rect, Color: orDefault(c, color.RGB{R: 1, G: 1})}
	case "Underline":
		return semantic.Underline{Rect: rect, Color: orDefault(c, color.Black)}
	case "StrikeOut":
		return semantic.StrikeOut{Rect: rect, Color: orDefault(c, color.RGB{R: 1})}
	case "Squiggly":
		return semantic.Squiggly{Rect: rect, Color: orDefault(c, color.Black)}
	case "Text":
		text, _ := raw.DictGetString(dict, "Contents")
		icon, ok := raw.DictGetName(dict, "Name")
		if !ok {
			icon = "Note"
		}
		return semantic.Note{
			At:   semantic.Point{X: rect.LLX, Y: rect.LLY},
			Text: string(text),
			Icon: icon,
		}
	case "FreeText":
		text, _ := raw.DictGetString(dict, "Contents")
		return semantic.FreeText{Rect: rect, Text: string(text), FontSize: 12, Color: orDefault(c, color.Black)}
	case "Stamp":
		text, _ := raw.DictGetString(dict, "Contents")
		if len(text) == 0 {
			if name, ok := raw.DictGetName(dict, "Name"); ok {
				text = []byte(name)
			}
		}
		return semantic.Stamp{Rect: rect, Text: string(text), Color: orDefault(c, color.RGB{R: 0.8})}
	case "Square":
		return semantic.Square{Rect: rect, Stroke: orDefault(c, color.Black), Fill: l.colorFromDict(dict, "IC")}
	case "Circle":
		radius := rect.Width() / 2
		if h := rect.Height() / 2; h < radius {
			radius = h
		}
		return semantic.Circle{
			Center: semantic.Point{X: (rect.LLX + rect.URX) / 2, Y: (rect.LLY + rect.URY) / 2},
			Radius: radius,
			Stroke: orDefault(c, color.Black),
			Fill:   l.colorFromDict(dict, "IC"),
		}
	case "Line":
		if lObj, ok := dict.Get("L"); ok {
			if arr, ok := l.doc.Resolve(lObj).(raw.Array); ok && arr.Len() == 4 {
				var v [4]float64
				for i := 0; i < 4; i++ {
					item, _ := arr.Get(i)
					if n, ok := l.doc.Resolve(item).(raw.Number); ok {
						v[i] = n.Float()
					}
				}
				return semantic.Line{
					P1:     semantic.Point{X: v[0], Y: v[1]},
					P2:     semantic.Point{X: v[2], Y: v[3]},
					Stroke: orDefault(c, color.Black),
				}
			}
		}
	}
	return semantic.Passthrough{Dict: l.detachAnnotation(dict), Rect: rect}
}

// detachAnnotation deep-copies a passthrough annotation dictionary with its
// references resolved inline, so it survives a full rewrite that renumbers
// every object. Back-references that would cycle or dangle are dropped.
func (l *loader) detachAnnotation(dict raw.Dictionary) raw.Object {
	out := raw.Dict()
	for _, key := range dict.Keys() {
		switch key {
		case "P", "Parent", "Popup", "Dest", "A":
			continue
		}
		val, _ := dict.Get(key)
		out.Set(key, l.resolveDeep(val, 0))
	}
	return out
}

func (l *loader) resolveDeep(obj raw.Object, depth int) raw.Object {
	if depth > 4 {
		return raw.NullObj{}
	}
	switch v := l.doc.Resolve(obj).(type) {
	case *raw.ArrayObj:
		out := raw.NewArray()
		for _, item := range v.Items {
			out.Items = append(out.Items, l.resolveDeep(item, depth+1))
		}
		return out
	case *raw.DictObj:
		out := raw.Dict()
		for _, key := range v.Keys() {
			val, _ := v.Get(key)
			out.Set(key, l.resolveDeep(val, depth+1))
		}
		return out
	case nil:
		return raw.NullObj{}
	default:
		return raw.DeepCopy(v)
	}
}

func (l *loader) rectFromDict(dict raw.Dictionary, key string) *semantic.Rectangle {
	obj, ok := dict.Get(key)
	if !ok {
		return nil
	}
	arr, ok := l.doc.Resolve(obj).(raw.Array)
	if !ok || arr.Len() != 4 {
		return nil
	}
	var v [4]float64
	for i := 0; i < 4; i++ {
		item, _ := arr.Get(i)
		n, ok := l.doc.Resolve(item).(raw.Number)
		if !ok {
			return nil
		}
		v[i] = n.Float()
	}
	r := semantic.Rectangle{LLX: v[0], LLY: v[1], URX: v[2], URY: v[3]}
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return &r
}

func (l *loader) colorFromDict(dict raw.Dictionary, key string) *color.RGB {
	obj, ok := dict.Get(key)
	if !ok {
		return nil
	}
	arr, ok := l.doc.Resolve(obj).(raw.Array)
	if !ok {
		return nil
	}
	get := func(i int) float64 {
		item, _ := arr.Get(i)
		if n, ok := l.doc.Resolve(item).(raw.Number); ok {
			return n.Float()
		}
		return 0
	}
	switch arr.Len() {
	case 1:
		g := get(0)
		return &color.RGB{R: g, G: g, B: g}
	case 3:
		return &color.RGB{R: get(0), G: get(1), B: get(2)}
	}
	return nil
}

func orDefault(c *color.RGB, def color.RGB) color.RGB {
	if c != nil {
		return *c
	}
	return def
}

func (l *loader) docInfo() semantic.DocumentInfo {
	var info semantic.DocumentInfo
	infoObj, ok := l.doc.Trailer.Get("Info")
	if !ok {
		return info
	}
	infoDict, ok := l.doc.ResolveDict(infoObj)
	if !ok {
		return info
	}
	str := func(key string) string {
		b, _ := raw.DictGetString(infoDict, key)
		return string(b)
	}
	info.Title = str("Title")
	info.Author = str("Author")
	info.Subject = str("Subject")
	info.Creator = str("Creator")
	info.Producer = str("Producer")
	info.Keywords = str("Keywords")
	info.CreationDate = str("CreationDate")
	info.ModDate = str("ModDate")
	return info
}
