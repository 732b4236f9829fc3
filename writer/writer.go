// Package writer serializes the editable document model back to PDF bytes.
// Untouched documents pass through verbatim; light edits append an
// incremental update section; structural changes and encryption changes
// trigger a full rewrite that renumbers and garbage-collects objects.
package writer

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"sort"

	"github.com/docsuite/pdfengine/filters"
	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/ir/semantic"
	"github.com/docsuite/pdfengine/observability"
	"github.com/docsuite/pdfengine/security"
)

var pdfHeader = []byte("%PDF-1.7\n%\xE2\xE3\xCF\xD3\n")

// Mode selects the serialization strategy.
type Mode int

const (
	// ModeAuto picks verbatim, incremental or full rewrite based on what
	// changed.
	ModeAuto Mode = iota
	// ModeFullRewrite always rebuilds the file from the semantic model.
	ModeFullRewrite
	// ModeIncremental appends an update section; it falls back to a full
	// rewrite when the document's structure changed.
	ModeIncremental
)

// Options configures serialization.
type Options struct {
	Mode Mode
	// Compress flate-encodes newly written content streams.
	Compress bool
	// CompressionLevel is the zlib level for Compress (default 6).
	CompressionLevel int
	// ASCIIStreams additionally hex-encodes new content streams so the
	// whole file is 7-bit clean.
	ASCIIStreams bool
	Logger       observability.Logger
	Tracer       observability.Tracer
}

func (o Options) logger() observability.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return observability.NopLogger{}
}

func (o Options) level() int {
	if o.CompressionLevel == 0 {
		return 6
	}
	return o.CompressionLevel
}

// Serialize writes the document to PDF bytes.
func Serialize(ctx context.Context, doc *semantic.Document, opts Options) ([]byte, error) {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	_, span := tracer.StartSpan(ctx, "pdf.write")
	defer span.Finish()

	mode := opts.Mode
	if mode == ModeAuto {
		switch {
		case isUnchanged(doc):
			span.SetTag("strategy", "verbatim")
			return doc.Source.Bytes, nil
		case canIncrement(doc):
			mode = ModeIncremental
		default:
			mode = ModeFullRewrite
		}
	}
	if mode == ModeIncremental && canIncrement(doc) {
		span.SetTag("strategy", "incremental")
		return serializeIncremental(doc, opts)
	}
	span.SetTag("strategy", "rewrite")
	out, err := serializeFull(doc, opts)
	if err != nil {
		span.SetError(err)
	}
	return out, err
}

func isUnchanged(doc *semantic.Document) bool {
	if doc.Source == nil || doc.Dirty {
		return false
	}
	for _, p := range doc.Pages {
		if p.Dirty {
			return false
		}
	}
	return true
}

// canIncrement holds when the page list kept its original identity and the
// encryption situation did not change. Encrypted sources always rewrite:
// appending to them would mix two encryption contexts.
func canIncrement(doc *semantic.Document) bool {
	src := doc.Source
	if src == nil || src.Encrypted || doc.Encryption != nil {
		return false
	}
	if len(doc.Pages) != len(src.PageRefs) {
		return false
	}
	for i, p := range doc.Pages {
		if p.OriginalRef != src.PageRefs[i] || p.OriginalRef.Num == 0 {
			return false
		}
	}
	return true
}

// serializer accumulates the output of one full rewrite.
type serializer struct {
	buf     bytes.Buffer
	offsets map[int]int64
	nextNum int
	handler security.Handler
	// pending maps source refs to their new numbers so shared indirect
	// objects stay shared after renumbering.
	renumbered map[raw.ObjectRef]int
	deferred   []deferredObj
	source     *semantic.SourceInfo
}

type deferredObj struct {
	num int
	obj raw.Object
}

func newSerializer(source *semantic.SourceInfo) *serializer {
	return &serializer{
		offsets:    make(map[int]int64),
		nextNum:    1,
		handler:    security.NoopHandler(),
		renumbered: make(map[raw.ObjectRef]int),
		source:     source,
	}
}

func (s *serializer) alloc() int {
	n := s.nextNum
	s.nextNum++
	return n
}

func serializeFull(doc *semantic.Document, opts Options) ([]byte, error) {
	s := newSerializer(doc.Source)

	catalogNum := s.alloc()
	pagesNum := s.alloc()
	infoNum := s.alloc()

	// Build the page objects first so every referenced object has a number
	// before anything is written.
	type pagePlan struct {
		pageNum    int
		dict       *raw.DictObj
		contentNum int
		content    []byte
	}
	plans := make([]pagePlan, 0, len(doc.Pages))
	kids := raw.NewArray()
	for _, page := range doc.Pages {
		plan := pagePlan{pageNum: s.alloc(), contentNum: s.alloc(), content: page.ContentBytes()}
		d := raw.Dict()
		d.Set("Type", raw.NameLiteral("Page"))
		d.Set("Parent", raw.Ref(pagesNum, 0))
		d.Set("MediaBox", rectArray(page.MediaBox.LLX, page.MediaBox.LLY, page.MediaBox.URX, page.MediaBox.URY))
		if page.Rotate != 0 {
			d.Set("Rotate", raw.NumberInt(int64(page.Rotate)))
		}
		d.Set("Contents", raw.Ref(plan.contentNum, 0))
		d.Set("Resources", s.resourcesDict(page.Resources))
		if len(page.Annotations) > 0 {
			annots := raw.NewArray()
			for _, a := range page.Annotations {
				annotObj, err := annotationDict(a)
				if err != nil {
					return nil, err
				}
				num := s.alloc()
				s.defer_(num, annotObj)
				annots.Items = append(annots.Items, raw.Ref(num, 0))
			}
			d.Set("Annots", annots)
		}
		plan.dict = d
		plans = append(plans, plan)
		kids.Items = append(kids.Items, raw.Ref(plan.pageNum, 0))
	}

	pagesDict := raw.Dict()
	pagesDict.Set("Type", raw.NameLiteral("Pages"))
	pagesDict.Set("Kids", kids)
	pagesDict.Set("Count", raw.NumberInt(int64(len(doc.Pages))))

	catalog := raw.Dict()
	catalog.Set("Type", raw.NameLiteral("Catalog"))
	catalog.Set("Pages", raw.Ref(pagesNum, 0))

	fileID := computeFileID(doc)

	// Encryption is decided before anything is written so strings and
	// streams pass through the handler on the way out.
	var encDict *raw.DictObj
	encNum := 0
	if doc.Encryption != nil {
		var err error
		encDict, s.handler, err = security.Build(security.BuildParams{
			UserPassword:    doc.Encryption.UserPassword,
			OwnerPassword:   doc.Encryption.OwnerPass,
			Method:          doc.Encryption.Method,
			Permissions:     doc.Encryption.Permissions,
			EncryptMetadata: true,
		}, fileID)
		if err != nil {
			return nil, err
		}
		encNum = s.alloc()
	}

	// Emit.
	s.buf.Write(pdfHeader)
	if err := s.writeObject(catalogNum, catalog); err != nil {
		return nil, err
	}
	if err := s.writeObject(pagesNum, pagesDict); err != nil {
		return nil, err
	}
	if err := s.writeObject(infoNum, infoDict(doc.Info)); err != nil {
		return nil, err
	}
	for _, plan := range plans {
		if err := s.writeObject(plan.pageNum, plan.dict); err != nil {
			return nil, err
		}
		if err := s.writeContentStream(plan.contentNum, plan.content, opts); err != nil {
			return nil, err
		}
	}
	// Deferred objects grow while materializing source references, so the
	// loop re-checks length.
	for i := 0; i < len(s.deferred); i++ {
		d := s.deferred[i]
		if err := s.writeObject(d.num, d.obj); err != nil {
			return nil, err
		}
	}
	if encDict != nil {
		if err := s.writePlainObject(encNum, encDict); err != nil {
			return nil, err
		}
	}

	// Cross-reference table and trailer.
	xrefOffset := int64(s.buf.Len())
	fmt.Fprintf(&s.buf, "xref\n0 %d\n", s.nextNum)
	s.buf.WriteString("0000000000 65535 f \n")
	for num := 1; num < s.nextNum; num++ {
		fmt.Fprintf(&s.buf, "%010d 00000 n \n", s.offsets[num])
	}
	trailer := raw.Dict()
	trailer.Set("Size", raw.NumberInt(int64(s.nextNum)))
	trailer.Set("Root", raw.Ref(catalogNum, 0))
	trailer.Set("Info", raw.Ref(infoNum, 0))
	trailer.Set("ID", raw.NewArray(raw.HexStr(fileID), raw.HexStr(fileID)))
	if encNum != 0 {
		trailer.Set("Encrypt", raw.Ref(encNum, 0))
	}
	s.buf.WriteString("trailer\n")
	if err := serializePrimitive(&s.buf, trailer, noCrypt); err != nil {
		return nil, err
	}
	fmt.Fprintf(&s.buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	opts.logger().Debug("document serialized",
		observability.Int(observability.MetricObjectCount, s.nextNum-1),
		observability.Int(observability.MetricPageCount, len(doc.Pages)))
	return s.buf.Bytes(), nil
}

func (s *serializer) defer_(num int, obj raw.Object) {
	s.deferred = append(s.deferred, deferredObj{num: num, obj: obj})
}

// resourcesDict builds the page /Resources dictionary, assigning every
// resource object its own number.
func (s *serializer) resourcesDict(res *semantic.Resources) *raw.DictObj {
	out := raw.Dict()
	if res == nil {
		return out
	}
	category := func(key string, entries map[string]raw.Object) {
		if len(entries) == 0 {
			return
		}
		cat := raw.Dict()
		// Sorted so object numbering, and with it the whole file, is
		// deterministic.
		for _, name := range sortedKeys(entries) {
			num := s.alloc()
			s.defer_(num, entries[name])
			cat.Set(name, raw.Ref(num, 0))
		}
		out.Set(key, cat)
	}
	category("Font", res.Fonts)
	category("XObject", res.XObjects)
	category("ExtGState", res.ExtGStates)
	procSet := raw.NewArray(raw.NameLiteral("PDF"), raw.NameLiteral("Text"), raw.NameLiteral("ImageB"), raw.NameLiteral("ImageC"))
	out.Set("ProcSet", procSet)
	return out
}

// materialize rewrites source references inside an object to the new
// numbering, scheduling the referenced objects for output.
func (s *serializer) materialize(obj raw.Object) raw.Object {
	switch v := obj.(type) {
	case raw.RefObj:
		if num, ok := s.renumbered[v.R]; ok {
			return raw.Ref(num, 0)
		}
		if s.source == nil {
			return raw.NullObj{}
		}
		target, ok := s.source.Objects[v.R]
		if !ok {
			return raw.NullObj{}
		}
		num := s.alloc()
		s.renumbered[v.R] = num
		s.defer_(num, target)
		return raw.Ref(num, 0)
	case *raw.ArrayObj:
		out := raw.NewArray()
		for _, item := range v.Items {
			out.Items = append(out.Items, s.materialize(item))
		}
		return out
	case *raw.DictObj:
		out := raw.Dict()
		for _, key := range v.Keys() {
			val, _ := v.Get(key)
			out.Set(key, s.materialize(val))
		}
		return out
	case *raw.StreamObj:
		return raw.NewStream(s.materialize(v.Dict).(*raw.DictObj), v.Data)
	default:
		return obj
	}
}

func (s *serializer) writeObject(num int, obj raw.Object) error {
	obj = s.materialize(obj)
	if stream, ok := obj.(*raw.StreamObj); ok {
		return s.writeStream(num, stream.Dict, stream.Data)
	}
	s.offsets[num] = int64(s.buf.Len())
	fmt.Fprintf(&s.buf, "%d 0 obj\n", num)
	crypt := s.stringCrypt(num)
	if err := serializePrimitive(&s.buf, obj, crypt); err != nil {
		return err
	}
	s.buf.WriteString("\nendobj\n")
	return nil
}

// writePlainObject skips encryption; the Encrypt dictionary itself must stay
// readable.
func (s *serializer) writePlainObject(num int, obj raw.Object) error {
	s.offsets[num] = int64(s.buf.Len())
	fmt.Fprintf(&s.buf, "%d 0 obj\n", num)
	if err := serializePrimitive(&s.buf, obj, noCrypt); err != nil {
		return err
	}
	s.buf.WriteString("\nendobj\n")
	return nil
}

// writeStream writes a stream object carried over from the source, keeping
// its existing filter chain and refreshing /Length.
func (s *serializer) writeStream(num int, dict *raw.DictObj, data []byte) error {
	out, err := s.handler.Encrypt(num, 0, data, security.DataClassStream)
	if err != nil {
		return err
	}
	d := raw.DeepCopy(dict).(*raw.DictObj)
	d.Set("Length", raw.NumberInt(int64(len(out))))
	s.offsets[num] = int64(s.buf.Len())
	fmt.Fprintf(&s.buf, "%d 0 obj\n", num)
	if err := serializePrimitive(&s.buf, d, s.stringCrypt(num)); err != nil {
		return err
	}
	s.buf.WriteString("\nstream\n")
	s.buf.Write(out)
	s.buf.WriteString("\nendstream\nendobj\n")
	return nil
}

// writeContentStream writes a freshly built content stream, optionally
// flate-compressed and optionally hex-armored on top of that.
func (s *serializer) writeContentStream(num int, content []byte, opts Options) error {
	dict := raw.Dict()
	data, filter, err := encodeContent(content, opts)
	if err != nil {
		return err
	}
	if filter != nil {
		dict.Set("Filter", filter)
	}
	return s.writeStream(num, dict, data)
}

// encodeContent applies the filter chain the options ask for and returns the
// payload with its /Filter value (nil when the data stays raw). Decoders run
// the chain front to back, so ASCIIHexDecode goes first.
func encodeContent(content []byte, opts Options) ([]byte, raw.Object, error) {
	data := content
	var names []string
	if opts.Compress {
		enc, err := filters.FlateEncode(content, opts.level())
		if err != nil {
			return nil, nil, err
		}
		data = enc
		names = append(names, "FlateDecode")
	}
	if opts.ASCIIStreams {
		data = filters.ASCIIHexEncode(data)
		names = append([]string{"ASCIIHexDecode"}, names...)
	}
	switch len(names) {
	case 0:
		return data, nil, nil
	case 1:
		return data, raw.NameLiteral(names[0]), nil
	default:
		arr := raw.NewArray()
		for _, n := range names {
			arr.Items = append(arr.Items, raw.NameLiteral(n))
		}
		return data, arr, nil
	}
}

func sortedKeys(m map[string]raw.Object) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *serializer) stringCrypt(num int) cryptFunc {
	if !s.handler.IsEncrypted() {
		return noCrypt
	}
	return func(data []byte) ([]byte, error) {
		return s.handler.Encrypt(num, 0, data, security.DataClassString)
	}
}

func infoDict(info semantic.DocumentInfo) *raw.DictObj {
	d := raw.Dict()
	set := func(key, val string) {
		if val != "" {
			d.Set(key, raw.Str([]byte(val)))
		}
	}
	set("Title", info.Title)
	set("Author", info.Author)
	set("Subject", info.Subject)
	set("Creator", info.Creator)
	set("Producer", info.Producer)
	set("Keywords", info.Keywords)
	set("CreationDate", info.CreationDate)
	set("ModDate", info.ModDate)
	return d
}

// computeFileID derives a deterministic file identifier from document
// content, so identical inputs produce identical outputs.
func computeFileID(doc *semantic.Document) []byte {
	h := md5.New()
	fmt.Fprintf(h, "%d/%s/%s", len(doc.Pages), doc.Info.Title, doc.Info.Author)
	for _, p := range doc.Pages {
		h.Write(p.ContentBytes())
		fmt.Fprintf(h, "%f%f", p.MediaBox.URX, p.MediaBox.URY)
	}
	return h.Sum(nil)
}
