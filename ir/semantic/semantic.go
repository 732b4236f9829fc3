// Package semantic is the editable representation of a PDF document: an
// ordered page list with per-page geometry, resources, content streams and
// annotations, plus document-level metadata and encryption state.
//
// Every mutation component (editor, organize, security, optimize) operates on
// this model; the parser produces it and the writer and renderer consume it.
// The model is not internally synchronized: one document, one mutation at a
// time. Renders only read.
package semantic

import (
	"fmt"

	"github.com/docsuite/pdfengine/ir/raw"
)

// Document is the root of the object model.
type Document struct {
	Pages      []*Page
	Info       DocumentInfo
	Version    string
	Encryption *EncryptionState // nil when unencrypted

	// Source carries the bytes and trailer state of the file this document
	// was loaded from, enabling incremental-update serialization. Nil for
	// documents built from scratch or heavily restructured.
	Source *SourceInfo

	// Dirty is set by any mutation; the writer falls back to a full rewrite
	// of the page tree when set together with structural changes.
	Dirty bool
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.Pages) }

// CheckPageIndex validates a zero-based page index against the document.
func (d *Document) CheckPageIndex(idx int) error {
	if idx < 0 || idx >= len(d.Pages) {
		return fmt.Errorf("page %d of %d: index out of range", idx, len(d.Pages))
	}
	return nil
}

// Clone deep-copies the document's editable state: pages, info and
// encryption state. The source snapshot is not carried over, so a clone
// always serializes as a full rewrite.
func (d *Document) Clone() *Document {
	out := &Document{
		Info:    d.Info,
		Version: d.Version,
		Dirty:   d.Dirty,
	}
	if d.Encryption != nil {
		enc := *d.Encryption
		out.Encryption = &enc
	}
	out.Pages = make([]*Page, len(d.Pages))
	for i, p := range d.Pages {
		out.Pages[i] = p.Clone()
	}
	return out
}

// SourceInfo snapshots the parsed file for incremental updates.
type SourceInfo struct {
	Bytes      []byte
	Objects    map[raw.ObjectRef]raw.Object
	Trailer    raw.Dictionary
	XRefOffset int64
	MaxObjNum  int
	// PageRefs maps each original page index to its object number, so an
	// incremental update can overwrite just the touched page objects.
	PageRefs []raw.ObjectRef
	// Encrypted records that the source file carried an Encrypt dictionary,
	// which rules out textual append without re-encryption.
	Encrypted bool
}

// DocumentInfo models the /Info dictionary.
type DocumentInfo struct {
	Title        string
	Author       string
	Subject      string
	Creator      string
	Producer     string
	Keywords     string
	CreationDate string
	ModDate      string
}

// EncryptionMethod selects the standard-security cipher.
type EncryptionMethod string

const (
	EncryptRC4128 EncryptionMethod = "rc4-128"
	EncryptAES128 EncryptionMethod = "aes-128"
	EncryptAES256 EncryptionMethod = "aes-256"
)

// ParseEncryptionMethod validates an external method string.
func ParseEncryptionMethod(s string) (EncryptionMethod, error) {
	switch EncryptionMethod(s) {
	case EncryptRC4128, EncryptAES128, EncryptAES256:
		return EncryptionMethod(s), nil
	}
	return "", fmt.Errorf("unknown encryption method %q", s)
}

// EncryptionState records how a document is (or is to be) encrypted. The
// passwords are retained only for the lifetime of the in-memory document so
// the writer can derive keys; they are never serialized.
type EncryptionState struct {
	Method       EncryptionMethod
	Permissions  raw.Permissions
	UserKeyHash  []byte // /U entry (or its hash) from the source file
	OwnerKeyHash []byte // /O entry
	UserPassword string
	OwnerPass    string
}

// Rectangle is an axis-aligned rectangle in page space (bottom-left origin,
// points). LL is always the lower-left corner.
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

func (r Rectangle) Width() float64  { return r.URX - r.LLX }
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// Valid reports whether the rectangle has strictly positive area.
func (r Rectangle) Valid() bool { return r.URX > r.LLX && r.URY > r.LLY }

// Contains reports whether (x, y) lies inside the rectangle.
func (r Rectangle) Contains(x, y float64) bool {
	return x >= r.LLX && x <= r.URX && y >= r.LLY && y <= r.URY
}

// ContainsRect reports whether other lies entirely inside r.
func (r Rectangle) ContainsRect(o Rectangle) bool {
	return o.LLX >= r.LLX && o.URX <= r.URX && o.LLY >= r.LLY && o.URY <= r.URY
}

// Intersects reports whether the rectangles overlap.
func (r Rectangle) Intersects(o Rectangle) bool {
	return o.LLX < r.URX && o.URX > r.LLX && o.LLY < r.URY && o.URY > r.LLY
}

// Point is a position in page space.
type Point struct{ X, Y float64 }

// Page models a single page.
type Page struct {
	MediaBox    Rectangle
	Rotate      int // 0/90/180/270, normalized
	Resources   *Resources
	Contents    []ContentStream
	Annotations []Annotation

	// OriginalRef is the object number the page had in the source file, or
	// the zero ref for pages created in memory.
	OriginalRef raw.ObjectRef
	Dirty       bool
}

// Width returns the page width in points.
func (p *Page) Width() float64 { return p.MediaBox.Width() }

// Height returns the page height in points.
func (p *Page) Height() float64 { return p.MediaBox.Height() }

// SetRotation applies an additive rotation, normalized mod 360.
func (p *Page) SetRotation(deltaDegrees int) {
	r := (p.Rotate + deltaDegrees) % 360
	if r < 0 {
		r += 360
	}
	p.Rotate = r
	p.Dirty = true
}

// ContentBytes concatenates the page's decoded content streams.
func (p *Page) ContentBytes() []byte {
	if len(p.Contents) == 1 {
		return p.Contents[0].Raw
	}
	var out []byte
	for _, cs := range p.Contents {
		out = append(out, cs.Raw...)
		if n := len(cs.Raw); n > 0 && cs.Raw[n-1] != '\n' {
			out = append(out, '\n')
		}
	}
	return out
}

// AppendContent adds a new content stream after the existing ones.
func (p *Page) AppendContent(ops []byte) {
	p.Contents = append(p.Contents, ContentStream{Raw: ops})
	p.Dirty = true
}

// ReplaceContent substitutes the whole content of the page.
func (p *Page) ReplaceContent(ops []byte) {
	p.Contents = []ContentStream{{Raw: ops}}
	p.Dirty = true
}

// Clone deep-copies the page. Resource objects are deep-copied too, so the
// clone can move between documents; annotation values are copied by value
// semantics of the closed variant types.
func (p *Page) Clone() *Page {
	out := &Page{
		MediaBox: p.MediaBox,
		Rotate:   p.Rotate,
		Dirty:    p.Dirty,
	}
	if p.Resources != nil {
		out.Resources = p.Resources.Clone()
	}
	out.Contents = make([]ContentStream, len(p.Contents))
	for i, cs := range p.Contents {
		raw := make([]byte, len(cs.Raw))
		copy(raw, cs.Raw)
		out.Contents[i] = ContentStream{Raw: raw}
	}
	out.Annotations = append([]Annotation(nil), p.Annotations...)
	return out
}

// ContentStream is one decoded content stream of a page.
type ContentStream struct {
	Raw []byte
}

// Resources holds the page's named resources. The values are raw objects
// (dictionaries or streams) carried through from the source file or built by
// the editor; names are local to the page.
type Resources struct {
	Fonts      map[string]raw.Object
	XObjects   map[string]raw.Object
	ExtGStates map[string]raw.Object
}

// NewResources returns an empty resource dictionary.
func NewResources() *Resources {
	return &Resources{
		Fonts:      make(map[string]raw.Object),
		XObjects:   make(map[string]raw.Object),
		ExtGStates: make(map[string]raw.Object),
	}
}

// Clone deep-copies all resource objects.
func (r *Resources) Clone() *Resources {
	out := NewResources()
	for k, v := range r.Fonts {
		out.Fonts[k] = raw.DeepCopy(v)
	}
	for k, v := range r.XObjects {
		out.XObjects[k] = raw.DeepCopy(v)
	}
	for k, v := range r.ExtGStates {
		out.ExtGStates[k] = raw.DeepCopy(v)
	}
	return out
}

// FreshName returns a name with the given prefix that is unused in any of
// the resource categories.
func (r *Resources) FreshName(prefix string) string {
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if _, ok := r.Fonts[name]; ok {
			continue
		}
		if _, ok := r.XObjects[name]; ok {
			continue
		}
		if _, ok := r.ExtGStates[name]; ok {
			continue
		}
		return name
	}
}
