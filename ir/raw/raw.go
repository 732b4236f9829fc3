// Package raw defines the untyped PDF object model: the eight basic object
// kinds plus indirect references, keyed by ObjectRef. It is the common
// currency between the scanner, the loader, the security handler and the
// writer; everything above it works on ir/semantic instead.
package raw

import "fmt"

// ObjectRef uniquely identifies an indirect PDF object.
type ObjectRef struct {
	Num int
	Gen int
}

func (r ObjectRef) String() string { return fmt.Sprintf("%d %d R", r.Num, r.Gen) }

// Object is the base interface for all raw PDF objects.
type Object interface {
	Type() string
}

// Dictionary represents a PDF dictionary object.
type Dictionary interface {
	Object
	Get(key string) (Object, bool)
	Set(key string, value Object)
	Delete(key string)
	Keys() []string
	Len() int
}

// Array represents a PDF array object.
type Array interface {
	Object
	Get(index int) (Object, bool)
	Len() int
	Append(obj Object)
}

// Stream represents a raw (possibly encoded) PDF stream.
type Stream interface {
	Object
	Dictionary() Dictionary
	RawData() []byte
	Length() int64
}

// Name represents a PDF name object.
type Name interface {
	Object
	Value() string
}

// String represents a PDF string (literal or hex).
type String interface {
	Object
	Value() []byte
}

// Number represents a PDF numeric value.
type Number interface {
	Object
	Int() int64
	Float() float64
	IsInteger() bool
}

// Boolean represents a PDF boolean.
type Boolean interface {
	Object
	Value() bool
}

// Null represents the PDF null object.
type Null interface{ Object }

// Reference represents an indirect object reference.
type Reference interface {
	Object
	Ref() ObjectRef
}

// Document is the root container for raw PDF objects as parsed from a file.
type Document struct {
	Objects map[ObjectRef]Object
	Trailer Dictionary
	Version string // e.g., "1.7"
	// XRefOffset is the byte offset of the last xref section, kept so the
	// writer can chain incremental updates onto it.
	XRefOffset int64
}

// Resolve follows a reference chain until it reaches a non-reference object.
// It returns nil when the chain dangles.
func (d *Document) Resolve(obj Object) Object {
	for depth := 0; depth < 32; depth++ {
		ref, ok := obj.(Reference)
		if !ok {
			return obj
		}
		next, ok := d.Objects[ref.Ref()]
		if !ok {
			return nil
		}
		obj = next
	}
	return nil
}

// ResolveDict resolves obj and asserts it is a dictionary.
func (d *Document) ResolveDict(obj Object) (Dictionary, bool) {
	dict, ok := d.Resolve(obj).(Dictionary)
	return dict, ok
}
