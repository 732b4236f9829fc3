package raw

import "sort"

// Concrete implementations for the raw object kinds.

// NameObj is a PDF name.
type NameObj struct{ Val string }

func (n NameObj) Type() string  { return "name" }
func (n NameObj) Value() string { return n.Val }

// NumberObj is a PDF numeric value, integer or real.
type NumberObj struct {
	I     int64
	F     float64
	IsInt bool
}

func (n NumberObj) Type() string { return "number" }
func (n NumberObj) Int() int64 {
	if n.IsInt {
		return n.I
	}
	return int64(n.F)
}
func (n NumberObj) Float() float64 {
	if n.IsInt {
		return float64(n.I)
	}
	return n.F
}
func (n NumberObj) IsInteger() bool { return n.IsInt }

// BoolObj is a PDF boolean.
type BoolObj struct{ V bool }

func (b BoolObj) Type() string { return "boolean" }
func (b BoolObj) Value() bool  { return b.V }

// NullObj is the PDF null object.
type NullObj struct{}

func (NullObj) Type() string { return "null" }

// StringObj is a PDF string. Hex tracks whether the source used <...> form;
// the writer is free to re-encode either way.
type StringObj struct {
	Bytes []byte
	Hex   bool
}

func (s StringObj) Type() string  { return "string" }
func (s StringObj) Value() []byte { return s.Bytes }

// ArrayObj is a PDF array.
type ArrayObj struct{ Items []Object }

func (a *ArrayObj) Type() string { return "array" }
func (a *ArrayObj) Get(i int) (Object, bool) {
	if i < 0 || i >= len(a.Items) {
		return nil, false
	}
	return a.Items[i], true
}
func (a *ArrayObj) Len() int        { return len(a.Items) }
func (a *ArrayObj) Append(o Object) { a.Items = append(a.Items, o) }

// DictObj is a PDF dictionary.
type DictObj struct{ KV map[string]Object }

func (d *DictObj) Type() string { return "dict" }
func (d *DictObj) Get(key string) (Object, bool) {
	o, ok := d.KV[key]
	return o, ok
}
func (d *DictObj) Set(key string, value Object) {
	if d.KV == nil {
		d.KV = make(map[string]Object)
	}
	d.KV[key] = value
}
func (d *DictObj) Delete(key string) { delete(d.KV, key) }
func (d *DictObj) Keys() []string {
	keys := make([]string, 0, len(d.KV))
	for k := range d.KV {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
func (d *DictObj) Len() int { return len(d.KV) }

// StreamObj is a PDF stream: dictionary plus raw (undecoded) payload.
type StreamObj struct {
	Dict *DictObj
	Data []byte
}

func (s *StreamObj) Type() string           { return "stream" }
func (s *StreamObj) Dictionary() Dictionary { return s.Dict }
func (s *StreamObj) RawData() []byte        { return s.Data }
func (s *StreamObj) Length() int64          { return int64(len(s.Data)) }

// RefObj is an indirect reference.
type RefObj struct{ R ObjectRef }

func (r RefObj) Type() string   { return "ref" }
func (r RefObj) Ref() ObjectRef { return r.R }

// Constructors.

func NameLiteral(v string) NameObj    { return NameObj{Val: v} }
func NumberInt(i int64) NumberObj     { return NumberObj{I: i, IsInt: true} }
func NumberFloat(f float64) NumberObj { return NumberObj{F: f, IsInt: false} }
func Bool(v bool) BoolObj             { return BoolObj{V: v} }
func Str(b []byte) StringObj          { return StringObj{Bytes: b} }
func HexStr(b []byte) StringObj       { return StringObj{Bytes: b, Hex: true} }
func NewArray(items ...Object) *ArrayObj {
	return &ArrayObj{Items: items}
}
func Dict() *DictObj { return &DictObj{KV: make(map[string]Object)} }
func NewStream(dict *DictObj, data []byte) *StreamObj {
	return &StreamObj{Dict: dict, Data: data}
}
func Ref(num, gen int) RefObj { return RefObj{R: ObjectRef{Num: num, Gen: gen}} }

// Typed accessors used throughout the loader and writer.

func DictGetName(d Dictionary, key string) (string, bool) {
	if d == nil {
		return "", false
	}
	if v, ok := d.Get(key); ok {
		if n, ok := v.(Name); ok {
			return n.Value(), true
		}
	}
	return "", false
}

func DictGetInt(d Dictionary, key string) (int64, bool) {
	if d == nil {
		return 0, false
	}
	if v, ok := d.Get(key); ok {
		if n, ok := v.(Number); ok {
			return n.Int(), true
		}
	}
	return 0, false
}

func DictGetString(d Dictionary, key string) ([]byte, bool) {
	if d == nil {
		return nil, false
	}
	if v, ok := d.Get(key); ok {
		if s, ok := v.(String); ok {
			return s.Value(), true
		}
	}
	return nil, false
}

func DictGetBool(d Dictionary, key string) (bool, bool) {
	if d == nil {
		return false, false
	}
	if v, ok := d.Get(key); ok {
		if b, ok := v.(Boolean); ok {
			return b.Value(), true
		}
	}
	return false, false
}

// DeepCopy clones an object graph of direct objects. References are copied
// by value; the objects they point to are not followed.
func DeepCopy(obj Object) Object {
	switch v := obj.(type) {
	case *ArrayObj:
		out := &ArrayObj{Items: make([]Object, len(v.Items))}
		for i, it := range v.Items {
			out.Items[i] = DeepCopy(it)
		}
		return out
	case *DictObj:
		out := Dict()
		for k, it := range v.KV {
			out.KV[k] = DeepCopy(it)
		}
		return out
	case *StreamObj:
		data := make([]byte, len(v.Data))
		copy(data, v.Data)
		return &StreamObj{Dict: DeepCopy(v.Dict).(*DictObj), Data: data}
	case StringObj:
		b := make([]byte, len(v.Bytes))
		copy(b, v.Bytes)
		return StringObj{Bytes: b, Hex: v.Hex}
	default:
		// Name, Number, Bool, Null, Ref are value types.
		return obj
	}
}
