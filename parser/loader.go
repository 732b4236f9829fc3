package parser

import (
	"fmt"
	"regexp"

	"github.com/docsuite/pdfengine/filters"
	"github.com/docsuite/pdfengine/ir/raw"
	"github.com/docsuite/pdfengine/observability"
	"github.com/docsuite/pdfengine/pdferr"
	"github.com/docsuite/pdfengine/scanner"
	"github.com/docsuite/pdfengine/security"
	"github.com/docsuite/pdfengine/xref"
)

var headerRe = regexp.MustCompile(`%PDF-(\d+)\.(\d+)`)

// loader turns file bytes into a raw.Document: header, xref chain, every
// reachable indirect object, decryption, object stream expansion.
type loader struct {
	data    []byte
	log     observability.Logger
	handler security.Handler
	table   *xref.Table
	doc     *raw.Document

	// encryptRef is excluded from decryption, as are xref streams.
	encryptRef raw.ObjectRef
}

func newLoader(data []byte, log observability.Logger) *loader {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &loader{data: data, log: log, handler: security.NoopHandler()}
}

func (l *loader) load(password string) (*raw.Document, error) {
	version, err := l.parseHeader()
	if err != nil {
		return nil, err
	}
	table, xrefOffset, err := l.loadXRefChain()
	if err != nil {
		return nil, err
	}
	l.table = table
	l.doc = &raw.Document{
		Objects:    make(map[raw.ObjectRef]raw.Object),
		Trailer:    table.Trailer,
		Version:    version,
		XRefOffset: xrefOffset,
	}
	if err := l.loadFileObjects(); err != nil {
		return nil, err
	}
	if err := l.setupEncryption(password); err != nil {
		return nil, err
	}
	if err := l.expandObjectStreams(); err != nil {
		return nil, err
	}
	l.log.Debug("document loaded",
		observability.Int(observability.MetricObjectCount, len(l.doc.Objects)),
		observability.String("version", version))
	return l.doc, nil
}

func (l *loader) parseHeader() (string, error) {
	head := l.data
	if len(head) > 1024 {
		head = head[:1024]
	}
	m := headerRe.FindSubmatch(head)
	if m == nil {
		return "", fmt.Errorf("%w: missing PDF header", pdferr.CorruptDocument)
	}
	major, minor := m[1][0]-'0', m[2][0]-'0'
	if major != 1 && !(major == 2 && minor == 0) {
		return "", fmt.Errorf("%w: %s.%s", pdferr.UnsupportedVersion, m[1], m[2])
	}
	return fmt.Sprintf("%c.%c", m[1][0], m[2][0]), nil
}

// loadXRefChain walks the /Prev chain, merging older sections underneath
// newer ones. Hybrid files additionally chain through /XRefStm.
func (l *loader) loadXRefChain() (*xref.Table, int64, error) {
	start, err := xref.FindStartXRef(l.data)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", pdferr.CorruptDocument, err)
	}
	var merged *xref.Table
	seen := make(map[int64]bool)
	offset := start
	for offset >= 0 && !seen[offset] {
		seen[offset] = true
		section, err := l.loadXRefSection(offset)
		if err != nil {
			return nil, 0, err
		}
		if merged == nil {
			merged = section
		} else {
			merged.MergeOlder(section)
		}
		// Hybrid reference: a classic section may point at a parallel
		// xref stream holding compressed entries.
		if stm, ok := raw.DictGetInt(section.Trailer, "XRefStm"); ok && !seen[stm] {
			seen[stm] = true
			if stream, err := l.loadXRefSection(stm); err == nil {
				merged.MergeOlder(stream)
			}
		}
		prev, ok := raw.DictGetInt(section.Trailer, "Prev")
		if !ok {
			break
		}
		offset = prev
	}
	if merged == nil || merged.Trailer == nil {
		return nil, 0, fmt.Errorf("%w: no usable xref section", pdferr.CorruptDocument)
	}
	return merged, start, nil
}

func (l *loader) loadXRefSection(offset int64) (*xref.Table, error) {
	if xref.IsClassic(l.data, offset) {
		table, err := xref.ParseClassic(l.data, offset, l.parseDictAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pdferr.CorruptDocument, err)
		}
		return table, nil
	}
	// Cross-reference stream: an ordinary indirect stream object.
	_, obj, err := l.parseIndirectAt(offset)
	if err != nil {
		return nil, fmt.Errorf("%w: xref stream: %v", pdferr.CorruptDocument, err)
	}
	stream, ok := obj.(*raw.StreamObj)
	if !ok {
		return nil, fmt.Errorf("%w: object at %d is not an xref stream", pdferr.CorruptDocument, offset)
	}
	names, parms := filters.FilterChain(nil, stream.Dict)
	decoded, err := filters.Decode(stream.Data, names, parms)
	if err != nil {
		return nil, fmt.Errorf("%w: xref stream decode: %v", pdferr.CorruptDocument, err)
	}
	table, err := xref.ParseStreamData(stream.Dict, decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pdferr.CorruptDocument, err)
	}
	return table, nil
}

// parseDictAt parses a bare dictionary at a byte offset (trailer syntax).
func (l *loader) parseDictAt(data []byte, offset int64) (raw.Dictionary, error) {
	s := scanner.NewBytes(data, scanner.Config{})
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	tok, err := s.Next()
	if err != nil {
		return nil, err
	}
	obj, err := parseValue(s, tok)
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(raw.Dictionary)
	if !ok {
		return nil, fmt.Errorf("expected dictionary at offset %d", offset)
	}
	return dict, nil
}

// parseIndirectAt parses "N G obj ... endobj" at a byte offset.
func (l *loader) parseIndirectAt(offset int64) (raw.ObjectRef, raw.Object, error) {
	s := scanner.NewBytes(l.data, scanner.Config{})
	if err := s.SeekTo(offset); err != nil {
		return raw.ObjectRef{}, nil, err
	}
	numTok, err := s.Next()
	if err != nil || numTok.Type != scanner.TokenNumber || !numTok.IsInt {
		return raw.ObjectRef{}, nil, fmt.Errorf("no object number at offset %d", offset)
	}
	genTok, err := s.Next()
	if err != nil || genTok.Type != scanner.TokenNumber || !genTok.IsInt {
		return raw.ObjectRef{}, nil, fmt.Errorf("no generation number at offset %d", offset)
	}
	kwTok, err := s.Next()
	if err != nil || kwTok.Type != scanner.TokenKeyword || kwTok.Str != "obj" {
		return raw.ObjectRef{}, nil, fmt.Errorf("missing obj keyword at offset %d", offset)
	}
	ref := raw.ObjectRef{Num: int(numTok.Int), Gen: int(genTok.Int)}

	valTok, err := s.Next()
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	obj, err := parseValue(s, valTok)
	if err != nil {
		return raw.ObjectRef{}, nil, fmt.Errorf("object %v: %w", ref, err)
	}
	// A dictionary may be the head of a stream object.
	if dict, ok := obj.(*raw.DictObj); ok {
		if n, ok := raw.DictGetInt(dict, "Length"); ok {
			s.SetNextStreamLength(n)
		}
		next, err := s.Next()
		if err == nil && next.Type == scanner.TokenStream {
			return ref, raw.NewStream(dict, next.Bytes), nil
		}
		// Not a stream; the token (usually endobj) needs no further action.
	}
	return ref, obj, nil
}

// parseValue builds a raw object from a token, recursing into composites.
func parseValue(s scanner.Scanner, tok scanner.Token) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
	case scanner.TokenName:
		return raw.NameLiteral(tok.Str), nil
	case scanner.TokenString:
		if tok.Hex {
			return raw.HexStr(tok.Bytes), nil
		}
		return raw.Str(tok.Bytes), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenRef:
		return raw.Ref(int(tok.Int), tok.Gen), nil
	case scanner.TokenArray:
		arr := raw.NewArray()
		for {
			t, err := s.Next()
			if err != nil {
				return nil, fmt.Errorf("unterminated array: %w", err)
			}
			if t.Type == scanner.TokenKeyword && t.Str == "]" {
				return arr, nil
			}
			item, err := parseValue(s, t)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, item)
		}
	case scanner.TokenDict:
		dict := raw.Dict()
		for {
			t, err := s.Next()
			if err != nil {
				return nil, fmt.Errorf("unterminated dictionary: %w", err)
			}
			if t.Type == scanner.TokenKeyword && t.Str == ">>" {
				return dict, nil
			}
			if t.Type != scanner.TokenName {
				return nil, fmt.Errorf("dictionary key is %v, not a name", t.Type)
			}
			vt, err := s.Next()
			if err != nil {
				return nil, err
			}
			val, err := parseValue(s, vt)
			if err != nil {
				return nil, err
			}
			dict.Set(t.Str, val)
		}
	}
	return nil, fmt.Errorf("unexpected token type %v", tok.Type)
}

// loadFileObjects parses every object the xref places directly in the file.
func (l *loader) loadFileObjects() error {
	for num, entry := range l.table.Entries {
		if entry.Kind != xref.InFile {
			continue
		}
		ref, obj, err := l.parseIndirectAt(entry.Offset)
		if err != nil {
			l.log.Warn("skipping unparsable object",
				observability.Int("object", num), observability.Error("err", err))
			continue
		}
		if ref.Num != num {
			// Offset points at a different object than the table claims.
			// Trust the parsed header.
			l.log.Warn("xref object number mismatch",
				observability.Int("expected", num), observability.Int("actual", ref.Num))
		}
		l.doc.Objects[ref] = obj
	}
	if len(l.doc.Objects) == 0 {
		return fmt.Errorf("%w: no objects", pdferr.CorruptDocument)
	}
	return nil
}

// setupEncryption builds the security handler from the trailer and, when the
// file is encrypted, authenticates and decrypts every loaded object.
func (l *loader) setupEncryption(password string) error {
	encObj, ok := l.doc.Trailer.Get("Encrypt")
	if !ok {
		return nil
	}
	if ref, isRef := encObj.(raw.Reference); isRef {
		l.encryptRef = ref.Ref()
	}
	encDict, ok := l.doc.ResolveDict(encObj)
	if !ok {
		return fmt.Errorf("%w: Encrypt entry is not a dictionary", pdferr.CorruptDocument)
	}
	handler, err := security.NewHandlerBuilder().
		WithEncryptDict(encDict).
		WithTrailer(l.doc.Trailer).
		Build()
	if err != nil {
		return err
	}
	if err := handler.Authenticate(password); err != nil {
		if password == "" {
			return pdferr.EncryptedWithoutPassword
		}
		return err
	}
	l.handler = handler
	for ref, obj := range l.doc.Objects {
		if ref == l.encryptRef {
			continue
		}
		dec, err := l.decryptObject(ref, obj)
		if err != nil {
			return fmt.Errorf("%w: object %v: %v", pdferr.CorruptDocument, ref, err)
		}
		l.doc.Objects[ref] = dec
	}
	return nil
}

// decryptObject walks one object, decrypting strings and stream payloads in
// place. Cross-reference streams stay as stored.
func (l *loader) decryptObject(ref raw.ObjectRef, obj raw.Object) (raw.Object, error) {
	switch v := obj.(type) {
	case raw.StringObj:
		dec, err := l.handler.Decrypt(ref.Num, ref.Gen, v.Bytes, security.DataClassString)
		if err != nil {
			return nil, err
		}
		return raw.StringObj{Bytes: dec, Hex: v.Hex}, nil
	case *raw.ArrayObj:
		for i, item := range v.Items {
			dec, err := l.decryptObject(ref, item)
			if err != nil {
				return nil, err
			}
			v.Items[i] = dec
		}
		return v, nil
	case *raw.DictObj:
		for key, item := range v.KV {
			dec, err := l.decryptObject(ref, item)
			if err != nil {
				return nil, err
			}
			v.KV[key] = dec
		}
		return v, nil
	case *raw.StreamObj:
		if t, _ := raw.DictGetName(v.Dict, "Type"); t == "XRef" {
			return v, nil
		}
		class := security.DataClassStream
		if t, _ := raw.DictGetName(v.Dict, "Type"); t == "Metadata" {
			class = security.DataClassMetadataStream
		}
		dec, err := l.handler.Decrypt(ref.Num, ref.Gen, v.Data, class)
		if err != nil {
			return nil, err
		}
		v.Data = dec
		if _, err := l.decryptObject(ref, v.Dict); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return obj, nil
	}
}

// expandObjectStreams materializes the objects stored inside /ObjStm
// containers. Members are plain (never individually encrypted) and carry
// generation zero.
func (l *loader) expandObjectStreams() error {
	for num, entry := range l.table.Entries {
		if entry.Kind != xref.InObjectStream {
			continue
		}
		container, ok := l.doc.Objects[raw.ObjectRef{Num: entry.StreamNum}].(*raw.StreamObj)
		if !ok {
			l.log.Warn("object stream container missing",
				observability.Int("container", entry.StreamNum), observability.Int("object", num))
			continue
		}
		objs, err := l.parseObjectStream(container)
		if err != nil {
			return fmt.Errorf("%w: object stream %d: %v", pdferr.CorruptDocument, entry.StreamNum, err)
		}
		if obj, ok := objs[num]; ok {
			l.doc.Objects[raw.ObjectRef{Num: num}] = obj
		}
	}
	return nil
}

func (l *loader) parseObjectStream(stream *raw.StreamObj) (map[int]raw.Object, error) {
	names, parms := filters.FilterChain(l.doc, stream.Dict)
	decoded, err := filters.Decode(stream.Data, names, parms)
	if err != nil {
		return nil, err
	}
	n, ok := raw.DictGetInt(stream.Dict, "N")
	if !ok {
		return nil, fmt.Errorf("object stream missing N")
	}
	first, ok := raw.DictGetInt(stream.Dict, "First")
	if !ok {
		return nil, fmt.Errorf("object stream missing First")
	}
	s := scanner.NewBytes(decoded, scanner.Config{})
	type member struct {
		num    int
		offset int64
	}
	members := make([]member, 0, n)
	for i := int64(0); i < n; i++ {
		numTok, err := s.Next()
		if err != nil || !numTok.IsInt {
			return nil, fmt.Errorf("object stream header truncated")
		}
		offTok, err := s.Next()
		if err != nil || !offTok.IsInt {
			return nil, fmt.Errorf("object stream header truncated")
		}
		members = append(members, member{num: int(numTok.Int), offset: offTok.Int})
	}
	out := make(map[int]raw.Object, len(members))
	for _, m := range members {
		if err := s.SeekTo(first + m.offset); err != nil {
			return nil, err
		}
		tok, err := s.Next()
		if err != nil {
			return nil, err
		}
		obj, err := parseValue(s, tok)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", m.num, err)
		}
		out[m.num] = obj
	}
	return out, nil
}
