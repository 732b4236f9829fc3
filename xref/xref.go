// Package xref locates and parses cross-reference data: the startxref
// pointer, classic xref tables with their trailers, and the entry layout of
// cross-reference streams. The loader feeds it file bytes and stream payloads
// and merges the resulting tables across the /Prev chain.
package xref

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/docsuite/pdfengine/ir/raw"
)

// EntryKind classifies a cross-reference entry.
type EntryKind int

const (
	// Free marks an unused object number.
	Free EntryKind = iota
	// InFile places the object at a byte offset in the file.
	InFile
	// InObjectStream places the object inside a compressed object stream.
	InObjectStream
)

// Entry is one cross-reference entry.
type Entry struct {
	Kind      EntryKind
	Offset    int64 // InFile
	Gen       int
	StreamNum int // InObjectStream: object number of the container
	StreamIdx int // InObjectStream: index within the container
}

// Table is one parsed cross-reference section with its trailer.
type Table struct {
	Entries map[int]Entry
	Trailer raw.Dictionary
}

// Lookup returns the entry for an object number.
func (t *Table) Lookup(num int) (Entry, bool) {
	e, ok := t.Entries[num]
	return e, ok
}

// MergeOlder folds entries from an earlier section into t. Entries already
// present win: later sections in the update chain override earlier ones.
func (t *Table) MergeOlder(old *Table) {
	for num, e := range old.Entries {
		if _, ok := t.Entries[num]; !ok {
			t.Entries[num] = e
		}
	}
	if t.Trailer != nil && old.Trailer != nil {
		for _, k := range old.Trailer.Keys() {
			if _, ok := t.Trailer.Get(k); !ok {
				v, _ := old.Trailer.Get(k)
				t.Trailer.Set(k, v)
			}
		}
	}
}

// MaxObjectNumber returns the highest object number present.
func (t *Table) MaxObjectNumber() int {
	max := 0
	for num := range t.Entries {
		if num > max {
			max = num
		}
	}
	return max
}

// FindStartXRef scans the file tail for the startxref pointer.
func FindStartXRef(data []byte) (int64, error) {
	tail := data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, errors.New("startxref not found")
	}
	rest := tail[idx+len("startxref"):]
	fields := strings.Fields(string(rest))
	if len(fields) == 0 {
		return 0, errors.New("startxref has no offset")
	}
	off, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("startxref offset: %w", err)
	}
	if off < 0 || off >= int64(len(data)) {
		return 0, fmt.Errorf("startxref offset %d outside file of %d bytes", off, len(data))
	}
	return off, nil
}

// IsClassic reports whether the bytes at offset begin a classic xref table.
func IsClassic(data []byte, offset int64) bool {
	if offset < 0 || offset >= int64(len(data)) {
		return false
	}
	rest := bytes.TrimLeft(data[offset:], " \t\r\n")
	return bytes.HasPrefix(rest, []byte("xref"))
}

// ParseClassic parses the classic xref table at offset, including its
// trailer dictionary. The trailer's /Prev, if present, points to the next
// older section; the caller follows the chain. trailerParse is supplied by
// the loader so object syntax lives in one place.
func ParseClassic(data []byte, offset int64, trailerParse func(data []byte, offset int64) (raw.Dictionary, error)) (*Table, error) {
	pos := offset
	pos = skipSpace(data, pos)
	if !bytes.HasPrefix(data[pos:], []byte("xref")) {
		return nil, fmt.Errorf("no xref keyword at offset %d", offset)
	}
	pos += 4
	table := &Table{Entries: make(map[int]Entry)}
	for {
		pos = skipSpace(data, pos)
		if bytes.HasPrefix(data[pos:], []byte("trailer")) {
			pos += int64(len("trailer"))
			pos = skipSpace(data, pos)
			trailer, err := trailerParse(data, pos)
			if err != nil {
				return nil, fmt.Errorf("trailer: %w", err)
			}
			table.Trailer = trailer
			return table, nil
		}
		// Subsection header: "start count".
		start, next, err := readInt(data, pos)
		if err != nil {
			return nil, fmt.Errorf("xref subsection start: %w", err)
		}
		pos = skipSpace(data, next)
		count, next, err := readInt(data, pos)
		if err != nil {
			return nil, fmt.Errorf("xref subsection count: %w", err)
		}
		pos = skipSpace(data, next)
		for i := int64(0); i < count; i++ {
			if pos+20 > int64(len(data)) {
				return nil, errors.New("xref entry truncated")
			}
			line := data[pos : pos+20]
			off, err1 := strconv.ParseInt(strings.TrimSpace(string(line[0:10])), 10, 64)
			gen, err2 := strconv.Atoi(strings.TrimSpace(string(line[11:16])))
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("malformed xref entry %q", line)
			}
			kind := line[17]
			num := int(start + i)
			switch kind {
			case 'n':
				if _, exists := table.Entries[num]; !exists {
					table.Entries[num] = Entry{Kind: InFile, Offset: off, Gen: gen}
				}
			case 'f':
				if _, exists := table.Entries[num]; !exists {
					table.Entries[num] = Entry{Kind: Free, Gen: gen}
				}
			default:
				return nil, fmt.Errorf("unknown xref entry type %q", kind)
			}
			pos += 20
		}
	}
}

// ParseStreamData decodes the entry records of a cross-reference stream.
// dict is the stream's dictionary (providing /W, /Index and /Size) and data
// its fully decoded payload. The dictionary doubles as the trailer.
func ParseStreamData(dict raw.Dictionary, data []byte) (*Table, error) {
	wObj, ok := dict.Get("W")
	if !ok {
		return nil, errors.New("xref stream missing W")
	}
	wArr, ok := wObj.(raw.Array)
	if !ok || wArr.Len() != 3 {
		return nil, errors.New("xref stream W is not a 3-element array")
	}
	var w [3]int
	for i := 0; i < 3; i++ {
		it, _ := wArr.Get(i)
		n, ok := it.(raw.Number)
		if !ok {
			return nil, errors.New("xref stream W entry is not a number")
		}
		w[i] = int(n.Int())
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen <= 0 {
		return nil, errors.New("xref stream W sums to zero")
	}

	// Index defaults to [0 Size].
	var index []int64
	if idxObj, ok := dict.Get("Index"); ok {
		arr, ok := idxObj.(raw.Array)
		if !ok || arr.Len()%2 != 0 {
			return nil, errors.New("xref stream Index malformed")
		}
		for i := 0; i < arr.Len(); i++ {
			it, _ := arr.Get(i)
			n, ok := it.(raw.Number)
			if !ok {
				return nil, errors.New("xref stream Index entry is not a number")
			}
			index = append(index, n.Int())
		}
	} else {
		size, ok := raw.DictGetInt(dict, "Size")
		if !ok {
			return nil, errors.New("xref stream missing Size")
		}
		index = []int64{0, size}
	}

	table := &Table{Entries: make(map[int]Entry), Trailer: dict}
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := int64(0); j < count; j++ {
			if pos+rowLen > len(data) {
				return nil, errors.New("xref stream data truncated")
			}
			f0 := readField(data[pos:pos+w[0]], 1) // type defaults to 1 when W[0]==0
			f1 := readField(data[pos+w[0]:pos+w[0]+w[1]], 0)
			f2 := readField(data[pos+w[0]+w[1]:pos+rowLen], 0)
			pos += rowLen
			num := int(start + j)
			if _, exists := table.Entries[num]; exists {
				continue
			}
			switch f0 {
			case 0:
				table.Entries[num] = Entry{Kind: Free, Gen: int(f2)}
			case 1:
				table.Entries[num] = Entry{Kind: InFile, Offset: f1, Gen: int(f2)}
			case 2:
				table.Entries[num] = Entry{Kind: InObjectStream, StreamNum: int(f1), StreamIdx: int(f2)}
			default:
				return nil, fmt.Errorf("unknown xref stream entry type %d", f0)
			}
		}
	}
	return table, nil
}

func readField(b []byte, def int64) int64 {
	if len(b) == 0 {
		return def
	}
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func skipSpace(data []byte, pos int64) int64 {
	for pos < int64(len(data)) {
		switch data[pos] {
		case ' ', '\t', '\r', '\n', '\f', 0:
			pos++
		default:
			return pos
		}
	}
	return pos
}

func readInt(data []byte, pos int64) (int64, int64, error) {
	end := pos
	for end < int64(len(data)) && data[end] >= '0' && data[end] <= '9' {
		end++
	}
	if end == pos {
		return 0, pos, fmt.Errorf("expected integer at offset %d", pos)
	}
	v, err := strconv.ParseInt(string(data[pos:end]), 10, 64)
	return v, end, err
}
