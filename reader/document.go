package reader

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/lvillar/tplmerge"
)

// maxRefChain bounds reference chains and nested lookups.
const maxRefChain = 32

// Document is a parsed PDF file. A Document is not safe for concurrent use.
type Document struct {
	// Version is the header version, e.g. "1.7".
	Version string

	data      []byte
	xref      xrefTable
	trailer   Dict
	startXRef int64
	repaired  bool

	streams  map[int]*objectStream
	resolves map[int]bool
	pages    []*Page
}

// Open reads and parses the PDF file at path.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reader: %w", err)
	}
	return Parse(data)
}

// ReadFrom reads all of r and parses it.
func ReadFrom(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reader: %w", err)
	}
	return Parse(data)
}

// Parse parses a PDF held in memory. The document keeps a reference to data.
// Errors caused by malformed input match tplmerge.ErrCorrupted; encrypted
// files fail with an error matching tplmerge.ErrEncrypted.
func Parse(data []byte) (*Document, error) {
	if !bytes.Contains(data[:min(len(data), 1024)], []byte("%PDF-")) {
		return nil, fmt.Errorf("reader: missing %%PDF header: %w", tplmerge.ErrCorrupted)
	}
	d := &Document{
		Version:  headerVersion(data),
		data:     data,
		streams:  map[int]*objectStream{},
		resolves: map[int]bool{},
	}

	start, err := findStartXRef(data)
	if err == nil {
		d.xref, d.trailer, err = readXRef(data, start)
		d.startXRef = start
	}
	if err != nil || d.trailer["Root"] == nil {
		d.xref, d.trailer, err = rebuildXRef(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", err, tplmerge.ErrCorrupted)
		}
		d.repaired = true
		d.startXRef = -1
	}

	if _, ok := d.trailer["Encrypt"]; ok {
		return nil, fmt.Errorf("reader: %w", tplmerge.ErrEncrypted)
	}
	if err := d.loadPages(); err != nil {
		return nil, fmt.Errorf("%w: %w", err, tplmerge.ErrCorrupted)
	}
	return d, nil
}

func headerVersion(data []byte) string {
	i := bytes.Index(data[:min(len(data), 1024)], []byte("%PDF-"))
	if i < 0 {
		return ""
	}
	p := newParser(data[i+len("%PDF-"):])
	return p.word()
}

// Data returns the bytes the document was parsed from.
func (d *Document) Data() []byte { return d.data }

// Trailer returns a copy of the newest trailer dictionary.
func (d *Document) Trailer() Dict { return d.trailer.Clone() }

// StartXRef returns the offset of the newest cross-reference section, or -1
// when the table had to be rebuilt.
func (d *Document) StartXRef() int64 { return d.startXRef }

// Repaired reports whether the cross-reference information was damaged and
// rebuilt by scanning the file.
func (d *Document) Repaired() bool { return d.repaired }

// Size returns one more than the highest object number in use.
func (d *Document) Size() int {
	size, _ := d.trailer.Int("Size")
	n := int(size)
	for num := range d.xref {
		n = max(n, num+1)
	}
	return n
}

// Location is where an object is stored directly in the file.
type Location struct {
	Offset     int64
	Generation int
}

// Locations returns the location of every object stored directly in the
// file, by object number. Objects inside object streams are not listed.
func (d *Document) Locations() map[int]Location {
	out := make(map[int]Location)
	for num, e := range d.xref {
		if e.kind == entryInUse {
			out[num] = Location{Offset: e.offset, Generation: e.gen}
		}
	}
	return out
}

// Object returns the object with number num, or Null when it is free or
// unknown.
func (d *Document) Object(num int) (Object, error) {
	e, ok := d.xref[num]
	if !ok || e.kind == entryFree {
		return Null{}, nil
	}
	if d.resolves[num] {
		return nil, fmt.Errorf("reader: object %d refers to itself", num)
	}
	d.resolves[num] = true
	defer delete(d.resolves, num)

	if e.kind == entryPacked {
		return d.packedObject(num, e)
	}
	if e.offset < 0 || e.offset >= int64(len(d.data)) {
		return nil, fmt.Errorf("reader: object %d offset %d out of range", num, e.offset)
	}
	p := newParser(d.data[e.offset:])
	p.length = d.streamLength
	ref, obj, err := p.indirect()
	if err != nil {
		return nil, err
	}
	if ref.Number != num {
		return nil, fmt.Errorf("reader: xref entry %d points at object %d", num, ref.Number)
	}
	return obj, nil
}

func (d *Document) streamLength(ref Reference) (int64, bool) {
	obj, err := d.Object(ref.Number)
	if err != nil {
		return 0, false
	}
	n, ok := obj.(Integer)
	return int64(n), ok
}

// Resolve follows references until a direct object is reached.
func (d *Document) Resolve(obj Object) (Object, error) {
	for range maxRefChain {
		ref, ok := obj.(Reference)
		if !ok {
			if obj == nil {
				return Null{}, nil
			}
			return obj, nil
		}
		var err error
		if obj, err = d.Object(ref.Number); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("reader: reference chain too long")
}

// ResolveDict resolves obj and returns it as a dictionary; a stream yields
// its dictionary. Anything else returns nil without error.
func (d *Document) ResolveDict(obj Object) (Dict, error) {
	v, err := d.Resolve(obj)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case Dict:
		return t, nil
	case Stream:
		return t.Dict, nil
	}
	return nil, nil
}

// ResolveArray resolves obj and returns it as an array, or nil.
func (d *Document) ResolveArray(obj Object) (Array, error) {
	v, err := d.Resolve(obj)
	if err != nil {
		return nil, err
	}
	a, _ := v.(Array)
	return a, nil
}

// Catalog returns the document catalog.
func (d *Document) Catalog() (Dict, error) {
	cat, err := d.ResolveDict(d.trailer["Root"])
	if err != nil {
		return nil, fmt.Errorf("reader: catalog: %w", err)
	}
	if cat == nil {
		return nil, fmt.Errorf("reader: catalog is not a dictionary")
	}
	return cat, nil
}

// Info returns the text entries of the document information dictionary.
func (d *Document) Info() map[string]string {
	info := map[string]string{}
	dict, err := d.ResolveDict(d.trailer["Info"])
	if err != nil || dict == nil {
		return info
	}
	for k, v := range dict {
		if s, ok := v.(String); ok {
			info[string(k)] = DecodeText(s.Value)
		}
	}
	return info
}

// NumPages returns the number of pages.
func (d *Document) NumPages() int { return len(d.pages) }

// Page returns page n, counting from 1.
func (d *Document) Page(n int) (*Page, error) {
	if n < 1 || n > len(d.pages) {
		return nil, fmt.Errorf("reader: page %d out of range [1, %d]", n, len(d.pages))
	}
	return d.pages[n-1], nil
}

// Pages iterates over the pages with their 1-based numbers.
func (d *Document) Pages() iter.Seq2[int, *Page] {
	return func(yield func(int, *Page) bool) {
		for i, p := range d.pages {
			if !yield(i+1, p) {
				return
			}
		}
	}
}
