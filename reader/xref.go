package reader

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

type entryKind uint8

const (
	entryFree entryKind = iota
	entryInUse
	// entryPacked objects live inside an object stream.
	entryPacked
)

type xrefEntry struct {
	kind      entryKind
	offset    int64
	gen       int
	container int
	index     int
}

type xrefTable map[int]xrefEntry

// mergeOlder adds the entries of an older section that are not yet known.
func (t xrefTable) mergeOlder(older xrefTable) {
	for num, e := range older {
		if _, ok := t[num]; !ok {
			t[num] = e
		}
	}
}

// findStartXRef returns the offset named by the last startxref keyword.
func findStartXRef(data []byte) (int64, error) {
	tail := data[max(len(data)-2048, 0):]
	i := bytes.LastIndex(tail, []byte("startxref"))
	if i < 0 {
		return 0, fmt.Errorf("reader: startxref not found")
	}
	p := newParser(tail[i+len("startxref"):])
	w := p.word()
	off, err := strconv.ParseInt(w, 10, 64)
	if err != nil || off < 0 || off >= int64(len(data)) {
		return 0, fmt.Errorf("reader: bad startxref offset %q", w)
	}
	return off, nil
}

// readXRef follows the chain of cross-reference sections starting at
// offset, newest first. It returns the merged table and the newest trailer.
func readXRef(data []byte, offset int64) (xrefTable, Dict, error) {
	table := xrefTable{}
	var trailer Dict
	seen := map[int64]bool{}

	for !seen[offset] {
		seen[offset] = true
		section, dict, err := readXRefSection(data, offset)
		if err != nil {
			return nil, nil, err
		}
		// Hybrid files list packed objects in a side stream; its entries
		// replace the free placeholders of the same section.
		if stm, ok := dict.Int("XRefStm"); ok && !seen[stm] {
			seen[stm] = true
			if extra, _, err := readXRefSection(data, stm); err == nil {
				for num, e := range extra {
					if cur, ok := section[num]; !ok || cur.kind == entryFree {
						section[num] = e
					}
				}
			}
		}
		table.mergeOlder(section)
		if trailer == nil {
			trailer = dict
		}
		prev, ok := dict.Int("Prev")
		if !ok || prev < 0 || prev >= int64(len(data)) {
			break
		}
		offset = prev
	}
	return table, trailer, nil
}

func readXRefSection(data []byte, offset int64) (xrefTable, Dict, error) {
	if offset < 0 || offset >= int64(len(data)) {
		return nil, nil, fmt.Errorf("reader: xref offset %d out of range", offset)
	}
	p := newParser(data[offset:])
	if p.hasKeyword("xref") {
		return readXRefTable(p)
	}
	return readXRefStream(newParser(data[offset:]))
}

func readXRefTable(p *parser) (xrefTable, Dict, error) {
	table := xrefTable{}
	for !p.hasKeyword("trailer") {
		first, err1 := strconv.Atoi(p.word())
		count, err2 := strconv.Atoi(p.word())
		if err1 != nil || err2 != nil || count < 0 {
			return nil, nil, p.errorf("malformed xref subsection header")
		}
		for i := range count {
			off, err1 := strconv.ParseInt(p.word(), 10, 64)
			gen, err2 := strconv.Atoi(p.word())
			kind := p.word()
			if err1 != nil || err2 != nil || (kind != "n" && kind != "f") {
				return nil, nil, p.errorf("malformed xref entry %d", first+i)
			}
			e := xrefEntry{kind: entryFree, gen: gen}
			if kind == "n" {
				e = xrefEntry{kind: entryInUse, offset: off, gen: gen}
			}
			if _, dup := table[first+i]; !dup {
				table[first+i] = e
			}
		}
	}
	obj, err := p.object()
	if err != nil {
		return nil, nil, fmt.Errorf("reader: trailer: %w", err)
	}
	trailer, ok := obj.(Dict)
	if !ok {
		return nil, nil, fmt.Errorf("reader: trailer is not a dictionary")
	}
	return table, trailer, nil
}

func readXRefStream(p *parser) (xrefTable, Dict, error) {
	_, obj, err := p.indirect()
	if err != nil {
		return nil, nil, fmt.Errorf("reader: xref stream: %w", err)
	}
	s, ok := obj.(Stream)
	if !ok || s.Dict.Name("Type") != "XRef" {
		return nil, nil, fmt.Errorf("reader: no xref table or stream at offset")
	}
	raw, err := Decode(s)
	if err != nil {
		return nil, nil, fmt.Errorf("reader: xref stream: %w", err)
	}

	w := s.Dict.Array("W")
	if len(w) != 3 {
		return nil, nil, fmt.Errorf("reader: xref stream /W has %d entries", len(w))
	}
	var widths [3]int
	for i, o := range w {
		n, _ := o.(Integer)
		if n < 0 || n > 8 {
			return nil, nil, fmt.Errorf("reader: xref stream field width %d", n)
		}
		widths[i] = int(n)
	}
	rowLen := widths[0] + widths[1] + widths[2]
	if rowLen == 0 {
		return nil, nil, fmt.Errorf("reader: xref stream with empty rows")
	}

	var index []int
	for _, o := range s.Dict.Array("Index") {
		n, _ := o.(Integer)
		index = append(index, int(n))
	}
	if len(index) == 0 {
		size, _ := s.Dict.Int("Size")
		index = []int{0, int(size)}
	}

	field := func(row []byte, i int) int64 {
		start := 0
		for j := range i {
			start += widths[j]
		}
		var v int64
		for _, b := range row[start : start+widths[i]] {
			v = v<<8 | int64(b)
		}
		return v
	}

	table := xrefTable{}
	pos := 0
	for k := 0; k+1 < len(index); k += 2 {
		first, count := index[k], index[k+1]
		for i := 0; i < count && pos+rowLen <= len(raw); i++ {
			row := raw[pos : pos+rowLen]
			pos += rowLen

			kind := int64(1)
			if widths[0] > 0 {
				kind = field(row, 0)
			}
			num := first + i
			switch kind {
			case 0:
				table[num] = xrefEntry{kind: entryFree, gen: int(field(row, 2))}
			case 1:
				table[num] = xrefEntry{kind: entryInUse, offset: field(row, 1), gen: int(field(row, 2))}
			case 2:
				table[num] = xrefEntry{kind: entryPacked, container: int(field(row, 1)), index: int(field(row, 2))}
			}
		}
	}
	return table, s.Dict, nil
}

var objectHeader = regexp.MustCompile(`(?m)(?:^|[\r\n\s])(\d+)\s+(\d+)\s+obj\b`)

// rebuildXRef recovers a table by scanning the file for object headers.
// It serves damaged files whose startxref or xref offsets are wrong.
func rebuildXRef(data []byte) (xrefTable, Dict, error) {
	table := xrefTable{}
	for _, m := range objectHeader.FindAllSubmatchIndex(data, -1) {
		num, err1 := strconv.Atoi(string(data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		// Later definitions belong to later updates and win.
		table[num] = xrefEntry{kind: entryInUse, offset: int64(m[2]), gen: gen}
	}
	if len(table) == 0 {
		return nil, nil, fmt.Errorf("reader: no objects found")
	}

	var trailer Dict
	for rest := data; ; {
		i := bytes.LastIndex(rest, []byte("trailer"))
		if i < 0 {
			break
		}
		p := newParser(rest[i+len("trailer"):])
		if obj, err := p.object(); err == nil {
			if d, ok := obj.(Dict); ok && d["Root"] != nil {
				trailer = d
				break
			}
		}
		rest = rest[:i]
	}
	if trailer == nil {
		// Cross-reference streams carry the trailer keys themselves; the
		// last one in the file is the newest.
		var newest int64 = -1
		for _, e := range table {
			if e.offset <= newest {
				continue
			}
			p := newParser(data[e.offset:])
			if _, obj, err := p.indirect(); err == nil {
				if s, ok := obj.(Stream); ok && s.Dict.Name("Type") == "XRef" && s.Dict["Root"] != nil {
					trailer, newest = s.Dict, e.offset
				}
			}
		}
	}
	if trailer == nil {
		return nil, nil, fmt.Errorf("reader: no trailer found")
	}
	return table, trailer, nil
}
