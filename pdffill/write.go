package pdffill

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/lvillar/tplmerge/reader"
)

// writeObject serializes obj. Dictionary keys are written in sorted order
// so that identical inputs give identical files.
func writeObject(buf *bytes.Buffer, obj reader.Object) {
	switch v := obj.(type) {
	case nil, reader.Null:
		buf.WriteString("null")
	case reader.Boolean:
		buf.WriteString(strconv.FormatBool(bool(v)))
	case reader.Integer:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case reader.Real:
		buf.WriteString(formatReal(float64(v)))
	case reader.Name:
		writeName(buf, v)
	case reader.String:
		writeString(buf, v.Value)
	case reader.Reference:
		buf.WriteString(v.String())
	case reader.Array:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeObject(buf, item)
		}
		buf.WriteByte(']')
	case reader.Dict:
		writeDict(buf, v)
	case reader.Stream:
		d := v.Dict.Clone()
		if d == nil {
			d = reader.Dict{}
		}
		d["Length"] = reader.Integer(len(v.Data))
		writeDict(buf, d)
		buf.WriteString("\nstream\n")
		buf.Write(v.Data)
		buf.WriteString("\nendstream")
	default:
		panic(fmt.Sprintf("pdffill: cannot serialize %T", obj))
	}
}

func writeDict(buf *bytes.Buffer, d reader.Dict) {
	buf.WriteString("<<")
	for _, k := range slices.Sorted(maps.Keys(d)) {
		buf.WriteByte(' ')
		writeName(buf, k)
		buf.WriteByte(' ')
		writeObject(buf, d[k])
	}
	buf.WriteString(" >>")
}

func formatReal(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if s == "-0" {
		return "0"
	}
	return s
}

func writeName(buf *bytes.Buffer, n reader.Name) {
	buf.WriteByte('/')
	for i := 0; i < len(n); i++ {
		c := n[i]
		if c < 0x21 || c > 0x7e || c == '#' || isDelim(c) {
			fmt.Fprintf(buf, "#%02x", c)
			continue
		}
		buf.WriteByte(c)
	}
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// writeString writes b as a literal string, or as a hex string when most of
// it would need escaping.
func writeString(buf *bytes.Buffer, b []byte) {
	level, balanced := 0, true
	for _, c := range b {
		if c == '(' {
			level++
		} else if c == ')' {
			if level--; level < 0 {
				balanced = false
				break
			}
		}
	}
	balanced = balanced && level == 0

	escaped := 0
	for _, c := range b {
		if needsEscape(c, balanced) {
			escaped++
		}
	}
	if 3*escaped > len(b) {
		fmt.Fprintf(buf, "<%X>", b)
		return
	}

	buf.WriteByte('(')
	for _, c := range b {
		if !needsEscape(c, balanced) {
			buf.WriteByte(c)
			continue
		}
		switch c {
		case '\\', '(', ')':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\r':
			buf.WriteString(`\r`)
		default:
			fmt.Fprintf(buf, `\%03o`, c)
		}
	}
	buf.WriteByte(')')
}

func needsEscape(c byte, balanced bool) bool {
	switch {
	case c == '\n' || c == '\t':
		return false
	case c == '\\' || c == '\r':
		return true
	case c == '(' || c == ')':
		return !balanced
	}
	return c < 32 || c >= 127
}

// update collects the objects of an incremental update.
type update struct {
	doc     *reader.Document
	objects map[int]reader.Object
	gens    map[int]int
	next    int

	// helvetica is the font object created for appearances whose font is
	// missing from the form's resources.
	helvetica reader.Reference
}

func newUpdate(doc *reader.Document) *update {
	return &update{
		doc:     doc,
		objects: map[int]reader.Object{},
		gens:    map[int]int{},
		next:    doc.Size(),
	}
}

// dict returns the pending copy of the dictionary stored at ref, cloning
// orig on first use.
func (u *update) dict(ref reader.Reference, orig reader.Dict) reader.Dict {
	if d, ok := u.objects[ref.Number].(reader.Dict); ok {
		return d
	}
	d := orig.Clone()
	u.objects[ref.Number] = d
	u.gens[ref.Number] = ref.Generation
	return d
}

// add stores a new object and returns its reference.
func (u *update) add(obj reader.Object) reader.Reference {
	num := u.next
	u.next++
	u.objects[num] = obj
	return reader.Reference{Number: num}
}

func (u *update) empty() bool { return len(u.objects) == 0 }

// bytes appends the update to the original file. A document whose
// cross-reference information had to be rebuilt gets a complete table
// instead of a section chained with /Prev.
func (u *update) bytes() []byte {
	src := u.doc.Data()
	buf := bytes.NewBuffer(make([]byte, 0, len(src)+4096))
	buf.Write(src)
	if len(src) > 0 && src[len(src)-1] != '\n' && src[len(src)-1] != '\r' {
		buf.WriteByte('\n')
	}

	offsets := map[int]int64{}
	for _, num := range slices.Sorted(maps.Keys(u.objects)) {
		offsets[num] = int64(buf.Len())
		fmt.Fprintf(buf, "%d %d obj\n", num, u.gens[num])
		writeObject(buf, u.objects[num])
		buf.WriteString("\nendobj\n")
	}

	entries := map[int]reader.Location{}
	if u.doc.Repaired() {
		entries = u.doc.Locations()
	}
	for num, off := range offsets {
		entries[num] = reader.Location{Offset: off, Generation: u.gens[num]}
	}
	size := max(u.doc.Size(), u.next)

	start := buf.Len()
	buf.WriteString("xref\n")
	if u.doc.Repaired() {
		writeFullXRef(buf, entries, size)
	} else {
		writeXRefSections(buf, entries)
	}

	trailer := reader.Dict{"Size": reader.Integer(size)}
	old := u.doc.Trailer()
	for _, k := range []reader.Name{"Root", "Info", "ID"} {
		if v, ok := old[k]; ok {
			trailer[k] = v
		}
	}
	if !u.doc.Repaired() {
		trailer["Prev"] = reader.Integer(u.doc.StartXRef())
	}
	buf.WriteString("trailer\n")
	writeDict(buf, trailer)
	fmt.Fprintf(buf, "\nstartxref\n%d\n%%%%EOF\n", start)
	return buf.Bytes()
}

// writeXRefSections writes one subsection per run of consecutive numbers.
func writeXRefSections(buf *bytes.Buffer, entries map[int]reader.Location) {
	nums := slices.Sorted(maps.Keys(entries))
	for i := 0; i < len(nums); {
		j := i + 1
		for j < len(nums) && nums[j] == nums[j-1]+1 {
			j++
		}
		fmt.Fprintf(buf, "%d %d\n", nums[i], j-i)
		for _, num := range nums[i:j] {
			e := entries[num]
			fmt.Fprintf(buf, "%010d %05d n \n", e.Offset, e.Generation)
		}
		i = j
	}
}

func writeFullXRef(buf *bytes.Buffer, entries map[int]reader.Location, size int) {
	fmt.Fprintf(buf, "0 %d\n0000000000 65535 f \n", size)
	for num := 1; num < size; num++ {
		e, ok := entries[num]
		if !ok {
			buf.WriteString("0000000000 00000 f \n")
			continue
		}
		fmt.Fprintf(buf, "%010d %05d n \n", e.Offset, e.Generation)
	}
}
