// Package pdftest writes small PDF files for tests: a raw object builder and
// an AcroForm fixture on top of it.
package pdftest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"slices"
	"strings"
)

// Builder collects indirect objects and serializes them into a file.
// Object bodies are raw PDF syntax.
type Builder struct {
	bodies  map[int]string
	streams map[int][]byte
	next    int
}

// New returns an empty builder. Object numbers start at 1.
func New() *Builder {
	return &Builder{bodies: map[int]string{}, streams: map[int][]byte{}, next: 1}
}

// Reserve allocates an object number to be Set later.
func (b *Builder) Reserve() int {
	n := b.next
	b.next++
	return n
}

// Set stores the body of object num.
func (b *Builder) Set(num int, body string) {
	b.bodies[num] = body
	if num >= b.next {
		b.next = num + 1
	}
}

// Add stores a new object and returns its number.
func (b *Builder) Add(body string) int {
	n := b.Reserve()
	b.Set(n, body)
	return n
}

// AddStream stores a stream object. dict holds the dictionary entries
// without the enclosing brackets and without /Length.
func (b *Builder) AddStream(dict string, data []byte) int {
	n := b.Add(dict)
	b.streams[n] = data
	return n
}

// Size returns one more than the highest object number allocated.
func (b *Builder) Size() int { return b.next }

// Ref formats an indirect reference.
func Ref(num int) string { return fmt.Sprintf("%d 0 R", num) }

// Str formats a literal string.
func Str(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return "(" + r.Replace(s) + ")"
}

func (b *Builder) numbers() []int {
	nums := make([]int, 0, len(b.bodies))
	for n := range b.bodies {
		nums = append(nums, n)
	}
	slices.Sort(nums)
	return nums
}

func (b *Builder) writeObject(buf *bytes.Buffer, num int) {
	fmt.Fprintf(buf, "%d 0 obj\n", num)
	if data, ok := b.streams[num]; ok {
		fmt.Fprintf(buf, "<<%s /Length %d>>\nstream\n", b.bodies[num], len(data))
		buf.Write(data)
		buf.WriteString("\nendstream\nendobj\n")
		return
	}
	buf.WriteString(b.bodies[num])
	buf.WriteString("\nendobj\n")
}

// Bytes writes the objects with a classic cross-reference table. trailer
// holds extra trailer entries.
func (b *Builder) Bytes(root int, trailer string) []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := map[int]int{}
	for _, n := range b.numbers() {
		offsets[n] = buf.Len()
		b.writeObject(&buf, n)
	}

	start := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", b.next)
	for n := 1; n < b.next; n++ {
		if off, ok := offsets[n]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 00000 f \n")
		}
	}
	fmt.Fprintf(&buf, "trailer\n<</Size %d /Root %s%s>>\nstartxref\n%d\n%%%%EOF\n", b.next, Ref(root), trailer, start)
	return buf.Bytes()
}

// CompressedBytes packs every non-stream object into one compressed object
// stream and indexes the file with a cross-reference stream using the PNG
// Up predictor.
func (b *Builder) CompressedBytes(root int, trailer string) []byte {
	var packed, direct []int
	for _, n := range b.numbers() {
		if _, ok := b.streams[n]; ok {
			direct = append(direct, n)
		} else {
			packed = append(packed, n)
		}
	}

	var header, body bytes.Buffer
	for _, n := range packed {
		fmt.Fprintf(&header, "%d %d ", n, body.Len())
		body.WriteString(b.bodies[n])
		body.WriteByte('\n')
	}
	container := b.next
	xrefNum := container + 1
	size := xrefNum + 1

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := map[int]int{}
	for _, n := range direct {
		offsets[n] = buf.Len()
		b.writeObject(&buf, n)
	}

	stm := deflate(append(header.Bytes(), body.Bytes()...))
	offsets[container] = buf.Len()
	fmt.Fprintf(&buf, "%d 0 obj\n<</Type /ObjStm /N %d /First %d /Filter /FlateDecode /Length %d>>\nstream\n",
		container, len(packed), header.Len(), len(stm))
	buf.Write(stm)
	buf.WriteString("\nendstream\nendobj\n")

	const rowLen = 1 + 4 + 2
	rows := make([]byte, 0, size*rowLen)
	row := func(kind byte, a uint32, c uint16) {
		rows = append(rows, kind)
		rows = binary.BigEndian.AppendUint32(rows, a)
		rows = binary.BigEndian.AppendUint16(rows, c)
	}
	offsets[xrefNum] = buf.Len()
	for n := range size {
		switch {
		case n == 0:
			row(0, 0, 0xFFFF)
		case slices.Contains(packed, n):
			row(2, uint32(container), uint16(slices.Index(packed, n)))
		default:
			off, ok := offsets[n]
			if !ok {
				row(0, 0, 0)
				continue
			}
			row(1, uint32(off), 0)
		}
	}

	// PNG Up: every row carries filter type 2 and the difference to the
	// row above.
	var predicted []byte
	prev := make([]byte, rowLen)
	for i := 0; i+rowLen <= len(rows); i += rowLen {
		cur := rows[i : i+rowLen]
		predicted = append(predicted, 2)
		for j := range cur {
			predicted = append(predicted, cur[j]-prev[j])
		}
		prev = cur
	}
	data := deflate(predicted)
	fmt.Fprintf(&buf, "%d 0 obj\n<</Type /XRef /Size %d /W [1 4 2] /Root %s%s /Filter /FlateDecode /DecodeParms <</Predictor 12 /Columns %d>> /Length %d>>\nstream\n",
		xrefNum, size, Ref(root), trailer, rowLen, len(data))
	buf.Write(data)
	fmt.Fprintf(&buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", offsets[xrefNum])
	return buf.Bytes()
}

// Update appends an incremental update to base replacing or adding the
// given objects, chained to the newest cross-reference section of base.
func Update(base []byte, root, size int, objects map[int]string) []byte {
	i := bytes.LastIndex(base, []byte("startxref"))
	var prev int
	fmt.Sscanf(string(base[i+len("startxref"):]), "%d", &prev)

	buf := bytes.NewBuffer(slices.Clone(base))
	nums := make([]int, 0, len(objects))
	for n := range objects {
		nums = append(nums, n)
		size = max(size, n+1)
	}
	slices.Sort(nums)
	offsets := map[int]int{}
	for _, n := range nums {
		offsets[n] = buf.Len()
		fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", n, objects[n])
	}
	start := buf.Len()
	buf.WriteString("xref\n")
	for _, n := range nums {
		fmt.Fprintf(buf, "%d 1\n%010d 00000 n \n", n, offsets[n])
	}
	fmt.Fprintf(buf, "trailer\n<</Size %d /Root %s /Prev %d>>\nstartxref\n%d\n%%%%EOF\n", size, Ref(root), prev, start)
	return buf.Bytes()
}

func deflate(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}
