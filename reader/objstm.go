package reader

import (
	"fmt"
	"strconv"
)

// objectStream is a decoded /Type /ObjStm container.
type objectStream struct {
	data    []byte
	numbers []int
	offsets []int
}

func (d *Document) objectStream(num int) (*objectStream, error) {
	if s, ok := d.streams[num]; ok {
		return s, nil
	}
	obj, err := d.Object(num)
	if err != nil {
		return nil, err
	}
	s, ok := obj.(Stream)
	if !ok || s.Dict.Name("Type") != "ObjStm" {
		return nil, fmt.Errorf("reader: object %d is not an object stream", num)
	}
	n, ok1 := s.Dict.Int("N")
	first, ok2 := s.Dict.Int("First")
	if !ok1 || !ok2 || n < 0 || first < 0 {
		return nil, fmt.Errorf("reader: object stream %d lacks /N or /First", num)
	}
	data, err := Decode(s)
	if err != nil {
		return nil, fmt.Errorf("reader: object stream %d: %w", num, err)
	}
	if int(first) > len(data) {
		return nil, fmt.Errorf("reader: object stream %d: /First beyond data", num)
	}

	stm := &objectStream{data: data}
	p := newParser(data[:first])
	for range n {
		objNum, err1 := strconv.Atoi(p.word())
		off, err2 := strconv.Atoi(p.word())
		if err1 != nil || err2 != nil || objNum < 0 || off < 0 {
			return nil, fmt.Errorf("reader: object stream %d: malformed header", num)
		}
		stm.numbers = append(stm.numbers, objNum)
		stm.offsets = append(stm.offsets, int(first)+off)
	}
	d.streams[num] = stm
	return stm, nil
}

func (d *Document) packedObject(num int, e xrefEntry) (Object, error) {
	stm, err := d.objectStream(e.container)
	if err != nil {
		return nil, err
	}
	i := e.index
	if i < 0 || i >= len(stm.numbers) || stm.numbers[i] != num {
		// The index is only a hint; fall back to a search.
		i = -1
		for j, n := range stm.numbers {
			if n == num {
				i = j
				break
			}
		}
	}
	if i < 0 || stm.offsets[i] < 0 || stm.offsets[i] > len(stm.data) {
		return nil, fmt.Errorf("reader: object %d missing from object stream %d", num, e.container)
	}
	p := newParser(stm.data[stm.offsets[i]:])
	obj, err := p.object()
	if err != nil {
		return nil, fmt.Errorf("reader: object %d in stream %d: %w", num, e.container, err)
	}
	return obj, nil
}
