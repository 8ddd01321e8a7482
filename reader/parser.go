package reader

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// parser reads PDF objects from an in-memory buffer.
type parser struct {
	buf []byte
	pos int

	// length resolves an indirect stream /Length. It is nil while reading
	// from an object stream, where streams cannot occur.
	length func(Reference) (int64, bool)
}

func newParser(buf []byte) *parser {
	return &parser{buf: buf}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// skip moves past white space and comments.
func (p *parser) skip() {
	for p.pos < len(p.buf) {
		c := p.buf[p.pos]
		if c == '%' {
			for p.pos < len(p.buf) && p.buf[p.pos] != '\n' && p.buf[p.pos] != '\r' {
				p.pos++
			}
			continue
		}
		if !isSpace(c) {
			return
		}
		p.pos++
	}
}

// word reads a run of regular characters: a keyword or a number.
func (p *parser) word() string {
	p.skip()
	start := p.pos
	for p.pos < len(p.buf) && !isSpace(p.buf[p.pos]) && !isDelim(p.buf[p.pos]) {
		p.pos++
	}
	return string(p.buf[start:p.pos])
}

// hasKeyword reports whether kw follows (after white space), consuming it
// if so.
func (p *parser) hasKeyword(kw string) bool {
	p.skip()
	end := p.pos + len(kw)
	if end > len(p.buf) || string(p.buf[p.pos:end]) != kw {
		return false
	}
	if end < len(p.buf) && !isSpace(p.buf[end]) && !isDelim(p.buf[end]) {
		return false
	}
	p.pos = end
	return true
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("reader: offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

// object reads the next direct object. References are returned unresolved.
func (p *parser) object() (Object, error) {
	p.skip()
	if p.pos >= len(p.buf) {
		return nil, io.ErrUnexpectedEOF
	}
	switch c := p.buf[p.pos]; {
	case c == '/':
		return p.name()
	case c == '(':
		return p.literal()
	case c == '<':
		if p.pos+1 < len(p.buf) && p.buf[p.pos+1] == '<' {
			return p.dict()
		}
		return p.hex()
	case c == '[':
		return p.array()
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return p.numberOrReference()
	}

	start := p.pos
	switch w := p.word(); w {
	case "true":
		return Boolean(true), nil
	case "false":
		return Boolean(false), nil
	case "null":
		return Null{}, nil
	default:
		p.pos = start
		return nil, p.errorf("unexpected token %q", w)
	}
}

func (p *parser) name() (Name, error) {
	if p.pos >= len(p.buf) || p.buf[p.pos] != '/' {
		return "", p.errorf("expected name")
	}
	p.pos++
	var out []byte
	for p.pos < len(p.buf) {
		c := p.buf[p.pos]
		if isSpace(c) || isDelim(c) {
			break
		}
		if c == '#' && p.pos+2 < len(p.buf) {
			hi, lo := hexValue(p.buf[p.pos+1]), hexValue(p.buf[p.pos+2])
			if hi >= 0 && lo >= 0 {
				out = append(out, byte(hi<<4|lo))
				p.pos += 3
				continue
			}
		}
		out = append(out, c)
		p.pos++
	}
	return Name(out), nil
}

func (p *parser) numberOrReference() (Object, error) {
	w := p.word()
	n, err := strconv.ParseInt(w, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(w, 64)
		if ferr != nil {
			return nil, p.errorf("malformed number %q", w)
		}
		return Real(f), nil
	}

	// "n g R" is a reference; anything else leaves n as an integer.
	after := p.pos
	g, err := strconv.ParseInt(p.word(), 10, 64)
	if err == nil && g >= 0 && p.hasKeyword("R") {
		return Reference{Number: int(n), Generation: int(g)}, nil
	}
	p.pos = after
	return Integer(n), nil
}

func (p *parser) literal() (String, error) {
	p.pos++ // (
	var out []byte
	depth := 1
	for p.pos < len(p.buf) {
		c := p.buf[p.pos]
		p.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return String{Value: out}, nil
			}
		case '\\':
			if p.pos >= len(p.buf) {
				return String{}, p.errorf("unterminated escape")
			}
			e := p.buf[p.pos]
			p.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				// Line continuation.
				if p.pos < len(p.buf) && p.buf[p.pos] == '\n' {
					p.pos++
				}
			case '\n':
			case '0', '1', '2', '3', '4', '5', '6', '7':
				v := int(e - '0')
				for i := 0; i < 2 && p.pos < len(p.buf) && p.buf[p.pos] >= '0' && p.buf[p.pos] <= '7'; i++ {
					v = v<<3 | int(p.buf[p.pos]-'0')
					p.pos++
				}
				out = append(out, byte(v))
			default:
				out = append(out, e)
			}
			continue
		}
		out = append(out, c)
	}
	return String{}, p.errorf("unterminated string")
}

func (p *parser) hex() (String, error) {
	p.pos++ // <
	var out []byte
	half := -1
	for p.pos < len(p.buf) {
		c := p.buf[p.pos]
		p.pos++
		if c == '>' {
			if half >= 0 {
				out = append(out, byte(half<<4))
			}
			return String{Value: out, IsHex: true}, nil
		}
		if isSpace(c) {
			continue
		}
		v := hexValue(c)
		if v < 0 {
			return String{}, p.errorf("bad hex digit %q", c)
		}
		if half < 0 {
			half = v
			continue
		}
		out = append(out, byte(half<<4|v))
		half = -1
	}
	return String{}, p.errorf("unterminated hex string")
}

func (p *parser) array() (Array, error) {
	p.pos++ // [
	a := Array{}
	for {
		p.skip()
		if p.pos >= len(p.buf) {
			return nil, p.errorf("unterminated array")
		}
		if p.buf[p.pos] == ']' {
			p.pos++
			return a, nil
		}
		obj, err := p.object()
		if err != nil {
			return nil, err
		}
		a = append(a, obj)
	}
}

func (p *parser) dict() (Dict, error) {
	p.pos += 2 // <<
	d := Dict{}
	for {
		p.skip()
		if p.pos+1 >= len(p.buf) {
			return nil, p.errorf("unterminated dictionary")
		}
		if p.buf[p.pos] == '>' && p.buf[p.pos+1] == '>' {
			p.pos += 2
			return d, nil
		}
		key, err := p.name()
		if err != nil {
			return nil, err
		}
		val, err := p.object()
		if err != nil {
			return nil, fmt.Errorf("reader: /%s: %w", key, err)
		}
		// A null value is equivalent to the key being absent.
		if _, isNull := val.(Null); !isNull {
			d[key] = val
		}
	}
}

// indirect reads "n g obj <object> [stream] endobj".
func (p *parser) indirect() (Reference, Object, error) {
	num, err := strconv.Atoi(p.word())
	if err != nil {
		return Reference{}, nil, p.errorf("expected object number")
	}
	gen, err := strconv.Atoi(p.word())
	if err != nil {
		return Reference{}, nil, p.errorf("expected generation number")
	}
	ref := Reference{Number: num, Generation: gen}
	if !p.hasKeyword("obj") {
		return ref, nil, p.errorf("expected obj keyword for %s", ref)
	}
	obj, err := p.object()
	if err != nil {
		return ref, nil, fmt.Errorf("reader: object %s: %w", ref, err)
	}
	if d, ok := obj.(Dict); ok && p.hasKeyword("stream") {
		data, err := p.streamData(d)
		if err != nil {
			return ref, nil, fmt.Errorf("reader: object %s: %w", ref, err)
		}
		obj = Stream{Dict: d, Data: data}
	}
	p.hasKeyword("endobj")
	return ref, obj, nil
}

// streamData reads the bytes between the stream and endstream keywords.
// A missing or wrong /Length falls back to scanning for endstream.
func (p *parser) streamData(d Dict) ([]byte, error) {
	if p.pos < len(p.buf) && p.buf[p.pos] == '\r' {
		p.pos++
	}
	if p.pos < len(p.buf) && p.buf[p.pos] == '\n' {
		p.pos++
	}
	start := p.pos

	n, ok := d.Int("Length")
	if ref, isRef := d["Length"].(Reference); isRef && p.length != nil {
		n, ok = p.length(ref)
	}
	if ok && n >= 0 && start+int(n) <= len(p.buf) {
		p.pos = start + int(n)
		if p.hasKeyword("endstream") {
			return p.buf[start : start+int(n)], nil
		}
	}

	i := bytes.Index(p.buf[start:], []byte("endstream"))
	if i < 0 {
		return nil, p.errorf("stream without endstream")
	}
	end := start + i
	p.pos = end + len("endstream")
	if end > start && p.buf[end-1] == '\n' {
		end--
	}
	if end > start && p.buf[end-1] == '\r' {
		end--
	}
	return p.buf[start:end], nil
}

func hexValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}
