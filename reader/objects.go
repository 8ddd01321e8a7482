// Package reader parses existing PDF files far enough to inspect and update
// their interactive forms.
//
// It reads the object structure (classic cross-reference tables,
// cross-reference streams and compressed object streams, across incremental
// updates), the page tree and the AcroForm field hierarchy including widget
// annotations and their appearance states. Encrypted documents are rejected.
package reader

import (
	"fmt"
	"maps"
	"strconv"
)

// Object is one of the PDF object types below.
type Object interface {
	isObject()
}

// Null is the PDF null object.
type Null struct{}

// Boolean is a PDF boolean.
type Boolean bool

// Integer is a PDF integer.
type Integer int64

// Real is a PDF real number.
type Real float64

// Name is a PDF name, without the leading slash.
type Name string

// String is a PDF string. Value holds the bytes after escape processing.
type String struct {
	Value []byte
	IsHex bool
}

// Array is a PDF array.
type Array []Object

// Dict is a PDF dictionary.
type Dict map[Name]Object

// Stream is a stream object: its dictionary and the still encoded data.
type Stream struct {
	Dict Dict
	Data []byte
}

// Reference points at an indirect object.
type Reference struct {
	Number     int
	Generation int
}

func (Null) isObject()      {}
func (Boolean) isObject()   {}
func (Integer) isObject()   {}
func (Real) isObject()      {}
func (Name) isObject()      {}
func (String) isObject()    {}
func (Array) isObject()     {}
func (Dict) isObject()      {}
func (Stream) isObject()    {}
func (Reference) isObject() {}

func (r Reference) String() string {
	return strconv.Itoa(r.Number) + " " + strconv.Itoa(r.Generation) + " R"
}

// Name returns the name stored under key, or "".
func (d Dict) Name(key Name) Name {
	n, _ := d[key].(Name)
	return n
}

// Int returns the number stored under key truncated to an integer.
func (d Dict) Int(key Name) (int64, bool) {
	switch v := d[key].(type) {
	case Integer:
		return int64(v), true
	case Real:
		return int64(v), true
	}
	return 0, false
}

// Dict returns the direct sub-dictionary stored under key, or nil.
func (d Dict) Dict(key Name) Dict {
	sub, _ := d[key].(Dict)
	return sub
}

// Array returns the direct array stored under key, or nil.
func (d Dict) Array(key Name) Array {
	a, _ := d[key].(Array)
	return a
}

// Text returns the decoded text string stored under key, or "".
func (d Dict) Text(key Name) string {
	s, ok := d[key].(String)
	if !ok {
		return ""
	}
	return DecodeText(s.Value)
}

// Clone returns a shallow copy of d: nested containers are shared.
func (d Dict) Clone() Dict {
	return maps.Clone(d)
}

// Number converts an Integer or Real to float64.
func Number(obj Object) (float64, bool) {
	switch v := obj.(type) {
	case Integer:
		return float64(v), true
	case Real:
		return float64(v), true
	}
	return 0, false
}

// ValueString renders a field value object as text: strings are decoded,
// names lose their slash and numbers print in their shortest form.
func ValueString(obj Object) string {
	switch v := obj.(type) {
	case String:
		return DecodeText(v.Value)
	case Name:
		return string(v)
	case Integer:
		return strconv.FormatInt(int64(v), 10)
	case Real:
		return strconv.FormatFloat(float64(v), 'f', -1, 64)
	case Boolean:
		return strconv.FormatBool(bool(v))
	}
	return ""
}

// Rectangle is a PDF rectangle [llx lly urx ury].
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

// Width of r.
func (r Rectangle) Width() float64 { return r.URX - r.LLX }

// Height of r.
func (r Rectangle) Height() float64 { return r.URY - r.LLY }

// Normalize orders the corners so that LL is below and left of UR.
func (r Rectangle) Normalize() Rectangle {
	if r.LLX > r.URX {
		r.LLX, r.URX = r.URX, r.LLX
	}
	if r.LLY > r.URY {
		r.LLY, r.URY = r.URY, r.LLY
	}
	return r
}

// RectangleOf converts a four number array into a Rectangle.
func RectangleOf(obj Object) (Rectangle, error) {
	a, ok := obj.(Array)
	if !ok || len(a) != 4 {
		return Rectangle{}, fmt.Errorf("reader: rectangle is not a 4-element array")
	}
	var v [4]float64
	for i, o := range a {
		n, ok := Number(o)
		if !ok {
			return Rectangle{}, fmt.Errorf("reader: rectangle element %d is not a number", i)
		}
		v[i] = n
	}
	return Rectangle{LLX: v[0], LLY: v[1], URX: v[2], URY: v[3]}.Normalize(), nil
}
