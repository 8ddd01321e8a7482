package pdftest

import (
	"fmt"
	"strings"
)

// Object numbers of the fixed document skeleton written by Form.
const (
	CatalogObj  = 1
	PagesObj    = 2
	PageObj     = 3
	AcroFormObj = 4
	FontObj     = 5
)

// Field flags used by the fixtures.
const (
	flagRadio      = 1 << 15
	flagPushButton = 1 << 16
	flagCombo      = 1 << 17
	flagEdit       = 1 << 18
)

// Form builds a one-page document with an interactive form. Fields are
// laid out top to bottom; each helper returns the object number of the
// field it added.
type Form struct {
	*Builder

	// Encrypted adds an /Encrypt entry to the trailer.
	Encrypted bool

	fields []string
	annots []int
	y      int
}

// NewForm returns a form fixture with the catalog, page tree, AcroForm
// and Helvetica font objects reserved.
func NewForm() *Form {
	f := &Form{Builder: New(), y: 760}
	for range FontObj {
		f.Reserve()
	}
	f.Set(FontObj, "<</Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding>>")
	return f
}

func (f *Form) rect(h int) string {
	r := fmt.Sprintf("[50 %d 250 %d]", f.y-h, f.y)
	f.y -= h + 10
	return r
}

func (f *Form) widget(entries string) int {
	n := f.Add(fmt.Sprintf("<</Type /Annot /Subtype /Widget /P %s %s>>", Ref(PageObj), entries))
	f.annots = append(f.annots, n)
	return n
}

// top registers num as a top-level field.
func (f *Form) top(num int) int {
	f.fields = append(f.fields, Ref(num))
	return num
}

// Text adds a text field with a merged widget.
func (f *Form) Text(name, value string) int {
	entries := fmt.Sprintf("/FT /Tx /T %s /Rect %s /DA (/Helv 12 Tf 0 g)", Str(name), f.rect(20))
	if value != "" {
		entries += " /V " + Str(value)
	}
	return f.top(f.widget(entries))
}

// Multiline adds a multi-line text field with automatic font size.
func (f *Form) Multiline(name string) int {
	return f.top(f.widget(fmt.Sprintf("/FT /Tx /T %s /Ff 4096 /Q 1 /Rect %s", Str(name), f.rect(60))))
}

func (f *Form) stateAppearance(on string) string {
	onAP := f.AddStream("/Type /XObject /Subtype /Form /BBox [0 0 12 12]", []byte("0 g 2 2 8 8 re f"))
	offAP := f.AddStream("/Type /XObject /Subtype /Form /BBox [0 0 12 12]", nil)
	return fmt.Sprintf("/AP <</N <</%s %s /Off %s>>>>", on, Ref(onAP), Ref(offAP))
}

// CheckBox adds an unchecked check box whose on state is named on.
func (f *Form) CheckBox(name, on string) int {
	ap := f.stateAppearance(on)
	return f.top(f.widget(fmt.Sprintf("/FT /Btn /T %s /Rect %s /V /Off /AS /Off %s", Str(name), f.rect(12), ap)))
}

// Radio adds a radio group with one kid widget per state.
func (f *Form) Radio(name string, states ...string) int {
	parent := f.Reserve()
	var kids []string
	for _, s := range states {
		ap := f.stateAppearance(s)
		kid := f.widget(fmt.Sprintf("/Parent %s /Rect %s /AS /Off %s", Ref(parent), f.rect(12), ap))
		kids = append(kids, Ref(kid))
	}
	f.Set(parent, fmt.Sprintf("<</FT /Btn /Ff %d /T %s /V /Off /Kids [%s]>>", flagRadio, Str(name), strings.Join(kids, " ")))
	return f.top(parent)
}

func options(opts []string) string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = Str(o)
	}
	return "[" + strings.Join(out, " ") + "]"
}

// Combo adds a drop-down list.
func (f *Form) Combo(name string, editable bool, opts ...string) int {
	ff := flagCombo
	if editable {
		ff |= flagEdit
	}
	return f.top(f.widget(fmt.Sprintf("/FT /Ch /Ff %d /T %s /Opt %s /Rect %s /DA (/Helv 0 Tf 0 g)",
		ff, Str(name), options(opts), f.rect(20))))
}

// ExportCombo adds a drop-down whose options carry distinct export values,
// given as export, display pairs.
func (f *Form) ExportCombo(name string, pairs ...string) int {
	var opts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		opts = append(opts, fmt.Sprintf("[%s %s]", Str(pairs[i]), Str(pairs[i+1])))
	}
	return f.top(f.widget(fmt.Sprintf("/FT /Ch /Ff %d /T %s /Opt [%s] /Rect %s",
		flagCombo, Str(name), strings.Join(opts, " "), f.rect(20))))
}

// List adds a list box.
func (f *Form) List(name string, opts ...string) int {
	return f.top(f.widget(fmt.Sprintf("/FT /Ch /T %s /Opt %s /Rect %s", Str(name), options(opts), f.rect(40))))
}

// PushButton adds a push button.
func (f *Form) PushButton(name string) int {
	return f.top(f.widget(fmt.Sprintf("/FT /Btn /Ff %d /T %s /Rect %s", flagPushButton, Str(name), f.rect(20))))
}

// Signature adds an unsigned signature field.
func (f *Form) Signature(name string) int {
	return f.top(f.widget(fmt.Sprintf("/FT /Sig /T %s /Rect %s", Str(name), f.rect(30))))
}

// Nested adds a non-terminal field parent with a text field child and
// returns the child. The child inherits /FT from the parent.
func (f *Form) Nested(parent, child string) int {
	p := f.Reserve()
	kid := f.widget(fmt.Sprintf("/Parent %s /T %s /Rect %s", Ref(p), Str(child), f.rect(20)))
	f.Set(p, fmt.Sprintf("<</FT /Tx /T %s /DA (/Helv 10 Tf 0 g) /Kids [%s]>>", Str(parent), Ref(kid)))
	f.top(p)
	return kid
}

// Inline adds a text field written directly into the AcroForm /Fields
// array instead of as an indirect object.
func (f *Form) Inline(name string) {
	f.fields = append(f.fields, fmt.Sprintf("<</FT /Tx /T %s /Rect %s>>", Str(name), f.rect(20)))
}

func (f *Form) finish() string {
	annots := make([]string, len(f.annots))
	for i, a := range f.annots {
		annots[i] = Ref(a)
	}
	f.Set(CatalogObj, fmt.Sprintf("<</Type /Catalog /Pages %s /AcroForm %s>>", Ref(PagesObj), Ref(AcroFormObj)))
	f.Set(PagesObj, fmt.Sprintf("<</Type /Pages /Kids [%s] /Count 1 /MediaBox [0 0 612 792]>>", Ref(PageObj)))
	f.Set(PageObj, fmt.Sprintf("<</Type /Page /Parent %s /Annots [%s]>>", Ref(PagesObj), strings.Join(annots, " ")))
	f.Set(AcroFormObj, fmt.Sprintf("<</Fields [%s] /DA (/Helv 0 Tf 0 g) /DR <</Font <</Helv %s>>>>>>",
		strings.Join(f.fields, " "), Ref(FontObj)))
	if f.Encrypted {
		enc := f.Add("<</Filter /Standard /V 2 /R 3 /Length 128 /P -4 /O <00> /U <00>>>")
		return " /Encrypt " + Ref(enc) + " /ID [<0102> <0102>]"
	}
	return ""
}

// Bytes writes the form with a classic cross-reference table.
func (f *Form) Bytes() []byte {
	trailer := f.finish()
	return f.Builder.Bytes(CatalogObj, trailer)
}

// CompressedBytes writes the form with an object stream and a
// cross-reference stream.
func (f *Form) CompressedBytes() []byte {
	trailer := f.finish()
	return f.Builder.CompressedBytes(CatalogObj, trailer)
}
