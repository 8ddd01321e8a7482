package reader

import (
	"fmt"
	"slices"
	"strings"
)

// FieldKind classifies a terminal form field by its type and flags.
type FieldKind int

const (
	KindUnknown FieldKind = iota
	KindText
	KindCheckBox
	KindRadio
	KindPushButton
	KindChoice
	KindSignature
)

func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindCheckBox:
		return "checkbox"
	case KindRadio:
		return "radio"
	case KindPushButton:
		return "pushbutton"
	case KindChoice:
		return "choice"
	case KindSignature:
		return "signature"
	}
	return "unknown"
}

// Field flags (/Ff).
const (
	FlagReadOnly       = 1 << 0
	FlagRequired       = 1 << 1
	FlagNoExport       = 1 << 2
	FlagMultiline      = 1 << 12
	FlagPassword       = 1 << 13
	FlagNoToggleToOff  = 1 << 14
	FlagRadio          = 1 << 15
	FlagPushButton     = 1 << 16
	FlagCombo          = 1 << 17
	FlagEdit           = 1 << 18
	FlagMultiSelect    = 1 << 21
	FlagComb           = 1 << 24
	FlagRadiosInUnison = 1 << 25
)

// Option is one entry of a choice field's /Opt array.
type Option struct {
	Export  string
	Display string
}

// Widget is a widget annotation of a terminal field.
type Widget struct {
	// Ref is zero for a widget merged into an inline field dictionary.
	Ref  Reference
	Dict Dict
	Rect Rectangle
	Page int
	// States lists the appearance states other than Off, sorted.
	States []Name
	// State is the current appearance state (/AS).
	State Name
}

// Field is a node of the AcroForm field tree.
type Field struct {
	Name     string
	FullName string
	Kind     FieldKind
	Type     Name
	Flags    int
	Value    Object
	Default  Object
	Options  []Option
	MaxLen   int
	Quadding int
	// DA is the default appearance string, inherited from ancestors and
	// the AcroForm dictionary.
	DA string

	Ref Reference
	// Inline is set for fields that are not indirect objects; they cannot
	// be updated without rewriting their parent.
	Inline bool
	Dict   Dict

	Parent  *Field
	Kids    []*Field
	Widgets []Widget
}

// Terminal reports whether f has no child fields.
func (f *Field) Terminal() bool { return len(f.Kids) == 0 }

// ValueText returns the field value as text.
func (f *Field) ValueText() string { return ValueString(f.Value) }

func (f *Field) ReadOnly() bool  { return f.Flags&FlagReadOnly != 0 }
func (f *Field) Required() bool  { return f.Flags&FlagRequired != 0 }
func (f *Field) Multiline() bool { return f.Flags&FlagMultiline != 0 }
func (f *Field) Combo() bool     { return f.Flags&FlagCombo != 0 }
func (f *Field) Editable() bool  { return f.Flags&FlagEdit != 0 }

// OnStates returns the distinct on-states of all widgets of f, sorted.
func (f *Field) OnStates() []Name {
	var out []Name
	for _, w := range f.Widgets {
		out = append(out, w.States...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Page returns the page of the first widget, or 0.
func (f *Field) Page() int {
	for _, w := range f.Widgets {
		if w.Page > 0 {
			return w.Page
		}
	}
	return 0
}

// Form is the interactive form of a document.
type Form struct {
	// Ref is zero when the AcroForm dictionary is direct in the catalog.
	Ref    Reference
	Dict   Dict
	DA     string
	DR     Dict
	Fields []*Field
}

// Form returns the document's interactive form, or nil when it has none.
func (d *Document) Form() (*Form, error) {
	cat, err := d.Catalog()
	if err != nil {
		return nil, err
	}
	raw, ok := cat["AcroForm"]
	if !ok {
		return nil, nil
	}
	dict, err := d.ResolveDict(raw)
	if err != nil {
		return nil, fmt.Errorf("reader: AcroForm: %w", err)
	}
	if dict == nil {
		return nil, nil
	}

	form := &Form{Dict: dict, DA: dict.Text("DA")}
	form.Ref, _ = raw.(Reference)
	if form.DR, err = d.ResolveDict(dict["DR"]); err != nil {
		return nil, fmt.Errorf("reader: AcroForm /DR: %w", err)
	}

	fields, err := d.ResolveArray(dict["Fields"])
	if err != nil {
		return nil, fmt.Errorf("reader: AcroForm /Fields: %w", err)
	}
	seen := map[int]bool{}
	inherit := inherited{da: form.DA}
	for _, obj := range fields {
		f, err := d.readField(obj, nil, inherit, seen)
		if err != nil {
			return nil, err
		}
		if f != nil {
			form.Fields = append(form.Fields, f)
		}
	}
	return form, nil
}

// FormFields returns the terminal fields of the document's form in tree
// order. A document without a form has none.
func (d *Document) FormFields() ([]*Field, error) {
	form, err := d.Form()
	if err != nil || form == nil {
		return []*Field{}, err
	}
	return form.Terminal(), nil
}

// Terminal returns the terminal fields in tree order.
func (f *Form) Terminal() []*Field {
	out := []*Field{}
	var walk func([]*Field)
	walk = func(fields []*Field) {
		for _, field := range fields {
			if field.Terminal() {
				out = append(out, field)
				continue
			}
			walk(field.Kids)
		}
	}
	walk(f.Fields)
	return out
}

// Lookup finds a terminal field by fully qualified name, falling back to a
// unique partial name match.
func (f *Form) Lookup(name string) *Field {
	var partial []*Field
	for _, field := range f.Terminal() {
		if field.FullName == name {
			return field
		}
		if field.Name == name {
			partial = append(partial, field)
		}
	}
	if len(partial) == 1 {
		return partial[0]
	}
	return nil
}

// inherited carries the inheritable field attributes down the tree.
type inherited struct {
	ft      Name
	ff      int
	v, dv   Object
	da      string
	q       int
	maxLen  int
	options []Option
}

func (d *Document) readField(obj Object, parent *Field, inh inherited, seen map[int]bool) (*Field, error) {
	ref, isRef := obj.(Reference)
	if isRef {
		if seen[ref.Number] {
			return nil, nil
		}
		seen[ref.Number] = true
	}
	dict, err := d.ResolveDict(obj)
	if err != nil {
		return nil, fmt.Errorf("reader: field %v: %w", obj, err)
	}
	if dict == nil {
		return nil, nil
	}

	f := &Field{Parent: parent, Ref: ref, Inline: !isRef, Dict: dict}
	f.Name = dict.Text("T")
	switch {
	case parent == nil:
		f.FullName = f.Name
	case f.Name == "":
		f.FullName = parent.FullName
	case parent.FullName == "":
		f.FullName = f.Name
	default:
		f.FullName = parent.FullName + "." + f.Name
	}

	if ft := dict.Name("FT"); ft != "" {
		inh.ft = ft
	}
	if ff, ok := dict.Int("Ff"); ok {
		inh.ff = int(ff)
	}
	if v, ok := dict["V"]; ok {
		if inh.v, err = d.Resolve(v); err != nil {
			return nil, err
		}
	}
	if dv, ok := dict["DV"]; ok {
		if inh.dv, err = d.Resolve(dv); err != nil {
			return nil, err
		}
	}
	if _, ok := dict["DA"]; ok {
		inh.da = dict.Text("DA")
	}
	if q, ok := dict.Int("Q"); ok {
		inh.q = int(q)
	}
	if ml, ok := dict.Int("MaxLen"); ok {
		inh.maxLen = int(ml)
	}
	if opt, ok := dict["Opt"]; ok {
		if inh.options, err = d.readOptions(opt); err != nil {
			return nil, err
		}
	}

	f.Type, f.Flags, f.Value, f.Default = inh.ft, inh.ff, inh.v, inh.dv
	f.DA, f.Quadding, f.MaxLen, f.Options = inh.da, inh.q, inh.maxLen, inh.options
	f.Kind = kindOf(f.Type, f.Flags)

	kids, err := d.ResolveArray(dict["Kids"])
	if err != nil {
		return nil, err
	}
	for _, kid := range kids {
		kd, err := d.ResolveDict(kid)
		if err != nil {
			return nil, err
		}
		if kd == nil {
			continue
		}
		if _, named := kd["T"]; !named && isWidget(kd) {
			w, err := d.readWidget(kid, kd)
			if err != nil {
				return nil, err
			}
			f.Widgets = append(f.Widgets, w)
			continue
		}
		child, err := d.readField(kid, f, inh, seen)
		if err != nil {
			return nil, err
		}
		if child != nil {
			f.Kids = append(f.Kids, child)
		}
	}
	if len(kids) == 0 && isWidget(dict) {
		w, err := d.readWidget(obj, dict)
		if err != nil {
			return nil, err
		}
		f.Widgets = append(f.Widgets, w)
	}
	return f, nil
}

func isWidget(d Dict) bool {
	if st := d.Name("Subtype"); st != "" {
		return st == "Widget"
	}
	_, hasRect := d["Rect"]
	return hasRect
}

func (d *Document) readWidget(obj Object, dict Dict) (Widget, error) {
	w := Widget{Dict: dict, State: dict.Name("AS")}
	w.Ref, _ = obj.(Reference)
	if r, err := d.Resolve(dict["Rect"]); err == nil {
		w.Rect, _ = RectangleOf(r)
	}
	w.Page = d.pageNumber(dict["P"])
	if w.Page == 0 && w.Ref.Number > 0 {
		w.Page = d.PageOf(w.Ref)
	}

	ap, err := d.ResolveDict(dict["AP"])
	if err != nil {
		return w, fmt.Errorf("reader: widget /AP: %w", err)
	}
	if ap == nil {
		return w, nil
	}
	normal, err := d.Resolve(ap["N"])
	if err != nil {
		return w, fmt.Errorf("reader: widget /AP /N: %w", err)
	}
	// A stream is a single appearance; only a dictionary names states.
	if states, ok := normal.(Dict); ok {
		for k := range states {
			if k != "Off" {
				w.States = append(w.States, k)
			}
		}
		slices.Sort(w.States)
	}
	return w, nil
}

func (d *Document) readOptions(obj Object) ([]Option, error) {
	arr, err := d.ResolveArray(obj)
	if err != nil {
		return nil, fmt.Errorf("reader: /Opt: %w", err)
	}
	opts := make([]Option, 0, len(arr))
	for _, item := range arr {
		item, err := d.Resolve(item)
		if err != nil {
			return nil, err
		}
		switch v := item.(type) {
		case Array:
			if len(v) < 2 {
				continue
			}
			export, _ := d.Resolve(v[0])
			display, _ := d.Resolve(v[1])
			opts = append(opts, Option{Export: ValueString(export), Display: ValueString(display)})
		default:
			s := ValueString(v)
			opts = append(opts, Option{Export: s, Display: s})
		}
	}
	return opts, nil
}

func kindOf(ft Name, flags int) FieldKind {
	switch ft {
	case "Tx":
		return KindText
	case "Btn":
		switch {
		case flags&FlagPushButton != 0:
			return KindPushButton
		case flags&FlagRadio != 0:
			return KindRadio
		}
		return KindCheckBox
	case "Ch":
		return KindChoice
	case "Sig":
		return KindSignature
	}
	return KindUnknown
}

// FontName returns the font resource name and size selected by a default
// appearance string such as "/Helv 12 Tf 0 g". Size 0 means auto size.
func FontName(da string) (Name, float64) {
	fields := strings.Fields(da)
	for i := len(fields) - 1; i >= 2; i-- {
		if fields[i] != "Tf" {
			continue
		}
		name := strings.TrimPrefix(fields[i-2], "/")
		var size float64
		fmt.Sscanf(fields[i-1], "%g", &size)
		return Name(name), size
	}
	return "", 0
}
