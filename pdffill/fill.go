package pdffill

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/lvillar/tplmerge"
	"github.com/lvillar/tplmerge/reader"
)

// Skip records a mapping entry that was not written.
type Skip struct {
	Column string `json:"column"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (s Skip) String() string {
	return fmt.Sprintf("%s -> %s: %s", s.Column, s.Field, s.Reason)
}

// Report lists the outcome of a Fill per mapped field.
type Report struct {
	// Filled holds the fully qualified names of the written fields.
	Filled  []string `json:"filled"`
	Skipped []Skip   `json:"skipped"`
}

// Skip reasons.
const (
	reasonNotFound    = "field not found"
	reasonNoForm      = "document has no form"
	reasonInline      = "field is not an indirect object"
	reasonUnsupported = "unsupported field kind"
	reasonNoOption    = "value is not one of the options"
)

// Fill fills src with the default Engine.
func Fill(src []byte, mapping tplmerge.ReplacementMap, row tplmerge.Row) ([]byte, *Report, error) {
	return New().Fill(src, mapping, row)
}

// Fill writes the row value of every mapped column into the named form
// field. Columns are visited in sorted order; entries with an empty field
// name or a column missing from the row are ignored. Fields that cannot be
// written are listed in the report and do not fail the call.
//
// The result is src followed by an incremental update, or a copy of src
// when nothing was written and the engine does not flatten. Encrypted
// input fails with an error matching tplmerge.ErrEncrypted.
func (e *Engine) Fill(src []byte, mapping tplmerge.ReplacementMap, row tplmerge.Row) ([]byte, *Report, error) {
	doc, err := reader.Parse(src)
	if err != nil {
		return nil, nil, fmt.Errorf("pdffill: %w", err)
	}
	form, err := doc.Form()
	if err != nil {
		return nil, nil, fmt.Errorf("pdffill: %w", err)
	}

	report := &Report{Filled: []string{}, Skipped: []Skip{}}
	f := &filler{u: newUpdate(doc), form: form}
	for _, col := range slices.Sorted(maps.Keys(mapping)) {
		name := mapping[col]
		if name == "" {
			continue
		}
		v, ok := row.Get(col)
		if !ok {
			continue
		}

		reason := reasonNoForm
		var field *reader.Field
		if form != nil {
			field = form.Lookup(name)
			reason = reasonNotFound
		}
		if field != nil {
			value := v.String()
			if e.transliterate {
				value = Transliterate(value)
			}
			reason = f.set(field, value)
		}
		if reason != "" {
			e.logger.Warn("skipping form field", "column", col, "field", name, "reason", reason)
			report.Skipped = append(report.Skipped, Skip{Column: col, Field: name, Reason: reason})
			continue
		}
		report.Filled = append(report.Filled, field.FullName)
	}

	if e.flatten && form != nil {
		if err := f.flatten(); err != nil {
			return nil, nil, fmt.Errorf("pdffill: flatten: %w", err)
		}
		return f.u.bytes(), report, nil
	}
	if f.u.empty() {
		return bytes.Clone(src), report, nil
	}
	if err := f.needAppearances(); err != nil {
		return nil, nil, fmt.Errorf("pdffill: %w", err)
	}
	return f.u.bytes(), report, nil
}

type filler struct {
	u    *update
	form *reader.Form
}

// set dispatches on the field kind. It returns the reason the field was
// skipped, or "".
func (f *filler) set(field *reader.Field, value string) string {
	if field.Inline || field.Ref.Number == 0 {
		return reasonInline
	}
	switch field.Kind {
	case reader.KindText:
		f.setText(field, value)
	case reader.KindCheckBox:
		f.setCheckBox(field, value)
	case reader.KindRadio:
		f.setRadio(field, value)
	case reader.KindChoice:
		return f.setChoice(field, value)
	default:
		return reasonUnsupported + " " + field.Kind.String()
	}
	return ""
}

func (f *filler) setText(field *reader.Field, value string) {
	if field.MaxLen > 0 {
		if r := []rune(value); len(r) > field.MaxLen {
			value = string(r[:field.MaxLen])
		}
	}
	d := f.u.dict(field.Ref, field.Dict)
	d["V"] = reader.String{Value: reader.EncodeText(value)}

	var lines []string
	switch {
	case field.Flags&reader.FlagPassword != 0:
		lines = []string{strings.Repeat("*", len([]rune(value)))}
	case field.Multiline():
		lines = strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), "\n")
	default:
		lines = []string{strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(value)}
	}
	f.appear(field, appearance{lines: lines, multiline: field.Multiline(), selected: -1})
}

// CheckBoxOn reports whether a cell value checks a check box: "true" in
// any letter case, or "1".
func CheckBoxOn(value string) bool {
	return strings.EqualFold(value, "true") || value == "1"
}

func (f *filler) setCheckBox(field *reader.Field, value string) {
	on := CheckBoxOn(value)
	v := reader.Name("Off")
	if on {
		v = "Yes"
	}
	for i, w := range field.Widgets {
		state := reader.Name("Off")
		if on {
			state = "Yes"
			if len(w.States) > 0 {
				state = w.States[0]
			}
		}
		if i == 0 {
			v = state
		}
		if w.Ref.Number != 0 {
			f.u.dict(w.Ref, w.Dict)["AS"] = state
		}
	}
	f.u.dict(field.Ref, field.Dict)["V"] = v
}

func (f *filler) setRadio(field *reader.Field, value string) {
	option := reader.Name(value)
	if value == "" {
		option = "Off"
	}
	f.u.dict(field.Ref, field.Dict)["V"] = option
	for _, w := range field.Widgets {
		if w.Ref.Number == 0 {
			continue
		}
		state := reader.Name("Off")
		if slices.Contains(w.States, option) {
			state = option
		}
		f.u.dict(w.Ref, w.Dict)["AS"] = state
	}
}

// matchOption finds value among the export values and display texts of
// opts, exactly first and then ignoring case.
func matchOption(opts []reader.Option, value string) int {
	for i, o := range opts {
		if o.Export == value || o.Display == value {
			return i
		}
	}
	for i, o := range opts {
		if strings.EqualFold(o.Export, value) || strings.EqualFold(o.Display, value) {
			return i
		}
	}
	return -1
}

func (f *filler) setChoice(field *reader.Field, value string) string {
	i := matchOption(field.Options, value)
	if i < 0 && !(field.Combo() && field.Editable()) {
		return reasonNoOption
	}

	d := f.u.dict(field.Ref, field.Dict)
	export, display := value, value
	if i >= 0 {
		export, display = field.Options[i].Export, field.Options[i].Display
		d["I"] = reader.Array{reader.Integer(i)}
	} else {
		delete(d, "I")
	}
	d["V"] = reader.String{Value: reader.EncodeText(export)}

	if field.Combo() {
		f.appear(field, appearance{lines: []string{display}, selected: -1})
		return ""
	}
	lines := make([]string, len(field.Options))
	for j, o := range field.Options {
		lines[j] = o.Display
	}
	f.appear(field, appearance{lines: lines, selected: i})
	return ""
}

// appear replaces the normal appearance of every indirect widget of field.
func (f *filler) appear(field *reader.Field, a appearance) {
	a.quadding = field.Quadding
	for _, w := range field.Widgets {
		if w.Ref.Number == 0 {
			continue
		}
		a.rect = w.Rect
		a.da = field.DA
		if da := w.Dict.Text("DA"); da != "" {
			a.da = da
		}
		name, font := fontResources(f.u, f.form, a.da)
		ref := f.u.add(a.stream(name, font))
		f.u.dict(w.Ref, w.Dict)["AP"] = reader.Dict{"N": ref}
	}
}

// needAppearances asks viewers to regenerate field appearances.
func (f *filler) needAppearances() error {
	if f.form.Ref.Number != 0 {
		f.u.dict(f.form.Ref, f.form.Dict)["NeedAppearances"] = reader.Boolean(true)
		return nil
	}
	root, ok := f.u.doc.Trailer()["Root"].(reader.Reference)
	if !ok {
		return fmt.Errorf("catalog is not an indirect object")
	}
	cat, err := f.u.doc.Catalog()
	if err != nil {
		return err
	}
	acro := f.form.Dict.Clone()
	acro["NeedAppearances"] = reader.Boolean(true)
	f.u.dict(root, cat)["AcroForm"] = acro
	return nil
}
