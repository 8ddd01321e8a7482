package pdffill

import (
	"fmt"

	"github.com/lvillar/tplmerge/reader"
)

// FieldType names the control type of a form field.
type FieldType string

const (
	TypeText       FieldType = "TextField"
	TypeCheckBox   FieldType = "CheckBox"
	TypeRadio      FieldType = "RadioButton"
	TypeChoice     FieldType = "Choice"
	TypePushButton FieldType = "PushButton"
	TypeSignature  FieldType = "Signature"
	TypeUnknown    FieldType = "Unknown"
)

func typeOf(k reader.FieldKind) FieldType {
	switch k {
	case reader.KindText:
		return TypeText
	case reader.KindCheckBox:
		return TypeCheckBox
	case reader.KindRadio:
		return TypeRadio
	case reader.KindChoice:
		return TypeChoice
	case reader.KindPushButton:
		return TypePushButton
	case reader.KindSignature:
		return TypeSignature
	}
	return TypeUnknown
}

// FieldInfo describes a terminal form field.
type FieldInfo struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Value    string    `json:"value,omitempty"`
	Options  []string  `json:"options,omitempty"`
	ReadOnly bool      `json:"readOnly,omitempty"`
	Page     int       `json:"page,omitempty"`
}

// FormFields lists the terminal fields of the form in src in document
// order. A document without a form has no fields.
func FormFields(src []byte) ([]FieldInfo, error) {
	doc, err := reader.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("pdffill: %w", err)
	}
	fields, err := doc.FormFields()
	if err != nil {
		return nil, fmt.Errorf("pdffill: %w", err)
	}

	out := make([]FieldInfo, 0, len(fields))
	for _, f := range fields {
		info := FieldInfo{
			Name:     f.FullName,
			Type:     typeOf(f.Kind),
			Value:    f.ValueText(),
			ReadOnly: f.ReadOnly(),
			Page:     f.Page(),
		}
		switch f.Kind {
		case reader.KindChoice:
			for _, o := range f.Options {
				info.Options = append(info.Options, o.Export)
			}
		case reader.KindRadio, reader.KindCheckBox:
			for _, s := range f.OnStates() {
				info.Options = append(info.Options, string(s))
			}
		}
		out = append(out, info)
	}
	return out, nil
}
