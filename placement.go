package tplmerge

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// Alignment anchors a text run horizontally at its placement x.
type Alignment string

const (
	AlignLeft  Alignment = "left"
	AlignRight Alignment = "right"
)

// FontNotSet is the sentinel fontFamily written by the editor for "use default".
const FontNotSet = "not-set"

// BarcodeKind selects a barcode symbology for a placement. The empty kind
// renders the value as text.
type BarcodeKind string

const (
	BarcodeNone    BarcodeKind = ""
	BarcodeQR      BarcodeKind = "qr"
	BarcodeCode128 BarcodeKind = "code128"
	BarcodePDF417  BarcodeKind = "pdf417"
)

// FieldPlacement positions and styles one column's value on one image asset.
type FieldPlacement struct {
	IsEnabled       bool        `json:"isEnabled"`
	X               int         `json:"x"`
	Y               int         `json:"y"`
	FontSize        int         `json:"fontSize"`
	FontFamily      string      `json:"fontFamily"`
	Alignment       Alignment   `json:"alignment"`
	LetterSpacing   float64     `json:"letterSpacing,omitempty"`
	Color           Color       `json:"color"`
	BackgroundColor Color       `json:"backgroundColor"`
	Barcode         BarcodeKind `json:"barcode,omitempty"`
	Width           int         `json:"width,omitempty"`
	Height          int         `json:"height,omitempty"`
}

// DefaultPlacement returns the placement given to a column that has not been
// configured yet: disabled, 12px black text on a transparent background.
func DefaultPlacement() FieldPlacement {
	return FieldPlacement{
		FontSize:        12,
		Alignment:       AlignLeft,
		Color:           RGBA(0, 0, 0, 1),
		BackgroundColor: RGBA(255, 255, 255, 0),
	}
}

// UsesDefaultFont reports whether the placement asks for the default family.
func (p FieldPlacement) UsesDefaultFont() bool {
	return p.FontFamily == "" || p.FontFamily == FontNotSet
}

// UnmarshalJSON fills fields missing from data with DefaultPlacement values,
// so partially written entries behave like the editor's defaults.
func (p *FieldPlacement) UnmarshalJSON(data []byte) error {
	type plain FieldPlacement
	v := plain(DefaultPlacement())
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("tplmerge: placement: %w", err)
	}
	if v.Alignment != AlignRight {
		v.Alignment = AlignLeft
	}
	*p = FieldPlacement(v)
	return nil
}

// AssetPlacements maps field (column) name to its placement on one asset.
type AssetPlacements map[string]FieldPlacement

// Placements maps asset name to the placements configured on it.
type Placements map[string]AssetPlacements

// TemplateSets maps a template set identifier to its placements.
type TemplateSets map[string]Placements

// ReplacementMap maps a column name to a PDF form field name. An empty field
// name means the column is not mapped.
type ReplacementMap map[string]string

// PdfReplacementTable maps a PDF asset name to its column mapping.
type PdfReplacementTable map[string]ReplacementMap

// Clone returns a deep copy of p.
func (p AssetPlacements) Clone() AssetPlacements {
	if p == nil {
		return nil
	}
	out := make(AssetPlacements, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of p.
func (p Placements) Clone() Placements {
	if p == nil {
		return nil
	}
	out := make(Placements, len(p))
	for k, v := range p {
		out[k] = v.Clone()
	}
	return out
}

// Clone returns a deep copy of t.
func (t PdfReplacementTable) Clone() PdfReplacementTable {
	if t == nil {
		return nil
	}
	out := make(PdfReplacementTable, len(t))
	for asset, m := range t {
		cp := make(ReplacementMap, len(m))
		for k, v := range m {
			cp[k] = v
		}
		out[asset] = cp
	}
	return out
}

// TemplateSetID derives the template set identifier of a spreadsheet: its
// base file name.
func TemplateSetID(spreadsheetPath string) string {
	if spreadsheetPath == "" {
		return ""
	}
	return filepath.Base(spreadsheetPath)
}

// AssetKind classifies a template asset by extension.
type AssetKind string

const (
	KindUnknown  AssetKind = ""
	KindImage    AssetKind = "image"
	KindDocument AssetKind = "document"
)

// KindOf returns the kind of the named asset; the extension match is
// case-insensitive.
func KindOf(name string) AssetKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif":
		return KindImage
	case ".pdf":
		return KindDocument
	}
	return KindUnknown
}
