package pdffill

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/lvillar/tplmerge/reader"
)

const (
	defaultFontName = reader.Name("Helv")
	maxAutoSize     = 12.0
	minAutoSize     = 4.0
	multilineAuto   = 10.0
	padding         = 2.0
	leading         = 1.15
	// averageWidth approximates the advance of a Helvetica glyph in em.
	averageWidth = 0.5
)

// appearance describes what one widget should show.
type appearance struct {
	rect      reader.Rectangle
	da        string
	quadding  int
	multiline bool
	// lines holds the text to draw; a list box shows one option per line.
	lines []string
	// selected is the highlighted line of a list box, or -1.
	selected int
}

// fontResources returns the resource name and font object for a default
// appearance string, looking the font up in the form's /DR. Appearance
// text is written in WinAnsi, so unknown fonts and fonts with any other
// encoding fall back to a Helvetica font object created in u.
func fontResources(u *update, form *reader.Form, da string) (reader.Name, reader.Object) {
	name, _ := reader.FontName(da)
	if name != "" && form.DR != nil {
		fonts, err := u.doc.ResolveDict(form.DR["Font"])
		if err == nil && fonts != nil {
			if f, ok := fonts[name]; ok && u.winAnsiFont(f) {
				return name, f
			}
		}
	}
	if u.helvetica.Number == 0 {
		u.helvetica = u.add(reader.Dict{
			"Type":     reader.Name("Font"),
			"Subtype":  reader.Name("Type1"),
			"BaseFont": reader.Name("Helvetica"),
			"Encoding": reader.Name("WinAnsiEncoding"),
		})
	}
	return defaultFontName, u.helvetica
}

// winAnsiFont reports whether single byte WinAnsi codes show the intended
// glyphs in font. Simple fonts without /Encoding use StandardEncoding,
// which agrees with WinAnsi for the printable ASCII range left after
// transliteration.
func (u *update) winAnsiFont(font reader.Object) bool {
	d, err := u.resolveDict(font)
	if err != nil || d == nil {
		return false
	}
	switch d.Name("Subtype") {
	case "Type1", "MMType1", "TrueType":
	default:
		return false
	}
	switch d.Name("BaseFont") {
	case "Symbol", "ZapfDingbats":
		return false
	}
	enc, err := u.resolve(d["Encoding"])
	if err != nil {
		return false
	}
	switch e := enc.(type) {
	case nil, reader.Null:
		return true
	case reader.Name:
		return e == "WinAnsiEncoding" || e == "StandardEncoding"
	case reader.Dict:
		if _, ok := e["Differences"]; ok {
			return false
		}
		base := e.Name("BaseEncoding")
		return base == "" || base == "WinAnsiEncoding" || base == "StandardEncoding"
	}
	return false
}

// stream builds the normal appearance form XObject.
func (a appearance) stream(fontName reader.Name, font reader.Object) reader.Stream {
	w, h := a.rect.Width(), a.rect.Height()
	_, size := reader.FontName(a.da)
	if size <= 0 {
		size = autoSize(h, a.multiline || len(a.lines) > 1)
	}

	var c bytes.Buffer
	c.WriteString("/Tx BMC\nq\n")
	fmt.Fprintf(&c, "1 1 %s %s re W n\n", formatReal(w-2), formatReal(h-2))

	lineHeight := size * leading
	top := h - padding - size
	if !a.multiline && a.selected < 0 {
		// Single lines are centred vertically.
		top = (h-size)/2 + 0.22*size
	}
	if a.selected >= 0 {
		y := h - padding - lineHeight*float64(a.selected+1)
		fmt.Fprintf(&c, "0.6 0.75 0.86 rg\n1 %s %s %s re f\n", formatReal(y), formatReal(w-2), formatReal(lineHeight))
	}

	c.WriteString("BT\n")
	fmt.Fprintf(&c, "/%s %s Tf\n", fontName, formatReal(size))
	if color := colorOperators(a.da); color != "" {
		c.WriteString(color + "\n")
	} else {
		c.WriteString("0 g\n")
	}
	for i, line := range a.lines {
		x := padding
		width := averageWidth * size * float64(len([]rune(line)))
		switch a.quadding {
		case 1:
			x = (w - width) / 2
		case 2:
			x = w - padding - width
		}
		y := top - lineHeight*float64(i)
		fmt.Fprintf(&c, "1 0 0 1 %s %s Tm\n", formatReal(round2(x)), formatReal(round2(y)))
		writeString(&c, winAnsi(line))
		c.WriteString(" Tj\n")
	}
	c.WriteString("ET\nQ\nEMC")

	return reader.Stream{
		Dict: reader.Dict{
			"Type":    reader.Name("XObject"),
			"Subtype": reader.Name("Form"),
			"BBox":    reader.Array{reader.Integer(0), reader.Integer(0), reader.Real(round2(w)), reader.Real(round2(h))},
			"Resources": reader.Dict{
				"Font": reader.Dict{fontName: font},
			},
		},
		Data: c.Bytes(),
	}
}

func autoSize(h float64, multiline bool) float64 {
	if multiline {
		return multilineAuto
	}
	return round2(min(max((h-2*padding)*0.8, minAutoSize), maxAutoSize))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// colorOperators returns the default appearance string without its font
// selection.
func colorOperators(da string) string {
	fields := strings.Fields(da)
	var out []string
	for i := 0; i < len(fields); i++ {
		if i+2 < len(fields) && fields[i+2] == "Tf" {
			i += 2
			continue
		}
		out = append(out, fields[i])
	}
	return strings.Join(out, " ")
}

// winAnsi encodes s for a standard font; characters outside the encoding
// become question marks.
func winAnsi(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}
