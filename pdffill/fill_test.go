package pdffill_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lvillar/tplmerge"
	"github.com/lvillar/tplmerge/internal/pdftest"
	"github.com/lvillar/tplmerge/pdffill"
	"github.com/lvillar/tplmerge/reader"
)

func formPDF() []byte {
	f := pdftest.NewForm()
	f.Text("name", "")
	f.Text("city", "")
	f.CheckBox("agree", "Evet")
	f.Radio("gender", "Male", "Female")
	f.Combo("country", false, "Turkey", "Germany")
	f.Combo("town", true, "Ankara")
	f.List("color", "Red", "Blue")
	f.ExportCombo("code", "TR", "Turkiye", "DE", "Deutschland")
	f.PushButton("submit")
	f.Signature("sig")
	f.Nested("person", "email")
	f.Inline("note")
	return f.Bytes()
}

func field(t *testing.T, data []byte, name string) (*reader.Document, *reader.Field) {
	t.Helper()
	doc, err := reader.Parse(data)
	require.NoError(t, err)
	form, err := doc.Form()
	require.NoError(t, err)
	require.NotNil(t, form)
	f := form.Lookup(name)
	require.NotNil(t, f, "field %s", name)
	return doc, f
}

func normalAppearance(t *testing.T, doc *reader.Document, w reader.Widget) string {
	t.Helper()
	ap, err := doc.ResolveDict(w.Dict["AP"])
	require.NoError(t, err)
	require.NotNil(t, ap, "widget has no /AP")
	obj, err := doc.Resolve(ap["N"])
	require.NoError(t, err)
	s, ok := obj.(reader.Stream)
	require.True(t, ok, "/N is %T", obj)
	return string(s.Data)
}

func TestFillText(t *testing.T) {
	src := formPDF()
	mapping := tplmerge.ReplacementMap{"Ad": "name", "Sehir": "city", "Unused": ""}
	row := tplmerge.RowOf("img_path", "form.pdf", "Ad", "Ön Gül", "Sehir", "İzmir", "Unused", "x")

	out, report, err := pdffill.Fill(src, mapping, row)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "city"}, report.Filled)
	assert.Empty(t, report.Skipped)
	assert.True(t, bytes.HasPrefix(out, src), "update must keep the original bytes")

	doc, name := field(t, out, "name")
	assert.Equal(t, "On Gul", name.ValueText())
	assert.Contains(t, normalAppearance(t, doc, name.Widgets[0]), "(On Gul) Tj")
	_, city := field(t, out, "city")
	assert.Equal(t, "Izmir", city.ValueText())

	_, ok := doc.Trailer()["Prev"]
	assert.True(t, ok, "trailer should chain to the original section")
	form, err := doc.Form()
	require.NoError(t, err)
	assert.Equal(t, reader.Boolean(true), form.Dict["NeedAppearances"])
}

func TestFillNumberValue(t *testing.T) {
	row := tplmerge.NewRow([]string{"Amount"}, []tplmerge.Value{tplmerge.NumberValue(12.5)})
	out, _, err := pdffill.Fill(formPDF(), tplmerge.ReplacementMap{"Amount": "name"}, row)
	require.NoError(t, err)
	_, name := field(t, out, "name")
	assert.Equal(t, "12.5", name.ValueText())
}

func TestFillCheckBox(t *testing.T) {
	tests := []struct {
		value string
		want  reader.Name
	}{
		{"1", "Evet"},
		{"true", "Evet"},
		{"TRUE", "Evet"},
		{"false", "Off"},
		{"Selected", "Off"},
		{"0", "Off"},
		{"", "Off"},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			row := tplmerge.RowOf("Onay", tt.value)
			out, report, err := pdffill.Fill(formPDF(), tplmerge.ReplacementMap{"Onay": "agree"}, row)
			require.NoError(t, err)
			assert.Equal(t, []string{"agree"}, report.Filled)

			_, agree := field(t, out, "agree")
			assert.Equal(t, tt.want, agree.Value)
			assert.Equal(t, tt.want, agree.Widgets[0].State)
		})
	}
}

func TestFillRadio(t *testing.T) {
	out, _, err := pdffill.Fill(formPDF(), tplmerge.ReplacementMap{"G": "gender"}, tplmerge.RowOf("G", "Female"))
	require.NoError(t, err)
	_, gender := field(t, out, "gender")
	assert.Equal(t, reader.Name("Female"), gender.Value)
	require.Len(t, gender.Widgets, 2)
	assert.Equal(t, reader.Name("Off"), gender.Widgets[0].State)
	assert.Equal(t, reader.Name("Female"), gender.Widgets[1].State)

	out, _, err = pdffill.Fill(formPDF(), tplmerge.ReplacementMap{"G": "gender"}, tplmerge.RowOf("G", "Other"))
	require.NoError(t, err)
	_, gender = field(t, out, "gender")
	assert.Equal(t, reader.Name("Other"), gender.Value)
	for _, w := range gender.Widgets {
		assert.Equal(t, reader.Name("Off"), w.State)
	}
}

func TestFillChoice(t *testing.T) {
	mapping := tplmerge.ReplacementMap{"C": "country", "T": "town", "L": "color"}
	row := tplmerge.RowOf("C", "germany", "T", "Paris", "L", "Blue")
	out, report, err := pdffill.Fill(formPDF(), mapping, row)
	require.NoError(t, err)
	assert.Equal(t, []string{"country", "color", "town"}, report.Filled)

	_, country := field(t, out, "country")
	assert.Equal(t, "Germany", country.ValueText())
	assert.Equal(t, reader.Array{reader.Integer(1)}, country.Dict["I"])

	_, town := field(t, out, "town")
	assert.Equal(t, "Paris", town.ValueText(), "editable combos accept free text")

	doc, color := field(t, out, "color")
	assert.Equal(t, "Blue", color.ValueText())
	ap := normalAppearance(t, doc, color.Widgets[0])
	assert.Contains(t, ap, "0.6 0.75 0.86 rg")
	assert.Contains(t, ap, "(Red) Tj")
}

func TestFillChoiceUnmatched(t *testing.T) {
	mapping := tplmerge.ReplacementMap{"C": "country", "L": "color"}
	row := tplmerge.RowOf("C", "Paris", "L", "Green")
	out, report, err := pdffill.Fill(formPDF(), mapping, row)
	require.NoError(t, err)
	assert.Empty(t, report.Filled)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, "C", report.Skipped[0].Column)
	assert.Equal(t, "value is not one of the options", report.Skipped[0].Reason)

	_, country := field(t, out, "country")
	assert.Empty(t, country.ValueText())
}

func TestFillExportValue(t *testing.T) {
	out, _, err := pdffill.Fill(formPDF(), tplmerge.ReplacementMap{"Ulke": "code"}, tplmerge.RowOf("Ulke", "Türkiye"))
	require.NoError(t, err)
	_, code := field(t, out, "code")
	assert.Equal(t, "TR", code.ValueText(), "display text selects the export value")
}

func TestFillWithoutTransliteration(t *testing.T) {
	e := pdffill.New(pdffill.WithTransliteration(false))
	out, _, err := e.Fill(formPDF(), tplmerge.ReplacementMap{"Ad": "name"}, tplmerge.RowOf("Ad", "Ön Gül"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "<FEFF00D6006E", "non-ASCII text is written as UTF-16")
	_, name := field(t, out, "name")
	assert.Equal(t, "Ön Gül", name.ValueText())
}

func TestFillSkips(t *testing.T) {
	mapping := tplmerge.ReplacementMap{
		"a": "missing",
		"b": "note",
		"c": "submit",
		"d": "sig",
		"e": "name",
		"f": "city",
	}
	row := tplmerge.RowOf("a", "1", "b", "2", "c", "3", "d", "4", "e", "5")
	out, report, err := pdffill.Fill(formPDF(), mapping, row)
	require.NoError(t, err)

	assert.Equal(t, []string{"name"}, report.Filled, "column f is absent from the row")
	want := []pdffill.Skip{
		{Column: "a", Field: "missing", Reason: "field not found"},
		{Column: "b", Field: "note", Reason: "field is not an indirect object"},
		{Column: "c", Field: "submit", Reason: "unsupported field kind pushbutton"},
		{Column: "d", Field: "sig", Reason: "unsupported field kind signature"},
	}
	assert.Equal(t, want, report.Skipped)

	_, name := field(t, out, "name")
	assert.Equal(t, "5", name.ValueText())
}

func TestFillPartialName(t *testing.T) {
	out, report, err := pdffill.Fill(formPDF(), tplmerge.ReplacementMap{"Mail": "email"}, tplmerge.RowOf("Mail", "a@b.co"))
	require.NoError(t, err)
	assert.Equal(t, []string{"person.email"}, report.Filled)
	_, email := field(t, out, "person.email")
	assert.Equal(t, "a@b.co", email.ValueText())
}

func TestFillNothingWritten(t *testing.T) {
	src := formPDF()
	out, report, err := pdffill.Fill(src, tplmerge.ReplacementMap{"a": "missing"}, tplmerge.RowOf("a", "x"))
	require.NoError(t, err)
	assert.Equal(t, src, out)
	assert.Len(t, report.Skipped, 1)
}

func TestFillWithoutForm(t *testing.T) {
	b := pdftest.New()
	b.Add("<</Type /Catalog /Pages 2 0 R>>")
	b.Add("<</Type /Pages /Kids [] /Count 0>>")
	src := b.Bytes(1, "")

	out, report, err := pdffill.Fill(src, tplmerge.ReplacementMap{"a": "name"}, tplmerge.RowOf("a", "x"))
	require.NoError(t, err)
	assert.Equal(t, src, out)
	assert.Equal(t, []pdffill.Skip{{Column: "a", Field: "name", Reason: "document has no form"}}, report.Skipped)
}

func TestFillEncrypted(t *testing.T) {
	f := pdftest.NewForm()
	f.Text("name", "")
	f.Encrypted = true

	_, _, err := pdffill.Fill(f.Bytes(), tplmerge.ReplacementMap{"a": "name"}, tplmerge.RowOf("a", "x"))
	assert.ErrorIs(t, err, tplmerge.ErrEncrypted)
}

func TestFillCompressed(t *testing.T) {
	f := pdftest.NewForm()
	f.Text("name", "")
	f.CheckBox("agree", "Yes")

	mapping := tplmerge.ReplacementMap{"A": "name", "B": "agree"}
	out, report, err := pdffill.Fill(f.CompressedBytes(), mapping, tplmerge.RowOf("A", "Çiçek", "B", "1"))
	require.NoError(t, err)
	assert.Len(t, report.Filled, 2)

	_, name := field(t, out, "name")
	assert.Equal(t, "Cicek", name.ValueText())
	_, agree := field(t, out, "agree")
	assert.Equal(t, reader.Name("Yes"), agree.Value)
}

func TestFillRepairedDocument(t *testing.T) {
	src := formPDF()
	i := bytes.IndexByte(src, '\n') + 1
	shifted := append(append(bytes.Clone(src[:i]), "%fixup\n"...), src[i:]...)

	out, _, err := pdffill.Fill(shifted, tplmerge.ReplacementMap{"A": "name"}, tplmerge.RowOf("A", "x"))
	require.NoError(t, err)

	doc, name := field(t, out, "name")
	assert.False(t, doc.Repaired(), "the appended table should cover every object")
	assert.Equal(t, "x", name.ValueText())
	_, city := field(t, out, "city")
	assert.Empty(t, city.ValueText())
}

func TestFillAgain(t *testing.T) {
	mapping := tplmerge.ReplacementMap{"A": "name"}
	first, _, err := pdffill.Fill(formPDF(), mapping, tplmerge.RowOf("A", "first"))
	require.NoError(t, err)
	second, _, err := pdffill.Fill(first, mapping, tplmerge.RowOf("A", "second"))
	require.NoError(t, err)

	_, name := field(t, second, "name")
	assert.Equal(t, "second", name.ValueText())
}

func TestFillDeterministic(t *testing.T) {
	mapping := tplmerge.ReplacementMap{"A": "name", "B": "agree", "C": "color", "D": "gender"}
	row := tplmerge.RowOf("A", "Şule", "B", "1", "C", "Red", "D", "Male")
	a, _, err := pdffill.Fill(formPDF(), mapping, row)
	require.NoError(t, err)
	b, _, err := pdffill.Fill(formPDF(), mapping, row)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFillMalformed(t *testing.T) {
	_, _, err := pdffill.Fill([]byte("not a pdf"), tplmerge.ReplacementMap{}, tplmerge.RowOf())
	assert.ErrorIs(t, err, tplmerge.ErrCorrupted)

	f := pdftest.NewForm()
	f.Text("name", "")
	f.CheckBox("agree", "Yes")
	valid := f.CompressedBytes()
	mapping := tplmerge.ReplacementMap{"Ad": "name", "Ok": "agree"}
	row := tplmerge.RowOf("Ad", "Ann", "Ok", "1")

	truncated := valid[:len(valid)/2]
	corrupted := bytes.Clone(valid)
	mid := len(corrupted) / 3
	for i := mid; i < mid+64 && i < len(corrupted); i++ {
		corrupted[i] ^= 0x5a
	}
	noTail := valid[:bytes.LastIndex(valid, []byte("startxref"))]

	for name, data := range map[string][]byte{
		"truncated":    truncated,
		"corrupted":    corrupted,
		"no startxref": noTail,
		"header only":  valid[:16],
	} {
		t.Run(name, func(t *testing.T) {
			// Damaged input either fails cleanly or is repaired.
			assert.NotPanics(t, func() {
				_, _, _ = pdffill.Fill(data, mapping, row)
				_, _ = pdffill.FormFields(data)
			})
		})
	}
}

func TestFillNonWinAnsiFontFallsBack(t *testing.T) {
	f := pdftest.NewForm()
	f.Text("name", "")
	f.Set(pdftest.FontObj, "<</Type /Font /Subtype /Type0 /BaseFont /ArialUnicode /Encoding /Identity-H>>")

	out, report, err := pdffill.Fill(f.Bytes(), tplmerge.ReplacementMap{"Ad": "name"}, tplmerge.RowOf("Ad", "Ann"))
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, report.Filled)

	doc, name := field(t, out, "name")
	ap, err := doc.ResolveDict(name.Widgets[0].Dict["AP"])
	require.NoError(t, err)
	obj, err := doc.Resolve(ap["N"])
	require.NoError(t, err)
	s, ok := obj.(reader.Stream)
	require.True(t, ok)
	assert.Contains(t, string(s.Data), "(Ann) Tj")

	fonts, err := doc.ResolveDict(s.Dict.Dict("Resources")["Font"])
	require.NoError(t, err)
	assert.NotEqual(t, reader.Reference{Number: pdftest.FontObj}, fonts["Helv"])
	font, err := doc.ResolveDict(fonts["Helv"])
	require.NoError(t, err)
	assert.Equal(t, reader.Name("Helvetica"), font.Name("BaseFont"))
	assert.Equal(t, reader.Name("WinAnsiEncoding"), font.Name("Encoding"))
}

func TestCheckBoxOn(t *testing.T) {
	for v, want := range map[string]bool{"1": true, "true": true, "True": true, "yes": false, "on": false, "Selected": false} {
		assert.Equal(t, want, pdffill.CheckBoxOn(v), v)
	}
}

func TestFormFields(t *testing.T) {
	fields, err := pdffill.FormFields(formPDF())
	require.NoError(t, err)

	byName := map[string]pdffill.FieldInfo{}
	for _, f := range fields {
		byName[f.Name] = f
	}
	assert.Len(t, fields, 12)
	assert.Equal(t, pdffill.TypeText, byName["name"].Type)
	assert.Equal(t, pdffill.TypeCheckBox, byName["agree"].Type)
	assert.Equal(t, []string{"Evet"}, byName["agree"].Options)
	assert.Equal(t, pdffill.TypeRadio, byName["gender"].Type)
	assert.Equal(t, []string{"Female", "Male"}, byName["gender"].Options)
	assert.Equal(t, pdffill.TypeChoice, byName["country"].Type)
	assert.Equal(t, []string{"Turkey", "Germany"}, byName["country"].Options)
	assert.Equal(t, []string{"TR", "DE"}, byName["code"].Options)
	assert.Equal(t, pdffill.TypePushButton, byName["submit"].Type)
	assert.Equal(t, pdffill.TypeSignature, byName["sig"].Type)
	assert.Equal(t, pdffill.TypeText, byName["person.email"].Type)
	assert.Equal(t, 1, byName["name"].Page)
}

func TestFormFieldsWithoutForm(t *testing.T) {
	b := pdftest.New()
	b.Add("<</Type /Catalog /Pages 2 0 R>>")
	b.Add("<</Type /Pages /Kids [] /Count 0>>")
	fields, err := pdffill.FormFields(b.Bytes(1, ""))
	require.NoError(t, err)
	assert.NotNil(t, fields)
	assert.Empty(t, fields)
}

func TestFillFlatten(t *testing.T) {
	f := pdftest.NewForm()
	f.Text("name", "")
	f.Text("city", "")
	f.CheckBox("agree", "Evet")
	src := f.Bytes()

	engine := pdffill.New(pdffill.WithFlatten(true))
	out, report, err := engine.Fill(src, tplmerge.ReplacementMap{"Ad": "name", "Ok": "agree"},
		tplmerge.RowOf("Ad", "Ann", "Ok", "true"))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "agree"}, report.Filled)
	assert.True(t, bytes.HasPrefix(out, src))

	doc, err := reader.Parse(out)
	require.NoError(t, err)
	form, err := doc.Form()
	require.NoError(t, err)
	assert.Nil(t, form)

	page, err := doc.Page(1)
	require.NoError(t, err)
	assert.Empty(t, page.Annots)
	assert.NotContains(t, page.Dict(), reader.Name("Annots"))

	contents := page.Dict().Array("Contents")
	require.Len(t, contents, 2)
	stream := func(obj reader.Object) string {
		v, err := doc.Resolve(obj)
		require.NoError(t, err)
		s, ok := v.(reader.Stream)
		require.True(t, ok, "content is %T", v)
		return string(s.Data)
	}
	assert.Equal(t, "q\n", stream(contents[0]))
	painted := stream(contents[1])
	assert.True(t, strings.HasPrefix(painted, "Q\nq 1 0 0 1 50 740 cm /Fw0 Do Q\n"), painted)
	assert.Contains(t, painted, "/Fw1 Do")
	// city has no appearance and is dropped unpainted.
	assert.NotContains(t, painted, "/Fw2")

	xobjects := page.Dict().Dict("Resources").Dict("XObject")
	assert.Len(t, xobjects, 2)
	ap, err := doc.Resolve(xobjects["Fw0"])
	require.NoError(t, err)
	assert.Contains(t, string(ap.(reader.Stream).Data), "(Ann) Tj")
}

func TestFillFlattenWithoutForm(t *testing.T) {
	b := pdftest.New()
	b.Add("<</Type /Catalog /Pages 2 0 R>>")
	b.Add("<</Type /Pages /Kids [] /Count 0>>")
	src := b.Bytes(1, "")

	out, _, err := pdffill.New(pdffill.WithFlatten(true)).Fill(src, nil, tplmerge.RowOf("a", "x"))
	require.NoError(t, err)
	assert.Equal(t, src, out)
}
