package reader

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

var (
	utf16BOM  = []byte{0xFE, 0xFF}
	utf8BOM   = []byte{0xEF, 0xBB, 0xBF}
	utf16Text = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
)

// DecodeText decodes a PDF text string: UTF-16BE or UTF-8 when it starts
// with the matching byte order mark, PDFDocEncoding otherwise.
func DecodeText(b []byte) string {
	switch {
	case bytes.HasPrefix(b, utf16BOM):
		out, err := utf16Text.NewDecoder().Bytes(b)
		if err != nil {
			return string(b)
		}
		return string(out)
	case bytes.HasPrefix(b, utf8BOM):
		return string(b[len(utf8BOM):])
	}
	return decodeDocEncoding(b)
}

// EncodeText encodes s as a PDF text string. Pure ASCII is written as is;
// anything else is written as UTF-16BE with a byte order mark.
func EncodeText(s string) []byte {
	ascii := true
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return []byte(s)
	}
	out, err := utf16Text.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	if !bytes.HasPrefix(out, utf16BOM) {
		out = append(append([]byte{}, utf16BOM...), out...)
	}
	return out
}

// docEncodingHigh maps the PDFDocEncoding bytes 0x80..0x9F, which differ
// from Latin-1.
var docEncodingHigh = [32]rune{
	'•', '†', '‡', '…', '—', '–', 'ƒ', '⁄', '‹', '›', '−', '‰', '„', '“', '”', '‘',
	'’', '‚', '™', 'ﬁ', 'ﬂ', 'Ł', 'Œ', 'Š', 'Ÿ', 'Ž', 'ı', 'ł', 'œ', 'š', 'ž', utf8.RuneError,
}

func decodeDocEncoding(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		if c >= 0x80 && c <= 0x9F {
			runes[i] = docEncodingHigh[c-0x80]
			continue
		}
		// The rest of the table agrees with Latin-1.
		runes[i] = rune(c)
	}
	return string(runes)
}
