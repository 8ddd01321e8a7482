package pdffill

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// turkish maps the Turkish letters outside ASCII to their base letters.
var turkish = map[rune]rune{
	'ş': 's', 'Ş': 'S',
	'ı': 'i', 'İ': 'I',
	'ğ': 'g', 'Ğ': 'G',
	'ü': 'u', 'Ü': 'U',
	'ö': 'o', 'Ö': 'O',
	'ç': 'c', 'Ç': 'C',
}

var transliterator = runes.Map(func(r rune) rune {
	if base, ok := turkish[r]; ok {
		return base
	}
	return r
})

// Transliterate replaces Turkish letters with their ASCII base letters so
// that standard 14 fonts can display them. Other characters are kept.
func Transliterate(s string) string {
	out, _, err := transform.String(transliterator, s)
	if err != nil {
		return s
	}
	return out
}
