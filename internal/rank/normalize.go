package rank

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize case-folds s, strips accents, turns punctuation into spaces and
// collapses whitespace. "Señor C++ Développeur/ML" becomes "senor c++ developpeur ml".
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// transformers and casers are stateful, so build fresh ones per call
	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(strip, s); err == nil {
		s = out
	}
	s = cases.Fold().String(s)

	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '+', r == '#':
			return r
		default:
			return ' '
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// padded wraps normalized text in spaces so phrase lookups only match whole words.
func padded(s string) string {
	return " " + Normalize(s) + " "
}

func containsPhrase(paddedText, phrase string) bool {
	return phrase != "" && strings.Contains(paddedText, " "+phrase+" ")
}
