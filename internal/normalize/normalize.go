// Package normalize canonicalises free text into comparable tokens.
//
// Every function in this package is pure and total: it never fails and the
// empty string maps to the empty string.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxTextLength is the rune limit applied by [PreprocessText] when the
// caller passes a non-positive limit.
const DefaultMaxTextLength = 10000

// commonWords are corporate suffixes that carry no identifying signal.
var commonWords = map[string]struct{}{
	"limited": {},
	"ltd":     {},
	"corp":    {},
	"company": {},
}

// Name keeps only ASCII letters, ASCII digits and whitespace, lowercases the
// result and trims surrounding whitespace.
func Name(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// RemoveCommonWords drops the tokens "limited", "ltd", "corp" and "company"
// (case-insensitive) and joins the remaining tokens with single spaces.
func RemoveCommonWords(s string) string {
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if _, common := commonWords[strings.ToLower(w)]; common {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// Query returns the form used for every scoring comparison: the normalised
// name with common words removed.
func Query(s string) string {
	return RemoveCommonWords(Name(s))
}

// PreprocessText cleans article text before it is handed to the entity
// extractor. It applies NFKC, replaces control characters and every symbol
// other than ".,()" with a space, collapses whitespace and truncates to
// maxLen runes, appending "..." when text was cut. maxLen <= 0 selects
// [DefaultMaxTextLength].
func PreprocessText(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLength
	}
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == utf8.RuneError:
			return -1
		case unicode.IsControl(r):
			return ' '
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', unicode.IsSpace(r):
			return r
		case r == '.', r == ',', r == '(', r == ')':
			return r
		}
		return ' '
	}, s)
	s = strings.Join(strings.Fields(s), " ")

	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
