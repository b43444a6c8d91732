package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold decomposes characters and strips combining marks so that
// accented letters collapse to their unaccented ASCII base ("é" -> "e").
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Tokenize splits content on whitespace runs and normalizes each piece:
// lowercase, fold to ASCII, keep only alphabetic characters.
//
// A piece with no alphabetic content normalizes to the empty string, which
// stays in the returned slice ("2001!" yields [""]). Callers filter empty
// tokens out before storing or looking up a term.
func Tokenize(content string) []string {
	pieces := strings.Fields(content)
	tokens := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		tokens = append(tokens, normalize(piece))
	}
	return tokens
}

func normalize(word string) string {
	lowered := strings.ToLower(word)
	folded, _, err := transform.String(asciiFold, lowered)
	if err != nil {
		folded = lowered
	}

	var b strings.Builder
	for _, c := range folded {
		if c >= 'a' && c <= 'z' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
