package storage

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD and drops combining marks, folding accented
// letters to their base form ("Relatório" -> "Relatorio").
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var (
	unsafeChars = regexp.MustCompile(`[^\w\s.-]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// SanitizeFilename normalizes a display name into a storage-safe path
// component: accents are folded away, characters outside the word, space,
// dot and dash set are stripped, and whitespace runs collapse to single
// dashes.
func SanitizeFilename(name string) string {
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}
	folded = unsafeChars.ReplaceAllString(folded, "")
	folded = strings.TrimSpace(folded)
	return whitespace.ReplaceAllString(folded, "-")
}
